// Package billing holds the subscription plan catalogue and its limits, and the
// billing provider abstraction. No real payment processor is integrated; the
// placeholder provider returns fixed URLs.
package billing

import "strings"

// Plan is a subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Status is the billing state of an organization.
type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Limits are the plan caps. A nil field means unbounded.
type Limits struct {
	MaxMembers  *int
	MaxProjects *int
}

func intPtr(v int) *int { return &v }

var planLimits = map[Plan]Limits{
	PlanFree:       {MaxMembers: intPtr(3), MaxProjects: intPtr(5)},
	PlanPro:        {MaxMembers: intPtr(25), MaxProjects: intPtr(50)},
	PlanEnterprise: {},
}

// NormalizePlan maps stored or user input to a Plan; anything unknown is free.
func NormalizePlan(s string) Plan {
	switch p := Plan(strings.ToLower(strings.TrimSpace(s))); p {
	case PlanPro, PlanEnterprise:
		return p
	default:
		return PlanFree
	}
}

// NormalizeStatus maps stored input to a Status; anything unknown is active.
func NormalizeStatus(s string) Status {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusTrialing, StatusPastDue, StatusCanceled:
		return st
	default:
		return StatusActive
	}
}

// LimitsFor returns the caps of p. Unknown plans get the free caps.
func LimitsFor(p Plan) Limits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// AllowsMembers reports whether an organization with current members may add one more.
func (l Limits) AllowsMembers(current int) bool {
	return l.MaxMembers == nil || current < *l.MaxMembers
}

// AllowsProjects reports whether an organization with current projects may add one more.
func (l Limits) AllowsProjects(current int) bool {
	return l.MaxProjects == nil || current < *l.MaxProjects
}
