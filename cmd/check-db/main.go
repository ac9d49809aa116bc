// Package main is a diagnostic tool for the tenantry database. It connects using
// the regular server configuration, prints every organization with its owner and
// member counts, and flags organizations that have no owner or exceed the member
// cap of their plan. The binary exits non-zero when the database is unreachable or
// any organization is flagged, so it can gate deployments in CI/CD pipelines.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/tenantry/tenantry/internal/billing"
	"github.com/tenantry/tenantry/internal/config"
	"github.com/tenantry/tenantry/internal/db"
	"github.com/tenantry/tenantry/internal/db/repositories"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), 2, 1)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	orgs := repositories.NewOrganizationRepository(sqlx.NewDb(database, "postgres"))
	health, err := orgs.ListHealth(ctx)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Println("=== ORGANIZATIONS ===")
	problems := 0
	for _, o := range health {
		plan := billing.NormalizePlan(o.Plan)
		status := "ok"
		switch {
		case o.OwnerCount == 0:
			status = "NO OWNER"
			problems++
		case !billing.LimitsFor(plan).AllowsMembers(o.MemberCount - 1):
			status = "OVER MEMBER CAP"
			problems++
		}
		fmt.Printf("%-36s %-30s plan=%-10s owners=%d members=%d  %s\n",
			o.ID, o.Name, plan, o.OwnerCount, o.MemberCount, status)
	}

	if len(health) == 0 {
		fmt.Println("No organizations found")
	}
	if problems > 0 {
		fmt.Printf("\n%d organization(s) need attention\n", problems)
		os.Exit(1)
	}
}
