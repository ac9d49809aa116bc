// Package api wires together all HTTP routes for the tenantry backend.
//
// Route grouping:
//   - /health, /ready, /version, /auth/whoami and /contact are public.
//   - Everything under /user, /orgs, /billing, /tokens and /activity requires
//     an authenticated principal. Organization roles are enforced by the
//     services, not by route middleware, so every role check reads the
//     membership exactly once.
//
// Middleware order: recovery, request id, metrics, access log, CORS, security
// headers, principal resolution, access-denied audit, rate limiting.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/tenantry/tenantry/internal/api/account"
	apibilling "github.com/tenantry/tenantry/internal/api/billing"
	"github.com/tenantry/tenantry/internal/api/orgs"
	"github.com/tenantry/tenantry/internal/audit"
	"github.com/tenantry/tenantry/internal/auth"
	"github.com/tenantry/tenantry/internal/auth/oidc"
	"github.com/tenantry/tenantry/internal/billing"
	"github.com/tenantry/tenantry/internal/config"
	"github.com/tenantry/tenantry/internal/db/repositories"
	"github.com/tenantry/tenantry/internal/jobs"
	"github.com/tenantry/tenantry/internal/middleware"
	"github.com/tenantry/tenantry/internal/notify"
	"github.com/tenantry/tenantry/internal/services"
)

// Version is the build version reported by /version. Overridden at link time.
var Version = "0.1.0"

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown when the process receives a termination signal.
type BackgroundServices struct {
	scheduler    *jobs.Scheduler
	rateLimiters []*middleware.RateLimiter
	recorder     *audit.Recorder
	shippers     *audit.MultiShipper
	redis        *redis.Client
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown(ctx context.Context) {
	slog.Info("stopping background services")
	if bg.scheduler != nil {
		if err := bg.scheduler.Stop(ctx); err != nil {
			slog.Warn("scheduler shutdown incomplete", "error", err)
		}
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.recorder != nil {
		bg.recorder.Wait()
	}
	if bg.shippers != nil {
		if err := bg.shippers.Close(); err != nil {
			slog.Warn("failed to close audit shippers", "error", err)
		}
	}
	if bg.redis != nil {
		if err := bg.redis.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router.
func NewRouter(ctx context.Context, cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices, error) {
	bg := &BackgroundServices{}
	sqlxDB := sqlx.NewDb(db, "postgres")

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(sqlxDB)
	invitationRepo := repositories.NewInvitationRepository(sqlxDB)
	userRepo := repositories.NewUserRepository(sqlxDB)
	tokenRepo := repositories.NewAPITokenRepository(sqlxDB)
	projectRepo := repositories.NewProjectRepository(sqlxDB)
	activityRepo := repositories.NewActivityRepository(sqlxDB)

	// Activity recording and shipping
	shippers, err := audit.NewMultiShipper(ctx, cfg.Audit.Shippers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audit shippers: %w", err)
	}
	bg.shippers = shippers
	recorder := audit.NewRecorder(activityRepo, shippers)
	bg.recorder = recorder
	if n := shippers.Len(); n > 0 {
		slog.Info("audit shipping enabled", "shippers", n)
	}

	// Principal resolution
	verifier, err := newSessionVerifier(ctx, &cfg.Auth.Session)
	if err != nil {
		return nil, nil, err
	}
	resolver := auth.NewResolver(verifier, tokenRepo, cfg.Auth.TrustedHeaderFallback)
	slog.Info("principal resolver configured",
		"session_mode", cfg.Auth.Session.Mode,
		"header_fallback", cfg.Auth.TrustedHeaderFallback && verifier == nil)

	// Outbound mail is optional; invitations and expiry warnings degrade to no email.
	var mailer notify.Mailer
	if smtpMailer, err := notify.NewMailer(&cfg.Notifications); err == nil {
		mailer = smtpMailer
	} else if !errors.Is(err, notify.ErrNotConfigured) {
		return nil, nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	// Services
	authority := services.NewAuthority(orgRepo)
	orgSvc := services.NewOrganizationService(authority, orgRepo, recorder)
	invitationSvc := services.NewInvitationService(authority, orgRepo, invitationRepo, userRepo, recorder, cfg.Invitations.TTL())
	if mailer != nil {
		invitationSvc.WithMailer(mailer, cfg.Server.GetPublicURL())
	}
	memberSvc := services.NewMemberService(authority, orgRepo, recorder)
	projectSvc := services.NewProjectService(authority, projectRepo, recorder)
	profileSvc := services.NewProfileService(userRepo, recorder)
	tokenSvc := services.NewTokenService(authority, tokenRepo, recorder, cfg.Auth.Tokens.Prefix, cfg.Auth.Tokens.DefaultTTLDays)
	activitySvc := services.NewActivityService(recorder, recorder)
	billingSvc := services.NewBillingService(orgSvc, billing.PlaceholderProvider{DefaultPlan: cfg.Billing.DefaultCheckoutPlan})

	// Rate limiters
	general, sensitive, err := newLimiters(ctx, cfg, bg)
	if err != nil {
		return nil, nil, err
	}

	// Background jobs
	if cfg.Jobs.Enabled {
		scheduler, err := newScheduler(cfg, invitationRepo, tokenRepo, mailer)
		if err != nil {
			return nil, nil, err
		}
		scheduler.Start()
		bg.scheduler = scheduler
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware("/health", "/ready"))
	router.Use(LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Security.CORS))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))
	router.Use(middleware.ResolvePrincipal(resolver))
	router.Use(middleware.AccessDeniedAudit(recorder))
	if general != nil {
		router.Use(middleware.RateLimitMiddleware(general))
	}

	// sensitiveLimit guards the credential-sensitive routes with the stricter limiter.
	var sensitiveLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if sensitive != nil {
		sensitiveLimit = middleware.RateLimitMiddleware(sensitive)
	}

	orgH := orgs.NewHandlers(orgSvc, invitationSvc, memberSvc, projectSvc)
	accountH := account.NewHandlers(profileSvc, tokenSvc, activitySvc)
	billingH := apibilling.NewHandlers(billingSvc)

	// Public
	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, bg.redis))
	router.GET("/version", versionHandler())
	router.GET("/auth/whoami", whoamiHandler())
	router.POST("/contact", sensitiveLimit, accountH.SubmitContactHandler())

	authed := router.Group("")
	authed.Use(middleware.RequireAuth())
	{
		authed.GET("/user/profile", accountH.GetProfileHandler())
		authed.PATCH("/user/profile", accountH.UpdateProfileHandler())

		authed.GET("/orgs", orgH.ListOrganizationsHandler())
		authed.POST("/orgs/invitations/accept", sensitiveLimit, orgH.AcceptInvitationHandler())
		authed.GET("/orgs/:orgId", orgH.GetOrganizationHandler())
		authed.GET("/orgs/:orgId/invitations", orgH.ListInvitationsHandler())
		authed.POST("/orgs/:orgId/invitations", orgH.CreateInvitationHandler())
		authed.DELETE("/orgs/:orgId/invitations/:invitationId", orgH.RevokeInvitationHandler())
		authed.GET("/orgs/:orgId/members", orgH.ListMembersHandler())
		authed.PATCH("/orgs/:orgId/members/:memberId", orgH.ChangeRoleHandler())
		authed.DELETE("/orgs/:orgId/members/:memberId", orgH.RemoveMemberHandler())
		authed.GET("/orgs/:orgId/projects", orgH.ListProjectsHandler())
		authed.POST("/orgs/:orgId/projects", orgH.CreateProjectHandler())
		authed.PATCH("/orgs/:orgId/projects/:projectId", orgH.UpdateProjectHandler())

		authed.GET("/billing/:orgId/summary", billingH.SummaryHandler())
		authed.POST("/billing/:orgId/checkout", billingH.CheckoutHandler())
		authed.POST("/billing/:orgId/portal", billingH.PortalHandler())

		authed.GET("/tokens", accountH.ListTokensHandler())
		authed.POST("/tokens", sensitiveLimit, accountH.IssueTokenHandler())
		authed.DELETE("/tokens/:tokenId", accountH.RevokeTokenHandler())

		authed.GET("/activity", accountH.ListActivityHandler())
	}

	return router, bg, nil
}

// newSessionVerifier builds the session verifier selected by cfg.Mode. Mode
// none returns a nil verifier, which lets the resolver use trusted headers.
func newSessionVerifier(ctx context.Context, cfg *config.SessionConfig) (auth.SessionVerifier, error) {
	var verifier auth.SessionVerifier
	switch cfg.Mode {
	case "", config.SessionModeNone:
		return nil, nil
	case config.SessionModeHTTP:
		verifier = auth.NewHTTPSessionVerifier(cfg.URL, cfg.Timeout)
	case config.SessionModeJWT:
		if err := auth.ValidateSessionSecret(); err != nil {
			return nil, fmt.Errorf("invalid session secret: %w", err)
		}
		verifier = auth.JWTSessionVerifier{}
	case config.SessionModeOIDC:
		v, err := oidc.NewSessionVerifier(ctx, &cfg.OIDC)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OIDC verifier: %w", err)
		}
		verifier = v
	default:
		return nil, fmt.Errorf("unknown session mode: %s", cfg.Mode)
	}

	if cfg.CacheTTL > 0 {
		verifier = auth.NewCachingSessionVerifier(verifier, cfg.CacheSize, cfg.CacheTTL)
	}
	return verifier, nil
}

// newLimiters builds the general and sensitive limiters. Both are nil when rate
// limiting is disabled. Resources needing shutdown are attached to bg.
func newLimiters(ctx context.Context, cfg *config.Config, bg *BackgroundServices) (general, sensitive middleware.Limiter, err error) {
	rl := cfg.Security.RateLimiting
	if !rl.Enabled {
		slog.Warn("rate limiting is disabled")
		return nil, nil, nil
	}
	generalCfg, sensitiveCfg := middleware.RateLimitConfigsFrom(rl)

	if rl.Backend == middleware.BackendRedis {
		client, err := middleware.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		bg.redis = client
		slog.Info("rate limiting backed by redis", "addr", cfg.Redis.Addr)
		return middleware.NewRedisRateLimiter(client, "ratelimit:general", generalCfg),
			middleware.NewRedisRateLimiter(client, "ratelimit:sensitive", sensitiveCfg), nil
	}

	g := middleware.NewRateLimiter(generalCfg)
	s := middleware.NewRateLimiter(sensitiveCfg)
	bg.rateLimiters = append(bg.rateLimiters, g, s)
	return g, s, nil
}

// newScheduler registers the maintenance jobs. The expiry notifier is skipped
// when no mailer is configured.
func newScheduler(
	cfg *config.Config,
	invitations *repositories.InvitationRepository,
	tokens *repositories.APITokenRepository,
	mailer notify.Mailer,
) (*jobs.Scheduler, error) {
	scheduler := jobs.NewScheduler()
	if err := scheduler.Add(cfg.Jobs.InvitationPurgeSchedule,
		jobs.NewInvitationPurgeJob(invitations, cfg.Invitations.RetentionDays)); err != nil {
		return nil, err
	}
	if mailer == nil {
		slog.Info("token expiry notifier disabled: notifications not configured")
		return scheduler, nil
	}
	if err := scheduler.Add(cfg.Jobs.TokenExpirySchedule,
		jobs.NewTokenExpiryNotifier(tokens, mailer, cfg.Notifications.TokenExpiryWarningDays)); err != nil {
		return nil, err
	}
	return scheduler, nil
}
