package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/livelihood-backend/api/controllers"
	"github.com/angelmondragon/livelihood-backend/api/middleware"
	"github.com/angelmondragon/livelihood-backend/internal/applications"
	"github.com/angelmondragon/livelihood-backend/internal/audit"
	"github.com/angelmondragon/livelihood-backend/internal/auth"
	"github.com/angelmondragon/livelihood-backend/internal/authz"
	"github.com/angelmondragon/livelihood-backend/internal/beneficiaries"
	"github.com/angelmondragon/livelihood-backend/internal/dashboard"
	"github.com/angelmondragon/livelihood-backend/internal/notifications"
	"github.com/angelmondragon/livelihood-backend/internal/programs"
	"github.com/angelmondragon/livelihood-backend/internal/users"
	"github.com/angelmondragon/livelihood-backend/pkg/auth/session"
	"github.com/angelmondragon/livelihood-backend/pkg/config"
	"github.com/angelmondragon/livelihood-backend/pkg/db"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
	"github.com/angelmondragon/livelihood-backend/pkg/metrics"
	"github.com/angelmondragon/livelihood-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager session.AccessSessionChecker,
	httpMetrics *metrics.HTTPMetrics,
	metricsHandler http.Handler,
	authService auth.Service,
	usersService users.Service,
	programsService programs.Service,
	applicationsService applications.Service,
	beneficiariesService beneficiaries.Service,
	notificationsService notifications.Service,
	auditService audit.Service,
	dashboardService dashboard.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
		middleware.Logging(logg, httpMetrics),
		middleware.AuditMeta(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	// Redis backs rate limiting and idempotency; without it both are skipped.
	var (
		authLimiter = func(middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler { return passthrough }
		apiLimiter  = passthrough
		idempotent  = passthrough
		readiness   = []controllers.ReadinessCheck{{Name: "database", Ping: dbP.Ping}}
	)
	if redisClient != nil {
		authLimiter = func(policy middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler {
			return middleware.AuthRateLimit(policy, redisClient, logg)
		}
		apiLimiter = middleware.RateLimit(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window, logg)
		idempotent = middleware.Idempotency(redisClient, logg)
		readiness = append(readiness, controllers.ReadinessCheck{Name: "redis", Ping: redisClient.Ping})
	}

	requireAuth := middleware.Auth(cfg.JWT, sessionManager, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, sessionManager, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness...))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(authLimiter(loginPolicy)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(authLimiter(loginPolicy)).Post("/federated", controllers.AuthFederated(authService, logg))
		if cfg.FeatureFlags.PublicRegistering {
			r.With(authLimiter(registerPolicy), idempotent).Post("/register", controllers.AuthRegister(authService, logg))
		}
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))
		r.With(requireAuth).Post("/logout", controllers.AuthLogout(authService, logg))
		r.With(requireAuth, authLimiter(loginPolicy)).Post("/change-password", controllers.AuthChangePassword(authService, logg))
	})

	// Program browsing is public; signed-in staff additionally see inactive programs.
	r.Route("/api/v1/programs", func(r chi.Router) {
		r.With(optionalAuth, apiLimiter).Get("/", controllers.ListPrograms(programsService, logg))
		r.With(requireAuth, apiLimiter, idempotent, middleware.RequirePermission(authz.ProgramManage, logg)).
			Post("/", controllers.CreateProgram(programsService, logg))

		r.Route("/{programId}", func(r chi.Router) {
			r.With(optionalAuth, apiLimiter).Get("/", controllers.GetProgram(programsService, logg))

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, apiLimiter, idempotent)
				r.With(middleware.RequirePermission(authz.ProgramManage, logg)).Patch("/", controllers.UpdateProgram(programsService, logg))
				r.With(middleware.RequirePermission(authz.ProgramDelete, logg)).Delete("/", controllers.DeleteProgram(programsService, logg))
				r.With(middleware.RequirePermission(authz.ProgramManage, logg)).Post("/activate", controllers.ActivateProgram(programsService, logg))
				r.With(middleware.RequirePermission(authz.ProgramManage, logg)).Post("/deactivate", controllers.DeactivateProgram(programsService, logg))
				r.With(middleware.RequirePermission(authz.ProgramManage, logg)).Post("/feature", controllers.FeatureProgram(programsService, logg))
				r.With(middleware.RequirePermission(authz.ProgramManage, logg)).Post("/unfeature", controllers.UnfeatureProgram(programsService, logg))
				r.With(middleware.RequirePermission(authz.ApplicationReadAny, logg)).Get("/statistics", controllers.ProgramStatistics(programsService, logg))
			})
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireAuth, apiLimiter, idempotent)

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", controllers.UsersMe(usersService, logg))
			r.Patch("/", controllers.UsersUpdateMe(usersService, logg))
		})

		r.Route("/applications", func(r chi.Router) {
			r.Post("/", controllers.CreateApplication(applicationsService, logg))
			r.Get("/me", controllers.MyApplications(applicationsService, logg))
			r.With(middleware.RequirePermission(authz.ApplicationReadAny, logg)).Get("/", controllers.ListApplications(applicationsService, logg))
			r.Route("/{applicationId}", func(r chi.Router) {
				r.Get("/", controllers.GetApplication(applicationsService, logg))
				r.Patch("/", controllers.UpdateApplication(applicationsService, logg))
				r.With(middleware.RequirePermission(authz.ApplicationDelete, logg)).Delete("/", controllers.DeleteApplication(applicationsService, logg))
				r.With(middleware.RequirePermission(authz.ApplicationReview, logg)).Post("/approve", controllers.ApproveApplication(applicationsService, logg))
				r.With(middleware.RequirePermission(authz.ApplicationReview, logg)).Post("/reject", controllers.RejectApplication(applicationsService, logg))
				r.Post("/withdraw", controllers.WithdrawApplication(applicationsService, logg))
			})
		})

		r.Route("/beneficiaries", func(r chi.Router) {
			r.With(middleware.RequirePermission(authz.BeneficiaryManage, logg)).Post("/", controllers.CreateBeneficiary(beneficiariesService, logg))
			r.With(middleware.RequirePermission(authz.BeneficiaryRead, logg)).Get("/", controllers.ListBeneficiaries(beneficiariesService, logg))
			r.With(middleware.RequirePermission(authz.BeneficiaryRead, logg)).Get("/statistics", controllers.BeneficiaryStatistics(beneficiariesService, logg))
			r.Route("/{beneficiaryId}", func(r chi.Router) {
				// Owners may read their own enrollment; the service enforces it.
				r.Get("/", controllers.GetBeneficiary(beneficiariesService, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(authz.BeneficiaryManage, logg))
					r.Patch("/", controllers.UpdateBeneficiary(beneficiariesService, logg))
					r.Post("/complete", controllers.CompleteBeneficiary(beneficiariesService, logg))
					r.Post("/suspend", controllers.SuspendBeneficiary(beneficiariesService, logg))
					r.Post("/reactivate", controllers.ReactivateBeneficiary(beneficiariesService, logg))
					r.Post("/notes", controllers.AddBeneficiaryNote(beneficiariesService, logg))
				})
				r.With(middleware.RequirePermission(authz.BeneficiaryDelete, logg)).Delete("/", controllers.DeleteBeneficiary(beneficiariesService, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(authz.DashboardRead, logg))
				r.Get("/stats", controllers.AdminStats(dashboardService, logg))
				r.Get("/applications/pending", controllers.AdminPendingApplications(dashboardService, logg))
				r.Get("/programs/inactive", controllers.AdminInactivePrograms(dashboardService, logg))
				r.Get("/health", controllers.AdminSystemHealth(dashboardService, logg))
			})

			r.Route("/audit-logs", func(r chi.Router) {
				r.Use(middleware.RequirePermission(authz.AuditRead, logg))
				r.Get("/", controllers.AdminAuditLogs(auditService, logg))
				r.Get("/users/{userId}", controllers.AdminUserAuditTrail(auditService, logg))
				r.Get("/{resourceType}/{resourceId}", controllers.AdminResourceAuditTrail(auditService, logg))
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(middleware.RequirePermission(authz.UserRead, logg))
				r.Get("/", controllers.AdminListUsers(usersService, logg))
				r.With(middleware.RequirePermission(authz.DashboardRead, logg)).Get("/recent", controllers.AdminRecentUsers(dashboardService, logg))
				r.With(middleware.RequirePermission(authz.UserCreate, logg)).Post("/", controllers.AdminCreateUser(usersService, logg))
				r.Route("/{userId}", func(r chi.Router) {
					r.Get("/", controllers.AdminGetUser(usersService, logg))
					r.With(middleware.RequirePermission(authz.UserDelete, logg)).Delete("/", controllers.AdminDeleteUser(usersService, logg))
					r.With(middleware.RequirePermission(authz.UserPromote, logg)).Post("/promote", controllers.AdminPromoteUser(usersService, logg))
					r.With(middleware.RequirePermission(authz.UserDemote, logg)).Post("/demote", controllers.AdminDemoteUser(usersService, logg))
					r.With(middleware.RequirePermission(authz.UserActivate, logg)).Post("/activate", controllers.AdminActivateUser(usersService, logg))
					r.With(middleware.RequirePermission(authz.UserDeactivate, logg)).Post("/deactivate", controllers.AdminDeactivateUser(usersService, logg))
				})
			})
		})
	})

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}
