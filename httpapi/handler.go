package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/middleware"
)

// Service is the engine surface the transport needs. *goAccount.Engine
// implements it.
type Service interface {
	Register(ctx context.Context, in goAccount.RegisterInput) (goAccount.UserView, error)
	Login(ctx context.Context, identifier, password string) (goAccount.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (goAccount.RefreshResult, error)
	Logout(ctx context.Context, userID string) error
	ActiveSessionCount(ctx context.Context, userID string) (int, error)
	ListSessions(ctx context.Context, userID string) ([]goAccount.SessionInfo, error)
	ValidateAccess(ctx context.Context, accessToken string) (*goAccount.AuthResult, error)
	RequestResetCode(ctx context.Context, email string) (goAccount.ResetRequestResult, error)
	VerifyResetCode(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

// Options configures Handler. Zero values are usable except Logger, which
// defaults to slog.Default.
type Options struct {
	Logger *slog.Logger
	// SecureCookies sets the Secure flag. Disable only for plain-HTTP local runs.
	SecureCookies bool
	SameSite      http.SameSite
	// RateLimiter throttles every route per client IP; nil disables it.
	RateLimiter *middleware.IPRateLimiter
	// Proxies lists the reverse proxies whose forwarding headers are
	// believed. Nil means the client is always RemoteAddr.
	Proxies *middleware.ProxyResolver
	// Metrics is served at GET /metrics when set.
	Metrics http.Handler
	// Health is called by GET /healthz when set.
	Health func(ctx context.Context) error
	// MaxBodyBytes bounds request bodies; zero means 1 MiB.
	MaxBodyBytes int64
}

// Handler serves the account API.
type Handler struct {
	svc     Service
	opts    Options
	logger  *slog.Logger
	cookies cookieConfig
	now     func() time.Time
}

func New(svc Service, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		svc:     svc,
		opts:    opts,
		logger:  opts.Logger,
		cookies: cookieConfig{secure: opts.SecureCookies, sameSite: opts.SameSite},
		now:     time.Now,
	}
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.logger, err)
}

// Routes returns the mux wrapped in recovery, client context, request
// logging and the per-IP limiter, outermost first.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	guard := middleware.Guard(h.svc, h.reject)
	active := middleware.RequireActiveSession(h.svc, h.reject)
	admin := middleware.RequireRole(h.reject, goAccount.RoleAdmin)

	mux.HandleFunc("POST /api/v1/users/register", h.register)
	mux.HandleFunc("POST /api/v1/users/login", h.login)
	mux.HandleFunc("POST /api/v1/users/refresh-token", h.refresh)
	mux.Handle("POST /api/v1/users/logout", guard(http.HandlerFunc(h.logout)))
	mux.Handle("GET /api/v1/users/me", guard(active(http.HandlerFunc(h.me))))
	mux.HandleFunc("POST /api/v1/users/forgot-password", h.forgotPassword)
	mux.HandleFunc("POST /api/v1/users/verify-code", h.verifyCode)
	mux.HandleFunc("POST /api/v1/users/reset-password", h.resetPassword)

	mux.Handle("GET /api/v1/admin/users/{userId}/sessions", guard(active(admin(http.HandlerFunc(h.adminSessions)))))
	mux.Handle("DELETE /api/v1/admin/users/{userId}/sessions", guard(active(admin(http.HandlerFunc(h.adminRevoke)))))

	mux.HandleFunc("GET /healthz", h.healthz)
	if h.opts.Metrics != nil {
		mux.Handle("GET /metrics", h.opts.Metrics)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, nil, "route not found")
	})

	var handler http.Handler = mux
	if h.opts.RateLimiter != nil {
		handler = middleware.RateLimit(h.opts.RateLimiter, h.logger)(handler)
	}
	handler = middleware.RequestLogger(h.logger, "/healthz", "/metrics")(handler)
	handler = middleware.ClientContext(h.opts.Proxies)(handler)
	return middleware.Recover(h.logger)(handler)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.opts.Health != nil {
		if err := h.opts.Health(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, nil, "unhealthy")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "ok")
}
