package goAccount

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/MrEthical07/goAccount/jwt"
)

// Config holds every engine setting. Build one with DefaultConfig and
// override fields; Builder.Build validates it.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Account       AccountConfig
	Security      SecurityConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access-token signing and the refresh-token lifetime.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod jwt.SigningMethod // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the per-user refresh-session set.
type SessionConfig struct {
	RedisPrefix string
	// MaxSessionsPerUser caps concurrent refresh sessions; the oldest are
	// evicted on login. Zero means unlimited.
	MaxSessionsPerUser int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters and the accepted length range.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	MaxLength      int
	UpgradeOnLogin bool
}

// PasswordResetConfig controls the one-time reset code lifecycle.
type PasswordResetConfig struct {
	RedisPrefix string
	CodeTTL     time.Duration
	CodeDigits  int
	// MaxAttempts burns the outstanding code after that many wrong guesses
	// at reset time. Zero disables the cap.
	MaxAttempts int
	// RequireCode rejects a reset that omits the code.
	RequireCode bool
	// FailOnDeliveryError turns a mail failure into ErrDeliveryFailed. The
	// code stays issued either way.
	FailOnDeliveryError bool
	MaxRequests         int
	RequestWindow       time.Duration
	MaxVerifyFailures   int
	VerifyWindow        time.Duration
	MailSubject         string
}

// AccountConfig controls registration.
type AccountConfig struct {
	DefaultRole Role
	// AssignableRoles are the roles a caller may pick at self-registration.
	// Engine.Provision ignores the list.
	AssignableRoles []Role
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds login throttling and cookie policy.
type SecurityConfig struct {
	// RedisPrefix namespaces the attempt counters.
	RedisPrefix           string
	ProductionMode        bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	RequireSecureCookies  bool
	SameSitePolicy        http.SameSite
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a development-safe configuration. Signing keys are
// left empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: jwt.MethodEd25519,
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:        "as",
			MaxSessionsPerUser: 10,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      1,
			MaxLength:      1024,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			RedisPrefix:       "arc",
			CodeTTL:           15 * time.Minute,
			CodeDigits:        6,
			MaxAttempts:       5,
			RequireCode:       true,
			MaxRequests:       3,
			RequestWindow:     15 * time.Minute,
			MaxVerifyFailures: 10,
			VerifyWindow:      15 * time.Minute,
			MailSubject:       "Your password reset code",
		},
		Account: AccountConfig{
			DefaultRole:     RoleUnset,
			AssignableRoles: []Role{RoleUnset, RoleDeveloper, RoleProjectManager, RoleTeamLead},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			RedisPrefix:           "arl",
			ProductionMode:        false,
			EnableIPThrottle:      true,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			RequireSecureCookies:  true,
			SameSitePolicy:        http.SameSiteStrictMode,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Account.AssignableRoles = slices.Clone(cfg.Account.AssignableRoles)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first setting the engine cannot run with.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.SigningMethod != jwt.MethodEd25519 && c.JWT.SigningMethod != jwt.MethodHS256 {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == jwt.MethodEd25519 && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == jwt.MethodEd25519 && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == jwt.MethodHS256 && len(c.JWT.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.MaxSessionsPerUser < 0 {
		return errors.New("Session MaxSessionsPerUser must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 0 {
		return errors.New("Password MinLength must be >= 0")
	}
	if c.Password.MaxLength > 0 && c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Password Reset
	if c.PasswordReset.RedisPrefix == "" {
		return errors.New("PasswordReset RedisPrefix must not be empty")
	}
	if c.PasswordReset.RedisPrefix == c.Session.RedisPrefix {
		return errors.New("PasswordReset RedisPrefix must differ from Session RedisPrefix")
	}
	if c.PasswordReset.CodeTTL <= 0 {
		return errors.New("PasswordReset CodeTTL must be > 0")
	}
	if c.PasswordReset.CodeDigits < 4 || c.PasswordReset.CodeDigits > 10 {
		return errors.New("PasswordReset CodeDigits must be between 4 and 10")
	}
	if c.PasswordReset.MaxAttempts < 0 {
		return errors.New("PasswordReset MaxAttempts must be >= 0")
	}
	if c.PasswordReset.MaxRequests < 0 || c.PasswordReset.MaxVerifyFailures < 0 {
		return errors.New("PasswordReset limits must be >= 0")
	}
	if c.PasswordReset.MaxRequests > 0 && c.PasswordReset.RequestWindow <= 0 {
		return errors.New("PasswordReset RequestWindow must be > 0 when MaxRequests is set")
	}
	if c.PasswordReset.MaxVerifyFailures > 0 && c.PasswordReset.VerifyWindow <= 0 {
		return errors.New("PasswordReset VerifyWindow must be > 0 when MaxVerifyFailures is set")
	}

	// Account
	if int(c.Account.DefaultRole) >= len(roleNames) {
		return errors.New("Account DefaultRole is invalid")
	}
	for _, r := range c.Account.AssignableRoles {
		if int(r) >= len(roleNames) {
			return errors.New("Account AssignableRoles holds an invalid role")
		}
	}
	if !slices.Contains(c.Account.AssignableRoles, c.Account.DefaultRole) {
		return errors.New("Account DefaultRole must be one of AssignableRoles")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Security
	if c.Security.RedisPrefix == "" {
		return errors.New("Security RedisPrefix must not be empty")
	}
	if c.Security.RedisPrefix == c.Session.RedisPrefix || c.Security.RedisPrefix == c.PasswordReset.RedisPrefix {
		return errors.New("Security RedisPrefix must differ from the session and reset prefixes")
	}
	if c.Security.MaxLoginAttempts < 0 {
		return errors.New("MaxLoginAttempts must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("LoginCooldownDuration must be > 0")
	}
	if c.Security.ProductionMode && !c.Security.RequireSecureCookies {
		return errors.New("ProductionMode requires RequireSecureCookies")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintSeverity ranks a lint warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is a valid but questionable setting.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins every warning at or above min into one error, or nil.
func (ws LintWarnings) AsError(min LintSeverity) error {
	var errs []error
	for _, w := range ws.BySeverity(min) {
		errs = append(errs, fmt.Errorf("%s [%s]: %s", w.Code, w.Severity, w.Message))
	}
	return errors.Join(errs...)
}

// Lint reports settings that pass Validate but weaken the deployment.
func (c Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintWarn, "JWT Leeway above 1m widens the window for expired access tokens")
	}
	if c.JWT.AccessTTL > time.Hour {
		add("access_ttl_long", LintWarn, "access tokens cannot be revoked before expiry")
	}
	if c.JWT.RefreshTTL > 30*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "RefreshTTL above 30 days")
	}
	if c.JWT.SigningMethod == jwt.MethodHS256 {
		add("signing_hs256", LintInfo, "hs256 shares the signing secret with every verifier")
	}
	if c.Security.MaxLoginAttempts == 0 && c.PasswordReset.MaxRequests == 0 && c.PasswordReset.MaxVerifyFailures == 0 {
		add("rate_limits_disabled", LintHigh, "all attempt limits are disabled")
	}
	if c.Security.MaxLoginAttempts > 0 && !c.Security.EnableIPThrottle {
		add("ip_throttle_disabled", LintInfo, "login throttling is per identifier only")
	}
	if c.Session.MaxSessionsPerUser == 0 {
		add("sessions_unbounded", LintInfo, "MaxSessionsPerUser is unlimited")
	}
	if !c.PasswordReset.RequireCode {
		add("reset_code_optional", LintHigh, "password reset accepted without a code")
	}
	if c.PasswordReset.MaxAttempts == 0 {
		add("reset_attempts_unbounded", LintWarn, "reset codes are never burned by wrong guesses")
	}
	if c.PasswordReset.CodeTTL > time.Hour {
		add("reset_code_ttl_long", LintWarn, "reset codes live longer than an hour")
	}
	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn, "argon2 memory below 64 MB")
	}
	if c.Password.MinLength < 8 {
		add("password_min_short", LintInfo, "Password MinLength below 8")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "audit events are not recorded")
	}
	if slices.Contains(c.Account.AssignableRoles, RoleAdmin) {
		add("admin_self_assignable", LintHigh, "anyone can register as admin")
	}
	if !c.Security.RequireSecureCookies {
		add("insecure_cookies", LintWarn, "cookies are sent without the Secure attribute")
	}
	return ws
}
