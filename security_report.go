package goAccount

import (
	"time"

	internalsecurity "github.com/MrEthical07/goAccount/internal/security"
)

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport struct {
	ProductionMode        bool
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	Argon2                PasswordConfigReport
	LegacyRehashOnLogin   bool
	SessionCapActive      bool
	MaxSessionsPerUser    int
	LoginThrottleActive   bool
	ResetCodeTTL          time.Duration
	ResetCodeRequired     bool
	ResetAttemptCapActive bool
	ResetThrottleActive   bool
	SecureCookies         bool
	AuditEnabled          bool
}

// PasswordConfigReport contains the argon2id parameters active in the engine.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	r := internalsecurity.BuildReport(internalsecurity.ReportInput{
		ProductionMode:   cfg.Security.ProductionMode,
		SigningAlgorithm: string(cfg.JWT.SigningMethod),
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.JWT.RefreshTTL,
		Password: internalsecurity.PasswordReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
			MinLength:   cfg.Password.MinLength,
		},
		UpgradeOnLogin:         cfg.Password.UpgradeOnLogin,
		MaxSessionsPerUser:     cfg.Session.MaxSessionsPerUser,
		MaxLoginAttempts:       cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration:  cfg.Security.LoginCooldownDuration,
		ResetCodeTTL:           cfg.PasswordReset.CodeTTL,
		ResetRequireCode:       cfg.PasswordReset.RequireCode,
		ResetMaxAttempts:       cfg.PasswordReset.MaxAttempts,
		ResetMaxRequests:       cfg.PasswordReset.MaxRequests,
		ResetRequestWindow:     cfg.PasswordReset.RequestWindow,
		ResetMaxVerifyFailures: cfg.PasswordReset.MaxVerifyFailures,
		ResetVerifyWindow:      cfg.PasswordReset.VerifyWindow,
		SecureCookies:          cfg.Security.RequireSecureCookies,
		AuditEnabled:           cfg.Audit.Enabled,
	})

	return SecurityReport{
		ProductionMode:   r.ProductionMode,
		SigningAlgorithm: r.SigningAlgorithm,
		AccessTTL:        r.AccessTTL,
		RefreshTTL:       r.RefreshTTL,
		Argon2: PasswordConfigReport{
			Memory:      r.Argon2.Memory,
			Time:        r.Argon2.Time,
			Parallelism: r.Argon2.Parallelism,
			SaltLength:  r.Argon2.SaltLength,
			KeyLength:   r.Argon2.KeyLength,
			MinLength:   r.Argon2.MinLength,
		},
		LegacyRehashOnLogin:   r.LegacyRehashOnLogin,
		SessionCapActive:      r.SessionCapActive,
		MaxSessionsPerUser:    r.MaxSessionsPerUser,
		LoginThrottleActive:   r.LoginThrottleActive,
		ResetCodeTTL:          r.ResetCodeTTL,
		ResetCodeRequired:     r.ResetCodeRequired,
		ResetAttemptCapActive: r.ResetAttemptCapActive,
		ResetThrottleActive:   r.ResetThrottleActive,
		SecureCookies:         r.SecureCookies,
		AuditEnabled:          r.AuditEnabled,
	}
}
