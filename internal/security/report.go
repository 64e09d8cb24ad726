package security

import "time"

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

type Report struct {
	ProductionMode        bool
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	Argon2                PasswordReport
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

type ReportInput struct {
	ProductionMode         bool
	SigningAlgorithm       string
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	Password               PasswordReport
	UpgradeOnLogin         bool
	MaxSessionsPerUser     int
	MaxLoginAttempts       int
	LoginCooldownDuration  time.Duration
	ResetCodeTTL           time.Duration
	ResetRequireCode       bool
	ResetMaxAttempts       int
	ResetMaxRequests       int
	ResetRequestWindow     time.Duration
	ResetMaxVerifyFailures int
	ResetVerifyWindow      time.Duration
	SecureCookies          bool
	AuditEnabled           bool
}

// BuildReport derives the posture flags. A limiter counts as active only
// when both its budget and its window are set.
func BuildReport(input ReportInput) Report {
	loginThrottle := input.MaxLoginAttempts > 0 &&
		input.LoginCooldownDuration > 0

	resetThrottle := (input.ResetMaxRequests > 0 && input.ResetRequestWindow > 0) ||
		(input.ResetMaxVerifyFailures > 0 && input.ResetVerifyWindow > 0)

	return Report{
		ProductionMode:        input.ProductionMode,
		SigningAlgorithm:      input.SigningAlgorithm,
		AccessTTL:             input.AccessTTL,
		RefreshTTL:            input.RefreshTTL,
		Argon2:                input.Password,
		LegacyRehashOnLogin:   input.UpgradeOnLogin,
		SessionCapActive:      input.MaxSessionsPerUser > 0,
		MaxSessionsPerUser:    input.MaxSessionsPerUser,
		LoginThrottleActive:   loginThrottle,
		ResetCodeTTL:          input.ResetCodeTTL,
		ResetCodeRequired:     input.ResetRequireCode,
		ResetAttemptCapActive: input.ResetMaxAttempts > 0,
		ResetThrottleActive:   resetThrottle,
		SecureCookies:         input.SecureCookies,
		AuditEnabled:          input.AuditEnabled,
	}
}
