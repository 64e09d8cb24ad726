package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/httpapi"
	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/middleware"
)

// settings is the daemon configuration. Keys in the TOML file match field
// names case-insensitively, so [account.jwt] AccessTTL = "15m" works.
type settings struct {
	Server    serverSettings
	Redis     redisSettings
	Directory directorySettings
	Mail      mailSettings
	Bootstrap bootstrapSettings
	Account   goAccount.Config
}

type serverSettings struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// SameSite overrides Account.Security.SameSitePolicy: lax, strict or none.
	SameSite       string
	RateLimitRPS   float64
	RateLimitBurst int
	LogLevel       string
	LogFormat      string
	// AuditLog forwards audit events to the service log.
	AuditLog bool
	// TrustedProxies are CIDRs or addresses whose X-Forwarded-For is
	// believed. Empty means clients are identified by the socket peer.
	TrustedProxies []string
}

type redisSettings struct {
	Addr     string
	Password string
	DB       int
	// Embedded starts an in-process miniredis. Development only.
	Embedded bool
}

type directorySettings struct {
	Driver string // memory or postgres
	DSN    string
}

type mailSettings struct {
	Driver   string // log or smtp
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	// LogBody makes the log driver print message bodies, codes included.
	LogBody bool
}

// bootstrapSettings provisions an admin at startup. The password only comes
// from ACCOUNTD_ADMIN_PASSWORD.
type bootstrapSettings struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string `toml:"-"`
}

func (b bootstrapSettings) enabled() bool {
	return b.AdminUsername != "" || b.AdminEmail != ""
}

func defaultSettings() settings {
	return settings{
		Server: serverSettings{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
			LogLevel:        "info",
			LogFormat:       "json",
		},
		Redis: redisSettings{
			Addr: "localhost:6379",
		},
		Directory: directorySettings{
			Driver: "memory",
		},
		Mail: mailSettings{
			Driver:  "log",
			Port:    587,
			Timeout: 10 * time.Second,
		},
		Account: goAccount.DefaultConfig(),
	}
}

// options collects command-line values. Only flags that were set override
// the file.
type options struct {
	configPath string
	devKeys    bool
	values     map[string]string
	fs         *flag.FlagSet
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("accountd", flag.ContinueOnError)
	o := &options{fs: fs, values: make(map[string]string)}

	fs.StringVar(&o.configPath, "config", "", "path to a TOML config file")
	fs.BoolVar(&o.devKeys, "dev-keys", false, "generate an ephemeral ed25519 signing key (tokens do not survive restarts)")
	fs.String("addr", "", "listen address")
	fs.String("redis-addr", "", "redis address")
	fs.Bool("embedded-redis", false, "run an in-process miniredis instead of connecting to redis")
	fs.String("directory", "", "user directory driver: memory or postgres")
	fs.String("database-dsn", "", "postgres DSN (prefer ACCOUNTD_DATABASE_DSN)")
	fs.String("mail", "", "mail driver: log or smtp")
	fs.Bool("insecure-cookies", false, "drop the Secure cookie flag for plain-HTTP local runs")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("log-format", "", "json or text")
	fs.String("trusted-proxies", "", "comma-separated CIDRs or addresses of reverse proxies whose X-Forwarded-For is trusted")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		o.values[f.Name] = f.Value.String()
	})
	return o, nil
}

// loadSettings applies defaults, the optional TOML file, flags and then
// secrets from the environment, in that order.
func loadSettings(o *options, getenv func(string) string) (settings, error) {
	s := defaultSettings()

	if o.configPath != "" {
		md, err := toml.DecodeFile(o.configPath, &s)
		if err != nil {
			return settings{}, fmt.Errorf("decode %s: %w", o.configPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return settings{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
		}
	}

	for name, v := range o.values {
		switch name {
		case "addr":
			s.Server.Addr = v
		case "redis-addr":
			s.Redis.Addr = v
		case "embedded-redis":
			s.Redis.Embedded = v == "true"
		case "directory":
			s.Directory.Driver = v
		case "database-dsn":
			s.Directory.DSN = v
		case "mail":
			s.Mail.Driver = v
		case "insecure-cookies":
			if v == "true" {
				s.Account.Security.RequireSecureCookies = false
			}
		case "log-level":
			s.Server.LogLevel = v
		case "log-format":
			s.Server.LogFormat = v
		case "trusted-proxies":
			s.Server.TrustedProxies = nil
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					s.Server.TrustedProxies = append(s.Server.TrustedProxies, p)
				}
			}
		}
	}

	if err := applyEnv(&s, getenv); err != nil {
		return settings{}, err
	}

	if s.Server.SameSite != "" {
		mode, ok := httpapi.ParseSameSite(s.Server.SameSite)
		if !ok {
			return settings{}, fmt.Errorf("invalid server.samesite %q", s.Server.SameSite)
		}
		s.Account.Security.SameSitePolicy = mode
	}

	if len(s.Account.JWT.PrivateKey) == 0 && o.devKeys {
		if err := generateDevKeys(&s.Account); err != nil {
			return settings{}, err
		}
	}

	if err := s.validate(); err != nil {
		return settings{}, err
	}
	return s, nil
}

// applyEnv reads secrets, which never come from flags.
//
//	ACCOUNTD_JWT_PRIVATE_KEY       hs256 secret or ed25519 PEM
//	ACCOUNTD_JWT_PRIVATE_KEY_FILE  same, read from a file
//	ACCOUNTD_JWT_PUBLIC_KEY_FILE   ed25519 public PEM
//	ACCOUNTD_DATABASE_DSN
//	ACCOUNTD_REDIS_PASSWORD
//	ACCOUNTD_SMTP_PASSWORD
//	ACCOUNTD_ADMIN_PASSWORD        bootstrap admin password
func applyEnv(s *settings, getenv func(string) string) error {
	if v := getenv("ACCOUNTD_JWT_PRIVATE_KEY"); v != "" {
		s.Account.JWT.PrivateKey = []byte(v)
	}
	if path := getenv("ACCOUNTD_JWT_PRIVATE_KEY_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read private key: %w", err)
		}
		s.Account.JWT.PrivateKey = raw
	}
	if path := getenv("ACCOUNTD_JWT_PUBLIC_KEY_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read public key: %w", err)
		}
		s.Account.JWT.PublicKey = raw
	}
	if v := getenv("ACCOUNTD_DATABASE_DSN"); v != "" {
		s.Directory.DSN = v
	}
	if v := getenv("ACCOUNTD_REDIS_PASSWORD"); v != "" {
		s.Redis.Password = v
	}
	if v := getenv("ACCOUNTD_SMTP_PASSWORD"); v != "" {
		s.Mail.Password = v
	}
	if v := getenv("ACCOUNTD_ADMIN_PASSWORD"); v != "" {
		s.Bootstrap.AdminPassword = v
	}
	return nil
}

func generateDevKeys(cfg *goAccount.Config) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate dev keys: %w", err)
	}
	cfg.JWT.SigningMethod = jwt.MethodEd25519
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	return nil
}

func (s settings) validate() error {
	var errs []error
	if s.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if s.Server.RateLimitRPS < 0 || s.Server.RateLimitBurst < 0 {
		errs = append(errs, errors.New("server rate limit must be >= 0"))
	}
	switch s.Directory.Driver {
	case "memory":
	case "postgres":
		if s.Directory.DSN == "" {
			errs = append(errs, errors.New("postgres directory needs a DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown directory driver %q", s.Directory.Driver))
	}
	switch s.Mail.Driver {
	case "log":
	case "smtp":
		if s.Mail.Host == "" || s.Mail.From == "" {
			errs = append(errs, errors.New("smtp mail needs host and from"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail driver %q", s.Mail.Driver))
	}
	if _, err := middleware.NewProxyResolver(s.Server.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("server.trustedproxies: %w", err))
	}
	if s.Bootstrap.enabled() {
		if s.Bootstrap.AdminUsername == "" || s.Bootstrap.AdminEmail == "" || s.Bootstrap.AdminPassword == "" {
			errs = append(errs, errors.New("bootstrap admin needs username, email and ACCOUNTD_ADMIN_PASSWORD"))
		}
	}
	if !s.Redis.Embedded && s.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required unless redis.embedded is set"))
	}
	if err := s.Account.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("account: %w", err))
	}
	return errors.Join(errs...)
}
