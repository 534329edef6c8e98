package accounts

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// Config carries every knob the package needs, loaded from the environment.
type Config struct {
	DSN string `env:"ACCOUNTS_DSN" envDefault:"file::memory:?cache=shared"`

	UserAccessSecret   string `env:"ACCOUNTS_USER_ACCESS_SECRET"`
	UserRefreshSecret  string `env:"ACCOUNTS_USER_REFRESH_SECRET"`
	AdminAccessSecret  string `env:"ACCOUNTS_ADMIN_ACCESS_SECRET"`
	AdminRefreshSecret string `env:"ACCOUNTS_ADMIN_REFRESH_SECRET"`
	ConfirmSecret      string `env:"ACCOUNTS_CONFIRM_SECRET"`

	AccessTTL  time.Duration `env:"ACCOUNTS_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"ACCOUNTS_REFRESH_TTL" envDefault:"168h"`
	ConfirmTTL time.Duration `env:"ACCOUNTS_CONFIRM_TTL" envDefault:"3m"`
	OTPTTL     time.Duration `env:"ACCOUNTS_OTP_TTL" envDefault:"10m"`

	BcryptCost int `env:"ACCOUNTS_BCRYPT_COST" envDefault:"12"`

	// PhoneCipherKey must be exactly 32 bytes.
	PhoneCipherKey string `env:"ACCOUNTS_PHONE_CIPHER_KEY"`
	PhoneRegion    string `env:"ACCOUNTS_PHONE_REGION" envDefault:"US"`

	Issuer     string `env:"ACCOUNTS_TOKEN_ISSUER" envDefault:"veilnote"`
	ConfirmURL string `env:"ACCOUNTS_CONFIRM_URL"`

	OutboxBufferSize int `env:"ACCOUNTS_OUTBOX_BUFFER" envDefault:"64"`

	GoogleClientID string `env:"ACCOUNTS_GOOGLE_CLIENT_ID"`

	S3Bucket    string `env:"ACCOUNTS_S3_BUCKET"`
	S3Region    string `env:"ACCOUNTS_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"ACCOUNTS_S3_ENDPOINT"`
	S3AccessKey string `env:"ACCOUNTS_S3_ACCESS_KEY"`
	S3SecretKey string `env:"ACCOUNTS_S3_SECRET_KEY"`
	S3PublicURL string `env:"ACCOUNTS_S3_PUBLIC_URL"`
}

// LoadConfig reads the environment and validates the result.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that would break token or PII handling.
func (c *Config) Validate() error {
	missing := []string{}
	for name, val := range map[string]string{
		"ACCOUNTS_USER_ACCESS_SECRET":   c.UserAccessSecret,
		"ACCOUNTS_USER_REFRESH_SECRET":  c.UserRefreshSecret,
		"ACCOUNTS_ADMIN_ACCESS_SECRET":  c.AdminAccessSecret,
		"ACCOUNTS_ADMIN_REFRESH_SECRET": c.AdminRefreshSecret,
		"ACCOUNTS_CONFIRM_SECRET":       c.ConfirmSecret,
	} {
		if val == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return goerrors.New("missing required secrets", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"missing": missing})
	}

	if c.PhoneCipherKey != "" && len(c.PhoneCipherKey) != 32 {
		return goerrors.New("ACCOUNTS_PHONE_CIPHER_KEY must be 32 bytes", goerrors.CategoryInternal)
	}

	return nil
}

// SecretPairs maps each role to its access/refresh secret pair.
func (c *Config) SecretPairs() map[AccountRole]SecretPair {
	return map[AccountRole]SecretPair{
		RoleUser: {
			Access:  []byte(c.UserAccessSecret),
			Refresh: []byte(c.UserRefreshSecret),
		},
		RoleAdmin: {
			Access:  []byte(c.AdminAccessSecret),
			Refresh: []byte(c.AdminRefreshSecret),
		},
	}
}
