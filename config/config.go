package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		// RequestsPerSecond caps requests per client IP, zero disables the limiter.
		RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
		Timeouts          struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	// Worker is the commission worker's own HTTP listener (health and push).
	Worker struct {
		Port int `json:"port" yaml:"port"`
	} `json:"worker" yaml:"worker"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	SecretKey struct {
		Access  string `json:"access" yaml:"access"`
		Refresh string `json:"refresh" yaml:"refresh"`
	} `json:"secretKey" yaml:"secretKey"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	PasswordStrength *PasswordStrengthConfig `json:"passwordStrength" yaml:"passwordStrength"`

	// Referral configures the referral tree and commission rates
	Referral *ReferralConfig `json:"referral" yaml:"referral"`

	// Points configures point rewards outside of commissions
	Points *PointsConfig `json:"points" yaml:"points"`

	// OTP configures mobile verification codes
	OTP *OTPConfig `json:"otp" yaml:"otp"`

	// Queue configures the commission job pipeline
	Queue *QueueConfig `json:"queue" yaml:"queue"`

	// Redis connection used by the redis queue provider
	Redis *RedisConfig `json:"redis" yaml:"redis"`

	// PubSub configuration for the google and local queue providers
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	// Presentation configures how dates and numbers are rendered
	Presentation *PresentationConfig `json:"presentation" yaml:"presentation"`

	// QRCode configuration for referral invite QR codes
	QRCode *QRCodeConfig `json:"qrcode" yaml:"qrcode"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	BcryptCost      int           `json:"bcryptCost" yaml:"bcryptCost"`
	AccessTokenTTL  time.Duration `json:"accessTokenTTL" yaml:"accessTokenTTL"`
	RefreshTokenTTL time.Duration `json:"refreshTokenTTL" yaml:"refreshTokenTTL"`
}

// PasswordStrengthConfig defines password strength requirements
type PasswordStrengthConfig struct {
	MinLength        int  `json:"minLength" yaml:"minLength"`
	RequireUppercase bool `json:"requireUppercase" yaml:"requireUppercase"`
	RequireLowercase bool `json:"requireLowercase" yaml:"requireLowercase"`
	RequireNumbers   bool `json:"requireNumbers" yaml:"requireNumbers"`
	RequireSpecial   bool `json:"requireSpecial" yaml:"requireSpecial"`
	MaxLength        int  `json:"maxLength" yaml:"maxLength"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// ReferralConfig defines the depth cap and the per-level commission rates
type ReferralConfig struct {
	// MaxDepth is the deepest ancestor level stored for a user (1 = direct referrer only)
	MaxDepth int `json:"maxDepth" yaml:"maxDepth"`

	// Rates lists the fraction of the base amount paid per level, e.g. 0.05 for 5%
	Rates []LevelRateConfig `json:"rates" yaml:"rates"`
}

// LevelRateConfig is one row of the commission rate table
type LevelRateConfig struct {
	Level int     `json:"level" yaml:"level"`
	Rate  float64 `json:"rate" yaml:"rate"`
}

// PointsConfig defines point rewards
type PointsConfig struct {
	// SignupBonus is credited once the mobile number is verified
	SignupBonus int64 `json:"signupBonus" yaml:"signupBonus"`
}

// OTPConfig defines mobile verification code settings
type OTPConfig struct {
	Issuer string        `json:"issuer" yaml:"issuer"`
	Period time.Duration `json:"period" yaml:"period"`
	Digits int           `json:"digits" yaml:"digits"`
	// Skew is the number of periods accepted before and after the current one
	Skew uint `json:"skew" yaml:"skew"`
}

// QueueConfig defines the commission job pipeline
type QueueConfig struct {
	// Provider type: "redis", "google", "local" or "noop"
	Provider string `json:"provider" yaml:"provider"`

	// Name of the queue carrying commission jobs
	Name string `json:"name" yaml:"name"`

	// MaxRetries is the number of retries after the first attempt before a job is
	// dead-lettered. Zero dead-letters on the first failure; unset means the default.
	MaxRetries *int `json:"maxRetries" yaml:"maxRetries"`

	// BaseBackoff is the delay before the first retry, doubled on every further attempt
	BaseBackoff time.Duration `json:"baseBackoff" yaml:"baseBackoff"`

	// MaxBackoff caps the retry delay
	MaxBackoff time.Duration `json:"maxBackoff" yaml:"maxBackoff"`

	// JobTTL is how long job state is kept in redis
	JobTTL time.Duration `json:"jobTTL" yaml:"jobTTL"`

	// VisibilityTimeout is how long a received job may stay unsettled before
	// it is handed out again
	VisibilityTimeout time.Duration `json:"visibilityTimeout" yaml:"visibilityTimeout"`

	// Workers is the number of concurrent consumers
	Workers int `json:"workers" yaml:"workers"`

	// JobsPerSecond throttles the consumers, zero disables throttling
	JobsPerSecond float64 `json:"jobsPerSecond" yaml:"jobsPerSecond"`

	// PollTimeout bounds a single blocking dequeue
	PollTimeout time.Duration `json:"pollTimeout" yaml:"pollTimeout"`

	// PromoteInterval is how often due delayed jobs are moved back to the ready list
	PromoteInterval time.Duration `json:"promoteInterval" yaml:"promoteInterval"`
}

// RedisConfig defines the redis connection
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`

	// PushAudience is the expected audience of push OIDC tokens
	PushAudience string `json:"pushAudience" yaml:"pushAudience"`

	// MaxDeliveryAttempts dead-letters a pushed job once Pub/Sub reports this many attempts
	MaxDeliveryAttempts int `json:"maxDeliveryAttempts" yaml:"maxDeliveryAttempts"`
}

// PresentationConfig defines display formatting
type PresentationConfig struct {
	TimeZone   string `json:"timeZone" yaml:"timeZone"`
	DateLayout string `json:"dateLayout" yaml:"dateLayout"`
}

// QRCodeConfig defines QR code generation configuration
type QRCodeConfig struct {
	Size                 int    `json:"size" yaml:"size"`
	ErrorCorrectionLevel string `json:"errorCorrectionLevel" yaml:"errorCorrectionLevel"`
	BaseURL              string `json:"baseUrl" yaml:"baseUrl"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if cfg.Postgres != nil {
		// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
