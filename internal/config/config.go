// Package config loads the server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// DefaultJWTSecret is only accepted outside production.
const DefaultJWTSecret = "your_jwt_secret"

// Config holds runtime settings for the server.
type Config struct {
	Port     string `env:"PORT,default=3000"`
	Env      string `env:"APP_ENV,default=development"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
	// json or text
	LogFormat string `env:"LOG_FORMAT,default=json"`
	StaticDir string `env:"STATIC_DIR,default=public"`

	MongoURI string `env:"MONGO_URI,required"`
	MongoDB  string `env:"MONGO_DB,default=social_db"`

	JWTSecret    string        `env:"JWT_SECRET,default=your_jwt_secret"`
	JWTKeys      string        `env:"JWT_KEYS"` // kid:secret,kid2:secret2
	JWTActiveKid string        `env:"JWT_ACTIVE_KID"`
	TokenTTL     time.Duration `env:"TOKEN_TTL,default=1h"`

	RateLimitMax    int           `env:"RATE_LIMIT_MAX,default=100"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW,default=15m"`
	ChatRate        float64       `env:"CHAT_RATE,default=5"` // chat messages per second per connection
	ChatBurst       int           `env:"CHAT_BURST,default=10"`

	// gridfs or s3
	MediaBackend string `env:"MEDIA_BACKEND,default=gridfs"`
	GridFSBucket string `env:"GRIDFS_BUCKET,default=uploads"`
	S3Bucket     string `env:"S3_BUCKET"`
	S3Region     string `env:"S3_REGION,default=us-east-1"`
	S3Endpoint   string `env:"S3_ENDPOINT"`
	S3AccessKey  string `env:"S3_ACCESS_KEY"`
	S3SecretKey  string `env:"S3_SECRET_KEY"`

	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL,default=chat-messages"`

	SentryDSN  string `env:"SENTRY_DSN"`
	HealthAddr string `env:"HEALTH_ADDR,default=:50051"`
}

// Load reads the given .env files (".env" when none are named; missing files
// are ignored), decodes the environment and validates the result.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool { return c.Env == "production" }

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return errors.New("MONGO_URI must be set")
	}
	if c.JWTKeys != "" && c.JWTActiveKid == "" {
		return errors.New("JWT_ACTIVE_KID must be set when JWT_KEYS is used")
	}
	if c.Production() && c.JWTKeys == "" && (c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret) {
		return errors.New("JWT_SECRET or JWT_KEYS must be set in production")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	switch c.MediaBackend {
	case "gridfs":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET must be set when MEDIA_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown MEDIA_BACKEND %q", c.MediaBackend)
	}
	return nil
}
