package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Env  string
	Port int

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret           string
	JWTVerifyTTLMinutes int
	JWTSessionTTLDays   int

	OTPTTLMinutes    int
	OTPMaxAttempts   int
	PINBcryptCost    int
	PINMaxFailures   int
	PINLockoutMinute int
	SendOTPPerMinute int

	CORSOrigins  []string
	MaxBodyBytes int64

	AdminMobile string
	AdminPIN    string
	AdminName   string

	OTelEndpoint string
}

func Load() Config {
	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		MongoURI: os.Getenv("MONGO_URI"),
		MongoDB:  getEnv("MONGO_DB", "casehub"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:           getEnv("JWT_SECRET", defaultJWTSecret),
		JWTVerifyTTLMinutes: getEnvInt("JWT_VERIFY_TTL_MINUTES", 15),
		JWTSessionTTLDays:   getEnvInt("JWT_SESSION_TTL_DAYS", 7),

		OTPTTLMinutes:    getEnvInt("OTP_TTL_MINUTES", 10),
		OTPMaxAttempts:   getEnvInt("OTP_MAX_ATTEMPTS", 5),
		PINBcryptCost:    getEnvInt("PIN_BCRYPT_COST", 12),
		PINMaxFailures:   getEnvInt("PIN_MAX_FAILURES", 5),
		PINLockoutMinute: getEnvInt("PIN_LOCKOUT_MINUTES", 15),
		SendOTPPerMinute: getEnvInt("SEND_OTP_PER_MINUTE", 3),

		CORSOrigins:  splitList(os.Getenv("CORS_ORIGINS")),
		MaxBodyBytes: int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),

		AdminMobile: os.Getenv("ADMIN_MOBILE"),
		AdminPIN:    os.Getenv("ADMIN_PIN"),
		AdminName:   getEnv("ADMIN_NAME", "Administrator"),

		OTelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

// Validate catches settings that would make the service unsafe to run.
func (c Config) Validate() error {
	if c.IsProd() && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		return errors.New("JWT_SECRET must be set in prod")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.OTPTTLMinutes <= 0 || c.JWTVerifyTTLMinutes <= 0 || c.JWTSessionTTLDays <= 0 {
		return errors.New("token and otp lifetimes must be positive")
	}
	return nil
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func (c Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLMinutes) * time.Minute
}

func (c Config) VerifyTokenTTL() time.Duration {
	return time.Duration(c.JWTVerifyTTLMinutes) * time.Minute
}

func (c Config) SessionTokenTTL() time.Duration {
	return time.Duration(c.JWTSessionTTLDays) * 24 * time.Hour
}

func (c Config) PINLockout() time.Duration {
	return time.Duration(c.PINLockoutMinute) * time.Minute
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not an integer, using %d\n", key, v, fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
