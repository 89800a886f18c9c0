package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	MongoURI           string
	DBName             string
	MongoTimeout       time.Duration
	JWTSecret          string
	JWTKeyID           string
	JWTPreviousKeys    []SigningKey
	JWTPreviousKeysErr error
	AccessTokenTTL     time.Duration
	Port               string
	CORSAllowedOrigins []string
	CartRequireAuth    bool
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}

	previous, previousErr := ParseSigningKeys(os.Getenv("JWT_PREVIOUS_KEYS"))
	if previousErr != nil {
		log.Println("JWT_PREVIOUS_KEYS invalid:", previousErr)
		previous = nil
	}

	AppEnv = Config{
		MongoURI:           getEnvOrDefault("MONGO_URI", ""),
		DBName:             getEnvOrDefault("DB_NAME", "storefront"),
		MongoTimeout:       getDurationEnv("MONGO_TIMEOUT", 10, time.Second),
		JWTSecret:          getEnvOrDefault("JWT_SECRET", ""),
		JWTKeyID:           getEnvOrDefault("JWT_KEY_ID", "primary"),
		JWTPreviousKeys:    previous,
		JWTPreviousKeysErr: previousErr,
		AccessTokenTTL:     getDurationEnv("ACCESS_TOKEN_TTL", 60, time.Minute),
		Port:               getEnvOrDefault("PORT", "8080"),
		CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CartRequireAuth:    getBoolEnv("CART_REQUIRE_AUTH", true),
	}
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWTPreviousKeysErr != nil {
		errs = append(errs, fmt.Errorf("JWT_PREVIOUS_KEYS: %w", c.JWTPreviousKeysErr))
	}
	for _, key := range c.JWTPreviousKeys {
		if key.ID == c.JWTKeyID {
			errs = append(errs, errors.New("JWT_PREVIOUS_KEYS reuses JWT_KEY_ID "+key.ID))
		}
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
