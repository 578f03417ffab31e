package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing
	UploadDir      string // root directory for uploaded files
	MaxUploadBytes int64  // upper bound for a single multipart upload
	FrontendURL    string // base URL used in links inside emails
	AdminEmail     string // recipient of admin copies of notifications (optional)
	AutoMigrate    bool   // create tables on startup when missing
	LogLevel       string // zap level name
	LogDev         bool   // human readable development logs
	Brand          string // product name used in email subjects
	SnowflakeNode  int    // node number embedded in message entry ids
}

// LoadDotEnv reads a .env file into the process environment when one
// exists.  A missing file is not an error; system env vars still apply.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, relying on system env vars")
	}
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),                         // environment (dev/test/prod)
		Port:           must("APP_PORT"),                        // port to bind the HTTP server
		DBUser:         must("DB_USER"),                         // database user
		DBPass:         os.Getenv("DB_PASS"),                    // database password (empty allowed)
		DBHost:         must("DB_HOST"),                         // database host
		DBPort:         must("DB_PORT"),                         // database port
		DBName:         must("DB_NAME"),                         // database name
		JWTSecret:      must("JWT_SECRET"),                      // secret used for signing JWTs
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),         // TTL for access tokens in minutes
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),       // TTL for refresh tokens in days
		BcryptCost:     mustInt("BCRYPT_COST"),                  // bcrypt cost factor
		UploadDir:      envStr("UPLOAD_DIR", "uploads"),         // multipart uploads land here
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 10<<20)), // 10 MiB
		FrontendURL:    envStr("FRONTEND_URL", "http://localhost:3000"),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AutoMigrate:    envBool("DB_AUTO_MIGRATE", true),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		LogDev:         envBool("LOG_DEV", false),
		Brand:          envStr("BRAND_NAME", "LinkMarket"),
		SnowflakeNode:  envInt("SNOWFLAKE_NODE", 1),
	}
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool { return c.Env == "prod" || c.Env == "production" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
