package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Required values are enforced at load time so a
// misconfigured process refuses to start instead of failing per request.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	// Password hashing. The hasher refuses to run with any of these
	// missing, so all four are required here as well.
	HashAlgorithm  string // digest algorithm (sha256, sha512)
	LocalSalt      string // server-side salt prepended to the derived salt
	HashIterations int    // PBKDF2 iteration count
	HashKeyLen     int    // PBKDF2 output key length in bytes

	// Access and refresh tokens are signed with independent secrets so
	// that a leaked secret compromises only one of the two TTL domains.
	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTTLMin     int // access token time-to-live in minutes
	RefreshTTLDays   int // refresh token time-to-live in days

	EmailSender string // From address for verification mail
	BaseURL     string // public base URL used in verification links

	AvatarBucket    string // object storage bucket for avatars
	AvatarPublicURL string // public URL prefix for uploaded avatars (ends with /)
	AWSRegion       string // region for S3 and SES clients
}

// Load reads configuration values from environment variables and returns a
// Config. Missing required values cause the process to exit with a fatal
// log message.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"), // empty allowed
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		HashAlgorithm:  must("HASH_ALGORITHM"),
		LocalSalt:      must("LOCAL_SALT"),
		HashIterations: mustInt("HASH_ITERATIONS"),
		HashKeyLen:     mustInt("HASH_KEYLEN"),

		JWTAccessSecret:  must("JWT_ACCESS_SECRET"),
		JWTRefreshSecret: must("JWT_REFRESH_SECRET"),
		AccessTTLMin:     mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:   mustInt("REFRESH_TOKEN_TTL_DAYS"),

		EmailSender: must("EMAIL_SENDER"),
		BaseURL:     must("BASE_URL"),

		AvatarBucket:    must("AVATAR_BUCKET"),
		AvatarPublicURL: must("AVATAR_PUBLIC_URL"),
		AWSRegion:       must("AWS_REGION"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
