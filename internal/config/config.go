package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	S3BucketName    string
	S3PublicBaseURL string // optional CDN/bucket URL used to build public logo links

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	CookieDomain      string

	Mail MailConfig

	SNSRegion           string
	ReviewAlertTopicARN string // empty disables review alerts

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	AIServiceURL string
	AITimeout    time.Duration

	PublicBaseURL  string // base of the public review link
	ClientURL      string // base of links sent by email
	AllowedOrigins []string
	TrustedProxies []string // CIDRs or IPs whose forwarding headers are honoured
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts      string
	AccountEmails string
	Spaces        string
}

// MailConfig selects and configures the outbound mail transport.
type MailConfig struct {
	Driver           string // "smtp" | "mailersend" | "log"
	From             string
	FromName         string
	SMTPHost         string
	SMTPPort         string
	SMTPUsername     string
	SMTPPassword     string
	SMTPUseTLS       bool // implicit TLS (port 465)
	MailerSendAPIKey string
	Workers          int
	QueueSize        int
	MaxRetries       int
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Accounts:      getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),
			AccountEmails: getEnv("DYNAMO_TABLE_ACCOUNT_EMAILS", "account_emails"),
			Spaces:        getEnv("DYNAMO_TABLE_SPACES", "spaces"),
		},
		S3BucketName:      getEnv("S3_BUCKET_NAME", "testiflow-logos"),
		S3PublicBaseURL:   strings.TrimRight(getEnv("S3_PUBLIC_BASE_URL", ""), "/"),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),
		CookieDomain:      getEnv("COOKIE_DOMAIN", ""),
		Mail: MailConfig{
			Driver:           getEnv("MAIL_DRIVER", "log"),
			From:             getEnv("MAIL_FROM", "noreply@testiflow.app"),
			FromName:         getEnv("MAIL_FROM_NAME", "TestiFlow"),
			SMTPHost:         getEnv("SMTP_HOST", "localhost"),
			SMTPPort:         getEnv("SMTP_PORT", "1025"),
			SMTPUsername:     getEnv("SMTP_USERNAME", ""),
			SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
			SMTPUseTLS:       getEnvBool("SMTP_USE_TLS", false),
			MailerSendAPIKey: getEnv("MAILERSEND_API_KEY", ""),
			Workers:          getEnvInt("MAIL_WORKERS", 2),
			QueueSize:        getEnvInt("MAIL_QUEUE_SIZE", 256),
			MaxRetries:       getEnvInt("MAIL_MAX_RETRIES", 5),
		},
		SNSRegion:           getEnv("SNS_REGION", "us-east-1"),
		ReviewAlertTopicARN: getEnv("REVIEW_ALERT_TOPIC_ARN", ""),
		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:   getEnv("GOOGLE_REDIRECT_URL", "postmessage"),
		AIServiceURL:        strings.TrimRight(getEnv("AI_SERVICE_URL", "http://localhost:8000"), "/"),
		AITimeout:           getEnvDuration("AI_TIMEOUT", 60*time.Second),
		PublicBaseURL:       strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:5173"), "/"),
		ClientURL:           strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:5173"), "/"),
		AllowedOrigins:      strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		TrustedProxies:      strings.Split(getEnv("TRUSTED_PROXIES", ""), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
