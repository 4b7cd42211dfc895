package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	// Roster spreadsheet.
	SheetsKeyPath      string // service-account JSON key file
	SheetsSubject      string // optional impersonation user
	SpreadsheetID      string
	SpreadsheetRange   string
	RosterColumns      RosterColumns
	CacheRefreshCutoff string // "HH:MM", daily refresh happens at or after this time

	// Identity provider (authorization-code flow).
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleAuthURL      string
	GoogleTokenURL     string
	GoogleUserInfoURL  string

	// Verification attempts.
	AttemptWindow       time.Duration
	StoreBackend        string // "memory" | "dynamo"
	AWSRegion           string
	AWSEndpointURL      string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID      string
	AWSSecretKey        string
	DynamoAttemptsTable string

	// Outbound notifications.
	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string
	SNSTopicARN  string

	// Verification receipts (optional RS256 signer).
	ReceiptPrivateKeyPath string
	ReceiptPublicKeyPath  string
	ReceiptExpiry         time.Duration

	AdminToken     string   // guards cache admin endpoints; empty disables the check
	AllowedOrigins []string // CORS allowed origins
}

// RosterColumns maps roster fields to spreadsheet header names. Columns are
// located by header, not position, so the sheet can be reordered freely.
type RosterColumns struct {
	FullName         string
	Section          string
	MembershipStatus string
	OrgEmail         string
	PersonalEmail    string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		SheetsKeyPath:    getEnv("GOOGLE_KEY_PATH", "./service_account.json"),
		SheetsSubject:    getEnv("SPREADSHEET_USER", ""),
		SpreadsheetID:    getEnv("SPREADSHEET_ID", ""),
		SpreadsheetRange: getEnv("SPREADSHEET_RANGE", "Popis!A:Z"),
		RosterColumns: RosterColumns{
			FullName:         getEnv("ROSTER_COL_FULL_NAME", "Ime i prezime"),
			Section:          getEnv("ROSTER_COL_SECTION", "Matična sekcija"),
			MembershipStatus: getEnv("ROSTER_COL_MEMBERSHIP_STATUS", "Trenutna vrsta članstva"),
			OrgEmail:         getEnv("ROSTER_COL_ORG_EMAIL", "KSET e-pošta"),
			PersonalEmail:    getEnv("ROSTER_COL_PERSONAL_EMAIL", "Privatna e-pošta"),
		},
		CacheRefreshCutoff: getEnv("CACHE_REFRESH_CUTOFF", "06:47"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:3000/oauth/callback"),
		GoogleAuthURL:      getEnv("GOOGLE_AUTH_URL", "https://accounts.google.com/o/oauth2/v2/auth"),
		GoogleTokenURL:     getEnv("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		GoogleUserInfoURL:  getEnv("GOOGLE_USERINFO_URL", "https://www.googleapis.com/oauth2/v3/userinfo"),

		AttemptWindow:       time.Duration(getEnvInt("ATTEMPT_WINDOW_MINUTES", 5)) * time.Minute,
		StoreBackend:        getEnv("STORE_BACKEND", "memory"),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL:      getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:        getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoAttemptsTable: getEnv("DYNAMO_TABLE_ATTEMPTS", "verification_attempts"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@kset.org"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SNSRegion:    getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN:  getEnv("SNS_TOPIC_ARN", ""),

		ReceiptPrivateKeyPath: getEnv("RECEIPT_PRIVATE_KEY_PATH", "./private_key.pem"),
		ReceiptPublicKeyPath:  getEnv("RECEIPT_PUBLIC_KEY_PATH", "./public_key.pem"),
		ReceiptExpiry:         time.Duration(getEnvInt("RECEIPT_EXPIRY_MINUTES", 60)) * time.Minute,

		AdminToken:     getEnv("ADMIN_TOKEN", ""),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
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
