package config

import "time"

// VerificationConfig holds verification code lifecycle settings
type VerificationConfig struct {
	CodeExpiry      string `env:"VERIFY_CODE_EXPIRY" env-default:"15m"`
	MaxAttempts     int32  `env:"VERIFY_MAX_ATTEMPTS" env-default:"5"`
	IssueLimit      int64  `env:"VERIFY_ISSUE_LIMIT" env-default:"3"`
	IssueWindow     string `env:"VERIFY_ISSUE_WINDOW" env-default:"1h"`
	CleanupInterval string `env:"VERIFY_CLEANUP_INTERVAL" env-default:"1h"`

	// Persistence selects the code store backend: "postgres" or "file"
	Persistence string `env:"VERIFY_PERSISTENCE" env-default:"postgres"`
	DataDir     string `env:"VERIFY_DATA_DIR" env-default:"./data"`
}

// ParseCodeExpiry parses the code expiry duration
func (v VerificationConfig) ParseCodeExpiry() (time.Duration, error) {
	return time.ParseDuration(v.CodeExpiry)
}

// ParseIssueWindow parses the issuance rate window duration
func (v VerificationConfig) ParseIssueWindow() (time.Duration, error) {
	return time.ParseDuration(v.IssueWindow)
}

// ParseCleanupInterval parses the background cleanup interval
func (v VerificationConfig) ParseCleanupInterval() (time.Duration, error) {
	return time.ParseDuration(v.CleanupInterval)
}

// NewVerificationConfigFromEnv creates a VerificationConfig from environment variables
func NewVerificationConfigFromEnv() VerificationConfig {
	return VerificationConfig{
		CodeExpiry:      GetEnvOrDefault("VERIFY_CODE_EXPIRY", "15m"),
		MaxAttempts:     int32(GetEnvInt("VERIFY_MAX_ATTEMPTS", 5)),
		IssueLimit:      int64(GetEnvInt("VERIFY_ISSUE_LIMIT", 3)),
		IssueWindow:     GetEnvOrDefault("VERIFY_ISSUE_WINDOW", "1h"),
		CleanupInterval: GetEnvOrDefault("VERIFY_CLEANUP_INTERVAL", "1h"),
		Persistence:     GetEnvOrDefault("VERIFY_PERSISTENCE", "postgres"),
		DataDir:         GetEnvOrDefault("VERIFY_DATA_DIR", "./data"),
	}
}
