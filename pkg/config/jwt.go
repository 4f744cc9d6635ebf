package config

// JWTConfig holds JWT authentication configuration. The verify service only
// validates tokens issued elsewhere, so the secret and the claim checks are
// all it needs.
type JWTConfig struct {
	Secret   string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer   string `env:"JWT_ISSUER" env-default:""`
	Audience string `env:"JWT_AUDIENCE" env-default:""`
}

// NewJWTConfigFromEnv creates a JWTConfig from environment variables
func NewJWTConfigFromEnv() JWTConfig {
	return JWTConfig{
		Secret:   GetEnvOrDefault("JWT_SECRET", "very-secure-jwt-secret"),
		Issuer:   GetEnv("JWT_ISSUER"),
		Audience: GetEnv("JWT_AUDIENCE"),
	}
}
