// Package config provides shared configuration structures for the
// simple-verify system.
//
// Each config struct carries cleanenv `env` tags so it can be embedded in a
// service-level config and loaded with cleanenv.ReadEnv, and each also has a
// NewXxxFromEnv constructor for callers that load configuration manually.
//
// # Usage with cleanenv
//
//	type Config struct {
//	    Database     config.DatabaseConfig
//	    Email        config.EmailConfig
//	    Verification config.VerificationConfig
//	    JWT          config.JWTConfig
//	}
//
//	var cfg Config
//	if err := cleanenv.ReadEnv(&cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// # Manual loading
//
//	dbConfig := config.NewDatabaseConfigFromEnv()
//	pool, err := dbutils.NewDbPool(ctx, dbConfig.ToDbConfig())
//
// Rate limiting settings have no env tags on purpose: they are either
// populated from code or loaded with NewRateLimitConfigFromEnv, then converted
// to middleware form with ToMiddlewareConfig.
package config
