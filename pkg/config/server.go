package config

import "time"

// ServerConfig configures the HTTP API surface.
type ServerConfig struct {
	Port            string
	APIKey          string
	AllowedIPs      []string
	CORSOrigins     string
	RateLimit       int
	RateLimitWindow time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnv("PORT", "3000"),
		APIKey:          getEnv("API_KEY", ""),
		AllowedIPs:      getEnvStringSlice("ALLOWED_IPS", nil),
		CORSOrigins:     getEnv("CORS_ORIGINS", "*"),
		RateLimit:       getEnvInt("RATE_LIMIT", 60),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}
