package config

import "os"

// ApplyEnv applies environment variable overrides to the configuration.
// Environment variables take precedence over TOML config but are overridden
// by command-line flags.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("ATTRLOOKUPD_HOSTNAME"); v != "" {
		cfg.Hostname = v
	}
	if v := os.Getenv("ATTRLOOKUPD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ATTRLOOKUPD_TLS_CERT_FILE"); v != "" {
		cfg.TLS.CertFile = v
	}
	if v := os.Getenv("ATTRLOOKUPD_TLS_KEY_FILE"); v != "" {
		cfg.TLS.KeyFile = v
	}
	if v := os.Getenv("ATTRLOOKUPD_REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := os.Getenv("ATTRLOOKUPD_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ATTRLOOKUPD_PROXY_ADDRESS"); v != "" {
		cfg.Proxy.Address = v
	}
	if v := os.Getenv("ATTRLOOKUPD_PROXY_PASSWORD"); v != "" {
		cfg.Proxy.Password = v
	}
	return cfg
}
