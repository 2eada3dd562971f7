package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// ApplyEnv overrides configuration from the environment. DATABASE_URL and
// the USERSVC_* variables always win over the file.
func ApplyEnv(cfg *Config) error {
	return applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", key)
		}
		*dst = n
		return nil
	}

	setString("DATABASE_URL", &cfg.Database.URL)
	setString("USERSVC_BIND", &cfg.Bind)
	setString("USERSVC_COMPAT", &cfg.Compat)
	setString("USERSVC_LOG_LEVEL", &cfg.Logging.Level)
	setString("USERSVC_LOG_FORMAT", &cfg.Logging.Format)
	setString("USERSVC_METRICS_ADDR", &cfg.Metrics.Addr)

	if err := setInt("USERSVC_PORT", &cfg.Port); err != nil {
		return err
	}
	if err := setInt("USERSVC_MAX_CONNECTIONS", &cfg.Server.MaxConnections); err != nil {
		return err
	}

	return nil
}
