package appforge

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML (or JSON) config file over the defaults and then
// applies APPFORGE_* environment overrides. An empty path or a missing file
// yields the defaults plus overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides using lookup.
func (c *Config) ApplyEnvOverrides(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	str("APPFORGE_LOG_LEVEL", &c.Logging.Level)
	str("APPFORGE_LOG_FORMAT", &c.Logging.Format)
	flag("APPFORGE_LOG_DEVELOPMENT", &c.Logging.Development)

	num("APPFORGE_MAX_SURFACED_ERRORS", &c.Build.MaxSurfacedErrors)
	str("APPFORGE_THEME", &c.Build.Theme)

	str("APPFORGE_STORAGE_DRIVER", &c.Storage.Driver)
	db := &c.Storage.Database
	str("APPFORGE_DB_HOST", &db.Host)
	num("APPFORGE_DB_PORT", &db.Port)
	str("APPFORGE_DB_NAME", &db.Database)
	str("APPFORGE_DB_USER", &db.Username)
	str("APPFORGE_DB_PASSWORD", &db.Password)
	str("APPFORGE_DB_SSL_MODE", &db.SSLMode)
	num("APPFORGE_DB_MAX_CONNECTIONS", &db.MaxConnections)
	dur("APPFORGE_DB_TIMEOUT", &db.Timeout)
	flag("APPFORGE_DB_USE_IAM", &db.UseIAM)
	str("APPFORGE_DB_REGION", &db.Region)
	str("APPFORGE_SPEC_TABLE", &db.TableNames.Specifications)
	str("APPFORGE_BUILD_TABLE", &db.TableNames.Builds)

	str("APPFORGE_EXPORT_DRIVER", &c.Export.Driver)
	str("APPFORGE_EXPORT_DIR", &c.Export.Directory)
	str("APPFORGE_S3_BUCKET", &c.Export.S3.Bucket)
	str("APPFORGE_S3_PREFIX", &c.Export.S3.Prefix)
	str("APPFORGE_S3_REGION", &c.Export.S3.Region)
	str("APPFORGE_S3_ENDPOINT", &c.Export.S3.Endpoint)
	str("AWS_ACCESS_KEY_ID", &c.Export.S3.AccessKeyID)
	str("AWS_SECRET_ACCESS_KEY", &c.Export.S3.SecretAccessKey)
	flag("APPFORGE_S3_PATH_STYLE", &c.Export.S3.UsePathStyle)

	str("PORT", &c.Server.Port)
}
