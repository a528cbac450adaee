package appforge

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Build.MaxSurfacedErrors)
	assert.Equal(t, "app-shell", cfg.Build.ShellPatternID)
	assert.Equal(t, "appforge:", cfg.Build.StorageKeyPrefix)
	assert.True(t, cfg.Build.ValidateConfigs)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, TableNames{Specifications: "appforge_specifications", Builds: "appforge_builds"}, cfg.Storage.Database.TableNames)
	assert.Equal(t, "file", cfg.Export.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero surfaced errors", mutate: func(c *Config) { c.Build.MaxSurfacedErrors = 0 }, wantField: "build.maxSurfacedErrors"},
		{name: "no shell", mutate: func(c *Config) { c.Build.ShellPatternID = "" }, wantField: "build.shellPatternId"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Driver = "duckdb" }, wantField: "storage.driver"},
		{name: "postgres defaults", mutate: func(c *Config) { c.Storage.Driver = "postgres" }},
		{
			name: "postgres without host",
			mutate: func(c *Config) {
				c.Storage.Driver = "postgres"
				c.Storage.Database.Host = ""
			},
			wantField: "storage.database.host",
		},
		{
			name: "postgres min above max",
			mutate: func(c *Config) {
				c.Storage.Driver = "postgres"
				c.Storage.Database.MinConnections = 20
			},
			wantField: "storage.database.minConnections",
		},
		{
			name: "postgres without build table",
			mutate: func(c *Config) {
				c.Storage.Driver = "postgres"
				c.Storage.Database.TableNames.Builds = ""
			},
			wantField: "storage.database.tableNames",
		},
		{
			name: "iam without region",
			mutate: func(c *Config) {
				c.Storage.Driver = "postgres"
				c.Storage.Database.UseIAM = true
			},
			wantField: "storage.database.region",
		},
		{name: "file without directory", mutate: func(c *Config) { c.Export.Directory = "" }, wantField: "export.directory"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Export.Driver = "s3" }, wantField: "export.s3.bucket"},
		{
			name: "s3 complete",
			mutate: func(c *Config) {
				c.Export.Driver = "s3"
				c.Export.S3.Bucket = "apps"
			},
		},
		{name: "unknown export", mutate: func(c *Config) { c.Export.Driver = "ftp" }, wantField: "export.driver"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestConfig_ApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"APPFORGE_LOG_LEVEL":           "debug",
		"APPFORGE_LOG_DEVELOPMENT":     "true",
		"APPFORGE_MAX_SURFACED_ERRORS": "5",
		"APPFORGE_STORAGE_DRIVER":      "postgres",
		"APPFORGE_DB_PORT":             "6543",
		"APPFORGE_DB_TIMEOUT":          "5s",
		"APPFORGE_SPEC_TABLE":          "forge.specs",
		"APPFORGE_EXPORT_DRIVER":       "s3",
		"APPFORGE_S3_BUCKET":           "apps",
		"APPFORGE_S3_PATH_STYLE":       "1",
		"PORT":                         "9090",
		"APPFORGE_THEME":               "",
		"APPFORGE_DB_MAX_CONNECTIONS":  "many",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides(lookup)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 5, cfg.Build.MaxSurfacedErrors)
	assert.Equal(t, "light", cfg.Build.Theme, "empty values are ignored")
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 6543, cfg.Storage.Database.Port)
	assert.Equal(t, 10, cfg.Storage.Database.MaxConnections, "unparseable numbers are ignored")
	assert.Equal(t, 5*time.Second, cfg.Storage.Database.Timeout)
	assert.Equal(t, "forge.specs", cfg.Storage.Database.TableNames.Specifications)
	assert.Equal(t, "s3", cfg.Export.Driver)
	assert.Equal(t, "apps", cfg.Export.S3.Bucket)
	assert.True(t, cfg.Export.S3.UsePathStyle)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: warn
build:
  theme: dark
  maxSurfacedErrors: 2
export:
  directory: /tmp/apps
server:
  readTimeout: 5s
`), 0o644))

	t.Setenv("PORT", "7070")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "dark", cfg.Build.Theme)
	assert.Equal(t, 2, cfg.Build.MaxSurfacedErrors)
	assert.Equal(t, "app-shell", cfg.Build.ShellPatternID, "unset keys keep their defaults")
	assert.Equal(t, "/tmp/apps", cfg.Export.Directory)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestLoadConfig_Missing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Build, cfg.Build)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("build: [unclosed"), 0o644))
	_, err := LoadConfig(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("storage:\n  driver: mongo\n"), 0o644))
	_, err = LoadConfig(invalid)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "storage.driver", cfgErr.Field)
}
