package appforge

import (
	"time"
)

// Config consolidates settings for the compiler, storage, export and server.
type Config struct {
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Build   BuildConfig   `json:"build" yaml:"build"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Export  ExportConfig  `json:"export" yaml:"export"`
	Server  ServerConfig  `json:"server" yaml:"server"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `json:"level" yaml:"level"`
	Format      string `json:"format" yaml:"format"` // json, console
	Development bool   `json:"development" yaml:"development"`
}

// BuildConfig contains compiler settings
type BuildConfig struct {
	// MaxSurfacedErrors caps the validation messages returned when a build is refused.
	MaxSurfacedErrors int    `json:"maxSurfacedErrors" yaml:"maxSurfacedErrors"`
	ShellPatternID    string `json:"shellPatternId" yaml:"shellPatternId"`
	Theme             string `json:"theme" yaml:"theme"`
	// StorageKeyPrefix is prepended to the app id to form the localStorage key of generated apps.
	StorageKeyPrefix  string `json:"storageKeyPrefix" yaml:"storageKeyPrefix"`
	CheckLibrary      bool   `json:"checkLibrary" yaml:"checkLibrary"`
	ValidateConfigs   bool   `json:"validateConfigs" yaml:"validateConfigs"`
}

// StorageConfig selects and configures the SpecStore.
type StorageConfig struct {
	Driver   string         `json:"driver" yaml:"driver"` // memory, postgres
	Database DatabaseConfig `json:"database" yaml:"database"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	Database        string        `json:"database" yaml:"database"`
	Username        string        `json:"username" yaml:"username"`
	Password        string        `json:"password" yaml:"password"`
	SSLMode         string        `json:"sslMode" yaml:"sslMode"`
	MaxConnections  int           `json:"maxConnections" yaml:"maxConnections"`
	MinConnections  int           `json:"minConnections" yaml:"minConnections"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime" yaml:"connMaxIdleTime"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
	// UseIAM replaces the password with an Aurora DSQL auth token.
	UseIAM          bool          `json:"useIam" yaml:"useIam"`
	Region          string        `json:"region" yaml:"region"`
	TableNames      TableNames    `json:"tableNames" yaml:"tableNames"`
}

// TableNames holds the table names used by the Postgres store.
type TableNames struct {
	Specifications string `json:"specifications" yaml:"specifications"`
	Builds         string `json:"builds" yaml:"builds"`
}

// ExportConfig selects where built documents are written.
type ExportConfig struct {
	Driver    string        `json:"driver" yaml:"driver"` // file, s3
	Directory string        `json:"directory" yaml:"directory"`
	S3        S3Config      `json:"s3" yaml:"s3"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

// S3Config contains S3 export settings
type S3Config struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	Prefix          string `json:"prefix" yaml:"prefix"`
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"accessKeyId" yaml:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey" yaml:"secretAccessKey"`
	UsePathStyle    bool   `json:"usePathStyle" yaml:"usePathStyle"`
	CreateBucket    bool   `json:"createBucket" yaml:"createBucket"`
}

type ServerConfig struct {
	Port         string        `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Build: BuildConfig{
			MaxSurfacedErrors: 3,
			ShellPatternID:    "app-shell",
			Theme:             "light",
			StorageKeyPrefix:  "appforge:",
			CheckLibrary:      true,
			ValidateConfigs:   true,
		},
		Storage: StorageConfig{
			Driver: "memory",
			Database: DatabaseConfig{
				Host:            "localhost",
				Port:            5432,
				Database:        "appforge",
				Username:        "postgres",
				SSLMode:         "disable",
				MaxConnections:  10,
				MinConnections:  1,
				ConnMaxLifetime: time.Hour,
				ConnMaxIdleTime: 5 * time.Minute,
				Timeout:         30 * time.Second,
				TableNames: TableNames{
					Specifications: "appforge_specifications",
					Builds:         "appforge_builds",
				},
			},
		},
		Export: ExportConfig{
			Driver:    "file",
			Directory: "./dist",
			Timeout:   30 * time.Second,
			S3: S3Config{
				Region: "us-east-1",
				Prefix: "apps/",
			},
		},
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Build.MaxSurfacedErrors <= 0 {
		return &ConfigError{Field: "build.maxSurfacedErrors", Message: "must be greater than 0"}
	}
	if c.Build.ShellPatternID == "" {
		return &ConfigError{Field: "build.shellPatternId", Message: "must not be empty"}
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		db := c.Storage.Database
		if db.Host == "" {
			return &ConfigError{Field: "storage.database.host", Message: "must not be empty"}
		}
		if db.MaxConnections <= 0 {
			return &ConfigError{Field: "storage.database.maxConnections", Message: "must be greater than 0"}
		}
		if db.MinConnections > db.MaxConnections {
			return &ConfigError{Field: "storage.database.minConnections", Message: "must be less than or equal to maxConnections"}
		}
		if db.TableNames.Specifications == "" || db.TableNames.Builds == "" {
			return &ConfigError{Field: "storage.database.tableNames", Message: "specifications and builds tables are required"}
		}
		if db.UseIAM && db.Region == "" {
			return &ConfigError{Field: "storage.database.region", Message: "required when useIam is set"}
		}
	default:
		return &ConfigError{Field: "storage.driver", Message: "must be one of memory, postgres"}
	}

	switch c.Export.Driver {
	case "file":
		if c.Export.Directory == "" {
			return &ConfigError{Field: "export.directory", Message: "must not be empty"}
		}
	case "s3":
		if c.Export.S3.Bucket == "" {
			return &ConfigError{Field: "export.s3.bucket", Message: "must not be empty"}
		}
		if c.Export.S3.Region == "" {
			return &ConfigError{Field: "export.s3.region", Message: "must not be empty"}
		}
	default:
		return &ConfigError{Field: "export.driver", Message: "must be one of file, s3"}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
