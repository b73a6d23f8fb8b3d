package config

import "fmt"

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got %q", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithDefaultStorage sets the default storage backend name
func WithDefaultStorage(name string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			return fmt.Errorf("default storage name cannot be empty")
		}
		c.DefaultStorageBackend = name
		return nil
	}
}

// WithMemoryStorage adds a memory storage backend (for testing)
func WithMemoryStorage(name string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			return fmt.Errorf("storage name cannot be empty")
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name:   name,
			Type:   "memory",
			Config: map[string]interface{}{},
		})
		return nil
	}
}

// WithFilesystemStorage adds a filesystem storage backend
func WithFilesystemStorage(name, baseDir, urlPrefix string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			return fmt.Errorf("storage name cannot be empty")
		}
		if baseDir == "" {
			return fmt.Errorf("base directory cannot be empty")
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: name,
			Type: "fs",
			Config: map[string]interface{}{
				"base_dir":   baseDir,
				"url_prefix": urlPrefix,
			},
		})
		return nil
	}
}

// WithS3Storage adds an S3 storage backend
func WithS3Storage(name, bucket, region string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			return fmt.Errorf("storage name cannot be empty")
		}
		if bucket == "" {
			return fmt.Errorf("bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: name,
			Type: "s3",
			Config: map[string]interface{}{
				"bucket": bucket,
				"region": region,
			},
		})
		return nil
	}
}

// WithS3Credentials sets AWS credentials for an already-configured S3 backend
func WithS3Credentials(name, accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		return amendS3Backend(c, name, func(cfg map[string]interface{}) {
			cfg["access_key_id"] = accessKeyID
			cfg["secret_access_key"] = secretAccessKey
		})
	}
}

// WithS3Endpoint sets a custom S3 endpoint (for MinIO, LocalStack, etc.)
func WithS3Endpoint(name, endpoint string, useSSL, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		return amendS3Backend(c, name, func(cfg map[string]interface{}) {
			cfg["endpoint"] = endpoint
			cfg["use_ssl"] = useSSL
			cfg["use_path_style"] = usePathStyle
		})
	}
}

// WithSearch configures the Meilisearch notifier
func WithSearch(host, apiKey, index string) Option {
	return func(c *ServerConfig) error {
		c.SearchHost = host
		c.SearchAPIKey = apiKey
		if index != "" {
			c.SearchIndex = index
		}
		return nil
	}
}

func amendS3Backend(c *ServerConfig, name string, amend func(map[string]interface{})) error {
	for i := range c.StorageBackends {
		if c.StorageBackends[i].Name == name {
			if c.StorageBackends[i].Type != "s3" {
				return fmt.Errorf("storage backend %q is not s3", name)
			}
			if c.StorageBackends[i].Config == nil {
				c.StorageBackends[i].Config = map[string]interface{}{}
			}
			amend(c.StorageBackends[i].Config)
			return nil
		}
	}
	return fmt.Errorf("storage backend %q not found", name)
}
