package config

import (
	"time"
)

const (
	DriverMongo  = "mongodb"
	DriverMemory = "memory"
)

type DatabaseConfig struct {
	Driver         string        `yaml:"driver"`
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	MaxPoolSize    int           `yaml:"max_pool_size"`
	MinPoolSize    int           `yaml:"min_pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	SocketTimeout  time.Duration `yaml:"socket_timeout"`
	RunMigrations  bool          `yaml:"run_migrations"`
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver:         getEnv("STORE_DRIVER", DriverMongo),
		URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		Database:       getEnv("MONGODB_DATABASE", "ridemate"),
		MaxPoolSize:    getEnvAsInt("MONGODB_MAX_POOL_SIZE", 100),
		MinPoolSize:    getEnvAsInt("MONGODB_MIN_POOL_SIZE", 5),
		ConnectTimeout: getEnvAsDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
		SocketTimeout:  getEnvAsDuration("MONGODB_SOCKET_TIMEOUT", 30*time.Second),
		RunMigrations:  getEnvAsBool("MONGODB_RUN_MIGRATIONS", true),
	}
}
