package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Application database (monitor store + results)
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration

	// Broker (MongoDB) Configuration. The broker is addressed separately from
	// the application database so queue mode can degrade without taking the
	// monitor store down with it.
	BrokerURI      string
	BrokerHost     string
	BrokerPort     string
	BrokerPassword string
	BrokerDatabase string
	BrokerTimeout  time.Duration

	// Scheduling mode
	QueueEnabled bool

	// Worker Pool Configuration
	WorkerConcurrency int
	RateLimitMaxJobs  int
	RateLimitWindow   time.Duration

	// Browser Check Configuration
	BrowserExecPath       string
	BrowserAllowAnyExec   bool
	RemoteBrowserEndpoint string
	NavigationTimeout     time.Duration
	ScreenshotDir         string
	VideoDir              string
	ArtifactSecret        string

	// HTTP Server Configuration
	HTTPPort         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration

	// Logging Configuration
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// Application database
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017/vigil"),
		MongoDatabase: getEnv("MONGO_DATABASE", "vigil"),
		MongoTimeout:  getDurationEnv("MONGO_TIMEOUT_SEC", 10) * time.Second,

		// Broker
		BrokerURI:      getEnv("BROKER_URI", ""),
		BrokerHost:     getEnv("BROKER_HOST", "localhost"),
		BrokerPort:     getEnv("BROKER_PORT", "27017"),
		BrokerPassword: getEnv("BROKER_PASSWORD", ""),
		BrokerDatabase: getEnv("BROKER_DATABASE", "vigil_queue"),
		BrokerTimeout:  getDurationEnv("BROKER_TIMEOUT_SEC", 10) * time.Second,

		// Scheduling mode
		QueueEnabled: getBoolEnv("QUEUE_ENABLED", false),

		// Worker pool
		WorkerConcurrency: getIntEnv("WORKER_CONCURRENCY", 50),
		RateLimitMaxJobs:  getIntEnv("RATE_LIMIT_MAX_JOBS", 1000),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW_SEC", 60) * time.Second,

		// Browser checks
		BrowserExecPath:       getEnv("BROWSER_EXEC_PATH", ""),
		BrowserAllowAnyExec:   getBoolEnv("BROWSER_ALLOW_ANY_EXEC", false),
		RemoteBrowserEndpoint: getEnv("REMOTE_BROWSER_ENDPOINT", ""),
		NavigationTimeout:     getDurationEnv("NAV_TIMEOUT_SEC", 30) * time.Second,
		ScreenshotDir:         getEnv("SCREENSHOT_DIR", "data/screenshots"),
		VideoDir:              getEnv("VIDEO_DIR", "data/videos"),
		ArtifactSecret:        getEnv("ARTIFACT_SECRET", "change-me"),

		// HTTP Server
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		HTTPReadTimeout:  getDurationEnv("HTTP_READ_TIMEOUT_SEC", 30) * time.Second,
		HTTPWriteTimeout: getDurationEnv("HTTP_WRITE_TIMEOUT_SEC", 30) * time.Second,

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// BrokerConnectionURI returns the full broker connection string.
// BROKER_URI wins when set; otherwise the URI is assembled from host/port/password.
func (c *Config) BrokerConnectionURI() string {
	if c.BrokerURI != "" {
		return c.BrokerURI
	}
	if c.BrokerPassword != "" {
		return fmt.Sprintf("mongodb://:%s@%s:%s/%s?authSource=admin",
			c.BrokerPassword, c.BrokerHost, c.BrokerPort, c.BrokerDatabase)
	}
	return fmt.Sprintf("mongodb://%s:%s/%s", c.BrokerHost, c.BrokerPort, c.BrokerDatabase)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal)
		}
		log.Printf("Warning: Invalid duration value for %s, using default %d", key, defaultValue)
	}
	return time.Duration(defaultValue)
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
	}
	return defaultValue
}
