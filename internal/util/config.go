package util

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	HTTPAddr string
	DataDir  string
	LogLevel string

	CORSOrigins []string

	// ProjectsRoot is where repositories are cloned, one directory per slug
	ProjectsRoot string

	// Docker engine configuration
	DockerDataRoot string
	DockerSocket   string

	// Queue backend (Redis) connection
	QueueHost string
	QueuePort int

	// Per-container resource caps
	MemoryLimitBytes int64
	CPUShares        int64

	// ContainerPrefix is both the container-name prefix and the image namespace
	ContainerPrefix string

	// SubdomainBase is the public base domain served by the reverse proxy
	SubdomainBase string

	// WorkerConcurrency bounds parallel deployment pipelines
	WorkerConcurrency int
}

// QueueAddr returns the host:port address of the queue backend
func (c *Config) QueueAddr() string {
	return c.QueueHost + ":" + strconv.Itoa(c.QueuePort)
}

// LoadConfig reads configuration from environment variables with defaults.
// A .env file in the working directory is loaded first if present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DataDir:     getEnv("DATA_DIR", "./data"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: parseOrigins(getEnv("DROPDEPLOY_CORS_ORIGINS", "")),

		ProjectsRoot:   getEnv("DROPDEPLOY_PROJECTS_ROOT", "./data/projects"),
		DockerDataRoot: getEnv("DROPDEPLOY_DOCKER_DATA_ROOT", "/var/lib/docker"),
		DockerSocket:   getEnv("DROPDEPLOY_DOCKER_SOCKET", ""),

		QueueHost: getEnv("DROPDEPLOY_QUEUE_HOST", "127.0.0.1"),
		QueuePort: getIntEnv("DROPDEPLOY_QUEUE_PORT", 6379),

		MemoryLimitBytes: getInt64Env("DROPDEPLOY_MEMORY_LIMIT_BYTES", 512*1024*1024),
		CPUShares:        getInt64Env("DROPDEPLOY_CPU_SHARES", 1024),

		ContainerPrefix: getEnv("DROPDEPLOY_CONTAINER_PREFIX", "dropdeploy"),
		SubdomainBase:   getEnv("DROPDEPLOY_SUBDOMAIN_BASE", "example.app"),

		WorkerConcurrency: getIntEnv("DROPDEPLOY_WORKER_CONCURRENCY", 5),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}
	return strings.Split(origins, ",")
}
