package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	NATS struct {
		URL      string             `mapstructure:"url"`
		Inbound  ConsumerNatsConfig `mapstructure:"inbound"`
		Outbound OutboundNatsConfig `mapstructure:"outbound"`
	} `mapstructure:"nats"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Clinic struct {
		ID          string `mapstructure:"id"`
		DefaultUnit string `mapstructure:"defaultUnit"`
	} `mapstructure:"clinic"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Queue struct {
		PollInterval time.Duration `mapstructure:"pollInterval"` // engine tick cadence
	} `mapstructure:"queue"`
	WorkerPools struct {
		Send SendWorkerPoolConfig `mapstructure:"send"`
	} `mapstructure:"workerPools"`
}

// SendWorkerPoolConfig holds configuration for the outbound send worker pool
type SendWorkerPoolConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`   // Number of workers
	QueueSize  int           `mapstructure:"queueSize"`  // Task queue buffer size
	MaxBlock   time.Duration `mapstructure:"maxBlock"`   // Max time to block when submitting if queue full
	ExpiryTime time.Duration `mapstructure:"expiryTime"` // Idle worker expiry time
}

// ConsumerNatsConfig holds configuration specific to a NATS consumer
type ConsumerNatsConfig struct {
	MaxAge       int64         `mapstructure:"maxAge"` // max age of messages in days
	Stream       string        `mapstructure:"stream"`
	Consumer     string        `mapstructure:"consumer"` // durable name
	QueueGroup   string        `mapstructure:"group"`
	SubjectList  []string      `mapstructure:"subjectList"`
	MaxDeliver   int           `mapstructure:"maxDeliver"`
	NakBaseDelay time.Duration `mapstructure:"nakBaseDelay"` // Base delay for exponential backoff NAK
	NakMaxDelay  time.Duration `mapstructure:"nakMaxDelay"`  // Maximum delay for exponential backoff NAK
}

// OutboundNatsConfig holds configuration for the outbound message stream
type OutboundNatsConfig struct {
	Stream        string `mapstructure:"stream"`
	SubjectPrefix string `mapstructure:"subjectPrefix"` // e.g. v1.wa.outbound
	MaxAge        int64  `mapstructure:"maxAge"`        // retention in days
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 2112)

	v.SetDefault("database.postgresAutoMigrate", true)

	v.SetDefault("queue.pollInterval", 5*time.Second)

	v.SetDefault("nats.inbound.stream", "wa_inbound")
	v.SetDefault("nats.inbound.consumer", "frontdesk_inbound")
	v.SetDefault("nats.inbound.group", "frontdesk")
	v.SetDefault("nats.inbound.maxAge", 1)
	v.SetDefault("nats.inbound.maxDeliver", 5)
	v.SetDefault("nats.inbound.nakBaseDelay", 2*time.Second)
	v.SetDefault("nats.inbound.nakMaxDelay", 30*time.Second)
	v.SetDefault("nats.outbound.stream", "wa_outbound")
	v.SetDefault("nats.outbound.subjectPrefix", "v1.wa.outbound")
	v.SetDefault("nats.outbound.maxAge", 1)

	// WorkerPools Defaults
	v.SetDefault("workerPools.send.poolSize", 10)
	v.SetDefault("workerPools.send.queueSize", 10000)
	v.SetDefault("workerPools.send.maxBlock", time.Second)
	v.SetDefault("workerPools.send.expiryTime", time.Minute)

	// Config file settings
	v.SetConfigName("default")
	v.SetConfigType("yaml")

	// Add lookup paths
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.wa-frontdesk")
	v.AddConfigPath("/etc/wa-frontdesk")

	// Try to read from config file
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config fields
	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
	}
	if clinic := os.Getenv("CLINIC_ID"); clinic != "" {
		v.Set("clinic.id", clinic)
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(parts, tag)
		key := strings.Join(path, ".")

		// If it's a struct, recursively bind its fields
		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
