package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	AI struct {
		APIKey          string `yaml:"apiKey"`
		VisionModel     string `yaml:"visionModel"`
		GenerationModel string `yaml:"generationModel"`
		EmbeddingModel  string `yaml:"embeddingModel"`
	} `yaml:"ai"`

	Knowledge struct {
		Qdrant struct {
			Host           string  `yaml:"host"`
			Port           int     `yaml:"port"`
			Collection     string  `yaml:"collection"`
			ScoreThreshold float32 `yaml:"scoreThreshold"`
			Limit          int     `yaml:"limit"`
			VectorSize     uint64  `yaml:"vectorSize"`
		} `yaml:"qdrant"`
		Minio struct {
			Endpoint   string `yaml:"endpoint"`
			AccessKey  string `yaml:"accessKey"`
			SecretKey  string `yaml:"secretKey"`
			BucketName string `yaml:"bucketName"`
			Region     string `yaml:"region"`
			UseSSL     bool   `yaml:"useSSL"`
		} `yaml:"minio"`
	} `yaml:"knowledge"`

	Cache struct {
		Enabled    bool   `yaml:"enabled"`
		Backend    string `yaml:"backend"` // memory | redis
		TTLSeconds int    `yaml:"ttlSeconds"`
		Redis      struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | none
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Limits struct {
		MaxEncodedBytes int `yaml:"maxEncodedBytes"`
		MaxDecodedBytes int `yaml:"maxDecodedBytes"`
		MaxWidth        int `yaml:"maxWidth"`
		MaxHeight       int `yaml:"maxHeight"`
		MaxQueryLen     int `yaml:"maxQueryLen"`
	} `yaml:"limits"`

	Timeouts struct {
		VisionSeconds     int `yaml:"visionSeconds"`
		SearchSeconds     int `yaml:"searchSeconds"`
		GenerationSeconds int `yaml:"generationSeconds"`
	} `yaml:"timeouts"`

	RateLimit struct {
		Enabled    bool `yaml:"enabled"`
		Capacity   int  `yaml:"capacity"`
		RefillRate int  `yaml:"refillRate"`
	} `yaml:"rateLimit"`

	Auth struct {
		Enabled bool     `yaml:"enabled"`
		APIKeys []string `yaml:"apiKeys"`
	} `yaml:"auth"`

	Conversation struct {
		BaseConfidence float64 `yaml:"baseConfidence"`
		SourceBonus    float64 `yaml:"sourceBonus"`
		MaxConfidence  float64 `yaml:"maxConfidence"`
	} `yaml:"conversation"`
}

// Load baca file config.yaml
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// Default returns a config usable without a file on disk.
func Default() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

func defaults() *Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.AI.VisionModel = "gpt-4o"
	cfg.AI.GenerationModel = "gpt-4o-mini"
	cfg.AI.EmbeddingModel = "text-embedding-3-small"
	cfg.Knowledge.Qdrant.Collection = "restoration_knowledge"
	cfg.Knowledge.Qdrant.ScoreThreshold = 0.35
	cfg.Knowledge.Qdrant.Limit = 5
	cfg.Knowledge.Qdrant.VectorSize = 1536
	cfg.Cache.Enabled = true
	cfg.Cache.Backend = "memory"
	cfg.Cache.TTLSeconds = 3600
	cfg.Database.Driver = "none"
	cfg.Limits.MaxEncodedBytes = 10 << 20
	cfg.Limits.MaxDecodedBytes = 8 << 20
	cfg.Limits.MaxWidth = 8192
	cfg.Limits.MaxHeight = 8192
	cfg.Limits.MaxQueryLen = 500
	cfg.Timeouts.VisionSeconds = 30
	cfg.Timeouts.SearchSeconds = 10
	cfg.Timeouts.GenerationSeconds = 45
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Capacity = 30
	cfg.RateLimit.RefillRate = 1
	cfg.Conversation.BaseConfidence = 0.7
	cfg.Conversation.SourceBonus = 0.1
	cfg.Conversation.MaxConfidence = 0.95
	return &cfg
}

// applyEnv lets secrets come from the environment instead of the yaml file.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
}

// Durations are stored as plain seconds in yaml.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func (c *Config) VisionTimeout() time.Duration {
	return time.Duration(c.Timeouts.VisionSeconds) * time.Second
}

func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Timeouts.SearchSeconds) * time.Second
}

func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Timeouts.GenerationSeconds) * time.Second
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}
