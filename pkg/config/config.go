package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is built once in main and passed by reference into every component.
// Nothing reads viper after Load returns.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	YouTube YouTubeConfig
	LLM     LLMConfig
	Report  ReportConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type StorageConfig struct {
	RawDir       string
	ProcessedDir string
	ReportsDir   string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type YouTubeConfig struct {
	ChannelID    string
	ClientID     string
	ClientSecret string
	TokenFile    string
}

type LLMConfig struct {
	Provider       string
	BaseURL        string
	Model          string
	APIKey         string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
	EmbeddingModel string
}

type ReportConfig struct {
	AnalyticsWindowDays int
	Schedule            string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/yt-audit")

	viper.SetEnvPrefix("YT_AUDIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("storage.rawDir", "./data/raw")
	viper.SetDefault("storage.processedDir", "./data/processed")
	viper.SetDefault("storage.reportsDir", "./reports")

	viper.SetDefault("sqlite.path", "./data/ytaudit.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("youtube.tokenFile", "./youtube_token.json")

	viper.SetDefault("llm.provider", "ollama")
	viper.SetDefault("llm.baseURL", "http://localhost:11434/v1")
	viper.SetDefault("llm.model", "llama3.1:8b")
	viper.SetDefault("llm.temperature", 0.4)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.timeoutSec", 30)
	viper.SetDefault("llm.embeddingModel", "nomic-embed-text")

	viper.SetDefault("report.analyticsWindowDays", 365)
	viper.SetDefault("report.schedule", "0 7 * * 1")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
