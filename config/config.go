package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the investigation engine
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Search  SearchConfig  `mapstructure:"search"`
	Storage StorageConfig `mapstructure:"storage"`
	Crew    CrewConfig    `mapstructure:"crew"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig contains the language-model backend settings
type LLMConfig struct {
	Backend        string        `mapstructure:"backend"` // openai-compatible only for now
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Retries        int           `mapstructure:"retries"`
	Backoff        time.Duration `mapstructure:"backoff"`
}

func (l LLMConfig) Validate() error {
	if l.Backend == "" {
		return fmt.Errorf("llm.backend is required")
	}
	if l.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	return nil
}

// SearchConfig points at the document archive search endpoint
type SearchConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
	Backoff time.Duration `mapstructure:"backoff"`
}

func (s SearchConfig) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("search.base_url is required")
	}
	return nil
}

// StorageConfig groups the persistence backends
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"` // takes precedence when set
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

func (p PostgresConfig) Validate() error {
	if p.URL != "" {
		return nil
	}
	if p.Host == "" || p.Port <= 0 || p.DBName == "" {
		return fmt.Errorf("storage.postgres requires url or host/port/db_name")
	}
	return nil
}

// RedisConfig contains Redis cache settings
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TextTTL  time.Duration `mapstructure:"text_ttl"`
}

// CrewConfig tunes the agent pipeline
type CrewConfig struct {
	MaxTerms          int           `mapstructure:"max_terms"`
	PagesPerTerm      int           `mapstructure:"pages_per_term"`
	PeopleTerms       int           `mapstructure:"people_terms"`
	TermDelay         time.Duration `mapstructure:"term_delay"`
	SemanticTerms     int           `mapstructure:"semantic_terms"`
	SemanticResults   int           `mapstructure:"semantic_results"`
	FullTextCap       int           `mapstructure:"full_text_cap"`
	BatchSize         int           `mapstructure:"batch_size"`
	BatchWorkers      int           `mapstructure:"batch_workers"`
	BatchTimeout      time.Duration `mapstructure:"batch_timeout"`
	SpecialistWorkers int           `mapstructure:"specialist_workers"`
	SpecialistDocs    int           `mapstructure:"specialist_docs"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("llm.backend", "openai")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.timeout", 120*time.Second)
	viper.SetDefault("llm.retries", 3)
	viper.SetDefault("llm.backoff", 2*time.Second)
	viper.SetDefault("search.timeout", 30*time.Second)
	viper.SetDefault("search.retries", 3)
	viper.SetDefault("search.backoff", 2*time.Second)
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", 5432)
	viper.SetDefault("storage.postgres.user", "postgres")
	viper.SetDefault("storage.postgres.db_name", "inquest")
	viper.SetDefault("storage.postgres.ssl_mode", "disable")
	viper.SetDefault("storage.redis.addr", "localhost:6379")
	viper.SetDefault("storage.redis.text_ttl", 24*time.Hour)
	viper.SetDefault("crew.max_terms", 10)
	viper.SetDefault("crew.pages_per_term", 3)
	viper.SetDefault("crew.people_terms", 3)
	viper.SetDefault("crew.term_delay", 500*time.Millisecond)
	viper.SetDefault("crew.semantic_terms", 5)
	viper.SetDefault("crew.semantic_results", 10)
	viper.SetDefault("crew.full_text_cap", 3000)
	viper.SetDefault("crew.batch_size", 20)
	viper.SetDefault("crew.batch_workers", 3)
	viper.SetDefault("crew.batch_timeout", 5*time.Minute)
	viper.SetDefault("crew.specialist_workers", 2)
	viper.SetDefault("crew.specialist_docs", 30)

	if path == "" {
		viper.AddConfigPath("./config") // path to look for the config file in
		viper.AddConfigPath(".")        // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)                                // bin/
		viper.AddConfigPath(filepath.Join(exeDir, ".."))           // repo root
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config")) // repo root/config
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("INQUEST")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (INQUEST_*)

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {             // Handle errors reading the config file
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	// unmarshal config
	var config Config

	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	return &config
}
