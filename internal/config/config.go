package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Quiz struct {
		TTL                  string   `yaml:"ttl"`
		DefinitionsFile      string   `yaml:"definitions_file"`
		QuestionTime         string   `yaml:"question_time"`
		IntermissionTime     string   `yaml:"intermission_time"`
		GracePeriod          string   `yaml:"grace_period"`
		MinQuestions         int      `yaml:"min_questions"`
		MaxQuestions         int      `yaml:"max_questions"`
		CloseWhenAllAnswered bool     `yaml:"close_when_all_answered"`
		Admins               []string `yaml:"admins"`
	} `yaml:"quiz"`
	Transport struct {
		MaxRetries      uint64 `yaml:"max_retries"`
		InitialInterval string `yaml:"initial_interval"`
		MaxInterval     string `yaml:"max_interval"`
		RenderTimeout   string `yaml:"render_timeout"`
	} `yaml:"transport"`
}

// Load reads YAML config from path and fills in defaults. Values of the form
// ${VAR} are expanded from the environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Quiz.MinQuestions == 0 {
		cfg.Quiz.MinQuestions = 1
	}
	if cfg.Quiz.MaxQuestions == 0 {
		cfg.Quiz.MaxQuestions = 50
	}
	if cfg.Transport.MaxRetries == 0 {
		cfg.Transport.MaxRetries = 3
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
