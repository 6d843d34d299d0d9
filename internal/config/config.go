// Package config loads server configuration from the environment, an
// optional .env file and an optional YAML file.
//
// Precedence, lowest first: built-in defaults, the YAML file, the process
// environment (including anything .env put there).
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the data directory.
const FileName = "captionsync.yaml"

// apiKeyEnv maps provider names to the variables holding their keys.
var apiKeyEnv = map[string]string{
	"siliconflow": "SILICONFLOW_API_KEY",
	"modelscope":  "MODELSCOPE_API_KEY",
	"tuzi":        "TUZI_API_KEY",
	"openai":      "OPENAI_API_KEY",
	"gemini":      "GEMINI_API_KEY",
	"deepl":       "DEEPL_API_KEY",
}

type Config struct {
	Port        int
	DataPath    string
	DBPath      string
	ImagePath   string
	CORSOrigins []string

	TranslateProvider string
	TranslateModel    string
	TargetLang        string

	// APIKeys holds provider keys by provider name.
	APIKeys map[string]string
	// Providers are extra OpenAI-compatible endpoints declared in YAML.
	Providers []Provider

	RabbitMQURL   string
	RabbitMQQueue string
	Lang          string

	// File is the YAML file that was read, "" if none.
	File string
}

// Provider is an OpenAI-compatible endpoint declared in the config file.
type Provider struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name,omitempty"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model,omitempty"`
	Models      []string `yaml:"models,omitempty"`
	APIKey      string   `yaml:"api_key,omitempty"`
}

type fileConfig struct {
	Port        int      `yaml:"port,omitempty"`
	DataPath    string   `yaml:"data_path,omitempty"`
	DBPath      string   `yaml:"db_path,omitempty"`
	ImagePath   string   `yaml:"image_path,omitempty"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
	Lang        string   `yaml:"lang,omitempty"`

	Translate struct {
		Provider   string            `yaml:"provider,omitempty"`
		Model      string            `yaml:"model,omitempty"`
		TargetLang string            `yaml:"target_lang,omitempty"`
		APIKeys    map[string]string `yaml:"api_keys,omitempty"`
	} `yaml:"translate"`

	Providers []Provider `yaml:"providers,omitempty"`

	Events struct {
		RabbitMQURL string `yaml:"rabbitmq_url,omitempty"`
		Queue       string `yaml:"queue,omitempty"`
	} `yaml:"events"`
}

// Load builds the configuration. path names the YAML file; when empty,
// CONFIG_FILE is used, then <data>/captionsync.yaml if it exists. An
// explicitly named file that does not exist is an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded environment from .env")
	}

	explicit := path != ""
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
		explicit = path != ""
	}
	if path == "" {
		path = filepath.Join(getEnv("DATA_PATH", "/data"), FileName)
	}

	var fc fileConfig
	file := ""
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		file = path
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	for i, p := range fc.Providers {
		if p.Name == "" {
			return nil, fmt.Errorf("%s: provider #%d has no name", path, i+1)
		}
		if p.BaseURL == "" {
			return nil, fmt.Errorf("%s: provider %q has no base_url", path, p.Name)
		}
	}

	dataPath := getEnv("DATA_PATH", orDefault(fc.DataPath, "/data"))

	port := fc.Port
	if port == 0 {
		port = 8080
	}
	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		port = n
	}

	// CORS origins: comma-separated list or "*" (default)
	corsOrigins := fc.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		corsOrigins = splitList(v)
	}

	keys := make(map[string]string)
	for name, key := range fc.Translate.APIKeys {
		keys[name] = key
	}
	for _, p := range fc.Providers {
		if p.APIKey != "" {
			keys[p.Name] = p.APIKey
		}
	}
	for name, env := range apiKeyEnv {
		if v := os.Getenv(env); v != "" {
			keys[name] = v
		}
	}

	return &Config{
		Port:              port,
		DataPath:          dataPath,
		DBPath:            getEnv("DB_PATH", orDefault(fc.DBPath, filepath.Join(dataPath, "captionsync.db"))),
		ImagePath:         getEnv("IMAGE_PATH", orDefault(fc.ImagePath, filepath.Join(dataPath, "images"))),
		CORSOrigins:       corsOrigins,
		TranslateProvider: getEnv("TRANSLATE_PROVIDER", orDefault(fc.Translate.Provider, "siliconflow")),
		TranslateModel:    getEnv("TRANSLATE_MODEL", fc.Translate.Model),
		TargetLang:        getEnv("TARGET_LANG", orDefault(fc.Translate.TargetLang, "zh")),
		APIKeys:           keys,
		Providers:         fc.Providers,
		RabbitMQURL:       getEnv("RABBITMQ_URL", fc.Events.RabbitMQURL),
		RabbitMQQueue:     getEnv("RABBITMQ_QUEUE", fc.Events.Queue),
		Lang:              getEnv("CAPTIONSYNC_LANG", fc.Lang),
		File:              file,
	}, nil
}

// APIKeyEnv returns the environment variable that holds provider's key.
func APIKeyEnv(provider string) string {
	return apiKeyEnv[provider]
}

func splitList(v string) []string {
	items := strings.Split(v, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
