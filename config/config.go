package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rio-pipeline/models"
)

// KPI holds the business thresholds every pipeline stage is parameterised by.
type KPI struct {
	ROIThreshold    float64          `yaml:"roi_threshold"`
	TargetLabel     models.RiskLabel `yaml:"target_label"`
	PassRatio       float64          `yaml:"pass_ratio"`
	FeeCeiling      float64          `yaml:"fee_ceiling"`
	MediumThreshold float64          `yaml:"medium_threshold"`
	FeeCheck        bool             `yaml:"fee_check"`
}

// DefaultKPI returns the thresholds the KPI check has always used:
// ROI ≥ 15, label Low, 90% of rows.
func DefaultKPI() KPI {
	return KPI{
		ROIThreshold:    15,
		TargetLabel:     models.RiskLow,
		PassRatio:       0.9,
		FeeCeiling:      5,
		MediumThreshold: 10,
		FeeCheck:        true,
	}
}

// Validate normalises the target label and checks ranges.
func (k *KPI) Validate() error {
	label, ok := models.ParseRiskLabel(string(k.TargetLabel))
	if !ok {
		return fmt.Errorf("config: target label %q is not one of Low/Medium/High", k.TargetLabel)
	}
	k.TargetLabel = label
	if k.PassRatio <= 0 || k.PassRatio > 1 {
		return fmt.Errorf("config: pass ratio %.4f outside (0, 1]", k.PassRatio)
	}
	if k.FeeCeiling < 0 {
		return fmt.Errorf("config: fee ceiling %.2f is negative", k.FeeCeiling)
	}
	return nil
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	KPI KPI

	InputSource  string
	InputPath    string
	OutputPath   string
	PerizieDir   string
	MarginFilter bool
	LabelLocale  string

	RefineEnabled   bool
	LLMProvider     string
	LLMModel        string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GeminiAPIKey    string
	LLMTimeout      time.Duration
	DocChunkChars   int
	BrowserFallback bool
	ChromeBin       string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	RetryDelay     time.Duration

	AsteAPIKey   string
	AsteBaseURL  string
	AsteProvince string
	PriceMin     int
	PriceMax     int
	PropertyType string

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	LogLevel string
	LogJSON  bool
}

// Load reads the .env file and returns a populated Config struct. When
// KPI_CONFIG_PATH points at a YAML file its thresholds override the env values.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	def := DefaultKPI()
	cfg := &Config{
		KPI: KPI{
			ROIThreshold:    getEnvFloat("ROI_THRESHOLD", def.ROIThreshold),
			TargetLabel:     models.RiskLabel(getEnv("TARGET_LABEL", string(def.TargetLabel))),
			PassRatio:       getEnvFloat("PASS_RATIO", def.PassRatio),
			FeeCeiling:      getEnvFloat("FEE_CEILING", def.FeeCeiling),
			MediumThreshold: getEnvFloat("MEDIUM_THRESHOLD", def.MediumThreshold),
			FeeCheck:        getEnvBool("FEE_CHECK", def.FeeCheck),
		},

		InputSource:  strings.ToLower(getEnv("INPUT_SOURCE", "csv")),
		InputPath:    getEnv("INPUT_PATH", "rio_best_opportunita_Roma_with_url.csv"),
		OutputPath:   getEnv("OUTPUT_PATH", "rio_best_precision.csv"),
		PerizieDir:   getEnv("PERIZIE_DIR", "perizie_txt"),
		MarginFilter: getEnvBool("MARGIN_FILTER", true),
		LabelLocale:  getEnv("LABEL_LOCALE", "en"),

		RefineEnabled:   getEnvBool("REFINE_ENABLED", false),
		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		LLMTimeout:      time.Duration(getEnvInt("LLM_TIMEOUT_SEC", 60)) * time.Second,
		DocChunkChars:   getEnvInt("DOC_CHUNK_CHARS", 12000),
		BrowserFallback: getEnvBool("BROWSER_FALLBACK", false),
		ChromeBin:       getEnv("CHROME_BIN", ""),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 1),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 500),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RetryDelay:     time.Duration(getEnvInt("RETRY_DELAY_MS", 2000)) * time.Millisecond,

		AsteAPIKey:   getEnv("GASTA_API_KEY", ""),
		AsteBaseURL:  getEnv("GASTA_BASE_URL", "https://www.gestionale-aste.it/api/aste"),
		AsteProvince: getEnv("GASTA_PROVINCE", "RM"),
		PriceMin:     getEnvInt("PRICE_MIN", 0),
		PriceMax:     getEnvInt("PRICE_MAX", 999_999_999),
		PropertyType: getEnv("PROPERTY_TYPE", "Residenziale"),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "rio"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "rio"),
		PostgresDB:       getEnv("POSTGRES_DB", "rio_auctions"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", false),
	}

	if path := os.Getenv("KPI_CONFIG_PATH"); path != "" {
		if err := cfg.KPI.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.KPI.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays thresholds found in a YAML file. Keys absent from the
// file keep their current values.
func (k *KPI) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read kpi file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, k); err != nil {
		return fmt.Errorf("config: parse kpi file %q: %w", path, err)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
