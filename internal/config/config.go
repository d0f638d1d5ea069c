package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config mcreview-api configuration
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	// Store selects the persistence backend: "postgres" or "memory"
	Store    string         `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Auth         AuthConfig         `yaml:"auth"`
	Email        EmailConfig        `yaml:"email"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Storage      StorageConfig      `yaml:"storage"`
	FeatureFlags FeatureFlagsConfig `yaml:"feature_flags"`
}

// DatabaseConfig Postgres connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

// GetDSN builds a lib/pq connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig bearer token and local identity settings
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	APIKeyTTL time.Duration `yaml:"api_key_ttl"`
	// LocalLogin accepts the X-Local-User header (local development only)
	LocalLogin bool `yaml:"local_login"`
}

// EmailConfig email service client settings
type EmailConfig struct {
	Enabled            bool     `yaml:"enabled"`
	ServiceURL         string   `yaml:"service_url"`
	APIToken           string   `yaml:"api_token"`
	FromAddress        string   `yaml:"from_address"`
	ReviewTeamEmails   []string `yaml:"review_team_emails"`
	ApplicationBaseURL string   `yaml:"application_base_url"`
}

// MQTTConfig status-change event publisher (disabled by default)
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// StorageConfig object storage used for document downloads
type StorageConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	Bucket    string        `yaml:"bucket"`
	Region    string        `yaml:"region"`
	UseSSL    bool          `yaml:"use_ssl"`
	URLExpiry time.Duration `yaml:"url_expiry"`
}

// FeatureFlagsConfig defaults used when the flag store has no value
type FeatureFlagsConfig struct {
	KeyPrefix string          `yaml:"key_prefix"`
	Defaults  map[string]bool `yaml:"defaults"`
}

// Load reads .env (if present), the environment, and an optional YAML overlay
// named by CONFIG_FILE.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.Store = getEnv("STORE", "postgres")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "mcreview")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.Auth.Issuer = getEnv("JWT_ISSUER", "mcreview")
	cfg.Auth.APIKeyTTL = parseDuration(getEnv("API_KEY_TTL", "2160h"), 90*24*time.Hour)
	cfg.Auth.LocalLogin = getEnv("AUTH_LOCAL_LOGIN", "false") == "true"

	cfg.Email.Enabled = getEnv("EMAIL_ENABLED", "false") == "true"
	cfg.Email.ServiceURL = getEnv("EMAIL_SERVICE_URL", "http://localhost:8025")
	cfg.Email.APIToken = getEnv("EMAIL_API_TOKEN", "")
	cfg.Email.FromAddress = getEnv("EMAIL_FROM", "mc-review@cms.hhs.gov")
	cfg.Email.ReviewTeamEmails = splitList(getEnv("EMAIL_REVIEW_TEAM", ""))
	cfg.Email.ApplicationBaseURL = getEnv("APPLICATION_BASE_URL", "http://localhost:3000")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "mcreview-api")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "mcreview/events")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.Storage.Enabled = getEnv("STORAGE_ENABLED", "false") == "true"
	cfg.Storage.Endpoint = getEnv("STORAGE_ENDPOINT", "localhost:9000")
	cfg.Storage.AccessKey = getEnv("STORAGE_ACCESS_KEY", "")
	cfg.Storage.SecretKey = getEnv("STORAGE_SECRET_KEY", "")
	cfg.Storage.Bucket = getEnv("STORAGE_BUCKET", "mcreview-documents")
	cfg.Storage.Region = getEnv("STORAGE_REGION", "us-east-1")
	cfg.Storage.UseSSL = getEnv("STORAGE_USE_SSL", "false") == "true"
	cfg.Storage.URLExpiry = parseDuration(getEnv("STORAGE_URL_EXPIRY", "1h"), time.Hour)

	cfg.FeatureFlags.KeyPrefix = getEnv("FEATURE_FLAG_PREFIX", "mcreview:flags:")
	cfg.FeatureFlags.Defaults = map[string]bool{}
	for _, name := range splitList(getEnv("FEATURE_FLAGS_ON", "")) {
		cfg.FeatureFlags.Defaults[name] = true
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// overlayFile applies values from a YAML file on top of the env config.
// Keys missing in the file keep their env/default value.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if c.FeatureFlags.Defaults == nil {
		c.FeatureFlags.Defaults = map[string]bool{}
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
