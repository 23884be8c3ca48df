package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Engine   EngineConfig
	Swaps    SwapConfig
	Exports  ExportConfig
	Views    ViewConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig carries the scoring tables for the rota optimization engine.
// The weight constants are deployment configuration, not algorithm logic:
// units change per department without a code change.
type EngineConfig struct {
	ProposalTTL time.Duration

	// Preference-level score contributions. Unavailable is not scored;
	// it removes the candidate entirely.
	StronglyPreferWeight float64
	PreferWeight         float64
	NeutralWeight        float64
	AvoidWeight          float64

	// FairnessPenaltyFactor scales how strongly a user's accrual above the
	// roster mean counts against them when scoring candidates.
	FairnessPenaltyFactor float64

	// Fallback fairness weights applied when a shift type row carries none.
	DayShiftWeight     float64
	NightShiftWeight   float64
	WeekendShiftWeight float64
	OnCallShiftWeight  float64
}

// SwapConfig governs swap validation and listing lifecycle.
type SwapConfig struct {
	MinRestHours        int
	FairnessDriftLimit  float64
	ListingTTL          time.Duration
	ExpirySweepInterval time.Duration
}

// ExportConfig configures rota file exports.
type ExportConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// ViewConfig tunes cached read views of published rotas.
type ViewConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Engine = EngineConfig{
		ProposalTTL:           parseDuration(v.GetString("ENGINE_PROPOSAL_TTL"), 30*time.Minute),
		StronglyPreferWeight:  v.GetFloat64("ENGINE_WEIGHT_STRONGLY_PREFER"),
		PreferWeight:          v.GetFloat64("ENGINE_WEIGHT_PREFER"),
		NeutralWeight:         v.GetFloat64("ENGINE_WEIGHT_NEUTRAL"),
		AvoidWeight:           v.GetFloat64("ENGINE_WEIGHT_AVOID"),
		FairnessPenaltyFactor: v.GetFloat64("ENGINE_FAIRNESS_PENALTY_FACTOR"),
		DayShiftWeight:        v.GetFloat64("ENGINE_SHIFT_WEIGHT_DAY"),
		NightShiftWeight:      v.GetFloat64("ENGINE_SHIFT_WEIGHT_NIGHT"),
		WeekendShiftWeight:    v.GetFloat64("ENGINE_SHIFT_WEIGHT_WEEKEND"),
		OnCallShiftWeight:     v.GetFloat64("ENGINE_SHIFT_WEIGHT_ONCALL"),
	}

	cfg.Swaps = SwapConfig{
		MinRestHours:        v.GetInt("SWAP_MIN_REST_HOURS"),
		FairnessDriftLimit:  v.GetFloat64("SWAP_FAIRNESS_DRIFT_LIMIT"),
		ListingTTL:          parseDuration(v.GetString("SWAP_LISTING_TTL"), 7*24*time.Hour),
		ExpirySweepInterval: parseDuration(v.GetString("SWAP_EXPIRY_SWEEP_INTERVAL"), time.Hour),
	}

	cfg.Exports = ExportConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	cfg.Views = ViewConfig{
		CacheTTL: parseDuration(v.GetString("VIEWS_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "rota")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENGINE_PROPOSAL_TTL", "30m")
	v.SetDefault("ENGINE_WEIGHT_STRONGLY_PREFER", 2.0)
	v.SetDefault("ENGINE_WEIGHT_PREFER", 1.0)
	v.SetDefault("ENGINE_WEIGHT_NEUTRAL", 0.0)
	v.SetDefault("ENGINE_WEIGHT_AVOID", -2.0)
	v.SetDefault("ENGINE_FAIRNESS_PENALTY_FACTOR", 0.5)
	v.SetDefault("ENGINE_SHIFT_WEIGHT_DAY", 1.0)
	v.SetDefault("ENGINE_SHIFT_WEIGHT_NIGHT", 2.5)
	v.SetDefault("ENGINE_SHIFT_WEIGHT_WEEKEND", 2.0)
	v.SetDefault("ENGINE_SHIFT_WEIGHT_ONCALL", 1.5)

	v.SetDefault("SWAP_MIN_REST_HOURS", 11)
	v.SetDefault("SWAP_FAIRNESS_DRIFT_LIMIT", 3.0)
	v.SetDefault("SWAP_LISTING_TTL", "168h")
	v.SetDefault("SWAP_EXPIRY_SWEEP_INTERVAL", "1h")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)

	v.SetDefault("VIEWS_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
