package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Session  SessionConfig  `mapstructure:"session"`
	Views    ViewsConfig    `mapstructure:"views"`
	Banner   BannerConfig   `mapstructure:"banner"`
	Reward   RewardConfig   `mapstructure:"reward"`
	Quiz     QuizConfig     `mapstructure:"quiz"`
	Activity ActivityConfig `mapstructure:"activity"`
}

type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Debug       bool   `mapstructure:"debug"`
	AdminKey    string `mapstructure:"admin_key"`
	FrontendURL string `mapstructure:"frontend_url"`
}

// BackendConfig points at the external Takeoff REST API.
type BackendConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | sqlite_memory | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the SSE origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AdminWhitelist []string `mapstructure:"admin_whitelist"`
}

type SessionConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	SweepCron string        `mapstructure:"sweep_cron"`
}

// ViewsConfig tunes the per-entity view cache and calendar windows.
type ViewsConfig struct {
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	InFlightTTL       time.Duration `mapstructure:"inflight_ttl"`
	CalendarDaysAhead int           `mapstructure:"calendar_days_ahead"`
	SyncDaysAhead     int           `mapstructure:"sync_days_ahead"`
	Timezone          string        `mapstructure:"timezone"`
}

type BannerConfig struct {
	Success time.Duration `mapstructure:"success"`
	Info    time.Duration `mapstructure:"info"`
	Error   time.Duration `mapstructure:"error"`
}

// RewardConfig holds the offsets of each celebration phase, measured
// from the moment the sequence starts.
type RewardConfig struct {
	Reveal        time.Duration `mapstructure:"reveal"`
	Count         time.Duration `mapstructure:"count"`
	Fade          time.Duration `mapstructure:"fade"`
	Done          time.Duration `mapstructure:"done"`
	CountDuration time.Duration `mapstructure:"count_duration"`
	Tick          time.Duration `mapstructure:"tick"`
	Toast         time.Duration `mapstructure:"toast"`
}

type QuizConfig struct {
	AdvanceDelay time.Duration `mapstructure:"advance_delay"`
}

type ActivityConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	Retention     time.Duration `mapstructure:"retention"`
	PruneCron     string        `mapstructure:"prune_cron"`
}

// Load reads config from the given YAML file path. Any key may be
// overridden by an environment variable such as TAKEOFF_BACKEND_BASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("takeoff")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.rate_limit_rps", 50)
	v.SetDefault("backend.rate_limit_burst", 100)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/takeoff.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("session.ttl", "72h")
	v.SetDefault("session.sweep_cron", "*/10 * * * *")
	v.SetDefault("views.cache_ttl", "2m")
	v.SetDefault("views.inflight_ttl", "30s")
	v.SetDefault("views.calendar_days_ahead", 90)
	v.SetDefault("views.sync_days_ahead", 30)
	v.SetDefault("views.timezone", "Local")
	v.SetDefault("banner.success", "3s")
	v.SetDefault("banner.info", "5s")
	v.SetDefault("banner.error", "8s")
	v.SetDefault("reward.reveal", "300ms")
	v.SetDefault("reward.count", "800ms")
	v.SetDefault("reward.fade", "3500ms")
	v.SetDefault("reward.done", "4500ms")
	v.SetDefault("reward.count_duration", "1500ms")
	v.SetDefault("reward.tick", "100ms")
	v.SetDefault("reward.toast", "2s")
	v.SetDefault("quiz.advance_delay", "200ms")
	v.SetDefault("activity.batch_size", 100)
	v.SetDefault("activity.flush_interval", "2s")
	v.SetDefault("activity.retention", "720h")
	v.SetDefault("activity.prune_cron", "30 3 * * *")
}
