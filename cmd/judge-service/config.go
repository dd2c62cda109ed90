package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"codejudge/internal/common/cache"
	commonmw "codejudge/internal/common/http/middleware"
	"codejudge/internal/common/mq"
	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/service"
	"codejudge/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultBodyLimitBytes  = 16 << 20
	defaultWorkerTimeout   = 10 * time.Minute
	defaultResultTTL       = 10 * time.Minute
	defaultStatusTTL       = 30 * time.Minute
	defaultStatusTimeout   = time.Second
	defaultMetricsPath     = "/metrics"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	BodyLimitBytes int64         `yaml:"bodyLimitBytes"`
}

// KafkaConfig holds Kafka settings. Asynchronous judging is off without brokers.
type KafkaConfig struct {
	mq.KafkaConfig `yaml:",inline"`

	RequestTopic  string        `yaml:"requestTopic"`
	ResultTopic   string        `yaml:"resultTopic"`
	ConsumerGroup string        `yaml:"consumerGroup"`
	Concurrency   int           `yaml:"concurrency"`
	MaxRetries    int           `yaml:"maxRetries"`
	RetryDelay    time.Duration `yaml:"retryDelay"`
	MessageTTL    time.Duration `yaml:"messageTTL"`
	RetryTopic    string        `yaml:"retryTopic"`
	DeadLetter    string        `yaml:"deadLetterTopic"`
	PoolRetryMax  int           `yaml:"poolRetryMax"`
	PoolRetryBase time.Duration `yaml:"poolRetryBaseDelay"`
	PoolRetryMaxD time.Duration `yaml:"poolRetryMaxDelay"`
}

// Enabled reports whether Kafka is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// CacheConfig holds result cache and task status settings.
type CacheConfig struct {
	ResultTTL     time.Duration `yaml:"resultTTL"`
	StatusTTL     time.Duration `yaml:"statusTTL"`
	StatusTimeout time.Duration `yaml:"statusTimeout"`
}

// WorkerConfig holds worker pool settings.
type WorkerConfig struct {
	PoolSize       int           `yaml:"poolSize"`
	Timeout        time.Duration `yaml:"timeout"`
	AcquireTimeout time.Duration `yaml:"acquireTimeout"`
}

// JudgeConfig holds sandbox settings.
type JudgeConfig struct {
	WorkRoot         string         `yaml:"workRoot"`
	CompileTimeout   time.Duration  `yaml:"compileTimeout"`
	OutputLimitBytes int64          `yaml:"outputLimitBytes"`
	WaitDelay        time.Duration  `yaml:"waitDelay"`
	Limits           service.Limits `yaml:"limits"`
}

// LanguageConfig adds to or overrides the built-in languages.
type LanguageConfig struct {
	Languages []profile.LanguageSpec `yaml:"languages"`
}

// RateLimitConfig limits the judging endpoints. It needs Redis.
type RateLimitConfig struct {
	Execute commonmw.RateLimitPolicy `yaml:"execute"`
	Submit  commonmw.RateLimitPolicy `yaml:"submit"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	Server    ServerConfig        `yaml:"server"`
	Logger    logger.Config       `yaml:"logger"`
	Redis     cache.RedisConfig   `yaml:"redis"`
	Kafka     KafkaConfig         `yaml:"kafka"`
	Cache     CacheConfig         `yaml:"cache"`
	Worker    WorkerConfig        `yaml:"worker"`
	Judge     JudgeConfig         `yaml:"judge"`
	Language  LanguageConfig      `yaml:"language"`
	CORS      commonmw.CORSConfig `yaml:"cors"`
	RateLimit RateLimitConfig     `yaml:"rateLimit"`
	Metrics   MetricsConfig       `yaml:"metrics"`
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Logger:  logger.Config{Level: "info", Format: "json", OutputPath: "stdout", ErrorPath: "stderr"},
		Metrics: MetricsConfig{Enabled: true},
	}
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads path, applies JUDGE_* environment overrides and fills
// defaults. A missing file yields the defaults.
func loadAppConfig(path string) (*AppConfig, error) {
	cfg := defaultAppConfig()
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := applyEnvOverrides(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *AppConfig, lookup func(string) (string, bool)) error {
	if v, ok := lookup("JUDGE_HTTP_ADDR"); ok && v != "" {
		cfg.Server.Addr = v
	}
	if v, ok := lookup("JUDGE_WORK_ROOT"); ok && v != "" {
		cfg.Judge.WorkRoot = v
	}
	if v, ok := lookup("JUDGE_LOG_LEVEL"); ok && v != "" {
		cfg.Logger.Level = v
	}
	if v, ok := lookup("JUDGE_REDIS_ADDR"); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := lookup("JUDGE_REDIS_PASSWORD"); ok {
		cfg.Redis.Password = v
	}
	if v, ok := lookup("JUDGE_KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup("JUDGE_POOL_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid JUDGE_POOL_SIZE %q: %w", v, err)
		}
		cfg.Worker.PoolSize = n
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.BodyLimitBytes == 0 {
		cfg.Server.BodyLimitBytes = defaultBodyLimitBytes
	}
	if cfg.Judge.WorkRoot == "" {
		cfg.Judge.WorkRoot = filepath.Join(os.TempDir(), "codejudge")
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = runtime.NumCPU()
	}
	if cfg.Worker.Timeout == 0 {
		cfg.Worker.Timeout = defaultWorkerTimeout
	}
	if cfg.Cache.ResultTTL == 0 {
		cfg.Cache.ResultTTL = defaultResultTTL
	}
	if cfg.Cache.StatusTTL == 0 {
		cfg.Cache.StatusTTL = defaultStatusTTL
	}
	if cfg.Cache.StatusTimeout == 0 {
		cfg.Cache.StatusTimeout = defaultStatusTimeout
	}
	if cfg.Redis.Addr != "" {
		applyRedisDefaults(&cfg.Redis)
	}
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = "judge.request"
	}
	if cfg.Kafka.ResultTopic == "" {
		cfg.Kafka.ResultTopic = "judge.result"
	}
	if cfg.Kafka.RetryTopic == "" {
		cfg.Kafka.RetryTopic = cfg.Kafka.RequestTopic
	}
	if cfg.Kafka.Concurrency <= 0 {
		cfg.Kafka.Concurrency = cfg.Worker.PoolSize
	}
	if cfg.Kafka.PoolRetryMax <= 0 {
		cfg.Kafka.PoolRetryMax = 5
	}
	if cfg.Kafka.PoolRetryBase == 0 {
		cfg.Kafka.PoolRetryBase = time.Second
	}
	if cfg.Kafka.PoolRetryMaxD == 0 {
		cfg.Kafka.PoolRetryMaxD = 30 * time.Second
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
}

func validateConfig(cfg *AppConfig) error {
	if cfg.Kafka.Enabled() && cfg.Redis.Addr == "" {
		return errors.New("kafka judging needs redis for task status")
	}
	if (cfg.RateLimit.Execute.Enabled() || cfg.RateLimit.Submit.Enabled()) && cfg.Redis.Addr == "" {
		return errors.New("rate limiting needs redis")
	}
	for _, lang := range cfg.Language.Languages {
		if strings.TrimSpace(lang.ID) == "" {
			return errors.New("language id is required")
		}
	}
	return nil
}

func (j JudgeConfig) toEngineConfig() engine.Config {
	return engine.Config{
		OutputLimitBytes: j.OutputLimitBytes,
		WaitDelay:        j.WaitDelay,
	}
}

// languages returns the built-in table followed by configured entries, so
// configured specs override built-ins with the same id.
func (l LanguageConfig) languages() []profile.LanguageSpec {
	return append(profile.DefaultLanguages(), l.Languages...)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
