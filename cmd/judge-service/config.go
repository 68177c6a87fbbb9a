package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"offlinejudge/internal/common/cache"
	"offlinejudge/internal/common/http/middleware"
	"offlinejudge/internal/common/mq"
	"offlinejudge/internal/common/storage"
	"offlinejudge/internal/judge/controller"
	"offlinejudge/internal/judge/sandbox"
	"offlinejudge/internal/judge/sandbox/engine"
	"offlinejudge/internal/judge/sandbox/profile"
	"offlinejudge/internal/judge/sandbox/spec"
	"offlinejudge/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultProblemsPath    = "data/database.json"
	defaultLanguageID      = "python3"
	defaultStatusTTL       = 24 * time.Hour
	defaultStatusTimeout   = 2 * time.Second
	defaultRunTopic        = "judge.runs"
	defaultConsumerGroup   = "offlinejudge"
	envPrefix              = "JUDGE_"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	MetricsPath  string        `yaml:"metricsPath"`

	CORS middleware.CORSConfig `yaml:"cors"`
}

// RateLimitConfig caps run submissions per client and overall. It needs redis.
type RateLimitConfig struct {
	middleware.RateLimitPolicy `yaml:",inline"`
	Timeout                    time.Duration `yaml:"timeout"`
}

// Enabled reports whether any limit is set.
func (r RateLimitConfig) Enabled() bool {
	return r.IPMax > 0 || r.RouteMax > 0
}

// ProblemsConfig selects where the problem database is read from. Object
// storage is used when MinIO is configured, the local Path otherwise.
type ProblemsConfig struct {
	Path           string              `yaml:"path"`
	ReloadInterval time.Duration       `yaml:"reloadInterval"`
	MinIO          storage.MinIOConfig `yaml:"minio"`
	SHA256         string              `yaml:"sha256"`
	Timeout        time.Duration       `yaml:"timeout"`
}

// JudgeConfig holds per-run judging settings.
type JudgeConfig struct {
	WorkRoot         string             `yaml:"workRoot"`
	LanguageID       string             `yaml:"languageId"`
	LoadTimeout      time.Duration      `yaml:"loadTimeout"`
	RecursionLimit   int                `yaml:"recursionLimit"`
	MaxResponseBytes int                `yaml:"maxResponseBytes"`
	MaxCodeBytes     int                `yaml:"maxCodeBytes"`
	FloatTolerance   float64            `yaml:"floatTolerance"`
	Limits           spec.ResourceLimit `yaml:"limits"`
}

// WorkerConfig holds worker pool settings.
type WorkerConfig struct {
	PoolSize  int           `yaml:"poolSize"`
	QueueWait time.Duration `yaml:"queueWait"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SandboxConfig holds sandbox engine settings.
type SandboxConfig struct {
	CgroupRoot        string `yaml:"cgroupRoot"`
	SeccompDir        string `yaml:"seccompDir"`
	HelperPath        string `yaml:"helperPath"`
	StderrMaxBytes    int64  `yaml:"stderrMaxBytes"`
	EnableSeccomp     bool   `yaml:"enableSeccomp"`
	EnableCgroup      bool   `yaml:"enableCgroup"`
	DisableNamespaces bool   `yaml:"disableNamespaces"`
}

// LanguageConfig holds language definitions.
type LanguageConfig struct {
	Languages []profile.LanguageSpec `yaml:"languages"`
	Profiles  []profile.TaskProfile  `yaml:"profiles"`
}

// KafkaConfig holds the asynchronous run queue settings.
type KafkaConfig struct {
	mq.KafkaConfig `yaml:",inline"`
	Topic          string        `yaml:"topic"`
	ConsumerGroup  string        `yaml:"consumerGroup"`
	Concurrency    int           `yaml:"concurrency"`
	MaxRetries     int           `yaml:"maxRetries"`
	RetryDelay     time.Duration `yaml:"retryDelay"`
	RetryTopic     string        `yaml:"retryTopic"`
	PoolRetryMax   int           `yaml:"poolRetryMax"`
	PoolRetryBase  time.Duration `yaml:"poolRetryBaseDelay"`
	PoolRetryMaxD  time.Duration `yaml:"poolRetryMaxDelay"`
	DeadLetter     string        `yaml:"deadLetterTopic"`
	MessageTTL     time.Duration `yaml:"messageTTL"`
}

// Enabled reports whether brokers are configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// StatusConfig holds run status persistence settings.
type StatusConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	Timeout time.Duration `yaml:"timeout"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	Server    ServerConfig            `yaml:"server"`
	Logger    logger.Config           `yaml:"logger"`
	Problems  ProblemsConfig          `yaml:"problems"`
	Judge     JudgeConfig             `yaml:"judge"`
	Worker    WorkerConfig            `yaml:"worker"`
	Sandbox   SandboxConfig           `yaml:"sandbox"`
	Language  LanguageConfig          `yaml:"language"`
	Stream    controller.StreamConfig `yaml:"stream"`
	Redis     cache.RedisConfig       `yaml:"redis"`
	Kafka     KafkaConfig             `yaml:"kafka"`
	Status    StatusConfig            `yaml:"status"`
	RateLimit RateLimitConfig         `yaml:"rateLimit"`
}

// AsyncEnabled reports whether both the run queue and the status store are configured.
func (c *AppConfig) AsyncEnabled() bool {
	return c.Kafka.Enabled() && c.Redis.Addr != ""
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

// loadAppConfig reads path (optional when missing), loads envFile into the
// environment when present, applies JUDGE_* overrides and fills defaults.
func loadAppConfig(path, envFile string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file failed: %w", err)
		}
	}
	if err := applyEnvOverrides(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type lookupFunc func(key string) (string, bool)

func applyEnvOverrides(cfg *AppConfig, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("HTTP_ADDR", &cfg.Server.Addr)
	str("LOG_LEVEL", &cfg.Logger.Level)
	str("LOG_FORMAT", &cfg.Logger.Format)
	str("PROBLEMS_PATH", &cfg.Problems.Path)
	str("WORK_ROOT", &cfg.Judge.WorkRoot)
	str("HELPER_PATH", &cfg.Sandbox.HelperPath)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("MINIO_ENDPOINT", &cfg.Problems.MinIO.Endpoint)
	str("MINIO_ACCESS_KEY", &cfg.Problems.MinIO.AccessKey)
	str("MINIO_SECRET_KEY", &cfg.Problems.MinIO.SecretKey)

	if v, ok := lookup(envPrefix + "KAFKA_BROKERS"); ok && v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup(envPrefix + "POOL_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPOOL_SIZE: %w", envPrefix, err)
		}
		cfg.Worker.PoolSize = n
	}
	if v, ok := lookup(envPrefix + "CASE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sCASE_TIMEOUT: %w", envPrefix, err)
		}
		cfg.Judge.Limits.WallTimeMs = d.Milliseconds()
	}
	if v, ok := lookup(envPrefix + "FLOAT_TOLERANCE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sFLOAT_TOLERANCE: %w", envPrefix, err)
		}
		cfg.Judge.FloatTolerance = f
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Problems.Path == "" {
		cfg.Problems.Path = defaultProblemsPath
	}
	if cfg.Judge.LanguageID == "" {
		cfg.Judge.LanguageID = defaultLanguageID
	}
	if cfg.Judge.WorkRoot == "" {
		cfg.Judge.WorkRoot = os.TempDir()
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 1
	}
	if len(cfg.Language.Languages) == 0 {
		cfg.Language.Languages = []profile.LanguageSpec{profile.Python3()}
	}
	if len(cfg.Language.Profiles) == 0 {
		cfg.Language.Profiles = []profile.TaskProfile{profile.DefaultRunProfile(cfg.Judge.LanguageID)}
	}
	if cfg.Redis.Addr != "" {
		cfg.Redis.ApplyDefaults()
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.Timeout == 0 {
		cfg.RateLimit.Timeout = time.Second
	}
	if cfg.Status.TTL == 0 {
		cfg.Status.TTL = defaultStatusTTL
	}
	if cfg.Status.Timeout == 0 {
		cfg.Status.Timeout = defaultStatusTimeout
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = defaultRunTopic
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = defaultConsumerGroup
	}
	if cfg.Kafka.Concurrency <= 0 {
		cfg.Kafka.Concurrency = cfg.Worker.PoolSize
	}
	if cfg.Kafka.RetryTopic == "" {
		cfg.Kafka.RetryTopic = cfg.Kafka.Topic
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
}

func validate(cfg *AppConfig) error {
	if cfg.Judge.FloatTolerance < 0 {
		return fmt.Errorf("judge.floatTolerance must not be negative")
	}
	if cfg.Sandbox.EnableCgroup && cfg.Sandbox.CgroupRoot == "" {
		return fmt.Errorf("sandbox.cgroupRoot is required when cgroups are enabled")
	}
	if cfg.Kafka.Enabled() && cfg.Redis.Addr == "" {
		return fmt.Errorf("asynchronous runs need both kafka.brokers and redis.addr")
	}
	if cfg.RateLimit.Enabled() && cfg.Redis.Addr == "" {
		return fmt.Errorf("rateLimit needs redis.addr")
	}
	return nil
}

func (s SandboxConfig) toEngineConfig() engine.Config {
	return engine.Config{
		CgroupRoot:        s.CgroupRoot,
		SeccompDir:        s.SeccompDir,
		HelperPath:        s.HelperPath,
		StderrMaxBytes:    s.StderrMaxBytes,
		EnableSeccomp:     s.EnableSeccomp,
		EnableCgroup:      s.EnableCgroup,
		DisableNamespaces: s.DisableNamespaces,
	}
}

func (j JudgeConfig) toLoaderConfig() sandbox.LoaderConfig {
	return sandbox.LoaderConfig{
		WorkRoot:         j.WorkRoot,
		LoadTimeout:      j.LoadTimeout,
		RecursionLimit:   j.RecursionLimit,
		MaxResponseBytes: j.MaxResponseBytes,
		Limits:           j.Limits,
	}
}
