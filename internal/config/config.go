package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"skillswap-auth/internal/util"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"

	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageScylla   = "scylla"

	MailLog    = "log"
	MailResend = "resend"
	MailSMTP   = "smtp"

	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

type Config struct {
	Environment   string
	Server        ServerConfig
	Logging       LoggingConfig
	Auth          AuthConfig
	Security      SecurityConfig
	Hashing       HashingConfig
	Storage       StorageConfig
	Postgres      PostgresConfig
	Scylla        ScyllaConfig
	Redis         RedisConfig
	RateLimit     RateLimitConfig
	Mail          MailConfig
	Audit         AuditConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	KMS           KMSConfig
	Encryption    EncryptionConfig
	Bucketing     BucketingConfig
	CORS          CORSConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	TLSPort      int
	EnableTLS    bool
	RequireHTTPS bool
	AutoCert     bool
	Domain       string
	Email        string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64
}

type LoggingConfig struct {
	Level  string
	Format string
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration
}

// SecurityConfig holds the account-security thresholds
type SecurityConfig struct {
	MaxFailedAttempts int
	LockDuration      time.Duration
	PasswordMaxAge    time.Duration
	PasswordHistory   int
	OTPTTL            time.Duration
}

type HashingConfig struct {
	Argon2MemoryCost  int
	Argon2TimeCost    int
	Argon2Parallelism int
	Pepper            string
}

type StorageConfig struct {
	Driver string
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrateOnStart  bool
}

type ScyllaConfig struct {
	Hosts          []string
	Keyspace       string
	Username       string
	Password       string
	Datacenter     string
	Timeout        time.Duration
	ConnectTimeout time.Duration
	NumConns       int
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type RateLimitConfig struct {
	Enabled  bool
	Backend  string
	Requests int
	Window   time.Duration
}

type MailConfig struct {
	Provider     string
	From         string
	AppName      string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
}

type AuditConfig struct {
	Sinks      []string
	BufferSize int
	Topic      string
	Index      string
	Table      string
}

type KafkaConfig struct {
	Brokers []string
	Timeout time.Duration
}

type ClickhouseConfig struct {
	URL      string
	Database string
	Username string
	Password string
	CAFile   string

	// BatchSize and FlushInterval bound how long audit rows wait before insert
	BatchSize     int
	FlushInterval time.Duration
}

type ElasticsearchConfig struct {
	URLs     []string
	Username string
	Password string
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

type EncryptionConfig struct {
	// LocalKey is a base64 encoded 32 byte key used to wrap data keys when KMS is disabled
	LocalKey string
}

type BucketingConfig struct {
	AccountBuckets int
	EventBuckets   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LoadConfig reads .env (when present) and the process environment
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		util.Debug("No .env file loaded", util.ErrorField(err))
	}

	env := strings.ToLower(util.GetEnv("APP_ENV", EnvDevelopment))

	return &Config{
		Environment: env,
		Server: ServerConfig{
			Host:         util.GetEnv("SERVER_HOST", ""),
			Port:         util.GetEnvInt("SERVER_PORT", 5000),
			TLSPort:      util.GetEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:    util.GetEnvBool("SERVER_ENABLE_TLS", false),
			RequireHTTPS: util.GetEnvBool("SERVER_REQUIRE_HTTPS", false),
			AutoCert:     util.GetEnvBool("SERVER_AUTOCERT", false),
			Domain:       util.GetEnv("SERVER_DOMAIN", "localhost"),
			Email:        util.GetEnv("SERVER_ACME_EMAIL", ""),
			CertFile:     util.GetEnv("SERVER_CERT_FILE", ""),
			KeyFile:      util.GetEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:  util.GetEnv("SERVER_AUTOCERT_DIR", "./certs"),
			ReadTimeout:  util.GetEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: util.GetEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  util.GetEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxBodyBytes: int64(util.GetEnvInt("SERVER_MAX_BODY_BYTES", 1<<20)),
		},
		Logging: LoggingConfig{
			Level:  util.GetEnv("LOG_LEVEL", "info"),
			Format: util.GetEnv("LOG_FORMAT", defaultLogFormat(env)),
		},
		Auth: AuthConfig{
			JWTSecret: util.GetEnv("JWT_SECRET", ""),
			JWTIssuer: util.GetEnv("JWT_ISSUER", "skillswap"),
			TokenTTL:  util.GetEnvDuration("JWT_TTL", 7*24*time.Hour),
		},
		Security: SecurityConfig{
			MaxFailedAttempts: util.GetEnvInt("SECURITY_MAX_FAILED_ATTEMPTS", 5),
			LockDuration:      util.GetEnvDuration("SECURITY_LOCK_DURATION", 10*time.Minute),
			PasswordMaxAge:    util.GetEnvDuration("SECURITY_PASSWORD_MAX_AGE", 90*24*time.Hour),
			PasswordHistory:   util.GetEnvInt("SECURITY_PASSWORD_HISTORY", 5),
			OTPTTL:            util.GetEnvDuration("SECURITY_OTP_TTL", 10*time.Minute),
		},
		Hashing: HashingConfig{
			Argon2MemoryCost:  util.GetEnvInt("ARGON2_MEMORY_KB", 64*1024),
			Argon2TimeCost:    util.GetEnvInt("ARGON2_ITERATIONS", 3),
			Argon2Parallelism: util.GetEnvInt("ARGON2_PARALLELISM", 2),
			Pepper:            util.GetEnv("PASSWORD_PEPPER", ""),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(util.GetEnv("STORAGE_DRIVER", StorageMemory)),
		},
		Postgres: PostgresConfig{
			DSN:             util.GetEnv("POSTGRES_DSN", ""),
			MaxOpenConns:    util.GetEnvInt("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    util.GetEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: util.GetEnvDuration("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
			MigrateOnStart:  util.GetEnvBool("POSTGRES_MIGRATE", true),
		},
		Scylla: ScyllaConfig{
			Hosts:          util.GetEnvSlice("SCYLLA_HOSTS", []string{"127.0.0.1"}),
			Keyspace:       util.GetEnv("SCYLLA_KEYSPACE", "skillswap_auth"),
			Username:       util.GetEnv("SCYLLA_USERNAME", ""),
			Password:       util.GetEnv("SCYLLA_PASSWORD", ""),
			Datacenter:     util.GetEnv("SCYLLA_DATACENTER", ""),
			Timeout:        util.GetEnvDuration("SCYLLA_TIMEOUT", 5*time.Second),
			ConnectTimeout: util.GetEnvDuration("SCYLLA_CONNECT_TIMEOUT", 10*time.Second),
			NumConns:       util.GetEnvInt("SCYLLA_NUM_CONNS", 2),
		},
		Redis: RedisConfig{
			URL:      util.GetEnv("REDIS_URL", "redis://localhost:6379/0"),
			Password: util.GetEnv("REDIS_PASSWORD", ""),
			DB:       util.GetEnvInt("REDIS_DB", 0),
			PoolSize: util.GetEnvInt("REDIS_POOL_SIZE", 20),
		},
		RateLimit: RateLimitConfig{
			Enabled:  util.GetEnvBool("RATE_LIMIT_ENABLED", true),
			Backend:  strings.ToLower(util.GetEnv("RATE_LIMIT_BACKEND", RateLimitMemory)),
			Requests: util.GetEnvInt("RATE_LIMIT_REQUESTS", 10),
			Window:   util.GetEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		Mail: MailConfig{
			Provider:     strings.ToLower(util.GetEnv("MAIL_PROVIDER", MailLog)),
			From:         util.GetEnv("MAIL_FROM", "SkillSwap <no-reply@skillswap.local>"),
			AppName:      util.GetEnv("MAIL_APP_NAME", "SkillSwap"),
			ResendAPIKey: util.GetEnv("RESEND_API_KEY", ""),
			SMTPHost:     util.GetEnv("SMTP_HOST", ""),
			SMTPPort:     util.GetEnvInt("SMTP_PORT", 587),
			SMTPUser:     util.GetEnv("SMTP_USER", ""),
			SMTPPassword: util.GetEnv("SMTP_PASSWORD", ""),
		},
		Audit: AuditConfig{
			Sinks:      util.GetEnvSlice("AUDIT_SINKS", []string{"log"}),
			BufferSize: util.GetEnvInt("AUDIT_BUFFER_SIZE", 1024),
			Topic:      util.GetEnv("AUDIT_KAFKA_TOPIC", "auth-events"),
			Index:      util.GetEnv("AUDIT_ES_INDEX", "auth-events"),
			Table:      util.GetEnv("AUDIT_CLICKHOUSE_TABLE", "auth_events"),
		},
		Kafka: KafkaConfig{
			Brokers: util.GetEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Timeout: util.GetEnvDuration("KAFKA_TIMEOUT", 10*time.Second),
		},
		Clickhouse: ClickhouseConfig{
			URL:      util.GetEnv("CLICKHOUSE_URL", "localhost:9000"),
			Database: util.GetEnv("CLICKHOUSE_DATABASE", "default"),
			Username: util.GetEnv("CLICKHOUSE_USERNAME", "default"),
			Password: util.GetEnv("CLICKHOUSE_PASSWORD", ""),
			CAFile:   util.GetEnv("CLICKHOUSE_CA_FILE", ""),

			BatchSize:     util.GetEnvInt("CLICKHOUSE_BATCH_SIZE", 100),
			FlushInterval: util.GetEnvDuration("CLICKHOUSE_FLUSH_INTERVAL", 5*time.Second),
		},
		Elasticsearch: ElasticsearchConfig{
			URLs:     util.GetEnvSlice("ELASTICSEARCH_URLS", []string{"http://localhost:9200"}),
			Username: util.GetEnv("ELASTICSEARCH_USERNAME", ""),
			Password: util.GetEnv("ELASTICSEARCH_PASSWORD", ""),
		},
		KMS: KMSConfig{
			Enabled: util.GetEnvBool("KMS_ENABLED", false),
			KeyID:   util.GetEnv("KMS_KEY_ID", ""),
			Region:  util.GetEnv("AWS_REGION", "us-east-1"),
		},
		Encryption: EncryptionConfig{
			LocalKey: util.GetEnv("ENCRYPTION_LOCAL_KEY", ""),
		},
		Bucketing: BucketingConfig{
			AccountBuckets: util.GetEnvInt("BUCKETING_ACCOUNT_BUCKETS", 1024),
			EventBuckets:   util.GetEnvInt("BUCKETING_EVENT_BUCKETS", 256),
		},
		CORS: CORSConfig{
			AllowedOrigins: util.GetEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
	}
}

func defaultLogFormat(env string) string {
	if env == EnvProduction {
		return "json"
	}
	return "console"
}

// Validate reports configuration that would leave the service unusable
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
	} else if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters in production"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}

	switch c.Storage.Driver {
	case StorageMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("memory storage is not allowed in production"))
		}
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for postgres storage"))
		}
	case StorageScylla:
		if len(c.Scylla.Hosts) == 0 {
			errs = append(errs, errors.New("SCYLLA_HOSTS is required for scylla storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}

	switch c.Mail.Provider {
	case MailLog:
		if c.IsProduction() {
			errs = append(errs, errors.New("log mail provider is not allowed in production"))
		}
	case MailResend:
		if c.Mail.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required for resend mail provider"))
		}
	case MailSMTP:
		if c.Mail.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for smtp mail provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_PROVIDER %q", c.Mail.Provider))
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Backend != RateLimitMemory && c.RateLimit.Backend != RateLimitRedis {
			errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimit.Backend))
		}
		if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("rate limit requests and window must be positive"))
		}
	}

	for _, sink := range c.Audit.Sinks {
		switch sink {
		case "log", "kafka", "clickhouse", "elasticsearch":
		default:
			errs = append(errs, fmt.Errorf("unknown audit sink %q", sink))
		}
	}

	if c.KMS.Enabled && c.KMS.KeyID == "" {
		errs = append(errs, errors.New("KMS_KEY_ID is required when KMS is enabled"))
	}
	if c.Security.MaxFailedAttempts <= 0 || c.Security.PasswordHistory <= 0 {
		errs = append(errs, errors.New("security thresholds must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// GetServerAddress returns the plain HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// HasAuditSink reports whether the named sink is enabled
func (c *Config) HasAuditSink(name string) bool {
	for _, s := range c.Audit.Sinks {
		if s == name {
			return true
		}
	}
	return false
}
