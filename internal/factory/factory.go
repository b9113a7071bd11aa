package factory

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"skillswap-auth/internal/audit"
	"skillswap-auth/internal/bucketing"
	"skillswap-auth/internal/client"
	"skillswap-auth/internal/config"
	"skillswap-auth/internal/encryption"
	"skillswap-auth/internal/handler"
	"skillswap-auth/internal/hashing"
	"skillswap-auth/internal/lockout"
	"skillswap-auth/internal/notify"
	"skillswap-auth/internal/otp"
	"skillswap-auth/internal/policy"
	"skillswap-auth/internal/ratelimit"
	"skillswap-auth/internal/repository"
	"skillswap-auth/internal/repository/memory"
	"skillswap-auth/internal/repository/postgres"
	redisrepo "skillswap-auth/internal/repository/redis"
	"skillswap-auth/internal/repository/scylla"
	"skillswap-auth/internal/service"
	"skillswap-auth/internal/tls"
	"skillswap-auth/internal/token"
	"skillswap-auth/internal/util"
)

const serviceName = "skillswap-auth"

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	postgresDB       *sql.DB
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Managers
	hasher            *hashing.Hasher
	encryptionManager *encryption.EncryptionManager
	bucketingManager  *bucketing.BucketingManager
	tokenIssuer       *token.Issuer

	accountRepository repository.AccountRepository
	mailer            notify.Sender
	recorder          *audit.Recorder
	clickhouseSink    *audit.ClickHouseSink
	limiter           ratelimit.Limiter
	serviceFactory    *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory loads configuration from the environment and builds every
// dependency it selects.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
	return NewFactoryWithConfig(cfg)
}

func NewFactoryWithConfig(cfg *config.Config) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	f := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		f.tlsManager = tls.NewTLSManager(cfg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"managers", f.initializeManagers},
		{"store", f.initializeStore},
		{"audit", f.initializeAudit},
		{"mailer", f.initializeMailer},
		{"rate limiter", f.initializeRateLimiter},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
	}

	f.serviceFactory = service.NewServiceFactory(service.Dependencies{
		Accounts: f.accountRepository,
		Hasher:   f.hasher,
		Policy: policy.NewEngine(f.hasher,
			policy.WithHistorySize(cfg.Security.PasswordHistory),
			policy.WithMaxAge(cfg.Security.PasswordMaxAge),
			policy.WithLogger(util.Get())),
		Guard:  lockout.NewGuard(cfg.Security.MaxFailedAttempts, cfg.Security.LockDuration),
		Codes:  otp.NewGenerator(cfg.Security.OTPTTL),
		Mailer: f.mailer,
		Tokens: f.tokenIssuer,
		Audit:  f.recorder,
	}, util.Get())

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("storage", cfg.Storage.Driver),
		util.String("mail_provider", cfg.Mail.Provider),
		util.Strings("audit_sinks", cfg.Audit.Sinks),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)
	return f, nil
}

// initializeManagers builds hashing, encryption, bucketing and token signing
func (f *Factory) initializeManagers(ctx context.Context) error {
	f.hasher = hashing.NewHasher(f.config)
	f.bucketingManager = bucketing.NewBucketingManager(f.config)

	em, err := encryption.NewEncryptionManager(ctx, f.config, nil)
	if err != nil {
		return err
	}
	f.encryptionManager = em

	secret := f.config.Auth.JWTSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		secret = base64.RawURLEncoding.EncodeToString(buf)
		util.Warn("JWT_SECRET not set, tokens will not survive a restart")
	}
	issuer, err := token.NewIssuer(secret,
		token.WithIssuer(f.config.Auth.JWTIssuer),
		token.WithTTL(f.config.Auth.TokenTTL))
	if err != nil {
		return err
	}
	f.tokenIssuer = issuer
	return nil
}

// initializeStore opens the configured credential store
func (f *Factory) initializeStore(ctx context.Context) error {
	switch f.config.Storage.Driver {
	case config.StoragePostgres:
		db, err := postgres.Open(ctx, f.config.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		f.postgresDB = db
		if f.config.Postgres.MigrateOnStart {
			if err := postgres.RunMigrations(ctx, db); err != nil {
				return fmt.Errorf("postgres migrations: %w", err)
			}
		}
		f.accountRepository = postgres.NewAccountRepository(db, f.encryptionManager)
		util.Info("PostgreSQL account store initialized")

	case config.StorageScylla:
		sc, err := scylla.NewScyllaClient(f.config)
		if err != nil {
			return fmt.Errorf("scylla: %w", err)
		}
		f.scyllaClient = sc
		f.accountRepository = scylla.NewAccountRepository(sc, f.bucketingManager, f.encryptionManager)
		util.Info("ScyllaDB account store initialized")

	default:
		f.accountRepository = memory.NewAccountRepository()
		util.Warn("Using in-memory account store, data is lost on restart")
	}
	return nil
}

// initializeAudit connects the enabled audit sinks. Outside production a sink
// that cannot connect is skipped with a warning.
func (f *Factory) initializeAudit(ctx context.Context) error {
	logger := util.Get()
	var sinks []audit.Sink
	var initErrors []error

	for _, name := range f.config.Audit.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, audit.NewLogSink(logger))

		case "kafka":
			producer, err := client.NewKafkaProducer(f.config)
			if err != nil {
				initErrors = append(initErrors, fmt.Errorf("kafka: %w", err))
				continue
			}
			f.kafkaProducer = producer
			sinks = append(sinks, audit.NewKafkaSink(producer, f.config.Audit.Topic))

		case "elasticsearch":
			es, err := client.NewElasticsearchClient(f.config)
			if err == nil {
				err = es.HealthCheck(ctx)
			}
			if err != nil {
				initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
				continue
			}
			f.esClient = es
			sinks = append(sinks, audit.NewElasticsearchSink(es, f.config.Audit.Index))

		case "clickhouse":
			ch, err := client.NewClickHouseClient(f.config)
			if err != nil {
				initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
				continue
			}
			f.clickhouseClient = ch
			sink, err := audit.NewClickHouseSink(ch, f.config.Audit.Table, logger,
				audit.WithBatchSize(f.config.Clickhouse.BatchSize),
				audit.WithFlushInterval(f.config.Clickhouse.FlushInterval))
			if err != nil {
				initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
				continue
			}
			if err := sink.EnsureTable(ctx); err != nil {
				_ = sink.Close()
				initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
				continue
			}
			f.clickhouseSink = sink
			sinks = append(sinks, sink)
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("audit sinks unavailable: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Audit sink initialization warning", util.ErrorField(err))
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, audit.NewLogSink(logger))
	}

	var sink audit.Sink = sinks[0]
	if len(sinks) > 1 {
		sink = audit.NewMultiSink(sinks...)
	}
	f.recorder = audit.NewRecorder(sink, f.bucketingManager, f.config.Audit.BufferSize, audit.WithLogger(logger))
	return nil
}

func (f *Factory) initializeMailer(context.Context) error {
	m := f.config.Mail
	switch m.Provider {
	case config.MailResend:
		f.mailer = notify.NewResendSender(m.ResendAPIKey, m.From, m.AppName, f.config.Security.OTPTTL)
	case config.MailSMTP:
		f.mailer = notify.NewSMTPSender(m.SMTPHost, m.SMTPPort, m.SMTPUser, m.SMTPPassword, m.From, m.AppName, f.config.Security.OTPTTL)
	default:
		f.mailer = notify.NewLogSender()
		util.Warn("Using log mail provider, codes are not delivered")
	}
	return nil
}

// initializeRateLimiter picks the shared Redis limiter or the in-process one
func (f *Factory) initializeRateLimiter(ctx context.Context) error {
	rl := f.config.RateLimit
	if !rl.Enabled {
		return nil
	}

	if rl.Backend == config.RateLimitRedis {
		rc, err := client.NewRedisClient(f.config)
		if err == nil {
			err = rc.HealthCheck(ctx)
			if err != nil {
				_ = rc.Close()
			}
		}
		if err == nil {
			f.redisClient = rc
			f.limiter = ratelimit.NewRedisLimiter(redisrepo.NewRateLimitCache(rc), rl.Requests, rl.Window)
			util.Info("Redis rate limiter initialized")
			return nil
		}
		if f.config.IsProduction() {
			return fmt.Errorf("redis: %w", err)
		}
		util.Warn("Redis unavailable, falling back to in-memory rate limiter", util.ErrorField(err))
	}

	f.limiter = ratelimit.NewMemoryLimiter(rl.Requests, rl.Window)
	return nil
}

// Handler builds the HTTP router
func (f *Factory) Handler() http.Handler {
	logger := util.Get()
	authHandler := handler.NewAuthHandler(f.ServiceFactory().AuthService(), logger)
	health := handler.NewHealthHandler(serviceName, f.HealthChecks(), logger)

	return handler.NewRouter(handler.RouterConfig{
		RequireHTTPS:   f.config.Server.RequireHTTPS,
		AllowedOrigins: f.config.CORS.AllowedOrigins,
		MaxBodyBytes:   f.config.Server.MaxBodyBytes,
		RequestTimeout: 60 * time.Second,
	}, authHandler, health, f.limiter, logger)
}

// HealthChecks returns the probes served on /health
func (f *Factory) HealthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"store": f.accountRepository.HealthCheck,
		"audit": f.recorder.HealthCheck,
	}
	if f.redisClient != nil {
		checks["redis"] = f.redisClient.HealthCheck
	}
	return checks
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		// flush queued security events before their sinks go away
		if f.serviceFactory != nil {
			f.serviceFactory.Cleanup()
		} else if f.recorder != nil {
			f.recorder.Close()
		}

		if f.clickhouseSink != nil {
			if err := f.clickhouseSink.Close(); err != nil {
				util.Error("Failed to flush ClickHouse audit batch", util.ErrorField(err))
			}
		}
		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}
		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}
		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}
		if f.postgresDB != nil {
			if err := f.postgresDB.Close(); err != nil {
				util.Error("Failed to close PostgreSQL pool", util.ErrorField(err))
			}
		}
		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}
		if f.encryptionManager != nil {
			f.encryptionManager.ClearCache()
		}

		util.Info("Factory shutdown completed")
		util.Sync()
	})
	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	return f.serviceFactory
}

func (f *Factory) AccountRepository() repository.AccountRepository {
	return f.accountRepository
}

func (f *Factory) Limiter() ratelimit.Limiter {
	return f.limiter
}
