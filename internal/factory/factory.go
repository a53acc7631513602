package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"eventsite-service/internal/audit"
	"eventsite-service/internal/bucketing"
	"eventsite-service/internal/client"
	"eventsite-service/internal/config"
	"eventsite-service/internal/encryption"
	"eventsite-service/internal/handler"
	"eventsite-service/internal/hashing"
	"eventsite-service/internal/repository/postgres"
	redisrepo "eventsite-service/internal/repository/redis"
	"eventsite-service/internal/service"
	"eventsite-service/internal/sms"
	"eventsite-service/internal/token"
	"eventsite-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config *config.Config

	// Clients
	redisClient      *client.RedisClient
	postgresClient   *client.PostgresClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Managers
	passwordHasher    *hashing.PasswordHasher
	encryptionManager *encryption.Manager
	bucketingManager  *bucketing.Manager

	// Repositories and caches
	otpRepository        *postgres.OTPRepository
	userRepository       *postgres.UserRepository
	courseRepository     *postgres.CourseRepository
	galleryRepository    *postgres.GalleryRepository
	scheduleRepository   *postgres.ScheduleRepository
	settingsRepository   *postgres.SettingsRepository
	enrollmentRepository *postgres.EnrollmentRepository
	rateLimitCache       *redisrepo.RateLimitCache
	sessionCache         *redisrepo.SessionCache

	// Services
	jwtService        *token.JWTService
	smsProvider       sms.Provider
	auditPublisher    *audit.Publisher
	authService       *service.AuthService
	catalogService    *service.CatalogService
	enrollmentService *service.EnrollmentService
	adminService      *service.AdminService
	sweeper           *service.Sweeper

	closeOnce sync.Once
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{config: cfg}

	if err := f.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	f.initializeManagers()
	f.initializeRepositories()
	f.initializeServices()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)
	return f, nil
}

// initializeClients initializes all external service clients with health
// checks. Postgres and Redis are mandatory; the audit and search backends
// degrade gracefully outside production.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := client.NewPostgresClient(f.config, util.Get())
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	f.postgresClient = pg
	if err := f.postgresClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("postgres health check: %w", err)
	}
	if err := f.postgresClient.ApplyMigrations(ctx); err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}
	util.Info("Postgres client initialized and healthy")

	rc, err := client.NewRedisClient(f.config, util.Get())
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	f.redisClient = rc
	if err := f.redisClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("redis health check: %w", err)
	}
	util.Info("Redis client initialized and healthy")

	var softErrors []error

	if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
		softErrors = append(softErrors, fmt.Errorf("kafka: %w", err))
	} else {
		f.kafkaProducer = producer
		util.Info("Kafka producer initialized")
	}

	if es, err := client.NewElasticsearchClient(f.config, util.Get()); err != nil {
		softErrors = append(softErrors, fmt.Errorf("elasticsearch: %w", err))
	} else if err := es.HealthCheck(); err != nil {
		softErrors = append(softErrors, fmt.Errorf("elasticsearch health check: %w", err))
	} else {
		f.esClient = es
		util.Info("Elasticsearch client initialized and healthy")
	}

	if ch, err := client.NewClickHouseClient(f.config, util.Get()); err != nil {
		softErrors = append(softErrors, fmt.Errorf("clickhouse: %w", err))
	} else if err := ch.HealthCheck(ctx); err != nil {
		softErrors = append(softErrors, fmt.Errorf("clickhouse health check: %w", err))
	} else {
		f.clickhouseClient = ch
		util.Info("ClickHouse client initialized and healthy")
	}

	if len(softErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", softErrors)
		}
		for _, err := range softErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}
	return nil
}

// initializeManagers initializes hashing, encryption, and bucketing managers
func (f *Factory) initializeManagers() {
	f.passwordHasher = hashing.NewPasswordHasher(f.config)

	var kmsClient *kms.Client
	if f.config.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			util.Warn("KMS disabled: failed to load AWS config", util.ErrorField(err))
		} else {
			kmsClient = kms.NewFromConfig(awsCfg)
		}
	}
	f.encryptionManager = encryption.NewManager(f.config, kmsClient)
	f.bucketingManager = bucketing.NewManager(f.config)
}

func (f *Factory) initializeRepositories() {
	db := f.postgresClient.Pool
	f.otpRepository = postgres.NewOTPRepository(db)
	f.userRepository = postgres.NewUserRepository(db)
	f.courseRepository = postgres.NewCourseRepository(db)
	f.galleryRepository = postgres.NewGalleryRepository(db)
	f.scheduleRepository = postgres.NewScheduleRepository(db)
	f.settingsRepository = postgres.NewSettingsRepository(db)
	f.enrollmentRepository = postgres.NewEnrollmentRepository(db)

	f.rateLimitCache = redisrepo.NewRateLimitCache(f.redisClient, f.config.OTP.ResendWindow)
	f.sessionCache = redisrepo.NewSessionCache(f.redisClient, f.config.OTP.HandoffTTL)
}

func (f *Factory) initializeServices() {
	f.jwtService = token.NewJWTService(f.config)
	f.smsProvider = sms.NewProvider(f.config)
	f.auditPublisher = audit.NewPublisher(f.kafkaProducer, f.clickhouseClient, f.bucketingManager)

	f.authService = service.NewAuthService(
		f.config,
		f.otpRepository,
		f.userRepository,
		f.rateLimitCache,
		f.sessionCache,
		f.jwtService,
		f.passwordHasher,
		f.smsProvider,
		f.auditPublisher,
		f.encryptionManager,
	)
	f.catalogService = service.NewCatalogService(
		f.courseRepository,
		f.galleryRepository,
		f.scheduleRepository,
		f.settingsRepository,
		f.searcherOrNil(),
	)
	f.enrollmentService = service.NewEnrollmentService(
		f.enrollmentRepository,
		f.courseRepository,
		f.settingsRepository,
	)
	f.adminService = service.NewAdminService(
		f.userRepository,
		f.courseRepository,
		f.enrollmentRepository,
		f.otpRepository,
	)
	f.sweeper = service.NewSweeper(f.otpRepository, f.config.OTP.SweepInterval, f.config.OTP.Retention)
}

// searcherOrNil keeps a typed nil out of the CourseSearcher interface when
// Elasticsearch is down.
func (f *Factory) searcherOrNil() service.CourseSearcher {
	if f.esClient == nil {
		return nil
	}
	return f.esClient
}

// Handlers builds the HTTP handler set wired to the services.
func (f *Factory) Handlers() *handler.Handlers {
	return &handler.Handlers{
		Auth:        handler.NewAuthHandler(f.authService, f.userRepository),
		Catalog:     handler.NewCatalogHandler(f.catalogService),
		Enrollments: handler.NewEnrollmentHandler(f.enrollmentService),
		Admin:       handler.NewAdminHandler(f.adminService),
		Middleware:  handler.NewAuthMiddleware(f.jwtService, f.sessionCache, f.userRepository),
	}
}

func (f *Factory) Config() *config.Config { return f.config }

func (f *Factory) Sweeper() *service.Sweeper { return f.sweeper }

// HealthCheck probes every initialized backend.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.postgresClient != nil {
		if err := f.postgresClient.HealthCheck(ctx); err != nil {
			healthErrors["postgres"] = err
		}
	} else {
		healthErrors["postgres"] = fmt.Errorf("postgres client not initialized")
	}

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	} else {
		healthErrors["redis"] = fmt.Errorf("redis client not initialized")
	}

	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}
	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}
	return healthErrors
}

// Close releases every held resource exactly once.
func (f *Factory) Close() error {
	var closeErr error
	f.closeOnce.Do(func() {
		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Warn("failed to close kafka producer", util.ErrorField(err))
				closeErr = err
			}
		}
		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Warn("failed to close clickhouse client", util.ErrorField(err))
				closeErr = err
			}
		}
		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Warn("failed to close redis client", util.ErrorField(err))
				closeErr = err
			}
		}
		if f.postgresClient != nil {
			f.postgresClient.Close()
		}
		util.Info("Factory closed")
	})
	return closeErr
}
