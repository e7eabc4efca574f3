// Package server assembles clover's dependencies and HTTP surface
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/dependent"
	"github.com/Ramsey-B/clover/internal/repositories/lead"
	"github.com/Ramsey-B/clover/internal/repositories/mergeaudit"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

const mergeLockPrefix = "clover:merge:"

// App holds the connected dependencies and the services built on them.
// Redis, the graph database and Kafka are optional and stay nil when unconfigured.
type App struct {
	cfg     *config.Config
	logger  ectologger.Logger
	startup *startup.Startup
	migrate bool

	DB       database.DB
	Redis    *redis.Client
	Graph    *graph.Client
	Producer *kafka.Producer
	tracer   *sdktrace.TracerProvider

	Leads    *lead.Repository
	Audits   *mergeaudit.Repository
	Engine   *matching.Engine
	Executor *merging.Executor
	Lineage  *graph.LineageService
}

type AppOption func(*App)

// WithMigrations applies pending migrations when postgres starts
func WithMigrations() AppOption {
	return func(a *App) { a.migrate = true }
}

func NewApp(cfg *config.Config, logger ectologger.Logger, opts ...AppOption) *App {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.startup.AddDependency(&startup.Dependency{Name: "tracing", StartFn: a.startTracing, StopFn: a.stopTracing})
	a.startup.AddDependency(&startup.Dependency{Name: "postgres", StartFn: a.startPostgres, StopFn: a.stopPostgres})

	services := []string{"tracing", "postgres"}
	if cfg.RedisHost != "" {
		a.startup.AddDependency(&startup.Dependency{Name: "redis", StartFn: a.startRedis, StopFn: a.stopRedis})
		services = append(services, "redis")
	}
	if cfg.GraphDBHost != "" {
		a.startup.AddDependency(&startup.Dependency{Name: "graph", StartFn: a.startGraph, StopFn: a.stopGraph})
		services = append(services, "graph")
	}
	if len(cfg.KafkaBrokers) > 0 {
		a.startup.AddDependency(&startup.Dependency{Name: "kafka", StartFn: a.startKafka, StopFn: a.stopKafka})
		services = append(services, "kafka")
	}
	a.startup.AddDependency(&startup.Dependency{Name: "services", Requires: services, StartFn: a.buildServices})

	return a
}

// Start connects every configured dependency, retrying with backoff
func (a *App) Start(ctx context.Context) error {
	return a.startup.Start(ctx)
}

// Stop disconnects dependencies, dependents first
func (a *App) Stop(ctx context.Context) error {
	return a.startup.Stop(ctx)
}

func (a *App) startTracing(ctx context.Context) error {
	exporter, err := exporters.New(ctx, exporters.Config{
		Kind:     a.cfg.TracingExporter,
		Endpoint: a.cfg.OTLPEndpoint,
		Insecure: a.cfg.OTLPInsecure,
	}, a.logger)
	if err != nil {
		return err
	}
	if exporter == nil {
		return nil
	}
	a.tracer = tracing.Install(a.cfg.AppName, exporter)
	return nil
}

func (a *App) stopTracing(ctx context.Context) error {
	if a.tracer == nil {
		return nil
	}
	return a.tracer.Shutdown(ctx)
}

func (a *App) startPostgres(ctx context.Context) error {
	db, err := database.Open(ctx, database.Config{
		URL:             a.cfg.PostgresURL(),
		MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
	}, a.logger)
	if err != nil {
		return err
	}
	a.DB = db

	if a.migrate {
		return a.Migrate()
	}
	return nil
}

// Migrate applies the configured migrations to the open database
func (a *App) Migrate() error {
	if a.DB == nil {
		return fmt.Errorf("postgres is not connected")
	}
	return database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(max(0, a.cfg.DatabaseMigrationVersion)),
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	}).Migrate(a.DB.SQL())
}

func (a *App) stopPostgres(context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func (a *App) startRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, redis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.Redis = client
	return nil
}

func (a *App) stopRedis(context.Context) error {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Close()
}

func (a *App) startGraph(ctx context.Context) error {
	client, err := graph.NewClient(graph.Config{
		Host:     a.cfg.GraphDBHost,
		Port:     a.cfg.GraphDBPort,
		Username: a.cfg.GraphDBUser,
		Password: a.cfg.GraphDBPassword,
	}, a.logger)
	if err != nil {
		return err
	}
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return fmt.Errorf("graph database unreachable: %w", err)
	}
	a.Graph = client
	return nil
}

func (a *App) stopGraph(ctx context.Context) error {
	if a.Graph == nil {
		return nil
	}
	return a.Graph.Close(ctx)
}

func (a *App) startKafka(context.Context) error {
	a.Producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      a.cfg.KafkaBrokers,
		Topic:        a.cfg.KafkaOutputTopic,
		BatchSize:    a.cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: a.cfg.KafkaRequiredAcks,
		Compression:  a.cfg.KafkaCompression,
	}, a.logger)
	return nil
}

func (a *App) stopKafka(context.Context) error {
	if a.Producer == nil {
		return nil
	}
	return a.Producer.Close()
}

// buildServices wires detection and merging over the connected stores
func (a *App) buildServices(ctx context.Context) error {
	kinds, err := dependent.Discover(ctx, a.DB, a.logger)
	if err != nil {
		return err
	}
	registry, err := merging.NewRegistry()
	if err != nil {
		return err
	}
	for _, k := range kinds {
		if err := registry.Register(k); err != nil {
			return err
		}
	}

	a.Leads = lead.NewRepository(a.DB, a.logger)
	a.Audits = mergeaudit.NewRepository(a.DB, a.logger)
	a.Engine = matching.NewEngine(a.logger, a.Leads, a.engineConfig())

	var opts []merging.Option
	if a.Redis != nil {
		opts = append(opts, merging.WithIntentLocker(redis.NewLocker(a.Redis, mergeLockPrefix)))
	}
	if a.Producer != nil {
		emitter := events.NewEmitter(a.Producer, a.logger, events.EmitterConfig{
			Attempts:  a.cfg.EventPublishAttempts,
			Delay:     a.cfg.EventPublishBaseDelay,
			MaxJitter: a.cfg.EventPublishBaseDelay / 2,
		})
		opts = append(opts, merging.WithEvents(emitter))
	}
	if a.Graph != nil {
		a.Lineage = graph.NewLineageService(a.Graph, a.logger)
		opts = append(opts, merging.WithLineage(a.Lineage))
	}

	a.Executor = merging.NewExecutor(a.logger, a.Leads, a.Audits, registry, a.Engine, merging.ExecutorConfig{
		AutoMergeThreshold: a.cfg.AutoMergeThreshold,
		LockTTL:            a.cfg.MergeLockTTL,
		MaxAutoMergePasses: a.cfg.AutoMergeMaxPasses,
	}, opts...)
	return nil
}

func (a *App) engineConfig() matching.EngineConfig {
	return matching.EngineConfig{
		DefaultThreshold: a.cfg.DuplicateThreshold,
		Classification: matching.Classification{
			ExactScore:   a.cfg.ExactMatchScore,
			SimilarScore: a.cfg.SimilarMatchScore,
		},
		Weights: matching.Weights{
			Email:       a.cfg.WeightEmail,
			Domain:      a.cfg.WeightDomain,
			Phone:       a.cfg.WeightPhone,
			CompanyName: a.cfg.WeightCompanyName,
			ContactName: a.cfg.WeightContactName,
		},
	}
}

// RunMigrations connects to postgres, applies migrations and disconnects
func (a *App) RunMigrations(ctx context.Context) error {
	a.migrate = true
	if err := a.startPostgres(ctx); err != nil {
		return err
	}
	return a.stopPostgres(ctx)
}
