package config

import (
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover-api" validate:"required"`
	Port                          int      `env:"PORT" env-default:"3002" validate:"min=1,max=65535"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"min=1"`

	// PostgreSQL
	DatabaseURL                   string        `env:"DATABASE_URL" env-default:""`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/migrations"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis merge intent locks; disabled when host is empty
	RedisHost     string        `env:"REDIS_HOST" env-default:""`
	RedisPort     int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	MergeLockTTL  time.Duration `env:"MERGE_LOCK_TTL" env-default:"30s"`

	// Graph Database (Memgraph/Neo4j) lineage; disabled when host is empty
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:""`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`

	// Kafka Producer settings; disabled when no brokers are set
	KafkaBrokers          []string      `env:"KAFKA_BROKERS" env-default:""`
	KafkaOutputTopic      string        `env:"KAFKA_OUTPUT_TOPIC" env-default:"lead-events"`
	KafkaBatchSize        int           `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout     int           `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks     int           `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression      string        `env:"KAFKA_COMPRESSION" env-default:"snappy" validate:"oneof=snappy gzip lz4 zstd none"`
	EventPublishAttempts  uint          `env:"EVENT_PUBLISH_ATTEMPTS" env-default:"3" validate:"min=1"`
	EventPublishBaseDelay time.Duration `env:"EVENT_PUBLISH_BASE_DELAY" env-default:"200ms"`

	// Tracing
	TracingExporter string `env:"TRACING_EXPORTER" env-default:"none" validate:"oneof=none console otlp-grpc otlp-http"`
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPInsecure    bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`

	// Matching
	DuplicateThreshold float64 `env:"DUPLICATE_THRESHOLD" env-default:"0.8" validate:"gte=0,lte=1"`
	ExactMatchScore    float64 `env:"EXACT_MATCH_SCORE" env-default:"0.95" validate:"gte=0,lte=1,gtefield=SimilarMatchScore"`
	SimilarMatchScore  float64 `env:"SIMILAR_MATCH_SCORE" env-default:"0.85" validate:"gte=0,lte=1"`
	WeightEmail        float64 `env:"WEIGHT_EMAIL" env-default:"0.45" validate:"gte=0,lte=1"`
	WeightDomain       float64 `env:"WEIGHT_DOMAIN" env-default:"0.35" validate:"gte=0,lte=1"`
	WeightPhone        float64 `env:"WEIGHT_PHONE" env-default:"0.40" validate:"gte=0,lte=1"`
	WeightCompanyName  float64 `env:"WEIGHT_COMPANY_NAME" env-default:"0.50" validate:"gte=0,lte=1"`
	WeightContactName  float64 `env:"WEIGHT_CONTACT_NAME" env-default:"0.10" validate:"gte=0,lte=1"`

	// Merging
	AutoMergeThreshold float64 `env:"AUTO_MERGE_THRESHOLD" env-default:"0.8" validate:"gte=0,lte=1"`
	AutoMergeMaxPasses int     `env:"AUTO_MERGE_MAX_PASSES" env-default:"10" validate:"min=1"`
}

// PostgresURL is DATABASE_URL when set, otherwise built from the DB_* settings
func (c *Config) PostgresURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%s", c.DatabaseHost, c.DatabasePort),
		Path:     "/" + c.DatabaseName,
		RawQuery: url.Values{"sslmode": []string{c.DatabaseSSLMode}}.Encode(),
	}
	if c.DatabaseUserName != "" {
		u.User = url.UserPassword(c.DatabaseUserName, c.DatabasePassword)
	}
	return u.String()
}
