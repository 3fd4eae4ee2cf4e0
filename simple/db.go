package simple

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/adrianmcphee/jsonable"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// DB is the simple API entry point.
// It wires a DocumentStore, and optionally Redis and PostgreSQL, with defaults
// taken from the environment.
//
// Example:
//
//	db, err := simple.Connect()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
type DB struct {
	store       *jsonable.DocumentStore
	backend     jsonable.Backend
	redisClient *redis.Client
	pgPool      *pgxpool.Pool
	lock        *jsonable.DistributedLock
	logger      jsonable.Logger
	metrics     jsonable.Metrics
}

// Option is a functional option for configuring DB.
type Option func(*DB) error

// Connect creates a new DB with auto-detected configuration.
//
// A .env file in the working directory is loaded first when present.
//
// Environment variables:
//   - DATA_PATH: Filesystem backend path (default: "./data")
//   - AWS_BUCKET, AWS_REGION: S3 backend
//   - MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY, MINIO_BUCKET: MinIO backend
//   - GCS_BUCKET, GCS_CREDENTIALS_FILE: GCS backend
//   - REDIS_ADDR: Redis address; Redis records are disabled when it is unreachable
//   - DATABASE_URL: PostgreSQL connection string for Postgres records
//   - JSONABLE_LOG: "production" or "development" zap logging; none when unset
func Connect(opts ...Option) (*DB, error) {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	ctx := context.Background()
	db := &DB{
		logger:  &jsonable.NoOpLogger{},
		metrics: &jsonable.NoOpMetrics{},
	}

	if env := os.Getenv("JSONABLE_LOG"); env != "" {
		logger, err := jsonable.NewZapLoggerForEnv(env)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		db.logger = logger
	}

	cfg := detectBackend()
	backend, err := jsonable.NewBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to detect backend: %w", err)
	}
	db.backend = backend
	remote := cfg.Type != "filesystem"

	if err := db.setupRedis(ctx); err != nil {
		db.logger.Debug("redis records disabled", "error", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		db.pgPool = pool
	}

	for _, opt := range opts {
		if err := opt(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	// remote object stores get a circuit breaker unless replaced by WithBackend
	if remote && db.backend == backend {
		db.backend = jsonable.NewGuardedBackend(backend,
			jsonable.NewCircuitBreaker(jsonable.DefaultBreakerFailures, jsonable.DefaultBreakerReset),
			db.logger, db.metrics)
	}
	if db.redisClient != nil {
		db.lock = jsonable.NewDistributedLock(db.redisClient, "jsonable").
			WithLogger(db.logger).
			WithMetrics(db.metrics)
	}

	db.store = jsonable.NewDocumentStore(db.backend).
		WithLogger(db.logger).
		WithMetrics(db.metrics)

	return db, nil
}

// MustConnect is like Connect but panics on error.
func MustConnect(opts ...Option) *DB {
	db, err := Connect(opts...)
	if err != nil {
		panic(fmt.Sprintf("simple.MustConnect failed: %v", err))
	}
	return db
}

// Close closes the database and all underlying resources.
func (db *DB) Close() error {
	var errs []error

	if db.backend != nil {
		if err := db.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("backend close: %w", err))
		}
	}
	if db.redisClient != nil {
		if err := db.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if db.pgPool != nil {
		db.pgPool.Close()
	}
	if l, ok := db.logger.(*jsonable.ZapLogger); ok {
		_ = l.Sync()
	}

	return errors.Join(errs...)
}

// Store returns the underlying document store.
func (db *DB) Store() *jsonable.DocumentStore {
	return db.store
}

// Backend returns the storage backend.
func (db *DB) Backend() jsonable.Backend {
	return db.backend
}

// Logger returns the configured logger.
func (db *DB) Logger() jsonable.Logger {
	return db.logger
}

// Lock returns the Redis lock used by Collection.Mutate, nil without Redis.
func (db *DB) Lock() *jsonable.DistributedLock {
	return db.lock
}

// RedisRecord returns the Redis hash record at key.
func (db *DB) RedisRecord(key string) (*jsonable.RedisRecord, error) {
	if db.redisClient == nil {
		return nil, jsonable.WithContext(jsonable.ErrBackendUnavailable, map[string]interface{}{
			"backend": "redis",
		})
	}
	return jsonable.NewRedisRecord(db.redisClient, key), nil
}

// PostgresRecord returns the row of table where keyColumn = key.
func (db *DB) PostgresRecord(table, keyColumn string, key any) (*jsonable.PostgresRecord, error) {
	if db.pgPool == nil {
		return nil, jsonable.WithContext(jsonable.ErrBackendUnavailable, map[string]interface{}{
			"backend": "postgres",
		})
	}
	return jsonable.NewPostgresRecord(db.pgPool, table, keyColumn, key), nil
}

func (db *DB) setupRedis(ctx context.Context) error {
	client := redis.NewClient(jsonable.RedisOptions())
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis not available: %w", err)
	}
	db.redisClient = client
	return nil
}

// detectBackend builds the backend configuration from environment.
func detectBackend() jsonable.BackendConfig {
	if bucket := os.Getenv("AWS_BUCKET"); bucket != "" {
		return jsonable.BackendConfig{
			Type:   "s3",
			Bucket: bucket,
			Region: os.Getenv("AWS_REGION"),
		}
	}

	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		bucket := os.Getenv("MINIO_BUCKET")
		if bucket == "" {
			bucket = "jsonable"
		}
		useSSL, _ := strconv.ParseBool(os.Getenv("MINIO_USE_SSL"))
		return jsonable.BackendConfig{
			Type:            "minio",
			Bucket:          bucket,
			Endpoint:        endpoint,
			AccessKeyID:     os.Getenv("MINIO_ACCESS_KEY"),
			SecretAccessKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:          useSSL,
		}
	}

	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		return jsonable.BackendConfig{
			Type:            "gcs",
			Bucket:          bucket,
			CredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
		}
	}

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = jsonable.DefaultDataPath
	}
	return jsonable.BackendConfig{Type: "filesystem", Bucket: dataPath}
}

// Functional options

// WithBackend sets a custom backend.
func WithBackend(backend jsonable.Backend) Option {
	return func(db *DB) error {
		if db.backend != nil {
			_ = db.backend.Close()
		}
		db.backend = backend
		return nil
	}
}

// WithRedis sets a custom Redis client.
func WithRedis(client *redis.Client) Option {
	return func(db *DB) error {
		if db.redisClient != nil && db.redisClient != client {
			_ = db.redisClient.Close()
		}
		db.redisClient = client
		return nil
	}
}

// WithPostgres sets a custom PostgreSQL pool.
func WithPostgres(pool *pgxpool.Pool) Option {
	return func(db *DB) error {
		if db.pgPool != nil && db.pgPool != pool {
			db.pgPool.Close()
		}
		db.pgPool = pool
		return nil
	}
}

// WithLogger sets the logger passed to every collection.
func WithLogger(logger jsonable.Logger) Option {
	return func(db *DB) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		db.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector passed to every collection.
func WithMetrics(metrics jsonable.Metrics) Option {
	return func(db *DB) error {
		if metrics == nil {
			return fmt.Errorf("metrics cannot be nil")
		}
		db.metrics = metrics
		return nil
	}
}
