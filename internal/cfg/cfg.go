package cfg

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/jimlawless/whereami"
)

type Config struct {
	Http       *HTTPConfig
	Db         *PGDBCfg
	Preprocess *PreprocessCfg
	Extractor  *ExtractorCfg
	Inference  *InferenceCfg
	Cluster    *ClusterCfg
	Redis      *RedisCfg
	Minio      *MinIOCfg
	Qdrant     *QdrantCfg
	Kafka      *KafkaCfg
}

type HTTPConfig struct {
	Port                string
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	IdleTimeout         time.Duration
	ShutdownTimeout     time.Duration
	MaxRequestSize      int64 // лимит на всё тело запроса
	MaxImageSize        int64 // лимит на один файл, больше — файл отбрасывается
	MaxImagesPerRequest int
}

// PGDBCfg хранит строку подключения. DSN пуст, если база не настроена.
type PGDBCfg struct {
	DSN              string
	MigrationsSource string
}

func (c *PGDBCfg) Enabled() bool {
	return c != nil && c.DSN != ""
}

type PreprocessCfg struct {
	Policy            domain.PreprocessPolicy
	BackgroundRemoval bool
	SegmenterAddr     string // адрес сервиса удаления фона, по умолчанию совпадает с экстрактором
	MaxPixels         int64  // лимит ширина×высота, больше — изображение пропускается
}

type ExtractorCfg struct {
	Addr        string
	Model       string
	MaxRetries  int
	Timeout     time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
	VectorSize  int
}

type InferenceCfg struct {
	Workers int
}

type ClusterCfg struct {
	Seed              int64
	Restarts          int
	MaxIterations     int
	Tolerance         float64
	RetentionVersions int // 0 — хранить всю историю
}

// RedisCfg — кэш эмбеддингов изображений. Отключён, если Addr пуст.
type RedisCfg struct {
	Addr         string
	Password     string
	User         string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	Timeout      time.Duration
	EmbeddingTTL time.Duration
}

func (c *RedisCfg) Enabled() bool {
	return c != nil && c.Addr != ""
}

// MinIOCfg — источник изображений для batch-режима. Отключён, если Endpoint пуст.
type MinIOCfg struct {
	Endpoint     string
	BucketName   string
	RootUser     string
	RootPassword string
	UseSSL       bool
}

func (c *MinIOCfg) Enabled() bool {
	return c != nil && c.Endpoint != ""
}

// QdrantCfg — зеркало векторов продуктов. Отключено, если Host пуст.
type QdrantCfg struct {
	Host           string
	Port           int
	ApiKey         string
	CollectionName string
	UseTLS         bool
	VectorSize     uint64
}

func (c *QdrantCfg) Enabled() bool {
	return c != nil && c.Host != ""
}

// KafkaCfg — публикация событий о новых версиях кластеризации. Отключено, если Brokers пуст.
type KafkaCfg struct {
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

func (c *KafkaCfg) Enabled() bool {
	return c != nil && len(c.Brokers) > 0
}

// Load загружает конфигурацию HTTP-сервиса. База данных опциональна.
func Load(log logger.Logger) (*Config, error) {
	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	db, err := loadPGDBCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	preprocess, err := loadPreprocessCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	extractor, err := loadExtractorCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if preprocess.SegmenterAddr == "" {
		preprocess.SegmenterAddr = extractor.Addr
	}

	inference, err := loadInferenceCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	cluster, err := loadClusterCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log, extractor.VectorSize)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:       http,
		Db:         db,
		Preprocess: preprocess,
		Extractor:  extractor,
		Inference:  inference,
		Cluster:    cluster,
		Redis:      redis,
		Minio:      minio,
		Qdrant:     qdrant,
		Kafka:      kafka,
	}, nil
}

// LoadBatch загружает конфигурацию CLI. Без строки подключения к базе возвращает e.ErrMissingDBConfig.
func LoadBatch(log logger.Logger) (*Config, error) {
	c, err := Load(log)
	if err != nil {
		return nil, err
	}

	if !c.Db.Enabled() {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrMissingDBConfig)
	}

	return c, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort                = "8080"
		defaultReadTimeout         = 30 * time.Second
		defaultWriteTimeout        = 60 * time.Second
		defaultIdleTimeout         = 60 * time.Second
		defaultShutdownTimeout     = 10 * time.Second
		defaultMaxImageSize        = 20 << 20
		defaultMaxImagesPerRequest = 16
	)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", defaultShutdownTimeout)
	if err != nil {
		log.Errorf(err, "invalid SHUTDOWN_TIMEOUT")
		return nil, err
	}

	maxImageSize, err := parseInt64Env("MAX_IMAGE_SIZE", defaultMaxImageSize)
	if err != nil {
		log.Errorf(err, "invalid MAX_IMAGE_SIZE")
		return nil, err
	}

	maxImages, err := parseIntEnv("MAX_IMAGES_PER_REQUEST", defaultMaxImagesPerRequest)
	if err != nil || maxImages <= 0 {
		log.Errorf(err, "invalid MAX_IMAGES_PER_REQUEST")
		return nil, e.ErrIncorrectEnvVariable
	}

	// Тело запроса вмещает все файлы максимального размера плюс заголовки multipart.
	maxRequestSize, err := parseInt64Env("MAX_REQUEST_SIZE", maxImageSize*int64(maxImages)+1<<20)
	if err != nil {
		log.Errorf(err, "invalid MAX_REQUEST_SIZE")
		return nil, err
	}

	return &HTTPConfig{
		Port:                getEnvOrDefault("HTTP_PORT", defaultPort),
		ReadTimeout:         readTimeout,
		WriteTimeout:        writeTimeout,
		IdleTimeout:         idleTimeout,
		ShutdownTimeout:     shutdownTimeout,
		MaxRequestSize:      maxRequestSize,
		MaxImageSize:        maxImageSize,
		MaxImagesPerRequest: maxImages,
	}, nil
}

// loadPGDBCfg берёт DB_CONNECTION_STRING, а при его отсутствии собирает DSN из POSTGRES_*.
func loadPGDBCfg() (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	c := &PGDBCfg{
		DSN:              getEnv("DB_CONNECTION_STRING"),
		MigrationsSource: getEnvOrDefault("MIGRATIONS_SOURCE", "file://db/migrations"),
	}
	if c.DSN != "" {
		return c, nil
	}

	user := getEnv("POSTGRES_USER")
	dbName := getEnv("POSTGRES_DB")
	if user == "" || dbName == "" {
		return c, nil
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, getEnv("POSTGRES_PASSWORD")),
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost) + ":" + getEnvOrDefault("POSTGRES_PORT", defaultPort),
		Path:     "/" + dbName,
		RawQuery: "sslmode=" + getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}
	c.DSN = u.String()

	return c, nil
}

func loadPreprocessCfg(log logger.Logger) (*PreprocessCfg, error) {
	const defaultMaxPixels = 89_478_485

	def := domain.DefaultPreprocessPolicy()

	version, err := parseIntEnv("PREPROCESS_POLICY_VERSION", def.Version)
	if err != nil {
		log.Errorf(err, "invalid PREPROCESS_POLICY_VERSION")
		return nil, err
	}

	policy, err := domain.NewPreprocessPolicy(getEnvOrDefault("PREPROCESS_POLICY", string(def.Name)), version)
	if err != nil {
		log.Errorf(err, "invalid PREPROCESS_POLICY")
		return nil, e.Wrap("PREPROCESS_POLICY", e.ErrIncorrectEnvVariable)
	}

	bgRemoval, err := parseBoolEnv("BACKGROUND_REMOVAL", false)
	if err != nil {
		log.Errorf(err, "invalid BACKGROUND_REMOVAL")
		return nil, err
	}

	maxPixels, err := parseInt64Env("MAX_IMAGE_PIXELS", defaultMaxPixels)
	if err != nil || maxPixels < 0 {
		log.Errorf(err, "invalid MAX_IMAGE_PIXELS")
		return nil, e.Wrap("MAX_IMAGE_PIXELS", e.ErrIncorrectEnvVariable)
	}

	return &PreprocessCfg{
		Policy:            policy,
		BackgroundRemoval: bgRemoval,
		SegmenterAddr:     getEnv("SEGMENTER_ADDR"),
		MaxPixels:         maxPixels,
	}, nil
}

func loadExtractorCfg(log logger.Logger) (*ExtractorCfg, error) {
	const (
		defaultHost        = "ml-service"
		defaultPort        = "50051"
		defaultModel       = "resnet50"
		defaultMaxRetries  = 3
		defaultTimeout     = 30 * time.Second
		defaultBackoffBase = 100 * time.Millisecond
		defaultBackoffMax  = 2 * time.Second
	)

	addr := getEnv("EXTRACTOR_ADDR")
	if addr == "" {
		addr = getEnvOrDefault("ML_HOST", defaultHost) + ":" + getEnvOrDefault("ML_PORT", defaultPort)
	}

	maxRetries, err := parseIntEnv("EXTRACTOR_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid EXTRACTOR_MAX_RETRIES")
		return nil, err
	}

	timeout, err := parseDurationEnv("EXTRACTOR_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid EXTRACTOR_TIMEOUT")
		return nil, err
	}

	vectorSize, err := parseIntEnv("VECTOR_SIZE", domain.DefaultEmbeddingDim)
	if err != nil || vectorSize <= 0 {
		log.Errorf(err, "invalid VECTOR_SIZE")
		return nil, e.Wrap("VECTOR_SIZE", e.ErrIncorrectEnvVariable)
	}

	return &ExtractorCfg{
		Addr:        addr,
		Model:       getEnvOrDefault("EXTRACTOR_MODEL", defaultModel),
		MaxRetries:  maxRetries,
		Timeout:     timeout,
		BackoffBase: defaultBackoffBase,
		BackoffMax:  defaultBackoffMax,
		VectorSize:  vectorSize,
	}, nil
}

func loadInferenceCfg() (*InferenceCfg, error) {
	workers, err := parseIntEnv("INFERENCE_WORKERS", runtime.GOMAXPROCS(0))
	if err != nil || workers <= 0 {
		return nil, e.Wrap("INFERENCE_WORKERS", e.ErrIncorrectEnvVariable)
	}

	return &InferenceCfg{Workers: workers}, nil
}

func loadClusterCfg(log logger.Logger) (*ClusterCfg, error) {
	const (
		defaultSeed          = 42
		defaultRestarts      = 10
		defaultMaxIterations = 300
		defaultTolerance     = 1e-4
	)

	seed, err := parseInt64Env("CLUSTER_SEED", defaultSeed)
	if err != nil {
		log.Errorf(err, "invalid CLUSTER_SEED")
		return nil, err
	}

	restarts, err := parseIntEnv("CLUSTER_RESTARTS", defaultRestarts)
	if err != nil {
		log.Errorf(err, "invalid CLUSTER_RESTARTS")
		return nil, err
	}

	maxIter, err := parseIntEnv("CLUSTER_MAX_ITER", defaultMaxIterations)
	if err != nil {
		log.Errorf(err, "invalid CLUSTER_MAX_ITER")
		return nil, err
	}

	tolerance := defaultTolerance
	if v := getEnv("CLUSTER_TOLERANCE"); v != "" {
		tolerance, err = strconv.ParseFloat(v, 64)
		if err != nil || tolerance < 0 {
			log.Errorf(err, "invalid CLUSTER_TOLERANCE")
			return nil, e.Wrap("CLUSTER_TOLERANCE", e.ErrIncorrectEnvVariable)
		}
	}

	retention, err := parseIntEnv("CLUSTER_RETENTION_VERSIONS", 0)
	if err != nil || retention < 0 {
		log.Errorf(err, "invalid CLUSTER_RETENTION_VERSIONS")
		return nil, e.Wrap("CLUSTER_RETENTION_VERSIONS", e.ErrIncorrectEnvVariable)
	}

	return &ClusterCfg{
		Seed:              seed,
		Restarts:          restarts,
		MaxIterations:     maxIter,
		Tolerance:         tolerance,
		RetentionVersions: retention,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultEmbeddingTTL = 24 * time.Hour
	)

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("REDIS_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid REDIS_MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("REDIS_DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("REDIS_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("REDIS_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_WRITE_TIMEOUT")
		return nil, err
	}

	ttl, err := parseDurationEnv("EMBEDDING_CACHE_TTL", defaultEmbeddingTTL)
	if err != nil {
		log.Errorf(err, "invalid EMBEDDING_CACHE_TTL")
		return nil, err
	}

	return &RedisCfg{
		Addr:         getEnv("REDIS_ADDR"),
		Password:     getEnv("REDIS_PASSWORD"),
		User:         getEnv("REDIS_USER"),
		DB:           db,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		Timeout:      max(readTimeout, writeTimeout),
		EmbeddingTTL: ttl,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	useSSL, err := parseBoolEnv("MINIO_USE_SSL", false)
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	return &MinIOCfg{
		Endpoint:     getEnv("MINIO_ENDPOINT"),
		BucketName:   getEnvOrDefault("BUCKET_NAME", "product-images"),
		RootUser:     getEnv("MINIO_ROOT_USER"),
		RootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		UseSSL:       useSSL,
	}, nil
}

func loadQdrantCfg(log logger.Logger, vectorSize int) (*QdrantCfg, error) {
	const defaultQdrantGRPCPort = 6334

	port, err := parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := parseBoolEnv("QDRANT_USE_TLS", false)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	return &QdrantCfg{
		Host:           getEnv("QDRANT_HOST"),
		Port:           port,
		ApiKey:         getEnv("QDRANT__SERVICE__API_KEY"),
		CollectionName: getEnvOrDefault("COLLECTION_NAME", "product_features"),
		UseTLS:         useTLS,
		VectorSize:     uint64(vectorSize),
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultTopic             = "product-clusters"
		defaultPartitions        = 1
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
	)

	var brokers []string
	for _, b := range strings.Split(getEnv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return defaultValue, fmt.Errorf("%s: %w", key, e.ErrIncorrectEnvVariable)
		}
		return d, nil
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

func parseInt64Env(key string, defaultValue int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return b, nil
}
