package config

import "time"

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"fern-api"`
	Port                          int    `env:"PORT" env-default:"3005"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"300"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`

	// Warehouse (PostgreSQL)
	DatabaseDriver              string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                string        `env:"DB_HOST" env-default:""`
	DatabasePort                string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"fern"`
	DatabaseSSLMode             string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion    int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce      int           `env:"DB_MIGRATION_FORCE" env-default:"0"`

	// Data Factory management API
	ADFSubscriptionID  string `env:"ADF_SUBSCRIPTION_ID" env-default:""`
	ADFTenantID        string `env:"ADF_TENANT_ID" env-default:""`
	ADFClientID        string `env:"ADF_CLIENT_ID" env-default:""`
	ADFClientSecret    string `env:"ADF_CLIENT_SECRET" env-default:""`
	ADFEndpoint        string `env:"ADF_ENDPOINT" env-default:"https://management.azure.com"`
	ADFLoginEndpoint   string `env:"ADF_LOGIN_ENDPOINT" env-default:"https://login.microsoftonline.com"`
	ADFRequestsPerMin  int    `env:"ADF_REQUESTS_PER_MIN" env-default:"960"`
	ADFTimeoutSeconds  int    `env:"ADF_TIMEOUT_SECONDS" env-default:"60"`

	// Extraction defaults
	ExtractAPILimit       int    `env:"EXTRACT_API_LIMIT" env-default:"999"`
	ExtractListLimit      int    `env:"EXTRACT_LIST_LIMIT" env-default:"500"`
	ExtractOffsetDays     int    `env:"EXTRACT_WATERMARK_OFFSET_DAYS" env-default:"1"`
	ExtractActor          string `env:"EXTRACT_ACTOR" env-default:"fern"`
	ExtractLockTTLMinutes int    `env:"EXTRACT_LOCK_TTL_MINUTES" env-default:"15"`

	// Redis (extractor locks)
	RedisEnabled  bool   `env:"REDIS_ENABLED" env-default:"false"`
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka (extraction events)
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"extraction-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`
}
