package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" or "pretty"

	// No read/write deadlines on the server: the statestream endpoint holds
	// connections open indefinitely.
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless the database is configured and
	// reachable.
	ReadinessRequireDB bool

	// Allowed Origin hosts for the statestream WebSocket endpoint. Empty
	// means same-host only.
	WSAllowedOriginHosts []string
	WSDevInsecure        bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("KEEL_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("KEEL_LOG_LEVEL", "info"),
		LogFormat: EnvString("KEEL_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("KEEL_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		IdleTimeout:       EnvDuration("KEEL_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("KEEL_HTTP_MAX_HEADER_BYTES", 1<<20),
		ShutdownTimeout:   EnvDuration("KEEL_SHUTDOWN_TIMEOUT", 10*time.Second),

		DatabaseURL: EnvString("KEEL_DATABASE_URL", ""),
		DBSchema:    EnvString("KEEL_DB_SCHEMA", "keel"),
		DBMaxConns:  EnvInt32("KEEL_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("KEEL_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("KEEL_READINESS_REQUIRE_DB", false),

		WSAllowedOriginHosts: EnvCSV("KEEL_WS_ALLOWED_ORIGIN_HOSTS", "localhost,127.0.0.1"),
		WSDevInsecure:        EnvBool("KEEL_WS_DEV_INSECURE", false),
	}
}
