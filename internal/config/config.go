package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type HTTPServer struct {
	Host string
	Port string
	// Reject every write; reads and room feeds keep working.
	ReadOnly bool
}

type RedisCache struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Apply the bundled schema on start.
	Migrate bool
}

type Session struct {
	TokenTTL time.Duration
}

type Log struct {
	Level  string
	Format string
}

type Config struct {
	HTTP     HTTPServer
	Redis    RedisCache
	Postgres Postgres
	Session  Session
	Log      Log
}

const logtag = "[config]"

// Load reads the env file at path, or .env when path is empty, and builds
// the config from the resulting environment.
func Load(path string) *Config {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			log.Fatalf("%s err loading env from file : %v", logtag, err)
		}
		log.Infof("%s using env from : %s", logtag, path)
	} else {
		log.Infof("%s using env from .env", logtag)
		_ = godotenv.Load()
	}

	return FromEnv()
}

// FromEnv builds the config from the process environment only.
func FromEnv() *Config {
	cfg := &Config{
		HTTP:     *newHTTP(),
		Redis:    *newRedis(),
		Postgres: *newPostgres(),
		Session:  *newSession(),
		Log:      *newLog(),
	}

	log.WithFields(log.Fields{
		"http":     cfg.HTTP.Host + ":" + cfg.HTTP.Port,
		"redis":    cfg.Redis.Host + ":" + cfg.Redis.Port,
		"postgres": cfg.Postgres.Host + ":" + cfg.Postgres.Port + "/" + cfg.Postgres.DBName,
	}).Infof("%s backend config loaded", logtag)
	return cfg
}

func newHTTP() *HTTPServer {
	return &HTTPServer{
		Port: getenv("HTTP_PORT", "8080"),
		Host: getenv("HTTP_HOST", "localhost"),

		ReadOnly: getenv("HTTP_READ_ONLY", "false") == "true",
	}
}

func newRedis() *RedisCache {
	return &RedisCache{
		Port:     getenv("REDIS_PORT", "6379"),
		Host:     getenv("REDIS_HOST", "redis"),
		Password: getsecret("REDIS_PASSWORD", ""),
		DB:       getint("REDIS_DB", 0),
	}
}

func newPostgres() *Postgres {
	return &Postgres{
		Host:     getenv("DB_HOST", "localhost"),
		Port:     getenv("DB_PORT", "5432"),
		User:     getenv("DB_USER", "admin"),
		Password: getsecret("DB_PASSWORD", "shared"),
		DBName:   getenv("DB_NAME", "senryu"),
		SSLMode:  getenv("DB_SSLMODE", "disable"),
		Migrate:  getenv("DB_MIGRATE", "true") == "true",
	}
}

func newSession() *Session {
	return &Session{
		TokenTTL: getduration("SESSION_TOKEN_TTL", 24*time.Hour),
	}
}

func newLog() *Log {
	return &Log{
		Level:  getenv("LOG_LEVEL", "info"),
		Format: getenv("LOG_FORMAT", "text"),
	}
}

func getenv(key, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Debugf("%s %s undefined. Using default value %s", logtag, key, defaultValue)
		return defaultValue
	}
	log.Debugf("%s %s = %s", logtag, key, val)
	return val
}

func getsecret(key, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getint(key string, defaultValue int) int {
	v, err := strconv.Atoi(getenv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		log.Warnf("%s %s is not an integer, using %d", logtag, key, defaultValue)
		return defaultValue
	}
	return v
}

func getduration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getenv(key, defaultValue.String()))
	if err != nil || d <= 0 {
		log.Warnf("%s %s is not a positive duration, using %s", logtag, key, defaultValue)
		return defaultValue
	}
	return d
}

// Logger configures the standard logrus logger from the Log section.
func (c *Config) Logger() *log.Logger {
	logger := log.StandardLogger()

	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	if c.Log.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger
}
