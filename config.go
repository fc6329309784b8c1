package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"deadline-tasks/reminder"
)

const (
	backendTable  = "table"
	backendMemory = "memory"
)

type config struct {
	listenAddr      string
	debug           bool
	jsonLogs        bool
	storageBackend  string
	connStr         string
	tasksTable      string
	autoCreateTable bool
	redisConn       string
	cacheTTL        time.Duration
	location        *time.Location
	emailJS         reminder.Config
	shutdownTimeout time.Duration
	corsOrigins     []string
}

func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		listenAddr:      ":8080",
		tasksTable:      "tasks",
		cacheTTL:        time.Minute,
		location:        time.Local,
		shutdownTimeout: 10 * time.Second,
		corsOrigins:     []string{"*"},
		connStr:         getenv("STORAGE_CONNECTION_STRING"),
		redisConn:       getenv("REDIS_CONNECTION_STRING"),
		jsonLogs:        strings.EqualFold(getenv("LOG_FORMAT"), "json"),
	}
	if dbg, err := strconv.ParseBool(getenv("DEBUG")); err == nil {
		cfg.debug = dbg
	}

	if v := getenv("PORT"); v != "" {
		cfg.listenAddr = ":" + v
	}
	if v := getenv("LISTEN_ADDR"); v != "" {
		cfg.listenAddr = v
	}

	cfg.storageBackend = strings.ToLower(getenv("STORAGE_BACKEND"))
	switch cfg.storageBackend {
	case "":
		cfg.storageBackend = backendMemory
		if cfg.connStr != "" {
			cfg.storageBackend = backendTable
		}
	case backendTable:
		if cfg.connStr == "" {
			return config{}, errors.New("STORAGE_CONNECTION_STRING is required for the table backend")
		}
	case backendMemory:
	default:
		return config{}, fmt.Errorf("invalid STORAGE_BACKEND %q", cfg.storageBackend)
	}
	if v := getenv("TASKS_TABLE"); v != "" {
		cfg.tasksTable = v
	}
	if v := getenv("STORAGE_AUTO_CREATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return config{}, fmt.Errorf("invalid STORAGE_AUTO_CREATE: %w", err)
		}
		cfg.autoCreateTable = b
	}

	var err error
	if cfg.cacheTTL, err = durationEnv(getenv, "TASKS_CACHE_TTL", cfg.cacheTTL, true); err != nil {
		return config{}, err
	}
	if cfg.shutdownTimeout, err = durationEnv(getenv, "SHUTDOWN_TIMEOUT", cfg.shutdownTimeout, false); err != nil {
		return config{}, err
	}

	if v := getenv("DEADLINE_TIMEZONE"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return config{}, fmt.Errorf("invalid DEADLINE_TIMEZONE: %w", err)
		}
		cfg.location = loc
	}

	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.corsOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.corsOrigins = append(cfg.corsOrigins, o)
			}
		}
	}

	timeout, err := durationEnv(getenv, "EMAILJS_TIMEOUT", 10*time.Second, false)
	if err != nil {
		return config{}, err
	}
	cfg.emailJS = reminder.Config{
		Endpoint:   getenv("EMAILJS_API_URL"),
		ServiceID:  getenv("EMAILJS_SERVICE_ID"),
		TemplateID: getenv("EMAILJS_TEMPLATE_ID"),
		PublicKey:  getenv("EMAILJS_PUBLIC_KEY"),
		PrivateKey: getenv("EMAILJS_PRIVATE_KEY"),
		Location:   cfg.location,
		Timeout:    timeout,
	}
	return cfg, nil
}

func durationEnv(getenv func(string) string, key string, def time.Duration, allowZero bool) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

// parseRedisOptions accepts a redis:// URL or an Azure style
// "host:port,password=...,ssl=True" connection string.
func parseRedisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}
