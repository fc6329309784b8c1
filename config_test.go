package main

import (
	"context"
	"testing"
	"time"

	"deadline-tasks/storage"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(envMap(nil))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.listenAddr != ":8080" {
		t.Fatalf("unexpected listen addr %q", cfg.listenAddr)
	}
	if cfg.storageBackend != backendMemory {
		t.Fatalf("expected memory backend without a connection string, got %q", cfg.storageBackend)
	}
	if cfg.tasksTable != "tasks" || cfg.cacheTTL != time.Minute || cfg.shutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.emailJS.Configured() {
		t.Fatal("EmailJS should not be configured by default")
	}
	if cfg.emailJS.Timeout != 10*time.Second {
		t.Fatalf("unexpected EmailJS timeout %v", cfg.emailJS.Timeout)
	}
	if len(cfg.corsOrigins) != 1 || cfg.corsOrigins[0] != "*" {
		t.Fatalf("unexpected CORS origins %v", cfg.corsOrigins)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	cfg, err := loadConfig(envMap(map[string]string{
		"PORT":                      "9000",
		"DEBUG":                     "true",
		"LOG_FORMAT":                "JSON",
		"STORAGE_CONNECTION_STRING": "UseDevelopmentStorage=true",
		"TASKS_TABLE":               "deadlines",
		"STORAGE_AUTO_CREATE":       "1",
		"TASKS_CACHE_TTL":           "0",
		"DEADLINE_TIMEZONE":         "Europe/Bucharest",
		"CORS_ORIGINS":              "http://a.test, ,http://b.test",
		"EMAILJS_SERVICE_ID":        "svc",
		"EMAILJS_TEMPLATE_ID":       "tpl",
		"EMAILJS_PUBLIC_KEY":        "pub",
		"EMAILJS_TIMEOUT":           "3s",
	}))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.listenAddr != ":9000" || !cfg.debug || !cfg.jsonLogs {
		t.Fatalf("unexpected server settings: %+v", cfg)
	}
	if cfg.storageBackend != backendTable || cfg.tasksTable != "deadlines" || !cfg.autoCreateTable {
		t.Fatalf("unexpected storage settings: %+v", cfg)
	}
	if cfg.cacheTTL != 0 {
		t.Fatalf("expected caching disabled, got %v", cfg.cacheTTL)
	}
	if cfg.location.String() != "Europe/Bucharest" || cfg.emailJS.Location != cfg.location {
		t.Fatalf("unexpected location %v", cfg.location)
	}
	if len(cfg.corsOrigins) != 2 || cfg.corsOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected CORS origins %v", cfg.corsOrigins)
	}
	if !cfg.emailJS.Configured() || cfg.emailJS.Timeout != 3*time.Second {
		t.Fatalf("unexpected EmailJS config %+v", cfg.emailJS)
	}
}

func TestLoadConfigListenAddrOverridesPort(t *testing.T) {
	cfg, err := loadConfig(envMap(map[string]string{"PORT": "9000", "LISTEN_ADDR": "127.0.0.1:7000"}))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.listenAddr != "127.0.0.1:7000" {
		t.Fatalf("unexpected listen addr %q", cfg.listenAddr)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"table without connection": {"STORAGE_BACKEND": "table"},
		"unknown backend":          {"STORAGE_BACKEND": "firestore"},
		"bad auto create":          {"STORAGE_AUTO_CREATE": "maybe"},
		"bad ttl":                  {"TASKS_CACHE_TTL": "soon"},
		"negative ttl":             {"TASKS_CACHE_TTL": "-1s"},
		"zero shutdown":            {"SHUTDOWN_TIMEOUT": "0s"},
		"bad timezone":             {"DEADLINE_TIMEZONE": "Mars/Olympus"},
		"bad emailjs timeout":      {"EMAILJS_TIMEOUT": "fast"},
	}
	for name, env := range cases {
		if _, err := loadConfig(envMap(env)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadConfigMemoryBackendIgnoresConnection(t *testing.T) {
	cfg, err := loadConfig(envMap(map[string]string{
		"STORAGE_BACKEND":           "Memory",
		"STORAGE_CONNECTION_STRING": "UseDevelopmentStorage=true",
	}))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.storageBackend != backendMemory {
		t.Fatalf("expected memory backend, got %q", cfg.storageBackend)
	}
}

func TestParseRedisOptions(t *testing.T) {
	opts := parseRedisOptions("redis://:secret@localhost:6380/2")
	if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected URL options %+v", opts)
	}

	opts = parseRedisOptions("cache.example.net:6380,password=p=w,ssl=True,abortConnect=False")
	if opts.Addr != "cache.example.net:6380" || opts.Password != "p=w" {
		t.Fatalf("unexpected connection string options %+v", opts)
	}
	if opts.TLSConfig == nil {
		t.Fatal("expected TLS for ssl=True")
	}

	opts = parseRedisOptions("localhost:6379")
	if opts.Addr != "localhost:6379" || opts.TLSConfig != nil {
		t.Fatalf("unexpected plain options %+v", opts)
	}
}

func TestNewStoreWrapsCache(t *testing.T) {
	store, err := newStore(context.Background(), config{storageBackend: backendMemory, redisConn: "localhost:6379", cacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("newStore: %v", err)
	}
	if _, ok := store.(*storage.Cache); !ok {
		t.Fatalf("expected cache decorator, got %T", store)
	}
	store, err = newStore(context.Background(), config{storageBackend: backendMemory})
	if err != nil {
		t.Fatalf("newStore: %v", err)
	}
	if _, ok := store.(*storage.Memory); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}
