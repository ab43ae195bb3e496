package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
	if cfg.HTTPListen != ":8080" {
		t.Errorf("http listen = %q, want :8080", cfg.HTTPListen)
	}
	if cfg.Collector.NRHost != "datafeeds.networkrail.co.uk" || cfg.Collector.NRPort != 61618 {
		t.Errorf("NR endpoint = %s:%d", cfg.Collector.NRHost, cfg.Collector.NRPort)
	}
	if cfg.Collector.Attempts != 5 {
		t.Errorf("attempts = %d, want 5", cfg.Collector.Attempts)
	}
	if cfg.Generator.RateSeconds != 3600 {
		t.Errorf("rate = %d, want 3600", cfg.Generator.RateSeconds)
	}
	if cfg.Generator.K != 1e-6 {
		t.Errorf("k = %g, want 1e-6", cfg.Generator.K)
	}
	if cfg.Generator.Iterations != 5000 {
		t.Errorf("iterations = %d, want 5000", cfg.Generator.Iterations)
	}
	if cfg.Generator.CutDistance != 0.25 {
		t.Errorf("cut distance = %g, want 0.25", cfg.Generator.CutDistance)
	}
	if cfg.Generator.Scale != 100000 {
		t.Errorf("scale = %g, want 100000", cfg.Generator.Scale)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MONGO_INITDB_ROOT_USERNAME", "root")
	t.Setenv("MONGO_INITDB_ROOT_PASSWORD", "secret")
	t.Setenv("MONGO_HOST", "db:27017")
	t.Setenv("COLLECTOR_NR_USER", "nruser")
	t.Setenv("COLLECTOR_ATTEMPTS", "9")
	t.Setenv("COLLECTOR_TD_TOPICS", "/topic/TD_ANG_SIG_AREA,/topic/TD_KENT_MCC_SIG_AREA")
	t.Setenv("GENERATOR_RATE", "120")
	t.Setenv("GENERATOR_CUT_D", "0.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Mongo.Username != "root" || cfg.Mongo.Password != "secret" {
		t.Error("mongo credentials not applied")
	}
	if cfg.Mongo.Host != "db:27017" {
		t.Errorf("mongo host = %q", cfg.Mongo.Host)
	}
	if cfg.Collector.NRUser != "nruser" {
		t.Errorf("nr user = %q", cfg.Collector.NRUser)
	}
	if cfg.Collector.Attempts != 9 {
		t.Errorf("attempts = %d, want 9", cfg.Collector.Attempts)
	}
	want := []string{"/topic/TD_ANG_SIG_AREA", "/topic/TD_KENT_MCC_SIG_AREA"}
	if len(cfg.Collector.TDTopics) != 2 ||
		cfg.Collector.TDTopics[0] != want[0] || cfg.Collector.TDTopics[1] != want[1] {
		t.Errorf("td topics = %v, want %v", cfg.Collector.TDTopics, want)
	}
	if cfg.Generator.RateSeconds != 120 {
		t.Errorf("rate = %d, want 120", cfg.Generator.RateSeconds)
	}
	if cfg.Generator.CutDistance != 0.5 {
		t.Errorf("cut distance = %g, want 0.5", cfg.Generator.CutDistance)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
log_level: debug
collector:
  ppm: true
  td: true
  nr_user: fileuser
generator:
  rate_seconds: 60
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	if !cfg.Collector.PPM || !cfg.Collector.TD || cfg.Collector.TM {
		t.Error("feed flags not applied")
	}
	if cfg.Collector.NRUser != "fileuser" {
		t.Errorf("nr user = %q", cfg.Collector.NRUser)
	}
	if cfg.Generator.RateSeconds != 60 {
		t.Errorf("rate = %d, want 60", cfg.Generator.RateSeconds)
	}
}

func TestLoadFileEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want env to win", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("COLLECTOR_ATTEMPTS", "0")
	if _, err := Load(""); err == nil {
		t.Fatal("zero attempts accepted")
	}
}

func TestMongoURI(t *testing.T) {
	m := MongoConfig{Host: "db:27017"}
	if got := m.URI(); got != "mongodb://db:27017" {
		t.Errorf("uri = %q", got)
	}

	m = MongoConfig{Username: "root", Password: "p@ss/word", Host: "db:27017"}
	if got := m.URI(); got != "mongodb://root:p%40ss%2Fword@db:27017" {
		t.Errorf("uri = %q", got)
	}
}
