package common

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func validConfig() *Config {
	return &Config{
		Engine:     EngineMemory,
		DataDir:    "data",
		Origin:     "local",
		CapacityKB: 5120,
		StorageKey: "fish_bird_observations",
		LogLevel:   "warn",
	}
}

func TestConfigValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"engine", func(c *Config) { c.Engine = "redis" }},
		{"data dir", func(c *Config) { c.DataDir = "" }},
		{"empty origin", func(c *Config) { c.Origin = "" }},
		{"origin with slash", func(c *Config) { c.Origin = "../etc" }},
		{"negative capacity", func(c *Config) { c.CapacityKB = -1 }},
		{"storage key", func(c *Config) { c.StorageKey = "" }},
		{"lock writes with memory engine", func(c *Config) { c.LockWrites = true }},
		{"log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.modify(c)
			if err := c.Validate(); err == nil {
				t.Errorf("Expected an error")
			}
		})
	}
}

func TestLockWritesWithSQLite(t *testing.T) {
	c := validConfig()
	c.Engine = EngineSQLite
	c.LockWrites = true
	if err := c.Validate(); err != nil {
		t.Errorf("Expected lock-writes with sqlite to be valid, got %v", err)
	}
}

func TestConfigPaths(t *testing.T) {
	c := validConfig()
	if c.SnapshotPath() != "data/local.snapshot" {
		t.Errorf("Unexpected snapshot path %s", c.SnapshotPath())
	}
	if c.SQLitePath() != "data/fieldlog.db" {
		t.Errorf("Unexpected sqlite path %s", c.SQLitePath())
	}
	if c.CapacityBytes() != 5120*1024 {
		t.Errorf("Unexpected capacity %d", c.CapacityBytes())
	}
}

func TestConfigString(t *testing.T) {
	out := validConfig().String()
	for _, want := range []string{"STORAGE", "OBSERVATIONS", "LOGGING", "fish_bird_observations", "5120 KB", "embedded"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	}
	for input, want := range tests {
		got, err := ParseLogLevel(input)
		if err != nil || got != want {
			t.Errorf("ParseLogLevel(%q) = %v, %v; expected %v", input, got, err, want)
		}
	}
	if _, err := ParseLogLevel("loud"); err == nil {
		t.Errorf("Expected an error for an unknown level")
	}
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	old := LogOutput
	LogOutput = &buf
	defer func() { LogOutput = old }()

	l := CreateLogger("observation")
	l.Infof("hidden")
	l.Warningf("decode failed: %s", "bad blob")
	l.SetLevel(logger.DEBUG)
	l.Debugf("now visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info message to be filtered at the default level:\n%s", out)
	}
	if !strings.Contains(out, "WARN  | observation  | decode failed: bad blob") {
		t.Errorf("Unexpected log format:\n%s", out)
	}
	if !strings.Contains(out, "DEBUG | observation  | now visible") {
		t.Errorf("Expected debug message after SetLevel:\n%s", out)
	}
}

func TestInitLoggersRepeatedly(t *testing.T) {
	var buf bytes.Buffer
	old := LogOutput
	LogOutput = &buf
	defer func() { LogOutput = old }()

	if err := InitLoggers("debug"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// a second command in the same process initializes again
	if err := InitLoggers("error"); err != nil {
		t.Fatalf("Unexpected error on second call: %v", err)
	}
	if err := InitLoggers("loud"); err == nil {
		t.Errorf("Expected an error for an unknown level")
	}

	l := logger.GetLogger("observation")
	l.Warningf("filtered warning")
	l.Errorf("visible error")

	out := buf.String()
	if strings.Contains(out, "filtered warning") {
		t.Errorf("Expected warnings to be filtered after switching to error:\n%s", out)
	}
	if !strings.Contains(out, "ERROR | observation  | visible error") {
		t.Errorf("Expected the error line in:\n%s", out)
	}
}
