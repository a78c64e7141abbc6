package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
matrix:
  homeserver: https://matrix.example.org
  token: secret
  auto_join: false
responder:
  max_message_age: 1m
database:
  path: /tmp/dad.db
  retention: 720h
scheduler:
  tasks:
    sql_maintenance:
      enabled: false
logger:
  level: debug
  json: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Chat.Backend != BackendMatrix {
		t.Errorf("expected default backend %q, got %q", BackendMatrix, cfg.Chat.Backend)
	}
	if cfg.Matrix.Homeserver != "https://matrix.example.org" || cfg.Matrix.Token != "secret" {
		t.Errorf("unexpected matrix config: %+v", cfg.Matrix)
	}
	if cfg.Matrix.AutoJoin {
		t.Error("expected auto_join to be overridden to false")
	}
	if !cfg.Matrix.SkipInitialBacklog {
		t.Error("expected skip_initial_backlog default to be true")
	}
	if cfg.Responder.MaxMessageAge != time.Minute {
		t.Errorf("expected max_message_age 1m, got %v", cfg.Responder.MaxMessageAge)
	}
	if cfg.Database.Path != "/tmp/dad.db" || cfg.Database.Retention != 720*time.Hour {
		t.Errorf("unexpected database config: %+v", cfg.Database)
	}
	if cfg.Logger.Level != "debug" || !cfg.Logger.JSON {
		t.Errorf("unexpected logger config: %+v", cfg.Logger)
	}

	if task := cfg.Scheduler.Tasks["sql_maintenance"]; task.Enabled {
		t.Error("expected sql_maintenance to be disabled")
	}
	cleanup, ok := cfg.Scheduler.Tasks["correlation_cleanup"]
	if !ok || !cleanup.Enabled || cleanup.Schedule == "" {
		t.Errorf("expected default correlation_cleanup task, got %+v", cleanup)
	}
}

func TestLoadConfigMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("DADBOT_CHAT_BACKEND", "telegram")
	t.Setenv("DADBOT_TELEGRAM_TOKEN", "123:abc")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Chat.Backend != BackendTelegram {
		t.Errorf("expected backend from env, got %q", cfg.Chat.Backend)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("expected token from env, got %q", cfg.Telegram.Token)
	}
	if cfg.Database.Path != "dadbot.db" {
		t.Errorf("expected default database path, got %q", cfg.Database.Path)
	}
	if cfg.Responder.MaxMessageAge != 0 {
		t.Errorf("expected recency check disabled by default, got %v", cfg.Responder.MaxMessageAge)
	}
}

func TestLoadConfigEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
matrix:
  homeserver: https://matrix.example.org
  token: from-file
`)
	t.Setenv("DADBOT_MATRIX_TOKEN", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Matrix.Token != "from-env" {
		t.Errorf("expected env override, got %q", cfg.Matrix.Token)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "matrix without credentials",
			body:    "chat:\n  backend: matrix\n",
			wantErr: "matrix.homeserver",
		},
		{
			name:    "telegram without token",
			body:    "chat:\n  backend: telegram\n",
			wantErr: "telegram.token",
		},
		{
			name:    "unknown backend",
			body:    "chat:\n  backend: irc\n",
			wantErr: "Backend",
		},
		{
			name:    "invalid homeserver url",
			body:    "matrix:\n  homeserver: not a url\n  token: x\n",
			wantErr: "Homeserver",
		},
		{
			name:    "invalid log level",
			body:    "matrix:\n  homeserver: https://m.org\n  token: x\nlogger:\n  level: loud\n",
			wantErr: "Level",
		},
		{
			name:    "enabled task without schedule",
			body:    "matrix:\n  homeserver: https://m.org\n  token: x\nscheduler:\n  tasks:\n    extra:\n      enabled: true\n",
			wantErr: "Schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "matrix: [unterminated\n")); err == nil {
		t.Fatal("expected parse error")
	}
}
