package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Scan.Languages) != 7 || cfg.Scan.Languages[0] != "go" {
		t.Errorf("expected default languages to start with go, got %v", cfg.Scan.Languages)
	}

	if len(cfg.Scan.Exclude) != 7 {
		t.Errorf("expected 7 exclude patterns, got %d", len(cfg.Scan.Exclude))
	}

	if cfg.Watch.DebounceMS != 200 {
		t.Errorf("expected watch.debounce_ms 200, got %d", cfg.Watch.DebounceMS)
	}

	if cfg.Daemon.Host != "127.0.0.1" {
		t.Errorf("expected daemon.host 127.0.0.1, got %s", cfg.Daemon.Host)
	}

	if cfg.Daemon.Port != 7717 {
		t.Errorf("expected daemon.port 7717, got %d", cfg.Daemon.Port)
	}

	if cfg.Daemon.EventThrottleMS != 500 {
		t.Errorf("expected daemon.event_throttle_ms 500, got %d", cfg.Daemon.EventThrottleMS)
	}

	if cfg.Layers.GitPollIntervalMS != 2000 {
		t.Errorf("expected layers.git_poll_interval_ms 2000, got %d", cfg.Layers.GitPollIntervalMS)
	}

	if cfg.Layers.StaleAfterCommits != 50 {
		t.Errorf("expected layers.stale_after_commits 50, got %d", cfg.Layers.StaleAfterCommits)
	}

	if cfg.BM25.Backend != "json" {
		t.Errorf("expected bm25.backend json, got %s", cfg.BM25.Backend)
	}

	if cfg.BM25.DuplicateJaccard != 0.85 {
		t.Errorf("expected bm25.duplicate_jaccard 0.85, got %f", cfg.BM25.DuplicateJaccard)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "zero debounce",
			modify: func(c *Config) {
				c.Watch.DebounceMS = 0
			},
			wantErr: true,
		},
		{
			name: "port zero",
			modify: func(c *Config) {
				c.Daemon.Port = 0
			},
			wantErr: true,
		},
		{
			name: "port too high",
			modify: func(c *Config) {
				c.Daemon.Port = 70000
			},
			wantErr: true,
		},
		{
			name: "negative event throttle",
			modify: func(c *Config) {
				c.Daemon.EventThrottleMS = -1
			},
			wantErr: true,
		},
		{
			name: "zero git poll interval",
			modify: func(c *Config) {
				c.Layers.GitPollIntervalMS = 0
			},
			wantErr: true,
		},
		{
			name: "invalid bm25 backend",
			modify: func(c *Config) {
				c.BM25.Backend = "postgres"
			},
			wantErr: true,
		},
		{
			name: "duplicate jaccard too high",
			modify: func(c *Config) {
				c.BM25.DuplicateJaccard = 1.5
			},
			wantErr: true,
		},
		{
			name: "duplicate jaccard negative",
			modify: func(c *Config) {
				c.BM25.DuplicateJaccard = -0.1
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	defaults := DefaultConfig()

	t.Run("empty loaded uses all defaults", func(t *testing.T) {
		loaded := &Config{}
		merged := Merge(loaded, defaults)

		if merged.Daemon.Host != defaults.Daemon.Host {
			t.Errorf("expected host %s, got %s", defaults.Daemon.Host, merged.Daemon.Host)
		}

		if merged.BM25.Backend != defaults.BM25.Backend {
			t.Errorf("expected backend %s, got %s", defaults.BM25.Backend, merged.BM25.Backend)
		}

		if merged.Layers.StaleAfterSeconds != defaults.Layers.StaleAfterSeconds {
			t.Errorf("expected stale_after_seconds %d, got %d", defaults.Layers.StaleAfterSeconds, merged.Layers.StaleAfterSeconds)
		}
	})

	t.Run("loaded values take precedence", func(t *testing.T) {
		loaded := &Config{
			Daemon: DaemonConfig{
				Host: "0.0.0.0",
				Port: 9000,
			},
			BM25: BM25Config{
				Backend: "sqlite",
			},
		}
		merged := Merge(loaded, defaults)

		if merged.Daemon.Host != "0.0.0.0" {
			t.Errorf("expected host 0.0.0.0, got %s", merged.Daemon.Host)
		}

		if merged.Daemon.Port != 9000 {
			t.Errorf("expected port 9000, got %d", merged.Daemon.Port)
		}

		if merged.BM25.Backend != "sqlite" {
			t.Errorf("expected backend sqlite, got %s", merged.BM25.Backend)
		}

		// Unset values should use defaults.
		if merged.Daemon.EventThrottleMS != defaults.Daemon.EventThrottleMS {
			t.Errorf("expected event_throttle_ms %d, got %d", defaults.Daemon.EventThrottleMS, merged.Daemon.EventThrottleMS)
		}
		if merged.BM25.DuplicateJaccard != defaults.BM25.DuplicateJaccard {
			t.Errorf("expected duplicate_jaccard %f, got %f", defaults.BM25.DuplicateJaccard, merged.BM25.DuplicateJaccard)
		}
	})
}

func TestFindConfigDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "semfora-config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	projectDir := filepath.Join(tmpDir, "project")
	subDir := filepath.Join(projectDir, "subdir")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	t.Run("no config dir returns error", func(t *testing.T) {
		_, err := FindConfigDir(subDir)
		if err == nil {
			t.Error("expected error when no .semfora directory exists")
		}
	})

	configDir := filepath.Join(projectDir, ConfigDirName)
	if err := os.Mkdir(configDir, 0755); err != nil {
		t.Fatal(err)
	}

	t.Run("finds config dir in current directory", func(t *testing.T) {
		found, err := FindConfigDir(projectDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if found != configDir {
			t.Errorf("expected %s, got %s", configDir, found)
		}
	})

	t.Run("finds config dir in parent directory", func(t *testing.T) {
		found, err := FindConfigDir(subDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if found != configDir {
			t.Errorf("expected %s, got %s", configDir, found)
		}
	})
}

func TestEnsureConfigDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "semfora-config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	t.Run("creates config directory", func(t *testing.T) {
		dir, err := EnsureConfigDir(tmpDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		expectedDir := filepath.Join(tmpDir, ConfigDirName)
		if dir != expectedDir {
			t.Errorf("expected %s, got %s", expectedDir, dir)
		}

		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("config directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("returns existing directory", func(t *testing.T) {
		dir, err := EnsureConfigDir(tmpDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		expectedDir := filepath.Join(tmpDir, ConfigDirName)
		if dir != expectedDir {
			t.Errorf("expected %s, got %s", expectedDir, dir)
		}
	})
}

func TestLoadFromPath(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "semfora-config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	t.Run("loads valid config file", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "config.yaml")
		content := `
scan:
  languages: [go, python]
  exclude:
    - vendor/**
daemon:
  host: 0.0.0.0
  port: 8000
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadFromPath(configPath)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		if len(cfg.Scan.Languages) != 2 {
			t.Errorf("expected 2 languages, got %d", len(cfg.Scan.Languages))
		}
		if cfg.Daemon.Host != "0.0.0.0" {
			t.Errorf("expected host 0.0.0.0, got %s", cfg.Daemon.Host)
		}
		if cfg.Daemon.Port != 8000 {
			t.Errorf("expected port 8000, got %d", cfg.Daemon.Port)
		}

		// Check defaults were applied for missing values.
		if cfg.Watch.DebounceMS != 200 {
			t.Errorf("expected default debounce_ms 200, got %d", cfg.Watch.DebounceMS)
		}
		if cfg.BM25.Backend != "json" {
			t.Errorf("expected default bm25 backend json, got %s", cfg.BM25.Backend)
		}
	})

	t.Run("returns defaults for non-existent file", func(t *testing.T) {
		cfg, err := LoadFromPath(filepath.Join(tmpDir, "nonexistent.yaml"))
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		defaults := DefaultConfig()
		if cfg.Daemon.Port != defaults.Daemon.Port {
			t.Errorf("expected default port, got %d", cfg.Daemon.Port)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "invalid.yaml")
		if err := os.WriteFile(configPath, []byte("invalid: yaml: content"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := LoadFromPath(configPath)
		if err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("returns error for invalid config values", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "bad-values.yaml")
		content := `
bm25:
  backend: postgres
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := LoadFromPath(configPath)
		if err == nil {
			t.Error("expected error for invalid bm25 backend")
		}
	})
}

func TestLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "semfora-config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	t.Run("returns defaults when no config dir exists", func(t *testing.T) {
		cfg, err := Load(tmpDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		defaults := DefaultConfig()
		if cfg.Daemon.Port != defaults.Daemon.Port {
			t.Errorf("expected default config")
		}
	})

	t.Run("loads config from .semfora directory", func(t *testing.T) {
		configDir := filepath.Join(tmpDir, ConfigDirName)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			t.Fatal(err)
		}

		content := `
daemon:
  port: 9001
`
		configPath := filepath.Join(configDir, ConfigFileName)
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(tmpDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		if cfg.Daemon.Port != 9001 {
			t.Errorf("expected port 9001, got %d", cfg.Daemon.Port)
		}
	})
}

func TestSaveDefault(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "semfora-config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	t.Run("creates default config file", func(t *testing.T) {
		configPath, err := SaveDefault(tmpDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		expectedPath := filepath.Join(tmpDir, ConfigDirName, ConfigFileName)
		if configPath != expectedPath {
			t.Errorf("expected path %s, got %s", expectedPath, configPath)
		}

		cfg, err := LoadFromPath(configPath)
		if err != nil {
			t.Errorf("failed to load saved config: %v", err)
		}

		defaults := DefaultConfig()
		if cfg.Daemon.Port != defaults.Daemon.Port {
			t.Errorf("saved config doesn't match defaults")
		}
	})

	t.Run("fails if config already exists", func(t *testing.T) {
		_, err := SaveDefault(tmpDir)
		if err == nil {
			t.Error("expected error when config already exists")
		}
	})
}
