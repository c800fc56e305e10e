package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr != "127.0.0.1:8091" {
		t.Errorf("Addr = %q, want default 127.0.0.1:8091", cfg.Addr)
	}
	if cfg.OplogMax != 1000 {
		t.Errorf("OplogMax = %d, want 1000", cfg.OplogMax)
	}
	if cfg.HTTPMode != "on" {
		t.Errorf("HTTPMode = %q, want on", cfg.HTTPMode)
	}
	if cfg.OplogDB != "" {
		t.Errorf("OplogDB = %q, want empty (sink off by default)", cfg.OplogDB)
	}
}

func TestLoadConfig_OplogMaxValidation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		expectError bool
		errorSubstr string
	}{
		{
			name:        "valid from flag",
			args:        []string{"-oplog-max", "64"},
			expectError: false,
		},
		{
			name:        "zero from flag",
			args:        []string{"-oplog-max", "0"},
			expectError: true,
			errorSubstr: "greater than 0",
		},
		{
			name:        "negative from env",
			envVars:     map[string]string{"LOOM_OPLOG_MAX": "-5"},
			expectError: true,
			errorSubstr: "greater than 0",
		},
		{
			name:        "garbage from env",
			envVars:     map[string]string{"LOOM_OPLOG_MAX": "plenty"},
			expectError: true,
			errorSubstr: "invalid LOOM_OPLOG_MAX",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			cfg, err := LoadConfig(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errorSubstr)
				} else if !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				} else if cfg.OplogMax <= 0 {
					t.Errorf("expected positive oplog max, got %d", cfg.OplogMax)
				}
			}
		})
	}
}

func TestLoadConfig_AddrFromEnv(t *testing.T) {
	os.Setenv("LOOM_PORT", "9000")
	defer os.Unsetenv("LOOM_PORT")

	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Errorf("Addr = %q, want 127.0.0.1:9000", cfg.Addr)
	}

	// LOOM_ADDR takes precedence over LOOM_PORT.
	os.Setenv("LOOM_ADDR", "0.0.0.0:8500")
	defer os.Unsetenv("LOOM_ADDR")

	cfg, err = LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "0.0.0.0:8500" {
		t.Errorf("Addr = %q, want 0.0.0.0:8500", cfg.Addr)
	}

	// And flags beat both.
	cfg, err = LoadConfig([]string{"-addr", "127.0.0.1:7777"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:7777" {
		t.Errorf("Addr = %q, want 127.0.0.1:7777", cfg.Addr)
	}
}

func TestLoadConfig_HTTPMode(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		want        string
		expectError bool
		errorSubstr string
	}{
		{
			name: "off from flag",
			args: []string{"-http", "off"},
			want: "off",
		},
		{
			name:    "disabled normalizes to off",
			envVars: map[string]string{"LOOM_HTTP": "disabled"},
			want:    "off",
		},
		{
			name:    "enabled normalizes to on",
			envVars: map[string]string{"LOOM_HTTP": "enabled"},
			want:    "on",
		},
		{
			name:        "unsupported mode",
			args:        []string{"-http", "sideways"},
			expectError: true,
			errorSubstr: "must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			cfg, err := LoadConfig(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errorSubstr)
				} else if !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.HTTPMode != tt.want {
				t.Errorf("HTTPMode = %q, want %q", cfg.HTTPMode, tt.want)
			}
		})
	}
}

func TestLoadConfig_ResolvesRelativePaths(t *testing.T) {
	cfg, err := LoadConfig([]string{"-catalog", "catalog.yaml", "-oplog-db", "loom.db"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cwd, _ := os.Getwd()
	if cfg.CatalogPath != filepath.Join(cwd, "catalog.yaml") {
		t.Errorf("CatalogPath = %q, want resolved under cwd", cfg.CatalogPath)
	}
	if cfg.OplogDB != filepath.Join(cwd, "loom.db") {
		t.Errorf("OplogDB = %q, want resolved under cwd", cfg.OplogDB)
	}
	if !filepath.IsAbs(cfg.CatalogPath) {
		t.Errorf("CatalogPath = %q, want absolute", cfg.CatalogPath)
	}
}
