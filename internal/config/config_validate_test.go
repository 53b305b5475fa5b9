package config

import (
	"strings"
	"testing"
)

func TestConfigValidate_Valid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate_InvalidLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"unknown", true},
		{"trace", true},
		{"DEBUG", false},
		{"  Error  ", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := Defaults()
			cfg.Server.LogLevel = tt.level
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr && !strings.Contains(err.Error(), "server.log_level") {
				t.Errorf("error should mention server.log_level: %v", err)
			}
		})
	}
}

func TestConfigValidate_InvalidLogFormat(t *testing.T) {
	cfg := Defaults()
	cfg.Server.LogFormat = "xml"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "server.log_format") {
		t.Fatalf("expected server.log_format error, got %v", err)
	}
}

func TestConfigValidate_InvalidFifoPerm(t *testing.T) {
	cfg := Defaults()
	cfg.Server.FifoPerm = "not-octal"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "server.fifo_perm") {
		t.Fatalf("expected server.fifo_perm error, got %v", err)
	}
}

func TestConfigValidate_NegativeJobWorkers(t *testing.T) {
	cfg := Defaults()
	cfg.Jobs.JobWorkers = -1
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "jobs.job_workers") {
		t.Fatalf("expected jobs.job_workers error, got %v", err)
	}
}

func TestConfigValidate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			LogLevel:  "bogus",
			LogFormat: "xml",
			FifoPerm:  "999x",
		},
		Jobs: JobsConfig{JobWorkers: -3},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.log_level", "server.log_format", "server.fifo_perm", "jobs.job_workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}
