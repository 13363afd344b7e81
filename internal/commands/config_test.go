package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/diogo/ghostbar/internal/config"
)

func TestConfigCommand(t *testing.T) {
	if configCmd.Use != "config" {
		t.Errorf("Expected use 'config', got %s", configCmd.Use)
	}

	for _, sub := range []string{"show", "set", "path"} {
		found := false
		for _, cmd := range configCmd.Commands() {
			if cmd.Name() == sub {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Subcommand %s not found", sub)
		}
	}
}

func TestRunConfigShow(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.APIKey = "sk-proj-abcdefghijklmnop"

	var out bytes.Buffer
	if err := runConfigShow(&out, cfg); err != nil {
		t.Fatalf("runConfigShow failed: %v", err)
	}

	text := out.String()
	for _, key := range config.Keys() {
		if !strings.Contains(text, key) {
			t.Errorf("missing key %s", key)
		}
	}
	if strings.Contains(text, "abcdefgh") {
		t.Error("api key should be masked")
	}
	if !strings.Contains(text, "gpt-4o") {
		t.Error("model should be shown")
	}
}

func TestRunConfigSet(t *testing.T) {
	isolate(t)

	tests := []struct {
		key     string
		value   string
		want    string
		wantErr bool
	}{
		{key: "model", value: "gpt-4o-mini", want: "model = gpt-4o-mini\n"},
		{key: "save_history", value: "true", want: "save_history = true\n"},
		{key: "theme", value: "Nord", want: "theme = nord\n"},
		{key: "api_key", value: "sk-proj-abcdefghijklmnop", want: "api_key = sk-********mnop\n"},
		{key: "max_tokens", value: "-1", wantErr: true},
		{key: "colour", value: "blue", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			var out bytes.Buffer
			err := runConfigSet(&out, tt.key, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("runConfigSet failed: %v", err)
			}
			if out.String() != tt.want {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "gpt-4o-mini" || !cfg.SaveHistory || cfg.Theme != "nord" {
		t.Errorf("settings not persisted: %+v", cfg)
	}
	if cfg.APIKey != "sk-proj-abcdefghijklmnop" {
		t.Error("api key not persisted")
	}
}

func TestRunConfigSet_IgnoresEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvAPIKey, "sk-from-env-0000")

	var out bytes.Buffer
	if err := runConfigSet(&out, "model", "gpt-4.1"); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "" {
		t.Errorf("environment key leaked into the config file: %q", cfg.APIKey)
	}
}
