package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GATEWAY_MODERATORS", "mod-1,mod-2")
	t.Setenv("GATEWAY_CONSOLE_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.QueueCapacity != 50 {
		t.Errorf("queue_capacity = %d, want 50", cfg.QueueCapacity)
	}
	if cfg.SubmitLimit != 3 {
		t.Errorf("submit_limit = %d, want 3", cfg.SubmitLimit)
	}
	if cfg.SubmitWindow != 5*time.Minute {
		t.Errorf("submit_window = %s, want 5m", cfg.SubmitWindow)
	}
	if cfg.PreviewLength != 300 {
		t.Errorf("preview_length = %d, want 300", cfg.PreviewLength)
	}
	if len(cfg.Moderators) != 2 {
		t.Errorf("moderators = %v, want two entries", cfg.Moderators)
	}
}

func TestLoadRequiresModerators(t *testing.T) {
	t.Setenv("GATEWAY_MODERATORS", "")
	t.Setenv("GATEWAY_CONSOLE_SECRET", "s3cret")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for empty moderator set")
	}
	if !strings.Contains(err.Error(), "moderators") {
		t.Errorf("error = %v, want mention of moderators", err)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("GATEWAY_MODERATORS", "mod-1")
	t.Setenv("GATEWAY_CONSOLE_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing console secret")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GATEWAY_MODERATORS", "mod-1")
	t.Setenv("GATEWAY_CONSOLE_SECRET", "s3cret")
	t.Setenv("GATEWAY_QUEUE_CAPACITY", "10")
	t.Setenv("GATEWAY_LISTEN_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.QueueCapacity != 10 {
		t.Errorf("queue_capacity = %d, want 10", cfg.QueueCapacity)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want :9090", cfg.ListenAddr)
	}
}
