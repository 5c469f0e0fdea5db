package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHECK_INTERVAL_MINUTES", "")
	t.Setenv("MAX_REPLIES_PER_RUN", "")
	t.Setenv("REPLY_DELAY", "")
	t.Setenv("REPLY_STYLE", "")
	t.Setenv("OPENAI_MODEL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.CheckInterval != 5*time.Minute {
		t.Errorf("CheckInterval = %v, want 5m", cfg.CheckInterval)
	}
	if cfg.MaxRepliesPerRun != 10 {
		t.Errorf("MaxRepliesPerRun = %d, want 10", cfg.MaxRepliesPerRun)
	}
	if cfg.ReplyDelay != 2*time.Second {
		t.Errorf("ReplyDelay = %v, want 2s", cfg.ReplyDelay)
	}
	if cfg.ReplyStyle != "friendly" {
		t.Errorf("ReplyStyle = %q, want friendly", cfg.ReplyStyle)
	}
	if cfg.OpenAIModel != "gpt-3.5-turbo" {
		t.Errorf("OpenAIModel = %q", cfg.OpenAIModel)
	}
	if cfg.DBDsn == "" {
		t.Error("expected default DB_DSN")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"CHECK_INTERVAL_MINUTES": "zero",
		"MAX_REPLIES_PER_RUN":    "-3",
		"REPLY_DELAY":            "soon",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q should fail", key, val)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "key")
	t.Setenv("YOUTUBE_CHANNEL_ID", "UCabc")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, _ := Load()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	t.Setenv("YOUTUBE_CHANNEL_ID", "")
	cfg, _ = Load()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when channel id missing")
	}
}

func TestHasWriteCredentials(t *testing.T) {
	cfg := &Config{YTClientID: "id", YTClientSecret: "secret", YTRefreshToken: "rt"}
	if !cfg.HasWriteCredentials() {
		t.Error("complete bundle should report write-capable")
	}
	cfg.YTRefreshToken = ""
	if cfg.HasWriteCredentials() {
		t.Error("missing refresh token should report read-only")
	}
	// An access token alone must not flip the predicate; it expires.
	cfg.YTAccessToken = "at"
	if cfg.HasWriteCredentials() {
		t.Error("access token alone should not report write-capable")
	}
}
