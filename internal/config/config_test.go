package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.LLMProvider != "gemini" {
		t.Errorf("LLMProvider = %q", cfg.LLMProvider)
	}
	if cfg.ChatAssessRateLimitPerMin != 20 || cfg.ChatAnalyzeRateLimitPerMin != 10 {
		t.Errorf("rate limits = %d/%d", cfg.ChatAssessRateLimitPerMin, cfg.ChatAnalyzeRateLimitPerMin)
	}
	if cfg.ChatHistoryWindow != 10 {
		t.Errorf("ChatHistoryWindow = %d", cfg.ChatHistoryWindow)
	}
	if !cfg.EnableWebSearch || cfg.WebSearchMaxResults != 8 {
		t.Errorf("web search = %v/%d", cfg.EnableWebSearch, cfg.WebSearchMaxResults)
	}
	if len(cfg.TrustedMedicalDomains) == 0 {
		t.Error("expected default trusted domains")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LLM_PROVIDER", " OpenRouter ")
	t.Setenv("CHAT_ASSESS_RATE_LIMIT_PER_MIN", "5")
	t.Setenv("ENABLE_WEB_SEARCH", "false")
	t.Setenv("TRUSTED_MEDICAL_DOMAINS", "nhs.uk, who.int ,")
	t.Setenv("ONCALL_CHAT_ID", "12345")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.LLMProvider != "openrouter" {
		t.Errorf("LLMProvider = %q, want trimmed lowercase", cfg.LLMProvider)
	}
	if cfg.ChatAssessRateLimitPerMin != 5 {
		t.Errorf("assess limit = %d", cfg.ChatAssessRateLimitPerMin)
	}
	if cfg.EnableWebSearch {
		t.Error("EnableWebSearch should be false")
	}
	if want := []string{"nhs.uk", "who.int"}; !reflect.DeepEqual(cfg.TrustedMedicalDomains, want) {
		t.Errorf("TrustedMedicalDomains = %v, want %v", cfg.TrustedMedicalDomains, want)
	}
	if cfg.OnCallChatID != 12345 {
		t.Errorf("OnCallChatID = %d", cfg.OnCallChatID)
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("CHAT_ASSESS_RATE_LIMIT_PER_MIN", "lots")
	t.Setenv("ONCALL_CHAT_ID", "not-a-number")

	cfg := Load()

	if cfg.ChatAssessRateLimitPerMin != 20 {
		t.Errorf("assess limit = %d, want default 20", cfg.ChatAssessRateLimitPerMin)
	}
	if cfg.OnCallChatID != 0 {
		t.Errorf("OnCallChatID = %d, want default 0", cfg.OnCallChatID)
	}
}
