package llm

import "testing"

func TestNewAnthropicServiceRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewAnthropicService(Config{}); err == nil {
		t.Fatal("Expected error without an API key")
	}
}

func TestNewAnthropicServiceDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	svc, err := NewAnthropicService(Config{APIKey: "configured-key"})
	if err != nil {
		t.Fatalf("NewAnthropicService() error = %v", err)
	}
	if string(svc.model) != DefaultModel {
		t.Errorf("model = %s, want %s", svc.model, DefaultModel)
	}
	if svc.maxTokens != 4096 {
		t.Errorf("maxTokens = %d, want 4096", svc.maxTokens)
	}
}

func TestNewAnthropicServiceEnvPrecedence(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	svc, err := NewAnthropicService(Config{APIKey: "configured-key", Model: "claude-opus-4-1", MaxTokens: 1024})
	if err != nil {
		t.Fatalf("NewAnthropicService() error = %v", err)
	}
	if string(svc.model) != "claude-opus-4-1" {
		t.Errorf("model = %s", svc.model)
	}
	if svc.maxTokens != 1024 {
		t.Errorf("maxTokens = %d, want 1024", svc.maxTokens)
	}
}
