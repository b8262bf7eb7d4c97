package internal

import (
	"strings"
	"testing"
	"time"
)

func validStoreConfig() StoreConfig {
	return StoreConfig{
		BaseURL:        "https://records.example.com/v1",
		ProjectID:      "proj-1",
		PublicKey:      "pk-test",
		TimeoutSeconds: 30,
	}
}

func TestStoreConfig_Valid(t *testing.T) {
	cfg := validStoreConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid store config should pass: %v", err)
	}
}

func TestStoreConfig_MissingCredentials(t *testing.T) {
	cfg := validStoreConfig()
	cfg.PublicKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing public key should fail validation")
	}
}

func TestStoreConfig_TimeoutDefault(t *testing.T) {
	cfg := StoreConfig{}
	if got := cfg.Timeout(); got != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", got)
	}
	cfg.TimeoutSeconds = 5
	if got := cfg.Timeout(); got != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", got)
	}
}

func TestInboxConfig_DisabledSkipsPathCheck(t *testing.T) {
	cfg := InboxConfig{Enabled: false, Path: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled inbox should pass: %v", err)
	}
	cfg.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled inbox without path should fail")
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_StoreValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store = validStoreConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("configured defaults should pass: %v", err)
	}

	cfg.Store.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch store error")
	}
}
