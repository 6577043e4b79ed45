package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("SESSION_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"SessionExpiry", cfg.Auth.SessionExpiry, 30 * 24 * time.Hour},
		{"TwoFAFreshnessWindow", cfg.Auth.TwoFAFreshnessWindow, 2 * time.Hour},
		{"VerificationCookieTTL", cfg.Auth.VerificationCookieTTL, 10 * time.Minute},
		{"OnboardingCodeTTL", cfg.Auth.OnboardingCodeTTL, 10 * time.Minute},
		{"CleanupInterval", cfg.Auth.CleanupInterval, 1 * time.Hour},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Port: got %q, want %q", cfg.Server.Port, "8080")
	}
}

func TestLoad_CustomDurations(t *testing.T) {
	os.Setenv("SESSION_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("TWOFA_FRESHNESS_WINDOW", "45m")
	os.Setenv("SESSION_EXPIRY", "168h")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.TwoFAFreshnessWindow != 45*time.Minute {
		t.Errorf("TwoFAFreshnessWindow: got %v, want %v", cfg.Auth.TwoFAFreshnessWindow, 45*time.Minute)
	}
	if cfg.Auth.SessionExpiry != 168*time.Hour {
		t.Errorf("SessionExpiry: got %v, want %v", cfg.Auth.SessionExpiry, 168*time.Hour)
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	os.Setenv("SESSION_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("TWOFA_FRESHNESS_WINDOW", "not-a-duration")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.TwoFAFreshnessWindow != 2*time.Hour {
		t.Errorf("TwoFAFreshnessWindow with invalid value: got %v, want %v",
			cfg.Auth.TwoFAFreshnessWindow, 2*time.Hour)
	}
}

func TestLoad_MissingSessionSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for missing SESSION_SECRET")
	}
}

func TestLoad_MissingDBPassword(t *testing.T) {
	os.Clearenv()
	os.Setenv("SESSION_SECRET", "test-secret-32-characters-long!")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for missing DB_PASSWORD")
	}
}

func TestValidateSessionSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		env     string
		wantErr bool
	}{
		{"short in development", "tooshort", "development", true},
		{"16 chars in development", "exactly16charss!", "development", false},
		{"16 chars in production", "exactly16charss!", "production", true},
		{"32 chars in production", "test-secret-32-characters-long!!", "production", false},
		{"weak value", "changeme", "development", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSessionSecret(tt.secret, tt.env)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSessionSecret(%q, %q) = %v, wantErr %v", tt.secret, tt.env, err, tt.wantErr)
			}
		})
	}
}
