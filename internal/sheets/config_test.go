package sheets

import (
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "service account auth",
			modify:  func(c *Config) { c.ServiceAccountPath = "/path/to/sa.json" },
			wantErr: false,
		},
		{
			name: "oauth auth",
			modify: func(c *Config) {
				c.ClientID = "id"
				c.ClientSecret = "secret"
				c.RefreshToken = "token"
			},
			wantErr: false,
		},
		{
			name:    "no auth",
			modify:  func(_ *Config) {},
			wantErr: true,
		},
		{
			name: "partial oauth",
			modify: func(c *Config) {
				c.ClientID = "id"
				c.ClientSecret = "secret"
			},
			wantErr: true,
		},
		{
			name: "both auth methods",
			modify: func(c *Config) {
				c.ServiceAccountPath = "/path/to/sa.json"
				c.ClientID = "id"
				c.ClientSecret = "secret"
				c.RefreshToken = "token"
			},
			wantErr: true,
		},
		{
			name: "zero batch size",
			modify: func(c *Config) {
				c.ServiceAccountPath = "/path/to/sa.json"
				c.BatchSize = 0
			},
			wantErr: true,
		},
		{
			name: "negative retries",
			modify: func(c *Config) {
				c.ServiceAccountPath = "/path/to/sa.json"
				c.RetryAttempts = -1
			},
			wantErr: true,
		},
		{
			name: "negative retry delay",
			modify: func(c *Config) {
				c.ServiceAccountPath = "/path/to/sa.json"
				c.RetryDelay = -time.Second
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(&config)

			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "env-id")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "env-secret")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "env-token")
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "sheet-123")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_NAME", "")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if config.ClientID != "env-id" || config.RefreshToken != "env-token" {
		t.Errorf("OAuth credentials not loaded: %+v", config)
	}
	if config.SpreadsheetID != "sheet-123" {
		t.Errorf("SpreadsheetID = %s, want sheet-123", config.SpreadsheetID)
	}
	if config.SpreadsheetName != "Insider Study" {
		t.Errorf("SpreadsheetName = %s, want the default", config.SpreadsheetName)
	}
}

func TestConfig_LoadFromEnvMissingAuth(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "")
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err == nil {
		t.Fatal("LoadFromEnv without credentials should fail")
	}
}
