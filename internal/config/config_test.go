package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
	}{
		{
			name: "valid config",
			envVars: map[string]string{
				"BOT_TOKEN":            "123456:test-token",
				"ADMIN_USER_IDS":       "11111,22222",
				"MAX_DURATION_MINUTES": "60",
				"LOG_LEVEL":            "debug",
			},
			wantErr: false,
		},
		{
			name: "missing required bot token",
			envVars: map[string]string{
				"LOG_LEVEL": "info",
			},
			wantErr: true,
		},
		{
			name: "defaults applied",
			envVars: map[string]string{
				"BOT_TOKEN": "123456:test-token",
			},
			wantErr: false,
		},
		{
			name: "malformed admin id list",
			envVars: map[string]string{
				"BOT_TOKEN":      "123456:test-token",
				"ADMIN_USER_IDS": "11111,not-a-number",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			// Verify required fields
			if token, exists := tt.envVars["BOT_TOKEN"]; exists {
				require.Equal(t, token, cfg.BotToken)
			}

			// Verify defaults
			if _, exists := tt.envVars["MAX_DURATION_MINUTES"]; !exists {
				require.Equal(t, 120, cfg.MaxDurationMinutes)
			}

			if _, exists := tt.envVars["MAX_FILE_SIZE_MB"]; !exists {
				require.Equal(t, 2048, cfg.MaxFileSizeMB)
			}

			if _, exists := tt.envVars["LOG_LEVEL"]; !exists {
				require.Equal(t, "info", cfg.LogLevel)
			}

			if _, exists := tt.envVars["LEDGER_PATH"]; !exists {
				require.Equal(t, "user_downloads.json", cfg.LedgerPath)
			}

			if _, exists := tt.envVars["DOWNLOAD_DIR"]; !exists {
				require.Equal(t, "downloads", cfg.DownloadDir)
			}

			if _, exists := tt.envVars["ADMIN_USER_IDS"]; exists {
				require.Equal(t, []int64{11111, 22222}, cfg.AdminUserIDs)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				BotToken:           "123456:test-token",
				MaxDurationMinutes: 120,
				MaxFileSizeMB:      2048,
				LedgerPath:         "user_downloads.json",
				DownloadDir:        "downloads",
				LogLevel:           "info",
			},
			wantErr: false,
		},
		{
			name: "empty bot token",
			config: Config{
				BotToken:           "",
				MaxDurationMinutes: 120,
				MaxFileSizeMB:      2048,
				LedgerPath:         "user_downloads.json",
				DownloadDir:        "downloads",
				LogLevel:           "info",
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			config: Config{
				BotToken:           "123456:test-token",
				MaxDurationMinutes: 120,
				MaxFileSizeMB:      2048,
				LedgerPath:         "user_downloads.json",
				DownloadDir:        "downloads",
				LogLevel:           "invalid",
			},
			wantErr: true,
		},
		{
			name: "non-positive duration cap",
			config: Config{
				BotToken:           "123456:test-token",
				MaxDurationMinutes: 0,
				MaxFileSizeMB:      2048,
				LedgerPath:         "user_downloads.json",
				DownloadDir:        "downloads",
				LogLevel:           "info",
			},
			wantErr: true,
		},
		{
			name: "non-positive size cap",
			config: Config{
				BotToken:           "123456:test-token",
				MaxDurationMinutes: 120,
				MaxFileSizeMB:      -1,
				LedgerPath:         "user_downloads.json",
				DownloadDir:        "downloads",
				LogLevel:           "info",
			},
			wantErr: true,
		},
		{
			name: "empty ledger path",
			config: Config{
				BotToken:           "123456:test-token",
				MaxDurationMinutes: 120,
				MaxFileSizeMB:      2048,
				LedgerPath:         "",
				DownloadDir:        "downloads",
				LogLevel:           "info",
			},
			wantErr: true,
		},
		{
			name: "empty download dir",
			config: Config{
				BotToken:           "123456:test-token",
				MaxDurationMinutes: 120,
				MaxFileSizeMB:      2048,
				LedgerPath:         "user_downloads.json",
				DownloadDir:        "",
				LogLevel:           "info",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := Config{AdminUserIDs: []int64{11111, 22222}}

	require.True(t, cfg.IsAdmin(11111))
	require.True(t, cfg.IsAdmin(22222))
	require.False(t, cfg.IsAdmin(33333))
	require.False(t, (&Config{}).IsAdmin(11111))
}
