package config

import (
	"testing"
	"time"
)

func TestLoadConfig_HeaderMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "header")
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
	t.Setenv("EXPIRY_SWEEP_BATCH", "25")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", cfg.CacheTTL)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "broker-2:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.ExpirySweepBatch != 25 {
		t.Errorf("ExpirySweepBatch = %d, want 25", cfg.ExpirySweepBatch)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "casdoor without endpoint",
			cfg:     Config{Auth: AuthConfig{Mode: AuthModeCasdoor}, Database: DatabaseConfig{DSN: "x"}, ExpirySweepBatch: 1},
			wantErr: true,
		},
		{
			name: "casdoor configured",
			cfg: Config{
				Auth:             AuthConfig{Mode: AuthModeCasdoor},
				Casdoor:          CasdoorConfig{Endpoint: "http://casdoor", Cert: "cert"},
				Database:         DatabaseConfig{DSN: "x"},
				ExpirySweepBatch: 1,
			},
		},
		{
			name:    "unknown mode",
			cfg:     Config{Auth: AuthConfig{Mode: "ldap"}, Database: DatabaseConfig{DSN: "x"}, ExpirySweepBatch: 1},
			wantErr: true,
		},
		{
			name:    "zero sweep batch",
			cfg:     Config{Auth: AuthConfig{Mode: AuthModeHeader}, Database: DatabaseConfig{DSN: "x"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
