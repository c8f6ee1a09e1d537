package config

import (
	"os"
	"testing"
	"time"
)

var bridgeEnvVars = []string{
	"SERVICE_PRINCIPAL", "HTTP_PORT", "GRPC_PORT", "LOG_LEVEL", "ZEROLOG_LOG_LEVEL",
	"ELEVENLABS_API_KEY", "AGENT_PROVIDER", "WAIT_SEC", "FRAME_DURATION",
	"FRAME_ALIGNMENT_BYTES", "MAX_QUEUE_FRAMES", "HEARTBEAT_INTERVAL",
	"CLOSE_GRACE", "PAYMENT_QUESTION_POLICY", "KAFKA_BROKERS", "KAFKA_PRINCIPAL",
}

func clearEnv() {
	for _, v := range bridgeEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "svc-voice-bridge" {
		t.Errorf("expected default principal 'svc-voice-bridge', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default http port '8080', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default grpc port '50051', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Agent.Provider != "mock" {
		t.Errorf("expected mock provider without api key, got %s", cfg.Agent.Provider)
	}
	if cfg.Bridge.IdleTimeout != 0 {
		t.Errorf("expected idle timeout disabled by default, got %v", cfg.Bridge.IdleTimeout)
	}
	if cfg.Bridge.FrameDuration != 100*time.Millisecond {
		t.Errorf("expected 100ms frames, got %v", cfg.Bridge.FrameDuration)
	}
	if cfg.Bridge.FrameAlignment != 320 {
		t.Errorf("expected 320 byte alignment, got %d", cfg.Bridge.FrameAlignment)
	}
	if cfg.Bridge.MaxQueueFrames != 200 {
		t.Errorf("expected 200 max frames, got %d", cfg.Bridge.MaxQueueFrames)
	}
	if cfg.Bridge.HeartbeatInterval != 15*time.Second {
		t.Errorf("expected 15s heartbeat, got %v", cfg.Bridge.HeartbeatInterval)
	}
	if cfg.Bridge.QuestionPolicy != "first-turn" {
		t.Errorf("expected first-turn policy, got %s", cfg.Bridge.QuestionPolicy)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("ELEVENLABS_API_KEY", "sk_test")
	os.Setenv("WAIT_SEC", "30")
	os.Setenv("FRAME_DURATION", "20ms")
	os.Setenv("HEARTBEAT_INTERVAL", "0s")
	os.Setenv("PAYMENT_QUESTION_POLICY", "KEYWORD")
	os.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	os.Setenv("LOG_LEVEL", "DEBUG")
	defer clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Agent.Provider != "elevenlabs" {
		t.Errorf("expected elevenlabs provider with api key, got %s", cfg.Agent.Provider)
	}
	if cfg.Bridge.IdleTimeout != 30*time.Second {
		t.Errorf("expected 30s idle timeout, got %v", cfg.Bridge.IdleTimeout)
	}
	if cfg.Bridge.FrameDuration != 20*time.Millisecond {
		t.Errorf("expected 20ms frames, got %v", cfg.Bridge.FrameDuration)
	}
	if cfg.Bridge.HeartbeatInterval != 0 {
		t.Errorf("expected heartbeat disabled, got %v", cfg.Bridge.HeartbeatInterval)
	}
	if cfg.Bridge.QuestionPolicy != "keyword" {
		t.Errorf("expected keyword policy, got %s", cfg.Bridge.QuestionPolicy)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv()
	os.Setenv("WAIT_SEC", "soon")
	os.Setenv("MAX_QUEUE_FRAMES", "lots")
	os.Setenv("FRAME_DURATION", "invalid")
	os.Setenv("CLOSE_GRACE", "2s")
	os.Setenv("PAYMENT_QUESTION_POLICY", "always")
	defer clearEnv()

	cfg := Load()

	if cfg.Bridge.IdleTimeout != 0 {
		t.Errorf("expected default idle timeout on invalid input, got %v", cfg.Bridge.IdleTimeout)
	}
	if cfg.Bridge.MaxQueueFrames != 200 {
		t.Errorf("expected default max frames on invalid input, got %d", cfg.Bridge.MaxQueueFrames)
	}
	if cfg.Bridge.FrameDuration != 100*time.Millisecond {
		t.Errorf("expected default frame duration on invalid input, got %v", cfg.Bridge.FrameDuration)
	}
	if cfg.Bridge.CloseGrace != 100*time.Millisecond {
		t.Errorf("expected close grace capped at 100ms, got %v", cfg.Bridge.CloseGrace)
	}
	if cfg.Bridge.QuestionPolicy != "first-turn" {
		t.Errorf("expected fallback policy, got %s", cfg.Bridge.QuestionPolicy)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	defer clearEnv()

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestLoad_NonPositiveFrameSettings_FallbackToDefaults(t *testing.T) {
	tests := []struct {
		name      string
		duration  string
		alignment string
	}{
		{"zero", "0s", "0"},
		{"negative", "-20ms", "-320"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv()
			os.Setenv("FRAME_DURATION", tt.duration)
			os.Setenv("FRAME_ALIGNMENT_BYTES", tt.alignment)
			defer clearEnv()

			cfg := Load()

			if cfg.Bridge.FrameDuration != 100*time.Millisecond {
				t.Errorf("expected 100ms frames, got %v", cfg.Bridge.FrameDuration)
			}
			if cfg.Bridge.FrameAlignment != 320 {
				t.Errorf("expected 320 byte alignment, got %d", cfg.Bridge.FrameAlignment)
			}
		})
	}
}
