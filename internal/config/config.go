package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the full runtime configuration of the voice bridge.
type Configuration struct {
	Service       ServiceConfig
	Agent         AgentConfig
	Bridge        BridgeConfig
	Telephony     TelephonyConfig
	Kafka         KafkaConfig
	Mongo         MongoConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener and identity settings.
type ServiceConfig struct {
	Principal       string
	HTTPPort        string
	GRPCPort        string
	MetricsAddr     string
	ShutdownTimeout time.Duration
}

// AgentConfig holds conversational agent credentials and endpoint.
type AgentConfig struct {
	Provider    string // elevenlabs, mock
	APIKey      string
	AgentID     string
	URL         string
	ModelID     string
	VoiceID     string
	DialTimeout time.Duration
}

// BridgeConfig holds per-session bridging parameters.
type BridgeConfig struct {
	IdleTimeout       time.Duration // 0 disables
	FrameDuration     time.Duration
	FrameAlignment    int
	MaxQueueFrames    int
	HeartbeatInterval time.Duration // 0 disables
	SkipMediaPackets  int
	CloseGrace        time.Duration
	DefaultSampleRate int
	QuestionPolicy    string // first-turn, keyword
	PersistTimeout    time.Duration
}

// TelephonyConfig holds Exotel account settings.
type TelephonyConfig struct {
	AccountSID  string
	APIKey      string
	APIToken    string
	Subdomain   string
	CallerID    string
	AppID       string
	PublicWSURL string
	TimeLimit   int
	TimeOut     int
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicTranscript string
	TopicOutcome    string
	Principal       string
}

// MongoConfig holds outcome store settings. An empty URI selects the in-memory store.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

const (
	maxCloseGrace         = 100 * time.Millisecond
	defaultFrameDuration  = 100 * time.Millisecond
	defaultFrameAlignment = 320
)

// Load reads the configuration from the environment.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-voice-bridge")

	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	defaultProvider := "elevenlabs"
	if apiKey == "" {
		defaultProvider = "mock"
	}

	closeGrace := envOrDefaultDuration("CLOSE_GRACE", maxCloseGrace)
	if closeGrace > maxCloseGrace || closeGrace < 0 {
		closeGrace = maxCloseGrace
	}

	// Frames are paced on a ticker; a zero frame would never be emitted.
	frameDuration := envOrDefaultDuration("FRAME_DURATION", defaultFrameDuration)
	if frameDuration <= 0 {
		frameDuration = defaultFrameDuration
	}
	frameAlignment := envOrDefaultInt("FRAME_ALIGNMENT_BYTES", defaultFrameAlignment)
	if frameAlignment <= 0 {
		frameAlignment = defaultFrameAlignment
	}

	policy := strings.ToLower(envOrDefault("PAYMENT_QUESTION_POLICY", "first-turn"))
	if policy != "first-turn" && policy != "keyword" {
		policy = "first-turn"
	}

	return &Configuration{
		Service: ServiceConfig{
			Principal:       principal,
			HTTPPort:        envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:        envOrDefault("GRPC_PORT", "50051"),
			MetricsAddr:     envOrDefault("METRICS_ADDR", ":9090"),
			ShutdownTimeout: envOrDefaultDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Agent: AgentConfig{
			Provider:    strings.ToLower(envOrDefault("AGENT_PROVIDER", defaultProvider)),
			APIKey:      apiKey,
			AgentID:     os.Getenv("ELEVENLABS_AGENT_ID"),
			URL:         envOrDefault("AGENT_WS_URL", "wss://api.elevenlabs.io/v1/convai/conversation"),
			ModelID:     envOrDefault("AGENT_MODEL_ID", "eleven_multilingual_v2"),
			VoiceID:     os.Getenv("AGENT_VOICE_ID"),
			DialTimeout: envOrDefaultDuration("AGENT_DIAL_TIMEOUT", 10*time.Second),
		},
		Bridge: BridgeConfig{
			IdleTimeout:       time.Duration(envOrDefaultInt("WAIT_SEC", 0)) * time.Second,
			FrameDuration:     frameDuration,
			FrameAlignment:    frameAlignment,
			MaxQueueFrames:    envOrDefaultInt("MAX_QUEUE_FRAMES", 200),
			HeartbeatInterval: envOrDefaultDuration("HEARTBEAT_INTERVAL", 15*time.Second),
			SkipMediaPackets:  envOrDefaultInt("CALLER_SKIP_MEDIA_PACKETS", 0),
			CloseGrace:        closeGrace,
			DefaultSampleRate: envOrDefaultInt("DEFAULT_SAMPLE_RATE", 8000),
			QuestionPolicy:    policy,
			PersistTimeout:    envOrDefaultDuration("PERSIST_TIMEOUT", 5*time.Second),
		},
		Telephony: TelephonyConfig{
			AccountSID:  os.Getenv("EXOTEL_SID"),
			APIKey:      os.Getenv("EXOTEL_API_KEY"),
			APIToken:    os.Getenv("EXOTEL_API_TOKEN"),
			Subdomain:   envOrDefault("EXOTEL_SUBDOMAIN", "api.exotel.com"),
			CallerID:    os.Getenv("EXOTEL_CALLER_ID"),
			AppID:       os.Getenv("EXOTEL_APP_ID"),
			PublicWSURL: os.Getenv("WS_PUBLIC_URL"),
			TimeLimit:   envOrDefaultInt("CALL_TIME_LIMIT", 600),
			TimeOut:     envOrDefaultInt("CALL_TIMEOUT", 45),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         splitList(os.Getenv("KAFKA_BROKERS")),
			TopicTranscript: envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "call.transcript"),
			TopicOutcome:    envOrDefault("KAFKA_TOPIC_OUTCOME", "call.outcome"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Mongo: MongoConfig{
			URI:        os.Getenv("MONGO_URI"),
			Database:   envOrDefault("MONGO_DATABASE", "voicebridge"),
			Collection: envOrDefault("MONGO_COLLECTION", "call_logs"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  strings.ToLower(envOrDefault("LOG_LEVEL", envOrDefault("ZEROLOG_LOG_LEVEL", "info"))),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
