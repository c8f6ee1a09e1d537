package app

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"ai-voice-bridge-service/internal/config"
	"ai-voice-bridge-service/internal/observability/logging"
)

const serviceName = "ai-voice-bridge-service"

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Voice bridge application created")
	return a
}

// setupLogger configures the global zerolog logger. ENV=dev forces console output.
func (a *Application) setupLogger() {
	format := a.Cfg.Observability.LogFormat
	if os.Getenv("ENV") == "dev" {
		format = "console"
	}

	base := logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     format,
		TimeFormat: time.RFC3339,
		Service:    serviceName,
	})
	a.Logger = base.With().
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", format).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// Start records the startup time and logs the effective configuration.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("principal", a.Cfg.Service.Principal).
		Str("agentProvider", a.Cfg.Agent.Provider).
		Str("agentApiKey", logging.Mask(a.Cfg.Agent.APIKey)).
		Bool("kafkaEnabled", a.Cfg.Kafka.Enabled).
		Bool("mongoEnabled", a.Cfg.Mongo.URI != "").
		Dur("idleTimeout", a.Cfg.Bridge.IdleTimeout).
		Dur("frameDuration", a.Cfg.Bridge.FrameDuration).
		Str("questionPolicy", a.Cfg.Bridge.QuestionPolicy).
		Msg("Voice bridge starting")

	return nil
}

// Uptime returns the time since Start.
func (a *Application) Uptime() time.Duration {
	if a.StartupTime.IsZero() {
		return 0
	}
	return time.Since(a.StartupTime)
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().
		Dur("uptime", a.Uptime()).
		Msg("Voice bridge shutting down")
}
