package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	grpcapi "ai-voice-bridge-service/internal/api/grpc"
	"ai-voice-bridge-service/internal/app"
	"ai-voice-bridge-service/internal/config"
	"ai-voice-bridge-service/internal/events"
	httpapi "ai-voice-bridge-service/internal/http"
	"ai-voice-bridge-service/internal/observability"
	"ai-voice-bridge-service/internal/observability/metrics"
	"ai-voice-bridge-service/internal/service/agent"
	"ai-voice-bridge-service/internal/service/agent/mock"
	"ai-voice-bridge-service/internal/service/bridge"
	"ai-voice-bridge-service/internal/service/conversation"
	"ai-voice-bridge-service/internal/service/outcome"
	"ai-voice-bridge-service/internal/store"
	"ai-voice-bridge-service/internal/telephony/exotel"
)

func main() {
	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application start failed")
	}

	outcomes := openStore(cfg)

	// Kafka publisher with separate topics for transcript turns and outcomes
	publisher := events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicOutcome:    cfg.Kafka.TopicOutcome,
		Principal:       cfg.Kafka.Principal,
	})

	recorder := outcome.NewRecorder(outcomes, publisher)
	extractor := outcome.NewExtractor(nil)

	telephony := exotel.NewClient(exotel.Config{
		AccountSID: cfg.Telephony.AccountSID,
		APIKey:     cfg.Telephony.APIKey,
		APIToken:   cfg.Telephony.APIToken,
		Subdomain:  cfg.Telephony.Subdomain,
		CallerID:   cfg.Telephony.CallerID,
		AppID:      cfg.Telephony.AppID,
		TimeLimit:  cfg.Telephony.TimeLimit,
		TimeOut:    cfg.Telephony.TimeOut,
	})

	deps := bridge.Deps{
		Dialer:    newAgentDialer(cfg.Agent),
		Sink:      recorder,
		Publisher: publisher,
		Extractor: extractor,
		Metrics:   metrics.DefaultMetrics,
	}
	if telephony.Configured() {
		deps.Calls = telephony
	}
	registry := bridge.NewRegistry()

	telephonyBase := bridgeConfig(cfg)
	appBase := telephonyBase
	appBase.SampleRate = 16000

	router := httpapi.NewRouter(application, httpapi.Deps{
		TelephonyWS: bridge.NewHandler(bridge.ModeTelephony, telephonyBase, deps, registry),
		AppWS:       bridge.NewHandler(bridge.ModeUI, appBase, deps, registry),
		Calls:       telephony,
		Outcomes:    outcomes,
		Sink:        recorder,
		Extractor:   extractor,
		Draining:    registry.Draining,
		Metrics:     metrics.DefaultMetrics,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	grpcServer := grpcapi.New(metrics.DefaultMetrics)
	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Service.GRPCPort).Msg("Failed to listen")
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("gRPC serve failed")
		}
	}()

	obs := observability.NewServer(cfg.Service.MetricsAddr, func() bool { return !registry.Draining() })
	obs.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info().Str("signal", s.String()).Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()

	grpcServer.SetServing(false)
	if err := registry.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Int("live", registry.Len()).Msg("Sessions did not drain in time")
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown")
	}
	grpcServer.Stop(ctx)
	if err := obs.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Observability server shutdown")
	}
	if err := publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("Kafka publisher close")
	}
	if err := outcomes.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Outcome store close")
	}
	application.Shutdown()
}

func openStore(cfg *config.Configuration) store.Store {
	if cfg.Mongo.URI == "" {
		log.Warn().Msg("MONGO_URI not set, outcomes kept in memory")
		return store.NewMemory()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	m, err := store.NewMongo(ctx, store.MongoConfig{
		URI:        cfg.Mongo.URI,
		Database:   cfg.Mongo.Database,
		Collection: cfg.Mongo.Collection,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("MongoDB connection failed")
	}
	return m
}

func newAgentDialer(cfg config.AgentConfig) bridge.AgentDialer {
	if cfg.Provider == "mock" {
		log.Warn().Msg("Using scripted mock agent")
		return mock.NewDialer()
	}
	d, err := agent.NewDialer(agent.DialerConfig{
		URL:     cfg.URL,
		APIKey:  cfg.APIKey,
		AgentID: cfg.AgentID,
		Timeout: cfg.DialTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Provider).Msg("Agent dialer configuration invalid")
	}
	return d
}

func bridgeConfig(cfg *config.Configuration) bridge.Config {
	return bridge.Config{
		SampleRate:        cfg.Bridge.DefaultSampleRate,
		IdleTimeout:       cfg.Bridge.IdleTimeout,
		FrameDuration:     cfg.Bridge.FrameDuration,
		FrameAlignment:    cfg.Bridge.FrameAlignment,
		MaxQueueFrames:    cfg.Bridge.MaxQueueFrames,
		HeartbeatInterval: cfg.Bridge.HeartbeatInterval,
		SkipMediaPackets:  cfg.Bridge.SkipMediaPackets,
		CloseGrace:        cfg.Bridge.CloseGrace,
		QuestionPolicy:    conversation.Policy(cfg.Bridge.QuestionPolicy),
		PersistTimeout:    cfg.Bridge.PersistTimeout,
		Init: agent.InitOptions{
			ModelID: cfg.Agent.ModelID,
			VoiceID: cfg.Agent.VoiceID,
		},
	}
}
