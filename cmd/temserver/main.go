// temserver is the crew-training server: rooms, game logic, the flight
// simulation loop, the AI crew member, and the realtime gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/temcrew/temserver/pkg/agent"
	"github.com/temcrew/temserver/pkg/config"
	"github.com/temcrew/temserver/pkg/game"
	"github.com/temcrew/temserver/pkg/gateway"
	"github.com/temcrew/temserver/pkg/llm"
	"github.com/temcrew/temserver/pkg/metrics"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/room"
	"github.com/temcrew/temserver/pkg/scenario"
	"github.com/temcrew/temserver/pkg/sim"
	"github.com/temcrew/temserver/pkg/tts"
	"github.com/temcrew/temserver/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("CONFIG_FILE", "./temserver.yaml"),
		"Path to configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		slog.Error("Failed to create log directory", "dir", cfg.LogDir, "error", err)
		os.Exit(1)
	}

	slog.Info("Starting temserver",
		"version", version.Full(),
		"http_port", cfg.HTTPPort,
		"log_dir", cfg.LogDir,
		"slow_model", cfg.AI.Slow.Model,
		"fast_model", cfg.AI.Fast.Model,
		"tts_enabled", cfg.TTS.SpeechEnabled())

	ctx := context.Background()

	// Domain core: room store, scenario tables, game engine.
	store := room.NewStore(cfg.LogDir)
	registry := scenario.GetRegistry()
	engine := game.NewEngine(store, registry, nil)

	// Realtime transport. The engine broadcasts through it.
	gw := gateway.New(engine, store, nil, time.Duration(cfg.Gateway.WriteTimeoutS)*time.Second)
	engine.B = gw

	m := metrics.New(store.Count, gw.ActiveConnections)
	gw.ObserveMessage = m.CountMessage

	// Speech fan-out.
	var ttsPool *tts.Fanout
	if cfg.TTS.SpeechEnabled() {
		synth := tts.NewHTTPSynthesizer(cfg.TTS.Provider)
		ttsPool = tts.NewFanout(synth, gw, cfg.TTS.Workers, cfg.TTS.QueueSize, func(id string) bool {
			_, ok := store.Get(id)
			return ok
		})
		ttsPool.ObserveSynthesis = m.ObserveSynthesis
		ttsPool.Start(ctx)
		gw.SetTTS(ttsPool)
	}

	// AI crew member factory for single-player rooms.
	slowLLM := llm.New(cfg.AI.Slow)
	fastLLM := llm.New(cfg.AI.Fast)
	engine.NewAgent = func(roomID string, role models.Role) room.AgentNotifier {
		a := agent.New(roomID, role, store, engine, slowLLM, fastLLM)
		a.ObserveLLMFailure = m.CountLLMFallback
		return a
	}

	// Phase-2 simulation loop.
	runner := sim.NewRunner(registry, gw)
	runner.ObserveTick = m.ObserveTick
	engine.StartSim = runner.Start

	// HTTP surface: health, metrics, the WebSocket endpoint.
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"version":     version.Full(),
			"rooms":       store.Count(),
			"connections": gw.ActiveConnections(),
		})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/ws", gw.Handler())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// Stop accepting connections, then tear down rooms and the speech pool.
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	store.Close()
	if ttsPool != nil {
		ttsPool.Stop()
	}

	slog.Info("Shutdown complete")
}
