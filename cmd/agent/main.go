package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/astrolink/consult-rtc/internal/broadcast"
	"github.com/astrolink/consult-rtc/internal/config"
	"github.com/astrolink/consult-rtc/internal/domain"
	"github.com/astrolink/consult-rtc/internal/media"
	"github.com/astrolink/consult-rtc/internal/relay"
	"github.com/astrolink/consult-rtc/lib/logger/sl"
	"github.com/astrolink/consult-rtc/lib/logger/slogpretty"
)

// The agent is a headless broadcast host: it attaches to the relay as the
// given identity, goes live and streams generated samples to every viewer
// that joins. Useful for soak testing the fan-out path without a browser.
func main() {
	var (
		relayURL   string
		token      string
		hostID     string
		configPath string
	)
	flag.StringVar(&relayURL, "relay", "ws://localhost:8080/ws/signal", "relay websocket url")
	flag.StringVar(&token, "token", "", "signaling token")
	flag.StringVar(&hostID, "host", "", "host identity, must match the token subject")
	flag.StringVar(&configPath, "config", "config/local.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load(".env")

	cfg := config.MustLoadPath(configPath)
	log := setupLogger(cfg.Env)

	if hostID == "" {
		log.Error("host identity is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus, err := relay.Dial(ctx, relayURL, token, log)
	if err != nil {
		log.Error("failed to dial relay", sl.Err(err))
		os.Exit(1)
	}

	engine := media.NewEngine(cfg.WebRTC.STUNServers)
	provider := media.NewSampleProvider()

	host := broadcast.NewHost(bus, provider, engine.NewPeerConnection, hostID, log)
	host.OnChat(func(msg domain.ChatPayload) {
		log.Info("chat", slog.String("sender", msg.Sender), slog.String("text", msg.Text))
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-bus.Ready():
		case <-gctx.Done():
			return gctx.Err()
		}

		if err := host.GoLive(gctx); err != nil {
			return err
		}
		log.Info("broadcast started", slog.String("host_id", hostID))

		<-gctx.Done()
		return gctx.Err()
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error("agent stopped", sl.Err(err))
	}

	host.EndLive()
	host.Close()
	bus.Close()
	log.Info("broadcast ended", slog.Int("last_viewer_count", host.ViewerCount()))
}

func setupLogger(env string) *slog.Logger {
	if env == "prod" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
	}
	return slog.New(opts.NewPrettyHandler(os.Stdout))
}
