package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/tinyland-inc/mediaclaw/cmd/mediaclaw/internal"
	"github.com/tinyland-inc/mediaclaw/pkg/bus"
	"github.com/tinyland-inc/mediaclaw/pkg/channels"
	"github.com/tinyland-inc/mediaclaw/pkg/health"
	"github.com/tinyland-inc/mediaclaw/pkg/logger"
	"github.com/tinyland-inc/mediaclaw/pkg/media"
	relaycore "github.com/tinyland-inc/mediaclaw/pkg/relay"
	"github.com/tinyland-inc/mediaclaw/pkg/telegraph"
)

func relayCmd(debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if !cfg.Channels.Telegram.Enabled {
		return errors.New("telegram channel is disabled in config")
	}
	if cfg.Channels.Telegram.Token == "" {
		return errors.New("telegram bot token is required (set channels.telegram.token or MEDIACLAW_CHANNELS_TELEGRAM_TOKEN)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resolve the Telegraph credential once; the client holds it immutably
	// for the process lifetime.
	uploadCfg := telegraph.Config{
		BaseURL:     cfg.Telegraph.BaseURL,
		APIBaseURL:  cfg.Telegraph.APIBaseURL,
		AccessToken: cfg.Telegraph.AccessToken,
		ShortName:   cfg.Telegraph.ShortName,
		AuthorName:  cfg.Telegraph.AuthorName,
	}
	if uploadCfg.AccessToken == "" {
		fmt.Println("No Telegraph access token configured, creating an account...")
		token, err := telegraph.CreateAccount(ctx, uploadCfg)
		if err != nil {
			return fmt.Errorf("error provisioning telegraph account: %w", err)
		}
		uploadCfg.AccessToken = token
		logger.InfoC("telegraph", "New Telegraph account created")
	}
	uploader := telegraph.NewClient(uploadCfg)

	msgBus := bus.NewMessageBus()

	telegramChannel, err := channels.NewTelegramChannel(cfg.Channels.Telegram, msgBus)
	if err != nil {
		return fmt.Errorf("error creating telegram channel: %w", err)
	}

	fetcher := media.NewFetcher(
		telegramChannel,
		cfg.Media.ScratchDir,
		time.Duration(cfg.Media.DownloadTimeoutSeconds)*time.Second,
	)
	validator := media.NewValidator(cfg.Media.MaxFileBytes)
	pipeline := relaycore.NewPipeline(fetcher, validator, uploader)

	loop := relaycore.NewLoop(msgBus, pipeline, map[string]channels.Channel{
		telegramChannel.Name(): telegramChannel,
	})

	if err := telegramChannel.Start(ctx); err != nil {
		return fmt.Errorf("error starting telegram channel: %w", err)
	}

	healthServer := health.NewServer(cfg.Gateway.Host, cfg.Gateway.Port)
	go func() {
		if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("health", "Health server error", map[string]any{"error": err.Error()})
		}
	}()
	healthServer.SetReady(true)

	go loop.Run(ctx)
	go loop.DispatchOutbound(ctx)

	fmt.Printf("✓ Relay started\n")
	fmt.Printf("✓ Health endpoints available at http://%s:%d/health and /ready\n",
		cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	healthServer.Stop(context.Background())
	_ = telegramChannel.Stop(context.Background())
	msgBus.Close()
	fmt.Println("✓ Relay stopped")

	return nil
}
