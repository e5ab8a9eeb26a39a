package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridge/internal/app"
	"github.com/dokzlo13/huebridge/internal/config"
)

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg.Log.Level, cfg.Log.UseJSON, cfg.Log.Colors)

	log.Info().Str("config", configPath).Int("devices", len(cfg.Devices)).Msg("Starting huebridge")

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	logIdentity(log.Logger, cfg, application.Services())

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	application.Wait()

	if err := application.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

// logIdentity reports what the emulated bridge advertises to clients.
func logIdentity(logger zerolog.Logger, cfg *config.Config, svc *app.Services) {
	logger.Info().
		Str("advertise_ip", svc.Host.LocalIP().String()).
		Str("mac", svc.Identity.MAC().String()).
		Str("bridge_id", svc.Identity.BridgeID()).
		Str("uuid", svc.Identity.UUID().String()).
		Str("http", cfg.Bridge.Addr()).
		Int("lights", svc.Registry.Len()).
		Bool("ssdp", cfg.Discovery.IsEnabled()).
		Bool("mdns", cfg.MDNS.Enabled).
		Bool("mqtt", cfg.MQTT.Enabled).
		Bool("ledger", cfg.Ledger.Enabled).
		Str("script", cfg.Script).
		Msg("Emulated bridge identity")
}

func setupLogging(level string, useJSON bool, colors bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
