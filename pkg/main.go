package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/grpc"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/registry"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/server"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/services"
	"github.com/fatih/color"
	"github.com/robfig/cron/v3"

	pkg "git.solsynth.dev/hypernet/meeting/pkg/internal"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/database"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Configure settings
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("bind", "0.0.0.0:3000")
	viper.SetDefault("conferencing.provider", "livekit")
	viper.SetDefault("conferencing.region", "us-east-1")
	viper.SetDefault("calling.token_duration", 86400)
	viper.SetDefault("history.retention", "720h")

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}

	if viper.GetBool("debug.verbose") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Connect to database
	var history services.HistoryRecorder
	if database.Enabled() {
		if err := database.NewSource(); err != nil {
			log.Fatal().Err(err).Msg("An error occurred when connect to database.")
		} else if err := database.RunMigration(database.C); err != nil {
			log.Fatal().Err(err).Msg("An error occurred when running database auto migration.")
		}
		history = services.NewHistoryStore(database.C)
	} else {
		log.Warn().Msg("No database configured, meeting history is disabled.")
	}

	// Connect conferencing provider
	provider, err := services.NewProvider()
	if err != nil {
		log.Fatal().Err(err).Msg("An error occurred when setting up conferencing provider.")
	}

	gw := services.NewGateway(registry.New(), provider, history, services.GatewayConfig{
		ProviderName: viper.GetString("conferencing.provider"),
		MediaRegion:  viper.GetString("conferencing.region"),
		Timeout:      viper.GetDuration("conferencing.timeout"),
	})

	// Server
	app := server.NewServer(gw)
	go app.Listen()

	var rpc *grpc.Server
	if len(viper.GetString("grpc_bind")) > 0 {
		rpc = grpc.NewGrpc()
		go func() {
			if err := rpc.Listen(); err != nil {
				log.Fatal().Err(err).Msg("An error occurred when starting grpc server...")
			}
		}()
	}

	// Configure timed tasks
	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	if history != nil {
		quartz.AddFunc("@every 60m", services.DoAutoHistoryCleanup)
	}
	quartz.Start()

	// Messages
	log.Info().Msgf("Meeting v%s is started...", pkg.AppVersion)
	color.New(color.FgGreen, color.Bold).Printf(
		"Meeting gateway listening on %s (provider: %s, region: %s)\n",
		viper.GetString("bind"),
		viper.GetString("conferencing.provider"),
		viper.GetString("conferencing.region"),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msgf("Meeting v%s is quitting...", pkg.AppVersion)

	quartz.Stop()
	if rpc != nil {
		rpc.Shutdown()
	}
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("An error occurred when shutting down server...")
	}
}
