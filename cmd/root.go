package cmd

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"bookrate/internal/config"
)

// CLI represents the complete command structure for the bookrate application
type CLI struct {
	// Global flags
	Verbose  bool `help:"Enable debug logging"`
	Headless bool `help:"Run browser automation headless" default:"true" negatable:""`

	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file" default:"./cache.db"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 24h)" default:"24h"`

	Search    SearchCmd    `cmd:"" help:"Search book ratings across platforms"`
	Platforms PlatformsCmd `cmd:"" help:"List supported platforms"`
	Serve     ServeCmd     `cmd:"" help:"Run the HTTP API server"`
	Cache     CacheCmd     `cmd:"" help:"Manage the local result cache"`
}

// Execute runs the Kong-based CLI
func Execute() {
	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("bookrate"),
		kong.Description("Aggregate book ratings from Korean and international book platforms."),
		kong.UsageOnError(),
	)

	initLogging(cli.Verbose)
	initConfig()
	updateGlobalConfig(&cli)

	if err := ctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() {
	// Cache defaults
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("browser.headless", true)
	viper.SetDefault("server.addr", ":8080")

	// Enable environment variable support
	viper.AutomaticEnv()
	if err := viper.BindEnv("AladinTTBKey", "ALADIN_TTB_KEY"); err != nil {
		slog.Error("Failed to bind environment variable", "error", err)
	}
	if err := viper.BindEnv("GoogleBooksAPIKey", "GOOGLE_BOOKS_API_KEY"); err != nil {
		slog.Error("Failed to bind environment variable", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}

	config.InitConfig()
}

func updateGlobalConfig(cli *CLI) {
	config.SetHeadless(cli.Headless)

	viper.Set("cache.dbfile", cli.CacheDBFile)
	viper.Set("cache.ttl", cli.CacheTTL)
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
