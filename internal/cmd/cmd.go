package cmd

import (
	"errors"
	"github.com/clambin/adax-monitor/internal/cmd/monitor"
	"github.com/clambin/adax-monitor/internal/cmd/rooms"
	"github.com/clambin/adax-monitor/internal/configuration"
	"github.com/clambin/go-common/charmer"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io/fs"
	"log/slog"
	"os"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "adax",
		Short: "Utility for Adax heaters",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(viper.GetBool("debug")))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	if err := charmer.SetPersistentFlags(&RootCmd, viper.GetViper(), configuration.Arguments); err != nil {
		panic("failed to set flags: " + err.Error())
	}
	RootCmd.AddCommand(&monitor.Cmd, &rooms.Cmd, &rooms.SetCmd)
}

func initConfig() {
	// a .env file is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "err", err)
	}

	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/adax-monitor/")
		viper.AddConfigPath("$HOME/.adax-monitor")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	configuration.SetDefaults(viper.GetViper(), configuration.Arguments)

	viper.SetEnvPrefix("ADAX_MONITOR")
	viper.SetEnvKeyReplacer(configuration.EnvKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// without a configuration file, the configuration comes from flags & environment
		var notFound viper.ConfigFileNotFoundError
		if configFilename != "" || !errors.As(err, &notFound) {
			slog.Error("failed to read config file", "err", err)
			os.Exit(1)
		}
	}
}

func newLogger(debug bool) *slog.Logger {
	var opts slog.HandlerOptions
	if debug {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &opts))
}
