package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/TanaySingh02/Farwise2.0-sub000/cmd/farwise-agent/cmds"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:   "farwise-agent",
	Short: "farwise-agent runs the Farwise voice assistant sessions",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// flags are parsed now, reload config and logging with them
		if err := initConfig(viper.GetString("config")); err != nil {
			return err
		}
		return initLogger()
	},
	SilenceUsage: true,
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func initLogger() error {
	level := viper.GetString("log-level")
	if viper.GetBool("verbose") && level != "trace" {
		level = "debug"
	}
	return InitLogger(&logConfig{
		Level:      level,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
}

func initConfig(configPath string) error {
	viper.SetEnvPrefix("farwise")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.farwise")
		viper.AddConfigPath("/etc/farwise")
		if xdg, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(xdg + "/farwise")
		}
	}

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// no config file, flags and env only
	} else if err != nil {
		return err
	}
	return nil
}

func InitLogger(config *logConfig) error {
	if config.WithCaller {
		log.Logger = log.With().Caller().Logger()
	}

	var logWriter io.Writer
	switch {
	case config.LogFormat == "json":
		logWriter = os.Stderr
	case config.LogFormat == "text", isatty.IsTerminal(os.Stderr.Fd()):
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	default:
		logWriter = os.Stderr
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, // days
				},
			})
	}
	log.Logger = log.Output(logWriter)

	if config.Level == "" {
		config.Level = "info"
	}
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.Bool("with-caller", false, "Log caller")
	pf.String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	pf.String("log-format", "", "Log format (json, text), text when stderr is a terminal")
	pf.String("log-file", "", "Also log to this file, rotated")
	pf.Bool("verbose", false, "Verbose output")
	pf.String("config", "", "Path to config file (default ./config.yaml or ~/.farwise/config.yaml)")
	cmds.AddConfigFlags(pf)
	cobra.CheckErr(viper.BindPFlags(pf))

	rootCmd.AddCommand(cmds.NewServeCommand(), cmds.NewChatCommand(), cmds.NewValidateCommand())
}
