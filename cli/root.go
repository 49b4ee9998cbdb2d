package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:               "substreams-poll",
	Short:             "Poll substreams modules output and aggregate it per module",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file, ${VAR} references are expanded from the environment")
}

func Main() {
	if err := rootCmd.Execute(); err != nil {
		zlog.Error("running cmd", zap.Error(err))
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	viper.SetEnvPrefix("SUBSTREAMS_POLL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := bindFlags(cmd.Flags()); err != nil {
		return err
	}

	if path := viper.GetString("config"); path != "" {
		config, err := LoadConfig(path)
		if err != nil {
			return err
		}
		config.ApplyDefaults()
		zlog.Debug("config file loaded", zap.String("path", path))
	}

	return nil
}

func bindFlags(flags *pflag.FlagSet) error {
	if err := viper.BindPFlags(flags); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}
