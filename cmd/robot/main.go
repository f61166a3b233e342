package main

import (
	"errors"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "robot",
	Short:         "Run and debug robot documents",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return processGlobalFlags()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.robot.yaml)")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.Bool("no-color", false, "disable colored output")
	flags.StringP("output", "o", "", "output format (json or text)")
	flags.String("base-dir", "", "directory relative robot paths are resolved against")
	_ = viper.BindPFlags(flags)
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return outputFormatsCompletion, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(runCmd, checkCmd, builtinsCmd, versionCmd)
}

// initConfig reads the config file and ROBOT_ environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fatal(err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".robot")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("robot")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fatal(err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}
