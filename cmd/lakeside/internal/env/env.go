// Package env maps LAKESIDE_<SUBCOMMAND>_<FLAG> environment variables
// (LAKESIDE_<FLAG> for the root command), and an optional --config YAML
// file, onto unset cobra/pflag flags of the command being run. Binding
// runs in each subcommand's PreRunE, after logging has already been set up
// from --log-level and --log-json, so those two take effect only when
// given on the command line.
package env

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const globalPrefix = "lakeside"

// Bind maps environment variables prefixed LAKESIDE_ (or
// LAKESIDE_<SUBCOMMAND>_ for a named subcommand), and any keys set in the
// --config YAML file, onto unset flags. Viper resolves env-vs-config
// precedence itself (env wins over config file, both lose to a flag the
// user set explicitly), so both sources share one viper instance.
func Bind(command *cobra.Command) error {
	var errs []string
	v := viper.New()
	v.AutomaticEnv()
	if command.Name() == globalPrefix {
		v.SetEnvPrefix(command.Name())
	} else {
		v.SetEnvPrefix(fmt.Sprintf("%s_%s", globalPrefix, command.Name()))
	}

	if cfgFile, _ := command.Root().PersistentFlags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	command.Flags().VisitAll(func(f *pflag.Flag) {
		configName := strings.ReplaceAll(f.Name, "-", "_")
		if !f.Changed && v.IsSet(configName) {
			val := v.Get(configName)
			if err := command.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				errs = append(errs, err.Error())
			}
		}
	})

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("error mapping environment variables to command flags: %s", strings.Join(errs, "; "))
}
