package cmd

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jmcampanini/grove-status/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print current configuration in TOML format",
	Long: `Print the current effective configuration in TOML format.

This outputs the merged configuration (defaults with any user overrides applied).
Inline tokens are masked. The output can be redirected to a file to create a
new configuration:

  grove-status config > grove-status.toml`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

const maskedSecret = "********"

func runConfig(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment(cmd.Context())
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(maskSecrets(env.cfg)); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), buf.String())
	return err
}

// maskSecrets returns a copy of cfg with inline tokens replaced.
func maskSecrets(cfg config.Config) config.Config {
	cfg.Repositories = append(cfg.Repositories[:0:0], cfg.Repositories...)
	for i := range cfg.Repositories {
		if cfg.Repositories[i].Token != "" {
			cfg.Repositories[i].Token = maskedSecret
		}
		if cfg.Repositories[i].WoodpeckerToken != "" {
			cfg.Repositories[i].WoodpeckerToken = maskedSecret
		}
	}
	return cfg
}
