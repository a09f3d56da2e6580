package config

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/config"
)

const redacted = "<redacted>"

var showReveal bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Print the configuration after defaults and environment overrides are
applied, as YAML. Secrets are redacted unless --reveal is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.MustLoad(configPath(cmd))
		if err != nil {
			return err
		}
		if !showReveal {
			redact(cfg)
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(cfg)
	},
}

func init() {
	showCmd.Flags().BoolVar(&showReveal, "reveal", false, "Show secrets")
}

func redact(cfg *config.Config) {
	for _, s := range []*string{
		&cfg.Platform.Token,
		&cfg.API.JWT.Secret,
		&cfg.Database.Postgres.Password,
		&cfg.Queue.Redis.Password,
	} {
		if *s != "" {
			*s = redacted
		}
	}
}
