package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/config"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Check the configuration file for syntax errors, missing required fields
and invalid values. When mappings.file is set, the mapping file is parsed
too.`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	warnings := configWarnings(cfg)
	if cfg.Mappings.File != "" {
		mappings, err := mapping.ReadFile(cfg.Mappings.File)
		if err != nil {
			return fmt.Errorf("mapping file %s: %w", cfg.Mappings.File, err)
		}
		fmt.Printf("Mapping file:      %s (%d mappings)\n", cfg.Mappings.File, len(mappings))
	}

	fmt.Printf("Configuration file: %s\n", path)
	fmt.Println("Validation: OK")
	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Target community: %d\n", cfg.Platform.TargetCommunityID)
	fmt.Printf("  Database type:    %s\n", cfg.Database.Type)
	fmt.Printf("  Queue backend:    %s\n", cfg.Queue.Backend)
	fmt.Printf("  Debounce delay:   %s\n", cfg.Sync.DebounceDelay)
	fmt.Printf("  API enabled:      %t (port %d)\n", cfg.API.Enabled, cfg.API.Port)
	fmt.Printf("  Log level:        %s\n", cfg.Logging.Level)
	return nil
}

func configWarnings(cfg *config.Config) []string {
	var warnings []string
	if cfg.Platform.Token == "" {
		warnings = append(warnings, "platform token not configured - set ROLESYNC_PLATFORM_TOKEN before starting")
	}
	if cfg.API.Enabled && len(cfg.API.GetJWTSecret()) < 32 {
		warnings = append(warnings, "API JWT secret missing or shorter than 32 characters - the API will not start")
	}
	if !cfg.Sync.AutoEnabled && cfg.Sync.Interval == 0 {
		warnings = append(warnings, "auto sync and periodic sweeps are both off - roles only change on request")
	}
	return warnings
}
