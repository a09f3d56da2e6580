package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/credentials"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/output"
	"github.com/ambnuf14-max/saes-discord-bot/internal/controlplane/api/auth"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/config"
)

var (
	tokenOperator string
	tokenRole     string
	tokenTTL      time.Duration
	tokenSave     bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API token from the local JWT secret",
	Long: `Sign a bearer token for the REST API with the secret in the bot's
configuration. Anyone who can read the configuration file can mint tokens,
so run this on the bot's host.

Roles:
  admin   may change mappings, reconcile, sweep and toggle auto sync
  viewer  may only read

Examples:
  # Print an admin token valid for the configured duration
  rolesync token --operator alice

  # Mint a one-hour viewer token and store it as the current CLI context
  rolesync token --operator grafana --role viewer --ttl 1h --save --server http://localhost:8080`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOperator, "operator", "", "Name recorded as the token subject (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleAdmin), "Token role (admin|viewer)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default: api.jwt.token_duration)")
	tokenCmd.Flags().BoolVar(&tokenSave, "save", false, "Store the token in the current CLI context")
	_ = tokenCmd.MarkFlagRequired("operator")
}

func runToken(cmd *cobra.Command, args []string) error {
	role := auth.Role(tokenRole)
	if !role.Valid() {
		return fmt.Errorf("invalid role %q (valid: admin, viewer)", tokenRole)
	}

	cfg, err := config.MustLoad(cmdutil.Flags.ConfigFile)
	if err != nil {
		return err
	}
	svc, err := auth.NewJWTService(auth.JWTConfig{
		Secret:        cfg.API.GetJWTSecret(),
		Issuer:        cfg.API.JWT.Issuer,
		TokenDuration: cfg.API.JWT.TokenDuration,
	})
	if err != nil {
		return fmt.Errorf("cannot sign tokens: %w", err)
	}

	tok, err := svc.GenerateToken(tokenOperator, role, tokenTTL)
	if err != nil {
		return err
	}

	if tokenSave {
		server := cmdutil.Flags.ServerURL
		if server == "" {
			server = fmt.Sprintf("http://localhost:%d", cfg.API.Port)
		}
		store, err := credentials.NewStore()
		if err != nil {
			return err
		}
		name := store.CurrentName()
		if name == "" {
			name = credentials.DefaultContext
		}
		if err := store.Set(name, &credentials.Context{
			ServerURL: server,
			Token:     tok.AccessToken,
			Operator:  tokenOperator,
			Role:      string(role),
			ExpiresAt: tok.ExpiresAt,
		}); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		_, _ = fmt.Fprintf(os.Stderr, "Token saved to context %q (%s)\n", name, server)
	}

	p, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		fmt.Println(tok.AccessToken)
		return nil
	}
	return p.Print(tok)
}
