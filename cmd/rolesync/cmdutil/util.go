// Package cmdutil provides shared utilities for rolesync commands.
package cmdutil

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/credentials"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/output"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/prompt"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/apiclient"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

// Environment fallbacks for --server and --token.
const (
	EnvServer = "ROLESYNC_SERVER"
	EnvToken  = "ROLESYNC_TOKEN"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ConfigFile string
	ServerURL  string
	Token      string
	Output     string
	NoColor    bool
}

// ResolveServer returns the server URL and token to use, in order: flags,
// environment, current stored context.
func ResolveServer() (url, token string, err error) {
	url = firstNonEmpty(Flags.ServerURL, os.Getenv(EnvServer))
	token = firstNonEmpty(Flags.Token, os.Getenv(EnvToken))
	if url != "" && token != "" {
		return url, token, nil
	}

	store, err := credentials.NewStore()
	if err != nil {
		return "", "", fmt.Errorf("failed to open credential store: %w", err)
	}
	current, err := store.Current()
	if err != nil && !errors.Is(err, credentials.ErrNoCurrentContext) {
		return "", "", err
	}
	if current != nil {
		url = firstNonEmpty(url, current.ServerURL)
		if token == "" {
			if current.IsExpired() {
				return "", "", fmt.Errorf("token for context %q expired. Run 'rolesync token --save' or 'rolesync login' again", store.CurrentName())
			}
			token = current.Token
		}
	}

	if url == "" {
		return "", "", fmt.Errorf("no server configured. Run 'rolesync login --server <url> --token <token>' or set %s", EnvServer)
	}
	return url, token, nil
}

// GetAuthenticatedClient returns an API client for the resolved server.
func GetAuthenticatedClient() (*apiclient.Client, error) {
	url, token, err := ResolveServer()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("no API token. Run 'rolesync login' or set %s", EnvToken)
	}
	return apiclient.New(url).WithToken(token), nil
}

// Printer returns a printer for stdout in the --output format.
func Printer() (*output.Printer, error) {
	format, err := output.ParseFormat(Flags.Output)
	if err != nil {
		return nil, err
	}
	color := !Flags.NoColor && output.ColorSupported(os.Stdout)
	return output.NewPrinter(os.Stdout, format, color), nil
}

// ParseSnowflake parses a positional id argument.
func ParseSnowflake(name, s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, models.SnowflakeBits)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q: expected a numeric id", name, s)
	}
	return id, nil
}

// Confirm asks before a destructive action unless force is set. It returns
// false without error when the user declines or aborts.
func Confirm(label string, force bool) (bool, error) {
	ok, err := prompt.ConfirmWithForce(label, force)
	if err != nil {
		if prompt.IsAborted(err) {
			fmt.Println("\nAborted.")
			return false, nil
		}
		return false, err
	}
	if !ok {
		fmt.Println("Aborted.")
	}
	return ok, nil
}

// HandleAbort turns a Ctrl+C during a prompt into a clean exit.
func HandleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
