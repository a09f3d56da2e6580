// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

// ErrAborted is returned when the user presses Ctrl+C.
var ErrAborted = errors.New("aborted")

// IsAborted reports whether err came from an interrupted prompt.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err != nil && IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Confirm asks a yes/no question. Answering anything but y/yes is a no.
func Confirm(label string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}

	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, hint),
		IsConfirm: true,
	}
	result, err := p.Run()
	if err != nil {
		switch {
		case IsAborted(err):
			return false, ErrAborted
		case errors.Is(err, promptui.ErrAbort):
			// promptui reports a typed "n" as ErrAbort.
			return false, nil
		case result == "":
			return defaultYes, nil
		}
		return false, err
	}
	return parseYes(result, defaultYes), nil
}

// ConfirmWithForce skips the question when force is set.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}

// Snowflake asks for a platform id.
func Snowflake(label string) (uint64, error) {
	p := promptui.Prompt{
		Label:    label,
		Validate: validateSnowflake,
	}
	result, err := p.Run()
	if err != nil {
		return 0, wrapError(err)
	}
	return strconv.ParseUint(strings.TrimSpace(result), 10, models.SnowflakeBits)
}

// Select asks the user to pick one of items and returns its index.
func Select(label string, items []string) (int, error) {
	p := promptui.Select{
		Label: label,
		Items: items,
		Size:  10,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ . | cyan }}",
			Inactive: "  {{ . }}",
			Selected: "* {{ . | green }}",
		},
	}
	i, _, err := p.Run()
	if err != nil {
		return -1, wrapError(err)
	}
	return i, nil
}

func parseYes(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def
	case "y", "yes":
		return true
	}
	return false
}

func validateSnowflake(s string) error {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, models.SnowflakeBits)
	if err != nil || id == 0 {
		return errors.New("must be a numeric id")
	}
	return nil
}
