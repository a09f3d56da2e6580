package prompt

import (
	"errors"
	"fmt"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
)

func TestIsAborted(t *testing.T) {
	assert.True(t, IsAborted(promptui.ErrInterrupt))
	assert.True(t, IsAborted(promptui.ErrEOF))
	assert.True(t, IsAborted(fmt.Errorf("wrapped: %w", ErrAborted)))
	assert.False(t, IsAborted(promptui.ErrAbort))
	assert.False(t, IsAborted(errors.New("other")))

	assert.ErrorIs(t, wrapError(promptui.ErrInterrupt), ErrAborted)
	assert.NoError(t, wrapError(nil))
}

func TestConfirmWithForce(t *testing.T) {
	ok, err := ConfirmWithForce("Clear queue?", true)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestParseYes(t *testing.T) {
	assert.True(t, parseYes("y", false))
	assert.True(t, parseYes(" YES ", false))
	assert.False(t, parseYes("nope", true))
	assert.True(t, parseYes("", true))
	assert.False(t, parseYes("", false))
}

func TestValidateSnowflake(t *testing.T) {
	assert.NoError(t, validateSnowflake("123456789012345678"))
	assert.NoError(t, validateSnowflake(" 42 "))
	assert.Error(t, validateSnowflake("0"))
	assert.Error(t, validateSnowflake("abc"))
	assert.Error(t, validateSnowflake("-1"))
}
