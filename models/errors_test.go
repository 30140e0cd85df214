package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckError_Unwrap(t *testing.T) {
	err := NewCheckError(ErrCodeLoadTimeout, "page did not load", context.DeadlineExceeded)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "LOAD_TIMEOUT: page did not load: context deadline exceeded", err.Error())
	assert.Equal(t, &ErrorDetail{Code: ErrCodeLoadTimeout, Message: "page did not load"}, err.ToDetail())
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewCheckError(ErrCodeUnreachable, "refused", nil))

	assert.Equal(t, ErrCodeUnreachable, CodeOf(wrapped))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain")))
}

func TestOutcomeFor(t *testing.T) {
	assert.Equal(t, OutcomeTitleMismatch, OutcomeFor(ErrCodeTitleMismatch))
	assert.Equal(t, OutcomeUnreachable, OutcomeFor(ErrCodeUnreachable))
	assert.Equal(t, OutcomeLoadTimeout, OutcomeFor(ErrCodeLoadTimeout))
	assert.Equal(t, OutcomeError, OutcomeFor(ErrCodeBrowserLaunch))
}
