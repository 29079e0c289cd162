package errors_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/jrsteele09/fittrack-server/internal/errors"
)

func TestWrapfKeepsSentinel(t *testing.T) {
	err := apperrors.Wrapf(apperrors.ErrConflict, "[users.Save] email %q", "jane@example.com")
	require.EqualError(t, err, `[users.Save] email "jane@example.com": conflict`)
	require.True(t, apperrors.Is(err, apperrors.ErrConflict))
	require.False(t, apperrors.Is(err, apperrors.ErrAccountNotFound))
}

func TestWrapfNil(t *testing.T) {
	require.NoError(t, apperrors.Wrapf(nil, "[users.Save] %s", "noop"))
}
