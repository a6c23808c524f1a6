package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	p, k, err := Split("websiteConfig")
	require.NoError(t, err)
	require.Equal(t, "websiteConfig", p)
	require.Empty(t, k)

	p, k, err = Split("/reservations/abc/")
	require.NoError(t, err)
	require.Equal(t, "reservations", p)
	require.Equal(t, "abc", k)

	for _, bad := range []string{"", "/", "a/b/c", "a//b", "bad.key", "x/$y", "x/[0]"} {
		_, _, err := Split(bad)
		require.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestRelated(t *testing.T) {
	require.True(t, related("websiteConfig", "websiteConfig"))
	require.True(t, related("reservations", "reservations/abc"))
	require.True(t, related("reservations/abc", "reservations"))
	require.False(t, related("reservations", "reservationsX/abc"))
	require.False(t, related("backups/a", "backups/b"))
}
