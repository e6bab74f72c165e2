package geoip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithoutPathIsDisabled(t *testing.T) {
	r, err := Open("  ")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Nil(t, r.Lookup())
	assert.NoError(t, r.Close())

	_, err = r.CountryCode("203.0.113.4")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open(t.TempDir() + "/missing.mmdb")
	require.Error(t, err)
}
