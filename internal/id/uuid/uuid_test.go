// Package uuid includes tests for the UUID generator wrapper.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDProducesValidV7(t *testing.T) {
	t.Parallel()

	gen := NewGenerator()
	id, err := gen.NewID()
	require.NoError(t, err)

	parsed, err := goUUID.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, goUUID.Version(7), parsed.Version())

	other, err := gen.NewID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}
