package compose

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeServicesLastWins(t *testing.T) {
	base, err := Parse([]byte(`
services:
  frontend:
    image: frontend:1
  redis:
    image: redis:7
`))
	require.NoError(t, err)

	override, err := Parse([]byte(`
services:
  frontend:
    image: frontend:2
    environment:
      - THEME=dark
`))
	require.NoError(t, err)

	merged, err := Merge([]*Document{base, override})
	require.NoError(t, err)

	require.Len(t, merged.Services, 2)
	assert.Equal(t, "frontend:2", merged.Services["frontend"].Image)
	// Full replacement, not a field-level merge: the override defines the
	// whole service.
	assert.Equal(t, []string{"THEME=dark"}, merged.Services["frontend"].Environment.List)
	assert.Equal(t, "redis:7", merged.Services["redis"].Image)
}

func TestMergeNetworksAndVolumesFirstWins(t *testing.T) {
	first, err := Parse([]byte(`
services:
  a:
    image: a:1
networks:
  pipeline:
    driver: bridge
volumes:
  models:
    driver: local
`))
	require.NoError(t, err)

	second, err := Parse([]byte(`
services:
  b:
    image: b:1
networks:
  pipeline:
volumes:
  models:
  cache:
`))
	require.NoError(t, err)

	merged, err := Merge([]*Document{first, second})
	require.NoError(t, err)

	assert.Equal(t, "bridge", merged.Networks["pipeline"]["driver"])
	assert.Equal(t, "local", merged.Volumes["models"]["driver"])
	assert.Contains(t, merged.Volumes, "cache")
}

func TestMergeSkipsNilDocuments(t *testing.T) {
	doc, err := Parse([]byte("services:\n  a:\n    image: a:1\n"))
	require.NoError(t, err)

	merged, err := Merge([]*Document{doc, nil})
	require.NoError(t, err)
	assert.Len(t, merged.Services, 1)
	assert.Nil(t, merged.Networks)
	assert.Nil(t, merged.Volumes)
}

func TestMergeEmptyInput(t *testing.T) {
	_, err := Merge(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoComponents))
}
