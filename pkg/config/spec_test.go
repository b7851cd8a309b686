package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrotstack/parrot/pkg/pipeline"
)

func validSpec() *PipelineSpec {
	return &PipelineSpec{
		Name:     "demo",
		Type:     "cascaded",
		Domain:   "parrot.localhost",
		HTTPPort: 8001,
		Backends: "local",
		Roles: map[pipeline.Role]BackendSpec{
			pipeline.RoleSTT: {Engine: "faster-whisper", Model: "large-v2"},
			pipeline.RoleMT:  {Engine: "vllm", GPU: "1"},
		},
	}
}

func TestSpecValidate(t *testing.T) {
	require.NoError(t, validSpec().Validate())

	spec := validSpec()
	spec.Name = ""
	assert.Error(t, spec.Validate())

	spec = validSpec()
	spec.Name = "has space"
	assert.Error(t, spec.Validate())

	spec = validSpec()
	spec.Type = "quantum"
	err := spec.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrUnknownType))

	spec = validSpec()
	spec.Backends = "remote"
	assert.Error(t, spec.Validate())
}

func TestSpecValidateHTTPS(t *testing.T) {
	spec := validSpec()
	spec.HTTPS = true
	assert.NoError(t, spec.Validate(), "localhost domains need no ACME email")

	spec.Domain = "meet.example.org"
	assert.Error(t, spec.Validate())

	spec.ACMEEmail = "ops@example.org"
	assert.NoError(t, spec.Validate())
}

func TestSaveAndLoadSpec(t *testing.T) {
	dir := t.TempDir()

	spec := validSpec()
	require.NoError(t, SaveSpec(dir, spec))

	loaded, err := LoadSpec(dir, "demo")
	require.NoError(t, err)
	assert.Equal(t, spec.Name, loaded.Name)
	assert.Equal(t, spec.Type, loaded.Type)
	assert.Equal(t, spec.Backends, loaded.Backends)
	assert.Equal(t, "faster-whisper", loaded.Roles[pipeline.RoleSTT].Engine)
	assert.Equal(t, "1", loaded.Roles[pipeline.RoleMT].GPU)
}

func TestLoadSpecMissing(t *testing.T) {
	_, err := LoadSpec(t.TempDir(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigurationNotFound))
}

func TestSaveSpecRejectsInvalid(t *testing.T) {
	spec := validSpec()
	spec.Type = "bogus"
	assert.Error(t, SaveSpec(t.TempDir(), spec))
}

func TestListConfigurations(t *testing.T) {
	dir := t.TempDir()

	names, err := ListConfigurations(dir)
	require.NoError(t, err)
	assert.Empty(t, names)

	first := validSpec()
	require.NoError(t, SaveSpec(dir, first))

	second := validSpec()
	second.Name = "alpha"
	require.NoError(t, SaveSpec(dir, second))

	names, err = ListConfigurations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "demo"}, names)
}
