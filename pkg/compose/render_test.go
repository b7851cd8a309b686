package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderConditionals(t *testing.T) {
	tpl := `services:
  traefik:
    image: traefik:v3.1
#% if HTTPS
    https: enabled
#% else
    https: disabled
#% end
`
	out, err := Render(tpl, RenderContext{HTTPS: true})
	require.NoError(t, err)
	assert.Contains(t, out, "https: enabled")
	assert.NotContains(t, out, "https: disabled")
	assert.NotContains(t, out, "#%")

	out, err = Render(tpl, RenderContext{HTTPS: false})
	require.NoError(t, err)
	assert.Contains(t, out, "https: disabled")
	assert.NotContains(t, out, "https: enabled")
}

func TestRenderNegationAndNesting(t *testing.T) {
	tpl := `#% if not LOCALHOST_DOMAIN
public
#% if ACME_STAGING
staging
#% end
#% end
`
	out, err := Render(tpl, RenderContext{LocalhostDomain: false, ACMEStaging: true})
	require.NoError(t, err)
	assert.Equal(t, "public\nstaging\n", out)

	out, err = Render(tpl, RenderContext{LocalhostDomain: false, ACMEStaging: false})
	require.NoError(t, err)
	assert.Equal(t, "public\n", out)

	// A suppressed outer branch suppresses the inner one even when its
	// flag is set.
	out, err = Render(tpl, RenderContext{LocalhostDomain: true, ACMEStaging: true})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRenderSubstitutions(t *testing.T) {
	out, err := Render("host: %{DOMAIN}\nmail: %{ACME_EMAIL}\n", RenderContext{
		Domain:    "meet.example.org",
		ACMEEmail: "ops@example.org",
	})
	require.NoError(t, err)
	assert.Equal(t, "host: meet.example.org\nmail: ops@example.org\n", out)
}

func TestRenderErrors(t *testing.T) {
	_, err := Render("#% if TURBO\nx\n#% end\n", RenderContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown render flag")

	_, err = Render("#% if DEBUG\nx\n", RenderContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbalanced")

	_, err = Render("#% end\n", RenderContext{})
	require.Error(t, err)

	_, err = Render("#% else\n", RenderContext{})
	require.Error(t, err)

	_, err = Render("#% loop\n", RenderContext{})
	require.Error(t, err)
}

func TestRenderPreservesTrailingNewline(t *testing.T) {
	out, err := Render("a\n", RenderContext{})
	require.NoError(t, err)
	assert.Equal(t, "a\n", out)

	out, err = Render("a", RenderContext{})
	require.NoError(t, err)
	assert.Equal(t, "a", out)
}
