package compose

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrotstack/parrot/pkg/pipeline"
)

func testComponentFS() fstest.MapFS {
	return fstest.MapFS{
		"middleware.yaml.tpl": &fstest.MapFile{Data: []byte(`services:
  traefik:
    image: traefik:v3.1
#% if DEBUG
    command: --log.level=DEBUG
#% end
  frontend:
    image: frontend:1
    environment:
      - THEME=${FRONTEND_THEME}
networks:
  pipeline:
    driver: bridge
`)},
		"asr.yaml": &fstest.MapFile{Data: []byte(`services:
  streamingasr:
    image: asr:1
    environment:
      - STT_BACKEND_URL=${STT_BACKEND_URL}
    networks:
      - pipeline
`)},
		"mt.yaml": &fstest.MapFile{Data: []byte(`services:
  streamingmt:
    image: mt:1
    environment:
      - MT_BACKEND_URL=${MT_BACKEND_URL}
    networks:
      - pipeline
`)},
	}
}

func testProxyFS() fstest.MapFS {
	return fstest.MapFS{
		"traefik.yaml.tpl":  &fstest.MapFile{Data: []byte("log:\n  filePath: /logs/CONFIG_NAME.log\n")},
		"basicauth.txt.tpl": &fstest.MapFile{Data: []byte("admin:ENCRYPTED_ADMIN_PASSWORD\n")},
		"rules.ini.tpl":     &fstest.MapFile{Data: []byte("[http.routers]\n")},
	}
}

func testIdPFS() fstest.MapFS {
	return fstest.MapFS{
		"dex.yaml.tpl": &fstest.MapFile{Data: []byte("issuer: http://dex:5556\n")},
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(testComponentFS(), testProxyFS(), testIdPFS(), testBackendsDir)
}

func TestGenerateComposeCascaded(t *testing.T) {
	m := newTestManager(t)

	doc, err := m.GenerateCompose("cascaded", RenderContext{}, BackendsLocal,
		map[pipeline.Role]BackendSelection{
			pipeline.RoleSTT: {Engine: "faster-whisper"},
			pipeline.RoleMT:  {Engine: "vllm", GPU: "1"},
		})
	require.NoError(t, err)

	// Component services plus both embedded backends.
	assert.Contains(t, doc.Services, "traefik")
	assert.Contains(t, doc.Services, "streamingasr")
	assert.Contains(t, doc.Services, "streamingmt")
	assert.Contains(t, doc.Services, "whisper-worker")
	assert.Contains(t, doc.Services, "vllm-server-mt")
	assert.NotContains(t, doc.Services, "vllm-server")

	for name, svc := range doc.Services {
		if name == "whisper-worker" || name == "vllm-server-mt" {
			assert.Nil(t, svc.Ports, "backend %s must not expose host ports", name)
			assert.Contains(t, svc.Networks, SharedNetwork)
		}
	}

	gpu, ok := doc.Services["vllm-server-mt"].Environment.Get("CUDA_VISIBLE_DEVICES")
	require.True(t, ok)
	assert.Equal(t, "1", gpu)

	// The component network definition wins over the bare backend entry.
	assert.Equal(t, "bridge", doc.Networks[SharedNetwork]["driver"])
	assert.Contains(t, doc.Volumes, "whisper-models")
	assert.Contains(t, doc.Volumes, "vllm-cache")
}

func TestGenerateComposeUnknownType(t *testing.T) {
	m := newTestManager(t)
	_, err := m.GenerateCompose("quantum", RenderContext{}, BackendsLocal, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrUnknownType))
}

func TestGenerateComposeExternalModeSkipsBackends(t *testing.T) {
	m := newTestManager(t)

	doc, err := m.GenerateCompose("cascaded", RenderContext{}, BackendsExternal,
		map[pipeline.Role]BackendSelection{
			pipeline.RoleSTT: {Engine: "faster-whisper"},
		})
	require.NoError(t, err)

	assert.Contains(t, doc.Services, "streamingasr")
	assert.NotContains(t, doc.Services, "whisper-worker")
}

func TestGenerateComposeSkipsUnavailableBackend(t *testing.T) {
	m := newTestManager(t)

	doc, err := m.GenerateCompose("cascaded", RenderContext{}, BackendsLocal,
		map[pipeline.Role]BackendSelection{
			pipeline.RoleSTT: {Engine: "quantum-decoder"},
			pipeline.RoleMT:  {Engine: "vllm"},
		})
	require.NoError(t, err)

	assert.NotContains(t, doc.Services, "whisper-worker")
	assert.Contains(t, doc.Services, "vllm-server-mt")
}

func TestGenerateComposeRenderContext(t *testing.T) {
	m := newTestManager(t)

	doc, err := m.GenerateCompose("cascaded", RenderContext{Debug: true}, BackendsExternal, nil)
	require.NoError(t, err)
	assert.Equal(t, "--log.level=DEBUG", doc.Services["traefik"].Command.Shell)

	doc, err = m.GenerateCompose("cascaded", RenderContext{}, BackendsExternal, nil)
	require.NoError(t, err)
	assert.Nil(t, doc.Services["traefik"].Command)
}

func TestGenerateEnvFile(t *testing.T) {
	m := newTestManager(t)
	outDir := t.TempDir()

	p := baseParams("cascaded")
	p.BackendsDir = ""
	p.ACMEStorageDir = ""
	p.Backends = map[pipeline.Role]BackendSelection{
		pipeline.RoleSTT: {Engine: "faster-whisper"},
	}
	require.NoError(t, m.GenerateEnvFile(outDir, p))

	data, err := os.ReadFile(filepath.Join(outDir, ".env"))
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "STT_BACKEND_URL=http://whisper-worker:5008/asr\n")
	assert.Contains(t, content, "BACKENDS_DIR="+testBackendsDir+"\n")
	assert.Contains(t, content, "ACME_STORAGE_DIR="+filepath.Join(outDir, "acme", "parrot.localhost")+"\n")
}

func TestGenerateProxyFiles(t *testing.T) {
	m := newTestManager(t)
	outDir := t.TempDir()

	require.NoError(t, m.GenerateProxyFiles("demo", "$2a$10$hash", outDir))

	cfg, err := os.ReadFile(filepath.Join(outDir, "traefik", "traefik.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "/logs/demo.log")
	assert.NotContains(t, string(cfg), "CONFIG_NAME")

	authPath := filepath.Join(outDir, "traefik", "auth", "basicauth.txt")
	auth, err := os.ReadFile(authPath)
	require.NoError(t, err)
	assert.Equal(t, "admin:$2a$10$hash\n", string(auth))

	info, err := os.Stat(authPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestGenerateProxyRulesAndIdPConfig(t *testing.T) {
	m := newTestManager(t)
	outDir := t.TempDir()

	require.NoError(t, m.GenerateProxyRules(outDir))
	rules, err := os.ReadFile(filepath.Join(outDir, "traefik", "rules.ini"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(rules), "[http.routers]"))

	require.NoError(t, m.GenerateIdPConfig(outDir))
	dex, err := os.ReadFile(filepath.Join(outDir, "dex", "dex.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(dex), "issuer:")
}

func TestGenerateComposeRoundTripsToDisk(t *testing.T) {
	m := newTestManager(t)

	doc, err := m.GenerateCompose("cascaded", RenderContext{}, BackendsLocal,
		map[pipeline.Role]BackendSelection{
			pipeline.RoleSTT: {Engine: "faster-whisper"},
		})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "docker-compose.yaml")
	require.NoError(t, doc.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, len(doc.Services), len(loaded.Services))
	assert.Contains(t, loaded.Services, "whisper-worker")
	assert.Nil(t, loaded.Services["whisper-worker"].Ports)
}
