package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrotstack/parrot/pkg/pipeline"
)

const testBackendsDir = "../../backends"

func TestBackendURLAndHost(t *testing.T) {
	host, ok := BackendHost("faster-whisper", pipeline.RoleSTT)
	require.True(t, ok)
	assert.Equal(t, "whisper-worker", host)

	host, ok = BackendHost("vllm", pipeline.RoleMT)
	require.True(t, ok)
	assert.Equal(t, "vllm-server-mt", host)

	url, ok := BackendURL("faster-whisper", pipeline.RoleSTT)
	require.True(t, ok)
	assert.Equal(t, "http://whisper-worker:5008/asr", url)

	url, ok = BackendURL("vllm", pipeline.RoleLLM)
	require.True(t, ok)
	assert.Equal(t, "http://vllm-server:8000/v1", url)

	_, ok = BackendURL("bogus-engine", pipeline.RoleSTT)
	assert.False(t, ok)
}

func TestModelVar(t *testing.T) {
	assert.Equal(t, "STT_BACKEND_MODEL", ModelVar(pipeline.RoleSTT))
	assert.Equal(t, "MT_BACKEND_MODEL", ModelVar(pipeline.RoleMT))
	assert.Equal(t, "MODEL_ID", ModelVar(pipeline.RoleLLM))
}

func TestLoadBackendDefaultRole(t *testing.T) {
	doc, err := LoadBackend(BackendOptions{
		Engine:      "faster-whisper",
		Role:        pipeline.RoleSTT,
		GPUDevice:   "0",
		BackendsDir: testBackendsDir,
	})
	require.NoError(t, err)
	require.NotNil(t, doc)

	svc := doc.Services["whisper-worker"]
	require.NotNil(t, svc, "default role keeps the shipped service name")

	assert.Nil(t, svc.Ports, "embedded backends are never host-exposed")
	assert.Contains(t, svc.Networks, SharedNetwork)
	assert.Contains(t, doc.Networks, SharedNetwork)

	assert.Contains(t, svc.Command.Argv, "${STT_BACKEND_MODEL}")
	assert.NotContains(t, svc.Command.Argv, "large-v2")

	gpu, ok := svc.Environment.Get("CUDA_VISIBLE_DEVICES")
	require.True(t, ok)
	assert.Equal(t, "0", gpu)
}

func TestLoadBackendRenamesForOtherRole(t *testing.T) {
	doc, err := LoadBackend(BackendOptions{
		Engine:      "vllm",
		Role:        pipeline.RoleMT,
		BackendsDir: testBackendsDir,
	})
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.NotContains(t, doc.Services, "vllm-server")
	svc := doc.Services["vllm-server-mt"]
	require.NotNil(t, svc)

	assert.Contains(t, svc.Command.Argv, "${MT_BACKEND_MODEL}")
	assert.Equal(t, "host", svc.Extra["ipc"])

	// No GPU requested, no device variable injected.
	_, ok := svc.Environment.Get("CUDA_VISIBLE_DEVICES")
	assert.False(t, ok)
}

func TestLoadBackendRewiresRenamedReferences(t *testing.T) {
	doc, err := LoadBackend(BackendOptions{
		Engine:      "huggingface-tgi",
		Role:        pipeline.RoleMT,
		GPUDevice:   "1",
		BackendsDir: testBackendsDir,
	})
	require.NoError(t, err)
	require.NotNil(t, doc)

	require.Contains(t, doc.Services, "tgi-server-mt")
	require.Contains(t, doc.Services, "tgi-gateway-mt")

	gateway := doc.Services["tgi-gateway-mt"]
	assert.Equal(t, []string{"tgi-server-mt"}, gateway.DependsOn.Names())

	upstream, ok := gateway.Environment.Get("UPSTREAM_URL")
	require.True(t, ok)
	assert.Equal(t, "http://tgi-server-mt:8080", upstream)

	// The gateway is an auxiliary service and never gets the GPU.
	_, ok = gateway.Environment.Get("CUDA_VISIBLE_DEVICES")
	assert.False(t, ok)

	server := doc.Services["tgi-server-mt"]
	gpu, ok := server.Environment.Get("CUDA_VISIBLE_DEVICES")
	require.True(t, ok)
	assert.Equal(t, "1", gpu)
	assert.Contains(t, server.Command.Argv, "${MT_BACKEND_MODEL}")
}

func TestLoadBackendSameEngineTwiceIsIndependent(t *testing.T) {
	llm, err := LoadBackend(BackendOptions{
		Engine:      "vllm",
		Role:        pipeline.RoleLLM,
		BackendsDir: testBackendsDir,
	})
	require.NoError(t, err)

	mt, err := LoadBackend(BackendOptions{
		Engine:      "vllm",
		Role:        pipeline.RoleMT,
		BackendsDir: testBackendsDir,
	})
	require.NoError(t, err)

	assert.Contains(t, llm.Services, "vllm-server")
	assert.NotContains(t, llm.Services, "vllm-server-mt")
	assert.Contains(t, mt.Services, "vllm-server-mt")
	assert.Contains(t, llm.Services["vllm-server"].Command.Argv, "${MODEL_ID}")
	assert.Contains(t, mt.Services["vllm-server-mt"].Command.Argv, "${MT_BACKEND_MODEL}")
}

func TestLoadBackendMapEnvironment(t *testing.T) {
	doc, err := LoadBackend(BackendOptions{
		Engine:      "tts-kokoro",
		Role:        pipeline.RoleTTS,
		GPUDevice:   "2",
		BackendsDir: testBackendsDir,
	})
	require.NoError(t, err)

	svc := doc.Services["kokoro-tts"]
	require.NotNil(t, svc)
	require.True(t, svc.Environment.IsMap)

	useGPU, ok := svc.Environment.Get("USE_GPU")
	require.True(t, ok)
	assert.Equal(t, "true", useGPU)

	gpu, ok := svc.Environment.Get("CUDA_VISIBLE_DEVICES")
	require.True(t, ok)
	assert.Equal(t, "2", gpu)
}

func TestLoadBackendUnknownEngineSkips(t *testing.T) {
	doc, err := LoadBackend(BackendOptions{
		Engine:      "quantum-decoder",
		Role:        pipeline.RoleSTT,
		BackendsDir: testBackendsDir,
	})
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestLoadBackendMissingComposeFileSkips(t *testing.T) {
	doc, err := LoadBackend(BackendOptions{
		Engine:      "faster-whisper",
		Role:        pipeline.RoleSTT,
		BackendsDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestReplaceHostnameBoundaries(t *testing.T) {
	renames := map[string]string{"whisper": "whisper-mt"}

	assert.Equal(t, "http://whisper-mt:5008/asr",
		rewriteHostnames("http://whisper:5008/asr", renames))
	// A longer hostname sharing the prefix is untouched.
	assert.Equal(t, "http://whisper-worker:5008",
		rewriteHostnames("http://whisper-worker:5008", renames))
	assert.Equal(t, "no hosts here", rewriteHostnames("no hosts here", renames))
}
