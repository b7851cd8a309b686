package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrotstack/parrot/pkg/infra/docker"
)

type fakeDockerClient struct {
	containers []docker.ContainerStatus
	logs       map[string]string
	pingErr    error
	conflicts  map[int][]docker.PortConflict
	portsAsked []int
}

func (f *fakeDockerClient) Ping(context.Context) error { return f.pingErr }

func (f *fakeDockerClient) ProjectContainers(_ context.Context, project string) ([]docker.ContainerStatus, error) {
	return f.containers, nil
}

func (f *fakeDockerClient) ContainerLogs(_ context.Context, id string, tail int) (string, error) {
	return f.logs[id], nil
}

func (f *fakeDockerClient) FindContainersByPort(_ context.Context, port int) ([]docker.PortConflict, error) {
	f.portsAsked = append(f.portsAsked, port)
	return f.conflicts[port], nil
}

func (f *fakeDockerClient) Close() error { return nil }

func withFakeDocker(t *testing.T, client *fakeDockerClient) {
	t.Helper()
	orig := newDockerClient
	newDockerClient = func() (docker.Client, error) { return client, nil }
	t.Cleanup(func() { newDockerClient = orig })
}

func TestStatusCommand(t *testing.T) {
	setupTestEnv(t)
	configureDemo(t)
	withFakeDocker(t, &fakeDockerClient{
		containers: []docker.ContainerStatus{
			{ID: "abc", Name: "demo-traefik-1", Service: "traefik", State: "running", Status: "Up 2 hours"},
			{ID: "def", Name: "demo-streamingasr-1", Service: "streamingasr", State: "exited", Status: "Exited (1)"},
		},
	})

	out, err := runCLI(t, "status", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "traefik")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "Exited (1)")
}

func TestStatusCommandWithLogs(t *testing.T) {
	setupTestEnv(t)
	configureDemo(t)
	withFakeDocker(t, &fakeDockerClient{
		containers: []docker.ContainerStatus{
			{ID: "abc", Name: "demo-traefik-1", Service: "traefik", State: "running", Status: "Up"},
		},
		logs: map[string]string{"abc": "proxy started"},
	})

	out, err := runCLI(t, "status", "demo", "--logs", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "proxy started")
}

func TestStatusUnknownConfiguration(t *testing.T) {
	setupTestEnv(t)
	withFakeDocker(t, &fakeDockerClient{})

	_, err := runCLI(t, "status", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration not found")
}

func TestStatusReportsPortConflicts(t *testing.T) {
	setupTestEnv(t)
	configureDemo(t)
	client := &fakeDockerClient{
		conflicts: map[int][]docker.PortConflict{
			8001: {{ContainerID: "fff", Name: "other-traefik-1", Image: "traefik:v3", Project: "other"}},
		},
	}
	withFakeDocker(t, client)

	out, err := runCLI(t, "status", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "No running containers for demo")
	assert.Contains(t, out, "port 8001 is held by other-traefik-1")
	assert.Contains(t, client.portsAsked, 8001)
}

func TestStatusIgnoresOwnProjectOnPorts(t *testing.T) {
	setupTestEnv(t)
	configureDemo(t)
	withFakeDocker(t, &fakeDockerClient{
		conflicts: map[int][]docker.PortConflict{
			8001: {{ContainerID: "aaa", Name: "demo-traefik-1", Image: "traefik:v3", Project: "demo"}},
		},
	})

	out, err := runCLI(t, "status", "demo")
	require.NoError(t, err)
	assert.NotContains(t, out, "is held by")
}

func TestStatusDaemonUnreachable(t *testing.T) {
	setupTestEnv(t)
	configureDemo(t)
	withFakeDocker(t, &fakeDockerClient{pingErr: errors.New("cannot connect to the docker daemon")})

	_, err := runCLI(t, "status", "demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon")
}

func TestEvaluateCommand(t *testing.T) {
	setupTestEnv(t)
	configureDemo(t)

	dataset := filepath.Join(t.TempDir(), "eval.jsonl")
	require.NoError(t, os.WriteFile(dataset, []byte(`{"input": "a", "expected": "x"}
{"input": "b"}
`), 0o644))

	output := filepath.Join(t.TempDir(), "result.json")
	out, err := runCLI(t, "evaluate", "demo", "--dataset", dataset, "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "total_samples")

	_, err = os.Stat(output)
	assert.NoError(t, err)

	runsOut, err := runCLI(t, "runs")
	require.NoError(t, err)
	assert.Contains(t, runsOut, "demo")
	assert.Contains(t, runsOut, "eval.jsonl")
}

func TestEvaluateMetricSelection(t *testing.T) {
	setupTestEnv(t)
	configureDemo(t)

	dataset := filepath.Join(t.TempDir(), "eval.jsonl")
	require.NoError(t, os.WriteFile(dataset, []byte(`{"input": "a", "expected": "x"}
`), 0o644))

	out, err := runCLI(t, "evaluate", "demo", "--dataset", dataset, "--metric", "total_samples")
	require.NoError(t, err)
	assert.Contains(t, out, "total_samples")

	_, err = runCLI(t, "evaluate", "demo", "--dataset", dataset, "--metric", "bleu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown metric "bleu"`)
	assert.Contains(t, err.Error(), "match_rate")
}

func TestEvaluateRequiresDataset(t *testing.T) {
	setupTestEnv(t)
	configureDemo(t)

	_, err := runCLI(t, "evaluate", "demo")
	assert.Error(t, err)
}
