package docker

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	dockerclient "github.com/docker/docker/client"
)

// SDKClient implements Client using the official Docker Go SDK.
type SDKClient struct {
	cli *dockerclient.Client
}

// NewSDKClient creates an SDKClient configured from environment variables
// (DOCKER_HOST, DOCKER_TLS_VERIFY, DOCKER_CERT_PATH, DOCKER_API_VERSION).
func NewSDKClient() (*SDKClient, error) {
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker sdk client: %w", err)
	}
	return &SDKClient{cli: cli}, nil
}

func (c *SDKClient) Ping(ctx context.Context) error {
	if _, err := c.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker Ping: %w", err)
	}
	return nil
}

func (c *SDKClient) ProjectContainers(ctx context.Context, project string) ([]ContainerStatus, error) {
	f := filters.NewArgs()
	f.Add("label", fmt.Sprintf("%s=%s", composeProjectLabel, project))

	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return nil, fmt.Errorf("docker ContainerList: %w", err)
	}

	statuses := make([]ContainerStatus, 0, len(containers))
	for _, ct := range containers {
		name := ""
		if len(ct.Names) > 0 {
			name = strings.TrimPrefix(ct.Names[0], "/")
		}
		statuses = append(statuses, ContainerStatus{
			ID:      ct.ID,
			Name:    name,
			Service: ct.Labels[composeServiceLabel],
			State:   string(ct.State),
			Status:  ct.Status,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Service < statuses[j].Service })
	return statuses, nil
}

func (c *SDKClient) ContainerLogs(ctx context.Context, containerID string, tail int) (string, error) {
	rc, err := c.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return "", fmt.Errorf("docker ContainerLogs: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("reading container logs: %w", err)
	}
	return string(data), nil
}

func (c *SDKClient) FindContainersByPort(ctx context.Context, port int) ([]PortConflict, error) {
	f := filters.NewArgs()
	f.Add("publish", strconv.Itoa(port))

	containers, err := c.cli.ContainerList(ctx, container.ListOptions{Filters: f})
	if err != nil {
		return nil, fmt.Errorf("docker ContainerList (port filter): %w", err)
	}

	conflicts := make([]PortConflict, 0, len(containers))
	for _, ct := range containers {
		name := ""
		if len(ct.Names) > 0 {
			name = strings.TrimPrefix(ct.Names[0], "/")
		}
		conflicts = append(conflicts, PortConflict{
			ContainerID: ct.ID,
			Name:        name,
			Image:       ct.Image,
			Project:     ct.Labels[composeProjectLabel],
		})
	}
	return conflicts, nil
}

func (c *SDKClient) Close() error {
	return c.cli.Close()
}

var _ Client = (*SDKClient)(nil)
