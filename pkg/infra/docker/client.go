// Package docker inspects the containers of a deployed pipeline through
// the Docker Engine API. Lifecycle changes go through the compose
// command line; this package only observes.
package docker

import "context"

// composeProjectLabel is the label compose stamps on every container of
// a project, keyed by the project (configuration) name.
const composeProjectLabel = "com.docker.compose.project"

// composeServiceLabel carries the service name within the project.
const composeServiceLabel = "com.docker.compose.service"

// ContainerStatus is the observed state of one pipeline container.
type ContainerStatus struct {
	// ID is the container ID.
	ID string
	// Name is the container name without the leading slash.
	Name string
	// Service is the compose service the container belongs to.
	Service string
	// State is the lifecycle state, e.g. "running", "exited".
	State string
	// Status is the human-readable status line, e.g. "Up 2 hours".
	Status string
}

// PortConflict describes a container already publishing a host port.
type PortConflict struct {
	ContainerID string
	Name        string
	Image       string
	// Project is the compose project owning the container, empty for
	// containers created outside compose.
	Project string
}

// Client is the read-only view of the Docker daemon the CLI needs.
type Client interface {
	// Ping verifies the daemon is reachable.
	Ping(ctx context.Context) error

	// ProjectContainers returns the containers of a compose project,
	// including stopped ones.
	ProjectContainers(ctx context.Context, project string) ([]ContainerStatus, error)

	// ContainerLogs returns the last tail lines of a container's logs,
	// stdout and stderr combined.
	ContainerLogs(ctx context.Context, containerID string, tail int) (string, error)

	// FindContainersByPort returns every container publishing the given
	// host port, whichever project it belongs to.
	FindContainersByPort(ctx context.Context, port int) ([]PortConflict, error)

	// Close releases the underlying connection.
	Close() error
}
