package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parrotstack/parrot/pkg/compose"
	"github.com/parrotstack/parrot/pkg/config"
	"github.com/parrotstack/parrot/pkg/infra/docker"
)

// newDockerClient is swapped out in tests to avoid requiring a daemon.
var newDockerClient = func() (docker.Client, error) {
	return docker.NewSDKClient()
}

type containerStatusRow struct {
	Service string `json:"service"`
	Name    string `json:"name"`
	State   string `json:"state"`
	Status  string `json:"status"`
}

// NewStatusCommand shows the container states of a configuration.
func NewStatusCommand(root *RootCommand) *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "status NAME",
		Short: "Show the container status of a pipeline configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			spec, err := config.LoadSpec(root.Config().General.ConfigDir, name)
			if err != nil {
				return err
			}

			client, err := newDockerClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Ping(cmd.Context()); err != nil {
				return err
			}

			containers, err := client.ProjectContainers(cmd.Context(), name)
			if err != nil {
				return err
			}

			if len(containers) == 0 {
				PrintSuccess("No running containers for "+name, root.OutputOptions())
				return reportPortConflicts(cmd.Context(), client, root, spec)
			}

			rows := make([]containerStatusRow, 0, len(containers))
			for _, ct := range containers {
				rows = append(rows, containerStatusRow{
					Service: ct.Service,
					Name:    ct.Name,
					State:   ct.State,
					Status:  ct.Status,
				})
			}
			if err := PrintOutput(rows, root.OutputOptions()); err != nil {
				return err
			}

			if tail > 0 {
				for _, ct := range containers {
					logs, err := client.ContainerLogs(cmd.Context(), ct.ID, tail)
					if err != nil {
						return err
					}
					PrintSuccess("--- "+ct.Name+" ---", root.OutputOptions())
					PrintSuccess(logs, root.OutputOptions())
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&tail, "logs", 0, "Also print the last N log lines per container")

	return cmd
}

// reportPortConflicts warns when the published ports of a stopped
// configuration are already held by containers from another project.
func reportPortConflicts(ctx context.Context, client docker.Client, root *RootCommand, spec *config.PipelineSpec) error {
	dir := config.ConfigurationDir(root.Config().General.ConfigDir, spec.Name)
	doc, err := compose.LoadFile(filepath.Join(dir, "docker-compose.yaml"))
	if err != nil {
		// Nothing rendered yet, so there are no ports to check.
		return nil
	}

	vars := portVariables(spec)
	specs := make([]string, 0, 4)
	for _, svc := range doc.Services {
		for _, p := range svc.Ports {
			switch v := p.(type) {
			case string:
				if expanded, ok := expandPortSpec(v, vars); ok {
					specs = append(specs, expanded)
				}
			case int:
				specs = append(specs, fmt.Sprint(v))
			}
		}
	}
	ports, err := docker.HostPorts(specs)
	if err != nil {
		return nil
	}

	for _, port := range ports {
		conflicts, err := client.FindContainersByPort(ctx, port)
		if err != nil {
			return err
		}
		for _, c := range conflicts {
			if c.Project == spec.Name {
				continue
			}
			PrintSuccess(fmt.Sprintf("Warning: port %d is held by %s (project %q)", port, c.Name, c.Project), root.OutputOptions())
		}
	}
	return nil
}

// portVariables resolves the interpolation variables compose would read
// from the generated .env file, so port specs can be checked here.
func portVariables(spec *config.PipelineSpec) map[string]string {
	return map[string]string{
		"HTTP_PORT":  fmt.Sprint(spec.HTTPPort),
		"HTTPS_PORT": fmt.Sprint(spec.HTTPSPort),
	}
}

func expandPortSpec(spec string, vars map[string]string) (string, bool) {
	missed := false
	expanded := os.Expand(spec, func(key string) string {
		if v, ok := vars[key]; ok {
			return v
		}
		missed = true
		return ""
	})
	return expanded, !missed
}
