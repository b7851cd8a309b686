package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parrotstack/parrot/pkg/config"
	"github.com/parrotstack/parrot/pkg/infra/composeexec"
	"github.com/parrotstack/parrot/pkg/infra/logger"
)

// detectCompose is swapped out in tests to avoid requiring docker.
var detectCompose = composeexec.Detect

// resolveConfiguration verifies a named configuration exists and carries
// a generated compose file, returning its directory.
func resolveConfiguration(root *RootCommand, name string) (string, error) {
	configDir := root.Config().General.ConfigDir
	if _, err := config.LoadSpec(configDir, name); err != nil {
		return "", err
	}

	dir := config.ConfigurationDir(configDir, name)
	composeFile := filepath.Join(dir, "docker-compose.yaml")
	if _, err := os.Stat(composeFile); err != nil {
		return "", fmt.Errorf("docker-compose.yaml not found in %s, re-run configure", dir)
	}
	return dir, nil
}

func runComposeSubcommand(ctx context.Context, root *RootCommand, name string, args []string) error {
	dir, err := resolveConfiguration(root, name)
	if err != nil {
		return err
	}

	executor, err := detectCompose(ctx)
	if err != nil {
		return err
	}

	logger.Info("invoking compose", "command", executor.Command(), "configuration", name)
	code, err := executor.Run(ctx, dir, nil, root.opts.Writer, os.Stderr, args...)
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitCodeError{Code: code}
	}
	return nil
}

// NewBuildCommand builds the container images of a configuration.
func NewBuildCommand(root *RootCommand) *cobra.Command {
	var components []string
	var noCache bool

	cmd := &cobra.Command{
		Use:   "build NAME",
		Short: "Build container images for a pipeline configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := []string{"build"}
			if noCache {
				composeArgs = append(composeArgs, "--no-cache")
			}
			composeArgs = append(composeArgs, components...)
			if err := runComposeSubcommand(cmd.Context(), root, args[0], composeArgs); err != nil {
				return err
			}
			PrintSuccess("Successfully built container images", root.OutputOptions())
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&components, "component", "c", nil,
		"Build only the named services (repeatable)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Build without using the image cache")

	return cmd
}

// NewStartCommand starts the containers of a configuration.
func NewStartCommand(root *RootCommand) *cobra.Command {
	var components []string

	cmd := &cobra.Command{
		Use:   "start NAME",
		Short: "Start the containers of a pipeline configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// `up -d` so missing containers are created, not just resumed.
			composeArgs := append([]string{"up", "-d"}, components...)
			if err := runComposeSubcommand(cmd.Context(), root, args[0], composeArgs); err != nil {
				return err
			}
			PrintSuccess("Successfully started containers", root.OutputOptions())
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&components, "component", "c", nil,
		"Start only the named services (repeatable)")

	return cmd
}

// NewStopCommand stops the containers of a configuration.
func NewStopCommand(root *RootCommand) *cobra.Command {
	var components []string

	cmd := &cobra.Command{
		Use:   "stop NAME",
		Short: "Stop the containers of a pipeline configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := append([]string{"stop"}, components...)
			if err := runComposeSubcommand(cmd.Context(), root, args[0], composeArgs); err != nil {
				return err
			}
			PrintSuccess("Successfully stopped containers", root.OutputOptions())
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&components, "component", "c", nil,
		"Stop only the named services (repeatable)")

	return cmd
}

// NewDeleteCommand tears a configuration down and optionally removes its
// generated files.
func NewDeleteCommand(root *RootCommand) *cobra.Command {
	var volumes bool
	var purge bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove the containers of a pipeline configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := []string{"down"}
			if volumes {
				composeArgs = append(composeArgs, "--volumes")
			}
			if err := runComposeSubcommand(cmd.Context(), root, args[0], composeArgs); err != nil {
				return err
			}

			if purge {
				dir := config.ConfigurationDir(root.Config().General.ConfigDir, args[0])
				if err := os.RemoveAll(dir); err != nil {
					return fmt.Errorf("remove configuration directory: %w", err)
				}
				logger.Info("removed configuration directory", "path", dir)
			}

			PrintSuccess("Successfully removed containers", root.OutputOptions())
			return nil
		},
	}

	cmd.Flags().BoolVar(&volumes, "volumes", false, "Also remove named volumes")
	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete the generated configuration directory")

	return cmd
}
