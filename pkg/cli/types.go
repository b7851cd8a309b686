package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/parrotstack/parrot/pkg/config"
	"github.com/parrotstack/parrot/pkg/pipeline"
)

type pipelineTypeInfo struct {
	Name              string `json:"name"`
	Components        string `json:"components"`
	Roles             string `json:"roles"`
	SpeechTranslation bool   `json:"speech_translation"`
	SlideSupport      bool   `json:"slide_support"`
}

// NewTypesCommand lists the deployable pipeline types.
func NewTypesCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List available pipeline types",
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []pipelineTypeInfo
			for _, name := range pipeline.Types() {
				def, err := pipeline.Get(name)
				if err != nil {
					return err
				}
				roles := make([]string, len(def.Roles))
				for i, r := range def.Roles {
					roles[i] = string(r)
				}
				infos = append(infos, pipelineTypeInfo{
					Name:              name,
					Components:        strings.Join(def.Templates, ","),
					Roles:             strings.Join(roles, ","),
					SpeechTranslation: def.SpeechTranslation,
					SlideSupport:      def.SlideSupport,
				})
			}
			return PrintOutput(infos, root.OutputOptions())
		},
	}
}

type configurationInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Domain string `json:"domain"`
	Mode   string `json:"backends"`
}

// NewListCommand lists saved pipeline configurations.
func NewListCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved pipeline configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := config.ListConfigurations(root.Config().General.ConfigDir)
			if err != nil {
				return err
			}

			infos := make([]configurationInfo, 0, len(names))
			for _, name := range names {
				spec, err := config.LoadSpec(root.Config().General.ConfigDir, name)
				if err != nil {
					continue
				}
				infos = append(infos, configurationInfo{
					Name:   spec.Name,
					Type:   spec.Type,
					Domain: spec.Domain,
					Mode:   spec.Backends,
				})
			}
			return PrintOutput(infos, root.OutputOptions())
		},
	}
}
