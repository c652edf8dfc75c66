package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mattsolo1/grove-voice/cmd/config"
)

// annotationNoService marks commands that run without opening the state database.
const annotationNoService = "ev/no-service"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Inspect the client configuration",
		Annotations: map[string]string{annotationNoService: "true"},
	}

	cmd.AddCommand(&cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Long:        "Print the configuration after merging the config file, EV_* environment variables and flags.",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoService: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(s)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}

// NeedsService reports whether cmd needs the service.
func NeedsService(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationNoService] == "true" {
			return false
		}
	}
	return true
}
