package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type VersionInfo struct {
	Version string
	Commit  string
}

func (info VersionInfo) String() string {
	if info.Commit == "" {
		return info.Version
	}
	return fmt.Sprintf("%s.%s", info.Version, info.Commit)
}

func NewVersionCommand(info VersionInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "promptgallery %s\n", info)
			return nil
		},
	}

	return cmd
}
