package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hengadev/credx"
)

func newVersionCmd(cli *CLI) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display the credx version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := credx.ReadBuildInfo()
			if asJSON {
				return json.NewEncoder(cli.Stdout).Encode(info)
			}
			fmt.Fprintln(cli.Stdout, info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build details as JSON")
	return cmd
}
