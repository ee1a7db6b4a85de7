package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hengadev/credx"
	"github.com/hengadev/credx/providers/sqlite"
)

func newRotateCmd(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-master-key",
		Short: "Re-seal every stored access key under a new master key",
		Long: `Re-seal every stored access key under a new master key.

The current master key comes from the configured source. The new key is read
from the first line of stdin, in the same format as CREDX_MASTER_KEY. Either
every access key is re-sealed or none is. Update the master key source right
after this command succeeds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := readLine(cli.Stdin)
			if err != nil {
				return fmt.Errorf("read new master key from stdin: %w", err)
			}
			newKey, err := credx.ParseMasterKey(line)
			if err != nil {
				return err
			}
			to, err := credx.NewCipherService(newKey)
			if err != nil {
				return err
			}

			from, err := cli.cipher(cmd.Context())
			if err != nil {
				return err
			}

			store, err := sqlite.Open(cmd.Context(), cli.cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := credx.KeyRotation{
				Store:  store,
				From:   from,
				To:     to,
				Logger: cli.logger.Named("rotation"),
				Hook:   credx.NewStandardObservabilityHook(cli.metrics),
			}.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cli.Stdout, "rotated %d access keys\n", n)
			return nil
		},
	}
}
