package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hengadev/credx"
)

type scopeOptions struct {
	Tenant string
	Caller string
}

func addScopeFlags(cmd *cobra.Command, opts *scopeOptions) {
	cmd.Flags().StringVar(&opts.Tenant, "tenant", "", "Tenant the secret belongs to")
	cmd.Flags().StringVar(&opts.Caller, "caller", "", "Caller requesting the secret")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("caller")
}

func (o scopeOptions) scope(name string) credx.Scope {
	return credx.Scope{Name: name, TenantID: o.Tenant, CallerID: o.Caller}
}

func newGetCmd(cli *CLI) *cobra.Command {
	var opts scopeOptions

	cmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Print the current value of a secret",
		Example: `
# Read the billing database secret as the invoice job of tenant acme
$ credx get billing-db --tenant acme --caller invoice-job
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, store, err := cli.openBroker(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			value, err := broker.GetSecret(cmd.Context(), opts.scope(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.Stdout, value)
			return nil
		},
	}

	addScopeFlags(cmd, &opts)
	return cmd
}

type putOptions struct {
	scopeOptions
	Values   map[string]string
	FromFile string
}

func newPutCmd(cli *CLI) *cobra.Command {
	var opts putOptions

	cmd := &cobra.Command{
		Use:   "put NAME",
		Short: "Write a new version of a secret",
		Long: `Write a new version of a secret.

The new value is a JSON object of string fields, built from --set flags or
read from a JSON file. The previous content is replaced, not merged.`,
		Example: `
# Rotate the database password
$ credx put billing-db --tenant acme --caller invoice-job --set password=hunter2 --set user=billing

# Write the content of a JSON file ("-" reads stdin)
$ credx put billing-db --tenant acme --caller invoice-job --from-file secret.json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := opts.content(cli.Stdin)
			if err != nil {
				return err
			}

			broker, store, err := cli.openBroker(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			versionID, err := broker.UpdateSecret(cmd.Context(), opts.scope(args[0]), content)
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.Stdout, versionID)
			return nil
		},
	}

	addScopeFlags(cmd, &opts.scopeOptions)
	cmd.Flags().StringToStringVar(&opts.Values, "set", nil, "Field of the new value, as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.FromFile, "from-file", "", "Read the new value from a JSON object file")
	cmd.MarkFlagsMutuallyExclusive("set", "from-file")
	return cmd
}

func (o putOptions) content(stdin io.Reader) (map[string]string, error) {
	if o.FromFile == "" {
		return o.Values, nil
	}

	var (
		data []byte
		err  error
	)
	if o.FromFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(o.FromFile)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", o.FromFile, err)
	}

	content := map[string]string{}
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("%s must hold a JSON object of string values: %w", o.FromFile, err)
	}
	return content, nil
}
