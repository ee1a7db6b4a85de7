package cmd

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hengadev/credx"
	"github.com/hengadev/credx/internal/crypto"
	"github.com/hengadev/credx/providers/awskms"
)

type sealedOutput struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
}

func newEncryptCmd(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt one line of stdin under the master key",
		Long: `Encrypt one line of stdin under the master key.

Prints the hex ciphertext and hex IV as JSON. Useful to seed records from
other tools; 'credx access-key add' does this for you.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := readLine(cli.Stdin)
			if err != nil {
				return fmt.Errorf("read plaintext from stdin: %w", err)
			}

			cipher, err := cli.cipher(cmd.Context())
			if err != nil {
				return err
			}
			sealed, err := cipher.Encrypt(plaintext)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cli.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sealedOutput{Ciphertext: sealed.Ciphertext, IV: hex.EncodeToString(sealed.IV)})
		},
	}
}

type decryptCheckOptions struct {
	Ciphertext string
	IV         string
}

func newDecryptCheckCmd(cli *CLI) *cobra.Command {
	var opts decryptCheckOptions

	cmd := &cobra.Command{
		Use:   "decrypt-check",
		Short: "Check that a ciphertext decrypts under the current master key",
		Long: `Check that a ciphertext decrypts under the current master key.

The plaintext is never printed; only its length is reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			iv, err := hex.DecodeString(opts.IV)
			if err != nil {
				return fmt.Errorf("%w: --iv must be hex: %w", credx.ErrInvalidConfiguration, err)
			}

			cipher, err := cli.cipher(cmd.Context())
			if err != nil {
				return err
			}
			plaintext, err := cipher.Decrypt(opts.Ciphertext, iv)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.Stdout, "ok: %d bytes\n", len(plaintext))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Ciphertext, "ciphertext", "", "Hex ciphertext")
	cmd.Flags().StringVar(&opts.IV, "iv", "", "Hex IV")
	_ = cmd.MarkFlagRequired("ciphertext")
	_ = cmd.MarkFlagRequired("iv")
	return cmd
}

type keygenOptions struct {
	KMSKeyID string
}

func newKeygenCmd(cli *CLI) *cobra.Command {
	var opts keygenOptions

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new master key",
		Long: `Generate a new master key.

Without --kms-key-id, prints a random 256-bit key as "base64:..." suitable
for CREDX_MASTER_KEY, a key file, Secrets Manager or Vault. With
--kms-key-id, asks KMS for the key and prints only the wrapped blob for
master_key_source: aws-kms.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.KMSKeyID == "" {
				b, err := crypto.GenerateKey()
				if err != nil {
					return fmt.Errorf("generate master key: %w", err)
				}
				fmt.Fprintln(cli.Stdout, "base64:"+base64.StdEncoding.EncodeToString(b))
				clear(b)
				return nil
			}

			generator, err := awskms.NewGenerator(cmd.Context(), awskms.Config{Region: cli.cfg.Region, KeyID: opts.KMSKeyID})
			if err != nil {
				return err
			}
			blob, err := generator.Generate(cmd.Context(), "")
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.Stdout, blob)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.KMSKeyID, "kms-key-id", "", "Wrap the new key with this KMS key (id, ARN or alias)")
	return cmd
}
