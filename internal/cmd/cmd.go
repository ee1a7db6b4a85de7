// Package cmd implements the credx command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hengadev/credx"
	"github.com/hengadev/credx/internal/logging"
	"github.com/hengadev/credx/internal/metrics"
	s3bucket "github.com/hengadev/credx/providers/s3"
	"github.com/hengadev/credx/providers/sqlite"
)

// CLI holds the streams and collaborators shared by every command.
type CLI struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// newTransport, newMasterKeyProvider and newBackup are replaced in tests.
	newTransport         func(cfg credx.Config) (credx.Transport, error)
	newMasterKeyProvider func(ctx context.Context, cfg credx.Config) (credx.MasterKeyProvider, error)
	newBackup            func(ctx context.Context, cfg s3bucket.Config) (*s3bucket.Backup, error)

	opts    rootOptions
	cfg     credx.Config
	logger  *zap.Logger
	metrics *metrics.Collector
}

type rootOptions struct {
	ConfigFile  string
	EnvFile     string
	LogLevel    string
	LogFormat   string
	MetricsFile string
}

func newCLI() *CLI {
	return &CLI{
		Stdin:                os.Stdin,
		Stdout:               os.Stdout,
		Stderr:               os.Stderr,
		newTransport:         newTransport,
		newMasterKeyProvider: newMasterKeyProvider,
		newBackup:            s3bucket.New,
		logger:               zap.NewNop(),
	}
}

// Run the main CLI command with the given args. The args should not contain
// the name of the binary (ex: os.Args[1:]).
func Run(ctx context.Context, args ...string) error {
	cli := newCLI()
	cmd := NewRootCmd(cli)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func NewRootCmd(cli *CLI) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "credx",
		Short:             "Scoped access to remote secrets with encrypted credentials",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.SetIn(cli.Stdin)
	rootCmd.SetOut(cli.Stdout)
	rootCmd.SetErr(cli.Stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cli.opts.ConfigFile, "config", "", "Path to a YAML configuration file")
	flags.StringVar(&cli.opts.EnvFile, "env-file", "", "Load environment variables from a .env file first")
	flags.StringVar(&cli.opts.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&cli.opts.LogFormat, "log-format", "", "Log format: console or json")
	flags.StringVar(&cli.opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")

	rootCmd.AddCommand(newGetCmd(cli))
	rootCmd.AddCommand(newPutCmd(cli))
	rootCmd.AddCommand(newAccessKeyCmd(cli))
	rootCmd.AddCommand(newSecretCmd(cli))
	rootCmd.AddCommand(newEncryptCmd(cli))
	rootCmd.AddCommand(newDecryptCheckCmd(cli))
	rootCmd.AddCommand(newKeygenCmd(cli))
	rootCmd.AddCommand(newRotateCmd(cli))
	rootCmd.AddCommand(newBackupCmd(cli))
	rootCmd.AddCommand(newVersionCmd(cli))

	return rootCmd
}

// setup loads the env file, the configuration and the logger, in that order,
// so the env file can feed CREDX_* overrides.
func (c *CLI) setup() error {
	if c.opts.EnvFile != "" {
		if err := godotenv.Load(c.opts.EnvFile); err != nil {
			return fmt.Errorf("load env file %s: %w", c.opts.EnvFile, err)
		}
	}

	cfg, err := credx.LoadConfigFile(c.opts.ConfigFile)
	if err != nil {
		return err
	}
	if c.opts.LogLevel != "" {
		cfg.Log.Level = c.opts.LogLevel
	}
	if c.opts.LogFormat != "" {
		cfg.Log.Format = c.opts.LogFormat
	}
	c.cfg = cfg

	logger, err := logging.NewWithWriter(cfg.Log.Level, cfg.Log.Format, zapcore.AddSync(c.Stderr))
	if err != nil {
		return fmt.Errorf("%w: %w", credx.ErrInvalidConfiguration, err)
	}
	c.logger = logger

	var opts []metrics.Option
	if c.opts.MetricsFile != "" {
		opts = append(opts, metrics.WithTextfile(c.opts.MetricsFile))
	}
	c.metrics = metrics.New(opts...)
	return nil
}

func (c *CLI) teardown() error {
	var errs []error
	if c.metrics != nil {
		errs = append(errs, c.metrics.Flush())
	}
	// stderr sync fails on some terminals; nothing to report
	_ = c.logger.Sync()
	return errors.Join(errs...)
}

// openBroker wires master key provider, record store and transport into a
// Broker. Callers close the returned store.
func (c *CLI) openBroker(ctx context.Context) (*credx.Broker, *sqlite.Store, error) {
	provider, err := c.newMasterKeyProvider(ctx, c.cfg)
	if err != nil {
		return nil, nil, err
	}
	transport, err := c.newTransport(c.cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlite.Open(ctx, c.cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	broker, err := credx.New(ctx,
		credx.WithConfig(c.cfg),
		credx.WithRecordStore(store),
		credx.WithTransport(transport),
		credx.WithMasterKeyProvider(provider),
		credx.WithLogger(c.logger),
		credx.WithMetricsCollector(c.metrics),
		credx.WithObservabilityHook(credx.NewStandardObservabilityHook(c.metrics)),
	)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return broker, store, nil
}

// cipher loads the master key only; commands using it need no store.
func (c *CLI) cipher(ctx context.Context) (*credx.CipherService, error) {
	provider, err := c.newMasterKeyProvider(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	key, err := provider.MasterKey(ctx)
	if err != nil {
		return nil, err
	}
	return credx.NewCipherService(key)
}
