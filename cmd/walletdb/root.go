package main

import (
	"errors"
	"strings"

	"github.com/neogan74/walletdb/internal/config"
	"github.com/neogan74/walletdb/internal/logger"
	"github.com/neogan74/walletdb/internal/metrics"
	"github.com/neogan74/walletdb/internal/persistence"
	"github.com/neogan74/walletdb/internal/persister"
	"github.com/neogan74/walletdb/internal/wallet"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// cli carries state shared by every sub-command.
type cli struct {
	backend     string
	path        string
	network     string
	metricsFile string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "walletdb",
		Short:         "Inspect and update a wallet's persisted state",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.backend, "backend", "", "storage backend (overrides WALLETDB_BACKEND)")
	root.PersistentFlags().StringVar(&c.path, "path", "", "store location (overrides WALLETDB_PATH)")
	root.PersistentFlags().StringVar(&c.network, "network", "", "wallet network (overrides WALLETDB_NETWORK)")
	root.PersistentFlags().StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit (overrides WALLETDB_METRICS_FILE)")

	root.AddCommand(
		backendsCmd(),
		showCmd(c),
		blockCmd(c),
		disconnectCmd(c),
		descriptorsCmd(c),
		revealCmd(c),
		txCmd(c),
		anchorCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	flags := cmd.Flags()
	cfg, err := config.Load(func(cfg *config.Config) {
		if flags.Changed("backend") {
			cfg.Persistence.Backend = c.backend
		}
		if flags.Changed("path") {
			cfg.Persistence.Path = c.path
		}
		if flags.Changed("network") {
			cfg.Wallet.Network = c.network
		}
		if flags.Changed("metrics-file") {
			cfg.Metrics.File = c.metricsFile
		}
	})
	if err != nil {
		return err
	}

	c.cfg = cfg
	logger.SetDefault(logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format))

	metrics.BuildInfo.WithLabelValues(version, compiledNames()).Set(1)
	return nil
}

// openWallet opens the configured store and loads the wallet from it.
func (c *cli) openWallet() (*wallet.Wallet, error) {
	log := logger.GetDefault()
	h, err := persistence.Open(c.cfg.Persistence, log)
	if err != nil {
		return nil, err
	}
	w, err := wallet.Load(h, c.cfg.Wallet.Network, log)
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	return w, nil
}

// withWallet runs fn against the loaded wallet, commits whatever fn staged
// and closes the store.
func (c *cli) withWallet(fn func(w *wallet.Wallet) error) error {
	return c.runWallet(func(w *wallet.Wallet) error {
		if err := fn(w); err != nil {
			return err
		}
		_, err := w.Commit()
		return err
	})
}

// viewWallet runs fn against the persisted state only. Nothing is written,
// not even the network claim of a fresh store.
func (c *cli) viewWallet(fn func(w *wallet.Wallet) error) error {
	return c.runWallet(func(w *wallet.Wallet) error {
		w.Discard()
		return fn(w)
	})
}

func (c *cli) runWallet(fn func(w *wallet.Wallet) error) (err error) {
	defer func() {
		err = errors.Join(err, c.exportMetrics())
		_ = logger.GetDefault().Sync()
	}()

	w, err := c.openWallet()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(w)
}

// exportMetrics writes the metrics file when one is configured, so a
// node_exporter textfile collector can pick up the run.
func (c *cli) exportMetrics() error {
	if c.cfg.Metrics.File == "" {
		return nil
	}
	return metrics.WriteTextfile(c.cfg.Metrics.File)
}

func compiledNames() string {
	var names []string
	for _, b := range persister.Compiled() {
		names = append(names, b.String())
	}
	return strings.Join(names, ",")
}
