package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/neogan74/walletdb/internal/persister"
	"github.com/neogan74/walletdb/internal/wallet"
	"github.com/spf13/cobra"
)

func backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the storage backends compiled into this binary",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, b := range persister.Compiled() {
				fmt.Fprintln(cmd.OutOrStdout(), b)
			}
			return nil
		},
	}
}

func showCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the persisted wallet state as JSON without modifying the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.viewWallet(func(w *wallet.Wallet) error {
				return writeState(cmd.OutOrStdout(), w.State())
			})
		},
	}
}

func blockCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "block <height> <hash>",
		Short: "Record a block in the local chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			height, err := parseHeight(args[0])
			if err != nil {
				return err
			}
			return c.withWallet(func(w *wallet.Wallet) error {
				return w.ApplyBlock(height, args[1])
			})
		},
	}
}

func disconnectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <height>",
		Short: "Remove the block at height from the local chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			height, err := parseHeight(args[0])
			if err != nil {
				return err
			}
			return c.withWallet(func(w *wallet.Wallet) error {
				w.DisconnectBlock(height)
				return nil
			})
		},
	}
}

func descriptorsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "descriptors <external> [change]",
		Short: "Bind the wallet's external and change descriptors",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var change string
			if len(args) == 2 {
				change = args[1]
			}
			return c.withWallet(func(w *wallet.Wallet) error {
				return w.SetDescriptors(args[0], change)
			})
		},
	}
}

func revealCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reveal [keychain]",
		Short: "Reveal the next derivation index of a keychain (default external)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keychain := wallet.KeychainExternal
			if len(args) == 1 {
				keychain = args[0]
			}
			return c.withWallet(func(w *wallet.Wallet) error {
				idx := w.RevealNextIndex(keychain)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", keychain, idx)
				return nil
			})
		},
	}
}

func txCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tx <txid> <raw-hex>",
		Short: "Insert a raw transaction, marked as seen now",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(args[1])
			if err != nil {
				return fmt.Errorf("invalid transaction hex: %w", err)
			}
			return c.withWallet(func(w *wallet.Wallet) error {
				return w.InsertTx(args[0], raw, time.Now())
			})
		},
	}
}

func anchorCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "anchor <txid> <height> <hash>",
		Short: "Confirm a known transaction in the block at height",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			height, err := parseHeight(args[1])
			if err != nil {
				return err
			}
			return c.withWallet(func(w *wallet.Wallet) error {
				return w.Anchor(args[0], height, args[2])
			})
		},
	}
}

func parseHeight(arg string) (uint32, error) {
	height, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid height %q: %w", arg, err)
	}
	return uint32(height), nil
}
