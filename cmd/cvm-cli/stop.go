package main

import (
	"fmt"

	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/repository"
	"github.com/govm-net/contractvm/types"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop <contract>",
	Short: "Stop a contract",
	Long:  `Stop a deployed contract. Only its creator may stop it; a stopped contract rejects all calls.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, err := core.ParseAddress(args[0])
		if err != nil {
			return fmt.Errorf("invalid contract address: %w", err)
		}
		sender, err := core.ParseAddress(senderHex)
		if err != nil {
			return fmt.Errorf("invalid sender: %w", err)
		}

		n, err := openNode(cmd)
		if err != nil {
			return err
		}
		defer n.Close()

		result, err := n.apply(sender, func(snap *repository.Snapshot, block types.BlockHeader) *types.ProgramResult {
			return n.exec.Stop(snap, contract, sender, block.Number)
		})
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

func init() {
	stopCmd.Flags().StringVarP(&senderHex, "sender", "s", "", "Sender address (required)")
	stopCmd.MarkFlagRequired("sender")
}
