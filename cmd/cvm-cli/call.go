package main

import (
	"fmt"

	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/repository"
	"github.com/govm-net/contractvm/types"
	"github.com/spf13/cobra"
)

var methodDesc string

var callCmd = &cobra.Command{
	Use:   "call <contract> <method> [args...]",
	Short: "Invoke a contract method",
	Long: `Invoke a method of a deployed contract in a new block. Arguments are
given as strings and converted to the declared parameter types.
Example: cvm-cli call 4f1c...9a set 7 -s 00000000000000000000000000000000000000a1`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, err := core.ParseAddress(args[0])
		if err != nil {
			return fmt.Errorf("invalid contract address: %w", err)
		}
		sender, err := core.ParseAddress(senderHex)
		if err != nil {
			return fmt.Errorf("invalid sender: %w", err)
		}
		value, err := parseValue(valueDec)
		if err != nil {
			return err
		}

		n, err := openNode(cmd)
		if err != nil {
			return err
		}
		defer n.Close()

		result, err := n.apply(sender, func(snap *repository.Snapshot, block types.BlockHeader) *types.ProgramResult {
			return n.exec.Call(snap, &types.ProgramCall{
				Sender:          sender,
				ContractAddress: contract,
				Value:           value,
				GasLimit:        gasLimit,
				GasPrice:        gasPrice,
				BlockNumber:     block.Number,
				MethodName:      args[1],
				MethodDesc:      methodDesc,
				Args:            args[2:],
			})
		})
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

func init() {
	callCmd.Flags().StringVar(&methodDesc, "desc", "", "Method descriptor, needed when overloads share an argument count")
	addTxFlags(callCmd)
}
