package main

import (
	"encoding/json"
	"fmt"

	"github.com/govm-net/contractvm/core"
	"github.com/spf13/cobra"
)

var abiOutput bool

var methodsCmd = &cobra.Command{
	Use:   "methods <contract>",
	Short: "List the invokable methods of a contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, err := core.ParseAddress(args[0])
		if err != nil {
			return fmt.Errorf("invalid contract address: %w", err)
		}
		n, err := openNode(cmd)
		if err != nil {
			return err
		}
		defer n.Close()

		snap, err := n.exec.Begin(n.repo.Head())
		if err != nil {
			return err
		}
		if abiOutput {
			a, err := n.exec.ABI(snap, contract)
			if err != nil {
				return err
			}
			fmt.Println(a)
			return nil
		}
		methods, err := n.exec.ListMethods(snap, contract)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(methods, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var headCmd = &cobra.Command{
	Use:   "head",
	Short: "Show the current state root and latest block",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode(cmd)
		if err != nil {
			return err
		}
		defer n.Close()

		fmt.Printf("State root: %s\n", n.repo.Head())
		latest, err := n.blocks.Latest()
		if err != nil {
			return err
		}
		if latest == nil {
			fmt.Println("No blocks yet")
			return nil
		}
		fmt.Printf("Block: %d\nHash: %s\nTime: %d\n", latest.Number, latest.Hash, latest.Time)
		return nil
	},
}

func init() {
	methodsCmd.Flags().BoolVar(&abiOutput, "abi", false, "Print the full ABI including events")
}
