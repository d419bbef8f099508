package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/repository"
	"github.com/govm-net/contractvm/types"
	"github.com/spf13/cobra"
)

var (
	sourceFile  string
	contractHex string
	senderHex   string
	valueDec    string
	gasLimit    uint64
	gasPrice    uint64
)

var deployCmd = &cobra.Command{
	Use:   "deploy [constructor args...]",
	Short: "Deploy a smart contract",
	Long: `Deploy a smart contract. The file is either assembler source (.jasm)
or an encoded code package.
Example: cvm-cli deploy -f holder.jasm -s 00000000000000000000000000000000000000a1 -- 42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readCode(sourceFile)
		if err != nil {
			return err
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

		var addr core.Address
		result, err := n.apply(sender, func(snap *repository.Snapshot, block types.BlockHeader) *types.ProgramResult {
			addr = contractAddress(sender, block.Number, data)
			if contractHex != "" {
				addr = core.AddressFromString(contractHex)
			}
			return n.exec.Create(snap, &types.ProgramCreate{
				Sender:          sender,
				ContractAddress: addr,
				Value:           value,
				GasLimit:        gasLimit,
				GasPrice:        gasPrice,
				BlockNumber:     block.Number,
				Code:            data,
				Args:            args,
			})
		})
		if err != nil {
			return err
		}
		if result.Success {
			fmt.Printf("Contract address: %s\n", addr)
		}
		return printResult(result)
	},
}

// readCode assembles .jasm sources and passes encoded packages through
func readCode(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	if filepath.Ext(path) != ".jasm" {
		return raw, nil
	}
	data, err := code.AssembleCode(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to assemble %s: %w", path, err)
	}
	return data, nil
}

// contractAddress 由部署者、区块号和代码推导合约地址
func contractAddress(sender core.Address, block uint64, data []byte) core.Address {
	var num [8]byte
	binary.BigEndian.PutUint64(num[:], block)
	h := core.Keccak256(sender[:], num[:], data)
	var addr core.Address
	copy(addr[:], h[len(h)-len(addr):])
	return addr
}

func init() {
	deployCmd.Flags().StringVarP(&sourceFile, "file", "f", "", "Contract source (.jasm) or encoded code (required)")
	deployCmd.Flags().StringVarP(&contractHex, "address", "a", "", "Contract address, derived from sender, block and code when empty")
	addTxFlags(deployCmd)
	deployCmd.MarkFlagRequired("file")
}

func addTxFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&senderHex, "sender", "s", "", "Sender address (required)")
	cmd.Flags().StringVarP(&valueDec, "value", "v", "", "Attached value, decimal")
	cmd.Flags().Uint64VarP(&gasLimit, "gas", "g", 1_000_000, "Gas limit, 0 for unlimited")
	cmd.Flags().Uint64Var(&gasPrice, "gas-price", 1, "Gas price")
	cmd.MarkFlagRequired("sender")
}
