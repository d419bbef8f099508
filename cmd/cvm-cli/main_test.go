package main

import (
	"path/filepath"
	"testing"

	"github.com/govm-net/contractvm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSender   = "00000000000000000000000000000000000000a1"
	testContract = "00000000000000000000000000000000000000c1"
)

func run(args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestDeployAndCall(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join("..", "..", "executor", "testdata", "holder.jasm")
	common := []string{"--data-dir", dir, "--log-level", "warn"}

	require.NoError(t, run(append([]string{"deploy", "-f", source, "-a", testContract, "-s", testSender}, append(common, "--", "5")...)...))
	require.NoError(t, run(append([]string{"call", testContract, "set", "9", "-s", testSender}, common...)...))
	require.NoError(t, run(append([]string{"methods", testContract}, common...)...))
	require.NoError(t, run(append([]string{"head"}, common...)...))

	// reverted calls surface as command errors
	assert.Error(t, run(append([]string{"call", testContract, "fail", "-s", testSender}, common...)...))

	require.NoError(t, run(append([]string{"stop", testContract, "-s", testSender}, common...)...))
	assert.Error(t, run(append([]string{"call", testContract, "get", "-s", testSender}, common...)...))
}

func TestContractAddressIsDerived(t *testing.T) {
	sender := core.AddressFromString(testSender)
	a := contractAddress(sender, 1, []byte("code"))
	assert.Equal(t, a, contractAddress(sender, 1, []byte("code")))
	assert.NotEqual(t, a, contractAddress(sender, 2, []byte("code")))
	assert.False(t, a.IsZero())
}
