package executor

import (
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/repository"
	"github.com/govm-net/contractvm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func holderAddr(i int) core.Address {
	return core.AddressFromString(fmt.Sprintf("%040x", 0xd00+i))
}

// deployHolders commits n holder contracts and returns their addresses
func deployHolders(t testing.TB, env *testEnv, n int) []core.Address {
	snap, err := env.exec.Begin(env.repo.Head())
	require.NoError(t, err)
	addrs := make([]core.Address, n)
	for i := range addrs {
		addrs[i] = holderAddr(i)
		res := env.exec.Create(snap, &types.ProgramCreate{
			Sender:          creator,
			ContractAddress: addrs[i],
			GasLimit:        testGas,
			BlockNumber:     1,
			Code:            env.code,
			Args:            []string{"0"},
		})
		require.True(t, res.Success, res.ErrorMessage)
	}
	require.NoError(t, snap.Commit())
	return addrs
}

func computeOn(env *testEnv, snap *repository.Snapshot, addr core.Address, n int) *types.ProgramResult {
	return env.exec.Call(snap, &types.ProgramCall{
		Sender:          creator,
		ContractAddress: addr,
		GasLimit:        testGas,
		BlockNumber:     2,
		MethodName:      "set",
		Args:            []string{strconv.Itoa(n)},
	})
}

// TestParallelExecution 并行执行与串行执行结果一致
func TestParallelExecution(t *testing.T) {
	env := newTestEnv(t)
	addrs := deployHolders(t, env, 5)
	head := env.repo.Head()

	serial := make([]*types.ProgramResult, len(addrs))
	startTime := time.Now()
	for i, addr := range addrs {
		snap, err := env.exec.Begin(head)
		require.NoError(t, err)
		serial[i] = computeOn(env, snap, addr, 100*(i+1))
	}
	serialDuration := time.Since(startTime)

	parallel := make([]*types.ProgramResult, len(addrs))
	startTime = time.Now()
	var wg sync.WaitGroup
	for i, addr := range addrs {
		wg.Add(1)
		go func(i int, addr core.Address) {
			defer wg.Done()
			snap, err := env.exec.Begin(head)
			if err != nil {
				t.Errorf("begin failed: %v", err)
				return
			}
			parallel[i] = computeOn(env, snap, addr, 100*(i+1))
		}(i, addr)
	}
	wg.Wait()
	parallelDuration := time.Since(startTime)
	t.Logf("serial %v, parallel %v", serialDuration, parallelDuration)

	for i := range addrs {
		require.NotNil(t, parallel[i])
		assert.True(t, parallel[i].Success, parallel[i].ErrorMessage)
		assert.Equal(t, serial[i], parallel[i])
	}
}

// Two snapshots of the same head may both run, but only the first one commits.
func TestConcurrentCommitsConflict(t *testing.T) {
	env := newTestEnv(t)
	addrs := deployHolders(t, env, 2)
	head := env.repo.Head()

	first, err := env.exec.Begin(head)
	require.NoError(t, err)
	second, err := env.exec.Begin(head)
	require.NoError(t, err)
	require.True(t, computeOn(env, first, addrs[0], 1).Success)
	require.True(t, computeOn(env, second, addrs[1], 2).Success)

	require.NoError(t, first.Commit())
	assert.ErrorIs(t, second.Commit(), repository.ErrStaleSnapshot)
}

func BenchmarkParallelExecution(b *testing.B) {
	env := newTestEnv(b)
	addrs := deployHolders(b, env, 5)
	head := env.repo.Head()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var wg sync.WaitGroup
		for j, addr := range addrs {
			wg.Add(1)
			go func(j int, addr core.Address) {
				defer wg.Done()
				snap, err := env.exec.Begin(head)
				if err != nil {
					b.Errorf("begin failed: %v", err)
					return
				}
				if res := computeOn(env, snap, addr, j); !res.Success {
					b.Errorf("parallel execution failed: %s", res.ErrorMessage)
				}
			}(j, addr)
		}
		wg.Wait()
	}
}
