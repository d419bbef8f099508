package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/govm-net/contractvm/blockindex"
	"github.com/govm-net/contractvm/config"
	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/executor"
	"github.com/govm-net/contractvm/repository"
	_ "github.com/govm-net/contractvm/repository/leveldb"
	_ "github.com/govm-net/contractvm/repository/sqldb"
	"github.com/govm-net/contractvm/types"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

// node is the local chain the commands operate on
type node struct {
	cfg    *config.Config
	repo   *repository.Repository
	blocks blockindex.Store
	exec   *executor.Executor
	logger *slog.Logger
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		def := config.Default()
		def.Backend = backend
		def.DataDir = dataDir
		cfg = &def
	}
	// explicit flags win over the file
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

func openNode(cmd *cobra.Command) (*node, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	bt := repository.BackendType(cfg.Backend)
	params := map[string]any{}
	var blocks blockindex.Store
	switch bt {
	case repository.MemoryBackend:
		logger.Warn("memory backend selected, state is discarded on exit")
		blocks = blockindex.NewMemory()
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		params["path"] = filepath.Join(cfg.DataDir, "state")
		if bt == repository.SQLiteBackend {
			params["path"] = filepath.Join(cfg.DataDir, "state.db")
		}
		if blocks, err = blockindex.OpenSQLite(filepath.Join(cfg.DataDir, "blocks.db")); err != nil {
			return nil, err
		}
	}

	db, err := repository.OpenDatabase(bt, params)
	if err != nil {
		blocks.Close()
		return nil, err
	}
	repo, err := repository.New(db)
	if err != nil {
		db.Close()
		blocks.Close()
		return nil, err
	}
	exec, err := executor.New(repo, *cfg, executor.WithLogger(logger), executor.WithBlockIndex(blocks))
	if err != nil {
		repo.Close()
		blocks.Close()
		return nil, err
	}
	logger.Debug("node opened", "backend", bt, "dataDir", cfg.DataDir, "head", repo.Head())
	return &node{cfg: cfg, repo: repo, blocks: blocks, exec: exec, logger: logger}, nil
}

func (n *node) Close() {
	if err := n.repo.Close(); err != nil {
		n.logger.Error("failed to close state database", "error", err)
	}
	if err := n.blocks.Close(); err != nil {
		n.logger.Error("failed to close block index", "error", err)
	}
}

// nextBlock appends a new block produced by coinbase
func (n *node) nextBlock(coinbase core.Address) (types.BlockHeader, error) {
	latest, err := n.blocks.Latest()
	if err != nil {
		return types.BlockHeader{}, err
	}
	now := time.Now().Unix()
	if latest != nil && now < latest.Time {
		now = latest.Time
	}
	hdr := blockindex.Next(latest, now, coinbase)
	if err := n.blocks.Append(hdr); err != nil {
		return types.BlockHeader{}, err
	}
	return hdr, nil
}

// apply runs fn on a snapshot of the head in a new block and commits
// the snapshot when the invocation succeeded
func (n *node) apply(sender core.Address, fn func(*repository.Snapshot, types.BlockHeader) *types.ProgramResult) (*types.ProgramResult, error) {
	block, err := n.nextBlock(sender)
	if err != nil {
		return nil, err
	}
	snap, err := n.exec.Begin(n.repo.Head())
	if err != nil {
		return nil, err
	}
	result := fn(snap, block)
	if result.Success {
		if err := snap.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit block %d: %w", block.Number, err)
		}
	}
	n.logger.Info("block processed", "number", block.Number, "status", result.Status, "gasUsed", result.GasUsed, "root", n.repo.Head())
	return result, nil
}

func parseValue(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return v, nil
}

type transferView struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

type resultView struct {
	Success    bool              `json:"success"`
	Status     string            `json:"status"`
	GasUsed    uint64            `json:"gasUsed"`
	Result     string            `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	StackTrace []string          `json:"stackTrace,omitempty"`
	Transfers  []transferView    `json:"transfers,omitempty"`
	Events     []json.RawMessage `json:"events,omitempty"`
	Nonce      uint64            `json:"nonce"`
	Balance    string            `json:"balance"`
	StateRoot  string            `json:"stateRoot"`
}

func printResult(r *types.ProgramResult) error {
	v := resultView{
		Success:   r.Success,
		Status:    r.Status.String(),
		GasUsed:   r.GasUsed,
		Result:    r.Result,
		Error:     r.ErrorMessage,
		Nonce:     r.Nonce,
		Balance:   "0",
		StateRoot: r.StateRoot.String(),
	}
	if r.StackTrace != "" {
		v.StackTrace = strings.Split(r.StackTrace, "\n")
	}
	if r.Balance != nil {
		v.Balance = r.Balance.Dec()
	}
	for _, t := range r.Transfers {
		v.Transfers = append(v.Transfers, transferView{From: t.From.String(), To: t.To.String(), Value: t.Value.Dec()})
	}
	for _, ev := range r.Events {
		v.Events = append(v.Events, json.RawMessage(ev))
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Println(string(data))
	if !r.Success {
		return fmt.Errorf("invocation failed: %s", r.ErrorMessage)
	}
	return nil
}
