package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"github.com/tolelom/degenchain/config"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/events"
	"github.com/tolelom/degenchain/indexer"
	"github.com/tolelom/degenchain/journal"
	"github.com/tolelom/degenchain/metrics"
	"github.com/tolelom/degenchain/rpc"
	"github.com/tolelom/degenchain/sequencer"
	"github.com/tolelom/degenchain/storage"
	"github.com/tolelom/degenchain/vm"
	"github.com/tolelom/degenchain/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/tolelom/degenchain/vm/modules/player"
	_ "github.com/tolelom/degenchain/vm/modules/reward"
	_ "github.com/tolelom/degenchain/vm/modules/store"
	_ "github.com/tolelom/degenchain/vm/modules/token"
)

var noJournal bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sequencer and the RPC server",
	Long:  `Start the sequencer and the RPC server. Stop it with SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cfgPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		return run(cfg)
	},
}

func init() {
	startCmd.Flags().BoolVar(&noJournal, "no-journal", false, "disable the SQLite event journal")
	rootCmd.AddCommand(startCmd)
}

func run(cfg *config.Config) error {
	privKey, err := wallet.LoadKey(keyPath, password())
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	state := storage.NewStateDB(db)
	bc := core.NewBlockchain(storage.NewBlockStore(db), privKey.Public())
	if err := bc.Init(); err != nil {
		return fmt.Errorf("blockchain init: %w", err)
	}

	// ---- genesis block (if fresh chain) ----
	if bc.Tip() == nil {
		genesis, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		if err := bc.AddBlock(genesis); err != nil {
			return fmt.Errorf("add genesis: %w", err)
		}
		supply, err := state.GetTotalSupply()
		if err != nil {
			return err
		}
		log.Printf("[node] genesis %s committed, supply %s %s",
			genesis.Hash[:16], formatAmount(supply), cfg.Genesis.Token.Symbol)
	} else {
		log.Printf("[node] resuming at height %d", bc.Height())
	}

	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)
	mempool := core.NewMempool(cfg.Genesis.ChainID)

	m := metrics.New()
	m.Attach(emitter)
	m.GaugeFunc("mempool_size", "Pending transactions", func() float64 { return float64(mempool.Size()) })

	var jrnl *journal.Journal
	if !noJournal {
		jrnl, err = journal.Open(cfg.JournalFile())
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jrnl.Close()
		jrnl.Attach(emitter)
		m.GaugeFunc("journal_dropped", "Events the journal could not queue", func() float64 {
			return float64(jrnl.Dropped())
		})
		log.Printf("[node] event journal at %s", cfg.JournalFile())
	}

	exec := vm.NewExecutor(state, emitter, cfg.Genesis.ChainID)
	seq := sequencer.New(bc, mempool, exec, emitter, privKey, cfg.MaxBlockTxs)
	log.Printf("[node] %d tx types registered: %v", len(vm.SupportedTypes()), vm.SupportedTypes())

	// ---- RPC ----
	hub := rpc.NewHub(emitter)
	m.GaugeFunc("ws_clients", "Connected websocket subscribers", func() float64 { return float64(hub.Clients()) })
	m.GaugeFunc("ws_dropped", "Events dropped for slow websocket subscribers", func() float64 { return float64(hub.Dropped()) })
	handler := rpc.NewHandler(bc, mempool, exec, idx, jrnl, cfg.Genesis.ChainID)
	server := rpc.NewServer(fmt.Sprintf(":%d", cfg.RPCPort), handler, cfg.RPCAuthToken,
		rpc.WithMetrics(m.Handler()), rpc.WithHub(hub))
	if err := server.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	defer server.Stop()
	log.Printf("[node] RPC listening on %s", server.Addr())
	if cfg.RPCAuthToken != "" {
		log.Println("[node] RPC Bearer token authentication enabled")
	}

	// ---- sequencer loop ----
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		seq.Run(cfg.BlockInterval(), done)
	}()
	log.Printf("[node] sequencer %s running on chain %q every %s",
		core.Address(privKey.Public().AddressBytes()), cfg.Genesis.ChainID, cfg.BlockInterval())

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	log.Printf("[node] got signal %v, shutting down", s)

	// Stop block production first; deferred calls then close RPC, journal and DB.
	close(done)
	wg.Wait()
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	log.Printf("[node] config file not found at %s, using defaults", path)
	cfg = config.DefaultConfig()
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func formatAmount(v *uint256.Int) string {
	return humanize.BigComma(v.ToBig())
}
