// Command hotstuffd wires configuration, storage, transport, and the
// consensus core together, following the subcommand layout
// _examples/luxfi-consensus/cmd/consensus/main.go uses for its root
// cobra.Command plus per-concern subcommands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sure2web3/hotstuff2-sub000/blockstore"
	"github.com/sure2web3/hotstuff2-sub000/config"
	"github.com/sure2web3/hotstuff2-sub000/consensus"
	"github.com/sure2web3/hotstuff2-sub000/crypto"
	"github.com/sure2web3/hotstuff2-sub000/health"
	"github.com/sure2web3/hotstuff2-sub000/logx"
	"github.com/sure2web3/hotstuff2-sub000/messenger"
	"github.com/sure2web3/hotstuff2-sub000/synchrony"
	"github.com/sure2web3/hotstuff2-sub000/txpool"
	"github.com/sure2web3/hotstuff2-sub000/types"

	"github.com/prometheus/client_golang/prometheus"
)

var rootCmd = &cobra.Command{
	Use:   "hotstuffd",
	Short: "HotStuff-2 BFT replication node",
	Long: `hotstuffd runs a node implementing chained two-phase HotStuff-2
consensus: BLS-aggregated quorum certificates, a synchrony-adaptive fast
path, and pipelined per-height processing.`,
}

func main() {
	rootCmd.AddCommand(devnetCmd(), checkCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// checkCmd validates a preset configuration without starting a node,
// mirroring the fatal-at-startup validation policy from spec §7.
func checkCmd() *cobra.Command {
	var preset string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a named configuration preset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := presetConfig(preset, 4)
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "local", "config preset: default, mainnet, local")
	return cmd
}

// devnetCmd boots a single-process simulated cluster of n nodes over an
// in-memory Messenger.Loopback hub, the way
// _examples/luxfi-consensus/cmd/sim/main.go drives a local multi-node
// simulation rather than requiring a real network. Production deployment
// would instead supply a real Messenger/BlockStore implementation here.
func devnetCmd() *cobra.Command {
	var (
		nodes  int
		preset string
		dur    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "devnet",
		Short: "Run a simulated multi-node devnet in a single process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevnet(nodes, preset, dur)
		},
	}
	cmd.Flags().IntVar(&nodes, "nodes", 4, "cluster size (n = 3f+1)")
	cmd.Flags().StringVar(&preset, "preset", "local", "config preset: default, mainnet, local")
	cmd.Flags().DurationVar(&dur, "duration", 10*time.Second, "how long to run before exiting")
	return cmd
}

func presetConfig(preset string, n int) config.Config {
	var cfg config.Config
	switch preset {
	case "mainnet":
		cfg = config.Mainnet()
	case "local":
		cfg = config.Local()
	default:
		cfg = config.Default()
	}
	cfg.F = uint64((n - 1) / 3)
	members := make([]types.Member, n)
	for i := range members {
		members[i] = types.Member{ID: types.NodeID(i)}
	}
	cfg.Membership = members
	return cfg
}

func runDevnet(n int, preset string, dur time.Duration) error {
	cfg := presetConfig(preset, n)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	membership := cfg.BuildMembership()

	keys := make(map[types.NodeID][]byte, n)
	for _, m := range membership.Members() {
		keys[m.ID] = []byte(fmt.Sprintf("devnet-key-%d", m.ID))
	}

	hub := messenger.NewLoopbackHub()
	registry := prometheus.NewRegistry()
	cores := make([]*consensus.Core, 0, n)

	for _, m := range membership.Members() {
		store := blockstore.NewMem()
		policy := txpool.PolicyFIFO
		if cfg.TxPool.FeePriority {
			policy = txpool.PolicyFeePriority
		}
		pool := txpool.New(policy, cfg.TxPool.MaxPoolSize)
		detector := synchrony.New(synchrony.Params{
			WindowSize:          cfg.Synchrony.WindowSize,
			MinSamples:          cfg.Synchrony.MinSamples,
			MaxDelay:            time.Duration(cfg.Synchrony.MaxDelayMS) * time.Millisecond,
			MaxVariance:         time.Duration(cfg.Synchrony.MaxVarianceMS) * time.Millisecond,
			CheckInterval:       time.Duration(cfg.Synchrony.CheckIntervalMS) * time.Millisecond,
			ConfidenceThreshold: cfg.Synchrony.ConfidenceThreshold,
		}, n-1)
		monitor := health.NewMonitor(prometheus.WrapRegistererWith(prometheus.Labels{"node": fmt.Sprintf("%d", uint64(m.ID))}, registry))
		signer := crypto.NewFakeSigner(m.ID, keys)

		core := consensus.New(consensus.Deps{
			Self:       m.ID,
			Config:     cfg,
			Membership: membership,
			Signer:     signer,
			Store:      store,
			TxPool:     pool,
			Synchrony:  detector,
			Health:     monitor,
			Logger:     logx.NoOp(),
		})
		core.SetMessenger(hub.NewLoopback(m.ID, core))
		cores = append(cores, core)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dur)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	for _, core := range cores {
		core.Start()
		go func(c *consensus.Core) { _ = c.Run(ctx) }(core)
	}

	<-ctx.Done()
	fmt.Printf("devnet stopped after %s\n", dur)
	return nil
}
