package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"net/http"

	"github.com/NillionNetwork/nilvm-sub002/core/exec"
	"github.com/NillionNetwork/nilvm-sub002/core/node/config"
	"github.com/NillionNetwork/nilvm-sub002/core/node/transport"
	"github.com/NillionNetwork/nilvm-sub002/core/preprocessing"
)

func main() {
	root := &cobra.Command{Use: "nilvm-node"}
	root.AddCommand(runCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "start a cluster node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay to merge on top of config/default.yaml")
	return cmd
}

func run(env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	entry := log.WithField("party_id", cfg.Node.PartyID)
	entry.Info("starting node")

	registry := prometheus.NewRegistry()
	_ = exec.NewMetrics(registry)

	store := preprocessing.NewMemoryStore()
	offsets := preprocessing.NewOffsets()
	_ = store
	_ = offsets

	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		entry.WithField("addr", cfg.Metrics.ListenAddr).Info("serving metrics")
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
				entry.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ids := []transport.PartyID{transport.PartyID(cfg.Node.PartyID)}
	for _, peer := range cfg.Cluster.Peers {
		ids = append(ids, transport.PartyID(peer.PartyID))
	}
	cluster := transport.InProcessCluster(ids, 64)
	self := cluster[transport.PartyID(cfg.Node.PartyID)]

	entry.WithField("listen", cfg.Node.Listen).Info("node ready")
	transport.Run(ctx, self, entry, func(pkt transport.Packet) {
		entry.WithFields(logrus.Fields{
			"from":        pkt.From,
			"computation": pkt.Computation,
			"step":        pkt.Step,
		}).Debug("received packet")
		// A running VM's Router.Deliver(StepKey{pkt.Computation, pkt.Step}, pkt.From, pkt.Payload)
		// would be wired in here once a computation is bootstrapped; this
		// node has none loaded yet, so inbound packets are only logged.
	})
	return nil
}
