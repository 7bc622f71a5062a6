// Package balancer implements the balancing control loop: collect a fresh
// inventory snapshot, relieve the most utilized storage aggregate, re-collect
// and flatten datastore usage, then sleep until the next cycle.
package balancer

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/virtstack/vmfs-balancer/internal/config"
	"github.com/virtstack/vmfs-balancer/internal/inventory"
	"github.com/virtstack/vmfs-balancer/pkg/metrics"
)

// This variable is set during build time.
// It contains the version of the code.
var version string

type Balancer struct {
	config *config.Config
	server *Server
}

// New creates a new balancer.
func New(cfg *config.Config) *Balancer {
	return &Balancer{config: cfg}
}

// Run starts the health/metrics endpoint and the balancing loop, then blocks
// until the process receives a termination signal.
func (b *Balancer) Run(ctx context.Context) error {
	log := zap.S().Named("balancer")
	log.Infof("starting vmfs balancer: %s", version)
	defer log.Info("vmfs balancer stopped")
	log.Infof("configuration: %s", b.config.String())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.server = NewServer(b.config.ServerPort)
	go b.server.Start()

	ticker := jitterbug.New(b.config.Interval.Duration, &jitterbug.Norm{Stdev: 30 * time.Second})
	defer ticker.Stop()

	go func() {
		b.runCycle(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			b.runCycle(ctx)
		}
	}()

	<-sig

	log.Info("stopping balancer...")
	cancel()
	b.server.Stop()

	return nil
}

// runCycle performs one full balancing cycle. Both passes operate on their
// own fresh snapshot; a failed snapshot skips the pass and the next cycle
// retries unconditionally.
func (b *Balancer) runCycle(ctx context.Context) {
	log := zap.S().Named("balancer")
	cycle := uuid.New()

	log.Infof("starting balancing cycle %s", cycle)
	if b.config.DryRun {
		log.Info("dry-run mode: only proposing moves")
	}

	log.Info("new aggregate balancing run starting")
	if snap, err := b.collect(ctx); err != nil {
		log.Warnf("skipping aggregate balancing: %v", err)
	} else {
		b.recordInventoryMetrics(snap)
		res := b.balancePools(snap)
		res.Cycle = cycle
		b.recordPassResult(res)
	}

	log.Info("new ds balancing run starting")
	if snap, err := b.collect(ctx); err != nil {
		log.Warnf("skipping ds balancing: %v", err)
	} else {
		res := b.balanceDatastores(snap)
		res.Cycle = cycle
		b.recordPassResult(res)
	}

	log.Infof("balancing cycle %s done, waiting %s before the next run", cycle, b.config.Interval.Duration)
}

// reportLargestShadowVMs logs the datastores by usage with their largest
// shadow vms. Purely operator diagnostics.
func (b *Balancer) reportLargestShadowVMs(snap *snapshot) {
	log := zap.S().Named("balancer")
	for _, ds := range snap.datastores.Elements {
		log.Infof("ds: %s - %.1f%% - %.0fG free", ds.Name, ds.Usage(), float64(ds.Free)/float64(gib))
		shadows := snap.vms.ShadowVMs(ds.VMRefs)
		inventory.SortVMsByTotalDiskSize(shadows)
		for i, vm := range shadows {
			if i >= b.config.PrintMax {
				break
			}
			log.Infof("  %s - %.0fG", vm.Name, float64(vm.TotalDiskSize())/float64(gib))
		}
	}
}

func (b *Balancer) recordInventoryMetrics(snap *snapshot) {
	for _, pool := range snap.controllers.Pools() {
		metrics.SetAggregateUsageMetric(pool.Name, pool.Usage)
	}
	for _, ds := range snap.datastores.Elements {
		metrics.SetDatastoreUsageMetric(ds.Name, ds.Usage())
	}
}

func (b *Balancer) recordPassResult(res *Result) {
	metrics.IncreaseMovesProposedTotalMetric(res.Pass, len(res.Moves))
	metrics.IncreasePassExitTotalMetric(res.Pass, string(res.Reason))
	zap.S().Named("balancer").Infof("%s balancing pass done: %d moves, %d pools and %d datastores considered, exit reason %q",
		res.Pass, len(res.Moves), res.PoolsConsidered, res.DatastoresConsidered, res.Reason)
}
