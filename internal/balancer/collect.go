package balancer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/virtstack/vmfs-balancer/internal/inventory"
	"github.com/virtstack/vmfs-balancer/internal/netapp"
	"github.com/virtstack/vmfs-balancer/internal/vsphere"
)

// snapshot is the joined inventory of one balancing pass. It is rebuilt for
// every pass and mutated only by simulated moves.
type snapshot struct {
	vms         *inventory.VMs
	datastores  *inventory.Datastores
	controllers *inventory.Controllers
}

// collect fetches a fresh inventory snapshot. A vCenter failure aborts the
// snapshot (the caller skips the pass and the next cycle retries); failures
// of individual controller queries degrade to empty results for this cycle.
func (b *Balancer) collect(ctx context.Context) (*snapshot, error) {
	log := zap.S().Named("collect")

	vc, err := vsphere.NewClient(ctx, b.config.VCenter.Host, b.config.VCenter.Username,
		b.config.VCenter.Password, b.config.VCenter.Insecure)
	if err != nil {
		return nil, err
	}
	defer vc.Logout(ctx)

	log.Info("getting vm information from the vcenter")
	vmSnapshots, err := vc.VirtualMachines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vms: %w", err)
	}

	log.Info("getting datastore information from the vcenter")
	dsSnapshots, err := vc.Datastores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch datastores: %w", err)
	}

	snap := &snapshot{
		vms:         inventory.NewVMs(vmSnapshots),
		datastores:  inventory.NewDatastores(dsSnapshots),
		controllers: &inventory.Controllers{},
	}

	dsNames := make([]string, 0, len(snap.datastores.Elements))
	for _, ds := range snap.datastores.Elements {
		dsNames = append(dsNames, ds.Name)
	}

	for _, host := range inventory.ControllerHosts(dsNames, b.config.Region) {
		snap.controllers.Elements = append(snap.controllers.Elements, b.collectController(ctx, host))
	}

	return snap, nil
}

// collectController queries one storage controller. Each property group
// fails soft: a failed query yields an empty result for this cycle on the
// assumption that the condition is transient.
func (b *Balancer) collectController(ctx context.Context, host string) *inventory.Controller {
	log := zap.S().Named("collect")
	log.Infof("connecting to netapp %s", host)

	client := netapp.NewClient(host, b.config.Netapp.Username, b.config.Netapp.Password)

	if version, err := client.SystemVersion(ctx); err != nil {
		log.Warnf("failed to get version of %s: %v", host, err)
	} else {
		log.Infof("%s is on version %s", host, version)
	}

	aggrs, err := client.AggregateUsage(ctx)
	if err != nil {
		log.Warnf("failed to fetch aggregates from %s: %v", host, err)
	}
	vols, err := client.VolumeUsage(ctx)
	if err != nil {
		log.Warnf("failed to fetch volumes from %s: %v", host, err)
	}
	luns, err := client.Luns(ctx)
	if err != nil {
		log.Warnf("failed to fetch luns from %s: %v", host, err)
	}

	return inventory.NewController(host, aggrs, vols, luns)
}
