package balancer

import (
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/virtstack/vmfs-balancer/internal/inventory"
)

const gib = int64(1) << 30

// balancePools relieves the most utilized storage aggregate by relocating
// shadow vms away from its most used datastore. The pass only acts when the
// aggregate sits more than the autopilot range above the capacity-weighted
// fleet average, and stops once it has freed the estimated overhang.
func (b *Balancer) balancePools(snap *snapshot) *Result {
	log := zap.S().Named("balancer")
	res := &Result{Pass: PassPool}

	weights := inventory.PoolWeights(snap.controllers, snap.datastores)

	maxPool, avgPoolUsage := snap.controllers.MostUsedPool()
	if maxPool == nil {
		log.Warn("no storage controller reported any aggregate")
		res.Reason = ExitNoPools
		return res
	}
	res.PoolsConsidered = len(snap.controllers.Pools())

	// the overhang of the most used aggregate over the fleet average, i.e.
	// how much we might balance away
	sizeToFree := (maxPool.Usage - avgPoolUsage) * float64(maxPool.Capacity) / 100

	if maxPool.Usage < avgPoolUsage+b.config.AutopilotRange {
		log.Info("max usage aggr is within the autopilot range above avg aggr usage, no aggr balancing required")
		res.Reason = ExitWithinCorridor
		return res
	}
	log.Info("max usage aggr is more than the autopilot range above avg aggr usage, aggr balancing required")

	// potential sources: datastores backed by the max used aggregate on the
	// configured storage medium
	var sources []*inventory.Datastore
	for _, lun := range maxPool.LUNs {
		if lun.Kind != inventory.KindVMFS {
			continue
		}
		if !lun.MatchesMedium(string(b.config.StorageMedium)) {
			continue
		}
		ds := snap.datastores.ByName(lun.Name)
		if ds == nil {
			log.Debugf("lun %s on aggregate %s matches no datastore", lun.Name, maxPool.Name)
			continue
		}
		sources = append(sources, ds)
	}
	if len(sources) == 0 {
		log.Warnf("no balancing source datastore on most used aggregate %s", maxPool.Name)
		res.Reason = ExitNoCandidates
		return res
	}
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Usage() < sources[j].Usage() })

	// balancing the most used datastore on the most used aggregate frees the
	// most space there; it stays the source for the whole pass
	source := sources[len(sources)-1]

	snap.datastores.FilterRelocatable(string(b.config.StorageMedium), nil)
	snap.datastores.SortByUsage(nil)
	if len(snap.datastores.Elements) == 0 {
		log.Warn("no relocatable datastores in this vcenter")
		res.Reason = ExitNoDatastores
		return res
	}
	res.DatastoresConsidered = len(snap.datastores.Elements)

	fleetAvg := snap.datastores.OverallAverageUsage()
	log.Infof("average usage across all relocatable ds is %.1f%% (%.0fG free of %.0fG total)",
		fleetAvg, float64(snap.datastores.OverallFree())/float64(gib),
		float64(snap.datastores.OverallCapacity())/float64(gib))
	b.reportLargestShadowVMs(snap)

	// the most used aggregate must never be the move target, so every
	// datastore it backs joins the deny list
	denylist := slices.Clone(b.config.DSDenyList)
	for _, lun := range maxPool.LUNs {
		denylist = append(denylist, lun.Name)
	}
	snap.datastores.FilterRelocatable(string(b.config.StorageMedium), denylist)

	var movedSize int64
	for {
		if len(res.Moves) > b.config.MaxMoveVMs {
			log.Info("max number of vms to move reached, stopping aggr balancing now")
			res.Reason = ExitMoveCap
			break
		}
		if float64(movedSize) > sizeToFree {
			log.Info("enough space freed from max usage aggr, stopping aggr balancing now")
			res.Reason = ExitFreedEnough
			break
		}
		// the source may legitimately sit below the fleet average due to
		// dedup and compression skew between the two layers
		if source.Usage() < fleetAvg-4*b.config.AutopilotRange {
			log.Info("enough space freed from largest ds on max usage aggr, stopping aggr balancing now")
			res.Reason = ExitSourceDrained
			break
		}

		// weigh in the aggregate usage for the target choice to avoid
		// balancing onto datastores of already full aggregates
		snap.datastores.SortByUsage(weights)
		if len(snap.datastores.Elements) == 0 {
			log.Warn("no eligible move target datastore remains")
			res.Reason = ExitNoDatastores
			break
		}
		target := snap.datastores.Elements[len(snap.datastores.Elements)-1]
		targetFree := target.Free - b.config.MinFreeSpaceGiB*gib

		maxSize := min(targetFree, b.config.AggrVolumeMaxSizeGiB*gib)
		candidates := eligibleShadowVMs(snap.vms.ShadowVMs(source.VMRefs),
			b.config.AggrVolumeMinSizeGiB*gib, maxSize)
		if len(candidates) == 0 {
			log.Warnf("no more shadow vms to move on most used ds %s on most used aggr", source.Name)
			res.Reason = ExitNoCandidates
			break
		}

		inventory.SortVMsByTotalDiskSize(candidates)
		largest := candidates[0]
		res.Moves = append(res.Moves, b.moveShadowVM(source, target, largest))
		movedSize += largest.TotalDiskSize()

		snap.datastores.SortByUsage(nil)
	}

	return res
}

// eligibleShadowVMs returns the vms whose total disk size lies within
// [minSize, maxSize].
func eligibleShadowVMs(vms []*inventory.VM, minSize, maxSize int64) []*inventory.VM {
	var eligible []*inventory.VM
	for _, vm := range vms {
		size := vm.TotalDiskSize()
		if size >= minSize && size <= maxSize {
			eligible = append(eligible, vm)
		}
	}
	return eligible
}
