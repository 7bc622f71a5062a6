package balancer

import (
	"slices"

	"go.uber.org/zap"

	"github.com/virtstack/vmfs-balancer/internal/inventory"
)

// balanceDatastores flattens datastore usage into the configured corridor.
// The move target is picked by pool-weighted usage so a datastore that looks
// empty at the vCenter but sits on a strained aggregate is avoided, and the
// per-iteration size cap shrinks as source and target converge so the pass
// cannot oscillate past equilibrium.
func (b *Balancer) balanceDatastores(snap *snapshot) *Result {
	log := zap.S().Named("balancer")
	res := &Result{Pass: PassDatastore}

	weights := inventory.PoolWeights(snap.controllers, snap.datastores)

	// the most used aggregate must not gain volumes in this pass either
	maxPool, _ := snap.controllers.MostUsedPool()
	if maxPool != nil {
		res.PoolsConsidered = len(snap.controllers.Pools())
	}

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

	denylist := slices.Clone(b.config.DSDenyList)
	if maxPool != nil {
		for _, lun := range maxPool.LUNs {
			denylist = append(denylist, lun.Name)
		}
	}
	snap.datastores.FilterRelocatable(string(b.config.StorageMedium), denylist)

	minUsage, maxUsage := b.config.MinUsage, b.config.MaxUsage
	if b.config.Autopilot {
		minUsage = fleetAvg - b.config.AutopilotRange
		maxUsage = fleetAvg + b.config.AutopilotRange
	}

	for {
		if len(res.Moves) > b.config.MaxMoveVMs {
			log.Info("max number of vms to move reached, stopping ds balancing now")
			res.Reason = ExitMoveCap
			break
		}
		if len(snap.datastores.Elements) < 2 {
			log.Info("fewer than two eligible datastores, stopping ds balancing now")
			res.Reason = ExitNoDatastores
			break
		}

		mostUsed := snap.datastores.Elements[0]
		snap.datastores.SortByUsage(weights)
		leastUsed := snap.datastores.Elements[len(snap.datastores.Elements)-1]

		if mostUsed.IsBelowUsage(maxUsage) {
			log.Infof("most used ds %s with usage %.1f%% is below the max usage limit of %.1f%%, nothing left to be done",
				mostUsed.Name, mostUsed.Usage(), maxUsage)
			res.Reason = ExitWithinCorridor
			break
		}
		if leastUsed.IsAboveUsage(minUsage) {
			log.Infof("least used ds %s with usage %.1f%% is above the min usage limit of %.1f%%, nothing can be done",
				leastUsed.Name, leastUsed.Usage(), minUsage)
			res.Reason = ExitWithinCorridor
			break
		}
		if leastUsed.IsBelowFreeGiB(b.config.MinFreeSpaceGiB) {
			log.Infof("least used ds %s with free space %.0fG is below the min free space of %dG, nothing can be done",
				leastUsed.Name, float64(leastUsed.Free)/float64(gib), b.config.MinFreeSpaceGiB)
			res.Reason = ExitLowTargetSpace
			break
		}

		// move smaller volumes once most and least used converge to avoid
		// oscillation around the equilibrium
		dampedMax := min((leastUsed.Free-mostUsed.Free)/2, b.config.FlexvolVolumeMaxSizeGiB*gib)
		candidates := eligibleShadowVMs(snap.vms.ShadowVMs(mostUsed.VMRefs),
			b.config.FlexvolVolumeMinSizeGiB*gib, dampedMax)
		if len(candidates) == 0 {
			log.Warnf("no more shadow vms to move on most used ds %s", mostUsed.Name)
			res.Reason = ExitNoCandidates
			break
		}

		inventory.SortVMsByTotalDiskSize(candidates)
		res.Moves = append(res.Moves, b.moveShadowVM(mostUsed, leastUsed, candidates[0]))

		snap.datastores.SortByUsage(nil)
	}

	return res
}
