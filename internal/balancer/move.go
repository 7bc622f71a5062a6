package balancer

import (
	"go.uber.org/zap"

	"github.com/virtstack/vmfs-balancer/internal/inventory"
)

// migrationCommand is the external mechanism that performs the actual
// relocation. The balancer only emits the invocation; it never waits for or
// verifies the move, the next cycle re-evaluates from fresh inventory.
const migrationCommand = "svmotion_cinder_v2.py"

// MoveRecord is the decision record emitted per proposed move.
type MoveRecord struct {
	VM                string  `json:"vm"`
	Source            string  `json:"source"`
	Target            string  `json:"target"`
	SourceUsageBefore float64 `json:"source_usage_before"`
	SourceUsageAfter  float64 `json:"source_usage_after"`
	TargetUsageBefore float64 `json:"target_usage_before"`
	TargetUsageAfter  float64 `json:"target_usage_after"`
	SizeBytes         int64   `json:"size_bytes"`
}

// moveShadowVM books the vm from source to target in the in-memory model so
// the balancing loop can re-evaluate without re-querying, and emits the
// decision. In dry-run mode the migration command line is suppressed.
func (b *Balancer) moveShadowVM(source, target *inventory.Datastore, vm *inventory.VM) MoveRecord {
	log := zap.S().Named("balancer")

	rec := MoveRecord{
		VM:                vm.Name,
		Source:            source.Name,
		Target:            target.Name,
		SourceUsageBefore: source.Usage(),
		TargetUsageBefore: target.Usage(),
		SizeBytes:         vm.TotalDiskSize(),
	}
	source.RemoveShadowVM(vm)
	target.AddShadowVM(vm)
	rec.SourceUsageAfter = source.Usage()
	rec.TargetUsageAfter = target.Usage()

	log.Infof("move vm %s (%.0fG) from ds %s to ds %s",
		vm.Name, float64(rec.SizeBytes)/float64(gib), source.Name, target.Name)
	log.Infof("source ds: %.1f%% -> %.1f%% target ds: %.1f%% -> %.1f%%",
		rec.SourceUsageBefore, rec.SourceUsageAfter, rec.TargetUsageBefore, rec.TargetUsageAfter)
	if !b.config.DryRun {
		log.Infof("cmnd: %s %s %s", migrationCommand, vm.Name, target.Name)
	}

	return rec
}
