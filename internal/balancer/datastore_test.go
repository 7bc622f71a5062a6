package balancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtstack/vmfs-balancer/internal/inventory"
)

func TestBalanceDatastoresFlattensUsage(t *testing.T) {
	vm := testShadowVM("volume-a", 50)
	hot := testDatastore("vmfs_vc_a_0_p_ssd_bb001_001", 1000, 100, vm) // 90%
	mid := testDatastore("vmfs_vc_a_0_p_ssd_bb001_002", 1000, 500)    // 50%
	cold := testDatastore("vmfs_vc_a_0_p_ssd_bb001_003", 1000, 600)   // 40%

	snap := &snapshot{
		vms:         inventory.NewVMCollection(vm),
		datastores:  &inventory.Datastores{Elements: []*inventory.Datastore{hot, mid, cold}},
		controllers: &inventory.Controllers{},
	}

	res := New(testConfig()).balanceDatastores(snap)

	// the one shadow vm moves from the most to the least used datastore,
	// then the source runs out of candidates
	assert.Equal(t, ExitNoCandidates, res.Reason)
	require.Len(t, res.Moves, 1)
	assert.Equal(t, 3, res.DatastoresConsidered)

	move := res.Moves[0]
	assert.Equal(t, "volume-a", move.VM)
	assert.Equal(t, hot.Name, move.Source)
	assert.Equal(t, cold.Name, move.Target)
	assert.Equal(t, 50*gib, move.SizeBytes)
	assert.InDelta(t, 90.0, move.SourceUsageBefore, 0.001)
	assert.InDelta(t, 85.0, move.SourceUsageAfter, 0.001)
	assert.InDelta(t, 40.0, move.TargetUsageBefore, 0.001)
	assert.InDelta(t, 45.0, move.TargetUsageAfter, 0.001)

	assert.Equal(t, 150*gib, hot.Free)
	assert.Equal(t, 550*gib, cold.Free)
	assert.Equal(t, 500*gib, mid.Free)
}

func TestBalanceDatastoresWithinCorridor(t *testing.T) {
	vm := testShadowVM("volume-a", 50)
	hot := testDatastore("vmfs_vc_a_0_p_ssd_bb001_001", 1000, 450, vm) // 55%
	mid := testDatastore("vmfs_vc_a_0_p_ssd_bb001_002", 1000, 500)     // 50%
	cold := testDatastore("vmfs_vc_a_0_p_ssd_bb001_003", 1000, 550)    // 45%

	snap := &snapshot{
		vms:         inventory.NewVMCollection(vm),
		datastores:  &inventory.Datastores{Elements: []*inventory.Datastore{hot, mid, cold}},
		controllers: &inventory.Controllers{},
	}

	cfg := testConfig()
	cfg.MinUsage = 40
	cfg.MaxUsage = 60
	res := New(cfg).balanceDatastores(snap)

	assert.Equal(t, ExitWithinCorridor, res.Reason)
	assert.Empty(t, res.Moves)
	assert.Equal(t, 450*gib, hot.Free)
	assert.Equal(t, 550*gib, cold.Free)
}

func TestBalanceDatastoresDampsMoveSizes(t *testing.T) {
	vms := []*inventory.VM{
		testShadowVM("volume-xl", 400),
		testShadowVM("volume-l", 250),
		testShadowVM("volume-s", 50),
	}
	hot := testDatastore("vmfs_vc_a_0_p_ssd_bb001_001", 1000, 200, vms...) // 80%
	cold := testDatastore("vmfs_vc_a_0_p_ssd_bb001_002", 1000, 800)        // 20%

	snap := &snapshot{
		vms:         inventory.NewVMCollection(vms...),
		datastores:  &inventory.Datastores{Elements: []*inventory.Datastore{hot, cold}},
		controllers: &inventory.Controllers{},
	}

	cfg := testConfig()
	cfg.MinUsage = 46
	cfg.MaxUsage = 50
	cfg.MinFreeSpaceGiB = 0
	res := New(cfg).balanceDatastores(snap)

	// half the free space gap caps the first move at 300G, which excludes the
	// 400G volume; the cap then shrinks to 50G as the pair converges
	assert.Equal(t, ExitWithinCorridor, res.Reason)
	require.Len(t, res.Moves, 2)
	assert.Equal(t, "volume-l", res.Moves[0].VM)
	assert.Equal(t, "volume-s", res.Moves[1].VM)
	assert.Greater(t, res.Moves[0].SizeBytes, res.Moves[1].SizeBytes)

	// both converge on 50% and the 400G volume stays put
	assert.Equal(t, 500*gib, hot.Free)
	assert.Equal(t, 500*gib, cold.Free)
	assert.Equal(t, 1000*gib, hot.Free+cold.Free)
}

func TestBalanceDatastoresRespectsFreeSpaceFloor(t *testing.T) {
	vm := testShadowVM("volume-a", 50)
	hot := testDatastore("vmfs_vc_a_0_p_ssd_bb001_001", 1000, 100, vm) // 90%
	cold := testDatastore("vmfs_vc_a_0_p_ssd_bb001_002", 1000, 600)    // 40%

	snap := &snapshot{
		vms:         inventory.NewVMCollection(vm),
		datastores:  &inventory.Datastores{Elements: []*inventory.Datastore{hot, cold}},
		controllers: &inventory.Controllers{},
	}

	cfg := testConfig()
	cfg.MinFreeSpaceGiB = 700
	res := New(cfg).balanceDatastores(snap)

	assert.Equal(t, ExitLowTargetSpace, res.Reason)
	assert.Empty(t, res.Moves)
}

func TestBalanceDatastoresWithSingleDatastore(t *testing.T) {
	hot := testDatastore("vmfs_vc_a_0_p_ssd_bb001_001", 1000, 100)

	snap := &snapshot{
		vms:         inventory.NewVMCollection(),
		datastores:  &inventory.Datastores{Elements: []*inventory.Datastore{hot}},
		controllers: &inventory.Controllers{},
	}

	res := New(testConfig()).balanceDatastores(snap)

	assert.Equal(t, ExitNoDatastores, res.Reason)
	assert.Empty(t, res.Moves)
}

func TestBalanceDatastoresAvoidsMostUsedAggregate(t *testing.T) {
	vm := testShadowVM("volume-a", 50)
	hot := testDatastore("vmfs_vc_a_0_p_ssd_bb001_001", 1000, 100, vm)  // 90%
	onHotPool := testDatastore("vmfs_vc_a_0_p_ssd_bb002_001", 1000, 900) // 10%
	cold := testDatastore("vmfs_vc_a_0_p_ssd_bb001_002", 1000, 600)      // 40%

	snap := &snapshot{
		vms:        inventory.NewVMCollection(vm),
		datastores: &inventory.Datastores{Elements: []*inventory.Datastore{hot, onHotPool, cold}},
		controllers: &inventory.Controllers{Elements: []*inventory.Controller{{
			Host: "stnpca1-bb002.cc.eu-de-1.cloud.sap",
			Pools: []*inventory.StoragePool{
				{Name: "aggr_hot", Capacity: 1000 * gib, Usage: 95,
					LUNs: vmfsLUNs(onHotPool.Name)},
			},
		}}},
	}

	res := New(testConfig()).balanceDatastores(snap)

	// the emptiest datastore sits on the most used aggregate and must not
	// gain volumes, so the move lands on the runner-up
	require.Len(t, res.Moves, 1)
	assert.Equal(t, cold.Name, res.Moves[0].Target)
	assert.Equal(t, 900*gib, onHotPool.Free)
}
