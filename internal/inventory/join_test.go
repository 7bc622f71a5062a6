package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolWeights(t *testing.T) {
	onHot := testDatastore("vmfs_vc_a_0_p_ssd_bb001_001", 1000*gib, 600*gib)  // 40% used
	onCold := testDatastore("vmfs_vc_a_0_p_ssd_bb002_001", 1000*gib, 500*gib) // 50% used
	unused := testDatastore("vmfs_vc_a_0_p_ssd_bb002_002", 1000*gib, 1000*gib)
	datastores := &Datastores{Elements: []*Datastore{onHot, onCold, unused}}

	controllers := &Controllers{Elements: []*Controller{{
		Host: "stnpca1-bb001.cc.eu-de-1.cloud.sap",
		Pools: []*StoragePool{
			{Name: "aggr_hot", Usage: 80, LUNs: []*LUN{
				{Name: onHot.Name, Kind: KindVMFS},
				{Name: "naa.600a098038304437", Kind: KindVVol},
			}},
			{Name: "aggr_cold", Usage: 25, LUNs: []*LUN{
				{Name: onCold.Name, Kind: KindVMFS},
				{Name: unused.Name, Kind: KindVMFS},
				{Name: "vmfs_vc_gone_ssd_bb003_001", Kind: KindVMFS},
			}},
		},
	}}}

	weights := PoolWeights(controllers, datastores)

	// only vmfs luns with a matching, non-empty datastore produce a weight
	require.Len(t, weights, 2)

	// a datastore on a strained pool weighs heavier than its own usage
	assert.InDelta(t, 2.0, weights[onHot.Name], 0.001)
	// and one on a relaxed pool weighs lighter
	assert.InDelta(t, 0.5, weights[onCold.Name], 0.001)

	_, ok := weights[unused.Name]
	assert.False(t, ok)
}
