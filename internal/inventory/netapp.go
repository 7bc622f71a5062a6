package inventory

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/virtstack/vmfs-balancer/internal/netapp"
)

// VolumeKind distinguishes the two backing schemes for cinder volumes on the
// storage side. Only vmfs volumes correlate to datastores by name and take
// part in balancing; vvol volumes are carried for diagnostics.
type VolumeKind string

const (
	KindVVol VolumeKind = "vvol"
	KindVMFS VolumeKind = "vmfs"
)

// LUN is a block device exposed by a flexvol. For vmfs luns the name,
// extracted from the path, equals the name of the datastore it backs.
type LUN struct {
	Name    string
	Host    string
	FlexVol string
	Path    string
	Comment string
	Used    int64
	Kind    VolumeKind
}

// FlexVolume is a logical volume inside a storage pool.
type FlexVolume struct {
	Name     string
	Host     string
	Pool     string
	Capacity int64
	Used     int64
	Kind     VolumeKind
	LUNs     []*LUN
}

func (f *FlexVolume) Usage() float64 {
	if f.Capacity == 0 {
		return 0
	}
	return float64(f.Used) / float64(f.Capacity) * 100
}

// StoragePool is a physical capacity pool (aggregate) on a storage
// controller. Usage is the controller-reported value and is authoritative;
// simulated moves never touch it. The pool is read-only within a cycle.
type StoragePool struct {
	Name     string
	Host     string
	Capacity int64
	Usage    float64
	FlexVols []*FlexVolume
	LUNs     []*LUN
}

// Controller is the typed view of one storage controller's aggregate/flexvol/
// lun hierarchy, joined by name equality.
type Controller struct {
	Host     string
	Pools    []*StoragePool
	FlexVols []*FlexVolume
	LUNs     []*LUN
}

// NewController builds the controller view from the raw query results. Luns
// following neither path convention and volumes of neither known kind are
// skipped. Root aggregates never hold payload and are dropped.
func NewController(host string, aggrs []netapp.AggrUsage, vols []netapp.VolumeUsage, luns []netapp.Lun) *Controller {
	log := zap.S().Named("inventory")
	c := &Controller{Host: host}

	for _, lun := range luns {
		name, kind, ok := ParseLunPath(lun.Path)
		if !ok {
			log.Debugf("lun path %q follows no known convention", lun.Path)
			continue
		}
		log.Debugf("lun %s on flexvol %s of size %.0f gb", name, lun.Volume, float64(lun.SizeUsed)/float64(gib))
		c.LUNs = append(c.LUNs, &LUN{
			Name:    name,
			Host:    host,
			FlexVol: lun.Volume,
			Path:    lun.Path,
			Comment: lun.Comment,
			Used:    lun.SizeUsed,
			Kind:    kind,
		})
	}

	for _, vol := range vols {
		var kind VolumeKind
		switch {
		case strings.HasPrefix(strings.ToLower(vol.Name), "vmfs"):
			kind = KindVMFS
		case strings.HasPrefix(strings.ToLower(vol.Name), "vv"):
			kind = KindVVol
		default:
			continue
		}
		fvol := &FlexVolume{
			Name:     vol.Name,
			Host:     host,
			Pool:     vol.Aggregate,
			Capacity: vol.SizeTotal,
			Used:     vol.SizeUsed,
			Kind:     kind,
		}
		for _, lun := range c.LUNs {
			if lun.FlexVol == fvol.Name {
				fvol.LUNs = append(fvol.LUNs, lun)
			}
		}
		log.Debugf("flexvol %s on %s uses %.0f gb of %.0f gb",
			fvol.Name, fvol.Pool, float64(fvol.Used)/float64(gib), float64(fvol.Capacity)/float64(gib))
		c.FlexVols = append(c.FlexVols, fvol)
	}

	for _, aggr := range aggrs {
		if aggr.RootAggregate {
			continue
		}
		pool := &StoragePool{
			Name:     aggr.Name,
			Host:     host,
			Capacity: aggr.SizeTotal,
			Usage:    float64(aggr.PercentUsed),
		}
		for _, fvol := range c.FlexVols {
			if fvol.Pool == pool.Name {
				pool.FlexVols = append(pool.FlexVols, fvol)
				pool.LUNs = append(pool.LUNs, fvol.LUNs...)
			}
		}
		log.Debugf("aggregate %s of size %.0f gb is at %.0f%% utilization",
			pool.Name, float64(pool.Capacity)/float64(gib), pool.Usage)
		c.Pools = append(c.Pools, pool)
	}

	return c
}

// Controllers holds all storage controllers reachable from the current
// vCenter inventory.
type Controllers struct {
	Elements []*Controller
}

// Pools returns all aggregates across all controllers.
func (c *Controllers) Pools() []*StoragePool {
	var pools []*StoragePool
	for _, ctrl := range c.Elements {
		pools = append(pools, ctrl.Pools...)
	}
	return pools
}

// MostUsedPool returns the most utilized aggregate and the capacity-weighted
// average usage over all aggregates, or nil if no controller reported any.
func (c *Controllers) MostUsedPool() (*StoragePool, float64) {
	pools := c.Pools()
	if len(pools) == 0 {
		return nil, 0
	}

	var totalCapacity, totalUsed float64
	for _, pool := range pools {
		totalCapacity += float64(pool.Capacity)
		totalUsed += pool.Usage / 100 * float64(pool.Capacity)
	}
	sort.SliceStable(pools, func(i, j int) bool { return pools[i].Usage < pools[j].Usage })

	minPool := pools[0]
	maxPool := pools[len(pools)-1]
	avgUsage := totalUsed / totalCapacity * 100

	log := zap.S().Named("inventory")
	log.Infof("min aggr usage is %.1f%% on %s", minPool.Usage, minPool.Name)
	log.Infof("max aggr usage is %.1f%% on %s", maxPool.Usage, maxPool.Name)
	log.Infof("avg aggr usage is %.1f%% weighted across all aggr", avgUsage)

	return maxPool, avgUsage
}
