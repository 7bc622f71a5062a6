package inventory

import (
	"go.uber.org/zap"
)

// PoolWeights correlates aggregates with the datastores backed by their vmfs
// luns and derives a multiplicative weight per datastore:
//
//	weight = aggregate usage% / datastore usage%
//
// A datastore on a strained aggregate gets a weight above 1 and sorts as
// "fuller" than its own numbers suggest, which keeps the balancers from
// steering volumes onto pools that are already saturated. Luns without a
// matching datastore are a naming-convention miss and only reported at debug
// level; they never fail the pass.
func PoolWeights(controllers *Controllers, datastores *Datastores) map[string]float64 {
	log := zap.S().Named("join")
	weight := map[string]float64{}

	for _, controller := range controllers.Elements {
		log.Infof("netapp host: %s", controller.Host)
		for _, pool := range controller.Pools {
			log.Infof("aggregate %s usage: %.2f%%", pool.Name, pool.Usage)
			var dsCapacity, dsUsed int64
			for _, lun := range pool.LUNs {
				if lun.Kind != KindVMFS {
					continue
				}
				ds := datastores.ByName(lun.Name)
				if ds == nil {
					log.Debugf("lun %s on aggregate %s matches no datastore", lun.Name, pool.Name)
					continue
				}
				if ds.Used() == 0 {
					log.Debugf("datastore %s reports zero usage, no weight derived", ds.Name)
					continue
				}
				dsCapacity += ds.Capacity
				dsUsed += ds.Used()
				weight[lun.Name] = pool.Usage / (float64(ds.Used()) / float64(ds.Capacity) * 100)
			}
			if dsCapacity > 0 {
				log.Infof("aggregate %s datastore usage: %.2f%%", pool.Name, float64(dsUsed)/float64(dsCapacity)*100)
			}
		}
	}

	return weight
}
