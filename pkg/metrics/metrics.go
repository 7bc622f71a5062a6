package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	vmfsBalancer = "vmfs_balancer"

	// Inventory metrics
	aggregateUsage = "aggregate_usage"
	datastoreUsage = "datastore_usage"

	// Balancing metrics
	movesProposedTotal = "moves_proposed_total"
	passExitTotal      = "pass_exit_total"

	// Labels
	aggregateLabel = "aggregate"
	datastoreLabel = "datastore"
	passLabel      = "pass"
	reasonLabel    = "reason"
)

/**
* Metrics definition
**/
var aggregateUsageMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: vmfsBalancer,
		Name:      aggregateUsage,
		Help:      "space usage per storage aggregate in percent",
	},
	[]string{aggregateLabel},
)

var datastoreUsageMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: vmfsBalancer,
		Name:      datastoreUsage,
		Help:      "space usage per datastore in percent",
	},
	[]string{datastoreLabel},
)

var movesProposedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: vmfsBalancer,
		Name:      movesProposedTotal,
		Help:      "number of shadow vm moves proposed per balancing pass type",
	},
	[]string{passLabel},
)

var passExitTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: vmfsBalancer,
		Name:      passExitTotal,
		Help:      "number of balancing pass terminations per pass type and exit reason",
	},
	[]string{passLabel, reasonLabel},
)

func SetAggregateUsageMetric(aggregate string, usage float64) {
	aggregateUsageMetric.With(prometheus.Labels{aggregateLabel: aggregate}).Set(usage)
}

func SetDatastoreUsageMetric(datastore string, usage float64) {
	datastoreUsageMetric.With(prometheus.Labels{datastoreLabel: datastore}).Set(usage)
}

func IncreaseMovesProposedTotalMetric(pass string, count int) {
	movesProposedTotalMetric.With(prometheus.Labels{passLabel: pass}).Add(float64(count))
}

func IncreasePassExitTotalMetric(pass, reason string) {
	passExitTotalMetric.With(prometheus.Labels{passLabel: pass, reasonLabel: reason}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(aggregateUsageMetric)
	prometheus.MustRegister(datastoreUsageMetric)
	prometheus.MustRegister(movesProposedTotalMetric)
	prometheus.MustRegister(passExitTotalMetric)
}
