package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "plantmeter_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRuns     *prometheus.CounterVec
	ingestUpserts  prometheus.Counter
	ingestRejected *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	productionQueries *prometheus.CounterVec
	productionLatency *prometheus.HistogramVec

	dbConnections prometheus.GaugeFunc
)

// Init registers the service metrics and a DB connection gauge.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_runs_total",
				Help: "Per-meter ingestion runs by result",
			},
			[]string{"result"},
		)
		ingestUpserts = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_upserts_total",
				Help: "Hourly readings upserted into the curve store",
			},
		)
		ingestRejected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_rejected_rows_total",
				Help: "Raw rows rejected during ingestion by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Per-meter ingestion latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		productionQueries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "production_queries_total",
				Help: "Aggregated production queries by result",
			},
			[]string{"result"},
		)
		productionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "production_query_latency_seconds",
				Help:    "Aggregated production query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		collectors := []prometheus.Collector{
			ingestRuns, ingestUpserts, ingestRejected, ingestLatency,
			productionQueries, productionLatency,
		}
		if db != nil {
			dbConnections = prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: metricPrefix + "db_connections_open",
					Help: "Open connections in the curve store pool",
				},
				func() float64 { return float64(db.Stats().OpenConnections) },
			)
			collectors = append(collectors, dbConnections)
		}
		for _, collector := range collectors {
			if err := prometheus.Register(collector); err != nil {
				if logger != nil {
					logger.Printf("metrics register error: %v", err)
				}
			}
		}
	})
}

// ObserveIngest records one per-meter ingestion run.
func ObserveIngest(upserted, malformed, unresolved int, failed bool, elapsed time.Duration) {
	if ingestRuns == nil {
		return
	}
	result := resultSuccess
	if failed {
		result = resultError
	}
	ingestRuns.WithLabelValues(result).Inc()
	ingestLatency.WithLabelValues(result).Observe(elapsed.Seconds())
	ingestUpserts.Add(float64(upserted))
	if malformed > 0 {
		ingestRejected.WithLabelValues("malformed").Add(float64(malformed))
	}
	if unresolved > 0 {
		ingestRejected.WithLabelValues("unresolved").Add(float64(unresolved))
	}
}

// ObserveProductionQuery records one aggregated production query.
func ObserveProductionQuery(failed bool, elapsed time.Duration) {
	if productionQueries == nil {
		return
	}
	result := resultSuccess
	if failed {
		result = resultError
	}
	productionQueries.WithLabelValues(result).Inc()
	productionLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}
