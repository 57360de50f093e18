package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "relay_settings_count",
			Help: "Configured protection relays",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM protection_relays")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "breaker_settings_count",
			Help: "Configured circuit breakers",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM circuit_breakers")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "sensor_settings_count",
			Help: "Configured current transformers",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM current_transformers")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
