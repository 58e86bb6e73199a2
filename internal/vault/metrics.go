package vault

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authvault_vault_operations_total",
		Help: "Total number of vault operations by result.",
	}, []string{"op", "result"})

	accountsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "authvault_accounts",
		Help: "Number of accounts in the last loaded or saved vault.",
	})
)

func init() {
	prometheus.MustRegister(operationsTotal, accountsTotal)
}

func observe(op string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	operationsTotal.WithLabelValues(op, result).Inc()
}
