package totp

import "github.com/prometheus/client_golang/prometheus"

var (
	codesGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authvault_codes_generated_total",
		Help: "Total number of one-time codes generated.",
	})

	codeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authvault_code_errors_total",
		Help: "Total number of failed code generations.",
	})
)

func init() {
	prometheus.MustRegister(codesGenerated, codeErrors)
}
