package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "site", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "site", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	ConfigEmissions = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "site", Name: "config_emissions_total", Help: "Remote websiteConfig emissions ingested."},
	)
	ConfigSectionFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "site", Name: "config_section_fallbacks_total", Help: "Remote sections that failed to decode and kept their prior value."},
		[]string{"section"},
	)
	ConfigWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "site", Name: "config_writes_total", Help: "Whole-document writes by result."},
		[]string{"result"},
	)
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "site", Name: "submissions_total", Help: "Public form submissions by kind and result."},
		[]string{"kind", "result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(ConfigEmissions)
	reg.MustRegister(ConfigSectionFallbacks)
	reg.MustRegister(ConfigWrites)
	reg.MustRegister(Submissions)
}
