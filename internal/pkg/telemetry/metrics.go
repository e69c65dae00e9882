package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricQuotesServed        = "business.quotes_served"
	MetricTripsConfirmed      = "business.trips_confirmed"
	MetricOpportunitiesSold   = "business.opportunities_reserved"
	MetricRecoveredRevenueCLP = "business.recovered_revenue_clp"
)
