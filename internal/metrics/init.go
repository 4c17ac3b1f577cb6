package metrics

// InitializeMetrics pre-populates expected label combinations so every
// metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, op := range []string{"resolve", "stream", "download"} {
		FetchDuration.WithLabelValues(op)
		FetchTotal.WithLabelValues(op, "success")
		FetchTotal.WithLabelValues(op, "error")
	}

	for _, status := range []string{"success", "error"} {
		TranscodesTotal.WithLabelValues(status)
	}

	for _, outcome := range []string{"completed", "failed", "aborted"} {
		SessionsTotal.WithLabelValues(outcome)
	}
}
