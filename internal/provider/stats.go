package provider

// RequestStats are per-provider request counters. They increase
// monotonically until an explicit admin reset and are owned exclusively
// by the provider Client instance; nothing else mutates them.
type RequestStats struct {
	TotalRequests       int64 `json:"totalRequests"`
	SuccessfulRequests  int64 `json:"successfulRequests"`
	FailedRequests      int64 `json:"failedRequests"`
	RetriedRequests     int64 `json:"retriedRequests"`
	TotalRetries        int64 `json:"totalRetries"`
	TimeoutErrors       int64 `json:"timeoutErrors"`
	NetworkErrors       int64 `json:"networkErrors"`
	RateLimitErrors     int64 `json:"rateLimitErrors"`
	CircuitBreakerTrips int64 `json:"circuitBreakerTrips"`
}

// SuccessRate returns the fraction of requests that succeeded, or 1
// when no requests have been made.
func (s RequestStats) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 1
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests)
}
