// Package health derives a reliability score for a provider from its
// request counters. Scoring is a pure function; nothing here holds
// state or performs I/O.
package health

import (
	"fmt"

	"github.com/florasync/florasync/internal/provider"
)

// Status buckets for a health score
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Score is a derived, non-persisted health summary for one provider
type Score struct {
	Score  int      `json:"score"`
	Status string   `json:"status"`
	Issues []string `json:"issues"`
}

// Compute derives a 0-100 score from request counters. Starting from
// 100, weighted penalties are deducted for low success rate, high retry
// and transient-error rates, rate limiting, and circuit breaker trips.
func Compute(stats provider.RequestStats) Score {
	if stats.TotalRequests == 0 {
		return Score{
			Score:  100,
			Status: StatusHealthy,
			Issues: []string{"no requests recorded yet"},
		}
	}

	total := float64(stats.TotalRequests)
	successRate := stats.SuccessRate()
	retryRate := float64(stats.TotalRetries) / total
	timeoutRate := float64(stats.TimeoutErrors) / total
	networkRate := float64(stats.NetworkErrors) / total

	score := 100
	var issues []string

	if successRate < 0.90 {
		score -= 20
		issues = append(issues, fmt.Sprintf("success rate below 90%% (%.1f%%)", successRate*100))
	}
	if successRate <= 0.70 {
		score -= 20
		issues = append(issues, fmt.Sprintf("success rate at or below 70%% (%.1f%%)", successRate*100))
	}
	if retryRate > 0.30 {
		score -= 15
		issues = append(issues, fmt.Sprintf("retry rate above 30%% (%.1f%%)", retryRate*100))
	}
	if timeoutRate > 0.10 {
		score -= 15
		issues = append(issues, fmt.Sprintf("timeout rate above 10%% (%.1f%%)", timeoutRate*100))
	}
	if networkRate > 0.05 {
		score -= 15
		issues = append(issues, fmt.Sprintf("network error rate above 5%% (%.1f%%)", networkRate*100))
	}
	if stats.RateLimitErrors > 0 {
		score -= 10
		issues = append(issues, fmt.Sprintf("rate limit errors present (%d)", stats.RateLimitErrors))
	}
	if stats.CircuitBreakerTrips > 0 {
		score -= 20
		issues = append(issues, fmt.Sprintf("circuit breaker tripped (%d)", stats.CircuitBreakerTrips))
	}

	if score < 0 {
		score = 0
	}

	return Score{
		Score:  score,
		Status: statusFor(score),
		Issues: issues,
	}
}

func statusFor(score int) string {
	switch {
	case score >= 80:
		return StatusHealthy
	case score >= 50:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}
