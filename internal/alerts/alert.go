// Package alerts watches provider circuit and health state and fans
// out notifications on change. Alerting is strictly observational:
// delivery failures are logged and swallowed, never propagated back
// into ingestion.
package alerts

import (
	"time"

	"github.com/google/uuid"

	"github.com/florasync/florasync/internal/provider"
	"github.com/florasync/florasync/internal/resilience"
)

// Severity of an alert
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one dispatched event, retained in the bounded history
type Alert struct {
	ID       uuid.UUID `json:"id"`
	Provider string    `json:"provider"`
	Severity Severity  `json:"severity"`

	// Event is a short machine-readable name, e.g. "circuit_opened"
	Event   string `json:"event"`
	Message string `json:"message"`

	CircuitState  resilience.CircuitState `json:"circuitState"`
	HealthScore   int                     `json:"healthScore"`
	StatsSnapshot provider.RequestStats   `json:"statsSnapshot"`

	Timestamp        time.Time `json:"timestamp"`
	ChannelsNotified []string  `json:"channelsNotified"`
}
