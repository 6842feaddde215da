// Package provider implements the resilient client core for a single
// upstream botanical data provider. Every outbound call goes through the
// provider's rate limiter, circuit breaker, and retry policy, and is
// recorded in that provider's RequestStats.
package provider

// PlantRecord is one normalized upstream plant entry from a paged listing
type PlantRecord struct {
	// ExternalID is the provider's stable identifier for this plant
	ExternalID string `json:"externalId"`

	CommonName     string   `json:"commonName"`
	ScientificName string   `json:"scientificName"`
	Family         string   `json:"family,omitempty"`
	Genus          string   `json:"genus,omitempty"`
	Cycle          string   `json:"cycle,omitempty"`
	GrowthHabit    string   `json:"growthHabit,omitempty"`
	Categories     []string `json:"categories,omitempty"`

	// Edible and Poisonous are tri-state: nil means the provider gave no signal
	Edible    *bool `json:"edible,omitempty"`
	Poisonous *bool `json:"poisonous,omitempty"`
}

// Page is one page of upstream listing results. An empty Items slice
// signals end-of-data.
type Page struct {
	Number int           `json:"number"`
	Items  []PlantRecord `json:"items"`
}

// Enriched is the single-record lookup result used by enrichment sync.
// Empty fields mean the provider did not supply a value; callers must
// never overwrite curated data with them.
type Enriched struct {
	ScientificName string   `json:"scientificName,omitempty"`
	Family         string   `json:"family,omitempty"`
	Genus          string   `json:"genus,omitempty"`
	Cycle          string   `json:"cycle,omitempty"`
	GrowthHabit    string   `json:"growthHabit,omitempty"`
	Watering       string   `json:"watering,omitempty"`
	Sunlight       []string `json:"sunlight,omitempty"`
	Edible         *bool    `json:"edible,omitempty"`
}
