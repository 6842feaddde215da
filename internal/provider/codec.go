package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/florasync/florasync/internal/config"
)

// Codec translates between one provider's HTTP surface and the
// normalized record types. Validation happens at this boundary: an
// unexpected payload shape is an error, never a silent nil.
type Codec interface {
	// PageURL builds the listing URL for a page
	PageURL(endpoint, apiKey string, page, size int) string

	// EnrichURL builds the single-record lookup URL for a plant name
	EnrichURL(endpoint, apiKey, name string) string

	// DecodePage decodes a listing response. An empty Items slice is a
	// valid response meaning end-of-data.
	DecodePage(data []byte) (*Page, error)

	// DecodeEnrichment decodes a lookup response. Returns (nil, nil)
	// when the provider found no match.
	DecodeEnrichment(data []byte) (*Enriched, error)
}

// NewCodec returns the codec for a configured codec name
func NewCodec(name string) (Codec, error) {
	switch name {
	case config.CodecPerenual:
		return &perenualCodec{}, nil
	case config.CodecTrefle:
		return &trefleCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown provider codec %q", name)
	}
}

// perenualCodec decodes Perenual-style payloads, which have a stable
// documented schema and can be decoded strictly.
type perenualCodec struct{}

type perenualItem struct {
	ID                int64    `json:"id"`
	CommonName        string   `json:"common_name"`
	ScientificName    []string `json:"scientific_name"`
	Family            string   `json:"family"`
	Genus             string   `json:"genus"`
	Cycle             string   `json:"cycle"`
	Type              string   `json:"type"`
	Watering          string   `json:"watering"`
	Sunlight          []string `json:"sunlight"`
	EdibleLeaf        *bool    `json:"edible_leaf"`
	EdibleFruit       *bool    `json:"edible_fruit"`
	PoisonousToHumans *int     `json:"poisonous_to_humans"`
}

type perenualEnvelope struct {
	Data *[]perenualItem `json:"data"`
}

func (*perenualCodec) PageURL(endpoint, apiKey string, page, size int) string {
	return fmt.Sprintf("%s/species-list?key=%s&page=%d&per_page=%d", endpoint, url.QueryEscape(apiKey), page, size)
}

func (*perenualCodec) EnrichURL(endpoint, apiKey, name string) string {
	return fmt.Sprintf("%s/species-list?key=%s&q=%s", endpoint, url.QueryEscape(apiKey), url.QueryEscape(name))
}

func (*perenualCodec) DecodePage(data []byte) (*Page, error) {
	items, err := decodePerenualItems(data)
	if err != nil {
		return nil, err
	}

	page := &Page{Items: make([]PlantRecord, 0, len(items))}
	for _, item := range items {
		page.Items = append(page.Items, item.toRecord())
	}
	return page, nil
}

func (*perenualCodec) DecodeEnrichment(data []byte) (*Enriched, error) {
	items, err := decodePerenualItems(data)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	item := items[0]
	return &Enriched{
		ScientificName: firstOrEmpty(item.ScientificName),
		Family:         item.Family,
		Genus:          item.Genus,
		Cycle:          item.Cycle,
		GrowthHabit:    item.Type,
		Watering:       item.Watering,
		Sunlight:       item.Sunlight,
		Edible:         item.edible(),
	}, nil
}

func decodePerenualItems(data []byte) ([]perenualItem, error) {
	var envelope perenualEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected payload shape: %w", err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("unexpected payload shape: missing data array")
	}
	return *envelope.Data, nil
}

func (i *perenualItem) toRecord() PlantRecord {
	record := PlantRecord{
		ExternalID:     strconv.FormatInt(i.ID, 10),
		CommonName:     i.CommonName,
		ScientificName: firstOrEmpty(i.ScientificName),
		Family:         i.Family,
		Genus:          i.Genus,
		Cycle:          i.Cycle,
		GrowthHabit:    i.Type,
		Edible:         i.edible(),
	}
	if i.Type != "" {
		record.Categories = []string{i.Type}
	}
	if i.PoisonousToHumans != nil {
		poisonous := *i.PoisonousToHumans != 0
		record.Poisonous = &poisonous
	}
	return record
}

// edible merges the per-part edibility flags into a single signal
func (i *perenualItem) edible() *bool {
	if i.EdibleLeaf == nil && i.EdibleFruit == nil {
		return nil
	}
	edible := (i.EdibleLeaf != nil && *i.EdibleLeaf) || (i.EdibleFruit != nil && *i.EdibleFruit)
	return &edible
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// trefleCodec decodes Trefle-style payloads. Field names and value
// types drift between endpoints (string vs numeric IDs, snake_case vs
// camelCase), so it extracts fields tolerantly with gjson instead of a
// strict struct decode. The overall envelope is still validated.
type trefleCodec struct{}

func (*trefleCodec) PageURL(endpoint, apiKey string, page, size int) string {
	return fmt.Sprintf("%s/plants?token=%s&page=%d&limit=%d", endpoint, url.QueryEscape(apiKey), page, size)
}

func (*trefleCodec) EnrichURL(endpoint, apiKey, name string) string {
	return fmt.Sprintf("%s/plants/search?token=%s&q=%s", endpoint, url.QueryEscape(apiKey), url.QueryEscape(name))
}

func (*trefleCodec) DecodePage(data []byte) (*Page, error) {
	items, err := trefleItems(data)
	if err != nil {
		return nil, err
	}

	page := &Page{Items: make([]PlantRecord, 0, len(items))}
	for _, item := range items {
		page.Items = append(page.Items, trefleRecord(item))
	}
	return page, nil
}

func (*trefleCodec) DecodeEnrichment(data []byte) (*Enriched, error) {
	items, err := trefleItems(data)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	item := items[0]
	enriched := &Enriched{
		ScientificName: trefleString(item, "scientific_name", "scientificName"),
		Family:         trefleString(item, "family_common_name", "family"),
		Genus:          trefleString(item, "genus", "genus_name"),
		Cycle:          trefleString(item, "duration", "cycle"),
		GrowthHabit:    item.Get("specifications.growth_habit").String(),
	}
	if vegetable := item.Get("vegetable"); vegetable.Exists() {
		edible := vegetable.Bool()
		enriched.Edible = &edible
	}
	return enriched, nil
}

func trefleItems(data []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("unexpected payload shape: invalid JSON")
	}

	arr := gjson.GetBytes(data, "data")
	if !arr.Exists() || !arr.IsArray() {
		return nil, fmt.Errorf("unexpected payload shape: missing data array")
	}
	return arr.Array(), nil
}

func trefleRecord(item gjson.Result) PlantRecord {
	record := PlantRecord{
		// String() renders both numeric and string IDs
		ExternalID:     item.Get("id").String(),
		CommonName:     trefleString(item, "common_name", "commonName"),
		ScientificName: trefleString(item, "scientific_name", "scientificName"),
		Family:         trefleString(item, "family_common_name", "family"),
		Genus:          trefleString(item, "genus", "genus_name"),
		Cycle:          trefleString(item, "duration", "cycle"),
		GrowthHabit:    item.Get("specifications.growth_habit").String(),
	}
	if vegetable := item.Get("vegetable"); vegetable.Exists() {
		edible := vegetable.Bool()
		record.Edible = &edible
	}
	return record
}

// trefleString returns the first present key's string value
func trefleString(item gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := item.Get(key); v.Exists() {
			return v.String()
		}
	}
	return ""
}
