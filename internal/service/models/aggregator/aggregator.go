package aggregator

import (
	"database/sql/driver"
	"errors"
	"strings"
)

// Aggregator identifies an external order sender integrated with the
// ingestion pipeline.
type Aggregator string

const (
	AggregatorBoltFood Aggregator = "boltfood"
	AggregatorWolt     Aggregator = "wolt"
	AggregatorGlovo    Aggregator = "glovo"
	AggregatorPaygate  Aggregator = "paygate"
)

var ErrUnknownAggregator = errors.New("unknown aggregator")

// aliases maps every accepted source token spelling to its aggregator.
// Bolt notifies under two spellings depending on the integration version.
var aliases = map[string]Aggregator{
	"bolt":      AggregatorBoltFood,
	"bolt-food": AggregatorBoltFood,
	"boltfood":  AggregatorBoltFood,
	"wolt":      AggregatorWolt,
	"glovo":     AggregatorGlovo,
	"paygate":   AggregatorPaygate,
}

func (a Aggregator) String() string {
	return string(a)
}

func (a Aggregator) Value() (driver.Value, error) {
	return a.String(), nil
}

// Parse resolves a source token to an aggregator. Tokens are matched
// case-insensitively and synonymous spellings resolve to the same value.
func Parse(s string) (Aggregator, error) {
	a, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", ErrUnknownAggregator
	}

	return a, nil
}

// All returns every integrated aggregator, one entry per sender.
func All() []Aggregator {
	return []Aggregator{
		AggregatorBoltFood,
		AggregatorWolt,
		AggregatorGlovo,
		AggregatorPaygate,
	}
}
