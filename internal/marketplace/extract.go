package marketplace

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedSaleLog means a program's sale log line was present but could
// not be parsed. Falling back to balance math here would reintroduce the
// unreliable figures the extractor exists to override.
var ErrMalformedSaleLog = errors.New("marketplace: malformed sale log")

// SaleDetails is what a marketplace program reports about a sale through its
// own transaction logs, when it reports anything at all.
type SaleDetails struct {
	TotalPriceLamports  int64
	RoyaltyPaidLamports int64
}

// Extractor pulls sale details out of the log messages a specific
// marketplace program emits. Programs that log nothing usable have no
// extractor registered.
type Extractor interface {
	// ExtractSaleDetails returns the details logged by the program, nil
	// when the logs carry none, or ErrMalformedSaleLog when a sale log is
	// present but unparseable.
	ExtractSaleDetails(logs []string) (*SaleDetails, error)
}

// ExtractorRegistry maps marketplace program IDs to their log extractors.
type ExtractorRegistry struct {
	extractors map[string]Extractor // programID -> extractor
}

// NewExtractorRegistry creates a registry with default extractors registered.
func NewExtractorRegistry() *ExtractorRegistry {
	r := &ExtractorRegistry{
		extractors: make(map[string]Extractor),
	}

	// Register default extractors
	r.Register(MagicEdenV2, NewMagicEdenExtractor())

	return r
}

// Register registers an extractor for a specific program ID.
func (r *ExtractorRegistry) Register(programID string, e Extractor) {
	r.extractors[programID] = e
}

// Extract runs the extractor registered for programID over the logs.
// Returns nil details when no extractor is registered or the logs carry
// no sale details.
func (r *ExtractorRegistry) Extract(programID string, logs []string) (*SaleDetails, error) {
	e, ok := r.extractors[programID]
	if !ok {
		return nil, nil
	}
	return e.ExtractSaleDetails(logs)
}

// MagicEdenExtractor parses Magic Eden v2 logs. The program logs a JSON
// blob with the authoritative price and royalty amounts, which is more
// reliable than what aggregator APIs report for this marketplace.
type MagicEdenExtractor struct {
	jsonPattern *regexp.Regexp
}

// NewMagicEdenExtractor creates a new Magic Eden extractor.
func NewMagicEdenExtractor() *MagicEdenExtractor {
	return &MagicEdenExtractor{
		jsonPattern: regexp.MustCompile(`\{.*"total_price".*\}`),
	}
}

type magicEdenLog struct {
	TotalPrice  int64 `json:"total_price"`
	RoyaltyPaid int64 `json:"royalty_paid"`
}

// ExtractSaleDetails scans the logs for the Magic Eden sale JSON. A line
// mentioning total_price commits the transaction to the logged figures; if
// that line cannot be parsed the whole extraction fails.
func (e *MagicEdenExtractor) ExtractSaleDetails(logs []string) (*SaleDetails, error) {
	for _, log := range logs {
		if !strings.Contains(log, "total_price") {
			continue
		}
		match := e.jsonPattern.FindString(log)
		if match == "" {
			return nil, fmt.Errorf("%w: no JSON object in %q", ErrMalformedSaleLog, log)
		}

		var parsed magicEdenLog
		if err := json.Unmarshal([]byte(match), &parsed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSaleLog, err)
		}
		if parsed.TotalPrice <= 0 {
			return nil, fmt.Errorf("%w: non-positive total_price %d", ErrMalformedSaleLog, parsed.TotalPrice)
		}

		return &SaleDetails{
			TotalPriceLamports:  parsed.TotalPrice,
			RoyaltyPaidLamports: parsed.RoyaltyPaid,
		}, nil
	}
	return nil, nil
}
