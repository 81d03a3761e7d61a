package services

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/market-sync/pkg/config"
)

// universeFile is the symbol universe JSON document.
type universeFile struct {
	Symbols []string `json:"symbols"`
}

// LoadUniverse reads the symbol universe file and returns the tickers
// in file order. Entries carrying the reserved test-fixture prefix are
// filtered out before use.
func LoadUniverse(cfg *config.UniverseConfig) ([]string, error) {
	data, err := os.ReadFile(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file %s: %w", cfg.File, err)
	}

	var doc universeFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse universe file %s: %w", cfg.File, err)
	}

	symbols := make([]string, 0, len(doc.Symbols))
	for _, sym := range doc.Symbols {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		if cfg.TestPrefix != "" && strings.HasPrefix(sym, cfg.TestPrefix) {
			continue
		}
		symbols = append(symbols, sym)
	}

	if len(symbols) == 0 {
		return nil, fmt.Errorf("universe file %s contains no usable symbols", cfg.File)
	}

	return symbols, nil
}
