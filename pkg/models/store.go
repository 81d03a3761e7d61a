package models

// StoreStats holds aggregate health metrics of the candle store,
// recomputed by the monitor on every status request.
type StoreStats struct {
	TotalRows     int64   `json:"total_rows"`
	UniqueSymbols int     `json:"unique_symbols"`
	MinDate       string  `json:"min_date"`
	MaxDate       string  `json:"max_date"`
	SizeMB        float64 `json:"size_mb"`
}
