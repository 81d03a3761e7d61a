package models

import "time"

// SymbolStatus is the per-symbol state machine of one engine run:
// pending -> active -> {up_to_date | updated | failed}.
type SymbolStatus string

const (
	StatusPending  SymbolStatus = "pending"
	StatusActive   SymbolStatus = "active"
	StatusUpToDate SymbolStatus = "up_to_date"
	StatusUpdated  SymbolStatus = "updated"
	StatusFailed   SymbolStatus = "failed"
)

// ProgressEntry tracks one symbol's outcome within a session.
type ProgressEntry struct {
	Symbol          string       `json:"symbol"`
	Status          SymbolStatus `json:"status"`
	CandlesInserted int          `json:"candles"`
	Error           string       `json:"error,omitempty"`
}

// SessionSummary aggregates the counters of a single engine run.
// It is reset at run start and owned by one run only.
type SessionSummary struct {
	StartedAt    time.Time                 `json:"started_at"`
	TotalSymbols int                       `json:"total_symbols"`
	Processed    int                       `json:"processed"`
	Updated      int                       `json:"updated"`
	UpToDate     int                       `json:"up_to_date"`
	Failed       int                       `json:"failed"`
	TotalCandles int                       `json:"total_candles"`
	Symbols      map[string]*ProgressEntry `json:"symbols"`
}

// NewSessionSummary returns a summary with every symbol pending.
func NewSessionSummary(symbols []string) *SessionSummary {
	s := &SessionSummary{
		StartedAt:    time.Now(),
		TotalSymbols: len(symbols),
		Symbols:      make(map[string]*ProgressEntry, len(symbols)),
	}
	for _, sym := range symbols {
		s.Symbols[sym] = &ProgressEntry{Symbol: sym, Status: StatusPending}
	}
	return s
}

// MarkActive transitions a symbol to active.
func (s *SessionSummary) MarkActive(symbol string) {
	s.entry(symbol).Status = StatusActive
}

// MarkUpToDate records a symbol that needed no fetching.
func (s *SessionSummary) MarkUpToDate(symbol string) {
	e := s.entry(symbol)
	e.Status = StatusUpToDate
	e.CandlesInserted = 0
	s.Processed++
	s.UpToDate++
}

// MarkUpdated records a symbol whose fetch completed. Zero inserted
// candles counts as up to date, not updated.
func (s *SessionSummary) MarkUpdated(symbol string, inserted int) {
	e := s.entry(symbol)
	e.CandlesInserted = inserted
	s.Processed++
	s.TotalCandles += inserted
	if inserted > 0 {
		e.Status = StatusUpdated
		s.Updated++
		return
	}
	e.Status = StatusUpToDate
	s.UpToDate++
}

// MarkFailed records a symbol-scope fault.
func (s *SessionSummary) MarkFailed(symbol string, err error) {
	e := s.entry(symbol)
	e.Status = StatusFailed
	if err != nil {
		e.Error = err.Error()
	}
	s.Processed++
	s.Failed++
}

func (s *SessionSummary) entry(symbol string) *ProgressEntry {
	e, ok := s.Symbols[symbol]
	if !ok {
		e = &ProgressEntry{Symbol: symbol, Status: StatusPending}
		s.Symbols[symbol] = e
	}
	return e
}
