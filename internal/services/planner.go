package services

import "time"

// DateChunk is an inclusive day sub-range obeying the provider's
// maximum span per request. Chunk boundaries are deterministic for a
// given input, so they double as resumable checkpoints.
type DateChunk struct {
	From time.Time
	To   time.Time
}

// Chunks splits the inclusive range [start, end] into ordered,
// contiguous, non-overlapping chunks of at most maxChunkDays days each,
// with the final chunk clipped to end. A start after end yields an
// empty sequence, which callers treat as nothing to fetch.
func Chunks(start, end time.Time, maxChunkDays int) []DateChunk {
	start = civilDay(start)
	end = civilDay(end)
	if start.After(end) || maxChunkDays < 1 {
		return nil
	}

	var chunks []DateChunk
	for from := start; !from.After(end); {
		to := from.AddDate(0, 0, maxChunkDays-1)
		if to.After(end) {
			to = end
		}
		chunks = append(chunks, DateChunk{From: from, To: to})
		from = to.AddDate(0, 0, 1)
	}

	return chunks
}

// FetchRange is the inclusive sub-range a symbol still needs.
type FetchRange struct {
	From time.Time
	To   time.Time
}

// NextRange decides what a symbol still needs fetching, given its last
// persisted trade date and the global end date. No prior date means a
// full backfill over the configured lookback window. Otherwise the next
// needed day is last+1; if that is past the end date the symbol is up
// to date and no remote call is issued at all.
func NextRange(last *time.Time, end time.Time, lookbackDays int) (FetchRange, bool) {
	end = civilDay(end)

	if last == nil {
		return FetchRange{From: end.AddDate(0, 0, -lookbackDays), To: end}, true
	}

	next := civilDay(*last).AddDate(0, 0, 1)
	if next.After(end) {
		return FetchRange{}, false
	}

	return FetchRange{From: next, To: end}, true
}

// civilDay truncates a timestamp to its UTC calendar day.
func civilDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
