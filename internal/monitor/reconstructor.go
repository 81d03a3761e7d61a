package monitor

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/market-sync/pkg/models"
)

// logTailWindow bounds how much of the run log is replayed per status
// request, so reconstruction stays cheap on long-running logs.
const logTailWindow = 400_000

// Line patterns of the engine's run-log grammar. The reconstructor has
// no channel to the engine other than these lines.
var (
	reRunStart  = regexp.MustCompile(`Backfill run started`)
	reRunTotal  = regexp.MustCompile(`Symbols: (\d+)`)
	reSymStart  = regexp.MustCompile(`\[(\d+)/(\d+)\] (?:Processing|Incremental update for|Full backfill for) (?:[A-Z]+:)?([\w-]+)`)
	reUpToDate  = regexp.MustCompile(`(?:[A-Z]+:)?([\w-]+) is already up to date`)
	reCompleted = regexp.MustCompile(`Completed - (\d+) candles inserted`)
)

// Snapshot is a best-effort, eventually-consistent replay of engine
// progress derived purely from the run log tail. It can lag the engine
// by up to one log flush and is never stronger than approximate.
type Snapshot struct {
	TotalSymbols  int                             `json:"total_symbols"`
	Processed     int                             `json:"processed"`
	Updated       int                             `json:"updated"`
	UpToDate      int                             `json:"up_to_date"`
	TotalCandles  int                             `json:"total_candles"`
	CurrentSymbol string                          `json:"current_symbol"`
	Symbols       map[string]models.ProgressEntry `json:"symbols"`
}

// Reconstructor rebuilds engine progress from the append-only run log.
type Reconstructor struct {
	logPath string
	logger  *logrus.Entry
}

// NewReconstructor creates a log-state reconstructor for the given run
// log path.
func NewReconstructor(logPath string, logger *logrus.Logger) *Reconstructor {
	return &Reconstructor{
		logPath: logPath,
		logger:  logger.WithField("component", "reconstructor"),
	}
}

// Snapshot replays the trailing window of the run log. It never fails:
// a missing log, a read error, or a truncated boundary line degrade to
// whatever partial state could be derived.
func (r *Reconstructor) Snapshot() *Snapshot {
	snap := emptySnapshot()

	file, err := os.Open(r.logPath)
	if err != nil {
		return snap
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return snap
	}
	if info.Size() > logTailWindow {
		if _, err := file.Seek(info.Size()-logTailWindow, io.SeekStart); err != nil {
			return snap
		}
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		r.applyLine(snap, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		r.logger.WithError(err).Warn("Run log read interrupted, returning partial state")
	}

	snap.finalize()
	return snap
}

// applyLine advances the snapshot by one log line. Lines matching no
// known pattern are ignored.
func (r *Reconstructor) applyLine(snap *Snapshot, line string) {
	if reRunStart.MatchString(line) {
		// A new run resets the session view.
		*snap = *emptySnapshot()
		return
	}

	if m := reRunTotal.FindStringSubmatch(line); m != nil {
		if total, err := strconv.Atoi(m[1]); err == nil {
			snap.TotalSymbols = total
		}
		return
	}

	if m := reSymStart.FindStringSubmatch(line); m != nil {
		symbol := trimSeriesSuffix(m[3])
		snap.CurrentSymbol = symbol
		snap.Symbols[symbol] = models.ProgressEntry{Symbol: symbol, Status: models.StatusActive}
		if total, err := strconv.Atoi(m[2]); err == nil {
			snap.TotalSymbols = total
		}
		return
	}

	if m := reUpToDate.FindStringSubmatch(line); m != nil {
		symbol := trimSeriesSuffix(m[1])
		snap.Symbols[symbol] = models.ProgressEntry{Symbol: symbol, Status: models.StatusUpToDate}
		return
	}

	if m := reCompleted.FindStringSubmatch(line); m != nil {
		count, err := strconv.Atoi(m[1])
		if err != nil || snap.CurrentSymbol == "Idle" {
			return
		}
		snap.TotalCandles += count
		symbol := snap.CurrentSymbol
		if count > 0 {
			snap.Symbols[symbol] = models.ProgressEntry{Symbol: symbol, Status: models.StatusUpdated, CandlesInserted: count}
			return
		}
		if entry, ok := snap.Symbols[symbol]; !ok || entry.Status != models.StatusUpToDate {
			snap.Symbols[symbol] = models.ProgressEntry{Symbol: symbol, Status: models.StatusUpToDate}
		}
	}
}

// emptySnapshot returns the idle state.
func emptySnapshot() *Snapshot {
	return &Snapshot{
		CurrentSymbol: "Idle",
		Symbols:       make(map[string]models.ProgressEntry),
	}
}

// trimSeriesSuffix strips the provider's equity-series suffix so log
// symbols map back to universe tickers.
func trimSeriesSuffix(symbol string) string {
	return strings.TrimSuffix(symbol, "-EQ")
}

// finalize recomputes the aggregate counters from per-symbol state.
func (s *Snapshot) finalize() {
	s.Processed = 0
	s.Updated = 0
	s.UpToDate = 0
	for _, entry := range s.Symbols {
		switch entry.Status {
		case models.StatusUpdated:
			s.Processed++
			s.Updated++
		case models.StatusUpToDate:
			s.Processed++
			s.UpToDate++
		case models.StatusActive:
			s.Processed++
		}
	}
}
