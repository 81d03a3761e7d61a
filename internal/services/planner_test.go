package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestChunksCoverRangeExactly(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		chunkDays int
	}{
		{"two years daily limit", "2024-01-01", "2026-01-01", 365},
		{"range shorter than chunk", "2024-01-01", "2024-02-01", 365},
		{"chunk of one day", "2024-01-01", "2024-01-05", 1},
		{"exact multiple", "2024-01-01", "2024-01-10", 5},
		{"uneven tail", "2024-01-01", "2024-01-12", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := day(tt.start), day(tt.end)
			chunks := Chunks(start, end, tt.chunkDays)
			require.NotEmpty(t, chunks)

			assert.Equal(t, start, chunks[0].From, "first chunk starts at start")
			assert.Equal(t, end, chunks[len(chunks)-1].To, "last chunk clipped to end")

			for i, c := range chunks {
				assert.False(t, c.To.Before(c.From), "chunk %d inverted", i)

				days := int(c.To.Sub(c.From).Hours()/24) + 1
				assert.LessOrEqual(t, days, tt.chunkDays, "chunk %d too long", i)

				if i > 0 {
					// Contiguous: each chunk starts the day after the previous end.
					assert.Equal(t, chunks[i-1].To.AddDate(0, 0, 1), c.From, "gap before chunk %d", i)
				}
			}
		})
	}
}

func TestChunksDeterministic(t *testing.T) {
	a := Chunks(day("2023-03-15"), day("2025-06-20"), 365)
	b := Chunks(day("2023-03-15"), day("2025-06-20"), 365)
	assert.Equal(t, a, b)
}

func TestChunksEmptyRange(t *testing.T) {
	assert.Nil(t, Chunks(day("2024-01-10"), day("2024-01-05"), 365))
	assert.Nil(t, Chunks(day("2024-01-10"), day("2024-01-09"), 365))
	assert.Nil(t, Chunks(day("2024-01-01"), day("2024-12-31"), 0))
}

func TestChunksSingleDay(t *testing.T) {
	chunks := Chunks(day("2024-01-11"), day("2024-01-11"), 365)
	require.Len(t, chunks, 1)
	assert.Equal(t, day("2024-01-11"), chunks[0].From)
	assert.Equal(t, day("2024-01-11"), chunks[0].To)
}

func TestNextRangeFullBackfill(t *testing.T) {
	end := day("2026-01-01")
	rng, ok := NextRange(nil, end, 730)
	require.True(t, ok)
	assert.Equal(t, day("2024-01-02"), rng.From)
	assert.Equal(t, end, rng.To)
}

func TestNextRangeIncremental(t *testing.T) {
	last := day("2024-01-10")

	rng, ok := NextRange(&last, day("2024-01-11"), 730)
	require.True(t, ok)
	assert.Equal(t, day("2024-01-11"), rng.From)
	assert.Equal(t, day("2024-01-11"), rng.To)
}

func TestNextRangeUpToDate(t *testing.T) {
	last := day("2024-01-10")

	_, ok := NextRange(&last, day("2024-01-10"), 730)
	assert.False(t, ok)

	_, ok = NextRange(&last, day("2024-01-09"), 730)
	assert.False(t, ok)
}
