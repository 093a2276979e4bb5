package analytics

import (
	"sync"
	"time"

	"github.com/asantos/patrimonio/pkg/formulas"
)

// ValueHistory is a bounded in-memory series of total portfolio value
// samples, one appended per completed sync cycle. It is the only valuation
// series the engine keeps; it is never persisted.
type ValueHistory struct {
	mu     sync.Mutex
	points []HistoryPoint
	max    int
}

// NewValueHistory creates a history retaining at most max samples.
func NewValueHistory(max int) *ValueHistory {
	if max <= 0 {
		max = 500
	}
	return &ValueHistory{max: max}
}

// Record appends one sample, evicting the oldest when full.
func (h *ValueHistory) Record(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.points = append(h.points, HistoryPoint{Timestamp: time.Now(), Value: value})
	if len(h.points) > h.max {
		h.points = h.points[len(h.points)-h.max:]
	}
}

// Points returns a copy of the sampled series in record order.
func (h *ValueHistory) Points() []HistoryPoint {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]HistoryPoint, len(h.points))
	copy(out, h.points)
	return out
}

// History returns the sampled series together with its SMA and EMA trend
// over the given window.
func (s *Service) History(h *ValueHistory, window int) History {
	points := h.Points()

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	return History{
		Points: points,
		SMA:    formulas.TrendSMA(values, window),
		EMA:    formulas.TrendEMA(values, window),
	}
}
