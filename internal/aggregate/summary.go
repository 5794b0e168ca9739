package aggregate

import (
	"encoding/json"
	"math"
	"time"

	"github.com/dokzlo13/lampd/internal/classify"
)

// Summary is the time spent in each operational state. Every state is
// present, zero when unseen.
type Summary map[classify.State]time.Duration

// NewSummary returns a zero-filled summary.
func NewSummary() Summary {
	s := make(Summary, len(classify.States))
	for _, st := range classify.States {
		s[st] = 0
	}
	return s
}

// Add accumulates other into s.
func (s Summary) Add(other Summary) {
	for st, d := range other {
		s[st] += d
	}
}

// Total returns the sum over all states.
func (s Summary) Total() time.Duration {
	var total time.Duration
	for _, d := range s {
		total += d
	}
	return total
}

// Working returns the time the machine was in use: automatic, manual or
// waiting with a finished part.
func (s Summary) Working() time.Duration {
	return s[classify.AutoProcessing] + s[classify.ManualProcessing] + s[classify.ProcessComplete]
}

// Seconds returns the whole seconds spent in a state.
func (s Summary) Seconds(st classify.State) int64 {
	return int64(s[st] / time.Second)
}

// Hours returns the hours spent in a state rounded to two decimals.
func (s Summary) Hours(st classify.State) float64 {
	return roundHours(s[st])
}

func roundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}

type summaryJSON struct {
	Seconds      map[classify.State]int64   `json:"seconds"`
	Hours        map[classify.State]float64 `json:"hours"`
	WorkingHours float64                    `json:"working_hours"`
}

// MarshalJSON renders per-state seconds and rounded hours.
func (s Summary) MarshalJSON() ([]byte, error) {
	out := summaryJSON{
		Seconds:      make(map[classify.State]int64, len(classify.States)),
		Hours:        make(map[classify.State]float64, len(classify.States)),
		WorkingHours: roundHours(s.Working()),
	}
	for _, st := range classify.States {
		out.Seconds[st] = s.Seconds(st)
		out.Hours[st] = s.Hours(st)
	}
	return json.Marshal(out)
}
