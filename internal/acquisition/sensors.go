package acquisition

import (
	"sync"
	"time"
)

// Readings is the last known value of every sensor channel.
type Readings struct {
	Red     float64 `json:"red"`
	Yellow  float64 `json:"yellow"`
	Green   float64 `json:"green"`
	Current float64 `json:"current"`
}

// Sensors holds the latest readings reported by the frame decoder. Values
// are never cleared: a channel that stops reporting keeps its last value.
type Sensors struct {
	mu        sync.Mutex
	readings  Readings
	lightsAt  time.Time
	currentAt time.Time
	now       func() time.Time
}

// NewSensors creates an empty readings record.
func NewSensors() *Sensors {
	return &Sensors{now: time.Now}
}

// UpdateLights records new lamp intensities.
func (s *Sensors) UpdateLights(red, yellow, green float64) {
	s.mu.Lock()
	s.readings.Red = red
	s.readings.Yellow = yellow
	s.readings.Green = green
	s.lightsAt = s.now()
	s.mu.Unlock()
}

// UpdateCurrent records a new motor current.
func (s *Sensors) UpdateCurrent(value float64) {
	s.mu.Lock()
	s.readings.Current = value
	s.currentAt = s.now()
	s.mu.Unlock()
}

// Snapshot returns a copy of the current readings.
func (s *Sensors) Snapshot() Readings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readings
}

// LastUpdate returns when lights and current were last reported. A zero
// time means the channel has not reported since startup.
func (s *Sensors) LastUpdate() (lights, current time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lightsAt, s.currentAt
}
