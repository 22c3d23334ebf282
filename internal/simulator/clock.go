package simulator

import "time"

// Clock creates the recurring timer that drives Run
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker that Run needs
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock uses time.NewTicker
type RealClock struct{}

// NewTicker returns a wall-clock ticker
func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// ScaledClock runs a wrapped clock faster (Factor > 1) or slower than real
// time, e.g. for demos and the CLI.
type ScaledClock struct {
	Clock  Clock
	Factor float64
}

// NewTicker divides d by Factor before delegating
func (s ScaledClock) NewTicker(d time.Duration) Ticker {
	inner := s.Clock
	if inner == nil {
		inner = RealClock{}
	}
	if s.Factor > 0 {
		d = time.Duration(float64(d) / s.Factor)
	}
	if d <= 0 {
		d = time.Nanosecond
	}
	return inner.NewTicker(d)
}
