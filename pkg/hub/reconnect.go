package hub

import "time"

// ReconnectPolicy decides how long to wait before reconnect attempt n,
// counting from zero since the last successful open.
type ReconnectPolicy interface {
	Delay(attempt int) time.Duration
}

// FixedDelay waits the same duration before every attempt.
type FixedDelay time.Duration

func (d FixedDelay) Delay(int) time.Duration {
	return time.Duration(d)
}

// ExponentialBackoff waits Base, then Base*Factor, Base*Factor^2 and so on,
// never longer than Max.
type ExponentialBackoff struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	factor := b.Factor
	if factor < 1 {
		factor = 2
	}
	d := float64(b.Base)
	for i := 0; i < attempt; i++ {
		d *= factor
		if b.Max > 0 && d >= float64(b.Max) {
			return b.Max
		}
	}
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}
