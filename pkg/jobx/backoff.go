package jobx

import "time"

// Backoff computes the delay before the next processing attempt.
type Backoff interface {
	// Delay returns how long to wait given the number of attempts already
	// made. Delay(0) is the initial delay before the first attempt.
	Delay(attempts int) time.Duration
}

// ConstantBackoff waits the same interval between every attempt.
type ConstantBackoff struct {
	Interval time.Duration
}

func (b ConstantBackoff) Delay(int) time.Duration {
	return b.Interval
}

// ExponentialBackoff doubles (or multiplies by Factor) the base delay with
// each attempt: Delay(n) = Base * Factor^n, capped at Max when Max > 0.
type ExponentialBackoff struct {
	Base   time.Duration
	Factor int
	Max    time.Duration
}

func (b ExponentialBackoff) Delay(attempts int) time.Duration {
	factor := b.Factor
	if factor < 2 {
		factor = 2
	}

	d := b.Base
	for i := 0; i < attempts; i++ {
		d *= time.Duration(factor)
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	return d
}
