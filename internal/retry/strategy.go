package retry

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"golang.org/x/exp/constraints"
)

// Strategy returns how long to wait before the given retry and whether the
// retry budget is exhausted.
type Strategy interface {
	Sleep(uint) (time.Duration, bool)
}

type never struct{}

func NewNever() *never {
	return &never{}
}

func (nr *never) Sleep(n uint) (time.Duration, bool) {
	return 0, true
}

type constant struct {
	interval      time.Duration
	maxRetryCount uint
}

func NewConstant(interval time.Duration, maxRetryCount uint) *constant {
	return &constant{
		interval:      interval,
		maxRetryCount: maxRetryCount,
	}
}

func (c *constant) Sleep(retryCount uint) (time.Duration, bool) {
	if retryCount >= c.maxRetryCount {
		return 0, true
	}
	return c.interval, false
}

// Entropy picks a duration in [0, n) for full-jitter backoff.
type Entropy func(int64) int64

type exponentialBackOff struct {
	base          time.Duration
	max           time.Duration
	maxRetryCount uint
	entropy       Entropy
}

func NewExponentialBackOff(base time.Duration, max time.Duration, maxRetryCount uint, entropy Entropy) *exponentialBackOff {
	return &exponentialBackOff{
		base:          base,
		max:           max,
		maxRetryCount: maxRetryCount,
		entropy:       entropy,
	}
}

func (eb *exponentialBackOff) Sleep(retryCount uint) (time.Duration, bool) {
	if retryCount >= eb.maxRetryCount {
		return 0, true
	}

	entropy := eb.getEntropy()
	ceiling := int64(eb.max)
	if retryCount < 63 {
		if delay, err := checkedMulInt64(1<<retryCount, int64(eb.base)); err == nil {
			ceiling = min(delay, ceiling)
		}
	}
	return time.Duration(entropy(ceiling)), false
}

func (eb *exponentialBackOff) getEntropy() Entropy {
	if eb.entropy == nil {
		return func(n int64) int64 {
			if n <= 0 {
				return 0
			}
			return rand.Int63n(n)
		}
	}
	return eb.entropy
}

func min[T constraints.Ordered](l T, r T) T {
	if l > r {
		return r
	}
	return l
}

var OverflowError = errors.New("overflow")

func checkedMulInt64(l int64, r int64) (int64, error) {
	if l == 0 || r == 0 {
		return l * r, nil
	}
	if l > math.MaxInt64/r {
		return 0, OverflowError
	}
	return l * r, nil
}
