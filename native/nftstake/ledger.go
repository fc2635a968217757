package nftstake

import (
	"math/big"
	"sort"
)

// RateLedger is the append-only history of reward rate checkpoints. The rate
// in force at t is the one carried by the latest checkpoint at or before t;
// when several checkpoints share an instant the last appended wins.
type RateLedger struct {
	checkpoints []RateCheckpoint
}

// NewRateLedger seeds a ledger with its first checkpoint.
func NewRateLedger(initial *big.Int, at uint64) (*RateLedger, error) {
	ledger := &RateLedger{}
	if err := ledger.AppendRate(initial, at); err != nil {
		return nil, err
	}
	return ledger, nil
}

// Len returns the number of checkpoints.
func (l *RateLedger) Len() int { return len(l.checkpoints) }

// Checkpoints returns a copy of the history in append order.
func (l *RateLedger) Checkpoints() []RateCheckpoint {
	out := make([]RateCheckpoint, len(l.checkpoints))
	for i, cp := range l.checkpoints {
		out[i] = RateCheckpoint{EffectiveAt: cp.EffectiveAt, Rate: new(big.Int).Set(cp.Rate)}
	}
	return out
}

// Latest returns the most recent checkpoint.
func (l *RateLedger) Latest() (RateCheckpoint, bool) {
	if len(l.checkpoints) == 0 {
		return RateCheckpoint{}, false
	}
	cp := l.checkpoints[len(l.checkpoints)-1]
	return RateCheckpoint{EffectiveAt: cp.EffectiveAt, Rate: new(big.Int).Set(cp.Rate)}, true
}

// AppendRate records rate as effective from now. Appends at the same instant
// as the latest checkpoint are accepted and supersede it.
func (l *RateLedger) AppendRate(rate *big.Int, now uint64) error {
	if rate == nil || rate.Sign() < 0 {
		return ErrNegativeRate
	}
	if n := len(l.checkpoints); n > 0 && now < l.checkpoints[n-1].EffectiveAt {
		return ErrNonMonotonicTime
	}
	l.checkpoints = append(l.checkpoints, RateCheckpoint{EffectiveAt: now, Rate: new(big.Int).Set(rate)})
	return nil
}

// indexAt returns the index of the checkpoint governing t, or -1 when t
// precedes the first checkpoint.
func (l *RateLedger) indexAt(t uint64) int {
	return sort.Search(len(l.checkpoints), func(i int) bool {
		return l.checkpoints[i].EffectiveAt > t
	}) - 1
}

// RateAt returns the rate in force at t.
func (l *RateLedger) RateAt(t uint64) (*big.Int, error) {
	idx := l.indexAt(t)
	if idx < 0 {
		return nil, ErrBeforeFirstCheckpoint
	}
	return new(big.Int).Set(l.checkpoints[idx].Rate), nil
}

// Integral returns the sum of rate times duration over [t0, t1).
func (l *RateLedger) Integral(t0, t1 uint64) (*big.Int, error) {
	if t1 < t0 {
		return nil, ErrNonMonotonicTime
	}
	idx := l.indexAt(t0)
	if idx < 0 {
		return nil, ErrBeforeFirstCheckpoint
	}
	total := new(big.Int)
	segment := new(big.Int)
	for i := idx; i < len(l.checkpoints); i++ {
		start := l.checkpoints[i].EffectiveAt
		if start >= t1 {
			break
		}
		if start < t0 {
			start = t0
		}
		end := t1
		if i+1 < len(l.checkpoints) && l.checkpoints[i+1].EffectiveAt < end {
			end = l.checkpoints[i+1].EffectiveAt
		}
		if end <= start {
			continue
		}
		segment.SetUint64(end - start)
		segment.Mul(segment, l.checkpoints[i].Rate)
		total.Add(total, segment)
	}
	return total, nil
}

func (l *RateLedger) truncate(n int) {
	if n < len(l.checkpoints) {
		l.checkpoints = l.checkpoints[:n]
	}
}
