package nftstake

import "math/big"

// Earned returns the reward owed to record at now and the sub-unit remainder
// that would carry forward if it were settled. Exiting records are frozen at
// the exit instant.
func Earned(record *DepositRecord, ledger *RateLedger, now, unit uint64) (*big.Int, *big.Int, error) {
	if record == nil || record.State == StateEmpty {
		return big.NewInt(0), big.NewInt(0), nil
	}
	if unit == 0 {
		unit = 1
	}
	if now < record.lastTouched() {
		return nil, nil, ErrNonMonotonicTime
	}
	end := now
	if record.State == StateExiting {
		end = record.ExitRequestedAt
	}
	integral, err := ledger.Integral(record.AccrualStart, end)
	if err != nil {
		return nil, nil, err
	}
	if record.Dust != nil {
		integral.Add(integral, record.Dust)
	}
	quotient, remainder := new(big.Int).QuoRem(integral, new(big.Int).SetUint64(unit), new(big.Int))
	return quotient, remainder, nil
}
