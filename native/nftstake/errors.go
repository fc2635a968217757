package nftstake

import (
	"errors"
	"fmt"
)

var (
	ErrNilState              = errors.New("nftstake engine: state not configured")
	ErrNotInitialized        = errors.New("nftstake engine: not initialised")
	ErrAlreadyInitialized    = errors.New("nftstake engine: already initialised")
	ErrAlreadyDeposited      = errors.New("nftstake engine: token already deposited")
	ErrInvalidState          = errors.New("nftstake engine: operation not valid for token state")
	ErrNotDepositor          = errors.New("nftstake engine: caller is not the depositor")
	ErrUnbondingNotElapsed   = errors.New("nftstake engine: unbonding delay not elapsed")
	ErrCustodyTransferFailed = errors.New("nftstake engine: custody transfer failed")
	ErrPayoutFailed          = errors.New("nftstake engine: reward payout failed")
	ErrSystemPaused          = errors.New("nftstake engine: staking is paused")
	ErrUnauthorized          = errors.New("nftstake engine: caller is not an administrator")
	ErrNonMonotonicTime      = errors.New("nftstake engine: timestamp precedes last update")
	ErrNegativeRate          = errors.New("nftstake engine: rate must not be negative")
	ErrBeforeFirstCheckpoint = errors.New("nftstake engine: timestamp precedes first rate checkpoint")
	ErrEmptyBatch            = errors.New("nftstake engine: token list empty")
	ErrDuplicateToken        = errors.New("nftstake engine: duplicate token in batch")
	ErrInvalidParams         = errors.New("nftstake engine: invalid parameters")
)

func tokenErr(id uint64, err error) error {
	return fmt.Errorf("nftstake: token %d: %w", id, err)
}
