package nft

import "errors"

var (
	errNilState = errors.New("nft collection: state not configured")
	// ErrTokenNotFound is returned when a token id has never been minted.
	ErrTokenNotFound = errors.New("nft collection: token not found")
	// ErrTokenExists is returned when minting an id that already has an owner.
	ErrTokenExists = errors.New("nft collection: token already minted")
	// ErrNotOwner is returned when the from address does not own the token.
	ErrNotOwner = errors.New("nft collection: not an owner")
	// ErrNotApproved is returned when the spender holds no transfer approval.
	ErrNotApproved = errors.New("nft collection: caller is not owner nor approved")
	// ErrZeroAddress is returned when minting or transferring to the zero address.
	ErrZeroAddress = errors.New("nft collection: zero address")
	// ErrUnauthorized is returned when a non-minter attempts to mint.
	ErrUnauthorized = errors.New("nft collection: caller is not a minter")
)

// Token is the persisted view of a single non-fungible token.
type Token struct {
	ID       uint64
	Owner    [20]byte
	Approved [20]byte
	URI      string
}

func (t *Token) clone() *Token {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func isZero(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
