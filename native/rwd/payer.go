package rwd

import "math/big"

// Payer mints rewards on behalf of a controller account, typically the staking
// vault. Minting fails unless the token owner has registered the vault as a
// controller.
type Payer struct {
	token      *Token
	controller [20]byte
}

// NewPayer binds token to the controller that signs reward mints.
func NewPayer(token *Token, controller [20]byte) *Payer {
	return &Payer{token: token, controller: controller}
}

// Pay mints amount to to.
func (p *Payer) Pay(to [20]byte, amount *big.Int) error {
	if p == nil || p.token == nil {
		return errNilState
	}
	return p.token.Mint(p.controller, to, amount)
}
