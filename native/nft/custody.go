package nft

import "fmt"

// Custody moves tokens in and out of a vault account. The vault acts as the
// spender, so depositors must approve it (per token or as operator) first.
type Custody struct {
	collection *Collection
	vault      [20]byte
}

// NewCustody binds a collection to the vault address that holds deposits.
func NewCustody(collection *Collection, vault [20]byte) *Custody {
	return &Custody{collection: collection, vault: vault}
}

// Vault returns the custody account.
func (c *Custody) Vault() [20]byte { return c.vault }

// TransferToVault pulls id from its owner into the vault.
func (c *Custody) TransferToVault(id uint64, from [20]byte) error {
	if c == nil || c.collection == nil {
		return fmt.Errorf("nft custody: collection not configured")
	}
	return c.collection.TransferFrom(c.vault, from, c.vault, id)
}

// TransferToOwner releases id from the vault back to to.
func (c *Custody) TransferToOwner(id uint64, to [20]byte) error {
	if c == nil || c.collection == nil {
		return fmt.Errorf("nft custody: collection not configured")
	}
	return c.collection.TransferFrom(c.vault, c.vault, to, id)
}

// OwnerOf reports the current holder of id.
func (c *Custody) OwnerOf(id uint64) ([20]byte, error) {
	if c == nil || c.collection == nil {
		return [20]byte{}, fmt.Errorf("nft custody: collection not configured")
	}
	return c.collection.OwnerOf(id)
}
