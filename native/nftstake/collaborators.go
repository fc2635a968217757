package nftstake

import "math/big"

// CustodyAsset moves NFTs between depositors and the vault.
type CustodyAsset interface {
	TransferToVault(id uint64, from [20]byte) error
	TransferToOwner(id uint64, to [20]byte) error
	OwnerOf(id uint64) ([20]byte, error)
}

// RewardAsset pays out accrued rewards. Implementations enforce their own
// mint authorisation.
type RewardAsset interface {
	Pay(to [20]byte, amount *big.Int) error
}

// PauseFlag exposes the module pause toggle.
type PauseFlag interface {
	IsPaused(module string) bool
	SetPaused(module string, paused bool) error
}

// AdminSet answers whether an account may call privileged operations.
type AdminSet interface {
	IsAdmin(caller [20]byte) bool
}

// RoleAdmin is the role granted to staking administrators.
const RoleAdmin = "nftstake.admin"

// RoleChecker is satisfied by the state manager role registry.
type RoleChecker interface {
	HasRole(role string, addr [20]byte) (bool, error)
}

type roleAdmins struct {
	roles RoleChecker
}

// AdminsFromRoles treats holders of RoleAdmin as administrators.
func AdminsFromRoles(roles RoleChecker) AdminSet {
	return roleAdmins{roles: roles}
}

func (r roleAdmins) IsAdmin(caller [20]byte) bool {
	if r.roles == nil {
		return false
	}
	ok, err := r.roles.HasRole(RoleAdmin, caller)
	return err == nil && ok
}
