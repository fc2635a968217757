package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"nftstake/storage"
)

type sample struct {
	Owner  [20]byte
	Amount *big.Int
}

func TestManagerKVCommit(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	value := sample{Owner: [20]byte{1}, Amount: big.NewInt(42)}
	require.NoError(t, manager.KVPut([]byte("sample"), value))

	var loaded sample
	ok, err := manager.KVGet([]byte("sample"), &loaded)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, loaded.Amount.Cmp(big.NewInt(42)))
	require.Equal(t, 0, db.Len())

	require.NoError(t, manager.Commit())
	require.Equal(t, 1, db.Len())
	require.Equal(t, 0, manager.Pending())

	fresh := NewManager(db)
	ok, err = fresh.KVGet([]byte("sample"), &loaded)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, [20]byte{1}, loaded.Owner)

	require.NoError(t, fresh.KVDelete([]byte("sample")))
	ok, err = fresh.KVGet([]byte("sample"), &loaded)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, fresh.Commit())
	require.Equal(t, 0, db.Len())
}

func TestManagerRevertToSnapshot(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	require.NoError(t, manager.KVPut([]byte("a"), uint64(1)))
	require.NoError(t, manager.Commit())

	snap := manager.Snapshot()
	require.NoError(t, manager.KVPut([]byte("a"), uint64(2)))
	require.NoError(t, manager.KVPut([]byte("a"), uint64(3)))
	require.NoError(t, manager.KVPut([]byte("b"), uint64(9)))
	inner := manager.Snapshot()
	require.NoError(t, manager.KVDelete([]byte("a")))

	var got uint64
	ok, err := manager.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.False(t, ok)

	manager.RevertToSnapshot(inner)
	ok, err = manager.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(3), got)

	manager.RevertToSnapshot(snap)
	ok, err = manager.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), got)
	ok, err = manager.KVGet([]byte("b"), &got)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 0, manager.Pending())
}

func TestManagerRolesAndNonces(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	admin := [20]byte{7}

	ok, err := manager.HasRole("admin", admin)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, manager.SetRole("ADMIN", admin, true))
	ok, err = manager.HasRole("admin", admin)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, manager.SetRole("admin", admin, false))
	ok, err = manager.HasRole("admin", admin)
	require.NoError(t, err)
	require.False(t, ok)
	require.Error(t, manager.SetRole(" ", admin, true))

	require.NoError(t, manager.ConsumeNonce("rpc", admin, 1))
	require.NoError(t, manager.ConsumeNonce("rpc", admin, 5))
	require.ErrorIs(t, manager.ConsumeNonce("rpc", admin, 5), ErrStaleNonce)
	require.Error(t, manager.ConsumeNonce("rpc", admin, 3))
	require.Error(t, manager.ConsumeNonce("rpc", admin, 0))
	require.NoError(t, manager.ConsumeNonce("other", admin, 1))

	last, err := manager.Nonce("rpc", admin)
	require.NoError(t, err)
	require.Equal(t, uint64(5), last)
}

func TestManagerParamStore(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	_, ok, err := manager.ParamStoreGet("system/pauses")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, manager.ParamStoreSet("system/pauses", []byte(`{"nftstake":true}`)))
	raw, ok, err := manager.ParamStoreGet(" system/pauses ")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"nftstake":true}`, string(raw))
	require.Error(t, manager.ParamStoreSet("", nil))
}
