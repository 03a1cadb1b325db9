package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

func newTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	storage, err := NewStorage(path)
	require.NoError(t, err)
	return storage, path
}

func TestStorage_AddAndReload(t *testing.T) {
	storage, path := newTestStorage(t)

	record := &Record{
		Chain:      types.BlockchainSolana,
		Wallet:     "wallet",
		FromMint:   types.SolNativeMint,
		ToMint:     "usdc",
		FromAmount: "1000000000",
		ToAmount:   "150250000",
		Rate:       "150.25",
		Signature:  "sig-1",
	}
	require.NoError(t, storage.Add(record))

	_, err := uuid.Parse(record.ID)
	require.NoError(t, err, "ids are uuids")
	assert.Equal(t, StatusPending, record.Status)
	assert.False(t, record.CreatedAt.IsZero())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := NewStorage(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Count())

	got, err := reloaded.FindBySignature("sig-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, "150.25", got.Rate)
}

func TestStorage_DuplicateID(t *testing.T) {
	storage, _ := newTestStorage(t)

	require.NoError(t, storage.Add(&Record{ID: "fixed"}))
	assert.Error(t, storage.Add(&Record{ID: "fixed"}))
}

func TestStorage_UpdateStatus(t *testing.T) {
	storage, path := newTestStorage(t)

	record := &Record{Signature: "sig"}
	require.NoError(t, storage.Add(record))

	require.NoError(t, storage.UpdateStatus(record.ID, StatusFailed, "slippage exceeded"))
	assert.Error(t, storage.UpdateStatus("missing", StatusConfirmed, ""))

	reloaded, err := NewStorage(path)
	require.NoError(t, err)
	got, err := reloaded.Get(record.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "slippage exceeded", got.Error)

	assert.Len(t, reloaded.ListByStatus(StatusFailed), 1)
	assert.Empty(t, reloaded.ListByStatus(StatusConfirmed))
}

func TestStorage_ListNewestFirst(t *testing.T) {
	storage, _ := newTestStorage(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, storage.Add(&Record{ID: "old", CreatedAt: base}))
	require.NoError(t, storage.Add(&Record{ID: "new", CreatedAt: base.Add(time.Hour)}))

	records := storage.List()
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].ID)
	assert.Equal(t, "old", records[1].ID)
}

func TestStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewStorage(path)
	assert.Error(t, err)
}

func TestStorage_Missing(t *testing.T) {
	storage, _ := newTestStorage(t)

	_, err := storage.Get("nope")
	assert.Error(t, err)

	_, err = storage.FindBySignature("nope")
	assert.Error(t, err)
}

func TestStorage_FailedSaveLeavesRecordsUnchanged(t *testing.T) {
	storage, path := newTestStorage(t)

	saved := &Record{Chain: types.BlockchainSolana, Signature: "sig-saved"}
	require.NoError(t, storage.Add(saved))

	// A directory where the temp file goes makes every save fail
	require.NoError(t, os.MkdirAll(path+".tmp", 0755))

	err := storage.Add(&Record{ID: "unsaved", Chain: types.BlockchainSolana, Signature: "sig-unsaved"})
	require.Error(t, err)

	_, err = storage.Get("unsaved")
	assert.Error(t, err)
	_, err = storage.FindBySignature("sig-unsaved")
	assert.Error(t, err)
	assert.Equal(t, 1, storage.Count())

	err = storage.UpdateStatus(saved.ID, StatusFailed, "reverted")
	require.Error(t, err)

	record, err := storage.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, record.Status)
	assert.Empty(t, record.Error)
}
