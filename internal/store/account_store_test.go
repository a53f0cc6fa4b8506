package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"coinledger/internal/config"
	"coinledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, policy config.LedgerConfig) *AccountStore {
	t.Helper()
	s, err := NewAccountStore(
		filepath.Join(t.TempDir(), "accounts"),
		filepath.Join(t.TempDir(), "backups"),
		func() config.LedgerConfig { return policy },
	)
	require.NoError(t, err)
	return s
}

func defaultPolicy() config.LedgerConfig {
	return config.LedgerConfig{
		DefaultStartBalance: 100,
		DefaultMaxBalance:   1000000,
		BackupRetentionDays: 7,
	}
}

func TestLoadCreatesAndPersists(t *testing.T) {
	s := newTestStore(t, defaultPolicy())

	account, err := s.Load("owner-a", "张三")
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.Balance)
	assert.Equal(t, int64(1000000), account.MaxBalance)
	assert.Equal(t, "张三", account.DisplayName)

	// 开户即落盘，重新读取必须命中
	assert.True(t, s.Exists("owner-a"))
	reloaded, err := s.Get("owner-a")
	require.NoError(t, err)
	assert.Equal(t, int64(100), reloaded.Balance)
}

func TestGetMissingAccount(t *testing.T) {
	s := newTestStore(t, defaultPolicy())

	_, err := s.Get("ghost")
	require.ErrorIs(t, err, ErrAccountNotFound)
	assert.False(t, s.Exists("ghost"))
}

func TestSaveRoundTrip(t *testing.T) {
	s := newTestStore(t, defaultPolicy())

	account := model.NewAccount("owner-b", "李四", 0, 5000)
	account.Balance = 1234
	account.DailyWithdrawn = 300
	account.LastWithdrawReset = 1700000000
	for i := 0; i < 3; i++ {
		account.AddTransaction(model.NewTransaction(fmt.Sprintf("TXN%d", i), "owner-b", "李四",
			int64(10+i), model.TransactionTypeDeposit, int64(1700000000+i)))
	}
	require.NoError(t, s.Save(account))

	reloaded, err := s.Get("owner-b")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), reloaded.Balance)
	assert.Equal(t, int64(5000), reloaded.MaxBalance)
	assert.Equal(t, int64(300), reloaded.DailyWithdrawn)
	assert.Equal(t, int64(1700000000), reloaded.LastWithdrawReset)

	// 历史顺序必须原样保留
	require.Len(t, reloaded.TransactionHistory, 3)
	assert.Equal(t, "TXN0", reloaded.TransactionHistory[0].TransactionID)
	assert.Equal(t, "TXN2", reloaded.TransactionHistory[2].TransactionID)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	policy := defaultPolicy()
	dataDir := filepath.Join(t.TempDir(), "accounts")
	s, err := NewAccountStore(dataDir, t.TempDir(), func() config.LedgerConfig { return policy })
	require.NoError(t, err)

	require.NoError(t, s.Save(model.NewAccount("owner-c", "", 0, 1000)))

	entries, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "owner-c.json", entries[0].Name())
}

func TestInvalidOwnerID(t *testing.T) {
	s := newTestStore(t, defaultPolicy())

	for _, id := range []string{"", "a/b", `a\b`, "..", "a.json"} {
		_, err := s.Get(id)
		assert.ErrorIs(t, err, ErrInvalidOwnerID, "ownerID=%q", id)
	}
}

func TestAutoBackupSnapshot(t *testing.T) {
	policy := defaultPolicy()
	policy.AutoBackup = true
	backupDir := filepath.Join(t.TempDir(), "backups")
	s, err := NewAccountStore(filepath.Join(t.TempDir(), "accounts"), backupDir,
		func() config.LedgerConfig { return policy })
	require.NoError(t, err)

	account := model.NewAccount("owner-d", "", 0, 1000)
	// 首次保存没有旧文件，不产生备份
	require.NoError(t, s.Save(account))
	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// 第二次保存前把旧文件快照出去
	account.Balance = 42
	require.NoError(t, s.Save(account))
	entries, err = os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "owner-d_")

	ts, ok := backupTimestamp(entries[0].Name())
	require.True(t, ok)
	assert.InDelta(t, time.Now().Unix(), ts, 5)
}

func TestPruneBackups(t *testing.T) {
	policy := defaultPolicy()
	backupDir := filepath.Join(t.TempDir(), "backups")
	s, err := NewAccountStore(filepath.Join(t.TempDir(), "accounts"), backupDir,
		func() config.LedgerConfig { return policy })
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	s.SetNowFunc(func() time.Time { return now })

	old := now.Add(-8 * 24 * time.Hour).Unix()
	recent := now.Add(-time.Hour).Unix()
	for _, name := range []string{
		fmt.Sprintf("owner-e_%d.json", old),
		fmt.Sprintf("owner-e_%d.json", recent),
		fmt.Sprintf("owner_with_underscore_%d.json", old),
		"not-a-backup.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(backupDir, name), []byte("{}"), 0o644))
	}

	removed, err := s.PruneBackups(7)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		fmt.Sprintf("owner-e_%d.json", recent),
		"not-a-backup.txt",
	}, names)

	// 保留天数为 0 表示不清理
	removed, err = s.PruneBackups(0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestBackupTimestamp(t *testing.T) {
	ts, ok := backupTimestamp("owner-a_1700000000.json")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), ts)

	// ownerID 自身带下划线时取最后一段
	ts, ok = backupTimestamp("a_b_c_1700000001.json")
	require.True(t, ok)
	assert.Equal(t, int64(1700000001), ts)

	_, ok = backupTimestamp("owner-a.json")
	assert.False(t, ok)
	_, ok = backupTimestamp("owner-a_xyz.json")
	assert.False(t, ok)
	_, ok = backupTimestamp("owner-a_1700000000.txt")
	assert.False(t, ok)
}

func TestListOwners(t *testing.T) {
	s := newTestStore(t, defaultPolicy())

	_, err := s.Load("owner-1", "")
	require.NoError(t, err)
	_, err = s.Load("owner-2", "")
	require.NoError(t, err)

	owners, err := s.ListOwners()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"owner-1", "owner-2"}, owners)
}
