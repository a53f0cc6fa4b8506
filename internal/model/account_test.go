package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccount() *Account {
	return NewAccount("steam_76561198000000001", "张三", 0, 1000)
}

func TestNewAccount(t *testing.T) {
	a := NewAccount("owner-1", "李四", 500, 10000)

	assert.Equal(t, "owner-1", a.OwnerID)
	assert.Equal(t, "李四", a.DisplayName)
	assert.Equal(t, int64(500), a.Balance)
	assert.Equal(t, int64(10000), a.MaxBalance)
	assert.Equal(t, int64(0), a.DailyWithdrawn)
	require.NotNil(t, a.TransactionHistory)
	assert.Empty(t, a.TransactionHistory)
}

func TestDeposit(t *testing.T) {
	a := newTestAccount()

	// 正常入账
	require.True(t, a.Deposit(100))
	assert.Equal(t, int64(100), a.Balance)

	// 非正金额一律拒绝
	assert.False(t, a.Deposit(0))
	assert.False(t, a.Deposit(-50))
	assert.Equal(t, int64(100), a.Balance)

	// 突破余额上限拒绝，恰好到上限允许
	assert.False(t, a.Deposit(901))
	require.True(t, a.Deposit(900))
	assert.Equal(t, int64(1000), a.Balance)
	assert.False(t, a.Deposit(1))
}

func TestWithdraw(t *testing.T) {
	a := newTestAccount()
	now := int64(1700000000)
	require.True(t, a.Deposit(500))

	// dailyLimit=0 表示不设每日限额
	require.True(t, a.Withdraw(200, 0, now))
	assert.Equal(t, int64(300), a.Balance)

	// 余额不足
	assert.False(t, a.Withdraw(301, 0, now))
	// 非正金额
	assert.False(t, a.Withdraw(0, 0, now))
	assert.False(t, a.Withdraw(-1, 0, now))
	assert.Equal(t, int64(300), a.Balance)
}

func TestWithdrawDailyWindow(t *testing.T) {
	a := newTestAccount()
	require.True(t, a.Deposit(1000))
	now := int64(1700000000)
	const dailyLimit = int64(600)

	require.True(t, a.Withdraw(300, dailyLimit, now))
	require.True(t, a.Withdraw(300, dailyLimit, now+10))
	assert.Equal(t, int64(600), a.DailyWithdrawn)

	// 当日额度用尽
	assert.False(t, a.CanWithdraw(1, dailyLimit, now+20))
	assert.Equal(t, int64(0), a.RemainingDailyWithdrawal(dailyLimit, now+20))

	// 距上次重置不足 86400 秒，窗口不重置
	assert.False(t, a.CanWithdraw(1, dailyLimit, now+DailyWindowSeconds-1))

	// 跨过窗口后惰性清零，额度恢复
	later := now + DailyWindowSeconds
	assert.Equal(t, dailyLimit, a.RemainingDailyWithdrawal(dailyLimit, later))
	assert.Equal(t, int64(0), a.DailyWithdrawn)
	require.True(t, a.Withdraw(400, dailyLimit, later))
	assert.Equal(t, int64(400), a.DailyWithdrawn)
	assert.Equal(t, later, a.LastWithdrawReset)
}

func TestRemainingDailyWithdrawalUnlimited(t *testing.T) {
	a := newTestAccount()
	// 不限额时固定返回 -1 哨兵值
	assert.Equal(t, int64(-1), a.RemainingDailyWithdrawal(0, 1700000000))
	assert.Equal(t, int64(-1), a.RemainingDailyWithdrawal(-1, 1700000000))
}

func TestTransferDeductsFee(t *testing.T) {
	a := newTestAccount()
	require.True(t, a.Deposit(100))

	// 余额必须覆盖 金额+手续费
	assert.False(t, a.CanTransfer(99, 2))
	require.True(t, a.Transfer(98, 2))
	assert.Equal(t, int64(0), a.Balance)
	assert.False(t, a.Transfer(1, 0))
}

func TestHistoryEviction(t *testing.T) {
	a := newTestAccount()

	for i := 0; i < MaxHistoryEntries+5; i++ {
		txn := NewTransaction(fmt.Sprintf("TXN%04d", i), a.OwnerID, a.DisplayName,
			10, TransactionTypeDeposit, int64(1700000000+i))
		a.AddTransaction(txn)
	}

	// 超出上限后淘汰最旧的，保留最近 100 条
	require.Len(t, a.TransactionHistory, MaxHistoryEntries)
	assert.Equal(t, "TXN0005", a.TransactionHistory[0].TransactionID)
	assert.Equal(t, "TXN0104", a.TransactionHistory[MaxHistoryEntries-1].TransactionID)
}

func TestRemoveTransaction(t *testing.T) {
	a := newTestAccount()
	for i := 0; i < 3; i++ {
		a.AddTransaction(NewTransaction(fmt.Sprintf("TXN%d", i), a.OwnerID, "", 10,
			TransactionTypeDeposit, 1700000000))
	}

	a.RemoveTransaction("TXN1")
	require.Len(t, a.TransactionHistory, 2)
	assert.Equal(t, "TXN0", a.TransactionHistory[0].TransactionID)
	assert.Equal(t, "TXN2", a.TransactionHistory[1].TransactionID)

	// 不存在的流水号静默忽略
	a.RemoveTransaction("TXN9")
	assert.Len(t, a.TransactionHistory, 2)
}

func TestUndoOperations(t *testing.T) {
	a := newTestAccount()
	now := int64(1700000000)
	require.True(t, a.Deposit(500))

	a.UndoDeposit(200)
	assert.Equal(t, int64(300), a.Balance)

	require.True(t, a.Withdraw(100, 600, now))
	a.UndoWithdraw(100)
	assert.Equal(t, int64(300), a.Balance)
	assert.Equal(t, int64(0), a.DailyWithdrawn)

	require.True(t, a.Transfer(50, 2))
	a.UndoTransfer(50, 2)
	assert.Equal(t, int64(300), a.Balance)
}

func TestSnapshotIsolation(t *testing.T) {
	a := newTestAccount()
	require.True(t, a.Deposit(100))
	a.AddTransaction(NewTransaction("TXN1", a.OwnerID, "", 100, TransactionTypeDeposit, 1700000000))

	snap := a.Snapshot()
	snap.Balance = 999
	snap.TransactionHistory[0].Amount = 999
	snap.TransactionHistory = append(snap.TransactionHistory, nil)

	// 快照上的改动不能渗透回原对象
	assert.Equal(t, int64(100), a.Balance)
	assert.Equal(t, int64(100), a.TransactionHistory[0].Amount)
	assert.Len(t, a.TransactionHistory, 1)
}
