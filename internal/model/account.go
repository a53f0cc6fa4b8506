package model

// 每日取款窗口长度（秒）
const DailyWindowSeconds int64 = 86400

// 交易历史保留的最大条数，超出后淘汰最旧的一条
const MaxHistoryEntries = 100

// Account 单个账户实体
//
// 账户只做纯状态转移，不做任何 I/O，也不读取时钟：当前时间与每日限额
// 由管理器（Ledger）在调用时传入，便于在测试中注入时间源。
// 持久化序列化由 store 层负责，这里的字段即为落盘格式。
type Account struct {
	OwnerID            string         `json:"owner_id"`             // 账户持有者的稳定外部ID
	DisplayName        string         `json:"display_name"`         // 展示名称，可变，仅用于展示
	Balance            int64          `json:"balance"`              // 当前余额（非负）
	MaxBalance         int64          `json:"max_balance"`          // 余额上限（开户时固化）
	DailyWithdrawn     int64          `json:"daily_withdrawn"`      // 当日已取款金额
	LastWithdrawReset  int64          `json:"last_withdraw_reset"`  // 上次每日窗口重置时间（Unix 秒）
	TransactionHistory []*Transaction `json:"transaction_history"`  // 最近交易历史（最多 100 条）
}

// NewAccount 按默认策略开户
func NewAccount(ownerID, displayName string, startBalance, maxBalance int64) *Account {
	return &Account{
		OwnerID:            ownerID,
		DisplayName:        displayName,
		Balance:            startBalance,
		MaxBalance:         maxBalance,
		TransactionHistory: make([]*Transaction, 0),
	}
}

// CanDeposit 检查存款是否允许：金额必须为正，且不突破余额上限
func (a *Account) CanDeposit(amount int64) bool {
	if amount <= 0 {
		return false
	}
	if a.Balance+amount > a.MaxBalance {
		return false
	}
	return true
}

// Deposit 存款，仅在 CanDeposit 通过时生效
// 交易历史由管理器负责追加，这里只动余额
func (a *Account) Deposit(amount int64) bool {
	if !a.CanDeposit(amount) {
		return false
	}
	a.Balance += amount
	return true
}

// CanWithdraw 检查取款是否允许
// dailyLimit 为 0 表示不设每日限额；检查前先按 now 惰性重置每日窗口
func (a *Account) CanWithdraw(amount, dailyLimit, now int64) bool {
	if amount <= 0 {
		return false
	}
	if a.Balance < amount {
		return false
	}
	if dailyLimit > 0 {
		a.ResetDailyWindowIfStale(now)
		if a.DailyWithdrawn+amount > dailyLimit {
			return false
		}
	}
	return true
}

// Withdraw 取款，仅在 CanWithdraw 通过时生效
func (a *Account) Withdraw(amount, dailyLimit, now int64) bool {
	if !a.CanWithdraw(amount, dailyLimit, now) {
		return false
	}
	a.Balance -= amount
	a.DailyWithdrawn += amount
	return true
}

// CanTransfer 检查转出是否允许：余额必须覆盖 金额+手续费
func (a *Account) CanTransfer(amount, fee int64) bool {
	if amount <= 0 {
		return false
	}
	if a.Balance < amount+fee {
		return false
	}
	return true
}

// Transfer 转出，扣减 金额+手续费，仅在 CanTransfer 通过时生效
func (a *Account) Transfer(amount, fee int64) bool {
	if !a.CanTransfer(amount, fee) {
		return false
	}
	a.Balance -= amount + fee
	return true
}

// ResetDailyWindowIfStale 惰性重置每日取款窗口
//
// 【注意】没有后台定时器主动清零：任何取款检查或限额查询都会先走这里。
// 读取 DailyWithdrawn 必须经过检查路径，不能直接取字段值。
func (a *Account) ResetDailyWindowIfStale(now int64) {
	if now-a.LastWithdrawReset >= DailyWindowSeconds {
		a.DailyWithdrawn = 0
		a.LastWithdrawReset = now
	}
}

// RemainingDailyWithdrawal 当日剩余可取额度，-1 表示不限额
func (a *Account) RemainingDailyWithdrawal(dailyLimit, now int64) int64 {
	if dailyLimit <= 0 {
		return -1
	}
	a.ResetDailyWindowIfStale(now)
	return dailyLimit - a.DailyWithdrawn
}

// AddTransaction 追加交易历史，超出上限时淘汰最旧的一条
func (a *Account) AddTransaction(txn *Transaction) {
	a.TransactionHistory = append(a.TransactionHistory, txn)
	if len(a.TransactionHistory) > MaxHistoryEntries {
		a.TransactionHistory = a.TransactionHistory[1:]
	}
}

// RemoveTransaction 按流水号移除历史记录，用于持久化失败后的回滚
func (a *Account) RemoveTransaction(transactionID string) {
	for i, txn := range a.TransactionHistory {
		if txn.TransactionID == transactionID {
			a.TransactionHistory = append(a.TransactionHistory[:i], a.TransactionHistory[i+1:]...)
			return
		}
	}
}

// UndoDeposit 撤销一笔已入账的存款（补偿用，只会在持久化失败时调用）
func (a *Account) UndoDeposit(amount int64) {
	a.Balance -= amount
}

// UndoWithdraw 撤销一笔已出账的取款
func (a *Account) UndoWithdraw(amount int64) {
	a.Balance += amount
	a.DailyWithdrawn -= amount
	if a.DailyWithdrawn < 0 {
		a.DailyWithdrawn = 0
	}
}

// UndoTransfer 撤销一笔已扣款的转出（含手续费）
func (a *Account) UndoTransfer(amount, fee int64) {
	a.Balance += amount + fee
}

// Snapshot 返回账户的深拷贝，交付给调用方展示，避免越权修改内部状态
func (a *Account) Snapshot() *Account {
	cp := *a
	cp.TransactionHistory = make([]*Transaction, len(a.TransactionHistory))
	for i, txn := range a.TransactionHistory {
		cp.TransactionHistory[i] = txn.Clone()
	}
	return &cp
}
