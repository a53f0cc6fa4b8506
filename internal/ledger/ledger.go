package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"coinledger/internal/config"
	"coinledger/internal/model"
	"coinledger/internal/store"
	"coinledger/pkg/idgen"

	"github.com/puzpuzpuz/xsync/v3"
)

// AccountStore 账本对持久化层的依赖面
type AccountStore interface {
	Load(ownerID, displayNameHint string) (*model.Account, error)
	Get(ownerID string) (*model.Account, error)
	Save(account *model.Account) error
}

// accountEntry 缓存条目：账户指针 + 该账户的互斥锁
// 账户对象只会被持有锁的调用方修改
type accountEntry struct {
	mu      sync.Mutex
	account *model.Account
}

// OpResult 单次账本操作的成功结果
type OpResult struct {
	Transaction *model.Transaction `json:"transaction"`
	Balance     int64              `json:"balance"`
}

// Ledger 账本管理器，所有余额变更的唯一入口
//
// 【并发模型】
// 1. 每个账户一把互斥锁（accountEntry.mu），同一账户同一时刻最多一个变更
// 2. 不同账户之间完全并发
// 3. 转账涉及两个账户，按 ownerID 字典序加锁，杜绝反向转账互相死锁：
//      goroutine1: Transfer(A->B)  先锁A再锁B
//      goroutine2: Transfer(B->A)  同样先锁A再锁B，不会交叉持锁
// 4. 接收方的内存对象只在发送方扣款落盘之后才被修改，
//    任何读者都不会观察到"半笔转账"
//
// 【持久化契约】每次变更操作在释放锁之前必须落盘；落盘失败时
// 回滚内存变更并返回 PERSISTENCE_FAILURE，内存与磁盘不允许发散
type Ledger struct {
	store    AccountStore
	queue    *TransactionQueue
	currency CurrencyProvider
	notifier Notifier
	policy   atomic.Pointer[config.LedgerConfig]
	cache    *xsync.MapOf[string, *accountEntry]
	now      func() time.Time
}

// NewLedger 创建账本管理器，依赖全部显式注入
func NewLedger(st AccountStore, policy config.LedgerConfig, currency CurrencyProvider, notifier Notifier) *Ledger {
	l := &Ledger{
		store:    st,
		queue:    NewTransactionQueue(policy.TransactionQueueSize),
		currency: currency,
		notifier: notifier,
		cache:    xsync.NewMapOf[string, *accountEntry](),
		now:      time.Now,
	}
	l.policy.Store(&policy)
	return l
}

// SetNowFunc 注入时间源，仅测试使用
func (l *Ledger) SetNowFunc(now func() time.Time) {
	l.now = now
}

// Queue 暴露异步交易队列，供排空任务消费
func (l *Ledger) Queue() *TransactionQueue {
	return l.queue
}

// Policy 当前生效的业务策略（值拷贝）
func (l *Ledger) Policy() config.LedgerConfig {
	return *l.policy.Load()
}

// UpdatePolicy 热更新业务策略
// 新策略立即作用于后续的费率/限额检查；已开户账户的 MaxBalance 不回溯
func (l *Ledger) UpdatePolicy(p config.LedgerConfig) {
	l.policy.Store(&p)
	l.queue.SetCapacity(p.TransactionQueueSize)
	log.Printf("[Ledger] 业务策略已更新: 费率=%v 单笔区间=[%d,%d] 日限额=%d",
		p.TransactionFeeRate, p.MinTransactionAmount, p.MaxSingleTransaction, p.DailyWithdrawalLimit)
}

// entryFor 取缓存条目；条目不存在时插入空壳，账户本体在持锁后再加载，
// 避免把文件 I/O 做进并发 map 的内部
func (l *Ledger) entryFor(ownerID string) *accountEntry {
	entry, _ := l.cache.LoadOrStore(ownerID, &accountEntry{})
	return entry
}

// loadLocked 在已持有 entry.mu 的前提下确保账户已加载
func (l *Ledger) loadLocked(entry *accountEntry, ownerID, nameHint string) error {
	if entry.account != nil {
		return nil
	}
	account, err := l.store.Load(ownerID, nameHint)
	if err != nil {
		return wrapError(ReasonPersistenceFailure, ownerID, 0, "加载账户失败", err)
	}
	entry.account = account
	return nil
}

// GetAccount 取账户快照（缓存优先，未命中则从存储加载，不存在则开户）
func (l *Ledger) GetAccount(ctx context.Context, ownerID, nameHint string) (*model.Account, error) {
	entry := l.entryFor(ownerID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := l.loadLocked(entry, ownerID, nameHint); err != nil {
		return nil, err
	}
	return entry.account.Snapshot(), nil
}

// GetBalance 查询余额，不产生任何变更
func (l *Ledger) GetBalance(ctx context.Context, ownerID string) (int64, error) {
	entry := l.entryFor(ownerID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := l.loadLocked(entry, ownerID, ""); err != nil {
		return 0, err
	}
	return entry.account.Balance, nil
}

// History 查询交易历史；非创建型查询，账户不存在返回 NOT_FOUND
func (l *Ledger) History(ctx context.Context, ownerID string) ([]*model.Transaction, error) {
	if entry, ok := l.cache.Load(ownerID); ok {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		if entry.account != nil {
			return entry.account.Snapshot().TransactionHistory, nil
		}
	}

	account, err := l.store.Get(ownerID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, newError(ReasonNotFound, ownerID, 0, "账户不存在")
		}
		return nil, wrapError(ReasonPersistenceFailure, ownerID, 0, "读取账户失败", err)
	}
	return account.TransactionHistory, nil
}

// RemainingDailyWithdrawal 当日剩余可取额度，-1 表示不限额
// 惰性窗口重置只改内存，无需立即落盘：重置逻辑基于时间戳，可重复推导
func (l *Ledger) RemainingDailyWithdrawal(ctx context.Context, ownerID string) (int64, error) {
	p := l.Policy()

	entry := l.entryFor(ownerID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := l.loadLocked(entry, ownerID, ""); err != nil {
		return 0, err
	}
	return entry.account.RemainingDailyWithdrawal(p.DailyWithdrawalLimit, l.now().Unix()), nil
}

// Deposit 存款：收缴外部货币，入账，落盘
//
// 校验顺序约定（取款/转账同理）：先看金额正负与下限，再看账户自身
// 状态（余额上限/余额/日限额），最后才是单笔上限。这样调用方拿到的
// 失败分类反映的是"最根本"的拒绝原因
func (l *Ledger) Deposit(ctx context.Context, ownerID, ownerName string, amount int64) (*OpResult, error) {
	p := l.Policy()
	if amount <= 0 || amount < p.MinTransactionAmount {
		return nil, newError(ReasonInvalidAmount, ownerID, amount,
			fmt.Sprintf("金额不能低于单笔最小值 %d", p.MinTransactionAmount))
	}

	entry := l.entryFor(ownerID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := l.loadLocked(entry, ownerID, ownerName); err != nil {
		return nil, err
	}
	account := entry.account
	l.refreshDisplayName(account, ownerName)

	if !account.CanDeposit(amount) {
		return nil, newError(ReasonLimitExceeded, ownerID, amount,
			fmt.Sprintf("存款将超过余额上限 %d", account.MaxBalance))
	}
	if !p.IsValidTransactionAmount(amount) {
		return nil, newError(ReasonInvalidAmount, ownerID, amount,
			fmt.Sprintf("金额超过单笔最大值 %d", p.MaxSingleTransaction))
	}

	// 先确认并收缴外部货币，再动账本余额
	ok, err := l.currency.HasSufficientValue(ctx, ownerID, amount)
	if err != nil {
		return nil, wrapError(ReasonInsufficientFunds, ownerID, amount, "外部货币校验失败", err)
	}
	if !ok {
		return nil, newError(ReasonInsufficientFunds, ownerID, amount, "外部货币不足")
	}
	if err := l.currency.Consume(ctx, ownerID, amount); err != nil {
		return nil, wrapError(ReasonInsufficientFunds, ownerID, amount, "收缴外部货币失败", err)
	}

	account.Deposit(amount)
	txn := model.NewTransaction(idgen.GenerateTransactionNo(), ownerID, account.DisplayName,
		amount, model.TransactionTypeDeposit, l.now().Unix())
	txn.MarkCompleted()
	account.AddTransaction(txn)

	if err := l.store.Save(account); err != nil {
		// 落盘失败：回滚入账与历史，归还已收缴的外部货币
		account.UndoDeposit(amount)
		account.RemoveTransaction(txn.TransactionID)
		if mErr := l.currency.Materialize(ctx, ownerID, amount); mErr != nil {
			log.Printf("[Ledger] 严重: 存款回滚后归还外部货币失败 owner=%s amount=%d: %v", ownerID, amount, mErr)
		}
		return nil, wrapError(ReasonPersistenceFailure, ownerID, amount, "保存账户失败，存款已回滚", err)
	}

	l.afterCommit(ctx, p, txn)
	l.notifyActor(ctx, p, account, fmt.Sprintf("存入 %d", amount))

	return &OpResult{Transaction: txn.Clone(), Balance: account.Balance}, nil
}

// Withdraw 取款：出账，落盘，然后才向协作方出钞
func (l *Ledger) Withdraw(ctx context.Context, ownerID, ownerName string, amount int64) (*OpResult, error) {
	p := l.Policy()
	if amount <= 0 || amount < p.MinTransactionAmount {
		return nil, newError(ReasonInvalidAmount, ownerID, amount,
			fmt.Sprintf("金额不能低于单笔最小值 %d", p.MinTransactionAmount))
	}

	entry := l.entryFor(ownerID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := l.loadLocked(entry, ownerID, ownerName); err != nil {
		return nil, err
	}
	account := entry.account
	l.refreshDisplayName(account, ownerName)

	now := l.now().Unix()
	if account.Balance < amount {
		return nil, newError(ReasonInsufficientFunds, ownerID, amount, "余额不足")
	}
	if !p.IsValidTransactionAmount(amount) {
		return nil, newError(ReasonInvalidAmount, ownerID, amount,
			fmt.Sprintf("金额超过单笔最大值 %d", p.MaxSingleTransaction))
	}
	if p.DailyWithdrawalLimit > 0 {
		remaining := account.RemainingDailyWithdrawal(p.DailyWithdrawalLimit, now)
		if amount > remaining {
			return nil, newError(ReasonLimitExceeded, ownerID, amount,
				fmt.Sprintf("超过每日取款限额，今日剩余可取 %d", remaining))
		}
	}

	account.Withdraw(amount, p.DailyWithdrawalLimit, now)
	txn := model.NewTransaction(idgen.GenerateTransactionNo(), ownerID, account.DisplayName,
		amount, model.TransactionTypeWithdraw, now)
	txn.MarkCompleted()
	account.AddTransaction(txn)

	if err := l.store.Save(account); err != nil {
		account.UndoWithdraw(amount)
		account.RemoveTransaction(txn.TransactionID)
		return nil, wrapError(ReasonPersistenceFailure, ownerID, amount, "保存账户失败，取款已回滚", err)
	}

	// 出钞必须在落盘之后：宁可补偿回滚，不可出了钞却没记账
	if err := l.currency.Materialize(ctx, ownerID, amount); err != nil {
		account.UndoWithdraw(amount)
		account.RemoveTransaction(txn.TransactionID)
		if sErr := l.store.Save(account); sErr != nil {
			log.Printf("[Ledger] 严重: 出钞失败后的补偿落盘也失败 owner=%s amount=%d: %v", ownerID, amount, sErr)
		}
		return nil, wrapError(ReasonPersistenceFailure, ownerID, amount, "出钞失败，取款已回滚", err)
	}

	l.afterCommit(ctx, p, txn)
	l.notifyActor(ctx, p, account, fmt.Sprintf("取出 %d", amount))

	return &OpResult{Transaction: txn.Clone(), Balance: account.Balance}, nil
}

// Transfer 转账：唯一涉及两个账户的复合操作
//
// 原子性设计：内存中先暂存两侧变更；发送方先落盘，之后才允许修改
// 接收方的内存对象并落盘；接收方落盘失败则反向回滚发送方并重新落盘。
// 两侧要么都持久提交，要么都不可见，钱既不会凭空消失也不会凭空产生
func (l *Ledger) Transfer(ctx context.Context, fromID, fromName, toID string, amount int64) (*OpResult, error) {
	if fromID == toID {
		return nil, newError(ReasonInvalidRecipient, fromID, amount, "不能转账给自己")
	}

	p := l.Policy()
	if amount <= 0 || amount < p.MinTransactionAmount {
		return nil, newError(ReasonInvalidAmount, fromID, amount,
			fmt.Sprintf("金额不能低于单笔最小值 %d", p.MinTransactionAmount))
	}
	fee := p.CalculateFee(amount)

	// 固定按 ownerID 字典序加锁
	firstID, secondID := fromID, toID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}
	first, second := l.entryFor(firstID), l.entryFor(secondID)
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	senderEntry, recipientEntry := first, second
	if firstID != fromID {
		senderEntry, recipientEntry = second, first
	}

	if err := l.loadLocked(senderEntry, fromID, fromName); err != nil {
		return nil, err
	}
	// 收款方不存在时按 Load 语义直接开户
	if err := l.loadLocked(recipientEntry, toID, ""); err != nil {
		return nil, err
	}
	sender, recipient := senderEntry.account, recipientEntry.account
	l.refreshDisplayName(sender, fromName)

	// 全部校验先于任何变更
	if !sender.CanTransfer(amount, fee) {
		return nil, newError(ReasonInsufficientFunds, fromID, amount,
			fmt.Sprintf("余额不足（含手续费 %d）", fee))
	}
	if !p.IsValidTransactionAmount(amount) {
		return nil, newError(ReasonInvalidAmount, fromID, amount,
			fmt.Sprintf("金额超过单笔最大值 %d", p.MaxSingleTransaction))
	}
	if !recipient.CanDeposit(amount) {
		return nil, newError(ReasonLimitExceeded, fromID, amount,
			fmt.Sprintf("对方账户将超过余额上限 %d", recipient.MaxBalance))
	}

	txn := model.NewTransaction(idgen.GenerateTransactionNo(), fromID, sender.DisplayName,
		amount, model.TransactionTypeTransfer, l.now().Unix())
	txn.SetTarget(toID, recipient.DisplayName)
	txn.SetFee(fee)

	sender.Transfer(amount, fee)
	txn.MarkCompleted()
	sender.AddTransaction(txn)

	if err := l.store.Save(sender); err != nil {
		sender.UndoTransfer(amount, fee)
		sender.RemoveTransaction(txn.TransactionID)
		return nil, wrapError(ReasonPersistenceFailure, fromID, amount, "保存转出方失败，转账已回滚", err)
	}

	// 发送方已持久提交，这之后才触碰接收方的内存对象
	recipient.Deposit(amount)

	if err := l.store.Save(recipient); err != nil {
		recipient.UndoDeposit(amount)
		sender.UndoTransfer(amount, fee)
		sender.RemoveTransaction(txn.TransactionID)
		if sErr := l.store.Save(sender); sErr != nil {
			// 补偿落盘失败，磁盘上钱被多扣：凭日志人工对账
			log.Printf("[Ledger] 严重: 转账回滚落盘失败 owner=%s 应退金额=%d: %v", fromID, amount+fee, sErr)
		}
		return nil, wrapError(ReasonPersistenceFailure, fromID, amount, "保存收款方失败，转账已回滚", err)
	}

	l.afterCommit(ctx, p, txn)
	if p.NotifyOnSend {
		msg := fmt.Sprintf("转出 %d 给 %s", amount, recipient.DisplayName)
		if p.ShowFeeInNotice && fee > 0 {
			msg += fmt.Sprintf("（手续费 %d）", fee)
		}
		l.notifyActor(ctx, p, sender, msg)
	}
	if p.NotifyOnReceive {
		l.notifier.Notify(ctx, toID, fmt.Sprintf("收到来自 %s 的转账 %d", sender.DisplayName, amount))
	}

	return &OpResult{Transaction: txn.Clone(), Balance: sender.Balance}, nil
}

// SaveAll 把缓存中的所有账户刷盘，返回成功条数
func (l *Ledger) SaveAll(ctx context.Context) (int, error) {
	saved := 0
	var firstErr error
	l.cache.Range(func(ownerID string, entry *accountEntry) bool {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		if entry.account == nil {
			return true
		}
		if err := l.store.Save(entry.account); err != nil {
			log.Printf("[Ledger] 刷盘失败 owner=%s: %v", ownerID, err)
			if firstErr == nil {
				firstErr = err
			}
			return true
		}
		saved++
		return true
	})
	log.Printf("[Ledger] 全量刷盘完成，成功 %d 个账户", saved)
	return saved, firstErr
}

// ClearCache 显式清空账户缓存；清空前逐个刷盘，避免丢失未落盘的窗口状态
func (l *Ledger) ClearCache(ctx context.Context) error {
	if _, err := l.SaveAll(ctx); err != nil {
		return wrapError(ReasonPersistenceFailure, "", 0, "清空缓存前刷盘失败", err)
	}
	l.cache.Range(func(ownerID string, _ *accountEntry) bool {
		l.cache.Delete(ownerID)
		return true
	})
	log.Printf("[Ledger] 账户缓存已清空")
	return nil
}

// afterCommit 交易持久提交后的统一出口：复制进异步队列 + 可选操作日志
func (l *Ledger) afterCommit(ctx context.Context, p config.LedgerConfig, txn *model.Transaction) {
	l.queue.Push(txn.Clone())
	if p.VerboseLogs {
		log.Printf("[Ledger] %s", txn.Summary())
	}
}

// notifyActor 给操作发起方发通知，按策略决定是否附带余额
func (l *Ledger) notifyActor(ctx context.Context, p config.LedgerConfig, account *model.Account, msg string) {
	if p.ShowBalanceInNotice {
		msg += fmt.Sprintf("，当前余额 %d", account.Balance)
	}
	l.notifier.Notify(ctx, account.OwnerID, msg)
}

// refreshDisplayName 展示名是可变信息，随操作顺带更新
func (l *Ledger) refreshDisplayName(account *model.Account, name string) {
	if name != "" && name != account.DisplayName {
		account.DisplayName = name
	}
}
