package ledger

import (
	"log"
	"sync"

	"coinledger/internal/model"
)

// TransactionQueue 已完成交易的异步 FIFO 队列
//
// 【设计思考】该队列不在正确性路径上：交易在入队之前已经落盘。
// 队列只为下游（归档、审计、分析）解耦存在，所以满了就丢弃并告警，
// 绝不反压阻塞账本操作。进程崩溃丢队列内容是可接受的
type TransactionQueue struct {
	mu       sync.Mutex
	entries  []*model.Transaction
	capacity int
	dropped  int64
}

func NewTransactionQueue(capacity int) *TransactionQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &TransactionQueue{
		entries:  make([]*model.Transaction, 0, capacity),
		capacity: capacity,
	}
}

// Push 入队；队列已满时丢弃并返回 false
func (q *TransactionQueue) Push(txn *model.Transaction) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.capacity {
		q.dropped++
		log.Printf("[TransactionQueue] 队列已满(%d)，丢弃交易: %s", q.capacity, txn.TransactionID)
		return false
	}
	q.entries = append(q.entries, txn)
	return true
}

// Pop 弹出最旧的一条；队列为空时返回 nil
func (q *TransactionQueue) Pop() *model.Transaction {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}
	txn := q.entries[0]
	q.entries = q.entries[1:]
	return txn
}

// Len 当前队列长度
func (q *TransactionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Dropped 累计丢弃条数
func (q *TransactionQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// SetCapacity 热更新容量；已入队的条目不受影响
func (q *TransactionQueue) SetCapacity(capacity int) {
	if capacity <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.capacity = capacity
}
