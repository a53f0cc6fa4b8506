package job

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"coinledger/internal/ledger"
	"coinledger/internal/model"
	"coinledger/internal/store"
)

// QueueDrain 异步队列排空任务
// 每次 tick 取走队列中最旧的一条已完成交易，写入归档表（PENDING）
// 交易在入队前已落盘，这里丢失条目不影响账本正确性
type QueueDrain struct {
	queue       *ledger.TransactionQueue
	archiveRepo *store.ArchiveRepository
	stopCh      chan struct{}
	interval    time.Duration
}

func NewQueueDrain(queue *ledger.TransactionQueue, archiveRepo *store.ArchiveRepository) *QueueDrain {
	return &QueueDrain{
		queue:       queue,
		archiveRepo: archiveRepo,
		stopCh:      make(chan struct{}),
		interval:    time.Second,
	}
}

func (d *QueueDrain) Start(ctx context.Context) {
	log.Println("[QueueDrain] 队列排空任务启动")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[QueueDrain] 收到停止信号，任务退出")
			return
		case <-d.stopCh:
			log.Println("[QueueDrain] 任务停止")
			return
		case <-ticker.C:
			d.drainOne(ctx)
		}
	}
}

func (d *QueueDrain) Stop() {
	close(d.stopCh)
}

func (d *QueueDrain) drainOne(ctx context.Context) {
	txn := d.queue.Pop()
	if txn == nil {
		return
	}

	payload, err := json.Marshal(txn)
	if err != nil {
		log.Printf("[QueueDrain] 序列化交易失败: id=%s, err=%v", txn.TransactionID, err)
		return
	}

	archive := &model.TransactionArchive{
		TransactionNo: txn.TransactionID,
		OwnerID:       txn.OwnerID,
		Payload:       string(payload),
		Summary:       txn.Summary(),
		Status:        model.ArchiveStatusPending,
	}
	if err := d.archiveRepo.Create(ctx, archive); err != nil {
		log.Printf("[QueueDrain] 写入归档失败: id=%s, err=%v", txn.TransactionID, err)
		return
	}

	log.Printf("[QueueDrain] 交易已归档: %s", txn.Summary())
}
