package job

import (
	"context"
	"log"
	"time"

	"coinledger/internal/config"
	"coinledger/internal/infrastructure/mq"
	"coinledger/internal/model"
	"coinledger/internal/store"
)

// ArchiveSender 归档投递任务
// 扫描 PENDING 归档行并投递到 Kafka 审计 topic，成功标记 SENT，
// 连续失败超过 MaxRetryCount 后标记 FAILED 不再重试
type ArchiveSender struct {
	archiveRepo *store.ArchiveRepository
	producer    *mq.Producer
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewArchiveSender(archiveRepo *store.ArchiveRepository, producer *mq.Producer, cfg *config.Config) *ArchiveSender {
	return &ArchiveSender{
		archiveRepo: archiveRepo,
		producer:    producer,
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    5 * time.Second,
		batchSize:   100,
	}
}

func (s *ArchiveSender) Start(ctx context.Context) {
	log.Println("[ArchiveSender] 审计投递任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ArchiveSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[ArchiveSender] 任务停止")
			return
		case <-ticker.C:
			s.processPending(ctx)
		}
	}
}

func (s *ArchiveSender) Stop() {
	close(s.stopCh)
}

func (s *ArchiveSender) processPending(ctx context.Context) {
	archives, err := s.archiveRepo.GetPending(ctx, s.batchSize)
	if err != nil {
		log.Printf("[ArchiveSender] 查询待投递归档失败: %v", err)
		return
	}

	for _, archive := range archives {
		s.send(ctx, archive)
	}
}

func (s *ArchiveSender) send(ctx context.Context, archive *model.TransactionArchive) {
	err := s.producer.Send(s.cfg.Kafka.Topic.TransactionAudit, archive.TransactionNo, archive.Payload)

	if err == nil {
		if updateErr := s.archiveRepo.UpdateStatus(ctx, archive.ID, model.ArchiveStatusSent); updateErr != nil {
			log.Printf("[ArchiveSender] 更新归档状态失败: id=%d, err=%v", archive.ID, updateErr)
		}
		return
	}

	log.Printf("[ArchiveSender] 投递失败: id=%d, err=%v", archive.ID, err)

	if archive.RetryCount+1 >= s.cfg.Archive.MaxRetryCount {
		if err := s.archiveRepo.MarkAsFailed(ctx, archive.ID); err != nil {
			log.Printf("[ArchiveSender] 标记失败状态失败: id=%d, err=%v", archive.ID, err)
		} else {
			log.Printf("[ArchiveSender] 超过最大重试次数，放弃投递: id=%d", archive.ID)
		}
		return
	}

	if err := s.archiveRepo.IncrementRetryCount(ctx, archive.ID); err != nil {
		log.Printf("[ArchiveSender] 增加重试次数失败: id=%d, err=%v", archive.ID, err)
	}
}
