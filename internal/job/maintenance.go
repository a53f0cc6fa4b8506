package job

import (
	"context"
	"log"

	"coinledger/internal/ledger"
	"coinledger/internal/store"

	"github.com/robfig/cron/v3"
)

// Maintenance 定时维护任务：
//   - 每 5 分钟把缓存中的账户全量刷盘（正常路径每笔操作已即时落盘，
//     这里只为兜住惰性窗口重置这类未触发保存的内存变更）
//   - 每天凌晨 3 点全量清扫过期备份快照
//
// 维护任务与请求处理相互独立，单次动作只占用单个账户的临界区
type Maintenance struct {
	ledger *ledger.Ledger
	store  *store.AccountStore
	cron   *cron.Cron
}

func NewMaintenance(l *ledger.Ledger, st *store.AccountStore) *Maintenance {
	return &Maintenance{
		ledger: l,
		store:  st,
		cron:   cron.New(),
	}
}

func (m *Maintenance) Start(ctx context.Context) {
	m.cron.AddFunc("@every 5m", func() {
		if _, err := m.ledger.SaveAll(ctx); err != nil {
			log.Printf("[Maintenance] 定时刷盘存在失败项: %v", err)
		}
	})

	m.cron.AddFunc("0 3 * * *", func() {
		retention := m.ledger.Policy().BackupRetentionDays
		removed, err := m.store.PruneBackups(retention)
		if err != nil {
			log.Printf("[Maintenance] 备份清扫失败: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("[Maintenance] 清理过期备份 %d 个（保留 %d 天）", removed, retention)
		}
	})

	m.cron.Start()
	log.Println("[Maintenance] 维护任务启动")
}

func (m *Maintenance) Stop() {
	stopCtx := m.cron.Stop()
	<-stopCtx.Done()
	log.Println("[Maintenance] 维护任务停止")
}
