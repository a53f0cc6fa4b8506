package model

import (
	"time"
)

const (
	ArchiveStatusPending = "PENDING"
	ArchiveStatusSent    = "SENT"
	ArchiveStatusFailed  = "FAILED"
)

// TransactionArchive 交易归档表
// 异步队列排空后的落库形态，同时承担投递到 Kafka 的 outbox 角色
//
// 【重要】归档表设计原则：
// 1. 业务字段只追加不修改，保证审计可追溯
// 2. Status/RetryCount 仅由投递任务维护
type TransactionArchive struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	OwnerID       string    `gorm:"type:varchar(64);index;not null" json:"owner_id"`             // 发起方账户ID
	Payload       string    `gorm:"type:text;not null" json:"payload"`                           // 交易 JSON 快照
	Summary       string    `gorm:"type:varchar(256)" json:"summary"`                            // 审计摘要
	Status        string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount    int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TransactionArchive) TableName() string {
	return "transaction_archive"
}
