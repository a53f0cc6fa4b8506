package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coinledger/internal/config"
	"coinledger/internal/model"
)

var (
	ErrAccountNotFound = errors.New("账户不存在")
	ErrInvalidOwnerID  = errors.New("账户ID非法")
)

// AccountStore 账户持久化层
//
// 每个账户对应 dataDir 下的一个 JSON 文件（<ownerID>.json）。
// 写入采用「先写临时文件再 rename」的原子替换策略，崩溃时原文件不会损坏。
// 开启 AutoBackup 时，每次覆盖前先把旧文件快照到 backupDir，
// 并清理超过保留天数的历史快照。
type AccountStore struct {
	dataDir   string
	backupDir string
	policy    func() config.LedgerConfig
	now       func() time.Time
}

// NewAccountStore 创建账户存储，目录不存在时自动创建
func NewAccountStore(dataDir, backupDir string, policy func() config.LedgerConfig) (*AccountStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建备份目录失败: %w", err)
	}
	return &AccountStore{
		dataDir:   dataDir,
		backupDir: backupDir,
		policy:    policy,
		now:       time.Now,
	}, nil
}

// SetNowFunc 注入时间源，仅测试使用
func (s *AccountStore) SetNowFunc(now func() time.Time) {
	s.now = now
}

// Load 读取账户；不存在时按当前策略默认值开户并立即落盘，
// 保证首次访问的账户即使之后没有任何操作也是持久的
func (s *AccountStore) Load(ownerID, displayNameHint string) (*model.Account, error) {
	account, err := s.Get(ownerID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	p := s.policy()
	account = model.NewAccount(ownerID, displayNameHint, p.DefaultStartBalance, p.DefaultMaxBalance)
	if err := s.Save(account); err != nil {
		return nil, err
	}
	return account, nil
}

// Get 读取已有账户，不存在时返回 ErrAccountNotFound，不会创建
func (s *AccountStore) Get(ownerID string) (*model.Account, error) {
	path, err := s.accountPath(ownerID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("读取账户文件失败: %w", err)
	}

	account := &model.Account{}
	if err := json.Unmarshal(data, account); err != nil {
		return nil, fmt.Errorf("解析账户文件失败: %w", err)
	}
	if account.TransactionHistory == nil {
		account.TransactionHistory = make([]*model.Transaction, 0)
	}
	return account, nil
}

// Save 原子写入账户完整记录
// 流程：可选备份旧文件 -> 写入 .tmp -> rename 替换正式文件
func (s *AccountStore) Save(account *model.Account) error {
	path, err := s.accountPath(account.OwnerID)
	if err != nil {
		return err
	}

	p := s.policy()
	if p.AutoBackup {
		if err := s.backupExisting(account.OwnerID, path, p.BackupRetentionDays); err != nil {
			// 备份失败按持久化失败处理，不允许在没有快照的情况下覆盖旧档
			return fmt.Errorf("备份账户文件失败: %w", err)
		}
	}

	data, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化账户失败: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("替换账户文件失败: %w", err)
	}
	return nil
}

// Exists 账户文件是否存在
func (s *AccountStore) Exists(ownerID string) bool {
	path, err := s.accountPath(ownerID)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// ListOwners 列出所有已持久化的账户ID
func (s *AccountStore) ListOwners() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("读取数据目录失败: %w", err)
	}

	owners := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		owners = append(owners, strings.TrimSuffix(name, ".json"))
	}
	return owners, nil
}

// accountPath 组装账户文件路径，拒绝包含路径分隔符的ID
func (s *AccountStore) accountPath(ownerID string) (string, error) {
	if ownerID == "" || strings.ContainsAny(ownerID, `/\.`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidOwnerID, ownerID)
	}
	return filepath.Join(s.dataDir, ownerID+".json"), nil
}
