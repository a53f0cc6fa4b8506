package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// backupExisting 把账户当前落盘文件快照到备份目录，并顺手清理该账户的过期快照
// 备份文件名：<ownerID>_<unix秒>.json
func (s *AccountStore) backupExisting(ownerID, path string, retentionDays int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil // 首次保存，没有可备份的旧文件
		}
		return err
	}

	backupPath := filepath.Join(s.backupDir,
		fmt.Sprintf("%s_%d.json", ownerID, s.now().Unix()))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return err
	}

	return s.pruneOwnerBackups(ownerID, retentionDays)
}

// pruneOwnerBackups 删除单个账户超过保留天数的备份快照
func (s *AccountStore) pruneOwnerBackups(ownerID string, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := s.now().Add(-time.Duration(retentionDays) * 24 * time.Hour).Unix()

	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return err
	}

	prefix := ownerID + "_"
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		ts, ok := backupTimestamp(name)
		if !ok {
			continue
		}
		if ts < cutoff {
			os.Remove(filepath.Join(s.backupDir, name))
		}
	}
	return nil
}

// PruneBackups 全量清扫备份目录，供维护任务定时调用
// 返回删除的快照数量
func (s *AccountStore) PruneBackups(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-time.Duration(retentionDays) * 24 * time.Hour).Unix()

	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return 0, fmt.Errorf("读取备份目录失败: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		ts, ok := backupTimestamp(name)
		if !ok {
			continue
		}
		if ts < cutoff {
			if err := os.Remove(filepath.Join(s.backupDir, name)); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// backupTimestamp 从备份文件名解析 Unix 时间戳
// 文件名形如 <ownerID>_<unix>.json，ownerID 自身可能包含下划线，取最后一段
func backupTimestamp(name string) (int64, bool) {
	if !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	base := strings.TrimSuffix(name, ".json")
	idx := strings.LastIndex(base, "_")
	if idx < 0 {
		return 0, false
	}
	ts, err := strconv.ParseInt(base[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
