package handler

import (
	"strconv"

	"coinledger/internal/store"
	"coinledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ArchiveHandler 归档查询处理器
// 账户自身的 TransactionHistory 只保留最近 100 条，更早的流水去归档表查
type ArchiveHandler struct {
	repo *store.ArchiveRepository
}

func NewArchiveHandler(repo *store.ArchiveRepository) *ArchiveHandler {
	return &ArchiveHandler{repo: repo}
}

// ListByOwner 分页查询某账户的归档流水
// GET /api/v1/account/archive?owner_id=xxx&page=1&page_size=20
func (h *ArchiveHandler) ListByOwner(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		response.ParamError(c, "owner_id 参数不能为空")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	archives, total, err := h.repo.ListByOwner(c.Request.Context(), ownerID, page, pageSize)
	if err != nil {
		response.ServerError(c, "查询归档失败: "+err.Error())
		return
	}

	response.Success(c, gin.H{
		"owner_id": ownerID,
		"list":     archives,
		"total":    total,
		"page":     page,
	})
}
