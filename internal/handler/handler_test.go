package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"coinledger/internal/config"
	"coinledger/internal/ledger"
	"coinledger/internal/store"
	"coinledger/internal/model"
	"coinledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testPolicy() config.LedgerConfig {
	return config.LedgerConfig{
		TransactionFeeRate:   0.05,
		DefaultStartBalance:  0,
		DefaultMaxBalance:    1000,
		MinTransactionAmount: 1,
		MaxSingleTransaction: 500,
		DailyWithdrawalLimit: 600,
		TransactionQueueSize: 100,
		CurrenciesAccepted:   []string{"Coin_10", "Coin_50", "Coin_100"},
	}
}

func newTestServer(t *testing.T) (http.Handler, *store.ArchiveRepository) {
	t.Helper()
	policy := testPolicy()
	st, err := store.NewAccountStore(
		filepath.Join(t.TempDir(), "accounts"),
		filepath.Join(t.TempDir(), "backups"),
		func() config.LedgerConfig { return policy },
	)
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "archive.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.TransactionArchive{}))
	archiveRepo := store.NewArchiveRepository(db)

	l := ledger.NewLedger(st, policy, ledger.TellerCurrency{}, ledger.NopNotifier{})
	return SetupRouter(l, archiveRepo), archiveRepo
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) response.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestDepositWithdrawTransferFlow(t *testing.T) {
	router, _ := newTestServer(t)

	resp := doJSON(t, router, http.MethodPost, "/api/v1/account/deposit", gin.H{
		"owner_id": "A", "owner_name": "甲", "amount": 100,
	})
	require.Equal(t, response.CodeSuccess, resp.Code)

	resp = doJSON(t, router, http.MethodPost, "/api/v1/account/withdraw", gin.H{
		"owner_id": "A", "amount": 50,
	})
	require.Equal(t, response.CodeSuccess, resp.Code)

	resp = doJSON(t, router, http.MethodPost, "/api/v1/transfer/execute", gin.H{
		"from_owner_id": "A", "to_owner_id": "B", "amount": 40,
	})
	require.Equal(t, response.CodeSuccess, resp.Code)

	// 余额查询走只读路径
	resp = doJSON(t, router, http.MethodGet, "/api/v1/account/balance?owner_id=A", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(8), data["balance"])

	resp = doJSON(t, router, http.MethodGet, "/api/v1/account/balance?owner_id=B", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data = resp.Data.(map[string]interface{})
	assert.Equal(t, float64(40), data["balance"])
}

func TestBusinessErrorCodes(t *testing.T) {
	router, _ := newTestServer(t)

	// 余额不足
	resp := doJSON(t, router, http.MethodPost, "/api/v1/account/withdraw", gin.H{
		"owner_id": "A", "amount": 50,
	})
	assert.Equal(t, response.CodeInsufficientFunds, resp.Code)

	// 自己转给自己
	resp = doJSON(t, router, http.MethodPost, "/api/v1/transfer/execute", gin.H{
		"from_owner_id": "A", "to_owner_id": "A", "amount": 10,
	})
	assert.Equal(t, response.CodeInvalidRecipient, resp.Code)

	// 非创建型查询：账户不存在
	resp = doJSON(t, router, http.MethodGet, "/api/v1/account/history?owner_id=ghost", nil)
	assert.Equal(t, response.CodeAccountNotFound, resp.Code)
}

func TestParamValidation(t *testing.T) {
	router, _ := newTestServer(t)

	// 缺 owner_id
	resp := doJSON(t, router, http.MethodGet, "/api/v1/account/balance", nil)
	assert.Equal(t, response.CodeParamError, resp.Code)

	// 金额非正在绑定层就被拦下
	resp = doJSON(t, router, http.MethodPost, "/api/v1/account/deposit", gin.H{
		"owner_id": "A", "amount": -10,
	})
	assert.Equal(t, response.CodeParamError, resp.Code)

	// 货币类别白名单
	resp = doJSON(t, router, http.MethodPost, "/api/v1/account/deposit", gin.H{
		"owner_id": "A", "amount": 10, "currency": "Coin_500",
	})
	assert.Equal(t, response.CodeParamError, resp.Code)

	resp = doJSON(t, router, http.MethodPost, "/api/v1/account/deposit", gin.H{
		"owner_id": "A", "amount": 10, "currency": "Coin_10",
	})
	assert.Equal(t, response.CodeSuccess, resp.Code)
}

func TestDailyLimitEndpoint(t *testing.T) {
	router, _ := newTestServer(t)

	resp := doJSON(t, router, http.MethodPost, "/api/v1/account/deposit", gin.H{
		"owner_id": "A", "amount": 500,
	})
	require.Equal(t, response.CodeSuccess, resp.Code)

	resp = doJSON(t, router, http.MethodPost, "/api/v1/account/withdraw", gin.H{
		"owner_id": "A", "amount": 200,
	})
	require.Equal(t, response.CodeSuccess, resp.Code)

	resp = doJSON(t, router, http.MethodGet, "/api/v1/account/daily-limit?owner_id=A", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(400), data["remaining"])
}

func TestAdminEndpoints(t *testing.T) {
	router, _ := newTestServer(t)

	resp := doJSON(t, router, http.MethodPost, "/api/v1/account/deposit", gin.H{
		"owner_id": "A", "amount": 100,
	})
	require.Equal(t, response.CodeSuccess, resp.Code)

	resp = doJSON(t, router, http.MethodPost, "/api/v1/admin/save-all", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["saved"])

	resp = doJSON(t, router, http.MethodPost, "/api/v1/admin/cache/clear", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)

	// 缓存清空后数据仍可从磁盘取回
	resp = doJSON(t, router, http.MethodGet, "/api/v1/account/balance?owner_id=A", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data = resp.Data.(map[string]interface{})
	assert.Equal(t, float64(100), data["balance"])
}

func TestArchiveEndpoint(t *testing.T) {
	router, repo := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &model.TransactionArchive{
			TransactionNo: fmt.Sprintf("TXN%d", i),
			OwnerID:       "A",
			Payload:       "{}",
			Summary:       "测试流水",
			Status:        model.ArchiveStatusPending,
		}))
	}

	resp := doJSON(t, router, http.MethodGet, "/api/v1/account/archive?owner_id=A&page=1&page_size=2", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(3), data["total"])
	assert.Len(t, data["list"], 2)

	resp = doJSON(t, router, http.MethodGet, "/api/v1/account/archive", nil)
	assert.Equal(t, response.CodeParamError, resp.Code)
}
