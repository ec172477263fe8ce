package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affiliate_engine/models"
	"affiliate_engine/services"
)

func newReconcileApp() *fiber.App {
	app := fiber.New()
	app.Post("/api/reconcile", ReconcileInfluencer)
	return app
}

// influencerRow 返回一条达人查询结果
func influencerRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "affiliate_code", "commission_rate"}).
		AddRow(1, "CODE123", 30.0)
}

func TestReconcileInfluencer_DiscrepanciesBlockAutoUpdate(t *testing.T) {
	mock := setupMockDB(t)
	app := newReconcileApp()
	t.Setenv("EXCHANGE_RATE_API_URL", "")

	now := time.Now()

	// 定位达人
	mock.ExpectQuery("SELECT (.+) FROM `influencers`").
		WillReturnRows(influencerRow())

	// 一个购买事件，但没有任何成功交易：必然产生差异
	mock.ExpectQuery("SELECT (.+) FROM `tracking_events`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "affiliate_code", "event_type", "user_id", "commission_earned", "created_at"}).
			AddRow(1, "CODE123", models.EventTypePDFPurchase, "u1", 3.00, now))

	mock.ExpectQuery("SELECT (.+) FROM `payment_transactions`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "currency", "status", "completed_at"}))

	// 存在差异时即使auto_update=true也不允许出现influencers表的UPDATE

	resp, payload := doJSONRequest(t, app, http.MethodPost, "/api/reconcile", fiber.Map{
		"influencer_id": 1,
		"auto_update":   true,
	})

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, false, payload["ledger_updated"])

	report, ok := payload["data"].(map[string]interface{})
	require.True(t, ok)
	discrepancies, ok := report["discrepancies"].([]interface{})
	require.True(t, ok)
	assert.Len(t, discrepancies, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileInfluencer_CleanReportAutoUpdatesLedger(t *testing.T) {
	mock := setupMockDB(t)
	app := newReconcileApp()
	t.Setenv("EXCHANGE_RATE_API_URL", "")

	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM `influencers`").
		WillReturnRows(influencerRow())

	// 事件与交易完全对得上：83500派萨 @ 兜底汇率83.5 @ 30% = $3.00
	mock.ExpectQuery("SELECT (.+) FROM `tracking_events`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "affiliate_code", "event_type", "user_id", "commission_earned", "created_at"}).
			AddRow(1, "CODE123", models.EventTypePDFPurchase, "u1", 3.00, now))

	mock.ExpectQuery("SELECT (.+) FROM `payment_transactions`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "currency", "status", "completed_at"}).
			AddRow(1, "u1", 83500, services.CurrencyINR, models.TransactionStatusSuccess, now))

	// 零差异且auto_update=true时整体覆盖账本
	mock.ExpectExec("UPDATE `influencers` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, payload := doJSONRequest(t, app, http.MethodPost, "/api/reconcile", fiber.Map{
		"influencer_id": 1,
		"auto_update":   true,
	})

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, true, payload["ledger_updated"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileInfluencer_TransactionStoreFailureAborts(t *testing.T) {
	mock := setupMockDB(t)
	app := newReconcileApp()
	t.Setenv("EXCHANGE_RATE_API_URL", "")

	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM `influencers`").
		WillReturnRows(influencerRow())

	mock.ExpectQuery("SELECT (.+) FROM `tracking_events`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "affiliate_code", "event_type", "user_id", "commission_earned", "created_at"}).
			AddRow(1, "CODE123", models.EventTypePDFPurchase, "u1", 3.00, now))

	// 交易表读取失败：整体中止，返回502且不产生任何写入
	mock.ExpectQuery("SELECT (.+) FROM `payment_transactions`").
		WillReturnError(&mysqldriver.MySQLError{Number: 1146, Message: "Table doesn't exist"})

	resp, payload := doJSONRequest(t, app, http.MethodPost, "/api/reconcile", fiber.Map{
		"influencer_id": 1,
		"auto_update":   true,
	})

	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, false, payload["success"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileInfluencer_RequiresIdentifier(t *testing.T) {
	setupMockDB(t)
	app := newReconcileApp()

	resp, payload := doJSONRequest(t, app, http.MethodPost, "/api/reconcile", fiber.Map{})

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, payload["success"])
}
