package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"affiliate_engine/database"
)

// setupMockDB 在sqlmock之上打开GORM连接并注入全局数据库句柄
func setupMockDB(t *testing.T) sqlmock.Sqlmock {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	database.SetDB(gdb)
	return mock
}

// doJSONRequest 向测试应用发送JSON请求并解析响应体
func doJSONRequest(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp, payload
}

func newTrackingApp() *fiber.App {
	app := fiber.New()
	app.Post("/api/track", SubmitTrackingEvent)
	return app
}

func TestSubmitTrackingEvent_SignupTracked(t *testing.T) {
	mock := setupMockDB(t)
	app := newTrackingApp()

	// 去重预检查无命中
	mock.ExpectQuery("SELECT (.+) FROM `tracking_events`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// 事件落库
	mock.ExpectExec("INSERT INTO `tracking_events`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// 注册计数入账
	mock.ExpectExec("UPDATE `influencers` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, payload := doJSONRequest(t, app, http.MethodPost, "/api/track", fiber.Map{
		"affiliate_code": "CODE123",
		"event_type":     "signup",
		"user_id":        "u1",
	})

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, true, payload["tracked"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitTrackingEvent_DuplicateSignupSkipped(t *testing.T) {
	mock := setupMockDB(t)
	app := newTrackingApp()

	// 预检查命中已有的注册事件，直接跳过，不应有INSERT
	mock.ExpectQuery("SELECT (.+) FROM `tracking_events`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	resp, payload := doJSONRequest(t, app, http.MethodPost, "/api/track", fiber.Map{
		"affiliate_code": "CODE123",
		"event_type":     "signup",
		"user_id":        "u1",
	})

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, false, payload["tracked"])
	assert.Equal(t, true, payload["skipped"])
	assert.Equal(t, SkipReasonDuplicateSignup, payload["reason"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitTrackingEvent_ConcurrentDuplicateSkipped(t *testing.T) {
	mock := setupMockDB(t)
	app := newTrackingApp()

	// 预检查没有命中，但并发对手先插入成功，唯一索引冲突按重复处理
	mock.ExpectQuery("SELECT (.+) FROM `tracking_events`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	mock.ExpectExec("INSERT INTO `tracking_events`").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"})

	resp, payload := doJSONRequest(t, app, http.MethodPost, "/api/track", fiber.Map{
		"affiliate_code": "CODE123",
		"event_type":     "signup",
		"user_id":        "u1",
	})

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["skipped"])
	assert.Equal(t, SkipReasonDuplicateSignup, payload["reason"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitTrackingEvent_LedgerFailureStillTracked(t *testing.T) {
	mock := setupMockDB(t)
	app := newTrackingApp()

	// 事件落库成功后账本更新失败：事件不回滚，响应带告警
	mock.ExpectQuery("SELECT (.+) FROM `tracking_events`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	mock.ExpectExec("INSERT INTO `tracking_events`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec("UPDATE `influencers` SET").
		WillReturnError(&mysqldriver.MySQLError{Number: 1205, Message: "Lock wait timeout"})

	resp, payload := doJSONRequest(t, app, http.MethodPost, "/api/track", fiber.Map{
		"affiliate_code": "CODE123",
		"event_type":     "signup",
		"user_id":        "u1",
	})

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, payload["tracked"])
	assert.NotEmpty(t, payload["warning"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitTrackingEvent_Validation(t *testing.T) {
	setupMockDB(t)
	app := newTrackingApp()

	cases := []struct {
		name string
		body fiber.Map
	}{
		{"缺少推广码", fiber.Map{"event_type": "click"}},
		{"缺少事件类型", fiber.Map{"affiliate_code": "CODE123"}},
		{"未知事件类型", fiber.Map{"affiliate_code": "CODE123", "event_type": "unknown"}},
		{"注册缺少用户ID", fiber.Map{"affiliate_code": "CODE123", "event_type": "signup"}},
		{"问卷缺少会话ID", fiber.Map{"affiliate_code": "CODE123", "event_type": "questionnaire_completed", "test_id": "t1"}},
		{"佣金为负数", fiber.Map{"affiliate_code": "CODE123", "event_type": "pdf_purchased", "commission_earned": -1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, payload := doJSONRequest(t, app, http.MethodPost, "/api/track", tc.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, false, payload["success"])
		})
	}
}
