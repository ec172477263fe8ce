package services

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openMockGorm 在sqlmock之上打开一个GORM连接
func openMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return gdb, mock
}

func TestApplyPurchase(t *testing.T) {
	gdb, mock := openMockGorm(t)

	// 单条原子UPDATE完成入账
	mock.ExpectExec("UPDATE `influencers` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := ApplyPurchase(gdb, "CODE123", 3.00)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPurchase_UnknownCode(t *testing.T) {
	gdb, mock := openMockGorm(t)

	// 推广码不存在时影响0行，返回ErrInfluencerNotFound
	mock.ExpectExec("UPDATE `influencers` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := ApplyPurchase(gdb, "UNKNOWN", 3.00)
	assert.ErrorIs(t, err, ErrInfluencerNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPayoutCompletion(t *testing.T) {
	gdb, mock := openMockGorm(t)

	mock.ExpectExec("UPDATE `influencers` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := ApplyPayoutCompletion(gdb, 1, 50.00)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPayoutCompletion_DBError(t *testing.T) {
	gdb, mock := openMockGorm(t)

	dbErr := errors.New("connection lost")
	mock.ExpectExec("UPDATE `influencers` SET").
		WillReturnError(dbErr)

	err := ApplyPayoutCompletion(gdb, 1, 50.00)
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverwriteLedger_ZeroRowsIsNotError(t *testing.T) {
	gdb, mock := openMockGorm(t)

	// 账本本来就一致时MySQL报告0行受影响，不应视为达人不存在
	mock.ExpectExec("UPDATE `influencers` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := OverwriteLedger(gdb, 1, 120.50)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
