package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/r2blaze/r2blaze-backend/pkg/config"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
)

type ledgerRow struct {
	ID        int
	Reference string `gorm:"uniqueIndex"`
}

func openSQLite(t *testing.T, logg *logger.Logger) *Client {
	t.Helper()
	client, err := New(context.Background(), config.DBConfig{
		Driver: DriverSQLite,
		DSN:    "file:" + t.Name() + "?mode=memory&cache=shared",
	}, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().AutoMigrate(&ledgerRow{}))
	return client
}

func countRows(t *testing.T, client *Client) int64 {
	t.Helper()
	var n int64
	require.NoError(t, client.DB().Model(&ledgerRow{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	client := openSQLite(t, nil)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Reference: "r2b_kept"}).Error
	}))
	assert.Equal(t, int64(1), countRows(t, client))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&ledgerRow{Reference: "r2b_dropped"}).Error; err != nil {
			return err
		}
		return errors.New("settlement aborted")
	})
	require.EqualError(t, err, "settlement aborted")
	assert.Equal(t, int64(1), countRows(t, client))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	client := openSQLite(t, nil)

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&ledgerRow{Reference: "r2b_panic"})
			panic("boom")
		})
	})
	assert.Equal(t, int64(0), countRows(t, client))
}

func TestNewRejectsMissingDSNAndUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, nil)
	require.Error(t, err)

	_, err = New(context.Background(), config.DBConfig{Driver: "mysql", DSN: "x"}, nil)
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestQueryLoggerSkipsExpectedErrors(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	client := openSQLite(t, logg)
	buf.Reset()

	ctx := context.Background()
	require.NoError(t, client.DB().WithContext(ctx).Create(&ledgerRow{Reference: "r2b_dup"}).Error)
	err := client.DB().WithContext(ctx).Create(&ledgerRow{Reference: "r2b_dup"}).Error
	require.True(t, IsUniqueViolation(err, ""))

	var row ledgerRow
	err = client.DB().WithContext(ctx).Where("reference = ?", "r2b_none").First(&row).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.NotContains(t, buf.String(), "db.query_failed")
}

func TestQueryLoggerReportsSlowStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	ql := newQueryLogger(logg, time.Millisecond)

	ql.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	assert.Contains(t, buf.String(), "db.slow_query")
	assert.Contains(t, buf.String(), "SELECT 1")
}

func TestPing(t *testing.T) {
	client := openSQLite(t, nil)
	require.NoError(t, client.Ping(context.Background()))
}
