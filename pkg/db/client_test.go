package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type widget struct {
	ID   int
	Name string
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))
	return conn
}

func countWidgets(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&widget{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsOrRollsBack(t *testing.T) {
	conn := openSQLite(t)
	client := NewFromConn(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&widget{Name: "kept"}).Error
	}))
	assert.EqualValues(t, 1, countWidgets(t, conn))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&widget{Name: "dropped"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	assert.EqualValues(t, 1, countWidgets(t, conn))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := openSQLite(t)
	client := NewFromConn(conn)

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&widget{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("kaboom")
		})
	})
	assert.Zero(t, countWidgets(t, conn))
}

func TestWithTxRetriesSerializationFailures(t *testing.T) {
	conn := openSQLite(t)
	client := NewFromConn(conn)

	calls := 0
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		calls++
		if err := tx.Create(&widget{Name: fmt.Sprintf("attempt-%d", calls)}).Error; err != nil {
			return err
		}
		if calls == 1 {
			return fmt.Errorf("reserve stock: %w", &pgconn.PgError{Code: "40001"})
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.EqualValues(t, 1, countWidgets(t, conn), "the failed attempt must not leave rows behind")
}

func TestWithTxGivesUpAfterMaxAttempts(t *testing.T) {
	client := &Client{conn: openSQLite(t), txAttempts: 2}

	calls := 0
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.Error(t, err)
	assert.True(t, IsSerializationFailure(err))
	assert.Equal(t, 2, calls)
}

func TestWithTxDoesNotRetryOtherErrors(t *testing.T) {
	client := NewFromConn(openSQLite(t))

	calls := 0
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		calls++
		return &pgconn.PgError{Code: "23505"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPing(t *testing.T) {
	client := NewFromConn(openSQLite(t))
	require.NoError(t, client.Ping(context.Background()))
}

func TestPingPostgresWithSQLMock(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	mock.ExpectPing()
	client := NewFromConn(conn)
	require.NoError(t, client.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	require.Error(t, client.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectorSelection(t *testing.T) {
	_, err := dialectorFor(config.DBConfig{}, config.FeatureFlagsConfig{})
	require.Error(t, err, "postgres needs a DSN")

	d, err := dialectorFor(config.DBConfig{SQLitePath: "x.db"}, config.FeatureFlagsConfig{UseSQLite: true})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = dialectorFor(config.DBConfig{Driver: "sqlite"}, config.FeatureFlagsConfig{})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = dialectorFor(config.DBConfig{DSN: "postgres://localhost/shop"}, config.FeatureFlagsConfig{})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	assert.True(t, IsUniqueViolation(pgErr, ""))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "users_email_key"))
	assert.False(t, IsUniqueViolation(pgErr, "other_constraint"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: users.email"), ""))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey, ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsSerializationFailure(fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40P01"})))
	assert.True(t, IsSerializationFailure(errors.New("database is locked")))
	assert.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsSerializationFailure(nil))
}

func TestQueryLoggerReportsSlowAndFailedQueries(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	ql := newQueryLogger(logg, 10*time.Millisecond)
	ctx := context.Background()
	query := func() (string, int64) { return "SELECT * FROM orders", 3 }

	ql.Trace(ctx, time.Now(), query, nil)
	assert.Empty(t, buf.String(), "fast successful queries are quiet")

	ql.Trace(ctx, time.Now(), query, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "not found is a normal outcome")

	ql.Trace(ctx, time.Now().Add(-time.Second), query, nil)
	assert.Contains(t, buf.String(), "db.query.slow")
	assert.Contains(t, buf.String(), "SELECT * FROM orders")
	buf.Reset()

	ql.Trace(ctx, time.Now(), query, errors.New("relation does not exist"))
	assert.Contains(t, buf.String(), "db.query.failed")
	assert.Contains(t, buf.String(), "relation does not exist")
	buf.Reset()

	ql.LogMode(gormlogger.Silent).Trace(ctx, time.Now().Add(-time.Second), query, errors.New("x"))
	assert.Empty(t, buf.String())
}

func TestQueryLoggerWithoutLoggerDiscards(t *testing.T) {
	assert.Equal(t, gormlogger.Discard, newQueryLogger(nil, 0))
}
