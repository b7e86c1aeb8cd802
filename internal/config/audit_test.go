package config

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockAudit wires a PostgresAudit around a sqlmock connection so
// RecordRevision can be exercised without a real Postgres instance,
// grounded on the teacher's infrastructure/db connection tests.
func newMockAudit(t *testing.T) (*PostgresAudit, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &PostgresAudit{db: sqlx.NewDb(db, "postgres"), timeout: DefaultDBConfig().QueryTimeout}, mock
}

func TestPostgresAudit_RecordRevision(t *testing.T) {
	audit, mock := newMockAudit(t)

	mock.ExpectExec("INSERT INTO config_revisions").
		WithArgs(300.0, true, true, 8, 2).
		WillReturnResult(sqlmock.NewResult(1, 1))

	cfg := Default()
	cfg.ValueRequire = 300
	cfg.TradeAggregation.WindowSeconds = 8
	cfg.ActiveChatIDs = []int64{111, 222}

	err := audit.RecordRevision(cfg)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAudit_RecordRevision_QueryError(t *testing.T) {
	audit, mock := newMockAudit(t)

	mock.ExpectExec("INSERT INTO config_revisions").
		WillReturnError(assert.AnError)

	err := audit.RecordRevision(Default())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAudit_Close_NilSafe(t *testing.T) {
	var audit *PostgresAudit
	assert.NoError(t, audit.Close())
}

func TestNewPostgresAudit_DisabledReturnsNil(t *testing.T) {
	audit, err := NewPostgresAudit(DefaultDBConfig())
	require.NoError(t, err)
	assert.Nil(t, audit)
}

func TestNewPostgresAudit_EnabledRequiresDSN(t *testing.T) {
	cfg := DefaultDBConfig()
	cfg.Enabled = true
	_, err := NewPostgresAudit(cfg)
	assert.Error(t, err)
}
