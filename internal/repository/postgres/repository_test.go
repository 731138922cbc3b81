package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

func newMock(t *testing.T) (BaseRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBaseRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, wrap("insert", &pq.Error{Code: pqUniqueViolation}), repository.ErrDuplicate)
	assert.ErrorIs(t, wrap("delete", &pq.Error{Code: pqForeignKeyViolation}), repository.ErrInUse)
	assert.NoError(t, wrap("noop", nil))

	other := errors.New("connection reset")
	assert.ErrorIs(t, wrap("select", other), other)
}

func TestSessionRevokeAllKeepsCurrent(t *testing.T) {
	base, mock := newMock(t)
	repo := NewSessionRepository(base)
	userID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE active_sessions SET is_active = FALSE")).
		WithArgs(userID, "keep-me").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAll(context.Background(), userID, "keep-me")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteStageInUse(t *testing.T) {
	base, mock := newMock(t)
	repo := NewPipelineRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.DeleteStage(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func opportunityRows(o *model.Opportunity) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "organization_id", "pipeline_id", "stage_id", "customer_id", "user_id", "title", "description",
		"value", "currency", "source", "custom_fields", "status", "expected_close_date", "last_stage_change",
		"created_at", "updated_at",
	}).AddRow(
		o.ID.String(), o.OrganizationID.String(), o.PipelineID.String(), o.StageID.String(), nil, o.UserID.String(),
		o.Title, nil, o.Value, o.Currency, nil, nil, o.Status, nil, *o.LastStageChange,
		o.CreatedAt, o.UpdatedAt,
	)
}

func sampleOpportunity() *model.Opportunity {
	changed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &model.Opportunity{
		Base:            model.Base{ID: uuid.New(), CreatedAt: changed, UpdatedAt: changed},
		OrganizationID:  uuid.New(),
		PipelineID:      uuid.New(),
		StageID:         uuid.New(),
		UserID:          uuid.New(),
		Title:           "Renewal",
		Value:           1200,
		Currency:        model.DefaultCurrency,
		Status:          model.OpportunityStatusOpen,
		LastStageChange: &changed,
	}
}

func TestChangeStageStaleWrite(t *testing.T) {
	base, mock := newMock(t)
	repo := NewOpportunityRepository(base)
	opp := sampleOpportunity()
	target := &model.PipelineStage{Base: model.Base{ID: uuid.New()}, IsWon: true}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM opportunities WHERE id = $1 AND organization_id = $2 FOR UPDATE")).
		WithArgs(opp.ID, opp.OrganizationID).
		WillReturnRows(opportunityRows(opp))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE opportunities")).
		WithArgs(target.ID, model.OpportunityStatusWon, sqlmock.AnyArg(), sqlmock.AnyArg(), opp.ID, opp.StageID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, _, err := repo.ChangeStage(context.Background(), opp.OrganizationID, opp.ID,
		func(o *model.Opportunity) (*model.StageHistory, error) {
			return o.ApplyStage(target, uuid.New(), nil, time.Now()), nil
		})
	assert.ErrorIs(t, err, repository.ErrStaleWrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeStageSameStageWritesNothing(t *testing.T) {
	base, mock := newMock(t)
	repo := NewOpportunityRepository(base)
	opp := sampleOpportunity()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(opportunityRows(opp))
	mock.ExpectCommit()

	got, entry, err := repo.ChangeStage(context.Background(), opp.OrganizationID, opp.ID,
		func(o *model.Opportunity) (*model.StageHistory, error) {
			return nil, nil
		})
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, opp.StageID, got.StageID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxProcessPendingRecordsOutcome(t *testing.T) {
	base, mock := newMock(t)
	repo := NewOutboxRepository(base)
	ok, bad := uuid.New(), uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "event_type", "payload", "status", "error_message", "retry_count", "created_at", "updated_at", "processed_at",
	}).
		AddRow(ok.String(), model.EventCustomerPurchase, []byte(`{}`), "PENDING", nil, 0, now, now, nil).
		AddRow(bad.String(), model.EventOpportunityWon, []byte(`{}`), "PENDING", nil, 2, now, now, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs("PENDING", 10).
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("SET status = $1, error_message = NULL")).
		WithArgs("PROCESSED", ok).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("retry_count = retry_count + 1")).
		WithArgs("FAILED", "broker down", bad).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := repo.ProcessPending(context.Background(), 10, 3, func(ctx context.Context, e *model.OutboxEvent) error {
		if e.ID == bad {
			return errors.New("broker down")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
