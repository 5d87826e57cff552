package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var leadColumnNames = []string{
	"id", "company_id", "first_name", "last_name", "company", "email", "phone", "status", "source",
	"created_at", "last_contact_time", "call_details", "notes", "ai_insights",
}

func TestPostgresCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), "co", "Ann", "Lee", "", "ann@example.com", "", "New", "Web Form", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	repo := newPostgresRepositoryWithQuerier(mock)
	lead, err := repo.Create(context.Background(), &CreateLeadRequest{
		CompanyID: "co",
		FirstName: "Ann",
		LastName:  "Lee",
		Email:     "ann@example.com",
		Source:    SourceWebForm,
	})
	require.NoError(t, err)
	assert.Equal(t, created, lead.CreatedAt)
	assert.NotEmpty(t, lead.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateValidatesBeforeQuery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	_, err = repo.Create(context.Background(), &CreateLeadRequest{CompanyID: "co"})
	assert.ErrorIs(t, err, ErrInvalidName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	contacted := created.Add(2 * time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM leads WHERE id = \\$1 AND company_id = \\$2").
		WithArgs("lead-1", "co").
		WillReturnRows(pgxmock.NewRows(leadColumnNames).AddRow(
			"lead-1", "co", "John", "Doe", "Unknown", "c1@imported-lead.com", "5551234567", "Contacted", "Incoming Call",
			created, &contacted,
			[]byte(`{"conversation_id":"c1","summary_title":"Mr. John Doe","call_duration_secs":42}`),
			[]byte(`[{"id":"n1","text":"called back","created_at":"2024-03-01T10:00:00Z"}]`),
			nil,
		))

	repo := newPostgresRepositoryWithQuerier(mock)
	lead, err := repo.GetByID(context.Background(), "co", "lead-1")
	require.NoError(t, err)

	assert.Equal(t, StatusContacted, lead.Status)
	assert.Equal(t, SourceIncomingCall, lead.Source)
	require.NotNil(t, lead.LastContactTime)
	assert.True(t, lead.LastContactTime.Equal(contacted))
	require.NotNil(t, lead.CallDetails)
	assert.Equal(t, "c1", lead.ConversationID())
	assert.Equal(t, 42, lead.CallDetails.CallDurationSecs)
	require.Len(t, lead.Notes, 1)
	assert.Equal(t, "called back", lead.Notes[0].Text)
	assert.Nil(t, lead.AIInsights)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM leads").
		WithArgs("missing", "co").
		WillReturnRows(pgxmock.NewRows(leadColumnNames))

	repo := newPostgresRepositoryWithQuerier(mock)
	_, err = repo.GetByID(context.Background(), "co", "missing")
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestPostgresListByCompany(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM leads WHERE company_id = \\$1 ORDER BY created_at DESC").
		WithArgs("co").
		WillReturnRows(pgxmock.NewRows(leadColumnNames).
			AddRow("b", "co", "B", "", "", "b@example.com", "", "New", "Manual", now, nil, nil, []byte(`[]`), nil).
			AddRow("a", "co", "A", "", "", "a@example.com", "", "New", "Bot", now.Add(-time.Hour), nil, nil, nil,
				[]byte(`{"summary":"ok","sentiment":"positive","intent":"buy","urgency":"low","key_points":[],"recommended_actions":[],"generated_at":"2024-03-01T08:00:00Z"}`)))

	repo := newPostgresRepositoryWithQuerier(mock)
	list, err := repo.ListByCompany(context.Background(), "co")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.NotNil(t, list[1].Notes)
	require.NotNil(t, list[1].AIInsights)
	assert.Equal(t, "buy", list[1].AIInsights.Intent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE leads").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := newPostgresRepositoryWithQuerier(mock)
	err = repo.Update(context.Background(), &Lead{ID: "x", CompanyID: "co", Status: StatusNew})
	assert.ErrorIs(t, err, ErrLeadNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM leads").WithArgs("lead-1", "co").WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := newPostgresRepositoryWithQuerier(mock)
	require.NoError(t, repo.Delete(context.Background(), "co", "lead-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertByConversation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("ON CONFLICT \\(company_id, source_conversation_id\\) DO UPDATE").
		WithArgs(pgxmock.AnyArg(), "co", "John", "Doe", "Unknown", "c1@imported-lead.com", "5551234567",
			"New", "Incoming Call", "c1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(leadColumnNames).AddRow(
			"lead-1", "co", "John", "Doe", "Unknown", "c1@imported-lead.com", "5551234567", "New", "Incoming Call",
			now, nil, []byte(`{"conversation_id":"c1"}`), []byte(`[]`), nil,
		))
	mock.ExpectCommit()

	repo := newPostgresRepositoryWithQuerier(mock)
	out, err := repo.UpsertByConversation(context.Background(), []Lead{{
		CompanyID:   "co",
		FirstName:   "John",
		LastName:    "Doe",
		Company:     "Unknown",
		Email:       "c1@imported-lead.com",
		Phone:       "5551234567",
		Status:      StatusNew,
		Source:      SourceIncomingCall,
		CallDetails: &CallDetails{ConversationID: "c1"},
	}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "lead-1", out[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertFailureIsReturned(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO leads").WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	repo := newPostgresRepositoryWithQuerier(mock)
	_, err = repo.UpsertByConversation(context.Background(), []Lead{{
		CompanyID:   "co",
		Source:      SourceIncomingCall,
		CallDetails: &CallDetails{ConversationID: "c1"},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertEmptyBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	out, err := repo.UpsertByConversation(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
