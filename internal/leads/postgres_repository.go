package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const leadColumns = `id, company_id, first_name, last_name, company, email, phone, status, source,
		created_at, last_contact_time, call_details, notes, ai_insights`

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	if q == nil {
		panic("leads: querier required")
	}
	return &PostgresRepository{pool: q}
}

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lead := newLeadFromRequest(req, uuid.New().String(), time.Now().UTC())
	notes, err := json.Marshal(lead.Notes)
	if err != nil {
		return nil, fmt.Errorf("leads: marshal notes: %w", err)
	}

	query := `
		INSERT INTO leads (id, company_id, first_name, last_name, company, email, phone, status, source, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		lead.ID,
		lead.CompanyID,
		lead.FirstName,
		lead.LastName,
		lead.Company,
		lead.Email,
		lead.Phone,
		string(lead.Status),
		string(lead.Source),
		notes,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}
	lead.CreatedAt = createdAt
	return &lead, nil
}

// GetByID fetches a lead scoped to the company.
func (r *PostgresRepository) GetByID(ctx context.Context, companyID, id string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 AND company_id = $2`
	lead, err := scanLead(r.pool.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return &lead, nil
}

// ListByCompany returns the company's leads, newest first.
func (r *PostgresRepository) ListByCompany(ctx context.Context, companyID string) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE company_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	return out, nil
}

// Update writes the mutable columns. Source, created_at and the conversation key are never touched.
func (r *PostgresRepository) Update(ctx context.Context, lead *Lead) error {
	callDetails, notes, insights, err := marshalJSONColumns(*lead)
	if err != nil {
		return err
	}
	query := `
		UPDATE leads
		SET first_name = $3, last_name = $4, company = $5, email = $6, phone = $7, status = $8,
			last_contact_time = $9, call_details = $10, notes = $11, ai_insights = $12
		WHERE id = $1 AND company_id = $2
	`
	ct, err := r.pool.Exec(ctx, query,
		lead.ID,
		lead.CompanyID,
		lead.FirstName,
		lead.LastName,
		lead.Company,
		lead.Email,
		lead.Phone,
		string(lead.Status),
		lead.LastContactTime,
		callDetails,
		notes,
		insights,
	)
	if err != nil {
		return fmt.Errorf("leads: update failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// Delete removes a lead.
func (r *PostgresRepository) Delete(ctx context.Context, companyID, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("leads: delete failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// UpsertByConversation inserts the batch in one transaction. On a conversation id conflict only the
// call details are refreshed, so concurrent passes converge on one row and user edits survive.
func (r *PostgresRepository) UpsertByConversation(ctx context.Context, batch []Lead) ([]Lead, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	for _, lead := range batch {
		if lead.ConversationID() == "" {
			return nil, ErrMissingConversationID
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("leads: begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO leads (id, company_id, first_name, last_name, company, email, phone, status, source,
			source_conversation_id, call_details, notes, ai_insights)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (company_id, source_conversation_id) DO UPDATE
		SET call_details = EXCLUDED.call_details || jsonb_build_object('call_history', COALESCE(leads.call_details->'call_history', '[]'::jsonb))
		RETURNING ` + leadColumns

	out := make([]Lead, 0, len(batch))
	for _, lead := range batch {
		id := lead.ID
		if id == "" {
			id = uuid.New().String()
		}
		callDetails, notes, insights, err := marshalJSONColumns(lead)
		if err != nil {
			return nil, err
		}
		stored, err := scanLead(tx.QueryRow(ctx, query,
			id,
			lead.CompanyID,
			lead.FirstName,
			lead.LastName,
			lead.Company,
			lead.Email,
			lead.Phone,
			string(lead.Status),
			string(lead.Source),
			lead.ConversationID(),
			callDetails,
			notes,
			insights,
		))
		if err != nil {
			return nil, fmt.Errorf("leads: upsert conversation %s: %w", lead.ConversationID(), err)
		}
		out = append(out, stored)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("leads: commit upsert: %w", err)
	}
	return out, nil
}

func scanLead(row rowScanner) (Lead, error) {
	var (
		lead                            Lead
		status, source                  string
		callDetails, notes, aiInsightsB []byte
	)
	if err := row.Scan(
		&lead.ID,
		&lead.CompanyID,
		&lead.FirstName,
		&lead.LastName,
		&lead.Company,
		&lead.Email,
		&lead.Phone,
		&status,
		&source,
		&lead.CreatedAt,
		&lead.LastContactTime,
		&callDetails,
		&notes,
		&aiInsightsB,
	); err != nil {
		return Lead{}, err
	}
	lead.Status = LeadStatus(status)
	lead.Source = LeadSource(source)
	if len(callDetails) > 0 && string(callDetails) != "null" {
		var cd CallDetails
		if err := json.Unmarshal(callDetails, &cd); err != nil {
			return Lead{}, fmt.Errorf("decode call_details: %w", err)
		}
		lead.CallDetails = &cd
	}
	lead.Notes = []Note{}
	if len(notes) > 0 {
		if err := json.Unmarshal(notes, &lead.Notes); err != nil {
			return Lead{}, fmt.Errorf("decode notes: %w", err)
		}
		if lead.Notes == nil {
			lead.Notes = []Note{}
		}
	}
	if len(aiInsightsB) > 0 && string(aiInsightsB) != "null" {
		var ai AIInsights
		if err := json.Unmarshal(aiInsightsB, &ai); err != nil {
			return Lead{}, fmt.Errorf("decode ai_insights: %w", err)
		}
		lead.AIInsights = &ai
	}
	return lead, nil
}

func marshalJSONColumns(lead Lead) (callDetails, notes, insights []byte, err error) {
	if lead.CallDetails != nil {
		if callDetails, err = json.Marshal(lead.CallDetails); err != nil {
			return nil, nil, nil, fmt.Errorf("leads: marshal call details: %w", err)
		}
	}
	n := lead.Notes
	if n == nil {
		n = []Note{}
	}
	if notes, err = json.Marshal(n); err != nil {
		return nil, nil, nil, fmt.Errorf("leads: marshal notes: %w", err)
	}
	if lead.AIInsights != nil {
		if insights, err = json.Marshal(lead.AIInsights); err != nil {
			return nil, nil, nil, fmt.Errorf("leads: marshal insights: %w", err)
		}
	}
	return callDetails, notes, insights, nil
}
