// Package profiles loads the signed-in user's profile.
package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

var (
	// ErrUnauthorized means the database rejected the caller's credentials. Clients should sign out.
	ErrUnauthorized = errors.New("profiles: not authorized")
	ErrNotFound     = errors.New("profiles: profile not found")
)

type Profile struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Options tune retries. Zero values use a 1s base delay and 5 attempts.
type Options struct {
	RetryDelay  time.Duration
	MaxAttempts int
	Logger      *logging.Logger
}

// SQLStore reads profiles through database/sql with the lib/pq driver.
type SQLStore struct {
	db          *sql.DB
	retryDelay  time.Duration
	maxAttempts int
	logger      *logging.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewSQLStore(db *sql.DB, opts Options) *SQLStore {
	if db == nil {
		panic("profiles: db required")
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &SQLStore{
		db:          db,
		retryDelay:  opts.RetryDelay,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger,
		sleep:       sleepCtx,
	}
}

// Get loads a profile. Authorization failures return ErrUnauthorized at once; other failures
// are retried with a linearly growing delay.
func (s *SQLStore) Get(ctx context.Context, userID string) (*Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrNotFound
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		p, err := s.fetch(ctx, userID)
		switch {
		case err == nil:
			return p, nil
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrNotFound
		case isAuthError(err):
			s.logger.Warn("profile fetch rejected", "user_id", userID, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}

		lastErr = err
		if attempt == s.maxAttempts {
			break
		}
		wait := s.retryDelay * time.Duration(attempt)
		s.logger.Warn("profile fetch failed, retrying", "user_id", userID, "attempt", attempt, "wait", wait.String(), "error", err)
		if err := s.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("profiles: get %s: %w", userID, err)
		}
	}
	return nil, fmt.Errorf("profiles: get %s after %d attempts: %w", userID, s.maxAttempts, lastErr)
}

// RecipientEmail returns the address new-lead notifications go to.
func (s *SQLStore) RecipientEmail(ctx context.Context, userID string) (string, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(p.Email) == "" {
		return "", fmt.Errorf("profiles: user %s has no email", userID)
	}
	return p.Email, nil
}

func (s *SQLStore) fetch(ctx context.Context, userID string) (*Profile, error) {
	query := `
		SELECT id, company_id, email, full_name, created_at
		FROM profiles
		WHERE id = $1
	`
	var p Profile
	var fullName sql.NullString
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&p.ID, &p.CompanyID, &p.Email, &fullName, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.FullName = fullName.String
	return &p, nil
}

// Auth-class SQLSTATEs plus the REST gateway's expired-JWT code.
var authCodes = map[pq.ErrorCode]bool{
	"28000": true,
	"28P01": true,
	"42501": true,
}

func isAuthError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && authCodes[pqErr.Code] {
		return true
	}
	return strings.Contains(err.Error(), "PGRST301")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
