package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/registry"
	"github.com/lib/pq"
)

const complaintColumns = `id, text, category, confidence, low_confidence, prediction_source,
	       model_version, status, votes, contributing_texts, voters, history,
	       submitted_at, updated_at`

// ComplaintsRepository handles database operations for complaints. It
// implements the registry store contract.
type ComplaintsRepository struct {
	db *sqlx.DB
}

// NewComplaintsRepository creates a new complaints repository.
func NewComplaintsRepository(db *sqlx.DB) *ComplaintsRepository {
	return &ComplaintsRepository{db: db}
}

// EnsureSchema creates the complaints table and its indexes if missing.
// Call once at startup.
func (r *ComplaintsRepository) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS complaints (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    category TEXT NOT NULL,
    confidence DOUBLE PRECISION NOT NULL,
    low_confidence BOOLEAN NOT NULL DEFAULT FALSE,
    prediction_source TEXT NOT NULL,
    model_version TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    votes INTEGER NOT NULL DEFAULT 0,
    contributing_texts TEXT[] NOT NULL DEFAULT '{}',
    voters TEXT[] NOT NULL DEFAULT '{}',
    history JSONB NOT NULL DEFAULT '[]',
    submitted_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_complaints_category_status ON complaints (category, status);
CREATE INDEX IF NOT EXISTS idx_complaints_submitted_at ON complaints (submitted_at);
`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure complaints schema: %w", err)
	}
	return nil
}

// Create inserts a new complaint into the database.
func (r *ComplaintsRepository) Create(ctx context.Context, c *domain.Complaint) error {
	history, err := marshalHistory(c.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	query := `
		INSERT INTO complaints (` + complaintColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		c.ID,
		c.Text,
		c.Category,
		c.Confidence,
		c.LowConfidence,
		c.PredictionSource,
		c.ModelVersion,
		c.Status,
		c.Votes,
		textArray(c.ContributingTexts),
		textArray(c.Voters),
		history,
		c.SubmittedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return mapError("create complaint", err)
	}

	return nil
}

// Get retrieves a complaint by its identifier.
func (r *ComplaintsRepository) Get(ctx context.Context, id string) (*domain.Complaint, error) {
	query := `
		SELECT ` + complaintColumns + `
		FROM complaints
		WHERE id = $1
	`

	c, err := scanComplaint(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("complaint %s: %w", id, domain.ErrNotFound)
		}
		return nil, mapError("get complaint", err)
	}

	return c, nil
}

// Update replaces an existing complaint.
func (r *ComplaintsRepository) Update(ctx context.Context, c *domain.Complaint) error {
	history, err := marshalHistory(c.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	query := `
		UPDATE complaints
		SET text = $1, category = $2, confidence = $3, low_confidence = $4,
		    prediction_source = $5, model_version = $6, status = $7, votes = $8,
		    contributing_texts = $9, voters = $10, history = $11, updated_at = $12
		WHERE id = $13
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		c.Text,
		c.Category,
		c.Confidence,
		c.LowConfidence,
		c.PredictionSource,
		c.ModelVersion,
		c.Status,
		c.Votes,
		textArray(c.ContributingTexts),
		textArray(c.Voters),
		history,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return mapError("update complaint", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("complaint %s: %w", c.ID, domain.ErrNotFound)
	}

	return nil
}

// List retrieves complaints matching the filter, ordered by submission
// time and then identifier, plus the total match count before pagination.
func (r *ComplaintsRepository) List(ctx context.Context, f registry.Filter) ([]*domain.Complaint, int, error) {
	where, args := buildListFilter(f)

	var total int
	countQuery := `SELECT COUNT(*) FROM complaints` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, mapError("count complaints", err)
	}

	query := `
		SELECT ` + complaintColumns + `
		FROM complaints` + where + `
		ORDER BY submitted_at ASC, id ASC`

	if f.Page >= 1 && f.PerPage >= 1 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError("list complaints", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var complaints []*domain.Complaint
	for rows.Next() {
		c, scanErr := scanComplaint(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("failed to scan complaint: %w", scanErr)
		}
		complaints = append(complaints, c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating complaints: %w", err)
	}

	return complaints, total, nil
}

// buildListFilter renders the WHERE clause for List and Count queries.
func buildListFilter(f registry.Filter) (string, []any) {
	var whereClauses []string
	var args []any
	argIndex := 1

	if f.Category != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, string(f.Category))
		argIndex++
	}

	if len(f.Statuses) > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("status = ANY($%d)", argIndex))
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, pq.Array(statuses))
	}

	if len(whereClauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(whereClauses, " AND "), args
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanComplaint(row rowScanner) (*domain.Complaint, error) {
	var c domain.Complaint
	var history []byte

	err := row.Scan(
		&c.ID,
		&c.Text,
		&c.Category,
		&c.Confidence,
		&c.LowConfidence,
		&c.PredictionSource,
		&c.ModelVersion,
		&c.Status,
		&c.Votes,
		pq.Array(&c.ContributingTexts),
		pq.Array(&c.Voters),
		&history,
		&c.SubmittedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &c.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
	}

	return &c, nil
}

// textArray renders a string slice as a PostgreSQL array, mapping nil to
// the empty array so NOT NULL columns stay satisfied.
func textArray(v []string) driver.Valuer {
	if v == nil {
		v = []string{}
	}
	return pq.Array(v)
}

// marshalHistory encodes transitions as JSON, mapping nil to the empty
// array so the column never holds a JSON null.
func marshalHistory(h []domain.Transition) ([]byte, error) {
	if h == nil {
		h = []domain.Transition{}
	}
	return json.Marshal(h)
}

// mapError converts driver deadline expiry into the engine's timeout error
// and wraps everything else with the failed operation.
func mapError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, domain.ErrTimeout)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
