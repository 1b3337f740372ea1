package experiments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("experiment not found")

// Repository persists experiment definitions and sticky assignments.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetExperiment loads an experiment and its variants, in configured order.
func (r *Repository) GetExperiment(ctx context.Context, id string) (Experiment, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM experiments WHERE id = $1)
	`, id).Scan(&exists); err != nil {
		return Experiment{}, err
	}
	if !exists {
		return Experiment{}, ErrNotFound
	}

	rows, err := r.pool.Query(ctx, `
		SELECT variant_id, weight, message_key
		FROM experiment_variants
		WHERE experiment_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		return Experiment{}, err
	}
	defer rows.Close()

	exp := Experiment{ID: id}
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.Weight, &v.MessageKey); err != nil {
			return Experiment{}, err
		}
		exp.Variants = append(exp.Variants, v)
	}
	return exp, rows.Err()
}

// GetAssignment returns the stored variant for a (experiment, user) pair.
func (r *Repository) GetAssignment(ctx context.Context, experimentID string, userID uuid.UUID) (string, bool, error) {
	var variantID string
	err := r.pool.QueryRow(ctx, `
		SELECT variant_id FROM experiment_assignments
		WHERE experiment_id = $1 AND user_id = $2
	`, experimentID, userID).Scan(&variantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return variantID, true, nil
}

// SaveAssignment stores a sticky assignment. A concurrent first computation
// keeps whichever row landed first.
func (r *Repository) SaveAssignment(ctx context.Context, experimentID string, userID uuid.UUID, variantID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO experiment_assignments (experiment_id, user_id, variant_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (experiment_id, user_id) DO NOTHING
	`, experimentID, userID, variantID)
	return err
}
