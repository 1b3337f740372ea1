// Package experiments provides deterministic sticky A/B assignment used to
// pick dialogue copy variants.
package experiments

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"leadline_backend/platform/logger"

	"github.com/google/uuid"
)

var ErrNoVariants = errors.New("experiment has no variants")

// Variant is one arm of an experiment. Weights across an experiment sum
// to 100.
type Variant struct {
	ID     string
	Weight int
	// MessageKey overrides the dialogue copy key for users in this arm.
	MessageKey string
}

// Experiment is a weighted set of variants.
type Experiment struct {
	ID       string
	Variants []Variant
}

// AssignmentStore persists sticky assignments.
type AssignmentStore interface {
	GetAssignment(ctx context.Context, experimentID string, userID uuid.UUID) (variantID string, found bool, err error)
	SaveAssignment(ctx context.Context, experimentID string, userID uuid.UUID, variantID string) error
}

// ExperimentStore resolves experiment definitions.
type ExperimentStore interface {
	GetExperiment(ctx context.Context, id string) (Experiment, error)
}

type Service struct {
	experiments ExperimentStore
	assignments AssignmentStore
	log         *logger.Logger
}

func NewService(experiments ExperimentStore, assignments AssignmentStore, log *logger.Logger) *Service {
	return &Service{experiments: experiments, assignments: assignments, log: log}
}

// Bucket maps (userID, experimentID) onto [0, 100) deterministically.
func Bucket(userID uuid.UUID, experimentID string) int {
	h := fnv.New32a()
	h.Write([]byte(userID.String()))
	h.Write([]byte(experimentID))
	return int(h.Sum32() % 100)
}

// pick walks the cumulative variant weights and returns the arm covering
// the bucket. Weights that do not reach 100 leave a remainder that falls
// into the last variant.
func pick(exp Experiment, bucket int) (Variant, error) {
	if len(exp.Variants) == 0 {
		return Variant{}, fmt.Errorf("%w: %s", ErrNoVariants, exp.ID)
	}

	cumulative := 0
	for _, v := range exp.Variants {
		cumulative += v.Weight
		if bucket < cumulative {
			return v, nil
		}
	}
	return exp.Variants[len(exp.Variants)-1], nil
}

// Assign returns the user's variant for an experiment. The first computation
// is persisted; every later call returns the stored variant even if the
// experiment's weights have changed since.
func (s *Service) Assign(ctx context.Context, experimentID string, userID uuid.UUID) (Variant, error) {
	exp, err := s.experiments.GetExperiment(ctx, experimentID)
	if err != nil {
		return Variant{}, fmt.Errorf("load experiment %s: %w", experimentID, err)
	}

	stored, found, err := s.assignments.GetAssignment(ctx, experimentID, userID)
	if err != nil {
		return Variant{}, fmt.Errorf("load assignment: %w", err)
	}
	if found {
		for _, v := range exp.Variants {
			if v.ID == stored {
				return v, nil
			}
		}
		// The stored arm was removed from the definition. Honor
		// stickiness with the bare id; the copy key falls back to the
		// caller's default.
		return Variant{ID: stored}, nil
	}

	variant, err := pick(exp, Bucket(userID, experimentID))
	if err != nil {
		return Variant{}, err
	}
	if err := s.assignments.SaveAssignment(ctx, experimentID, userID, variant.ID); err != nil {
		return Variant{}, fmt.Errorf("save assignment: %w", err)
	}

	return variant, nil
}

// SelectKey implements the dialogue copy selector used by onboarding: given
// an experiment named after the default copy key, it returns the assigned
// variant's message key. Any failure falls back to the default.
func (s *Service) SelectKey(ctx context.Context, userID uuid.UUID, defaultKey string) string {
	variant, err := s.Assign(ctx, defaultKey, userID)
	if err != nil || variant.MessageKey == "" {
		return defaultKey
	}
	return variant.MessageKey
}
