package driven

import (
	"context"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// PatientStore looks up discharge records.
type PatientStore interface {
	// FindByName matches the name case-insensitively.
	// Returns domain.ErrPatientNotFound when nothing matches.
	FindByName(ctx context.Context, name string) (*domain.Patient, error)

	// List returns every patient record.
	List(ctx context.Context) ([]domain.Patient, error)
}
