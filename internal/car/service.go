package car

import (
	"context"
	"errors"
	"strings"

	id "renavam/pkg/domain"
	dErrors "renavam/pkg/domain-errors"
	"renavam/pkg/platform/sentinel"

	"renavam/internal/audit"
	"renavam/internal/platform/metrics"
)

// Service implements car registration and listing. Ownership changes are not
// done here; only the transfer orchestrator mutates a car's owner.
type Service struct {
	store   Store
	auditor *audit.Publisher
	metrics *metrics.Metrics
}

func NewService(store Store, auditor *audit.Publisher, m *metrics.Metrics) *Service {
	return &Service{store: store, auditor: auditor, metrics: m}
}

// Register creates a car owned by the caller. The plate must be globally
// unique; it is immutable after this point.
func (s *Service) Register(ctx context.Context, callerID id.UserID, input RegistrationInput) (*Car, error) {
	if err := validateRegistration(input); err != nil {
		return nil, err
	}

	c := &Car{
		ID:              id.NewCarID(),
		Plate:           strings.ToUpper(strings.TrimSpace(input.Plate)),
		Model:           strings.TrimSpace(input.Model),
		ModelYear:       input.ModelYear,
		ManufactureYear: input.ManufactureYear,
		Color:           strings.TrimSpace(input.Color),
		Mileage:         input.Mileage,
		OwnerID:         callerID,
	}

	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a car with this plate already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not register car")
	}

	s.metrics.IncCarsRegistered()
	s.auditor.Emit(ctx, audit.Event{
		UserID:  callerID.String(),
		Action:  audit.ActionCarRegistered,
		Subject: c.Plate,
	})
	return c, nil
}

// ListOwnedBy returns the caller's cars.
func (s *Service) ListOwnedBy(ctx context.Context, ownerID id.UserID) ([]Car, error) {
	cars, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list cars")
	}
	return cars, nil
}

func validateRegistration(input RegistrationInput) error {
	switch {
	case strings.TrimSpace(input.Plate) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "plate is required")
	case strings.TrimSpace(input.Model) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "model is required")
	case input.ModelYear <= 0:
		return dErrors.New(dErrors.CodeInvalidInput, "model year is required")
	case input.ManufactureYear <= 0:
		return dErrors.New(dErrors.CodeInvalidInput, "manufacture year is required")
	case strings.TrimSpace(input.Color) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "color is required")
	case input.Mileage < 0:
		return dErrors.New(dErrors.CodeInvalidInput, "mileage cannot be negative")
	}
	return nil
}
