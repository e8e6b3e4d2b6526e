package service

import (
	"context"
	"time"

	"github.com/Strob0t/licensed/internal/adapter/otel"
	"github.com/Strob0t/licensed/internal/domain"
	"github.com/Strob0t/licensed/internal/domain/license"
	"github.com/Strob0t/licensed/internal/port/database"
)

// ValidationService answers whether a license is usable for a product right
// now. It only reads.
type ValidationService struct {
	store   database.Store
	metrics *otel.Metrics
	now     func() time.Time
}

// NewValidationService creates a validation service.
func NewValidationService(store database.Store, metrics *otel.Metrics) *ValidationService {
	return &ValidationService{store: store, metrics: metrics, now: time.Now}
}

// Validate evaluates req. An unknown key and a product mismatch are errors;
// inactive and expired licenses are negative answers.
func (s *ValidationService) Validate(ctx context.Context, req license.ValidateRequest) (*license.ValidationResult, error) {
	if err := domain.ValidateStruct(req); err != nil {
		return nil, err
	}

	ctx, span := otel.StartValidateSpan(ctx, req.ProductID)
	res, err := s.evaluate(ctx, req)
	otel.EndSpan(span, err)

	var result string
	switch {
	case err != nil:
		result = domain.Code(err)
	case res.Valid:
		result = "valid"
	default:
		result = res.Reason
	}
	s.metrics.Validations.Add(ctx, 1, otel.Result(result))
	return res, err
}

func (s *ValidationService) evaluate(ctx context.Context, req license.ValidateRequest) (*license.ValidationResult, error) {
	l, err := s.store.GetLicenseByKey(ctx, req.Key)
	if err != nil {
		return nil, notFoundAs(err, "License not found")
	}
	if l.ProductID != req.ProductID {
		return nil, domain.ErrProductMismatch
	}
	res := license.Evaluate(l, s.now())
	return &res, nil
}
