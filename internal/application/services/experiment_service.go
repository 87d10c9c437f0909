package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/infrastructure/metrics"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/dapursambal/storefront/pkg/expression"
	"github.com/dapursambal/storefront/pkg/utils"
)

// Assignment is what a visitor sees for an experiment
type Assignment struct {
	ExperimentKey string                 `json:"experiment_key"`
	VariantKey    string                 `json:"variant_key"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	// Assigned is false when the visitor was given the control without being enrolled
	Assigned bool `json:"assigned"`
}

// VariantResult reports one variant's performance
type VariantResult struct {
	VariantKey     string  `json:"variant_key"`
	Weight         int     `json:"weight"`
	Exposures      int     `json:"exposures"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
}

// ExperimentResults is the admin results view
type ExperimentResults struct {
	Experiment *models.Experiment `json:"experiment"`
	Variants   []VariantResult    `json:"variants"`
}

// ExperimentService assigns visitors to A/B test variants and records conversions
type ExperimentService struct {
	repo   *persistence.ExperimentRepository
	engine *expression.Engine
	intn   func(n int) int
	now    func() time.Time
}

// NewExperimentService creates a new ExperimentService
func NewExperimentService(db *sql.DB, engine *expression.Engine) *ExperimentService {
	return &ExperimentService{
		repo:   persistence.NewExperimentRepository(db),
		engine: engine,
		intn:   rand.Intn,
		now:    nowUTC,
	}
}

// PickVariant makes a weighted choice. roll must return a value in [0, n).
func PickVariant(variants []models.Variant, roll func(n int) int) (models.Variant, error) {
	total := 0
	for _, v := range variants {
		if v.Weight < 0 {
			return models.Variant{}, fmt.Errorf("variant %s has negative weight", v.Key)
		}
		total += v.Weight
	}
	if total <= 0 {
		return models.Variant{}, fmt.Errorf("variant weights must sum to more than zero")
	}

	n := roll(total)
	for _, v := range variants {
		if n < v.Weight {
			return v, nil
		}
		n -= v.Weight
	}
	return variants[len(variants)-1], nil
}

func control(e *models.Experiment) *Assignment {
	c := e.Control()
	return &Assignment{ExperimentKey: e.Key, VariantKey: c.Key, Payload: c.Payload}
}

// Assign returns the visitor's sticky variant, enrolling them on first sight
func (s *ExperimentService) Assign(ctx context.Context, key, visitorID string, attrs map[string]interface{}) (*Assignment, error) {
	if strings.TrimSpace(visitorID) == "" {
		return nil, errors.NewValidationError("visitor_id", "Visitor id is required")
	}
	e, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if e == nil || e.Status == models.ExperimentDraft {
		return nil, errors.NewNotFoundError("experiment", key)
	}
	if e.Status == models.ExperimentStopped {
		return control(e), nil
	}

	if e.Targeting != "" {
		matched, err := s.engine.Match(e.Targeting, attrs)
		if err != nil {
			log.Printf("⚠️ Targeting for experiment %s failed: %v", e.Key, err)
		}
		if err != nil || !matched {
			return control(e), nil
		}
	}

	existing, err := s.repo.GetAssignment(ctx, e.ID, visitorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.toAssignment(e, existing.VariantKey), nil
	}

	picked, err := PickVariant(e.Variants, s.intn)
	if err != nil {
		return nil, errors.NewInternalError("experiment is misconfigured", err)
	}
	won, err := s.repo.InsertAssignment(ctx, &models.ExperimentAssignment{
		ID:           utils.GenerateID(),
		ExperimentID: e.ID,
		VisitorID:    visitorID,
		VariantKey:   picked.Key,
		AssignedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	if !won {
		// a concurrent request enrolled this visitor first; use its choice
		existing, err = s.repo.GetAssignment(ctx, e.ID, visitorID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.toAssignment(e, existing.VariantKey), nil
		}
	}

	metrics.ExperimentExposures.WithLabelValues(e.Key, picked.Key).Inc()
	return s.toAssignment(e, picked.Key), nil
}

func (s *ExperimentService) toAssignment(e *models.Experiment, variantKey string) *Assignment {
	v, ok := e.Variant(variantKey)
	if !ok {
		// variant was removed after the visitor was enrolled
		return control(e)
	}
	return &Assignment{ExperimentKey: e.Key, VariantKey: v.Key, Payload: v.Payload, Assigned: true}
}

// Convert records the visitor's first conversion. Visitors who were never
// enrolled are ignored. Returns true only for the first conversion.
func (s *ExperimentService) Convert(ctx context.Context, key, visitorID string) (bool, error) {
	e, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		return false, err
	}
	if e == nil {
		return false, errors.NewNotFoundError("experiment", key)
	}
	return s.convert(ctx, e, visitorID)
}

func (s *ExperimentService) convert(ctx context.Context, e *models.Experiment, visitorID string) (bool, error) {
	a, err := s.repo.GetAssignment(ctx, e.ID, visitorID)
	if err != nil || a == nil || a.ConvertedAt != nil {
		return false, err
	}
	first, err := s.repo.MarkConverted(ctx, e.ID, visitorID, s.now())
	if err != nil {
		return false, err
	}
	if first {
		metrics.ExperimentConversions.WithLabelValues(e.Key, a.VariantKey).Inc()
	}
	return first, nil
}

// ConvertVisitor converts the visitor in every running experiment they are enrolled in
func (s *ExperimentService) ConvertVisitor(ctx context.Context, visitorID string) error {
	if visitorID == "" {
		return nil
	}
	all, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range all {
		if e.Status != models.ExperimentRunning {
			continue
		}
		if _, err := s.convert(ctx, e, visitorID); err != nil {
			return fmt.Errorf("convert %s: %w", e.Key, err)
		}
	}
	return nil
}

// Results reports exposures and conversions per variant
func (s *ExperimentService) Results(ctx context.Context, key string) (*ExperimentResults, error) {
	e, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errors.NewNotFoundError("experiment", key)
	}
	stats, err := s.repo.Results(ctx, e.ID)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]persistence.VariantStats, len(stats))
	for _, st := range stats {
		byKey[st.VariantKey] = st
	}
	out := &ExperimentResults{Experiment: e, Variants: make([]VariantResult, 0, len(e.Variants))}
	for _, v := range e.Variants {
		st := byKey[v.Key]
		r := VariantResult{VariantKey: v.Key, Weight: v.Weight, Exposures: st.Exposures, Conversions: st.Conversions}
		if st.Exposures > 0 {
			r.ConversionRate = float64(st.Conversions) / float64(st.Exposures)
		}
		out.Variants = append(out.Variants, r)
	}
	return out, nil
}

// ExperimentInput is the admin create/update payload
type ExperimentInput struct {
	Key       string           `json:"key" binding:"required"`
	Name      string           `json:"name" binding:"required,max=200"`
	Targeting string           `json:"targeting"`
	Variants  []models.Variant `json:"variants" binding:"required"`
}

func (s *ExperimentService) validate(in *ExperimentInput) error {
	in.Key = strings.TrimSpace(in.Key)
	in.Name = strings.TrimSpace(in.Name)
	in.Targeting = strings.TrimSpace(in.Targeting)

	if !utils.IsSlug(in.Key) {
		return errors.NewValidationError("key", "Key may only contain lowercase letters, digits and dashes")
	}
	if in.Name == "" {
		return errors.NewValidationError("name", "Name is required")
	}
	if len(in.Variants) < 2 {
		return errors.NewValidationError("variants", "At least two variants are required")
	}
	seen := make(map[string]bool, len(in.Variants))
	total := 0
	for i, v := range in.Variants {
		if !utils.IsSlug(v.Key) {
			return errors.NewValidationError(fmt.Sprintf("variants[%d].key", i), "Variant key may only contain lowercase letters, digits and dashes")
		}
		if seen[v.Key] {
			return errors.NewValidationError(fmt.Sprintf("variants[%d].key", i), "Variant keys must be unique")
		}
		seen[v.Key] = true
		if v.Weight < 0 {
			return errors.NewValidationError(fmt.Sprintf("variants[%d].weight", i), "Weight cannot be negative")
		}
		total += v.Weight
	}
	if total <= 0 {
		return errors.NewValidationError("variants", "Total weight must be greater than zero")
	}
	if in.Targeting != "" {
		if err := s.engine.Validate(in.Targeting); err != nil {
			return errors.NewValidationError("targeting", err.Error())
		}
	}
	return nil
}

// ListExperiments returns all experiments
func (s *ExperimentService) ListExperiments(ctx context.Context) ([]*models.Experiment, error) {
	return s.repo.List(ctx)
}

// GetExperiment returns an experiment by id
func (s *ExperimentService) GetExperiment(ctx context.Context, id string) (*models.Experiment, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errors.NewNotFoundError("experiment", id)
	}
	return e, nil
}

// CreateExperiment adds a draft experiment
func (s *ExperimentService) CreateExperiment(ctx context.Context, in ExperimentInput) (*models.Experiment, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	exists, err := s.repo.KeyExists(ctx, in.Key, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.NewConflictError("experiment", "key", in.Key)
	}

	now := s.now()
	e := &models.Experiment{
		ID:               utils.GenerateID(),
		Key:              in.Key,
		Name:             in.Name,
		Status:           models.ExperimentDraft,
		Targeting:        in.Targeting,
		Variants:         in.Variants,
		CreatedDate:      now,
		LastModifiedDate: now,
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to insert experiment: %w", err)
	}
	log.Printf("🧪 Experiment created: %s", e.Key)
	return e, nil
}

// UpdateExperiment edits an experiment. Keys and variants are frozen once it has run.
func (s *ExperimentService) UpdateExperiment(ctx context.Context, id string, in ExperimentInput) (*models.Experiment, error) {
	e, err := s.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	if e.Status != models.ExperimentDraft {
		if in.Key != e.Key || !sameVariantKeys(e.Variants, in.Variants) {
			return nil, errors.NewValidationError("variants", "Key and variant keys cannot change after the experiment has started")
		}
	}
	exists, err := s.repo.KeyExists(ctx, in.Key, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.NewConflictError("experiment", "key", in.Key)
	}

	e.Key = in.Key
	e.Name = in.Name
	e.Targeting = in.Targeting
	e.Variants = in.Variants
	e.LastModifiedDate = s.now()
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to update experiment: %w", err)
	}
	return e, nil
}

func sameVariantKeys(a, b []models.Variant) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key {
			return false
		}
	}
	return true
}

// SetStatus starts or stops an experiment. Stopped experiments may be restarted.
func (s *ExperimentService) SetStatus(ctx context.Context, id, status string) (*models.Experiment, error) {
	e, err := s.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}
	switch status {
	case models.ExperimentRunning, models.ExperimentStopped:
	default:
		return nil, errors.NewValidationError("status", "Status must be running or stopped")
	}
	if status == models.ExperimentStopped && e.Status == models.ExperimentDraft {
		return nil, errors.NewValidationError("status", "A draft experiment cannot be stopped")
	}
	if e.Status == status {
		return e, nil
	}

	e.Status = status
	e.LastModifiedDate = s.now()
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	log.Printf("🧪 Experiment %s is now %s", e.Key, status)
	return e, nil
}

// CountRunning is used by the dashboard
func (s *ExperimentService) CountRunning(ctx context.Context) (int, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return 0, err
	}
	return counts[models.ExperimentRunning], nil
}
