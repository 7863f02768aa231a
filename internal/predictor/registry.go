package predictor

import (
	"fmt"
	"sync"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// Model names reported by the registry.
const (
	EarlyDetectionModel = "early_detection"
	OutcomeModel        = "outcome_prediction"
)

// BreakerReporter is implemented by models guarded by a circuit breaker.
type BreakerReporter interface {
	BreakerState() string
}

// Registry resolves condition, early-detection and outcome models by name.
// It is built once at startup and injected; it is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	version    string
	conditions map[domain.Condition]domain.ConditionPredictor
	early      domain.EarlyDetectionPredictor
	outcome    domain.OutcomePredictor
}

// NewRegistry creates an empty registry reporting the given model version.
func NewRegistry(version string) *Registry {
	return &Registry{
		version:    version,
		conditions: make(map[domain.Condition]domain.ConditionPredictor),
	}
}

// NewBaselineRegistry registers the rule-based baseline for every model.
func NewBaselineRegistry() *Registry {
	pe := NewPreeclampsiaModel()
	gd := NewGestationalDiabetesModel()
	pt := NewPretermBirthModel()

	r := NewRegistry(BaselineVersion)
	// Registration of known conditions cannot fail.
	_ = r.RegisterCondition(domain.Preeclampsia, pe)
	_ = r.RegisterCondition(domain.GestationalDiabetes, gd)
	_ = r.RegisterCondition(domain.PretermBirth, pt)
	r.RegisterEarlyDetection(NewBaselineEarlyDetection(pe, gd, pt))
	r.RegisterOutcome(NewBaselineOutcome(pe, gd, pt))
	return r
}

// RegisterCondition sets the predictor for a condition, replacing any previous one.
func (r *Registry) RegisterCondition(c domain.Condition, p domain.ConditionPredictor) error {
	if !c.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCondition, c)
	}
	if p == nil {
		return fmt.Errorf("predictor for %s is nil", c)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditions[c] = p
	return nil
}

// RegisterEarlyDetection sets the early-detection model.
func (r *Registry) RegisterEarlyDetection(p domain.EarlyDetectionPredictor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.early = p
}

// RegisterOutcome sets the outcome model.
func (r *Registry) RegisterOutcome(p domain.OutcomePredictor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcome = p
}

// ConditionPredictor implements domain.ModelRegistry.
func (r *Registry) ConditionPredictor(c domain.Condition) (domain.ConditionPredictor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.conditions[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrModelNotRegistered, c)
	}
	return p, nil
}

// EarlyDetection implements domain.ModelRegistry.
func (r *Registry) EarlyDetection() (domain.EarlyDetectionPredictor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.early == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrModelNotRegistered, EarlyDetectionModel)
	}
	return r.early, nil
}

// Outcome implements domain.ModelRegistry.
func (r *Registry) Outcome() (domain.OutcomePredictor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.outcome == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrModelNotRegistered, OutcomeModel)
	}
	return r.outcome, nil
}

// Version implements domain.ModelRegistry.
func (r *Registry) Version() string {
	return r.version
}

// Status reports every known model in a fixed order, including the ones
// that are not registered.
func (r *Registry) Status() []domain.ModelStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]domain.ModelStatus, 0, len(domain.Conditions())+2)
	for _, c := range domain.Conditions() {
		p, ok := r.conditions[c]
		statuses = append(statuses, r.status(c.String(), p, ok))
	}
	statuses = append(statuses, r.status(EarlyDetectionModel, r.early, r.early != nil))
	statuses = append(statuses, r.status(OutcomeModel, r.outcome, r.outcome != nil))
	return statuses
}

func (r *Registry) status(name string, model any, loaded bool) domain.ModelStatus {
	s := domain.ModelStatus{Name: name, Version: r.version, Loaded: loaded}
	if reporter, ok := model.(BreakerReporter); ok && loaded {
		s.BreakerState = reporter.BreakerState()
	}
	return s
}
