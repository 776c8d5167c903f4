package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/pkg/logger"
)

// CreateRuleRequest is the user input for a new rule.
// Channel defaults to wechat.
type CreateRuleRequest struct {
	StockCode  string   `json:"stock_code" validate:"required,max=16"`
	Metric     string   `json:"metric" validate:"required"`
	Comparator string   `json:"comparator" validate:"required,oneof=gt lt gte lte eq"`
	Threshold  *float64 `json:"threshold" validate:"required"`
	Channel    string   `json:"channel,omitempty" validate:"omitempty,oneof=wechat email push"`
	Enabled    *bool    `json:"enabled,omitempty"`
}

// DefaultChannel is used when a new rule names no channel
const DefaultChannel = contracts.ChannelWeChat

// UpdateRuleRequest changes some fields of a rule; nil fields are left alone
type UpdateRuleRequest struct {
	Metric     *string  `json:"metric,omitempty"`
	Comparator *string  `json:"comparator,omitempty" validate:"omitempty,oneof=gt lt gte lte eq"`
	Threshold  *float64 `json:"threshold,omitempty"`
	Channel    *string  `json:"channel,omitempty" validate:"omitempty,oneof=wechat email push"`
	Enabled    *bool    `json:"enabled,omitempty"`
}

// Service is the ownership-scoped entry point for rule management.
// Rules of another owner are indistinguishable from missing ones.
type Service struct {
	store    RuleStore
	engine   *Engine
	validate *validator.Validate
	now      func() time.Time
	logger   *logger.Logger
}

// NewService creates a rule service sharing the engine's per-rule locks
func NewService(store RuleStore, engine *Engine, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		engine:   engine,
		validate: validator.New(),
		now:      engine.now,
		logger:   log,
	}
}

func (s *Service) invalid(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %q", contracts.ErrInvalidRule, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", contracts.ErrInvalidRule, err)
}

// Create stores a new ARMED rule for owner
func (s *Service) Create(ctx context.Context, owner string, req CreateRuleRequest) (*contracts.AlertRule, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, s.invalid(err)
	}

	channel := contracts.Channel(req.Channel)
	if channel == "" {
		channel = DefaultChannel
	}

	now := s.now()
	rule := &contracts.AlertRule{
		ID:        uuid.NewString(),
		Owner:     owner,
		StockCode: req.StockCode,
		Condition: contracts.Condition{
			Metric:     contracts.MetricKind(req.Metric),
			Comparator: contracts.Comparator(req.Comparator),
			Threshold:  *req.Threshold,
		},
		Channel:   channel,
		Enabled:   req.Enabled == nil || *req.Enabled,
		State:     contracts.StateArmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !rule.Enabled {
		rule.State = contracts.StateDisabled
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"rule_id":    rule.ID,
		"owner":      owner,
		"stock_code": rule.StockCode,
		"condition":  rule.Condition.String(),
		"channel":    rule.Channel,
	}).Info("Alert rule created")

	return rule, nil
}

// List returns owner's rules
func (s *Service) List(ctx context.Context, owner string) ([]*contracts.AlertRule, error) {
	return s.store.ListByOwner(ctx, owner)
}

// Get returns one of owner's rules
func (s *Service) Get(ctx context.Context, owner, id string) (*contracts.AlertRule, error) {
	rule, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Owner != owner {
		return nil, contracts.ErrRuleNotFound
	}
	return rule, nil
}

// Update applies req to one of owner's rules.
// Changing the condition or channel re-arms the rule without firing.
// Re-enabling arms the rule and evaluates it straight away.
func (s *Service) Update(ctx context.Context, owner, id string, req UpdateRuleRequest) (*contracts.AlertRule, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, s.invalid(err)
	}

	rule, reenabled, err := s.update(ctx, owner, id, req)
	if err != nil {
		return nil, err
	}

	if reenabled {
		res := s.engine.EvaluateRule(ctx, id)
		s.logger.WithFields(map[string]interface{}{
			"rule_id": id,
			"outcome": res.Outcome,
		}).Info("Re-enabled rule evaluated")
		return s.store.Get(ctx, id)
	}
	return rule, nil
}

func (s *Service) update(ctx context.Context, owner, id string, req UpdateRuleRequest) (*contracts.AlertRule, bool, error) {
	unlock, err := s.engine.lockRule(ctx, id)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	rule, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, false, err
	}

	cond := rule.Condition
	if req.Metric != nil {
		cond.Metric = contracts.MetricKind(*req.Metric)
	}
	if req.Comparator != nil {
		cond.Comparator = contracts.Comparator(*req.Comparator)
	}
	if req.Threshold != nil {
		cond.Threshold = *req.Threshold
	}
	channel := rule.Channel
	if req.Channel != nil {
		channel = contracts.Channel(*req.Channel)
	}

	edited := cond != rule.Condition || channel != rule.Channel
	wasEnabled := rule.Enabled

	rule.Condition = cond
	rule.Channel = channel
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if err := rule.Validate(); err != nil {
		return nil, false, err
	}

	reenabled := rule.Enabled && !wasEnabled
	switch {
	case !rule.Enabled:
		rule.State = contracts.StateDisabled
	case edited || reenabled:
		rule.State = contracts.StateArmed
	}
	rule.UpdatedAt = s.now()

	if err := s.store.Update(ctx, rule); err != nil {
		return nil, false, err
	}

	s.logger.WithFields(map[string]interface{}{
		"rule_id":   rule.ID,
		"state":     rule.State,
		"condition": rule.Condition.String(),
		"channel":   rule.Channel,
	}).Info("Alert rule updated")

	return rule, reenabled, nil
}

// SetEnabled toggles a rule
func (s *Service) SetEnabled(ctx context.Context, owner, id string, enabled bool) (*contracts.AlertRule, error) {
	return s.Update(ctx, owner, id, UpdateRuleRequest{Enabled: &enabled})
}

// Delete removes one of owner's rules
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	unlock, err := s.engine.lockRule(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.WithField("rule_id", id).Info("Alert rule deleted")
	return nil
}
