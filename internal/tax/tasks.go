package tax

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TypeWarmRates is the asynq task type that refreshes a tenant's cached rates.
const TypeWarmRates = "tax:warm_rates"

// WarmPayload identifies the tenant whose rates should be refreshed.
type WarmPayload struct {
	TenantID string `json:"tenantId"`
}

// NewWarmTask builds a refresh task for tenantID. Duplicate refreshes for the
// same tenant are collapsed for a minute.
func NewWarmTask(tenantID string) (*asynq.Task, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("tax: warm task requires a tenant")
	}
	payload, err := json.Marshal(WarmPayload{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeWarmRates, payload, asynq.MaxRetry(3), asynq.Unique(time.Minute)), nil
}

// Enqueuer schedules warm tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueWarm schedules a refresh for tenantID. A refresh already queued is
// not an error.
func EnqueueWarm(ctx context.Context, q Enqueuer, tenantID string) error {
	if q == nil {
		return nil
	}
	task, err := NewWarmTask(tenantID)
	if err != nil {
		return err
	}
	if _, err := q.EnqueueContext(ctx, task); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return fmt.Errorf("enqueue tax warm: %w", err)
	}
	return nil
}

// WarmHandler processes TypeWarmRates tasks.
type WarmHandler struct {
	Cache  *Cached
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h WarmHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p WarmPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || strings.TrimSpace(p.TenantID) == "" {
		return fmt.Errorf("tax: invalid warm payload: %v: %w", err, asynq.SkipRetry)
	}
	if h.Cache == nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, asynq.SkipRetry)
	}
	rates, err := h.Cache.Warm(ctx, p.TenantID)
	if err != nil {
		return fmt.Errorf("warm tax rates for %s: %w", p.TenantID, err)
	}
	h.Logger.Info().Str("tenant_id", p.TenantID).Int("rates", len(rates)).Msg("tax rates warmed")
	return nil
}

// RegisterSchedule adds a periodic warm task per tenant to scheduler.
func RegisterSchedule(s *asynq.Scheduler, spec string, tenants []string) error {
	for _, id := range tenants {
		task, err := NewWarmTask(id)
		if err != nil {
			continue
		}
		if _, err := s.Register(spec, task); err != nil {
			return fmt.Errorf("schedule tax warm for %s: %w", id, err)
		}
	}
	return nil
}
