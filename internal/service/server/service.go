package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/oshokin/opcua-alarms/internal/addrspace"
	"github.com/oshokin/opcua-alarms/internal/config"
	"github.com/oshokin/opcua-alarms/internal/dispatch"
	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
	"github.com/oshokin/opcua-alarms/internal/domain/statemachine"
	"github.com/oshokin/opcua-alarms/internal/logger"
	"github.com/oshokin/opcua-alarms/internal/metrics"
	"github.com/oshokin/opcua-alarms/internal/repository/journal"
	repo "github.com/oshokin/opcua-alarms/internal/repository/state"
)

// Method names used in logs and metrics.
const (
	methodAcknowledge = "Acknowledge"
	methodConfirm     = "Confirm"
	methodAddComment  = "AddComment"
	methodEnable      = "Enable"
	methodDisable     = "Disable"
	methodReportValue = "ReportValue"
)

// History reads past notifications.
type History interface {
	List(ctx context.Context, q journal.Query) ([]*event.Notification, error)
}

// service hosts the configured limit alarms and runs client methods against them.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// space owns the nodes and dispatches notifications.
	space *addrspace.Server
	// repo persists condition snapshots, nil disables persistence.
	repo repo.Repository
	// history serves past notifications, nil serves none.
	history History
	// hub feeds live subscriptions, nil disables them.
	hub *dispatch.Hub
	// alarms are keyed by condition name.
	alarms map[string]*alarm.ExclusiveLimitAlarm
	// names keeps alarms in configuration order.
	names []string
	// mu serializes method calls, the alarms are not safe for concurrent use.
	mu sync.Mutex
}

// newService creates the configured alarms and restores their persisted state.
func newService(
	ctx context.Context,
	space *addrspace.Server,
	repository repo.Repository,
	history History,
	hub *dispatch.Hub,
	alarms []config.AlarmConfig,
) (*service, error) {
	s := &service{
		space:   space,
		repo:    repository,
		history: history,
		hub:     hub,
		alarms:  make(map[string]*alarm.ExclusiveLimitAlarm, len(alarms)),
	}

	sources := make(map[string]event.NodeID)

	for i := range alarms {
		cfg := &alarms[i]

		source, ok := sources[cfg.Source]
		if !ok {
			id, err := space.AddObject(addrspace.ObjectsFolder, cfg.Source)
			if err != nil {
				return nil, fmt.Errorf("add source %q: %w", cfg.Source, err)
			}

			source = id
			sources[cfg.Source] = id
		}

		a, err := space.NewExclusiveLimitAlarm(source, cfg.Name, toSettings(cfg))
		if err != nil {
			return nil, err
		}

		s.alarms[cfg.Name] = a
		s.names = append(s.names, cfg.Name)
	}

	if err := s.restore(ctx); err != nil {
		return nil, err
	}

	for _, name := range s.names {
		s.recordBand(name, s.alarms[name])
	}

	return s, nil
}

// restore loads persisted snapshots into the alarms.
func (s *service) restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	snapshots, err := s.repo.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("load state: %w", err)
	}

	for name, snapshot := range snapshots {
		a, ok := s.alarms[name]
		if !ok {
			logger.WarnKV(ctx, "Ignoring state of unknown condition", "condition", name)

			continue
		}

		if err := a.Restore(snapshot); err != nil {
			return err
		}
	}

	logger.InfoKV(ctx, "Condition state restored", "conditions", len(snapshots))

	return nil
}

// List returns the status of every alarm in configuration order.
func (s *service) List(_ context.Context) []*alarm.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*alarm.Status, 0, len(s.names))
	for _, name := range s.names {
		result = append(result, s.alarms[name].Status())
	}

	return result
}

// Get returns the status of one alarm.
func (s *service) Get(_ context.Context, name string) (*alarm.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	return a.Status(), nil
}

// Acknowledge acknowledges the outstanding notification of an alarm.
func (s *service) Acknowledge(
	ctx context.Context,
	name string,
	eventID []byte,
	comment event.LocalizedText,
	actor *alarm.Actor,
) (*alarm.Status, error) {
	return s.call(ctx, methodAcknowledge, name, func(a *alarm.ExclusiveLimitAlarm) error {
		return a.Acknowledge(ctx, eventID, comment, actor)
	})
}

// Confirm confirms the outstanding notification of an alarm.
func (s *service) Confirm(
	ctx context.Context,
	name string,
	eventID []byte,
	comment event.LocalizedText,
	actor *alarm.Actor,
) (*alarm.Status, error) {
	return s.call(ctx, methodConfirm, name, func(a *alarm.ExclusiveLimitAlarm) error {
		return a.Confirm(ctx, eventID, comment, actor)
	})
}

// AddComment comments the outstanding notification of an alarm.
func (s *service) AddComment(
	ctx context.Context,
	name string,
	eventID []byte,
	comment event.LocalizedText,
	actor *alarm.Actor,
) (*alarm.Status, error) {
	return s.call(ctx, methodAddComment, name, func(a *alarm.ExclusiveLimitAlarm) error {
		return a.AddComment(ctx, eventID, comment, actor)
	})
}

// Enable enables an alarm.
func (s *service) Enable(ctx context.Context, name string) (*alarm.Status, error) {
	return s.call(ctx, methodEnable, name, func(a *alarm.ExclusiveLimitAlarm) error {
		return a.Enable(ctx)
	})
}

// Disable disables an alarm.
func (s *service) Disable(ctx context.Context, name string) (*alarm.Status, error) {
	return s.call(ctx, methodDisable, name, func(a *alarm.ExclusiveLimitAlarm) error {
		return a.Disable(ctx)
	})
}

// ReportValue feeds a monitored value to an alarm and reports whether it triggered a notification.
func (s *service) ReportValue(ctx context.Context, name string, value float64) (*alarm.Status, bool, error) {
	var triggered bool

	status, err := s.call(ctx, methodReportValue, name, func(a *alarm.ExclusiveLimitAlarm) error {
		changed, err := a.Evaluate(ctx, value)
		if err != nil {
			return err
		}

		triggered = changed

		s.recordBand(name, a)

		return nil
	})

	return status, triggered, err
}

// History returns past notifications, newest first.
func (s *service) History(ctx context.Context, q journal.Query) ([]*event.Notification, error) {
	if s.history == nil {
		return nil, nil
	}

	return s.history.List(ctx, q)
}

// Subscribe opens a live feed of notifications matching the condition and source names.
// Empty names match everything.
func (s *service) Subscribe(conditionName, sourceName string) (*dispatch.Subscription, error) {
	if s.hub == nil {
		return nil, errSubscriptionsDisabled
	}

	return s.hub.Subscribe(dispatch.DefaultSubscriptionBuffer, func(n *event.Notification) bool {
		if sourceName != "" && n.SourceName != sourceName {
			return false
		}

		if conditionName == "" {
			return true
		}

		name, _ := n.Field(alarm.FieldConditionName).(string)

		return name == conditionName
	}), nil
}

// errSubscriptionsDisabled is returned by Subscribe when no hub is wired.
var errSubscriptionsDisabled = errors.New("subscriptions are disabled")

// call runs a state-changing method on an alarm, persists the result and records the outcome.
func (s *service) call(
	ctx context.Context,
	method, name string,
	fn func(a *alarm.ExclusiveLimitAlarm) error,
) (*alarm.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = logger.WithKV(ctx, "condition", name)

	a, err := s.lookup(name)
	if err != nil {
		metrics.IncMethodCall(method, metrics.OutcomeRejected)

		return nil, err
	}

	if err := fn(a); err != nil {
		outcome := metrics.OutcomeFailed
		if isRejection(err) {
			outcome = metrics.OutcomeRejected
		}

		metrics.IncMethodCall(method, outcome)
		logger.WarnKV(ctx, "Condition method rejected", "method", method, "error", err)

		return nil, err
	}

	if err := s.persist(ctx); err != nil {
		metrics.IncMethodCall(method, metrics.OutcomeFailed)

		return nil, err
	}

	metrics.IncMethodCall(method, metrics.OutcomeOK)

	status := a.Status()

	logger.InfoKV(ctx, "Condition method applied",
		"method", method,
		"acked", status.Acked,
		"confirmed", status.Confirmed,
		"active", status.Active,
		"actor", status.LastActor.ClientUserID(),
	)

	return status, nil
}

// persist saves the snapshots of all alarms. The caller holds mu.
func (s *service) persist(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	snapshots := make(map[string]*alarm.Snapshot, len(s.alarms))
	for name, a := range s.alarms {
		snapshots[name] = a.Snapshot()
	}

	if err := s.repo.Save(ctx, snapshots); err != nil {
		logger.Errorf(ctx, "Failed to persist condition state: %v", err)

		return fmt.Errorf("persist state: %w", err)
	}

	return nil
}

func (s *service) lookup(name string) (*alarm.ExclusiveLimitAlarm, error) {
	a, ok := s.alarms[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, alarm.ErrUnknownCondition)
	}

	return a, nil
}

// recordBand exports the active band of an alarm.
func (s *service) recordBand(name string, a *alarm.ExclusiveLimitAlarm) {
	band, _ := a.LimitState().Active()
	metrics.SetActiveBand(name, band.String(), bandNames())
}

func bandNames() []string {
	states := statemachine.AllLimitStates()

	names := make([]string, 0, len(states))
	for _, state := range states {
		names = append(names, state.String())
	}

	sort.Strings(names)

	return names
}

// isRejection reports whether err is a refusal by the condition model rather than a failure.
func isRejection(err error) bool {
	for _, target := range []error{
		alarm.ErrUnknownCondition,
		alarm.ErrInvalidEventID,
		alarm.ErrConditionDisabled,
		alarm.ErrAlreadyEnabled,
		alarm.ErrAlreadyDisabled,
		alarm.ErrAlreadyAcknowledged,
		alarm.ErrNotAcknowledged,
		alarm.ErrConfirmNotAllowed,
		alarm.ErrAlreadyConfirmed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// toSettings converts an alarm configuration to limit alarm settings.
func toSettings(cfg *config.AlarmConfig) alarm.LimitAlarmSettings {
	severities := make(map[statemachine.LimitState]uint16)

	for band, severity := range map[statemachine.LimitState]uint16{
		statemachine.LimitHighHigh: cfg.Severities.HighHigh,
		statemachine.LimitHigh:     cfg.Severities.High,
		statemachine.LimitLow:      cfg.Severities.Low,
		statemachine.LimitLowLow:   cfg.Severities.LowLow,
	} {
		if severity != 0 {
			severities[band] = severity
		}
	}

	message := cfg.Message
	if message == "" {
		message = cfg.Name
	}

	return alarm.LimitAlarmSettings{
		Limits: alarm.Limits{
			HighHigh: cfg.Limits.HighHigh,
			High:     cfg.Limits.High,
			Low:      cfg.Limits.Low,
			LowLow:   cfg.Limits.LowLow,
		},
		Severities:     severities,
		NormalSeverity: cfg.Severities.Normal,
		Deadband:       cfg.Deadband,
		Message:        message,
		ConfirmAllowed: cfg.ConfirmAllowed,
	}
}
