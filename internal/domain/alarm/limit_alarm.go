package alarm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/oshokin/opcua-alarms/internal/domain/event"
	"github.com/oshokin/opcua-alarms/internal/domain/statemachine"
)

var (
	// ErrNoLimits is returned when a limit alarm has no limit configured.
	ErrNoLimits = errors.New("at least one limit must be configured")
	// ErrLimitOrder is returned when limits are not LowLow < Low < High < HighHigh.
	ErrLimitOrder = errors.New("limits must satisfy LowLow < Low < High < HighHigh")
	// ErrNegativeDeadband is returned for a deadband below zero.
	ErrNegativeDeadband = errors.New("deadband must not be negative")
	// ErrInvalidValue is returned when a monitored value is NaN or infinite.
	ErrInvalidValue = errors.New("value must be a finite number")
)

// Limits holds the thresholds of a limit alarm. A nil limit is not monitored.
type Limits struct {
	HighHigh *float64
	High     *float64
	Low      *float64
	LowLow   *float64
}

// value returns the threshold of a band.
func (l Limits) value(s statemachine.LimitState) (float64, bool) {
	var limit *float64

	switch s {
	case statemachine.LimitHighHigh:
		limit = l.HighHigh
	case statemachine.LimitHigh:
		limit = l.High
	case statemachine.LimitLow:
		limit = l.Low
	case statemachine.LimitLowLow:
		limit = l.LowLow
	case statemachine.LimitNone:
	}

	if limit == nil {
		return 0, false
	}

	return *limit, true
}

// bands returns the configured bands.
func (l Limits) bands() []statemachine.LimitState {
	var result []statemachine.LimitState

	for _, s := range statemachine.AllLimitStates() {
		if _, ok := l.value(s); ok {
			result = append(result, s)
		}
	}

	return result
}

// Validate checks that at least one limit is set and that set limits are ordered.
func (l Limits) Validate() error {
	bands := l.bands()
	if len(bands) == 0 {
		return ErrNoLimits
	}

	for i := 1; i < len(bands); i++ {
		prev, _ := l.value(bands[i-1])
		cur, _ := l.value(bands[i])

		if prev >= cur {
			return ErrLimitOrder
		}
	}

	return nil
}

// LimitAlarmSettings configures an ExclusiveLimitAlarm.
type LimitAlarmSettings struct {
	// Limits are the band thresholds.
	Limits Limits
	// Severities maps bands to severities; unset bands use DefaultSeverities.
	Severities map[statemachine.LimitState]uint16
	// NormalSeverity is used when no band is active.
	NormalSeverity uint16
	// Deadband is the hysteresis applied when leaving a band.
	Deadband float64
	// Message prefixes the generated notification messages.
	Message string
	// ConfirmAllowed enables the Confirm step.
	ConfirmAllowed bool
}

// DefaultSeverities are used for bands without an explicit severity.
func DefaultSeverities() map[statemachine.LimitState]uint16 {
	return map[statemachine.LimitState]uint16{
		statemachine.LimitHighHigh: 900,
		statemachine.LimitHigh:     700,
		statemachine.LimitLow:      700,
		statemachine.LimitLowLow:   900,
	}
}

// ExclusiveLimitAlarm raises exactly one of the HighHigh/High/Low/LowLow bands
// as a monitored value crosses its limits.
type ExclusiveLimitAlarm struct {
	*AcknowledgeableCondition

	limitState *statemachine.ExclusiveLimitStateMachine
	limits     Limits
	severities map[statemachine.LimitState]uint16
	normal     uint16
	deadband   float64
	prefix     string

	active bool
	value  float64
}

// NewExclusiveLimitAlarm creates an inactive limit alarm. A new alarm is
// acknowledged and confirmed until its first activation.
func NewExclusiveLimitAlarm(
	rt event.Runtime,
	id, source event.NodeID,
	name string,
	settings LimitAlarmSettings,
) (*ExclusiveLimitAlarm, error) {
	if err := settings.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("alarm %q: %w", name, err)
	}

	if settings.Deadband < 0 {
		return nil, fmt.Errorf("alarm %q: %w", name, ErrNegativeDeadband)
	}

	severities := DefaultSeverities()
	for band, severity := range settings.Severities {
		severities[band] = severity
	}

	if settings.NormalSeverity == 0 {
		settings.NormalSeverity = event.MinSeverity
	}

	for _, severity := range append([]uint16{settings.NormalSeverity}, valuesOf(severities)...) {
		if err := event.ValidateSeverity(severity); err != nil {
			return nil, fmt.Errorf("alarm %q severity %d: %w", name, severity, err)
		}
	}

	var clock statemachine.Clock
	if rt != nil {
		clock = rt
	}

	a := &ExclusiveLimitAlarm{
		AcknowledgeableCondition: newAcknowledgeableCondition(
			rt,
			TypeExclusiveLimitAlarm,
			id,
			source,
			name,
			WithConfirmAllowed(settings.ConfirmAllowed),
		),
		limitState: statemachine.NewExclusiveLimitStateMachine(clock, settings.Limits.bands()...),
		limits:     settings.Limits,
		severities: severities,
		normal:     settings.NormalSeverity,
		deadband:   settings.Deadband,
		prefix:     settings.Message,
	}

	a.acked = true
	a.confirmed = true
	a.active = false
	a.AcknowledgeableCondition.active = a.Active

	if err := a.SetSeverity(a.normal); err != nil {
		return nil, err
	}

	a.addContributor(a.contribute)

	return a, nil
}

// Active reflects ActiveState.
func (a *ExclusiveLimitAlarm) Active() bool {
	return a.active
}

// LimitState returns the state machine of the alarm.
func (a *ExclusiveLimitAlarm) LimitState() *statemachine.ExclusiveLimitStateMachine {
	return a.limitState
}

// Limits returns the configured thresholds.
func (a *ExclusiveLimitAlarm) Limits() Limits {
	return a.limits
}

// Value returns the last evaluated input value.
func (a *ExclusiveLimitAlarm) Value() float64 {
	return a.value
}

// Evaluate feeds a monitored value to the alarm. When the value moves the alarm
// into a different band the state machine transitions and a notification is
// triggered; it returns whether that happened.
func (a *ExclusiveLimitAlarm) Evaluate(ctx context.Context, value float64) (bool, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false, fmt.Errorf("evaluate %g: %w", value, ErrInvalidValue)
	}

	if !a.enabled {
		return false, ErrConditionDisabled
	}

	current, _ := a.limitState.Active()
	next := a.classify(value)

	if next == current {
		a.value = value

		return false, nil
	}

	var (
		before     = a.Snapshot()
		message    = a.Message()
		transition = a.limitState.LastTransition()
		occurrence = a.occurrence
		severity   = a.normal
	)

	rollback := func() {
		a.restore(before)
		a.limitState.RestoreTransition(transition)
		a.occurrence = occurrence
		a.SetMessage(message)
	}

	if next != statemachine.LimitNone {
		severity = a.severities[next]
		// A new occurrence, a jump to the other side or an escalation needs a fresh acknowledgment.
		if !a.active || side(next) != side(current) || rank(next) > rank(current) {
			a.acked = false
			a.confirmed = false
			a.startOccurrence()
		}
	}

	if _, err := a.limitState.SetState(next); err != nil {
		rollback()

		return false, err
	}

	if err := a.SetSeverity(severity); err != nil {
		rollback()

		return false, err
	}

	a.value = value
	a.active = next != statemachine.LimitNone
	a.SetMessage(event.Text(a.describe(next, value)))
	a.applyRetainPolicy()

	if _, err := a.emit(ctx); err != nil {
		rollback()

		return false, err
	}

	return true, nil
}

// Snapshot captures the retained state of the alarm.
func (a *ExclusiveLimitAlarm) Snapshot() *Snapshot {
	band, _ := a.limitState.Active()

	return &Snapshot{
		Name:           a.name,
		Timestamp:      a.ReceiveTime(),
		LastActor:      a.lastActor.Clone(),
		Enabled:        a.enabled,
		Retain:         a.retain,
		Acked:          a.acked,
		Confirmed:      a.confirmed,
		ConfirmAllowed: a.confirmAllowed,
		Active:         a.active,
		LimitState:     band.String(),
		Severity:       a.Severity(),
		Comment:        a.comment.Text,
		Value:          a.value,
	}
}

// Status returns a read-only view of the alarm.
func (a *ExclusiveLimitAlarm) Status() *Status {
	return &Status{
		Snapshot:     *a.Snapshot(),
		ConditionID:  a.id,
		SourceNode:   a.Node(),
		SourceName:   a.SourceName(),
		EventID:      a.LastEventID(),
		Message:      a.Message().Text,
		LastSeverity: a.lastSeverity,
		Limits:       a.limits,
		Deadband:     a.deadband,
	}
}

// Restore loads persisted state without notifying.
func (a *ExclusiveLimitAlarm) Restore(s *Snapshot) error {
	if s == nil {
		return nil
	}

	band, err := statemachine.ParseLimitState(s.LimitState)
	if err != nil {
		return fmt.Errorf("restore alarm %q: %w", a.name, err)
	}

	if band != statemachine.LimitNone && !a.limitState.IsSupported(band) {
		return fmt.Errorf("restore alarm %q band %s: %w", a.name, band, statemachine.ErrUnsupportedState)
	}

	if s.Severity != 0 {
		if err := event.ValidateSeverity(s.Severity); err != nil {
			return fmt.Errorf("restore alarm %q: %w", a.name, err)
		}
	}

	a.restore(s)

	return nil
}

// restore copies validated snapshot fields back into the alarm.
func (a *ExclusiveLimitAlarm) restore(s *Snapshot) {
	band, _ := statemachine.ParseLimitState(s.LimitState)
	_ = a.limitState.Restore(band) //nolint:errcheck // Validated by the caller.

	if s.Severity != 0 {
		_ = a.SetSeverity(s.Severity) //nolint:errcheck // Validated by the caller.
	}

	a.enabled = s.Enabled
	a.retain = s.Retain
	a.acked = s.Acked
	a.confirmed = s.Confirmed
	a.confirmAllowed = s.ConfirmAllowed
	a.active = s.Active
	a.value = s.Value

	if s.Comment != a.comment.Text {
		a.comment = event.Text(s.Comment)
	}

	if s.LastActor != nil {
		a.setActor(s.LastActor)
	}
}

// classify maps a value to a band, keeping the current band inside the deadband.
func (a *ExclusiveLimitAlarm) classify(value float64) statemachine.LimitState {
	next := a.bandFor(value)
	current, _ := a.limitState.Active()

	if current == statemachine.LimitNone || rank(next) >= rank(current) {
		return next
	}

	if next != statemachine.LimitNone && side(next) != side(current) {
		return next
	}

	limit, _ := a.limits.value(current)

	switch {
	case side(current) > 0 && value > limit-a.deadband:
		return current
	case side(current) < 0 && value < limit+a.deadband:
		return current
	default:
		return next
	}
}

// bandFor returns the band a value falls into without hysteresis.
func (a *ExclusiveLimitAlarm) bandFor(value float64) statemachine.LimitState {
	if limit, ok := a.limits.value(statemachine.LimitHighHigh); ok && value >= limit {
		return statemachine.LimitHighHigh
	}

	if limit, ok := a.limits.value(statemachine.LimitHigh); ok && value >= limit {
		return statemachine.LimitHigh
	}

	if limit, ok := a.limits.value(statemachine.LimitLowLow); ok && value <= limit {
		return statemachine.LimitLowLow
	}

	if limit, ok := a.limits.value(statemachine.LimitLow); ok && value <= limit {
		return statemachine.LimitLow
	}

	return statemachine.LimitNone
}

// describe builds the notification message for a band.
func (a *ExclusiveLimitAlarm) describe(band statemachine.LimitState, value float64) string {
	prefix := a.prefix
	if prefix == "" {
		prefix = a.name
	}

	if band == statemachine.LimitNone {
		return fmt.Sprintf("%s: back to normal (%g)", prefix, value)
	}

	limit, _ := a.limits.value(band)

	return fmt.Sprintf("%s: %s limit %g crossed (%g)", prefix, band, limit, value)
}

// contribute adds alarm fields to notifications.
func (a *ExclusiveLimitAlarm) contribute(fields map[string]any) {
	band, _ := a.limitState.Active()

	fields[FieldActiveState] = a.active
	fields[FieldLimitState] = band.String()
	fields[FieldInputValue] = a.value

	if last := a.limitState.LastTransition(); last != nil {
		fields[FieldLastTransition] = last.Name
	}

	for _, s := range a.limitState.Supported() {
		if limit, ok := a.limits.value(s); ok {
			fields[s.String()+"Limit"] = limit
		}
	}
}

// rank orders bands by distance from normal.
func rank(s statemachine.LimitState) int {
	switch s {
	case statemachine.LimitHigh, statemachine.LimitLow:
		return 1
	case statemachine.LimitHighHigh, statemachine.LimitLowLow:
		return 2 //nolint:mnd // Outer bands.
	case statemachine.LimitNone:
	}

	return 0
}

// side returns +1 for high bands, -1 for low bands and 0 for none.
func side(s statemachine.LimitState) int {
	switch s {
	case statemachine.LimitHigh, statemachine.LimitHighHigh:
		return 1
	case statemachine.LimitLow, statemachine.LimitLowLow:
		return -1
	case statemachine.LimitNone:
	}

	return 0
}

func valuesOf(m map[statemachine.LimitState]uint16) []uint16 {
	result := make([]uint16, 0, len(m))
	for _, v := range m {
		result = append(result, v)
	}

	return result
}
