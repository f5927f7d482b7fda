package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/opcua-alarms/internal/addrspace"
	"github.com/oshokin/opcua-alarms/internal/config"
	"github.com/oshokin/opcua-alarms/internal/dispatch"
	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
	"github.com/oshokin/opcua-alarms/internal/repository/journal"
	repo "github.com/oshokin/opcua-alarms/internal/repository/state"
)

var (
	errTestLoad = errors.New("test load error")
	errTestSave = errors.New("test save error")
)

// memoryRepository is a minimal in-memory Repository implementation for tests.
type memoryRepository struct {
	// snapshots are returned from Load operations.
	snapshots map[string]*alarm.Snapshot
	// loadErr is the error to return from Load operations.
	loadErr error
	// saveErr is the error to return from Save operations.
	saveErr error
	// saved stores the last snapshots passed to Save operations.
	saved map[string]*alarm.Snapshot
	// saves counts Save calls.
	saves int
}

// Load returns the configured snapshots.
func (m *memoryRepository) Load(context.Context) (map[string]*alarm.Snapshot, error) {
	return m.snapshots, m.loadErr
}

// Save stores the provided snapshots in memory.
func (m *memoryRepository) Save(_ context.Context, snapshots map[string]*alarm.Snapshot) error {
	m.saves++

	if m.saveErr != nil {
		return m.saveErr
	}

	m.saved = snapshots

	return nil
}

// hubDispatcher delivers notifications to a hub synchronously.
type hubDispatcher struct {
	hub *dispatch.Hub
}

func (d hubDispatcher) Dispatch(ctx context.Context, n *event.Notification) {
	_ = d.hub.Send(ctx, n)
}

// fakeHistory records the last query.
type fakeHistory struct {
	query journal.Query
}

func (h *fakeHistory) List(_ context.Context, q journal.Query) ([]*event.Notification, error) {
	h.query = q

	return []*event.Notification{{SourceName: q.SourceName}}, nil
}

func limit(v float64) *float64 {
	return &v
}

func tankAlarms() []config.AlarmConfig {
	return []config.AlarmConfig{
		{
			Name:    "TankLevel",
			Source:  "Tank",
			Message: "Tank level",
			Limits: config.LimitsConfig{
				HighHigh: limit(90),
				High:     limit(80),
				Low:      limit(20),
				LowLow:   limit(10),
			},
			Severities:     config.SeveritiesConfig{Normal: 100},
			Deadband:       2,
			ConfirmAllowed: true,
		},
		{
			Name:   "TankPressure",
			Source: "Tank",
			Limits: config.LimitsConfig{High: limit(6)},
		},
	}
}

func newTestService(t *testing.T, repository repo.Repository, history History, hub *dispatch.Hub) *service {
	t.Helper()

	var opts []addrspace.Option
	if hub != nil {
		opts = append(opts, addrspace.WithDispatcher(hubDispatcher{hub: hub}))
	}

	s, err := newService(context.Background(), addrspace.New(opts...), repository, history, hub, tankAlarms())
	require.NoError(t, err)

	return s
}

// TestNewService_LoadsStateOrDefaults asserts newService behavior on existing, missing, and error states.
func TestNewService_LoadsStateOrDefaults(t *testing.T) {
	t.Parallel()

	// Existing state.
	stored := &memoryRepository{snapshots: map[string]*alarm.Snapshot{
		"TankLevel": {
			Name:           "TankLevel",
			Timestamp:      time.Unix(100, 0),
			LastActor:      &alarm.Actor{Hostname: "control-room-1", Username: "operator"},
			Enabled:        true,
			Retain:         true,
			Acked:          true,
			ConfirmAllowed: true,
			Active:         true,
			LimitState:     "High",
			Severity:       700,
			Value:          85,
		},
		"Removed": {Name: "Removed"},
	}}

	s := newTestService(t, stored, nil, nil)

	st, err := s.Get(context.Background(), "TankLevel")
	require.NoError(t, err)
	require.True(t, st.Active)
	require.True(t, st.Acked)
	require.False(t, st.Confirmed)
	require.Equal(t, "High", st.LimitState)
	require.Equal(t, "operator@control-room-1", st.LastActor.ClientUserID())

	// Not found -> defaults.
	s = newTestService(t, &memoryRepository{loadErr: repo.ErrNotFound}, nil, nil)

	statuses := s.List(context.Background())
	require.Len(t, statuses, 2)
	require.Equal(t, "TankLevel", statuses[0].Name)
	require.Equal(t, "TankPressure", statuses[1].Name)
	require.False(t, statuses[0].Active)
	require.Equal(t, "Tank", statuses[1].SourceName)

	// Other error.
	_, err = newService(
		context.Background(),
		addrspace.New(),
		&memoryRepository{loadErr: errTestLoad},
		nil,
		nil,
		tankAlarms(),
	)
	require.ErrorIs(t, err, errTestLoad)
}

// TestService_AlarmWorkflow drives a limit alarm through activation, acknowledgment and confirmation.
func TestService_AlarmWorkflow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := new(memoryRepository)
	s := newTestService(t, storage, nil, nil)
	actor := &alarm.Actor{Hostname: "control-room-1", Username: "operator"}

	st, triggered, err := s.ReportValue(ctx, "TankLevel", 95)
	require.NoError(t, err)
	require.True(t, triggered)
	require.True(t, st.Active)
	require.Equal(t, "HighHigh", st.LimitState)
	require.False(t, st.Acked)
	require.NotEmpty(t, st.EventID)
	require.Equal(t, 1, storage.saves)

	_, triggered, err = s.ReportValue(ctx, "TankLevel", 96)
	require.NoError(t, err)
	require.False(t, triggered)

	_, err = s.Acknowledge(ctx, "TankLevel", []byte("stale"), event.Text("seen"), actor)
	require.ErrorIs(t, err, alarm.ErrInvalidEventID)

	_, err = s.Confirm(ctx, "TankLevel", st.EventID, event.Text("done"), actor)
	require.ErrorIs(t, err, alarm.ErrNotAcknowledged)

	acked, err := s.Acknowledge(ctx, "TankLevel", st.EventID, event.Text("seen"), actor)
	require.NoError(t, err)
	require.True(t, acked.Acked)
	require.Equal(t, "seen", acked.Comment)
	require.NotEqual(t, st.EventID, acked.EventID)
	require.True(t, storage.saved["TankLevel"].Acked)

	confirmed, err := s.Confirm(ctx, "TankLevel", acked.EventID, event.Text("done"), actor)
	require.NoError(t, err)
	require.True(t, confirmed.Confirmed)

	normal, triggered, err := s.ReportValue(ctx, "TankLevel", 50)
	require.NoError(t, err)
	require.True(t, triggered)
	require.False(t, normal.Active)
	require.False(t, normal.Retain)

	_, err = s.Get(ctx, "Missing")
	require.ErrorIs(t, err, alarm.ErrUnknownCondition)

	_, _, err = s.ReportValue(ctx, "Missing", 1)
	require.ErrorIs(t, err, alarm.ErrUnknownCondition)
}

// TestService_EnableDisable rejects values for a disabled alarm.
func TestService_EnableDisable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestService(t, nil, nil, nil)

	st, err := s.Disable(ctx, "TankPressure")
	require.NoError(t, err)
	require.False(t, st.Enabled)

	_, err = s.Disable(ctx, "TankPressure")
	require.ErrorIs(t, err, alarm.ErrAlreadyDisabled)

	_, _, err = s.ReportValue(ctx, "TankPressure", 7)
	require.ErrorIs(t, err, alarm.ErrConditionDisabled)

	st, err = s.Enable(ctx, "TankPressure")
	require.NoError(t, err)
	require.True(t, st.Enabled)
}

// TestService_PersistFailure surfaces repository errors.
func TestService_PersistFailure(t *testing.T) {
	t.Parallel()

	s := newTestService(t, &memoryRepository{saveErr: errTestSave}, nil, nil)

	_, err := s.Disable(context.Background(), "TankLevel")
	require.ErrorIs(t, err, errTestSave)
}

// TestService_SubscribeAndHistory filters live notifications and forwards history queries.
func TestService_SubscribeAndHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hub := dispatch.NewHub()
	history := new(fakeHistory)
	s := newTestService(t, nil, history, hub)

	sub, err := s.Subscribe("TankPressure", "")
	require.NoError(t, err)

	defer sub.Close()

	_, _, err = s.ReportValue(ctx, "TankLevel", 95)
	require.NoError(t, err)

	_, _, err = s.ReportValue(ctx, "TankPressure", 7)
	require.NoError(t, err)

	n := <-sub.C()
	require.Equal(t, "TankPressure", n.Field(alarm.FieldConditionName))
	require.Equal(t, "Tank", n.SourceName)
	require.Empty(t, sub.C())

	events, err := s.History(ctx, journal.Query{SourceName: "Tank", Limit: 5})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 5, history.query.Limit)

	_, err = newTestService(t, nil, nil, nil).Subscribe("", "")
	require.ErrorIs(t, err, errSubscriptionsDisabled)

	events, err = newTestService(t, nil, nil, nil).History(ctx, journal.Query{})
	require.NoError(t, err)
	require.Empty(t, events)
}

// TestToSettings fills the message and keeps only explicit severities.
func TestToSettings(t *testing.T) {
	t.Parallel()

	alarms := tankAlarms()

	settings := toSettings(&alarms[1])
	require.Equal(t, "TankPressure", settings.Message)
	require.Empty(t, settings.Severities)
	require.NoError(t, settings.Limits.Validate())

	settings = toSettings(&alarms[0])
	require.Equal(t, uint16(100), settings.NormalSeverity)
	require.True(t, settings.ConfirmAllowed)
}
