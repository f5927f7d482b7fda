package alarm

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

// fakeRuntime is an in-memory event.Runtime with a clock that advances on every read.
type fakeRuntime struct {
	// now is the last returned time.
	now time.Time
	// seq feeds NewEventID.
	seq uint64
	// detached makes every node unresolvable.
	detached bool
	// dispatched collects every notification handed over.
	dispatched []*event.Notification
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeRuntime) Now() time.Time {
	f.now = f.now.Add(time.Millisecond)

	return f.now
}

func (f *fakeRuntime) NewEventID() []byte {
	f.seq++

	id := make([]byte, 8)
	binary.BigEndian.PutUint64(id, f.seq)

	return id
}

func (f *fakeRuntime) ResolveType(typeName string) (event.NodeID, error) {
	return event.NodeID("type=" + typeName), nil
}

func (f *fakeRuntime) ResolveNode(event.NodeID) bool { return !f.detached }

func (f *fakeRuntime) Dispatch(_ context.Context, n *event.Notification) {
	f.dispatched = append(f.dispatched, n)
}

// last returns the most recent notification.
func (f *fakeRuntime) last() *event.Notification {
	if len(f.dispatched) == 0 {
		return nil
	}

	return f.dispatched[len(f.dispatched)-1]
}

func ptr(v float64) *float64 { return &v }
