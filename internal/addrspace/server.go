package addrspace

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
	"github.com/oshokin/opcua-alarms/internal/domain/statemachine"
)

// ObjectsFolder is the root all objects are organized under.
const ObjectsFolder event.NodeID = "i=85"

// namespacePrefix prefixes the ids of nodes created by the server.
const namespacePrefix = "ns=1;s="

var (
	// ErrUnknownNode is returned for node ids that are not registered.
	ErrUnknownNode = errors.New("unknown node")
	// ErrNodeExists is returned when a browse name is already used under a parent.
	ErrNodeExists = errors.New("node already exists")
	// ErrInvalidBrowseName is returned for empty browse names or names containing '/'.
	ErrInvalidBrowseName = errors.New("invalid browse name")
	// ErrUnknownType is returned for event types that are not registered.
	ErrUnknownType = errors.New("unknown event type")
	// ErrTypeExists is returned when registering a type twice.
	ErrTypeExists = errors.New("event type already registered")
)

// Dispatcher receives every triggered notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *event.Notification)
}

// Node is a registered object.
type Node struct {
	ID         event.NodeID
	BrowseName string
	Parent     event.NodeID
}

// eventType is a registered event type.
type eventType struct {
	id    event.NodeID
	super string
}

// detacher is implemented by every event record.
type detacher interface {
	Detach()
}

// Server is the minimal address space the event core needs: a node registry,
// an event type registry, a clock, an event id generator and the dispatch hand-off.
// It implements event.Runtime.
type Server struct {
	// mu guards every field below.
	mu sync.RWMutex

	nodes    map[event.NodeID]*Node
	children map[event.NodeID][]event.NodeID
	types    map[string]eventType
	// owned lists the events attached to each node.
	owned map[event.NodeID][]detacher

	clock      func() time.Time
	lastNow    time.Time
	newID      func() []byte
	dispatcher Dispatcher
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithEventIDs overrides the event id generator.
func WithEventIDs(newID func() []byte) Option {
	return func(s *Server) {
		s.newID = newID
	}
}

// WithDispatcher sets the receiver of triggered notifications.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Server) {
		s.dispatcher = d
	}
}

// New creates a server preloaded with the standard event types.
func New(opts ...Option) *Server {
	s := &Server{
		nodes: map[event.NodeID]*Node{
			ObjectsFolder: {ID: ObjectsFolder, BrowseName: "Objects"},
		},
		children: make(map[event.NodeID][]event.NodeID),
		types:    make(map[string]eventType),
		owned:    make(map[event.NodeID][]detacher),
		clock:    time.Now,
		newID:    newUUID,
	}

	for _, t := range standardTypes() {
		s.types[t.name] = eventType{id: t.id, super: t.super}
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type standardType struct {
	name  string
	id    event.NodeID
	super string
}

// standardTypes lists the namespace-0 event types the core knows about.
func standardTypes() []standardType {
	return []standardType{
		{name: event.TypeBaseEvent, id: "i=2041"},
		{name: alarm.TypeCondition, id: "i=2782", super: event.TypeBaseEvent},
		{name: alarm.TypeAcknowledgeableCondition, id: "i=2881", super: alarm.TypeCondition},
		{name: alarm.TypeAlarmCondition, id: "i=2915", super: alarm.TypeAcknowledgeableCondition},
		{name: alarm.TypeLimitAlarm, id: "i=2955", super: alarm.TypeAlarmCondition},
		{name: alarm.TypeExclusiveLimitAlarm, id: "i=9341", super: alarm.TypeLimitAlarm},
		{name: statemachine.TypeExclusiveLimitStateMachine, id: "i=9318"},
	}
}

func newUUID() []byte {
	id := uuid.New()

	return id[:]
}

// Now returns the current UTC time, never earlier than a previous call.
func (s *Server) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UTC()
	if now.Before(s.lastNow) {
		now = s.lastNow
	}

	s.lastNow = now

	return now
}

// NewEventID returns a fresh globally unique event id.
func (s *Server) NewEventID() []byte {
	return s.newID()
}

// ResolveType returns the node id of a registered event type.
func (s *Server) ResolveType(typeName string) (event.NodeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.types[typeName]
	if !ok {
		return "", fmt.Errorf("%q: %w", typeName, ErrUnknownType)
	}

	return t.id, nil
}

// ResolveNode reports whether the node is registered.
func (s *Server) ResolveNode(id event.NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.nodes[id]

	return ok
}

// Dispatch hands the notification to the dispatcher, if any.
func (s *Server) Dispatch(ctx context.Context, n *event.Notification) {
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, n)
	}
}

// RegisterType adds an event type deriving from super.
func (s *Server) RegisterType(name string, id event.NodeID, super string) error {
	if name == "" || id.IsNull() {
		return fmt.Errorf("register %q: %w", name, ErrInvalidBrowseName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.types[name]; ok {
		return fmt.Errorf("register %q: %w", name, ErrTypeExists)
	}

	if _, ok := s.types[super]; !ok {
		return fmt.Errorf("register %q super %q: %w", name, super, ErrUnknownType)
	}

	s.types[name] = eventType{id: id, super: super}

	return nil
}

// IsSubtype reports whether typeName is base or derives from it.
func (s *Server) IsSubtype(typeName, base string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name := typeName; name != ""; {
		if name == base {
			return true
		}

		t, ok := s.types[name]
		if !ok {
			return false
		}

		name = t.super
	}

	return false
}

// AddObject registers an object named browseName under parent.
func (s *Server) AddObject(parent event.NodeID, browseName string) (event.NodeID, error) {
	if browseName == "" || strings.Contains(browseName, "/") {
		return "", fmt.Errorf("%q: %w", browseName, ErrInvalidBrowseName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[parent]; !ok {
		return "", fmt.Errorf("parent %s: %w", parent, ErrUnknownNode)
	}

	id := childID(parent, browseName)
	if _, ok := s.nodes[id]; ok {
		return "", fmt.Errorf("%s: %w", id, ErrNodeExists)
	}

	s.nodes[id] = &Node{ID: id, BrowseName: browseName, Parent: parent}
	s.children[parent] = append(s.children[parent], id)

	return id, nil
}

// Lookup returns a registered node.
func (s *Server) Lookup(id event.NodeID) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}

	return *n, true
}

// Browse returns the children of a node sorted by browse name.
func (s *Server) Browse(parent event.NodeID) []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Node, 0, len(s.children[parent]))
	for _, id := range s.children[parent] {
		result = append(result, *s.nodes[id])
	}

	slices.SortFunc(result, func(a, b Node) int {
		return strings.Compare(a.BrowseName, b.BrowseName)
	})

	return result
}

// RemoveNode removes a node with its subtree and detaches every event owned by it.
// Removed events must not be triggered concurrently with this call.
func (s *Server) RemoveNode(id event.NodeID) error {
	if id == ObjectsFolder {
		return fmt.Errorf("%s: %w", id, ErrInvalidBrowseName)
	}

	s.mu.Lock()

	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()

		return fmt.Errorf("%s: %w", id, ErrUnknownNode)
	}

	s.children[n.Parent] = slices.DeleteFunc(s.children[n.Parent], func(child event.NodeID) bool {
		return child == id
	})

	var detached []detacher

	stack := []event.NodeID{id}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		stack = append(stack, s.children[current]...)
		detached = append(detached, s.owned[current]...)

		delete(s.children, current)
		delete(s.owned, current)
		delete(s.nodes, current)
	}

	s.mu.Unlock()

	for _, d := range detached {
		d.Detach()
	}

	return nil
}

// own records that an event belongs to a node.
func (s *Server) own(id event.NodeID, d detacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownNode)
	}

	s.owned[id] = append(s.owned[id], d)

	return nil
}

func childID(parent event.NodeID, browseName string) event.NodeID {
	if parent == ObjectsFolder {
		return event.NodeID(namespacePrefix + browseName)
	}

	return event.NodeID(parent.String() + "/" + browseName)
}
