package kb

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/signalsfoundry/globe-scale/model"
)

var (
	// ErrModeExists indicates a mode with the same name is already registered.
	ErrModeExists = errors.New("mode already exists")
	// ErrModeNotFound indicates a requested mode was not found.
	ErrModeNotFound = errors.New("mode not found")
	// ErrModeInvalid indicates a mode failed validation.
	ErrModeInvalid = errors.New("invalid mode")
)

// EventType indicates what kind of change happened in the table.
type EventType int

const (
	EventModeUpserted EventType = iota
	EventTableReplaced
)

// Event is emitted to subscribers when the mode table changes.
type Event struct {
	Type EventType
	Mode model.Mode
}

// ModeTable is an in-memory, thread-safe registry of comparison modes.
// Modes are stored by value, so callers can never mutate a registered
// entry through a returned copy.
type ModeTable struct {
	mu sync.RWMutex

	modes map[string]model.Mode

	subs map[int]func(Event)
	next int
}

// NewModeTable constructs an empty table.
func NewModeTable() *ModeTable {
	return &ModeTable{
		modes: make(map[string]model.Mode),
		subs:  make(map[int]func(Event)),
	}
}

// NewDefaultModeTable constructs a table preloaded with DefaultModes.
func NewDefaultModeTable() *ModeTable {
	t := NewModeTable()
	for _, m := range DefaultModes() {
		t.modes[m.Name] = m
	}
	return t
}

// DefaultModes returns the built-in mode configuration. Quantities that are
// themselves lengths scale linearly; counts and amounts scale by area.
func DefaultModes() []model.Mode {
	return []model.Mode{
		{Name: "size", ScaleKind: model.ScaleLinear, LengthIsRadius: false, Description: "object diameters"},
		{Name: "distance", ScaleKind: model.ScaleLinear, LengthIsRadius: true, Description: "distances drawn as radii"},
		{Name: "time", ScaleKind: model.ScaleLinear, LengthIsRadius: true, Description: "years from now drawn as radii"},
		{Name: "mass", ScaleKind: model.ScaleAreaPreserving, LengthIsRadius: false, Description: "masses"},
		{Name: "population", ScaleKind: model.ScaleAreaPreserving, LengthIsRadius: false, Description: "head counts"},
		{Name: "area", ScaleKind: model.ScaleAreaPreserving, LengthIsRadius: false, Description: "land areas"},
		{Name: "money", ScaleKind: model.ScaleAreaPreserving, LengthIsRadius: false, Description: "monetary amounts"},
		{Name: "count", ScaleKind: model.ScaleAreaPreserving, LengthIsRadius: false, Description: "abstract counts"},
	}
}

// ValidateMode checks a mode before it enters the table.
func ValidateMode(m model.Mode) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrModeInvalid)
	}
	if !m.ScaleKind.Valid() {
		return fmt.Errorf("%w: mode %q has unknown scale kind", ErrModeInvalid, m.Name)
	}
	return nil
}

// AddMode registers a new mode. It fails if the name is already taken.
func (t *ModeTable) AddMode(m model.Mode) error {
	if err := ValidateMode(m); err != nil {
		return err
	}

	t.mu.Lock()
	if _, exists := t.modes[m.Name]; exists {
		t.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrModeExists, m.Name)
	}
	t.modes[m.Name] = m
	subs := t.snapshotSubsLocked()
	t.mu.Unlock()

	notify(subs, Event{Type: EventModeUpserted, Mode: m})
	return nil
}

// UpsertMode registers or replaces a mode.
func (t *ModeTable) UpsertMode(m model.Mode) error {
	if err := ValidateMode(m); err != nil {
		return err
	}

	t.mu.Lock()
	t.modes[m.Name] = m
	subs := t.snapshotSubsLocked()
	t.mu.Unlock()

	notify(subs, Event{Type: EventModeUpserted, Mode: m})
	return nil
}

// GetMode returns the mode with the given name.
func (t *ModeTable) GetMode(name string) (model.Mode, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m, ok := t.modes[name]
	if !ok {
		return model.Mode{}, fmt.Errorf("%w: %q", ErrModeNotFound, name)
	}
	return m, nil
}

// ListModes returns all modes sorted by name.
func (t *ModeTable) ListModes() []model.Mode {
	t.mu.RLock()
	res := make([]model.Mode, 0, len(t.modes))
	for _, m := range t.modes {
		res = append(res, m)
	}
	t.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Replace swaps the whole table for modes. Nothing changes if any mode is
// invalid or a name repeats.
func (t *ModeTable) Replace(modes []model.Mode) error {
	next := make(map[string]model.Mode, len(modes))
	for _, m := range modes {
		if err := ValidateMode(m); err != nil {
			return err
		}
		if _, dup := next[m.Name]; dup {
			return fmt.Errorf("%w: %q", ErrModeExists, m.Name)
		}
		next[m.Name] = m
	}

	t.mu.Lock()
	t.modes = next
	subs := t.snapshotSubsLocked()
	t.mu.Unlock()

	notify(subs, Event{Type: EventTableReplaced})
	return nil
}

// Subscribe registers a callback for table events. It returns an
// unsubscribe function.
func (t *ModeTable) Subscribe(fn func(Event)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	t.subs[id] = fn

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

func (t *ModeTable) snapshotSubsLocked() []func(Event) {
	subs := make([]func(Event), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	return subs
}

// notify runs outside the lock so subscribers may call back into the table.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
