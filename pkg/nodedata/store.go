package nodedata

import (
	"sort"
	"sync"

	"github.com/flowcanvas/flowcanvas/pkg/flow"
)

// Entry is the configuration and run state stored for one node.
type Entry struct {
	Kind         flow.Kind      `json:"node_type,omitempty"`
	Config       flow.Config    `json:"config"`
	InputSchema  flow.Schema    `json:"input_schema"`
	OutputSchema flow.Schema    `json:"output_schema"`
	Run          flow.RunData   `json:"run,omitempty"`
	TaskStatus   flow.RunStatus `json:"taskStatus,omitempty"`
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	return Entry{
		Kind:         e.Kind,
		Config:       e.Config.Clone(),
		InputSchema:  e.InputSchema.Clone(),
		OutputSchema: e.OutputSchema.Clone(),
		Run:          e.Run.Clone(),
		TaskStatus:   e.TaskStatus,
	}
}

// normalize fills absent schemas and re-applies the kind hook.
func (e *Entry) normalize() {
	e.InputSchema = e.InputSchema.OrEmpty()
	e.OutputSchema = e.OutputSchema.OrEmpty()
	flow.ApplyHook(e.Kind, &e.Config)
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Kind         *flow.Kind
	Config       *flow.Config
	InputSchema  flow.Schema
	OutputSchema flow.Schema
	Run          *flow.RunData
	TaskStatus   *flow.RunStatus
}

// Store keeps node data keyed by node id. It is independent of the canvas
// and has its own lock, so run-status writers never contend with structural
// edits.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	testInputs []flow.TestInput
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Set replaces the entry of id wholesale.
func (s *Store) Set(id string, e Entry) Entry {
	e = e.Clone()
	e.normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = e
	return e.Clone()
}

// Update merges p into the entry of id, creating it when absent. Config keys
// present in the patch replace stored keys one level deep, schemas merge per
// field, and every other field is overwritten when present.
func (s *Store) Update(id string, p Patch) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		e = Entry{Config: flow.Config{}, InputSchema: flow.Schema{}, OutputSchema: flow.Schema{}}
	} else {
		e = e.Clone()
	}

	if p.Kind != nil {
		e.Kind = *p.Kind
	}
	if p.Config != nil {
		e.Config = e.Config.Merge(*p.Config)
	}
	e.InputSchema = e.InputSchema.Merge(p.InputSchema)
	e.OutputSchema = e.OutputSchema.Merge(p.OutputSchema)
	if p.Run != nil {
		e.Run = p.Run.Clone()
	}
	if p.TaskStatus != nil {
		e.TaskStatus = *p.TaskStatus
	}
	e.normalize()

	s.entries[id] = e
	return e.Clone()
}

// RenameTitle sets config.title. It returns false when id has no entry.
func (s *Store) RenameTitle(id, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e.Config = e.Config.Clone()
	e.Config.Title = title
	s.entries[id] = e
	return true
}

// RenameSchemaField renames a key of the entry's config schema for the given
// direction ("input_schema" or "output_schema"), keeping its type. It
// returns false when the entry or the field does not exist.
func (s *Store) RenameSchemaField(id string, output bool, oldName, newName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e = e.Clone()

	target := &e.Config.InputSchema
	if output {
		target = &e.Config.OutputSchema
	}
	typ, ok := (*target)[oldName]
	if !ok {
		return false
	}
	delete(*target, oldName)
	(*target)[newName] = typ

	s.entries[id] = e
	return true
}

// SetRunData stores the output of the node's last execution.
func (s *Store) SetRunData(id string, run flow.RunData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryOrEmpty(id)
	e.Run = run.Clone()
	s.entries[id] = e
}

// SetTaskStatus stores the node's execution status.
func (s *Store) SetTaskStatus(id string, status flow.RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryOrEmpty(id)
	e.TaskStatus = status
	s.entries[id] = e
}

// SetRun stores run data and status together.
func (s *Store) SetRun(id string, run flow.RunData, status flow.RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryOrEmpty(id)
	e.Run = run.Clone()
	e.TaskStatus = status
	s.entries[id] = e
}

// entryOrEmpty returns a private copy of the entry, or a new one holding an
// empty config. Callers must hold the write lock.
func (s *Store) entryOrEmpty(id string) Entry {
	if e, ok := s.entries[id]; ok {
		return e.Clone()
	}
	return Entry{Config: flow.Config{}}
}

// Delete removes the entry of id.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// ResetAllRuns clears run data and status of every entry. Config and
// schemas are kept.
func (s *Store) ResetAllRuns() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		e.Run = nil
		e.TaskStatus = ""
		s.entries[id] = e
	}
}

// Clear removes every entry. Test inputs are kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
}

// Get returns a copy of the entry of id.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.Clone(), true
}

// All returns a copy of every entry.
func (s *Store) All() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Entry, len(s.entries))
	for id, e := range s.entries {
		out[id] = e.Clone()
	}
	return out
}

// IDs returns the ids of stored entries in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
