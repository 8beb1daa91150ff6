package nodedata

import "github.com/flowcanvas/flowcanvas/pkg/flow"

// TestInputs returns a copy of the test input list.
func (s *Store) TestInputs() []flow.TestInput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneInputs(s.testInputs)
}

// SetTestInputs replaces the test input list.
func (s *Store) SetTestInputs(inputs []flow.TestInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testInputs = cloneInputs(inputs)
}

// AddTestInput appends a test input.
func (s *Store) AddTestInput(in flow.TestInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testInputs = append(s.testInputs, in.Clone())
}

// UpdateTestInput merges fields into the test input with the given id.
// It returns false when no such input exists.
func (s *Store) UpdateTestInput(id string, fields map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.testInputs {
		if s.testInputs[i].ID != id {
			continue
		}
		updated := s.testInputs[i].Clone()
		if updated.Values == nil {
			updated.Values = make(map[string]any, len(fields))
		}
		patch := flow.TestInput{ID: id, Values: fields}.Clone()
		delete(patch.Values, "id")
		for k, v := range patch.Values {
			updated.Values[k] = v
		}
		s.testInputs[i] = updated
		return true
	}
	return false
}

// DeleteTestInput removes the test input with the given id.
func (s *Store) DeleteTestInput(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.testInputs[:0:0]
	for _, in := range s.testInputs {
		if in.ID != id {
			kept = append(kept, in)
		}
	}
	removed := len(kept) != len(s.testInputs)
	s.testInputs = kept
	return removed
}

func cloneInputs(inputs []flow.TestInput) []flow.TestInput {
	if inputs == nil {
		return nil
	}
	out := make([]flow.TestInput, len(inputs))
	for i, in := range inputs {
		out[i] = in.Clone()
	}
	return out
}
