package interactions

import (
	"encoding/json"
	"slices"
)

// SelectionSet is the set of medication names chosen for one assessment.
// Insertion order is kept for display; adding an already-selected name is a no-op.
// The zero value is an empty, ready to use set.
type SelectionSet struct {
	names []string
}

// NewSelectionSet builds a set from names, silently dropping repeats
func NewSelectionSet(names ...string) SelectionSet {
	var s SelectionSet
	for _, name := range names {
		s.Add(name)
	}
	return s
}

// Add appends name and reports whether it was not already selected
func (s *SelectionSet) Add(name string) bool {
	if s.Contains(name) {
		return false
	}
	s.names = append(s.names, name)
	return true
}

// Remove drops name and reports whether it was selected
func (s *SelectionSet) Remove(name string) bool {
	idx := slices.Index(s.names, name)
	if idx < 0 {
		return false
	}
	s.names = slices.Delete(s.names, idx, idx+1)
	return true
}

// Contains reports whether name is selected
func (s SelectionSet) Contains(name string) bool {
	return slices.Contains(s.names, name)
}

// Names returns a copy of the selected names in insertion order
func (s SelectionSet) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// Len returns the number of selected names
func (s SelectionSet) Len() int {
	return len(s.names)
}

// Clear empties the set
func (s *SelectionSet) Clear() {
	s.names = nil
}

// MarshalJSON encodes the set as a plain JSON array
func (s SelectionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes a JSON array, dropping repeats
func (s *SelectionSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewSelectionSet(names...)
	return nil
}
