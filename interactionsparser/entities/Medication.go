package entities

// Medication is a catalog entry used to populate the selectable list.
// The matcher only ever sees Name.
type Medication struct {
	ID       string `json:"id" yaml:"id" validate:"required,max=100"`
	Name     string `json:"name" yaml:"name" validate:"required,max=200"`
	Category string `json:"category" yaml:"category"`
	Scope    string `json:"scope,omitempty" yaml:"scope,omitempty"`
}
