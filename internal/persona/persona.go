// Package persona defines the public figures available in the /talk flow.
// Each persona carries the system prompt that makes the model answer in
// that person's voice.
package persona

import (
	"fmt"
	"sort"
)

// Persona is one selectable dialogue partner
type Persona struct {
	// ID is the callback payload used on selection buttons, e.g. "talk_linus_torvalds"
	ID string

	// Name is the short display name used to prefix replies
	Name string

	// Label is the button label shown in the selection menu
	Label string

	// SystemPrompt instructs the model to answer as this person
	SystemPrompt string
}

// Manager holds the persona catalog
type Manager struct {
	builtIn map[string]*Persona
}

// NewManager creates a manager populated with the built-in personas
func NewManager() *Manager {
	m := &Manager{builtIn: make(map[string]*Persona)}
	m.registerBuiltIn()
	return m
}

// Get returns the persona with the given ID
func (m *Manager) Get(id string) (*Persona, error) {
	p, ok := m.builtIn[id]
	if !ok {
		return nil, fmt.Errorf("persona '%s' not found", id)
	}
	return p, nil
}

// Has reports whether a persona with the given ID exists
func (m *Manager) Has(id string) bool {
	_, ok := m.builtIn[id]
	return ok
}

// List returns all personas ordered by ID
func (m *Manager) List() []*Persona {
	all := make([]*Persona, 0, len(m.builtIn))
	for _, p := range m.builtIn {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}
