package coins

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var (
	// ErrUnknownDenomination is returned when a class index or identifier does
	// not resolve to a registry entry.
	ErrUnknownDenomination = errors.New("unknown denomination class")

	// ErrInvalidRegistry is returned when registry entries fail validation.
	ErrInvalidRegistry = errors.New("invalid denomination registry")
)

var validate = validator.New()

// Denomination is a registered coin class.
type Denomination struct {
	// Class is the identifier the classifier was trained with (e.g. "50_cents").
	Class string `json:"class" validate:"required"`

	// Label is the human-readable name drawn on the overlay.
	Label string `json:"label" validate:"required"`

	// Value is the monetary value of one coin.
	Value float64 `json:"value" validate:"gte=0"`
}

// Registry is an immutable, ordered set of denominations.
type Registry struct {
	entries []Denomination
	byClass map[string]int
}

// NewRegistry validates entries and builds a registry that preserves their order.
func NewRegistry(entries []Denomination) (*Registry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no denominations", ErrInvalidRegistry)
	}

	r := &Registry{
		entries: make([]Denomination, len(entries)),
		byClass: make(map[string]int, len(entries)),
	}
	for i, d := range entries {
		if err := validate.Struct(d); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidRegistry, i, err)
		}
		if _, dup := r.byClass[d.Class]; dup {
			return nil, fmt.Errorf("%w: duplicate class %q", ErrInvalidRegistry, d.Class)
		}
		r.byClass[d.Class] = i
		r.entries[i] = d
	}
	return r, nil
}

// DefaultRegistry returns the Brazilian real coin set, in the output order of
// the bundled classifier model.
func DefaultRegistry() *Registry {
	r, err := NewRegistry([]Denomination{
		{Class: "1_real", Label: "1 real", Value: 1},
		{Class: "50_cents", Label: "50 centavos", Value: 0.5},
		{Class: "25_cents", Label: "25 centavos", Value: 0.25},
		{Class: "10_cents", Label: "10 centavos", Value: 0.1},
		{Class: "5_cents", Label: "5 centavos", Value: 0.05},
	})
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRegistry reads a JSON array of denominations from path.
//
// The array order must match the classifier's output order.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var entries []Denomination
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}
	return NewRegistry(entries)
}

// Len returns the number of denominations.
func (r *Registry) Len() int {
	return len(r.entries)
}

// At returns the denomination for a classifier output index.
func (r *Registry) At(index int) (Denomination, error) {
	if index < 0 || index >= len(r.entries) {
		return Denomination{}, fmt.Errorf("%w: index %d outside registry of %d", ErrUnknownDenomination, index, len(r.entries))
	}
	return r.entries[index], nil
}

// Lookup returns the denomination registered under class.
func (r *Registry) Lookup(class string) (Denomination, error) {
	i, ok := r.byClass[class]
	if !ok {
		return Denomination{}, fmt.Errorf("%w: %q", ErrUnknownDenomination, class)
	}
	return r.entries[i], nil
}

// All returns a copy of the denominations in registry order.
func (r *Registry) All() []Denomination {
	out := make([]Denomination, len(r.entries))
	copy(out, r.entries)
	return out
}
