package item

import "strings"

// Placeholder is embedded instead of an empty display text so backends never see "".
const Placeholder = "item"

// Display holds the caller-supplied presentation fields of an item.
// The engine copies them into results verbatim.
type Display struct {
	Title       string
	Description string
	Category    string
	Location    string
	Type        string
	ImageURL    string
	CreatedAt   string
	User        map[string]any
}

// Item is a ranking candidate supplied by the caller (immutable value object).
type Item struct {
	id      string
	display Display
	vector  []float32
}

// New creates an Item. The vector is optional; it is copied so later caller
// mutations cannot leak into a running search.
func New(id string, display Display, vector []float32) Item {
	var v []float32
	if len(vector) > 0 {
		v = make([]float32, len(vector))
		copy(v, vector)
	}
	return Item{id: id, display: display, vector: v}
}

// ID returns the caller's item identifier (may be empty).
func (i *Item) ID() string { return i.id }

// Display returns the presentation fields.
func (i *Item) Display() Display { return i.display }

// Vector returns the pre-computed embedding, or nil.
func (i *Item) Vector() []float32 { return i.vector }

// HasUsableVector reports whether the pre-computed vector can be compared
// against a query vector of dimension dim.
func (i *Item) HasUsableVector(dim int) bool {
	return len(i.vector) > 0 && len(i.vector) == dim
}

// EmbeddingText joins title, description, category and location with spaces.
// Returns Placeholder when every field is blank.
func (i *Item) EmbeddingText() string {
	d := i.display
	text := strings.TrimSpace(strings.Join([]string{d.Title, d.Description, d.Category, d.Location}, " "))
	if text == "" {
		return Placeholder
	}
	return text
}
