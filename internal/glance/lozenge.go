// Package glance renders glance content, publishes updates to the platform
// and verifies signed glance data requests.
package glance

import "fmt"

// LozengeType is one of the platform's fixed lozenge kinds.
type LozengeType string

const (
	LozengeEmpty    LozengeType = "empty"
	LozengeDefault  LozengeType = "default"
	LozengeSuccess  LozengeType = "success"
	LozengeCurrent  LozengeType = "current"
	LozengeComplete LozengeType = "complete"
	LozengeError    LozengeType = "error"
	LozengeNew      LozengeType = "new"
	LozengeMoved    LozengeType = "moved"
)

var lozengeTypes = map[LozengeType]bool{
	LozengeEmpty: true, LozengeDefault: true, LozengeSuccess: true, LozengeCurrent: true,
	LozengeComplete: true, LozengeError: true, LozengeNew: true, LozengeMoved: true,
}

// maxLozengeLabel matches the stored column width.
const maxLozengeLabel = 20

// ParseLozengeType accepts the wire names; "" is read as empty.
func ParseLozengeType(s string) (LozengeType, error) {
	if s == "" {
		return LozengeEmpty, nil
	}
	t := LozengeType(s)
	if !lozengeTypes[t] {
		return "", fmt.Errorf("unknown lozenge type %q", s)
	}
	return t, nil
}

// Lozenge is a status badge. The zero value is the empty lozenge.
type Lozenge struct {
	kind  LozengeType
	label string
}

// NewLozenge validates kind and label length.
func NewLozenge(kind LozengeType, label string) (Lozenge, error) {
	if !lozengeTypes[kind] {
		return Lozenge{}, fmt.Errorf("unknown lozenge type %q", kind)
	}
	if len([]rune(label)) > maxLozengeLabel {
		return Lozenge{}, fmt.Errorf("lozenge label longer than %d chars", maxLozengeLabel)
	}
	return Lozenge{kind: kind, label: label}, nil
}

// MustLozenge is NewLozenge for constant arguments.
func MustLozenge(kind LozengeType, label string) Lozenge {
	l, err := NewLozenge(kind, label)
	if err != nil {
		panic(err)
	}
	return l
}

func (l Lozenge) Type() LozengeType {
	if l.kind == "" {
		return LozengeEmpty
	}
	return l.kind
}

func (l Lozenge) Label() string { return l.label }

func (l Lozenge) IsEmpty() bool { return l.Type() == LozengeEmpty }

// Icon is a normal and a hi-res icon URL.
type Icon struct {
	URL   string `json:"url"`
	URL2x string `json:"url@2x"`
}

func (i Icon) IsEmpty() bool { return i.URL == "" }
