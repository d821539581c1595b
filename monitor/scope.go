package monitor

import (
	"fmt"
	"strings"
)

type ScopeType string

const (
	ScopeAll      ScopeType = "all"
	ScopeCenter   ScopeType = "center"
	ScopeProducer ScopeType = "producer"
	ScopeAdmin    ScopeType = "admin"
)

// Scope narrows a notification pass to a category or a single subject.
type Scope struct {
	Type       ScopeType
	CenterID   uint
	ProducerID uint
}

func ParseScope(kind string, centerID, producerID uint) (Scope, error) {
	t := ScopeType(strings.ToLower(strings.TrimSpace(kind)))
	if t == "" {
		t = ScopeAll
	}
	switch t {
	case ScopeAll, ScopeCenter, ScopeProducer, ScopeAdmin:
	default:
		return Scope{}, fmt.Errorf("unknown notification type %q (want all, center, producer or admin)", kind)
	}
	if t == ScopeAdmin && (centerID != 0 || producerID != 0) {
		return Scope{}, fmt.Errorf("--center-id and --producer-id cannot be combined with type admin")
	}
	if t == ScopeCenter && producerID != 0 {
		return Scope{}, fmt.Errorf("--producer-id cannot be combined with type center")
	}
	if t == ScopeProducer && centerID != 0 {
		return Scope{}, fmt.Errorf("--center-id cannot be combined with type producer")
	}
	return Scope{Type: t, CenterID: centerID, ProducerID: producerID}, nil
}

// Categories lists what a pass in this scope evaluates, in pass order.
// Naming a subject id restricts the pass to that subject's category.
func (s Scope) Categories() []Category {
	if s.CenterID != 0 || s.ProducerID != 0 {
		var out []Category
		if s.CenterID != 0 {
			out = append(out, CategoryCenter)
		}
		if s.ProducerID != 0 {
			out = append(out, CategoryProducer)
		}
		return out
	}
	switch s.Type {
	case ScopeCenter:
		return []Category{CategoryCenter}
	case ScopeProducer:
		return []Category{CategoryProducer}
	case ScopeAdmin:
		return []Category{CategoryAdmin}
	default:
		return []Category{CategoryCenter, CategoryProducer, CategoryAdmin}
	}
}
