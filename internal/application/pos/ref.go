package pos

import (
	"fmt"

	"github.com/google/uuid"
)

// Ref is the normalized form of a record reference used throughout the
// session engine. External payloads carry references either as {id, label}
// objects or as two-element [id, name] tuples; NormalizeRef folds both into
// this one shape at the boundary.
type Ref struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
}

// IsZero reports whether the reference points at nothing
func (r Ref) IsZero() bool {
	return r.ID == uuid.Nil
}

// NormalizeRef converts the reference shapes that arrive from external
// payloads into a Ref. Supported inputs: Ref, *Ref, a two-element tuple
// ([id, label]), and a map with "id" plus "label" or "name" keys. The second
// return value is false when the input cannot be interpreted.
func NormalizeRef(v interface{}) (Ref, bool) {
	switch ref := v.(type) {
	case nil:
		return Ref{}, false
	case Ref:
		return ref, !ref.IsZero()
	case *Ref:
		if ref == nil {
			return Ref{}, false
		}
		return *ref, !ref.IsZero()
	case []interface{}:
		if len(ref) < 1 {
			return Ref{}, false
		}
		id, ok := parseID(ref[0])
		if !ok {
			return Ref{}, false
		}
		label := ""
		if len(ref) > 1 {
			label = fmt.Sprintf("%v", ref[1])
		}
		return Ref{ID: id, Label: label}, true
	case map[string]interface{}:
		id, ok := parseID(ref["id"])
		if !ok {
			return Ref{}, false
		}
		label, _ := ref["label"].(string)
		if label == "" {
			label, _ = ref["name"].(string)
		}
		return Ref{ID: id, Label: label}, true
	default:
		return Ref{}, false
	}
}

// NormalizeRefs maps a slice of raw references, dropping the ones that do
// not normalize.
func NormalizeRefs(values []interface{}) []Ref {
	refs := make([]Ref, 0, len(values))
	for _, v := range values {
		if ref, ok := NormalizeRef(v); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

func parseID(v interface{}) (uuid.UUID, bool) {
	switch id := v.(type) {
	case uuid.UUID:
		return id, id != uuid.Nil
	case string:
		parsed, err := uuid.Parse(id)
		if err != nil {
			return uuid.Nil, false
		}
		return parsed, true
	default:
		return uuid.Nil, false
	}
}
