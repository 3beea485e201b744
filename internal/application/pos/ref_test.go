package pos

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRefFromTuple(t *testing.T) {
	id := uuid.New()

	ref, ok := NormalizeRef([]interface{}{id.String(), "Dr. Amal"})
	require.True(t, ok)
	assert.Equal(t, id, ref.ID)
	assert.Equal(t, "Dr. Amal", ref.Label)

	// Tuple without a label still normalizes
	ref, ok = NormalizeRef([]interface{}{id.String()})
	require.True(t, ok)
	assert.Equal(t, id, ref.ID)
	assert.Empty(t, ref.Label)
}

func TestNormalizeRefFromMap(t *testing.T) {
	id := uuid.New()

	ref, ok := NormalizeRef(map[string]interface{}{"id": id.String(), "label": "Room 2"})
	require.True(t, ok)
	assert.Equal(t, "Room 2", ref.Label)

	// "name" is accepted as a label alias
	ref, ok = NormalizeRef(map[string]interface{}{"id": id, "name": "Room 3"})
	require.True(t, ok)
	assert.Equal(t, "Room 3", ref.Label)
}

func TestNormalizeRefRejectsGarbage(t *testing.T) {
	cases := []interface{}{
		nil,
		42,
		"not-a-ref",
		[]interface{}{},
		[]interface{}{"not-a-uuid", "label"},
		map[string]interface{}{"label": "missing id"},
	}
	for _, c := range cases {
		_, ok := NormalizeRef(c)
		assert.False(t, ok, "expected %#v to be rejected", c)
	}
}

func TestNormalizeRefs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	refs := NormalizeRefs([]interface{}{
		[]interface{}{a.String(), "Milo"},
		"garbage",
		map[string]interface{}{"id": b.String(), "name": "Luna"},
	})
	require.Len(t, refs, 2)
	assert.Equal(t, a, refs[0].ID)
	assert.Equal(t, b, refs[1].ID)
}
