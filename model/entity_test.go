package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntityMergePreservesNulls(t *testing.T) {
	base := NewEntity(map[string]Value{"a": NewInt(1), "b": NewString("x")})
	update := NewEntity(map[string]Value{"b": Null})
	merged := base.Merge(update)
	v, ok := merged.Get("b")
	require.True(t, ok)
	require.True(t, v.IsNull())
}

func TestEntityMergeRemoveNullFieldsDeletesKeys(t *testing.T) {
	base := NewEntity(map[string]Value{"a": NewInt(1), "b": NewString("x")})
	update := NewEntity(map[string]Value{"b": Null})
	merged := base.MergeRemoveNullFields(update)
	require.False(t, merged.ContainsKey("b"))
	v, _ := merged.Get("a")
	require.Equal(t, int32(1), v.AsInt())
}

func TestMergeRemoveNullFieldsIdempotent(t *testing.T) {
	base := NewEntity(map[string]Value{"a": NewInt(1), "c": NewInt(5)})
	update := NewEntity(map[string]Value{"a": NewInt(0), "c": Null})
	once := base.MergeRemoveNullFields(update)
	twice := once.MergeRemoveNullFields(update)
	require.True(t, once.Equal(twice))
}

func TestEntityIDRequiresStringID(t *testing.T) {
	e := NewEntity(map[string]Value{"id": NewInt(1)})
	_, err := e.ID()
	require.Error(t, err)

	e2 := NewEntity(map[string]Value{"id": NewString("a")})
	id, err := e2.ID()
	require.NoError(t, err)
	require.Equal(t, "a", id)

	e3 := NewEntity(nil)
	_, err = e3.ID()
	require.Error(t, err)
}

func TestEntityKeyOrdering(t *testing.T) {
	a := EntityKey{Deployment: "d1", Type: "Scalar", ID: "a"}
	b := EntityKey{Deployment: "d1", Type: "Scalar", ID: "b"}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
}

func TestDeploymentHashRejectsReservedWord(t *testing.T) {
	_, err := NewDeploymentHash("indexer")
	require.Error(t, err)

	_, err = NewDeploymentHash("QmAbc123")
	require.NoError(t, err)
}
