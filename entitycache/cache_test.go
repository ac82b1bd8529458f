package entitycache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainspool/indexer/model"
)

type fakeBaseline struct {
	data map[model.EntityKey]model.Entity
}

func (f *fakeBaseline) GetMany(_ context.Context, deployment model.DeploymentHash, idsByType map[model.EntityType][]string) (map[model.EntityKey]model.Entity, error) {
	out := map[model.EntityKey]model.Entity{}
	for typ, ids := range idsByType {
		for _, id := range ids {
			key := model.EntityKey{Deployment: deployment, Type: typ, ID: id}
			if e, ok := f.data[key]; ok {
				out[key] = e
			}
		}
	}
	return out, nil
}

func TestAccumulateSequenceFromSpecE5(t *testing.T) {
	// Accumulate [Update({a:1}), Remove, Update({b:2})] on an initially
	// present entity {a:0, c:5} yields Overwrite({b:2}).
	var acc Op = UpdateOp(model.NewEntity(map[string]model.Value{"a": model.NewInt(1)}))
	acc = acc.Accumulate(RemoveOp())
	acc = acc.Accumulate(UpdateOp(model.NewEntity(map[string]model.Value{"b": model.NewInt(2)})))

	require.Equal(t, OpOverwrite, acc.Kind)

	base := model.NewEntity(map[string]model.Value{"id": model.NewString("a"), "a": model.NewInt(0), "c": model.NewInt(5)})
	result := acc.ApplyTo(&base)
	require.NotNil(t, result)
	require.False(t, result.ContainsKey("a"))
	require.False(t, result.ContainsKey("c"))
	v, ok := result.Get("b")
	require.True(t, ok)
	require.Equal(t, int32(2), v.AsInt())
}

func TestFlushEmitsInsertOverwriteRemove(t *testing.T) {
	dep := model.DeploymentHash("QmTest")
	key := model.EntityKey{Deployment: dep, Type: "Scalar", ID: "a"}

	c := NewCache(dep, 10_000_000)
	baseline := &fakeBaseline{data: map[model.EntityKey]model.Entity{}}

	c.Set(key, model.NewEntity(map[string]model.Value{"id": model.NewString("a"), "string": model.NewString("x"), "int": model.NewInt(1)}))
	res, err := c.Flush(context.Background(), baseline)
	require.NoError(t, err)
	require.Len(t, res.Modifications, 1)
	require.Equal(t, model.ModInsert, res.Modifications[0].Kind)

	// seed baseline so the next flush sees this as the current row
	baseline.data[key] = res.Modifications[0].Data

	c.Set(key, model.NewEntity(map[string]model.Value{"id": model.NewString("a"), "int": model.NewInt(2)}))
	res, err = c.Flush(context.Background(), baseline)
	require.NoError(t, err)
	require.Len(t, res.Modifications, 1)
	require.Equal(t, model.ModOverwrite, res.Modifications[0].Kind)
	v, _ := res.Modifications[0].Data.Get("string")
	require.Equal(t, "x", v.AsString()) // preserved via merge_remove_null_fields

	baseline.data[key] = res.Modifications[0].Data

	c.Remove(key)
	res, err = c.Flush(context.Background(), baseline)
	require.NoError(t, err)
	require.Len(t, res.Modifications, 1)
	require.Equal(t, model.ModRemove, res.Modifications[0].Kind)
}

func TestHandlerFramingDiscardsOnFailure(t *testing.T) {
	dep := model.DeploymentHash("QmTest")
	key := model.EntityKey{Deployment: dep, Type: "Scalar", ID: "a"}
	c := NewCache(dep, 10_000_000)

	require.NoError(t, c.EnterHandler())
	c.Set(key, model.NewEntity(map[string]model.Value{"id": model.NewString("a")}))
	c.ExitHandlerAndDiscardChanges()

	_, ok := c.Get(key)
	require.False(t, ok)

	require.NoError(t, c.EnterHandler())
	c.Set(key, model.NewEntity(map[string]model.Value{"id": model.NewString("a")}))
	c.ExitHandler()

	_, ok = c.Get(key)
	require.True(t, ok)
}

func TestNestedHandlerRejected(t *testing.T) {
	dep := model.DeploymentHash("QmTest")
	c := NewCache(dep, 1000)
	require.NoError(t, c.EnterHandler())
	require.Error(t, c.EnterHandler())
}
