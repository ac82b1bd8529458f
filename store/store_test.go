package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainspool/indexer/model"
)

func TestGroupModsBucketsByKindAndType(t *testing.T) {
	k1 := model.EntityKey{Type: "Account", ID: "a"}
	k2 := model.EntityKey{Type: "Account", ID: "b"}
	k3 := model.EntityKey{Type: "Transfer", ID: "t1"}

	mods := []model.EntityModification{
		model.Insert(k1, model.NewEntity(map[string]model.Value{"id": model.NewString("a")})),
		model.Overwrite(k2, model.NewEntity(map[string]model.Value{"id": model.NewString("b")})),
		model.Remove(k3),
	}

	g := groupMods(mods)
	require.Len(t, g.insert["Account"], 1)
	require.Len(t, g.overwrite["Account"], 1)
	require.Len(t, g.remove["Transfer"], 1)
}

func TestIdsExtractsModificationKeyIDs(t *testing.T) {
	mods := []model.EntityModification{
		model.Remove(model.EntityKey{Type: "Account", ID: "a"}),
		model.Remove(model.EntityKey{Type: "Account", ID: "b"}),
	}
	require.Equal(t, []string{"a", "b"}, ids(mods))
}
