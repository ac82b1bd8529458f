// Package entitycache implements the per-block write buffer described
// in spec §4.4 (component C4): it accumulates mapping-layer writes
// across one block, reconciles them against the persisted baseline, and
// emits the minimal set of EntityModifications a flush needs to apply.
package entitycache

import "github.com/chainspool/indexer/model"

// OpKind tags an EntityOp (spec §3.1/§4.4).
type OpKind int

const (
	OpRemove OpKind = iota
	OpUpdate
	OpOverwrite
)

// Op is the in-cache accumulator for one EntityKey within a block.
type Op struct {
	Kind   OpKind
	Entity model.Entity // unused for OpRemove
}

func RemoveOp() Op                        { return Op{Kind: OpRemove} }
func UpdateOp(e model.Entity) Op          { return Op{Kind: OpUpdate, Entity: e} }
func OverwriteOp(e model.Entity) Op       { return Op{Kind: OpOverwrite, Entity: e} }

// Accumulate folds next on top of the receiver, following the table in
// spec §4.4 exactly:
//
//	current   | next        | result
//	any       | Remove      | Remove
//	any       | Overwrite(e)| Overwrite(e)
//	Remove    | Update(e)   | Overwrite(e)
//	Update(a) | Update(b)   | Update(a.merge(b))
//	Overwrite(a)|Update(b)  | Overwrite(a.merge(b))
//
// merge preserves nulls from b (spec §4.1 Entity.Merge).
func (cur Op) Accumulate(next Op) Op {
	switch next.Kind {
	case OpRemove:
		return RemoveOp()
	case OpOverwrite:
		return OverwriteOp(next.Entity)
	case OpUpdate:
		switch cur.Kind {
		case OpRemove:
			return OverwriteOp(next.Entity)
		case OpUpdate:
			return UpdateOp(cur.Entity.Merge(next.Entity))
		case OpOverwrite:
			return OverwriteOp(cur.Entity.Merge(next.Entity))
		}
	}
	panic("entitycache: unreachable accumulate case")
}

// ApplyTo applies the op to a possibly-absent baseline entity, per the
// table in spec §4.4:
//
//	op          | entity   | result
//	Remove      | any      | None
//	Overwrite(n)| any      | Some(n)
//	Update(n)   | None     | Some(n)
//	Update(u)   | Some(e)  | Some(e.merge_remove_null_fields(u))
func (op Op) ApplyTo(entity *model.Entity) *model.Entity {
	switch op.Kind {
	case OpRemove:
		return nil
	case OpOverwrite:
		e := op.Entity
		return &e
	case OpUpdate:
		if entity == nil {
			e := op.Entity
			return &e
		}
		merged := entity.MergeRemoveNullFields(op.Entity)
		return &merged
	}
	panic("entitycache: unreachable apply case")
}
