package model

// ModKind tags an EntityModification (spec §3.1).
type ModKind int

const (
	ModInsert ModKind = iota
	ModOverwrite
	ModRemove
)

func (m ModKind) String() string {
	switch m {
	case ModInsert:
		return "insert"
	case ModOverwrite:
		return "overwrite"
	case ModRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// EntityModification is the SQL-level primitive produced by flushing
// the entity cache at the end of a block (spec §3.1, §4.4).
type EntityModification struct {
	Kind ModKind
	Key  EntityKey
	Data Entity // zero value for ModRemove
}

func Insert(key EntityKey, data Entity) EntityModification {
	return EntityModification{Kind: ModInsert, Key: key, Data: data}
}

func Overwrite(key EntityKey, data Entity) EntityModification {
	return EntityModification{Kind: ModOverwrite, Key: key, Data: data}
}

func Remove(key EntityKey) EntityModification {
	return EntityModification{Kind: ModRemove, Key: key}
}
