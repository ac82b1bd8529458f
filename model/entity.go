package model

import (
	"fmt"
	"regexp"
	"sort"
)

// entityTypeRE validates EntityType names (spec §3.1).
var entityTypeRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// EntityType is a typed wrapper around a schema type name, kept
// distinct from plain strings so a table name can never accidentally be
// passed where an attribute name is expected.
type EntityType string

// NewEntityType validates name against spec §3.1's identifier grammar.
func NewEntityType(name string) (EntityType, error) {
	if !entityTypeRE.MatchString(name) {
		return "", fmt.Errorf("model: %q is not a valid entity type name", name)
	}
	return EntityType(name), nil
}

func (t EntityType) String() string { return string(t) }

// reservedDeploymentHash is the one DeploymentHash value §3.1 forbids,
// because it collides with the instance-wide metadata namespace.
const reservedDeploymentHash = "indexer"

var deploymentHashRE = regexp.MustCompile(`^[A-Za-z0-9_]{1,46}$`)

// DeploymentHash is an opaque, immutable external deployment id (spec §3.1).
type DeploymentHash string

func NewDeploymentHash(s string) (DeploymentHash, error) {
	if !deploymentHashRE.MatchString(s) {
		return "", fmt.Errorf("model: %q is not a valid deployment hash", s)
	}
	if s == reservedDeploymentHash {
		return "", fmt.Errorf("model: deployment hash %q is reserved", s)
	}
	return DeploymentHash(s), nil
}

func (d DeploymentHash) String() string { return string(d) }

// EntityKey is the triple (deployment, entity_type, entity_id),
// totally ordered lexicographically (spec §3.1).
type EntityKey struct {
	Deployment DeploymentHash
	Type       EntityType
	ID         string
}

// Less implements the lexicographic ordering spec §3.1 requires.
func (k EntityKey) Less(other EntityKey) bool {
	if k.Deployment != other.Deployment {
		return k.Deployment < other.Deployment
	}
	if k.Type != other.Type {
		return k.Type < other.Type
	}
	return k.ID < other.ID
}

func (k EntityKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Deployment, k.Type, k.ID)
}

// Entity is a mapping from attribute name to Value. The zero value is
// an empty, usable Entity.
type Entity struct {
	attrs map[string]Value
}

// NewEntity builds an Entity from a map, taking ownership of a copy.
func NewEntity(attrs map[string]Value) Entity {
	e := Entity{attrs: make(map[string]Value, len(attrs))}
	for k, v := range attrs {
		e.attrs[k] = v
	}
	return e
}

func (e Entity) ensure() map[string]Value {
	if e.attrs == nil {
		return map[string]Value{}
	}
	return e.attrs
}

// Get returns the attribute named key and whether it is present.
func (e Entity) Get(key string) (Value, bool) {
	v, ok := e.ensure()[key]
	return v, ok
}

// ContainsKey reports whether key is present (including if its value is Null).
func (e Entity) ContainsKey(key string) bool {
	_, ok := e.ensure()[key]
	return ok
}

// Insert returns a copy of e with key set to value.
func (e Entity) Insert(key string, value Value) Entity {
	out := e.Clone()
	out.attrs[key] = value
	return out
}

// Remove returns a copy of e with key deleted.
func (e Entity) Remove(key string) Entity {
	out := e.Clone()
	delete(out.attrs, key)
	return out
}

// Clone deep-copies the attribute map (Values are immutable once
// constructed, so a shallow value-copy of the map suffices).
func (e Entity) Clone() Entity {
	out := Entity{attrs: make(map[string]Value, len(e.attrs))}
	for k, v := range e.attrs {
		out.attrs[k] = v
	}
	return out
}

// Len reports the number of attributes.
func (e Entity) Len() int { return len(e.attrs) }

// SortedAttributeNames returns attribute names in sorted order, for
// deterministic iteration (spec §4.1, used by hashing and SQL column
// binding).
func (e Entity) SortedAttributeNames() []string {
	names := make([]string, 0, len(e.attrs))
	for k := range e.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ID extracts the `id` attribute as a string. It fails when absent or
// not a String (spec §3.1, Entity::id()).
func (e Entity) ID() (string, error) {
	v, ok := e.Get("id")
	if !ok {
		return "", fmt.Errorf("model: entity has no id attribute")
	}
	if v.Kind() != KindString {
		return "", fmt.Errorf("model: entity id attribute is not a string (got %s)", v.Kind())
	}
	return v.AsString(), nil
}

// Merge returns a new Entity where attributes from update take
// precedence over e's, preserving update's explicit Nulls (spec §4.1
// merge).
func (e Entity) Merge(update Entity) Entity {
	out := e.Clone()
	for k, v := range update.ensure() {
		out.attrs[k] = v
	}
	return out
}

// MergeRemoveNullFields is like Merge, except a Null attribute in
// update deletes the key from the result instead of overwriting it with
// Null (spec §4.1 merge_remove_null_fields).
func (e Entity) MergeRemoveNullFields(update Entity) Entity {
	out := e.Clone()
	for k, v := range update.ensure() {
		if v.IsNull() {
			delete(out.attrs, k)
			continue
		}
		out.attrs[k] = v
	}
	return out
}

// RemoveNullFields strips every attribute whose value is Null, used
// before comparing a freshly-applied op against the persisted baseline
// (spec §4.4 Flush: "new is present (null fields removed first)").
func (e Entity) RemoveNullFields() Entity {
	out := Entity{attrs: make(map[string]Value, len(e.attrs))}
	for k, v := range e.attrs {
		if v.IsNull() {
			continue
		}
		out.attrs[k] = v
	}
	return out
}

// Equal reports whether two entities have exactly the same attributes.
func (e Entity) Equal(other Entity) bool {
	if len(e.attrs) != len(other.attrs) {
		return false
	}
	for k, v := range e.attrs {
		ov, ok := other.attrs[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Attributes returns a defensive copy of the underlying map, for
// callers (e.g. the SQL builder) that need to range over name->Value
// pairs directly.
func (e Entity) Attributes() map[string]Value {
	out := make(map[string]Value, len(e.attrs))
	for k, v := range e.attrs {
		out[k] = v
	}
	return out
}
