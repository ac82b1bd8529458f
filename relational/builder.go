// Package relational builds the parameter-bound SQL fragments that read
// and write block-range versioned rows (component C3). No value is ever
// concatenated into a query string; every fragment binds through
// positional placeholders, grounded on turbo-geth's and
// _examples/other_examples/85921b0c_ethereum-go-ethereum__statediff-
// indexer-indexer.go.go's sqlx.Tx usage.
package relational

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/chainspool/indexer/model"
	"github.com/chainspool/indexer/schema"
)

// DefaultMaxParams matches lib/pq's practical bound on the number of
// bind parameters a single statement may carry.
const DefaultMaxParams = 65535

// Query is a single parameter-bound SQL statement. Every Query produced
// by this package is unsafe to cache as a prepared statement: its text
// varies per batch (chunk size, id count), so a driver-side prepared
// statement cache keyed on text would thrash or collide.
type Query struct {
	SQL              string
	Args             []interface{}
	UnsafeToCachePrepared bool
}

// Builder compiles Layout-aware SQL fragments.
type Builder struct {
	maxParams int
}

// NewBuilder constructs a Builder. maxParams <= 0 selects DefaultMaxParams.
func NewBuilder(maxParams int) *Builder {
	if maxParams <= 0 {
		maxParams = DefaultMaxParams
	}
	return &Builder{maxParams: maxParams}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func columnList(t schema.Table) []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// FindQuery returns the row whose block_range contains block, using the
// half-open containment the range type's `@>` operator implements
// natively (spec §4.3).
func (b *Builder) FindQuery(t schema.Table, id string, block int32) Query {
	cols := columnList(t)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	sql := fmt.Sprintf(
		`select %s from %s where id = $1 and block_range @> $2::integer`,
		strings.Join(quoted, ", "), quoteIdent(t.Name),
	)
	return Query{SQL: sql, Args: []interface{}{id, block}, UnsafeToCachePrepared: true}
}

// FindManyQuery produces the union of per-table lookups for a batched
// prefetch, one clause per entity type, all sharing the same block
// (spec §4.3). The result set carries a synthetic __entity_type column
// so the cache can route each row back to its EntityKey.
func (b *Builder) FindManyQuery(tables map[model.EntityType]schema.Table, idsByType map[model.EntityType][]string, block int32) (Query, error) {
	types := make([]string, 0, len(idsByType))
	for typ := range idsByType {
		types = append(types, string(typ))
	}
	sort.Strings(types)

	var clauses []string
	var args []interface{}
	argN := 0
	next := func() int { argN++; return argN }

	for _, typName := range types {
		typ := model.EntityType(typName)
		ids := idsByType[typ]
		if len(ids) == 0 {
			continue
		}
		t, ok := tables[typ]
		if !ok {
			return Query{}, fmt.Errorf("relational: no table compiled for entity type %q", typ)
		}
		cols := columnList(t)
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = quoteIdent(c)
		}
		idsPlaceholder := next()
		blockPlaceholder := next()
		clause := fmt.Sprintf(
			`select %s as __entity_type, %s from %s where id = any($%d) and block_range @> $%d::integer`,
			quoteLiteral(string(typ)), strings.Join(quoted, ", "), quoteIdent(t.Name), idsPlaceholder, blockPlaceholder,
		)
		clauses = append(clauses, clause)
		args = append(args, pqStringArray(ids), block)
	}

	if len(clauses) == 0 {
		return Query{SQL: "", Args: nil, UnsafeToCachePrepared: true}, nil
	}
	return Query{SQL: strings.Join(clauses, " union all "), Args: args, UnsafeToCachePrepared: true}, nil
}

// quoteLiteral renders a string as a literal single-quoted SQL
// constant. It is only ever used for the synthetic, builder-chosen
// __entity_type discriminator, never for user-controlled data.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// pqStringArray wraps a []string with lib/pq's pq.Array so it binds as
// a Postgres text[]; the store layer passes Args to the driver as is.
func pqStringArray(ids []string) interface{} { return pq.Array(ids) }

// Row is one entity row ready to insert: its attribute values in the
// table's column order.
type Row struct {
	ID     string
	Values map[string]model.Value
}

// InsertQuery inserts rows with block_range = [block, infinity). Chunk
// size is max_params / (column_count + 1); callers must issue one
// InsertQuery per returned chunk. Rows lacking a non-nullable column
// produce a deterministic error before any SQL is built.
func (b *Builder) InsertQuery(t schema.Table, rows []Row, block int32) ([]Query, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	cols := columnList(t)
	for _, row := range rows {
		for _, c := range t.Columns {
			if c.Nullable {
				continue
			}
			v, ok := row.Values[c.Name]
			if !ok || v.IsNull() {
				return nil, fmt.Errorf("relational: row %q missing required column %q", row.ID, c.Name)
			}
		}
	}

	paramsPerRow := len(cols) + 1 // +1 for the block_range lower bound
	chunkSize := b.maxParams / paramsPerRow
	if chunkSize < 1 {
		chunkSize = 1
	}

	var queries []Query
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		quotedCols := make([]string, len(cols))
		for i, c := range cols {
			quotedCols[i] = quoteIdent(c)
		}

		var placeholders []string
		var args []interface{}
		n := 0
		for _, row := range chunk {
			ph := make([]string, len(cols)+1)
			for i, c := range cols {
				n++
				ph[i] = fmt.Sprintf("$%d", n)
				args = append(args, valueArg(row.Values[c]))
			}
			n++
			ph[len(cols)] = fmt.Sprintf("int4range($%d, NULL, '[)')", n)
			args = append(args, block)
			placeholders = append(placeholders, "("+strings.Join(ph[:len(cols)], ", ")+", "+ph[len(cols)]+")")
		}

		sql := fmt.Sprintf(
			`insert into %s (%s, block_range) values %s`,
			quoteIdent(t.Name), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "),
		)
		queries = append(queries, Query{SQL: sql, Args: args, UnsafeToCachePrepared: true})
	}
	return queries, nil
}

// valueArg unwraps a model.Value into whatever Go type the driver binds
// directly; BigInt/BigDecimal marshal to their canonical signed decimal
// string since no numeric column type round-trips math/big values
// natively. BigInt uses big.Int.String(), not model.BigIntToHex, because
// the hex form only carries the magnitude (see its doc comment) and
// would silently drop the sign of a negative attribute on persist.
func valueArg(v model.Value) interface{} {
	switch v.Kind() {
	case model.KindNull:
		return nil
	case model.KindBool:
		return v.AsBool()
	case model.KindInt:
		return v.AsInt()
	case model.KindString:
		return v.AsString()
	case model.KindBytes:
		return v.AsBytes()
	case model.KindBigInt:
		return v.AsBigInt().String()
	case model.KindBigDecimal:
		d := v.AsBigDecimal()
		return d.String()
	default:
		return v.AsString()
	}
}

// ClampRangeQuery sets upper(block_range) = block on every id's current
// row (where upper is still unbounded). Ids with no current row are a
// no-op, matched naturally by the WHERE clause (spec §4.3).
func (b *Builder) ClampRangeQuery(t schema.Table, entityIDs []string, block int32) Query {
	sql := fmt.Sprintf(
		`update %s set block_range = int4range(lower(block_range), $1, '[)') where id = any($2) and upper_inf(block_range)`,
		quoteIdent(t.Name),
	)
	return Query{SQL: sql, Args: []interface{}{block, pqStringArray(entityIDs)}, UnsafeToCachePrepared: true}
}
