package relational

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainspool/indexer/model"
	"github.com/chainspool/indexer/schema"
)

func compileAccountLayout(t *testing.T) schema.Table {
	t.Helper()
	doc, err := schema.ParseAndValidate(`
type Account @entity {
  id: ID!
  balance: BigInt!
  name: String
}
`)
	require.NoError(t, err)
	layout, err := schema.Compile(doc)
	require.NoError(t, err)
	tbl, ok := layout.TableByObjectName("Account")
	require.True(t, ok)
	return tbl
}

func TestFindQueryUsesRangeContainment(t *testing.T) {
	tbl := compileAccountLayout(t)
	b := NewBuilder(0)
	q := b.FindQuery(tbl, "0xabc", 42)
	require.True(t, q.UnsafeToCachePrepared)
	require.True(t, strings.Contains(q.SQL, "block_range @> $2::integer"))
	require.Equal(t, []interface{}{"0xabc", int32(42)}, q.Args)
}

func TestFindManyQueryUnionsPerType(t *testing.T) {
	tbl := compileAccountLayout(t)
	b := NewBuilder(0)
	q, err := b.FindManyQuery(
		map[model.EntityType]schema.Table{"Account": tbl},
		map[model.EntityType][]string{"Account": {"a", "b"}},
		7,
	)
	require.NoError(t, err)
	require.True(t, strings.Contains(q.SQL, "__entity_type"))
	require.True(t, strings.Contains(q.SQL, `"account"`))
}

func TestInsertQueryRejectsMissingRequiredColumn(t *testing.T) {
	tbl := compileAccountLayout(t)
	b := NewBuilder(0)
	rows := []Row{{ID: "a", Values: map[string]model.Value{"id": model.NewString("a")}}}
	_, err := b.InsertQuery(tbl, rows, 1)
	require.Error(t, err)
}

func TestInsertQueryChunksByMaxParams(t *testing.T) {
	tbl := compileAccountLayout(t)
	// 3 columns (id, balance, name) + 1 range param = 4 params/row.
	b := NewBuilder(8) // forces chunk size 2
	rows := make([]Row, 5)
	for i := range rows {
		rows[i] = Row{ID: "a", Values: map[string]model.Value{
			"id":      model.NewString("a"),
			"balance": model.NewBigInt(big.NewInt(1)),
			"name":    model.NewString("x"),
		}}
	}
	queries, err := b.InsertQuery(tbl, rows, 10)
	require.NoError(t, err)
	require.Len(t, queries, 3) // 2 + 2 + 1
	for _, q := range queries {
		require.True(t, strings.Contains(q.SQL, "int4range("))
	}
}

func TestClampRangeQueryIsNoOpShapeForMissingRows(t *testing.T) {
	tbl := compileAccountLayout(t)
	b := NewBuilder(0)
	q := b.ClampRangeQuery(tbl, []string{"a", "b"}, 99)
	require.True(t, strings.Contains(q.SQL, "upper_inf(block_range)"))
	require.Equal(t, int32(99), q.Args[0])
}

func TestBigIntValueArgRoundTripsSign(t *testing.T) {
	neg := big.NewInt(-42)
	arg := valueArg(model.NewBigInt(neg))
	s, ok := arg.(string)
	require.True(t, ok)
	require.Equal(t, "-42", s)

	col := schema.Column{Name: "balance", Type: schema.ColBigInt}
	v, err := columnValue(col, s)
	require.NoError(t, err)
	require.Equal(t, 0, v.AsBigInt().Cmp(neg))
}
