package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const tokenDSL = `
enum TransferKind {
  MINT
  BURN
  NORMAL
}

type Account @entity {
  id: ID!
  balance: BigInt!
  transfers: [Transfer!]! @derivedFrom(field: "from")
}

type Transfer @entity {
  id: Bytes!
  from: Account!
  to: Account!
  amount: BigDecimal!
  kind: TransferKind!
}
`

func TestParseValidateCompileRoundTrip(t *testing.T) {
	doc, err := ParseAndValidate(tokenDSL)
	require.NoError(t, err)

	layout, err := Compile(doc)
	require.NoError(t, err)
	require.Len(t, layout.Tables, 2)

	acct, ok := layout.TableByObjectName("Account")
	require.True(t, ok)
	require.Equal(t, "account", acct.Name)
	require.Equal(t, ColString, acct.IDKind)
	// derived field must not become a column
	_, hasTransfers := acct.ColumnByName("transfers")
	require.False(t, hasTransfers)

	transfer, ok := layout.TableByObjectName("Transfer")
	require.True(t, ok)
	require.Equal(t, ColBytesID, transfer.IDKind)
	kindCol, ok := transfer.ColumnByName("kind")
	require.True(t, ok)
	require.Equal(t, ColEnum, kindCol.Type)
	require.Equal(t, "TransferKind", kindCol.EnumName)

	q := layout.CountQuery()
	require.True(t, strings.Contains(q, "union all"))
	require.True(t, strings.Contains(q, `"account"`))
	require.True(t, strings.Contains(q, `"transfer"`))
}

func TestValidateRejectsMissingEntityDirective(t *testing.T) {
	_, err := ParseAndValidate(`
type Foo {
  id: ID!
  bar: String!
}
`)
	require.Error(t, err)
	verrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Equal(t, EntityDirectivesMissing, verrs[0].Code)
}

func TestValidateRejectsUnknownFieldType(t *testing.T) {
	_, err := ParseAndValidate(`
type Foo @entity {
  id: ID!
  bar: DoesNotExist!
}
`)
	require.Error(t, err)
	verrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	found := false
	for _, e := range verrs {
		if e.Code == FieldTypeUnknown {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidateRejectsBadDerivedFrom(t *testing.T) {
	_, err := ParseAndValidate(`
type Account @entity {
  id: ID!
  transfers: [Transfer!]! @derivedFrom(field: "nonexistent")
}

type Transfer @entity {
  id: ID!
  from: Account!
}
`)
	require.Error(t, err)
	verrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	found := false
	for _, e := range verrs {
		if e.Code == InvalidDerivedFrom {
			found = true
		}
	}
	require.True(t, found)
}

func TestCreateTableStatementsIncludesBlockRangeAndGistIndex(t *testing.T) {
	doc, err := ParseAndValidate(tokenDSL)
	require.NoError(t, err)
	layout, err := Compile(doc)
	require.NoError(t, err)

	stmts := layout.CreateTableStatements()
	require.Len(t, stmts, 4) // 2 tables x (create table, create index)

	joined := strings.Join(stmts, "\n")
	require.Contains(t, joined, "create table if not exists account")
	require.Contains(t, joined, "block_range int4range not null")
	require.Contains(t, joined, "create index if not exists account_id_block_range_idx on account using gist (id, block_range)")
	require.Contains(t, joined, "balance text not null")
}

func TestCompileRejectsInterfaceIDKindMismatch(t *testing.T) {
	doc, err := ParseAndValidate(`
interface Node {
  id: ID!
}

type A implements Node @entity {
  id: ID!
}

type B implements Node @entity {
  id: Bytes!
}
`)
	require.NoError(t, err)
	_, err = Compile(doc)
	require.Error(t, err)
}
