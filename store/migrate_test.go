package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainspool/indexer/schema"
)

func TestBootstrapMigrationsOrdersDeploymentPointerFirst(t *testing.T) {
	layout := schema.Layout{Tables: []schema.Table{
		{ObjectName: "Account", Name: "account", IDKind: schema.ColString, Columns: []schema.Column{
			{Name: "id", Type: schema.ColString},
			{Name: "balance", Type: schema.ColBigInt, Nullable: true},
		}},
	}}

	migrations := BootstrapMigrations(layout)
	require.Equal(t, "0001_deployment_pointer", migrations[0].Name)
	require.Len(t, migrations, 2)
	require.Equal(t, "0002_entity_table_00", migrations[1].Name)
}
