package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManifestValidateRequiresExactlyOneDataSource(t *testing.T) {
	require.Error(t, Manifest{}.Validate())
	require.Error(t, Manifest{DataSources: []DataSourceManifest{{}, {}}}.Validate())
}

func TestManifestValidateRequiresSchemaAndArtifactHash(t *testing.T) {
	m := Manifest{DataSources: []DataSourceManifest{{Name: "tokens"}}}
	require.ErrorContains(t, m.Validate(), "no schema")

	m.DataSources[0].Mapping.SchemaHash = "Qmschema"
	require.ErrorContains(t, m.Validate(), "no mapping artifact")

	m.DataSources[0].Mapping.ArtifactHash = "Qmartifact"
	require.NoError(t, m.Validate())
	require.Equal(t, "tokens", m.PrimaryDataSource().Name)
}

func TestTemplateByName(t *testing.T) {
	m := Manifest{Templates: []DataSourceTemplate{{Name: "Pair"}}}
	tmpl, ok := m.TemplateByName("Pair")
	require.True(t, ok)
	require.Equal(t, "Pair", tmpl.Name)

	_, ok = m.TemplateByName("missing")
	require.False(t, ok)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "streaming", StateStreaming.String())
	require.Equal(t, "unknown", State(99).String())
}
