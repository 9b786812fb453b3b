package pgschema

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaMissing(t *testing.T) {
	s := &Schema{Tables: map[string]*Table{
		"viagem": {ID: 1, Name: "viagem", Cols: []Col{{Name: "idviagem", ID: 1}, {Name: "status", ID: 2}}},
		"taxas":  {ID: 2, Name: "taxas", Cols: []Col{{Name: "valor", ID: 1}}},
	}}

	require.Empty(t, s.Missing(map[string][]string{
		"viagem": {"idviagem", "status"},
		"taxas":  {"valor"},
	}))

	missing := s.Missing(map[string][]string{
		"viagem":      {"idviagem", "datachegada"},
		"taxas":       {"valor", "viagem_idviagem"},
		"contentores": {"idcontentor"},
	})
	sort.Strings(missing)
	require.Equal(t, []string{"contentores", "taxas.viagem_idviagem", "viagem.datachegada"}, missing)
}

func TestTableHasCol(t *testing.T) {
	table := &Table{Name: "barco", Cols: []Col{{Name: "nomebarco", ID: 2}}}
	require.True(t, table.HasCol("nomebarco"))
	require.False(t, table.HasCol("tamanhobarco"))
}
