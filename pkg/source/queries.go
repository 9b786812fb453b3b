package source

import (
	"fmt"
	"strings"
)

// queryCompletedTrips selects one row per trip with its charges and cargo
// aggregated. Charges and containers are summed in separate sub-selects so
// that a trip with several of both isn't counted once per combination.
const queryCompletedTrips = `
SELECT    v.idviagem::text,
          v.datapartida,
          v.datachegada,
          COALESCE(v.tipoviagem, ''),
          COALESCE(l.pais, ''),
          COALESCE(l.cidade, ''),
          COALESCE(c.nomecondutor, ''),
          COALESCE(c.idadecondutor, 0),
          COALESCE(c.certificacao, ''),
          COALESCE(b.nomebarco, ''),
          COALESCE(b.tamanhobarco, ''),
          COALESCE(b.tipobarco, ''),
          COALESCE(b.capacidadeteu, 0),
          COALESCE(eb.nomeempresabarco, ''),
          COALESCE(eb.paisempresabarco, ''),
          COALESCE(t.total, 0),
          COALESCE(ct.units, 0),
          COALESCE(ct.weight, 0),
          COALESCE(ct.teu, 0)
FROM      viagem v
JOIN      localizacao l   ON v.localizacao_idlocalizacao = l.idlocalizacao
JOIN      condutor c      ON v.condutor_idcondutor = c.idcondutor
JOIN      barco b         ON v.barco_idbarco = b.idbarco
JOIN      empresabarco eb ON b.empresabarco_idempresabarco = eb.idempresabarco
LEFT JOIN (
          SELECT   viagem_idviagem, SUM(valor) AS total
          FROM     taxas
          GROUP BY viagem_idviagem
) t ON t.viagem_idviagem = v.idviagem
LEFT JOIN (
          SELECT   viagem_idviagem,
                   COUNT(idcontentor) AS units,
                   SUM(pesocontentor) AS weight,
                   SUM(CAST(tamanho AS NUMERIC(10,2)) / 20.0) AS teu
          FROM     contentores
          GROUP BY viagem_idviagem
) ct ON ct.viagem_idviagem = v.idviagem
WHERE     v.status = $1
`

const (
	queryFilterReference = `
AND       lower(l.pais) = lower($%d)
AND       lower(l.cidade) = lower($%d)
`
	queryFilterTripIDs = `
AND       v.idviagem::text = ANY($%d)
`
	queryOrderByArrival = `
ORDER BY  v.datachegada, v.idviagem;
`
)

// SourceSchema lists the operational tables the relational feed reads and
// the columns it needs from each
var SourceSchema = map[string][]string{
	"viagem":       {"idviagem", "datapartida", "datachegada", "tipoviagem", "status", "localizacao_idlocalizacao", "condutor_idcondutor", "barco_idbarco"},
	"localizacao":  {"idlocalizacao", "pais", "cidade"},
	"condutor":     {"idcondutor", "nomecondutor", "idadecondutor", "certificacao"},
	"barco":        {"idbarco", "nomebarco", "tamanhobarco", "tipobarco", "capacidadeteu", "empresabarco_idempresabarco"},
	"empresabarco": {"idempresabarco", "nomeempresabarco", "paisempresabarco"},
	"taxas":        {"viagem_idviagem", "valor"},
	"contentores":  {"idcontentor", "viagem_idviagem", "pesocontentor", "tamanho"},
}

// Trip table columns watched in follow mode
const (
	TripTable        = "viagem"
	TripIDColumn     = "idviagem"
	TripStatusColumn = "status"
)

// buildTripQuery renders queryCompletedTrips for f and returns its arguments
func buildTripQuery(f Filter) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(queryCompletedTrips)
	args := []interface{}{f.CompletedStatus}

	if f.Reference != nil && (f.Reference.Country != "" || f.Reference.City != "") {
		args = append(args, f.Reference.Country, f.Reference.City)
		sb.WriteString(fmt.Sprintf(queryFilterReference, len(args)-1, len(args)))
	}
	if f.TripIDs != nil {
		args = append(args, f.TripIDs)
		sb.WriteString(fmt.Sprintf(queryFilterTripIDs, len(args)))
	}
	sb.WriteString(queryOrderByArrival)
	return sb.String(), args
}
