package warehouse

import (
	_ "embed"
)

// SchemaSQL is the DDL for the warehouse tables. Every statement is
// idempotent.
//
//go:embed schema.sql
var SchemaSQL string

// Column names of the warehouse tables
const (
	ColDate    = "data_completa"
	ColYear    = "ano"
	ColMonth   = "mes"
	ColHalf    = "semestre"
	ColQuarter = "trimestre"

	ColCountry = "pais"
	ColCity    = "cidade"

	ColName          = "nome"
	ColAge           = "idade"
	ColCertification = "certificacao"

	ColTripType = "tipo"

	ColDurationClass = "duracao"

	ColSize     = "tamanho"
	ColType     = "tipo"
	ColCapacity = "capacidade"
	ColCarrier  = "empresabarco_idempresa_barco"

	ColFeed          = "origem"
	ColSourceTripID  = "viagem_id_origem"
	ColDuration      = "duracaoviagem"
	ColFees          = "totaltaxas"
	ColContainers    = "numerocontentores"
	ColCargoWeight   = "pesototalcontentores"
	ColTEU           = "teutotal"
	ColDurationClsFK = "classeduracao_idclasseduracao"
	ColLocationFK    = "localizacao_idlocalizacao"
	ColTripTypeFK    = "tipo_viagem_idtipoviagem"
	ColDriverFK      = "condutor_idcondutor"
	ColVesselFK      = "barco_idbarco"
	ColTimeFK        = "tempo_idtempo"
)

// Warehouse tables
var (
	TimeTable          = Table{Name: "tempo", Key: "idtempo", Unique: []string{ColDate}}
	LocationTable      = Table{Name: "localizacao", Key: "idlocalizacao", Unique: []string{ColCountry, ColCity}}
	DriverTable        = Table{Name: "condutor", Key: "idcondutor", Unique: []string{ColName, ColCertification}}
	TripTypeTable      = Table{Name: "tipo_viagem", Key: "idtipoviagem", Unique: []string{ColTripType}}
	DurationClassTable = Table{Name: "classeduracao", Key: "idclasseduracao", Unique: []string{ColDurationClass}}
	CarrierTable       = Table{Name: "empresabarco", Key: "idempresa_barco", Unique: []string{ColName, ColCountry}}
	VesselTable        = Table{Name: "barco", Key: "idbarco", Unique: []string{ColName, ColSize}}
	TripFactTable      = Table{Name: "viagens", Key: "idviagens", Unique: []string{ColFeed, ColSourceTripID}}
)

// Tables lists every warehouse table, dimensions before facts
func Tables() []Table {
	return []Table{
		TimeTable,
		LocationTable,
		DriverTable,
		TripTypeTable,
		DurationClassTable,
		CarrierTable,
		VesselTable,
		TripFactTable,
	}
}
