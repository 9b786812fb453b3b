package follow

import (
	"context"
	"testing"

	"github.com/jackc/pglogrepl"
	"github.com/stretchr/testify/require"

	"github.com/authzed/connector-warehouse/pkg/cache"
)

var trips = TripTable{Name: "viagem", IDColumn: "idviagem", StatusColumn: "status", CompletedStatus: "concluida"}

func relation(id uint32, name string, cols ...string) *pglogrepl.RelationMessage {
	rel := &pglogrepl.RelationMessage{RelationID: id, RelationName: name, ColumnNum: uint16(len(cols))}
	for _, c := range cols {
		rel.Columns = append(rel.Columns, &pglogrepl.RelationMessageColumn{Name: c})
	}
	return rel
}

func tuple(values ...string) *pglogrepl.TupleData {
	t := &pglogrepl.TupleData{ColumnNum: uint16(len(values))}
	for _, v := range values {
		if v == "" {
			t.Columns = append(t.Columns, &pglogrepl.TupleDataColumn{DataType: pglogrepl.TupleDataTypeNull})
			continue
		}
		t.Columns = append(t.Columns, &pglogrepl.TupleDataColumn{DataType: pglogrepl.TupleDataTypeText, Length: uint32(len(v)), Data: []byte(v)})
	}
	return t
}

func TestFollowerQueuesCompletedTrips(t *testing.T) {
	require := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := cache.NewCache(ctx)
	f := NewWalFollower(nil, trips, "connector_warehouse", c)

	f.handle(relation(1, "viagem", "idviagem", "datapartida", "status"))
	f.handle(relation(2, "taxas", "idviagem", "valor", "status"))

	f.handle(&pglogrepl.InsertMessage{RelationID: 1, Tuple: tuple("10", "2024-01-01", "planeada")})
	f.handle(&pglogrepl.UpdateMessage{RelationID: 1, NewTuple: tuple("10", "2024-01-01", "concluida")})
	f.handle(&pglogrepl.InsertMessage{RelationID: 1, Tuple: tuple("11", "2024-01-02", "concluida")})
	f.handle(&pglogrepl.UpdateMessage{RelationID: 1, NewTuple: tuple("10", "2024-01-01", "concluida")})
	f.handle(&pglogrepl.InsertMessage{RelationID: 2, Tuple: tuple("12", "4.5", "concluida")})
	f.handle(&pglogrepl.InsertMessage{RelationID: 1, Tuple: tuple("13", "2024-01-03", "")})
	f.handle(&pglogrepl.InsertMessage{RelationID: 9, Tuple: tuple("14", "2024-01-03", "concluida")})
	f.handle(&pglogrepl.DeleteMessage{RelationID: 1, OldTuple: tuple("11", "", "")})

	require.Equal([]string{"10", "11"}, c.Drain())
}

func TestTripFromTuple(t *testing.T) {
	rel := relation(1, "viagem", "status", "idviagem")
	id, status, ok := tripFromTuple(rel, tuple("concluida", "42"), trips)
	require.True(t, ok)
	require.Equal(t, "42", id)
	require.Equal(t, "concluida", status)

	_, _, ok = tripFromTuple(rel, tuple("concluida"), trips)
	require.False(t, ok)

	_, _, ok = tripFromTuple(rel, nil, trips)
	require.False(t, ok)
}

func TestNewSlotName(t *testing.T) {
	a, b := newSlotName("connector_warehouse_slot"), newSlotName("connector_warehouse_slot")
	require.NotEqual(t, a, b)
	require.Regexp(t, `^connector_warehouse_slot_[0-9a-f]{10}$`, a)
}
