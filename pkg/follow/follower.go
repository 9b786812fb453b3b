package follow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgproto3/v2"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-warehouse/pkg/cache"
)

const pgOutputPlugin = "pgoutput"

// Follower is the interface for things that can follow a WAL
type Follower interface {
	Follow(ctx context.Context, startingpos pglogrepl.LSN) error
}

// TripTable describes the operational trip table the follower watches
type TripTable struct {
	Name            string
	IDColumn        string
	StatusColumn    string
	CompletedStatus string
}

// WalFollower watches the WAL and queues the ids of trips that are (or
// become) completed into the cache
type WalFollower struct {
	conn        *pgconn.PgConn
	table       TripTable
	cache       *cache.Cache
	publication string

	relations map[uint32]*pglogrepl.RelationMessage
}

var _ Follower = &WalFollower{}

// NewWalFollower creates a new WalFollower for postgres. The conn must be made
// with the `replication` flag set.
func NewWalFollower(conn *pgconn.PgConn, table TripTable, publication string, cache *cache.Cache) *WalFollower {
	return &WalFollower{
		conn:        conn,
		table:       table,
		cache:       cache,
		publication: publication,
		relations:   make(map[uint32]*pglogrepl.RelationMessage),
	}
}

// Follow starts watching the replication log at startpos. Inserts and updates
// of the trip table are decoded and completed trips are queued in the cache.
// Follow (and replication connections in general) are not safe to share across
// threads. Trips should be read from the cache to process them.
func (f *WalFollower) Follow(ctx context.Context, startpos pglogrepl.LSN) error {
	publication := pgx.Identifier{f.publication}.Sanitize()
	result := f.conn.Exec(ctx, fmt.Sprintf("DROP PUBLICATION IF EXISTS %s;", publication))
	_, _ = result.ReadAll()

	result = f.conn.Exec(ctx, fmt.Sprintf("CREATE PUBLICATION %s FOR TABLE %s;", publication, pgx.Identifier{f.table.Name}.Sanitize()))
	_, err := result.ReadAll()
	if err != nil {
		return fmt.Errorf("creating publication: %w", err)
	}

	pluginArguments := []string{"proto_version '1'", fmt.Sprintf("publication_names '%s'", f.publication)}

	// temporary slots are dropped by the server when the connection closes
	slotName := newSlotName(f.publication + "_slot")
	_, err = pglogrepl.CreateReplicationSlot(ctx, f.conn, slotName, pgOutputPlugin, pglogrepl.CreateReplicationSlotOptions{Temporary: true})
	if err != nil {
		return fmt.Errorf("creating replication slot: %w", err)
	}
	err = pglogrepl.StartReplication(ctx, f.conn, slotName, startpos, pglogrepl.StartReplicationOptions{PluginArgs: pluginArguments})
	if err != nil {
		return fmt.Errorf("starting replication: %w", err)
	}
	log.Info().Str("slot", slotName).Stringer("startpos", startpos).Str("table", f.table.Name).Msg("following replication log")

	clientXLogPos := startpos
	standbyMessageTimeout := time.Second * 10
	nextStandbyMessageDeadline := time.Now().Add(standbyMessageTimeout)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(nextStandbyMessageDeadline) {
			err = pglogrepl.SendStandbyStatusUpdate(ctx, f.conn, pglogrepl.StandbyStatusUpdate{WALWritePosition: clientXLogPos})
			if err != nil {
				return err
			}
			nextStandbyMessageDeadline = time.Now().Add(standbyMessageTimeout)
		}

		ctx, cancel := context.WithDeadline(ctx, nextStandbyMessageDeadline)
		msg, err := f.conn.ReceiveMessage(ctx)
		cancel()
		if err != nil {
			if pgconn.Timeout(err) {
				continue
			}
			return err
		}

		switch msg := msg.(type) {
		case *pgproto3.CopyData:
			switch msg.Data[0] {
			case pglogrepl.PrimaryKeepaliveMessageByteID:
				pkm, err := pglogrepl.ParsePrimaryKeepaliveMessage(msg.Data[1:])
				if err != nil {
					return err
				}
				if pkm.ReplyRequested {
					nextStandbyMessageDeadline = time.Time{}
				}

			case pglogrepl.XLogDataByteID:
				xld, err := pglogrepl.ParseXLogData(msg.Data[1:])
				if err != nil {
					return err
				}
				log.Trace().Stringer("WALStart", xld.WALStart).Stringer("ServerWALEnd", xld.ServerWALEnd).Time("ServerTime", xld.ServerTime).Msg("received XLogData")
				logicalMsg, err := pglogrepl.Parse(xld.WALData)
				if err != nil {
					return err
				}
				f.handle(logicalMsg)
				clientXLogPos = xld.WALStart + pglogrepl.LSN(len(xld.WALData))
			}
		default:
			log.Warn().Str("msg", fmt.Sprintf("%#v", msg)).Msg("received unexpected message")
		}
	}
}

func (f *WalFollower) handle(msg pglogrepl.Message) {
	switch msg := msg.(type) {
	case *pglogrepl.RelationMessage:
		f.relations[msg.RelationID] = msg
	case *pglogrepl.InsertMessage:
		f.touch(msg.RelationID, msg.Tuple)
	case *pglogrepl.UpdateMessage:
		f.touch(msg.RelationID, msg.NewTuple)
	case *pglogrepl.DeleteMessage:
		// facts are append-only; a deleted trip stays in the warehouse
		log.Debug().Uint32("relationID", msg.RelationID).Msg("ignoring delete")
	}
}

func (f *WalFollower) touch(relationID uint32, tuple *pglogrepl.TupleData) {
	rel, ok := f.relations[relationID]
	if !ok || rel.RelationName != f.table.Name {
		return
	}
	id, status, ok := tripFromTuple(rel, tuple, f.table)
	if !ok {
		log.Debug().Uint32("relationID", relationID).Msg("tuple carries no trip id or status")
		return
	}
	if status != f.table.CompletedStatus {
		log.Trace().Str("trip", id).Str("status", status).Msg("trip not completed")
		return
	}
	log.Debug().Str("trip", id).Msg("queueing completed trip")
	f.cache.Touch(id)
}

// tripFromTuple extracts the id and status columns from a text-encoded tuple
func tripFromTuple(rel *pglogrepl.RelationMessage, tuple *pglogrepl.TupleData, table TripTable) (id, status string, ok bool) {
	if tuple == nil {
		return "", "", false
	}
	var foundID, foundStatus bool
	for i, col := range rel.Columns {
		if i >= len(tuple.Columns) {
			break
		}
		data := tuple.Columns[i]
		if data.DataType != pglogrepl.TupleDataTypeText {
			continue
		}
		switch col.Name {
		case table.IDColumn:
			id, foundID = string(data.Data), true
		case table.StatusColumn:
			status, foundStatus = string(data.Data), true
		}
	}
	return id, status, foundID && foundStatus
}

// newSlotName can panic and should only be called during process init
func newSlotName(prefix string) string {
	token := make([]byte, 5)
	if _, err := rand.Read(token); err != nil {
		panic("couldn't get random bytes")
	}
	return strings.Join([]string{prefix, hex.EncodeToString(token)}, "_")
}
