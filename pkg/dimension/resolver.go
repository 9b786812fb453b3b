package dimension

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-warehouse/pkg/errdefs"
	"github.com/authzed/connector-warehouse/pkg/metrics"
	"github.com/authzed/connector-warehouse/pkg/warehouse"
)

// KeyPolicy selects how new surrogate keys are assigned
type KeyPolicy string

const (
	// KeyPolicyExplicit computes MAX(key)+1 before each insert, for targets
	// that don't generate keys
	KeyPolicyExplicit KeyPolicy = "explicit"
	// KeyPolicyIdentity lets the warehouse generate the key and reads it back
	KeyPolicyIdentity KeyPolicy = "identity"
)

// ParseKeyPolicy parses a key policy name
func ParseKeyPolicy(s string) (KeyPolicy, error) {
	switch p := KeyPolicy(s); p {
	case KeyPolicyExplicit, KeyPolicyIdentity:
		return p, nil
	}
	return "", fmt.Errorf("unknown key policy %q (want %q or %q)", s, KeyPolicyExplicit, KeyPolicyIdentity)
}

// Resolver maps natural keys to surrogate keys, inserting rows that don't
// exist yet. Existing rows are never updated.
//
// A Resolver holds no state besides its policy and is safe for concurrent use.
// Concurrent resolvers (in this process or another) inserting the same natural
// key are reconciled by one re-lookup after the losing insert fails.
type Resolver struct {
	policy KeyPolicy
}

// NewResolver returns a resolver using policy to assign keys
func NewResolver(policy KeyPolicy) *Resolver {
	return &Resolver{policy: policy}
}

// Policy returns the resolver's key policy
func (r *Resolver) Policy() KeyPolicy {
	return r.policy
}

// ResolveOrCreate returns the surrogate key of the row in t whose natural key
// equals natural, inserting natural+attrs if there is none. created reports
// whether this call inserted the row.
func (r *Resolver) ResolveOrCreate(ctx context.Context, s warehouse.Store, t warehouse.Table, natural, attrs warehouse.Columns) (key int64, created bool, err error) {
	key, ok, err := s.Lookup(ctx, t, natural, t.Key)
	if err != nil {
		return 0, false, errdefs.Storage("lookup "+t.Name, err)
	}
	if ok {
		return key, false, nil
	}

	var next int64
	if r.policy == KeyPolicyExplicit {
		max, err := s.MaxKey(ctx, t)
		if err != nil {
			return 0, false, errdefs.Storage("next key "+t.Name, err)
		}
		next = max + 1
	}

	row := make(warehouse.Columns, 0, len(natural)+len(attrs))
	row = append(row, natural...)
	row = append(row, attrs...)

	key, err = s.Insert(ctx, t, next, row)
	if errors.Is(err, errdefs.ErrUniqueViolation) {
		return r.recoverRace(ctx, s, t, natural, err)
	}
	if err != nil {
		return 0, false, errdefs.Storage("insert "+t.Name, err)
	}
	if key <= 0 {
		return 0, false, errdefs.Storage("insert "+t.Name, fmt.Errorf("non-positive surrogate key %d", key))
	}

	metrics.DimensionRowsCreatedTotal.WithLabelValues(t.Name).Inc()
	log.Trace().Str("table", t.Name).Int64("key", key).Interface("natural", natural.Values()).Msg("created row")
	return key, true, nil
}

// recoverRace looks the natural key up once more after an insert lost a race.
// If the row still isn't there the collision was on something else (e.g. two
// explicit keys computed from the same MAX), and insertErr is returned.
func (r *Resolver) recoverRace(ctx context.Context, s warehouse.Store, t warehouse.Table, natural warehouse.Columns, insertErr error) (int64, bool, error) {
	key, ok, err := s.Lookup(ctx, t, natural, t.Key)
	if err != nil {
		return 0, false, errdefs.Storage("lookup "+t.Name, err)
	}
	metrics.UniqueRacesTotal.WithLabelValues(t.Name, strconv.FormatBool(ok)).Inc()
	if !ok {
		return 0, false, errdefs.Storage("insert "+t.Name, insertErr)
	}
	log.Debug().Str("table", t.Name).Int64("key", key).Msg("natural key inserted concurrently, reusing existing row")
	return key, false, nil
}
