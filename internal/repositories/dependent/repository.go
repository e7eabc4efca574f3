// Package dependent exposes every table referencing leads(id) as a reassignable dependent kind
package dependent

import (
	"context"
	"fmt"
	"sort"

	"github.com/Gobusters/ectologger"
	"github.com/lib/pq"

	"github.com/Ramsey-B/clover/pkg/database"
	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const tenantColumn = "tenant_id"

// foreignKeysQuery lists the columns holding a foreign key to leads(id) in the current schema
const foreignKeysQuery = `
SELECT kcu.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
  AND tc.table_schema = current_schema()
  AND ccu.table_name = 'leads'
  AND ccu.column_name = 'id'
ORDER BY kcu.table_name, kcu.column_name`

// uniqueKeysQuery lists the columns of every primary key and unique constraint of a table
const uniqueKeysQuery = `
SELECT tc.constraint_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
WHERE tc.table_schema = current_schema()
  AND tc.table_name = $1
  AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
ORDER BY tc.constraint_name, kcu.ordinal_position`

// hasColumnQuery reports whether a table has a column
const hasColumnQuery = `
SELECT EXISTS (
  SELECT 1 FROM information_schema.columns
  WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
)`

// TableKind is a table whose rows are owned by a lead through one column
type TableKind struct {
	db        database.DB
	logger    ectologger.Logger
	table     string
	column    string
	hasTenant bool
	// peers holds, for each unique key containing column, its other columns.
	// A row of the duplicate colliding with a row of the primary on these is removed before reassigning.
	peers [][]string
}

// NewTableKind describes a dependent table directly
func NewTableKind(db database.DB, logger ectologger.Logger, table, column string, hasTenant bool, peers ...[]string) *TableKind {
	return &TableKind{
		db:        db,
		logger:    logger,
		table:     table,
		column:    column,
		hasTenant: hasTenant,
		peers:     peers,
	}
}

// Discover builds a kind for every foreign key referencing leads(id)
func Discover(ctx context.Context, db database.DB, logger ectologger.Logger) ([]*TableKind, error) {
	ctx, span := tracing.StartSpan(ctx, "dependent.Discover")
	defer span.End()

	var refs []struct {
		Table  string `db:"table_name"`
		Column string `db:"column_name"`
	}
	if err := db.SelectContext(ctx, &refs, foreignKeysQuery); err != nil {
		logger.WithContext(ctx).WithError(err).Error("Failed to discover lead foreign keys")
		return nil, dedupeerrors.StorageFailure(err, "failed to discover lead dependents")
	}

	kinds := make([]*TableKind, 0, len(refs))
	for _, ref := range refs {
		var hasTenant bool
		if err := db.GetContext(ctx, &hasTenant, hasColumnQuery, ref.Table, tenantColumn); err != nil {
			return nil, dedupeerrors.StorageFailure(err, "failed to inspect table %s", ref.Table)
		}

		peers, err := uniquePeers(ctx, db, ref.Table, ref.Column)
		if err != nil {
			return nil, err
		}

		kinds = append(kinds, NewTableKind(db, logger, ref.Table, ref.Column, hasTenant, peers...))
	}

	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.Name()
	}
	logger.WithContext(ctx).WithField("kinds", names).Info("Discovered lead dependents")

	return kinds, nil
}

// uniquePeers returns the other columns of each unique key of table that contains column
func uniquePeers(ctx context.Context, db database.DB, table, column string) ([][]string, error) {
	var keyCols []struct {
		Constraint string `db:"constraint_name"`
		Column     string `db:"column_name"`
	}
	if err := db.SelectContext(ctx, &keyCols, uniqueKeysQuery, table); err != nil {
		return nil, dedupeerrors.StorageFailure(err, "failed to inspect unique keys of %s", table)
	}

	byConstraint := make(map[string][]string)
	var order []string
	for _, kc := range keyCols {
		if _, seen := byConstraint[kc.Constraint]; !seen {
			order = append(order, kc.Constraint)
		}
		byConstraint[kc.Constraint] = append(byConstraint[kc.Constraint], kc.Column)
	}
	sort.Strings(order)

	var peers [][]string
	for _, name := range order {
		cols := byConstraint[name]
		var others []string
		contains := false
		for _, c := range cols {
			if c == column {
				contains = true
				continue
			}
			others = append(others, c)
		}
		// a key on the lead column alone cannot collide after reassignment of distinct rows
		if contains && len(others) > 0 {
			peers = append(peers, others)
		}
	}
	return peers, nil
}

// Name is the table name, qualified by the column when it is not lead_id
func (k *TableKind) Name() string {
	if k.column == "lead_id" {
		return k.table
	}
	return k.table + "." + k.column
}

// ReassignOwner moves every row owned by oldLeadID to newLeadID
func (k *TableKind) ReassignOwner(ctx context.Context, tenantID, oldLeadID, newLeadID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "dependent.TableKind.ReassignOwner")
	defer span.End()

	conn := k.db.Conn(ctx)
	log := k.logger.WithContext(ctx).WithFields(map[string]any{
		"kind":        k.Name(),
		"from_lead":   oldLeadID,
		"to_lead":     newLeadID,
		"tenant_id":   tenantID,
		"key_columns": k.peers,
	})

	for _, peers := range k.peers {
		query, args := k.collisionDelete(tenantID, oldLeadID, newLeadID, peers)
		result, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			log.WithError(err).Error("Failed to remove colliding dependent rows")
			return 0, dedupeerrors.StorageFailure(err, "failed to reassign %s", k.Name())
		}
		if n, _ := result.RowsAffected(); n > 0 {
			log.WithField("removed", n).Info("Removed dependent rows already linked to the primary")
		}
	}

	ub := database.NewUpdateBuilder()
	ub.Update(pq.QuoteIdentifier(k.table))
	ub.Set(ub.Assign(pq.QuoteIdentifier(k.column), newLeadID))
	ub.Where(ub.Equal(pq.QuoteIdentifier(k.column), oldLeadID))
	if k.hasTenant {
		ub.Where(ub.Equal(tenantColumn, tenantID))
	}

	query, args := ub.Build()
	result, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		log.WithError(err).Error("Failed to reassign dependent rows")
		return 0, dedupeerrors.StorageFailure(err, "failed to reassign %s", k.Name())
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return 0, dedupeerrors.StorageFailure(err, "failed to reassign %s", k.Name())
	}
	return moved, nil
}

// collisionDelete removes rows of oldLeadID that would duplicate a row of newLeadID on peers
func (k *TableKind) collisionDelete(tenantID, oldLeadID, newLeadID string, peers []string) (string, []any) {
	table := pq.QuoteIdentifier(k.table)
	column := pq.QuoteIdentifier(k.column)

	sb := database.NewDeleteBuilder()
	sb.DeleteFrom(table + " AS d")
	sb.Where(sb.Equal("d."+column, oldLeadID))
	if k.hasTenant {
		sb.Where(sb.Equal("d."+tenantColumn, tenantID))
	}

	exists := fmt.Sprintf("EXISTS (SELECT 1 FROM %s AS p WHERE p.%s = %s", table, column, sb.Var(newLeadID))
	for _, peer := range peers {
		q := pq.QuoteIdentifier(peer)
		exists += fmt.Sprintf(" AND p.%s = d.%s", q, q)
	}
	sb.Where(exists + ")")

	return sb.Build()
}

// CountOwned counts rows owned by any of leadIDs
func (k *TableKind) CountOwned(ctx context.Context, tenantID string, leadIDs []string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "dependent.TableKind.CountOwned")
	defer span.End()

	if len(leadIDs) == 0 {
		return 0, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(pq.QuoteIdentifier(k.table))
	sb.Where(sb.In(pq.QuoteIdentifier(k.column), database.Args(leadIDs)...))
	if k.hasTenant {
		sb.Where(sb.Equal(tenantColumn, tenantID))
	}

	query, args := sb.Build()
	var n int64
	if err := k.db.Conn(ctx).GetContext(ctx, &n, query, args...); err != nil {
		k.logger.WithContext(ctx).WithError(err).Error("Failed to count dependent rows")
		return 0, dedupeerrors.StorageFailure(err, "failed to count %s", k.Name())
	}
	return n, nil
}
