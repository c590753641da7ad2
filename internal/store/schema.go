package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableGraphSnapshots = "graph_snapshots"
	tableFetchEvents    = "fetch_events"
)

var (
	graphSnapshotsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "class_id", Type: field.TypeString, Size: 255},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "fetched_at", Type: field.TypeTime},
		{Name: "payload", Type: field.TypeBytes},
	}
	graphSnapshotsTable = &schema.Table{
		Name:       tableGraphSnapshots,
		Columns:    graphSnapshotsColumns,
		PrimaryKey: []*schema.Column{graphSnapshotsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "graphsnapshot_class_id_sequence",
				Columns: []*schema.Column{graphSnapshotsColumns[1], graphSnapshotsColumns[2]},
			},
		},
	}

	fetchEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "class_id", Type: field.TypeString, Size: 255},
		{Name: "request_id", Type: field.TypeString, Nullable: true},
		{Name: "success", Type: field.TypeBool},
		{Name: "status_code", Type: field.TypeInt},
		{Name: "latency_ms", Type: field.TypeInt64},
		{Name: "node_count", Type: field.TypeInt},
		{Name: "edge_count", Type: field.TypeInt},
		{Name: "warnings", Type: field.TypeJSON, Nullable: true},
		{Name: "error_message", Type: field.TypeString, Nullable: true, Size: 2147483647},
	}
	fetchEventsTable = &schema.Table{
		Name:       tableFetchEvents,
		Columns:    fetchEventsColumns,
		PrimaryKey: []*schema.Column{fetchEventsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "fetchevent_timestamp",
				Columns: []*schema.Column{fetchEventsColumns[2]},
			},
			{
				Name:    "fetchevent_class_id",
				Columns: []*schema.Column{fetchEventsColumns[3]},
			},
		},
	}

	tables = []*schema.Table{graphSnapshotsTable, fetchEventsTable}
)

// migrate creates or upgrades every table the store owns.
func migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}
