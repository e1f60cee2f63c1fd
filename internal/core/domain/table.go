package domain

import "strings"

const (
	TableChamberReadings   = "py_camaras_frigorifico"
	TableManifests         = "py_remisiones_general"
	TableManifestHeaders   = "py_remisiones_cabecera"
	TableManifestBodies    = "py_remisiones_cuerpo"
	TableManifestRetallies = "py_remisiones_retallados"
)

// DefaultKeyColumn is the primary key used when the store reports none.
const DefaultKeyColumn = "uuid"

// SyncTarget binds a top-level payload key to the table it is upserted into.
type SyncTarget struct {
	PayloadKey string
	Table      string
}

// SyncTargets lists the recognized payload groups in processing order.
// Parents come before children.
var SyncTargets = []SyncTarget{
	{PayloadKey: "camaras_frigorifico", Table: TableChamberReadings},
	{PayloadKey: "remisiones_general", Table: TableManifests},
	{PayloadKey: "remisiones_cabecera", Table: TableManifestHeaders},
	{PayloadKey: "remisiones_cuerpo", Table: TableManifestBodies},
	{PayloadKey: "remisiones_retallados", Table: TableManifestRetallies},
}

// TableNames returns the target tables in processing order.
func TableNames() []string {
	names := make([]string, 0, len(SyncTargets))
	for _, t := range SyncTargets {
		names = append(names, t.Table)
	}
	return names
}

// TableSchema is the live shape of a table as reported by the store.
type TableSchema struct {
	Name       string
	Columns    []string
	PrimaryKey string
}

func (s TableSchema) Empty() bool {
	return len(s.Columns) == 0
}

// HasColumn reports whether name is a column of the table. Case-sensitive.
func (s TableSchema) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// IsKey reports whether column is the table's primary key.
func (s TableSchema) IsKey(column string) bool {
	key := s.PrimaryKey
	if key == "" {
		key = DefaultKeyColumn
	}
	return strings.EqualFold(column, key)
}
