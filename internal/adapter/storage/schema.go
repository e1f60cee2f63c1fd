package storage

import (
	"fmt"
	"strings"

	"github.com/rl1809/manifest-sync/internal/core/domain"
)

type columnType int

const (
	colKey columnType = iota
	colVarchar
	colText
	colInt
	colTinyInt
	colDecimal
	colDate
	colDateTime
)

type columnSpec struct {
	name     string
	typ      columnType
	size     int
	nullable bool
	def      string
}

type foreignKey struct {
	column    string
	refTable  string
	refColumn string
}

type tableSpec struct {
	name    string
	columns []columnSpec
	fks     []foreignKey
}

func key(name string) columnSpec { return columnSpec{name: name, typ: colKey, size: 50} }
func varchar(name string, n int) columnSpec { return columnSpec{name: name, typ: colVarchar, size: n} }
func text(name string) columnSpec { return columnSpec{name: name, typ: colText} }
func integer(name string) columnSpec { return columnSpec{name: name, typ: colInt} }
func tinyint(name string) columnSpec { return columnSpec{name: name, typ: colTinyInt} }
func decimal(name string) columnSpec { return columnSpec{name: name, typ: colDecimal} }
func date(name string) columnSpec { return columnSpec{name: name, typ: colDate} }
func datetime(name string) columnSpec { return columnSpec{name: name, typ: colDateTime} }
func flag(name string) columnSpec { return columnSpec{name: name, typ: colTinyInt, def: "0"} }
func nullableInt(name string) columnSpec { return columnSpec{name: name, typ: colInt, nullable: true} }
func ref(col, table string) foreignKey { return foreignKey{column: col, refTable: table, refColumn: "uuid"} }

// syncTables is the declared layout of the sync tables, parents first.
var syncTables = []tableSpec{
	{
		name: domain.TableChamberReadings,
		columns: []columnSpec{
			key("uuid"),
			nullableInt("id_procesa_app"),
			date("fecha_de_descarga"),
			varchar("certificado", 255),
			varchar("lote_basico", 255),
			varchar("ubicacion", 255),
			varchar("sku_tina", 100),
			varchar("sku_talla", 100),
			decimal("peso_bruto"),
			varchar("tanque", 100),
			varchar("hora_de_marbete", 50),
			varchar("hora_de_pesado", 50),
			varchar("fda", 100),
			varchar("lote_fda", 100),
			varchar("lote_sap", 100),
			decimal("peso_neto"),
			decimal("tara"),
			text("observaciones"),
			datetime("fecha_hora_guardado"),
			tinyint("estado"),
			integer("empleado"),
		},
	},
	{
		name: domain.TableManifests,
		columns: []columnSpec{
			key("uuid"),
			varchar("folio", 100),
			varchar("cliente", 255),
			varchar("numero_sello", 100),
			varchar("placas_contenedor", 100),
			varchar("factura", 100),
			text("observaciones"),
			date("fecha_produccion"),
			flag("borrado"),
			integer("empleado"),
			integer("numero_remision"),
			datetime("fecha_creacion"),
		},
	},
	{
		name: domain.TableManifestHeaders,
		columns: []columnSpec{
			key("uuid"),
			varchar("id_remision_general", 50),
			varchar("carga", 50),
			decimal("cantidad_solicitada"),
			datetime("fecha_creacion"),
			flag("borrado"),
		},
		fks: []foreignKey{ref("id_remision_general", domain.TableManifests)},
	},
	{
		name: domain.TableManifestBodies,
		columns: []columnSpec{
			key("uuid"),
			varchar("id_remision", 50),
			varchar("sku_tina", 100),
			varchar("sku_talla", 100),
			decimal("tara"),
			decimal("peso_neto"),
			decimal("merma"),
			varchar("lote", 100),
			varchar("tanque", 100),
			decimal("peso_marbete"),
			decimal("peso_bascula"),
			decimal("peso_neto_devolucion"),
			decimal("peso_bruto_devolucion"),
			flag("is_msc"),
			flag("is_sensorial"),
			text("observaciones"),
			datetime("fecha_creacion"),
			flag("borrado"),
		},
		fks: []foreignKey{ref("id_remision", domain.TableManifestHeaders)},
	},
	{
		name: domain.TableManifestRetallies,
		columns: []columnSpec{
			key("uuid"),
			varchar("id_remision_general", 50),
			varchar("sku_tina", 100),
			varchar("sku_talla", 100),
			varchar("lote", 100),
			decimal("tara"),
			decimal("peso_bascula"),
			decimal("peso_neto"),
			text("observaciones"),
			datetime("fecha_creacion"),
			flag("borrado"),
		},
		fks: []foreignKey{ref("id_remision_general", domain.TableManifests)},
	},
}

// buildCreateSQL renders a CREATE TABLE IF NOT EXISTS statement for t.
func buildCreateSQL(d Dialect, t tableSpec) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(d.QuoteIdent(t.name))
	b.WriteString(" (\n")

	for i, c := range t.columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("    ")
		b.WriteString(d.QuoteIdent(c.name))
		b.WriteString(" ")
		b.WriteString(d.ColumnType(c.typ, c.size))
		switch {
		case c.typ == colKey:
			b.WriteString(" NOT NULL PRIMARY KEY")
		case c.nullable:
			b.WriteString(" NULL")
		}
		if c.def != "" {
			b.WriteString(" DEFAULT ")
			b.WriteString(c.def)
		}
	}

	for _, fk := range t.fks {
		fmt.Fprintf(&b, ",\n    FOREIGN KEY (%s) REFERENCES %s(%s)",
			d.QuoteIdent(fk.column), d.QuoteIdent(fk.refTable), d.QuoteIdent(fk.refColumn))
	}

	b.WriteString("\n)")
	b.WriteString(d.TableOptions())
	return b.String()
}

// createStatements returns the DDL for every sync table in dependency order.
func createStatements(d Dialect) []string {
	stmts := make([]string, 0, len(syncTables))
	for _, t := range syncTables {
		stmts = append(stmts, buildCreateSQL(d, t))
	}
	return stmts
}
