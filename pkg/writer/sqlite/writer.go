// Package sqlite provides SQLite database writing for unified PSM tables
package sqlite

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/psmnorm/pkg/sanitize"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Timestamp format for RunTable
	runDateFormat = "2006-01-02 15:04:05"
	// Schema version written to HeaderTable
	schemaVersion = 1
)

// column maps a canonical table column onto PSMTable.
type column struct {
	name    string // canonical name
	sqlName string
	kind    sanitize.Kind
}

var psmColumns = []column{
	{sanitize.ColSpectrumID, "SpectrumId", sanitize.String},
	{sanitize.ColSpectrumTitle, "SpectrumTitle", sanitize.String},
	{sanitize.ColSequence, "Sequence", sanitize.String},
	{sanitize.ColModifications, "Modifications", sanitize.String},
	{sanitize.ColCharge, "Charge", sanitize.Int},
	{sanitize.ColProteinID, "ProteinId", sanitize.String},
	{sanitize.ColRetentionTime, "RetentionTime", sanitize.Float},
	{sanitize.ColExpMZ, "ExpMZ", sanitize.Float},
	{sanitize.ColCalcMZ, "CalcMZ", sanitize.Float},
	{sanitize.ColUCalcMZ, "UCalcMZ", sanitize.Float},
	{sanitize.ColUCalcMass, "UCalcMass", sanitize.Float},
	{sanitize.ColAccuracy, "AccuracyPPM", sanitize.Float},
	{sanitize.ColSequenceStart, "SequenceStart", sanitize.String},
	{sanitize.ColSequenceStop, "SequenceStop", sanitize.String},
	{sanitize.ColSequencePre, "SequencePreAA", sanitize.String},
	{sanitize.ColSequencePost, "SequencePostAA", sanitize.String},
	{sanitize.ColSearchEngine, "SearchEngine", sanitize.String},
	{sanitize.ColRawDataLocation, "RawDataLocation", sanitize.String},
	{sanitize.ColRank, "Rank", sanitize.Int},
	{sanitize.ColEnzN, "EnzN", sanitize.Bool},
	{sanitize.ColEnzC, "EnzC", sanitize.Bool},
	{sanitize.ColMissedCleavages, "MissedCleavages", sanitize.Int},
	{sanitize.ColIsDecoy, "IsDecoy", sanitize.Bool},
	{sanitize.ColIsImmutable, "IsImmutable", sanitize.Bool},
}

// RunInfo is the run summary stored in RunTable.
type RunInfo struct {
	Inputs      []string
	RowsIn      int
	RowsOut     int
	Unmappable  int
	Malformed   int
	Ambiguous   int
	Duplicates  int
	Description string
}

// Writer handles writing unified tables to SQLite database files
type Writer struct {
	db         *sql.DB
	outputPath string
	psmStmt    *sql.Stmt
	extraStmt  *sql.Stmt
	psmID      int
	finalized  bool
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		psmID:      1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

func sqlType(k sanitize.Kind) string {
	switch k {
	case sanitize.Int:
		return "INTEGER"
	case sanitize.Float:
		return "DOUBLE"
	case sanitize.Bool:
		return "BOOL"
	}
	return "TEXT"
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	defs := make([]string, 0, len(psmColumns)+1)
	defs = append(defs, "PsmId INTEGER PRIMARY KEY")
	for _, c := range psmColumns {
		defs = append(defs, c.sqlName+" "+sqlType(c.kind))
	}

	schema := `
	CREATE TABLE IF NOT EXISTS PSMTable (
		` + strings.Join(defs, ",\n\t\t") + `
	);

	CREATE TABLE IF NOT EXISTS ExtraTable (
		PsmId INTEGER REFERENCES PSMTable(PsmId),
		Name TEXT,
		Value TEXT
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		LastModifiedDate TEXT,
		Description TEXT,
		Columns TEXT
	);

	CREATE TABLE IF NOT EXISTS RunTable (
		CreationDate TEXT,
		Inputs TEXT,
		RowsIn INTEGER,
		RowsOut INTEGER,
		Unmappable INTEGER,
		Malformed INTEGER,
		AmbiguousMasses INTEGER,
		Duplicates INTEGER,
		Description TEXT
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	names := make([]string, 0, len(psmColumns)+1)
	names = append(names, "PsmId")
	for _, c := range psmColumns {
		names = append(names, c.sqlName)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")

	w.psmStmt, err = w.db.Prepare(`
		INSERT INTO PSMTable (` + strings.Join(names, ", ") + `)
		VALUES (` + placeholders + `)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare psm statement: %w", err)
	}

	w.extraStmt, err = w.db.Prepare(`
		INSERT INTO ExtraTable (PsmId, Name, Value) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare extra statement: %w", err)
	}

	return nil
}

// WriteTable writes every row of t inside one transaction. Canonical
// columns go to PSMTable, engine specific columns with a value to ExtraTable.
func (w *Writer) WriteTable(t *sanitize.Table) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	psmStmt := tx.Stmt(w.psmStmt)
	extraStmt := tx.Stmt(w.extraStmt)

	for _, row := range t.Rows {
		if err := w.writeRow(psmStmt, extraStmt, t, row); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rows: %w", err)
	}
	return nil
}

func (w *Writer) writeRow(psmStmt, extraStmt *sql.Stmt, t *sanitize.Table, row []string) error {
	args := make([]interface{}, 0, len(psmColumns)+1)
	args = append(args, w.psmID)
	for _, c := range psmColumns {
		v := ""
		if idx := t.Index(c.name); idx >= 0 && idx < len(row) {
			v = row[idx]
		}
		arg, err := toSQL(c.kind, v)
		if err != nil {
			return fmt.Errorf("row %d, column %s: %w", w.psmID, c.name, err)
		}
		args = append(args, arg)
	}

	if _, err := psmStmt.Exec(args...); err != nil {
		return fmt.Errorf("failed to insert psm: %w", err)
	}

	for i, name := range t.Header {
		if sanitize.IsCanonical(name) || i >= len(row) || row[i] == "" {
			continue
		}
		if _, err := extraStmt.Exec(w.psmID, name, row[i]); err != nil {
			return fmt.Errorf("failed to insert extra column: %w", err)
		}
	}

	w.psmID++
	return nil
}

// toSQL converts a sanitized value; empty values are stored as NULL.
func toSQL(kind sanitize.Kind, v string) (interface{}, error) {
	if v == "" {
		return nil, nil
	}
	switch kind {
	case sanitize.Int:
		return strconv.Atoi(v)
	case sanitize.Float:
		return strconv.ParseFloat(v, 64)
	case sanitize.Bool:
		return strconv.ParseBool(v)
	}
	return v, nil
}

// Finalize writes the header and run tables and closes the database
func (w *Writer) Finalize(run RunInfo) error {
	if w.finalized {
		return nil
	}
	w.finalized = true

	names := make([]string, len(psmColumns))
	for i, c := range psmColumns {
		names[i] = c.name
	}

	// Write HeaderTable
	now := time.Now()
	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, Description, Columns)
		VALUES (?, ?, ?, ?, ?)
	`, schemaVersion, now.Format(headerDateFormat), now.Format(headerDateFormat), "psmnorm unified PSM table", strings.Join(names, "\t"))
	if err != nil {
		w.close()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	// Write RunTable
	_, err = w.db.Exec(`
		INSERT INTO RunTable (CreationDate, Inputs, RowsIn, RowsOut, Unmappable, Malformed, AmbiguousMasses, Duplicates, Description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, now.Format(runDateFormat), strings.Join(run.Inputs, ";"), run.RowsIn, run.RowsOut,
		run.Unmappable, run.Malformed, run.Ambiguous, run.Duplicates, run.Description)
	if err != nil {
		w.close()
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return w.close()
}

func (w *Writer) close() error {
	// Close prepared statements
	if w.psmStmt != nil {
		w.psmStmt.Close()
	}
	if w.extraStmt != nil {
		w.extraStmt.Close()
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection. A writer that was not finalized is
// closed without header and run records.
func (w *Writer) Close() error {
	if w.finalized {
		return nil
	}
	w.finalized = true
	return w.close()
}
