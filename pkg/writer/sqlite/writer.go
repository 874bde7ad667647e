// Package sqlite provides SQLite export of reconstructed scan hierarchies
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/MSTree/pkg/core"
	"github.com/ChrisMcGann/MSTree/pkg/quant"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	schemaVersion    = 1
)

// Header describes the export as a whole
type Header struct {
	SourceFile string
	Topology   string
}

// Writer handles writing scans to SQLite database files
type Writer struct {
	db         *sql.DB
	outputPath string
	header     Header
	scanStmt   *sql.Stmt
	quantStmt  *sql.Stmt
	scanCount  int
	matchID    int
	closed     bool
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string, header Header) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		header:     header,
		matchID:    1,
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

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ScanTable (
		ScanNumber INTEGER PRIMARY KEY,
		MSLevel INTEGER,
		RetentionTime DOUBLE,
		Polarity TEXT,
		Centroided BOOL,
		ActivationMethod TEXT,
		ScanStart DOUBLE,
		ScanEnd DOUBLE,
		MostAbundantPeak DOUBLE,
		TotalIntensity DOUBLE,
		TotalPeaks INTEGER,
		ParentScanNumber INTEGER,
		Children TEXT,
		PrecursorScanNumber INTEGER,
		PrecursorPeakIndex INTEGER,
		PrecursorMZ DOUBLE,
		PrecursorIntensity DOUBLE,
		PrecursorCharge INTEGER,
		blobMass BLOB,
		blobIntensity BLOB,
		blobPrecursorFlags BLOB
	);

	CREATE TABLE IF NOT EXISTS QuantTable (
		MatchId INTEGER PRIMARY KEY,
		ScanNumber INTEGER,
		RetentionTime DOUBLE,
		PeakMZ DOUBLE,
		MassMonoisotopic DOUBLE,
		MassAveragine DOUBLE,
		SumIntensity DOUBLE,
		Charge INTEGER,
		MZMostAbundant DOUBLE,
		IntensitySum DOUBLE,
		MinMZ DOUBLE,
		MaxMZ DOUBLE
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		SourceFile TEXT,
		Topology TEXT,
		ScanCount INTEGER
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

	w.scanStmt, err = w.db.Prepare(`
		INSERT INTO ScanTable (
			ScanNumber, MSLevel, RetentionTime, Polarity, Centroided,
			ActivationMethod, ScanStart, ScanEnd, MostAbundantPeak, TotalIntensity,
			TotalPeaks, ParentScanNumber, Children, PrecursorScanNumber, PrecursorPeakIndex,
			PrecursorMZ, PrecursorIntensity, PrecursorCharge, blobMass, blobIntensity,
			blobPrecursorFlags
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare scan statement: %w", err)
	}

	w.quantStmt, err = w.db.Prepare(`
		INSERT INTO QuantTable (
			MatchId, ScanNumber, RetentionTime, PeakMZ, MassMonoisotopic,
			MassAveragine, SumIntensity, Charge, MZMostAbundant, IntensitySum,
			MinMZ, MaxMZ
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare quant statement: %w", err)
	}

	return nil
}

// WriteScan writes a single scan to the database
func (w *Writer) WriteScan(scan *core.Scan) error {
	// Handle optional parent and precursor reference
	var parent, precursorScan, precursorIndex interface{}
	if scan.HasParent() {
		parent = scan.ParentScanNumber
	}
	if scan.Precursor != nil {
		precursorScan = scan.Precursor.ScanNumber
		precursorIndex = scan.Precursor.Index
	}

	var polarity interface{}
	if p := scan.PolarityString(); p != "" {
		polarity = p
	}

	_, err := w.scanStmt.Exec(
		scan.ScanNumber,
		scan.MSLevel,
		scan.RetentionTime,
		polarity,
		scan.Centroided,
		scan.ActivationMethod,
		scan.ScanStart,
		scan.ScanEnd,
		scan.MostAbundantPeak,
		scan.TotalIntensity,
		scan.TotalPeaks,
		parent,
		joinChildren(scan.Children),
		precursorScan,
		precursorIndex,
		scan.PrecursorMZ,
		scan.PrecursorIntensity,
		scan.PrecursorCharge,
		encodePeaksFloat64(scan.Peaks, true),  // m/z values
		encodePeaksFloat64(scan.Peaks, false), // intensity values
		encodePrecursorFlags(scan.Peaks),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan %d: %w", scan.ScanNumber, err)
	}

	w.scanCount++
	return nil
}

// WriteQuant writes one row per quantitation match
func (w *Writer) WriteQuant(data *quant.QuantPeakData) error {
	for _, peak := range data.Peaks {
		for _, m := range peak.Matches {
			_, err := w.quantStmt.Exec(
				w.matchID,
				data.ScanNumber,
				data.RetentionTime,
				peak.MZ,
				peak.MassMonoisotopic,
				peak.MassAveragine,
				peak.SumIntensity,
				m.Charge,
				m.MZMostAbundant,
				m.IntensitySum,
				m.MinMZ,
				m.MaxMZ,
			)
			if err != nil {
				return fmt.Errorf("failed to insert quant match: %w", err)
			}
			w.matchID++
		}
	}
	return nil
}

// ScanCount returns the number of scans written so far
func (w *Writer) ScanCount() int {
	return w.scanCount
}

func joinChildren(children []int) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

// encodePeaksFloat64 encodes peak data as little-endian float64 blob
func encodePeaksFloat64(peaks []core.Peak, useMZ bool) []byte {
	buf := make([]byte, len(peaks)*8)
	for i, peak := range peaks {
		var value float64
		if useMZ {
			value = peak.MZ
		} else {
			value = peak.Intensity
		}
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value))
	}
	return buf
}

// encodePrecursorFlags encodes one byte per peak, 1 for precursor peaks
func encodePrecursorFlags(peaks []core.Peak) []byte {
	buf := make([]byte, len(peaks))
	for i, peak := range peaks {
		if peak.IsPrecursor {
			buf[i] = 1
		}
	}
	return buf
}

// Finalize writes the header table and closes the database
func (w *Writer) Finalize() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, SourceFile, Topology, ScanCount)
		VALUES (?, ?, ?, ?, ?)
	`, schemaVersion, time.Now().Format(headerDateFormat), w.header.SourceFile, w.header.Topology, w.scanCount)
	if err != nil {
		w.db.Close()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	// Close prepared statements
	if w.scanStmt != nil {
		w.scanStmt.Close()
	}
	if w.quantStmt != nil {
		w.quantStmt.Close()
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
