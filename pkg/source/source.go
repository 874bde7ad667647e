// Package source defines the random-access spectral source consumed by scan
// hierarchy reconstruction, with an in-memory implementation and an LRU
// caching wrapper.
package source

import (
	"errors"
	"fmt"
)

// ErrScanNotFound is returned when a scan number is not present in a source.
var ErrScanNotFound = errors.New("scan not found")

// Header holds the per-scan metadata of a raw spectrum.
type Header struct {
	ScanNumber          int
	MSLevel             int
	PrecursorMZ         float64
	PrecursorIntensity  float64
	PrecursorCharge     int // -1 if absent
	PrecursorScanNumber int // -1 if absent
	Polarity            string
	RetentionTime       float64 // seconds
	LowMZ               float64
	HighMZ              float64
	Centroided          bool
	ActivationMethod    string
	TotalIonCurrent     float64
	PeaksCount          int
}

// NewHeader returns a header with no declared precursor.
func NewHeader(scanNumber, msLevel int) Header {
	return Header{
		ScanNumber:          scanNumber,
		MSLevel:             msLevel,
		PrecursorCharge:     -1,
		PrecursorScanNumber: -1,
	}
}

// HasPrecursorScan reports whether the header declares its precursor scan.
func (h *Header) HasPrecursorScan() bool {
	return h.PrecursorScanNumber != -1
}

// Source provides random access to the headers and peak arrays of a run.
type Source interface {
	// Header returns the header of a scan.
	Header(scanNumber int) (*Header, error)
	// Spectrum returns the parallel m/z and intensity arrays of a scan.
	Spectrum(scanNumber int) (mz, intensity []float64, err error)
	// MaxScanNumber returns the highest scan number in the run.
	MaxScanNumber() int
}

// Record is one scan held by a Memory source.
type Record struct {
	Header    Header
	MZ        []float64
	Intensity []float64
	Err       error // returned by Header and Spectrum when set
}

// Memory is a Source backed by records held in memory.
type Memory struct {
	records map[int]*Record
	max     int
}

// NewMemory creates a memory source from the given records.
func NewMemory(records ...Record) *Memory {
	m := &Memory{records: make(map[int]*Record, len(records))}
	for _, r := range records {
		m.Add(r)
	}
	return m
}

// Add inserts or replaces a record.
func (m *Memory) Add(r Record) {
	rec := r
	m.records[rec.Header.ScanNumber] = &rec
	if rec.Header.ScanNumber > m.max {
		m.max = rec.Header.ScanNumber
	}
}

// Header implements Source.
func (m *Memory) Header(scanNumber int) (*Header, error) {
	rec, ok := m.records[scanNumber]
	if !ok {
		return nil, fmt.Errorf("scan %d: %w", scanNumber, ErrScanNotFound)
	}
	if rec.Err != nil {
		return nil, rec.Err
	}
	h := rec.Header
	return &h, nil
}

// Spectrum implements Source.
func (m *Memory) Spectrum(scanNumber int) ([]float64, []float64, error) {
	rec, ok := m.records[scanNumber]
	if !ok {
		return nil, nil, fmt.Errorf("scan %d: %w", scanNumber, ErrScanNotFound)
	}
	if rec.Err != nil {
		return nil, nil, rec.Err
	}
	if len(rec.MZ) != len(rec.Intensity) {
		return nil, nil, fmt.Errorf("scan %d: m/z and intensity arrays differ in length (%d != %d)",
			scanNumber, len(rec.MZ), len(rec.Intensity))
	}
	return rec.MZ, rec.Intensity, nil
}

// MaxScanNumber implements Source.
func (m *Memory) MaxScanNumber() int {
	return m.max
}
