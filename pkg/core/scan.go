// Package core provides the in-memory scan, peak and view models produced by
// scan hierarchy reconstruction, along with their validation logic.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// NoParent marks a scan without a parent scan.
const NoParent = -1

// Peak represents a single measured m/z, intensity pair with optional
// precursor annotations.
type Peak struct {
	ID                int // 1-based position within the owning scan's raw peak list
	MZ                float64
	Intensity         float64
	RelativeIntensity float64 // Intensity / scan's most abundant peak

	// Set when a child scan resolved its precursor against this peak
	IsPrecursor        bool
	PrecursorMZ        float64
	PrecursorIntensity float64
	PrecursorCharge    int // 0 if unknown

	Charge int // Fragment charge (0 if unknown)
}

// PeakRef addresses one peak in another scan's peak list.
type PeakRef struct {
	ScanNumber int
	Index      int // index into Scan.Peaks
}

// Scan represents one spectrum in a reconstructed scan hierarchy.
type Scan struct {
	ScanNumber       int
	MSLevel          int
	RetentionTime    float64 // seconds
	Polarity         *bool   // nil if unknown, true if positive
	Centroided       bool
	ActivationMethod string

	// Scan m/z range
	ScanStart float64
	ScanEnd   float64

	MostAbundantPeak float64
	TotalIntensity   float64
	TotalPeaks       int
	Peaks            []Peak

	ParentScanNumber int
	Children         []int
	Precursor        *PeakRef // precursor peak in the parent scan, nil for roots

	// Precursor as declared by this scan's own header
	PrecursorMZ        float64
	PrecursorIntensity float64
	PrecursorCharge    int // 0 if unknown
}

// NewScan creates a scan with no parent.
func NewScan(scanNumber, msLevel int) *Scan {
	return &Scan{
		ScanNumber:       scanNumber,
		MSLevel:          msLevel,
		ParentScanNumber: NoParent,
	}
}

// HasParent reports whether the scan names a parent scan.
func (s *Scan) HasParent() bool {
	return s.ParentScanNumber != NoParent
}

// AddChild records a child scan number once.
func (s *Scan) AddChild(scanNumber int) {
	for _, c := range s.Children {
		if c == scanNumber {
			return
		}
	}
	s.Children = append(s.Children, scanNumber)
}

// PrecursorPeak resolves the scan's precursor reference through the owning map.
func (s *Scan) PrecursorPeak(scans map[int]*Scan) (*Peak, bool) {
	if s.Precursor == nil {
		return nil, false
	}
	parent, ok := scans[s.Precursor.ScanNumber]
	if !ok || s.Precursor.Index < 0 || s.Precursor.Index >= len(parent.Peaks) {
		return nil, false
	}
	return &parent.Peaks[s.Precursor.Index], true
}

// ValidationError represents an error found during scan validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a scan is internally consistent.
func (s *Scan) Validate() error {
	var errs []string

	if s.ScanNumber < 0 {
		errs = append(errs, "scan number must be non-negative")
	}
	if s.MSLevel < 1 {
		errs = append(errs, "ms level must be at least 1")
	}
	if math.IsNaN(s.RetentionTime) || math.IsInf(s.RetentionTime, 0) {
		errs = append(errs, "retention time must be finite")
	}
	if s.HasParent() && s.ParentScanNumber == s.ScanNumber {
		errs = append(errs, "scan cannot be its own parent")
	}

	for i, peak := range s.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ < 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be non-negative", i))
		}
		if peak.Intensity <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be positive", i))
		}
	}

	if !s.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   fmt.Sprintf("Scan %d", s.ScanNumber),
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (s *Scan) ArePeaksSorted() bool {
	for i := 1; i < len(s.Peaks); i++ {
		if s.Peaks[i].MZ < s.Peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by m/z in ascending order and returns the new index
// of every old index, so references into the list can be remapped.
func (s *Scan) SortPeaks() []int {
	order := make([]int, len(s.Peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return s.Peaks[order[i]].MZ < s.Peaks[order[j]].MZ
	})

	sorted := make([]Peak, len(s.Peaks))
	remap := make([]int, len(s.Peaks))
	for newIdx, oldIdx := range order {
		sorted[newIdx] = s.Peaks[oldIdx]
		remap[oldIdx] = newIdx
	}
	s.Peaks = sorted
	return remap
}

// PolarityString returns "+", "-" or "" for unknown polarity.
func (s *Scan) PolarityString() string {
	if s.Polarity == nil {
		return ""
	}
	if *s.Polarity {
		return "+"
	}
	return "-"
}

// SortScans sorts scans by scan number in ascending order.
func SortScans(scans []*Scan) {
	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].ScanNumber < scans[j].ScanNumber
	})
}

// IndexScans maps scans by scan number.
func IndexScans(scans []*Scan) map[int]*Scan {
	m := make(map[int]*Scan, len(scans))
	for _, s := range scans {
		m[s.ScanNumber] = s
	}
	return m
}
