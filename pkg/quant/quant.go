// Package quant matches reference precursor peaks against a quantitation
// spectrum and models the resulting per-peak intensity sums.
package quant

import (
	"context"
	"fmt"
	"sort"
)

// Reader reads quantitation data from a file.
type Reader interface {
	// Read returns the matched peaks of the file. A partial result may be
	// returned alongside an error.
	Read(ctx context.Context, path string, ppm bool, interval float64) (*QuantPeakData, error)
	// IsValid reports whether path can be read by this reader.
	IsValid(path string) bool
}

// InvalidFormatError reports malformed quantitation input.
type InvalidFormatError struct {
	Msg string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid file format: %s", e.Msg)
}

// QuantPeak is one quantified peak and the spectrum regions that matched it.
type QuantPeak struct {
	MassMonoisotopic float64
	MassAveragine    float64
	SumIntensity     float64
	MZ               float64
	Matches          []*QuantPeakMatch
}

// Add appends a match.
func (p *QuantPeak) Add(m *QuantPeakMatch) {
	p.Matches = append(p.Matches, m)
}

// QuantPeakMatch is a matched m/z region.
type QuantPeakMatch struct {
	Charge         int // -1 when not determined
	MZMostAbundant float64
	IntensitySum   float64
	MinMZ          float64
	MaxMZ          float64
	Peak           *QuantPeak // owning peak
}

// NewQuantPeakMatch creates a match owned by p.
func NewQuantPeakMatch(p *QuantPeak) *QuantPeakMatch {
	return &QuantPeakMatch{Charge: -1, Peak: p}
}

// SetBounds sets MinMZ and MaxMZ around the most abundant m/z.
func (m *QuantPeakMatch) SetBounds(interval float64, ppm bool) {
	m.MinMZ, m.MaxMZ = ComputeBounds(m.MZMostAbundant, interval, ppm)
}

// QuantPeakData holds the quantified peaks of one scan.
type QuantPeakData struct {
	ScanNumber    int
	RetentionTime float64
	MaxIntensity  float64
	Peaks         []*QuantPeak
}

// NewQuantPeakData returns empty data with unset scan number and retention time.
func NewQuantPeakData() *QuantPeakData {
	return &QuantPeakData{ScanNumber: -1, RetentionTime: -1}
}

// Add appends a quantified peak.
func (d *QuantPeakData) Add(p *QuantPeak) {
	d.Peaks = append(d.Peaks, p)
}

// AllMatches returns the matches of every peak sorted by MinMZ.
func (d *QuantPeakData) AllMatches() []*QuantPeakMatch {
	var matches []*QuantPeakMatch
	for _, p := range d.Peaks {
		matches = append(matches, p.Matches...)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MinMZ < matches[j].MinMZ
	})
	return matches
}

// ComputeTolerance converts a matching interval to an absolute m/z tolerance.
func ComputeTolerance(mz, interval float64, ppm bool) float64 {
	if ppm {
		return mz * interval / 1e6
	}
	return interval
}

// ComputeBounds returns the m/z window of the given interval around mz.
func ComputeBounds(mz, interval float64, ppm bool) (float64, float64) {
	tol := ComputeTolerance(mz, interval, ppm)
	return mz - tol, mz + tol
}
