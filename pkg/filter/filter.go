// Package filter provides peak filtering for reconstructed scans
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ChrisMcGann/MSTree/pkg/core"
)

// CutoffType selects how an intensity cutoff is interpreted
type CutoffType int

const (
	// Percentage cutoffs are a percentage of the scan's most intense peak
	Percentage CutoffType = iota
	// Absolute cutoffs are raw intensities
	Absolute
)

func (t CutoffType) String() string {
	if t == Absolute {
		return "absolute"
	}
	return "percentage"
}

// ParseCutoffType parses "percentage" (or "%") and "absolute"
func ParseCutoffType(s string) (CutoffType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "percentage", "percent", "%":
		return Percentage, nil
	case "absolute", "abs":
		return Absolute, nil
	}
	return Percentage, fmt.Errorf("unknown cutoff type: %s", s)
}

// Config holds filtering configuration
type Config struct {
	TopN                int     // Keep only top N most intense non-precursor peaks (0 = no limit)
	Cutoff              float64 // Drop non-precursor peaks below this intensity (0 = no cutoff)
	CutoffType          CutoffType
	PrecursorCutoff     float64 // Drop precursor peaks below this intensity (0 = keep all)
	PrecursorCutoffType CutoffType
}

// Enabled reports whether any filter is configured
func (c *Config) Enabled() bool {
	return c.TopN > 0 || c.Cutoff > 0 || c.PrecursorCutoff > 0
}

// Apply filters the peaks of a single scan and re-sorts them by m/z. It
// returns the new index of every old peak index, -1 for dropped peaks.
func (c *Config) Apply(scan *core.Scan) []int {
	keep := make([]bool, len(scan.Peaks))
	if len(scan.Peaks) == 0 {
		return retain(scan, keep)
	}

	// Find maximum intensity
	maxIntensity := 0.0
	for _, peak := range scan.Peaks {
		if peak.Intensity > maxIntensity {
			maxIntensity = peak.Intensity
		}
	}

	threshold := c.threshold(c.Cutoff, c.CutoffType, maxIntensity)
	precursorThreshold := c.threshold(c.PrecursorCutoff, c.PrecursorCutoffType, maxIntensity)

	var candidates []int
	for i, peak := range scan.Peaks {
		if peak.IsPrecursor {
			keep[i] = peak.Intensity >= precursorThreshold
			continue
		}
		if peak.Intensity >= threshold {
			candidates = append(candidates, i)
		}
	}

	// Apply top-N filter to non-precursor peaks
	if c.TopN > 0 && len(candidates) > c.TopN {
		sort.SliceStable(candidates, func(i, j int) bool {
			return scan.Peaks[candidates[i]].Intensity > scan.Peaks[candidates[j]].Intensity
		})
		candidates = candidates[:c.TopN]
	}
	for _, i := range candidates {
		keep[i] = true
	}

	return retain(scan, keep)
}

func (c *Config) threshold(cutoff float64, typ CutoffType, maxIntensity float64) float64 {
	if cutoff <= 0 {
		return 0
	}
	if typ == Absolute {
		return cutoff
	}
	return (cutoff / 100.0) * maxIntensity
}

// ApplyAll filters every scan. Scans whose precursor peak was dropped are
// removed together with their descendants, and the remaining precursor
// references and child lists are updated.
func (c *Config) ApplyAll(scans []*core.Scan) []*core.Scan {
	index := core.IndexScans(scans)

	remaps := make(map[int][]int, len(scans))
	for _, scan := range scans {
		remaps[scan.ScanNumber] = c.Apply(scan)
	}

	// Remove orphaned subtrees
	removed := make(map[int]bool)
	var queue []int
	for _, scan := range scans {
		if scan.Precursor == nil {
			continue
		}
		remap, ok := remaps[scan.Precursor.ScanNumber]
		if ok && remap[scan.Precursor.Index] < 0 {
			queue = append(queue, scan.ScanNumber)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if removed[n] {
			continue
		}
		removed[n] = true
		if scan, ok := index[n]; ok {
			queue = append(queue, scan.Children...)
		}
	}

	var kept []*core.Scan
	for _, scan := range scans {
		if removed[scan.ScanNumber] {
			continue
		}
		if scan.Precursor != nil {
			if remap, ok := remaps[scan.Precursor.ScanNumber]; ok {
				scan.Precursor.Index = remap[scan.Precursor.Index]
			}
		}
		children := scan.Children[:0]
		for _, ch := range scan.Children {
			if !removed[ch] {
				children = append(children, ch)
			}
		}
		scan.Children = children
		kept = append(kept, scan)
	}
	return kept
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity and
// returns the index remapping
func RemoveZeroIntensityPeaks(scan *core.Scan) []int {
	keep := make([]bool, len(scan.Peaks))
	for i, peak := range scan.Peaks {
		keep[i] = peak.Intensity > 0
	}
	return retain(scan, keep)
}

// retain keeps the flagged peaks sorted by m/z and returns old to new indexes
func retain(scan *core.Scan, keep []bool) []int {
	remap := make([]int, len(scan.Peaks))
	var filtered []core.Peak
	for i, peak := range scan.Peaks {
		remap[i] = -1
		if keep[i] {
			remap[i] = len(filtered)
			filtered = append(filtered, peak)
		}
	}
	scan.Peaks = filtered

	// Ensure peaks are sorted after all filtering
	order := scan.SortPeaks()
	for i, k := range remap {
		if k >= 0 {
			remap[i] = order[k]
		}
	}
	return remap
}
