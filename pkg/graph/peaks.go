package graph

import (
	"context"
	"math"

	"github.com/ChrisMcGann/MSTree/pkg/core"
	"github.com/ChrisMcGann/MSTree/pkg/source"
)

// scanFromHeader creates an unlinked scan without peaks.
func scanFromHeader(h *source.Header) *core.Scan {
	scan := core.NewScan(h.ScanNumber, h.MSLevel)
	scan.RetentionTime = h.RetentionTime
	scan.Centroided = h.Centroided
	scan.ActivationMethod = h.ActivationMethod
	scan.ScanStart = h.LowMZ
	scan.ScanEnd = h.HighMZ

	switch h.Polarity {
	case "+":
		positive := true
		scan.Polarity = &positive
	case "-":
		negative := false
		scan.Polarity = &negative
	}

	if h.MSLevel > 1 {
		scan.PrecursorMZ = h.PrecursorMZ
		scan.PrecursorIntensity = h.PrecursorIntensity
		scan.PrecursorCharge = precursorCharge(h)
	}
	return scan
}

func newRoot() *core.Scan {
	return core.NewScan(RootScanNumber, 1)
}

func precursorCharge(h *source.Header) int {
	if h.PrecursorCharge < 0 {
		return 0
	}
	return h.PrecursorCharge
}

// ingest computes the scan's intensity statistics from a raw spectrum and,
// when retain is set, stores its positive-intensity peaks. It returns false
// if ctx was cancelled part way.
func ingest(ctx context.Context, scan *core.Scan, mz, intensity []float64, retain bool) bool {
	most := 0.0
	for _, x := range intensity {
		if x > most {
			most = x
		}
	}
	scan.MostAbundantPeak = most
	scan.TotalPeaks = len(mz)

	low, high, total := math.MaxFloat64, -math.MaxFloat64, 0.0
	if retain {
		scan.Peaks = make([]core.Peak, 0, len(mz))
	}
	for i := range mz {
		if i%pollEvery == 0 && ctx.Err() != nil {
			return false
		}
		if intensity[i] <= 0 {
			continue
		}
		total += intensity[i]
		low = math.Min(low, mz[i])
		high = math.Max(high, mz[i])
		if retain {
			scan.Peaks = append(scan.Peaks, core.Peak{
				ID:                i + 1,
				MZ:                mz[i],
				Intensity:         intensity[i],
				RelativeIntensity: intensity[i] / most,
			})
		}
	}
	scan.TotalIntensity = total

	if scan.ScanStart <= 0 && low != math.MaxFloat64 {
		scan.ScanStart = low
	}
	if scan.ScanEnd <= 0 && high != -math.MaxFloat64 {
		scan.ScanEnd = high
	}
	return true
}

// nearestPeak returns the index of the peak closest to mz with a distance
// below window, or -1.
func nearestPeak(peaks []core.Peak, mz, window float64) int {
	best, bestDelta := -1, window
	for i := range peaks {
		if d := math.Abs(peaks[i].MZ - mz); d < bestDelta {
			best, bestDelta = i, d
		}
	}
	return best
}

// nearestIntensePeak is nearestPeak restricted to peaks with positive intensity.
func nearestIntensePeak(peaks []core.Peak, mz, window float64) int {
	best, bestDelta := -1, window
	for i := range peaks {
		if peaks[i].Intensity <= 0 {
			continue
		}
		if d := math.Abs(peaks[i].MZ - mz); d < bestDelta {
			best, bestDelta = i, d
		}
	}
	return best
}

// resolvePrecursor points h's precursor at the nearest parent peak,
// appending a zero-intensity peak when none is close enough.
func resolvePrecursor(parent *core.Scan, h *source.Header) core.PeakRef {
	idx := nearestPeak(parent.Peaks, h.PrecursorMZ, precursorWindow)
	if idx < 0 {
		idx = appendPeak(parent, h, 0)
	}
	annotate(&parent.Peaks[idx], h)
	return core.PeakRef{ScanNumber: parent.ScanNumber, Index: idx}
}

// mergeRootPrecursor adds h's precursor to a synthesized root. Precursors
// with identical m/z share one peak whose intensity is the first child's
// total ion current.
func mergeRootPrecursor(root *core.Scan, h *source.Header) core.PeakRef {
	idx := nearestPeak(root.Peaks, h.PrecursorMZ, rootMergeTolerance)
	if idx < 0 {
		idx = appendPeak(root, h, h.TotalIonCurrent)
	}
	annotate(&root.Peaks[idx], h)
	return core.PeakRef{ScanNumber: root.ScanNumber, Index: idx}
}

func appendPeak(parent *core.Scan, h *source.Header, intensity float64) int {
	parent.Peaks = append(parent.Peaks, core.Peak{
		ID:        len(parent.Peaks) + 1,
		MZ:        h.PrecursorMZ,
		Intensity: intensity,
		Charge:    precursorCharge(h),
	})
	return len(parent.Peaks) - 1
}

func annotate(p *core.Peak, h *source.Header) {
	p.IsPrecursor = true
	p.PrecursorMZ = h.PrecursorMZ
	p.PrecursorIntensity = h.PrecursorIntensity
	p.PrecursorCharge = precursorCharge(h)
}

// referencing groups scans by the parent their precursor points into.
func referencing(scans []*core.Scan) map[int][]*core.Scan {
	refs := make(map[int][]*core.Scan)
	for _, s := range scans {
		if s.Precursor != nil {
			refs[s.Precursor.ScanNumber] = append(refs[s.Precursor.ScanNumber], s)
		}
	}
	return refs
}

func referencedIndexes(children []*core.Scan) map[int]bool {
	idx := make(map[int]bool, len(children))
	for _, c := range children {
		idx[c.Precursor.Index] = true
	}
	return idx
}

// retainPeaks keeps the parent's peaks accepted by keep and remaps the
// precursor references of children. With sortByMZ the kept peaks are sorted
// and renumbered from 1.
func retainPeaks(parent *core.Scan, children []*core.Scan, keep func(int, *core.Peak) bool, sortByMZ bool) {
	remap := make([]int, len(parent.Peaks))
	kept := make([]core.Peak, 0, len(parent.Peaks))
	for i := range parent.Peaks {
		remap[i] = -1
		if keep(i, &parent.Peaks[i]) {
			remap[i] = len(kept)
			kept = append(kept, parent.Peaks[i])
		}
	}
	parent.Peaks = kept

	if sortByMZ {
		order := parent.SortPeaks()
		for i, k := range remap {
			if k >= 0 {
				remap[i] = order[k]
			}
		}
		for i := range parent.Peaks {
			parent.Peaks[i].ID = i + 1
		}
	}

	for _, c := range children {
		c.Precursor.Index = remap[c.Precursor.Index]
	}
}

// compactLevelOne reduces every MS1 peak list to the precursor peaks of its
// children, sorted by m/z.
func compactLevelOne(scans []*core.Scan, refs map[int][]*core.Scan) {
	for _, s := range scans {
		if s.MSLevel != 1 {
			continue
		}
		children := refs[s.ScanNumber]
		used := referencedIndexes(children)
		retainPeaks(s, children, func(i int, _ *core.Peak) bool {
			return used[i]
		}, true)
	}
}

// dropUnreferenced removes synthesized peaks whose only children fell
// outside the result.
func dropUnreferenced(scans []*core.Scan, refs map[int][]*core.Scan) {
	for _, s := range scans {
		children := refs[s.ScanNumber]
		used := referencedIndexes(children)
		stale := false
		for i, p := range s.Peaks {
			if p.Intensity <= 0 && !used[i] {
				stale = true
				break
			}
		}
		if !stale {
			continue
		}
		retainPeaks(s, children, func(i int, p *core.Peak) bool {
			return p.Intensity > 0 || used[i]
		}, false)
	}
}

// sortPeakLists restores m/z order in peak lists that synthesized precursor
// peaks left unsorted.
func sortPeakLists(scans []*core.Scan, refs map[int][]*core.Scan) {
	for _, s := range scans {
		if s.ArePeaksSorted() {
			continue
		}
		retainPeaks(s, refs[s.ScanNumber], func(int, *core.Peak) bool { return true }, true)
	}
}

// backfill gives synthesized precursor peaks a positive intensity: the
// child's declared precursor intensity, else the child's nearest peak, else 1.
func backfill(scans []*core.Scan, index map[int]*core.Scan) {
	for _, c := range scans {
		if c.Precursor == nil {
			continue
		}
		parent, ok := index[c.Precursor.ScanNumber]
		if !ok {
			continue
		}
		p := &parent.Peaks[c.Precursor.Index]
		if p.Intensity > 0 {
			continue
		}
		switch j := nearestIntensePeak(c.Peaks, p.MZ, precursorWindow); {
		case c.PrecursorIntensity > 0:
			p.Intensity = c.PrecursorIntensity
		case j >= 0:
			p.Intensity = c.Peaks[j].Intensity
		default:
			p.Intensity = 1.0
		}
		if parent.MostAbundantPeak > 0 {
			p.RelativeIntensity = p.Intensity / parent.MostAbundantPeak
		}
	}
}

// summarizeRoot derives a synthesized root's statistics, polarity and m/z
// range from its peaks and children.
func summarizeRoot(root *core.Scan, index map[int]*core.Scan) {
	most, total := 0.0, 0.0
	for _, p := range root.Peaks {
		most = math.Max(most, p.Intensity)
		total += p.Intensity
	}
	for i := range root.Peaks {
		root.Peaks[i].RelativeIntensity = root.Peaks[i].Intensity / most
	}
	root.MostAbundantPeak = most
	root.TotalIntensity = total
	root.TotalPeaks = len(root.Peaks)

	for i, n := range root.Children {
		child, ok := index[n]
		if !ok {
			continue
		}
		if i == 0 {
			root.Polarity = child.Polarity
		}
		if child.ScanStart > 0 && (root.ScanStart == 0 || child.ScanStart < root.ScanStart) {
			root.ScanStart = child.ScanStart
		}
		if child.ScanEnd > root.ScanEnd {
			root.ScanEnd = child.ScanEnd
		}
	}
}
