package graph

import (
	"github.com/ChrisMcGann/MSTree/pkg/core"
	"github.com/ChrisMcGann/MSTree/pkg/source"
)

// strategy decides how a traversal assigns parents and which scans it keeps.
type strategy interface {
	// begin is called once with the header of the first readable scan.
	begin(r *run, first *source.Header)
	// span returns the inclusive range of scan numbers to visit.
	span(first, last int) (int, int)
	// stop reports whether the traversal ends before h.
	stop(r *run, h *source.Header) bool
	// parentOf returns the parent scan number for h, or core.NoParent.
	parentOf(r *run, h *source.Header) int
	// missingParent supplies a parent that was not visited, or nil to drop h.
	missingParent(r *run, h *source.Header, parent int) *core.Scan
	// keep reports whether h belongs to the selection and whether its peaks are retained.
	keep(r *run, h *source.Header, parent int) (keep, retain bool)
	// resolve locates or synthesizes the precursor peak of h in parent.
	resolve(r *run, parent *core.Scan, h *source.Header) core.PeakRef
	// compact reports whether MS1 peak lists are reduced to their children's precursors.
	compact() bool
}

// base visits every scan, keeps everything and links children to their
// declared or most recent lower-level scan.
type base struct{}

func (base) begin(*run, *source.Header) {}

func (base) span(first, last int) (int, int) {
	return first, last
}

func (base) stop(*run, *source.Header) bool {
	return false
}

func (base) parentOf(r *run, h *source.Header) int {
	return declaredOrFallback(r, h)
}

// missingParent replaces a declared parent absent from the file with the most
// recent scan at a lower level.
func (base) missingParent(r *run, h *source.Header, parent int) *core.Scan {
	if n, ok := r.levels.fallback(h.MSLevel); ok && n != parent {
		return r.scans[n]
	}
	return nil
}

func (base) keep(*run, *source.Header, int) (bool, bool) {
	return true, true
}

func (base) resolve(_ *run, parent *core.Scan, h *source.Header) core.PeakRef {
	return resolvePrecursor(parent, h)
}

func (base) compact() bool {
	return true
}

// declaredOrFallback prefers the header's precursor scan and otherwise uses
// the most recent scan at a lower level.
func declaredOrFallback(r *run, h *source.Header) int {
	if h.MSLevel <= 1 {
		return core.NoParent
	}
	if h.HasPrecursorScan() {
		return h.PrecursorScanNumber
	}
	if n, ok := r.levels.fallback(h.MSLevel); ok {
		return n
	}
	return core.NoParent
}

// directInfusion builds a single acquisition in which MS1 peak lists are
// made of the precursors of their MS2 children.
type directInfusion struct {
	base
}

// trappedIonMobility builds files without real MS1 scans by attaching every
// MS2 scan to a synthesized root whose peaks are the merged precursors.
type trappedIonMobility struct {
	base
	root *core.Scan
}

func (t *trappedIonMobility) begin(r *run, _ *source.Header) {
	t.root = newRoot()
	r.scans[RootScanNumber] = t.root
	r.levels.set(1, RootScanNumber)
}

func (t *trappedIonMobility) resolve(_ *run, parent *core.Scan, h *source.Header) core.PeakRef {
	if parent == t.root {
		return mergeRootPrecursor(parent, h)
	}
	return resolvePrecursor(parent, h)
}

// targeted builds the part of an LC-MS/MS run picked out by selectors.
type targeted struct {
	base
	sel         Selectors
	window      int
	children    bool // scan number mode also keeps the scan's direct children
	root        *core.Scan
	parentLevel int
	focusLevel  int
}

func newTargeted(sel Selectors, window int) *targeted {
	return &targeted{sel: sel, window: window}
}

func (t *targeted) begin(r *run, first *source.Header) {
	if first.MSLevel <= 1 {
		return
	}
	t.root = newRoot()
	r.scans[RootScanNumber] = t.root
	r.levels.set(1, RootScanNumber)
}

func (t *targeted) span(first, last int) (int, int) {
	switch {
	case t.sel.ScanNumber != -1 && t.children:
		to := t.sel.ScanNumber + t.window
		if to > last {
			to = last
		}
		return first, to
	case t.sel.ScanNumber != -1:
		return first, t.sel.ScanNumber
	case t.sel.ParentScanNumber != -1:
		to := t.sel.ParentScanNumber + t.window
		if to > last {
			to = last
		}
		return t.sel.ParentScanNumber, to
	}
	return first, last
}

// stop ends a subtree build at the next scan at or above the parent's level.
// With direct children the selected scan plays the parent's part.
func (t *targeted) stop(_ *run, h *source.Header) bool {
	if t.sel.ScanNumber != -1 {
		if !t.children {
			return false
		}
		if h.ScanNumber == t.sel.ScanNumber {
			t.focusLevel = h.MSLevel
			return false
		}
		return t.focusLevel > 0 && h.MSLevel <= t.focusLevel
	}
	if t.sel.ParentScanNumber == -1 {
		return false
	}
	if h.ScanNumber == t.sel.ParentScanNumber {
		t.parentLevel = h.MSLevel
		return false
	}
	return t.parentLevel > 0 && h.MSLevel <= t.parentLevel
}

func (t *targeted) parentOf(r *run, h *source.Header) int {
	n := declaredOrFallback(r, h)
	if n == core.NoParent && h.MSLevel > 1 &&
		t.sel.ParentScanNumber != -1 && h.ScanNumber != t.sel.ParentScanNumber {
		return t.sel.ParentScanNumber
	}
	return n
}

// missingParent loads a header-only stub for a parent outside the visited
// range, falling back to the synthesized root.
func (t *targeted) missingParent(r *run, _ *source.Header, parent int) *core.Scan {
	h, err := r.b.src.Header(parent)
	if err == nil {
		stub := scanFromHeader(h)
		r.scans[parent] = stub
		return stub
	}
	if t.root != nil {
		return t.root
	}
	return nil
}

func (t *targeted) keep(r *run, h *source.Header, parent int) (bool, bool) {
	switch {
	case t.sel.ScanNumber != -1:
		if h.ScanNumber == t.sel.ScanNumber {
			return true, true
		}
		return t.children && parent == t.sel.ScanNumber, true
	case t.sel.ParentScanNumber != -1:
		return h.ScanNumber == t.sel.ParentScanNumber || r.selected[parent], true
	}
	return h.MSLevel == t.sel.MSLevel, false
}

func (t *targeted) compact() bool {
	return t.sel.ScanNumber == -1 && t.sel.ParentScanNumber != -1
}

// subtree follows an explicit child map from a single parent.
type subtree struct {
	base
	parents map[int]int
}

func (s *subtree) parentOf(_ *run, h *source.Header) int {
	if p, ok := s.parents[h.ScanNumber]; ok {
		return p
	}
	return core.NoParent
}
