package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/ChrisMcGann/MSTree/pkg/core"
	"github.com/ChrisMcGann/MSTree/pkg/source"
)

// run holds the state of a single build.
type run struct {
	b        *Builder
	ctx      context.Context
	scans    map[int]*core.Scan
	levels   levelTable
	selected map[int]bool
	skipped  []int // scans whose parent could not be found
	missing  []int // listed children absent from the source
	errs     *multierror.Error
}

func newRun(ctx context.Context, b *Builder) *run {
	return &run{
		b:        b,
		ctx:      ctx,
		scans:    make(map[int]*core.Scan),
		levels:   make(levelTable),
		selected: make(map[int]bool),
	}
}

// levelTable maps an MS level to the most recent scan seen at that level.
type levelTable map[int]int

func (l levelTable) set(level, scanNumber int) {
	l[level] = scanNumber
}

// fallback returns the most recent scan below level, descending until a
// level with a recorded scan is found.
func (l levelTable) fallback(level int) (int, bool) {
	for p := level - 1; p >= 1; p-- {
		if n, ok := l[p]; ok {
			return n, true
		}
	}
	return core.NoParent, false
}

// traverse visits the scans in the strategy's span in order.
func (b *Builder) traverse(ctx context.Context, s strategy) ([]*core.Scan, error) {
	first := b.firstScan()
	if first == -1 {
		return []*core.Scan{}, nil
	}
	last := b.src.MaxScanNumber()

	h, err := b.src.Header(first)
	if err != nil {
		return nil, fmt.Errorf("failed to read first scan: %w", err)
	}

	r := newRun(ctx, b)
	s.begin(r, h)

	from, to := s.span(first, last)
	for i := from; i <= to; i++ {
		if ctx.Err() != nil {
			return []*core.Scan{}, nil
		}
		b.progress(i, last)

		h, err := b.src.Header(i)
		if err != nil {
			r.fail(i, err)
			continue
		}
		if s.stop(r, h) {
			break
		}
		if !r.visit(s, h) {
			return []*core.Scan{}, nil
		}
	}

	return r.finish(s), nil
}

// visit links one scan into the graph. It returns false if the build was
// cancelled while ingesting peaks.
func (r *run) visit(s strategy, h *source.Header) bool {
	parentNum := s.parentOf(r, h)

	var parent *core.Scan
	if parentNum != core.NoParent {
		parent = r.scans[parentNum]
		if parent == nil {
			parent = s.missingParent(r, h, parentNum)
		}
		if parent == nil {
			r.b.logger.Debug().
				Int("scan", h.ScanNumber).
				Int("parent", parentNum).
				Msg("parent scan not found, skipping")
			r.skipped = append(r.skipped, h.ScanNumber)
			return true
		}
	}

	keep, retain := s.keep(r, h, parentNum)
	scan := scanFromHeader(h)
	if keep && !r.b.headersOnly {
		mz, intensity, err := r.b.src.Spectrum(h.ScanNumber)
		if err != nil {
			r.fail(h.ScanNumber, err)
			return true
		}
		if !ingest(r.ctx, scan, mz, intensity, retain) {
			return false
		}
	}

	if parent != nil {
		scan.MSLevel = parent.MSLevel + 1
		scan.ParentScanNumber = parent.ScanNumber
		ref := s.resolve(r, parent, h)
		scan.Precursor = &ref
		parent.AddChild(scan.ScanNumber)
	}

	r.levels.set(h.MSLevel, h.ScanNumber)
	r.scans[h.ScanNumber] = scan
	if keep {
		r.selected[h.ScanNumber] = true
	}
	return true
}

// fail records a per-scan read error. Gaps in scan numbering are not errors.
func (r *run) fail(scanNumber int, err error) {
	if errors.Is(err, source.ErrScanNotFound) {
		r.b.logger.Debug().Int("scan", scanNumber).Msg("scan not in file")
		return
	}
	r.b.logger.Debug().Err(err).Int("scan", scanNumber).Msg("failed to read scan")
	r.errs = multierror.Append(r.errs, fmt.Errorf("scan %d: %w", scanNumber, err))
}

// finish closes the selection under parent links and normalizes peak lists.
func (r *run) finish(s strategy) []*core.Scan {
	result := r.closure()
	index := core.IndexScans(result)
	refs := referencing(result)

	if s.compact() {
		compactLevelOne(result, refs)
	}
	dropUnreferenced(result, refs)
	backfill(result, index)
	sortPeakLists(result, refs)
	if root, ok := index[RootScanNumber]; ok {
		summarizeRoot(root, index)
	}

	core.SortScans(result)
	r.report()
	return result
}

// closure returns the selected scans plus all their ancestors. Child lists
// are trimmed to scans in the result.
func (r *run) closure() []*core.Scan {
	in := make(map[int]bool, len(r.selected))
	for n := range r.selected {
		cur := n
		for !in[cur] {
			scan, ok := r.scans[cur]
			if !ok {
				break
			}
			in[cur] = true
			if !scan.HasParent() {
				break
			}
			cur = scan.ParentScanNumber
		}
	}

	result := make([]*core.Scan, 0, len(in))
	for n := range in {
		result = append(result, r.scans[n])
	}
	for _, scan := range result {
		children := make([]int, 0, len(scan.Children))
		for _, c := range scan.Children {
			if in[c] {
				children = append(children, c)
			}
		}
		scan.Children = children
	}
	return result
}

func (r *run) report() {
	if len(r.skipped) > 0 {
		r.b.sink.OnWarning(fmt.Sprintf(
			"Some scans were skipped because their parent scans are not in the file. Skipped scans: %s",
			joinInts(r.skipped)))
	}
	if len(r.missing) > 0 {
		r.b.sink.OnWarning(fmt.Sprintf(
			"Some child scans are not in the file. Missing scans: %s", joinInts(r.missing)))
	}
	if r.errs != nil {
		r.errs.ErrorFormat = func(errs []error) string {
			msgs := make([]string, len(errs))
			for i, err := range errs {
				msgs[i] = err.Error()
			}
			return strings.Join(msgs, "; ")
		}
		r.b.sink.OnWarning(fmt.Sprintf("%d scans could not be read: %v", len(r.errs.Errors), r.errs))
	}
}

func joinInts(nums []int) string {
	sorted := append([]int(nil), nums...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
