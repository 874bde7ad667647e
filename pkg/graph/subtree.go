package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/ChrisMcGann/MSTree/pkg/core"
	"github.com/ChrisMcGann/MSTree/pkg/source"
)

// BuildSubtree builds the subtree of parent by following an explicit child
// map such as the one returned by source.SubScanMap. Without a map it falls
// back to an LC-MS/MS build selected by parent.
func (b *Builder) BuildSubtree(ctx context.Context, parent int, subScans map[int][]int) ([]*core.Scan, error) {
	if len(subScans) == 0 {
		sel := NoSelectors()
		sel.ParentScanNumber = parent
		return b.Build(ctx, LcMsMs, sel)
	}

	if _, err := b.src.Header(parent); err != nil {
		b.sink.OnWarning(fmt.Sprintf("Parent scan %d could not be read: %v", parent, err))
		return []*core.Scan{}, nil
	}

	r := newRun(ctx, b)
	s := &subtree{parents: map[int]int{parent: core.NoParent}}
	last := b.src.MaxScanNumber()

	queue := []int{parent}
	seen := map[int]bool{parent: true}
	for len(queue) > 0 {
		if ctx.Err() != nil {
			return []*core.Scan{}, nil
		}
		n := queue[0]
		queue = queue[1:]
		b.progress(n, last)

		h, err := b.src.Header(n)
		if err != nil {
			if errors.Is(err, source.ErrScanNotFound) {
				r.missing = append(r.missing, n)
			}
			r.fail(n, err)
			continue
		}
		if !r.visit(s, h) {
			return []*core.Scan{}, nil
		}
		if _, ok := r.scans[n]; !ok {
			continue
		}

		for _, c := range subScans[n] {
			if seen[c] {
				continue
			}
			seen[c] = true
			s.parents[c] = n
			queue = append(queue, c)
		}
	}

	scans := r.finish(s)
	if len(scans) == 0 {
		b.sink.OnWarning("No scan data read from MS file. The file may be invalid or of the wrong type.")
	}
	return scans, nil
}

// buildProfile returns the single scan named by the selectors with its full
// peak list.
func (b *Builder) buildProfile(ctx context.Context, sel Selectors) ([]*core.Scan, error) {
	n := sel.ScanNumber
	if n == -1 {
		n = sel.ParentScanNumber
	}
	if n == -1 {
		return nil, ErrNoSelector
	}

	h, err := b.src.Header(n)
	if err != nil {
		b.sink.OnWarning(fmt.Sprintf("Scan %d could not be read: %v", n, err))
		return []*core.Scan{}, nil
	}
	scan := scanFromHeader(h)
	if b.headersOnly {
		return []*core.Scan{scan}, nil
	}

	mz, intensity, err := b.src.Spectrum(n)
	if err != nil {
		b.sink.OnWarning(fmt.Sprintf("Scan %d could not be read: %v", n, err))
		return []*core.Scan{}, nil
	}
	if !ingest(ctx, scan, mz, intensity, true) {
		return []*core.Scan{}, nil
	}
	if len(scan.Peaks) == 0 {
		b.sink.OnWarning(fmt.Sprintf("Scan %d has no peaks", n))
		return []*core.Scan{}, nil
	}
	return []*core.Scan{scan}, nil
}
