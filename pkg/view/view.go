// Package view builds lightweight scan trees for browsing a file's scan
// hierarchy without decoding any spectra.
package view

import (
	"context"

	"github.com/ChrisMcGann/MSTree/pkg/core"
	"github.com/ChrisMcGann/MSTree/pkg/graph"
	"github.com/ChrisMcGann/MSTree/pkg/source"
)

// Builder builds ScanView trees from a source.
type Builder struct {
	src  source.Source
	opts []graph.Option
}

// NewBuilder creates a view builder. Options are passed to the underlying
// graph builder.
func NewBuilder(src source.Source, opts ...graph.Option) *Builder {
	return &Builder{src: src, opts: opts}
}

// Build returns the root views of the hierarchy, sorted by scan number. An
// LC-MS/MS scan number selector yields that scan with its direct children,
// under its ancestors.
func (b *Builder) Build(ctx context.Context, topology graph.Topology, sel graph.Selectors) ([]*core.ScanView, error) {
	opts := append(append([]graph.Option(nil), b.opts...), graph.WithHeadersOnly(), graph.WithDirectChildren())

	scans, err := graph.NewBuilder(b.src, opts...).Build(ctx, topology, sel)
	if err != nil {
		return nil, err
	}
	return Project(scans), nil
}

// Project converts a build result into view trees and returns the roots.
// Scans whose parent is not in scans become roots.
func Project(scans []*core.Scan) []*core.ScanView {
	nodes := make(map[int]*core.ScanView, len(scans))
	for _, s := range scans {
		nodes[s.ScanNumber] = &core.ScanView{
			ScanNumber:         s.ScanNumber,
			RetentionTime:      s.RetentionTime,
			MSLevel:            s.MSLevel,
			PrecursorMZ:        s.PrecursorMZ,
			PrecursorIntensity: s.PrecursorIntensity,
			ParentScanNumber:   s.ParentScanNumber,
		}
	}

	sorted := append([]*core.Scan(nil), scans...)
	core.SortScans(sorted)

	roots := []*core.ScanView{}
	for _, s := range sorted {
		v := nodes[s.ScanNumber]
		if parent, ok := nodes[s.ParentScanNumber]; ok && s.HasParent() {
			parent.Children = append(parent.Children, v)
			continue
		}
		roots = append(roots, v)
	}
	return roots
}
