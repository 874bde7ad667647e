package quant

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/ChrisMcGann/MSTree/pkg/core"
	"github.com/ChrisMcGann/MSTree/pkg/graph"
	"github.com/ChrisMcGann/MSTree/pkg/reader/mzxml"
	"github.com/ChrisMcGann/MSTree/pkg/source"
)

var _ Reader = (*FullMSReader)(nil)

// FullMSReader quantifies reference precursor peaks against one full MS scan
// of an mzXML file.
type FullMSReader struct {
	// PrecursorPeaks are the reference peaks. Only peaks flagged as
	// precursors are matched.
	PrecursorPeaks []core.Peak
	// Selectors pick the target scan: scan number, else parent scan number,
	// else the first MS1 scan with peaks.
	Selectors graph.Selectors

	GraphOptions []graph.Option
	Logger       zerolog.Logger
}

// NewFullMSReader creates a full MS reader.
func NewFullMSReader(precursors []core.Peak, sel graph.Selectors) *FullMSReader {
	return &FullMSReader{
		PrecursorPeaks: precursors,
		Selectors:      sel,
		Logger:         zerolog.Nop(),
	}
}

// Read implements Reader.
func (r *FullMSReader) Read(ctx context.Context, path string, ppm bool, interval float64) (*QuantPeakData, error) {
	file, err := mzxml.Open(path)
	if err != nil {
		r.Logger.Error().Err(err).Str("file", path).Msg("could not read full MS file")
		return NewQuantPeakData(), err
	}
	return r.ReadSource(ctx, file, ppm, interval)
}

// ReadSource quantifies against a scan of src.
func (r *FullMSReader) ReadSource(ctx context.Context, src source.Source, ppm bool, interval float64) (*QuantPeakData, error) {
	data := NewQuantPeakData()

	scan, err := r.targetScan(ctx, graph.NewBuilder(src, r.GraphOptions...))
	if err != nil {
		r.Logger.Error().Err(err).Msg("could not read target scan")
		return data, err
	}

	data.MaxIntensity = scan.MostAbundantPeak
	if err := setHeader(data, scan); err != nil {
		r.Logger.Error().Err(err).Int("scan", scan.ScanNumber).Msg("invalid scan header")
		return data, err
	}

	for _, p := range r.PrecursorPeaks {
		if !p.IsPrecursor {
			continue
		}
		qp := &QuantPeak{MZ: p.MZ}
		if p.PrecursorCharge > 0 {
			qp.MassMonoisotopic = core.NeutralMass(p.MZ, p.PrecursorCharge)
		}
		tol := ComputeTolerance(p.MZ, interval, ppm)
		if m := FindMatch(qp, p.MZ, scan.Peaks, tol); m != nil {
			qp.Add(m)
			data.Add(qp)
		}
	}

	r.Logger.Debug().
		Int("scan", data.ScanNumber).
		Int("matched", len(data.Peaks)).
		Int("reference", len(r.PrecursorPeaks)).
		Msg("full MS quantitation finished")
	return data, nil
}

// IsValid reports whether path is an mzXML file with at least one MS1 scan.
func (r *FullMSReader) IsValid(path string) bool {
	file, err := mzxml.Open(path)
	if err != nil {
		return false
	}
	return source.HasMS1Scan(file)
}

func (r *FullMSReader) targetScan(ctx context.Context, b *graph.Builder) (*core.Scan, error) {
	n := r.Selectors.ScanNumber
	if n == -1 {
		n = r.Selectors.ParentScanNumber
	}
	if n == -1 {
		return b.FirstMS1Scan(ctx)
	}

	sel := graph.NoSelectors()
	sel.ScanNumber = n
	scans, err := b.Build(ctx, graph.MsProfile, sel)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(scans) == 0 {
		return nil, fmt.Errorf("scan %d: %w", n, source.ErrScanNotFound)
	}
	return scans[0], nil
}

func setHeader(data *QuantPeakData, scan *core.Scan) error {
	if scan.ScanNumber < 0 {
		return &InvalidFormatError{Msg: fmt.Sprintf("invalid scan number: %d", scan.ScanNumber)}
	}
	data.ScanNumber = scan.ScanNumber

	if math.IsNaN(scan.RetentionTime) || math.IsInf(scan.RetentionTime, 0) {
		return &InvalidFormatError{Msg: fmt.Sprintf("invalid retention time: %v", scan.RetentionTime)}
	}
	data.RetentionTime = scan.RetentionTime
	return nil
}
