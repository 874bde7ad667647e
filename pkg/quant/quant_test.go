package quant

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/MSTree/pkg/core"
	"github.com/ChrisMcGann/MSTree/pkg/graph"
	"github.com/ChrisMcGann/MSTree/pkg/source"
)

func spectrum() []core.Peak {
	return []core.Peak{
		{MZ: 499.90, Intensity: 10},
		{MZ: 500.08, Intensity: 50},
		{MZ: 500.11, Intensity: 80},
		{MZ: 500.40, Intensity: 5},
	}
}

func TestComputeTolerance(t *testing.T) {
	tests := []struct {
		name     string
		mz       float64
		interval float64
		ppm      bool
		want     float64
	}{
		{"ppm", 500, 20, true, 0.01},
		{"absolute", 500, 0.05, false, 0.05},
		{"ppm scales with mz", 1000, 10, true, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ComputeTolerance(tt.mz, tt.interval, tt.ppm), 1e-12)
		})
	}
}

func TestComputeBounds(t *testing.T) {
	low, high := ComputeBounds(500, 20, true)
	assert.InDelta(t, 499.99, low, 1e-9)
	assert.InDelta(t, 500.01, high, 1e-9)

	m := NewQuantPeakMatch(&QuantPeak{})
	m.MZMostAbundant = 300
	m.SetBounds(0.5, false)
	assert.Equal(t, 299.5, m.MinMZ)
	assert.Equal(t, 300.5, m.MaxMZ)
}

func TestFindMatch(t *testing.T) {
	qp := &QuantPeak{MZ: 500.10}
	m := FindMatch(qp, 500.10, spectrum(), 0.05)
	require.NotNil(t, m)

	assert.Equal(t, 500.11, m.MZMostAbundant)
	assert.Equal(t, 80.0, m.IntensitySum)
	assert.Equal(t, 130.0, qp.SumIntensity)
	assert.InDelta(t, 500.03, m.MinMZ, 1e-9)
	assert.InDelta(t, 500.16, m.MaxMZ, 1e-9)
	assert.Equal(t, -1, m.Charge)
	assert.Same(t, qp, m.Peak)
}

func TestFindMatchNoMatch(t *testing.T) {
	tests := []struct {
		name   string
		target float64
		peaks  []core.Peak
	}{
		{"outside tolerance", 501.00, spectrum()},
		{"empty spectrum", 500.10, nil},
		{"only zero intensity", 500.10, []core.Peak{{MZ: 500.10}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qp := &QuantPeak{MZ: tt.target}
			assert.Nil(t, FindMatch(qp, tt.target, tt.peaks, 0.05))
			assert.Zero(t, qp.SumIntensity)
		})
	}
}

func TestAllMatchesSortedByMinMZ(t *testing.T) {
	data := NewQuantPeakData()
	assert.Equal(t, -1, data.ScanNumber)
	assert.Empty(t, data.AllMatches())

	a := &QuantPeak{MZ: 700}
	a.Add(&QuantPeakMatch{MinMZ: 699.5, Peak: a})
	b := &QuantPeak{MZ: 300}
	b.Add(&QuantPeakMatch{MinMZ: 299.5, Peak: b})
	b.Add(&QuantPeakMatch{MinMZ: 450.0, Peak: b})
	data.Add(a)
	data.Add(b)

	var mins []float64
	for _, m := range data.AllMatches() {
		mins = append(mins, m.MinMZ)
	}
	assert.Equal(t, []float64{299.5, 450.0, 699.5}, mins)
}

func fullMSSource(rt float64) *source.Memory {
	ms1 := source.NewHeader(1, 1)
	ms1.RetentionTime = rt
	ms2 := source.NewHeader(2, 2)
	ms2.PrecursorScanNumber = 1
	ms2.PrecursorMZ = 500.1

	return source.NewMemory(
		source.Record{
			Header:    ms1,
			MZ:        []float64{499.90, 500.08, 500.11, 500.40, 650.0},
			Intensity: []float64{10, 50, 80, 5, 40},
		},
		source.Record{
			Header:    ms2,
			MZ:        []float64{650.0},
			Intensity: []float64{7},
		},
	)
}

func referencePeaks() []core.Peak {
	return []core.Peak{
		{MZ: 500.10, IsPrecursor: true, PrecursorCharge: 2},
		{MZ: 501.00, IsPrecursor: true},
		{MZ: 650.00},
	}
}

func TestFullMSReader(t *testing.T) {
	r := NewFullMSReader(referencePeaks(), graph.NoSelectors())
	data, err := r.ReadSource(context.Background(), fullMSSource(12), false, 0.05)
	require.NoError(t, err)

	assert.Equal(t, 1, data.ScanNumber)
	assert.Equal(t, 12.0, data.RetentionTime)
	assert.Equal(t, 80.0, data.MaxIntensity)
	require.Len(t, data.Peaks, 1, "unmatched and non-precursor peaks are not reported")

	qp := data.Peaks[0]
	assert.Equal(t, 500.10, qp.MZ)
	assert.Equal(t, 130.0, qp.SumIntensity)
	assert.InDelta(t, core.NeutralMass(500.10, 2), qp.MassMonoisotopic, 1e-9)
	require.Len(t, qp.Matches, 1)
	assert.Equal(t, 500.11, qp.Matches[0].MZMostAbundant)
}

func TestFullMSReaderTargetScan(t *testing.T) {
	sel := graph.NoSelectors()
	sel.ScanNumber = 2
	r := NewFullMSReader([]core.Peak{{MZ: 650.0, IsPrecursor: true}}, sel)

	data, err := r.ReadSource(context.Background(), fullMSSource(12), true, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, data.ScanNumber)
	require.Len(t, data.Peaks, 1)
	assert.Equal(t, 7.0, data.Peaks[0].SumIntensity)
}

func TestFullMSReaderErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing scan", func(t *testing.T) {
		sel := graph.NoSelectors()
		sel.ScanNumber = 9
		data, err := NewFullMSReader(referencePeaks(), sel).ReadSource(ctx, fullMSSource(12), false, 0.05)
		assert.ErrorIs(t, err, source.ErrScanNotFound)
		require.NotNil(t, data)
		assert.Equal(t, -1, data.ScanNumber)
	})

	t.Run("invalid retention time", func(t *testing.T) {
		data, err := NewFullMSReader(referencePeaks(), graph.NoSelectors()).
			ReadSource(ctx, fullMSSource(math.NaN()), false, 0.05)
		var formatErr *InvalidFormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Contains(t, formatErr.Error(), "retention time")
		assert.Equal(t, 1, data.ScanNumber, "fields read before the failure are kept")
		assert.Empty(t, data.Peaks)
	})

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.mzXML")
		r := NewFullMSReader(referencePeaks(), graph.NoSelectors())
		data, err := r.Read(ctx, path, false, 0.05)
		assert.Error(t, err)
		assert.NotNil(t, data)
		assert.False(t, r.IsValid(path))
	})
}
