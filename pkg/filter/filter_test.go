package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/MSTree/pkg/core"
)

func mzs(scan *core.Scan) []float64 {
	out := make([]float64, len(scan.Peaks))
	for i, p := range scan.Peaks {
		out[i] = p.MZ
	}
	return out
}

func sampleScan() *core.Scan {
	scan := core.NewScan(1, 1)
	scan.Peaks = []core.Peak{
		{ID: 1, MZ: 300, Intensity: 5},
		{ID: 2, MZ: 100, Intensity: 100},
		{ID: 3, MZ: 200, Intensity: 50},
		{ID: 4, MZ: 400, Intensity: 2, IsPrecursor: true},
		{ID: 5, MZ: 150, Intensity: 20},
	}
	return scan
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   []float64
	}{
		{"no filter sorts", Config{}, []float64{100, 150, 200, 300, 400}},
		{"percentage cutoff", Config{Cutoff: 10}, []float64{100, 150, 200, 400}},
		{"absolute cutoff", Config{Cutoff: 30, CutoffType: Absolute}, []float64{100, 200, 400}},
		{"top n keeps precursors", Config{TopN: 2}, []float64{100, 200, 400}},
		{"cutoff and top n", Config{Cutoff: 10, TopN: 1}, []float64{100, 400}},
		{"precursor cutoff", Config{PrecursorCutoff: 3, PrecursorCutoffType: Absolute}, []float64{100, 150, 200, 300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scan := sampleScan()
			tt.config.Apply(scan)
			assert.Equal(t, tt.want, mzs(scan))
			assert.True(t, scan.ArePeaksSorted())
		})
	}
}

func TestApplyRemap(t *testing.T) {
	scan := sampleScan()
	cfg := Config{Cutoff: 10}
	remap := cfg.Apply(scan)

	// 300 dropped, others reordered by m/z
	assert.Equal(t, []int{-1, 0, 2, 3, 1}, remap)
	assert.Equal(t, 4, scan.Peaks[remap[3]].ID)
}

func TestApplyAll(t *testing.T) {
	parent := sampleScan()
	parent.Peaks[2].IsPrecursor = true // 200, intensity 50
	parent.Children = []int{2, 3}

	keptChild := core.NewScan(2, 2)
	keptChild.ParentScanNumber = 1
	keptChild.Precursor = &core.PeakRef{ScanNumber: 1, Index: 2}
	keptChild.Children = []int{4}

	droppedChild := core.NewScan(3, 2)
	droppedChild.ParentScanNumber = 1
	droppedChild.Precursor = &core.PeakRef{ScanNumber: 1, Index: 3}
	droppedChild.Children = []int{5}
	droppedChild.Peaks = []core.Peak{{ID: 1, MZ: 90, Intensity: 1, IsPrecursor: true}}

	grandchild := core.NewScan(4, 3)
	grandchild.ParentScanNumber = 2
	orphan := core.NewScan(5, 3)
	orphan.ParentScanNumber = 3
	orphan.Precursor = &core.PeakRef{ScanNumber: 3, Index: 0}

	cfg := Config{PrecursorCutoff: 10, PrecursorCutoffType: Percentage}
	kept := cfg.ApplyAll([]*core.Scan{parent, keptChild, droppedChild, grandchild, orphan})

	nums := make([]int, len(kept))
	for i, s := range kept {
		nums[i] = s.ScanNumber
	}
	assert.Equal(t, []int{1, 2, 4}, nums)
	assert.Equal(t, []int{2}, parent.Children)

	peak, ok := keptChild.PrecursorPeak(core.IndexScans(kept))
	require.True(t, ok)
	assert.Equal(t, 200.0, peak.MZ)
}

func TestRemoveZeroIntensityPeaks(t *testing.T) {
	scan := core.NewScan(1, 1)
	scan.Peaks = []core.Peak{{MZ: 2, Intensity: 1}, {MZ: 1, Intensity: 0}, {MZ: 3, Intensity: -1}}
	remap := RemoveZeroIntensityPeaks(scan)
	assert.Equal(t, []float64{2}, mzs(scan))
	assert.Equal(t, []int{0, -1, -1}, remap)
}

func TestParseCutoffType(t *testing.T) {
	typ, err := ParseCutoffType("Absolute")
	require.NoError(t, err)
	assert.Equal(t, Absolute, typ)

	typ, err = ParseCutoffType("%")
	require.NoError(t, err)
	assert.Equal(t, Percentage, typ)

	_, err = ParseCutoffType("relative")
	assert.Error(t, err)

	assert.True(t, (&Config{TopN: 3}).Enabled())
	assert.False(t, (&Config{}).Enabled())
}
