package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanValidation(t *testing.T) {
	tests := []struct {
		name    string
		scan    *Scan
		wantErr bool
	}{
		{
			name: "valid scan",
			scan: &Scan{
				ScanNumber:       3,
				MSLevel:          2,
				ParentScanNumber: 1,
				Peaks: []Peak{
					{MZ: 100.0, Intensity: 1000.0},
					{MZ: 200.0, Intensity: 2000.0},
				},
			},
			wantErr: false,
		},
		{
			name:    "negative scan number",
			scan:    &Scan{ScanNumber: -2, MSLevel: 1, ParentScanNumber: NoParent},
			wantErr: true,
		},
		{
			name:    "zero ms level",
			scan:    &Scan{ScanNumber: 1, MSLevel: 0, ParentScanNumber: NoParent},
			wantErr: true,
		},
		{
			name:    "self parent",
			scan:    &Scan{ScanNumber: 4, MSLevel: 2, ParentScanNumber: 4},
			wantErr: true,
		},
		{
			name: "zero intensity peak",
			scan: &Scan{
				ScanNumber:       1,
				MSLevel:          1,
				ParentScanNumber: NoParent,
				Peaks:            []Peak{{MZ: 100.0, Intensity: 0}},
			},
			wantErr: true,
		},
		{
			name: "NaN m/z",
			scan: &Scan{
				ScanNumber:       1,
				MSLevel:          1,
				ParentScanNumber: NoParent,
				Peaks:            []Peak{{MZ: math.NaN(), Intensity: 10}},
			},
			wantErr: true,
		},
		{
			name: "unsorted peaks",
			scan: &Scan{
				ScanNumber:       2,
				MSLevel:          1,
				ParentScanNumber: NoParent,
				Peaks: []Peak{
					{MZ: 300.0, Intensity: 10},
					{MZ: 200.0, Intensity: 20},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scan.Validate()
			if tt.wantErr {
				require.Error(t, err)
				var vErr *ValidationError
				assert.ErrorAs(t, err, &vErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSortPeaksRemap(t *testing.T) {
	scan := NewScan(1, 1)
	scan.Peaks = []Peak{
		{ID: 1, MZ: 300.0, Intensity: 3},
		{ID: 2, MZ: 100.0, Intensity: 1},
		{ID: 3, MZ: 200.0, Intensity: 2},
	}

	assert.False(t, scan.ArePeaksSorted())
	remap := scan.SortPeaks()
	assert.True(t, scan.ArePeaksSorted())

	// remap[old] = new
	assert.Equal(t, []int{2, 0, 1}, remap)
	assert.Equal(t, 300.0, scan.Peaks[remap[0]].MZ)
}

func TestSortScansIdempotent(t *testing.T) {
	scans := []*Scan{NewScan(5, 2), NewScan(1, 1), NewScan(3, 2)}

	SortScans(scans)
	first := []int{scans[0].ScanNumber, scans[1].ScanNumber, scans[2].ScanNumber}
	assert.Equal(t, []int{1, 3, 5}, first)

	SortScans(scans)
	second := []int{scans[0].ScanNumber, scans[1].ScanNumber, scans[2].ScanNumber}
	assert.Equal(t, first, second)
}

func TestPrecursorPeak(t *testing.T) {
	parent := NewScan(1, 1)
	parent.Peaks = []Peak{{ID: 1, MZ: 500.0, Intensity: 10}}
	child := NewScan(2, 2)
	child.ParentScanNumber = 1
	child.Precursor = &PeakRef{ScanNumber: 1, Index: 0}

	scans := IndexScans([]*Scan{parent, child})
	peak, ok := child.PrecursorPeak(scans)
	require.True(t, ok)
	assert.Equal(t, 500.0, peak.MZ)

	_, ok = parent.PrecursorPeak(scans)
	assert.False(t, ok)

	child.Precursor.Index = 7
	_, ok = child.PrecursorPeak(scans)
	assert.False(t, ok)
}

func TestAddChildOnce(t *testing.T) {
	s := NewScan(1, 1)
	s.AddChild(2)
	s.AddChild(2)
	s.AddChild(3)
	assert.Equal(t, []int{2, 3}, s.Children)
}

func TestPolarityString(t *testing.T) {
	pos, neg := true, false
	s := NewScan(1, 1)
	assert.Equal(t, "", s.PolarityString())
	s.Polarity = &pos
	assert.Equal(t, "+", s.PolarityString())
	s.Polarity = &neg
	assert.Equal(t, "-", s.PolarityString())
}

func TestScanViewWalk(t *testing.T) {
	root := &ScanView{ScanNumber: 1, Children: []*ScanView{
		{ScanNumber: 2, Children: []*ScanView{{ScanNumber: 3}}},
		{ScanNumber: 4},
	}}

	var visited []int
	var depths []int
	root.Walk(func(v *ScanView, depth int) {
		visited = append(visited, v.ScanNumber)
		depths = append(depths, depth)
	})
	assert.Equal(t, []int{1, 2, 3, 4}, visited)
	assert.Equal(t, []int{0, 1, 2, 1}, depths)
	assert.Equal(t, 4, root.Count())
}
