package quant

import (
	"math"

	"github.com/ChrisMcGann/MSTree/pkg/core"
)

// topPeakWindow is the m/z distance from the closest peak within which the
// most intense peak is taken as the match.
const topPeakWindow = 0.05

// FindMatch matches targetMZ against peaks. The closest peak within tol is
// located first, then the most intense peak within topPeakWindow of it, and
// finally all peaks within tol of that top peak are summed. The sum is stored
// on qp; the returned match carries the top peak's intensity and bounds
// widened by tol. It returns nil when nothing matches.
func FindMatch(qp *QuantPeak, targetMZ float64, peaks []core.Peak, tol float64) *QuantPeakMatch {
	closest := -1
	minDelta := math.MaxFloat64
	for i := range peaks {
		d := math.Abs(peaks[i].MZ - targetMZ)
		if d < tol && d < minDelta {
			closest, minDelta = i, d
		}
	}
	if closest < 0 {
		return nil
	}

	top := -1
	maxInt := 0.0
	for i := range peaks {
		d := math.Abs(peaks[i].MZ - peaks[closest].MZ)
		if d < topPeakWindow && peaks[i].Intensity > maxInt {
			top, maxInt = i, peaks[i].Intensity
		}
	}
	if top < 0 {
		return nil
	}

	sum := 0.0
	minMZ, maxMZ := math.MaxFloat64, -math.MaxFloat64
	for i := range peaks {
		if math.Abs(peaks[i].MZ-peaks[top].MZ) >= tol {
			continue
		}
		sum += peaks[i].Intensity
		minMZ = math.Min(minMZ, peaks[i].MZ)
		maxMZ = math.Max(maxMZ, peaks[i].MZ)
	}

	qp.SumIntensity = sum
	m := NewQuantPeakMatch(qp)
	m.MZMostAbundant = peaks[top].MZ
	m.IntensitySum = peaks[top].Intensity
	m.MinMZ = minMZ - tol
	m.MaxMZ = maxMZ + tol
	return m
}
