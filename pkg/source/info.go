package source

import "context"

// FirstScanNumber returns the first scan number, probing from 1 upward, whose
// spectrum can be read. It returns -1 if there is none.
func FirstScanNumber(src Source) int {
	last := src.MaxScanNumber()
	for i := 1; i <= last; i++ {
		if _, _, err := src.Spectrum(i); err == nil {
			return i
		}
	}
	return -1
}

// MinMSLevel returns the lowest MS level of any readable scan, or -1 if the
// source has no readable scans.
func MinMSLevel(src Source) int {
	start := FirstScanNumber(src)
	if start == -1 {
		return -1
	}
	lowest := -1
	for i := start; i <= src.MaxScanNumber(); i++ {
		h, err := src.Header(i)
		if err != nil {
			continue
		}
		if lowest == -1 || h.MSLevel < lowest {
			lowest = h.MSLevel
		}
	}
	return lowest
}

// CountScans returns the number of scans at the given MS level.
func CountScans(src Source, msLevel int) int {
	start := FirstScanNumber(src)
	if start == -1 {
		return 0
	}
	n := 0
	for i := start; i <= src.MaxScanNumber(); i++ {
		h, err := src.Header(i)
		if err != nil {
			continue
		}
		if h.ScanNumber > 0 && h.MSLevel == msLevel {
			n++
		}
	}
	return n
}

// HasMS1Scan reports whether the source holds an MS1 scan with peaks.
func HasMS1Scan(src Source) bool {
	for i := 1; i <= src.MaxScanNumber(); i++ {
		h, err := src.Header(i)
		if err != nil || h.MSLevel != 1 {
			continue
		}
		mz, _, err := src.Spectrum(i)
		if err == nil && len(mz) > 0 {
			return true
		}
	}
	return false
}

// ScanList lists scan numbers for hierarchy browsing. With parent < 0 it
// returns every scan at the lowest MS level. Otherwise it returns the scans
// one level deeper than parent that follow it, up to the next scan at or
// below the parent's level.
func ScanList(ctx context.Context, src Source, parent int) ([]int, error) {
	start := FirstScanNumber(src)
	if start == -1 {
		return []int{}, nil
	}

	minLevel := -1
	if parent < 0 {
		minLevel = MinMSLevel(src)
	}

	scans := []int{}
	found := false
	parentLevel := -1
	for i := start; i <= src.MaxScanNumber(); i++ {
		if err := ctx.Err(); err != nil {
			return []int{}, err
		}
		h, err := src.Header(i)
		if err != nil {
			continue
		}
		if parent < 0 {
			if h.MSLevel == minLevel {
				scans = append(scans, i)
			}
			continue
		}
		if !found {
			if h.ScanNumber == parent {
				found = true
				parentLevel = h.MSLevel
			}
			continue
		}
		if h.MSLevel <= parentLevel {
			break
		}
		if h.MSLevel == parentLevel+1 {
			scans = append(scans, i)
		}
	}
	return scans, nil
}

// SubScanMap maps every readable scan to the scans declaring it as their
// precursor scan.
func SubScanMap(ctx context.Context, src Source) (map[int][]int, error) {
	subScans := make(map[int][]int)
	start := FirstScanNumber(src)
	if start == -1 {
		return subScans, nil
	}
	for i := start; i <= src.MaxScanNumber(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := src.Header(i)
		if err != nil {
			continue
		}
		if _, ok := subScans[i]; !ok {
			subScans[i] = []int{}
		}
		if h.MSLevel > 1 && h.HasPrecursorScan() {
			subScans[h.PrecursorScanNumber] = append(subScans[h.PrecursorScanNumber], i)
		}
	}
	return subScans, nil
}
