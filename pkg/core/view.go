package core

// ScanView is a reduced, tree-shaped scan record used for browsing a scan
// hierarchy. Children are owned by their parent node.
type ScanView struct {
	ScanNumber         int
	RetentionTime      float64
	MSLevel            int
	PrecursorMZ        float64
	PrecursorIntensity float64
	ParentScanNumber   int
	Children           []*ScanView
}

// Walk visits the node and its descendants depth first.
func (v *ScanView) Walk(fn func(node *ScanView, depth int)) {
	v.walk(fn, 0)
}

func (v *ScanView) walk(fn func(*ScanView, int), depth int) {
	fn(v, depth)
	for _, c := range v.Children {
		c.walk(fn, depth+1)
	}
}

// Count returns the number of nodes in the subtree rooted at v.
func (v *ScanView) Count() int {
	n := 0
	v.Walk(func(*ScanView, int) { n++ })
	return n
}
