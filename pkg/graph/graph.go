// Package graph reconstructs the parent/child hierarchy of the scans in an
// MS data file.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ChrisMcGann/MSTree/pkg/core"
	"github.com/ChrisMcGann/MSTree/pkg/source"
)

// Topology names the acquisition layout a build assumes.
type Topology int

const (
	DirectInfusion Topology = iota
	TrappedIonMobility
	LcMsMs
	MsProfile
)

func (t Topology) String() string {
	switch t {
	case DirectInfusion:
		return "direct-infusion"
	case TrappedIonMobility:
		return "trapped-ion-mobility"
	case LcMsMs:
		return "lc-msms"
	case MsProfile:
		return "ms-profile"
	}
	return fmt.Sprintf("Topology(%d)", int(t))
}

// ParseTopology parses a topology name as accepted on the command line.
func ParseTopology(s string) (Topology, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "di", "direct-infusion", "directinfusion":
		return DirectInfusion, nil
	case "tim", "trapped-ion-mobility", "trappedionmobility":
		return TrappedIonMobility, nil
	case "lc", "lcmsms", "lc-msms", "lc-ms/ms":
		return LcMsMs, nil
	case "profile", "ms-profile", "msprofile":
		return MsProfile, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTopology, s)
}

var (
	// ErrNoSelector is returned when a topology needs a selector and none is set.
	ErrNoSelector = errors.New("one of ms level, parent scan number or scan number is required")

	// ErrUnknownTopology is returned for topologies the builder does not know.
	ErrUnknownTopology = errors.New("unknown topology")
)

// Selectors narrow an LC-MS/MS or profile build. A value of -1 means unset.
type Selectors struct {
	MSLevel          int
	ParentScanNumber int
	ScanNumber       int
}

// NoSelectors returns selectors with every field unset.
func NoSelectors() Selectors {
	return Selectors{MSLevel: -1, ParentScanNumber: -1, ScanNumber: -1}
}

// Empty reports whether no selector is set.
func (s Selectors) Empty() bool {
	return s.MSLevel == -1 && s.ParentScanNumber == -1 && s.ScanNumber == -1
}

const (
	// RootScanNumber is the scan number of a synthesized MS1 root.
	RootScanNumber = 0

	// DefaultSubtreeWindow is how many scans past a parent a targeted build examines.
	DefaultSubtreeWindow = 1000
	// DefaultProgressInterval is how many scans pass between progress reports.
	DefaultProgressInterval = 10

	// precursorWindow is the m/z distance within which a child's precursor
	// reuses an existing parent peak.
	precursorWindow = 0.5

	// rootMergeTolerance is the m/z distance within which precursors on a
	// synthesized root are treated as the same peak.
	rootMergeTolerance = 1e-7

	// pollEvery bounds how many peaks are ingested between cancellation checks.
	pollEvery = 64
)

// Builder reconstructs scan hierarchies from a source.
type Builder struct {
	src              source.Source
	sink             Sink
	logger           zerolog.Logger
	subtreeWindow    int
	progressInterval int
	headersOnly      bool
	directChildren   bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithSink sets the progress and warning sink.
func WithSink(s Sink) Option {
	return func(b *Builder) {
		b.sink = s
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithSubtreeWindow bounds how many scans past a parent are examined when
// building its subtree.
func WithSubtreeWindow(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.subtreeWindow = n
		}
	}
}

// WithProgressInterval sets how many scans pass between progress reports.
func WithProgressInterval(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.progressInterval = n
		}
	}
}

// WithHeadersOnly skips spectrum decoding. Scans carry no raw peaks.
func WithHeadersOnly() Option {
	return func(b *Builder) {
		b.headersOnly = true
	}
}

// WithDirectChildren makes an LC-MS/MS scan number selector also keep the
// direct children of the selected scan.
func WithDirectChildren() Option {
	return func(b *Builder) {
		b.directChildren = true
	}
}

// NewBuilder creates a builder reading from src.
func NewBuilder(src source.Source, opts ...Option) *Builder {
	b := &Builder{
		src:              src,
		sink:             NopSink{},
		logger:           zerolog.Nop(),
		subtreeWindow:    DefaultSubtreeWindow,
		progressInterval: DefaultProgressInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build reconstructs the scans of the source under the given topology. The
// result is sorted by scan number and closed under parent links. Unreadable
// scans and scans whose parent is missing are reported to the sink and left
// out. A cancelled context yields an empty result and no error.
func (b *Builder) Build(ctx context.Context, topology Topology, sel Selectors) ([]*core.Scan, error) {
	b.sink.OnProgress("Reading MS file", -1)

	var (
		scans []*core.Scan
		err   error
	)
	switch topology {
	case DirectInfusion:
		scans, err = b.traverse(ctx, &directInfusion{})
	case TrappedIonMobility:
		scans, err = b.buildTrappedIonMobility(ctx)
	case LcMsMs:
		if sel.Empty() {
			return nil, ErrNoSelector
		}
		t := newTargeted(sel, b.subtreeWindow)
		t.children = b.directChildren
		scans, err = b.traverse(ctx, t)
	case MsProfile:
		scans, err = b.buildProfile(ctx, sel)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownTopology, topology)
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return []*core.Scan{}, nil
	}
	if len(scans) == 0 {
		b.sink.OnWarning("No scan data read from MS file. The file may be invalid or of the wrong type.")
	}
	return scans, nil
}

// buildTrappedIonMobility falls back to direct infusion when the file
// carries real MS1 scans.
func (b *Builder) buildTrappedIonMobility(ctx context.Context) ([]*core.Scan, error) {
	first := b.firstScan()
	if first == -1 {
		return []*core.Scan{}, nil
	}
	h, err := b.src.Header(first)
	if err != nil {
		return nil, fmt.Errorf("failed to read first scan: %w", err)
	}
	if h.MSLevel <= 1 {
		b.logger.Debug().Int("scan", first).Msg("file starts with an MS1 scan, building as direct infusion")
		return b.traverse(ctx, &directInfusion{})
	}
	return b.traverse(ctx, &trappedIonMobility{})
}

// FirstMS1Scan returns the first MS1 scan with a non-empty spectrum.
func (b *Builder) FirstMS1Scan(ctx context.Context) (*core.Scan, error) {
	last := b.src.MaxScanNumber()
	for i := 1; i <= last; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := b.src.Header(i)
		if err != nil || h.MSLevel != 1 {
			continue
		}
		mz, intensity, err := b.src.Spectrum(i)
		if err != nil || len(mz) == 0 {
			continue
		}
		scan := scanFromHeader(h)
		if !ingest(ctx, scan, mz, intensity, true) {
			return nil, ctx.Err()
		}
		return scan, nil
	}
	return nil, fmt.Errorf("no MS1 scan with peaks: %w", source.ErrScanNotFound)
}

// firstScan returns the first readable scan number or -1.
func (b *Builder) firstScan() int {
	if !b.headersOnly {
		return source.FirstScanNumber(b.src)
	}
	last := b.src.MaxScanNumber()
	for i := 1; i <= last; i++ {
		if _, err := b.src.Header(i); err == nil {
			return i
		}
	}
	return -1
}

func (b *Builder) progress(i, last int) {
	if i%b.progressInterval == 0 {
		b.sink.OnProgress(fmt.Sprintf("Reading scan %d of %d", i, last), i)
	}
}
