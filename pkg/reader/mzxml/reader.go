// Package mzxml provides a random-access reader for mzXML files.
package mzxml

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/net/html/charset"

	"github.com/ChrisMcGann/MSTree/pkg/source"
)

// ErrNoScans is returned when a document holds no scan elements.
var ErrNoScans = errors.New("no scans found")

// ScanError reports a malformed attribute on a single scan.
type ScanError struct {
	ScanNumber int
	Attr       string
	Err        error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %d: invalid %s: %v", e.ScanNumber, e.Attr, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// File holds the scans of one mzXML document. Peak data is kept encoded and
// decoded on each Spectrum call.
type File struct {
	Path string

	scans   map[int]*scanEntry
	maxScan int
	skipped error // scans that could not be keyed by number
}

type scanEntry struct {
	header source.Header
	peaks  *peaksElement
	err    error
}

type precursorElement struct {
	ScanNum          string `xml:"precursorScanNum,attr"`
	Intensity        string `xml:"precursorIntensity,attr"`
	Charge           string `xml:"precursorCharge,attr"`
	ActivationMethod string `xml:"activationMethod,attr"`
	Value            string `xml:",chardata"`
}

type peaksElement struct {
	Precision       string `xml:"precision,attr"`
	ByteOrder       string `xml:"byteOrder,attr"`
	CompressionType string `xml:"compressionType,attr"`
	PairOrder       string `xml:"pairOrder,attr"`
	ContentType     string `xml:"contentType,attr"`
	Data            string `xml:",chardata"`
}

// Open reads the mzXML file at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mzXML file: %w", err)
	}
	defer f.Close()

	file, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	file.Path = path
	return file, nil
}

// IsValid reports whether path is a readable mzXML file with at least one scan.
func IsValid(path string) bool {
	_, err := Open(path)
	return err == nil
}

// Read parses an mzXML document. Scans may be nested inside their parent
// scan element or listed flat under msRun.
func Read(r io.Reader) (*File, error) {
	file := &File{scans: make(map[int]*scanEntry)}

	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel

	var stack []*scanEntry
	for {
		t, tokenErr := d.Token()
		if tokenErr != nil {
			if tokenErr == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to parse XML: %w", tokenErr)
		}

		switch t := t.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "scan":
				stack = append(stack, newScanEntry(t.Attr))
			case "precursorMz":
				var p precursorElement
				if err := d.DecodeElement(&p, &t); err != nil {
					return nil, fmt.Errorf("failed to parse precursorMz: %w", err)
				}
				if len(stack) > 0 {
					stack[len(stack)-1].applyPrecursor(&p)
				}
			case "peaks":
				var p peaksElement
				if err := d.DecodeElement(&p, &t); err != nil {
					return nil, fmt.Errorf("failed to parse peaks: %w", err)
				}
				if len(stack) > 0 {
					stack[len(stack)-1].peaks = &p
				}
			}
		case xml.EndElement:
			if t.Name.Local != "scan" || len(stack) == 0 {
				continue
			}
			entry := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			file.add(entry)
		}
	}

	if len(file.scans) == 0 {
		if file.skipped != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoScans, file.skipped)
		}
		return nil, ErrNoScans
	}
	return file, nil
}

func (f *File) add(entry *scanEntry) {
	num := entry.header.ScanNumber
	if num <= 0 {
		err := entry.err
		if err == nil {
			err = fmt.Errorf("scan number %d is not positive", num)
		}
		f.skipped = multierror.Append(f.skipped, err)
		return
	}
	f.scans[num] = entry
	if num > f.maxScan {
		f.maxScan = num
	}
}

// Skipped returns the errors of scan elements that were dropped because they
// carried no usable scan number.
func (f *File) Skipped() error {
	return f.skipped
}

// ScanNumbers returns all scan numbers in ascending order.
func (f *File) ScanNumbers() []int {
	nums := make([]int, 0, len(f.scans))
	for n := range f.scans {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// Header implements source.Source.
func (f *File) Header(scanNumber int) (*source.Header, error) {
	entry, ok := f.scans[scanNumber]
	if !ok {
		return nil, fmt.Errorf("scan %d: %w", scanNumber, source.ErrScanNotFound)
	}
	if entry.err != nil {
		return nil, entry.err
	}
	h := entry.header
	return &h, nil
}

// Spectrum implements source.Source.
func (f *File) Spectrum(scanNumber int) ([]float64, []float64, error) {
	entry, ok := f.scans[scanNumber]
	if !ok {
		return nil, nil, fmt.Errorf("scan %d: %w", scanNumber, source.ErrScanNotFound)
	}
	if entry.err != nil {
		return nil, nil, entry.err
	}
	if entry.peaks == nil {
		return []float64{}, []float64{}, nil
	}
	mz, intensity, err := decodePeaks(entry.peaks)
	if err != nil {
		return nil, nil, &ScanError{ScanNumber: scanNumber, Attr: "peaks", Err: err}
	}
	return mz, intensity, nil
}

// MaxScanNumber implements source.Source.
func (f *File) MaxScanNumber() int {
	return f.maxScan
}

// newScanEntry builds a scan entry from the attributes of a scan element.
// The first malformed attribute is recorded as the scan's error.
func newScanEntry(attrs []xml.Attr) *scanEntry {
	entry := &scanEntry{header: source.NewHeader(0, 1)}
	h := &entry.header

	fail := func(attr string, err error) {
		if entry.err == nil {
			entry.err = &ScanError{ScanNumber: h.ScanNumber, Attr: attr, Err: err}
		}
	}

	// num first, so later errors can name the scan
	for _, a := range attrs {
		if a.Name.Local == "num" {
			n, err := strconv.Atoi(strings.TrimSpace(a.Value))
			if err != nil {
				fail("num", err)
				continue
			}
			h.ScanNumber = n
		}
	}

	for _, a := range attrs {
		v := strings.TrimSpace(a.Value)
		switch a.Name.Local {
		case "msLevel":
			n, err := strconv.Atoi(v)
			if err != nil {
				fail("msLevel", err)
				continue
			}
			h.MSLevel = n
		case "peaksCount":
			n, err := strconv.Atoi(v)
			if err != nil {
				fail("peaksCount", err)
				continue
			}
			h.PeaksCount = n
		case "polarity":
			h.Polarity = v
		case "retentionTime":
			rt, err := parseRetentionTime(v)
			if err != nil {
				fail("retentionTime", err)
				continue
			}
			h.RetentionTime = rt
		case "lowMz", "startMz":
			if h.LowMZ > 0 && a.Name.Local == "startMz" {
				continue
			}
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				fail(a.Name.Local, err)
				continue
			}
			h.LowMZ = x
		case "highMz", "endMz":
			if h.HighMZ > 0 && a.Name.Local == "endMz" {
				continue
			}
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				fail(a.Name.Local, err)
				continue
			}
			h.HighMZ = x
		case "centroided":
			h.Centroided = v == "1" || strings.EqualFold(v, "true")
		case "totIonCurrent":
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				fail("totIonCurrent", err)
				continue
			}
			h.TotalIonCurrent = x
		}
	}
	return entry
}

func (e *scanEntry) applyPrecursor(p *precursorElement) {
	h := &e.header
	fail := func(attr string, err error) {
		if e.err == nil {
			e.err = &ScanError{ScanNumber: h.ScanNumber, Attr: attr, Err: err}
		}
	}

	if v := strings.TrimSpace(p.Value); v != "" {
		mz, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fail("precursorMz", err)
		} else {
			h.PrecursorMZ = mz
		}
	}
	if v := strings.TrimSpace(p.ScanNum); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail("precursorScanNum", err)
		} else {
			h.PrecursorScanNumber = n
		}
	}
	if v := strings.TrimSpace(p.Intensity); v != "" {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fail("precursorIntensity", err)
		} else {
			h.PrecursorIntensity = x
		}
	}
	if v := strings.TrimSpace(p.Charge); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail("precursorCharge", err)
		} else {
			h.PrecursorCharge = n
		}
	}
	if v := strings.TrimSpace(p.ActivationMethod); v != "" {
		h.ActivationMethod = v
	}
}
