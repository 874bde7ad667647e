// Package extract reads Thermo Xtract deisotoping results as quantitation data.
package extract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"

	"github.com/ChrisMcGann/MSTree/pkg/quant"
)

const rootTag = "Xtract"

type document struct {
	XMLName xml.Name
	Heads   []element `xml:"Head"`
	Monos   []mono    `xml:"Mono"`
}

type element struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

type mono struct {
	Attrs   []xml.Attr `xml:",any,attr"`
	Charged []struct {
		Matches []element `xml:"Match"`
	} `xml:"Charged"`
}

// Reader reads Xtract files. It implements quant.Reader.
type Reader struct {
	Logger zerolog.Logger
}

// NewReader creates an Xtract reader.
func NewReader() *Reader {
	return &Reader{Logger: zerolog.Nop()}
}

// Read implements quant.Reader.
func (r *Reader) Read(ctx context.Context, path string, ppm bool, interval float64) (*quant.QuantPeakData, error) {
	f, err := os.Open(path)
	if err != nil {
		r.Logger.Error().Err(err).Str("file", path).Msg("could not read extract file")
		return quant.NewQuantPeakData(), fmt.Errorf("failed to open extract file: %w", err)
	}
	defer f.Close()

	data, err := Parse(ctx, f, ppm, interval)
	if err != nil {
		r.Logger.Error().Err(err).Str("file", path).Msg("could not read extract file")
		return data, err
	}
	r.Logger.Debug().Str("file", path).Int("peaks", len(data.Peaks)).Msg("read extract file")
	return data, nil
}

// IsValid reports whether path holds an Xtract document.
func (r *Reader) IsValid(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	doc, err := decode(f)
	return err == nil && doc.XMLName.Local == rootTag
}

// Parse reads an Xtract document. Match bounds are the given interval around
// each match's most abundant m/z. On error the peaks read so far are returned.
func Parse(ctx context.Context, r io.Reader, ppm bool, interval float64) (*quant.QuantPeakData, error) {
	data := quant.NewQuantPeakData()

	doc, err := decode(r)
	if err != nil {
		return data, err
	}
	if doc.XMLName.Local != rootTag {
		return data, &quant.InvalidFormatError{Msg: "missing Xtract tag"}
	}

	for _, h := range doc.Heads {
		if err := readHead(data, h.Attrs); err != nil {
			return data, err
		}
	}

	for _, m := range doc.Monos {
		if err := ctx.Err(); err != nil {
			return data, err
		}
		peak, err := readMono(m, ppm, interval)
		if err != nil {
			return data, err
		}
		data.Add(peak)
		if peak.SumIntensity > data.MaxIntensity {
			data.MaxIntensity = peak.SumIntensity
		}
	}
	return data, nil
}

// decode trims every line and drops anything before the XML declaration,
// which Xtract exports are known to carry.
func decode(r io.Reader) (*document, error) {
	var buf bytes.Buffer
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		buf.WriteString(strings.TrimSpace(scanner.Text()))
		buf.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read extract file: %w", err)
	}

	content := buf.Bytes()
	start := bytes.Index(content, []byte("<?xml"))
	if start < 0 {
		return nil, &quant.InvalidFormatError{Msg: "missing XML declaration"}
	}

	d := xml.NewDecoder(bytes.NewReader(content[start:]))
	d.CharsetReader = charset.NewReaderLabel

	var doc document
	if err := d.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return &doc, nil
}

func readHead(data *quant.QuantPeakData, attrs []xml.Attr) error {
	scan, err := intAttr(attrs, "Scan", "Head")
	if err != nil {
		return err
	}
	data.ScanNumber = scan

	rt, err := floatAttr(attrs, "RT", "Head")
	if err != nil {
		return err
	}
	data.RetentionTime = rt
	return nil
}

func readMono(m mono, ppm bool, interval float64) (*quant.QuantPeak, error) {
	peak := &quant.QuantPeak{}
	var err error

	if peak.MassMonoisotopic, err = floatAttr(m.Attrs, "MonoisoMass", "Mono"); err != nil {
		return nil, err
	}
	if peak.MassAveragine, err = floatAttr(m.Attrs, "AveragineMass", "Mono"); err != nil {
		return nil, err
	}
	if peak.SumIntensity, err = floatAttr(m.Attrs, "SumIntensity", "Mono"); err != nil {
		return nil, err
	}

	for _, c := range m.Charged {
		for _, e := range c.Matches {
			match, err := readMatch(peak, e.Attrs, ppm, interval)
			if err != nil {
				return nil, err
			}
			peak.Add(match)
		}
	}
	if len(peak.Matches) > 0 {
		peak.MZ = peak.Matches[0].MZMostAbundant
	}
	return peak, nil
}

func readMatch(peak *quant.QuantPeak, attrs []xml.Attr, ppm bool, interval float64) (*quant.QuantPeakMatch, error) {
	match := quant.NewQuantPeakMatch(peak)

	charge, err := intAttr(attrs, "Chg", "Match")
	if err != nil {
		return nil, err
	}
	if charge == 0 {
		return nil, &quant.InvalidFormatError{Msg: "Chg must not be zero for Match tag"}
	}
	match.Charge = charge

	sum, err := floatAttr(attrs, "SumInt", "Match")
	if err != nil {
		return nil, err
	}
	match.IntensitySum = sum / float64(charge)

	if match.MZMostAbundant, err = floatAttr(attrs, "MoiMz", "Match"); err != nil {
		return nil, err
	}
	match.SetBounds(interval, ppm)
	return match, nil
}

func attr(attrs []xml.Attr, name, tag string) (string, error) {
	for _, a := range attrs {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value), nil
		}
	}
	return "", &quant.InvalidFormatError{Msg: fmt.Sprintf("%s is missing for %s tag", name, tag)}
}

func intAttr(attrs []xml.Attr, name, tag string) (int, error) {
	v, err := attr(attrs, name, tag)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &quant.InvalidFormatError{Msg: fmt.Sprintf("%s is not an integer value: %s", name, v)}
	}
	return n, nil
}

func floatAttr(attrs []xml.Attr, name, tag string) (float64, error) {
	v, err := attr(attrs, name, tag)
	if err != nil {
		return 0, err
	}
	x, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &quant.InvalidFormatError{Msg: fmt.Sprintf("%s is not a double value: %s", name, v)}
	}
	return x, nil
}
