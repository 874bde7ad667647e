package mzxml

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// decodePeaks decodes a peaks element into parallel m/z and intensity
// arrays. Values are stored as interleaved m/z-int pairs, network byte order
// unless stated otherwise.
func decodePeaks(p *peaksElement) ([]float64, []float64, error) {
	encoded := strings.Join(strings.Fields(p.Data), "")
	if encoded == "" {
		return []float64{}, []float64{}, nil
	}

	order := p.PairOrder
	if order == "" {
		order = p.ContentType
	}
	if order != "" && order != "m/z-int" {
		return nil, nil, fmt.Errorf("unsupported pair order %q", order)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid base64 data: %w", err)
	}

	switch p.CompressionType {
	case "", "none":
	case "zlib":
		z, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid zlib stream: %w", err)
		}
		defer z.Close()
		data, err = io.ReadAll(z)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to inflate peaks: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("unsupported compression type %q", p.CompressionType)
	}

	var byteOrder binary.ByteOrder = binary.BigEndian
	if strings.EqualFold(p.ByteOrder, "little") {
		byteOrder = binary.LittleEndian
	}

	width := 4
	switch p.Precision {
	case "", "32":
	case "64":
		width = 8
	default:
		return nil, nil, fmt.Errorf("unsupported precision %q", p.Precision)
	}

	if len(data)%(2*width) != 0 {
		return nil, nil, fmt.Errorf("peak data length %d is not a multiple of %d", len(data), 2*width)
	}

	n := len(data) / (2 * width)
	mz := make([]float64, n)
	intensity := make([]float64, n)
	for i := 0; i < n; i++ {
		off := i * 2 * width
		mz[i] = readFloat(data[off:], width, byteOrder)
		intensity[i] = readFloat(data[off+width:], width, byteOrder)
	}
	return mz, intensity, nil
}

func readFloat(b []byte, width int, order binary.ByteOrder) float64 {
	if width == 8 {
		return math.Float64frombits(order.Uint64(b))
	}
	return float64(math.Float32frombits(order.Uint32(b)))
}

// parseRetentionTime parses an xs:duration such as "PT12.5S" or "PT1M30S"
// into seconds. Plain numbers are taken as seconds.
func parseRetentionTime(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	if !strings.HasPrefix(v, "PT") {
		return strconv.ParseFloat(v, 64)
	}

	rest := v[2:]
	if rest == "" {
		return 0, fmt.Errorf("empty duration %q", v)
	}
	seconds := 0.0
	for rest != "" {
		i := strings.IndexAny(rest, "HMS")
		if i <= 0 {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		x, err := strconv.ParseFloat(rest[:i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", v, err)
		}
		switch rest[i] {
		case 'H':
			seconds += x * 3600
		case 'M':
			seconds += x * 60
		case 'S':
			seconds += x
		}
		rest = rest[i+1:]
	}
	return seconds, nil
}
