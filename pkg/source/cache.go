package source

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of scans kept by NewCache when size <= 0.
const DefaultCacheSize = 1024

type spectrum struct {
	mz        []float64
	intensity []float64
}

// Cache wraps a Source and keeps recently used headers and decoded spectra.
// Errors are never cached.
type Cache struct {
	src     Source
	headers *lru.Cache[int, *Header]
	spectra *lru.Cache[int, spectrum]

	hits   int
	misses int
}

// NewCache creates a caching wrapper around src holding up to size scans.
func NewCache(src Source, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	headers, err := lru.New[int, *Header](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create header cache: %w", err)
	}
	spectra, err := lru.New[int, spectrum](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create spectrum cache: %w", err)
	}
	return &Cache{src: src, headers: headers, spectra: spectra}, nil
}

// Header implements Source.
func (c *Cache) Header(scanNumber int) (*Header, error) {
	if h, ok := c.headers.Get(scanNumber); ok {
		c.hits++
		cp := *h
		return &cp, nil
	}
	c.misses++
	h, err := c.src.Header(scanNumber)
	if err != nil {
		return nil, err
	}
	cp := *h
	c.headers.Add(scanNumber, &cp)
	return h, nil
}

// Spectrum implements Source.
func (c *Cache) Spectrum(scanNumber int) ([]float64, []float64, error) {
	if s, ok := c.spectra.Get(scanNumber); ok {
		c.hits++
		return s.mz, s.intensity, nil
	}
	c.misses++
	mz, intensity, err := c.src.Spectrum(scanNumber)
	if err != nil {
		return nil, nil, err
	}
	c.spectra.Add(scanNumber, spectrum{mz: mz, intensity: intensity})
	return mz, intensity, nil
}

// MaxScanNumber implements Source.
func (c *Cache) MaxScanNumber() int {
	return c.src.MaxScanNumber()
}

// Stats returns the cache hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	return c.hits, c.misses
}
