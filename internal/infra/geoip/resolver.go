package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when the resolver is not initialized.
var ErrUnavailable = errors.New("geoip resolver unavailable")

// Resolver provides country lookups backed by a MaxMind GeoIP2 database. It
// satisfies middleware.CountryLookup.
type Resolver struct {
	reader *geoip2.Reader
}

// NewResolver opens the GeoIP database at the given path. When the path is
// empty, nil is returned and callers skip GeoIP locale detection.
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// Country returns the ISO country code for the provided IP.
func (r *Resolver) Country(ip net.IP) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}
	if ip == nil {
		return "", errors.New("geoip: nil ip")
	}
	record, err := r.reader.Country(ip)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	if record == nil || record.Country.IsoCode == "" {
		return "", nil
	}
	return record.Country.IsoCode, nil
}

// Close closes the underlying database reader.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
