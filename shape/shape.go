/*
Package shape converts raw OSM nodes and ways into records for a document
store.

Attributes are split into the created sub-document (version, changeset,
timestamp, user, uid), the pos array and plain fields. Tags are copied as plain
fields, except addr:* tags which are collected in the address sub-document.
Street names, phone numbers and house numbers are normalized on the way.
Elements outside of the configured region are dropped completely.
*/
package shape

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/omniscale/osmshape/config"
	"github.com/omniscale/osmshape/element"
	"github.com/omniscale/osmshape/normalize"
)

// Reason describes why an element was not shaped.
type Reason int

const (
	Accepted Reason = iota
	UnsupportedKind
	ExcludedCountry
	InvalidPostcode
	PostcodeOutOfRange
)

var reasonNames = []string{
	Accepted:           "accepted",
	UnsupportedKind:    "unsupported_kind",
	ExcludedCountry:    "excluded_country",
	InvalidPostcode:    "invalid_postcode",
	PostcodeOutOfRange: "postcode_out_of_range",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Reasons lists all exclusion reasons.
var Reasons = []Reason{UnsupportedKind, ExcludedCountry, InvalidPostcode, PostcodeOutOfRange}

// Created lists the attributes that are stored in the created sub-document.
var Created = []string{"version", "changeset", "timestamp", "user", "uid"}

const (
	addrPrefix        = "addr:"
	streetPartsPrefix = "addr:street:"
	countryKey        = "addr:country"
	postcodeKey       = "addr:postcode"
	houseNumberSubKey = "housenumber"
	streetSubKey      = "street"
	phoneKey          = "phone"
)

var (
	lowerColon   = regexp.MustCompile(`^([a-z]|_)*:([a-z]|_)*$`)
	problemChars = regexp.MustCompile(`[=\+/&<>;'"\?%#$@\,\. \t\r\n]`)
)

func isCreated(key string) bool {
	for _, k := range Created {
		if k == key {
			return true
		}
	}
	return false
}

// Shaper shapes elements of a single region. A Shaper has no mutable state and
// can be used from multiple goroutines.
type Shaper struct {
	excludedCountries map[string]struct{}
	postcodeMin       int
	postcodeMax       int
	normalizer        *normalize.Normalizer
}

// New returns a Shaper for the region.
func New(region config.Region) (*Shaper, error) {
	n, err := normalize.New(normalize.Rules{
		StreetMisspelling: region.StreetMisspelling,
		StreetReplacement: region.StreetReplacement,
		PhoneCountryCode:  region.PhoneCountryCode,
		PhoneLabel:        region.PhoneLabel,
	})
	if err != nil {
		return nil, err
	}
	s := &Shaper{
		excludedCountries: make(map[string]struct{}, len(region.ExcludedCountries)),
		postcodeMin:       region.PostcodeMin,
		postcodeMax:       region.PostcodeMax,
		normalizer:        n,
	}
	for _, c := range region.ExcludedCountries {
		s.excludedCountries[c] = struct{}{}
	}
	return s, nil
}

// Shape returns the record for e, or nil if e is not a node or way or if it
// is outside of the region.
func (s *Shaper) Shape(e *element.Element) *element.Record {
	rec, _ := s.ShapeReason(e)
	return rec
}

// ShapeReason is like Shape, but also returns why e was dropped.
func (s *Shaper) ShapeReason(e *element.Element) (*element.Record, Reason) {
	if e.Kind != element.NodeKind && e.Kind != element.WayKind {
		return nil, UnsupportedKind
	}
	if reason := s.Check(e.Tags); reason != Accepted {
		return nil, reason
	}

	rec := &element.Record{
		Type:    e.Kind,
		Created: make(map[string]string),
		Fields:  make(map[string]string),
	}
	s.shapeAttrs(rec, e.Attrs)
	s.shapeTags(rec, e.Tags)

	if len(e.Refs) > 0 {
		rec.NodeRefs = make([]string, len(e.Refs))
		copy(rec.NodeRefs, e.Refs)
	}
	return rec, Accepted
}

// Check returns whether tags belong to an element inside of the region.
func (s *Shaper) Check(tags []element.Tag) Reason {
	for _, tag := range tags {
		switch tag.Key {
		case countryKey:
			if _, ok := s.excludedCountries[tag.Value]; ok {
				return ExcludedCountry
			}
		case postcodeKey:
			code, err := strconv.Atoi(strings.TrimSpace(tag.Value))
			if err != nil {
				return InvalidPostcode
			}
			if code < s.postcodeMin || code >= s.postcodeMax {
				return PostcodeOutOfRange
			}
		}
	}
	return Accepted
}

func (s *Shaper) shapeAttrs(rec *element.Record, attrs []element.Attr) {
	for _, attr := range attrs {
		switch {
		case isCreated(attr.Name):
			rec.Created[attr.Name] = attr.Value
		case attr.Name == "lat":
			rec.Pos[0] = parseCoord(attr.Value)
		case attr.Name == "lon":
			rec.Pos[1] = parseCoord(attr.Value)
		default:
			setField(rec, attr.Name, attr.Value)
		}
	}
}

func parseCoord(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	// NaN and Inf are not valid coordinates and can't be encoded as JSON
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	return f
}

func (s *Shaper) shapeTags(rec *element.Record, tags []element.Tag) {
	for _, tag := range tags {
		k, v := tag.Key, tag.Value
		if problemChars.MatchString(k) {
			continue
		}
		if strings.Contains(k, streetPartsPrefix) {
			continue
		}
		if lowerColon.MatchString(k) {
			if !strings.HasPrefix(k, addrPrefix) {
				setField(rec, k, v)
				continue
			}
			s.addAddress(rec, strings.TrimPrefix(k, addrPrefix), v)
			continue
		}
		if k == phoneKey {
			v = s.normalizer.PhoneNumber(v)
		}
		if v != "" {
			setField(rec, k, v)
		}
	}
}

func (s *Shaper) addAddress(rec *element.Record, key, v string) {
	var value interface{}
	switch key {
	case houseNumberSubKey:
		numbers := s.normalizer.HouseNumber(v)
		if len(numbers) == 0 {
			return
		}
		value = numbers
	case streetSubKey:
		v = s.normalizer.StreetName(v)
		fallthrough
	default:
		if v == "" {
			return
		}
		value = v
	}
	if rec.Address == nil {
		rec.Address = make(element.Address)
	}
	rec.Address[key] = value
}

// setField sets a plain field, unless key is used by the structured part of
// the record or by the created sub-document.
func setField(rec *element.Record, key, v string) {
	if element.IsReserved(key) || isCreated(key) {
		return
	}
	rec.Fields[key] = v
}
