package shape

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/omniscale/osmshape/config"
	"github.com/omniscale/osmshape/element"
)

var defaultShaper = mustShaper(config.Berlin)

func mustShaper(region config.Region) *Shaper {
	s, err := New(region)
	if err != nil {
		panic(err)
	}
	return s
}

func node(attrs []element.Attr, tags ...element.Tag) *element.Element {
	return &element.Element{Kind: element.NodeKind, Attrs: attrs, Tags: tags}
}

func TestShapeKinds(t *testing.T) {
	s := defaultShaper
	for _, kind := range []string{"relation", "bounds", "tag", "nd", "osm", ""} {
		rec, reason := s.ShapeReason(&element.Element{Kind: kind})
		if rec != nil || reason != UnsupportedKind {
			t.Errorf("%q: unexpected %v %v", kind, rec, reason)
		}
	}
	for _, kind := range []string{"node", "way"} {
		rec := s.Shape(&element.Element{Kind: kind})
		if rec == nil {
			t.Fatalf("%q not shaped", kind)
		}
		if rec.Type != kind {
			t.Errorf("unexpected type %q", rec.Type)
		}
		if rec.Address != nil || rec.NodeRefs != nil || len(rec.Created) != 0 || len(rec.Fields) != 0 {
			t.Errorf("unexpected content %#v", rec)
		}
		if rec.Pos != [2]float64{0, 0} {
			t.Error("unexpected pos", rec.Pos)
		}
	}
}

func TestShapeRegionFilter(t *testing.T) {
	s := defaultShaper
	for _, tc := range []struct {
		tags   []element.Tag
		reason Reason
	}{
		{[]element.Tag{{Key: "addr:country", Value: "PL"}}, ExcludedCountry},
		{[]element.Tag{{Key: "name", Value: "Słubice"}, {Key: "addr:country", Value: "PL"}, {Key: "addr:postcode", Value: "10117"}}, ExcludedCountry},
		{[]element.Tag{{Key: "addr:country", Value: "DE"}}, Accepted},
		{[]element.Tag{{Key: "addr:country", Value: "pl"}}, Accepted},
		{[]element.Tag{{Key: "addr:postcode", Value: "10115"}}, Accepted},
		{[]element.Tag{{Key: "addr:postcode", Value: "14999"}}, Accepted},
		{[]element.Tag{{Key: "addr:postcode", Value: "10114"}}, PostcodeOutOfRange},
		{[]element.Tag{{Key: "addr:postcode", Value: "15000"}}, PostcodeOutOfRange},
		{[]element.Tag{{Key: "addr:postcode", Value: "60625"}}, PostcodeOutOfRange},
		{[]element.Tag{{Key: "addr:postcode", Value: "D-10115"}}, InvalidPostcode},
		{[]element.Tag{{Key: "addr:postcode", Value: ""}}, InvalidPostcode},
		{[]element.Tag{{Key: "addr:postcode", Value: "10115;10117"}}, InvalidPostcode},
		{[]element.Tag{{Key: "addr:postcode", Value: "10117"}, {Key: "addr:postcode", Value: "16225"}}, PostcodeOutOfRange},
		// checked before any other tag is processed
		{[]element.Tag{{Key: "addr:street:name", Value: "x"}, {Key: "addr:postcode", Value: "abc"}}, InvalidPostcode},
	} {
		rec, reason := s.ShapeReason(node(nil, tc.tags...))
		if reason != tc.reason {
			t.Errorf("%v: got %v, expected %v", tc.tags, reason, tc.reason)
		}
		if (rec == nil) != (tc.reason != Accepted) {
			t.Errorf("%v: unexpected record %#v", tc.tags, rec)
		}
	}
}

func TestShapeAttrs(t *testing.T) {
	rec := defaultShaper.Shape(node([]element.Attr{
		{Name: "id", Value: "261114295"},
		{Name: "visible", Value: "true"},
		{Name: "lat", Value: "41.97"},
		{Name: "lon", Value: "-87.69"},
		{Name: "version", Value: "7"},
	}))
	if rec == nil {
		t.Fatal("not shaped")
	}
	if rec.Pos != [2]float64{41.97, -87.69} {
		t.Error("unexpected pos", rec.Pos)
	}
	if !reflect.DeepEqual(rec.Created, map[string]string{"version": "7"}) {
		t.Error("unexpected created", rec.Created)
	}
	if !reflect.DeepEqual(rec.Fields, map[string]string{"id": "261114295", "visible": "true"}) {
		t.Error("unexpected fields", rec.Fields)
	}
}

func TestShapeCreated(t *testing.T) {
	rec := defaultShaper.Shape(node([]element.Attr{
		{Name: "changeset", Value: "11129782"},
		{Name: "user", Value: "bbmiller"},
		{Name: "version", Value: "7"},
		{Name: "uid", Value: "451048"},
		{Name: "timestamp", Value: "2012-03-28T18:31:23Z"},
	}, element.Tag{Key: "user", Value: "tag user"}))
	expected := map[string]string{
		"changeset": "11129782",
		"user":      "bbmiller",
		"version":   "7",
		"uid":       "451048",
		"timestamp": "2012-03-28T18:31:23Z",
	}
	if !reflect.DeepEqual(rec.Created, expected) {
		t.Error("unexpected created", rec.Created)
	}
	if len(rec.Fields) != 0 {
		t.Error("unexpected fields", rec.Fields)
	}
}

func TestShapeInvalidCoords(t *testing.T) {
	rec := defaultShaper.Shape(node([]element.Attr{{Name: "lat", Value: "north"}, {Name: "lon", Value: "13.4"}}))
	if rec.Pos != [2]float64{0, 13.4} {
		t.Error("unexpected pos", rec.Pos)
	}

	for _, tc := range []struct {
		lat, lon string
	}{
		{"NaN", "inf"},
		{"-Infinity", "nan"},
		{"1e400", "+Inf"},
	} {
		rec := defaultShaper.Shape(node([]element.Attr{{Name: "lat", Value: tc.lat}, {Name: "lon", Value: tc.lon}}))
		if rec.Pos != [2]float64{0, 0} {
			t.Errorf("%s/%s: unexpected pos %v", tc.lat, tc.lon, rec.Pos)
		}
		if _, err := json.Marshal(rec); err != nil {
			t.Errorf("%s/%s: %s", tc.lat, tc.lon, err)
		}
	}
}

func TestShapeAddress(t *testing.T) {
	rec := defaultShaper.Shape(&element.Element{
		Kind: element.WayKind,
		Tags: []element.Tag{
			{Key: "addr:street", Value: "Lincoln Ave"},
			{Key: "addr:street:name", Value: "Lincoln"},
			{Key: "addr:housenumber", Value: "5158"},
		},
	})
	expected := element.Address{
		"street":      "Lincoln Ave",
		"housenumber": []string{"5158"},
	}
	if !reflect.DeepEqual(rec.Address, expected) {
		t.Errorf("unexpected address %#v", rec.Address)
	}
	if len(rec.Fields) != 0 {
		t.Error("unexpected fields", rec.Fields)
	}
}

func TestShapeAddressNormalized(t *testing.T) {
	rec := defaultShaper.Shape(node(nil,
		element.Tag{Key: "addr:street", Value: "Potsdamer Chausse"},
		element.Tag{Key: "addr:housenumber", Value: "4-6"},
		element.Tag{Key: "addr:city", Value: "Berlin"},
		element.Tag{Key: "addr:postcode", Value: "14129"},
		element.Tag{Key: "addr:suburb", Value: ""},
	))
	expected := element.Address{
		"street":      "Potsdamer Chaussee",
		"housenumber": []string{"4", "5", "6"},
		"city":        "Berlin",
		"postcode":    "14129",
	}
	if !reflect.DeepEqual(rec.Address, expected) {
		t.Errorf("unexpected address %#v", rec.Address)
	}
}

func TestShapeAddressDropped(t *testing.T) {
	rec := defaultShaper.Shape(node(nil,
		element.Tag{Key: "addr:housenumber", Value: "!!"},
		element.Tag{Key: "addr:street", Value: ""},
		element.Tag{Key: "addr:street:prefix", Value: "North"},
		element.Tag{Key: "addr:street:type", Value: "Avenue"},
	))
	if rec.Address != nil {
		t.Errorf("unexpected address %#v", rec.Address)
	}
	if _, ok := rec.Document()["address"]; ok {
		t.Error("address in document")
	}
}

func TestShapeAddressOverwrite(t *testing.T) {
	rec := defaultShaper.Shape(node(nil,
		element.Tag{Key: "addr:housenumber", Value: "1"},
		element.Tag{Key: "addr:housenumber", Value: "2a"},
		element.Tag{Key: "addr:housenumber", Value: "??"},
	))
	// the invalid last value does not remove the previous one
	if !reflect.DeepEqual(rec.Address, element.Address{"housenumber": []string{"2A"}}) {
		t.Errorf("unexpected address %#v", rec.Address)
	}
}

func TestShapeTags(t *testing.T) {
	rec := defaultShaper.Shape(node(nil,
		element.Tag{Key: "amenity", Value: "restaurant"},
		element.Tag{Key: "cuisine", Value: "mexican"},
		element.Tag{Key: "name", Value: "La Cabana De Don Luis"},
		element.Tag{Key: "name:de", Value: "Die Hütte"},
		element.Tag{Key: "wheelchair:description", Value: ""},
		element.Tag{Key: "phone", Value: "030 1234567"},
		element.Tag{Key: "fax", Value: "030 1234568"},
		element.Tag{Key: "FIXME", Value: "check"},
		element.Tag{Key: "seamark:light:colour", Value: "red"},
		element.Tag{Key: "name_1", Value: "alt"},
		element.Tag{Key: "description", Value: ""},
		element.Tag{Key: "tiger.cfcc", Value: "A41"},
		element.Tag{Key: "note 2", Value: "x"},
		element.Tag{Key: "a=b", Value: "x"},
		element.Tag{Key: "addr:street:name", Value: "Lincoln"},
		element.Tag{Key: "type", Value: "multipolygon"},
	))
	expected := map[string]string{
		"amenity":                "restaurant",
		"cuisine":                "mexican",
		"name":                   "La Cabana De Don Luis",
		"name:de":                "Die Hütte",
		"wheelchair:description": "",
		"phone":                  "+49301234567",
		"fax":                    "030 1234568",
		"FIXME":                  "check",
		"seamark:light:colour":   "red",
		"name_1":                 "alt",
	}
	if !reflect.DeepEqual(rec.Fields, expected) {
		t.Errorf("unexpected fields %#v", rec.Fields)
	}
	if rec.Type != "node" {
		t.Error("type overwritten", rec.Type)
	}
}

func TestShapeInvalidPhone(t *testing.T) {
	rec := defaultShaper.Shape(node(nil,
		element.Tag{Key: "phone", Value: "+1 555 1234"},
		element.Tag{Key: "phone", Value: "unknown"},
	))
	if _, ok := rec.Fields["phone"]; ok {
		t.Error("unexpected phone", rec.Fields)
	}
}

func TestShapeProblemChars(t *testing.T) {
	for _, c := range []string{"=", "+", "/", "&", "<", ">", ";", "'", "\"", "?", "%", "#", "$", "@", ",", ".", " ", "\t", "\r", "\n"} {
		for _, k := range []string{"name" + c, "addr:street" + c, "addr:" + c + "street"} {
			rec := defaultShaper.Shape(node(nil, element.Tag{Key: k, Value: "value"}))
			if len(rec.Fields) != 0 || rec.Address != nil {
				t.Errorf("%q not dropped: %#v", k, rec)
			}
		}
	}
}

func TestShapeNodeRefs(t *testing.T) {
	e := &element.Element{Kind: element.WayKind, Refs: []string{"1", "2", "3"}}
	rec := defaultShaper.Shape(e)
	if !reflect.DeepEqual(rec.NodeRefs, []string{"1", "2", "3"}) {
		t.Error("unexpected refs", rec.NodeRefs)
	}
	rec.NodeRefs[0] = "9"
	if e.Refs[0] != "1" {
		t.Error("input modified")
	}

	rec = defaultShaper.Shape(&element.Element{Kind: element.WayKind})
	if rec.NodeRefs != nil {
		t.Error("unexpected refs", rec.NodeRefs)
	}
	if _, ok := rec.Document()["node_refs"]; ok {
		t.Error("node_refs in document")
	}
}

func TestShapeDoesNotModifyInput(t *testing.T) {
	e := node(
		[]element.Attr{{Name: "id", Value: "1"}, {Name: "lat", Value: "52.5"}},
		element.Tag{Key: "phone", Value: "030 1234567"},
		element.Tag{Key: "addr:housenumber", Value: "4-6"},
		element.Tag{Key: "addr:street", Value: "Xyz Chausee"},
	)
	defaultShaper.Shape(e)
	expected := []element.Tag{
		{Key: "phone", Value: "030 1234567"},
		{Key: "addr:housenumber", Value: "4-6"},
		{Key: "addr:street", Value: "Xyz Chausee"},
	}
	if !reflect.DeepEqual(e.Tags, expected) {
		t.Error("input modified", e.Tags)
	}
}

func TestShapeCustomRegion(t *testing.T) {
	region := config.Berlin
	region.ExcludedCountries = []string{"DE", "CZ"}
	region.PostcodeMin = 1000
	region.PostcodeMax = 3000
	s, err := New(region)
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		tags   []element.Tag
		reason Reason
	}{
		{[]element.Tag{{Key: "addr:country", Value: "PL"}}, Accepted},
		{[]element.Tag{{Key: "addr:country", Value: "CZ"}}, ExcludedCountry},
		{[]element.Tag{{Key: "addr:postcode", Value: "10115"}}, PostcodeOutOfRange},
		{[]element.Tag{{Key: "addr:postcode", Value: "2999"}}, Accepted},
	} {
		if _, reason := s.ShapeReason(node(nil, tc.tags...)); reason != tc.reason {
			t.Errorf("%v: got %v, expected %v", tc.tags, reason, tc.reason)
		}
	}
}

func TestReasonString(t *testing.T) {
	if PostcodeOutOfRange.String() != "postcode_out_of_range" {
		t.Error(PostcodeOutOfRange.String())
	}
	if Reason(42).String() != "unknown" {
		t.Error(Reason(42).String())
	}
}
