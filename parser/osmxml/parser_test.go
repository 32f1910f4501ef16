package osmxml

import (
	"bytes"
	"compress/gzip"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/omniscale/osmshape/element"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="CGImap 0.0.2">
 <bounds minlat="41.9704500" minlon="-87.6928300" maxlat="41.9758200" maxlon="-87.6894800"/>
 <node id="261114295" visible="true" version="7" changeset="11129782" timestamp="2012-03-28T18:31:23Z" user="bbmiller" uid="451048" lat="41.9730791" lon="-87.6866303"/>
 <node id="757860928" visible="true" version="2" changeset="5288876" timestamp="2010-07-22T16:16:51Z" user="uboot" uid="26299" lat="41.9747374" lon="-87.6920102">
  <tag k="amenity" v="fast_food"/>
  <tag k="cuisine" v="sausage"/>
  <tag k="name" v="Shelly&apos;s Tasty Freeze"/>
  <tag k="cuisine" v="burger"/>
 </node>
 <way id="258219703" visible="true" version="1" changeset="20187382" timestamp="2014-01-25T02:01:54Z" user="linuxUser16" uid="1219059">
  <nd ref="2636086179"/>
  <nd ref="2636086178"/>
  <nd ref="2636086177"/>
  <tag k="highway" v="service"/>
 </way>
 <relation id="1" version="1">
  <member type="way" ref="258219703" role="outer"/>
  <tag k="type" v="multipolygon"/>
 </relation>
</osm>
`

func collect(t *testing.T, p *Parser, elems chan []element.Element) ([]element.Element, int, error) {
	t.Helper()
	errc := make(chan error, 1)
	go func() {
		errc <- p.Parse(context.Background())
	}()
	var result []element.Element
	batches := 0
	for batch := range elems {
		batches++
		result = append(result, batch...)
	}
	return result, batches, <-errc
}

func TestParse(t *testing.T) {
	elems := make(chan []element.Element)
	p := New(strings.NewReader(sample), Config{Elements: elems})

	result, batches, err := collect(t, p, elems)
	if err != nil {
		t.Fatal(err)
	}
	if batches != 1 {
		t.Error("unexpected number of batches", batches)
	}
	if len(result) != 5 {
		t.Fatalf("unexpected elements %#v", result)
	}

	kinds := []string{}
	for _, e := range result {
		kinds = append(kinds, e.Kind)
	}
	if !reflect.DeepEqual(kinds, []string{"bounds", "node", "node", "way", "relation"}) {
		t.Error("unexpected kinds", kinds)
	}

	n := result[1]
	expectedAttrs := []element.Attr{
		{Name: "id", Value: "261114295"},
		{Name: "visible", Value: "true"},
		{Name: "version", Value: "7"},
		{Name: "changeset", Value: "11129782"},
		{Name: "timestamp", Value: "2012-03-28T18:31:23Z"},
		{Name: "user", Value: "bbmiller"},
		{Name: "uid", Value: "451048"},
		{Name: "lat", Value: "41.9730791"},
		{Name: "lon", Value: "-87.6866303"},
	}
	if !reflect.DeepEqual(n.Attrs, expectedAttrs) {
		t.Errorf("unexpected attrs %#v", n.Attrs)
	}
	if n.Tags != nil || n.Refs != nil {
		t.Errorf("unexpected children %#v", n)
	}

	n = result[2]
	expectedTags := []element.Tag{
		{Key: "amenity", Value: "fast_food"},
		{Key: "cuisine", Value: "sausage"},
		{Key: "name", Value: "Shelly's Tasty Freeze"},
		{Key: "cuisine", Value: "burger"},
	}
	if !reflect.DeepEqual(n.Tags, expectedTags) {
		t.Errorf("unexpected tags %#v", n.Tags)
	}

	w := result[3]
	if !reflect.DeepEqual(w.Refs, []string{"2636086179", "2636086178", "2636086177"}) {
		t.Errorf("unexpected refs %#v", w.Refs)
	}
	if !reflect.DeepEqual(w.Tags, []element.Tag{{Key: "highway", Value: "service"}}) {
		t.Errorf("unexpected tags %#v", w.Tags)
	}

	r := result[4]
	if len(r.Refs) != 0 || len(r.Tags) != 1 {
		t.Errorf("unexpected relation %#v", r)
	}
}

func TestParseBatches(t *testing.T) {
	elems := make(chan []element.Element)
	p := New(strings.NewReader(sample), Config{Elements: elems, BatchSize: 2})

	result, batches, err := collect(t, p, elems)
	if err != nil {
		t.Fatal(err)
	}
	if batches != 3 || len(result) != 5 {
		t.Errorf("unexpected batches %d/elements %d", batches, len(result))
	}
}

func TestParseMalformed(t *testing.T) {
	for _, doc := range []string{
		`<osm><node id="1"/><node id="2"><tag k="a" v="b"/></osm>`,
		`<osm><node id="1"/><node id="2"`,
		`<osm><node id="1"/><node id="2">`,
		`<osm><node id="1"/><node id="2" lat=52/></osm>`,
	} {
		elems := make(chan []element.Element)
		p := New(strings.NewReader(doc), Config{Elements: elems})

		result, _, err := collect(t, p, elems)
		if _, ok := err.(*ParseError); !ok {
			t.Errorf("%s: expected ParseError, got %v", doc, err)
		}
		if again := p.Parse(context.Background()); again != err {
			t.Errorf("%s: error not kept for next Parse, got %v", doc, again)
		}
		if len(result) != 1 {
			t.Errorf("%s: expected first node, got %#v", doc, result)
		}
	}
}

func TestParseKeepOpen(t *testing.T) {
	elems := make(chan []element.Element, 1)
	p := New(strings.NewReader(`<osm><node id="1"/></osm>`), Config{Elements: elems, KeepOpen: true})
	if err := p.Parse(context.Background()); err != nil {
		t.Fatal(err)
	}
	batch := <-elems
	if len(batch) != 1 {
		t.Error(batch)
	}
	select {
	case _, ok := <-elems:
		t.Error("unexpected receive", ok)
	default:
	}
}

func TestParseCanceled(t *testing.T) {
	elems := make(chan []element.Element)
	p := New(strings.NewReader(sample), Config{Elements: elems, BatchSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Parse(ctx); err != context.Canceled {
		t.Error("unexpected error", err)
	}
}

func TestNewGZIP(t *testing.T) {
	buf := &bytes.Buffer{}
	zw := gzip.NewWriter(buf)
	zw.Write([]byte(sample))
	zw.Close()

	elems := make(chan []element.Element)
	p, err := NewGZIP(buf, Config{Elements: elems})
	if err != nil {
		t.Fatal(err)
	}
	result, _, err := collect(t, p, elems)
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 5 {
		t.Error("unexpected elements", len(result))
	}

	if _, err := NewGZIP(strings.NewReader(sample), Config{}); err == nil {
		t.Error("expected error for uncompressed input")
	}
}
