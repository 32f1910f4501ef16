/*
Package element contains the raw OSM elements as they come from a parser and the
shaped records that are written to the output.
*/
package element

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	NodeKind = "node"
	WayKind  = "way"
)

// Attr is a single XML attribute of a top level OSM element.
type Attr struct {
	Name  string
	Value string
}

// Tag is a single <tag k="" v=""/> child.
type Tag struct {
	Key   string
	Value string
}

// Element is a parsed top level OSM element (node, way, relation, bounds, ...).
// Attrs, Tags and Refs keep the order of the source document.
type Element struct {
	Kind  string
	Attrs []Attr
	Tags  []Tag
	// Refs contains the ref attribute of all <nd/> children.
	Refs []string
}

// Attr returns the value of the last attribute with the given name.
func (e *Element) Attr(name string) (string, bool) {
	for i := len(e.Attrs) - 1; i >= 0; i-- {
		if e.Attrs[i].Name == name {
			return e.Attrs[i].Value, true
		}
	}
	return "", false
}

// Tag returns the value of the last tag with the given key.
func (e *Element) Tag(key string) (string, bool) {
	for i := len(e.Tags) - 1; i >= 0; i-- {
		if e.Tags[i].Key == key {
			return e.Tags[i].Value, true
		}
	}
	return "", false
}

func (e *Element) String() string {
	id, _ := e.Attr("id")
	return fmt.Sprintf("%s %s (%d tags, %d refs)", e.Kind, id, len(e.Tags), len(e.Refs))
}

// Address contains the addr:* values of a record. All values are strings,
// except housenumber which is a []string.
type Address map[string]interface{}

// Record is a shaped node or way.
type Record struct {
	Type string
	// Created contains the version, changeset, timestamp, user and uid
	// attributes, if present.
	Created map[string]string
	// Pos is [lat, lon].
	Pos      [2]float64
	Address  Address
	NodeRefs []string
	// Fields contains all other attributes and tags.
	Fields map[string]string
}

// Keys of a record document that are never taken from Fields.
const (
	TypeKey     = "type"
	CreatedKey  = "created"
	PosKey      = "pos"
	AddressKey  = "address"
	NodeRefsKey = "node_refs"
)

// IsReserved returns whether key is used for the structured part of a record
// document.
func IsReserved(key string) bool {
	switch key {
	case TypeKey, CreatedKey, PosKey, AddressKey, NodeRefsKey:
		return true
	}
	return false
}

// Document returns the record as a generic document, as it is written to
// JSON, MongoDB or PostgreSQL.
func (r *Record) Document() map[string]interface{} {
	doc := make(map[string]interface{}, len(r.Fields)+5)
	for k, v := range r.Fields {
		doc[k] = v
	}
	created := make(map[string]string, len(r.Created))
	for k, v := range r.Created {
		created[k] = v
	}
	doc[TypeKey] = r.Type
	doc[CreatedKey] = created
	doc[PosKey] = []float64{r.Pos[0], r.Pos[1]}
	if len(r.Address) > 0 {
		doc[AddressKey] = map[string]interface{}(r.Address)
	}
	if len(r.NodeRefs) > 0 {
		doc[NodeRefsKey] = r.NodeRefs
	}
	return doc
}

// MarshalJSON encodes the document form without escaping HTML characters.
func (r *Record) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.Document()); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
