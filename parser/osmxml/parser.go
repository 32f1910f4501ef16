/*
Package osmxml provides a stream based parser for OpenStreetMap XML files (.osm).

Each child of the <osm> root element (node, way, relation, bounds, ...) is
passed on as one element.Element. Elements are sent in batches.
*/
package osmxml

import (
	"compress/bzip2"
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/omniscale/osmshape/element"
)

const DefaultBatchSize = 1000

type Config struct {
	// Elements specifies the destination for parsed elements.
	Elements chan []element.Element

	// BatchSize is the maximum number of elements per batch. Defaults to
	// DefaultBatchSize.
	BatchSize int

	// KeepOpen specifies whether the Elements channel should be kept open
	// after Parse(). By default, the Elements channel is closed after Parse().
	KeepOpen bool
}

// ParseError is returned for malformed XML documents. All elements before the
// error were already sent.
type ParseError struct {
	// Offset is the input offset where the error was detected.
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed OSM XML at offset %d: %s", e.Offset, e.Err)
}

// Parser is a stream based parser for OSM XML files.
type Parser struct {
	reader io.Reader
	conf   Config
	err    error
}

// New creates a new parser for the provided input. Config specifies the
// destination for the parsed elements.
func New(r io.Reader, conf Config) *Parser {
	if conf.BatchSize <= 0 {
		conf.BatchSize = DefaultBatchSize
	}
	return &Parser{reader: r, conf: conf}
}

// NewGZIP returns a parser from a GZIP compressed io.Reader.
func NewGZIP(r io.Reader, conf Config) (*Parser, error) {
	r, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return New(r, conf), nil
}

// NewBZIP2 returns a parser from a BZIP2 compressed io.Reader.
func NewBZIP2(r io.Reader, conf Config) *Parser {
	return New(bzip2.NewReader(r), conf)
}

// Parse reads the whole document and sends all elements to the Elements
// channel. Returns a *ParseError for malformed documents.
func (p *Parser) Parse(ctx context.Context) (err error) {
	if p.err != nil {
		return p.err
	}

	defer func() {
		if err != nil {
			p.err = err
		}
	}()

	if !p.conf.KeepOpen {
		defer close(p.conf.Elements)
	}

	decoder := xml.NewDecoder(p.reader)
	decoder.Strict = true

	batch := make([]element.Element, 0, p.conf.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p.conf.Elements <- batch:
		}
		batch = make([]element.Element, 0, p.conf.BatchSize)
		return nil
	}

	depth := 0
	var elem *element.Element

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			if depth != 0 {
				err = io.ErrUnexpectedEOF
			} else {
				return flush()
			}
		}
		if err != nil {
			if ferr := flush(); ferr != nil {
				return ferr
			}
			return &ParseError{Offset: decoder.InputOffset(), Err: err}
		}

		switch tok := token.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 2:
				elem = &element.Element{Kind: tok.Name.Local}
				if len(tok.Attr) > 0 {
					elem.Attrs = make([]element.Attr, 0, len(tok.Attr))
				}
				for _, attr := range tok.Attr {
					elem.Attrs = append(elem.Attrs, element.Attr{Name: attr.Name.Local, Value: attr.Value})
				}
			case 3:
				switch tok.Name.Local {
				case "tag":
					var k, v string
					for _, attr := range tok.Attr {
						if attr.Name.Local == "k" {
							k = attr.Value
						} else if attr.Name.Local == "v" {
							v = attr.Value
						}
					}
					elem.Tags = append(elem.Tags, element.Tag{Key: k, Value: v})
				case "nd":
					for _, attr := range tok.Attr {
						if attr.Name.Local == "ref" {
							elem.Refs = append(elem.Refs, attr.Value)
						}
					}
				default:
					// member and unknown children, pass
				}
			}
		case xml.EndElement:
			if depth == 2 {
				batch = append(batch, *elem)
				elem = nil
				if len(batch) >= p.conf.BatchSize {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			depth--
		}
	}
}
