/*
Package reader reads OSM XML and PBF files and passes all elements in batches
to a channel.
*/
package reader

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	osm "github.com/omniscale/go-osm"
	"github.com/omniscale/go-osm/parser/pbf"
	"github.com/pkg/errors"

	"github.com/omniscale/osmshape/element"
	"github.com/omniscale/osmshape/log"
	"github.com/omniscale/osmshape/parser/osmxml"
)

type Format int

const (
	XML Format = iota
	GZIP
	BZIP2
	PBF
)

func (f Format) String() string {
	switch f {
	case GZIP:
		return "osm.gz"
	case BZIP2:
		return "osm.bz2"
	case PBF:
		return "osm.pbf"
	}
	return "osm"
}

// DetectFormat returns the format of filename based on its extension.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pbf":
		return PBF
	case ".gz":
		return GZIP
	case ".bz2":
		return BZIP2
	}
	return XML
}

type Config struct {
	// Elements receives all parsed elements. Closed when reading finished.
	Elements chan []element.Element
	// BatchSize is the number of elements per batch for XML files. PBF
	// files are passed in the batches of the file blocks.
	BatchSize int
	// Concurrency of the PBF parser. Defaults to the number of CPUs.
	Concurrency int
}

// Read reads all elements from filename. The file format is detected by the
// file extension.
func Read(ctx context.Context, filename string, conf Config) error {
	f, err := os.Open(filename)
	if err != nil {
		close(conf.Elements)
		return errors.Wrap(err, "opening input")
	}
	defer f.Close()

	format := DetectFormat(filename)
	log.Printf("[info] Reading %s as %s", filename, format)
	if err := ReadFrom(ctx, f, format, conf); err != nil {
		return errors.Wrapf(err, "reading %s", filename)
	}
	return nil
}

// ReadFrom reads all elements from r.
func ReadFrom(ctx context.Context, r io.Reader, format Format, conf Config) error {
	xmlConf := osmxml.Config{
		Elements:  conf.Elements,
		BatchSize: conf.BatchSize,
	}
	switch format {
	case PBF:
		return readPBF(ctx, r, conf)
	case GZIP:
		p, err := osmxml.NewGZIP(r, xmlConf)
		if err != nil {
			close(conf.Elements)
			return errors.Wrap(err, "initializing gzip reader")
		}
		return p.Parse(ctx)
	case BZIP2:
		return osmxml.NewBZIP2(r, xmlConf).Parse(ctx)
	default:
		return osmxml.New(r, xmlConf).Parse(ctx)
	}
}

func readPBF(ctx context.Context, r io.Reader, conf Config) error {
	nodes := make(chan []osm.Node, 4)
	ways := make(chan []osm.Way, 4)

	// Parse does not close nodes and ways if it fails in the middle of the
	// file, and its workers can still send after it returned. Every worker
	// passes the relation barrier when it exits, so OnFirstRelation is called
	// after the last send. Relations are never requested otherwise.
	workersDone := make(chan struct{})
	parser := pbf.New(r, pbf.Config{
		Nodes:           nodes,
		Ways:            ways,
		IncludeMetadata: true,
		Concurrency:     conf.Concurrency,
		KeepOpen:        true,
		OnFirstRelation: func() { close(workersDone) },
	})

	header, err := parser.Header()
	if err != nil {
		close(conf.Elements)
		return errors.Wrap(err, "parsing PBF header")
	}
	if header.Time.Unix() > 0 {
		log.Printf("[info] Reading PBF with data till %v", header.Time.Local())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	send := func(batch []element.Element) {
		select {
		case <-ctx.Done():
		case conf.Elements <- batch:
		}
	}

	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		// keep receiving after cancelation, the parser blocks otherwise
		for nds := range nodes {
			if ctx.Err() != nil {
				continue
			}
			batch := make([]element.Element, len(nds))
			for i := range nds {
				batch[i] = nodeElement(&nds[i])
			}
			send(batch)
		}
	}()
	go func() {
		defer wg.Done()
		for ws := range ways {
			if ctx.Err() != nil {
				continue
			}
			batch := make([]element.Element, len(ws))
			for i := range ws {
				batch[i] = wayElement(&ws[i])
			}
			send(batch)
		}
	}()

	err = parser.Parse(ctx)
	if err != nil {
		cancel()
	}
	<-workersDone
	close(nodes)
	close(ways)
	wg.Wait()
	close(conf.Elements)

	if err != nil {
		return errors.Wrap(err, "parsing PBF")
	}
	return nil
}

func nodeElement(n *osm.Node) element.Element {
	e := element.Element{Kind: element.NodeKind}
	e.Attrs = append(baseAttrs(&n.Element),
		element.Attr{Name: "lat", Value: strconv.FormatFloat(n.Lat, 'f', -1, 64)},
		element.Attr{Name: "lon", Value: strconv.FormatFloat(n.Long, 'f', -1, 64)},
	)
	e.Tags = sortedTags(n.Tags)
	return e
}

func wayElement(w *osm.Way) element.Element {
	e := element.Element{Kind: element.WayKind}
	e.Attrs = baseAttrs(&w.Element)
	e.Tags = sortedTags(w.Tags)
	if len(w.Refs) > 0 {
		e.Refs = make([]string, len(w.Refs))
		for i, ref := range w.Refs {
			e.Refs[i] = strconv.FormatInt(ref, 10)
		}
	}
	return e
}

// baseAttrs returns the attributes in the order of OSM XML files.
func baseAttrs(elem *osm.Element) []element.Attr {
	attrs := make([]element.Attr, 0, 8)
	attrs = append(attrs, element.Attr{Name: "id", Value: strconv.FormatInt(elem.ID, 10)})
	if md := elem.Metadata; md != nil {
		attrs = append(attrs,
			element.Attr{Name: "version", Value: strconv.FormatInt(int64(md.Version), 10)},
			element.Attr{Name: "changeset", Value: strconv.FormatInt(md.Changeset, 10)},
			element.Attr{Name: "timestamp", Value: md.Timestamp.UTC().Format(time.RFC3339)},
			element.Attr{Name: "user", Value: md.UserName},
			element.Attr{Name: "uid", Value: strconv.FormatInt(int64(md.UserID), 10)},
		)
	}
	return attrs
}

// sortedTags returns tags sorted by key. PBF files have no tag order.
func sortedTags(tags osm.Tags) []element.Tag {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	result := make([]element.Tag, len(keys))
	for i, k := range keys {
		result[i] = element.Tag{Key: k, Value: tags[k]}
	}
	return result
}
