/*
Package writer stores shaped records. Records can be written as JSON lines,
into a MongoDB collection or into a PostgreSQL jsonb table.
*/
package writer

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/omniscale/osmshape/config"
	"github.com/omniscale/osmshape/element"
	"github.com/omniscale/osmshape/log"
	"github.com/omniscale/osmshape/stats"
)

// Sink receives batches of records in input order. Write is never called
// concurrently.
type Sink interface {
	Name() string
	Write(ctx context.Context, records []*element.Record) error
	Close() error
}

// Multi writes each batch to all sinks.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

func (m *Multi) Write(ctx context.Context, records []*element.Record) error {
	for _, s := range m.sinks {
		start := time.Now()
		if err := s.Write(ctx, records); err != nil {
			return errors.Wrapf(err, "writing to %s", s.Name())
		}
		stats.ObserveWrite(s.Name(), time.Since(start))
	}
	return nil
}

// Close closes all sinks and returns the first error.
func (m *Multi) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			log.Printf("[error] closing %s: %s", s.Name(), err)
			if first == nil {
				first = errors.Wrapf(err, "closing %s", s.Name())
			}
		}
	}
	return first
}

// Open creates all sinks configured in opts. Already opened sinks are closed
// if one fails.
func Open(ctx context.Context, opts config.Options) (*Multi, error) {
	m := &Multi{}
	fail := func(err error) (*Multi, error) {
		m.Close()
		return nil, err
	}

	if opts.Output != "" {
		s, err := NewJSONLines(opts.Output)
		if err != nil {
			return fail(err)
		}
		m.sinks = append(m.sinks, s)
	}
	if opts.MongoURI != "" {
		s, err := NewMongo(ctx, MongoConfig{
			URI:        opts.MongoURI,
			Database:   opts.MongoDatabase,
			Collection: opts.MongoCollection,
		})
		if err != nil {
			return fail(err)
		}
		m.sinks = append(m.sinks, s)
	}
	if opts.Connection != "" {
		s, err := NewPostgres(ctx, opts.Connection, opts.Table)
		if err != nil {
			return fail(err)
		}
		m.sinks = append(m.sinks, s)
	}
	if len(m.sinks) == 0 {
		return nil, errors.New("no output configured")
	}
	log.Printf("[info] Writing to %s", m.Name())
	return m, nil
}
