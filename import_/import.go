/*
Package import_ provides the shape sub command. It reads an OSM file, shapes
all elements and writes the records to the configured outputs.
*/
package import_

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/omniscale/osmshape/config"
	"github.com/omniscale/osmshape/element"
	"github.com/omniscale/osmshape/log"
	"github.com/omniscale/osmshape/parser/osmxml"
	"github.com/omniscale/osmshape/reader"
	"github.com/omniscale/osmshape/shape"
	"github.com/omniscale/osmshape/stats"
	"github.com/omniscale/osmshape/writer"
)

// batch keeps the position of a batch in the input. The writer uses seq to
// restore the input order after the concurrent shaping.
type batch struct {
	seq     int
	elems   []element.Element
	records []*element.Record
}

// Import shapes opts.Input into all configured outputs.
func Import(ctx context.Context, opts config.Options) (stats.Summary, error) {
	shaper, err := shape.New(opts.Region)
	if err != nil {
		return stats.Summary{}, errors.Wrap(err, "initializing shaper")
	}

	sink, err := writer.Open(ctx, opts)
	if err != nil {
		return stats.Summary{}, err
	}

	step := log.Step("Shaping " + opts.Input)
	progress := stats.StatsReporter()
	err = run(ctx, opts, shaper, sink, progress)
	summary := progress.Stop()

	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return summary, err
	}
	step()
	log.Printf("[info] Shaped %s", summary)
	return summary, nil
}

func run(ctx context.Context, opts config.Options, shaper *shape.Shaper, sink writer.Sink, progress *stats.Statistics) error {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	elems := make(chan []element.Element, workers)
	jobs := make(chan *batch, workers)
	results := make(chan *batch, workers)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := reader.Read(ctx, opts.Input, reader.Config{
			Elements:    elems,
			BatchSize:   opts.BatchSize,
			Concurrency: workers,
		})
		if perr, ok := errors.Cause(err).(*osmxml.ParseError); ok {
			// keep everything before the error
			progress.Message(fmt.Sprintf("[warn] stopped reading %s: %s", opts.Input, perr))
			return nil
		}
		return err
	})

	g.Go(func() error {
		defer close(jobs)
		seq := 0
		for es := range elems {
			progress.AddRead(len(es))
			select {
			case jobs <- &batch{seq: seq, elems: es}:
			case <-ctx.Done():
				return ctx.Err()
			}
			seq++
		}
		return nil
	})

	wg := sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for b := range jobs {
				shapeBatch(shaper, b, progress)
				select {
				case results <- b:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		wg.Wait()
		close(results)
		return nil
	})

	g.Go(func() error {
		return writeInOrder(ctx, sink, results, progress)
	})

	return g.Wait()
}

func shapeBatch(shaper *shape.Shaper, b *batch, progress *stats.Statistics) {
	b.records = make([]*element.Record, 0, len(b.elems))
	excluded := make(map[shape.Reason]int)
	for i := range b.elems {
		rec, reason := shaper.ShapeReason(&b.elems[i])
		if rec == nil {
			excluded[reason]++
			continue
		}
		b.records = append(b.records, rec)
	}
	for reason, n := range excluded {
		progress.AddExcluded(reason.String(), n)
	}
	b.elems = nil
}

// writeInOrder passes the records of all results to sink, ordered by seq.
func writeInOrder(ctx context.Context, sink writer.Sink, results chan *batch, progress *stats.Statistics) error {
	pending := make(map[int]*batch)
	next := 0
	for res := range results {
		pending[res.seq] = res
		for {
			b, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if len(b.records) == 0 {
				continue
			}
			if err := sink.Write(ctx, b.records); err != nil {
				return err
			}
			written := make(map[string]int)
			for _, rec := range b.records {
				written[rec.Type]++
			}
			for kind, n := range written {
				progress.AddWritten(kind, n)
			}
		}
	}
	return nil
}
