package audit

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/omniscale/osmshape/config"
	"github.com/omniscale/osmshape/element"
	"github.com/omniscale/osmshape/log"
	"github.com/omniscale/osmshape/parser/osmxml"
	"github.com/omniscale/osmshape/reader"
)

// Run audits opts.Input and prints the report to w.
func Run(ctx context.Context, opts config.Options, w io.Writer) error {
	a, err := New(opts.Region)
	if err != nil {
		return errors.Wrap(err, "initializing auditor")
	}

	step := log.Step("Auditing " + opts.Input)
	elems := make(chan []element.Element, 4)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := reader.Read(ctx, opts.Input, reader.Config{
			Elements:  elems,
			BatchSize: opts.BatchSize,
		})
		if _, ok := errors.Cause(err).(*osmxml.ParseError); ok {
			log.Warnf("%s, audit is incomplete", errors.Cause(err))
			return nil
		}
		return err
	})
	g.Go(func() error {
		for batch := range elems {
			for i := range batch {
				a.Add(&batch[i])
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	step()

	return a.Report().Print(w)
}
