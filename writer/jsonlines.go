package writer

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/omniscale/osmshape/config"
	"github.com/omniscale/osmshape/element"
)

// JSONLines writes one JSON document per line, the format mongoimport
// expects.
type JSONLines struct {
	name string
	f    *os.File
	gz   *gzip.Writer
	buf  *bufio.Writer
	enc  *json.Encoder
}

// NewJSONLines creates filename. Files with .gz suffix are compressed,
// config.StdoutOutput writes to stdout.
func NewJSONLines(filename string) (*JSONLines, error) {
	jl := &JSONLines{name: filename}
	var w io.Writer
	if filename == config.StdoutOutput {
		jl.name = "stdout"
		w = os.Stdout
	} else {
		f, err := os.Create(filename)
		if err != nil {
			return nil, errors.Wrap(err, "creating output")
		}
		jl.f = f
		w = f
		if strings.HasSuffix(filename, ".gz") {
			jl.gz = gzip.NewWriter(f)
			w = jl.gz
		}
	}
	jl.buf = bufio.NewWriterSize(w, 64*1024)
	jl.enc = json.NewEncoder(jl.buf)
	jl.enc.SetEscapeHTML(false)
	return jl, nil
}

func (jl *JSONLines) Name() string {
	return jl.name
}

func (jl *JSONLines) Write(ctx context.Context, records []*element.Record) error {
	for _, rec := range records {
		if err := jl.enc.Encode(rec); err != nil {
			return errors.Wrapf(err, "encoding %s", rec.Type)
		}
	}
	return nil
}

func (jl *JSONLines) Close() error {
	if err := jl.buf.Flush(); err != nil {
		if jl.f != nil {
			jl.f.Close()
		}
		return err
	}
	if jl.gz != nil {
		if err := jl.gz.Close(); err != nil {
			jl.f.Close()
			return err
		}
	}
	if jl.f != nil {
		return jl.f.Close()
	}
	return nil
}
