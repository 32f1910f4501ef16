package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"runtime"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Config is the content of the optional JSON file passed with -config.
// Options from the command line take precedence.
type Config struct {
	Region     string      `json:"region"`
	Output     string      `json:"output"`
	Mongo      MongoConfig `json:"mongo"`
	Connection string      `json:"connection"`
	Table      string      `json:"table"`
	Workers    int         `json:"workers"`
	BatchSize  int         `json:"batch_size"`
}

type MongoConfig struct {
	URI        string `json:"uri"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

const (
	defaultBatchSize       = 1000
	defaultMongoDatabase   = "osm"
	defaultMongoCollection = "elements"
	defaultTable           = "osm_elements"
)

// StdoutOutput writes JSON lines to stdout instead of a file.
const StdoutOutput = "-"

type Options struct {
	Input      string
	ConfigFile string
	RegionFile string
	Region     Region `validate:"-"`

	// Output is the JSON lines file. Defaults to <input>.json if no other
	// output is configured.
	Output          string
	MongoURI        string `validate:"omitempty,uri"`
	MongoDatabase   string
	MongoCollection string
	// Connection is a PostgreSQL connection string (postgres://...).
	Connection string
	Table      string

	Workers     int    `validate:"gte=0"`
	BatchSize   int    `validate:"gt=0"`
	Httpprofile string `validate:"omitempty,hostname_port"`
	Quiet       bool
	Debug       bool
}

var validate = validator.New()

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

var passwordParamRe = regexp.MustCompile(`(password\s*=\s*)('[^']*'|\S+)`)

// Redacted returns a copy of the options without passwords in MongoURI and
// Connection.
func (o Options) Redacted() Options {
	o.MongoURI = redactPassword(o.MongoURI)
	o.Connection = redactPassword(o.Connection)
	return o
}

func redactPassword(conn string) string {
	if conn == "" {
		return conn
	}
	if u, err := url.Parse(conn); err == nil && u.User != nil {
		return u.Redacted()
	}
	return passwordParamRe.ReplaceAllString(conn, "${1}xxxxx")
}

func newFlagSet(name string, opts *Options, handling flag.ErrorHandling) *flag.FlagSet {
	flags := flag.NewFlagSet(name, handling)
	flags.StringVar(&opts.ConfigFile, "config", "", "config (json)")
	flags.StringVar(&opts.RegionFile, "region", "", "region rules (yaml), defaults to berlin")
	flags.IntVar(&opts.Workers, "workers", 0, "number of shaping workers, defaults to number of CPUs")
	flags.IntVar(&opts.BatchSize, "batch-size", 0, "number of elements per batch")
	flags.StringVar(&opts.Httpprofile, "httpprofile", "", "bind address for profile and metrics server")
	flags.BoolVar(&opts.Quiet, "quiet", false, "only log warnings and errors")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debug log output")
	if name == "shape" {
		flags.StringVar(&opts.Output, "output", "", "JSON lines output file (- for stdout, .gz to compress)")
		flags.StringVar(&opts.MongoURI, "mongo", "", "MongoDB URI (mongodb://host:port)")
		flags.StringVar(&opts.MongoDatabase, "mongo-db", "", "MongoDB database")
		flags.StringVar(&opts.MongoCollection, "mongo-collection", "", "MongoDB collection")
		flags.StringVar(&opts.Connection, "connection", "", "PostgreSQL connection (postgres://...)")
		flags.StringVar(&opts.Table, "table", "", "PostgreSQL table")
	}
	return flags
}

func usage(flags *flag.FlagSet, args string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s [args] %s\n\n", os.Args[0], flags.Name(), args)
		flags.PrintDefaults()
	}
}

// ParseShape parses the arguments of the shape sub command. Exits on errors.
func ParseShape(args []string) Options {
	return parseOrExit("shape", args)
}

// ParseAudit parses the arguments of the audit sub command. Exits on errors.
func ParseAudit(args []string) Options {
	return parseOrExit("audit", args)
}

func parseOrExit(name string, args []string) Options {
	opts := Options{}
	flags := newFlagSet(name, &opts, flag.ExitOnError)
	flags.Usage = usage(flags, "file.osm[.gz|.bz2|.pbf]")
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}
	errs := parse(flags, &opts, args)
	if len(errs) != 0 {
		reportErrors(errs)
		flags.Usage()
		os.Exit(2)
	}
	return opts
}

func parse(flags *flag.FlagSet, opts *Options, args []string) []error {
	if err := flags.Parse(args); err != nil {
		return []error{err}
	}
	if flags.NArg() != 1 {
		return []error{errors.New("expected exactly one input file")}
	}
	opts.Input = flags.Arg(0)

	if err := opts.updateFromConfig(flags.Name()); err != nil {
		return []error{err}
	}
	return opts.check(flags.Name())
}

func (o *Options) updateFromConfig(cmd string) error {
	conf := &Config{}
	if o.ConfigFile != "" {
		f, err := os.Open(o.ConfigFile)
		if err != nil {
			return errors.Wrap(err, "opening config")
		}
		defer f.Close()
		decoder := json.NewDecoder(f)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(conf); err != nil {
			return errors.Wrapf(err, "decoding config %s", o.ConfigFile)
		}
	}

	if o.RegionFile == "" {
		o.RegionFile = conf.Region
	}
	if o.Workers == 0 {
		o.Workers = conf.Workers
	}
	if o.Workers == 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.BatchSize == 0 {
		o.BatchSize = conf.BatchSize
	}
	if o.BatchSize == 0 {
		o.BatchSize = defaultBatchSize
	}

	if o.RegionFile != "" {
		r, err := LoadRegion(o.RegionFile)
		if err != nil {
			return err
		}
		o.Region = r
	} else {
		o.Region = Berlin
	}

	if cmd != "shape" {
		return nil
	}

	if o.Output == "" {
		o.Output = conf.Output
	}
	if o.MongoURI == "" {
		o.MongoURI = conf.Mongo.URI
	}
	if o.MongoDatabase == "" {
		o.MongoDatabase = conf.Mongo.Database
	}
	if o.MongoDatabase == "" {
		o.MongoDatabase = defaultMongoDatabase
	}
	if o.MongoCollection == "" {
		o.MongoCollection = conf.Mongo.Collection
	}
	if o.MongoCollection == "" {
		o.MongoCollection = defaultMongoCollection
	}
	if o.Connection == "" {
		o.Connection = conf.Connection
	}
	if o.Table == "" {
		o.Table = conf.Table
	}
	if o.Table == "" {
		o.Table = defaultTable
	}
	if o.Output == "" && o.MongoURI == "" && o.Connection == "" {
		// mongoimport friendly default next to the input file
		o.Output = o.Input + ".json"
	}
	return nil
}

func (o *Options) check(cmd string) []error {
	errs := validationErrors(validate.Struct(o))
	if o.Quiet && o.Debug {
		errs = append(errs, errors.New("-quiet and -debug are exclusive"))
	}
	if cmd == "shape" && !tableNameRe.MatchString(o.Table) {
		errs = append(errs, errors.Errorf("invalid table name %q", o.Table))
	}
	if o.Output != "" && o.Output != StdoutOutput && o.Output == o.Input {
		errs = append(errs, errors.New("output would overwrite input"))
	}
	return errs
}

func validationErrors(err error) []error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []error{err}
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			errs = append(errs, errors.Errorf("invalid %s: %v (%s=%s)", fe.Field(), fe.Value(), fe.Tag(), fe.Param()))
		} else {
			errs = append(errs, errors.Errorf("invalid %s: %v (%s)", fe.Field(), fe.Value(), fe.Tag()))
		}
	}
	return errs
}

func reportErrors(errs []error) {
	fmt.Fprintln(os.Stderr, "errors in config/options:")
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "\t%s\n", err)
	}
}
