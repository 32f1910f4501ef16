package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/omniscale/osmshape"
	"github.com/omniscale/osmshape/audit"
	"github.com/omniscale/osmshape/config"
	"github.com/omniscale/osmshape/import_"
	"github.com/omniscale/osmshape/log"
	"github.com/omniscale/osmshape/stats"
)

func PrintCmds() {
	fmt.Fprintf(os.Stderr, "Usage: %s COMMAND [args]\n\n", os.Args[0])
	fmt.Println("Available commands:")
	fmt.Println("\tshape")
	fmt.Println("\taudit")
	fmt.Println("\tversion")
}

func setup(opts config.Options) {
	if opts.Quiet {
		log.SetMinLevel(log.LWarn)
	}
	if opts.Debug {
		log.SetMinLevel(log.LDebug)
	}
	if opts.Httpprofile != "" {
		stats.StartHttpPProf(opts.Httpprofile)
	}
	log.Debugf("options: %+v", opts.Redacted())
}

func Main(usage func()) {
	if len(os.Args) <= 1 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "shape":
		opts := config.ParseShape(os.Args[2:])
		setup(opts)
		if _, err := import_.Import(ctx, opts); err != nil {
			log.Fatal(err)
		}
	case "audit":
		opts := config.ParseAudit(os.Args[2:])
		setup(opts)
		if err := audit.Run(ctx, opts, os.Stdout); err != nil {
			log.Fatal(err)
		}
	case "version":
		fmt.Println(osmshape.Version)
	default:
		usage()
		log.Fatalf("invalid command: '%s'", os.Args[1])
	}
}

func main() {
	Main(PrintCmds)
}
