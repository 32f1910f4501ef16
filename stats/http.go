package stats

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omniscale/osmshape/log"
)

func init() {
	http.Handle("/metrics", promhttp.Handler())
}

// StartHttpPProf serves /debug/pprof/ and /metrics on bind.
func StartHttpPProf(bind string) {
	go func() {
		log.Printf("[info] Serving pprof and metrics on %s", bind)
		log.Printf("[error] %s", http.ListenAndServe(bind, nil))
	}()
}
