package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	pls "github.com/behrlich/go-pls"
	"github.com/behrlich/go-pls/internal/logging"
)

func main() {
	var (
		backendStr = flag.String("backend", "seq", "Back-end: seq, oracle, tls, hw")
		threads    = flag.Int("threads", 0, "Worker count for tls/hw (0 = auto)")
		count      = flag.Int("n", 1000, "Number of tasks to enqueue")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if *verbose {
		logging.SetDefault(logging.NewLogger(&logging.Config{
			Level:  logging.LevelDebug,
			Output: os.Stderr,
		}))
	}

	var backend pls.BackendKind
	switch *backendStr {
	case "seq":
		backend = pls.Sequential
	case "oracle":
		backend = pls.Oracle
	case "tls":
		backend = pls.TLS
	case "hw":
		backend = pls.Hardware
	default:
		log.Fatalf("unknown backend %q", *backendStr)
	}

	rt, err := pls.New(pls.Config{
		Backend: backend,
		Threads: *threads,
	})
	if err != nil {
		log.Fatalf("failed to create runtime: %v", err)
	}

	// A tiny ordered workload: n tasks spread over the virtual-time
	// axis, plus a parallel reduction over a value array.
	values := make([]uint64, *count)
	for i := range values {
		values[i] = uint64(i)
	}
	var dispatched atomic.Uint64
	pls.EnqueueAll(rt, 0, *count, func(q pls.Enqueuer, i int) {
		q.EnqueueLambda(func(w *pls.Worker, ts pls.Timestamp) {
			dispatched.Add(1)
		}, pls.Timestamp(i), pls.NoHint())
	}, 0, pls.NoHint())

	var total uint64
	pls.Reduce(rt, values, 0, pls.SumOp[uint64](), pls.Timestamp(*count),
		func(w *pls.Worker, ts pls.Timestamp, result uint64) {
			total = result
			w.Info("reduction complete at ts=%d", ts)
		})

	if err := rt.Run(); err != nil {
		log.Fatalf("run failed: %v", err)
	}

	want := uint64(*count) * uint64(*count-1) / 2
	fmt.Printf("backend=%s dispatched=%d sum=%d (want %d)\n", backend, dispatched.Load(), total, want)

	snap := rt.Metrics().GetSnapshot()
	fmt.Printf("enqueues=%d dispatches=%d spills=%d requeues=%d elapsed=%dms\n",
		snap.Enqueues, snap.Dispatches, snap.Spills, snap.Requeues,
		snap.ElapsedNs/1_000_000)
}
