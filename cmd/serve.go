package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/qw4990/online_index_advisor/advisor"
	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/metrics"
	"github.com/qw4990/online_index_advisor/utils"
)

// newAdvisorMux exposes the metrics and accepts votes while tuning.
//
//	POST /vote?index=test.t(a,b)&positive=true
func newAdvisorMux(pool *candidate.Pool, sel *advisor.Selector) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/vote", voteHandler(pool, sel))
	return mux
}

func voteHandler(pool *candidate.Pool, sel *advisor.Selector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		key := r.URL.Query().Get("index")
		positive, err := strconv.ParseBool(r.URL.Query().Get("positive"))
		if err != nil {
			http.Error(w, "positive should be true or false", http.StatusBadRequest)
			return
		}
		idx := findCandidate(pool.Snapshot(), key)
		if idx == nil {
			http.Error(w, fmt.Sprintf("candidate %v not found", key), http.StatusNotFound)
			return
		}
		if positive {
			sel.PositiveVote(idx)
		} else {
			sel.NegativeVote(idx)
		}
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintf(w, "vote on %v queued\n", idx.Key())
	}
}

func findCandidate(snapshot *candidate.Snapshot, key string) *candidate.Index {
	for _, idx := range snapshot.Indexes() {
		if idx.Key() == key {
			return idx
		}
	}
	return nil
}

// serveHTTP serves handler on addr in the background until stop is called.
func serveHTTP(addr string, handler http.Handler) (stop func()) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		utils.Infof("serve metrics and votes on %v", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Errorf("http server on %v stopped: %v", addr, err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			utils.Warningf("failed to shutdown http server: %v", err)
		}
	}
}
