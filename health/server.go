package health

import (
	"net/http"
)

// Readiness reports whether the process can take participants.
type Readiness interface {
	Ready() bool
}

// Register mounts /healthz and /readyz. A nil readiness is always ready.
func Register(mux *http.ServeMux, ready Readiness) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
}
