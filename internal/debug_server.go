package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"medhub/domain"
	"medhub/observability"
)

// HubSnapshot is the debug endpoint's view of the hub: who is
// connected, which documents are locked, and the counters.
type HubSnapshot struct {
	Stats    observability.HubStats `json:"stats"`
	Sessions []domain.Session       `json:"sessions"`
	Locks    []domain.EditLock      `json:"locks"`
}

type SnapshotProvider func() HubSnapshot

// StartDebugServer serves the hub snapshot as JSON on its own port,
// away from the public API. Consumed by hubctl and by humans with curl.
func StartDebugServer(log *slog.Logger, port int, provider SnapshotProvider) {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/hub", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(provider()); err != nil {
			log.Warn("failed to encode hub snapshot", "error", err)
		}
	})

	go func() {
		addr := fmt.Sprintf("0.0.0.0:%d", port)
		log.Info("Debug server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("Debug server stopped", "error", err)
		}
	}()
}
