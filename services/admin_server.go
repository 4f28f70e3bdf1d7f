// Package services contains long-running HTTP services that expose
// the cover pipeline to operators. The admin server is the only
// process-external surface: everything else in this module is called
// as a library or through NSQ.
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/op/go-logging"
	"github.com/readhaven/cover-services/cleanup"
	"github.com/readhaven/cover-services/models/common"
)

// AdminServer answers operator requests: cleanup dry runs, quarantine
// moves, resolution-trace lookups, and a health check. It binds to
// localhost only; production deployments reach it through a tunnel or
// sidecar, never directly.
type AdminServer struct {
	context        *common.Context
	cleanupService *cleanup.Service
	logger         *logging.Logger
}

// NewAdminServer builds the server and its cleanup service. This is
// the right place to fail on a bad siegfried signature path: the
// process should not come up half-configured.
func NewAdminServer(context *common.Context) *AdminServer {
	return &AdminServer{
		context:        context,
		cleanupService: cleanup.NewService(context),
		logger:         context.Logger,
	}
}

// Handler returns the admin route table. Serve uses it, and tests
// mount it on a throwaway listener.
func (server *AdminServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/s3-cleanup/dry-run", server.makeDryRunHandler())
	mux.HandleFunc("/admin/s3-cleanup/move-flagged", server.makeMoveFlaggedHandler())
	mux.HandleFunc("/admin/covers/trace", server.makeTraceHandler())
	mux.HandleFunc("/ping", server.makePingHandler())
	return mux
}

// Serve blocks, listening on the configured admin port.
func (server *AdminServer) Serve() {
	listenAddr := fmt.Sprintf("127.0.0.1:%d", server.context.Config.AdminServicePort)
	server.logger.Infof("Admin service is running at %s", listenAddr)
	err := http.ListenAndServe(listenAddr, server.Handler())
	if err != nil {
		server.logger.Fatal(err)
	}
}

// makeDryRunHandler reports what a cleanup pass would flag under a
// prefix, without touching anything. The response is plain text so
// operators can pipe it straight into shell tooling: a Scanned line,
// a Flagged line, then one flagged key per line.
func (server *AdminServer) makeDryRunHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		prefix := r.FormValue("prefix")
		limit, err := parseLimit(r.FormValue("limit"))
		if err != nil {
			http.Error(w, "Param 'limit' must be an integer.", http.StatusBadRequest)
			return
		}
		summary, err := server.cleanupService.DryRun(r.Context(), prefix, limit)
		if err != nil {
			server.logger.Errorf("[%s] Cleanup dry run on prefix %q failed: %v",
				r.RemoteAddr, prefix, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		server.logger.Infof("[%s] Cleanup dry run on prefix %q scanned %d, flagged %d",
			r.RemoteAddr, prefix, summary.TotalScanned, summary.TotalFlagged)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, summary.PlainText())
	}
}

// makeMoveFlaggedHandler re-scans a prefix and moves what it flags
// into the quarantine prefix. Parameter validation happens before any
// listing, so a bad request returns 400 without a single store call.
func (server *AdminServer) makeMoveFlaggedHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			server.writeJSONError(w, http.StatusMethodNotAllowed, "Use POST.")
			return
		}
		prefix := r.FormValue("prefix")
		quarantinePrefix := r.FormValue("quarantinePrefix")
		limit, err := parseLimit(r.FormValue("limit"))
		if err != nil {
			server.writeJSONError(w, http.StatusBadRequest, "Param 'limit' must be an integer.")
			return
		}
		summary, err := server.cleanupService.MoveFlagged(r.Context(), prefix, quarantinePrefix, limit)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, cleanup.ErrQuarantinePrefixRequired) ||
				errors.Is(err, cleanup.ErrQuarantinePrefixEqualsPrefix) {
				status = http.StatusBadRequest
			}
			server.logger.Errorf("[%s] Quarantine move from %q to %q failed: %v",
				r.RemoteAddr, prefix, quarantinePrefix, err)
			server.writeJSONError(w, status, err.Error())
			return
		}
		server.logger.Infof("[%s] Batch %s moved %d of %d flagged objects from %q to %q",
			r.RemoteAddr, summary.BatchID, summary.MovedCount, summary.TotalFlagged,
			prefix, quarantinePrefix)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		jsonResponse, _ := json.Marshal(summary)
		w.Write(jsonResponse)
	}
}

// makeTraceHandler returns the latest resolution trace for a book
// key, straight from Redis. Diagnostic only.
func (server *AdminServer) makeTraceHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.FormValue("key")
		if key == "" {
			server.writeJSONError(w, http.StatusBadRequest, "Param 'key' is required.")
			return
		}
		trace, err := server.context.RedisClient.TraceGet(key)
		if err != nil {
			server.writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		jsonData, err := trace.ToJSON()
		if err != nil {
			server.writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, jsonData)
	}
}

func (server *AdminServer) makePingHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		jsonResponse, _ := json.Marshal(map[string]string{"status": "ok"})
		w.Write(jsonResponse)
	}
}

func (server *AdminServer) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	jsonResponse, _ := json.Marshal(map[string]string{"error": message})
	w.Write(jsonResponse)
}

// parseLimit reads the optional limit param. Empty, zero, and
// negative all mean unlimited; only a non-integer is rejected.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
