package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/menta2k/layout-viewer/pkg/queue"
	"github.com/menta2k/layout-viewer/pkg/types"
)

var (
	errSessionNotFound = errors.New("session not found")
	errInvalidIndex    = errors.New("invalid image index")
)

func (s *Server) Attach(r chi.Router) {
	r.Get("/healthz", s.handleHealth)

	r.Post("/sessions", s.handleCreateSession)

	r.Route("/sessions/{sid}", func(r chi.Router) {
		r.Delete("/", s.handleDeleteSession)

		r.Post("/images", s.handleUpload)
		r.Get("/images", s.handleList)

		r.Route("/images/{idx}", func(r chi.Router) {
			r.Get("/", s.handleRecord)
			r.Get("/source", s.handleSource)
			r.Post("/retry", s.handleRetry)

			r.Get("/result", s.handleResult)
			r.Get("/markdown", s.handleMarkdown)
			r.Get("/preview", s.handlePreview)
			r.Get("/annotated", s.handleAnnotated)
			r.Get("/export", s.handleExport)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

// session resolves the {sid} parameter, writing 404 when it is unknown
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*queue.Coordinator, bool) {
	q, ok := s.sessions.Get(chi.URLParam(r, "sid"))

	if !ok {
		writeError(w, http.StatusNotFound, errSessionNotFound)
		return nil, false
	}

	return q, true
}

// record resolves {sid} and {idx} against the latest snapshot
func (s *Server) record(w http.ResponseWriter, r *http.Request) (*queue.Coordinator, types.Record, bool) {
	q, ok := s.session(w, r)

	if !ok {
		return nil, types.Record{}, false
	}

	index, err := strconv.Atoi(chi.URLParam(r, "idx"))

	if err != nil {
		writeError(w, http.StatusBadRequest, errInvalidIndex)
		return nil, types.Record{}, false
	}

	record, ok := q.Snapshot().Record(index)

	if !ok {
		writeError(w, http.StatusNotFound, queue.ErrNotFound)
		return nil, types.Record{}, false
	}

	return q, record, true
}

func writeJson(w http.ResponseWriter, v any) {
	writeJsonStatus(w, http.StatusOK, v)
}

func writeJsonStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)

	text := http.StatusText(code)

	if err != nil {
		text = err.Error()
	}

	w.Write([]byte(text))
}
