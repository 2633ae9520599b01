package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/menta2k/layout-viewer/pkg/client"
	"github.com/menta2k/layout-viewer/pkg/queue"
)

type SessionResponse struct {
	ID string `json:"id"`
}

type UploadResponse struct {
	Indices []int `json:"indices"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, _ := s.sessions.Create()

	s.logger.Info("session created", "session", id)

	writeJsonStatus(w, http.StatusCreated, SessionResponse{ID: id})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "sid")) {
		writeError(w, http.StatusNotFound, errSessionNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleUpload enqueues every "file" part of a multipart form in order
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	q, ok := s.session(w, r)

	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize())

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError

		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}

		writeError(w, http.StatusBadRequest, err)
		return
	}

	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]

	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("no files uploaded"))
		return
	}

	uploads := make([]client.Upload, 0, len(headers))

	for _, header := range headers {
		f, err := header.Open()

		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		data, err := io.ReadAll(f)
		f.Close()

		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		uploads = append(uploads, client.Upload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	indices, err := q.Enqueue(r.Context(), uploads...)

	if err != nil {
		writeQueueError(w, err)
		return
	}

	writeJsonStatus(w, http.StatusAccepted, UploadResponse{Indices: indices})
}

// handleList returns the snapshot; with ?since=V it waits for a newer one
// until ?wait (capped by the server) elapses
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q, ok := s.session(w, r)

	if !ok {
		return
	}

	val := r.URL.Query().Get("since")

	if val == "" {
		writeJson(w, q.Snapshot())
		return
	}

	since, err := strconv.ParseUint(val, 10, 64)

	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	wait := time.Duration(s.Server.MaxWait)

	if val := r.URL.Query().Get("wait"); val != "" {
		d, err := time.ParseDuration(val)

		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if wait <= 0 || d < wait {
			wait = d
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()

	snapshot, err := q.Wait(ctx, since)

	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		writeQueueError(w, err)
		return
	}

	writeJson(w, snapshot)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	_, record, ok := s.record(w, r)

	if !ok {
		return
	}

	writeJson(w, record)
}

// handleSource serves the original bytes of an image
func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	_, record, ok := s.record(w, r)

	if !ok {
		return
	}

	contentType := record.ContentType

	if contentType == "" {
		contentType = http.DetectContentType(record.Source)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(record.Source)))

	w.Write(record.Source)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	q, record, ok := s.record(w, r)

	if !ok {
		return
	}

	if err := q.Retry(r.Context(), record.Index); err != nil {
		writeQueueError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func writeQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusGone, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
