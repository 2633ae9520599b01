package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/menta2k/layout-viewer/pkg/export"
	"github.com/menta2k/layout-viewer/pkg/processing"
	"github.com/menta2k/layout-viewer/pkg/render"
)

var errNoResult = errors.New("image has no result yet")

// handleResult returns the stored payload pretty printed
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	_, record, ok := s.record(w, r)

	if !ok {
		return
	}

	if record.Result == nil {
		writeError(w, http.StatusConflict, errNoResult)
		return
	}

	data, err := json.MarshalIndent(record.Result, "", "  ")

	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(append(data, '\n'))
}

func (s *Server) handleMarkdown(w http.ResponseWriter, r *http.Request) {
	_, record, ok := s.record(w, r)

	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(s.viewer.Markdown(record)))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	_, record, ok := s.record(w, r)

	if !ok {
		return
	}

	html, err := s.viewer.Preview(record)

	if err != nil {
		writeExportError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// handleAnnotated renders the image with its boxes; see renderOptions for the
// query parameters
func (s *Server) handleAnnotated(w http.ResponseWriter, r *http.Request) {
	_, record, ok := s.record(w, r)

	if !ok {
		return
	}

	opts, err := s.renderOptions(r)

	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))

	if format == "" {
		format = s.Render.Format
	}

	img, err := s.viewer.Annotate(record, opts)

	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	var buf bytes.Buffer

	if err := s.viewer.Encode(&buf, img, format); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", processing.ContentType(format))
	w.Write(buf.Bytes())
}

// renderOptions reads w, h, zoom, x, y and boxes on top of the configured
// defaults
func (s *Server) renderOptions(r *http.Request) (render.Options, error) {
	opts := s.viewer.RenderOptions()
	query := r.URL.Query()

	ints := map[string]*int{
		"w": &opts.Width,
		"h": &opts.Height,
	}

	limits := map[string]int{
		"w": s.Render.MaxWidth,
		"h": s.Render.MaxHeight,
	}

	for name, dst := range ints {
		if val := query.Get(name); val != "" {
			v, err := strconv.Atoi(val)

			if err != nil || v < 0 {
				return opts, errors.New("invalid " + name)
			}

			if v > limits[name] {
				return opts, fmt.Errorf("%s exceeds %d", name, limits[name])
			}

			*dst = v
		}
	}

	floats := map[string]*float64{
		"x": &opts.Viewport.X,
		"y": &opts.Viewport.Y,
	}

	for name, dst := range floats {
		if val := query.Get(name); val != "" {
			v, err := strconv.ParseFloat(val, 64)

			if err != nil {
				return opts, errors.New("invalid " + name)
			}

			*dst = v
		}
	}

	if val := query.Get("zoom"); val != "" {
		v, err := strconv.ParseFloat(val, 64)

		if err != nil {
			return opts, errors.New("invalid zoom")
		}

		opts.Viewport.SetScale(v)
	}

	if val := query.Get("boxes"); val != "" {
		v, err := strconv.ParseBool(val)

		if err != nil {
			return opts, errors.New("invalid boxes")
		}

		opts.ShowBoxes = v
	}

	return opts, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	_, record, ok := s.record(w, r)

	if !ok {
		return
	}

	bundle, err := s.viewer.Export(record)

	if err != nil {
		writeExportError(w, err)
		return
	}

	var buf bytes.Buffer

	if err := bundle.WriteZip(&buf); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.logger.Info("export created", "name", bundle.Name(), "files", len(bundle.Files), "size", buf.Len())

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": bundle.Name()}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))

	w.Write(buf.Bytes())
}

func writeExportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, export.ErrNotDone):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, export.ErrEmptyCrop):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
