// Package batch runs a set of page images through one upload queue and
// writes the archives, annotated pages and a merged document to disk.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	layoutviewer "github.com/menta2k/layout-viewer"
	"github.com/menta2k/layout-viewer/internal/utils"
	"github.com/menta2k/layout-viewer/pkg/client"
	"github.com/menta2k/layout-viewer/pkg/export"
	"github.com/menta2k/layout-viewer/pkg/markdown"
	"github.com/menta2k/layout-viewer/pkg/processing"
	"github.com/menta2k/layout-viewer/pkg/types"
)

type Options struct {
	// Inputs are image files, directories or http(s) URLs
	Inputs []string

	OutDir string

	// Pages selects from the collected inputs, see utils.ParsePages
	Pages string

	// Retries is the number of extra rounds for failed images
	Retries int

	// Merge is the path of the merged document, empty to skip
	Merge string

	// MediaDir holds the pictures of the merged document, relative to it
	MediaDir string

	// Annotate writes <base>_annotated.<format> next to the archives
	Annotate bool
	Format   string
	Quality  int
}

type Report struct {
	Done   []string
	Failed []string

	Archives []string
	Merged   string
}

type Runner struct {
	viewer    *layoutviewer.Viewer
	processor *processing.Processor
	logger    *slog.Logger
}

func New(viewer *layoutviewer.Viewer) *Runner {
	return &Runner{
		viewer:    viewer,
		processor: processing.NewProcessor(),
		logger:    slog.Default(),
	}
}

// Collect expands directories, orders everything by page number and applies
// the page selection
func Collect(inputs []string, pages string) ([]string, error) {
	var files []string

	for _, in := range inputs {
		if utils.DirExists(in) {
			list, err := utils.ListImageFiles(in)
			if err != nil {
				return nil, err
			}

			files = append(files, list...)
			continue
		}

		files = append(files, in)
	}

	utils.SortByPage(files)

	selected, err := utils.ParsePages(pages, len(files))
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(selected))
	for _, p := range selected {
		out = append(out, files[p-1])
	}

	return out, nil
}

func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	files, err := Collect(opts.Inputs, opts.Pages)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no images to process")
	}

	if err := utils.EnsureDir(opts.OutDir); err != nil {
		return nil, err
	}

	uploads := make([]client.Upload, 0, len(files))

	for _, f := range files {
		source, err := r.processor.LoadSource(f)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}

		uploads = append(uploads, client.Upload{
			Name:        source.Name,
			ContentType: source.ContentType,
			Data:        source.Data,
		})
	}

	session := r.viewer.NewSession()
	defer session.Close()

	if _, err := session.Enqueue(ctx, uploads...); err != nil {
		return nil, err
	}

	snapshot, err := session.WaitIdle(ctx)
	if err != nil {
		return nil, err
	}

	for round := 1; round <= opts.Retries; round++ {
		var failed []types.Record

		for _, rec := range snapshot.Records {
			if rec.Status == types.StatusError {
				failed = append(failed, rec)
			}
		}

		if len(failed) == 0 {
			break
		}

		r.logger.Info("retrying failed images", "round", round, "count", len(failed))

		for _, rec := range failed {
			if err := session.Retry(ctx, rec.Index); err != nil {
				return nil, err
			}
		}

		if snapshot, err = session.WaitIdle(ctx); err != nil {
			return nil, err
		}
	}

	return r.write(snapshot, opts)
}

func (r *Runner) write(snapshot *types.Snapshot, opts Options) (*Report, error) {
	report := &Report{}

	var pages []markdown.Page

	for _, rec := range snapshot.Records {
		if rec.Status != types.StatusDone {
			var reason string
			if rec.Result != nil {
				reason = rec.Result.Error
			}

			r.logger.Error("image failed", "name", rec.Name, "attempt", rec.Attempt, "error", reason)
			report.Failed = append(report.Failed, rec.Name)
			continue
		}

		bundle, err := r.viewer.Export(rec)
		if err != nil {
			r.logger.Error("export failed", "name", rec.Name, "error", err)
			report.Failed = append(report.Failed, rec.Name)
			continue
		}

		path, err := bundle.SaveZip(opts.OutDir)
		if err != nil {
			return nil, err
		}

		r.logger.Info("wrote archive", "path", path, "files", len(bundle.Files))

		report.Done = append(report.Done, rec.Name)
		report.Archives = append(report.Archives, path)

		if opts.Annotate {
			if err := r.annotate(rec, bundle.Base, opts); err != nil {
				r.logger.Error("annotate failed", "name", rec.Name, "error", err)
			}
		}

		if opts.Merge != "" {
			if err := r.writeMedia(rec, bundle, opts); err != nil {
				return nil, err
			}

			pages = append(pages, markdown.Page{
				Name:     rec.Name,
				Markdown: r.viewer.Markdown(rec),
			})
		}
	}

	if opts.Merge != "" && len(pages) > 0 {
		doc := markdown.Merge(pages, filepath.ToSlash(opts.MediaDir))

		if err := utils.EnsureDir(filepath.Dir(opts.Merge)); err != nil {
			return nil, err
		}

		if err := os.WriteFile(opts.Merge, []byte(doc), 0644); err != nil {
			return nil, fmt.Errorf("failed to write merged document: %w", err)
		}

		r.logger.Info("wrote merged document", "path", opts.Merge, "pages", len(pages))

		report.Merged = opts.Merge
	}

	return report, nil
}

// writeMedia copies the page's pictures into the media directory of the
// merged document under their merged names
func (r *Runner) writeMedia(rec types.Record, bundle *export.Bundle, opts Options) error {
	dir := filepath.Join(filepath.Dir(opts.Merge), opts.MediaDir)
	base := utils.BaseName(rec.Name)

	for n := 1; ; n++ {
		f, ok := bundle.File(markdown.PictureName(n))
		if !ok {
			return nil
		}

		if err := utils.EnsureDir(dir); err != nil {
			return err
		}

		if err := os.WriteFile(filepath.Join(dir, markdown.MediaName(base, n)), f.Data, 0644); err != nil {
			return err
		}
	}
}

func (r *Runner) annotate(rec types.Record, base string, opts Options) error {
	img, err := r.viewer.Annotate(rec, r.viewer.RenderOptions())
	if err != nil {
		return err
	}

	format := opts.Format
	if format == "" {
		format = "png"
	}

	path := filepath.Join(opts.OutDir, fmt.Sprintf("%s_annotated.%s", base, format))

	return r.processor.SaveImage(img, path, format, opts.Quality, false)
}
