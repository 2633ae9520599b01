package batch

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	layoutviewer "github.com/menta2k/layout-viewer"
	"github.com/menta2k/layout-viewer/pkg/client"
	"github.com/menta2k/layout-viewer/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{"objects":[{"type":"text","bbox":[0,0,20,5],"text":"Page text"},{"type":"picture","bbox":[0,10,10,20]}]}`

func writePages(t *testing.T, dir string, names ...string) {
	t.Helper()

	for _, name := range names {
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)

		require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 30, 30))))
		require.NoError(t, f.Close())
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writePages(t, dir, "doc_page_10.png", "doc_page_2.png", "doc_page_1.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	files, err := Collect([]string{dir}, "")
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"doc_page_1.png", "doc_page_2.png", "doc_page_10.png"}, names)

	files, err = Collect([]string{dir}, "2,")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "doc_page_2.png", filepath.Base(files[0]))

	_, err = Collect([]string{dir}, "x")
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	writePages(t, in, "doc_page_2.png", "doc_page_1.png", "doc_page_3.png")

	var mu sync.Mutex
	calls := map[string]int{}

	remote := client.LayoutClientFunc(func(ctx context.Context, upload client.Upload) (*types.Result, error) {
		mu.Lock()
		calls[upload.Name]++
		n := calls[upload.Name]
		mu.Unlock()

		// page 2 fails once, page 3 always
		if (upload.Name == "doc_page_2.png" && n == 1) || upload.Name == "doc_page_3.png" {
			return nil, errors.New("busy")
		}

		return types.DecodeResult([]byte(payload))
	})

	viewer := layoutviewer.NewWithClient(layoutviewer.DefaultConfig(), remote)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report, err := New(viewer).Run(ctx, Options{
		Inputs:   []string{in},
		OutDir:   out,
		Retries:  2,
		Merge:    filepath.Join(out, "merged.md"),
		MediaDir: "media",
		Annotate: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"doc_page_1.png", "doc_page_2.png"}, report.Done)
	assert.Equal(t, []string{"doc_page_3.png"}, report.Failed)
	assert.Equal(t, 3, calls["doc_page_3.png"])
	assert.Equal(t, 2, calls["doc_page_2.png"])

	for _, name := range []string{"doc_page_1.zip", "doc_page_2.zip", "doc_page_1_annotated.png", "media/doc_page_1_picture_1.png", "media/doc_page_2_picture_1.png"} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	assert.NoFileExists(t, filepath.Join(out, "doc_page_3.zip"))

	merged, err := os.ReadFile(report.Merged)
	require.NoError(t, err)

	want := "Page text\n\n![Picture 1](media/doc_page_1_picture_1.png)\n\nPage text\n\n![Picture 1](media/doc_page_2_picture_1.png)\n"
	assert.Equal(t, want, string(merged))
}

func TestRunWithoutImages(t *testing.T) {
	viewer := layoutviewer.NewWithClient(layoutviewer.DefaultConfig(), nil)

	_, err := New(viewer).Run(context.Background(), Options{Inputs: []string{t.TempDir()}, OutDir: t.TempDir()})
	assert.Error(t, err)
}
