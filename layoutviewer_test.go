package layoutviewer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/menta2k/layout-viewer/internal/config"
	"github.com/menta2k/layout-viewer/pkg/client"
	"github.com/menta2k/layout-viewer/pkg/detection"
	"github.com/menta2k/layout-viewer/pkg/types"
)

// createTestImage creates a white page with a dark block in the upper left
func createTestImage(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA{255, 255, 255, 255}
			if x < width/2 && y < height/2 {
				c = color.NRGBA{32, 32, 32, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

const testPayload = `{"objects":[
	{"type":"page-header","bbox":[0,0,80,5],"text":"Report","label":"header"},
	{"type":"picture","bbox":[0,0,40,30],"label":"chart"},
	{"type":"list_item","bbox":[0,40,80,45],"text":"first point"}
]}`

func newLayoutServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/objects" {
			http.NotFound(w, r)
			return
		}

		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testPayload))
	}))

	t.Cleanup(server.Close)

	return server
}

func TestNewClientBackends(t *testing.T) {
	for _, backend := range []string{config.BackendHTTP, config.BackendOllama, config.BackendLlamaCpp} {
		cfg := DefaultConfig()
		cfg.Remote.Backend = backend
		cfg.Remote.RateLimit = 60

		c, err := NewClient(cfg)
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}

		if _, ok := c.(*detection.Detector); !ok {
			t.Errorf("%s: expected uploads to be validated first, got %T", backend, c)
		}
	}

	cfg := DefaultConfig()
	cfg.Remote.Backend = "grpc"

	if _, err := NewClient(cfg); err == nil {
		t.Error("expected error for unknown backend")
	}

	if _, err := New(cfg); err == nil {
		t.Error("expected invalid config to be rejected")
	}
}

func TestSessionEndToEnd(t *testing.T) {
	server := newLayoutServer(t)

	cfg := DefaultConfig()
	cfg.Remote.URL = server.URL + "/api/objects"

	viewer, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session := viewer.NewSession()
	defer session.Close()

	data := createTestImage(t, 80, 50)

	indices, err := session.Enqueue(ctx,
		client.Upload{Name: "report_page_1.png", ContentType: "image/png", Data: data},
		client.Upload{Name: "notes.txt", Data: []byte("plain text")},
	)
	if err != nil {
		t.Fatal(err)
	}

	if len(indices) != 2 {
		t.Fatalf("expected 2 indices, got %v", indices)
	}

	snapshot, err := session.WaitIdle(ctx)
	if err != nil {
		t.Fatal(err)
	}

	page := snapshot.Records[0]
	if page.Status != types.StatusDone {
		t.Fatalf("expected done, got %s (%+v)", page.Status, page.Result)
	}

	// unsupported uploads fail on their own
	if snapshot.Records[1].Status != types.StatusError {
		t.Errorf("expected error for text upload, got %s", snapshot.Records[1].Status)
	}

	want := "# Report\n\n![Picture 1](picture_1.png)\n\n- first point\n"
	if got := viewer.Markdown(page); got != want {
		t.Errorf("unexpected markdown:\n%q\nwant\n%q", got, want)
	}

	bundle, err := viewer.Export(page)
	if err != nil {
		t.Fatal(err)
	}

	if bundle.Name() != "report_page_1.zip" {
		t.Errorf("unexpected archive name %s", bundle.Name())
	}

	if len(bundle.Files) != 3 {
		t.Errorf("expected 3 files, got %d", len(bundle.Files))
	}

	if _, err := viewer.Export(snapshot.Records[1]); err == nil {
		t.Error("expected export of failed record to fail")
	}
}

func TestAnnotate(t *testing.T) {
	result, err := types.DecodeResult([]byte(testPayload))
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Render.Width = 160

	viewer := NewWithClient(cfg, nil)

	record := types.Record{
		Name:   "page.png",
		Source: createTestImage(t, 80, 50),
		Status: types.StatusDone,
		Result: result,
	}

	img, err := viewer.Annotate(record, viewer.RenderOptions())
	if err != nil {
		t.Fatal(err)
	}

	if img.Bounds().Dx() != 160 || img.Bounds().Dy() != 100 {
		t.Errorf("unexpected size %v", img.Bounds())
	}

	var buf bytes.Buffer
	if err := viewer.Encode(&buf, img, ""); err != nil {
		t.Fatal(err)
	}

	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("expected png output: %v", err)
	}

	// the configured cap applies to unconstrained renders too
	cfg.Render.Width = 0
	cfg.Render.MaxWidth = 40
	cfg.Render.MaxHeight = 40

	img, err = viewer.Annotate(record, viewer.RenderOptions())
	if err != nil {
		t.Fatal(err)
	}

	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 25 {
		t.Errorf("unexpected capped size %v", img.Bounds())
	}

	record.Source = []byte("not an image")
	if _, err := viewer.Annotate(record, viewer.RenderOptions()); err == nil {
		t.Error("expected decode error")
	}
}

func TestSetupTelemetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telemetry.Enabled = false

	shutdown, err := SetupTelemetry(context.Background(), cfg, "layout-viewer")
	if err != nil {
		t.Fatal(err)
	}

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestPreview(t *testing.T) {
	result, err := types.DecodeResult([]byte(testPayload))
	if err != nil {
		t.Fatal(err)
	}

	viewer := NewWithClient(DefaultConfig(), nil)

	html, err := viewer.Preview(types.Record{
		Name:   "page.png",
		Source: createTestImage(t, 80, 50),
		Status: types.StatusDone,
		Result: result,
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(html, "<h1>Report</h1>") {
		t.Errorf("missing heading in %s", html)
	}

	if !strings.Contains(html, `src="data:image/png;base64,`) {
		t.Errorf("missing inlined picture in %s", html)
	}

	html, err = viewer.Preview(types.Record{Name: "pending.png", Status: types.StatusPending})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(html, "No data available") {
		t.Errorf("unexpected preview of pending record: %s", html)
	}
}

func TestNewSessionUsesClient(t *testing.T) {
	calls := 0

	viewer := NewWithClient(DefaultConfig(), client.LayoutClientFunc(func(ctx context.Context, upload client.Upload) (*types.Result, error) {
		calls++
		return nil, errors.New("backend down")
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session := viewer.NewSession()
	defer session.Close()

	if _, err := session.Enqueue(ctx, client.Upload{Name: "a.png"}); err != nil {
		t.Fatal(err)
	}

	snapshot, err := session.WaitIdle(ctx)
	if err != nil {
		t.Fatal(err)
	}

	r := snapshot.Records[0]
	if r.Status != types.StatusError || r.Result.Error != "backend down" {
		t.Errorf("unexpected record %+v", r)
	}

	if calls != 1 {
		t.Errorf("expected one call, got %d", calls)
	}
}
