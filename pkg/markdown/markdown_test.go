package markdown

import (
	"strings"
	"testing"

	"github.com/menta2k/layout-viewer/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(x1, y1, x2, y2 float64) *types.BBox {
	return &types.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func TestSynthesizeExample(t *testing.T) {
	result := &types.Result{Objects: []types.Region{
		{Kind: "section-header", Text: "Intro", Box: box(0, 0, 100, 4)},
		{Kind: "text", Text: "Body", Box: box(0, 5, 100, 9)},
		{Kind: "picture", Box: box(0, 10, 10, 20)},
	}}

	assert.Equal(t, "## Intro\n\nBody\n\n![Picture 1](picture_1.png)\n", Synthesize(result))
}

func TestSynthesizeSentinels(t *testing.T) {
	assert.Equal(t, NoData, Synthesize(nil))
	assert.Equal(t, NoData, Synthesize(&types.Result{}))
	assert.Equal(t, NoObjects, Synthesize(&types.Result{Objects: []types.Region{}}))

	decoded, err := types.DecodeResult([]byte(`{"objects": "oops"}`))
	require.NoError(t, err)
	assert.Equal(t, "No data available", Synthesize(decoded))

	decoded, err = types.DecodeResult([]byte(`{"objects": []}`))
	require.NoError(t, err)
	assert.Equal(t, "No objects detected.", Synthesize(decoded))
}

func TestSynthesizeReadingOrder(t *testing.T) {
	// corners arrive in either order; top edge is the min of y1 and y2
	result := &types.Result{Objects: []types.Region{
		{Kind: "text", Text: "third", Box: box(0, 90, 10, 30)},
		{Kind: "text", Text: "first", Box: box(0, 10, 10, 20)},
		{Kind: "text", Text: "no box"},
		{Kind: "text", Text: "second", Box: box(50, 25, 0, 15)},
	}}

	assert.Equal(t, "first\n\nsecond\n\nthird\n\nno box\n", Synthesize(result))
}

func TestSynthesizeStableTies(t *testing.T) {
	result := &types.Result{Objects: []types.Region{
		{Kind: "text", Text: "a", Box: box(50, 10, 60, 20)},
		{Kind: "text", Text: "b", Box: box(0, 10, 10, 20)},
		{Kind: "text", Text: "c", Box: box(20, 20, 10, 10)},
	}}

	want := "a\n\nb\n\nc\n"

	for range 10 {
		assert.Equal(t, want, Synthesize(result))
	}
}

func TestSynthesizePrefixes(t *testing.T) {
	tests := []struct {
		kind string
		text string
		want string
	}{
		{"list-item", "apples", "- apples"},
		{"list-item", "- pears", "- pears"},
		{"list-item", "* plums", "* plums"},
		{"page-header", "Report", "# Report"},
		{"page-header", "## Already", "## Already"},
		{"section-header", "  Results  ", "## Results"},
		{"section-header", "# Top", "# Top"},
		{"caption", "Figure 1", "Figure 1"},
		{"text", "- not a list", "- not a list"},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.text, func(t *testing.T) {
			result := &types.Result{Objects: []types.Region{{Kind: tt.kind, Text: tt.text}}}
			assert.Equal(t, tt.want+"\n", Synthesize(result))
		})
	}
}

func TestSynthesizeSkipsEmpty(t *testing.T) {
	result := &types.Result{Objects: []types.Region{
		{Kind: "text", Text: "   ", Box: box(0, 0, 1, 1)},
		{Kind: "page-header", Box: box(0, 1, 1, 2)},
		{Kind: "picture"},
		{Kind: "picture", Box: box(0, 5, 9, 9)},
		{Kind: "picture", Box: box(0, 3, 9, 4)},
	}}

	assert.Equal(t, "![Picture 1](picture_1.png)\n\n![Picture 2](picture_2.png)\n", Synthesize(result))
	assert.Equal(t, "\n", Synthesize(&types.Result{Objects: []types.Region{{Kind: "text"}}}))
}

func TestSynthesizeDoesNotMutate(t *testing.T) {
	regions := []types.Region{
		{Kind: "text", Text: "b", Box: box(0, 20, 1, 30)},
		{Kind: "text", Text: "a", Box: box(0, 10, 1, 15)},
	}

	Synthesize(&types.Result{Objects: regions})

	assert.Equal(t, "b", regions[0].Text)
}

func TestPicturesMatchSynthesize(t *testing.T) {
	result := &types.Result{Objects: []types.Region{
		{Kind: "picture", Label: "chart", Box: box(0, 50, 10, 60)},
		{Kind: "text", Text: "x", Box: box(0, 0, 1, 1)},
		{Kind: "picture", Label: "logo", Box: box(0, 5, 10, 15)},
	}}

	pictures := Pictures(result.Objects)
	require.Len(t, pictures, 2)

	assert.Equal(t, "logo", pictures[0].Region.Label)
	assert.Equal(t, "picture_1.png", pictures[0].Name())
	assert.Equal(t, "chart", pictures[1].Region.Label)

	md := Synthesize(result)
	for _, p := range pictures {
		assert.Contains(t, md, "("+p.Name()+")")
	}
}

func TestRenderHTML(t *testing.T) {
	md := "# Title\n\n- one\n\n![Picture 1](picture_1.png)\n\n![Picture 2](picture_2.png)\n"

	html, err := RenderHTML(md, func(name string) (string, bool) {
		if name == "picture_1.png" {
			return "data:image/png;base64,AAAA", true
		}
		return "", false
	})
	require.NoError(t, err)

	assert.Contains(t, html, "<h1>Title</h1>")
	assert.Contains(t, html, "<li>one</li>")
	assert.Contains(t, html, `src="data:image/png;base64,AAAA"`)
	assert.Contains(t, html, "[picture_2.png]")
	assert.False(t, strings.Contains(html, `src="picture_2.png"`))
}

func TestMerge(t *testing.T) {
	pages := []Page{
		{Name: "doc_page_10.png", Markdown: "ten\n"},
		{Name: "cover.png", Markdown: "cover\n"},
		{Name: "doc_page_2.png", Markdown: "two\n\n![Picture 1](picture_1.png)\n"},
		{Name: "doc_page_3.png", Markdown: NoObjects},
	}

	got := Merge(pages, "media")

	assert.Equal(t, "two\n\n![Picture 1](media/doc_page_2_picture_1.png)\n\nten\n\ncover\n", got)
	assert.Equal(t, "doc_page_10.png", pages[0].Name)
}

func TestMediaName(t *testing.T) {
	assert.Equal(t, "scan_picture_3.png", MediaName("scan", 3))
}
