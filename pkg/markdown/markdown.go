// Package markdown turns detected layout regions into a reading-order
// Markdown document.
package markdown

import (
	"fmt"
	"sort"
	"strings"

	"github.com/menta2k/layout-viewer/pkg/types"
)

const (
	NoData    = "No data available"
	NoObjects = "No objects detected."
)

// Picture is a boxed picture region and its 1-based number in scan order
type Picture struct {
	N      int
	Region types.Region
}

// Name is the file name the document links the picture under
func (p Picture) Name() string {
	return PictureName(p.N)
}

// PictureName returns the file name for picture n
func PictureName(n int) string {
	return fmt.Sprintf("picture_%d.png", n)
}

// Order returns the regions in reading order: stable by normalized top
// edge, regions without a box last. The input is not modified.
func Order(regions []types.Region) []types.Region {
	out := make([]types.Region, len(regions))
	copy(out, regions)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Box, out[j].Box

		if a == nil || b == nil {
			return a != nil && b == nil
		}

		return a.Normalize().Top < b.Normalize().Top
	})

	return out
}

// Pictures lists the boxed picture regions in the numbering used by
// Synthesize
func Pictures(regions []types.Region) []Picture {
	var pictures []Picture

	for _, r := range Order(regions) {
		if isPicture(r) {
			pictures = append(pictures, Picture{N: len(pictures) + 1, Region: r})
		}
	}

	return pictures
}

// Synthesize renders a result as Markdown
func Synthesize(result *types.Result) string {
	if result == nil || result.Objects == nil {
		return NoData
	}

	if len(result.Objects) == 0 {
		return NoObjects
	}

	var blocks []string
	pictures := 0

	for _, r := range Order(result.Objects) {
		if isPicture(r) {
			pictures++
			blocks = append(blocks, fmt.Sprintf("![Picture %d](%s)", pictures, PictureName(pictures)))
			continue
		}

		if block := textBlock(r); block != "" {
			blocks = append(blocks, block)
		}
	}

	out := strings.Join(blocks, "\n\n")

	return strings.TrimRight(out, "\n") + "\n"
}

func isPicture(r types.Region) bool {
	return r.Kind == types.KindPicture && r.Box != nil
}

func textBlock(r types.Region) string {
	text := strings.TrimSpace(r.Text)

	if text == "" {
		return ""
	}

	switch r.Kind {
	case types.KindListItem:
		if !strings.HasPrefix(text, "-") && !strings.HasPrefix(text, "*") {
			return "- " + text
		}
	case types.KindPageHeader:
		if !strings.HasPrefix(text, "#") {
			return "# " + text
		}
	case types.KindSectionHeader:
		if !strings.HasPrefix(text, "#") {
			return "## " + text
		}
	}

	return text
}
