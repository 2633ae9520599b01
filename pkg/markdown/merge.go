package markdown

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/menta2k/layout-viewer/internal/utils"
)

var rePictureLink = regexp.MustCompile(`(!\[[^\]]*\]\()(picture_(\d+)\.png)(\))`)

// Page is the document of one page image
type Page struct {
	Name     string
	Markdown string
}

// MediaName is the file name picture n of the page base gets in a merged
// document's media directory
func MediaName(base string, n int) string {
	return fmt.Sprintf("%s_%s", base, PictureName(n))
}

// Merge concatenates pages ordered by the page number in their names and
// points picture links at mediaDir. Pages without a number follow,
// alphabetically.
func Merge(pages []Page, mediaDir string) string {
	sorted := make([]Page, len(pages))
	copy(sorted, pages)

	SortPages(sorted)

	var blocks []string

	for _, p := range sorted {
		base := utils.BaseName(p.Name)
		text := strings.TrimSpace(p.Markdown)

		if text == "" || text == NoData || text == NoObjects {
			continue
		}

		text = rePictureLink.ReplaceAllStringFunc(text, func(link string) string {
			m := rePictureLink.FindStringSubmatch(link)
			n, _ := strconv.Atoi(m[3])

			return m[1] + path.Join(mediaDir, MediaName(base, n)) + m[4]
		})

		blocks = append(blocks, text)
	}

	if len(blocks) == 0 {
		return ""
	}

	return strings.Join(blocks, "\n\n") + "\n"
}

// SortPages orders pages like Merge does
func SortPages(pages []Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		pi, iok := utils.PageNumber(pages[i].Name)
		pj, jok := utils.PageNumber(pages[j].Name)

		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return path.Base(pages[i].Name) < path.Base(pages[j].Name)
		}
	})
}
