package markdown

import (
	"bytes"
	"regexp"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var rePictureName = regexp.MustCompile(`^picture_\d+\.png$`)

// Resolver maps a picture file name to a URL the browser can load
type Resolver func(name string) (string, bool)

// RenderHTML converts a synthesized document to HTML. Picture links are
// passed through resolve; unresolved pictures become a text placeholder.
func RenderHTML(source string, resolve Resolver) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)

	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))

	var images []*ast.Image

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if img, ok := n.(*ast.Image); ok && entering {
			images = append(images, img)
		}

		return ast.WalkContinue, nil
	})

	for _, img := range images {
		name := string(img.Destination)

		if !rePictureName.MatchString(name) {
			continue
		}

		if resolve != nil {
			if url, ok := resolve(name); ok {
				img.Destination = []byte(url)
				continue
			}
		}

		parent := img.Parent()
		parent.ReplaceChild(parent, img, ast.NewString([]byte("["+name+"]")))
	}

	var buf bytes.Buffer

	if err := md.Renderer().Render(&buf, src, doc); err != nil {
		return "", err
	}

	return buf.String(), nil
}
