package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrNotObject = errors.New("payload is not a JSON object")

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// DecodeResult parses a remote layout payload. Only a body that is not a JSON
// object is an error; a missing or malformed objects list leaves Objects nil
// and malformed regions degrade field by field.
func DecodeResult(data []byte) (*Result, error) {
	data = bytes.TrimSpace(data)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, ErrNotObject
	}

	result := &Result{
		Raw: append(json.RawMessage(nil), data...),
	}

	if raw, ok := fields["error"]; ok {
		result.Error = decodeString(raw)
	}

	raw, ok := fields["objects"]
	if !ok {
		return result, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return result, nil
	}

	result.Objects = make([]Region, 0, len(items))
	for _, item := range items {
		var region Region
		if err := json.Unmarshal(item, &region); err != nil {
			// not an object; keep position so scan order is preserved
			region = Region{Kind: KindText}
		}
		result.Objects = append(result.Objects, region)
	}

	return result, nil
}

// UnmarshalJSON accepts both the segmentation shape (type, bbox) and the
// vision-model shape (label, bbox_2d).
func (r *Region) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return ErrNotObject
	}

	*r = Region{}

	kind := decodeString(fields["type"])
	if kind == "" {
		kind = decodeString(fields["kind"])
	}
	r.Kind = NormalizeKind(kind)

	r.Text = decodeString(fields["text"])
	r.Label = decodeString(fields["label"])

	if raw, ok := fields["confidence"]; ok {
		var c float64
		if json.Unmarshal(raw, &c) == nil {
			r.Confidence = c
		}
	}

	box, ok := fields["bbox"]
	if !ok {
		box = fields["bbox_2d"]
	}
	r.Box = decodeBox(box)

	return nil
}

// MarshalJSON writes the box back in [x1, y1, x2, y2] form
func (r Region) MarshalJSON() ([]byte, error) {
	type region struct {
		Kind       string    `json:"type"`
		BBox       []float64 `json:"bbox,omitempty"`
		Text       string    `json:"text,omitempty"`
		Label      string    `json:"label,omitempty"`
		Confidence float64   `json:"confidence,omitempty"`
	}

	out := region{
		Kind:       r.Kind,
		Text:       r.Text,
		Label:      r.Label,
		Confidence: r.Confidence,
	}

	if r.Box != nil {
		out.BBox = []float64{r.Box.X1, r.Box.Y1, r.Box.X2, r.Box.Y2}
	}

	return json.Marshal(out)
}

// MarshalJSON returns the payload as received when available
func (r Result) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 && json.Valid(r.Raw) {
		return r.Raw, nil
	}

	type result struct {
		Objects []Region `json:"objects,omitempty"`
		Error   string   `json:"error,omitempty"`
	}

	return json.Marshal(result{Objects: r.Objects, Error: r.Error})
}

// NormalizeKind lower-cases a kind and maps separators so that
// "Section_header" and "section-header" compare equal.
func NormalizeKind(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	kind = strings.ReplaceAll(kind, "_", "-")
	kind = strings.ReplaceAll(kind, " ", "-")

	if kind == "" {
		return KindText
	}

	return kind
}

// SanitizeJSON strips code fences, comments and trailing commas that vision
// models like to wrap around their JSON, keeping the outermost object.
func SanitizeJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}

	return strings.TrimSpace(raw)
}

// DecodeModelResult parses free-form vision model output into a Result
func DecodeModelResult(raw string) (*Result, error) {
	clean := SanitizeJSON(raw)

	if !strings.HasPrefix(clean, "{") {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	result, err := DecodeResult([]byte(clean))
	if err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	return result, nil
}

func decodeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func decodeBox(raw json.RawMessage) *BBox {
	if len(raw) == 0 {
		return nil
	}

	var v []float64
	if err := json.Unmarshal(raw, &v); err != nil || len(v) != 4 {
		return nil
	}

	return &BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
}
