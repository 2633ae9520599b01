package types

import (
	"encoding/json"
	"math"
	"time"
)

// Status is the processing state of an uploaded image
type Status string

const (
	StatusPending Status = "pending"
	StatusLoading Status = "loading"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Region kinds with special handling. Any other kind is treated as plain text.
const (
	KindPicture       = "picture"
	KindListItem      = "list-item"
	KindPageHeader    = "page-header"
	KindSectionHeader = "section-header"
	KindText          = "text"
)

// BBox is a bounding box in source-image pixels given by two opposite corners.
// The corners may arrive in either order.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Rect is a normalized box with non-negative width and height
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Normalize converts the corners into left/top/width/height form
func (b BBox) Normalize() Rect {
	return Rect{
		Left:   math.Min(b.X1, b.X2),
		Top:    math.Min(b.Y1, b.Y2),
		Width:  math.Abs(b.X2 - b.X1),
		Height: math.Abs(b.Y2 - b.Y1),
	}
}

// Right returns the right edge
func (r Rect) Right() float64 { return r.Left + r.Width }

// Bottom returns the bottom edge
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Empty reports whether the rect has no drawable area
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Region is one detected layout element of an image
type Region struct {
	Kind       string  `json:"type"`
	Box        *BBox   `json:"-"`
	Text       string  `json:"text,omitempty"`
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Result is the payload stored on a record once the remote call settles.
// Objects is nil when the payload carried no usable objects list.
type Result struct {
	Objects []Region        `json:"objects,omitempty"`
	Error   string          `json:"error,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// Failed reports whether the result describes a failed remote call
func (r *Result) Failed() bool {
	return r != nil && r.Error != ""
}

// Record is one uploaded image and its processing state.
// Source is shared between snapshots and must never be modified.
type Record struct {
	Index       int       `json:"index"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type,omitempty"`
	Source      []byte    `json:"-"`
	Status      Status    `json:"status"`
	Result      *Result   `json:"result,omitempty"`
	Attempt     int       `json:"attempt"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot is an immutable view of the record collection
type Snapshot struct {
	Version uint64   `json:"version"`
	Records []Record `json:"images"`

	// Queued is the number of job tokens waiting behind the running call
	Queued int `json:"queued"`
}

// Record returns the record at index, if present
func (s *Snapshot) Record(index int) (Record, bool) {
	if s == nil || index < 0 || index >= len(s.Records) {
		return Record{}, false
	}
	return s.Records[index], true
}

// Count returns the number of records in each status
func (s *Snapshot) Count() map[Status]int {
	out := map[Status]int{}
	if s == nil {
		return out
	}
	for _, r := range s.Records {
		out[r.Status]++
	}
	return out
}
