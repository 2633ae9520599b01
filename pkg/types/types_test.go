package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		box  BBox
		want Rect
	}{
		{"ordered", BBox{10, 20, 110, 70}, Rect{10, 20, 100, 50}},
		{"swapped x", BBox{110, 20, 10, 70}, Rect{10, 20, 100, 50}},
		{"swapped both", BBox{110, 70, 10, 20}, Rect{10, 20, 100, 50}},
		{"degenerate", BBox{5, 5, 5, 9}, Rect{5, 5, 0, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.box.Normalize()
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, got.Left, got.Right())
			assert.LessOrEqual(t, got.Top, got.Bottom())
		})
	}
}

func TestRectEmpty(t *testing.T) {
	assert.True(t, Rect{Width: 0, Height: 10}.Empty())
	assert.True(t, Rect{Width: 10, Height: 0}.Empty())
	assert.False(t, Rect{Width: 1, Height: 1}.Empty())
}

func TestDecodeResult(t *testing.T) {
	data := []byte(`{
		"objects": [
			{"type": "Section-header", "bbox": [0, 0, 100, 20], "text": "Intro", "label": "heading"},
			{"kind": "list_item", "bbox_2d": [10, 40, 0, 30], "text": "one"},
			{"type": "picture", "bbox": [1, 2, 3]},
			{"text": 42},
			"garbage"
		]
	}`)

	result, err := DecodeResult(data)
	require.NoError(t, err)
	require.Len(t, result.Objects, 5)

	assert.Equal(t, KindSectionHeader, result.Objects[0].Kind)
	assert.Equal(t, &BBox{0, 0, 100, 20}, result.Objects[0].Box)
	assert.Equal(t, "heading", result.Objects[0].Label)

	assert.Equal(t, KindListItem, result.Objects[1].Kind)
	assert.Equal(t, Rect{0, 30, 10, 10}, result.Objects[1].Box.Normalize())

	assert.Equal(t, KindPicture, result.Objects[2].Kind)
	assert.Nil(t, result.Objects[2].Box, "three numbers are not a box")

	assert.Equal(t, KindText, result.Objects[3].Kind)
	assert.Empty(t, result.Objects[3].Text)

	assert.Equal(t, KindText, result.Objects[4].Kind)

	assert.JSONEq(t, string(data), string(result.Raw))
}

func TestDecodeResultTolerance(t *testing.T) {
	t.Run("absent objects", func(t *testing.T) {
		result, err := DecodeResult([]byte(`{"detail": "ok"}`))
		require.NoError(t, err)
		assert.Nil(t, result.Objects)
	})

	t.Run("objects not a list", func(t *testing.T) {
		result, err := DecodeResult([]byte(`{"objects": {"a": 1}}`))
		require.NoError(t, err)
		assert.Nil(t, result.Objects)
	})

	t.Run("empty list", func(t *testing.T) {
		result, err := DecodeResult([]byte(`{"objects": []}`))
		require.NoError(t, err)
		assert.NotNil(t, result.Objects)
		assert.Empty(t, result.Objects)
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := DecodeResult([]byte(`[1, 2]`))
		assert.ErrorIs(t, err, ErrNotObject)

		_, err = DecodeResult([]byte(`<html>`))
		assert.ErrorIs(t, err, ErrNotObject)
	})
}

func TestDecodeModelResult(t *testing.T) {
	raw := "```json\n{\n  // detected\n  \"objects\": [{\"label\": \"paragraph\", \"bbox_2d\": [1, 2, 3, 4], \"text\": \"Hi\"},]\n}\n```"

	result, err := DecodeModelResult(raw)
	require.NoError(t, err)
	require.Len(t, result.Objects, 1)
	assert.Equal(t, "Hi", result.Objects[0].Text)
	assert.Equal(t, &BBox{1, 2, 3, 4}, result.Objects[0].Box)

	_, err = DecodeModelResult("I cannot see any document here.")
	assert.Error(t, err)
}

func TestResultMarshal(t *testing.T) {
	t.Run("raw payload round trips", func(t *testing.T) {
		result, err := DecodeResult([]byte(`{"objects": [], "extra": true}`))
		require.NoError(t, err)

		data, err := json.Marshal(result)
		require.NoError(t, err)
		assert.JSONEq(t, `{"objects": [], "extra": true}`, string(data))
	})

	t.Run("error result", func(t *testing.T) {
		data, err := json.Marshal(&Result{Error: "boom"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"error": "boom"}`, string(data))
	})

	t.Run("region box", func(t *testing.T) {
		data, err := json.Marshal(Region{Kind: KindPicture, Box: &BBox{1, 2, 3, 4}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type": "picture", "bbox": [1, 2, 3, 4]}`, string(data))
	})
}

func TestSnapshotHelpers(t *testing.T) {
	s := &Snapshot{
		Version: 3,
		Records: []Record{
			{Index: 0, Status: StatusDone},
			{Index: 1, Status: StatusPending},
			{Index: 2, Status: StatusDone},
		},
	}

	r, ok := s.Record(1)
	require.True(t, ok)
	assert.Equal(t, StatusPending, r.Status)

	_, ok = s.Record(3)
	assert.False(t, ok)

	assert.Equal(t, map[Status]int{StatusDone: 2, StatusPending: 1}, s.Count())
}
