package todo

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestDecodeCreate(t *testing.T) {
	t.Parallel()
	v := newValidator(t)

	req, err := v.DecodeCreate([]byte(`{"title":"Buy milk","description":"2 litres","completed":false}`))
	require.NoError(t, err)
	assert.Equal(t, CreateRequest{Title: "Buy milk", Description: "2 litres"}, req)
}

func TestDecodeCreateRejects(t *testing.T) {
	t.Parallel()
	v := newValidator(t)

	tests := []struct {
		name string
		body string
		path string
	}{
		{name: "missing title", body: `{"completed":true}`, path: ""},
		{name: "missing completed", body: `{"title":"x"}`, path: ""},
		{name: "empty title", body: `{"title":"","completed":true}`, path: "title"},
		{name: "long title", body: `{"title":"` + strings.Repeat("a", 101) + `","completed":true}`, path: "title"},
		{name: "long description", body: `{"title":"x","description":"` + strings.Repeat("d", 501) + `","completed":true}`, path: "description"},
		{name: "completed not bool", body: `{"title":"x","completed":"yes"}`, path: "completed"},
		{name: "title not string", body: `{"title":7,"completed":true}`, path: "title"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := v.DecodeCreate([]byte(tc.body))
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			require.NotEmpty(t, verrs)
			assert.Equal(t, tc.path, verrs[0].Path)
			assert.NotEmpty(t, verrs[0].Message)
		})
	}
}

func TestDecodeCreateBoundaries(t *testing.T) {
	t.Parallel()
	v := newValidator(t)

	body := `{"title":"` + strings.Repeat("a", 100) + `","description":"` + strings.Repeat("d", 500) + `","completed":true}`
	req, err := v.DecodeCreate([]byte(body))
	require.NoError(t, err)
	assert.Len(t, req.Title, 100)
	assert.Len(t, req.Description, 500)
}

func TestDecodeInvalidJSON(t *testing.T) {
	t.Parallel()
	v := newValidator(t)

	_, err := v.DecodeCreate([]byte(`{"title":`))
	require.ErrorIs(t, err, ErrInvalidJSON)
	_, err = v.DecodeUpdate([]byte(``))
	require.ErrorIs(t, err, ErrInvalidJSON)
}

func TestDecodeUpdate(t *testing.T) {
	t.Parallel()
	v := newValidator(t)

	req, err := v.DecodeUpdate([]byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, req.Title)
	assert.Nil(t, req.Description)
	assert.Nil(t, req.Completed)

	req, err = v.DecodeUpdate([]byte(`{"completed":true}`))
	require.NoError(t, err)
	require.NotNil(t, req.Completed)
	assert.True(t, *req.Completed)

	_, err = v.DecodeUpdate([]byte(`{"title":""}`))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "title", verrs[0].Path)

	_, err = v.DecodeUpdate([]byte(`[]`))
	require.ErrorAs(t, err, &verrs)
}

func TestUpdateApply(t *testing.T) {
	t.Parallel()

	orig := Todo{ID: "1", Title: "a", Description: "d", Completed: false, FileURL: "f"}
	title := "b"
	done := true
	got := UpdateRequest{Title: &title, Completed: &done}.Apply(orig)
	assert.Equal(t, Todo{ID: "1", Title: "b", Description: "d", Completed: true, FileURL: "f"}, got)
	assert.Equal(t, orig, UpdateRequest{}.Apply(orig))
}

func TestSchemaDocument(t *testing.T) {
	t.Parallel()

	doc, err := SchemaDocument(SchemaCreate)
	require.NoError(t, err)
	assert.NotContains(t, doc, "$schema")
	assert.NotContains(t, doc, "$id")
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []any{"title", "completed"}, doc["required"])

	_, err = SchemaDocument("missing.json")
	require.Error(t, err)
}

func TestValidationErrorsMessage(t *testing.T) {
	t.Parallel()

	errs := ValidationErrors{{Path: "title", Message: "too short"}, {Message: "missing properties"}}
	assert.Equal(t, "title: too short; missing properties", errs.Error())
}
