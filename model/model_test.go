package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type BookReview struct {
	ID        string    `json:"id"`
	Title     string    `json:"title" restadmin:"required"`
	Stars     int       `json:"stars"`
	Score     float64   `json:"score"`
	Spoiler   bool      `json:"spoiler"`
	Posted    time.Time `json:"posted" restadmin:"readonly"`
	Tags      []string  `json:"tags"`
	Internal  string    `json:"-"`
	Skipped   string    `restadmin:"-"`
	NoTag     string
	unexposed string
}

func TestDescribe(t *testing.T) {
	m, err := Describe("library", &BookReview{})
	require.NoError(t, err)

	assert.Equal(t, "library", m.AppLabel)
	assert.Equal(t, "bookreview", m.Name)
	assert.Equal(t, "book review", m.VerboseName)
	assert.Equal(t, "book reviews", m.VerboseNamePlural)
	assert.Equal(t, "library.bookreview", m.Label())
	assert.Equal(t, "library_bookreview", m.Collection())
	assert.Equal(t, []string{"id", "title", "stars", "score", "spoiler", "posted", "tags", "NoTag"}, m.FieldNames())

	id, ok := m.Field("id")
	require.True(t, ok)
	assert.True(t, id.ReadOnly)

	title, ok := m.Field("title")
	require.True(t, ok)
	assert.True(t, title.Required)
	assert.Equal(t, KindString, title.Kind)

	posted, _ := m.Field("posted")
	assert.Equal(t, KindTime, posted.Kind)
	assert.True(t, posted.ReadOnly)

	stars, _ := m.Field("stars")
	assert.Equal(t, KindInt, stars.Kind)
	score, _ := m.Field("score")
	assert.Equal(t, KindFloat, score.Kind)
	tags, _ := m.Field("tags")
	assert.Equal(t, KindAny, tags.Kind)

	_, ok = m.Field("Internal")
	assert.False(t, ok)
}

func TestDescribeRejectsNonStructs(t *testing.T) {
	_, err := Describe("library", "book")
	assert.Error(t, err)
	_, err = Describe("library", nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, test := range map[string]func(*testing.T){
		"AddsPrimaryKey": func(t *testing.T) {
			m, err := New("shop", "Item", Field{Name: "name", Kind: KindString})
			require.NoError(t, err)
			assert.Equal(t, "item", m.Name)
			assert.Equal(t, []string{"id", "name"}, m.FieldNames())
		},
		"DefaultsKind": func(t *testing.T) {
			m, err := New("shop", "item", Field{Name: "extra"})
			require.NoError(t, err)
			f, _ := m.Field("extra")
			assert.Equal(t, KindAny, f.Kind)
		},
		"KeepsVerboseNames": func(t *testing.T) {
			m := &Model{AppLabel: "shop", Name: "person", VerboseNamePlural: "people"}
			require.NoError(t, m.Validate())
			assert.Equal(t, "person", m.VerboseName)
			assert.Equal(t, "people", m.VerboseNamePlural)
		},
		"MissingAppLabel": func(t *testing.T) {
			_, err := New("", "item")
			assert.Error(t, err)
		},
		"MissingName": func(t *testing.T) {
			_, err := New("shop", "")
			assert.Error(t, err)
		},
		"PathCharacters": func(t *testing.T) {
			_, err := New("shop/x", "item")
			assert.Error(t, err)
		},
		"DuplicateField": func(t *testing.T) {
			_, err := New("shop", "item", Field{Name: "a"}, Field{Name: "a"})
			assert.Error(t, err)
		},
		"InvalidKind": func(t *testing.T) {
			_, err := New("shop", "item", Field{Name: "a", Kind: "decimal"})
			assert.Error(t, err)
		},
	} {
		t.Run(name, test)
	}
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() { MustNew("", "") })
	assert.NotPanics(t, func() { MustNew("shop", "item") })
}

func TestSplitCamelCase(t *testing.T) {
	assert.Equal(t, "book", splitCamelCase("Book"))
	assert.Equal(t, "book review", splitCamelCase("BookReview"))
	assert.Equal(t, "http request", splitCamelCase("HTTPRequest"))
}

func TestRecord(t *testing.T) {
	rec := Record{"id": "1", "title": "Dune"}
	assert.Equal(t, "1", rec.ID())
	assert.Equal(t, "42", Record{"id": 42}.ID())
	assert.Equal(t, "", Record{}.ID())

	merged := rec.Merge(Record{"title": "Dune Messiah", "pages": 256})
	assert.Equal(t, "Dune", rec["title"])
	assert.Equal(t, "Dune Messiah", merged["title"])
	assert.Equal(t, 256, merged["pages"])

	var out struct {
		ID     string    `json:"id"`
		Title  string    `json:"title"`
		Pages  int       `json:"pages"`
		Posted time.Time `json:"posted"`
	}
	in := merged.Merge(Record{"pages": 256.0, "posted": "2024-05-01T10:00:00Z"})
	require.NoError(t, in.Decode(&out))
	assert.Equal(t, "1", out.ID)
	assert.Equal(t, 256, out.Pages)
	assert.Equal(t, 2024, out.Posted.Year())
}

func TestValidationError(t *testing.T) {
	verr := ValidationError{}
	assert.False(t, verr.HasErrors())
	verr.Add("title", "this field is required")
	verr.Add("", "unknown field 'x'")
	assert.True(t, verr.HasErrors())
	assert.Equal(t, "invalid data: payload: unknown field 'x', title: this field is required", verr.Error())
}
