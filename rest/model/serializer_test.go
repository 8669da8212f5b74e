package model

import (
	"math"
	"testing"
	"time"

	"github.com/evergreen-ci/restadmin/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SerializerSuite struct {
	book *model.Model
	s    *ModelSerializer

	suite.Suite
}

func TestSerializerSuite(t *testing.T) {
	suite.Run(t, new(SerializerSuite))
}

func (s *SerializerSuite) SetupTest() {
	s.book = model.MustNew("library", "book",
		model.Field{Name: "title", Kind: model.KindString, Required: true},
		model.Field{Name: "pages", Kind: model.KindInt},
		model.Field{Name: "rating", Kind: model.KindFloat},
		model.Field{Name: "published", Kind: model.KindBool},
		model.Field{Name: "released", Kind: model.KindTime},
		model.Field{Name: "added", Kind: model.KindTime, ReadOnly: true},
		model.Field{Name: "meta"},
	)

	var err error
	s.s, err = NewModelSerializer(s.book)
	s.Require().NoError(err)
}

func (s *SerializerSuite) TestDefaultExposesAllFields() {
	s.Equal(s.book.FieldNames(), s.s.Fields())
	s.Equal(s.book, s.s.Model())

	all, err := NewModelSerializer(s.book, model.AllFields)
	s.Require().NoError(err)
	s.Equal(s.book.FieldNames(), all.Fields())
}

func (s *SerializerSuite) TestFieldSubset() {
	sub, err := NewModelSerializer(s.book, "id", "title")
	s.Require().NoError(err)
	s.Equal([]string{"id", "title"}, sub.Fields())

	out, err := sub.BuildFromService(model.Record{"id": "1", "title": "Dune", "pages": 412})
	s.Require().NoError(err)
	s.Equal(APIRecord{"id": "1", "title": "Dune"}, out)

	_, err = NewModelSerializer(s.book, "author")
	s.Error(err)
	_, err = NewModelSerializer(nil)
	s.Error(err)
}

func (s *SerializerSuite) TestBuildFromService() {
	released := time.Date(1965, time.August, 1, 0, 0, 0, 0, time.UTC)
	out, err := s.s.BuildFromService(model.Record{"id": "1", "title": "Dune", "released": released})
	s.Require().NoError(err)

	s.Equal("Dune", out["title"])
	s.Equal("1965-08-01T00:00:00Z", out["released"])
	s.Contains(out, "pages")
	s.Nil(out["pages"])

	_, err = s.s.BuildFromService(nil)
	s.Error(err)
}

func (s *SerializerSuite) TestToServiceConvertsKinds() {
	rec, err := s.s.ToService(APIRecord{
		"title":     "Dune",
		"pages":     412.0,
		"rating":    4,
		"published": true,
		"released":  "1965-08-01T00:00:00Z",
		"meta":      map[string]interface{}{"series": "Dune"},
	}, false)
	s.Require().NoError(err)

	s.Equal("Dune", rec["title"])
	s.Equal(int64(412), rec["pages"])
	s.Equal(4.0, rec["rating"])
	s.Equal(true, rec["published"])
	s.Equal(1965, rec["released"].(time.Time).Year())
	s.Equal(map[string]interface{}{"series": "Dune"}, rec["meta"])
}

func (s *SerializerSuite) TestToServiceIgnoresUnknownAndReadOnly() {
	rec, err := s.s.ToService(APIRecord{
		"id":     "forged",
		"title":  "Dune",
		"added":  "2024-01-01T00:00:00Z",
		"author": "Herbert",
	}, false)
	s.Require().NoError(err)
	s.Equal(model.Record{"title": "Dune"}, rec)
}

func (s *SerializerSuite) TestToServiceRequiredFields() {
	_, err := s.s.ToService(APIRecord{"pages": 10}, false)
	s.Require().Error(err)
	verr, ok := err.(model.ValidationError)
	s.Require().True(ok)
	s.Equal([]string{"this field is required"}, verr["title"])

	rec, err := s.s.ToService(APIRecord{"pages": 10}, true)
	s.Require().NoError(err)
	s.Equal(model.Record{"pages": int64(10)}, rec)

	_, err = s.s.ToService(APIRecord{"title": nil}, true)
	s.Error(err)

	rec, err = s.s.ToService(APIRecord{"pages": nil}, true)
	s.Require().NoError(err)
	s.Contains(rec, "pages")
	s.Nil(rec["pages"])
}

func (s *SerializerSuite) TestToServiceRejectsWrongKinds() {
	_, err := s.s.ToService(APIRecord{
		"title":     12,
		"pages":     1.5,
		"rating":    "high",
		"published": "yes",
		"released":  "yesterday",
	}, false)
	s.Require().Error(err)

	verr := err.(model.ValidationError)
	for _, field := range []string{"title", "pages", "rating", "published", "released"} {
		s.Len(verr[field], 1, field)
	}

	rec, err := s.s.ToService(APIRecord{"pages": 1e20}, false)
	s.Require().Error(err)
	s.Nil(rec)
	s.Equal([]string{"must be an integer"}, err.(model.ValidationError)["pages"])
}

func TestConvertValue(t *testing.T) {
	v, err := convertValue(model.KindInt, int32(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	for _, n := range []float64{1e20, -1e20, math.MaxInt64} {
		_, err = convertValue(model.KindInt, n)
		assert.Error(t, err, "%g", n)
	}

	_, err = convertValue("decimal", 3)
	assert.Error(t, err)

	now := time.Now()
	v, err = convertValue(model.KindTime, now)
	require.NoError(t, err)
	assert.True(t, now.Equal(v.(time.Time)))
}
