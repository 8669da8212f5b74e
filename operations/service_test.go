package operations

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evergreen-ci/restadmin"
	"github.com/evergreen-ci/restadmin/db"
	"github.com/evergreen-ci/restadmin/model"
	"github.com/evergreen-ci/restadmin/rest/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testSettings = `
api:
  prefix: api
  page_size: 2
users:
  - id: root
    api_key: root-key
    superuser: true
  - id: reader
    api_key: reader-key
    permissions: [library.view_book]
models:
  - app_label: library
    name: base
    abstract: true
  - app_label: library
    name: Book
    fields:
      - name: title
        kind: string
        required: true
      - name: shelf
        kind: string
    filter:
      shelf: a
    page_size: 5
  - app_label: shop
    name: item
    fields:
      - name: name
        kind: string
    serializer_fields: [id]
`

type ServiceSuite struct {
	ctx      context.Context
	cancel   context.CancelFunc
	settings *restadmin.Settings

	suite.Suite
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	var err error
	s.settings, err = restadmin.ParseSettings([]byte(testSettings))
	s.Require().NoError(err)
	s.Require().NoError(s.settings.Validate())
}

func (s *ServiceSuite) TearDownTest() {
	s.cancel()
}

func (s *ServiceSuite) TestBuildRegistry() {
	registry, err := buildRegistry(s.settings, db.NewMemoryStore())
	s.Require().NoError(err)

	var labels []string
	for _, m := range registry.Models() {
		labels = append(labels, m.Label())
	}
	s.Equal([]string{"library.book", "shop.item"}, labels)

	book, err := registry.Get(model.MustNew("library", "book"))
	s.Require().NoError(err)
	s.Equal(5, book.PageSize)
	s.Require().NotNil(book.Queryset)
	s.Equal("a", book.Queryset.Filter["shelf"])

	item, err := registry.Get(model.MustNew("shop", "item"))
	s.Require().NoError(err)
	s.Equal(2, item.PageSize)
	s.Require().NotNil(item.Serializer)
	s.Equal([]string{"id"}, item.Serializer.Fields())
}

func (s *ServiceSuite) TestBuildRegistryRejectsBadSerializerFields() {
	s.settings.Models[2].SerializerFields = []string{"price"}
	_, err := buildRegistry(s.settings, db.NewMemoryStore())
	s.Error(err)
}

func (s *ServiceSuite) TestHandler() {
	env, err := restadmin.NewEnvironment(s.ctx, "", s.settings)
	s.Require().NoError(err)
	defer func() { s.NoError(env.Close(s.ctx)) }()

	handler, err := getHandler(env)
	s.Require().NoError(err)

	post := func(user, path string, body map[string]interface{}) int {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
		req.Header.Set(restadmin.APIUserHeader, user)
		req.Header.Set(restadmin.APIKeyHeader, user+"-key")
		rw := httptest.NewRecorder()
		handler.ServeHTTP(rw, req)
		return rw.Code
	}

	s.Equal(http.StatusCreated, post("root", "/api/library/book", map[string]interface{}{"title": "Dune", "shelf": "a"}))
	s.Equal(http.StatusCreated, post("root", "/api/library/book", map[string]interface{}{"title": "Emma", "shelf": "b"}))
	s.Equal(http.StatusForbidden, post("reader", "/api/library/book", map[string]interface{}{"title": "Ulysses"}))

	req := httptest.NewRequest(http.MethodGet, "/api/library/book", nil)
	req.Header.Set(restadmin.APIUserHeader, "reader")
	req.Header.Set(restadmin.APIKeyHeader, "reader-key")
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)
	s.Require().Equal(http.StatusOK, rw.Code)

	var books []map[string]interface{}
	s.Require().NoError(json.Unmarshal(rw.Body.Bytes(), &books))
	s.Require().Len(books, 1)
	s.Equal("Dune", books[0]["title"])
}

func (s *ServiceSuite) TestPrintRoutes() {
	var buf bytes.Buffer
	s.Require().NoError(printRoutes(&buf, s.settings))

	out := buf.String()
	s.Contains(out, "12 routes in restful_admin (namespace restful_admin)")
	s.Contains(out, "/api/library/book/{id}")
	s.Contains(out, "library-book-detail")
	s.Contains(out, route.ActionPartialUpdate)
	s.NotContains(out, "library/base")
}

func (s *ServiceSuite) TestPrintDocs() {
	var buf bytes.Buffer
	s.Require().NoError(printDocs(&buf, s.settings, nil))
	s.Contains(buf.String(), "## library.book")
	s.Contains(buf.String(), "## shop.item")
	s.NotContains(buf.String(), "library.base")

	buf.Reset()
	s.Require().NoError(printDocs(&buf, s.settings, []string{"shop.item"}))
	s.NotContains(buf.String(), "library.book")
	s.Contains(buf.String(), "`DELETE` shop/item/123")

	s.Error(printDocs(&buf, s.settings, []string{"shop.order"}))
}

func TestRunServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestShutdownWait(t *testing.T) {
	assert.Equal(t, restadmin.DefaultShutdownWait, shutdownWait(restadmin.APIConfig{}))
	assert.Equal(t, 3*time.Second, shutdownWait(restadmin.APIConfig{ShutdownWaitSeconds: 3}))
}

func TestLoadSettings(t *testing.T) {
	_, err := loadSettings("does-not-exist.yml")
	require.Error(t, err)
}
