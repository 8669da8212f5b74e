package route

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/restadmin"
	"github.com/evergreen-ci/restadmin/auth"
	"github.com/evergreen-ci/restadmin/db"
	dbModel "github.com/evergreen-ci/restadmin/model"
	"github.com/evergreen-ci/restadmin/rest/model"
	"github.com/stretchr/testify/suite"
)

type ServiceSuite struct {
	handler http.Handler
	store   db.Store
	item    *dbModel.Model

	suite.Suite
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = db.NewMemoryStore()
	registry := NewRegistry(s.store)
	s.item = dbModel.MustNew("shop", "item",
		dbModel.Field{Name: "name", Kind: dbModel.KindString, Required: true},
		dbModel.Field{Name: "price", Kind: dbModel.KindFloat},
	)
	s.Require().NoError(registry.Register(nil, nil, s.item))

	um, err := auth.NewNaiveUserManager([]restadmin.UserConfig{
		{ID: "viewer", APIKey: "viewer-key", Permissions: []string{"shop.view_item"}},
		{ID: "root", APIKey: "root-key", Superuser: true},
	})
	s.Require().NoError(err)

	app := gimlet.NewApp()
	app.AddMiddleware(auth.UserMiddleware(um))
	s.Require().NoError(registry.Attach(app, "api"))

	s.handler, err = app.Handler()
	s.Require().NoError(err)
}

func (s *ServiceSuite) do(method, path, user string, body interface{}) *httptest.ResponseRecorder {
	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		s.Require().NoError(err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if user != "" {
		req.Header.Set(restadmin.APIUserHeader, user)
		req.Header.Set(restadmin.APIKeyHeader, user+"-key")
	}

	rw := httptest.NewRecorder()
	s.handler.ServeHTTP(rw, req)
	return rw
}

func (s *ServiceSuite) decode(rw *httptest.ResponseRecorder, out interface{}) {
	s.Require().NoError(json.Unmarshal(rw.Body.Bytes(), out), rw.Body.String())
}

func (s *ServiceSuite) seed(name string) string {
	rec, err := s.store.Insert(context.Background(), s.item, dbModel.Record{"name": name, "price": 2.0})
	s.Require().NoError(err)
	return rec.ID()
}

func (s *ServiceSuite) TestAPIRoot() {
	rw := s.do(http.MethodGet, "/api/", "", nil)
	s.Require().Equal(http.StatusOK, rw.Code)

	var root struct {
		Namespace string `json:"namespace"`
		Endpoints []struct {
			Path    string   `json:"path"`
			Methods []string `json:"methods"`
		} `json:"endpoints"`
	}
	s.decode(rw, &root)
	s.Equal(restadmin.Namespace, root.Namespace)
	s.Require().Len(root.Endpoints, 2)
	s.Equal("/shop/item", root.Endpoints[0].Path)
	s.Equal([]string{http.MethodGet, http.MethodPost}, root.Endpoints[0].Methods)
	s.Equal("/shop/item/{id}", root.Endpoints[1].Path)
}

func (s *ServiceSuite) TestAnonymousRequestsAreForbidden() {
	s.seed("pen")
	rw := s.do(http.MethodGet, "/api/shop/item", "", nil)
	s.Equal(http.StatusForbidden, rw.Code)

	var resp gimlet.ErrorResponse
	s.decode(rw, &resp)
	s.Contains(resp.Message, "shop.view_item")
}

func (s *ServiceSuite) TestUnknownUserIsAnonymous() {
	req := httptest.NewRequest(http.MethodGet, "/api/shop/item", nil)
	req.Header.Set(restadmin.APIUserHeader, "mallory")
	req.Header.Set(restadmin.APIKeyHeader, "mallory-key")
	rw := httptest.NewRecorder()
	s.handler.ServeHTTP(rw, req)
	s.Equal(http.StatusForbidden, rw.Code)
}

func (s *ServiceSuite) TestBadCredentials() {
	req := httptest.NewRequest(http.MethodGet, "/api/shop/item", nil)
	req.Header.Set(restadmin.APIUserHeader, "root")
	req.Header.Set(restadmin.APIKeyHeader, "wrong")
	rw := httptest.NewRecorder()
	s.handler.ServeHTTP(rw, req)
	s.Equal(http.StatusUnauthorized, rw.Code)
}

func (s *ServiceSuite) TestListAndPaginate() {
	for _, name := range []string{"a", "b", "c"} {
		s.seed(name)
	}

	rw := s.do(http.MethodGet, "/api/shop/item", "viewer", nil)
	s.Require().Equal(http.StatusOK, rw.Code)
	var all []model.APIRecord
	s.decode(rw, &all)
	s.Len(all, 3)

	rw = s.do(http.MethodGet, "/api/shop/item?limit=2", "viewer", nil)
	s.Require().Equal(http.StatusOK, rw.Code)
	var page []model.APIRecord
	s.decode(rw, &page)
	s.Require().Len(page, 2)
	s.Equal("a", page[0]["name"])
	s.Contains(rw.Header().Get("Link"), `rel="next"`)

	rw = s.do(http.MethodGet, "/api/shop/item?limit=x", "viewer", nil)
	s.Equal(http.StatusBadRequest, rw.Code)
}

func (s *ServiceSuite) TestCreate() {
	rw := s.do(http.MethodPost, "/api/shop/item", "viewer", map[string]interface{}{"name": "pen"})
	s.Equal(http.StatusForbidden, rw.Code)

	rw = s.do(http.MethodPost, "/api/shop/item", "root", map[string]interface{}{"name": "pen", "price": 2.5})
	s.Require().Equal(http.StatusCreated, rw.Code)
	var created model.APIRecord
	s.decode(rw, &created)
	s.NotEmpty(created["id"])
	s.Equal("pen", created["name"])
	s.Equal(2.5, created["price"])

	rw = s.do(http.MethodPost, "/api/shop/item", "root", map[string]interface{}{"price": 2.5})
	s.Equal(http.StatusBadRequest, rw.Code)

	rw = s.do(http.MethodPost, "/api/shop/item", "root", "{not json")
	s.Equal(http.StatusBadRequest, rw.Code)
}

func (s *ServiceSuite) TestRetrieve() {
	id := s.seed("pen")

	rw := s.do(http.MethodGet, "/api/shop/item/"+id, "viewer", nil)
	s.Require().Equal(http.StatusOK, rw.Code)
	var rec model.APIRecord
	s.decode(rw, &rec)
	s.Equal(id, rec["id"])

	rw = s.do(http.MethodGet, "/api/shop/item/missing", "viewer", nil)
	s.Equal(http.StatusNotFound, rw.Code)
}

func (s *ServiceSuite) TestUpdateAndDelete() {
	id := s.seed("pen")

	rw := s.do(http.MethodPatch, "/api/shop/item/"+id, "viewer", map[string]interface{}{"price": 3})
	s.Equal(http.StatusForbidden, rw.Code)

	rw = s.do(http.MethodPatch, "/api/shop/item/"+id, "root", map[string]interface{}{"price": 3})
	s.Require().Equal(http.StatusOK, rw.Code)
	var rec model.APIRecord
	s.decode(rw, &rec)
	s.Equal("pen", rec["name"])
	s.Equal(3.0, rec["price"])

	rw = s.do(http.MethodPut, "/api/shop/item/"+id, "root", map[string]interface{}{"name": "ink"})
	s.Require().Equal(http.StatusOK, rw.Code)
	rec = model.APIRecord{}
	s.decode(rw, &rec)
	s.Equal("ink", rec["name"])
	s.Nil(rec["price"])

	rw = s.do(http.MethodDelete, "/api/shop/item/"+id, "root", nil)
	s.Equal(http.StatusNoContent, rw.Code)
	rw = s.do(http.MethodDelete, "/api/shop/item/"+id, "root", nil)
	s.Equal(http.StatusNotFound, rw.Code)
}

func (s *ServiceSuite) TestOptions() {
	rw := s.do(http.MethodOptions, "/api/shop/item", "", nil)
	s.Require().Equal(http.StatusOK, rw.Code)
	s.Equal("GET, POST, OPTIONS", rw.Header().Get("Allow"))

	var meta struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Allowed     []string `json:"allowed_methods"`
	}
	s.decode(rw, &meta)
	s.Equal("items", meta.Name)
	s.Equal(GenerateDocs(s.item), meta.Description)

	rw = s.do(http.MethodOptions, "/api/shop/item/abc", "", nil)
	s.Require().Equal(http.StatusOK, rw.Code)
	s.Equal("GET, PUT, PATCH, DELETE, OPTIONS", rw.Header().Get("Allow"))
}

func (s *ServiceSuite) TestDocs() {
	rw := s.do(http.MethodGet, "/api/docs", "", nil)
	s.Require().Equal(http.StatusOK, rw.Code)
	s.Contains(rw.Body.String(), "shop.item")
	s.Contains(rw.Body.String(), "<code>DELETE</code>")

	rw = s.do(http.MethodGet, "/api/docs/shop/item", "", nil)
	s.Require().Equal(http.StatusOK, rw.Code)
	s.Contains(rw.Body.String(), "The APIs include:")

	rw = s.do(http.MethodGet, "/api/docs/shop/order", "", nil)
	s.Equal(http.StatusNotFound, rw.Code)
}
