package route

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/restadmin/rest/model"
	"github.com/evergreen-ci/utility"
	"github.com/pkg/errors"
)

func getIntParam(vals url.Values, name string) (int, error) {
	raw := vals.Get(name)
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("invalid %s '%s'", name, raw),
		}
	}
	return n, nil
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

func readPayload(r *http.Request) (model.APIRecord, error) {
	data := model.APIRecord{}
	if err := utility.ReadJSON(utility.NewRequestReader(r), &data); err != nil {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    errors.Wrap(err, "reading JSON request body").Error(),
		}
	}
	return data, nil
}

////////////////////////////////////////////////////////////////////////
//
// GET /{app_label}/{model_name}

type listHandler struct {
	view    *ViewSet
	opts    ListOptions
	baseURL string
}

func makeListHandler(view *ViewSet) gimlet.RouteHandler {
	return &listHandler{view: view}
}

func (h *listHandler) Factory() gimlet.RouteHandler {
	return &listHandler{view: h.view}
}

func (h *listHandler) Parse(ctx context.Context, r *http.Request) error {
	vals := r.URL.Query()

	var err error
	if h.opts.Limit, err = getIntParam(vals, "limit"); err != nil {
		return err
	}
	if h.opts.Offset, err = getIntParam(vals, "offset"); err != nil {
		return err
	}
	h.baseURL = baseURL(r)

	return nil
}

func (h *listHandler) Run(ctx context.Context) gimlet.Responder {
	page, err := h.view.List(ctx, gimlet.GetUser(ctx), h.opts)
	if err != nil {
		return errorResponder(ctx, err)
	}

	resp := gimlet.NewResponseBuilder()
	if err = resp.SetFormat(gimlet.JSON); err != nil {
		return gimlet.MakeJSONInternalErrorResponder(err)
	}

	pages := &gimlet.ResponsePages{}
	if page.HasNext {
		pages.Next = h.page("next", page.Offset+page.Limit, page.Limit)
	}
	if page.Limit > 0 && page.Offset > 0 {
		prev := page.Offset - page.Limit
		if prev < 0 {
			prev = 0
		}
		pages.Prev = h.page("prev", prev, page.Limit)
	}
	if pages.Next != nil || pages.Prev != nil {
		if err = resp.SetPages(pages); err != nil {
			return gimlet.MakeJSONInternalErrorResponder(errors.Wrap(err, "paginating response"))
		}
	}

	if err = resp.AddData(page.Results); err != nil {
		return gimlet.MakeJSONInternalErrorResponder(err)
	}

	return resp
}

func (h *listHandler) page(relation string, offset, limit int) *gimlet.Page {
	return &gimlet.Page{
		BaseURL:         h.baseURL,
		KeyQueryParam:   "offset",
		LimitQueryParam: "limit",
		Relation:        relation,
		Key:             strconv.Itoa(offset),
		Limit:           limit,
	}
}

////////////////////////////////////////////////////////////////////////
//
// POST /{app_label}/{model_name}

type createHandler struct {
	view *ViewSet
	data model.APIRecord
}

func makeCreateHandler(view *ViewSet) gimlet.RouteHandler {
	return &createHandler{view: view}
}

func (h *createHandler) Factory() gimlet.RouteHandler {
	return &createHandler{view: h.view}
}

func (h *createHandler) Parse(ctx context.Context, r *http.Request) error {
	var err error
	h.data, err = readPayload(r)
	return err
}

func (h *createHandler) Run(ctx context.Context) gimlet.Responder {
	out, err := h.view.Create(ctx, gimlet.GetUser(ctx), h.data)
	if err != nil {
		return errorResponder(ctx, err)
	}

	responder := gimlet.NewJSONResponse(out)
	if err = responder.SetStatus(http.StatusCreated); err != nil {
		return gimlet.MakeJSONInternalErrorResponder(errors.Wrapf(err, "setting HTTP status code to %d", http.StatusCreated))
	}
	return responder
}

////////////////////////////////////////////////////////////////////////
//
// GET /{app_label}/{model_name}/{id}

type retrieveHandler struct {
	view *ViewSet
	id   string
}

func makeRetrieveHandler(view *ViewSet) gimlet.RouteHandler {
	return &retrieveHandler{view: view}
}

func (h *retrieveHandler) Factory() gimlet.RouteHandler {
	return &retrieveHandler{view: h.view}
}

func (h *retrieveHandler) Parse(ctx context.Context, r *http.Request) error {
	h.id = gimlet.GetVars(r)["id"]
	return nil
}

func (h *retrieveHandler) Run(ctx context.Context) gimlet.Responder {
	out, err := h.view.Retrieve(ctx, gimlet.GetUser(ctx), h.id)
	if err != nil {
		return errorResponder(ctx, err)
	}
	return gimlet.NewJSONResponse(out)
}

////////////////////////////////////////////////////////////////////////
//
// PUT and PATCH /{app_label}/{model_name}/{id}

type updateHandler struct {
	view    *ViewSet
	partial bool
	id      string
	data    model.APIRecord
}

func makeUpdateHandler(view *ViewSet, partial bool) gimlet.RouteHandler {
	return &updateHandler{view: view, partial: partial}
}

func (h *updateHandler) Factory() gimlet.RouteHandler {
	return &updateHandler{view: h.view, partial: h.partial}
}

func (h *updateHandler) Parse(ctx context.Context, r *http.Request) error {
	h.id = gimlet.GetVars(r)["id"]

	var err error
	h.data, err = readPayload(r)
	return err
}

func (h *updateHandler) Run(ctx context.Context) gimlet.Responder {
	u := gimlet.GetUser(ctx)

	var (
		out model.APIRecord
		err error
	)
	if h.partial {
		out, err = h.view.PartialUpdate(ctx, u, h.id, h.data)
	} else {
		out, err = h.view.Update(ctx, u, h.id, h.data)
	}
	if err != nil {
		return errorResponder(ctx, err)
	}

	return gimlet.NewJSONResponse(out)
}

////////////////////////////////////////////////////////////////////////
//
// DELETE /{app_label}/{model_name}/{id}

type destroyHandler struct {
	view *ViewSet
	id   string
}

func makeDestroyHandler(view *ViewSet) gimlet.RouteHandler {
	return &destroyHandler{view: view}
}

func (h *destroyHandler) Factory() gimlet.RouteHandler {
	return &destroyHandler{view: h.view}
}

func (h *destroyHandler) Parse(ctx context.Context, r *http.Request) error {
	h.id = gimlet.GetVars(r)["id"]
	return nil
}

func (h *destroyHandler) Run(ctx context.Context) gimlet.Responder {
	if err := h.view.Destroy(ctx, gimlet.GetUser(ctx), h.id); err != nil {
		return errorResponder(ctx, err)
	}

	response := gimlet.NewJSONResponse(struct{}{})
	if err := response.SetStatus(http.StatusNoContent); err != nil {
		return gimlet.MakeJSONInternalErrorResponder(errors.Wrapf(err, "setting HTTP status code to %d", http.StatusNoContent))
	}
	return response
}
