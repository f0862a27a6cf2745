package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"backoffice/internal/apperror"
	"backoffice/internal/model"
	"backoffice/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOrderService overrides only the calls under test.
type stubOrderService struct {
	service.OrderService
	created *model.Order
	err     error
	gotReq  service.CreateOrderRequest
}

func (s *stubOrderService) CreateOrder(_ context.Context, _ *uuid.UUID, req service.CreateOrderRequest) (*model.Order, error) {
	s.gotReq = req
	return s.created, s.err
}

func (s *stubOrderService) GetOrder(_ context.Context, id uuid.UUID) (*model.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Order{ID: id, OrderNumber: "ORD-2026-000001"}, nil
}

func newOrderRouter(svc service.OrderService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewOrderHandler(svc).RegisterRoutes(r.Group("/api"))
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	return w, decoded
}

const validOrderBody = `{"source":"pos","items":[{"product_type":"regular","product_id":"6f1c9a54-5b0e-4d4e-9b1a-2c3d4e5f6a7b","quantity":2}]}`

func TestCreateOrder_Created(t *testing.T) {
	svc := &stubOrderService{created: &model.Order{ID: uuid.New(), OrderNumber: "ORD-2026-000001"}}
	w, body := doJSON(t, newOrderRouter(svc), http.MethodPost, "/api/orders", validOrderBody)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "success", body["status"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "ORD-2026-000001", data["order_number"])

	assert.Equal(t, model.SourcePOS, svc.gotReq.Source)
	require.Len(t, svc.gotReq.Items, 1)
	assert.Equal(t, 2, svc.gotReq.Items[0].Quantity)
	assert.Equal(t, model.ProductTypeRegular, svc.gotReq.Items[0].Type)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	svc := &stubOrderService{err: apperror.NewInsufficientStock([]apperror.StockIssue{{
		Line: 0, ProductName: "Table", Requested: 2, Available: 1, Error: apperror.IssueInsufficientStock,
	}})}
	w, body := doJSON(t, newOrderRouter(svc), http.MethodPost, "/api/orders", validOrderBody)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeInsufficientStock, body["code"])
	details := body["details"].(map[string]interface{})
	issues := details["stock_issues"].([]interface{})
	require.Len(t, issues, 1)
	issue := issues[0].(map[string]interface{})
	assert.Equal(t, "Table", issue["product_name"])
	assert.EqualValues(t, 1, issue["available"])
}

func TestCreateOrder_BadPayload(t *testing.T) {
	svc := &stubOrderService{}
	w, body := doJSON(t, newOrderRouter(svc), http.MethodPost, "/api/orders", `{"source":"pos","items":[]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, body["code"])
}

func TestCreateOrder_InternalErrorIsHidden(t *testing.T) {
	svc := &stubOrderService{err: assert.AnError}
	w, body := doJSON(t, newOrderRouter(svc), http.MethodPost, "/api/orders", validOrderBody)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotContains(t, body["error"], assert.AnError.Error())
}

func TestGetOrder(t *testing.T) {
	id := uuid.New()
	w, body := doJSON(t, newOrderRouter(&stubOrderService{}), http.MethodGet, "/api/orders/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id.String(), body["data"].(map[string]interface{})["id"])

	w, body = doJSON(t, newOrderRouter(&stubOrderService{}), http.MethodGet, "/api/orders/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "id", body["details"].(map[string]interface{})["field"])

	missing := &stubOrderService{err: apperror.NewNotFound("order", id)}
	w, body = doJSON(t, newOrderRouter(missing), http.MethodGet, "/api/orders/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, body["code"])
}
