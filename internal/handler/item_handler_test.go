package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinyyama/unimarket-backend/internal/handler"
	"github.com/shinyyama/unimarket-backend/internal/repository"
	"github.com/shinyyama/unimarket-backend/internal/service"
	"github.com/shinyyama/unimarket-backend/internal/testutil"
)

func TestItemAndUserLookups(t *testing.T) {
	gdb := testutil.NewDB(t)
	ih := handler.NewItemHandler(service.NewItemService(repository.NewItemRepository(gdb)), nil)
	uh := handler.NewUserHandler(service.NewUserService(repository.NewUserRepository(gdb)), nil)
	e := echo.New()
	e.GET("/api/items", ih.List)
	e.GET("/api/items/:id", ih.Get)
	e.GET("/api/users/:id/public", uh.GetPublic)

	seller := testutil.CreateUser(t, gdb, "Bob")
	item := testutil.CreateItem(t, gdb, "Desk lamp", seller.ID)
	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/api/items/" + strconv.FormatUint(item.ID, 10))
	require.Equal(t, http.StatusOK, rec.Code)
	var it handler.ItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &it))
	assert.Equal(t, "Desk lamp", it.Title)
	assert.Equal(t, seller.ID, it.SellerID)

	rec = get("/api/items?seller_id=" + strconv.FormatUint(seller.ID, 10))
	require.Equal(t, http.StatusOK, rec.Code)
	var list handler.ItemListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Total)

	assert.Equal(t, http.StatusBadRequest, get("/api/items?seller_id=x").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/items/999").Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/items/abc").Code)

	rec = get("/api/users/" + strconv.FormatUint(seller.ID, 10) + "/public")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":`+strconv.FormatUint(seller.ID, 10)+`,"name":"Bob"}`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, get("/api/users/999/public").Code)
}
