package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/shinyyama/unimarket-backend/internal/logging"
	"github.com/shinyyama/unimarket-backend/internal/model"
	"github.com/shinyyama/unimarket-backend/internal/service"
)

type ItemHandler struct {
	svc service.ItemService
	log logrus.FieldLogger
}

func NewItemHandler(svc service.ItemService, log logrus.FieldLogger) *ItemHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &ItemHandler{svc: svc, log: log}
}

type ItemResponse struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       uint   `json:"price"`
	SellerID    uint64 `json:"seller_id"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

type ItemListResponse struct {
	Items []ItemResponse `json:"items"`
	Total int64          `json:"total"`
}

func toItemResponse(item *model.Item) ItemResponse {
	return ItemResponse{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		Price:       item.Price,
		SellerID:    item.SellerID,
		Status:      item.Status,
		CreatedAt:   item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *ItemHandler) Get(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	item, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, h.log, err, "failed to fetch item")
	}
	return c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *ItemHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	var sellerID uint64
	if s := c.QueryParam("seller_id"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid seller_id"))
		}
		sellerID = v
	}
	items, total, err := h.svc.List(c.Request().Context(), limit, offset, sellerID)
	if err != nil {
		return writeServiceError(c, h.log, err, "failed to fetch items")
	}
	resp := ItemListResponse{
		Items: make([]ItemResponse, 0, len(items)),
		Total: total,
	}
	for i := range items {
		resp.Items = append(resp.Items, toItemResponse(&items[i]))
	}
	return c.JSON(http.StatusOK, resp)
}
