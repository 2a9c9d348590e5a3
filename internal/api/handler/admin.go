package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-seat-lease/internal/domain/seat"
)

// AdminHandler は管理者向けハンドラー（認証はミドルウェアで行う）
type AdminHandler struct {
	service AdminServiceInterface
}

func NewAdminHandler(s AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: s}
}

type ConfirmRequest struct {
	Sector string `json:"sector" validate:"required" example:"A"`
	Row    int    `json:"row" validate:"min=1" example:"1"`
	Number int    `json:"number" validate:"min=1" example:"1"`
}

type InventorySeatRequest struct {
	Sector string  `json:"sector" validate:"required"`
	Row    int     `json:"row" validate:"min=1"`
	Number int     `json:"number" validate:"min=1"`
	Price  float64 `json:"price" validate:"min=0"`
	State  string  `json:"state"`
}

type ReplaceInventoryRequest struct {
	Seats []InventorySeatRequest `json:"seats" validate:"required,dive"`
}

type ConfirmResponse struct {
	OK   bool         `json:"ok"`
	Seat SeatResponse `json:"seat"`
}

type InventoryResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

// Confirm godoc
// @Summary 座席を確定（管理者）
// @Description 現在の状態にかかわらず座席を占有にします
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminToken
// @Param request body ConfirmRequest true "座席"
// @Success 200 {object} ConfirmResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/confirm [post]
func (h *AdminHandler) Confirm(c echo.Context) error {
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	s, err := h.service.Confirm(c.Request().Context(), seat.NewKey(req.Sector, req.Row, req.Number))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ConfirmResponse{OK: true, Seat: toSeatResponse(s)})
}

// ReplaceInventory godoc
// @Summary 在庫を入れ替え（管理者）
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminToken
// @Param request body ReplaceInventoryRequest true "新しい在庫"
// @Success 200 {object} InventoryResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /admin/inventory [put]
func (h *AdminHandler) ReplaceInventory(c echo.Context) error {
	var req ReplaceInventoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	items := make([]seat.InventoryItem, len(req.Seats))
	for i, s := range req.Seats {
		items[i] = seat.InventoryItem{
			Sector: s.Sector, Row: s.Row, Number: s.Number, Price: s.Price, State: s.State,
		}
	}
	count, err := h.service.ReplaceInventory(c.Request().Context(), items)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, InventoryResponse{OK: true, Count: count})
}

// Bootstrap godoc
// @Summary CSVフィードから在庫を読み込む（管理者）
// @Tags admin
// @Produce json
// @Security AdminToken
// @Success 200 {object} InventoryResponse
// @Failure 401 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /admin/bootstrap [post]
func (h *AdminHandler) Bootstrap(c echo.Context) error {
	count, err := h.service.ReplaceInventoryFromFeed(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, InventoryResponse{OK: true, Count: count})
}
