package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-seat-lease/internal/application"
	"github.com/sanosuguru/go-seat-lease/internal/domain/seat"
)

type SeatHandler struct {
	service SeatServiceInterface
}

func NewSeatHandler(s SeatServiceInterface) *SeatHandler {
	return &SeatHandler{service: s}
}

type SeatRequest struct {
	Sector    string `json:"sector" validate:"required" example:"A"`
	Row       int    `json:"row" validate:"min=1" example:"1"`
	Number    int    `json:"number" validate:"min=1" example:"1"`
	SessionID string `json:"session_id" validate:"required" example:"a4f1c0de"`
}

type CheckoutRequest struct {
	SessionID string `json:"session_id" validate:"required" example:"a4f1c0de"`
	BuyerName string `json:"buyer_name" validate:"required" example:"Jane Doe"`
}

// SeatResponse は公開用の座席表現。セッションIDと購入者名は含めない。
type SeatResponse struct {
	Sector    string     `json:"sector" example:"A"`
	Row       int        `json:"row" example:"1"`
	Number    int        `json:"number" example:"1"`
	Price     float64    `json:"price" example:"1500"`
	State     string     `json:"state" example:"held"`
	HoldUntil *time.Time `json:"hold_until,omitempty"`
}

type CheckoutResponse struct {
	Count int            `json:"count"`
	Seats []SeatResponse `json:"seats"`
}

type AvailabilityResponse struct {
	Sectors map[string]map[seat.State]int `json:"sectors"`
}

func toSeatResponse(s *seat.Seat) SeatResponse {
	return SeatResponse{
		Sector: s.Sector, Row: s.Row, Number: s.Number,
		Price: s.Price, State: string(s.State), HoldUntil: s.HoldUntil,
	}
}

func toSeatResponses(seats []*seat.Seat) []SeatResponse {
	resp := make([]SeatResponse, len(seats))
	for i, s := range seats {
		resp[i] = toSeatResponse(s)
	}
	return resp
}

// List godoc
// @Summary 座席一覧
// @Description 期限切れの仮押さえを解放したうえで全座席を返します
// @Tags seats
// @Produce json
// @Success 200 {array} SeatResponse
// @Failure 503 {object} map[string]string
// @Router /seats [get]
func (h *SeatHandler) List(c echo.Context) error {
	seats, err := h.service.Status(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatResponses(seats))
}

// Availability godoc
// @Summary 空席集計
// @Tags seats
// @Produce json
// @Success 200 {object} AvailabilityResponse
// @Router /seats/availability [get]
func (h *SeatHandler) Availability(c echo.Context) error {
	a, err := h.service.Availability(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{Sectors: a})
}

// Hold godoc
// @Summary 座席を仮押さえ
// @Description 10分間有効な仮押さえを作成します。自分の仮押さえなら期限を延長します
// @Tags seats
// @Accept json
// @Produce json
// @Param request body SeatRequest true "座席とセッション"
// @Success 200 {object} SeatResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /seats/hold [post]
func (h *SeatHandler) Hold(c echo.Context) error {
	var req SeatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	s, err := h.service.Hold(c.Request().Context(), application.HoldInput{
		Sector: req.Sector, Row: req.Row, Number: req.Number, SessionID: req.SessionID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatResponse(s))
}

// Release godoc
// @Summary 仮押さえを解放
// @Tags seats
// @Accept json
// @Produce json
// @Param request body SeatRequest true "座席とセッション"
// @Success 200 {object} map[string]bool
// @Failure 409 {object} map[string]string
// @Router /seats/release [post]
func (h *SeatHandler) Release(c echo.Context) error {
	var req SeatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if _, err := h.service.Release(c.Request().Context(), application.ReleaseInput{
		Sector: req.Sector, Row: req.Row, Number: req.Number, SessionID: req.SessionID,
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// Checkout godoc
// @Summary カートを購入手続きへ
// @Description セッションが仮押さえ中の座席をすべて確認待ちにします
// @Tags seats
// @Accept json
// @Produce json
// @Param request body CheckoutRequest true "セッションと購入者名"
// @Success 200 {object} CheckoutResponse
// @Failure 400 {object} map[string]string
// @Router /checkout [post]
func (h *SeatHandler) Checkout(c echo.Context) error {
	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	seats, err := h.service.Checkout(c.Request().Context(), application.CheckoutInput{
		SessionID: req.SessionID, BuyerName: req.BuyerName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CheckoutResponse{Count: len(seats), Seats: toSeatResponses(seats)})
}
