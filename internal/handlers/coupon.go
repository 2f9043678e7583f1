package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/nutrishop/storefront/internal/models"
	"github.com/nutrishop/storefront/internal/service/coupon"
	"github.com/nutrishop/storefront/internal/transport/api"
)

type CouponHandler struct {
	DB        *gorm.DB
	Validator *coupon.Validator
}

func (h *CouponHandler) ValidateCoupon(c echo.Context) error {
	var req struct {
		Code     string  `json:"code"`
		Subtotal float64 `json:"subtotal"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	result, err := h.Validator.Validate(c.Request().Context(), req.Code, req.Subtotal)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return api.OK(c, "Success", result)
}

func (h *CouponHandler) CreateCoupon(c echo.Context) error {
	var req struct {
		Code       string     `json:"code"`
		Type       string     `json:"type"`
		Value      float64    `json:"value"`
		StartsAt   *time.Time `json:"starts_at"`
		EndsAt     *time.Time `json:"ends_at"`
		UsageLimit int        `json:"usage_limit"`
		Active     *bool      `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Code == "" || req.Value < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required and value must be >= 0")
	}
	if req.Type != models.CouponPercent && req.Type != models.CouponFixed {
		return echo.NewHTTPError(http.StatusBadRequest, "type must be percent or fixed")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	cpn := models.Coupon{
		Code:       req.Code,
		Type:       req.Type,
		Value:      req.Value,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
		UsageLimit: req.UsageLimit,
		Active:     active,
	}
	if err := h.DB.Create(&cpn).Error; err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	return api.Created(c, "Coupon created", cpn)
}
