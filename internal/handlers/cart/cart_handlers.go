package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	mwauth "github.com/nutrishop/storefront/internal/middleware/auth"
	"github.com/nutrishop/storefront/internal/models"
	"github.com/nutrishop/storefront/internal/mykafka"
	"github.com/nutrishop/storefront/internal/transport/api"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer mykafka.Publisher
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}

	cart, err := h.getOrCreateCart(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return api.OK(c, "Success", cart)
}

func (h *CartHandler) AddItem(c echo.Context) error {
	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		VariantID uint `json:"variant_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
	}

	unit, err := h.catalogPrice(req.VariantID)
	if err != nil {
		return err
	}

	cart, err := h.getOrCreateCart(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var item models.CartItem
	tx := h.DB.Where("cart_id = ? AND variant_id = ?", cart.ID, req.VariantID).First(&item)
	if tx.Error == nil {
		item.Quantity += req.Quantity
		if err := h.DB.Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	} else if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		item = models.CartItem{
			CartID:    cart.ID,
			VariantID: req.VariantID,
			Quantity:  req.Quantity,
			Price:     unit,
		}
		if err := h.DB.Create(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	} else {
		return echo.NewHTTPError(http.StatusInternalServerError, tx.Error.Error())
	}

	h.publish(c, userID, map[string]interface{}{
		"type":      "cart_item_added",
		"userID":    userID,
		"variantID": req.VariantID,
		"quantity":  item.Quantity,
	})

	return h.respondCart(c, userID, "Item added")
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Quantity uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
	}

	item, herr := h.ownedItem(userID, uint(id))
	if herr != nil {
		return herr
	}

	item.Quantity = req.Quantity
	if err := h.DB.Save(item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, userID, map[string]interface{}{
		"type":     "cart_item_updated",
		"userID":   userID,
		"itemID":   item.ID,
		"quantity": item.Quantity,
	})

	return h.respondCart(c, userID, "Item updated")
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	item, herr := h.ownedItem(userID, uint(id))
	if herr != nil {
		return herr
	}

	if err := h.DB.Delete(item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, userID, map[string]interface{}{
		"type":   "cart_item_removed",
		"userID": userID,
		"itemID": id,
	})

	return h.respondCart(c, userID, "Item removed")
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}

	var cart models.Cart
	if err := h.DB.Where("user_id = ?", userID).First(&cart).Error; err == nil {
		if err := h.DB.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, userID, map[string]interface{}{
		"type":   "cart_cleared",
		"userID": userID,
	})

	return api.OK(c, "Cart cleared", nil)
}

// MergeGuestCart folds a client-side guest cart into the user's
// persisted cart. The merge is idempotent: a variant already present
// keeps its quantity, so replaying the same merge changes nothing.
func (h *CartHandler) MergeGuestCart(c echo.Context) error {
	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Items []struct {
			VariantID uint `json:"variant_id"`
			Quantity  uint `json:"quantity"`
		} `json:"items"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	cart, err := h.getOrCreateCart(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		for _, it := range req.Items {
			if it.Quantity < 1 {
				continue
			}

			var existing models.CartItem
			err := tx.Where("cart_id = ? AND variant_id = ?", cart.ID, it.VariantID).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			unit, herr := h.catalogPrice(it.VariantID)
			if herr != nil {
				return herr
			}
			item := models.CartItem{
				CartID:    cart.ID,
				VariantID: it.VariantID,
				Quantity:  it.Quantity,
				Price:     unit,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		if he, ok := txErr.(*echo.HTTPError); ok {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	h.publish(c, userID, map[string]interface{}{
		"type":   "cart_merged",
		"userID": userID,
	})

	return h.respondCart(c, userID, "Cart merged")
}

func (h *CartHandler) getOrCreateCart(userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := h.DB.Preload("Items").Where("user_id = ?", userID).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = models.Cart{UserID: userID, Items: []models.CartItem{}}
	if err := h.DB.Create(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (h *CartHandler) ownedItem(userID, itemID uint) (*models.CartItem, error) {
	var cart models.Cart
	if err := h.DB.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "cart not found")
	}

	var item models.CartItem
	if err := h.DB.Where("id = ? AND cart_id = ?", itemID, cart.ID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "cart item not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return &item, nil
}

// catalogPrice snapshots the current catalog price for a variant;
// client-supplied prices are never trusted.
func (h *CartHandler) catalogPrice(variantID uint) (float64, error) {
	var price models.Price
	if err := h.DB.Where("variant_id = ?", variantID).First(&price).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, echo.NewHTTPError(http.StatusBadRequest, "unknown variant")
		}
		return 0, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if price.SalePrice != nil {
		return *price.SalePrice, nil
	}
	return price.BasePrice, nil
}

func (h *CartHandler) respondCart(c echo.Context, userID uint, message string) error {
	var cart models.Cart
	if err := h.DB.Preload("Items").Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return api.OK(c, message, cart)
}
