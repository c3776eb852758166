package httpserver

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"learnstore/internal/analytics"
	"learnstore/internal/checkout"
	"learnstore/internal/domain"
	"learnstore/internal/payment"
	"learnstore/internal/repository/paymentresponse"
	basketsvc "learnstore/internal/service/basket"
)

type handlers struct {
	deps   Deps
	logger *log.Logger
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}

// writeError maps service errors to responses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, basketsvc.ErrAlreadyPurchased):
		c.JSON(http.StatusNotAcceptable, errorBody(err.Error()))
	case errors.Is(err, basketsvc.ErrNoSKUs),
		errors.Is(err, basketsvc.ErrProductsNotFound),
		errors.Is(err, basketsvc.ErrNothingAvailable),
		errors.Is(err, basketsvc.ErrInvalidQuantity),
		errors.Is(err, basketsvc.ErrLineIDRequired):
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, domain.ErrBasketFrozen):
		c.JSON(http.StatusConflict, errorBody(err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}
}

func (h *handlers) addItems(c *gin.Context) {
	in := basketsvc.AddInput{SKUs: c.QueryArray("sku"), Currency: c.Query("currency")}
	if bid, err := c.Cookie("sailthru_bid"); err == nil {
		in.MessageID = bid
	}
	basket, err := h.deps.BasketSvc.AddItems(c.Request.Context(), siteFrom(c), userFrom(c), in)
	if err != nil {
		if !errors.Is(err, basketsvc.ErrAlreadyPurchased) {
			h.logger.Printf("api: add items user=%s error=%v", userFrom(c).Username, err)
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "Course added to the basket successfully", "basket_id": basket.ID, "basket": basket})
}

func (h *handlers) getBasket(c *gin.Context) {
	basket, err := h.deps.BasketSvc.Get(c.Request.Context(), siteFrom(c), userFrom(c), c.Param("basketID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, basket)
}

func (h *handlers) changeQuantity(c *gin.Context) {
	var in basketsvc.ChangeQuantityInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid body"))
		return
	}
	basket, err := h.deps.BasketSvc.ChangeQuantity(c.Request.Context(), siteFrom(c), userFrom(c), c.Param("basketID"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, basket)
}

type checkoutRequest struct {
	BasketID         string            `json:"basket_id"`
	PaymentProcessor string            `json:"payment_processor"`
	Payment          map[string]string `json:"payment"`
}

func (h *handlers) checkout(c *gin.Context) {
	site, user := siteFrom(c), userFrom(c)
	if h.deps.Tracker != nil {
		now := h.deps.Now()
		emittedAt := float64(now.Unix()) + float64(now.Nanosecond())/float64(time.Second)
		h.deps.Tracker.TrackSilently(c.Request.Context(), site, user, analytics.MobileCoursePurchaseViewCalled, map[string]any{"emitted_at": emittedAt})
	}

	var body checkoutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body", "reason": checkout.ReasonInvalidRequest})
		return
	}
	if body.BasketID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Basket id is not provided", "reason": checkout.ReasonInvalidRequest})
		return
	}
	req := checkout.Request{
		Site:      site,
		User:      user,
		BasketID:  body.BasketID,
		Processor: body.PaymentProcessor,
		Payload:   payment.Payload(body.Payment),
	}
	if bid, err := c.Cookie("sailthru_bid"); err == nil {
		req.MessageID = bid
	}

	out := h.deps.Checkout.Place(c.Request.Context(), req)
	if out.Kind == checkout.Success {
		c.JSON(http.StatusOK, gin.H{"order_number": out.OrderNumber})
		return
	}
	c.JSON(out.HTTPStatus(), gin.H{"error": string(out.Kind), "reason": out.Reason})
}

func (h *handlers) listPaymentResponses(c *gin.Context) {
	filter := paymentresponse.Filter{
		ProcessorName: c.Query("processor"),
		TransactionID: c.Query("transaction_id"),
		BasketID:      c.Query("basket_id"),
	}
	if filter.TransactionID == "" && filter.BasketID == "" {
		c.JSON(http.StatusBadRequest, errorBody("transaction_id or basket_id required"))
		return
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, errorBody("invalid limit"))
			return
		}
		filter.Limit = limit
	}
	rows, err := h.deps.Audit.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Printf("api: list payment responses error=%v", err)
		writeError(c, err)
		return
	}
	if rows == nil {
		rows = []domain.PaymentProcessorResponse{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(rows), "results": rows})
}
