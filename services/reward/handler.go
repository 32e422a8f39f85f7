package reward

import (
	"net/http"

	"knowledge-ledger/pkg/db/pagination"
	"knowledge-ledger/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/reward", h.ProcessReward)

	v1 := r.Group("/v1")
	v1.POST("/rewards", h.ProcessReward)
	v1.GET("/rewards/:transactionId", h.GetReward)
	v1.GET("/users/:userId/balances", h.GetBalances)
	v1.GET("/users/:userId/rewards", h.ListRewards)
	v1.GET("/supply", h.GetSupply)
}

func (h *Handler) ProcessReward(c *gin.Context) {
	var req Request
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		_ = c.Error(h.service.RejectMalformed(c.Request.Context(), transactionIDOf(c, &req), err))
		return
	}

	result, err := h.service.ProcessReward(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// transactionIDOf recovers the transaction id from a body that failed to decode as a Request.
func transactionIDOf(c *gin.Context, partial *Request) string {
	if partial.TransactionID != "" {
		return partial.TransactionID
	}
	var id struct {
		TransactionID string `json:"transactionId"`
	}
	if err := c.ShouldBindBodyWith(&id, binding.JSON); err != nil {
		return ""
	}
	return id.TransactionID
}

func (h *Handler) GetReward(c *gin.Context) {
	reward, err := h.service.GetReward(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, reward)
}

func (h *Handler) GetBalances(c *gin.Context) {
	userID := c.Param("userId")
	balances, err := h.service.GetBalances(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "balances": balances})
}

func (h *Handler) ListRewards(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	rewards, info, err := h.service.ListRewards(c.Request.Context(), c.Param("userId"), page)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rewards, "pageInfo": info})
}

func (h *Handler) GetSupply(c *gin.Context) {
	supply, err := h.service.GetSupply(c.Request.Context(), c.Query("currency"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": supply})
}
