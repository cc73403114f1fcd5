package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/payments"
)

// PaymentHandler receives outcome callbacks from the payment collaborator.
type PaymentHandler struct {
	Commands commands.Bus
}

func (h PaymentHandler) Outcome(c *gin.Context) {
	var outcome payments.Outcome
	if err := c.ShouldBindJSON(&outcome); err != nil {
		badRequest(c, "body", err)
		return
	}
	result, err := payments.Apply(c.Request.Context(), h.Commands, outcome)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ PaymentHTTP = PaymentHandler{}
