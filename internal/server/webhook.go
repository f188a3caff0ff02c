package server

import (
	"io"
	"net/http"

	paymentdomain "github.com/IkramBagban/proxlay-sub001/internal/payment/domain"
	"github.com/gin-gonic/gin"
)

const gatewaySignatureHeader = "X-Razorpay-Signature"

// HandleGatewayWebhook acknowledges every signature-verified delivery with
// 200, including unrecognized event types, so the gateway stops retrying.
// Processing failures after verification return 5xx on purpose: redelivery is
// how a transient failure gets healed.
func (s *Server) HandleGatewayWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, paymentdomain.ErrValidation)
		return
	}

	err = s.webhookSvc.HandleWebhook(c.Request.Context(), payload, c.GetHeader(gatewaySignatureHeader))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
