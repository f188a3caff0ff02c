package server

import (
	"net/http"

	"github.com/IkramBagban/proxlay-sub001/internal/auth"
	paymentdomain "github.com/IkramBagban/proxlay-sub001/internal/payment/domain"
	subscriptiondomain "github.com/IkramBagban/proxlay-sub001/internal/subscription/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateSubscription(c *gin.Context) {
	userID, _ := auth.UserID(c.Request.Context())

	var req subscriptiondomain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, subscriptiondomain.ErrInvalidPlan)
		return
	}
	req.UserID = userID

	resp, err := s.subscriptionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateTrialSubscription(c *gin.Context) {
	userID, _ := auth.UserID(c.Request.Context())

	resp, err := s.subscriptionSvc.CreateTrial(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifyPayment(c *gin.Context) {
	userID, _ := auth.UserID(c.Request.Context())

	var req paymentdomain.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, paymentdomain.ErrValidation)
		return
	}
	req.UserID = userID

	resp, err := s.paymentSvc.VerifyAndApplyPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetSubscriptionStatus(c *gin.Context) {
	userID, _ := auth.UserID(c.Request.Context())

	resp, err := s.subscriptionSvc.GetUserSubscriptionStatus(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
