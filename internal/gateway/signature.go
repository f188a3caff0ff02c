package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyPaymentSignature checks the signature a client submits with a payment
// confirmation. The gateway signs the canonical string "paymentID|subscriptionID"
// with the shared key secret. Missing inputs verify as false, never panic.
func VerifyPaymentSignature(paymentID, subscriptionID, providedSignature, secret string) bool {
	if paymentID == "" || subscriptionID == "" || providedSignature == "" || secret == "" {
		return false
	}
	payload := paymentID + "|" + subscriptionID
	return verifyHMAC([]byte(payload), providedSignature, secret)
}

// VerifyWebhookSignature checks a gateway webhook signature computed over the
// exact raw body bytes as received.
func VerifyWebhookSignature(body []byte, providedSignature, secret string) bool {
	if len(body) == 0 || providedSignature == "" || secret == "" {
		return false
	}
	return verifyHMAC(body, providedSignature, secret)
}

func verifyHMAC(payload []byte, providedSignature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(providedSignature), []byte(expected))
}
