// Package gateway adapts the Mercado Pago SDK behind the payments service's
// Gateway interface.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"eventcover_backend/platform/apperr"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
)

// ErrMissingAccessToken is returned when the gateway is constructed without
// a MERCADOPAGO_ACCESS_TOKEN.
var ErrMissingAccessToken = errors.New("missing mercado pago access token")

// Charge is a synchronous card charge request.
type Charge struct {
	AmountCents     int64
	CardToken       string
	PaymentMethodID string
	Installments    int
	PayerEmail      string
	Description     string
}

// Result is the gateway's answer to a charge.
type Result struct {
	ID       string
	Approved bool
	Detail   string
}

// MercadoPago wraps the official SDK payment client.
type MercadoPago struct {
	client payment.Client
}

// NewMercadoPago creates the gateway from an access token.
func NewMercadoPago(accessToken string) (*MercadoPago, error) {
	if accessToken == "" {
		return nil, ErrMissingAccessToken
	}
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create mercado pago config: %w", err)
	}
	return &MercadoPago{client: payment.NewClient(cfg)}, nil
}

// Charge submits the payment and maps the outcome. A transport or SDK error
// becomes KindGatewayUnavailable; a non-approved status is returned as a
// declined result, not an error.
func (g *MercadoPago) Charge(ctx context.Context, req Charge) (*Result, error) {
	installments := req.Installments
	if installments < 1 {
		installments = 1
	}

	sdkReq := payment.Request{
		TransactionAmount: float64(req.AmountCents) / 100,
		Token:             req.CardToken,
		PaymentMethodID:   req.PaymentMethodID,
		Installments:      installments,
		Description:       req.Description,
	}
	if req.PayerEmail != "" {
		sdkReq.Payer = &payment.PayerRequest{Email: req.PayerEmail}
	}

	resp, err := g.client.Create(ctx, sdkReq)
	if err != nil {
		return nil, apperr.GatewayUnavailable("payment gateway unreachable", err)
	}

	return &Result{
		ID:       strconv.Itoa(resp.ID),
		Approved: resp.Status == "approved",
		Detail:   resp.StatusDetail,
	}, nil
}
