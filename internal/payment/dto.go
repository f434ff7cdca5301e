package payment

import (
	"strings"

	"github.com/frahmantamala/kit-checkout/internal/core/common/validation"
	mp "github.com/frahmantamala/kit-checkout/internal/core/datamodel/mercadopago"
	"github.com/shopspring/decimal"
)

// CreatePaymentRequest is the body of the generate-pix endpoints.
type CreatePaymentRequest struct {
	Email string `json:"email"`
}

func (r *CreatePaymentRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

func (r *CreatePaymentRequest) Validate() error {
	if appErr := validation.ValidateEmail(r.Email); appErr != nil {
		return appErr
	}
	return nil
}

// PaymentResponse carries the fields the checkout page renders.
type PaymentResponse struct {
	ID                 int64                  `json:"id"`
	Status             mp.PaymentStatus       `json:"status"`
	StatusDetail       string                 `json:"status_detail"`
	ExternalReference  string                 `json:"external_reference"`
	DateCreated        string                 `json:"date_created,omitempty"`
	TransactionAmount  decimal.Decimal        `json:"transaction_amount"`
	QRCode             string                 `json:"qr_code,omitempty"`
	QRCodeBase64       string                 `json:"qr_code_base64,omitempty"`
	TicketURL          string                 `json:"ticket_url,omitempty"`
	PointOfInteraction *mp.PointOfInteraction `json:"point_of_interaction"`
	Payer              PayerResponse          `json:"payer"`
	Metadata           ResponseMetadata       `json:"metadata"`
}

type PayerResponse struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type ResponseMetadata struct {
	RequestID string `json:"request_id"`
	KitType   string `json:"kit_type"`
}

// CheckPaymentResponse is the subset of a payment exposed to the polling page.
type CheckPaymentResponse struct {
	ID                 int64                  `json:"id"`
	Status             mp.PaymentStatus       `json:"status"`
	StatusDetail       string                 `json:"status_detail"`
	ExternalReference  string                 `json:"external_reference"`
	DateApproved       string                 `json:"date_approved,omitempty"`
	TransactionAmount  decimal.Decimal        `json:"transaction_amount"`
	Payer              CheckPayer             `json:"payer"`
	PaymentMethod      PaymentMethod          `json:"payment_method"`
	PointOfInteraction *mp.PointOfInteraction `json:"point_of_interaction,omitempty"`
}

type CheckPayer struct {
	Email string `json:"email,omitempty"`
}

type PaymentMethod struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
}

// CheckPaymentErrorResponse is returned with the provider's status when a lookup fails.
type CheckPaymentErrorResponse struct {
	Error     string `json:"error"`
	Status    string `json:"status"`
	PaymentID string `json:"payment_id"`
}

// NotificationResult is the outcome of processing one webhook notification.
type NotificationResult struct {
	Ignored   bool
	PaymentID string
	Status    mp.PaymentStatus
}

type WebhookResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

func toPaymentResponse(p *mp.Payment, requestID, kitType string) *PaymentResponse {
	td := p.TransactionData()
	return &PaymentResponse{
		ID:                 p.ID,
		Status:             p.Status,
		StatusDetail:       p.StatusDetail,
		ExternalReference:  p.ExternalReference,
		DateCreated:        p.DateCreated,
		TransactionAmount:  p.TransactionAmount,
		QRCode:             td.QRCode,
		QRCodeBase64:       td.QRCodeBase64,
		TicketURL:          td.TicketURL,
		PointOfInteraction: p.PointOfInteraction,
		Payer: PayerResponse{
			Email:     p.Payer.Email,
			FirstName: p.Payer.FirstName,
			LastName:  p.Payer.LastName,
		},
		Metadata: ResponseMetadata{
			RequestID: requestID,
			KitType:   kitType,
		},
	}
}

func toCheckPaymentResponse(p *mp.Payment) *CheckPaymentResponse {
	return &CheckPaymentResponse{
		ID:                 p.ID,
		Status:             p.Status,
		StatusDetail:       p.StatusDetail,
		ExternalReference:  p.ExternalReference,
		DateApproved:       p.DateApproved,
		TransactionAmount:  p.TransactionAmount,
		Payer:              CheckPayer{Email: p.Payer.Email},
		PaymentMethod:      PaymentMethod{ID: p.PaymentMethodID, Type: p.PaymentTypeID},
		PointOfInteraction: p.PointOfInteraction,
	}
}
