package mercadopago

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// the payments API rejects quoted amounts
	decimal.MarshalJSONWithoutQuotes = true
}

type PaymentStatus string

const (
	StatusPending     PaymentStatus = "pending"
	StatusApproved    PaymentStatus = "approved"
	StatusAuthorized  PaymentStatus = "authorized"
	StatusInProcess   PaymentStatus = "in_process"
	StatusInMediation PaymentStatus = "in_mediation"
	StatusRejected    PaymentStatus = "rejected"
	StatusCancelled   PaymentStatus = "cancelled"
	StatusRefunded    PaymentStatus = "refunded"
	StatusChargedBack PaymentStatus = "charged_back"
)

const PaymentMethodPix = "pix"

const NotificationTypePayment = "payment"

type PaymentRequest struct {
	TransactionAmount   decimal.Decimal   `json:"transaction_amount"`
	Description         string            `json:"description"`
	PaymentMethodID     string            `json:"payment_method_id"`
	Payer               Payer             `json:"payer"`
	ExternalReference   string            `json:"external_reference"`
	NotificationURL     string            `json:"notification_url,omitempty"`
	StatementDescriptor string            `json:"statement_descriptor,omitempty"`
	Installments        int               `json:"installments,omitempty"`
	BinaryMode          bool              `json:"binary_mode,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	AdditionalInfo      *AdditionalInfo   `json:"additional_info,omitempty"`
}

func (r *PaymentRequest) Validate() error {
	if !r.TransactionAmount.IsPositive() {
		return errors.New("transaction_amount must be greater than 0")
	}
	if r.PaymentMethodID == "" {
		return errors.New("payment_method_id is required")
	}
	if r.Payer.Email == "" {
		return errors.New("payer.email is required")
	}
	return nil
}

type Payer struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type AdditionalInfo struct {
	Items []Item `json:"items,omitempty"`
}

type Item struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	CategoryID  string          `json:"category_id,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type Payment struct {
	ID                 int64               `json:"id"`
	Status             PaymentStatus       `json:"status"`
	StatusDetail       string              `json:"status_detail"`
	ExternalReference  string              `json:"external_reference"`
	DateCreated        string              `json:"date_created,omitempty"`
	DateApproved       string              `json:"date_approved,omitempty"`
	TransactionAmount  decimal.Decimal     `json:"transaction_amount"`
	CurrencyID         string              `json:"currency_id,omitempty"`
	PaymentMethodID    string              `json:"payment_method_id,omitempty"`
	PaymentTypeID      string              `json:"payment_type_id,omitempty"`
	Payer              Payer               `json:"payer"`
	Metadata           map[string]any      `json:"metadata,omitempty"`
	PointOfInteraction *PointOfInteraction `json:"point_of_interaction,omitempty"`
}

// IDString is the identifier as the browser and the tracking layer see it.
func (p *Payment) IDString() string {
	return strconv.FormatInt(p.ID, 10)
}

func (p *Payment) TransactionData() TransactionData {
	if p.PointOfInteraction == nil {
		return TransactionData{}
	}
	return p.PointOfInteraction.TransactionData
}

type PointOfInteraction struct {
	Type            string          `json:"type,omitempty"`
	TransactionData TransactionData `json:"transaction_data"`
}

type TransactionData struct {
	QRCode                   string          `json:"qr_code,omitempty"`
	QRCodeBase64             string          `json:"qr_code_base64,omitempty"`
	TicketURL                string          `json:"ticket_url,omitempty"`
	TransactionID            string          `json:"transaction_id,omitempty"`
	BankTransferID           json.RawMessage `json:"bank_transfer_id,omitempty"`
	FinancialInstitution     string          `json:"financial_institution,omitempty"`
	BankInfo                 json.RawMessage `json:"bank_info,omitempty"`
	PaymentMethodReferenceID string          `json:"payment_method_reference_id,omitempty"`
}

// ErrorBody is the provider's error document for non-2xx answers.
type ErrorBody struct {
	Message string       `json:"message"`
	Error   string       `json:"error"`
	Status  int          `json:"status"`
	Cause   []ErrorCause `json:"cause"`
}

type ErrorCause struct {
	Code        int             `json:"code"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON accepts numeric and string cause codes, the provider sends both.
func (c *ErrorCause) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code        json.RawMessage `json:"code"`
		Description string          `json:"description"`
		Data        json.RawMessage `json:"data,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Description = raw.Description
	c.Data = raw.Data

	code := strings.Trim(string(raw.Code), `"`)
	if code == "" || code == "null" {
		return nil
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return nil
	}
	c.Code = n
	return nil
}

// Notification is the webhook document. data.id arrives as a string or a number
// depending on the notification version.
type Notification struct {
	ID     json.RawMessage  `json:"id,omitempty"`
	Type   string           `json:"type"`
	Topic  string           `json:"topic,omitempty"`
	Action string           `json:"action,omitempty"`
	Data   NotificationData `json:"data"`
}

type NotificationData struct {
	ID ResourceID `json:"id"`
}

type ResourceID string

func (r *ResourceID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*r = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*r = ResourceID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = ResourceID(n.String())
	return nil
}

// EventType is the notification type. The legacy topic field is kept for
// logging only and never selects processing.
func (n *Notification) EventType() string {
	return n.Type
}
