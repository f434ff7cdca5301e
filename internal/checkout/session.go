package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	mp "github.com/frahmantamala/kit-checkout/internal/core/datamodel/mercadopago"
	"github.com/frahmantamala/kit-checkout/internal/payment"
	"github.com/frahmantamala/kit-checkout/internal/poller"
)

const (
	// OfferDuration is how long the checkout countdown runs.
	OfferDuration = 30 * time.Minute
	// DefaultPollInterval is the status check cadence of the checkout page.
	DefaultPollInterval = 5 * time.Second
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

var (
	ErrNoPayment       = errors.New("checkout: no payment to poll")
	ErrAlreadyFinished = errors.New("checkout: payment already finished")
	ErrAlreadyPolling  = errors.New("checkout: already polling")
)

type API interface {
	CreatePayment(ctx context.Context, path, email string) (*payment.PaymentResponse, error)
	CheckPayment(ctx context.Context, id string) (*payment.CheckPaymentResponse, error)
}

// Session is one buyer's pass through the checkout page.
type Session struct {
	api    API
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	email    string
	payment  *payment.PaymentResponse
	status   Status
	deadline time.Time
	polling  bool
}

func NewSession(api API, logger *slog.Logger) *Session {
	s := &Session{
		api:    api,
		logger: logger,
		now:    time.Now,
		status: StatusPending,
	}
	s.deadline = s.now().Add(OfferDuration)
	return s
}

// Start creates the payment for email through the endpoint at path.
func (s *Session) Start(ctx context.Context, path, email string) (*payment.PaymentResponse, error) {
	resp, err := s.api.CreatePayment(ctx, path, email)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
	s.payment = resp
	s.status = StatusPending
	return resp, nil
}

func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

func (s *Session) Payment() *payment.PaymentResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payment
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// TimeLeft is the remaining offer time, never negative.
func (s *Session) TimeLeft() time.Duration {
	left := s.deadline.Sub(s.now())
	if left < 0 {
		return 0
	}
	return left
}

// FormatTimeLeft renders d as MM:SS.
func FormatTimeLeft(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Apply moves the session according to a provider status. Only a pending
// session moves; statuses other than approved and rejected keep it pending.
func (s *Session) Apply(status mp.PaymentStatus) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPending {
		return s.status
	}
	switch status {
	case mp.StatusApproved:
		s.status = StatusApproved
	case mp.StatusRejected:
		s.status = StatusRejected
	}
	return s.status
}

// WaitForPayment polls the payment until it is approved or rejected, or ctx
// ends. Only one poll loop runs per session.
func (s *Session) WaitForPayment(ctx context.Context, interval time.Duration) (Status, error) {
	s.mu.Lock()
	switch {
	case s.payment == nil:
		s.mu.Unlock()
		return s.status, ErrNoPayment
	case s.status != StatusPending:
		status := s.status
		s.mu.Unlock()
		return status, ErrAlreadyFinished
	case s.polling:
		s.mu.Unlock()
		return StatusPending, ErrAlreadyPolling
	}
	s.polling = true
	id := strconv.FormatInt(s.payment.ID, 10)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.polling = false
		s.mu.Unlock()
	}()

	check := func(ctx context.Context) (Status, error) {
		resp, err := s.api.CheckPayment(ctx, id)
		if err != nil {
			return StatusPending, err
		}
		return s.Apply(resp.Status), nil
	}

	return poller.Until(ctx, interval, check, Status.Terminal,
		poller.OnError[Status](func(attempt int, err error) {
			s.logger.Warn("checkout: status check failed, will retry", "payment_id", id, "attempt", attempt, "error", err)
		}),
		poller.OnStatus[Status](func(attempt int, status Status) {
			s.logger.Debug("checkout: status checked", "payment_id", id, "attempt", attempt, "status", status)
		}),
	)
}
