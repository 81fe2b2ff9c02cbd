package orders

import (
	"context"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
	"github.com/ariefcatur/exam-vouchers/internal/discounts"
	"github.com/google/uuid"
)

// DiscountValidator is the read-only half of the discount ledger.
type DiscountValidator interface {
	Validate(ctx context.Context, in discounts.Input) (discounts.Result, error)
}

type ChargeRequest struct {
	OrderID     string
	OrderNumber string
	Amount      float64
	Currency    string
	Description string
	Customer    Customer
	RedirectURL string
	WebhookURL  string
}

type Charge struct {
	ID          string
	Status      string
	RedirectURL string
}

// ChargeCreator is the part of the payment gateway checkout needs.
type ChargeCreator interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error)
}

type CheckoutRequest struct {
	CertificateCode string   `json:"certificateCode"`
	Quantity        int      `json:"quantity"`
	Customer        Customer `json:"customer"`
	DiscountCode    string   `json:"discountCode,omitempty"`
}

type Checkout struct {
	Order       Order
	RedirectURL string
}

type Service struct {
	Store     Store
	Catalog   Catalog
	Discounts DiscountValidator
	Gateway   ChargeCreator

	Currency string
	// ReturnURL builds the success page URL the gateway redirects to.
	ReturnURL  func(orderID string) string
	WebhookURL string

	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateOrder prices a checkout, stores it as PENDING and opens a gateway
// charge for it. Every call creates a new order and a new charge.
func (s *Service) CreateOrder(ctx context.Context, caller Caller, req CheckoutRequest) (Checkout, error) {
	if err := validateCheckout(req); err != nil {
		return Checkout{}, err
	}

	cert, err := s.Catalog.CertificateByCode(ctx, req.CertificateCode)
	if apperr.Is(err, apperr.KindNotFound) || (err == nil && !cert.Active) {
		return Checkout{}, apperr.Validation("CERTIFICATE_UNAVAILABLE",
			"Selected certificate is not available", "الشهادة المختارة غير متاحة")
	}
	if err != nil {
		return Checkout{}, err
	}
	settings, err := s.Catalog.Settings(ctx)
	if err != nil {
		return Checkout{}, err
	}

	customer := normalizeCustomer(req.Customer)
	unitPrice := cert.PriceFor(caller)
	if caller.IsInstitution() {
		customer.Institution = caller.Institution
	}

	base := Price(unitPrice, req.Quantity, 0, settings.VATPercent)
	var discountCode string
	var discount float64
	if strings.TrimSpace(req.DiscountCode) != "" {
		res, err := s.Discounts.Validate(ctx, discounts.Input{
			Code:         req.DiscountCode,
			Quantity:     req.Quantity,
			CustomerName: customer.DisplayName(),
			Subtotal:     base.Subtotal,
		})
		if err != nil {
			return Checkout{}, err
		}
		discountCode, discount = res.Code, res.Amount
	}
	totals := Price(unitPrice, req.Quantity, discount, settings.VATPercent)

	o := Order{
		ID:             uuid.NewString(),
		CertificateID:  cert.ID,
		Customer:       customer,
		Quantity:       req.Quantity,
		UnitPrice:      totals.UnitPrice,
		Subtotal:       totals.Subtotal,
		DiscountCode:   discountCode,
		DiscountAmount: totals.DiscountAmount,
		VATAmount:      totals.VATAmount,
		TotalAmount:    totals.Total,
	}
	if err := s.Store.Insert(ctx, &o); err != nil {
		return Checkout{}, fmt.Errorf("insert order: %w", err)
	}

	chReq := ChargeRequest{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Amount:      o.TotalAmount,
		Currency:    s.Currency,
		Description: fmt.Sprintf("%d x %s", o.Quantity, cert.NameEn),
		Customer:    o.Customer,
		WebhookURL:  s.WebhookURL,
	}
	if s.ReturnURL != nil {
		chReq.RedirectURL = s.ReturnURL(o.ID)
	}
	ch, err := s.Gateway.CreateCharge(ctx, chReq)
	if err != nil {
		log.Printf("checkout: create charge failed order=%s err=%v", o.OrderNumber, err)
		return Checkout{}, apperr.Upstream("CHARGE_CREATE_FAILED", err)
	}
	if err := s.Store.AttachCharge(ctx, o.ID, ch.ID); err != nil {
		return Checkout{}, fmt.Errorf("attach charge: %w", err)
	}
	o.ChargeID = ch.ID

	log.Printf("checkout: order created order=%s qty=%d total=%.2f discount=%q charge=%s",
		o.OrderNumber, o.Quantity, o.TotalAmount, o.DiscountCode, ch.ID)
	return Checkout{Order: o, RedirectURL: ch.RedirectURL}, nil
}

// Settle moves a PENDING order to a terminal status. Only the first caller
// for an order gets Applied; later ones get AlreadySettled and the current row.
func (s *Service) Settle(ctx context.Context, orderID string, to Status, txnID, method string) (SettleOutcome, Order, error) {
	if !CanTransition(StatusPending, to) {
		return 0, Order{}, apperr.State("NOT_A_SETTLEMENT_STATUS")
	}
	o, applied, err := s.Store.Settle(ctx, SettleParams{
		OrderID:       orderID,
		Status:        to,
		GatewayTxnID:  txnID,
		PaymentMethod: method,
		At:            s.now().UTC(),
	})
	if err != nil {
		return 0, Order{}, err
	}
	if !applied {
		return AlreadySettled, o, nil
	}
	return Applied, o, nil
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, apperr.NotFound("ORDER")
	}
	return s.Store.Get(ctx, id)
}

func (s *Service) GetByChargeID(ctx context.Context, chargeID string) (Order, error) {
	return s.Store.GetByChargeID(ctx, chargeID)
}

func validateCheckout(req CheckoutRequest) error {
	if req.Quantity < 1 {
		return apperr.Validation("QUANTITY_INVALID", "Quantity must be at least 1", "يجب أن تكون الكمية 1 على الأقل")
	}
	if strings.TrimSpace(req.CertificateCode) == "" {
		return apperr.Validation("CERTIFICATE_REQUIRED", "Please select a certificate", "يرجى اختيار الشهادة")
	}
	c := req.Customer
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Validation("NAME_REQUIRED", "Name is required", "الاسم مطلوب")
	}
	if strings.TrimSpace(c.Email) == "" {
		return apperr.Validation("EMAIL_REQUIRED", "Email is required", "البريد الإلكتروني مطلوب")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(c.Email)); err != nil {
		return apperr.Validation("EMAIL_INVALID", "Email address is invalid", "البريد الإلكتروني غير صالح")
	}
	if strings.TrimSpace(c.Phone) == "" {
		return apperr.Validation("PHONE_REQUIRED", "Phone number is required", "رقم الجوال مطلوب")
	}
	return nil
}

func normalizeCustomer(c Customer) Customer {
	return Customer{
		Name:      strings.TrimSpace(c.Name),
		Email:     strings.ToLower(strings.TrimSpace(c.Email)),
		Phone:     strings.TrimSpace(c.Phone),
		VATNumber: strings.TrimSpace(c.VATNumber),
	}
}
