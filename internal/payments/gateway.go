package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/exam-vouchers/internal/config"
	"github.com/ariefcatur/exam-vouchers/internal/orders"
)

// Charge is the part of a gateway charge reconciliation reads.
type Charge struct {
	ID            string
	Status        ChargeStatus
	TxnID         string
	PaymentMethod string
	RedirectURL   string
}

// TapGateway talks to the Tap charges API.
type TapGateway struct {
	BaseURL   string
	SecretKey string
	HTTP      *http.Client
}

func NewTapGateway(cfg config.GatewayConfig) *TapGateway {
	return &TapGateway{
		BaseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		SecretKey: cfg.SecretKey,
		HTTP:      &http.Client{Timeout: cfg.Timeout},
	}
}

type tapCharge struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Reference struct {
		Transaction string `json:"transaction"`
		Payment     string `json:"payment"`
	} `json:"reference"`
	Source struct {
		PaymentMethod string `json:"payment_method"`
	} `json:"source"`
	Transaction struct {
		URL string `json:"url"`
	} `json:"transaction"`
}

func (c tapCharge) charge() Charge {
	txn := c.Reference.Transaction
	if txn == "" {
		txn = c.Reference.Payment
	}
	return Charge{
		ID:            c.ID,
		Status:        ParseChargeStatus(c.Status),
		TxnID:         txn,
		PaymentMethod: c.Source.PaymentMethod,
		RedirectURL:   c.Transaction.URL,
	}
}

type tapPhone struct {
	CountryCode string `json:"country_code,omitempty"`
	Number      string `json:"number"`
}

type tapCreate struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description,omitempty"`
	Customer    struct {
		FirstName string   `json:"first_name"`
		Email     string   `json:"email"`
		Phone     tapPhone `json:"phone"`
	} `json:"customer"`
	Source struct {
		ID string `json:"id"`
	} `json:"source"`
	Redirect struct {
		URL string `json:"url"`
	} `json:"redirect"`
	Post *struct {
		URL string `json:"url"`
	} `json:"post,omitempty"`
	Reference struct {
		Order string `json:"order"`
	} `json:"reference"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CreateCharge opens a hosted-checkout charge for the order.
func (g *TapGateway) CreateCharge(ctx context.Context, req orders.ChargeRequest) (orders.Charge, error) {
	var body tapCreate
	body.Amount = req.Amount
	body.Currency = req.Currency
	body.Description = req.Description
	body.Customer.FirstName = req.Customer.DisplayName()
	body.Customer.Email = req.Customer.Email
	body.Customer.Phone = splitPhone(req.Customer.Phone)
	body.Source.ID = "src_all"
	body.Redirect.URL = req.RedirectURL
	if req.WebhookURL != "" {
		body.Post = &struct {
			URL string `json:"url"`
		}{URL: req.WebhookURL}
	}
	body.Reference.Order = req.OrderNumber
	body.Metadata = map[string]string{"order_id": req.OrderID}

	var out tapCharge
	if err := g.do(ctx, http.MethodPost, "/v2/charges", body, &out); err != nil {
		return orders.Charge{}, err
	}
	if out.ID == "" {
		return orders.Charge{}, fmt.Errorf("gateway returned charge without id")
	}
	return orders.Charge{ID: out.ID, Status: out.Status, RedirectURL: out.Transaction.URL}, nil
}

func (g *TapGateway) GetCharge(ctx context.Context, id string) (Charge, error) {
	var out tapCharge
	if err := g.do(ctx, http.MethodGet, "/v2/charges/"+id, nil, &out); err != nil {
		return Charge{}, err
	}
	return out.charge(), nil
}

func (g *TapGateway) do(ctx context.Context, method, path string, in, out any) error {
	var rd io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.SecretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := g.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("gateway %s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("gateway %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("gateway %s %s: decode: %w", method, path, err)
	}
	return nil
}

// splitPhone turns "+966 5xxxxxxx" into country code and local number.
// Numbers without a leading + are sent as is.
func splitPhone(p string) tapPhone {
	p = strings.ReplaceAll(strings.TrimSpace(p), " ", "")
	if strings.HasPrefix(p, "+966") {
		return tapPhone{CountryCode: "966", Number: strings.TrimPrefix(p, "+966")}
	}
	return tapPhone{Number: strings.TrimPrefix(p, "+")}
}

// Notification is a decoded webhook delivery.
type Notification struct {
	ChargeID      string
	Status        ChargeStatus
	TxnID         string
	PaymentMethod string
}

// ParseNotification decodes a webhook body. It fails only on shape errors.
func ParseNotification(body []byte) (Notification, error) {
	var c tapCharge
	if err := json.Unmarshal(body, &c); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Status) == "" {
		return Notification{}, fmt.Errorf("notification missing id or status")
	}
	ch := c.charge()
	return Notification{ChargeID: ch.ID, Status: ch.Status, TxnID: ch.TxnID, PaymentMethod: ch.PaymentMethod}, nil
}
