package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
	"github.com/ariefcatur/exam-vouchers/internal/discounts"
	"github.com/ariefcatur/exam-vouchers/internal/inventory"
	"github.com/ariefcatur/exam-vouchers/internal/invoices"
	"github.com/ariefcatur/exam-vouchers/internal/orders"
	"github.com/ariefcatur/exam-vouchers/internal/payments"
	"github.com/ariefcatur/exam-vouchers/internal/redisx"
	"github.com/go-chi/chi/v5"
)

type API struct {
	Orders     *orders.Service
	Catalog    orders.Catalog
	Discounts  *discounts.Ledger
	Reconciler *payments.Reconciler
	Invoices   *invoices.Issuer
	Renderer   invoices.Renderer
	Inventory  inventory.Store
	// Views caches settled order snapshots; nil disables caching.
	Views    *redisx.Cache
	Callers  Callers
	Currency string
}

func (a *API) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/webhooks/payments", a.webhook)

		r.Group(func(r chi.Router) {
			r.Use(a.Callers.Middleware)
			r.Get("/certificates", a.listCertificates)
			r.Post("/checkout", a.checkout)
			r.Post("/discounts/validate", a.validateDiscount)
			r.Get("/orders/{id}", a.getOrder)
			r.Get("/orders/{id}/invoice", a.getInvoice)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/vouchers/stats", a.voucherStats)
				r.Get("/vouchers/low-stock", a.lowStock)
			})
		})
	})
}

type checkoutResp struct {
	OrderID     string        `json:"orderId"`
	OrderNumber string        `json:"orderNumber"`
	RedirectURL string        `json:"redirectUrl"`
	Totals      orders.Totals `json:"totals"`
}

func (a *API) checkout(w http.ResponseWriter, r *http.Request) {
	var req orders.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "Invalid request body", "نص الطلب غير صالح")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	co, err := a.Orders.CreateOrder(ctx, CallerFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o := co.Order
	writeJSON(w, http.StatusCreated, checkoutResp{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		RedirectURL: co.RedirectURL,
		Totals: orders.Totals{
			UnitPrice:      o.UnitPrice,
			Subtotal:       o.Subtotal,
			DiscountAmount: o.DiscountAmount,
			VATAmount:      o.VATAmount,
			Total:          o.TotalAmount,
		},
	})
}

type validateReq struct {
	Code            string `json:"code"`
	Quantity        int    `json:"quantity"`
	UniversityName  string `json:"universityName"`
	CertificateCode string `json:"certificateCode"`
}

func (a *API) validateDiscount(w http.ResponseWriter, r *http.Request) {
	var req validateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"valid": false,
			"error": apperr.Message{En: "Discount code is required", Ar: "رمز الخصم مطلوب"},
		})
		return
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	caller := CallerFrom(r.Context())
	customer := req.UniversityName
	if caller.IsInstitution() {
		customer = caller.Institution
	}
	var subtotal float64
	if req.CertificateCode != "" && a.Catalog != nil {
		if cert, err := a.Catalog.CertificateByCode(ctx, req.CertificateCode); err == nil {
			price := cert.Price
			if caller.IsInstitution() {
				price = cert.InstitutionPrice
			}
			subtotal = orders.Price(price, req.Quantity, 0, 0).Subtotal
		}
	}

	res, err := a.Discounts.Validate(ctx, discounts.Input{
		Code: req.Code, Quantity: req.Quantity, CustomerName: customer, Subtotal: subtotal,
	})
	if _, rejected := discounts.ReasonOf(err); rejected {
		e, _ := apperr.As(err)
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": e.Msg})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "discount": res})
}

type certificateView struct {
	ID            string  `json:"id"`
	Code          string  `json:"code"`
	NameEn        string  `json:"nameEn"`
	NameAr        string  `json:"nameAr"`
	DescriptionEn string  `json:"descriptionEn"`
	DescriptionAr string  `json:"descriptionAr"`
	Category      string  `json:"category"`
	Price         float64 `json:"price"`
	VATPercent    float64 `json:"vatPercent"`
}

// listCertificates shows the catalog at the caller's price.
func (a *API) listCertificates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	certs, err := a.Catalog.ListCertificates(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	settings, err := a.Catalog.Settings(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	caller := CallerFrom(r.Context())
	out := make([]certificateView, 0, len(certs))
	for _, c := range certs {
		out = append(out, certificateView{
			ID: c.ID, Code: c.Code, NameEn: c.NameEn, NameAr: c.NameAr,
			DescriptionEn: c.DescriptionEn, DescriptionAr: c.DescriptionAr, Category: c.Category,
			Price: c.PriceFor(caller), VATPercent: settings.VATPercent,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"certificates": out})
}

func (a *API) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		badRequest(w, "INVALID_BODY", "Invalid request body", "نص الطلب غير صالح")
		return
	}
	n, err := payments.ParseNotification(body)
	if err != nil {
		log.Printf("webhook: rejected payload err=%v", err)
		badRequest(w, "INVALID_NOTIFICATION", "id and status are required", "المعرف والحالة مطلوبان")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := a.Reconciler.HandleNotification(ctx, n); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// OrderView is the success page snapshot.
type OrderView struct {
	ID            string     `json:"id"`
	OrderNumber   string     `json:"orderNumber"`
	Status        string     `json:"status"`
	CustomerName  string     `json:"customerName"`
	Quantity      int        `json:"quantity"`
	TotalAmount   float64    `json:"totalAmount"`
	PaidAt        *time.Time `json:"paidAt"`
	InvoiceNumber *string    `json:"invoiceNumber"`
	Display       string     `json:"display"`
}

// display is what the success page shows: only an explicit decline reads
// as failed.
func display(s orders.Status) string {
	switch s {
	case orders.StatusPaid, orders.StatusRefunded:
		return "paid"
	case orders.StatusCancelled:
		return "failed"
	}
	return "processing"
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var cached OrderView
	if a.Views.Get(ctx, id, &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	o, err := a.Orders.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o = a.Reconciler.Poll(ctx, o)

	v := OrderView{
		ID:           o.ID,
		OrderNumber:  o.OrderNumber,
		Status:       string(o.Status),
		CustomerName: o.Customer.DisplayName(),
		Quantity:     o.Quantity,
		TotalAmount:  o.TotalAmount,
		PaidAt:       o.PaidAt,
		Display:      display(o.Status),
	}
	if o.Status == orders.StatusPaid || o.Status == orders.StatusRefunded {
		// Issue is idempotent; this also repairs an issuance that failed at settlement.
		if inv, err := a.Invoices.Issue(ctx, o); err == nil {
			v.InvoiceNumber = &inv.Number
		} else {
			log.Printf("order view: invoice unavailable order=%s err=%v", o.OrderNumber, err)
		}
	}
	if o.Status.IsTerminal() && (o.Status == orders.StatusCancelled || v.InvoiceNumber != nil) {
		a.Views.Set(ctx, id, v)
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) getInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := a.Orders.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if o.Status != orders.StatusPaid && o.Status != orders.StatusRefunded {
		writeError(w, r, apperr.NotFound("INVOICE"))
		return
	}
	inv, err := a.Invoices.Issue(ctx, o)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := a.Invoices.Document(ctx, o, inv, a.Currency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := a.Renderer.Render(doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", a.Renderer.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="invoice-`+inv.Number+"."+a.Renderer.Ext()+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (a *API) voucherStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := a.Inventory.Stats(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"certificates": stats})
}

func (a *API) lowStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	threshold, err := strconv.Atoi(r.URL.Query().Get("threshold"))
	if err != nil || threshold < 1 {
		s, err := a.Catalog.Settings(ctx)
		if err != nil {
			writeError(w, r, err)
			return
		}
		threshold = s.LowStockThreshold
	}
	low, err := a.Inventory.LowStock(ctx, threshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threshold": threshold, "certificates": low})
}
