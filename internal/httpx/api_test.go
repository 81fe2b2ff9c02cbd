package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ariefcatur/exam-vouchers/internal/discounts"
	"github.com/ariefcatur/exam-vouchers/internal/inventory"
	"github.com/ariefcatur/exam-vouchers/internal/invoices"
	"github.com/ariefcatur/exam-vouchers/internal/orders"
	"github.com/ariefcatur/exam-vouchers/internal/payments"
)

type stubGateway struct {
	mu     sync.Mutex
	status map[string]payments.ChargeStatus
}

func (g *stubGateway) CreateCharge(_ context.Context, req orders.ChargeRequest) (orders.Charge, error) {
	id := "chg_" + req.OrderNumber
	return orders.Charge{ID: id, Status: "INITIATED", RedirectURL: "https://pay.test/" + id}, nil
}

func (g *stubGateway) GetCharge(_ context.Context, id string) (payments.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.status[id]
	if !ok {
		s = payments.ChargeInitiated
	}
	return payments.Charge{ID: id, Status: s}, nil
}

func (g *stubGateway) set(id string, s payments.ChargeStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status[id] = s
}

type testServer struct {
	h       http.Handler
	gw      *stubGateway
	codes   *discounts.MemoryStore
	vouch   *inventory.MemoryRepo
	invoice *invoices.MemoryStore
}

func newTestServer() *testServer {
	catalog := &orders.MemoryCatalog{
		Certificates: []orders.Certificate{
			{ID: "cert-pmp", Code: "PMP", NameEn: "PMP Exam Voucher", Price: 1350, InstitutionPrice: 1100, Active: true, SortOrder: 2},
			{ID: "cert-capm", Code: "CAPM", NameEn: "CAPM Exam Voucher", Price: 900, InstitutionPrice: 800, Active: true, SortOrder: 1},
			{ID: "cert-old", Code: "OLD", NameEn: "Retired Exam", Price: 100, Active: false},
		},
		Config: orders.Settings{VATPercent: 15, SellerName: "Exam Store", SellerVATNumber: "300000000000003", LowStockThreshold: 5},
	}
	ts := &testServer{
		gw:      &stubGateway{status: map[string]payments.ChargeStatus{}},
		codes:   discounts.NewMemoryStore(discounts.Code{Code: "FLAT500", Kind: discounts.KindFixed, Value: 500, Active: true}),
		vouch:   inventory.NewMemoryRepo(),
		invoice: invoices.NewMemoryStore(),
	}
	ledger := &discounts.Ledger{Store: ts.codes}
	svc := &orders.Service{
		Store: orders.NewMemoryStore(), Catalog: catalog, Discounts: ledger, Gateway: ts.gw, Currency: "SAR",
		ReturnURL: func(id string) string { return "https://shop.test/orders/" + id },
	}
	issuer := &invoices.Issuer{Store: ts.invoice, Catalog: catalog}
	api := &API{
		Orders:    svc,
		Catalog:   catalog,
		Discounts: ledger,
		Reconciler: &payments.Reconciler{
			Orders: svc, Discounts: ledger, Invoices: issuer, Gateway: ts.gw, ServiceName: "test",
		},
		Invoices:  issuer,
		Renderer:  invoices.PDFRenderer{},
		Inventory: ts.vouch,
		Callers:   NewCallers([]string{"admin-token"}, map[string]string{"ksu-token": "King Saud University"}),
		Currency:  "SAR",
	}
	r := NewRouter()
	api.Register(r)
	ts.h = r
	return ts
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if s, ok := body.(string); ok {
		rd = bytes.NewReader([]byte(s))
	} else {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func checkoutBody(discount string) map[string]any {
	return map[string]any{
		"certificateCode": "PMP",
		"quantity":        3,
		"customer":        map[string]string{"name": "Sara", "email": "sara@example.com", "phone": "0500000000"},
		"discountCode":    discount,
	}
}

func (ts *testServer) checkout(t *testing.T, token, discount string) checkoutResp {
	t.Helper()
	rec := ts.do(http.MethodPost, "/api/checkout", token, checkoutBody(discount))
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout status %d: %s", rec.Code, rec.Body.String())
	}
	var out checkoutResp
	decode(t, rec, &out)
	return out
}

func TestCheckoutAndPaidFlow(t *testing.T) {
	ts := newTestServer()
	co := ts.checkout(t, "", "FLAT500")
	if co.Totals.Total != 4082.5 || co.RedirectURL == "" || co.OrderNumber != "ORD-100001" {
		t.Fatalf("checkout = %+v", co)
	}

	var v OrderView
	rec := ts.do(http.MethodGet, "/api/orders/"+co.OrderID, "", nil)
	decode(t, rec, &v)
	if rec.Code != http.StatusOK || v.Display != "processing" || v.InvoiceNumber != nil || v.PaidAt != nil {
		t.Fatalf("pending view %d %+v", rec.Code, v)
	}

	ts.gw.set("chg_"+co.OrderNumber, payments.ChargeCaptured)
	rec = ts.do(http.MethodGet, "/api/orders/"+co.OrderID, "", nil)
	decode(t, rec, &v)
	if v.Status != "PAID" || v.Display != "paid" || v.InvoiceNumber == nil || *v.InvoiceNumber != "INV-100001" || v.PaidAt == nil {
		t.Fatalf("paid view %+v", v)
	}
	c, _ := ts.codes.Get(context.Background(), "FLAT500")
	if c.UsedCount != 1 {
		t.Fatalf("discount used = %d", c.UsedCount)
	}

	rec = ts.do(http.MethodGet, "/api/orders/"+co.OrderID+"/invoice", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("invoice status %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/pdf" ||
		rec.Header().Get("Content-Disposition") != `attachment; filename="invoice-INV-100001.pdf"` {
		t.Fatalf("headers = %v", rec.Header())
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("body is not a pdf")
	}
	if ts.invoice.Count() != 1 {
		t.Fatalf("invoices = %d", ts.invoice.Count())
	}
}

func TestCheckoutValidationError(t *testing.T) {
	ts := newTestServer()
	body := checkoutBody("")
	body["quantity"] = 0
	rec := ts.do(http.MethodPost, "/api/checkout", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	var out map[string]errorBody
	decode(t, rec, &out)
	if out["error"].Code != "QUANTITY_INVALID" || out["error"].Ar == "" {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = ts.do(http.MethodPost, "/api/checkout", "", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status %d", rec.Code)
	}

	rec = ts.do(http.MethodPost, "/api/checkout", "nope", checkoutBody(""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown token status %d", rec.Code)
	}
}

func TestListCertificates(t *testing.T) {
	ts := newTestServer()

	var body struct {
		Certificates []certificateView `json:"certificates"`
	}
	decode(t, ts.do(http.MethodGet, "/api/certificates", "", nil), &body)
	if len(body.Certificates) != 2 || body.Certificates[0].Code != "CAPM" || body.Certificates[1].Code != "PMP" {
		t.Fatalf("certificates = %+v", body.Certificates)
	}
	if body.Certificates[1].Price != 1350 || body.Certificates[1].VATPercent != 15 {
		t.Fatalf("pmp = %+v", body.Certificates[1])
	}

	decode(t, ts.do(http.MethodGet, "/api/certificates", "ksu-token", nil), &body)
	if body.Certificates[1].Price != 1100 {
		t.Fatalf("institution price = %v", body.Certificates[1].Price)
	}
}

func TestInstitutionCheckoutPrice(t *testing.T) {
	ts := newTestServer()
	co := ts.checkout(t, "ksu-token", "")
	if co.Totals.UnitPrice != 1100 || co.Totals.Subtotal != 3300 {
		t.Fatalf("totals = %+v", co.Totals)
	}
}

func TestWebhook(t *testing.T) {
	ts := newTestServer()
	co := ts.checkout(t, "", "")
	charge := "chg_" + co.OrderNumber

	cases := []struct {
		body    string
		gateway payments.ChargeStatus
		code    int
	}{
		{`{"status":"CAPTURED"}`, "", http.StatusBadRequest},
		{`{"id":"` + charge + `"}`, "", http.StatusBadRequest},
		{`not json`, "", http.StatusBadRequest},
		{`{"id":"chg_unknown","status":"CAPTURED"}`, "", http.StatusNotFound},
		{`{"id":"` + charge + `","status":"INITIATED"}`, payments.ChargeInitiated, http.StatusOK},
		{`{"id":"` + charge + `","status":"CAPTURED"}`, payments.ChargeInitiated, http.StatusOK},
		{`{"id":"` + charge + `","status":"CAPTURED","reference":{"transaction":"txn_1"},"source":{"payment_method":"VISA"}}`, payments.ChargeCaptured, http.StatusOK},
		{`{"id":"` + charge + `","status":"CAPTURED"}`, payments.ChargeCaptured, http.StatusOK},
	}
	for i, tc := range cases {
		if tc.gateway != "" {
			ts.gw.set(charge, tc.gateway)
		}
		rec := ts.do(http.MethodPost, "/api/webhooks/payments", "", tc.body)
		if rec.Code != tc.code {
			t.Errorf("webhook %s: status %d, want %d (%s)", tc.body, rec.Code, tc.code, rec.Body.String())
		}
		if tc.code == http.StatusOK && strings.TrimSpace(rec.Body.String()) != `{"received":true}` {
			t.Errorf("webhook %s: body %s", tc.body, rec.Body.String())
		}
		if i == 5 && ts.invoice.Count() != 0 {
			t.Fatal("an unverified CAPTURED body settled the order")
		}
	}
	if ts.invoice.Count() != 1 {
		t.Fatalf("duplicate CAPTURED produced %d invoices", ts.invoice.Count())
	}
}

func TestCancelledOrderShowsFailed(t *testing.T) {
	ts := newTestServer()
	co := ts.checkout(t, "", "")
	ts.gw.set("chg_"+co.OrderNumber, payments.ChargeDeclined)

	var v OrderView
	decode(t, ts.do(http.MethodGet, "/api/orders/"+co.OrderID, "", nil), &v)
	if v.Status != "CANCELLED" || v.Display != "failed" || v.InvoiceNumber != nil {
		t.Fatalf("view = %+v", v)
	}
	rec := ts.do(http.MethodGet, "/api/orders/"+co.OrderID+"/invoice", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("invoice for cancelled order: %d", rec.Code)
	}
	rec = ts.do(http.MethodGet, "/api/orders/not-a-uuid", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("bad id: %d", rec.Code)
	}
}

func TestValidateDiscountEndpoint(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPost, "/api/discounts/validate", "", map[string]any{"quantity": 1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing code: %d", rec.Code)
	}

	var ok struct {
		Valid    bool              `json:"valid"`
		Discount discounts.Result  `json:"discount"`
		Error    map[string]string `json:"error"`
	}
	rec = ts.do(http.MethodPost, "/api/discounts/validate", "", map[string]any{"code": "flat500", "quantity": 3, "certificateCode": "PMP"})
	decode(t, rec, &ok)
	if rec.Code != http.StatusOK || !ok.Valid || ok.Discount.Code != "FLAT500" || ok.Discount.Kind != discounts.KindFixed || ok.Discount.Amount != 500 {
		t.Fatalf("valid response %d %+v", rec.Code, ok)
	}

	var bad struct {
		Valid bool              `json:"valid"`
		Error map[string]string `json:"error"`
	}
	rec = ts.do(http.MethodPost, "/api/discounts/validate", "", map[string]any{"code": "NOPE", "quantity": 1})
	decode(t, rec, &bad)
	if rec.Code != http.StatusOK || bad.Valid || bad.Error["en"] == "" || bad.Error["ar"] == "" {
		t.Fatalf("invalid response %d %s", rec.Code, rec.Body.String())
	}
}

func TestAdminVoucherReports(t *testing.T) {
	ts := newTestServer()
	ts.vouch.AddCertificate("cert-pmp", "PMP")
	for _, code := range []string{"A1", "A2"} {
		if err := ts.vouch.Add(context.Background(), &inventory.Voucher{Code: code, CertificateID: "cert-pmp"}); err != nil {
			t.Fatal(err)
		}
	}

	if rec := ts.do(http.MethodGet, "/api/admin/vouchers/stats", "", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous stats: %d", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/api/admin/vouchers/stats", "ksu-token", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("institution stats: %d", rec.Code)
	}

	var stats struct {
		Certificates []inventory.CertificateStats `json:"certificates"`
	}
	rec := ts.do(http.MethodGet, "/api/admin/vouchers/stats", "admin-token", nil)
	decode(t, rec, &stats)
	if len(stats.Certificates) != 1 || stats.Certificates[0].Available() != 2 || stats.Certificates[0].Total != 2 {
		t.Fatalf("stats = %s", rec.Body.String())
	}

	var low struct {
		Threshold    int                          `json:"threshold"`
		Certificates []inventory.CertificateStats `json:"certificates"`
	}
	decode(t, ts.do(http.MethodGet, "/api/admin/vouchers/low-stock", "admin-token", nil), &low)
	if low.Threshold != 5 || len(low.Certificates) != 1 {
		t.Fatalf("low = %+v", low)
	}
	decode(t, ts.do(http.MethodGet, "/api/admin/vouchers/low-stock?threshold=2", "admin-token", nil), &low)
	if low.Threshold != 2 || len(low.Certificates) != 0 {
		t.Fatalf("low = %+v", low)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz %d %q", rec.Code, rec.Body.String())
	}
}
