package orders

import "time"

type Customer struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	VATNumber string `json:"vatNumber,omitempty"`
	// Institution is filled from the caller, never from the request body.
	Institution string `json:"institution,omitempty"`
}

// DisplayName is the name shown on the success page and invoice.
func (c Customer) DisplayName() string {
	if c.Institution != "" {
		return c.Institution
	}
	return c.Name
}

type Order struct {
	ID             string
	OrderNumber    string
	CertificateID  string
	Customer       Customer
	Quantity       int
	UnitPrice      float64
	Subtotal       float64
	DiscountCode   string
	DiscountAmount float64
	VATAmount      float64
	TotalAmount    float64
	Status         Status
	ChargeID       string
	GatewayTxnID   string
	PaymentMethod  string
	PaidAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InvoiceTime is the timestamp printed on the invoice: paid time when known.
func (o Order) InvoiceTime() time.Time {
	if o.PaidAt != nil {
		return o.PaidAt.UTC()
	}
	return o.CreatedAt.UTC()
}

type Certificate struct {
	ID               string
	Code             string
	NameEn           string
	NameAr           string
	DescriptionEn    string
	DescriptionAr    string
	Category         string
	Price            float64
	InstitutionPrice float64
	ValidityMonths   int
	Active           bool
	SortOrder        int
}

// PriceFor is the unit price caller pays.
func (c Certificate) PriceFor(caller Caller) float64 {
	if caller.IsInstitution() {
		return c.InstitutionPrice
	}
	return c.Price
}

// Settings are the storewide values pricing and invoicing read at request time.
type Settings struct {
	VATPercent        float64
	SellerName        string
	SellerVATNumber   string
	LowStockThreshold int
}

type Role string

const (
	RoleIndividual  Role = "INDIVIDUAL"
	RoleInstitution Role = "INSTITUTION"
	RoleAdmin       Role = "ADMIN"
)

// Caller is the resolved identity of whoever invokes a core operation.
type Caller struct {
	Role        Role
	Institution string
}

func Anonymous() Caller { return Caller{Role: RoleIndividual} }

func (c Caller) IsInstitution() bool { return c.Role == RoleInstitution && c.Institution != "" }
func (c Caller) IsAdmin() bool       { return c.Role == RoleAdmin }
