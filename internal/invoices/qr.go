package invoices

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// QR TLV tags. Order and numbering are fixed by the tax authority verifier.
const (
	TagSellerName byte = 1
	TagVATNumber  byte = 2
	TagTimestamp  byte = 3
	TagTotal      byte = 4
	TagVAT        byte = 5
)

const qrTimeLayout = "2006-01-02T15:04:05Z"

type Fields struct {
	SellerName string
	VATNumber  string
	Timestamp  time.Time
	Total      float64
	VAT        float64
}

type TLV struct {
	Tag   byte
	Value string
}

func (f Fields) records() []TLV {
	return []TLV{
		{TagSellerName, f.SellerName},
		{TagVATNumber, f.VATNumber},
		{TagTimestamp, f.Timestamp.UTC().Format(qrTimeLayout)},
		{TagTotal, decimal.NewFromFloat(f.Total).StringFixed(2)},
		{TagVAT, decimal.NewFromFloat(f.VAT).StringFixed(2)},
	}
}

// QRPayload encodes f as Base64(TLV1 .. TLV5). Each value is raw UTF-8 with
// a one byte length, so values over 255 bytes are rejected.
func QRPayload(f Fields) (string, error) {
	var buf []byte
	for _, r := range f.records() {
		if len(r.Value) > 255 {
			return "", fmt.Errorf("qr tag %d: value is %d bytes, max 255", r.Tag, len(r.Value))
		}
		buf = append(buf, r.Tag, byte(len(r.Value)))
		buf = append(buf, r.Value...)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// DecodeQRPayload reverses QRPayload.
func DecodeQRPayload(s string) ([]TLV, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("qr payload: %w", err)
	}
	var out []TLV
	for i := 0; i < len(b); {
		if i+2 > len(b) {
			return nil, fmt.Errorf("qr payload: truncated header at byte %d", i)
		}
		tag, n := b[i], int(b[i+1])
		i += 2
		if i+n > len(b) {
			return nil, fmt.Errorf("qr payload: tag %d wants %d bytes, %d left", tag, n, len(b)-i)
		}
		out = append(out, TLV{Tag: tag, Value: string(b[i : i+n])})
		i += n
	}
	return out, nil
}
