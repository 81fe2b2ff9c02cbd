package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("VAT_PERCENT", "")
	cfg := Load()
	if cfg.HTTPAddr != ":8081" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.Seller.VATPercent != 15 {
		t.Fatalf("VATPercent = %v", cfg.Seller.VATPercent)
	}
	if cfg.Gateway.Timeout != 10*time.Second {
		t.Fatalf("Timeout = %v", cfg.Gateway.Timeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("INSTITUTION_TOKENS", "abc:King Saud University,broken,def:Qassim University")
	t.Setenv("ADMIN_TOKENS", "root1,root2")
	t.Setenv("VAT_PERCENT", "not-a-number")
	t.Setenv("PUBLIC_BASE_URL", "https://shop.example.com/")

	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if got := cfg.InstitutionTokens["abc"]; got != "King Saud University" {
		t.Fatalf("institution = %q", got)
	}
	if len(cfg.InstitutionTokens) != 2 {
		t.Fatalf("institution tokens = %v", cfg.InstitutionTokens)
	}
	if len(cfg.AdminTokens) != 2 {
		t.Fatalf("admin tokens = %v", cfg.AdminTokens)
	}
	if cfg.Seller.VATPercent != 15 {
		t.Fatalf("bad VAT should fall back, got %v", cfg.Seller.VATPercent)
	}
	if cfg.PublicBaseURL != "https://shop.example.com" {
		t.Fatalf("PublicBaseURL = %q", cfg.PublicBaseURL)
	}
}
