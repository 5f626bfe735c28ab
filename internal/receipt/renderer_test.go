package receipt

import (
	"strings"
	"testing"
	"time"

	"guto-paylink/internal/models"
)

func sampleReceipt() *models.PaidReceipt {
	return &models.PaidReceipt{
		Amount:               1_500_000,
		TransactionReference: "9f8e7d6c-5b4a-3210-fedc-ba9876543210",
		ProviderReference:    "MP-2025-0042",
		PaidAt:               time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC),
		PayerPhone:           "256751234567",
		RecipientPhone:       "256771000222",
		RecipientName:        "Okello Stores",
	}
}

func sampleProfile() models.UserProfile {
	return models.UserProfile{
		Name:       "Okello Stores",
		PaymentKey: "pk_live_okello",
		Phone:      "256771000222",
		Handle:     "okello",
	}
}

func TestTruncateRef(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12345678901234567890", "123456789012345…"}, // 20 chars -> 15 + ellipsis
		{"1234567890", "1234567890"},                 // short passes through
		{"123456789012345", "123456789012345"},       // exactly the bound
		{"", ""},
	}
	for _, c := range cases {
		if got := TruncateRef(c.in); got != c.want {
			t.Errorf("TruncateRef(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{500, "UGX 500"},
		{1500, "UGX 1,500"},
		{1_500_000, "UGX 1,500,000"},
		{50_000_000, "UGX 50,000,000"},
	}
	for _, c := range cases {
		if got := FormatAmount(c.amount); got != c.want {
			t.Errorf("FormatAmount(%d) = %q, want %q", c.amount, got, c.want)
		}
	}
}

func TestRenderComposesSVG(t *testing.T) {
	out := Render(sampleReceipt(), sampleProfile(), "https://guto.me/@okello", Theme{})
	svgText := string(out.SVG())

	if !strings.Contains(svgText, "<svg") || !strings.Contains(svgText, "</svg>") {
		t.Fatal("output is not an SVG document")
	}
	for _, want := range []string{
		"UGX 1,500,000",
		"Okello Stores",
		"@okello",
		"PAID",
		"9f8e7d6c-5b4a-3…", // truncated reference
		"MP-2025-0042",     // short provider ref unchanged
		"256751234567",
		"https://guto.me/@okello",
		"Sunday, 1 June 2025",
	} {
		if !strings.Contains(svgText, want) {
			t.Errorf("SVG missing %q", want)
		}
	}
}

func TestRenderPreviewIsImmediate(t *testing.T) {
	out := Render(sampleReceipt(), sampleProfile(), "https://guto.me/@okello", Theme{})

	if len(out.SVG()) == 0 {
		t.Fatal("SVG preview empty")
	}
	if !strings.HasPrefix(out.DataURL(), "data:image/svg+xml;base64,") {
		t.Errorf("DataURL prefix wrong: %q", out.DataURL()[:40])
	}
	if _, ok := out.Raster(); ok {
		t.Error("raster handle exists before any rasterization")
	}
}

func TestGeneratePDF(t *testing.T) {
	data, err := GeneratePDF(sampleReceipt(), sampleProfile(), "https://guto.me/@okello", Theme{})
	if err != nil {
		t.Fatalf("GeneratePDF: %v", err)
	}
	if !strings.HasPrefix(string(data), "%PDF") {
		t.Error("output does not look like a PDF document")
	}
}
