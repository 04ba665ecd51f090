package fiscal

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestXorChecksumSeededAtFF(t *testing.T) {
	// 0xFF ^ '0' ^ '$' ^ 'h' = 0x83
	if got := xorChecksum([]byte("0$h")); got != 0x83 {
		t.Fatalf("expected 0x83, got 0x%02X", got)
	}
	if got := xorChecksum(nil); got != 0xFF {
		t.Fatalf("empty body must keep the seed, got 0x%02X", got)
	}
}

func TestESCPFrameLayout(t *testing.T) {
	d := NewESCPDialect()
	frame, err := d.OpenReceipt()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := append([]byte{0x1B, 0x50}, []byte("0$h83")...)
	want = append(want, 0x1B, 0x5C)
	if !bytes.Equal(frame, want) {
		t.Fatalf("unexpected frame %q, want %q", frame, want)
	}
}

func TestESCPItemFrameCarriesPriceAndTax(t *testing.T) {
	d := NewESCPDialect()
	frame, err := d.AddItem(ReceiptItem{
		Name:      "Mleko 3.2%",
		Quantity:  decimal.New(2, 0),
		UnitPrice: decimal.RequireFromString("12.30"),
		TaxLetter: "A",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := string(frame[2 : len(frame)-4])
	for _, sub := range []string{"Mleko 3.2%", "2*12.30", "A/"} {
		if !bytes.Contains([]byte(body), []byte(sub)) {
			t.Errorf("frame body %q missing %q", body, sub)
		}
	}
}

func TestESCPParseCloseResponse(t *testing.T) {
	d := NewESCPDialect()
	raw := []byte("1#E0/FN123456/0007\x1b\\")
	result, err := d.ParseCloseResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FiscalNumber != "FN123456" || result.ReceiptNumber != "0007" {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := d.ParseCloseResponse([]byte("garbage")); err == nil {
		t.Fatal("expected malformed response to fail")
	}
}

func TestESCPParseErrorResponse(t *testing.T) {
	d := NewESCPDialect()
	for raw, want := range map[string]int{
		"#E0\x1b\\": 0,
		"#E2\x1b\\": 2,
		"#E4\x1b\\": 4,
	} {
		got, err := d.ParseErrorResponse([]byte(raw))
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %d, got %d", raw, want, got)
		}
	}
}

var packetShapeRe = regexp.MustCompile(`^<pakiet crc="[0-9a-f]{8}">.*</pakiet>$`)

func TestXMLPacketShapeAndCRC(t *testing.T) {
	d := NewXMLDialect()
	frame, err := d.OpenReceipt()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !packetShapeRe.Match(frame) {
		t.Fatalf("unexpected packet shape %q", frame)
	}

	inner, err := unwrapPacket(frame)
	if err != nil {
		t.Fatalf("crc verification failed: %v", err)
	}
	if !bytes.Contains(inner, []byte("paragon")) {
		t.Fatalf("inner %q missing paragon element", inner)
	}
}

func TestXMLPacketCRCIsOverEncodedBytes(t *testing.T) {
	d := NewXMLDialect()
	// name with Polish diacritics encodes differently in CP1250 than UTF-8
	frame, err := d.AddItem(ReceiptItem{
		Name:      "Żółty ser",
		Quantity:  decimal.New(1, 0),
		UnitPrice: decimal.RequireFromString("5.00"),
		TaxLetter: "B",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := packetRe.FindSubmatch(frame)
	if m == nil {
		t.Fatalf("unexpected packet shape %q", frame)
	}
	declared := string(m[1])
	wantCRC := fmt.Sprintf("%08x", crc32.ChecksumIEEE(m[2]))
	if declared != wantCRC {
		t.Fatalf("declared crc %s does not match inner bytes (%s)", declared, wantCRC)
	}
	// the encoded inner must not equal its UTF-8 form
	if bytes.Contains(m[2], []byte("Żółty")) {
		t.Fatal("inner content was not transcoded to the device code page")
	}
}

func TestXMLUnwrapRejectsBadCRC(t *testing.T) {
	frame := []byte(`<pakiet crc="deadbeef"><blad kod="E0"/></pakiet>`)
	if _, err := unwrapPacket(frame); err == nil {
		t.Fatal("expected crc mismatch")
	}
}

func TestXMLParseCloseResponse(t *testing.T) {
	inner := `<paragon numer_fiskalny="FN000123" numer_wydruku="0042"/>`
	crc := crc32.ChecksumIEEE([]byte(inner))
	raw := []byte(fmt.Sprintf(`<pakiet crc="%08x">%s</pakiet>`, crc, inner))

	d := NewXMLDialect()
	result, err := d.ParseCloseResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FiscalNumber != "FN000123" || result.ReceiptNumber != "0042" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestXMLParseErrorResponse(t *testing.T) {
	inner := `<blad kod="E2"/>`
	crc := crc32.ChecksumIEEE([]byte(inner))
	raw := []byte(fmt.Sprintf(`<pakiet crc="%08x">%s</pakiet>`, crc, inner))

	d := NewXMLDialect()
	code, err := d.ParseErrorResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 2 {
		t.Fatalf("expected code 2, got %d", code)
	}
}

func TestDailyReportFormatsDates(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	escp := NewESCPDialect()
	frame, err := escp.DailyReport(from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains(frame, []byte("25-03-01;25-03-31#o")) {
		t.Fatalf("unexpected escp daily report body %q", frame)
	}

	xml := NewXMLDialect()
	frame, err = xml.DailyReport(from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inner, err := unwrapPacket(frame)
	if err != nil {
		t.Fatalf("crc verification failed: %v", err)
	}
	for _, sub := range []string{`od="2025-03-01"`, `do="2025-03-31"`} {
		if !bytes.Contains(inner, []byte(sub)) {
			t.Errorf("inner %q missing %q", inner, sub)
		}
	}
}

func TestParseStatusByte(t *testing.T) {
	status := ParseStatusByte(0x0F)
	if !status.Fiscal || !status.LastCommandOK || !status.ReceiptOpen || !status.TransactionInProgress {
		t.Fatalf("expected all low bits set, got %+v", status)
	}

	status = ParseStatusByte(0x0C)
	if status.ReceiptOpen || status.TransactionInProgress {
		t.Fatalf("expected PAR/TRF clear, got %+v", status)
	}
	if !status.Fiscal || !status.LastCommandOK {
		t.Fatalf("expected FSK/CMD set, got %+v", status)
	}

	status = ParseStatusByte(0x10)
	if !status.PaperOut {
		t.Fatalf("expected paper-out bit, got %+v", status)
	}
}

func TestTruncateName(t *testing.T) {
	if got := truncateName("Długa nazwa produktu spożywczego", 10); len([]rune(got)) != 10 {
		t.Fatalf("expected 10 runes, got %q", got)
	}
	if got := truncateName("short", 40); got != "short" {
		t.Fatalf("expected unchanged name, got %q", got)
	}
	if got := truncateName("anything", 0); got != "anything" {
		t.Fatalf("zero width must not truncate, got %q", got)
	}
}
