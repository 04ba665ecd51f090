package fiscal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/pkg/enums"
)

// Legacy ESC/P frame: ESC P <body> <checksum-hex-uppercase> ESC \.
// The checksum is a XOR over the body bytes seeded at 0xFF.
const (
	escpPrefix1 byte = 0x1B
	escpPrefix2 byte = 0x50
	escpSuffix1 byte = 0x1B
	escpSuffix2 byte = 0x5C
)

// ESCPDialect speaks the legacy protocol of the Deon.
type ESCPDialect struct{}

// NewESCPDialect returns the legacy dialect.
func NewESCPDialect() *ESCPDialect {
	return &ESCPDialect{}
}

func (d *ESCPDialect) Name() enums.FiscalDialect {
	return enums.FiscalDialectESCP
}

// xorChecksum folds the body with the 0xFF seed the device expects.
func xorChecksum(body []byte) byte {
	sum := byte(0xFF)
	for _, b := range body {
		sum ^= b
	}
	return sum
}

func (d *ESCPDialect) frame(body string) []byte {
	raw := []byte(body)
	checksum := fmt.Sprintf("%02X", xorChecksum(raw))
	frame := make([]byte, 0, len(raw)+6)
	frame = append(frame, escpPrefix1, escpPrefix2)
	frame = append(frame, raw...)
	frame = append(frame, checksum...)
	frame = append(frame, escpSuffix1, escpSuffix2)
	return frame
}

func (d *ESCPDialect) OpenReceipt() ([]byte, error) {
	return d.frame("0$h"), nil
}

func (d *ESCPDialect) AddItem(item ReceiptItem) ([]byte, error) {
	body := fmt.Sprintf("1$l%s\r%s*%s\r%s/",
		item.Name,
		item.Quantity.String(),
		item.UnitPrice.StringFixed(2),
		item.TaxLetter,
	)
	return d.frame(body), nil
}

func (d *ESCPDialect) AddDiscount(spec DiscountSpec) ([]byte, error) {
	kind := 0
	if spec.Kind == DiscountKindSurcharge {
		kind = 1
	}
	scope := 0
	if spec.Scope == DiscountScopeSubtotal {
		scope = 1
	}
	body := fmt.Sprintf("%d;%d$n%s\r%s/", kind, scope, spec.Value.StringFixed(2), spec.Label)
	return d.frame(body), nil
}

func (d *ESCPDialect) AddPayment(payment PaymentSpec) ([]byte, error) {
	body := fmt.Sprintf("%d$b%s/", paymentWireCode(payment.Kind), payment.Amount.StringFixed(2))
	return d.frame(body), nil
}

func (d *ESCPDialect) CloseReceipt(totalExpected decimal.Decimal, cashierLabel string) ([]byte, error) {
	body := fmt.Sprintf("1$e%s\r%s/", totalExpected.StringFixed(2), cashierLabel)
	return d.frame(body), nil
}

func (d *ESCPDialect) CancelReceipt() ([]byte, error) {
	return d.frame("0$e"), nil
}

func (d *ESCPDialect) XReport() ([]byte, error) {
	return d.frame("0#r"), nil
}

func (d *ESCPDialect) ZReport() ([]byte, error) {
	return d.frame("1#r"), nil
}

func (d *ESCPDialect) DailyReport(from, to time.Time) ([]byte, error) {
	body := fmt.Sprintf("%s;%s#o", from.Format("06-01-02"), to.Format("06-01-02"))
	return d.frame(body), nil
}

func (d *ESCPDialect) SetDateTime(t time.Time) ([]byte, error) {
	body := fmt.Sprintf("%s$c", t.Format("06-01-02;15:04"))
	return d.frame(body), nil
}

func (d *ESCPDialect) SetCashier(name, code string) ([]byte, error) {
	return d.frame(fmt.Sprintf("1$z%s\r%s/", name, code)), nil
}

func (d *ESCPDialect) SetHeaderLine(line int, text string) ([]byte, error) {
	return d.frame(fmt.Sprintf("%d$f%s/", line, text)), nil
}

func (d *ESCPDialect) OpenDrawer() ([]byte, error) {
	return d.frame("1$d"), nil
}

func (d *ESCPDialect) NonFiscalText(text string) ([]byte, error) {
	return d.frame(fmt.Sprintf("0$w%s/", text)), nil
}

func (d *ESCPDialect) PrintCopy(number int) ([]byte, error) {
	return d.frame(fmt.Sprintf("%d$k", number)), nil
}

func (d *ESCPDialect) ErrorQuery() ([]byte, error) {
	return d.frame("#n"), nil
}

func (d *ESCPDialect) ResponseTerminator() []byte {
	return []byte{escpSuffix1, escpSuffix2}
}

var escpCloseRe = regexp.MustCompile(`1#E0/([A-Z0-9-]+)/([A-Z0-9-]+)`)

// ParseCloseResponse reads "1#E0/<fiscal>/<receipt>" out of the frame.
func (d *ESCPDialect) ParseCloseResponse(raw []byte) (ReceiptResult, error) {
	m := escpCloseRe.FindStringSubmatch(string(raw))
	if m == nil {
		return ReceiptResult{}, fmt.Errorf("malformed close response %q", raw)
	}
	return ReceiptResult{FiscalNumber: m[1], ReceiptNumber: m[2]}, nil
}

var escpErrorRe = regexp.MustCompile(`#E(\d+)`)

// ParseErrorResponse reads the "#E<n>" register value.
func (d *ESCPDialect) ParseErrorResponse(raw []byte) (int, error) {
	m := escpErrorRe.FindStringSubmatch(string(raw))
	if m == nil {
		return 0, fmt.Errorf("malformed error response %q", raw)
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("malformed error code %q", m[1])
	}
	return code, nil
}

// truncateName cuts a product name to the device display width without
// splitting runes.
func truncateName(name string, width int) string {
	if width <= 0 {
		return name
	}
	runes := []rune(strings.TrimSpace(name))
	if len(runes) <= width {
		return string(runes)
	}
	return string(runes[:width])
}
