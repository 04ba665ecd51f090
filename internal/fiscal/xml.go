package fiscal

import (
	"fmt"
	"hash/crc32"
	"regexp"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/retailpos/retailpos-backend/pkg/enums"
)

// XMLDialect speaks the packet protocol preferred by newer firmware:
// <pakiet crc="hhhhhhhh">INNER</pakiet>, where the crc is a CRC-32 of
// INNER encoded in the device 8-bit code page.
type XMLDialect struct {
	encoder *charmap.Charmap
}

// NewXMLDialect returns the packet dialect using Windows-1250, the code
// page the Deon ships with for Polish text.
func NewXMLDialect() *XMLDialect {
	return &XMLDialect{encoder: charmap.Windows1250}
}

func (d *XMLDialect) Name() enums.FiscalDialect {
	return enums.FiscalDialectXML
}

// encodeInner renders the inner document in the device code page.
func (d *XMLDialect) encodeInner(inner string) ([]byte, error) {
	encoded, err := d.encoder.NewEncoder().Bytes([]byte(inner))
	if err != nil {
		return nil, fmt.Errorf("encoding to device code page: %w", err)
	}
	return encoded, nil
}

// wrap builds the full packet frame around the inner content.
func (d *XMLDialect) wrap(inner string) ([]byte, error) {
	encoded, err := d.encodeInner(inner)
	if err != nil {
		return nil, err
	}
	crc := crc32.ChecksumIEEE(encoded)
	frame := make([]byte, 0, len(encoded)+32)
	frame = append(frame, []byte(fmt.Sprintf(`<pakiet crc="%08x">`, crc))...)
	frame = append(frame, encoded...)
	frame = append(frame, []byte(`</pakiet>`)...)
	return frame, nil
}

// element serializes a single inner element built with etree.
func (d *XMLDialect) element(el *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el)
	inner, err := doc.WriteToString()
	if err != nil {
		return nil, fmt.Errorf("serializing command: %w", err)
	}
	return d.wrap(inner)
}

func (d *XMLDialect) OpenReceipt() ([]byte, error) {
	el := etree.NewElement("paragon")
	el.CreateAttr("akcja", "poczatek")
	return d.element(el)
}

func (d *XMLDialect) AddItem(item ReceiptItem) ([]byte, error) {
	el := etree.NewElement("pozycja")
	el.CreateAttr("nazwa", item.Name)
	el.CreateAttr("ilosc", item.Quantity.String())
	el.CreateAttr("cena", item.UnitPrice.StringFixed(2))
	el.CreateAttr("ptu", item.TaxLetter)
	el.CreateAttr("akcja", "sprzedaz")
	return d.element(el)
}

func (d *XMLDialect) AddDiscount(spec DiscountSpec) ([]byte, error) {
	el := etree.NewElement("rabat")
	el.CreateAttr("wartosc", spec.Value.StringFixed(2))
	el.CreateAttr("nazwa", spec.Label)
	if spec.Kind == DiscountKindSurcharge {
		el.CreateAttr("typ", "narzut")
	} else {
		el.CreateAttr("typ", "rabat")
	}
	if spec.Scope == DiscountScopeSubtotal {
		el.CreateAttr("zasieg", "podsuma")
	} else {
		el.CreateAttr("zasieg", "pozycja")
	}
	return d.element(el)
}

func (d *XMLDialect) AddPayment(payment PaymentSpec) ([]byte, error) {
	el := etree.NewElement("platnosc")
	el.CreateAttr("typ", strconv.Itoa(paymentWireCode(payment.Kind)))
	el.CreateAttr("wartosc", payment.Amount.StringFixed(2))
	return d.element(el)
}

func (d *XMLDialect) CloseReceipt(totalExpected decimal.Decimal, cashierLabel string) ([]byte, error) {
	el := etree.NewElement("paragon")
	el.CreateAttr("akcja", "zamknij")
	el.CreateAttr("suma", totalExpected.StringFixed(2))
	el.CreateAttr("kasjer", cashierLabel)
	return d.element(el)
}

func (d *XMLDialect) CancelReceipt() ([]byte, error) {
	el := etree.NewElement("paragon")
	el.CreateAttr("akcja", "anuluj")
	return d.element(el)
}

func (d *XMLDialect) XReport() ([]byte, error) {
	el := etree.NewElement("raport")
	el.CreateAttr("typ", "x")
	return d.element(el)
}

func (d *XMLDialect) ZReport() ([]byte, error) {
	el := etree.NewElement("raport")
	el.CreateAttr("typ", "z")
	return d.element(el)
}

func (d *XMLDialect) DailyReport(from, to time.Time) ([]byte, error) {
	el := etree.NewElement("raport")
	el.CreateAttr("typ", "dobowy")
	el.CreateAttr("od", from.Format("2006-01-02"))
	el.CreateAttr("do", to.Format("2006-01-02"))
	return d.element(el)
}

func (d *XMLDialect) SetDateTime(t time.Time) ([]byte, error) {
	el := etree.NewElement("zegar")
	el.CreateAttr("data", t.Format("2006-01-02"))
	el.CreateAttr("czas", t.Format("15:04:05"))
	return d.element(el)
}

func (d *XMLDialect) SetCashier(name, code string) ([]byte, error) {
	el := etree.NewElement("kasjer")
	el.CreateAttr("nazwa", name)
	el.CreateAttr("kod", code)
	return d.element(el)
}

func (d *XMLDialect) SetHeaderLine(line int, text string) ([]byte, error) {
	el := etree.NewElement("naglowek")
	el.CreateAttr("linia", strconv.Itoa(line))
	el.SetText(text)
	return d.element(el)
}

func (d *XMLDialect) OpenDrawer() ([]byte, error) {
	el := etree.NewElement("szuflada")
	el.CreateAttr("akcja", "otworz")
	return d.element(el)
}

func (d *XMLDialect) NonFiscalText(text string) ([]byte, error) {
	el := etree.NewElement("tekst")
	el.SetText(text)
	return d.element(el)
}

func (d *XMLDialect) PrintCopy(number int) ([]byte, error) {
	el := etree.NewElement("kopia")
	el.CreateAttr("numer", strconv.Itoa(number))
	return d.element(el)
}

func (d *XMLDialect) ErrorQuery() ([]byte, error) {
	el := etree.NewElement("blad")
	el.CreateAttr("akcja", "odczyt")
	return d.element(el)
}

func (d *XMLDialect) ResponseTerminator() []byte {
	return []byte("</pakiet>")
}

// ParseCloseResponse extracts the fiscal and receipt numbers from
// <paragon numer_fiskalny="..." numer_wydruku="..."/>.
func (d *XMLDialect) ParseCloseResponse(raw []byte) (ReceiptResult, error) {
	inner, err := unwrapPacket(raw)
	if err != nil {
		return ReceiptResult{}, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(inner); err != nil {
		return ReceiptResult{}, fmt.Errorf("malformed close response: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "paragon" {
		return ReceiptResult{}, fmt.Errorf("unexpected close response %q", inner)
	}
	result := ReceiptResult{
		FiscalNumber:  root.SelectAttrValue("numer_fiskalny", ""),
		ReceiptNumber: root.SelectAttrValue("numer_wydruku", ""),
	}
	if result.FiscalNumber == "" {
		return ReceiptResult{}, fmt.Errorf("close response missing fiscal number")
	}
	return result, nil
}

// ParseErrorResponse extracts the register from <blad kod="E2"/>.
func (d *XMLDialect) ParseErrorResponse(raw []byte) (int, error) {
	inner, err := unwrapPacket(raw)
	if err != nil {
		return 0, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(inner); err != nil {
		return 0, fmt.Errorf("malformed error response: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "blad" {
		return 0, fmt.Errorf("unexpected error response %q", inner)
	}
	kod := root.SelectAttrValue("kod", "")
	m := escpErrorRe.FindStringSubmatch("#" + kod)
	if m == nil {
		return 0, fmt.Errorf("malformed error register %q", kod)
	}
	return strconv.Atoi(m[1])
}

var packetRe = regexp.MustCompile(`(?s)^<pakiet crc="([0-9a-fA-F]{8})">(.*)</pakiet>$`)

// unwrapPacket verifies the packet CRC and returns the inner bytes.
func unwrapPacket(raw []byte) ([]byte, error) {
	m := packetRe.FindSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("malformed packet %q", raw)
	}
	declared, err := strconv.ParseUint(string(m[1]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("malformed packet crc %q", m[1])
	}
	inner := m[2]
	if crc32.ChecksumIEEE(inner) != uint32(declared) {
		return nil, fmt.Errorf("packet crc mismatch")
	}
	return inner, nil
}
