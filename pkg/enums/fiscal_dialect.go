package enums

import "fmt"

// FiscalDialect selects the wire protocol spoken to the fiscal printer.
// The XML dialect is preferred when the device supports it.
type FiscalDialect string

const (
	FiscalDialectESCP FiscalDialect = "escp"
	FiscalDialectXML  FiscalDialect = "xml"
)

var validFiscalDialects = []FiscalDialect{
	FiscalDialectESCP,
	FiscalDialectXML,
}

// String implements fmt.Stringer.
func (d FiscalDialect) String() string {
	return string(d)
}

// IsValid reports whether the value is a known FiscalDialect.
func (d FiscalDialect) IsValid() bool {
	for _, candidate := range validFiscalDialects {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseFiscalDialect converts raw input into a FiscalDialect.
func ParseFiscalDialect(value string) (FiscalDialect, error) {
	for _, candidate := range validFiscalDialects {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fiscal dialect %q", value)
}
