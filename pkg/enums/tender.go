package enums

import "fmt"

// Tender identifies how a sale was paid.
type Tender string

const (
	TenderCash     Tender = "cash"
	TenderCard     Tender = "card"
	TenderVoucher  Tender = "voucher"
	TenderTransfer Tender = "transfer"
	TenderOther    Tender = "other"
)

var validTenders = []Tender{
	TenderCash,
	TenderCard,
	TenderVoucher,
	TenderTransfer,
	TenderOther,
}

// String implements fmt.Stringer.
func (t Tender) String() string {
	return string(t)
}

// IsValid reports whether the value is a known Tender.
func (t Tender) IsValid() bool {
	for _, candidate := range validTenders {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsCash reports whether change is due on overpayment.
func (t Tender) IsCash() bool {
	return t == TenderCash
}

// ParseTender converts raw input into a Tender.
func ParseTender(value string) (Tender, error) {
	for _, candidate := range validTenders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tender %q", value)
}
