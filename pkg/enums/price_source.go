package enums

// PriceSource says where an effective sale price came from.
type PriceSource string

const (
	PriceSourceLocationSpecial PriceSource = "location-special"
	PriceSourceProductDefault  PriceSource = "product-default"
)

// String implements fmt.Stringer.
func (p PriceSource) String() string {
	return string(p)
}
