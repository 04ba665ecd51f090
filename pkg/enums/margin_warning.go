package enums

// MarginWarningKind classifies advisories emitted by margin analysis.
type MarginWarningKind string

const (
	// MarginWarningLowDefault means the product default margin fell at or
	// below the minimum and was auto-corrected.
	MarginWarningLowDefault MarginWarningKind = "low_default_margin"
	// MarginWarningPromotionDetected means a location price looks like an
	// intentional promotion and was left untouched.
	MarginWarningPromotionDetected MarginWarningKind = "promotion_detected"
	// MarginWarningLowLocation means a location price has a low margin and
	// needs manual review.
	MarginWarningLowLocation MarginWarningKind = "low_location_margin"
)

// String implements fmt.Stringer.
func (k MarginWarningKind) String() string {
	return string(k)
}
