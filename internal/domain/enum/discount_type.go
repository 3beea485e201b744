package enum

// DiscountType distinguishes percentage discounts from fixed-amount discounts
type DiscountType string

const (
	DiscountTypePercent DiscountType = "percent"
	DiscountTypeFixed   DiscountType = "fixed"
)

// Valid reports whether the value is a known discount type
func (t DiscountType) Valid() bool {
	return t == DiscountTypePercent || t == DiscountTypeFixed
}
