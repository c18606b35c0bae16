package enums

// CommissionStatus records the terminal outcome of the commission charge for a
// payment. Besides the two local short-circuit reasons, any status string
// reported by the gateway (Completed, Pending, Denied, ...) is stored verbatim,
// so this type is deliberately open-ended.
type CommissionStatus string

const (
	CommissionStatusUnset         CommissionStatus = ""
	CommissionStatusSellerIsAdmin CommissionStatus = "seller_is_admin"
	CommissionStatusBelowMinimum  CommissionStatus = "below_minimum"
)

// String implements fmt.Stringer.
func (c CommissionStatus) String() string {
	return string(c)
}

// Applied reports whether a commission outcome has been recorded.
func (c CommissionStatus) Applied() bool {
	return c != CommissionStatusUnset
}

// NotApplicable reports whether the commission was skipped by a local gate
// rather than settled by the gateway.
func (c CommissionStatus) NotApplicable() bool {
	return c == CommissionStatusSellerIsAdmin || c == CommissionStatusBelowMinimum
}
