package request

// AddLineRequest adds a product to the cart
type AddLineRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	Qty       string `json:"qty"`
}

// UpdateLineRequest edits one field of a cart line. The value is passed
// through as entered; the session coerces invalid input.
type UpdateLineRequest struct {
	Field string `json:"field" binding:"required,oneof=qty price discount"`
	Value string `json:"value" binding:"required"`
}

// GlobalDiscountRequest installs or clears the cart-wide discount
type GlobalDiscountRequest struct {
	Type  string `json:"type" binding:"required,oneof=percent fixed"`
	Value string `json:"value" binding:"required"`
}

// UpdateHeaderRequest edits the encounter header from the terminal. Nil
// fields are left untouched; an empty id clears the selection.
type UpdateHeaderRequest struct {
	PractitionerID *string  `json:"practitioner_id"`
	RoomID         *string  `json:"room_id"`
	PatientIDs     []string `json:"patient_ids"`
}

// TogglePaymentMethodRequest selects or deselects a payment method
type TogglePaymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id" binding:"required,uuid"`
}
