package entity

import "github.com/shopspring/decimal"

// ReceiptHeader holds the clinic identity printed at the top of receipts
type ReceiptHeader struct {
	ClinicName string `json:"clinic_name"`
	Address    string `json:"address,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// ReceiptItem is one billed line on a receipt
type ReceiptItem struct {
	Name      string          `json:"name"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// Receipt is the printable view of an invoice
type Receipt struct {
	Header        ReceiptHeader   `json:"header"`
	InvoiceNo     string          `json:"invoice_no"`
	Date          string          `json:"date"`
	Cashier       string          `json:"cashier,omitempty"`
	Customer      string          `json:"customer,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	CurrencyCode  string          `json:"currency_code"`
	Items         []ReceiptItem   `json:"items"`
	CreditApplied decimal.Decimal `json:"credit_applied"`
	Tendered      decimal.Decimal `json:"tendered"`
	Total         decimal.Decimal `json:"total"`
	FooterNote    string          `json:"footer_note,omitempty"`
}
