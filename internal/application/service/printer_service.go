package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/repository"
	"github.com/vetdesk/clinicpos-api/pkg/apperror"
	"github.com/vetdesk/clinicpos-api/pkg/printer"
	"go.uber.org/zap"
)

// PrinterService formats invoice receipts and sends them to the thermal
// printer.
type PrinterService struct {
	printer      printer.Printer
	invoiceRepo  repository.InvoiceRepository
	settingsRepo repository.SettingsRepository
	printerType  string
	logger       *zap.Logger
}

// NewPrinterService creates a new printer service
func NewPrinterService(
	p printer.Printer,
	invoiceRepo repository.InvoiceRepository,
	settingsRepo repository.SettingsRepository,
	printerType string,
	logger *zap.Logger,
) *PrinterService {
	return &PrinterService{
		printer:      p,
		invoiceRepo:  invoiceRepo,
		settingsRepo: settingsRepo,
		printerType:  printerType,
		logger:       logger,
	}
}

// PrinterStatus returns the current printer status information
type PrinterStatus struct {
	Configured bool   `json:"configured"`
	Connected  bool   `json:"connected"`
	Type       string `json:"type"`
}

// GetStatus returns printer connection status
func (s *PrinterService) GetStatus() *PrinterStatus {
	return &PrinterStatus{
		Configured: s.printerType != "none" && s.printerType != "",
		Connected:  s.printer.IsConnected(),
		Type:       s.printerType,
	}
}

// TestPrint sends a test page to the printer. Returns the receipt data so
// the handler can return it as JSON when no printer is configured.
func (s *PrinterService) TestPrint() (*entity.Receipt, error) {
	receipt := &entity.Receipt{
		Header: entity.ReceiptHeader{
			ClinicName: "PRINTER TEST",
			Address:    "Test Address",
			Phone:      "+965 0000 0000",
		},
		InvoiceNo:    "TEST-001",
		Date:         "Test Date",
		Cashier:      "System",
		CurrencyCode: "KWD",
		Items: []entity.ReceiptItem{
			{Name: "Test Item 1", Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10), Total: decimal.NewFromInt(10)},
			{Name: "Test Item 2", Qty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(5), Total: decimal.NewFromInt(10)},
		},
		Tendered: decimal.NewFromInt(20),
		Total:    decimal.NewFromInt(20),
	}

	data := FormatReceipt(receipt)
	if err := s.printer.Print(data); err != nil {
		return receipt, fmt.Errorf("test print failed: %w", err)
	}

	return receipt, nil
}

// PrintInvoiceReceipt fetches an invoice with its allocations and prints
// its receipt.
func (s *PrinterService) PrintInvoiceReceipt(ctx context.Context, invoiceID uuid.UUID) (*entity.Receipt, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, apperror.NewNotFoundError("Invoice")
	}

	receipt := &entity.Receipt{
		InvoiceNo:     invoice.InvoiceNumber,
		Date:          invoice.PaidAt.Format("2006-01-02 15:04"),
		Customer:      invoice.Customer.Name,
		PaymentMethod: invoice.PaymentMethod.Name,
		CurrencyCode:  invoice.CurrencyCode,
		CreditApplied: invoice.CreditApplied,
		Tendered:      invoice.TenderedAmount,
		Total:         invoice.TotalAmount,
	}

	if settings, err := s.settingsRepo.Get(ctx); err == nil && settings != nil {
		receipt.Header.ClinicName = settings.ClinicName
		if settings.Address != nil {
			receipt.Header.Address = *settings.Address
		}
		if settings.Phone != nil {
			receipt.Header.Phone = *settings.Phone
		}
		if settings.ReceiptNote != nil {
			receipt.FooterNote = *settings.ReceiptNote
		}
	}
	if receipt.Header.ClinicName == "" {
		receipt.Header.ClinicName = "Clinic"
	}

	for _, alloc := range invoice.Allocations {
		name := alloc.Line.Description
		if name == "" {
			name = "Item"
		}
		receipt.Items = append(receipt.Items, entity.ReceiptItem{
			Name:      name,
			Qty:       alloc.Line.Qty,
			UnitPrice: alloc.Line.UnitPrice,
			Total:     alloc.Amount,
		})
	}

	data := FormatReceipt(receipt)
	if err := s.printer.Print(data); err != nil {
		s.logger.Warn("receipt print failed", zap.String("invoice_id", invoiceID.String()), zap.Error(err))
		return receipt, fmt.Errorf("failed to print receipt: %w", err)
	}

	return receipt, nil
}

// FormatReceipt converts a Receipt into ESC/POS bytes
func FormatReceipt(r *entity.Receipt) []byte {
	out := printer.NewReceipt(32) // 58mm paper = 32 chars

	// Header
	out.SetAlign(printer.AlignCenter).
		SetBold(true).
		SetFontSize(printer.FontDouble).
		Text(r.Header.ClinicName).
		SetFontSize(printer.FontNormal).
		SetBold(false)

	if r.Header.Address != "" {
		out.Text(r.Header.Address)
	}
	if r.Header.Phone != "" {
		out.Text(r.Header.Phone)
	}

	out.SetAlign(printer.AlignLeft).
		Separator('-')

	// Invoice info
	out.KeyValue("Invoice:", r.InvoiceNo).
		KeyValue("Date:", r.Date)

	if r.Cashier != "" {
		out.KeyValue("Cashier:", r.Cashier)
	}
	if r.Customer != "" {
		out.KeyValue("Customer:", r.Customer)
	}
	if r.PaymentMethod != "" {
		out.KeyValue("Payment:", r.PaymentMethod)
	}

	out.Separator('-')

	// Items
	for _, item := range r.Items {
		qty := int(item.Qty.IntPart())
		if qty < 1 {
			qty = 1
		}
		out.ItemLine(qty, item.Name, item.Total.StringFixed(3))
		if item.Qty.GreaterThan(decimal.NewFromInt(1)) {
			out.TextF("  @ %s each", item.UnitPrice.StringFixed(3))
		}
	}

	out.Separator('-')

	// Totals
	if r.CreditApplied.IsPositive() {
		out.KeyValue("Credit:", r.CreditApplied.StringFixed(3))
	}
	if r.Tendered.IsPositive() {
		out.KeyValue("Tendered:", r.Tendered.StringFixed(3))
	}
	out.SetBold(true).
		KeyValue("TOTAL:", r.Total.StringFixed(3)+" "+r.CurrencyCode).
		SetBold(false)

	out.Separator('-')

	// Footer
	footer := r.FooterNote
	if footer == "" {
		footer = "Thank you for your visit!"
	}
	out.SetAlign(printer.AlignCenter).
		LineFeed().
		Text(footer).
		LineFeed().
		SetAlign(printer.AlignLeft)

	out.FeedLines(3).
		PartialCut()

	return out.Bytes()
}
