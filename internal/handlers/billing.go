package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// DefaultAccountID is used when a query names no account.
const DefaultAccountID = "DEMO123"

var (
	accountPattern = regexp.MustCompile(`(?i)(?:account|id)\s*(\d+)`)
	amountPattern  = regexp.MustCompile(`\$?(\d+(?:\.\d{2})?)`)
)

// Bill is the state of a water account.
type Bill struct {
	AccountID      string  `json:"account_id"`
	CurrentBalance float64 `json:"current_balance"`
	LastPayment    string  `json:"last_payment"`
	DueDate        string  `json:"due_date"`
	Status         string  `json:"status"`
}

// Payment is a payment request.
type Payment struct {
	AccountID string  `json:"account_id"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
}

// Receipt confirms a processed payment.
type Receipt struct {
	TransactionID string  `json:"transaction_id"`
	AmountPaid    float64 `json:"amount_paid"`
	Method        string  `json:"payment_method"`
	Confirmation  string  `json:"confirmation"`
}

// PaymentOption is one accepted way to pay.
type PaymentOption struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// BillingAPI is the municipal billing backend.
type BillingAPI interface {
	Bill(ctx context.Context, accountID string) (*Bill, error)
	Pay(ctx context.Context, p Payment) (*Receipt, error)
	PaymentOptions(ctx context.Context) ([]PaymentOption, error)
}

// DemoBillingAPI returns fixed demonstration data.
type DemoBillingAPI struct{}

// Bill implements BillingAPI.
func (DemoBillingAPI) Bill(_ context.Context, accountID string) (*Bill, error) {
	return &Bill{
		AccountID:      accountID,
		CurrentBalance: 150.00,
		LastPayment:    "2025-12-01",
		DueDate:        "2026-01-15",
		Status:         "active",
	}, nil
}

// Pay implements BillingAPI.
func (DemoBillingAPI) Pay(_ context.Context, p Payment) (*Receipt, error) {
	return &Receipt{
		TransactionID: "TXN123456789",
		AmountPaid:    p.Amount,
		Method:        p.Method,
		Confirmation:  "Payment processed successfully",
	}, nil
}

// PaymentOptions implements BillingAPI.
func (DemoBillingAPI) PaymentOptions(context.Context) ([]PaymentOption, error) {
	return []PaymentOption{
		{Name: "Paynow", Description: "Mobile payment via Paynow"},
		{Name: "Zikicash", Description: "Mobile payment via Zikicash"},
		{Name: "In-person", Description: "Pay at council offices"},
	}, nil
}

// Billing answers balance, payment, and payment-option queries.
type Billing struct {
	api BillingAPI
	log *slog.Logger
}

// NewBilling returns a Billing handler. A nil api uses DemoBillingAPI.
func NewBilling(api BillingAPI, log *slog.Logger) *Billing {
	if api == nil {
		api = DemoBillingAPI{}
	}
	return &Billing{api: api, log: componentLogger(log, "billing")}
}

// Handle implements Handler.
func (b *Billing) Handle(ctx context.Context, query string) (string, error) {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "owe", "balance", "bill"):
		return b.balance(ctx, query)
	case containsAny(q, "pay", "payment"):
		if strings.Contains(q, "option") {
			return b.options(ctx)
		}
		return b.pay(ctx, query)
	case strings.Contains(q, "option"):
		return b.options(ctx)
	default:
		return "I'm sorry, I can help with bill balances, payments, and payment options. Please rephrase your query.", nil
	}
}

func (b *Billing) balance(ctx context.Context, query string) (string, error) {
	id := AccountID(query)
	bill, err := b.api.Bill(ctx, id)
	if err != nil {
		b.log.Warn("billing: lookup failed", slog.String("account", id), slog.String("error", err.Error()))
		return fmt.Sprintf("Sorry, I couldn't find billing information for account %s.", id), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Water Bill Information for Account %s**\n\n", bill.AccountID)
	fmt.Fprintf(&sb, "- Current Balance: $%.2f\n", bill.CurrentBalance)
	fmt.Fprintf(&sb, "- Last Payment: %s\n", bill.LastPayment)
	fmt.Fprintf(&sb, "- Due Date: %s\n", bill.DueDate)
	fmt.Fprintf(&sb, "- Status: %s", titleCase(bill.Status))
	if bill.CurrentBalance > 0 {
		sb.WriteString("\n\nYou have an outstanding balance. Please consider making a payment.")
	}
	return sb.String(), nil
}

func (b *Billing) pay(ctx context.Context, query string) (string, error) {
	amount := Amount(query)
	if amount <= 0 {
		return "Please specify the payment amount.", nil
	}
	r, err := b.api.Pay(ctx, Payment{AccountID: DefaultAccountID, Amount: amount, Method: "Paynow"})
	if err != nil {
		b.log.Warn("billing: payment failed", slog.String("error", err.Error()))
		return "Sorry, your payment could not be processed. Please try again.", nil
	}
	return fmt.Sprintf("**Payment Successful!**\n\n- Transaction ID: %s\n- Amount Paid: $%.2f\n- Payment Method: %s\n- Confirmation: %s",
		r.TransactionID, r.AmountPaid, r.Method, r.Confirmation), nil
}

func (b *Billing) options(ctx context.Context) (string, error) {
	opts, err := b.api.PaymentOptions(ctx)
	if err != nil || len(opts) == 0 {
		return "Sorry, I couldn't retrieve payment options at this time.", nil
	}
	lines := []string{"**Available Payment Options:**", ""}
	for _, o := range opts {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", o.Name, o.Description))
	}
	return strings.Join(lines, "\n"), nil
}

// AccountID extracts the account number from query, or DefaultAccountID.
func AccountID(query string) string {
	if m := accountPattern.FindStringSubmatch(query); m != nil {
		return m[1]
	}
	return DefaultAccountID
}

// Amount extracts the first money amount from query, or 0.
func Amount(query string) float64 {
	m := amountPattern.FindStringSubmatch(query)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
