package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateFee(t *testing.T) {
	tests := []struct {
		name string
		days int
		want Fee
	}{
		{"not overdue", 0, Fee{BaseFee: 100, Penalty: 0, Total: 100}},
		{"under a month", 29, Fee{BaseFee: 100, Penalty: 0, Total: 100, DaysOverdue: 29}},
		{"two months", 65, Fee{BaseFee: 100, Penalty: 20, Total: 120, DaysOverdue: 65}},
		{"negative", -10, Fee{BaseFee: 100, Penalty: 0, Total: 100, DaysOverdue: -10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateFee(100, DefaultPenaltyRate, tt.days)
			assert.Equal(t, tt.want.BaseFee, got.BaseFee)
			assert.InDelta(t, tt.want.Penalty, got.Penalty, 1e-9)
			assert.InDelta(t, tt.want.Total, got.Total, 1e-9)
			assert.Equal(t, tt.want.DaysOverdue, got.DaysOverdue)
		})
	}
}

func TestBalanceAndPercentage(t *testing.T) {
	b := Balance(100, []float64{30, 20}, []float64{15})
	assert.InDelta(t, 65, b.CurrentBalance, 1e-9)
	assert.InDelta(t, 50, b.TotalPayments, 1e-9)
	assert.InDelta(t, 15, b.TotalCharges, 1e-9)
	assert.InDelta(t, 7.5, Percentage(50, 15), 1e-9)
}

func TestBillingRouting(t *testing.T) {
	h := NewBilling(nil, nil)
	ctx := context.Background()

	out, err := h.Handle(ctx, "How much do I owe on account 4521?")
	require.NoError(t, err)
	assert.Contains(t, out, "Account 4521")
	assert.Contains(t, out, "$150.00")
	assert.Contains(t, out, "Status: Active")
	assert.Contains(t, out, "outstanding balance")

	out, err = h.Handle(ctx, "I want to pay $45.50")
	require.NoError(t, err)
	assert.Contains(t, out, "TXN123456789")
	assert.Contains(t, out, "$45.50")

	out, err = h.Handle(ctx, "I want to pay")
	require.NoError(t, err)
	assert.Equal(t, "Please specify the payment amount.", out)

	out, err = h.Handle(ctx, "what payment options are there")
	require.NoError(t, err)
	assert.Contains(t, out, "**Zikicash**")

	out, err = h.Handle(ctx, "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "bill balances")
}

type brokenBilling struct{ DemoBillingAPI }

func (brokenBilling) Bill(context.Context, string) (*Bill, error) {
	return nil, errors.New("backend unavailable")
}

func TestBillingBackendFailure(t *testing.T) {
	out, err := NewBilling(brokenBilling{}, nil).Handle(context.Background(), "my balance please")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I couldn't find billing information for account DEMO123.", out)
}

func TestAccountIDAndAmount(t *testing.T) {
	assert.Equal(t, "778", AccountID("ID 778 balance"))
	assert.Equal(t, DefaultAccountID, AccountID("my balance"))
	assert.InDelta(t, 20.0, Amount("pay 20 dollars"), 1e-9)
	assert.Zero(t, Amount("pay now"))
}

func TestIncidentReport(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }
	rec := NewRecorder(clock)
	h := NewIncident(rec, nil)

	out, err := h.Handle(context.Background(), "There's a major pipe burst near Mucheke High")
	require.NoError(t, err)
	assert.Contains(t, out, "INC20260203040506")
	assert.Contains(t, out, "**Location**: Mucheke")
	assert.Contains(t, out, "**Severity**: High")

	incidents := rec.Incidents()
	require.Len(t, incidents, 1)
	assert.Equal(t, SeverityHigh, incidents[0].Severity)

	out, err = h.Handle(context.Background(), "report something")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "I can help you report"))
	assert.Len(t, rec.Incidents(), 1)
}

func TestLocationAndSeverity(t *testing.T) {
	assert.Equal(t, "Rujeko Road", Location("leak at rujeko road"))
	assert.Equal(t, "Cbd", Location("burst pipe in the CBD"))
	assert.Equal(t, "Location not specified", Location("a leak"))
	assert.Equal(t, SeverityLow, Severity("minor leak"))
	assert.Equal(t, SeverityMedium, Severity("leak"))
}

func TestLicensing(t *testing.T) {
	h := NewLicensing(nil)
	out, err := h.Handle(context.Background(), "I want to apply for a shop licence")
	require.NoError(t, err)
	assert.Contains(t, out, "Licence Type: Shop Licence")
	assert.Contains(t, out, "John Doe")

	out, err = h.Handle(context.Background(), "where is the form")
	require.NoError(t, err)
	assert.Contains(t, out, FormTemplateURL)

	assert.Equal(t, "General Business Licence", LicenceType("licence please"))
}
