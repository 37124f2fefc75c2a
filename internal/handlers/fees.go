package handlers

// DefaultPenaltyRate is the monthly penalty applied to overdue fees.
const DefaultPenaltyRate = 0.1

// Fee is the result of CalculateFee.
type Fee struct {
	BaseFee     float64 `json:"base_fee"`
	Penalty     float64 `json:"penalty"`
	Total       float64 `json:"total"`
	DaysOverdue int     `json:"days_overdue"`
}

// CalculateFee applies penaltyRate to base once per whole 30 days overdue.
// Negative days count as zero.
func CalculateFee(base, penaltyRate float64, daysOverdue int) Fee {
	months := 0
	if daysOverdue > 0 {
		months = daysOverdue / 30
	}
	penalty := base * penaltyRate * float64(months)
	return Fee{
		BaseFee:     base,
		Penalty:     penalty,
		Total:       base + penalty,
		DaysOverdue: daysOverdue,
	}
}

// BillBalance is the result of Balance.
type BillBalance struct {
	PreviousBalance float64 `json:"previous_balance"`
	TotalPayments   float64 `json:"total_payments"`
	TotalCharges    float64 `json:"total_charges"`
	CurrentBalance  float64 `json:"current_balance"`
}

// Balance returns previous + sum(charges) - sum(payments).
func Balance(previous float64, payments, charges []float64) BillBalance {
	var paid, charged float64
	for _, p := range payments {
		paid += p
	}
	for _, c := range charges {
		charged += c
	}
	return BillBalance{
		PreviousBalance: previous,
		TotalPayments:   paid,
		TotalCharges:    charged,
		CurrentBalance:  previous + charged - paid,
	}
}

// Percentage returns pct percent of value.
func Percentage(value, pct float64) float64 {
	return value * (pct / 100)
}
