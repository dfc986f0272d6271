package finance

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PaymentMethodTotal is one bucket of the payment method histogram
type PaymentMethodTotal struct {
	Method PaymentMethod   `json:"method"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// DailyLedger is the aggregate of one calendar day's transactions
type DailyLedger struct {
	Date                   string               `json:"date"`
	Revenues               []Revenue            `json:"revenues"`
	Expenses               []Expense            `json:"expenses"`
	TotalIncome            decimal.Decimal      `json:"total_income"`
	TotalExpenses          decimal.Decimal      `json:"total_expenses"`
	NetBalance             decimal.Decimal      `json:"net_balance"`
	PaymentMethodHistogram []PaymentMethodTotal `json:"payment_method_histogram"`
	TuitionShare           int                  `json:"tuition_share"`
}

// Aggregate sums the revenues and expenses falling on date. Records are
// matched on the calendar-day prefix of their stored date; cancelled and
// rejected records are left out of the lists and every total.
func Aggregate(date string, revenues []Revenue, expenses []Expense) DailyLedger {
	day := DayOf(date)
	ledger := DailyLedger{
		Date:          day,
		Revenues:      make([]Revenue, 0),
		Expenses:      make([]Expense, 0),
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
	}

	tuition := decimal.Zero
	buckets := make(map[PaymentMethod]*PaymentMethodTotal)
	for _, r := range revenues {
		if r.Day() != day || r.Status.IsVoid() {
			continue
		}
		ledger.Revenues = append(ledger.Revenues, r)
		ledger.TotalIncome = ledger.TotalIncome.Add(r.Amount)
		if r.Kind.IsTuition() {
			tuition = tuition.Add(r.Amount)
		}

		method := r.PaymentMethod
		if method == "" {
			method = PaymentMethodUnspecified
		}
		b, ok := buckets[method]
		if !ok {
			b = &PaymentMethodTotal{Method: method, Amount: decimal.Zero}
			buckets[method] = b
		}
		b.Count++
		b.Amount = b.Amount.Add(r.Amount)
	}

	for _, e := range expenses {
		if e.Day() != day || e.Status.IsVoid() {
			continue
		}
		ledger.Expenses = append(ledger.Expenses, e)
		ledger.TotalExpenses = ledger.TotalExpenses.Add(e.Amount)
	}

	ledger.NetBalance = ledger.TotalIncome.Sub(ledger.TotalExpenses)
	ledger.TuitionShare = sharePercent(tuition, ledger.TotalIncome)

	ledger.PaymentMethodHistogram = make([]PaymentMethodTotal, 0, len(buckets))
	for _, b := range buckets {
		ledger.PaymentMethodHistogram = append(ledger.PaymentMethodHistogram, *b)
	}
	sort.Slice(ledger.PaymentMethodHistogram, func(i, j int) bool {
		return ledger.PaymentMethodHistogram[i].Method < ledger.PaymentMethodHistogram[j].Method
	})
	return ledger
}

// sharePercent returns part/total as a rounded integer percentage, 0 when total is 0
func sharePercent(part, total decimal.Decimal) int {
	if total.IsZero() {
		return 0
	}
	return int(part.Mul(decimal.NewFromInt(100)).Div(total).Round(0).IntPart())
}
