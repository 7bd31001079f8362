package shift

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fluxretail/backend-pos/internal/money"
	"github.com/fluxretail/backend-pos/internal/settlement"
)

// ErrNoShift is returned when aggregation is requested without a session.
var ErrNoShift = errors.New("shift: no shift session")

// TopItemLimit caps the best-seller list in a report.
const TopItemLimit = 5

// PaymentTotals is the per-method breakdown in a report. Bank transfers and
// "other" tenders collapse into the card bucket for external reporting.
type PaymentTotals struct {
	Cash        money.Money `json:"cash"`
	Card        money.Money `json:"card"`
	StoreCredit money.Money `json:"storeCredit"`
}

// TopItem is one entry of the best-seller list.
type TopItem struct {
	Name string          `json:"name"`
	Qty  decimal.Decimal `json:"quantity"`
}

// Report is the X (open shift) or Z (closed shift) financial summary. It is
// derived data and never persisted by the engine.
type Report struct {
	ShiftID          string        `json:"shiftId"`
	ShiftStatus      string        `json:"shiftStatus"`
	TransactionCount int           `json:"transactionCount"`
	GrossSales       money.Money   `json:"grossSales"`
	ReturnsTotal     money.Money   `json:"returnsTotal"`
	NetSales         money.Money   `json:"netSales"`
	TaxCollected     money.Money   `json:"taxCollected"`
	PaymentTotals    PaymentTotals `json:"paymentTotals"`
	TopItems         []TopItem     `json:"topItems"`
}

// Aggregate folds a shift's transactions into a report. Transactions outside
// the shift window or in a non-contributing status are skipped; individually
// malformed transactions are skipped rather than failing the whole report,
// because a close-out summary must still render over partially inconsistent
// history.
func Aggregate(sess *Session, txs []settlement.Transaction, now time.Time) (Report, error) {
	if sess == nil {
		return Report{}, ErrNoShift
	}
	start, end := sess.Window(now)

	report := Report{
		ShiftID:     sess.ID.String(),
		ShiftStatus: sess.Status,
	}
	var order []string
	qty := make(map[string]decimal.Decimal)

	for _, tx := range txs {
		if tx.CreatedAt.Before(start) || tx.CreatedAt.After(end) {
			continue
		}
		switch tx.Status {
		case settlement.StatusCompleted:
			report.TransactionCount++
			report.GrossSales += tx.Totals.GrandTotal
			report.TaxCollected += tx.Totals.TaxTotal
			addPaymentTotals(&report.PaymentTotals, tx, 1)
			for _, li := range tx.Lines {
				if li.Qty.Sign() <= 0 {
					continue
				}
				name := li.Name
				if name == "" {
					name = li.ProductID.String()
				}
				if _, ok := qty[name]; !ok {
					order = append(order, name)
				}
				qty[name] = qty[name].Add(li.Qty)
			}
		case settlement.StatusRefunded:
			report.ReturnsTotal += tx.Totals.GrandTotal
			report.TaxCollected -= tx.Totals.TaxTotal
			addPaymentTotals(&report.PaymentTotals, tx, -1)
		}
	}

	report.NetSales = report.GrossSales - report.ReturnsTotal

	sort.SliceStable(order, func(i, j int) bool {
		// Quantity descending, first-seen order breaking ties (stable sort
		// preserves the insertion order recorded in seen).
		return qty[order[i]].GreaterThan(qty[order[j]])
	})
	if len(order) > TopItemLimit {
		order = order[:TopItemLimit]
	}
	for _, name := range order {
		report.TopItems = append(report.TopItems, TopItem{Name: name, Qty: qty[name]})
	}
	return report, nil
}

// addPaymentTotals distributes a transaction's grand total across its payment
// records proportionally to the tendered amounts, so a cash tender that
// produced change only contributes what the sale actually took. Transactions
// without itemized payments fall back to an even split across the methods
// implied by the primary method; the 50/50 cash/card guess for bare "split"
// transactions is a best-effort policy for legacy data, not a reconstruction.
func addPaymentTotals(pt *PaymentTotals, tx settlement.Transaction, sign int64) {
	grand := tx.Totals.GrandTotal
	if grand <= 0 {
		return
	}

	if len(tx.Payments) == 0 {
		switch tx.PrimaryMethod {
		case settlement.MethodSplit:
			half := grand / 2
			addBucket(pt, settlement.MethodCard, half, sign)
			addBucket(pt, settlement.MethodCash, grand-half, sign)
		case "":
			addBucket(pt, settlement.MethodCash, grand, sign)
		default:
			addBucket(pt, tx.PrimaryMethod, grand, sign)
		}
		return
	}

	var tendered money.Money
	for _, p := range tx.Payments {
		if p.Amount > 0 {
			tendered += p.Amount
		}
	}
	if tendered <= 0 {
		return
	}
	// The last positive record absorbs the rounding remainder so the buckets
	// always sum back to the grand total.
	last := -1
	for i, p := range tx.Payments {
		if p.Amount > 0 {
			last = i
		}
	}
	var allocated money.Money
	for i, p := range tx.Payments {
		if p.Amount <= 0 {
			continue
		}
		part := money.Ratio(grand, p.Amount, tendered)
		if i == last {
			part = grand.SubClamped(allocated)
		}
		allocated += part
		addBucket(pt, p.Method, part, sign)
	}
}

func addBucket(pt *PaymentTotals, method settlement.PaymentMethod, amount money.Money, sign int64) {
	delta := money.Money(sign * int64(amount))
	switch method {
	case settlement.MethodCash:
		pt.Cash += delta
	case settlement.MethodStoreCredit:
		pt.StoreCredit += delta
	default:
		pt.Card += delta
	}
}
