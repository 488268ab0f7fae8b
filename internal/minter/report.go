// internal/minter/report.go
package minter

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/candy-mint/internal/candymachine"
	"github.com/rovshanmuradov/candy-mint/internal/transaction"
)

// Failure kinds that are not confirmation outcomes.
const (
	KindBuildFailed  = "build_failed"
	KindSubmitFailed = "submit_failed"
)

// Failure describes one item that did not mint.
type Failure struct {
	Index     int
	Label     string
	Signature string
	Kind      string
	Code      *uint32
	Condition candymachine.Condition
	Message   string
}

// Report is the outcome of one Mint call.
type Report struct {
	BatchID        uuid.UUID
	Requested      int
	Attempted      int
	Classification transaction.Classification
	Successes      int
	// Minted holds the mint addresses of confirmed items in input order.
	Minted   []string
	Failures []Failure
	// State is re-read after the batch; nil if the refresh failed.
	State *candymachine.State
	// Balance is the payer balance in SOL after the batch; nil if unavailable.
	Balance *decimal.Decimal
}

// SoldOut reports whether any failure was the program's sold-out error.
func (r *Report) SoldOut() bool {
	for _, f := range r.Failures {
		if f.Condition == candymachine.ConditionSoldOut {
			return true
		}
	}
	return r.State != nil && r.State.IsSoldOut()
}

// Messages renders the success and failure summaries.
func (r *Report) Messages() []string {
	var out []string
	if r.Successes > 0 {
		out = append(out, fmt.Sprintf("Congratulations! Minted %d tokens successfully!", r.Successes))
	}
	if n := len(r.Failures); n > 0 {
		out = append(out, fmt.Sprintf("Failed to mint %d tokens! Please try again!", n))
	}
	return out
}

func newReport(requested, attempted int, res *transaction.BatchResult, catalog *candymachine.ErrorCatalog) *Report {
	r := &Report{
		BatchID:        res.ID,
		Requested:      requested,
		Attempted:      attempted,
		Classification: res.Classification(),
		Successes:      res.Successes(),
	}
	for _, bf := range res.BuildFailures {
		r.Failures = append(r.Failures, Failure{
			Index:   bf.Index,
			Kind:    KindBuildFailed,
			Message: bf.Err.Error(),
		})
	}
	for _, it := range res.Items {
		if it.Succeeded() {
			r.Minted = append(r.Minted, it.Label)
			continue
		}
		r.Failures = append(r.Failures, describeFailure(it, catalog))
	}
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].Index < r.Failures[j].Index })
	return r
}

func describeFailure(it transaction.ItemResult, catalog *candymachine.ErrorCatalog) Failure {
	f := Failure{
		Index:     it.Index,
		Label:     it.Label,
		Signature: it.Signature.String(),
		Kind:      string(it.Outcome.Kind),
	}
	if it.SubmitErr != nil {
		f.Kind = KindSubmitFailed
		f.Message = it.SubmitErr.Error()
		return f
	}

	err := it.Err()
	f.Message = err.Error()

	var perr *transaction.ProgramError
	if errors.As(err, &perr) && perr.Code != nil {
		f.Code = perr.Code
		f.Message = catalog.Describe(*perr.Code)
		if e, ok := catalog.Lookup(*perr.Code); ok {
			f.Condition = e.Condition
		}
	}
	if errors.Is(err, transaction.ErrConfirmationTimeout) {
		f.Message = "Transaction was not confirmed in time"
	}
	return f
}
