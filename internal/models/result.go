package models

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks a failed call to the exchange, the store or the feed.
	ErrTransient = errors.New("transient external failure")
	// ErrDataInvalid marks an unparseable price, zone or position field.
	ErrDataInvalid = errors.New("invalid data")
)

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeSkipped
	OutcomeTransient
	OutcomeDataInvalid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeTransient:
		return "transient"
	case OutcomeDataInvalid:
		return "data_invalid"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result: итог одной операции (сигнал, позиция, шаг ордера).
type Result struct {
	Outcome Outcome
	Reason  string
	Err     error
}

func Success(reason string) Result { return Result{Outcome: OutcomeSuccess, Reason: reason} }
func Skipped(reason string) Result { return Result{Outcome: OutcomeSkipped, Reason: reason} }

// Failed builds a result from err, picking the outcome from its class.
func Failed(reason string, err error) Result {
	return Result{Outcome: Classify(err), Reason: reason, Err: err}
}

func (r Result) OK() bool { return r.Outcome == OutcomeSuccess }

// Classify maps an error to an outcome. Unclassified errors count as transient.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrDataInvalid):
		return OutcomeDataInvalid
	default:
		return OutcomeTransient
	}
}

// Transient wraps err into the transient class keeping the op name.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

func DataInvalid(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDataInvalid, err)
}
