// Package npv computes the net present value of structured-settlement
// payment schedules.
//
// Compute is pure and deterministic. Engine offloads the same computation to
// background workers so long schedules never stall the caller's event loop;
// when the workers are saturated or unresponsive the engine falls back to
// computing synchronously with the identical function, so both paths produce
// bit-for-bit identical results.
package npv

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// daysPerYear converts calendar deltas to discounting years.
const daysPerYear = 365.25

// DefaultTimeout bounds how long a call waits on the background workers
// before falling back to the synchronous path.
const DefaultTimeout = 10 * time.Second

// Validation errors returned when a schedule cannot be computed.
var (
	ErrNonFiniteAmount = errors.New("payment amount is not finite")
	ErrNonFiniteRate   = errors.New("discount rate is not finite")
	ErrInvalidRate     = errors.New("discount rate must be greater than -1")
	ErrZeroDate        = errors.New("payment date is unset")
	ErrZeroAsOf        = errors.New("as-of date is unset")
	ErrNoPayments      = errors.New("schedule has no payments")
	ErrEngineClosed    = errors.New("npv engine is closed")
)

// Payment is a single scheduled payment.
type Payment struct {
	Amount float64   `json:"amount"`
	Date   time.Time `json:"date"`
}

// PaymentSchedule is the input to a present-value computation.
type PaymentSchedule struct {
	Payments     []Payment `json:"payments"`
	DiscountRate float64   `json:"discount_rate"`
	AsOf         time.Time `json:"as_of"`
}

// PaymentValue is the discounted value of one payment.
type PaymentValue struct {
	Date         time.Time `json:"date"`
	Amount       float64   `json:"amount"`
	PresentValue float64   `json:"present_value"`
	YearsFromNow float64   `json:"years_from_now"`
}

// Result holds the total and per-payment present values.
type Result struct {
	NPV        float64        `json:"npv"`
	PerPayment []PaymentValue `json:"per_payment"`
}

// Validate checks the schedule for inputs the arithmetic cannot handle.
// Past-dated payments are permitted; they simply discount to more than face
// value. Range validation beyond that is a caller concern.
func (s PaymentSchedule) Validate() error {
	if len(s.Payments) == 0 {
		return ErrNoPayments
	}
	if s.AsOf.IsZero() {
		return ErrZeroAsOf
	}
	if math.IsNaN(s.DiscountRate) || math.IsInf(s.DiscountRate, 0) {
		return ErrNonFiniteRate
	}
	if s.DiscountRate <= -1 {
		return fmt.Errorf("%w: got %v", ErrInvalidRate, s.DiscountRate)
	}
	for i, p := range s.Payments {
		if math.IsNaN(p.Amount) || math.IsInf(p.Amount, 0) {
			return fmt.Errorf("payment %d: %w", i, ErrNonFiniteAmount)
		}
		if p.Date.IsZero() {
			return fmt.Errorf("payment %d: %w", i, ErrZeroDate)
		}
	}
	return nil
}

// Compute calculates the net present value of a schedule synchronously.
// It is pure: identical input always yields identical output.
func Compute(s PaymentSchedule) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		PerPayment: make([]PaymentValue, 0, len(s.Payments)),
	}
	for _, p := range s.Payments {
		years := p.Date.Sub(s.AsOf).Hours() / 24 / daysPerYear
		pv := p.Amount / math.Pow(1+s.DiscountRate, years)
		result.PerPayment = append(result.PerPayment, PaymentValue{
			Date:         p.Date,
			Amount:       p.Amount,
			PresentValue: pv,
			YearsFromNow: years,
		})
		result.NPV += pv
	}
	return result, nil
}

// Engine runs computations on dedicated background workers.
//
// Requests and results cross the worker boundary as copied messages; no
// memory is shared with the caller. A request that receives no background
// response within the configured timeout is computed synchronously instead of
// hanging.
type Engine struct {
	requests chan computeRequest
	timeout  time.Duration
	logger   *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type computeRequest struct {
	schedule PaymentSchedule
	reply    chan computeReply
}

type computeReply struct {
	result *Result
	err    error
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides the background-response timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// NewEngine starts an engine with the given number of background workers.
// workers < 1 is raised to 1. A nil logger is replaced with a no-op logger.
func NewEngine(workers int, logger *zap.Logger, opts ...Option) *Engine {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		requests: make(chan computeRequest),
		timeout:  DefaultTimeout,
		logger:   logger,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.worker()
	}
	return e
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		select {
		case req := <-e.requests:
			result, err := Compute(req.schedule)
			req.reply <- computeReply{result: result, err: err}
		case <-e.done:
			return
		}
	}
}

// ComputeNPV computes the schedule's present value, preferring the
// background workers and falling back to the synchronous path on timeout,
// context cancellation, or engine shutdown. Output does not depend on which
// path ran.
func (e *Engine) ComputeNPV(ctx context.Context, s PaymentSchedule) (*Result, error) {
	reply := make(chan computeReply, 1)
	deadline := time.NewTimer(e.timeout)
	defer deadline.Stop()

	select {
	case e.requests <- computeRequest{schedule: s, reply: reply}:
	case <-deadline.C:
		return e.fallback(ctx, s, "submit timeout")
	case <-ctx.Done():
		return e.fallback(ctx, s, "context cancelled")
	case <-e.done:
		return e.fallback(ctx, s, "engine closed")
	}

	select {
	case r := <-reply:
		return r.result, r.err
	case <-deadline.C:
		return e.fallback(ctx, s, "response timeout")
	case <-ctx.Done():
		return e.fallback(ctx, s, "context cancelled")
	}
}

// fallback runs the synchronous path after the background path was abandoned.
func (e *Engine) fallback(ctx context.Context, s PaymentSchedule, reason string) (*Result, error) {
	e.logger.Warn("background npv computation unavailable, computing synchronously",
		zap.String("reason", reason),
		zap.Int("payment_count", len(s.Payments)),
	)
	if err := ctx.Err(); err != nil && errors.Is(err, context.Canceled) {
		// The caller is gone; no point computing.
		return nil, err
	}
	return Compute(s)
}

// Close stops the background workers. In-flight computations finish; later
// calls to ComputeNPV use the synchronous fallback.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
	})
}
