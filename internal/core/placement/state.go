package placement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sfcompute/sfc/internal/adapters/outbound/marketplace"
	"github.com/sfcompute/sfc/internal/core/window"
)

// State is a phase of a single order attempt. One attempt owns one state
// machine instance; there is never more than one outstanding request.
type State string

const (
	StateIdle                 State = "idle"
	StateQuoting              State = "quoting"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateSubmitting           State = "submitting"
	StatePolling              State = "polling"
)

// OutcomeKind is the terminal result of an order attempt.
type OutcomeKind string

const (
	OutcomeFilled    OutcomeKind = "filled"
	OutcomeOpen      OutcomeKind = "open"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeRejected  OutcomeKind = "rejected"
	OutcomeExpired   OutcomeKind = "expired"

	// OutcomeSessionExpired means re-authenticate, not retry.
	OutcomeSessionExpired OutcomeKind = "session_expired"

	// OutcomeAmbiguous means polling exhausted all attempts while the
	// order stayed pending: it may or may not have been placed
	// server-side. Deliberately distinct from both Open and Error.
	OutcomeAmbiguous OutcomeKind = "ambiguous"

	// OutcomeError covers connectivity failures and server faults.
	// Retryable in principle; this engine never auto-retries.
	OutcomeError OutcomeKind = "error"
)

type Outcome struct {
	Kind    OutcomeKind
	Order   *marketplace.Order
	Message string
	Err     error
}

// Intent is the user's loosely specified request, as handed over by the
// CLI layer. GPUs is the accelerator count; the engine converts to whole
// nodes and rejects non-multiples before any network call.
type Intent struct {
	Side         string
	InstanceType string
	ContractID   string
	Zone         string
	ColocateWith string

	GPUs            int64
	Start           window.Instant
	DurationSeconds int64      // ignored when EndAt is set
	EndAt           *time.Time // explicit end; rounded up to the hour

	// LimitPrice is the user's per-GPU-hour limit in minor units. When
	// nil the engine quotes the market instead.
	LimitPrice *int64

	// NoQuoteFloor is an optional per-GPU-hour fallback used only when
	// the market returns no quote. Without it, an empty market aborts
	// the attempt.
	NoQuoteFloor *int64

	Standing    bool
	AutoConfirm bool
}

// Summary is what the user confirms before submission. Rate is
// display-only and may be fractional; Total is the whole-window amount
// that will actually be submitted (before the final re-resolution).
type Summary struct {
	Side            string
	InstanceType    string
	GPUs            int64
	Nodes           int64
	RatePerGPUHour  decimal.Decimal
	Total           int64
	StartAt         time.Time
	EndAt           time.Time
	DurationSeconds int64
	Quoted          bool
}
