package fraudtypes

import "errors"

// Error kinds per spec §7. Callers can branch on them with IsKind or
// errors.As; the driver loop (package driverloop) logs every error it
// receives and continues without advancing the cursor, whatever its kind.
// KindRace is never surfaced by the phase driver (its revert-class filter
// absorbs it silently) -- KindRace exists here so tests can assert on the
// classification in isolation.
type Kind int

const (
	// KindTransport is an RPC failure against the settlement chain or the
	// rollup node.
	KindTransport Kind = iota + 1
	// KindNotFound means a queried index lies beyond the chain tip.
	KindNotFound
	// KindCorruptWitness means the builder detected inconsistent MPT
	// nodes, or a state-diff proof failed to cover a changed address.
	KindCorruptWitness
	// KindRace means an on-chain revert matched a §4.6.3 filter; a peer
	// made forward progress first.
	KindRace
	// KindSubmission means an on-chain revert or transaction-wait
	// failure that does not match any race filter.
	KindSubmission
	// KindFatal means misconfiguration or unrecoverable boot failure.
	KindFatal
	// KindUnsupported means the rollup node lacks the getStateDiffProof
	// RPC extension.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindNotFound:
		return "not_found"
	case KindCorruptWitness:
		return "corrupt_witness"
	case KindRace:
		return "race"
	case KindSubmission:
		return "submission"
	case KindFatal:
		return "fatal"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind so callers can branch with
// errors.As instead of string matching (the one exception being the
// revert-message classification in package phasedriver, which spec.md
// requires to stay substring-based).
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "l1view.getStateRoot"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap constructs an *Error of the given kind.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err (or something it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == k
	}
	return false
}

// ErrInconsistent is raised by the phase driver's account sub-loop (§4.6.2
// d.3) when the state-diff proof does not cover an account the
// transitioner reports as changed. It is always wrapped as
// KindCorruptWitness.
var ErrInconsistent = errors.New("phasedriver: state-diff proof does not cover a changed account")
