package phasedriver

import "strings"

// raceSubstrings are the on-chain revert-message fragments spec.md §4.6.3
// classifies as "made obsolete by a peer": a prover that observes one of
// these after submitting a transaction should treat the dispute as having
// made forward progress and continue, rather than aborting. These strings
// come from the verifier/transitioner/state-manager contracts' revert
// reasons and must be matched byte-for-byte; there is no structured
// "already done" return code on the other side of this RPC boundary.
var raceSubstrings = []string{
	// (c) pre-execution: another prover already proved this account or slot.
	"already been proven",
	// (c)->(d) phase guard: another prover advanced the transitioner's
	// phase out from under us.
	"Function must be called during the correct phase",
	// (d) post-execution commit-invalidation: another prover's commit
	// changed the root our proof was computed against.
	"invalid opcode",
	"Invalid root hash",
	"wasn't changed or has already been committed",
	// (e) complete: another prover already finalized this dispute.
	"Invalid batch header.",
	"Index out of bounds.",
}

const phaseGuardSubstring = "Function must be called during the correct phase"

// isPhaseGuardRevert reports whether err is specifically the per-phase
// guard revert: unlike the other race substrings, which mean "continue
// the current loop iteration", this one means a peer has already moved
// the transitioner past the phase we were acting on, so the caller should
// abandon the rest of that phase's work and re-read the phase instead.
func isPhaseGuardRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), phaseGuardSubstring)
}

// classifyRevert reports whether err's message matches one of the
// race-tolerance substrings above. A true result means the caller should
// treat the failed submission as a success (a peer got there first); a
// false result means the revert is genuine and the dispute must abort.
func classifyRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, substr := range raceSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
