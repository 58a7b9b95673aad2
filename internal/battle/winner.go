package battle

// Verdict is the judge's per-participant outcome for a submission.
type Verdict string

const (
	VerdictCorrect      Verdict = "CORRECT"
	VerdictIncorrect    Verdict = "INCORRECT"
	VerdictNotSubmitted Verdict = "NOT_SUBMITTED"
	VerdictJudgeError   Verdict = "JUDGE_ERROR"
)

// Decide picks a winner from the recorded submissions and the judge's
// verdicts. Precedence: a missing submission loses outright; then verdict
// correctness; then the earlier submission timestamp. JUDGE_ERROR counts as
// incorrect here (the caller logs it separately). The result is total and
// deterministic: decided=false means a draw, with reason explaining why.
func Decide(submissions map[Role]Submission, verdicts map[Role]Verdict) (winner Role, reason string, decided bool) {
	hostSub, hostOK := submissions[RoleHost]
	guestSub, guestOK := submissions[RoleGuest]

	switch {
	case !hostOK && !guestOK:
		return "", "no submissions", false
	case hostOK && !guestOK:
		return RoleHost, "opponent did not submit", true
	case !hostOK && guestOK:
		return RoleGuest, "opponent did not submit", true
	}

	hostCorrect := verdicts[RoleHost] == VerdictCorrect
	guestCorrect := verdicts[RoleGuest] == VerdictCorrect
	switch {
	case hostCorrect && !guestCorrect:
		return RoleHost, "only correct solution", true
	case guestCorrect && !hostCorrect:
		return RoleGuest, "only correct solution", true
	}

	switch {
	case hostSub.At.Before(guestSub.At):
		return RoleHost, "faster submission", true
	case guestSub.At.Before(hostSub.At):
		return RoleGuest, "faster submission", true
	}
	return "", "dead heat", false
}
