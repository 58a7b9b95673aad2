package battle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	early := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	late := early.Add(30 * time.Second)

	cases := []struct {
		name        string
		submissions map[Role]Submission
		verdicts    map[Role]Verdict
		wantWinner  Role
		wantReason  string
		wantDecided bool
	}{
		{
			name:        "no submissions is a draw",
			submissions: map[Role]Submission{},
			wantReason:  "no submissions",
		},
		{
			name: "missing submission loses regardless of verdicts",
			submissions: map[Role]Submission{
				RoleGuest: {Code: "x", At: early},
			},
			verdicts:    map[Role]Verdict{RoleGuest: VerdictIncorrect, RoleHost: VerdictNotSubmitted},
			wantWinner:  RoleGuest,
			wantReason:  "opponent did not submit",
			wantDecided: true,
		},
		{
			name: "verdict beats timestamp",
			submissions: map[Role]Submission{
				RoleHost:  {Code: "a", At: late},
				RoleGuest: {Code: "b", At: early},
			},
			verdicts:    map[Role]Verdict{RoleHost: VerdictCorrect, RoleGuest: VerdictIncorrect},
			wantWinner:  RoleHost,
			wantReason:  "only correct solution",
			wantDecided: true,
		},
		{
			name: "judge error counts as incorrect",
			submissions: map[Role]Submission{
				RoleHost:  {Code: "a", At: late},
				RoleGuest: {Code: "b", At: early},
			},
			verdicts:    map[Role]Verdict{RoleHost: VerdictJudgeError, RoleGuest: VerdictCorrect},
			wantWinner:  RoleGuest,
			wantReason:  "only correct solution",
			wantDecided: true,
		},
		{
			name: "both correct goes to the faster submission",
			submissions: map[Role]Submission{
				RoleHost:  {Code: "a", At: late},
				RoleGuest: {Code: "b", At: early},
			},
			verdicts:    map[Role]Verdict{RoleHost: VerdictCorrect, RoleGuest: VerdictCorrect},
			wantWinner:  RoleGuest,
			wantReason:  "faster submission",
			wantDecided: true,
		},
		{
			name: "both incorrect goes to the faster submission",
			submissions: map[Role]Submission{
				RoleHost:  {Code: "a", At: early},
				RoleGuest: {Code: "b", At: late},
			},
			verdicts:    map[Role]Verdict{RoleHost: VerdictIncorrect, RoleGuest: VerdictIncorrect},
			wantWinner:  RoleHost,
			wantReason:  "faster submission",
			wantDecided: true,
		},
		{
			name: "identical timestamps and verdicts is a draw",
			submissions: map[Role]Submission{
				RoleHost:  {Code: "a", At: early},
				RoleGuest: {Code: "b", At: early},
			},
			verdicts:   map[Role]Verdict{RoleHost: VerdictCorrect, RoleGuest: VerdictCorrect},
			wantReason: "dead heat",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Run twice: the decision must be deterministic for the same inputs.
			for i := 0; i < 2; i++ {
				winner, reason, decided := Decide(tc.submissions, tc.verdicts)
				require.Equal(t, tc.wantDecided, decided)
				require.Equal(t, tc.wantReason, reason)
				if tc.wantDecided {
					require.Equal(t, tc.wantWinner, winner)
				}
			}
		})
	}
}
