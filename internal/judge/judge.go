package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studyforge/battle-backend/internal/battle"
)

var ErrUnavailable = errors.New("judge unavailable")

// Gateway is the external judge contract: given the problem and each
// participant's submitted code, return a verdict per participant. Judging
// internals are opaque to this server.
type Gateway interface {
	Judge(ctx context.Context, problem battle.Problem, submissions map[battle.Role]battle.Submission) (map[battle.Role]battle.Verdict, error)
}

// Func adapts a plain function to a Gateway.
type Func func(ctx context.Context, problem battle.Problem, submissions map[battle.Role]battle.Submission) (map[battle.Role]battle.Verdict, error)

func (f Func) Judge(ctx context.Context, problem battle.Problem, submissions map[battle.Role]battle.Submission) (map[battle.Role]battle.Verdict, error) {
	return f(ctx, problem, submissions)
}

// Static is the stand-in used when no judge service is configured: any
// non-empty submission is CORRECT. Good enough for local play and tests.
type Static struct{}

func (Static) Judge(_ context.Context, _ battle.Problem, submissions map[battle.Role]battle.Submission) (map[battle.Role]battle.Verdict, error) {
	verdicts := map[battle.Role]battle.Verdict{
		battle.RoleHost:  battle.VerdictNotSubmitted,
		battle.RoleGuest: battle.VerdictNotSubmitted,
	}
	for role, sub := range submissions {
		if strings.TrimSpace(sub.Code) == "" {
			verdicts[role] = battle.VerdictIncorrect
			continue
		}
		verdicts[role] = battle.VerdictCorrect
	}
	return verdicts, nil
}

// HTTP posts the battle to an external judge service.
type HTTP struct {
	URL    string
	Client *http.Client
}

func NewHTTP(url string) *HTTP {
	return &HTTP{URL: url, Client: &http.Client{Timeout: 30 * time.Second}}
}

type httpRequest struct {
	Problem     battle.Problem    `json:"problem"`
	Submissions map[string]string `json:"submissions"`
}

type httpResponse struct {
	Verdicts map[string]string `json:"verdicts"`
}

func (h *HTTP) Judge(ctx context.Context, problem battle.Problem, submissions map[battle.Role]battle.Submission) (map[battle.Role]battle.Verdict, error) {
	body := httpRequest{Problem: problem, Submissions: map[string]string{}}
	for role, sub := range submissions {
		body.Submissions[string(role)] = sub.Code
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: bad response: %v", ErrUnavailable, err)
	}

	verdicts := map[battle.Role]battle.Verdict{}
	for role, v := range out.Verdicts {
		verdicts[battle.Role(role)] = battle.Verdict(v)
	}
	return verdicts, nil
}

// Retrying wraps a Gateway with bounded retries and linear backoff. After the
// attempts are exhausted the caller falls back to a draw verdict.
type Retrying struct {
	Inner    Gateway
	Attempts int
	Backoff  time.Duration
	Log      *zap.Logger
}

func (r *Retrying) Judge(ctx context.Context, problem battle.Problem, submissions map[battle.Role]battle.Submission) (map[battle.Role]battle.Verdict, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			r.Log.Warn("retrying judge call",
				zap.Int("attempt", i+1),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(r.Backoff * time.Duration(i)):
			}
		}

		verdicts, err := r.Inner.Judge(ctx, problem, submissions)
		if err == nil {
			return verdicts, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
