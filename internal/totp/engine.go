// Package totp computes RFC 6238 time-based one-time passwords with a fixed
// HMAC-SHA1, 6-digit, 30-second configuration.
package totp

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/org/authvault/internal/secret"
	"github.com/org/authvault/pkg/models"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const (
	DefaultDigits    = 6      // code length
	DefaultPeriod    = 30     // step length in seconds
	DefaultAlgorithm = "SHA1" // HMAC hash
)

// ErrInvalidTime is returned for instants before the Unix epoch.
var ErrInvalidTime = errors.New("time before unix epoch")

// Code is a generated one-time password and its validity window.
type Code struct {
	Code             string `json:"code"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Period           int    `json:"period"`
}

// Result is one entry of a batch generation. Err marks a failed entry.
type Result struct {
	AccountID        string `json:"id"`
	Name             string `json:"name"`
	Code             string `json:"code"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Period           int    `json:"period"`
	Err              error  `json:"-"`
}

// Engine generates and verifies codes. The zero value is not usable; use NewEngine.
type Engine struct {
	period int64
	opts   hotp.ValidateOpts
}

// NewEngine returns an engine with the fixed SHA1/6/30 configuration.
func NewEngine() *Engine {
	return &Engine{
		period: DefaultPeriod,
		opts: hotp.ValidateOpts{
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		},
	}
}

// Period returns the step length in seconds.
func (e *Engine) Period() int {
	return int(e.period)
}

// Step returns floor(unix(now) / period).
func (e *Engine) Step(now time.Time) (uint64, error) {
	unix := now.Unix()
	if unix < 0 {
		return 0, ErrInvalidTime
	}
	return uint64(unix / e.period), nil
}

// Remaining returns period - unix(now) mod period, always in [1, period].
func (e *Engine) Remaining(now time.Time) int {
	rem := now.Unix() % e.period
	if rem < 0 {
		rem += e.period
	}
	return int(e.period - rem)
}

// RemainingFraction returns the unexpired share of the current step in (0, 1].
func (e *Engine) RemainingFraction(now time.Time) float64 {
	elapsed := float64(now.UnixNano()%(e.period*int64(time.Second))) / float64(time.Second)
	if elapsed < 0 {
		elapsed += float64(e.period)
	}
	return (float64(e.period) - elapsed) / float64(e.period)
}

// Generate computes the code for the step containing now. It is pure: the
// same secret and second always yield the same result.
func (e *Engine) Generate(s string, now time.Time) (Code, error) {
	code, err := e.generate(s, now)
	if err != nil {
		codeErrors.Inc()
		return Code{}, err
	}
	codesGenerated.Inc()
	return Code{
		Code:             code,
		RemainingSeconds: e.Remaining(now),
		Period:           int(e.period),
	}, nil
}

// Verify reports whether candidate matches the code of any step in
// [current-window, current+window]. Candidates that are not exactly six
// ASCII digits are rejected before any code is computed.
func (e *Engine) Verify(s, candidate string, window int, now time.Time) (bool, error) {
	if !wellFormed(candidate) {
		return false, nil
	}
	canonical, err := secret.Normalize(s)
	if err != nil {
		return false, err
	}
	step, err := e.Step(now)
	if err != nil {
		return false, err
	}
	if window < 0 {
		window = 0
	}

	matched := false
	for i := -window; i <= window; i++ {
		if i < 0 && uint64(-i) > step {
			continue
		}
		code, err := e.codeAt(canonical, uint64(int64(step)+int64(i)))
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(code), []byte(candidate)) == 1 {
			matched = true
		}
	}
	return matched, nil
}

// BatchGenerate computes a code for every account. A bad secret marks that
// entry with Err and leaves the others unaffected.
func (e *Engine) BatchGenerate(accounts []models.Account, now time.Time) []Result {
	results := make([]Result, 0, len(accounts))
	for _, a := range accounts {
		r := Result{AccountID: a.ID, Name: a.Name, Period: int(e.period)}
		if c, err := e.Generate(a.Secret, now); err != nil {
			r.Err = err
		} else {
			r.Code = c.Code
			r.RemainingSeconds = c.RemainingSeconds
		}
		results = append(results, r)
	}
	return results
}

func (e *Engine) generate(s string, now time.Time) (string, error) {
	canonical, err := secret.Normalize(s)
	if err != nil {
		return "", err
	}
	step, err := e.Step(now)
	if err != nil {
		return "", err
	}
	return e.codeAt(canonical, step)
}

func (e *Engine) codeAt(canonical string, step uint64) (string, error) {
	code, err := hotp.GenerateCodeCustom(canonical, step, e.opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", secret.ErrInvalidSecret, err)
	}
	return code, nil
}

func wellFormed(candidate string) bool {
	if len(candidate) != DefaultDigits {
		return false
	}
	for i := 0; i < len(candidate); i++ {
		if candidate[i] < '0' || candidate[i] > '9' {
			return false
		}
	}
	return true
}
