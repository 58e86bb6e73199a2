// Package otpauth parses and builds otpauth:// provisioning URIs.
package otpauth

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	Scheme = "otpauth"

	DefaultAlgorithm = "SHA1"
	DefaultDigits    = 6
	DefaultPeriod    = 30
)

// ErrInvalidURI is returned for URIs that cannot be turned into a Key.
var ErrInvalidURI = errors.New("invalid otpauth uri")

// Key is the structured content of a provisioning URI.
type Key struct {
	Type      string `json:"type"`
	Secret    string `json:"secret"`
	Issuer    string `json:"issuer,omitempty"`
	Account   string `json:"account"`
	Algorithm string `json:"algorithm"`
	Digits    int    `json:"digits"`
	Period    int    `json:"period"`
}

// IsDefaultTOTP reports whether k describes a SHA1, 6-digit, 30-second TOTP key.
func (k Key) IsDefaultTOTP() bool {
	return k.Type == "TOTP" &&
		k.Algorithm == DefaultAlgorithm &&
		k.Digits == DefaultDigits &&
		k.Period == DefaultPeriod
}

// Parse decodes an otpauth://TYPE/LABEL?secret=... URI. Only the secret is
// required; algorithm, digits and period fall back to their defaults.
func Parse(raw string) (*Key, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, invalid("malformed uri: %v", err)
	}
	if !strings.EqualFold(u.Scheme, Scheme) {
		return nil, invalid("scheme %q is not %s", u.Scheme, Scheme)
	}
	if u.Host == "" {
		return nil, invalid("missing type")
	}

	q := u.Query()
	k := &Key{
		Type:      strings.ToUpper(u.Host),
		Secret:    strings.ToUpper(q.Get("secret")),
		Algorithm: DefaultAlgorithm,
		Digits:    DefaultDigits,
		Period:    DefaultPeriod,
	}
	if k.Secret == "" {
		return nil, invalid("missing secret")
	}

	// u.Path is already percent-decoded.
	label := strings.TrimPrefix(u.Path, "/")
	if issuer, account, ok := strings.Cut(label, ":"); ok {
		k.Issuer = strings.TrimSpace(issuer)
		k.Account = strings.TrimSpace(account)
	} else {
		k.Account = strings.TrimSpace(label)
	}
	if issuer := q.Get("issuer"); issuer != "" {
		k.Issuer = issuer
	}

	if alg := q.Get("algorithm"); alg != "" {
		k.Algorithm = strings.ToUpper(alg)
	}
	if k.Digits, err = intParam(q, "digits", DefaultDigits); err != nil {
		return nil, err
	}
	if k.Period, err = intParam(q, "period", DefaultPeriod); err != nil {
		return nil, err
	}
	return k, nil
}

// Format builds a provisioning URI for k. Empty fields take their defaults.
func Format(k Key) string {
	typ := strings.ToLower(k.Type)
	if typ == "" {
		typ = "totp"
	}
	if k.Algorithm == "" {
		k.Algorithm = DefaultAlgorithm
	}
	if k.Digits == 0 {
		k.Digits = DefaultDigits
	}
	if k.Period == 0 {
		k.Period = DefaultPeriod
	}

	label := url.PathEscape(k.Account)
	if k.Issuer != "" {
		label = fmt.Sprintf("%s:%s", url.PathEscape(k.Issuer), label)
	}

	query := url.Values{}
	query.Set("secret", k.Secret)
	if k.Issuer != "" {
		query.Set("issuer", k.Issuer)
	}
	query.Set("algorithm", k.Algorithm)
	query.Set("digits", strconv.Itoa(k.Digits))
	query.Set("period", strconv.Itoa(k.Period))

	return fmt.Sprintf("%s://%s/%s?%s", Scheme, typ, label, query.Encode())
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalid("%s %q is not a number", name, v)
	}
	if n <= 0 {
		return 0, invalid("%s must be positive, got %d", name, n)
	}
	return n, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidURI, fmt.Sprintf(format, args...))
}
