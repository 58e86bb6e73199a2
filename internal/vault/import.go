package vault

import (
	"fmt"
	"strings"

	"github.com/org/authvault/internal/otpauth"
	"github.com/org/authvault/internal/secret"
	"github.com/org/authvault/pkg/models"
)

// DefaultIssuer labels provisioning URIs when no issuer is given.
const DefaultIssuer = "AuthVault"

// ImportURI adds an account from an otpauth:// provisioning URI. The account
// is named after the URI label, with " (1)", " (2)", ... appended while the
// name is taken, and the issuer becomes its note. Only keys the code engine
// can serve (TOTP, SHA1, 6 digits, 30 seconds) are accepted.
func (s *Store) ImportURI(uri string) (models.Account, error) {
	acct, err := s.importURI(uri)
	s.record("import-uri", acct.ID, acct.Name, err)
	return acct, err
}

func (s *Store) importURI(uri string) (models.Account, error) {
	k, err := otpauth.Parse(uri)
	if err != nil {
		return models.Account{}, err
	}
	if !k.IsDefaultTOTP() {
		return models.Account{}, fmt.Errorf("%w: unsupported key %s/%s/%d digits/%ds",
			otpauth.ErrInvalidURI, k.Type, k.Algorithm, k.Digits, k.Period)
	}

	if strings.TrimSpace(k.Account) == "" {
		return models.Account{}, fmt.Errorf("%w: missing account name", otpauth.ErrInvalidURI)
	}
	base, err := validateName(k.Account)
	if err != nil {
		return models.Account{}, err
	}
	canonical, err := secret.Normalize(k.Secret)
	if err != nil {
		return models.Account{}, err
	}

	var acct models.Account
	err = s.mutate(func(v *models.Vault) error {
		name := base
		for n := 1; v.HasName(name, ""); n++ {
			name = fmt.Sprintf("%s (%d)", base, n)
		}
		if name, err = validateName(name); err != nil {
			return err
		}
		acct = s.insert(v, name, canonical, k.Issuer)
		return nil
	})
	if err != nil {
		return models.Account{Name: base}, err
	}
	return acct, nil
}

// ProvisioningURI builds an otpauth:// URI for an account, suitable for
// rendering as a QR code. issuer defaults to DefaultIssuer.
func (s *Store) ProvisioningURI(id, issuer string) (string, error) {
	acct, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if issuer = strings.TrimSpace(issuer); issuer == "" {
		issuer = DefaultIssuer
	}
	return otpauth.Format(otpauth.Key{
		Type:    "TOTP",
		Secret:  strings.TrimRight(acct.Secret, "="),
		Issuer:  issuer,
		Account: acct.Name,
	}), nil
}
