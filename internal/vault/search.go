package vault

import (
	"strings"
	"time"

	"github.com/org/authvault/pkg/models"
)

// Stats summarizes the vault contents.
type Stats struct {
	Total     int        `json:"total_accounts"`
	WithNotes int        `json:"accounts_with_notes"`
	Oldest    *time.Time `json:"oldest_created_at,omitempty"`
	Newest    *time.Time `json:"newest_created_at,omitempty"`
}

// Search returns accounts whose name or note contains keyword, ignoring case.
// An empty keyword matches every account.
func (s *Store) Search(keyword string) ([]models.Account, error) {
	accounts, err := s.List()
	if err != nil {
		return nil, err
	}
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return accounts, nil
	}

	matches := make([]models.Account, 0, len(accounts))
	for _, a := range accounts {
		if strings.Contains(strings.ToLower(a.Name), keyword) ||
			strings.Contains(strings.ToLower(a.Note), keyword) {
			matches = append(matches, a)
		}
	}
	return matches, nil
}

// Stats counts accounts and reports the range of creation times.
func (s *Store) Stats() (Stats, error) {
	accounts, err := s.List()
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Total: len(accounts)}
	for _, a := range accounts {
		if strings.TrimSpace(a.Note) != "" {
			st.WithNotes++
		}
		if a.CreatedAt.IsZero() {
			continue
		}
		created := a.CreatedAt.Time
		if st.Oldest == nil || created.Before(*st.Oldest) {
			st.Oldest = &created
		}
		if st.Newest == nil || created.After(*st.Newest) {
			st.Newest = &created
		}
	}
	return st, nil
}
