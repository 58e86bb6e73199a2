package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, a := range []struct{ name, note string }{
		{"GitHub", "work"},
		{"Google", "personal"},
		{"AWS root", "Work account"},
	} {
		_, err := s.Add(a.name, demoSecret, a.note)
		require.NoError(t, err)
	}

	tests := map[string][]string{
		"":       {"GitHub", "Google", "AWS root"},
		"  ":     {"GitHub", "Google", "AWS root"},
		"git":    {"GitHub"},
		"WORK":   {"GitHub", "AWS root"},
		" goo ":  {"Google"},
		"gitlab": {},
	}
	for keyword, want := range tests {
		got, err := s.Search(keyword)
		require.NoError(t, err, keyword)
		assert.Equal(t, want, names(got), keyword)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)

	_, err = s.Add("a", demoSecret, "note")
	require.NoError(t, err)
	_, err = s.Add("b", demoSecret, "   ")
	require.NoError(t, err)
	_, err = s.Add("c", demoSecret, "")
	require.NoError(t, err)

	st, err = s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.WithNotes)
	require.NotNil(t, st.Oldest)
	require.NotNil(t, st.Newest)
	assert.True(t, st.Oldest.Before(*st.Newest))
}
