package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampJSON(t *testing.T) {
	ts := NewTimestamp(time.Date(2024, 3, 4, 5, 6, 7, 890, time.FixedZone("X", 3600)))
	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-04T04:06:07.00000089Z"`, string(data))

	var back Timestamp
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, ts.Equal(back.Time))

	data, err = json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, `""`, string(data))
}

func TestTimestampLegacyLayouts(t *testing.T) {
	for _, in := range []string{
		`"2023-01-02T03:04:05.123456"`,
		`"2023-01-02 03:04:05.123456"`,
		`"2023-01-02T03:04:05"`,
	} {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(in), &ts), in)
		local := ts.In(time.Local)
		assert.Equal(t, 2023, local.Year(), in)
		assert.Equal(t, 3, local.Hour(), in)
		assert.Equal(t, time.UTC, ts.Location(), in)
	}
}

func TestTimestampRejects(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`12`), &ts))
	require.NoError(t, json.Unmarshal([]byte(`""`), &ts))
	assert.True(t, ts.IsZero())
}

func TestVaultHelpers(t *testing.T) {
	v := &Vault{Accounts: []Account{{ID: "a", Name: "GitHub"}, {ID: "b", Name: "GitLab"}}}

	assert.Equal(t, 1, v.Index("b"))
	assert.Equal(t, -1, v.Index("c"))
	assert.True(t, v.HasName("GitHub", ""))
	assert.False(t, v.HasName("GitHub", "a"))
	assert.False(t, v.HasName("github", ""))
}

func TestVaultDocumentShape(t *testing.T) {
	created := NewTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	v := Vault{Accounts: []Account{{ID: "1", Name: "n", Secret: "S", CreatedAt: created, UpdatedAt: created}}}
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"accounts":[{"id":"1","name":"n","secret":"S","note":"","created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z"}]}`,
		string(data))
}
