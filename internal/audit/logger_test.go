package audit

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/org/authvault/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerRecord(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	l.Record(&models.AuditEntry{Operation: "add", AccountID: "id-1", Name: "GitHub", Status: models.AuditSuccess})
	l.Record(&models.AuditEntry{Operation: "delete", AccountID: "id-2", Status: models.AuditFailure, Error: "account not found"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "add", first["operation"])
	assert.Equal(t, "id-1", first["account_id"])
	assert.Equal(t, "GitHub", first["name"])
	assert.Equal(t, "success", first["status"])
	assert.NotContains(t, first, "error")
	assert.Contains(t, first["time"], "2024-01-02T03:04:05")

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "failure", second["status"])
	assert.Equal(t, "account not found", second["error"])
	assert.NotContains(t, second, "name")
}

func TestOpenFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")

	for i := 0; i < 2; i++ {
		l, err := OpenFile(path)
		require.NoError(t, err)
		l.Record(&models.AuditEntry{Operation: "list", Status: models.AuditSuccess})
		require.NoError(t, l.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Record(&models.AuditEntry{Operation: "noop"})
	})
}
