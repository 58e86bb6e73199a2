package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/org/authvault/internal/totp"
	"github.com/org/authvault/pkg/models"
)

var (
	outputFormat string // "table", "json", "raw"
	outputField  string // for --field=key
)

// printResult outputs a single record in the chosen format.
func printResult(w io.Writer, data map[string]any) {
	switch outputFormat {
	case "json":
		printJSON(w, data)
	case "raw":
		if outputField != "" {
			if v, ok := data[outputField]; ok {
				fmt.Fprintln(w, v)
			}
			return
		}
		for _, k := range sortedKeys(data) {
			fmt.Fprintf(w, "%s=%v\n", k, data[k])
		}
	default: // table
		printTable(w, data)
	}
}

// printRows outputs a list of records. columns picks and orders the fields
// shown in table mode; json and raw modes use the records as they are.
func printRows(w io.Writer, columns []string, rows []map[string]any) {
	switch outputFormat {
	case "json":
		printJSON(w, rows)
	case "raw":
		for _, row := range rows {
			if outputField != "" {
				fmt.Fprintln(w, row[outputField])
				continue
			}
			vals := make([]string, len(columns))
			for i, c := range columns {
				vals[i] = fmt.Sprint(row[c])
			}
			fmt.Fprintln(w, strings.Join(vals, "\t"))
		}
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		header := make([]string, len(columns))
		for i, c := range columns {
			header[i] = strings.ToUpper(c)
		}
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		for _, row := range rows {
			vals := make([]string, len(columns))
			for i, c := range columns {
				vals[i] = fmt.Sprint(row[c])
			}
			fmt.Fprintln(tw, strings.Join(vals, "\t"))
		}
		tw.Flush()
	}
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck
}

func printTable(w io.Writer, data map[string]any) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range sortedKeys(data) {
		fmt.Fprintf(tw, "%s\t%v\n", k, data[k])
	}
	tw.Flush()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printError(w io.Writer, msg string) {
	fmt.Fprintf(w, "Error: %s\n", msg)
}

// printSuccess writes a confirmation line in table mode only, so json and raw
// output stay machine readable.
func printSuccess(w io.Writer, msg string) {
	if outputFormat != "table" {
		return
	}
	fmt.Fprintln(w, msg)
}

// accountRecord is the printable form of an account. The secret is only
// included when reveal is set.
func accountRecord(a models.Account, reveal bool) map[string]any {
	rec := map[string]any{
		"id":         a.ID,
		"name":       a.Name,
		"note":       a.Note,
		"created_at": formatTime(a.CreatedAt),
		"updated_at": formatTime(a.UpdatedAt),
	}
	if reveal {
		rec["secret"] = a.Secret
	}
	return rec
}

func accountRecords(accounts []models.Account) []map[string]any {
	rows := make([]map[string]any, len(accounts))
	for i, a := range accounts {
		rows[i] = accountRecord(a, false)
	}
	return rows
}

// codeMarker stands in for the code of an account whose secret cannot be used.
const codeMarker = "ERROR"

func codeRecord(r totp.Result) map[string]any {
	rec := map[string]any{
		"id":                r.AccountID,
		"name":              r.Name,
		"code":              r.Code,
		"remaining_seconds": r.RemainingSeconds,
		"period":            r.Period,
	}
	if r.Err != nil {
		rec["code"] = codeMarker
		rec["error"] = r.Err.Error()
	}
	return rec
}

func formatTime(ts models.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(time.DateTime)
}
