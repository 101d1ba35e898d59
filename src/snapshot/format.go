package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const maxTextWidth = 100

// -----------------------------------------------------------------------------

// Print writes a human-readable listing of the snapshot, one line per field.
// Series show their period count and both ends; long text is truncated.
func Print(w io.Writer, s *Snapshot) {
	if s == nil || s.IsEmpty() {
		fmt.Fprintln(w, "No financial data available")
		return
	}

	rule := strings.Repeat("=", 50)
	fmt.Fprintf(w, "\n%s\nFinancial Data for %s\n%s\n", rule, s.Subject, rule)

	for _, f := range fields {
		label := titleCase(f.name)
		v := *f.ref(s)

		switch {
		case !v.IsSet():
			fmt.Fprintf(w, "%s: Not available\n", label)
		case v.IsSeries():
			series := v.Series()
			fmt.Fprintf(w, "%s:\n  Periods: %d\n", label, len(series))
			if len(series) > 0 {
				fmt.Fprintf(w, "  Most Recent: %s\n", series[0])
				fmt.Fprintf(w, "  Oldest: %s\n", series[len(series)-1])
			}
		default:
			fmt.Fprintf(w, "%s: %s\n", label, displayScalar(v))
		}
	}

	fmt.Fprintf(w, "%s\n\n", rule)
}

// -----------------------------------------------------------------------------

func displayScalar(v Value) string {
	var text string
	if err := json.Unmarshal(v.raw, &text); err != nil {
		return v.String()
	}
	if len([]rune(text)) > maxTextWidth {
		return string([]rune(text)[:maxTextWidth]) + "..."
	}
	return text
}

// -----------------------------------------------------------------------------

func titleCase(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
