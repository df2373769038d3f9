package errors

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForCLI renders err for the terminal:
//
//	Error: <message>
//	  <detail>: <value>
//	  Hint: <suggestion>
//	  Code: <code>
//
// Errors that are not NextorErrors are reported as ERR_501_INTERNAL.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	ne, ok := As(err)
	if !ok {
		ne = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ne.Message)
	for _, k := range sortedKeys(ne.Details) {
		fmt.Fprintf(&sb, "  %s: %s\n", k, ne.Details[k])
	}
	if ne.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ne.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ne.Code)
	return sb.String()
}

// FormatForLog returns err as a slog group value. Use it with slog.Any.
func FormatForLog(err error) slog.Value {
	if err == nil {
		return slog.Value{}
	}
	ne, ok := As(err)
	if !ok {
		return slog.GroupValue(slog.String("message", err.Error()))
	}

	attrs := []slog.Attr{
		slog.String("code", ne.Code),
		slog.String("message", ne.Message),
		slog.String("category", string(ne.Category)),
		slog.String("severity", string(ne.Severity)),
		slog.Bool("retryable", ne.Retryable),
	}
	if ne.Cause != nil {
		attrs = append(attrs, slog.String("cause", ne.Cause.Error()))
	}
	for _, k := range sortedKeys(ne.Details) {
		attrs = append(attrs, slog.String(k, ne.Details[k]))
	}
	return slog.GroupValue(attrs...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
