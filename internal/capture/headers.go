package capture

import (
	"strings"

	"golang.org/x/xerrors"
)

// HeaderFlag collects repeated -H "Name: value" flags.
type HeaderFlag []string

func (h *HeaderFlag) String() string {
	return strings.Join(*h, ", ")
}

func (h *HeaderFlag) Set(value string) error {
	*h = append(*h, value)
	return nil
}

// ParseHeaders turns "Name: value" lines into a header map. Later entries win.
func ParseHeaders(lines []string) (map[string]string, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, xerrors.Errorf("invalid header %q, expected \"Name: value\"", line)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// SplitSelectors splits a comma separated selector list, dropping blanks.
func SplitSelectors(s string) []string {
	var selectors []string
	for _, selector := range strings.Split(s, ",") {
		if selector = strings.TrimSpace(selector); selector != "" {
			selectors = append(selectors, selector)
		}
	}
	return selectors
}
