package capture

import (
	"flag"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()

		got, err := ParseHeaders(nil)
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("got %v, want nil", got)
		}
	})

	t.Run("TrimsAndOverrides", func(t *testing.T) {
		t.Parallel()

		got, err := ParseHeaders([]string{
			"Authorization: Bearer token",
			"Accept:text/html",
			"X-Trace: a:b",
			"Accept: image/png",
		})
		if err != nil {
			t.Fatal(err)
		}
		want := map[string]string{
			"Authorization": "Bearer token",
			"Accept":        "image/png",
			"X-Trace":       "a:b",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		t.Parallel()

		for _, line := range []string{"no-colon", ": value", "   : value"} {
			if _, err := ParseHeaders([]string{line}); err == nil {
				t.Errorf("ParseHeaders(%q) succeeded, want error", line)
			}
		}
	})
}

func TestHeaderFlag(t *testing.T) {
	t.Parallel()

	var headers HeaderFlag
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&headers, "H", "header")
	if err := fs.Parse([]string{"-H", "A: 1", "-H", "B: 2", "target"}); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(HeaderFlag{"A: 1", "B: 2"}, headers); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"target"}, fs.Args()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestSplitSelectors(t *testing.T) {
	t.Parallel()

	got := SplitSelectors(" .ad , #clock,,  ")
	if diff := cmp.Diff([]string{".ad", "#clock"}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if got := SplitSelectors(""); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}
