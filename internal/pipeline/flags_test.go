package pipeline

import (
	"comparison-controller/internal/canvas"
	"comparison-controller/internal/compare"
	"flag"
	"fmt"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRequestFlags_Request(t *testing.T) {
	type want struct {
		request Request
		err     bool
	}

	withOptions := func(f func(o *compare.Options)) compare.Options {
		o := compare.DefaultOptions()
		f(&o)
		return o
	}

	tests := []struct {
		name string
		args []string
		want want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]string{"http://localhost:3000/", "http://localhost:3001/"},
			want{
				request: Request{
					Baseline:  "http://localhost:3000/",
					Reference: "http://localhost:3001/",
					Options:   compare.DefaultOptions(),
				},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]string{
				"--width", "375", "--height", "812",
				"--opacity", "0.5", "--threshold", "0",
				"--include-aa", "--diff-format", "rectangle",
				"--mask-selectors", ".ad, #clock",
				"-H", "Authorization: Bearer token",
				"a.png", "b.png",
			},
			want{
				request: Request{
					Baseline:      "a.png",
					Reference:     "b.png",
					MaskSelectors: []string{".ad", "#clock"},
					Headers:       map[string]string{"Authorization": "Bearer token"},
					Options: withOptions(func(o *compare.Options) {
						o.Size = canvas.Size{Width: 375, Height: 812}
						o.Blend.Opacity = 0.5
						o.Diff.Threshold = 0
						o.Diff.IncludeAA = true
						o.Format = compare.DiffFormatRectangle
					}),
				},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]string{"only-one.png"},
			want{err: true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]string{"--diff-format", "dom", "a.png", "b.png"},
			want{err: true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]string{"--opacity", "2", "a.png", "b.png"},
			want{err: true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]string{"-H", "broken", "a.png", "b.png"},
			want{err: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f RequestFlags
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			f.Register(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatal(err)
			}

			request, err := f.Request(fs.Args())
			got := want{request: request, err: err != nil}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(want{})); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequestFlags_HeadersFromEnv(t *testing.T) {
	t.Setenv("CAPTURE_HEADERS", "Authorization: Bearer token\nX-Env: 1\n")

	var f RequestFlags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f.Register(fs)
	if err := fs.Parse([]string{"-H", "X-Env: 2", "a.png", "b.png"}); err != nil {
		t.Fatal(err)
	}

	request, err := f.Request(fs.Args())
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"Authorization": "Bearer token",
		"X-Env":         "2",
	}
	if diff := cmp.Diff(want, request.Headers); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
