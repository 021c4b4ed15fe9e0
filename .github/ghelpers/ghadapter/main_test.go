package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()

	var result map[string]any
	if err := json.Unmarshal([]byte(s), &result); err != nil {
		t.Fatal(err)
	}
	return result
}

func TestWriteOutputs(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	result := decode(t, `{"overlayURL":"s3://bucket/overlay.png","mismatchCount":12,"diffAmount":0.5,"nested":{"a":1}}`)
	if err := writeOutputs(&buffer, result); err != nil {
		t.Fatal(err)
	}

	want := "diffAmount=0.5\nmismatchCount=12\noverlayURL=s3://bucket/overlay.png\n"
	if diff := cmp.Diff(want, buffer.String()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestCheckMismatchCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
		limit  int64
		want   bool
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			`{"mismatchCount":10}`,
			10,
			false,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			`{"mismatchCount":11}`,
			10,
			true,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			`{"diffAmount":0}`,
			10,
			true,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			`{"mismatchCount":0,"error":"capture failed (http://localhost:3000/): timeout"}`,
			10,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := checkMismatchCount(decode(t, tt.output), tt.limit)
			if diff := cmp.Diff(tt.want, err != nil); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}
