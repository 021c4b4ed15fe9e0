package main

import (
	"bytes"
	"comparison-controller/internal/canvas"
	"comparison-controller/internal/compare"
	"comparison-controller/internal/pipeline"
	"comparison-controller/internal/raster"
	"comparison-controller/internal/source"
	"comparison-controller/internal/storage"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
)

type part struct {
	name     string
	filename string
	data     []byte
}

func encodeFill(t *testing.T, c color.NRGBA) []byte {
	t.Helper()

	data, err := raster.Encode(raster.Fill(4, 4, c))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func multipartRequest(t *testing.T, parts []part) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, p := range parts {
		if p.filename == "" {
			if err := writer.WriteField(p.name, string(p.data)); err != nil {
				t.Fatal(err)
			}
			continue
		}
		w, err := writer.CreateFormFile(p.name, p.filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(p.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	request := httptest.NewRequest(http.MethodPost, "/compare", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func TestServer_HandleCompare(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()
	s, err := storage.NewFileStorage(context.Background(), storage.FileConfig{Directory: directory})
	if err != nil {
		t.Fatal(err)
	}

	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}

	stored, err := s.Put(context.Background(), "inputs/blue.png", encodeFill(t, blue))
	if err != nil {
		t.Fatal(err)
	}
	private := filepath.Join(filepath.Dir(directory), "private.png")
	if err := os.WriteFile(private, encodeFill(t, red), 0644); err != nil {
		t.Fatal(err)
	}

	server := newServer(nil, &pipeline.Pipeline{
		Resolver:   source.Resolver{Storage: s},
		Comparator: compare.NewComparator(logr.Discard(), canvas.DefaultSize),
	})

	type want struct {
		status        int
		mismatchCount int64
		width         int
		height        int
	}

	tests := []struct {
		name  string
		parts []part
		want  want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]part{
				{name: "baseline", filename: "baseline.png", data: encodeFill(t, red)},
				{name: "reference", filename: "reference.png", data: encodeFill(t, blue)},
			},
			want{status: http.StatusOK, mismatchCount: 16, width: 4, height: 4},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]part{
				{name: "baseline", filename: "baseline.png", data: encodeFill(t, blue)},
				{name: "reference", filename: "reference.png", data: encodeFill(t, blue)},
				{name: "format", data: []byte("rectangle")},
			},
			want{status: http.StatusOK, width: 4, height: 4},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]part{
				{name: "baseline", filename: "baseline.png", data: encodeFill(t, blue)},
				{name: "reference", data: []byte(stored)},
			},
			want{status: http.StatusBadRequest},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]part{
				{name: "baseline", data: []byte(private)},
				{name: "reference", data: []byte("file://" + filepath.ToSlash(private))},
			},
			want{status: http.StatusBadRequest},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]part{
				{name: "reference", filename: "reference.png", data: encodeFill(t, blue)},
			},
			want{status: http.StatusBadRequest},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]part{
				{name: "baseline", filename: "baseline.png", data: encodeFill(t, red)},
				{name: "reference", filename: "reference.png", data: encodeFill(t, blue)},
				{name: "opacity", data: []byte("2")},
			},
			want{status: http.StatusBadRequest},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]part{
				{name: "baseline", filename: "baseline.png", data: encodeFill(t, red)},
				{name: "reference", filename: "reference.png", data: encodeFill(t, blue)},
				{name: "format", data: []byte("dom")},
			},
			want{status: http.StatusBadRequest},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]part{
				{name: "baseline", filename: "baseline.png", data: []byte("not an image")},
				{name: "reference", filename: "reference.png", data: encodeFill(t, blue)},
			},
			want{status: http.StatusBadRequest},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]part{
				{name: "baseline", filename: "baseline.png", data: encodeFill(t, red)},
				{name: "reference", data: []byte("../private.png")},
			},
			want{status: http.StatusBadRequest},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			[]part{
				{name: "baseline", filename: "baseline.png", data: encodeFill(t, red)},
				{name: "reference", data: []byte("http://localhost:3000/")},
			},
			want{status: http.StatusBadRequest},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			recorder := httptest.NewRecorder()
			server.handleCompare(recorder, multipartRequest(t, tt.parts))

			got := want{status: recorder.Code}
			if recorder.Code == http.StatusOK {
				var response CompareResponse
				if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
					t.Fatal(err)
				}
				got.mismatchCount = response.MismatchCount
				got.width = response.Width
				got.height = response.Height

				for _, data := range []string{response.OverlayData, response.DiffData} {
					decoded, err := base64.StdEncoding.DecodeString(data)
					if err != nil {
						t.Fatal(err)
					}
					if _, err := raster.Decode(decoded); err != nil {
						t.Errorf("output is not an image: %v", err)
					}
				}
			} else {
				var response ErrorResponse
				if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
					t.Fatal(err)
				}
				if response.Error == "" {
					t.Errorf("error message is empty")
				}
			}

			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(want{})); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestStatusOf(t *testing.T) {
	t.Parallel()

	if diff := cmp.Diff(http.StatusInternalServerError, statusOf(fmt.Errorf("boom"))); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
