package main

import (
	"comparison-controller/internal/canvas"
	"comparison-controller/internal/compare"
	"comparison-controller/internal/env"
	"comparison-controller/internal/errs"
	"comparison-controller/internal/myhttp"
	"comparison-controller/internal/pipeline"
	"comparison-controller/internal/source"
	"comparison-controller/internal/telemetry"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strconv"

	"github.com/go-logr/logr"
	pyroscopepprof "github.com/grafana/pyroscope-go/http/pprof"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/xerrors"
)

const maxUploadSize = 32 << 20

type Server struct {
	*myhttp.Server
	resolver   source.Resolver
	comparator *compare.Comparator
}

// newServer resolves form references to pages and designs only. Stored
// references would read from the server's own storage.
func newServer(base *myhttp.Server, p *pipeline.Pipeline) *Server {
	return &Server{
		Server: base,
		resolver: source.Resolver{
			Capturer: p.Resolver.Capturer,
			Exporter: p.Resolver.Exporter,
		},
		comparator: p.Comparator,
	}
}

var Debug = false

func (s *Server) Start(ctx context.Context) error {
	t, err := telemetry.Start(ctx, "compare-server", Debug)
	if err != nil {
		return err
	}

	mux := myhttp.NewServerMux(t.Logger, t.HTTPRequestsDurationMicroSeconds)

	mux.HandleFuncWithMiddleware("POST /compare", s.handleCompare)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(http.StatusText(http.StatusOK)))
	})

	mux.Handle("GET /metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}),
	))

	if Debug {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
		mux.HandleFunc("GET /debug/pprof/profile", pyroscopepprof.Profile)
	}

	if err := s.Serve(ctx, mux, t.Logger); err != nil {
		return err
	}

	return t.Shutdown(ctx)
}

type CompareResponse struct {
	OverlayData   string  `json:"overlayData"`
	DiffData      string  `json:"diffData"`
	MismatchCount int64   `json:"mismatchCount"`
	DiffAmount    float64 `json:"diffAmount"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Source string `json:"source,omitempty"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, xerrors.Errorf("failed to parse form: %w", err))
		return
	}

	opts, err := parseOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	baseline, err := s.formSource(r, "baseline")
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	reference, err := s.formSource(r, "reference")
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	result, err := s.comparator.Compare(r.Context(), baseline, reference, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		writeError(w, statusOf(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(CompareResponse{
		OverlayData:   base64.StdEncoding.EncodeToString(result.Overlay),
		DiffData:      base64.StdEncoding.EncodeToString(result.Diff),
		MismatchCount: result.MismatchCount,
		DiffAmount:    result.DiffAmount,
		Width:         result.Width,
		Height:        result.Height,
	}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// formSource prefers an uploaded file and falls back to a reference string in
// the form field of the same name.
func (s *Server) formSource(r *http.Request, name string) (source.Source, error) {
	file, header, err := r.FormFile(name)
	if err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, xerrors.Errorf("failed to read %s: %w", name, err)
		}
		return source.NewEncoded(header.Filename, data), nil
	}
	if !errors.Is(err, http.ErrMissingFile) {
		return nil, errs.New(errs.ErrInvalidReference, name, err)
	}

	resolver := s.resolver
	resolver.MaskSelectors = nil
	resolver.Headers = nil
	return resolver.Resolve(r.FormValue(name))
}

func parseOptions(r *http.Request) (compare.Options, error) {
	opts := compare.DefaultOptions()

	var err error
	if opts.Blend.Opacity, err = formValue(r, "opacity", opts.Blend.Opacity); err != nil {
		return opts, err
	}
	if opts.Diff.Threshold, err = formValue(r, "threshold", opts.Diff.Threshold); err != nil {
		return opts, err
	}
	if opts.Diff.IncludeAA, err = formValue(r, "includeAA", opts.Diff.IncludeAA); err != nil {
		return opts, err
	}
	var size canvas.Size
	if size.Width, err = formValue(r, "width", 0); err != nil {
		return opts, err
	}
	if size.Height, err = formValue(r, "height", 0); err != nil {
		return opts, err
	}
	opts.Size = size
	if opts.Format, err = compare.ParseDiffFormat(r.FormValue("format")); err != nil {
		return opts, err
	}

	return opts, opts.Validate()
}

func formValue[T int | float64 | bool](r *http.Request, key string, defaultValue T) (T, error) {
	value := r.FormValue(key)
	if value == "" {
		return defaultValue, nil
	}

	var parsed any
	var err error
	switch any(defaultValue).(type) {
	case int:
		parsed, err = strconv.Atoi(value)
	case float64:
		parsed, err = strconv.ParseFloat(value, 64)
	case bool:
		parsed, err = strconv.ParseBool(value)
	}
	if err != nil {
		return defaultValue, xerrors.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed.(T), nil
}

func statusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrInvalidReference, errs.ErrEncoding:
		return http.StatusBadRequest
	case errs.ErrAuthenticationFailed:
		return http.StatusUnauthorized
	case errs.ErrExportUnavailable:
		return http.StatusNotFound
	case errs.ErrDimensionMismatch:
		return http.StatusUnprocessableEntity
	case errs.ErrCaptureFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	response := ErrorResponse{
		Error:  err.Error(),
		Source: errs.SourceOf(err),
	}
	if status == http.StatusInternalServerError {
		slog.Error("Failed to compare", "error", err)
		response.Error = http.StatusText(status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func main() {
	ctx := context.Background()

	logger, err := telemetry.NewLogger(Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	config := pipeline.ConfigFromEnv()
	if env.OrDefault("CHROME_DEVTOOLS_PROTOCOL_URL", "") == "" {
		// page references need a shared browser
		config.Playwright = nil
	}

	p, err := pipeline.New(ctx, config, logr.FromSlogHandler(logger.Handler()))
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}
	defer func() {
		_ = p.Close()
	}()

	server := newServer(myhttp.NewServerFromEnv("0.0.0.0:8383"), p)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
