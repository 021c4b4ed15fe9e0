package runnable

import (
	"comparison-controller/internal/myhttp"
	"comparison-controller/internal/routes"
	"comparison-controller/internal/storage"
	"comparison-controller/internal/telemetry"
	"context"
	"net/http"
	"net/http/pprof"

	pyroscopepprof "github.com/grafana/pyroscope-go/http/pprof"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/xerrors"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// Server exposes the artifact API next to the controller manager. Workers of
// distributed runs report back through it.
type Server struct {
	*myhttp.Server
	kubeConfig    *rest.Config
	storageClient storage.Storage
}

func NewServer(kubeConfig *rest.Config, storageClient storage.Storage) *Server {
	return &Server{
		Server:        myhttp.NewServerFromEnv("0.0.0.0:8082"),
		kubeConfig:    kubeConfig,
		storageClient: storageClient,
	}
}

var Debug = false

func (s *Server) Start(ctx context.Context) error {
	t, err := telemetry.Start(ctx, "comparison-controller", Debug)
	if err != nil {
		return err
	}

	clientset, err := kubernetes.NewForConfig(s.kubeConfig)
	if err != nil {
		return xerrors.Errorf("failed to create kubernetes clientset: %w", err)
	}
	dynamicClient, err := dynamic.NewForConfig(s.kubeConfig)
	if err != nil {
		return xerrors.Errorf("failed to create kubernetes dynamic client: %w", err)
	}

	mux := myhttp.NewServerMux(t.Logger, t.HTTPRequestsDurationMicroSeconds)

	mux.HandleFuncWithMiddleware("GET /api/{namespace}/{group}/{version}/{kind}/{name}/artifacts", routes.ListArtifacts(dynamicClient, s.storageClient))
	mux.HandleFuncWithMiddleware("PATCH /api/{namespace}/{group}/{version}/{kind}/{name}/artifacts", routes.UpdateArtifacts(dynamicClient))
	mux.HandleFuncWithMiddleware("GET /api/{$}", routes.ListNamespaces(clientset))

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

	return t.Shutdown(context.WithoutCancel(ctx))
}
