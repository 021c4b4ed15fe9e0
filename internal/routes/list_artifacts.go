package routes

import (
	"comparison-controller/internal/storage"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
)

type ArtifactsResponse struct {
	Overlay            string       `json:"overlay,omitempty"`
	Diff               string       `json:"diff,omitempty"`
	MismatchCount      int64        `json:"mismatchCount"`
	DiffAmount         float64      `json:"diffAmount"`
	Width              int32        `json:"width,omitempty"`
	Height             int32        `json:"height,omitempty"`
	LastComparisonTime *metav1.Time `json:"lastComparisonTime,omitempty"`
	Error              string       `json:"error,omitempty"`
}

func ListArtifacts(dynamicClient dynamic.Interface, storageClient storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		namespace := r.PathValue("namespace")
		group := r.PathValue("group")
		version := r.PathValue("version")
		kind := r.PathValue("kind")
		name := r.PathValue("name")

		if !supportedKind(kind) {
			http.Error(w, "Unsupported resource kind", http.StatusBadRequest)
			return
		}

		u, err := dynamicClient.Resource(resource(group, version, kind)).Namespace(namespace).Get(r.Context(), name, metav1.GetOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				http.NotFound(w, r)
				return
			}
			slog.Error(fmt.Sprintf("failed to get resource: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		status, err := comparisonStatus(kind, u)
		if err != nil {
			slog.Error(err.Error())
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		response := ArtifactsResponse{
			MismatchCount:      status.MismatchCount,
			DiffAmount:         status.DiffAmount,
			Width:              status.Width,
			Height:             status.Height,
			LastComparisonTime: status.LastComparisonTime,
			Error:              status.Error,
		}

		// a missing artifact is left out of the response rather than failing it
		eg, ctx := errgroup.WithContext(r.Context())
		eg.Go(func() error {
			response.Overlay = fetch(ctx, storageClient, status.OverlayURL)
			return nil
		})
		eg.Go(func() error {
			response.Diff = fetch(ctx, storageClient, status.DiffURL)
			return nil
		})
		_ = eg.Wait()

		b, err := json.Marshal(response)
		if err != nil {
			slog.Error(fmt.Sprintf("failed to marshal json: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}

func fetch(ctx context.Context, storageClient storage.Storage, url string) string {
	if url == "" {
		return ""
	}
	data, err := storageClient.Get(ctx, url)
	if err != nil {
		slog.Warn(fmt.Sprintf("failed to fetch artifact %s: %s", url, err))
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}
