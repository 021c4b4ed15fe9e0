package routes

import (
	"comparison-controller/internal/sink"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
)

// UpdateArtifacts receives the report of a distributed worker and merges it
// into the status of the owning resource.
func UpdateArtifacts(dynamicClient dynamic.Interface) http.HandlerFunc {
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

		body, err := io.ReadAll(r.Body)
		if err != nil {
			slog.Error(fmt.Sprintf("failed to read request body: %s", err))
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}

		var report sink.Report
		if err := json.Unmarshal(body, &report); err != nil {
			slog.Error(fmt.Sprintf("failed to unmarshal request: %s", err))
			http.Error(w, "Invalid JSON format", http.StatusBadRequest)
			return
		}

		patchData, err := statusPatch(&report, time.Now())
		if err != nil {
			slog.Error(fmt.Sprintf("failed to marshal patch data: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		u, err := dynamicClient.Resource(resource(group, version, kind)).Namespace(namespace).Patch(
			r.Context(),
			name,
			types.MergePatchType,
			patchData,
			metav1.PatchOptions{},
			"status",
		)
		if err != nil {
			slog.Error(fmt.Sprintf("failed to patch status: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		b, err := u.MarshalJSON()
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

// statusPatch builds a JSON merge patch. Zero values are written explicitly
// and a failed run only touches error and lastComparisonTime.
func statusPatch(report *sink.Report, now time.Time) ([]byte, error) {
	status := map[string]any{
		"lastComparisonTime": metav1.NewTime(now),
	}

	if report.Error != "" {
		status["error"] = report.Error
	} else {
		status["error"] = nil
		status["overlayURL"] = report.OverlayURL
		status["diffURL"] = report.DiffURL
		status["mismatchCount"] = report.MismatchCount
		status["diffAmount"] = report.DiffAmount
		status["width"] = report.Width
		status["height"] = report.Height
	}

	return json.Marshal(map[string]any{
		"status": status,
	})
}
