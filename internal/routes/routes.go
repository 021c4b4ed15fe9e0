package routes

import (
	v1 "comparison-controller/api/v1"

	"golang.org/x/xerrors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	kindComparison          = "comparison"
	kindScheduledComparison = "scheduledcomparison"
)

func supportedKind(kind string) bool {
	return kind == kindComparison || kind == kindScheduledComparison
}

func resource(group string, version string, kind string) schema.GroupVersionResource {
	return schema.GroupVersionResource{
		Group:    group,
		Version:  version,
		Resource: kind + "s",
	}
}

func comparisonStatus(kind string, u *unstructured.Unstructured) (*v1.ComparisonStatus, error) {
	switch kind {
	case kindComparison:
		var comparison v1.Comparison
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, &comparison); err != nil {
			return nil, xerrors.Errorf("failed to convert comparison: %w", err)
		}
		return &comparison.Status, nil
	case kindScheduledComparison:
		var scheduledComparison v1.ScheduledComparison
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, &scheduledComparison); err != nil {
			return nil, xerrors.Errorf("failed to convert scheduled comparison: %w", err)
		}
		return &scheduledComparison.Status.ComparisonStatus, nil
	default:
		return nil, xerrors.Errorf("unsupported resource kind %q", kind)
	}
}
