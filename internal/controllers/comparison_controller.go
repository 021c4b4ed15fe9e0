package controllers

import (
	cpV1 "comparison-controller/api/v1"
	"comparison-controller/internal/pipeline"
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"golang.org/x/xerrors"
	batchV1 "k8s.io/api/batch/v1"
	coreV1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metaV1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
)

type ComparisonReconciler struct {
	client.Client
	Log      logr.Logger
	Scheme   *runtime.Scheme
	Recorder record.EventRecorder
	Pipeline *pipeline.Pipeline

	Distributed             bool
	DistributedCallbackHost string
	DistributedWorkerImage  string
}

func (r *ComparisonReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	comparison := &cpV1.Comparison{}
	if err := r.Get(ctx, req.NamespacedName, comparison); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	if comparison.Status.ObservedGeneration >= comparison.Generation {
		return ctrl.Result{}, nil
	}

	if r.Distributed {
		if err := r.createJob(ctx, comparison); err != nil {
			return ctrl.Result{}, err
		}
		comparison.Status.ObservedGeneration = comparison.Generation
		if err := r.Status().Update(ctx, comparison); err != nil {
			return ctrl.Result{}, err
		}
	} else {
		if err := r.processComparison(ctx, comparison); err != nil {
			return ctrl.Result{}, err
		}
	}

	return ctrl.Result{}, nil
}

// processComparison records a failed run in the status instead of
// returning it; only infrastructure errors are retried. The generation is
// marked observed together with the outcome so a cancelled run is redone.
func (r *ComparisonReconciler) processComparison(ctx context.Context, comparison *cpV1.Comparison) error {
	report, err := run(ctx, r.Pipeline, comparison.Spec)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		comparison.Status.ObservedGeneration = comparison.Generation

		r.Log.Error(err, "comparison failed", "comparison", client.ObjectKeyFromObject(comparison))
		applyError(&comparison.Status, err, metaV1.Now())
		if err := r.Status().Update(ctx, comparison); err != nil {
			return xerrors.Errorf("failed to update comparison status: %w", err)
		}
		r.Recorder.Eventf(comparison, coreV1.EventTypeWarning, "ComparisonFailed", "Comparison failed: %s", comparison.Status.Error)
		return nil
	}

	comparison.Status.ObservedGeneration = comparison.Generation
	applyReport(&comparison.Status, report, metaV1.Now())
	if err := r.Status().Update(ctx, comparison); err != nil {
		return xerrors.Errorf("failed to update comparison status: %w", err)
	}
	r.Recorder.Eventf(comparison, coreV1.EventTypeNormal, "ComparisonCompleted", "Comparison completed successfully: %q (%d mismatched pixels, difference: %.2f%%)", comparison.Name, report.MismatchCount, report.DiffAmount*100)

	return nil
}

func (r *ComparisonReconciler) createJob(ctx context.Context, comparison *cpV1.Comparison) error {
	jobName := fmt.Sprintf("comparison-%s-%d", comparison.Name, comparison.Generation)

	args := workerArgs(comparison.Spec, callbackURL(r.DistributedCallbackHost, comparison.Namespace, "comparison", comparison.Name))

	headersSecret, err := applyHeadersSecret(ctx, r.Client, r.Scheme, comparison, fmt.Sprintf("comparison-%s-headers", comparison.Name), comparison.Spec.Headers)
	if err != nil {
		return err
	}

	job := &batchV1.Job{
		ObjectMeta: metaV1.ObjectMeta{
			Name:      jobName,
			Namespace: comparison.Namespace,
		},
		Spec: batchV1.JobSpec{
			Template: coreV1.PodTemplateSpec{
				Spec: workerPodSpec(r.DistributedWorkerImage, args, headersSecret),
			},
		},
	}

	if err := controllerutil.SetControllerReference(comparison, job, r.Scheme); err != nil {
		return xerrors.Errorf("failed to set controller reference: %w", err)
	}

	if err := r.Create(ctx, job); err != nil {
		if apierrors.IsAlreadyExists(err) {
			r.Log.Info("Job already exists", "job", jobName)
			return nil
		}
		return xerrors.Errorf("failed to create job: %w", err)
	}

	r.Recorder.Eventf(comparison, coreV1.EventTypeNormal, "JobCreated", "Created job %s for comparison", jobName)
	return nil
}

func (r *ComparisonReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&cpV1.Comparison{}).
		Owns(&batchV1.Job{}).
		Owns(&coreV1.Secret{}).
		WithEventFilter(predicate.GenerationChangedPredicate{}).
		WithOptions(controller.Options{MaxConcurrentReconciles: 1}).
		Complete(r)
}
