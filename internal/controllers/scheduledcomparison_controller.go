package controllers

import (
	cpV1 "comparison-controller/api/v1"
	"comparison-controller/internal/pipeline"
	"context"
	"fmt"
	"time"

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

type ScheduledComparisonReconciler struct {
	client.Client
	Log      logr.Logger
	Scheme   *runtime.Scheme
	Recorder record.EventRecorder
	Pipeline *pipeline.Pipeline

	Distributed             bool
	DistributedCallbackHost string
	DistributedWorkerImage  string

	now func() time.Time
}

func (r *ScheduledComparisonReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	scheduledComparison := &cpV1.ScheduledComparison{}
	if err := r.Get(ctx, req.NamespacedName, scheduledComparison); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	if r.Distributed {
		if err := r.createOrUpdateCronJob(ctx, scheduledComparison); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{}, nil
	}

	now := time.Now()
	if r.now != nil {
		now = r.now()
	}

	due, wait, err := nextRun(scheduledComparison.Spec.Schedule, scheduledComparison.Status.LastComparisonTime, now)
	if err != nil {
		r.Recorder.Eventf(scheduledComparison, coreV1.EventTypeWarning, "InvalidSchedule", "Invalid schedule %q: %s", scheduledComparison.Spec.Schedule, err)
		return ctrl.Result{}, nil
	}
	if !due {
		return ctrl.Result{RequeueAfter: wait}, nil
	}

	if err := r.processComparison(ctx, scheduledComparison, metaV1.NewTime(now)); err != nil {
		return ctrl.Result{}, err
	}

	return ctrl.Result{RequeueAfter: wait}, nil
}

func (r *ScheduledComparisonReconciler) processComparison(ctx context.Context, scheduledComparison *cpV1.ScheduledComparison, now metaV1.Time) error {
	report, err := run(ctx, r.Pipeline, scheduledComparison.Spec.ComparisonSpec)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		scheduledComparison.Status.ObservedGeneration = scheduledComparison.Generation

		r.Log.Error(err, "scheduled comparison failed", "scheduledComparison", client.ObjectKeyFromObject(scheduledComparison))
		applyError(&scheduledComparison.Status.ComparisonStatus, err, now)
		if err := r.Status().Update(ctx, scheduledComparison); err != nil {
			return xerrors.Errorf("failed to update scheduled comparison status: %w", err)
		}
		r.Recorder.Eventf(scheduledComparison, coreV1.EventTypeWarning, "ComparisonFailed", "Scheduled comparison failed: %s", scheduledComparison.Status.Error)
		return nil
	}

	scheduledComparison.Status.ObservedGeneration = scheduledComparison.Generation
	applyReport(&scheduledComparison.Status.ComparisonStatus, report, now)
	if err := r.Status().Update(ctx, scheduledComparison); err != nil {
		return xerrors.Errorf("failed to update scheduled comparison status: %w", err)
	}
	r.Recorder.Eventf(scheduledComparison, coreV1.EventTypeNormal, "ComparisonCompleted", "Scheduled comparison completed successfully: %q (%d mismatched pixels, difference: %.2f%%)", scheduledComparison.Name, report.MismatchCount, report.DiffAmount*100)

	return nil
}

func (r *ScheduledComparisonReconciler) createOrUpdateCronJob(ctx context.Context, scheduledComparison *cpV1.ScheduledComparison) error {
	cronJobName := fmt.Sprintf("comparison-%s", scheduledComparison.Name)

	args := workerArgs(scheduledComparison.Spec.ComparisonSpec, callbackURL(r.DistributedCallbackHost, scheduledComparison.Namespace, "scheduledcomparison", scheduledComparison.Name))

	headersSecret, err := applyHeadersSecret(ctx, r.Client, r.Scheme, scheduledComparison, fmt.Sprintf("scheduledcomparison-%s-headers", scheduledComparison.Name), scheduledComparison.Spec.Headers)
	if err != nil {
		return err
	}

	cronJob := &batchV1.CronJob{
		ObjectMeta: metaV1.ObjectMeta{
			Name:      cronJobName,
			Namespace: scheduledComparison.Namespace,
		},
		Spec: batchV1.CronJobSpec{
			Schedule:          scheduledComparison.Spec.Schedule,
			ConcurrencyPolicy: batchV1.ForbidConcurrent,
			JobTemplate: batchV1.JobTemplateSpec{
				Spec: batchV1.JobSpec{
					Template: coreV1.PodTemplateSpec{
						Spec: workerPodSpec(r.DistributedWorkerImage, args, headersSecret),
					},
				},
			},
		},
	}

	if err := controllerutil.SetControllerReference(scheduledComparison, cronJob, r.Scheme); err != nil {
		return xerrors.Errorf("failed to set controller reference: %w", err)
	}

	existingCronJob := &batchV1.CronJob{}
	err = r.Get(ctx, client.ObjectKey{Name: cronJobName, Namespace: scheduledComparison.Namespace}, existingCronJob)
	if err != nil {
		if !apierrors.IsNotFound(err) {
			return xerrors.Errorf("failed to get existing cronjob: %w", err)
		}
		if err := r.Create(ctx, cronJob); err != nil {
			return xerrors.Errorf("failed to create cronjob: %w", err)
		}
		r.Recorder.Eventf(scheduledComparison, coreV1.EventTypeNormal, "CronJobCreated", "Created CronJob %s", cronJobName)
		return nil
	}

	existingCronJob.Spec = cronJob.Spec
	if err := r.Update(ctx, existingCronJob); err != nil {
		return xerrors.Errorf("failed to update cronjob: %w", err)
	}
	r.Recorder.Eventf(scheduledComparison, coreV1.EventTypeNormal, "CronJobUpdated", "Updated CronJob %s", cronJobName)

	return nil
}

func (r *ScheduledComparisonReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&cpV1.ScheduledComparison{}).
		Owns(&batchV1.CronJob{}).
		Owns(&coreV1.Secret{}).
		WithEventFilter(predicate.GenerationChangedPredicate{}).
		WithOptions(controller.Options{MaxConcurrentReconciles: 1}).
		Complete(r)
}
