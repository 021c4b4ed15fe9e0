package controllers

import (
	cpV1 "comparison-controller/api/v1"
	"comparison-controller/internal/canvas"
	"comparison-controller/internal/compare"
	"comparison-controller/internal/pipeline"
	"comparison-controller/internal/sink"
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/xerrors"
	coreV1 "k8s.io/api/core/v1"
	metaV1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
)

// workerEnvNames are passed through from the controller to worker pods.
var workerEnvNames = []string{
	"S3_BUCKET",
	"S3_ENDPOINT_URL",
	"AWS_REGION",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"CHROME_DEVTOOLS_PROTOCOL_URL",
	"FIGMA_TOKEN",
	"FIGMA_API_URL",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"REDIS_DB",
}

func optionsFor(spec cpV1.ComparisonSpec) (compare.Options, error) {
	opts := compare.DefaultOptions()
	opts.Size = canvas.Size{Width: int(spec.Width), Height: int(spec.Height)}
	if spec.Opacity != nil {
		opts.Blend.Opacity = *spec.Opacity
	}
	if spec.Threshold != nil {
		opts.Diff.Threshold = *spec.Threshold
	}
	opts.Diff.IncludeAA = spec.IncludeAA

	format, err := compare.ParseDiffFormat(spec.DiffFormat)
	if err != nil {
		return compare.Options{}, err
	}
	opts.Format = format

	if err := opts.Validate(); err != nil {
		return compare.Options{}, err
	}
	return opts, nil
}

func requestFor(spec cpV1.ComparisonSpec) (pipeline.Request, error) {
	opts, err := optionsFor(spec)
	if err != nil {
		return pipeline.Request{}, xerrors.Errorf("invalid comparison spec: %w", err)
	}
	return pipeline.Request{
		Baseline:      spec.Baseline,
		Reference:     spec.Reference,
		MaskSelectors: spec.MaskSelectors,
		Headers:       spec.Headers,
		Options:       opts,
	}, nil
}

func run(ctx context.Context, p *pipeline.Pipeline, spec cpV1.ComparisonSpec) (*sink.Report, error) {
	request, err := requestFor(spec)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, request)
}

func applyReport(status *cpV1.ComparisonStatus, report *sink.Report, now metaV1.Time) {
	status.OverlayURL = report.OverlayURL
	status.DiffURL = report.DiffURL
	status.MismatchCount = report.MismatchCount
	status.DiffAmount = report.DiffAmount
	status.Width = int32(report.Width)
	status.Height = int32(report.Height)
	status.Error = report.Error
	status.LastComparisonTime = &now
}

// applyError keeps the outputs of the previous successful run.
func applyError(status *cpV1.ComparisonStatus, err error, now metaV1.Time) {
	status.Error = err.Error()
	status.LastComparisonTime = &now
}

func workerArgs(spec cpV1.ComparisonSpec, callbackURL string) []string {
	args := []string{
		spec.Baseline,
		spec.Reference,
		"--diff-format", spec.DiffFormat,
		"--callback-url", callbackURL,
	}

	if spec.Width > 0 {
		args = append(args, "--width", strconv.Itoa(int(spec.Width)))
	}
	if spec.Height > 0 {
		args = append(args, "--height", strconv.Itoa(int(spec.Height)))
	}
	if spec.Opacity != nil {
		args = append(args, "--opacity", strconv.FormatFloat(*spec.Opacity, 'f', -1, 64))
	}
	if spec.Threshold != nil {
		args = append(args, "--threshold", strconv.FormatFloat(*spec.Threshold, 'f', -1, 64))
	}
	if spec.IncludeAA {
		args = append(args, "--include-aa")
	}
	if len(spec.MaskSelectors) > 0 {
		args = append(args, "--mask-selectors", strings.Join(spec.MaskSelectors, ","))
	}

	return args
}

func workerEnv(getenv func(string) string) []coreV1.EnvVar {
	envVars := []coreV1.EnvVar{
		{
			Name:  "STORAGE_BACKEND",
			Value: "s3",
		},
	}
	for _, name := range workerEnvNames {
		envVars = append(envVars, coreV1.EnvVar{
			Name:  name,
			Value: getenv(name),
		})
	}
	return envVars
}

// workerPodSpec mounts the headers Secret, if any, as CAPTURE_HEADERS so
// credentials stay out of the container args.
func workerPodSpec(image string, args []string, headersSecret string) coreV1.PodSpec {
	envVars := workerEnv(os.Getenv)
	if headersSecret != "" {
		envVars = append(envVars, coreV1.EnvVar{
			Name: "CAPTURE_HEADERS",
			ValueFrom: &coreV1.EnvVarSource{
				SecretKeyRef: &coreV1.SecretKeySelector{
					LocalObjectReference: coreV1.LocalObjectReference{Name: headersSecret},
					Key:                  headersSecretKey,
				},
			},
		})
	}

	return coreV1.PodSpec{
		RestartPolicy: coreV1.RestartPolicyNever,
		Containers: []coreV1.Container{
			{
				Name:  "worker",
				Image: image,
				Args:  args,
				Env:   envVars,
			},
		},
	}
}

const headersSecretKey = "headers"

// headersSecretData renders headers as "Name: value" lines in name order.
func headersSecretData(headers map[string]string) map[string][]byte {
	var b strings.Builder
	for _, name := range slices.Sorted(maps.Keys(headers)) {
		fmt.Fprintf(&b, "%s: %s\n", name, headers[name])
	}
	return map[string][]byte{headersSecretKey: []byte(b.String())}
}

// applyHeadersSecret stores headers in a Secret controlled by owner and
// returns its name, or "" when there are no headers.
func applyHeadersSecret(ctx context.Context, c client.Client, scheme *runtime.Scheme, owner client.Object, name string, headers map[string]string) (string, error) {
	if len(headers) == 0 {
		return "", nil
	}

	secret := &coreV1.Secret{
		ObjectMeta: metaV1.ObjectMeta{
			Name:      name,
			Namespace: owner.GetNamespace(),
		},
	}
	if _, err := controllerutil.CreateOrUpdate(ctx, c, secret, func() error {
		secret.Type = coreV1.SecretTypeOpaque
		secret.Data = headersSecretData(headers)
		return controllerutil.SetControllerReference(owner, secret, scheme)
	}); err != nil {
		return "", xerrors.Errorf("failed to apply headers secret %s: %w", name, err)
	}
	return name, nil
}

func callbackURL(host string, namespace string, kind string, name string) string {
	return fmt.Sprintf("http://%s/api/%s/%s/%s/%s/%s/artifacts", host, namespace, cpV1.GroupVersion.Group, cpV1.GroupVersion.Version, kind, name)
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextRun reports whether a run is due at now and, if it is not, how long
// to wait for it.
func nextRun(schedule string, last *metaV1.Time, now time.Time) (bool, time.Duration, error) {
	s, err := cronParser.Parse(schedule)
	if err != nil {
		return false, 0, xerrors.Errorf("failed to parse schedule %q: %w", schedule, err)
	}

	next := s.Next(now.Add(-1 * time.Minute))
	if last != nil {
		next = s.Next(last.Time)
	}
	if now.Before(next) {
		return false, next.Sub(now), nil
	}
	return true, s.Next(now).Sub(now), nil
}
