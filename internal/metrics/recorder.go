// Package metrics publishes delivery outcome metrics. Recording is strictly
// best-effort: a metrics failure is logged and swallowed, never surfaced to
// the dispatch path.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"mailblast/internal/types"
)

// Metric and dimension names.
const (
	metricDeliveryAttempt = "DeliveryAttempt"
	metricBatchSize       = "DispatchBatchSize"
	metricBatchFailures   = "DispatchBatchFailures"
	metricBatchDuration   = "DispatchBatchDuration"

	dimBackend = "Backend"
	dimResult  = "Result"

	resultSuccess = "success"
	resultFailure = "failure"
)

// DeliveryRecorder records per-recipient and per-batch delivery outcomes.
type DeliveryRecorder interface {
	// RecordDelivery counts one delivery attempt by backend and result.
	RecordDelivery(ctx context.Context, backend types.MailBackend, success bool)
	// RecordBatch summarizes one completed dispatch.
	RecordBatch(ctx context.Context, size, failed int, elapsed time.Duration)
}

// CloudWatchClient abstracts the PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRecorder implements DeliveryRecorder against AWS CloudWatch.
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

var _ DeliveryRecorder = (*CloudWatchRecorder)(nil)

// NewCloudWatchRecorder creates a recorder publishing to the given namespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDelivery emits a DeliveryAttempt datum with Backend and Result
// dimensions.
func (r *CloudWatchRecorder) RecordDelivery(ctx context.Context, backend types.MailBackend, success bool) {
	result := resultSuccess
	if !success {
		result = resultFailure
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricDeliveryAttempt),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(dimBackend), Value: aws.String(string(backend))},
					{Name: aws.String(dimResult), Value: aws.String(result)},
				},
			},
		},
	}

	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.Error("failed to record delivery metric",
			"error", err.Error(),
			"backend", string(backend),
			"result", result,
		)
	}
}

// RecordBatch emits the batch size, failure count, and wall-clock duration of
// one dispatch in a single call.
func (r *CloudWatchRecorder) RecordBatch(ctx context.Context, size, failed int, elapsed time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricBatchSize),
				Value:      aws.Float64(float64(size)),
				Unit:       cwtypes.StandardUnitCount,
			},
			{
				MetricName: aws.String(metricBatchFailures),
				Value:      aws.Float64(float64(failed)),
				Unit:       cwtypes.StandardUnitCount,
			},
			{
				MetricName: aws.String(metricBatchDuration),
				Value:      aws.Float64(float64(elapsed.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.Error("failed to record batch metrics",
			"error", err.Error(),
			"size", size,
			"failed", failed,
		)
	}
}

// NoopRecorder discards all metrics. Used when METRICS_ENABLED is false.
type NoopRecorder struct{}

var _ DeliveryRecorder = NoopRecorder{}

func (NoopRecorder) RecordDelivery(context.Context, types.MailBackend, bool) {}

func (NoopRecorder) RecordBatch(context.Context, int, int, time.Duration) {}
