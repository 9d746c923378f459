package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const outcomeMetric = "ReconcileOutcome"

// MetricsRecorder publishes one CloudWatch datapoint per reconciliation outcome.
type MetricsRecorder struct {
	client    CloudWatchAPI
	namespace string
	source    string
	nowFunc   func() time.Time
}

// NewMetricsRecorder returns a recorder. source is the emitting binary ("api" or "worker")
// and ends up as a dimension next to the outcome.
func NewMetricsRecorder(client CloudWatchAPI, namespace, source string) *MetricsRecorder {
	return &MetricsRecorder{
		client:    client,
		namespace: namespace,
		source:    source,
		nowFunc:   time.Now,
	}
}

// RecordOutcome counts a single outcome such as "processed" or "already_processed".
func (r *MetricsRecorder) RecordOutcome(ctx context.Context, outcome string) error {
	now := r.nowFunc()
	value := 1.0
	input := &cloudwatch.PutMetricDataInput{
		Namespace: &r.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: awsString(outcomeMetric),
				Dimensions: []cwtypes.Dimension{
					{Name: awsString("Outcome"), Value: awsString(outcome)},
					{Name: awsString("Source"), Value: awsString(r.source)},
				},
				Timestamp: &now,
				Unit:      cwtypes.StandardUnitCount,
				Value:     &value,
			},
		},
	}
	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
