package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetricsRecorder_RecordOutcome(t *testing.T) {
	cw := &fakeCloudWatch{}
	r := NewMetricsRecorder(cw, "PrizeArena/Payments", "api")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.nowFunc = func() time.Time { return fixed }

	if err := r.RecordOutcome(context.Background(), "processed"); err != nil {
		t.Fatalf("RecordOutcome error: %v", err)
	}
	if len(cw.inputs) != 1 {
		t.Fatalf("expected 1 call, got %d", len(cw.inputs))
	}
	in := cw.inputs[0]
	if *in.Namespace != "PrizeArena/Payments" {
		t.Fatalf("namespace mismatch: %s", *in.Namespace)
	}
	d := in.MetricData[0]
	if *d.MetricName != outcomeMetric || *d.Value != 1 || !d.Timestamp.Equal(fixed) {
		t.Fatalf("unexpected datum: %+v", d)
	}
	dims := map[string]string{}
	for _, dim := range d.Dimensions {
		dims[*dim.Name] = *dim.Value
	}
	if dims["Outcome"] != "processed" || dims["Source"] != "api" {
		t.Fatalf("unexpected dimensions: %v", dims)
	}
}

func TestMetricsRecorder_PropagatesError(t *testing.T) {
	cw := &fakeCloudWatch{err: errors.New("throttled")}
	r := NewMetricsRecorder(cw, "ns", "worker")
	if err := r.RecordOutcome(context.Background(), "rejected"); err == nil {
		t.Fatal("expected error, got nil")
	}
}
