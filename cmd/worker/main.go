package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/imrishuroy/prize-arena-payments/internal/aws"
	"github.com/imrishuroy/prize-arena-payments/internal/checkout"
	"github.com/imrishuroy/prize-arena-payments/internal/config"
	"github.com/imrishuroy/prize-arena-payments/internal/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	lg := config.SetupLogging(cfg, "worker")

	clients, err := aws.NewAWSClients(context.Background(), cfg.Region, cfg.EndpointOverride)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to init aws clients")
	}

	svc := reconcile.NewService(reconcile.Config{
		DynamoDB:            clients.DynamoDB,
		ContestsTable:       cfg.Tables.Contests,
		PaymentsTable:       cfg.Tables.Payments,
		ParticipationsTable: cfg.Tables.Participations,
		Sessions:            checkout.NewStripeLookup(cfg.Stripe.SecretKey),
		Recorder:            aws.NewMetricsRecorder(clients.CloudWatch, cfg.MetricsNamespace, "worker"),
	})
	p := NewProcessor(svc)

	// If RUN_LOCAL=true, simulate a single SQS message for local testing.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"session_id":"cs_test_local","event_id":"evt_local"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		}
		resp, err := p.Handle(context.Background(), event)
		if err != nil {
			lg.Fatal().Err(err).Msg("local handler error")
		}
		lg.Info().Int("failures", len(resp.BatchItemFailures)).Msg("local run finished")
		return
	}

	lambda.Start(p.Handle)
}
