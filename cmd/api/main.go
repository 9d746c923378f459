package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/imrishuroy/prize-arena-payments/internal/auth"
	"github.com/imrishuroy/prize-arena-payments/internal/aws"
	"github.com/imrishuroy/prize-arena-payments/internal/checkout"
	"github.com/imrishuroy/prize-arena-payments/internal/config"
	"github.com/imrishuroy/prize-arena-payments/internal/contests"
	"github.com/imrishuroy/prize-arena-payments/internal/handlers"
	"github.com/imrishuroy/prize-arena-payments/internal/idempotency"
	"github.com/imrishuroy/prize-arena-payments/internal/participations"
	"github.com/imrishuroy/prize-arena-payments/internal/payments"
	"github.com/imrishuroy/prize-arena-payments/internal/reconcile"
	"github.com/imrishuroy/prize-arena-payments/internal/validation"
)

func setupRouter(cfg config.Config, clients *aws.AWSClients) *gin.Engine {
	db := clients.DynamoDB

	svc := reconcile.NewService(reconcile.Config{
		DynamoDB:            db,
		ContestsTable:       cfg.Tables.Contests,
		PaymentsTable:       cfg.Tables.Payments,
		ParticipationsTable: cfg.Tables.Participations,
		Sessions:            checkout.NewStripeLookup(cfg.Stripe.SecretKey),
		Recorder:            aws.NewMetricsRecorder(clients.CloudWatch, cfg.MetricsNamespace, "api"),
	})

	deps := handlers.Dependencies{
		Reconciler:     svc,
		Payments:       payments.NewStore(db, cfg.Tables.Payments),
		Contests:       contests.NewStore(db, cfg.Tables.Contests),
		Participations: participations.NewStore(db, cfg.Tables.Participations),
		Tokens:         auth.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AdminEmails),
		Validator:      validation.New(),
	}
	if cfg.WebhooksEnabled() {
		deps.Events = checkout.NewWebhookVerifier(cfg.Stripe.WebhookSecret)
		deps.Deliveries = idempotency.NewStore(db, cfg.Tables.WebhookDeliveries, cfg.DeliveryTTL)
		deps.Queue = aws.NewPublisher(clients.SQS, cfg.WebhookQueueURL)
	} else {
		log.Warn().Msg("webhook route disabled: STRIPE_WEBHOOK_SECRET or WEBHOOK_QUEUE_URL not set")
	}

	return handlers.NewRouter(deps, cfg.CORS.AllowedOrigins)
}

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateAPI()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	lg := config.SetupLogging(cfg, "api")
	gin.SetMode(gin.ReleaseMode)

	clients, err := aws.NewAWSClients(context.Background(), cfg.Region, cfg.EndpointOverride)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to init aws clients")
	}

	r := setupRouter(cfg, clients)

	// if RUN_LOCAL is true, run a local HTTP server for development.
	if cfg.RunLocal {
		addr := fmt.Sprintf(":%s", cfg.Port)
		lg.Info().Str("addr", addr).Msg("running local server")
		if err := r.Run(addr); err != nil {
			lg.Fatal().Err(err).Msg("failed to run local server")
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
