package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"filing-backend/internal/bootstrap"
	"filing-backend/internal/pipeline"
	"filing-backend/internal/shared/config"
	"filing-backend/internal/shared/metrics"
	"filing-backend/internal/shared/telemetry"
	"filing-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	built, err := bootstrap.Build(context.Background(), cfg, bootstrap.RoleWorker)
	if err != nil {
		initErr = err
		return
	}
	if built.Runner == nil {
		initErr = errors.New("filing runner unavailable: Zoho credentials are required")
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		return events.SQSEventResponse{BatchItemFailures: failAll(event.Records)}, initErr
	}
	return handleEvent(ctx, app.Runner, event), nil
}

// handleEvent runs the filing job once for the whole batch. Records that do
// not parse are acknowledged and dropped; valid records are reported as
// failures only when the run could not claim work, so SQS redelivers them.
func handleEvent(ctx context.Context, runner workerproc.Runner, event events.SQSEvent) events.SQSEventResponse {
	var valid []events.SQSMessage
	for _, record := range event.Records {
		msg, meta, err := workerproc.ParseMessage(record.Body)
		if err != nil {
			telemetry.Error("worker.wake.rejected", map[string]any{
				"sqs_message_id": record.MessageId,
				"body_len":       meta.BodyLen,
				"error":          err.Error(),
			})
			metrics.IncWakeMessage("invalid")
			continue
		}
		telemetry.Info("worker.wake.received", map[string]any{
			"sqs_message_id": record.MessageId,
			"request_id":     msg.RequestID,
			"reason":         msg.Reason,
		})
		metrics.IncWakeMessage("accepted")
		valid = append(valid, record)
	}
	if len(valid) == 0 {
		return events.SQSEventResponse{}
	}

	summary, err := runner.Run(ctx)
	switch {
	case err == nil, errors.Is(err, pipeline.ErrRunInProgress):
		return events.SQSEventResponse{}
	case summary.Claimed == 0:
		telemetry.Error("worker.run.failed", map[string]any{"error": err.Error()})
		return events.SQSEventResponse{BatchItemFailures: failAll(valid)}
	default:
		// Documents were processed; the joined error only carries persistence
		// failures already logged by the runner.
		telemetry.Warn("worker.run.partial", map[string]any{
			"error":   err.Error(),
			"claimed": summary.Claimed,
		})
		return events.SQSEventResponse{}
	}
}

func failAll(records []events.SQSMessage) []events.SQSBatchItemFailure {
	failures := make([]events.SQSBatchItemFailure, 0, len(records))
	for _, record := range records {
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return failures
}

func main() {
	lambda.Start(handler)
}
