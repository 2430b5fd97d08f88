package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"filing-backend/internal/bootstrap"
	"filing-backend/internal/shared/config"
	"filing-backend/internal/shared/metrics"
	"filing-backend/internal/shared/telemetry"
	"filing-backend/internal/workerproc"
)

const (
	defaultSQSRegion  = "us-east-1"
	receiveWaitSecond = 20
	receiveBatch      = 10
	receiveBackoff    = 5 * time.Second
)

func main() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, bootstrap.RoleWorker)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()
	if app.Runner == nil {
		log.Fatal("filing runner unavailable: ZOHO_CLIENT_ID, ZOHO_CLIENT_SECRET and ZOHO_REFRESH_TOKEN are required")
	}

	metricsSrv := &http.Server{
		Addr:              cfg.Filing.MetricsAddr,
		Handler:           metrics.HTTPHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server: %v", err)
		}
	}()

	loop := workerproc.NewLoop(app.Runner, cfg.Filing.Interval)

	if cfg.QueueURL != "" {
		region := cfg.AWSRegion
		if region == "" {
			region = defaultSQSRegion
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			log.Fatalf("load aws config: %v", err)
		}
		go pollWake(ctx, sqs.NewFromConfig(awsCfg), cfg.QueueURL, loop)
	}

	log.Printf("worker started interval=%s batch=%d queue=%t", cfg.Filing.Interval, cfg.Filing.BatchSize, cfg.QueueURL != "")
	loop.Start(ctx)

	log.Printf("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Filing.ShutdownTimeout)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown: %v", err)
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type waker interface {
	Wake()
}

// pollWake long-polls the queue and turns every valid message into a wake signal.
func pollWake(ctx context.Context, client sqsAPI, queueURL string, w waker) {
	for ctx.Err() == nil {
		if err := receiveOnce(ctx, client, queueURL, w); err != nil {
			if ctx.Err() != nil {
				return
			}
			telemetry.Warn("worker.wake.receive_failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveBackoff):
			}
		}
	}
}

func receiveOnce(ctx context.Context, client sqsAPI, queueURL string, w waker) error {
	resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueURL),
		MaxNumberOfMessages: receiveBatch,
		WaitTimeSeconds:     receiveWaitSecond,
		AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
	})
	if err != nil {
		return err
	}
	for _, msg := range resp.Messages {
		handleMessage(ctx, client, queueURL, w, msg)
	}
	return nil
}

// handleMessage wakes the loop for valid messages. Every message is deleted:
// a wake signal carries no payload worth redelivering.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, w waker, msg sqstypes.Message) {
	decoded, meta, err := workerproc.ParseMessage(aws.ToString(msg.Body))
	if err != nil {
		fields := baseFields(msg, "")
		fields["body_len"] = meta.BodyLen
		fields["error"] = err.Error()
		result := "invalid"
		var unsupported workerproc.ErrUnsupportedVersion
		if errors.As(err, &unsupported) {
			result = "unsupported_version"
			fields["version"] = unsupported.Version
		} else if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		telemetry.Error("worker.wake.rejected", fields)
		metrics.IncWakeMessage(result)
		deleteMessage(ctx, client, queueURL, msg, "")
		return
	}

	fields := baseFields(msg, decoded.RequestID)
	fields["reason"] = decoded.Reason
	telemetry.Info("worker.wake.received", fields)
	w.Wake()
	metrics.IncWakeMessage("accepted")
	deleteMessage(ctx, client, queueURL, msg, decoded.RequestID)
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.wake.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.wake.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, requestID string) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}
