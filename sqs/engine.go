// Package sqs serves SQS batches through the bridge. Every record body is an
// invoke request envelope; its response can be sent back to a reply queue.
package sqs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/aura-studio/lambda-bridge/invoke"
	events "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	ReplyToAttribute       = "ReplyTo"
	CorrelationIDAttribute = "CorrelationId"
)

var (
	ErrStopped      = errors.New("sqs: engine stopped")
	ErrServerStatus = errors.New("sqs: server error status")
)

type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type Engine struct {
	*Options
	handler *invoke.Handler
	running atomic.Int32

	clientOnce sync.Once
	clientErr  error
	sqsClient  SQSClient
}

func NewEngine(handler *invoke.Handler, opts ...Option) *Engine {
	e := &Engine{
		Options: NewOptions(opts...),
		handler: handler,
	}
	e.running.Store(1)
	return e
}

func (e *Engine) Start() {
	e.running.Store(1)
}

func (e *Engine) Stop() {
	e.running.Store(0)
}

// client returns the configured SQS client, loading the default AWS
// configuration on first use.
func (e *Engine) client(ctx context.Context) (SQSClient, error) {
	e.clientOnce.Do(func() {
		if e.SQSClient != nil {
			e.sqsClient = e.SQSClient
			return
		}
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			e.clientErr = fmt.Errorf("sqs: load aws config: %w", err)
			return
		}
		e.sqsClient = sqs.NewFromConfig(cfg)
	})
	return e.sqsClient, e.clientErr
}

// Invoke is the Lambda handler for SQS events.
func (e *Engine) Invoke(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	if e.PartialMode {
		return e.HandleSQSMessagesWithResponse(ctx, ev)
	}
	return events.SQSEventResponse{}, e.HandleSQSMessagesWithoutResponse(ctx, ev)
}

// HandleSQSMessagesWithoutResponse fails the whole batch when any record fails.
func (e *Engine) HandleSQSMessagesWithoutResponse(ctx context.Context, ev events.SQSEvent) error {
	resp, err := e.handleSQSMessages(ctx, ev)
	if err != nil {
		return err
	}
	if len(resp.BatchItemFailures) > 0 {
		return fmt.Errorf("batch item failures: %d", len(resp.BatchItemFailures))
	}
	return nil
}

// HandleSQSMessagesWithResponse reports failed records for partial retry.
func (e *Engine) HandleSQSMessagesWithResponse(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	return e.handleSQSMessages(ctx, ev)
}

func (e *Engine) handleSQSMessages(ctx context.Context, ev events.SQSEvent) (resp events.SQSEventResponse, err error) {
	for _, msg := range ev.Records {
		if err := e.handleMessage(ctx, msg); err != nil {
			log.Printf("[SQS] Message %s failed: %v", msg.MessageId, err)
			if e.SuspendMode {
				return resp, fmt.Errorf("sqs: message %s: %w", msg.MessageId, err)
			}
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: msg.MessageId})
		}
	}
	return resp, nil
}

func (e *Engine) handleMessage(ctx context.Context, msg events.SQSMessage) error {
	if e.running.Load() == 0 {
		return ErrStopped
	}

	req, err := invoke.Parse(decodeBody(msg.Body))
	if err != nil {
		return err
	}
	if v := attribute(msg, CorrelationIDAttribute); v != "" && req.CorrelationID == "" {
		req.CorrelationID = v
	}
	replyTo := attribute(msg, ReplyToAttribute)
	if replyTo == "" {
		replyTo = req.ReplyTo
	}

	if e.DebugMode {
		log.Printf("[SQS] Request: %s %s", req.Path, req.CorrelationID)
	}

	rsp, err := e.handler.HandleRequest(ctx, req)
	if err != nil {
		return err
	}
	if rsp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %d", ErrServerStatus, rsp.StatusCode)
	}

	if e.DebugMode {
		log.Printf("[SQS] Response: %s %d", req.Path, rsp.StatusCode)
	}

	if !e.ReplyMode || replyTo == "" {
		return nil
	}
	if rsp.CorrelationID == "" {
		rsp.CorrelationID = uuid.NewString()
	}
	return e.reply(ctx, replyTo, rsp)
}

func (e *Engine) reply(ctx context.Context, queueURL string, rsp invoke.Response) error {
	client, err := e.client(ctx)
	if err != nil {
		return err
	}
	b, err := invoke.Encode(rsp)
	if err != nil {
		return err
	}

	_, err = client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(b)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			CorrelationIDAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(rsp.CorrelationID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs: send reply to %s: %w", queueURL, err)
	}
	return nil
}

// decodeBody accepts a JSON body or a base64 encoded one.
func decodeBody(body string) []byte {
	if gjson.Valid(body) {
		return []byte(body)
	}
	if b, err := base64.StdEncoding.DecodeString(body); err == nil && gjson.ValidBytes(b) {
		return b
	}
	return []byte(body)
}

func attribute(msg events.SQSMessage, name string) string {
	if a, ok := msg.MessageAttributes[name]; ok && a.StringValue != nil {
		return *a.StringValue
	}
	return ""
}
