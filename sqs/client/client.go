// Package client sends request envelopes to a bridged function through SQS and
// waits for the replies on a response queue.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aura-studio/lambda-bridge/invoke"
	"github.com/aura-studio/lambda-bridge/sqs"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

var (
	ErrTimeout      = errors.New("client: request timeout")
	ErrNoReplyQueue = errors.New("client: no response queue")
)

type Client struct {
	*Options
	pending sync.Map // correlation id -> chan invoke.Response
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// NewClient builds a client and starts the reply listener when a response
// queue is configured. Without WithSQSClient it loads the default AWS
// configuration.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{Options: NewOptions(opts...)}
	if c.SQSClient == nil {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("client.NewClient: %w", err)
		}
		c.SQSClient = awssqs.NewFromConfig(cfg)
	}

	lctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	if c.ResponseQueueURL != "" {
		c.wg.Add(1)
		go c.listen(lctx)
	}
	return c, nil
}

// Close stops the listener and waits for it.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		c.wg.Wait()
	})
}

func (c *Client) listen(ctx context.Context) {
	defer c.wg.Done()
	for ctx.Err() == nil {
		output, err := c.SQSClient.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
			QueueUrl:              aws.String(c.ResponseQueueURL),
			MaxNumberOfMessages:   10,
			WaitTimeSeconds:       c.WaitTimeSeconds,
			MessageAttributeNames: []string{sqs.CorrelationIDAttribute},
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[SQS] Receive replies error: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range output.Messages {
			c.deliver(msg)
			if _, err := c.SQSClient.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
				QueueUrl:      aws.String(c.ResponseQueueURL),
				ReceiptHandle: msg.ReceiptHandle,
			}); err != nil && ctx.Err() == nil {
				log.Printf("[SQS] Delete reply error: %v", err)
			}
		}
	}
}

func (c *Client) deliver(msg types.Message) {
	if msg.Body == nil {
		return
	}
	rsp, err := invoke.ParseResponse([]byte(*msg.Body))
	if err != nil {
		log.Printf("[SQS] Parse reply error: %v", err)
		return
	}
	if rsp.CorrelationID == "" {
		if a, ok := msg.MessageAttributes[sqs.CorrelationIDAttribute]; ok {
			rsp.CorrelationID = aws.ToString(a.StringValue)
		}
	}

	if ch, ok := c.pending.Load(rsp.CorrelationID); ok {
		select {
		case ch.(chan invoke.Response) <- rsp:
		default:
		}
	}
}

// Call sends req and waits for the reply with the same correlation id.
func (c *Client) Call(ctx context.Context, req invoke.Request) (invoke.Response, error) {
	if c.ResponseQueueURL == "" {
		return invoke.Response{}, ErrNoReplyQueue
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	req.ReplyTo = c.ResponseQueueURL

	ch := make(chan invoke.Response, 1)
	c.pending.Store(req.CorrelationID, ch)
	defer c.pending.Delete(req.CorrelationID)

	if err := c.send(ctx, req); err != nil {
		return invoke.Response{}, err
	}

	timeout := c.DefaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case rsp := <-ch:
		return rsp, nil
	case <-timer.C:
		return invoke.Response{}, ErrTimeout
	case <-ctx.Done():
		return invoke.Response{}, ctx.Err()
	}
}

func (c *Client) CallAsync(ctx context.Context, req invoke.Request, callback func(invoke.Response, error)) {
	go func() {
		rsp, err := c.Call(ctx, req)
		if callback != nil {
			callback(rsp, err)
		}
	}()
}

// Send enqueues req without waiting for a reply.
func (c *Client) Send(ctx context.Context, req invoke.Request) error {
	return c.send(ctx, req)
}

func (c *Client) send(ctx context.Context, req invoke.Request) error {
	b, err := invoke.EncodeRequest(req)
	if err != nil {
		return err
	}

	input := &awssqs.SendMessageInput{
		QueueUrl:    aws.String(c.RequestQueueURL),
		MessageBody: aws.String(string(b)),
	}
	if req.CorrelationID != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			sqs.CorrelationIDAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(req.CorrelationID),
			},
		}
	}
	if _, err := c.SQSClient.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("client.Send: %w", err)
	}
	return nil
}
