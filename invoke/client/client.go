// Package client invokes a bridged function directly with request envelopes.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aura-studio/lambda-bridge/invoke"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/google/uuid"
)

var (
	ErrTimeout       = errors.New("client: request timeout")
	ErrFunctionError = errors.New("client: function error")
)

type Client struct {
	*Options
}

// NewClient builds a client. Without WithLambdaClient it loads the default AWS
// configuration.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{Options: NewOptions(opts...)}
	if c.LambdaClient == nil {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("client.NewClient: %w", err)
		}
		c.LambdaClient = lambda.NewFromConfig(cfg)
	}
	return c, nil
}

// Call invokes the function synchronously. A missing correlation id is filled
// in, and the response must echo it.
func (c *Client) Call(ctx context.Context, req invoke.Request) (invoke.Response, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	payload, err := invoke.EncodeRequest(req)
	if err != nil {
		return invoke.Response{}, err
	}

	timeout := c.DefaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := c.LambdaClient.Invoke(ctx, c.input(payload, types.InvocationTypeRequestResponse))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return invoke.Response{}, ErrTimeout
		}
		return invoke.Response{}, fmt.Errorf("client.Call: %w", err)
	}
	if output.FunctionError != nil {
		return invoke.Response{}, fmt.Errorf("%w: %s: %s", ErrFunctionError, *output.FunctionError, output.Payload)
	}

	rsp, err := invoke.ParseResponse(output.Payload)
	if err != nil {
		return invoke.Response{}, fmt.Errorf("client.Call: %w", err)
	}
	if rsp.CorrelationID != req.CorrelationID {
		return rsp, fmt.Errorf("client.Call: correlation id %q, want %q", rsp.CorrelationID, req.CorrelationID)
	}
	return rsp, nil
}

// Send invokes the function asynchronously. Lambda queues the event and no
// response is returned.
func (c *Client) Send(ctx context.Context, req invoke.Request) error {
	payload, err := invoke.EncodeRequest(req)
	if err != nil {
		return err
	}
	if _, err := c.LambdaClient.Invoke(ctx, c.input(payload, types.InvocationTypeEvent)); err != nil {
		return fmt.Errorf("client.Send: %w", err)
	}
	return nil
}

func (c *Client) CallAsync(ctx context.Context, req invoke.Request, callback func(invoke.Response, error)) {
	go func() {
		rsp, err := c.Call(ctx, req)
		if callback != nil {
			callback(rsp, err)
		}
	}()
}

func (c *Client) input(payload []byte, typ types.InvocationType) *lambda.InvokeInput {
	in := &lambda.InvokeInput{
		FunctionName:   aws.String(c.FunctionName),
		InvocationType: typ,
		Payload:        payload,
	}
	if c.Qualifier != "" {
		in.Qualifier = aws.String(c.Qualifier)
	}
	return in
}
