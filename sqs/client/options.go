package client

import (
	"time"

	"github.com/aura-studio/lambda-bridge/sqs"
	"github.com/mohae/deepcopy"
)

type Options struct {
	SQSClient        sqs.SQSClient
	RequestQueueURL  string
	ResponseQueueURL string
	DefaultTimeout   time.Duration
	WaitTimeSeconds  int32
}

type Option interface {
	Apply(o *Options)
}

type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) { f(o) }

var defaultOptions = &Options{
	DefaultTimeout:  30 * time.Second,
	WaitTimeSeconds: 20,
}

func NewOptions(opts ...Option) *Options {
	o := deepcopy.Copy(defaultOptions).(*Options)
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(o)
		}
	}
	return o
}

func WithSQSClient(client sqs.SQSClient) Option {
	return OptionFunc(func(o *Options) {
		o.SQSClient = client
	})
}

func WithRequestQueueURL(url string) Option {
	return OptionFunc(func(o *Options) {
		o.RequestQueueURL = url
	})
}

// WithResponseQueueURL enables Call. Replies are read from this queue.
func WithResponseQueueURL(url string) Option {
	return OptionFunc(func(o *Options) {
		o.ResponseQueueURL = url
	})
}

func WithDefaultTimeout(timeout time.Duration) Option {
	return OptionFunc(func(o *Options) {
		o.DefaultTimeout = timeout
	})
}

// WithWaitTimeSeconds sets the long polling wait of the reply listener.
func WithWaitTimeSeconds(seconds int32) Option {
	return OptionFunc(func(o *Options) {
		o.WaitTimeSeconds = seconds
	})
}
