package sqs

import "github.com/mohae/deepcopy"

type Option interface {
	Apply(o *Options)
}

type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) { f(o) }

type Options struct {
	SQSClient SQSClient
	// SuspendMode fails the whole batch at the first failed record.
	SuspendMode bool
	// PartialMode reports failed records as batch item failures so only they
	// are retried.
	PartialMode bool
	// ReplyMode sends each response to the queue named by the record.
	ReplyMode bool
	DebugMode bool
}

var defaultOptions = &Options{
	SQSClient:   nil,
	SuspendMode: false,
	PartialMode: false,
	ReplyMode:   false,
	DebugMode:   false,
}

func NewOptions(opts ...Option) *Options {
	options := deepcopy.Copy(defaultOptions).(*Options)
	options.init(opts...)
	return options
}

func (o *Options) init(opts ...Option) {
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(o)
		}
	}
}

// -------------- Sqs Options ----------------
func WithSQSClient(client SQSClient) Option {
	return OptionFunc(func(o *Options) {
		o.SQSClient = client
	})
}

func WithSuspendMode(suspend bool) Option {
	return OptionFunc(func(o *Options) {
		o.SuspendMode = suspend
	})
}

func WithPartialMode(partial bool) Option {
	return OptionFunc(func(o *Options) {
		o.PartialMode = partial
	})
}

func WithReplyMode(reply bool) Option {
	return OptionFunc(func(o *Options) {
		o.ReplyMode = reply
	})
}

func WithDebugMode(debug bool) Option {
	return OptionFunc(func(o *Options) {
		o.DebugMode = debug
	})
}
