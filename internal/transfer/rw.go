package transfer

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

type Callback func(n int64)
type Option func(*options)

type options struct {
	limiter  *rate.Limiter
	callback Callback
}

func WithLimiter(limiter *rate.Limiter) Option {
	return func(o *options) {
		o.limiter = limiter
	}
}

// WithCallback is called with the size of every successful write.
// NOTE: this is a hot path, don't block in the callback.
func WithCallback(cb Callback) Option {
	return func(o *options) {
		o.callback = cb
	}
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// wait blocks until n bytes may pass, asking for at most one burst at a time.
func (o options) wait(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.limiter == nil || o.limiter.Limit() == rate.Inf {
		return nil
	}
	burst := max(1, o.limiter.Burst())
	for n > 0 {
		step := min(n, burst)
		if err := o.limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

func (o options) done(n int) {
	if o.callback != nil && n > 0 {
		o.callback(int64(n))
	}
}

type WriterFunc func(p []byte) (int, error)

func (f WriterFunc) Write(p []byte) (int, error) { return f(p) }

// Writer wraps w so that writes respect ctx cancellation and the limiter.
func Writer(ctx context.Context, w io.Writer, opts ...Option) io.Writer {
	o := newOptions(opts)
	return WriterFunc(func(p []byte) (int, error) {
		if err := o.wait(ctx, len(p)); err != nil {
			return 0, err
		}
		n, err := w.Write(p)
		o.done(n)
		return n, err
	})
}

type writerAt struct {
	ctx context.Context
	w   io.WriterAt
	o   options
}

func (w writerAt) WriteAt(p []byte, off int64) (int, error) {
	if err := w.o.wait(w.ctx, len(p)); err != nil {
		return 0, err
	}
	n, err := w.w.WriteAt(p, off)
	w.o.done(n)
	return n, err
}

// WriterAt is Writer for positional writes, as done by the S3 downloader.
func WriterAt(ctx context.Context, w io.WriterAt, opts ...Option) io.WriterAt {
	return writerAt{ctx: ctx, w: w, o: newOptions(opts)}
}
