package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinodismyname/sheetrelay/config"
	"golang.org/x/sync/semaphore"
)

// Limits captures the concurrency and paging guardrails configured for the server.
type Limits struct {
	// Concurrency caps
	MaxConcurrentRequests int
	MaxOpenWorkbooks      int

	// Row paging for reads
	DefaultPageRows int
	MaxPageRows     int

	// Timeouts
	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
	FetchTimeout          time.Duration
}

// NewLimits initializes Limits with sensible fallbacks when values are unset.
func NewLimits(maxConcurrentRequests, maxOpenWorkbooks int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	if maxOpenWorkbooks <= 0 {
		maxOpenWorkbooks = config.DefaultMaxOpenWorkbooks
	}

	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxOpenWorkbooks:      maxOpenWorkbooks,
		DefaultPageRows:       config.DefaultPageRows,
		MaxPageRows:           config.DefaultMaxPageRows,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
		FetchTimeout:          config.DefaultFetchTimeout,
	}
}

// LimitsFromConfig maps the loaded configuration onto runtime Limits.
func LimitsFromConfig(c config.Limits) Limits {
	l := NewLimits(c.MaxConcurrentRequests, c.MaxOpenWorkbooks)
	if c.DefaultPageRows > 0 {
		l.DefaultPageRows = c.DefaultPageRows
	}
	if c.MaxPageRows > 0 {
		l.MaxPageRows = c.MaxPageRows
	}
	if c.OperationTimeout > 0 {
		l.OperationTimeout = c.OperationTimeout
	}
	if c.AcquireTimeout > 0 {
		l.AcquireRequestTimeout = c.AcquireTimeout
	}
	if c.FetchTimeout > 0 {
		l.FetchTimeout = c.FetchTimeout
	}
	return l
}

// PageRows clamps a requested page size to the configured bounds. Zero or
// negative requests get the default.
func (l Limits) PageRows(requested int) int {
	if requested <= 0 {
		return l.DefaultPageRows
	}
	if l.MaxPageRows > 0 && requested > l.MaxPageRows {
		return l.MaxPageRows
	}
	return requested
}

// ErrBusy is returned by Admit when no request slot frees up within the
// acquire timeout.
var ErrBusy = errors.New("request limit reached")

// Controller gates tool calls and open workbooks.
type Controller struct {
	limits    Limits
	requests  *semaphore.Weighted
	workbooks *semaphore.Weighted
	inFlight  atomic.Int64
}

// NewController builds a Controller sized by limits.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:    limits,
		requests:  semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
		workbooks: semaphore.NewWeighted(int64(limits.MaxOpenWorkbooks)),
	}
}

// Admit waits up to AcquireRequestTimeout for a request slot. The returned
// release func must be called exactly once.
func (c *Controller) Admit(ctx context.Context) (release func(), err error) {
	waitCtx := ctx
	if c.limits.AcquireRequestTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.limits.AcquireRequestTimeout)
		defer cancel()
	}
	if err := c.requests.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrBusy
	}
	c.inFlight.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			c.inFlight.Add(-1)
			c.requests.Release(1)
		})
	}, nil
}

// InFlight is the number of admitted calls that have not been released.
func (c *Controller) InFlight() int { return int(c.inFlight.Load()) }

// AcquireWorkbook reserves an open workbook slot.
func (c *Controller) AcquireWorkbook(ctx context.Context) error {
	return c.workbooks.Acquire(ctx, 1)
}

// ReleaseWorkbook frees a slot taken by AcquireWorkbook.
func (c *Controller) ReleaseWorkbook() {
	c.workbooks.Release(1)
}

// Limits returns the configured guardrails.
func (c *Controller) Limits() Limits {
	return c.limits
}
