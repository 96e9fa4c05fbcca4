package widget

import (
	"context"
	"errors"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	wlog "github.com/go-lynx/widget/log"
	"github.com/go-lynx/widget/observability/metrics"
	"github.com/go-lynx/widget/plugins"
)

// Defaults for the error boundary tunables
const (
	DefaultMaxRecoveryAttempts = 3
	DefaultRecoveryDelay       = time.Second
)

// RecoverableErrors are the error names eligible for automatic recovery.
// An error matches when its classified name, or its message, contains one of them.
var RecoverableErrors = []string{
	plugins.NameNetworkError,
	plugins.NameTimeoutError,
	plugins.NameConfigurationError,
}

// ErrorInfo is the boundary's record of a failing instance
type ErrorInfo struct {
	Err                 error
	ErrorType           string
	Recoverable         bool
	Timestamp           time.Time
	RecoveryAttempts    int
	LastRecoveryAttempt *time.Time
	StackTrace          string
	// Exhausted is set once a recovery was refused at the attempt ceiling
	Exhausted bool
}

// Recoverer performs the host-specific part of a recovery. A nil error clears the record.
type Recoverer func(ctx context.Context, instanceID string, info ErrorInfo) error

// ErrorReport aggregates what the boundary has seen since it was created
type ErrorReport struct {
	GeneratedAt       time.Time
	ActiveErrors      int
	ByType            map[string]int
	RecoverySuccesses int
	RecoveryFailures  int
	Exhausted         []string
	Instances         []string
}

// ErrorBoundary tracks failing instances and drives bounded auto-recovery.
// Tunables are process-wide: one boundary serves every instance.
type ErrorBoundary struct {
	mu         sync.RWMutex
	errors     map[string]*ErrorInfo
	timers     map[string]*time.Timer
	typeCounts map[string]int
	successes  int
	failures   int

	maxAttempts int
	delay       time.Duration
	recoverer   Recoverer

	ctx    context.Context
	cancel context.CancelFunc

	log     *log.Helper
	metrics *metrics.Metrics
}

// BoundaryOption configures an ErrorBoundary
type BoundaryOption func(*ErrorBoundary)

// WithBoundaryLogger sets the logger
func WithBoundaryLogger(l log.Logger) BoundaryOption {
	return func(b *ErrorBoundary) { b.log = log.NewHelper(l) }
}

// WithBoundaryMetrics records recovery attempts
func WithBoundaryMetrics(m *metrics.Metrics) BoundaryOption {
	return func(b *ErrorBoundary) { b.metrics = m }
}

// WithMaxRecoveryAttempts sets the attempt ceiling
func WithMaxRecoveryAttempts(n int) BoundaryOption {
	return func(b *ErrorBoundary) { b.maxAttempts = n }
}

// WithRecoveryDelay sets the wait before each recovery
func WithRecoveryDelay(d time.Duration) BoundaryOption {
	return func(b *ErrorBoundary) { b.delay = d }
}

// WithRecoverer sets the host recovery function
func WithRecoverer(r Recoverer) BoundaryOption {
	return func(b *ErrorBoundary) { b.recoverer = r }
}

// NewErrorBoundary creates a boundary with a 3-attempt ceiling and a 1s delay
func NewErrorBoundary(opts ...BoundaryOption) *ErrorBoundary {
	ctx, cancel := context.WithCancel(context.Background())
	b := &ErrorBoundary{
		errors:      make(map[string]*ErrorInfo),
		timers:      make(map[string]*time.Timer),
		typeCounts:  make(map[string]int),
		maxAttempts: DefaultMaxRecoveryAttempts,
		delay:       DefaultRecoveryDelay,
		ctx:         ctx,
		cancel:      cancel,
		log:         wlog.NewHelper(nil),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetRecoverer installs the host recovery function
func (b *ErrorBoundary) SetRecoverer(r Recoverer) {
	b.mu.Lock()
	b.recoverer = r
	b.mu.Unlock()
}

// SetMaxRecoveryAttempts changes the attempt ceiling for every instance
func (b *ErrorBoundary) SetMaxRecoveryAttempts(n int) {
	if n < 0 {
		n = 0
	}
	b.mu.Lock()
	b.maxAttempts = n
	b.mu.Unlock()
}

// MaxRecoveryAttempts returns the attempt ceiling
func (b *ErrorBoundary) MaxRecoveryAttempts() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxAttempts
}

// SetRecoveryDelay changes the wait before each recovery attempt
func (b *ErrorBoundary) SetRecoveryDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	b.mu.Lock()
	b.delay = d
	b.mu.Unlock()
}

// RecoveryDelay returns the wait before each recovery attempt
func (b *ErrorBoundary) RecoveryDelay() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.delay
}

// IsRecoverable reports whether err is eligible for automatic recovery
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	name := plugins.ErrorName(err)
	msg := err.Error()
	for _, r := range RecoverableErrors {
		if strings.Contains(name, r) || strings.Contains(msg, r) {
			return true
		}
	}
	return false
}

// HandleError records err for instanceID. An existing record keeps its attempt
// counter. Recoverable errors get one auto-recovery scheduled after the delay.
func (b *ErrorBoundary) HandleError(err error, instanceID string) {
	if err == nil {
		return
	}
	name := plugins.ErrorName(err)
	recoverable := IsRecoverable(err)
	stack := stackOf(err)

	b.mu.Lock()
	info, ok := b.errors[instanceID]
	if !ok {
		info = &ErrorInfo{}
		b.errors[instanceID] = info
	}
	info.Err = err
	info.ErrorType = name
	info.Recoverable = recoverable
	info.Timestamp = time.Now()
	info.StackTrace = stack
	b.typeCounts[name]++
	attempts, max := info.RecoveryAttempts, b.maxAttempts

	scheduled := false
	if recoverable && attempts < max {
		if _, pending := b.timers[instanceID]; !pending {
			b.timers[instanceID] = time.AfterFunc(b.delay, func() { b.autoRecover(instanceID) })
			scheduled = true
		}
	}
	b.mu.Unlock()

	b.log.Errorw("msg", "widget instance error",
		"instance_id", instanceID,
		"error_type", name,
		"recoverable", recoverable,
		"auto_recovery", scheduled,
		"err", err)
}

// autoRecover runs from the recovery timer. A record cleared in the meantime
// makes it a no-op.
func (b *ErrorBoundary) autoRecover(instanceID string) {
	b.mu.Lock()
	delete(b.timers, instanceID)
	_, ok := b.errors[instanceID]
	b.mu.Unlock()
	if !ok {
		return
	}
	b.recover(b.ctx, instanceID, false)
}

// RecoverInstance attempts one recovery. It returns false when there is no
// record, when the attempt ceiling is reached (nothing is attempted and the
// counter is unchanged), or when the recovery itself fails.
func (b *ErrorBoundary) RecoverInstance(ctx context.Context, instanceID string) bool {
	return b.recover(ctx, instanceID, true)
}

func (b *ErrorBoundary) recover(ctx context.Context, instanceID string, wait bool) bool {
	b.mu.Lock()
	info, ok := b.errors[instanceID]
	if !ok {
		b.mu.Unlock()
		return false
	}
	if info.RecoveryAttempts >= b.maxAttempts {
		info.Exhausted = true
		attempts := info.RecoveryAttempts
		b.mu.Unlock()
		b.log.Warnw("msg", "widget recovery refused",
			"instance_id", instanceID,
			"attempts", attempts,
			"err", plugins.ErrRecoveryExhausted)
		return false
	}
	info.RecoveryAttempts++
	now := time.Now()
	info.LastRecoveryAttempt = &now
	snapshot := *info
	delay, recoverer := b.delay, b.recoverer
	b.mu.Unlock()

	err := b.waitDelay(ctx, delay, wait)
	if err == nil && recoverer != nil {
		err = safeRecover(ctx, recoverer, instanceID, snapshot)
	}

	b.mu.Lock()
	if err == nil {
		if cur, ok := b.errors[instanceID]; ok && cur == info {
			delete(b.errors, instanceID)
		}
		if t, ok := b.timers[instanceID]; ok {
			t.Stop()
			delete(b.timers, instanceID)
		}
		b.successes++
	} else {
		b.failures++
	}
	b.mu.Unlock()

	b.metrics.RecoveryAttempt(err == nil)
	if err != nil {
		b.log.Warnf("widget recovery failed: instance_id=%s attempt=%d/%d err=%v",
			instanceID, snapshot.RecoveryAttempts, b.MaxRecoveryAttempts(), err)
		return false
	}
	b.log.Infof("widget recovered: instance_id=%s attempt=%d", instanceID, snapshot.RecoveryAttempts)
	return true
}

func (b *ErrorBoundary) waitDelay(ctx context.Context, d time.Duration, wait bool) error {
	if !wait || d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func safeRecover(ctx context.Context, r Recoverer, id string, info ErrorInfo) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &plugins.PanicError{Value: p, Stack: string(debug.Stack())}
		}
	}()
	return r(ctx, id, info)
}

// ClearError drops the record of instanceID and cancels its pending auto-recovery
func (b *ErrorBoundary) ClearError(instanceID string) {
	b.mu.Lock()
	delete(b.errors, instanceID)
	if t, ok := b.timers[instanceID]; ok {
		t.Stop()
		delete(b.timers, instanceID)
	}
	b.mu.Unlock()
}

// Cancel stops the pending auto-recovery of instanceID without touching its record
func (b *ErrorBoundary) Cancel(instanceID string) {
	b.mu.Lock()
	if t, ok := b.timers[instanceID]; ok {
		t.Stop()
		delete(b.timers, instanceID)
	}
	b.mu.Unlock()
}

// ClearAllErrors drops every record and cancels every pending auto-recovery
func (b *ErrorBoundary) ClearAllErrors() {
	b.mu.Lock()
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	b.errors = make(map[string]*ErrorInfo)
	b.mu.Unlock()
}

// ErrorCount returns how many instances currently have a record
func (b *ErrorBoundary) ErrorCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.errors)
}

// HasError reports whether instanceID has a record
func (b *ErrorBoundary) HasError(instanceID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.errors[instanceID]
	return ok
}

// ErrorInfo returns a copy of the record of instanceID
func (b *ErrorBoundary) ErrorInfo(instanceID string) (ErrorInfo, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	info, ok := b.errors[instanceID]
	if !ok {
		return ErrorInfo{}, false
	}
	return *info, true
}

// GenerateErrorReport aggregates counts by error type and recovery tallies
func (b *ErrorBoundary) GenerateErrorReport() ErrorReport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rep := ErrorReport{
		GeneratedAt:       time.Now(),
		ActiveErrors:      len(b.errors),
		ByType:            make(map[string]int, len(b.typeCounts)),
		RecoverySuccesses: b.successes,
		RecoveryFailures:  b.failures,
	}
	for k, v := range b.typeCounts {
		rep.ByType[k] = v
	}
	for id, info := range b.errors {
		rep.Instances = append(rep.Instances, id)
		if info.Exhausted {
			rep.Exhausted = append(rep.Exhausted, id)
		}
	}
	sort.Strings(rep.Instances)
	sort.Strings(rep.Exhausted)
	return rep
}

// Close cancels pending and in-flight auto-recoveries
func (b *ErrorBoundary) Close() {
	b.cancel()
	b.mu.Lock()
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	b.mu.Unlock()
}

func stackOf(err error) string {
	var pe *plugins.PanicError
	if errors.As(err, &pe) {
		return pe.Stack
	}
	return ""
}
