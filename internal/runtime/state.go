// Package runtime owns the state of a mounted sign-up page: the four field
// values and the submission phase, and the transitions between them.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/livetemplate/signup"
	"github.com/livetemplate/signup/internal/api"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSubmitDisabled is returned when submit is triggered while the button
	// is disabled. Nothing is sent.
	ErrSubmitDisabled = errors.New("submit is disabled")
	// ErrClosed is returned by actions on an unmounted page.
	ErrClosed = errors.New("page is closed")
)

// GenericFailureText is shown by the reset failure policy.
const GenericFailureText = "Sign up failed, please try again later."

// Store is the interface for page state objects that handle actions.
type Store interface {
	HandleAction(action string, data map[string]interface{}) error
	// Close releases resources held by the page.
	Close() error
}

// Registrar sends one sign-up request.
type Registrar interface {
	Register(ctx context.Context, payload signup.Payload) error
}

// FailurePolicy decides what a failure other than a validation rejection
// does to the page.
type FailurePolicy string

const (
	// FailureStall leaves the page in Submitting with the spinner shown.
	FailureStall FailurePolicy = "stall"
	// FailureReset returns to Idle with GenericFailureText.
	FailureReset FailurePolicy = "reset"
)

// ParseFailurePolicy accepts "stall", "reset" or "" (stall).
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailureStall:
		return FailureStall, nil
	case FailureReset:
		return FailureReset, nil
	}
	return "", fmt.Errorf("unknown failure policy %q (want %q or %q)", s, FailureStall, FailureReset)
}

// Option configures a Controller.
type Option func(*Controller)

// WithFailurePolicy sets the policy for non-validation failures.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

// WithLogger sets the logger transitions are reported to.
func WithLogger(l *logrus.Entry) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// Controller is the state of one mounted page. All transitions happen under
// one lock and each is published to subscribers as a single Snapshot.
type Controller struct {
	mu       sync.Mutex
	values   signup.Values
	phase    Phase
	revision uint64
	closed   bool

	registrar Registrar
	policy    FailurePolicy
	log       *logrus.Entry

	// pubMu is taken before mu is released so snapshots reach subscribers
	// in revision order.
	pubMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Store = (*Controller)(nil)

// New mounts a page with empty fields in Idle.
func New(registrar Registrar, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		phase:     Idle{Errors: signup.FieldErrors{}},
		registrar: registrar,
		policy:    FailureStall,
		log:       logrus.WithField("component", "runtime"),
		subs:      make(map[int]func(Snapshot)),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{Values: c.values, Phase: c.phase, Revision: c.revision}
}

// Subscribe registers fn to receive every snapshot published after a
// transition. fn must not call back into the controller's mutating methods.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.pubMu.Lock()
		defer c.pubMu.Unlock()
		delete(c.subs, id)
	}
}

// commitLocked bumps the revision and publishes. It must be called with
// c.mu held and releases it.
func (c *Controller) commitLocked(event string) Snapshot {
	c.revision++
	snap := c.snapshotLocked()
	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()

	if c.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		c.log.WithFields(logrus.Fields{
			"event":    event,
			"phase":    snap.Phase.Name(),
			"revision": snap.Revision,
		}).Debugf("transition\n%s", spew.Sdump(snap.Redacted()))
	}
	for _, fn := range c.subs {
		fn(snap)
	}
	return snap
}

// Edit sets one field. It never touches errors or the phase. Once the page
// has succeeded the form is gone and edits are ignored.
func (c *Controller) Edit(field signup.Field, value string) error {
	if _, err := signup.ParseField(string(field)); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if _, done := c.phase.(Succeeded); done {
		c.mu.Unlock()
		return nil
	}
	c.values = c.values.With(field, value)
	c.commitLocked("edit:" + string(field))
	return nil
}

// begin performs the guarded Idle -> Submitting transition and returns the
// payload to send. With track set the request is counted in c.wg before the
// lock is released, so Close waits for it.
func (c *Controller) begin(track bool) (signup.Payload, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return signup.Payload{}, ErrClosed
	}
	snap := c.snapshotLocked()
	if !snap.SubmitEnabled() {
		c.mu.Unlock()
		return signup.Payload{}, ErrSubmitDisabled
	}
	if track {
		c.wg.Add(1)
	}
	payload := c.values.Payload()
	c.phase = Submitting{Errors: snap.Errors()}
	c.commitLocked("submit")
	return payload, nil
}

// resolve applies the outcome of a submission as one transition.
func (c *Controller) resolve(err error) {
	c.mu.Lock()
	if _, ok := c.phase.(Submitting); !ok {
		c.mu.Unlock()
		return
	}

	var vErr *api.ValidationError
	switch {
	case err == nil:
		c.phase = Succeeded{}
		c.commitLocked("resolve:success")
	case errors.As(err, &vErr):
		c.phase = Idle{Errors: vErr.Errors.Clone()}
		c.commitLocked("resolve:validation")
	case c.closed:
		c.mu.Unlock()
		c.log.WithError(err).Debug("sign-up request abandoned")
	case c.policy == FailureReset:
		c.log.WithError(err).Warn("sign-up request failed, returning to idle")
		c.phase = Idle{Errors: signup.FieldErrors{}, Failure: GenericFailureText}
		c.commitLocked("resolve:failure")
	case errors.Is(err, context.Canceled):
		c.mu.Unlock()
		c.log.WithError(err).Debug("sign-up request cancelled, page left submitting")
	default:
		c.mu.Unlock()
		c.log.WithError(err).Warn("sign-up request failed, page left submitting")
	}
}

// Submit sends the form and waits for the outcome. It returns
// ErrSubmitDisabled when the button is disabled, otherwise the error the
// registrar returned (nil on success) after the page has been updated.
func (c *Controller) Submit(ctx context.Context) error {
	payload, err := c.begin(false)
	if err != nil {
		return err
	}
	err = c.registrar.Register(ctx, payload)
	c.resolve(err)
	return err
}

// SubmitAsync starts a submission and returns once the page is Submitting.
// The outcome is published to subscribers.
func (c *Controller) SubmitAsync() error {
	payload, err := c.begin(true)
	if err != nil {
		return err
	}
	go func() {
		defer c.wg.Done()
		c.resolve(c.registrar.Register(c.ctx, payload))
	}()
	return nil
}

// Close unmounts the page: subscribers are dropped and any outstanding
// request is abandoned.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.pubMu.Lock()
	c.subs = make(map[int]func(Snapshot))
	c.pubMu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}
