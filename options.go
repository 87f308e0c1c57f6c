package biscuit

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/dalek-auth/biscuit/v2/datalog"
	"github.com/dalek-auth/biscuit/v2/sig"
)

// config holds the tunables shared by block minting/appending and
// authorization, matching the teacher's functional-options style
// (datalog.WorldOption, sig.GenerateKeypair's seed argument).
type config struct {
	rng           io.Reader
	nextKeyAlgo   sig.Algorithm
	rootKeyID     *uint32
	maxFacts      int
	maxIterations int
	maxDuration   time.Duration
	cancel        *CancelHandle
}

func defaultConfig() config {
	return config{
		rng:           rand.Reader,
		nextKeyAlgo:   sig.Ed25519,
		maxFacts:      1000,
		maxIterations: 100,
		maxDuration:   time.Millisecond,
	}
}

// Option configures a BiscuitBuilder.Build, Biscuit.Append or
// Authorizer.Authorize call.
type Option func(*config)

// WithRandom supplies the byte source random nonces (key seeds) are
// drawn from; if never set, a platform RNG is used (§5).
func WithRandom(rng io.Reader) Option {
	return func(c *config) { c.rng = rng }
}

// WithNextKeyAlgorithm selects the signature scheme used for the key
// a block commits to for its successor. Defaults to Ed25519.
func WithNextKeyAlgorithm(algo sig.Algorithm) Option {
	return func(c *config) { c.nextKeyAlgo = algo }
}

// WithRootKeyID tags the token with the identifier of the root key it
// should be verified against, letting a verifier serving several root
// keys pick the right one from RootKeyProvider (§6 "root_key_id").
func WithRootKeyID(id uint32) Option {
	return func(c *config) { c.rootKeyID = &id }
}

// WithMaxFacts bounds the authorizer's fact set size (§4.C7).
func WithMaxFacts(n int) Option {
	return func(c *config) { c.maxFacts = n }
}

// WithMaxIterations bounds the number of semi-naive evaluation rounds.
func WithMaxIterations(n int) Option {
	return func(c *config) { c.maxIterations = n }
}

// WithMaxDuration bounds the wall-clock budget of one evaluation.
func WithMaxDuration(d time.Duration) Option {
	return func(c *config) { c.maxDuration = d }
}

// WithCancel installs a CancelHandle an Authorizer.Authorize call
// consults alongside its deadline, letting a caller abort evaluation
// from another goroutine (§5 "Cancellation is cooperative").
func WithCancel(h *CancelHandle) Option {
	return func(c *config) { c.cancel = h }
}

func newConfig(opts ...Option) config {
	c := defaultConfig()
	for _, o := range opts {
		o(&c)
	}
	return c
}

func (c config) worldOptions() []datalog.WorldOption {
	opts := []datalog.WorldOption{
		datalog.WithMaxFacts(c.maxFacts),
		datalog.WithMaxIterations(c.maxIterations),
		datalog.WithMaxDuration(c.maxDuration),
	}
	if c.cancel != nil {
		opts = append(opts, datalog.WithCancel(c.cancel.Done()))
	}
	return opts
}

// CancelHandle is a cooperative cancellation flag an authorizer
// consults at the same points it checks its deadline, surfacing
// Timeout (§5 "Cancellation is cooperative").
type CancelHandle struct {
	cancelled chan struct{}
}

// NewCancelHandle returns a handle that has not yet been cancelled.
func NewCancelHandle() *CancelHandle {
	return &CancelHandle{cancelled: make(chan struct{})}
}

// Cancel requests that any authorization in progress stop at its next
// check point. Safe to call multiple times or concurrently.
func (h *CancelHandle) Cancel() {
	defer func() { recover() }()
	close(h.cancelled)
}

// Cancelled reports whether Cancel has been called.
func (h *CancelHandle) Cancelled() bool {
	select {
	case <-h.cancelled:
		return true
	default:
		return false
	}
}

// Done returns the channel closed by Cancel, usable in a select
// alongside a context deadline.
func (h *CancelHandle) Done() <-chan struct{} { return h.cancelled }
