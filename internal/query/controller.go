package query

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"

	"github.com/diogo/geminiworkshop/internal/api"
	apierrors "github.com/diogo/geminiworkshop/internal/errors"
	"github.com/diogo/geminiworkshop/internal/imaging"
	"github.com/diogo/geminiworkshop/internal/models"
	"github.com/diogo/geminiworkshop/internal/snapshot"
	"github.com/diogo/geminiworkshop/internal/state"
)

var schema = snapshot.MustCompileSchema(stateSchema)

// Controller runs one request at a time and publishes State snapshots
type Controller struct {
	gen     api.Generator
	model   models.Model
	variant Variant
	key     string
	store   *state.Store[State]

	saveMu    sync.Mutex // Guards snapshots
	snapshots snapshot.Store

	mu   sync.Mutex // Guards busy and gen
	busy bool
	// generation is bumped by Clear so a request started before it is dropped
	generation uint64
}

// Option configures a Controller
type Option func(*Controller)

// WithSnapshotStore persists every state change and restores from it on construction
func WithSnapshotStore(s snapshot.Store) Option {
	return func(c *Controller) {
		c.snapshots = s
	}
}

// WithSnapshotKey overrides the variant's default snapshot key
func WithSnapshotKey(key string) Option {
	return func(c *Controller) {
		if key != "" {
			c.key = key
		}
	}
}

// NewTextOnly creates the text-only controller
func NewTextOnly(gen api.Generator, model models.Model, opts ...Option) *Controller {
	return newController(VariantTextOnly, gen, model, opts...)
}

// NewTextImage creates the text+image controller
func NewTextImage(gen api.Generator, model models.Model, opts ...Option) *Controller {
	return newController(VariantTextImage, gen, model, opts...)
}

func newController(variant Variant, gen api.Generator, model models.Model, opts ...Option) *Controller {
	c := &Controller{
		gen:     gen,
		model:   model,
		variant: variant,
		key:     variant.Key(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.store = state.New(c.restore())
	return c
}

// restore loads the persisted state. A request cannot survive the process,
// so a restored loading flag is dropped.
func (c *Controller) restore() State {
	var s State
	if c.snapshots == nil {
		return s
	}
	ok, err := snapshot.Restore(c.snapshots, c.key, schema, &s)
	if err != nil {
		ancli.PrintWarn(fmt.Sprintf("discarding saved %s state: %v\n", c.variant, err))
		return State{}
	}
	if !ok {
		return State{}
	}
	s.IsLoading = false
	return s
}

// Variant returns the controller flavour
func (c *Controller) Variant() Variant {
	return c.variant
}

// Model returns the model requests are sent to
func (c *Controller) Model() models.Model {
	return c.model
}

// UpdateInput replaces the input text
func (c *Controller) UpdateInput(text string) {
	c.publish(func(s State) State {
		s.InputText = text
		return s
	})
}

// Submit sends the current input. It blocks until the request resolves;
// the outcome is published as state, the only error returned is ErrBusy.
func (c *Controller) Submit(ctx context.Context) error {
	return c.run(ctx, c.store.Get().InputText, nil)
}

// SubmitWithImages sends text together with prepared image attachments
func (c *Controller) SubmitWithImages(ctx context.Context, text string, attachments []imaging.Attachment) error {
	return c.run(ctx, text, imaging.Blobs(attachments))
}

func (c *Controller) run(ctx context.Context, text string, images []models.Blob) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return apierrors.ErrBusy
	}
	c.busy = true
	gen := c.generation
	// Loading and a shown response are never published together
	c.publish(func(s State) State {
		s.IsLoading = true
		s.ResponseText = ""
		s.IsError = false
		return s
	})
	c.mu.Unlock()

	response, isError := c.ask(ctx, text, images)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		// Cleared while in flight
		return nil
	}
	c.busy = false
	c.publish(func(s State) State {
		s.ResponseText = response
		s.IsError = isError
		s.IsLoading = false
		return s
	})
	return nil
}

// ask returns the text to show and whether it describes a failure
func (c *Controller) ask(ctx context.Context, text string, images []models.Blob) (string, bool) {
	output, err := c.gen.GenerateContent(ctx, text, &api.GenerateOptions{
		Model:  c.model,
		Images: images,
	})
	if errors.Is(err, apierrors.ErrNoContent) {
		return NoAnswerText(text), false
	}
	if err != nil {
		return apierrors.Describe(err), true
	}
	return output.Text(), false
}

// NoAnswerText is shown when the model answered without any text
func NoAnswerText(query string) string {
	return fmt.Sprintf("I'm sorry, I don't know anything about \"%s\".", query)
}

// Clear resets the state to its initial value. A request still in flight
// is abandoned and its result dropped.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.busy = false
	c.publish(func(State) State {
		return State{}
	})
}

// Snapshot returns the current state
func (c *Controller) Snapshot() State {
	return c.store.Get()
}

// Subscribe streams state snapshots after every change
func (c *Controller) Subscribe() (<-chan State, func()) {
	return c.store.Subscribe()
}

// Save writes the current state to the snapshot store
func (c *Controller) Save() error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if c.snapshots == nil {
		return nil
	}
	return snapshot.Persist(c.snapshots, c.key, c.store.Get())
}

// Close saves the state one last time and detaches from the snapshot store,
// which the caller may close afterwards. A request still in flight keeps
// publishing to subscribers but is no longer persisted.
func (c *Controller) Close() error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if c.snapshots == nil {
		return nil
	}
	err := snapshot.Persist(c.snapshots, c.key, c.store.Get())
	c.snapshots = nil
	return err
}

func (c *Controller) publish(fn func(State) State) {
	c.store.Update(fn)
	if err := c.Save(); err != nil {
		ancli.PrintWarn(fmt.Sprintf("failed to save %s state: %v\n", c.variant, err))
	}
}
