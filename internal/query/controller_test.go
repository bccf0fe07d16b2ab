package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diogo/geminiworkshop/internal/api"
	apierrors "github.com/diogo/geminiworkshop/internal/errors"
	"github.com/diogo/geminiworkshop/internal/imaging"
	"github.com/diogo/geminiworkshop/internal/models"
	"github.com/diogo/geminiworkshop/internal/snapshot"
)

func gated(text string) (*api.MockGeminiClient, chan struct{}, chan struct{}) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	mock := &api.MockGeminiClient{
		Model: models.DefaultModel,
		GenerateFunc: func(ctx context.Context, prompt string, opts *api.GenerateOptions) (*models.ModelOutput, error) {
			started <- struct{}{}
			<-release
			return &models.ModelOutput{Candidates: []models.Candidate{{Text: text}}}, nil
		},
	}
	return mock, started, release
}

func TestSubmit_Success(t *testing.T) {
	mock := api.NewMockReply("Go is a programming language.")
	c := NewTextOnly(mock, models.ModelFlashLite)

	c.UpdateInput("What is Go?")
	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	want := State{InputText: "What is Go?", ResponseText: "Go is a programming language."}
	if got := c.Snapshot(); got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
	call, _ := mock.LastCall()
	if call.Prompt != "What is Go?" || call.Model != models.ModelFlashLite || call.Images != 0 {
		t.Errorf("call = %+v", call)
	}
}

func TestSubmit_Failure(t *testing.T) {
	mock := &api.MockGeminiClient{
		Model:              models.DefaultModel,
		GenerateContentErr: apierrors.NewAPIError(503, "/x", "model overloaded", ""),
	}
	c := NewTextOnly(mock, models.DefaultModel)
	c.UpdateInput("hi")
	_ = c.Submit(context.Background())

	got := c.Snapshot()
	if !got.IsError || got.IsLoading {
		t.Errorf("flags = %+v", got)
	}
	if got.ResponseText != "model overloaded (HTTP 503)" {
		t.Errorf("ResponseText = %q", got.ResponseText)
	}
}

func TestSubmit_UnknownError(t *testing.T) {
	mock := &api.MockGeminiClient{Model: models.DefaultModel, GenerateContentErr: errors.New("")}
	c := NewTextOnly(mock, models.DefaultModel)
	_ = c.Submit(context.Background())

	if got := c.Snapshot().ResponseText; got != apierrors.UnknownErrorText {
		t.Errorf("ResponseText = %q", got)
	}
}

func TestSubmit_NoContentApology(t *testing.T) {
	mock := &api.MockGeminiClient{Model: models.DefaultModel, GenerateContentErr: apierrors.NewEmptyError("")}
	c := NewTextOnly(mock, models.DefaultModel)
	c.UpdateInput("quux")
	_ = c.Submit(context.Background())

	got := c.Snapshot()
	if got.ResponseText != `I'm sorry, I don't know anything about "quux".` {
		t.Errorf("ResponseText = %q", got.ResponseText)
	}
	if got.IsError {
		t.Error("an empty answer is not reported as an error")
	}
}

func TestSubmit_ErrorThenSuccessClearsFlag(t *testing.T) {
	calls := 0
	mock := &api.MockGeminiClient{
		Model: models.DefaultModel,
		GenerateFunc: func(ctx context.Context, prompt string, opts *api.GenerateOptions) (*models.ModelOutput, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("boom")
			}
			return &models.ModelOutput{Candidates: []models.Candidate{{Text: "fine"}}}, nil
		},
	}
	c := NewTextOnly(mock, models.DefaultModel)
	_ = c.Submit(context.Background())
	_ = c.Submit(context.Background())

	got := c.Snapshot()
	if got.IsError || got.ResponseText != "fine" {
		t.Errorf("Snapshot() = %+v", got)
	}
}

func TestSubmitWithImages(t *testing.T) {
	mock := api.NewMockReply("A cat.")
	c := NewTextImage(mock, models.ModelPro)

	atts := []imaging.Attachment{
		{Name: "a.jpg", MIMEType: "image/jpeg", Data: []byte{1}},
		{Name: "b.png", MIMEType: "image/png", Data: []byte{2}},
	}
	if err := c.SubmitWithImages(context.Background(), "What is this?", atts); err != nil {
		t.Fatal(err)
	}

	call, _ := mock.LastCall()
	if call.Prompt != "What is this?" || call.Images != 2 {
		t.Errorf("call = %+v", call)
	}
	if c.Snapshot().ResponseText != "A cat." {
		t.Errorf("ResponseText = %q", c.Snapshot().ResponseText)
	}
}

func TestLoadingBetweenSubmitAndResolution(t *testing.T) {
	mock, started, release := gated("done")
	c := NewTextOnly(mock, models.DefaultModel)
	c.UpdateInput("q")

	if c.Snapshot().IsLoading {
		t.Fatal("should not be loading before submit")
	}

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()
	<-started

	if !c.Snapshot().IsLoading {
		t.Error("should be loading while in flight")
	}
	if err := c.Submit(context.Background()); !errors.Is(err, apierrors.ErrBusy) {
		t.Errorf("second Submit() = %v, want ErrBusy", err)
	}

	close(release)
	<-done
	got := c.Snapshot()
	if got.IsLoading || got.IsError || got.ResponseText != "done" {
		t.Errorf("after resolution = %+v", got)
	}
	if mock.CallCount() != 1 {
		t.Errorf("CallCount() = %d", mock.CallCount())
	}
}

func TestLoadingHidesPreviousResponse(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	calls := 0
	mock := &api.MockGeminiClient{
		GenerateFunc: func(ctx context.Context, prompt string, opts *api.GenerateOptions) (*models.ModelOutput, error) {
			calls++
			if calls > 1 {
				started <- struct{}{}
				<-release
			}
			return &models.ModelOutput{Candidates: []models.Candidate{{Text: "answer " + prompt}}}, nil
		},
	}
	store := snapshot.NewMemoryStore()
	c := NewTextOnly(mock, models.DefaultModel, WithSnapshotStore(store))

	c.UpdateInput("q1")
	if err := c.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.Snapshot().ResponseText != "answer q1" {
		t.Fatalf("first answer = %+v", c.Snapshot())
	}

	ch, cancel := c.Subscribe()
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()

	select {
	case got := <-ch:
		want := State{InputText: "q1", IsLoading: true}
		if got != want {
			t.Errorf("in-flight state = %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("no loading state published")
	}

	<-started
	var saved State
	if _, err := snapshot.Restore(store, TextOnlyStateKey, schema, &saved); err != nil {
		t.Fatal(err)
	}
	if saved.ResponseText != "" || !saved.IsLoading {
		t.Errorf("persisted in-flight state = %+v", saved)
	}

	close(release)
	<-done
	if c.Snapshot().ResponseText != "answer q1" || c.Snapshot().IsLoading {
		t.Errorf("after resolution = %+v", c.Snapshot())
	}
}

// closingStore fails saves once closed, like the sqlite store
type closingStore struct {
	*snapshot.MemoryStore
	mu        sync.Mutex
	closed    bool
	lateSaves int
}

func (s *closingStore) Save(key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.lateSaves++
		return errors.New("sql: database is closed")
	}
	return s.MemoryStore.Save(key, payload)
}

func (s *closingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestClose_StopsPersistingInFlightResult(t *testing.T) {
	mock, started, release := gated("late")
	store := &closingStore{MemoryStore: snapshot.NewMemoryStore()}
	c := NewTextOnly(mock, models.DefaultModel, WithSnapshotStore(store))
	c.UpdateInput("q")

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()
	<-started

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	_ = store.Close()

	close(release)
	<-done
	if c.Snapshot().ResponseText != "late" {
		t.Errorf("subscribers should still see the result, got %+v", c.Snapshot())
	}
	if store.lateSaves != 0 {
		t.Errorf("saves after Close = %d, want 0", store.lateSaves)
	}
	if err := c.Save(); err != nil {
		t.Errorf("Save() after Close = %v, want nil", err)
	}
}

func TestClear(t *testing.T) {
	c := NewTextOnly(api.NewMockReply("r"), models.DefaultModel)
	c.UpdateInput("x")
	c.Clear()

	if got := c.Snapshot(); got != (State{}) {
		t.Errorf("Snapshot() = %+v, want initial state", got)
	}
	fresh := NewTextOnly(api.NewMockReply("r"), models.DefaultModel)
	if c.Snapshot() != fresh.Snapshot() {
		t.Error("cleared controller differs from a fresh one")
	}
}

func TestClear_DropsInFlightResult(t *testing.T) {
	mock, started, release := gated("stale")
	c := NewTextOnly(mock, models.DefaultModel)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()
	<-started

	c.Clear()
	if c.Snapshot() != (State{}) {
		t.Errorf("Snapshot() after Clear = %+v", c.Snapshot())
	}

	close(release)
	<-done
	if c.Snapshot() != (State{}) {
		t.Errorf("stale result published: %+v", c.Snapshot())
	}
}

func TestSubscribe(t *testing.T) {
	c := NewTextOnly(api.NewMockReply("r"), models.DefaultModel)
	updates, cancel := c.Subscribe()
	defer cancel()

	c.UpdateInput("typed")
	select {
	case s := <-updates:
		if s.InputText != "typed" {
			t.Errorf("published %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("no update published")
	}
}

func TestRestore(t *testing.T) {
	store := snapshot.NewMemoryStore()

	first := NewTextOnly(api.NewMockReply("saved answer"), models.DefaultModel, WithSnapshotStore(store))
	first.UpdateInput("saved question")
	_ = first.Submit(context.Background())

	second := NewTextOnly(api.NewMockReply("unused"), models.DefaultModel, WithSnapshotStore(store))
	want := State{InputText: "saved question", ResponseText: "saved answer"}
	if got := second.Snapshot(); got != want {
		t.Errorf("restored %+v, want %+v", got, want)
	}

	// Variants do not share state
	img := NewTextImage(api.NewMockReply("unused"), models.DefaultModel, WithSnapshotStore(store))
	if img.Snapshot() != (State{}) {
		t.Errorf("text+image restored %+v", img.Snapshot())
	}
}

func TestRestore_DropsLoadingFlag(t *testing.T) {
	store := snapshot.NewMemoryStore()
	_ = snapshot.Persist(store, TextImageStateKey, State{InputText: "in flight", IsLoading: true})

	c := NewTextImage(api.NewMockReply("x"), models.DefaultModel, WithSnapshotStore(store))
	got := c.Snapshot()
	if got.IsLoading {
		t.Error("restored state must not be loading")
	}
	if got.InputText != "in flight" {
		t.Errorf("InputText = %q", got.InputText)
	}
}

func TestRestore_InvalidPayload(t *testing.T) {
	store := snapshot.NewMemoryStore()
	_ = store.Save(TextOnlyStateKey, []byte(`{"input_text": 42}`))

	c := NewTextOnly(api.NewMockReply("x"), models.DefaultModel, WithSnapshotStore(store))
	if c.Snapshot() != (State{}) {
		t.Errorf("invalid snapshot should yield the initial state, got %+v", c.Snapshot())
	}
}

func TestWithSnapshotKey(t *testing.T) {
	store := snapshot.NewMemoryStore()
	c := NewTextOnly(api.NewMockReply("x"), models.DefaultModel, WithSnapshotStore(store), WithSnapshotKey("custom"))
	c.UpdateInput("hello")

	if _, ok, _ := store.Load("custom"); !ok {
		t.Error("state not saved under the custom key")
	}
	if _, ok, _ := store.Load(TextOnlyStateKey); ok {
		t.Error("state saved under the default key")
	}
}

func TestVariant(t *testing.T) {
	if VariantTextOnly.Key() != "text_only_state_key" || VariantTextImage.Key() != "text_image_state_key" {
		t.Error("unexpected snapshot keys")
	}
	if NewTextImage(nil, models.DefaultModel).Variant() != VariantTextImage {
		t.Error("wrong variant")
	}
}
