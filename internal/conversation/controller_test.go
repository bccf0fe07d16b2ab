package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diogo/geminiworkshop/internal/api"
	apierrors "github.com/diogo/geminiworkshop/internal/errors"
	"github.com/diogo/geminiworkshop/internal/models"
)

// gatedReply returns a mock whose replies wait for release to be closed
func gatedReply(text string) (*api.MockGeminiClient, chan struct{}, chan struct{}) {
	started := make(chan struct{}, 8)
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

type fakeRecorder struct {
	mu       sync.Mutex
	turns    [][2]string
	restarts int
}

func (r *fakeRecorder) RecordTurn(userText, agentText, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, [2]string{userText, agentText})
	return nil
}

func (r *fakeRecorder) Restart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restarts++
}

func TestSubmit_Success(t *testing.T) {
	c := NewTurnController(api.NewMockReply("Hi there"), models.DefaultModel)

	if err := c.Submit(context.Background(), "Hello"); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	got := c.Snapshot()
	if got.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", got.Len())
	}
	want := []struct {
		author Author
		text   string
	}{
		{AuthorUser, "Hello"},
		{AuthorAgent, "Hi there"},
	}
	for i, w := range want {
		m := got.Messages[i]
		if m.Author != w.author || m.Text != w.text || m.Pending {
			t.Errorf("Messages[%d] = %+v, want {%s %q pending=false}", i, m, w.author, w.text)
		}
		if m.ID == "" {
			t.Errorf("Messages[%d] has no ID", i)
		}
	}
	if got.Status != StatusIdle {
		t.Errorf("Status = %v, want idle", got.Status)
	}
}

func TestSubmit_Failure(t *testing.T) {
	mock := &api.MockGeminiClient{Model: models.DefaultModel, GenerateContentErr: errors.New("timeout")}
	c := NewTurnController(mock, models.DefaultModel)

	if err := c.Submit(context.Background(), "Hello"); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	got := c.Snapshot()
	if got.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", got.Len())
	}
	if m := got.Messages[0]; m.Author != AuthorUser || m.Text != "Hello" || m.Pending {
		t.Errorf("Messages[0] = %+v", m)
	}
	if m := got.Messages[1]; m.Author != AuthorError || m.Text != "timeout" || m.Pending {
		t.Errorf("Messages[1] = %+v", m)
	}
	if len(c.History()) != 0 {
		t.Errorf("failed turn must not enter history, got %d entries", len(c.History()))
	}
}

func TestSubmit_EmptyErrorMessage(t *testing.T) {
	mock := &api.MockGeminiClient{Model: models.DefaultModel, GenerateContentErr: errors.New("")}
	c := NewTurnController(mock, models.DefaultModel)

	_ = c.Submit(context.Background(), "Hello")
	last, _ := c.Snapshot().Last()
	if last.Text != apierrors.UnknownErrorText {
		t.Errorf("error text = %q, want %q", last.Text, apierrors.UnknownErrorText)
	}
}

func TestSubmit_BlankIsNoop(t *testing.T) {
	mock := api.NewMockReply("unused")
	c := NewTurnController(mock, models.DefaultModel)

	for _, in := range []string{"", "   ", "\n\t"} {
		if err := c.Submit(context.Background(), in); err != nil {
			t.Errorf("Submit(%q) error: %v", in, err)
		}
	}
	if c.Snapshot().Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Snapshot().Len())
	}
	if mock.CallCount() != 0 {
		t.Errorf("capability called %d times", mock.CallCount())
	}
}

func TestSubmit_GrowsByTwo(t *testing.T) {
	calls := 0
	mock := &api.MockGeminiClient{
		Model: models.DefaultModel,
		GenerateFunc: func(ctx context.Context, prompt string, opts *api.GenerateOptions) (*models.ModelOutput, error) {
			calls++
			if calls%2 == 0 {
				return nil, apierrors.NewNetworkError("/x", errors.New("connection reset"))
			}
			return &models.ModelOutput{Candidates: []models.Candidate{{Text: "ok"}}}, nil
		},
	}
	c := NewTurnController(mock, models.DefaultModel)

	for i := 1; i <= 4; i++ {
		_ = c.Submit(context.Background(), "turn")
		if got := c.Snapshot().Len(); got != 2*i {
			t.Fatalf("after %d turns Len() = %d, want %d", i, got, 2*i)
		}
	}
}

func TestSubmit_HistoryCarriedToSecondTurn(t *testing.T) {
	mock := api.NewMockReply("Nice dogs!")
	c := NewTurnController(mock, models.ModelPro)

	_ = c.Submit(context.Background(), "Hello, I have 2 dogs in my house.")
	_ = c.Submit(context.Background(), "How many paws are in my house?")

	call, ok := mock.LastCall()
	if !ok {
		t.Fatal("no call recorded")
	}
	if len(call.History) != 2 {
		t.Fatalf("history = %d entries, want 2", len(call.History))
	}
	if call.History[0].Role != models.RoleUser || call.History[0].Text() != "Hello, I have 2 dogs in my house." {
		t.Errorf("history[0] = %+v", call.History[0])
	}
	if call.History[1].Role != models.RoleModel || call.History[1].Text() != "Nice dogs!" {
		t.Errorf("history[1] = %+v", call.History[1])
	}
	if call.Model != models.ModelPro {
		t.Errorf("model = %v", call.Model)
	}
}

func TestSubmit_BusyRejected(t *testing.T) {
	mock, started, release := gatedReply("first")
	c := NewTurnController(mock, models.DefaultModel)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "one") }()
	<-started

	snap := c.Snapshot()
	if snap.Status != StatusAwaitingResponse {
		t.Errorf("Status = %v, want awaiting_response", snap.Status)
	}
	if p, ok := snap.Pending(); !ok || p.Text != "one" {
		t.Errorf("Pending() = %+v, %v", p, ok)
	}

	if err := c.Submit(context.Background(), "two"); !errors.Is(err, apierrors.ErrBusy) {
		t.Errorf("second Submit() = %v, want ErrBusy", err)
	}
	if c.Snapshot().Len() != 1 {
		t.Errorf("busy rejection must not touch the transcript, Len() = %d", c.Snapshot().Len())
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Submit() error: %v", err)
	}
	if c.Snapshot().Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Snapshot().Len())
	}
}

func TestSubmit_AtMostOnePending(t *testing.T) {
	mock, started, release := gatedReply("ok")
	c := NewTurnController(mock, models.DefaultModel)

	updates, cancel := c.Subscribe()
	defer cancel()

	violations := make(chan int, 16)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		for conv := range updates {
			n := 0
			for _, m := range conv.Messages {
				if m.Pending {
					n++
				}
			}
			if n > 1 {
				violations <- n
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Submit(context.Background(), "racing")
		}()
	}
	<-started
	close(release)
	wg.Wait()
	cancel()
	<-watchDone

	select {
	case n := <-violations:
		t.Errorf("observed %d pending messages at once", n)
	default:
	}
	if mock.CallCount() < 1 {
		t.Error("expected at least one call")
	}
	if _, ok := c.Snapshot().Pending(); ok {
		t.Error("no message should remain pending")
	}
}

func TestReset(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewTurnController(api.NewMockReply("hi"), models.DefaultModel, WithRecorder(rec))
	_ = c.Submit(context.Background(), "hello")

	c.Reset()

	fresh := NewTurnController(api.NewMockReply("hi"), models.DefaultModel).Snapshot()
	got := c.Snapshot()
	if got.Len() != fresh.Len() || got.Status != fresh.Status {
		t.Errorf("Reset() = %+v, want %+v", got, fresh)
	}
	if len(c.History()) != 0 {
		t.Errorf("History() = %d entries after reset", len(c.History()))
	}
	if rec.restarts != 1 {
		t.Errorf("recorder restarts = %d", rec.restarts)
	}
}

func TestReset_DiscardsLateReply(t *testing.T) {
	mock, started, release := gatedReply("late")
	c := NewTurnController(mock, models.DefaultModel)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "before reset") }()
	<-started

	c.Reset()
	close(release)
	<-done

	if c.Snapshot().Len() != 0 {
		t.Errorf("late reply leaked into the new transcript: %+v", c.Snapshot().Messages)
	}
	if c.Snapshot().Status != StatusIdle {
		t.Errorf("Status = %v", c.Snapshot().Status)
	}
	if len(c.History()) != 0 {
		t.Errorf("late reply leaked into history")
	}
}

func TestRecorder_OnlySuccessfulTurns(t *testing.T) {
	rec := &fakeRecorder{}
	calls := 0
	mock := &api.MockGeminiClient{
		Model: models.DefaultModel,
		GenerateFunc: func(ctx context.Context, prompt string, opts *api.GenerateOptions) (*models.ModelOutput, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("boom")
			}
			return &models.ModelOutput{Candidates: []models.Candidate{{Text: "reply"}}}, nil
		},
	}
	c := NewTurnController(mock, models.DefaultModel, WithRecorder(rec))

	_ = c.Submit(context.Background(), "a")
	_ = c.Submit(context.Background(), "b")
	_ = c.Submit(context.Background(), "c")

	if len(rec.turns) != 2 {
		t.Fatalf("recorded %d turns, want 2", len(rec.turns))
	}
	if rec.turns[1] != [2]string{"c", "reply"} {
		t.Errorf("turns[1] = %v", rec.turns[1])
	}
}

func TestSubscribe_SeesPendingThenResolved(t *testing.T) {
	mock, started, release := gatedReply("done")
	c := NewTurnController(mock, models.DefaultModel)
	updates, cancel := c.Subscribe()
	defer cancel()

	go func() { _ = c.Submit(context.Background(), "q") }()
	<-started

	select {
	case conv := <-updates:
		if p, ok := conv.Pending(); !ok || p.Text != "q" {
			t.Errorf("first snapshot should hold the pending message, got %+v", conv)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}

	close(release)
	select {
	case conv := <-updates:
		if conv.Len() != 2 || conv.Status != StatusIdle {
			t.Errorf("resolved snapshot = %+v", conv)
		}
	case <-time.After(time.Second):
		t.Fatal("resolution not published")
	}
}

func TestSnapshot_Immutable(t *testing.T) {
	c := NewTurnController(api.NewMockReply("x"), models.DefaultModel)
	_ = c.Submit(context.Background(), "first")
	before := c.Snapshot()

	_ = c.Submit(context.Background(), "second")
	if before.Len() != 2 {
		t.Errorf("earlier snapshot changed length to %d", before.Len())
	}
}

func TestResume(t *testing.T) {
	mock := api.NewMockReply("Still eight.")
	c := NewTurnController(mock, models.DefaultModel)
	saved := []models.Content{
		models.TextContent(models.RoleUser, "I have 2 dogs."),
		models.TextContent(models.RoleModel, "That is 8 paws."),
	}

	if err := c.Resume(saved); err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	snap := c.Snapshot()
	if snap.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", snap.Len())
	}
	if snap.Messages[0].Author != AuthorUser || snap.Messages[1].Author != AuthorAgent {
		t.Errorf("authors = %s, %s", snap.Messages[0].Author, snap.Messages[1].Author)
	}
	if snap.Messages[1].Text != "That is 8 paws." || snap.Messages[0].Pending {
		t.Errorf("messages = %+v", snap.Messages)
	}

	if err := c.Submit(context.Background(), "And now?"); err != nil {
		t.Fatal(err)
	}
	call, _ := mock.LastCall()
	if len(call.History) != 2 || call.History[1].Text() != "That is 8 paws." {
		t.Errorf("sent history = %+v", call.History)
	}
	if c.Snapshot().Len() != 4 {
		t.Errorf("Len() = %d, want 4", c.Snapshot().Len())
	}
}

func TestResume_BusyRejected(t *testing.T) {
	mock, started, release := gatedReply("ok")
	c := NewTurnController(mock, models.DefaultModel)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "one") }()
	<-started

	if err := c.Resume(nil); !errors.Is(err, apierrors.ErrBusy) {
		t.Errorf("Resume() = %v, want ErrBusy", err)
	}
	close(release)
	<-done
	if c.Snapshot().Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Snapshot().Len())
	}
}
