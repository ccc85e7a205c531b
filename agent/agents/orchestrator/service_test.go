package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/agents/specialist"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	nodex "github.com/tanpawarit/Chative-Dealership-Assistant/agent/nodes/orchestrator"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/router"
	statex "github.com/tanpawarit/Chative-Dealership-Assistant/agent/state"
)

type fakeStore struct {
	mu        sync.Mutex
	loadState *statex.SessionState
	loadErr   error
	saveErr   error
	saved     []*statex.SessionState
}

func (f *fakeStore) Load(ctx context.Context, sessionID string) (*statex.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.loadState == nil {
		return nil, statex.ErrStateNotFound
	}
	return cloneSessionState(f.loadState), nil
}

func (f *fakeStore) Save(ctx context.Context, st *statex.SessionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, cloneSessionState(st))
	f.loadState = cloneSessionState(st)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, sessionID string) error {
	return nil
}

func (f *fakeStore) lastSaved(t *testing.T) *statex.SessionState {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		t.Fatalf("expected at least one save")
	}
	return f.saved[len(f.saved)-1]
}

func cloneSessionState(in *statex.SessionState) *statex.SessionState {
	if in == nil {
		return nil
	}
	out := *in
	out.Turns = append([]statex.Turn(nil), in.Turns...)
	if in.Appointment.RequestedAt != nil {
		at := *in.Appointment.RequestedAt
		out.Appointment.RequestedAt = &at
	}
	return &out
}

type fakeRouter struct {
	persona string
	err     error
}

func (f *fakeRouter) Route(ctx context.Context, st *statex.SessionState, msg contractx.InboundMessage) (router.Decision, error) {
	if f.err != nil {
		return router.Decision{}, f.err
	}
	return router.Decision{Persona: f.persona, Reason: router.ReasonFrontDesk}, nil
}

func (f *fakeRouter) Policy() router.Policy { return router.PolicyFrontDesk }

type fakeRunner struct {
	mu        sync.Mutex
	responses []specialist.Result
	err       error
	calls     []specialist.Request
}

func (f *fakeRunner) Run(ctx context.Context, req specialist.Request) (specialist.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return specialist.Result{}, f.err
	}
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		return specialist.Result{}, fmt.Errorf("no runner response left at call=%d", len(f.calls))
	}
	res := f.responses[idx]
	if res.Persona == "" {
		res.Persona = req.Persona
	}
	return res, nil
}

// slowTicketRunner stands in for a persona whose ticket tool takes a while.
// It tracks how many runs overlap.
type slowTicketRunner struct {
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	tickets  atomic.Int32
}

func (s *slowTicketRunner) Run(ctx context.Context, req specialist.Request) (specialist.Result, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	// only create one ticket per conversation
	already := false
	for _, turn := range req.Session.Turns {
		for _, inv := range turn.Tools {
			if inv.Tool == "create_ticket" {
				already = true
			}
		}
	}
	var tools []statex.ToolInvocation
	if !already {
		time.Sleep(s.delay)
		s.tickets.Add(1)
		tools = append(tools, statex.ToolInvocation{Tool: "create_ticket", Status: "success", Output: "ticket created"})
	}
	return specialist.Result{
		Persona: req.Persona,
		Reply:   "Your request is logged.",
		Outcome: specialist.OutcomeReplied,
		Tools:   tools,
	}, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)
}

func newTestOrchestrator(t *testing.T, store statex.Store, r router.Router, runner nodex.PersonaRunner, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithClock(fixedNow)}, opts...)
	o, err := New(store, r, runner, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func TestHandleTurnInvalidInput(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	o := newTestOrchestrator(t, &fakeStore{}, &fakeRouter{persona: "front_desk"}, runner)

	_, err := o.HandleTurn(context.Background(), contractx.InboundMessage{SessionID: "   ", Text: "hello"})
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}

	_, err = o.HandleTurn(context.Background(), contractx.InboundMessage{SessionID: "s1", Text: "   "})
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("expected no runner calls, got %d", len(runner.calls))
	}
}

func TestHandleTurnDirectReply(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	runner := &fakeRunner{responses: []specialist.Result{
		{Reply: "We open at 9am Monday to Saturday.", Outcome: specialist.OutcomeReplied},
	}}
	o := newTestOrchestrator(t, store, &fakeRouter{persona: "front_desk"}, runner)

	out, err := o.HandleTurn(context.Background(), contractx.InboundMessage{
		SessionID: " session-1 ",
		Text:      "what are your hours",
		Channel:   contractx.ChannelSMS,
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if out.SessionID != "session-1" || out.Persona != "front_desk" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if out.Reply != "We open at 9am Monday to Saturday." {
		t.Fatalf("unexpected reply: %q", out.Reply)
	}

	saved := store.lastSaved(t)
	if saved.Channel != string(contractx.ChannelSMS) {
		t.Fatalf("expected channel sms, got %q", saved.Channel)
	}
	if saved.ActivePersona != "front_desk" {
		t.Fatalf("expected active persona front_desk, got %q", saved.ActivePersona)
	}
	if len(saved.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(saved.Turns))
	}
	if saved.Turns[0].Speaker != statex.SpeakerUser || saved.Turns[1].Persona != "front_desk" {
		t.Fatalf("unexpected turns: %+v", saved.Turns)
	}
	if runner.calls[0].TurnID == "" {
		t.Fatalf("expected turn id to be set")
	}
	if !runner.calls[0].At.Equal(fixedNow()) {
		t.Fatalf("expected turn time to default to now, got %s", runner.calls[0].At)
	}
}

func TestHandleTurnDelegates(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	runner := &fakeRunner{responses: []specialist.Result{
		{TransferTo: "product_agent", Outcome: specialist.OutcomeTransferred},
		{
			Reply:   "We have 3 Accords in stock.",
			Outcome: specialist.OutcomeReplied,
			Tools:   []statex.ToolInvocation{{Tool: "search_products", Status: "success", Output: "Found 3 products"}},
		},
	}}
	o := newTestOrchestrator(t, store, &fakeRouter{persona: "front_desk"}, runner)

	out, err := o.HandleTurn(context.Background(), contractx.InboundMessage{SessionID: "s1", Text: "any accords?"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if out.Persona != "product_agent" {
		t.Fatalf("expected product_agent to answer, got %q", out.Persona)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected 2 runner calls, got %d", len(runner.calls))
	}
	if runner.calls[1].Persona != "product_agent" {
		t.Fatalf("expected delegate run, got %q", runner.calls[1].Persona)
	}

	saved := store.lastSaved(t)
	if saved.ActivePersona != "product_agent" {
		t.Fatalf("expected active persona product_agent, got %q", saved.ActivePersona)
	}
	last := saved.Turns[len(saved.Turns)-1]
	if len(last.Tools) != 1 || last.Tools[0].Tool != "search_products" {
		t.Fatalf("expected tool invocations on assistant turn, got %+v", last.Tools)
	}
}

func TestHandleTurnDelegationIsOneLevelDeep(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{responses: []specialist.Result{
		{TransferTo: "product_agent", Outcome: specialist.OutcomeTransferred},
		{TransferTo: "faq_agent", Outcome: specialist.OutcomeTransferred},
	}}
	o := newTestOrchestrator(t, &fakeStore{}, &fakeRouter{persona: "front_desk"}, runner)

	out, err := o.HandleTurn(context.Background(), contractx.InboundMessage{SessionID: "s1", Text: "hi"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected exactly 2 runner calls, got %d", len(runner.calls))
	}
	if out.Reply != specialist.PolicyViolationReply {
		t.Fatalf("expected policy violation reply, got %q", out.Reply)
	}
}

func TestHandleTurnMergesInboundCustomer(t *testing.T) {
	t.Parallel()

	store := &fakeStore{loadState: &statex.SessionState{
		SessionID: "s1",
		Channel:   "web",
		Customer:  statex.CustomerFields{Name: "Dana", Email: "dana@example.com"},
	}}
	runner := &fakeRunner{responses: []specialist.Result{
		{Reply: "Thanks Dana.", Outcome: specialist.OutcomeReplied},
	}}
	o := newTestOrchestrator(t, store, &fakeRouter{persona: "faq_agent"}, runner)

	_, err := o.HandleTurn(context.Background(), contractx.InboundMessage{
		SessionID: "s1",
		Text:      "hello",
		Customer:  contractx.CustomerInfo{Name: "", Email: "n/a", Phone: "601-555-0100"},
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	saved := store.lastSaved(t)
	if saved.Customer.Name != "Dana" || saved.Customer.Email != "dana@example.com" {
		t.Fatalf("known fields regressed: %+v", saved.Customer)
	}
	if saved.Customer.Phone == "" {
		t.Fatalf("expected phone to be merged")
	}
	if runner.calls[0].Session.Customer.Phone == "" {
		t.Fatalf("expected runner to see merged phone")
	}
}

func TestHandleTurnRunnerErrorSkipsSave(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	runner := &fakeRunner{err: fmt.Errorf("%w: upstream 502", contractx.ErrModelInvoke)}
	o := newTestOrchestrator(t, store, &fakeRouter{persona: "front_desk"}, runner)

	_, err := o.HandleTurn(context.Background(), contractx.InboundMessage{SessionID: "s1", Text: "hi"})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatalf("expected no save, got %d", len(store.saved))
	}
	if o.locker.Held("s1") {
		t.Fatalf("expected session lock released after failure")
	}
}

func TestHandleTurnSaveError(t *testing.T) {
	t.Parallel()

	saveErr := errors.New("redis down")
	runner := &fakeRunner{responses: []specialist.Result{{Reply: "ok", Outcome: specialist.OutcomeReplied}}}
	o := newTestOrchestrator(t, &fakeStore{saveErr: saveErr}, &fakeRouter{persona: "front_desk"}, runner)

	_, err := o.HandleTurn(context.Background(), contractx.InboundMessage{SessionID: "s1", Text: "hi"})
	if !errors.Is(err, saveErr) {
		t.Fatalf("expected save error, got %v", err)
	}
}

func TestHandleTurnLoadError(t *testing.T) {
	t.Parallel()

	loadErr := errors.New("connection refused")
	runner := &fakeRunner{}
	o := newTestOrchestrator(t, &fakeStore{loadErr: loadErr}, &fakeRouter{persona: "front_desk"}, runner)

	_, err := o.HandleTurn(context.Background(), contractx.InboundMessage{SessionID: "s1", Text: "hi"})
	if !errors.Is(err, loadErr) {
		t.Fatalf("expected load error, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("expected no runner calls, got %d", len(runner.calls))
	}
}

func TestHandleTurnSerializesSameSession(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	runner := &slowTicketRunner{delay: 50 * time.Millisecond}
	o := newTestOrchestrator(t, store, &fakeRouter{persona: "appointment_support_agent"}, runner)

	const turns = 4
	var wg sync.WaitGroup
	errs := make(chan error, turns)
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := o.HandleTurn(context.Background(), contractx.InboundMessage{
				SessionID: "same-session",
				Text:      fmt.Sprintf("please open a ticket %d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("HandleTurn() error = %v", err)
		}
	}
	if got := runner.maxSeen.Load(); got != 1 {
		t.Fatalf("expected serialized turns, saw %d overlapping", got)
	}
	if got := runner.tickets.Load(); got != 1 {
		t.Fatalf("expected one ticket for the conversation, got %d", got)
	}
	if saved := store.lastSaved(t); len(saved.Turns) != 2*turns {
		t.Fatalf("expected %d turns, got %d", 2*turns, len(saved.Turns))
	}
}

func TestHandleTurnDifferentSessionsRunInParallel(t *testing.T) {
	t.Parallel()

	store, err := statex.NewMemoryStore(16)
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	runner := &slowTicketRunner{delay: 100 * time.Millisecond}
	o := newTestOrchestrator(t, store, &fakeRouter{persona: "faq_agent"}, runner)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = o.HandleTurn(context.Background(), contractx.InboundMessage{
				SessionID: fmt.Sprintf("session-%d", i),
				Text:      "open a ticket",
			})
		}(i)
	}
	wg.Wait()

	if got := runner.maxSeen.Load(); got < 2 {
		t.Fatalf("expected sessions to overlap, max in flight %d", got)
	}
}

type recordingObserver struct {
	mu   sync.Mutex
	outs []nodex.GraphOutput
	errs []error
}

func (r *recordingObserver) ObserveTurn(out nodex.GraphOutput, policy router.Policy, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outs = append(r.outs, out)
	r.errs = append(r.errs, err)
}

func TestHandleTurnNotifiesObserver(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	runner := &fakeRunner{responses: []specialist.Result{{Reply: "hello", Outcome: specialist.OutcomeReplied}}}
	o := newTestOrchestrator(t, &fakeStore{}, &fakeRouter{persona: "front_desk"}, runner, WithObserver(obs))

	if _, err := o.HandleTurn(context.Background(), contractx.InboundMessage{SessionID: "s1", Text: "hi"}); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if len(obs.outs) != 1 || obs.outs[0].Outcome != specialist.OutcomeReplied {
		t.Fatalf("unexpected observations: %+v", obs.outs)
	}
	if obs.errs[0] != nil {
		t.Fatalf("expected nil error, got %v", obs.errs[0])
	}
}
