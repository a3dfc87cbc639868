package dialogue

import (
	"context"
	"errors"
	"testing"

	"github.com/finishworks/crewbot/internal/chat"
)

// twoStepFlow collects "first" then "second"; empty input is rejected.
func twoStepFlow(name string, cleanedUp *bool) *Flow {
	return &Flow{
		Name: name,
		Steps: []Step{
			{ID: "first", Handle: func(ctx context.Context, st *State, in chat.Inbound) (Result, error) {
				if in.Text == "" {
					return Reject(Reply{Text: "again"}), nil
				}
				st.Set("first", in.Text)
				return Next(Reply{Text: "and now the second"}), nil
			}},
			{ID: "second", Handle: func(ctx context.Context, st *State, in chat.Inbound) (Result, error) {
				st.Set("second", in.Text)
				return Done(Reply{Text: "done: " + st.GetString("first") + "/" + st.GetString("second")}), nil
			}},
		},
		Cleanup: func(ctx context.Context, st *State) {
			if cleanedUp != nil {
				*cleanedUp = true
			}
		},
	}
}

func TestEngine_StartAdvanceComplete(t *testing.T) {
	e := NewEngine()
	e.Register(twoStepFlow("intake", nil))

	if err := e.StartFlow(7, "intake"); err != nil {
		t.Fatalf("StartFlow: %v", err)
	}
	if !e.Active(7) {
		t.Fatal("expected an active flow")
	}

	replies, done, err := e.Advance(context.Background(), 7, chat.Inbound{UserID: 7, Text: "a"})
	if err != nil || done {
		t.Fatalf("first step: done=%v err=%v", done, err)
	}
	if len(replies) != 1 || replies[0].Text != "and now the second" {
		t.Fatalf("unexpected replies: %+v", replies)
	}

	replies, done, err = e.Advance(context.Background(), 7, chat.Inbound{UserID: 7, Text: "b"})
	if err != nil || !done {
		t.Fatalf("second step: done=%v err=%v", done, err)
	}
	if replies[0].Text != "done: a/b" {
		t.Fatalf("fields lost across steps: %+v", replies)
	}
	if e.Active(7) {
		t.Fatal("state must be destroyed on completion")
	}
}

func TestEngine_RejectKeepsStep(t *testing.T) {
	e := NewEngine()
	e.Register(twoStepFlow("intake", nil))

	if err := e.StartFlow(7, "intake"); err != nil {
		t.Fatalf("StartFlow: %v", err)
	}

	// Invalid input twice: the same step must keep re-prompting.
	for i := 0; i < 2; i++ {
		replies, done, err := e.Advance(context.Background(), 7, chat.Inbound{UserID: 7})
		if err != nil || done {
			t.Fatalf("reject pass %d: done=%v err=%v", i, done, err)
		}
		if replies[0].Text != "again" {
			t.Fatalf("expected re-prompt, got %+v", replies)
		}
	}

	// Valid input still lands on the first step.
	replies, _, err := e.Advance(context.Background(), 7, chat.Inbound{UserID: 7, Text: "a"})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if replies[0].Text != "and now the second" {
		t.Fatalf("step advanced incorrectly: %+v", replies)
	}
}

func TestEngine_HandlerErrorKeepsState(t *testing.T) {
	boom := errors.New("boom")
	e := NewEngine()
	e.Register(&Flow{
		Name: "fragile",
		Steps: []Step{
			{ID: "only", Handle: func(ctx context.Context, st *State, in chat.Inbound) (Result, error) {
				if in.Text == "fail" {
					return Result{}, boom
				}
				return Done(Reply{Text: "ok"}), nil
			}},
		},
	})

	if err := e.StartFlow(1, "fragile"); err != nil {
		t.Fatalf("StartFlow: %v", err)
	}
	if _, _, err := e.Advance(context.Background(), 1, chat.Inbound{UserID: 1, Text: "fail"}); !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if !e.Active(1) {
		t.Fatal("state must survive a handler error")
	}

	// The same step can be retried afterwards.
	_, done, err := e.Advance(context.Background(), 1, chat.Inbound{UserID: 1, Text: "ok"})
	if err != nil || !done {
		t.Fatalf("retry: done=%v err=%v", done, err)
	}
}

func TestEngine_StartFlowConflicts(t *testing.T) {
	e := NewEngine()
	e.Register(twoStepFlow("intake", nil))
	e.Register(twoStepFlow("other", nil))

	if err := e.StartFlow(7, "intake"); err != nil {
		t.Fatalf("StartFlow: %v", err)
	}
	if err := e.StartFlow(7, "other"); !errors.Is(err, ErrFlowActive) {
		t.Fatalf("expected ErrFlowActive, got %v", err)
	}
	// A different user is unaffected.
	if err := e.StartFlow(8, "other"); err != nil {
		t.Fatalf("StartFlow for other user: %v", err)
	}
}

func TestEngine_StartUnknownFlow(t *testing.T) {
	e := NewEngine()
	if err := e.StartFlow(1, "nope"); !errors.Is(err, ErrUnknownFlow) {
		t.Fatalf("expected ErrUnknownFlow, got %v", err)
	}
}

func TestEngine_AdvanceWithoutFlow(t *testing.T) {
	e := NewEngine()
	if _, _, err := e.Advance(context.Background(), 1, chat.Inbound{UserID: 1}); !errors.Is(err, ErrNoFlow) {
		t.Fatalf("expected ErrNoFlow, got %v", err)
	}
}

func TestEngine_CancelRunsCleanup(t *testing.T) {
	cleaned := false
	e := NewEngine()
	e.Register(twoStepFlow("intake", &cleaned))

	if err := e.StartFlow(7, "intake"); err != nil {
		t.Fatalf("StartFlow: %v", err)
	}
	if !e.Cancel(context.Background(), 7) {
		t.Fatal("Cancel must report an existing flow")
	}
	if !cleaned {
		t.Fatal("cleanup did not run")
	}
	if e.Active(7) {
		t.Fatal("state must be destroyed on cancel")
	}
	if e.Cancel(context.Background(), 7) {
		t.Fatal("second cancel must report no flow")
	}
}

func TestEngine_CancelSurvivesCleanupPanic(t *testing.T) {
	e := NewEngine()
	e.Register(&Flow{
		Name:  "panicky",
		Steps: []Step{{ID: "s", Handle: func(context.Context, *State, chat.Inbound) (Result, error) { return Done(), nil }}},
		Cleanup: func(context.Context, *State) {
			panic("cleanup exploded")
		},
	})

	if err := e.StartFlow(7, "panicky"); err != nil {
		t.Fatalf("StartFlow: %v", err)
	}
	if !e.Cancel(context.Background(), 7) {
		t.Fatal("Cancel must still report the flow despite the panic")
	}
}

func TestState_TypedGetters(t *testing.T) {
	st := &State{}
	st.Set("s", "text")
	st.Set("f", 2.5)

	if st.GetString("s") != "text" {
		t.Fatal("GetString")
	}
	if st.GetFloat("f") != 2.5 {
		t.Fatal("GetFloat")
	}
	if st.GetString("missing") != "" || st.GetFloat("missing") != 0 {
		t.Fatal("zero values for missing fields")
	}
	if st.GetString("f") != "" {
		t.Fatal("wrong-type access must fall back to zero value")
	}
}
