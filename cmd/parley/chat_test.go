package main

import (
	"strings"
	"testing"

	"parley/internal/config"
	"parley/internal/dialogue"
	"parley/internal/store"
)

func newTestChatModel() chatModel {
	cfg = config.DefaultConfig()
	rt := &runtime{store: store.NewMemoryStore()}
	profile := &store.Profile{ID: 1, Username: "margaret"}
	sess := &store.Session{ID: 1, UserID: 1, UUID: "sess-test"}
	return newChatModel(rt, profile, sess)
}

func TestHandleSubmitEchoesUserLine(t *testing.T) {
	m := newTestChatModel()
	m.textinput.SetValue("hello there")

	next, cmd := m.handleSubmit()
	nm := next.(chatModel)

	if !nm.thinking {
		t.Fatal("expected the model to be thinking")
	}
	if cmd == nil {
		t.Fatal("expected a background command")
	}
	if len(nm.history) != 1 || nm.history[0].Role != dialogue.RoleUser || nm.history[0].Content != "hello there" {
		t.Fatalf("unexpected history: %+v", nm.history)
	}
	if nm.textinput.Value() != "" {
		t.Fatalf("input not cleared: %q", nm.textinput.Value())
	}
}

func TestHandleSubmitIgnoresBlank(t *testing.T) {
	m := newTestChatModel()
	m.textinput.SetValue("   ")

	next, cmd := m.handleSubmit()
	nm := next.(chatModel)

	if nm.thinking {
		t.Fatal("blank input should not start a turn")
	}
	if cmd != nil {
		t.Fatal("blank input should not produce a command")
	}
	if len(nm.history) != 0 {
		t.Fatalf("blank input should not be echoed: %+v", nm.history)
	}
}

func TestTurnMsgExitShowsGoodbye(t *testing.T) {
	m := newTestChatModel()
	m.ready = true
	m.thinking = true

	res := &dialogue.TurnResult{
		History: []dialogue.Utterance{{Role: dialogue.RoleUser, Content: "bye now"}},
		Exit:    true,
	}
	next, cmd := m.Update(turnMsg{res: res})
	nm := next.(chatModel)

	if !nm.exited {
		t.Fatal("expected the model to record the exit")
	}
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	last := nm.history[len(nm.history)-1]
	if last.Role != dialogue.RoleAssistant || last.Content != dialogue.Goodbye {
		t.Fatalf("expected farewell as the last line, got %+v", last)
	}
}

func TestTurnMsgCarriesSearchContext(t *testing.T) {
	m := newTestChatModel()
	m.ready = true
	m.thinking = true

	res := &dialogue.TurnResult{
		Reply: "You have 2 messages.",
		History: []dialogue.Utterance{
			{Role: dialogue.RoleUser, Content: "any messages from victor?"},
			{Role: dialogue.RoleAssistant, Content: "You have 2 messages."},
		},
		SearchContext: "1. ID: m1, Subject: 'Dinner', From: victor",
	}
	next, _ := m.Update(turnMsg{res: res})
	nm := next.(chatModel)

	if nm.thinking {
		t.Fatal("turn should be finished")
	}
	if nm.searchContext != res.SearchContext {
		t.Fatalf("search context not carried: %q", nm.searchContext)
	}
	if len(nm.history) != 2 {
		t.Fatalf("expected engine history to replace the echo, got %d lines", len(nm.history))
	}
}

func TestRenderHistoryLabelsSpeakers(t *testing.T) {
	m := newTestChatModel()
	m.history = []dialogue.Utterance{
		{Role: dialogue.RoleUser, Content: "hi"},
		{Role: dialogue.RoleAssistant, Content: "Hello!"},
	}

	out := m.renderHistory()
	if !strings.Contains(out, "You") {
		t.Fatalf("user label missing: %s", out)
	}
	if !strings.Contains(out, cfg.Persona.Name) {
		t.Fatalf("assistant label missing: %s", out)
	}
}
