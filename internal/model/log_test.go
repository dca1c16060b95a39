// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ignoreIdentity drops fields that reducer semantics never compare.
var ignoreIdentity = cmpopts.IgnoreFields(Turn{}, "ID", "CreatedAt")

func turn(role Role, content string, complete bool) Turn {
	return Turn{Role: role, Content: content, Complete: complete}
}

func strPtr(s string) *string { return &s }

// =============================================================================
// APPEND USER
// =============================================================================

func TestLog_AppendUser(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		changed bool
	}{
		{"plain text", "Hello", true},
		{"surrounding whitespace kept", "  hi  ", true},
		{"empty", "", false},
		{"whitespace only", " \t\n ", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var l Log
			next, changed := l.AppendUser(tc.text)
			if changed != tc.changed {
				t.Fatalf("changed = %v, want %v", changed, tc.changed)
			}
			if !tc.changed {
				if next.Len() != 0 {
					t.Fatalf("Len() = %d, want 0", next.Len())
				}
				return
			}
			want := []Turn{turn(RoleUser, tc.text, true)}
			if diff := cmp.Diff(want, next.Turns(), ignoreIdentity); diff != "" {
				t.Errorf("turns mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// =============================================================================
// STREAMING SCENARIO
// =============================================================================

func TestLog_StreamingScenario(t *testing.T) {
	var l Log
	l, _ = l.AppendUser("Hello")
	l, _ = l.BeginAssistant()
	l, _ = l.AppendFragment("Hi")
	l, _ = l.AppendFragment("!")

	if !l.Pending() {
		t.Fatal("expected an open assistant turn before completion")
	}

	l, changed := l.CompleteAssistant(nil)
	if !changed {
		t.Fatal("CompleteAssistant() reported no change")
	}

	want := []Turn{
		turn(RoleUser, "Hello", true),
		turn(RoleAssistant, "Hi!", true),
	}
	if diff := cmp.Diff(want, l.Turns(), ignoreIdentity); diff != "" {
		t.Errorf("turns mismatch (-want +got):\n%s", diff)
	}
}

func TestLog_ErrorAfterPartial(t *testing.T) {
	var l Log
	l, _ = l.AppendUser("question")
	l, _ = l.BeginAssistant()
	l, _ = l.AppendFragment("Partial")
	l, _ = l.ReplaceWithError("Sorry, there was an error processing your message.")

	want := []Turn{
		turn(RoleUser, "question", true),
		turn(RoleAssistant, "Sorry, there was an error processing your message.", true),
	}
	if diff := cmp.Diff(want, l.Turns(), ignoreIdentity); diff != "" {
		t.Errorf("turns mismatch (-want +got):\n%s", diff)
	}
}

// =============================================================================
// EDGE CASES
// =============================================================================

func TestLog_BeginAssistantIdempotent(t *testing.T) {
	var l Log
	l, _ = l.AppendUser("q")
	l, _ = l.BeginAssistant()
	l, _ = l.AppendFragment("abc")

	again, changed := l.BeginAssistant()
	if changed {
		t.Error("second BeginAssistant() reported a change")
	}
	if again.Len() != 2 {
		t.Errorf("Len() = %d, want 2", again.Len())
	}
	if last, _ := again.Last(); last.Content != "abc" {
		t.Errorf("content = %q, want %q", last.Content, "abc")
	}
}

func TestLog_FragmentWithoutOpenTurn(t *testing.T) {
	var l Log
	l, _ = l.AppendUser("q")

	next, changed := l.AppendFragment("stray")
	if changed {
		t.Error("AppendFragment() without an open turn reported a change")
	}
	if diff := cmp.Diff(l.Turns(), next.Turns()); diff != "" {
		t.Errorf("log changed (-before +after):\n%s", diff)
	}
}

func TestLog_UserTurnRejectedWhileStreaming(t *testing.T) {
	var l Log
	l, _ = l.AppendUser("q")
	l, _ = l.BeginAssistant()

	next, changed := l.AppendUser("interrupt")
	if changed || next.Len() != 2 || !next.Pending() {
		t.Errorf("AppendUser() while streaming = (len %d, %v)", next.Len(), changed)
	}
}

func TestLog_CompleteIsIdempotent(t *testing.T) {
	var l Log
	l, _ = l.AppendUser("q")
	l, _ = l.BeginAssistant()
	l, _ = l.AppendFragment("done")
	l, _ = l.CompleteAssistant(nil)

	next, changed := l.CompleteAssistant(nil)
	if changed {
		t.Error("completing a complete turn reported a change")
	}
	if next.Len() != 2 {
		t.Errorf("Len() = %d, want 2", next.Len())
	}

	// A fragment after completion must not reopen the turn.
	next, changed = next.AppendFragment("late")
	if changed {
		t.Error("fragment after completion was applied")
	}
	if last, _ := next.Last(); last.Content != "done" {
		t.Errorf("content = %q, want %q", last.Content, "done")
	}
}

func TestLog_CompleteWithFinalTextReplaces(t *testing.T) {
	var l Log
	l, _ = l.AppendUser("q")
	l, _ = l.BeginAssistant()
	l, _ = l.AppendFragment("draft")
	l, _ = l.CompleteAssistant(strPtr("final"))

	last, _ := l.Last()
	if last.Content != "final" || !last.Complete {
		t.Errorf("last = %+v, want complete %q", last, "final")
	}
}

func TestLog_SingleShotWithoutBegin(t *testing.T) {
	var l Log
	l, _ = l.AppendUser("what is in the pdf?")
	l, changed := l.CompleteAssistant(strPtr("A report."))
	if !changed {
		t.Fatal("CompleteAssistant(final) reported no change")
	}

	want := []Turn{
		turn(RoleUser, "what is in the pdf?", true),
		turn(RoleAssistant, "A report.", true),
	}
	if diff := cmp.Diff(want, l.Turns(), ignoreIdentity); diff != "" {
		t.Errorf("turns mismatch (-want +got):\n%s", diff)
	}
}

func TestLog_ReplaceWithErrorAppendsWhenNothingOpen(t *testing.T) {
	var l Log
	l, _ = l.AppendUser("q")
	l, _ = l.ReplaceWithError("oops")

	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
	if last, _ := l.Last(); last.Content != "oops" || !last.Complete || !last.IsAssistant() {
		t.Errorf("last = %+v", last)
	}
}

func TestLog_OlderSnapshotsUnaffected(t *testing.T) {
	var l Log
	l, _ = l.AppendUser("q")
	l, _ = l.BeginAssistant()
	snapshot := l

	l, _ = l.AppendFragment("text")
	l, _ = l.CompleteAssistant(nil)

	last, _ := snapshot.Last()
	if last.Content != "" || last.Complete {
		t.Errorf("snapshot mutated: %+v", last)
	}

	turns := l.Turns()
	turns[0].Content = "tampered"
	if l.At(0).Content != "q" {
		t.Error("Turns() exposed internal storage")
	}
}

func TestLog_History(t *testing.T) {
	var l Log
	l, _ = l.AppendUser("one")
	l, _ = l.CompleteAssistant(strPtr("two"))
	l, _ = l.AppendUser("three")
	l, _ = l.BeginAssistant()

	got := l.History()
	if len(got) != 3 {
		t.Fatalf("History() len = %d, want 3", len(got))
	}
	if got[2].Content != "three" {
		t.Errorf("History()[2] = %q, want %q", got[2].Content, "three")
	}
}

func TestLog_AtMostOneIncomplete(t *testing.T) {
	var l Log
	ops := []func(Log) (Log, bool){
		func(l Log) (Log, bool) { return l.AppendUser("a") },
		func(l Log) (Log, bool) { return l.BeginAssistant() },
		func(l Log) (Log, bool) { return l.BeginAssistant() },
		func(l Log) (Log, bool) { return l.AppendFragment("x") },
		func(l Log) (Log, bool) { return l.AppendUser("b") },
		func(l Log) (Log, bool) { return l.CompleteAssistant(nil) },
		func(l Log) (Log, bool) { return l.BeginAssistant() },
		func(l Log) (Log, bool) { return l.ReplaceWithError("e") },
	}

	for i, op := range ops {
		l, _ = op(l)
		incomplete := 0
		for j, tr := range l.Turns() {
			if !tr.Complete {
				incomplete++
				if j != l.Len()-1 || !tr.IsAssistant() {
					t.Fatalf("step %d: incomplete turn at %d is not the trailing assistant turn", i, j)
				}
			}
		}
		if incomplete > 1 {
			t.Fatalf("step %d: %d incomplete turns", i, incomplete)
		}
	}
}

func TestLog_Reset(t *testing.T) {
	var l Log
	if _, changed := l.Reset(); changed {
		t.Error("Reset() on empty log reported a change")
	}

	l, _ = l.AppendUser("q")
	l, changed := l.Reset()
	if !changed || !l.IsEmpty() {
		t.Errorf("Reset() = (len %d, %v), want (0, true)", l.Len(), changed)
	}
}

func TestQuality_Toggle(t *testing.T) {
	if QualityBrief.Toggle() != QualityDeep || QualityDeep.Toggle() != QualityBrief {
		t.Error("Toggle() does not flip between brief and deep")
	}
	if QualityDeep.Label() != "Detailed responses" {
		t.Errorf("Label() = %q", QualityDeep.Label())
	}
}
