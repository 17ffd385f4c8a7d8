package storage

import (
	"errors"
	"testing"
)

func TestSaveSummary(t *testing.T) {
	db := openTestDB(t)
	conv, _ := db.CreateConversation("chat", "m")

	if _, err := db.LatestSummary(conv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestSummary on fresh conversation = %v, want ErrNotFound", err)
	}

	first := &Summary{ConversationID: conv.ID, Model: "m", Summary: "first", SummarizedMessages: 14, TokensBefore: 3080, TokensAfter: 950}
	if err := db.SaveSummary(first); err != nil {
		t.Fatalf("SaveSummary failed: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Error("ID and CreatedAt should be filled")
	}
	if err := db.SaveSummary(&Summary{ConversationID: conv.ID, Model: "m", Summary: "second"}); err != nil {
		t.Fatalf("SaveSummary failed: %v", err)
	}

	latest, err := db.LatestSummary(conv.ID)
	if err != nil {
		t.Fatalf("LatestSummary failed: %v", err)
	}
	if latest.Summary != "second" {
		t.Errorf("Summary = %q, want second", latest.Summary)
	}

	n, err := db.CountSummaries(conv.ID)
	if err != nil {
		t.Fatalf("CountSummaries failed: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestSaveSummary_UnknownConversation(t *testing.T) {
	db := openTestDB(t)

	err := db.SaveSummary(&Summary{ConversationID: "nonexistent", Summary: "x"})
	if err == nil {
		t.Error("expected foreign key failure")
	}
}
