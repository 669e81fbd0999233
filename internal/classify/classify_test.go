package classify

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/TobiSchelling/condrater/internal/condition"
	"github.com/TobiSchelling/condrater/internal/database"
)

// mockProvider implements llm.Provider for testing. It answers by matching
// a keyword in the prompt.
type mockProvider struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	calls   int
	prompts []string
	tokens  []int
}

func (m *mockProvider) Generate(_ context.Context, prompt string, maxTokens int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.tokens = append(m.tokens, maxTokens)
	if m.err != nil {
		return "", m.err
	}
	for kw, reply := range m.replies {
		if strings.Contains(prompt, kw) {
			return reply, nil
		}
	}
	return "I am not sure.", nil
}

func (m *mockProvider) IsConfigured() bool { return true }

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedRecord(t *testing.T, db *database.DB, key, primary string, areas ...string) int64 {
	t.Helper()
	db.InsertBatch("b1", "test.csv")
	r := database.Record{BatchID: "b1", Key: key, Primary: database.Narrative{Name: "BPO", Text: primary}}
	names := []string{"Kitchen Condition", "Bathrooms Condition", "Interior Appearance Condition"}
	for i, a := range areas {
		r.Areas = append(r.Areas, database.Narrative{Name: names[i], Text: a})
	}
	id, err := db.InsertRecord(r)
	if err != nil || id == 0 {
		t.Fatalf("InsertRecord: %d, %v", id, err)
	}
	return id
}

func TestClassifyBatch(t *testing.T) {
	db := openTestDB(t)
	id := seedRecord(t, db, "1001", "Well maintained, new roof", "granite counters", "nan", "stained carpet")

	provider := &mockProvider{replies: map[string]string{
		"new roof":       "Category: positive\nReason: New roof.",
		"granite":        "Category: Positive\nReason: Granite counters.",
		"stained carpet": "Category: NEGATIVE\nReason: Stained carpet.",
	}}
	c := NewClassifier(db, provider, Options{Model: "mistral", Concurrency: 3})
	result := c.ClassifyBatch(context.Background(), "b1")

	if result.Processed != 4 {
		t.Errorf("expected 4 processed, got %d", result.Processed)
	}
	if result.Blank != 1 {
		t.Errorf("expected 1 blank, got %d", result.Blank)
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 oracle calls (blank skipped), got %d", provider.calls)
	}
	if result.ByCategory[condition.Positive] != 2 || result.ByCategory[condition.Negative] != 1 {
		t.Errorf("unexpected category counts %v", result.ByCategory)
	}

	cs, _ := db.GetClassifications(id)
	if len(cs) != 4 {
		t.Fatalf("expected 4 stored classifications, got %d", len(cs))
	}
	if cs[0].Category != "Positive" || cs[0].Field != "BPO" {
		t.Errorf("unexpected primary classification %+v", cs[0])
	}
	if cs[2].Category != "No Relevant Information" || cs[2].Reason != BlankReason || !cs[2].Blank {
		t.Errorf("unexpected blank classification %+v", cs[2])
	}
	if cs[2].Model != nil {
		t.Error("expected no model recorded for blank narrative")
	}
	if cs[3].Model == nil || *cs[3].Model != "mistral" {
		t.Error("expected model recorded for oracle classification")
	}
}

func TestClassifyBatchUsesTokenLimitsPerSlot(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, "1", "overview text", "kitchen text")

	provider := &mockProvider{}
	c := NewClassifier(db, provider, Options{PrimaryMaxTokens: 256, SecondaryMaxTokens: 64})
	c.ClassifyBatch(context.Background(), "b1")

	if len(provider.prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(provider.prompts))
	}
	for i, p := range provider.prompts {
		switch {
		case strings.Contains(p, "overview text"):
			if provider.tokens[i] != 256 {
				t.Errorf("expected 256 tokens for primary, got %d", provider.tokens[i])
			}
		case strings.Contains(p, "kitchen text"):
			if provider.tokens[i] != 64 {
				t.Errorf("expected 64 tokens for area, got %d", provider.tokens[i])
			}
			if !strings.Contains(p, "Kitchen Condition") {
				t.Error("expected area name in area prompt")
			}
		}
	}
}

func TestClassifyBatchUnparseableReplyDefaults(t *testing.T) {
	db := openTestDB(t)
	id := seedRecord(t, db, "1", "something")

	c := NewClassifier(db, &mockProvider{}, Options{})
	result := c.ClassifyBatch(context.Background(), "b1")
	if result.Processed != 1 {
		t.Errorf("expected 1 processed, got %d", result.Processed)
	}

	cs, _ := db.GetClassifications(id)
	if len(cs) != 1 || cs[0].Category != "No Relevant Information" || cs[0].Reason != condition.DefaultReason {
		t.Errorf("expected default response stored, got %+v", cs)
	}
}

func TestClassifyBatchErrorsStayPending(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, "1", "text", "kitchen", "")

	failing := &mockProvider{err: errors.New("connection refused")}
	c := NewClassifier(db, failing, Options{Concurrency: 2})
	result := c.ClassifyBatch(context.Background(), "b1")
	if result.Errors != 2 {
		t.Errorf("expected 2 errors, got %d", result.Errors)
	}
	if result.Processed != 1 {
		t.Errorf("expected blank slot processed, got %d", result.Processed)
	}

	// Next run only retries what failed.
	ok := &mockProvider{replies: map[string]string{"text": "Category: Positive\nReason: ok"}}
	result = NewClassifier(db, ok, Options{}).ClassifyBatch(context.Background(), "b1")
	if result.Processed != 2 || ok.calls != 2 {
		t.Errorf("expected 2 retried slots, got %d processed, %d calls", result.Processed, ok.calls)
	}

	result = NewClassifier(db, ok, Options{}).ClassifyBatch(context.Background(), "b1")
	if result.Processed != 0 {
		t.Errorf("expected nothing pending, got %d", result.Processed)
	}
}

func TestClassifyBatchNoProvider(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, "1", "text", "none")

	result := NewClassifier(db, nil, Options{}).ClassifyBatch(context.Background(), "b1")
	if result.Errors != 1 {
		t.Errorf("expected 1 error, got %d", result.Errors)
	}
	if result.Blank != 1 {
		t.Errorf("expected blank slot classified without oracle, got %d", result.Blank)
	}
}

func TestClassifyBatchCancelled(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, "1", "text", "kitchen")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &mockProvider{}
	result := NewClassifier(db, provider, Options{}).ClassifyBatch(ctx, "b1")
	if result.Errors != 2 {
		t.Errorf("expected 2 errors after cancel, got %d", result.Errors)
	}
	if provider.calls != 0 {
		t.Errorf("expected no oracle calls after cancel, got %d", provider.calls)
	}
}

func TestPrompts(t *testing.T) {
	p := PrimaryPrompt("Roof replaced in 2020.")
	if !strings.Contains(p, "Roof replaced in 2020.") || !strings.Contains(p, "Category:") {
		t.Error("expected description and output format in primary prompt")
	}
	a := AreaPrompt("Kitchen Condition", "Old stove.")
	if !strings.Contains(a, "Kitchen Condition") || !strings.Contains(a, "Old stove.") {
		t.Error("expected area and description in area prompt")
	}
}
