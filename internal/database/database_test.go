package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func testRecord(batchID, key string) Record {
	return Record{
		BatchID: batchID,
		Key:     key,
		Address: "1 Main St",
		City:    "Springfield",
		State:   "IL",
		Zip:     "62701",
		Primary: Narrative{Name: "BPO", Text: "Well maintained home."},
		Areas: []Narrative{
			{Name: "Kitchen Condition", Text: "Updated cabinets."},
			{Name: "Bathrooms Condition", Text: ""},
			{Name: "Interior Appearance Condition", Text: "Clean."},
		},
	}
}

func insertTestRecord(t *testing.T, db *DB, batchID, key string) int64 {
	t.Helper()
	if err := db.InsertBatch(batchID, "/tmp/"+batchID+".csv"); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	id, err := db.InsertRecord(testRecord(batchID, key))
	if err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	return id
}

func TestInsertRecord(t *testing.T) {
	db := openTestDB(t)
	id := insertTestRecord(t, db, "2026-02-06-bpo", "1001")
	if id == 0 {
		t.Fatal("expected non-zero record ID")
	}

	r, err := db.GetRecord(id)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if r == nil {
		t.Fatal("expected record")
	}
	if r.Key != "1001" || r.City != "Springfield" {
		t.Errorf("unexpected record %+v", r)
	}
	if len(r.Areas) != 3 || r.Areas[0].Name != "Kitchen Condition" {
		t.Errorf("expected areas to round-trip, got %+v", r.Areas)
	}
	if r.Slots() != 4 {
		t.Errorf("expected 4 slots, got %d", r.Slots())
	}
	if r.Narrative(0).Name != "BPO" || r.Narrative(2).Name != "Bathrooms Condition" {
		t.Error("unexpected slot narratives")
	}
}

func TestInsertDuplicateRecord(t *testing.T) {
	db := openTestDB(t)
	insertTestRecord(t, db, "b1", "1001")
	id, err := db.InsertRecord(testRecord("b1", "1001"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 0 {
		t.Error("expected 0 for duplicate record")
	}

	// Same key in another batch is a different record.
	if err := db.InsertBatch("b2", "x.csv"); err != nil {
		t.Fatal(err)
	}
	id, err = db.InsertRecord(testRecord("b2", "1001"))
	if err != nil || id == 0 {
		t.Errorf("expected insert into second batch, got %d, %v", id, err)
	}
}

func TestGetMissingRecord(t *testing.T) {
	db := openTestDB(t)
	r, err := db.GetRecord(42)
	if err != nil || r != nil {
		t.Errorf("expected nil, nil; got %v, %v", r, err)
	}
}

func TestBatches(t *testing.T) {
	db := openTestDB(t)
	insertTestRecord(t, db, "b1", "1")
	insertTestRecord(t, db, "b1", "2")

	b, err := db.GetBatch("b1")
	if err != nil || b == nil {
		t.Fatalf("GetBatch: %v, %v", b, err)
	}
	if b.RecordCount != 2 {
		t.Errorf("expected 2 records, got %d", b.RecordCount)
	}

	latest, err := db.GetLatestBatchID()
	if err != nil || latest != "b1" {
		t.Errorf("expected latest b1, got %q, %v", latest, err)
	}

	all, err := db.GetAllBatches()
	if err != nil || len(all) != 1 {
		t.Errorf("expected 1 batch, got %d, %v", len(all), err)
	}

	records, err := db.GetRecordsForBatch("b1")
	if err != nil || len(records) != 2 {
		t.Fatalf("expected 2 records, got %d, %v", len(records), err)
	}
	if records[0].Key != "1" {
		t.Errorf("expected import order, got %q first", records[0].Key)
	}
}

func TestClassificationLifecycle(t *testing.T) {
	db := openTestDB(t)
	id := insertTestRecord(t, db, "b1", "1")

	err := db.InsertClassification(Classification{RecordID: id, Slot: 1, Field: "Kitchen Condition",
		Category: "Positive", Reason: "Updated.", Model: ptr("mistral")})
	if err != nil {
		t.Fatalf("InsertClassification: %v", err)
	}
	db.InsertClassification(Classification{RecordID: id, Slot: 0, Field: "BPO", Category: "Positive", Reason: "Good."})
	db.InsertClassification(Classification{RecordID: id, Slot: 2, Field: "Bathrooms Condition",
		Category: "No Relevant Information", Reason: "No description provided.", Blank: true})

	cs, err := db.GetClassifications(id)
	if err != nil {
		t.Fatalf("GetClassifications: %v", err)
	}
	if len(cs) != 3 {
		t.Fatalf("expected 3 classifications, got %d", len(cs))
	}
	if cs[0].Slot != 0 || cs[1].Slot != 1 {
		t.Error("expected ordering by slot")
	}
	if !cs[2].Blank {
		t.Error("expected blank flag to round-trip")
	}
	if cs[1].Model == nil || *cs[1].Model != "mistral" {
		t.Error("expected model to round-trip")
	}

	// Replace a slot.
	db.InsertClassification(Classification{RecordID: id, Slot: 1, Field: "Kitchen Condition", Category: "Negative", Reason: "Dated."})
	byRecord, err := db.GetClassificationsForBatch("b1")
	if err != nil {
		t.Fatalf("GetClassificationsForBatch: %v", err)
	}
	if got := byRecord[id][1].Category; got != "Negative" {
		t.Errorf("expected replaced category, got %q", got)
	}
	n, _ := db.CountClassifications("b1")
	if n != 3 {
		t.Errorf("expected 3 classified slots, got %d", n)
	}
}

func TestAssessmentsAndReviews(t *testing.T) {
	db := openTestDB(t)
	r1 := insertTestRecord(t, db, "b1", "1")
	r2 := insertTestRecord(t, db, "b1", "2")
	r3 := insertTestRecord(t, db, "b1", "3")

	db.UpsertAssessment(r1, "Flagged", "positive-contradiction")
	db.UpsertAssessment(r2, "Positive", "positive-confirmed")
	db.UpsertAssessment(r3, "Flagged", "mixed-partial-blank")
	db.InsertClassification(Classification{RecordID: r1, Slot: 0, Field: "BPO", Category: "Positive", Reason: "Good."})

	counts, err := db.GetVerdictCounts("b1")
	if err != nil {
		t.Fatalf("GetVerdictCounts: %v", err)
	}
	if counts["Flagged"] != 2 || counts["Positive"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}

	open, err := db.GetFlaggedRecords("b1", true)
	if err != nil {
		t.Fatalf("GetFlaggedRecords: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected 2 open items, got %d", len(open))
	}
	if len(open[0].Classifications) != 1 {
		t.Errorf("expected classifications attached, got %d", len(open[0].Classifications))
	}

	if err := db.UpsertReview(r1, "Mixed Opinion", ptr("Kitchen photos show damage")); err != nil {
		t.Fatalf("UpsertReview: %v", err)
	}
	open, _ = db.GetFlaggedRecords("b1", true)
	if len(open) != 1 || open[0].Record.ID != r3 {
		t.Errorf("expected only r3 open, got %d items", len(open))
	}

	all, _ := db.GetFlaggedRecords("", false)
	if len(all) != 2 {
		t.Fatalf("expected 2 flagged overall, got %d", len(all))
	}
	if all[0].Review == nil || all[0].Review.Resolution != "Mixed Opinion" {
		t.Error("expected review attached to resolved item")
	}

	if err := db.UpsertReview(r3, "Flagged", nil); err == nil {
		t.Error("expected CHECK constraint to reject Flagged as a resolution")
	}
	if err := db.UpsertReview(r2, "Negative", nil); !errors.Is(err, ErrNotFlagged) {
		t.Errorf("expected ErrNotFlagged for a Positive record, got %v", err)
	}
	if rev, _ := db.GetReview(r2); rev != nil {
		t.Error("expected no review stored for a Positive record")
	}
	if err := db.UpsertReview(99999, "Negative", nil); !errors.Is(err, ErrNotFlagged) {
		t.Errorf("expected ErrNotFlagged for an unknown record, got %v", err)
	}

	db.DeleteReview(r1)
	rev, _ := db.GetReview(r1)
	if rev != nil {
		t.Error("expected review to be deleted")
	}

	a, _ := db.GetAssessment(r2)
	if a == nil || a.Rule != "positive-confirmed" {
		t.Errorf("unexpected assessment %+v", a)
	}
	byRecord, _ := db.GetAssessmentsForBatch("b1")
	if len(byRecord) != 3 {
		t.Errorf("expected 3 assessments, got %d", len(byRecord))
	}
}

func TestReportLifecycle(t *testing.T) {
	db := openTestDB(t)
	insertTestRecord(t, db, "b1", "1")

	if _, err := db.InsertReport("b1", "## Summary", 1, 0); err != nil {
		t.Fatalf("InsertReport: %v", err)
	}
	r, err := db.GetReport("b1")
	if err != nil || r == nil {
		t.Fatalf("GetReport: %v, %v", r, err)
	}
	if r.SummaryMarkdown != "## Summary" || r.RecordCount != 1 {
		t.Errorf("unexpected report %+v", r)
	}

	db.InsertReport("b1", "## Updated", 1, 1)
	all, _ := db.GetAllReports()
	if len(all) != 1 || all[0].FlaggedCount != 1 {
		t.Errorf("expected replaced report, got %+v", all)
	}

	missing, err := db.GetReport("nope")
	if err != nil || missing != nil {
		t.Error("expected nil for missing report")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	r1 := insertTestRecord(t, db, "b1", "1")
	db.UpsertAssessment(r1, "Flagged", "positive-contradiction")
	db.UpsertReview(r1, "Negative", nil)

	s, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if s.Batches != 1 || s.Records != 1 || s.Flagged != 1 || s.Reviewed != 1 {
		t.Errorf("unexpected stats %+v", s)
	}

	// A record reassessed away from Flagged no longer counts as reviewed.
	db.UpsertAssessment(r1, "Negative", "negative-confirmed")
	s, _ = db.GetStats()
	if s.Flagged != 0 || s.Reviewed != 0 {
		t.Errorf("expected stale review to be ignored, got %+v", s)
	}
}

func TestGetToday(t *testing.T) {
	today := GetToday()
	if _, err := time.Parse("2006-01-02", today); err != nil {
		t.Errorf("expected YYYY-MM-DD, got %q", today)
	}
}

func TestMakeBatchID(t *testing.T) {
	tests := map[string]string{
		"/data/BPO_Notes.xlsx.csv": "2026-02-06-bpo-notes-xlsx",
		"Jayden NLP Data.csv":      "2026-02-06-jayden-nlp-data",
		"/tmp/---.csv":             "2026-02-06",
		"props.csv":                "2026-02-06-props",
	}
	for source, want := range tests {
		if got := MakeBatchID("2026-02-06", source); got != want {
			t.Errorf("MakeBatchID(%q) = %q, expected %q", source, got, want)
		}
	}
}

func TestFormatBatchDisplay(t *testing.T) {
	if got := FormatBatchDisplay("2026-02-06-bpo-notes"); got != "bpo-notes (Feb 06, 2026)" {
		t.Errorf("unexpected display %q", got)
	}
	if got := FormatBatchDisplay("2026-02-06"); got != "Feb 06, 2026" {
		t.Errorf("unexpected display %q", got)
	}
	if got := FormatBatchDisplay("custom"); got != "custom" {
		t.Errorf("expected passthrough, got %q", got)
	}
}
