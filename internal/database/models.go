package database

// Batch is one imported spreadsheet.
type Batch struct {
	ID          string
	Source      string
	ImportedAt  *string
	RecordCount int
}

// Narrative is one free-text condition description of a record.
type Narrative struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Record is one property row of a batch.
type Record struct {
	ID         int64
	BatchID    string
	Key        string
	Address    string
	City       string
	State      string
	Zip        string
	Primary    Narrative
	Areas      []Narrative
	ImportedAt *string
}

// Slots returns the number of classifications a complete record carries:
// one for the primary narrative plus one per area.
func (r *Record) Slots() int {
	return 1 + len(r.Areas)
}

// Narrative returns the narrative for a slot. Slot 0 is the primary.
func (r *Record) Narrative(slot int) Narrative {
	if slot == 0 {
		return r.Primary
	}
	return r.Areas[slot-1]
}

// Classification is the parsed oracle answer for one narrative slot.
type Classification struct {
	RecordID     int64
	Slot         int // 0 = primary, 1..n = areas in order
	Field        string
	Category     string
	Reason       string
	Blank        bool // description was empty; the oracle was not asked
	Model        *string
	ClassifiedAt *string
}

// Assessment is the overall verdict of a record.
type Assessment struct {
	RecordID  int64
	Verdict   string
	Rule      string
	DecidedAt *string
}

// Review is a reviewer's resolution of a flagged record.
type Review struct {
	RecordID   int64
	Resolution string
	Note       *string
	CreatedAt  *string
}

// ReviewItem is a flagged record with everything a reviewer needs.
type ReviewItem struct {
	Record          Record
	Assessment      Assessment
	Classifications []Classification
	Review          *Review
}

// Report is the composed summary of a batch.
type Report struct {
	ID              int64
	BatchID         string
	SummaryMarkdown string
	RecordCount     int
	FlaggedCount    int
	GeneratedAt     *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Batches         int
	Records         int
	Classifications int
	Assessed        int
	Flagged         int
	Reviewed        int
	Reports         int
}
