package domain

import "time"

// OffenseCounter tallies one kind of integrity offense.
type OffenseCounter struct {
	Global      int            `json:"global"`
	PerQuestion map[string]int `json:"perQuestion,omitempty"`
}

func (c *OffenseCounter) Add(questionID string) {
	if questionID == "" {
		c.Global++
		return
	}
	if c.PerQuestion == nil {
		c.PerQuestion = make(map[string]int)
	}
	c.PerQuestion[questionID]++
}

func (c OffenseCounter) Total() int {
	total := c.Global
	for _, n := range c.PerQuestion {
		total += n
	}
	return total
}

func (c OffenseCounter) Clone() OffenseCounter {
	out := OffenseCounter{Global: c.Global}
	if len(c.PerQuestion) > 0 {
		out.PerQuestion = make(map[string]int, len(c.PerQuestion))
		for k, v := range c.PerQuestion {
			out.PerQuestion[k] = v
		}
	}
	return out
}

type Offenses struct {
	TabChange OffenseCounter `json:"tabChange"`
	CopyPaste OffenseCounter `json:"copyPaste"`
}

func (o Offenses) Total() int {
	return o.TabChange.Total() + o.CopyPaste.Total()
}

func (o Offenses) Clone() Offenses {
	return Offenses{TabChange: o.TabChange.Clone(), CopyPaste: o.CopyPaste.Clone()}
}

// Attempt is the persisted state of an in-flight attempt.
type Attempt struct {
	AssessmentID     string    `json:"assessmentId"`
	CandidateID      string    `json:"candidateId"`
	StartedAt        time.Time `json:"startedAt"`
	Deadline         time.Time `json:"deadline"`
	RemainingSeconds int       `json:"remainingSeconds"`
	Answers          Answers   `json:"answers"`
	Offenses         Offenses  `json:"offenses"`
	RecordingRef     string    `json:"recordingRef,omitempty"`
	WarningsSent     []int     `json:"warningsSent,omitempty"`
	ActiveQuestion   string    `json:"activeQuestion,omitempty"`
	Submitted        bool      `json:"submitted"`
}

func AttemptKey(assessmentID, candidateID string) string {
	return "attempt:" + assessmentID + ":" + candidateID
}

func (a Attempt) Key() string {
	return AttemptKey(a.AssessmentID, a.CandidateID)
}

type SubmissionStatus string

const (
	StatusInProgress SubmissionStatus = "in-progress"
	StatusCompleted  SubmissionStatus = "completed"
)

type CheatingStatus string

const (
	NoCopying    CheatingStatus = "No Copying"
	LightCopying CheatingStatus = "Light Copying"
	HeavyCopying CheatingStatus = "Heavy Copying"
)

type GradeItem struct {
	QuestionID        string       `json:"questionId"`
	Kind              QuestionKind `json:"kind"`
	MaxMarks          float64      `json:"maxMarks"`
	ObtainedMarks     float64      `json:"obtainedMarks"`
	NeedsManualReview bool         `json:"needsManualReview"`
	Reviewed          bool         `json:"reviewed"`
}

// GradeRecord is recomputed from its items whenever a mark changes.
type GradeRecord struct {
	Items          []GradeItem    `json:"items"`
	Total          float64        `json:"total"`
	Obtainable     float64        `json:"obtainable"`
	Percentage     float64        `json:"percentage"`
	CheatingStatus CheatingStatus `json:"cheatingStatus"`
	Passed         bool           `json:"passed"`
	Provisional    bool           `json:"provisional"`
}

func (g *GradeRecord) Item(questionID string) (*GradeItem, bool) {
	for i := range g.Items {
		if g.Items[i].QuestionID == questionID {
			return &g.Items[i], true
		}
	}
	return nil, false
}

func (g GradeRecord) HasManualItems() bool {
	for _, it := range g.Items {
		if it.NeedsManualReview {
			return true
		}
	}
	return false
}

// PendingReview reports whether any flagged item is still unreviewed.
func (g GradeRecord) PendingReview() bool {
	for _, it := range g.Items {
		if it.NeedsManualReview && !it.Reviewed {
			return true
		}
	}
	return false
}

type CaseResult struct {
	CaseID   string `json:"caseId"`
	Input    string `json:"input"`
	Output   string `json:"output"`
	Expected string `json:"expected"`
	Passed   bool   `json:"passed"`
	Sample   bool   `json:"sample"`
	TimeMs   int64  `json:"timeMs"`
	MemoryKB int64  `json:"memoryKb"`
}

type CodeSubmissionResult struct {
	QuestionID string       `json:"questionId"`
	ProblemID  string       `json:"problemId"`
	Difficulty Difficulty   `json:"difficulty"`
	Language   string       `json:"language"`
	Code       string       `json:"code"`
	Cases      []CaseResult `json:"cases"`
	Passed     bool         `json:"passed"`
	Error      string       `json:"error,omitempty"`
}

// GradingFailure records a question that could not be graded automatically.
type GradingFailure struct {
	QuestionID string    `json:"questionId"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

type RewardOutcome struct {
	QuestionID string  `json:"questionId"`
	ProblemID  string  `json:"problemId"`
	Earned     bool    `json:"earned"`
	// Drawn is set once the chance gate was passed, so a retry does not draw again.
	Drawn      bool    `json:"drawn,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	TxHash     string  `json:"txHash,omitempty"`
}

type Submission struct {
	ID            string                 `json:"id"`
	AssessmentID  string                 `json:"assessmentId"`
	CandidateID   string                 `json:"candidateId"`
	CandidateName string                 `json:"candidateName"`
	Email         string                 `json:"email"`
	Answers       Answers                `json:"answers"`
	Offenses      Offenses               `json:"offenses"`
	Timer         int                    `json:"timer"`
	RecordingRef  string                 `json:"recordingRef,omitempty"`
	Status        SubmissionStatus       `json:"status"`
	IsReviewed    bool                   `json:"isReviewed"`
	ReviewedBy    []string               `json:"reviewedBy,omitempty"`
	Grade         *GradeRecord           `json:"grade,omitempty"`
	CodeResults   []CodeSubmissionResult `json:"codeResults,omitempty"`
	Failures      []GradingFailure       `json:"failures,omitempty"`
	Rewards       []RewardOutcome        `json:"rewards,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// ReviewFinished reports whether a reviewer closed the manual review; the verdict is final from then on.
func (s Submission) ReviewFinished() bool {
	return s.IsReviewed && s.Grade != nil && s.Grade.HasManualItems()
}

// AddReviewer appends reviewer once.
func (s *Submission) AddReviewer(reviewer string) {
	if reviewer == "" {
		return
	}
	for _, r := range s.ReviewedBy {
		if r == reviewer {
			return
		}
	}
	s.ReviewedBy = append(s.ReviewedBy, reviewer)
}

func (s Submission) CodeResult(questionID string) (CodeSubmissionResult, bool) {
	for _, r := range s.CodeResults {
		if r.QuestionID == questionID {
			return r, true
		}
	}
	return CodeSubmissionResult{}, false
}

type LedgerStatus string

const (
	LedgerReserved  LedgerStatus = "reserved"
	LedgerConfirmed LedgerStatus = "confirmed"
)

// RewardLedgerEntry is unique per (candidate, problem).
type RewardLedgerEntry struct {
	CandidateID string       `json:"candidateId"`
	ProblemID   string       `json:"problemId"`
	Amount      float64      `json:"amount"`
	Status      LedgerStatus `json:"status"`
	TxHash      string       `json:"txHash,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	ConfirmedAt *time.Time   `json:"confirmedAt,omitempty"`
}

type Wallet struct {
	CandidateID string  `json:"candidateId"`
	Address     string  `json:"address"`
	Balance     float64 `json:"balance"`
}

type ProblemStats struct {
	ProblemID             string `json:"problemId"`
	TotalSubmissions      int64  `json:"totalSubmissions"`
	SuccessfulSubmissions int64  `json:"successfulSubmissions"`
}

// AcceptanceRate is a percentage; zero when nothing was submitted.
func (p ProblemStats) AcceptanceRate() float64 {
	if p.TotalSubmissions == 0 {
		return 0
	}
	return float64(p.SuccessfulSubmissions) / float64(p.TotalSubmissions) * 100
}
