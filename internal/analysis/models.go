package analysis

import (
	"time"

	"github.com/suPer8Hu/siteaudit/internal/acquire"
	"github.com/suPer8Hu/siteaudit/internal/assessment"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

type ResultStatus string

const (
	ResultPending   ResultStatus = "pending"
	ResultCrawling  ResultStatus = "crawling"
	ResultAnalyzing ResultStatus = "analyzing"
	ResultCompleted ResultStatus = "completed"
	ResultError     ResultStatus = "error"
)

// Job is one queued analysis. It moves pending -> processing -> completed|error
// and is never reopened.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"job_id"` // ULID length

	UserID   uint64 `gorm:"index;not null" json:"-"`
	ResultID string `gorm:"size:26;index;not null" json:"result_id"`

	URL      string  `gorm:"type:text;not null" json:"url"`
	RepoRef  *string `gorm:"type:varchar(255)" json:"repo_ref,omitempty"`
	ModelKey string  `gorm:"type:varchar(64);not null" json:"model"`

	// Higher runs first.
	Priority int       `gorm:"not null;default:0;index:idx_analysis_jobs_claim,priority:2" json:"priority"`
	Status   JobStatus `gorm:"type:varchar(16);not null;index:idx_analysis_jobs_claim,priority:1" json:"status"`

	// Set in the same transaction as the ledger increment.
	CreditsCharged bool `gorm:"not null;default:false" json:"-"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `gorm:"index" json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Job) TableName() string { return "analysis_jobs" }

// Result holds what a job produced. It outlives the job.
type Result struct {
	ID     string       `gorm:"primaryKey;size:26" json:"result_id"`
	UserID uint64       `gorm:"index;not null" json:"-"`
	URL    string       `gorm:"type:text;not null" json:"url"`
	Status ResultStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	RawText string              `json:"-"`
	Profile *assessment.Profile `gorm:"serializer:json" json:"profile,omitempty"`

	FindabilityScore         *int `json:"findability_score,omitempty"`
	MobileUsabilityScore     *int `json:"mobile_usability_score,omitempty"`
	OfferClarityScore        *int `json:"offer_clarity_score,omitempty"`
	TrustProofScore          *int `json:"trust_proof_score,omitempty"`
	ConversionReadinessScore *int `json:"conversion_readiness_score,omitempty"`
	OverallScore             *int `json:"overall_score,omitempty"`

	Performance  *acquire.Performance     `gorm:"serializer:json" json:"performance,omitempty"`
	CodeAnalysis *assessment.CodeAnalysis `gorm:"serializer:json" json:"code_analysis,omitempty"`

	ScreenshotPath *string `gorm:"type:varchar(512)" json:"screenshot_path,omitempty"`
	Error          *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (Result) TableName() string { return "analysis_results" }

// CreditLedger is a user's cumulative credit consumption.
type CreditLedger struct {
	UserID      uint64 `gorm:"primaryKey;autoIncrement:false"`
	CreditsUsed int64  `gorm:"not null;default:0"`
	UpdatedAt   time.Time
}

func (CreditLedger) TableName() string { return "credit_ledgers" }

// DispatchGate is written first by every claim transaction so that concurrent
// claims queue on its row lock.
type DispatchGate struct {
	Name      string `gorm:"primaryKey;size:64"`
	Ticks     int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (DispatchGate) TableName() string { return "dispatch_gates" }
