package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/suPer8Hu/siteaudit/internal/acquire"
	"github.com/suPer8Hu/siteaudit/internal/assessment"
	"github.com/suPer8Hu/siteaudit/internal/common"
)

// StaleJobMessage is written to jobs the reaper recovers.
const StaleJobMessage = "Job timeout (5+ minutes)"

const gateName = "analysis"

// ErrNotProcessing means the job left processing (usually reaped) before the
// worker could finish it.
var ErrNotProcessing = errors.New("job is no longer processing")

var activeResultStatuses = []ResultStatus{ResultPending, ResultCrawling, ResultAnalyzing}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.AutoMigrate(&Job{}, &Result{}, &CreditLedger{}, &DispatchGate{}); err != nil {
		return err
	}
	return db.FirstOrCreate(&DispatchGate{Name: gateName}, DispatchGate{Name: gateName}).Error
}

// Submission is a new analysis request.
type Submission struct {
	UserID   uint64
	URL      string
	RepoRef  *string
	ModelKey string
	Priority int
}

// Enqueue creates a pending job and its pending result in one transaction.
func (r *Repo) Enqueue(ctx context.Context, s Submission) (*Job, error) {
	jobID, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	resultID, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:       jobID,
		UserID:   s.UserID,
		ResultID: resultID,
		URL:      s.URL,
		RepoRef:  s.RepoRef,
		ModelKey: s.ModelKey,
		Priority: s.Priority,
		Status:   JobPending,
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&Result{ID: resultID, UserID: s.UserID, URL: s.URL, Status: ResultPending}).Error; err != nil {
			return err
		}
		return tx.Create(job).Error
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *Repo) GetJob(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) GetResult(ctx context.Context, id string) (*Result, error) {
	var res Result
	if err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *Repo) CountProcessing(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Job{}).Where("status = ?", JobProcessing).Count(&n).Error
	return n, err
}

// ReapStale fails jobs that have been processing since before now-staleAfter,
// together with their results. It returns the number of jobs reaped.
func (r *Repo) ReapStale(ctx context.Context, now time.Time, staleAfter time.Duration) (int64, error) {
	cutoff := now.Add(-staleAfter)
	var reaped int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stale []Job
		if err := tx.Select("id", "result_id").
			Where("status = ? AND started_at < ?", JobProcessing, cutoff).
			Find(&stale).Error; err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}

		jobIDs := make([]string, 0, len(stale))
		resultIDs := make([]string, 0, len(stale))
		for _, j := range stale {
			jobIDs = append(jobIDs, j.ID)
			resultIDs = append(resultIDs, j.ResultID)
		}

		res := tx.Model(&Job{}).
			Where("id IN ? AND status = ?", jobIDs, JobProcessing).
			Updates(map[string]any{
				"status":       JobError,
				"error":        StaleJobMessage,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		reaped = res.RowsAffected

		return tx.Model(&Result{}).
			Where("id IN ? AND status IN ?", resultIDs, activeResultStatuses).
			Updates(map[string]any{
				"status": ResultError,
				"error":  StaleJobMessage,
			}).Error
	})
	return reaped, err
}

// Reconcile copies the terminal error of a job onto a result that was left in
// an active status. The job record wins.
func (r *Repo) Reconcile(ctx context.Context) (int64, error) {
	var fixed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var orphaned []Job
		if err := tx.Select("id", "result_id", "error").
			Where("status = ?", JobError).
			Where("result_id IN (?)", tx.Model(&Result{}).Select("id").Where("status IN ?", activeResultStatuses)).
			Find(&orphaned).Error; err != nil {
			return err
		}
		for _, j := range orphaned {
			msg := StaleJobMessage
			if j.Error != nil && *j.Error != "" {
				msg = *j.Error
			}
			res := tx.Model(&Result{}).
				Where("id = ? AND status IN ?", j.ResultID, activeResultStatuses).
				Updates(map[string]any{"status": ResultError, "error": msg})
			if res.Error != nil {
				return res.Error
			}
			fixed += res.RowsAffected
		}
		return nil
	})
	return fixed, err
}

// ClaimPending moves up to maxProcessing-minus-current pending jobs to
// processing, highest priority then oldest first, in one transaction.
func (r *Repo) ClaimPending(ctx context.Context, maxProcessing int, now time.Time) ([]Job, error) {
	var claimed []Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchGate(tx, now); err != nil {
			return fmt.Errorf("dispatch gate: %w", err)
		}

		var processing int64
		if err := tx.Model(&Job{}).Where("status = ?", JobProcessing).Count(&processing).Error; err != nil {
			return err
		}
		slots := maxProcessing - int(processing)
		if slots <= 0 {
			return nil
		}

		var candidates []Job
		if err := tx.Where("status = ?", JobPending).
			Order("priority DESC").
			Order("created_at ASC").
			Order("id ASC").
			Limit(slots).
			Find(&candidates).Error; err != nil {
			return err
		}

		for _, j := range candidates {
			res := tx.Model(&Job{}).
				Where("id = ? AND status = ?", j.ID, JobPending).
				Updates(map[string]any{"status": JobProcessing, "started_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				j.Status = JobProcessing
				started := now
				j.StartedAt = &started
				claimed = append(claimed, j)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func touchGate(tx *gorm.DB, now time.Time) error {
	res := tx.Model(&DispatchGate{}).
		Where("name = ?", gateName).
		Updates(map[string]any{"ticks": gorm.Expr("ticks + 1"), "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return tx.Create(&DispatchGate{Name: gateName, Ticks: 1, UpdatedAt: now}).Error
}

// SetResultStatus advances an active result's status mirror.
func (r *Repo) SetResultStatus(ctx context.Context, resultID string, status ResultStatus) error {
	return r.db.WithContext(ctx).Model(&Result{}).
		Where("id = ? AND status IN ?", resultID, activeResultStatuses).
		Update("status", status).Error
}

func (r *Repo) SetScreenshot(ctx context.Context, resultID, key string) error {
	return r.db.WithContext(ctx).Model(&Result{}).
		Where("id = ?", resultID).
		Update("screenshot_path", key).Error
}

// Outcome is what a successful job writes to its result.
type Outcome struct {
	RawText     string
	Assessment  *assessment.Assessment
	Performance *acquire.Performance
}

// Complete writes the result and marks both records completed in one
// transaction. It returns ErrNotProcessing if the job was reaped meanwhile.
func (r *Repo) Complete(ctx context.Context, job Job, out Outcome, now time.Time) error {
	a := out.Assessment
	if a == nil {
		return errors.New("complete: missing assessment")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Job{}).
			Where("id = ? AND status = ?", job.ID, JobProcessing).
			Updates(map[string]any{
				"status":       JobCompleted,
				"error":        nil,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotProcessing
		}

		profile := a.Profile
		return tx.Model(&Result{ID: job.ResultID}).
			Select("*").Omit("id", "user_id", "url", "created_at", "screenshot_path").
			Updates(&Result{
				Status:                   ResultCompleted,
				RawText:                  out.RawText,
				Profile:                  &profile,
				FindabilityScore:         intPtr(a.Scores.Findability),
				MobileUsabilityScore:     intPtr(a.Scores.MobileUsability),
				OfferClarityScore:        intPtr(a.Scores.OfferClarity),
				TrustProofScore:          intPtr(a.Scores.TrustProof),
				ConversionReadinessScore: intPtr(a.Scores.ConversionReadiness),
				OverallScore:             intPtr(a.OverallScore),
				Performance:              out.Performance,
				CodeAnalysis:             a.CodeAnalysis,
				Error:                    nil,
				UpdatedAt:                now,
				CompletedAt:              &now,
			}).Error
	})
}

// Fail marks the job and its result as errored with msg and clears any partial
// result fields. A job that already left processing keeps its status.
func (r *Repo) Fail(ctx context.Context, job Job, msg string, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Job{}).
			Where("id = ? AND status = ?", job.ID, JobProcessing).
			Updates(map[string]any{
				"status":       JobError,
				"error":        msg,
				"completed_at": now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&Result{}).
			Where("id = ? AND status IN ?", job.ResultID, activeResultStatuses).
			Updates(map[string]any{
				"status":                     ResultError,
				"error":                      msg,
				"raw_text":                   "",
				"profile":                    nil,
				"findability_score":          nil,
				"mobile_usability_score":     nil,
				"offer_clarity_score":        nil,
				"trust_proof_score":          nil,
				"conversion_readiness_score": nil,
				"overall_score":              nil,
				"performance":                nil,
				"code_analysis":              nil,
			}).Error
	})
}

// ChargeCredits adds cost to the user's ledger exactly once per completed job.
// It reports whether this call did the charge.
func (r *Repo) ChargeCredits(ctx context.Context, jobID string, userID uint64, cost int, now time.Time) (bool, error) {
	charged := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Job{}).
			Where("id = ? AND status = ? AND credits_charged = ?", jobID, JobCompleted, false).
			Update("credits_charged", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		charged = true
		if cost == 0 {
			return nil
		}
		return incrementLedger(tx, userID, int64(cost), now)
	})
	if err != nil {
		return false, err
	}
	return charged, nil
}

func incrementLedger(tx *gorm.DB, userID uint64, delta int64, now time.Time) error {
	add := func() (int64, error) {
		res := tx.Model(&CreditLedger{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"credits_used": gorm.Expr("credits_used + ?", delta),
				"updated_at":   now,
			})
		return res.RowsAffected, res.Error
	}

	n, err := add()
	if err != nil || n > 0 {
		return err
	}

	// First charge for this user. A concurrent first charge may win the insert;
	// fall back to the increment in that case.
	if err := tx.SavePoint("ledger_insert").Error; err != nil {
		return err
	}
	if err := tx.Create(&CreditLedger{UserID: userID, CreditsUsed: delta, UpdatedAt: now}).Error; err == nil {
		return nil
	}
	if err := tx.RollbackTo("ledger_insert").Error; err != nil {
		return err
	}
	n, err = add()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("credit ledger for user %d: neither insert nor update applied", userID)
	}
	return nil
}

// CreditsUsed returns the user's ledger total, zero if none.
func (r *Repo) CreditsUsed(ctx context.Context, userID uint64) (int64, error) {
	var l CreditLedger
	err := r.db.WithContext(ctx).First(&l, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return l.CreditsUsed, nil
}

func intPtr(v int) *int { return &v }
