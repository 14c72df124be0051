package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hikoo/napcat-mailer/internal/biz/domain"
	"github.com/hikoo/napcat-mailer/internal/biz/repo"
	"github.com/hikoo/napcat-mailer/internal/conf"
)

// CycleUsecase drives one end-to-end delivery cycle:
// select batch -> summarize -> render -> deliver -> commit.
//
// The store is only touched at the boundaries: the batch read up front, and
// the processed-flag/summary-record commit after a confirmed delivery. Every
// failure before the commit leaves the store untouched, so the same batch is
// retried by the next cycle.
type CycleUsecase struct {
	cfg        *conf.Provider
	store      repo.MessageRepo
	summarizer repo.SummarizerRepo
	mailer     repo.MailRepo

	// At most one cycle may be active; concurrent triggers are rejected,
	// never queued
	runMu sync.Mutex

	// fatalf stops the process when a delivered batch cannot be committed.
	// Overridable in tests, log.Fatalf otherwise.
	fatalf func(format string, v ...any)

	lastMu sync.RWMutex
	last   domain.CycleOutcome
}

// NewCycleUsecase creates a new cycle usecase
func NewCycleUsecase(cfg *conf.Provider, store repo.MessageRepo, summarizer repo.SummarizerRepo, mailer repo.MailRepo) *CycleUsecase {
	return &CycleUsecase{
		cfg:        cfg,
		store:      store,
		summarizer: summarizer,
		mailer:     mailer,
		fatalf:     log.Fatalf,
	}
}

// Run executes one cycle and returns its outcome. A trigger arriving while
// another cycle is active gets the busy outcome and changes nothing.
func (uc *CycleUsecase) Run(ctx context.Context, triggeredBy string) domain.CycleOutcome {
	if !uc.runMu.TryLock() {
		return domain.CycleOutcome{
			Status:      domain.StatusBusy,
			Message:     "已有任务正在执行",
			TriggeredBy: triggeredBy,
			Timestamp:   time.Now(),
		}
	}
	defer uc.runMu.Unlock()

	outcome := uc.run(ctx, triggeredBy)
	uc.setLast(outcome)
	return outcome
}

func (uc *CycleUsecase) run(ctx context.Context, triggeredBy string) domain.CycleOutcome {
	fmt.Printf("[Cycle] Triggered by %s\n", triggeredBy)
	cfg := uc.cfg.Snapshot()

	batch, err := uc.store.ListUnprocessed(ctx, cfg.BatchMaxMessages)
	if err != nil {
		// Store unavailability is the one condition worth alarming hard on
		fmt.Printf("[Cycle] Store read failed: %v\n", err)
		return uc.outcome(domain.StatusNoMessages, triggeredBy, 0, "读取消息失败: "+err.Error())
	}
	if len(batch) == 0 {
		return uc.outcome(domain.StatusNoMessages, triggeredBy, 0, "没有未处理消息")
	}

	fmt.Printf("[Cycle] Processing %d messages\n", len(batch))

	summary, err := uc.summarizer.Summarize(ctx, batch)
	if err != nil {
		// Hard failure: endpoint unreachable or erroring. Store untouched so
		// the next cycle retries the same batch.
		fmt.Printf("[Cycle] AI call failed: %v\n", err)
		return uc.outcome(domain.StatusAIFailed, triggeredBy, 0, "AI 接口失败")
	}

	payload := "{}"
	if summary == nil {
		// Soft failure: the model replied but without parseable structure.
		// Render with the fallback and keep going.
		fmt.Println("[Cycle] AI reply not parseable, using fallback structure")
	} else if raw, merr := json.Marshal(summary); merr == nil {
		payload = string(raw)
	}

	subject := BuildSubject(batch, time.Now())
	body := RenderEmail(summary, batch)

	if err := uc.mailer.Send(ctx, subject, body); err != nil {
		fmt.Printf("[Cycle] Email send failed: %v\n", err)
		return uc.outcome(domain.StatusEmailFailed, triggeredBy, 0, "邮件发送失败")
	}

	ids := make([]int64, len(batch))
	for i, m := range batch {
		ids[i] = m.ID
	}
	if err := uc.store.CommitCycle(ctx, ids, payload); err != nil {
		// The email went out but the processed marks did not stick. Letting
		// the process keep running would re-read and re-deliver the same
		// batch on the next trigger, so stop here.
		uc.fatalf("[Cycle] FATAL: 已发送但无法记录处理状态: %v", err)
		return uc.outcome(domain.StatusFatal, triggeredBy, len(ids),
			fmt.Sprintf("已发送但无法记录处理状态: %v", err))
	}

	fmt.Printf("[Cycle] Delivered and committed %d messages\n", len(ids))
	return uc.outcome(domain.StatusOK, triggeredBy, len(ids),
		fmt.Sprintf("✅ 成功处理 %d 条消息并发送邮件", len(ids)))
}

func (uc *CycleUsecase) outcome(status domain.CycleStatus, triggeredBy string, count int, message string) domain.CycleOutcome {
	return domain.CycleOutcome{
		Status:      status,
		Message:     message,
		Count:       count,
		TriggeredBy: triggeredBy,
		Timestamp:   time.Now(),
	}
}

func (uc *CycleUsecase) setLast(o domain.CycleOutcome) {
	uc.lastMu.Lock()
	defer uc.lastMu.Unlock()
	uc.last = o
}

// LastOutcome returns the most recent cycle outcome, for the operator
// surface's polling endpoint
func (uc *CycleUsecase) LastOutcome() domain.CycleOutcome {
	uc.lastMu.RLock()
	defer uc.lastMu.RUnlock()
	return uc.last
}
