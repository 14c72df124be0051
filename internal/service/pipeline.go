package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/hikoo/napcat-mailer/internal/biz/usecase"
)

// PipelineService owns the worker that runs delivery cycles. Triggers from
// the scheduler and the operator surface funnel into one channel; a trigger
// arriving while the worker is busy and one is already queued is dropped.
type PipelineService struct {
	cycleUC *usecase.CycleUsecase

	triggerCh chan string
	stopCh    chan struct{}
	wg        sync.WaitGroup

	running bool
}

// NewPipelineService creates a new pipeline service
func NewPipelineService(cycleUC *usecase.CycleUsecase) *PipelineService {
	return &PipelineService{
		cycleUC:   cycleUC,
		triggerCh: make(chan string, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start starts the pipeline worker
func (s *PipelineService) Start() {
	if s.running {
		return
	}
	s.running = true
	s.wg.Add(1)
	go s.loop()
	fmt.Println("[Pipeline] Started")
}

// Stop stops the pipeline worker
func (s *PipelineService) Stop() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.wg.Wait()
	fmt.Println("[Pipeline] Stopped")
}

// Trigger requests a cycle run attributed to source. Returns false when the
// request was dropped because a trigger is already pending.
func (s *PipelineService) Trigger(source string) bool {
	select {
	case s.triggerCh <- source:
		return true
	default:
		fmt.Printf("[Pipeline] Trigger from %s dropped, one already pending\n", source)
		return false
	}
}

func (s *PipelineService) loop() {
	defer s.wg.Done()

	for {
		select {
		case source := <-s.triggerCh:
			outcome := s.cycleUC.Run(context.Background(), source)
			fmt.Printf("[Pipeline] Cycle finished: status=%s count=%d\n", outcome.Status, outcome.Count)
		case <-s.stopCh:
			return
		}
	}
}
