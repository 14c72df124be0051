package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/hikoo/napcat-mailer/internal/conf"
)

// Scheduler fires the pipeline at the configured HH:MM slots. It checks
// the wall clock every second against the live config snapshot, so slot
// changes take effect on the next tick; each slot fires at most once per
// calendar minute.
type Scheduler struct {
	cfg      *conf.Provider
	pipeline *PipelineService

	mu        sync.Mutex
	lastFired map[string]string // slot -> last fired minute key

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *conf.Provider, pipeline *PipelineService) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		pipeline:  pipeline,
		lastFired: make(map[string]string),
		stopCh:    make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
	fmt.Printf("[Scheduler] Started with run times %v\n", s.cfg.Snapshot().RunTimes)
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	fmt.Println("[Scheduler] Stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(time.Now())
		case <-s.stopCh:
			return
		}
	}
}

// tick fires the pipeline when now's HH:MM matches a configured slot that
// has not fired this minute yet
func (s *Scheduler) tick(now time.Time) {
	current := now.Format("15:04")
	minuteKey := now.Format("2006-01-02 15:04")

	for _, slot := range s.cfg.Snapshot().RunTimes {
		if slot != current {
			continue
		}

		s.mu.Lock()
		fired := s.lastFired[slot] == minuteKey
		if !fired {
			s.lastFired[slot] = minuteKey
		}
		s.mu.Unlock()

		if fired {
			continue
		}

		fmt.Printf("[Scheduler] Slot %s reached\n", slot)
		s.pipeline.Trigger("schedule:" + slot)
	}
}
