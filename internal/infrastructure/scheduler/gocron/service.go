package scheduler

import (
	"fmt"
	"time"

	"github.com/Da-devs/dPay/internal/core/ports"
	"github.com/go-co-op/gocron"
)

type service struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

// ScheduleTask runs task every interval. Unless immediate is set, the first
// run happens after one full interval.
func (s *service) ScheduleTask(interval time.Duration, immediate bool, task func()) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval, must be positive")
	}

	job := s.scheduler.Every(interval)
	if !immediate {
		job = job.WaitForSchedule()
	}
	if _, err := job.Do(task); err != nil {
		return fmt.Errorf("failed to schedule task: %s", err)
	}
	return nil
}
