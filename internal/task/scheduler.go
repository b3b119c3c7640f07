package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultInterval = time.Minute

var ErrInvalidSchedule = errors.New("task: invalid schedule")

type RunnerFunc func(context.Context)

// ParseSchedule accepts a standard five-field cron expression or a descriptor such as
// "@hourly". An empty expression yields a constant delay of fallbackInterval.
func ParseSchedule(expression string, fallbackInterval time.Duration) (cron.Schedule, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		if fallbackInterval <= 0 {
			fallbackInterval = defaultInterval
		}
		return cron.Every(fallbackInterval), nil
	}
	schedule, parseErr := cron.ParseStandard(trimmed)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, parseErr)
	}
	return schedule, nil
}

type Scheduler struct {
	schedule     cron.Schedule
	runner       RunnerFunc
	now          func() time.Time
	trigger      chan struct{}
	controlMutex sync.Mutex
	cancel       context.CancelFunc
	done         chan struct{}
}

func NewScheduler(schedule cron.Schedule, runner RunnerFunc) *Scheduler {
	if schedule == nil {
		schedule = cron.Every(defaultInterval)
	}
	return &Scheduler{
		schedule: schedule,
		runner:   runner,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}
}

func (scheduler *Scheduler) Start(ctx context.Context) {
	if scheduler == nil || scheduler.runner == nil {
		return
	}
	scheduler.controlMutex.Lock()
	if scheduler.cancel != nil {
		scheduler.controlMutex.Unlock()
		return
	}
	runtimeCtx, cancel := context.WithCancel(ctx)
	scheduler.cancel = cancel
	done := make(chan struct{})
	scheduler.done = done
	scheduler.controlMutex.Unlock()

	go scheduler.loop(runtimeCtx, done)
}

// Trigger requests an immediate run; requests made while one is pending are coalesced.
func (scheduler *Scheduler) Trigger() {
	if scheduler == nil {
		return
	}
	select {
	case scheduler.trigger <- struct{}{}:
	default:
	}
}

func (scheduler *Scheduler) Stop() {
	if scheduler == nil {
		return
	}
	scheduler.controlMutex.Lock()
	cancel := scheduler.cancel
	done := scheduler.done
	scheduler.cancel = nil
	scheduler.done = nil
	scheduler.controlMutex.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (scheduler *Scheduler) nextDelay() time.Duration {
	current := scheduler.now()
	next := scheduler.schedule.Next(current)
	if next.IsZero() {
		return defaultInterval
	}
	delay := next.Sub(current)
	if delay < 0 {
		return 0
	}
	return delay
}

func (scheduler *Scheduler) loop(ctx context.Context, done chan struct{}) {
	timer := time.NewTimer(scheduler.nextDelay())
	defer func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}()
	defer func() {
		if done != nil {
			close(done)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-scheduler.trigger:
			scheduler.run(ctx)
		case <-timer.C:
			scheduler.run(ctx)
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(scheduler.nextDelay())
	}
}

func (scheduler *Scheduler) run(ctx context.Context) {
	if scheduler.runner == nil {
		return
	}
	scheduler.runner(ctx)
}
