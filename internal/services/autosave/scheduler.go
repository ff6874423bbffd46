package autosave

import (
	"context"
	"sync"
	"time"

	"cctv-checklist/internal/domain/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Saver 是尽力保存工作记录的一方，persistence.Gateway 实现了它。
type Saver interface {
	Save(ctx context.Context, r model.Record)
}

// Scheduler 决定何时把变更写入存储。
//
// Delay 为 0 时每次变更都同步保存；大于 0 时合并一段时间内的变更，
// 只保存最后一份，Close 时把未落盘的变更写出。
type Scheduler struct {
	saver  Saver
	delay  time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	pending *model.Record
	saves   int

	kick   chan struct{}
	cancel context.CancelFunc
	group  *errgroup.Group
}

func New(saver Saver, delay time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		saver:  saver,
		delay:  delay,
		logger: logger,
		kick:   make(chan struct{}, 1),
	}
}

// Notify 接收一次变更，签名与 checklist.Listener 一致。
func (s *Scheduler) Notify(r model.Record) {
	if s.delay <= 0 {
		s.save(context.Background(), r)
		return
	}
	s.mu.Lock()
	s.pending = &r
	s.mu.Unlock()
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Start 在后台启动防抖循环。Delay 为 0 时无需启动。
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Run(ctx) })
	s.cancel = cancel
	s.group = g
}

// Run 执行防抖循环，直到 ctx 结束；退出前写出未保存的变更。
func (s *Scheduler) Run(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			s.Flush(context.Background())
			return nil
		case <-s.kick:
			if timer == nil {
				timer = time.NewTimer(s.delay)
			} else {
				timer.Reset(s.delay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			s.Flush(ctx)
		}
	}
}

// Flush 立即写出未保存的变更（如果有）。
func (s *Scheduler) Flush(ctx context.Context) {
	s.mu.Lock()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()
	if p != nil {
		s.save(ctx, *p)
	}
}

// Close 停止后台循环并写出未保存的变更。
func (s *Scheduler) Close() error {
	if s.cancel == nil {
		s.Flush(context.Background())
		return nil
	}
	s.cancel()
	err := s.group.Wait()
	s.cancel = nil
	return err
}

// Saves 返回已执行的保存次数。
func (s *Scheduler) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *Scheduler) save(ctx context.Context, r model.Record) {
	s.saver.Save(ctx, r)
	s.mu.Lock()
	s.saves++
	n := s.saves
	s.mu.Unlock()
	s.logger.Debug("autosave", zap.Int("saves", n))
}
