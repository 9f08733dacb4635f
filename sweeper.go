package tenantauth

import (
	"context"
	"sync"
	"time"

	"github.com/crmforge/tenantauth/revocation"
)

// sweeper periodically repairs the revocation keyspace, deleting blacklist
// entries that lost their TTL to a partial failure. Normal expiry is
// Redis's job; this loop only handles the anomaly.
type sweeper struct {
	registry *revocation.Registry
	interval time.Duration
	onSweep  func(swept int, err error)

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func newSweeper(registry *revocation.Registry, interval time.Duration, onSweep func(int, error)) *sweeper {
	return &sweeper{
		registry: registry,
		interval: interval,
		onSweep:  onSweep,
		done:     make(chan struct{}),
	}
}

func (s *sweeper) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run()
	})
}

func (s *sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			swept, err := s.registry.Sweep(context.Background())
			if s.onSweep != nil {
				s.onSweep(swept, err)
			}
		case <-s.done:
			return
		}
	}
}

func (s *sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}
