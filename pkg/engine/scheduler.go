package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/wieldops/wield/pkg/telemetry"
)

// Scheduler runs applies for many nodes with a bounded worker pool.
// Runs for distinct nodes are fully independent and execute in parallel;
// runs targeting the same node are serialized by the lock manager, not by
// anything in-process, so racing operators in separate processes get the
// same exclusion.
type Scheduler struct {
	runner      *Runner
	maxParallel int
	log         *telemetry.Logger
}

// NewScheduler creates a scheduler around the given runner.
func NewScheduler(runner *Runner, maxParallel int, log *telemetry.Logger) *Scheduler {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Scheduler{
		runner:      runner,
		maxParallel: maxParallel,
		log:         log.NewComponentLogger("scheduler"),
	}
}

// ApplyAll applies every node and returns one result per node, sorted by
// node identity. A node whose run aborts does not affect other nodes.
func (s *Scheduler) ApplyAll(ctx context.Context, nodes []*Node, opts ApplyOptions) []*RunResult {
	workerCount := s.maxParallel
	if len(nodes) < workerCount {
		workerCount = len(nodes)
	}

	workQueue := make(chan *Node, len(nodes))
	for _, node := range nodes {
		workQueue <- node
	}
	close(workQueue)

	var (
		mu      sync.Mutex
		results []*RunResult
		wg      sync.WaitGroup
	)

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for node := range workQueue {
				result, err := s.runner.Apply(ctx, node, opts)
				if err != nil && result == nil {
					s.log.WithNodeID(node.ID).WithError(err).Error("apply failed before a result was produced")
					continue
				}

				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].NodeID < results[j].NodeID
	})
	return results
}
