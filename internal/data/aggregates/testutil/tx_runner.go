package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/skillforge-backend/internal/data/aggregates"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
)

// InjectedTxRunner runs the body without a database and lets tests force
// failures at begin or commit. The body receives a dbctx.Context with a nil Tx,
// so fake repos see the same calls they would inside a real transaction.
type InjectedTxRunner struct {
	mu sync.Mutex

	FailBegin  error
	FailCommit error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin, failCommit := r.FailBegin, r.FailCommit
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if fn != nil {
		if err := fn(dbctx.Context{Ctx: ctx}); err != nil {
			r.finish(false)
			return err
		}
	}
	if failCommit != nil {
		r.finish(false)
		return failCommit
	}
	r.finish(true)
	return nil
}

func (r *InjectedTxRunner) finish(committed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if committed {
		r.CommitCalls++
	} else {
		r.RollbackCalls++
	}
}
