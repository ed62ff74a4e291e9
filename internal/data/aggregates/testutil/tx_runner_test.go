package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
)

func TestInjectedTxRunner(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name         string
		runner       *InjectedTxRunner
		body         error
		wantErr      error
		wantCalled   bool
		wantCommit   int
		wantRollback int
	}{
		{name: "commit", runner: &InjectedTxRunner{}, wantCalled: true, wantCommit: 1},
		{name: "body error", runner: &InjectedTxRunner{}, body: boom, wantErr: boom, wantCalled: true, wantRollback: 1},
		{name: "commit error", runner: &InjectedTxRunner{FailCommit: boom}, wantErr: boom, wantCalled: true, wantRollback: 1},
		{name: "begin error", runner: &InjectedTxRunner{FailBegin: boom}, wantErr: boom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			err := tc.runner.InTx(context.Background(), func(dbc dbctx.Context) error {
				called = true
				if dbc.Tx != nil {
					t.Fatalf("injected runner must not hand out a tx")
				}
				return tc.body
			})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err: want=%v got=%v", tc.wantErr, err)
			}
			if called != tc.wantCalled {
				t.Fatalf("body called=%v want=%v", called, tc.wantCalled)
			}
			r := tc.runner
			if r.BeginCalls != 1 || r.CommitCalls != tc.wantCommit || r.RollbackCalls != tc.wantRollback {
				t.Fatalf("counters begin=%d commit=%d rollback=%d", r.BeginCalls, r.CommitCalls, r.RollbackCalls)
			}
		})
	}
}
