package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillforge-backend/internal/platform/ctxutil"
)

func TestAuthRoundTrip(t *testing.T) {
	svc := NewAuthService(mustTestLogger(t), "test-secret")
	userID, orgID := uuid.New(), uuid.New()
	token, err := svc.IssueToken(userID, orgID, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	ctx, err := svc.SetContextFromToken(context.Background(), token)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID != userID || rd.OrganizationID != orgID || rd.TokenID == "" {
		t.Fatalf("request data: %+v", rd)
	}
}

func TestAuthRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(mustTestLogger(t), "test-secret")
	other := NewAuthService(mustTestLogger(t), "other-secret")

	foreign, _ := other.IssueToken(uuid.New(), uuid.New(), time.Minute)
	defaulted, _ := svc.IssueToken(uuid.New(), uuid.New(), -time.Minute)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": foreign,
	}
	for name, tok := range cases {
		if _, err := svc.SetContextFromToken(context.Background(), tok); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	// a non-positive ttl falls back to the default, so the token is valid
	if _, err := svc.SetContextFromToken(context.Background(), defaulted); err != nil {
		t.Fatalf("default ttl token rejected: %v", err)
	}
}
