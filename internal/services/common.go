package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/skillforge-backend/internal/platform/apierr"
	"github.com/yungbote/skillforge-backend/internal/platform/ctxutil"
)

func errNotAuthenticated() error {
	return apierr.Unauthorized("unauthorized", fmt.Errorf("not authenticated"))
}

// caller returns the authenticated user of ctx.
func caller(ctx context.Context) (*ctxutil.RequestData, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil || rd.OrganizationID == uuid.Nil {
		return nil, errNotAuthenticated()
	}
	return rd, nil
}
