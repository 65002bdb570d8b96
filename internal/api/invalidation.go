package api

import "context"

type userSummaries interface {
	InvalidateUser(ctx context.Context, userID string)
}

type userRecommendations interface {
	Invalidate(ctx context.Context, userID string)
}

// UserInvalidator drops every cached artifact derived from a user's
// profile, progress or routines.
type UserInvalidator struct {
	Summaries       userSummaries
	Recommendations userRecommendations
}

func (u UserInvalidator) InvalidateUser(ctx context.Context, userID string) {
	if u.Summaries != nil {
		u.Summaries.InvalidateUser(ctx, userID)
	}
	if u.Recommendations != nil {
		u.Recommendations.Invalidate(ctx, userID)
	}
}
