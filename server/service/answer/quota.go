package answer

import (
	"context"
	"fmt"
	"time"

	"github.com/acswi/programchat/store"
)

// quotaMessage is the fixed reply when the daily quota is exhausted.
const quotaMessage = "You have reached your daily limit of %d questions for the %s program. Your quota resets at midnight UTC."

// QuotaStatus is the result of a quota check for one (user, program) pair.
type QuotaStatus struct {
	Quota    int32
	Used     int64
	Exceeded bool
}

// Remaining reports how many questions are left today. Unlimited programs
// (quota <= 0) report -1.
func (q QuotaStatus) Remaining() int32 {
	if q.Quota <= 0 {
		return -1
	}
	remaining := q.Quota - int32(q.Used)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// utcDayBounds returns [start, end) of the UTC calendar day containing now.
func utcDayBounds(now time.Time) (int64, int64) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start.Unix(), start.Add(24 * time.Hour).Unix()
}

// quotaStatus counts today's turns for the pair and compares against the
// program quota. Hidden turns count too, so clearing history never resets
// the quota. There is no atomic reservation; a concurrent burst can land
// at most one turn over quota.
func (s *Service) quotaStatus(ctx context.Context, userID int32, program *store.Program) (QuotaStatus, error) {
	status := QuotaStatus{Quota: program.DailyQuota}
	if program.DailyQuota <= 0 {
		return status, nil
	}

	start, end := utcDayBounds(time.Now())
	code := program.Code
	used, err := s.store.CountConversationTurns(ctx, &store.FindConversationTurn{
		UserID:          &userID,
		ProgramCode:     &code,
		CreatedTsAfter:  &start,
		CreatedTsBefore: &end,
	})
	if err != nil {
		return status, err
	}

	status.Used = used
	status.Exceeded = used >= int64(program.DailyQuota)
	return status, nil
}

func (s *Service) quotaReply(program *store.Program) string {
	name := program.Name
	if name == "" {
		name = program.Code
	}
	return fmt.Sprintf(quotaMessage, program.DailyQuota, name)
}
