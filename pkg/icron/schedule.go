package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

type TriggerInfo struct {
	Next       time.Time `json:"next"`
	Last       time.Time `json:"last"`
	Expression string    `json:"expression"`

	TimeSinceLast time.Duration `json:"time_since_last"`
	TimeUntilNext time.Duration `json:"time_until_next"`
}

// maxLookback bounds the search for the previous trigger.
const maxLookback = 366 * 24 * time.Hour

// GetTriggerInfo reports the last and next trigger of a standard five field
// cron expression (descriptors such as @hourly are accepted) around refTime.
// Last is zero when the expression did not fire within a year.
func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       schedule.Next(refTime),
		Last:       lastTrigger(schedule, refTime),
	}
	if !info.Last.IsZero() {
		info.TimeSinceLast = refTime.Sub(info.Last)
	}
	info.TimeUntilNext = info.Next.Sub(refTime)
	return info, nil
}

// lastTrigger widens the window backwards until a trigger falls inside it,
// then walks forward to the latest trigger not after refTime.
func lastTrigger(schedule cron.Schedule, refTime time.Time) time.Time {
	for window := time.Minute; window <= maxLookback; window *= 2 {
		candidate := schedule.Next(refTime.Add(-window))
		if candidate.IsZero() || candidate.After(refTime) {
			continue
		}
		for {
			next := schedule.Next(candidate)
			if next.IsZero() || next.After(refTime) {
				return candidate
			}
			candidate = next
		}
	}
	return time.Time{}
}
