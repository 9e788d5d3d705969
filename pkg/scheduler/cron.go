// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NaturalToCron converts "in N minutes" or "at HH:MM" into a one-shot cron
// expression pinned to the computed day and month. Returns ok=false when
// neither form is usable; an at-time already past today rolls to tomorrow.
func NaturalToCron(inMinutes *int, atTime string, now time.Time) (string, bool) {
	if inMinutes != nil && *inMinutes >= 0 {
		t := now.Add(time.Duration(*inMinutes) * time.Minute)
		return oneShot(t), true
	}

	atTime = strings.TrimSpace(atTime)
	if atTime == "" {
		return "", false
	}
	for _, sep := range []string{":", "."} {
		if !strings.Contains(atTime, sep) {
			continue
		}
		parts := strings.SplitN(atTime, sep, 2)
		h, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		mm := strings.TrimSpace(parts[1])
		if len(mm) > 2 {
			mm = mm[:2]
		}
		m, err2 := strconv.Atoi(mm)
		if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
			continue
		}
		runAt := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location())
		if !runAt.After(now) {
			runAt = runAt.AddDate(0, 0, 1)
		}
		return oneShot(runAt), true
	}
	return "", false
}

func oneShot(t time.Time) string {
	return fmt.Sprintf("%d %d %d %d *", t.Minute(), t.Hour(), t.Day(), int(t.Month()))
}
