package service

import (
	"sort"
	"strconv"
	"time"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
)

type daySlot struct {
	number  string
	lecture *models.LectureSlot
	start   time.Time
	end     time.Time
}

// todaysSlots returns the non-BREAK lectures of now's weekday ordered by
// start time, then slot number, then lecture ID. Slots with unparseable or
// inverted times are skipped.
func todaysSlots(tt models.Timetable, now time.Time) []daySlot {
	slots := tt.Day(now.Weekday())
	out := make([]daySlot, 0, len(slots))
	for number, lecture := range slots {
		if lecture == nil || lecture.IsBreak() {
			continue
		}
		start, end, err := lecture.Interval(now)
		if err != nil || !end.After(start) {
			continue
		}
		out = append(out, daySlot{number: number, lecture: lecture, start: start, end: end})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.start.Equal(b.start) {
			return a.start.Before(b.start)
		}
		if a.number != b.number {
			return slotLess(a.number, b.number)
		}
		return a.lecture.ID < b.lecture.ID
	})
	return out
}

// slotLess orders slot keys numerically when both are numbers.
func slotLess(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}

func (s daySlot) contains(now time.Time) bool {
	return !now.Before(s.start) && now.Before(s.end)
}

// FindActiveLecture returns the lecture whose [start, end) window contains
// now. BREAK slots never match. When windows overlap the earliest start wins.
func FindActiveLecture(tt models.Timetable, now time.Time) (*models.LectureSlot, bool) {
	for _, slot := range todaysSlots(tt, now) {
		if slot.contains(now) {
			lecture := *slot.lecture
			return &lecture, true
		}
	}
	return nil, false
}

// TodaysSchedule labels every lecture of the day as upcoming, active or
// finished using the same [start, end) window as FindActiveLecture.
func TodaysSchedule(tt models.Timetable, now time.Time) []models.ScheduleEntry {
	slots := todaysSlots(tt, now)
	entries := make([]models.ScheduleEntry, 0, len(slots))
	for _, slot := range slots {
		status := models.ScheduleUpcoming
		switch {
		case !now.Before(slot.end):
			status = models.ScheduleFinished
		case slot.contains(now):
			status = models.ScheduleActive
		}
		entries = append(entries, models.ScheduleEntry{
			SlotNumber: slot.number,
			Lecture:    *slot.lecture,
			Status:     status,
		})
	}
	return entries
}
