package models

import (
	"fmt"
	"strings"
	"time"
)

// BreakCourseCode marks a timetable slot that is not a class.
const BreakCourseCode = "BREAK"

// LectureSlot is a single lecture in the weekly timetable as served by the backend.
type LectureSlot struct {
	ID         string `json:"id"`
	CourseCode string `json:"courseCode"`
	TeacherID  string `json:"teacherId"`
	RoomNumber string `json:"roomNumber"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Day        string `json:"day,omitempty"`
	BranchID   string `json:"branchId,omitempty"`
}

// IsBreak reports whether the slot is the BREAK sentinel.
func (s LectureSlot) IsBreak() bool {
	return strings.EqualFold(strings.TrimSpace(s.CourseCode), BreakCourseCode)
}

// Interval returns the slot's [start, end) bounds on the calendar day of ref.
func (s LectureSlot) Interval(ref time.Time) (time.Time, time.Time, error) {
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("lecture %s start: %w", s.ID, err)
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("lecture %s end: %w", s.ID, err)
	}
	return start.On(ref), end.On(ref), nil
}

// Timetable maps a weekday name (Monday..Sunday) to slot number to lecture.
// A nil lecture marks an empty slot.
type Timetable map[string]map[string]*LectureSlot

// Day returns the slots scheduled on the given weekday.
func (t Timetable) Day(day time.Weekday) map[string]*LectureSlot {
	if t == nil {
		return nil
	}
	if slots, ok := t[day.String()]; ok {
		return slots
	}
	// Tolerate lower-case keys from older backends.
	for name, slots := range t {
		if strings.EqualFold(name, day.String()) {
			return slots
		}
	}
	return nil
}

// ClockTime is a wall-clock time of day in minutes since midnight.
type ClockTime int

// ParseClock parses HH:MM (seconds are accepted and ignored).
func ParseClock(raw string) (ClockTime, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return ClockTime(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid clock time %q", raw)
}

// On anchors the clock time to the calendar day of ref, in ref's location.
func (c ClockTime) On(ref time.Time) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, ref.Location())
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ScheduleStatus labels a lecture relative to the current time.
type ScheduleStatus string

const (
	ScheduleUpcoming ScheduleStatus = "upcoming"
	ScheduleActive   ScheduleStatus = "active"
	ScheduleFinished ScheduleStatus = "finished"
)

// ScheduleEntry is one row of today's schedule.
type ScheduleEntry struct {
	SlotNumber string         `json:"slotNumber"`
	Lecture    LectureSlot    `json:"lecture"`
	Status     ScheduleStatus `json:"status"`
}
