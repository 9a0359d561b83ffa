package report

import (
	"fmt"
	"strings"
	"time"

	"report-composer-go/models"
)

const (
	elementaryTime = "15:30 ~ 17:30"
	middleTime     = "17:30 ~ 19:30"
	fallbackTime   = elementaryTime

	fallbackTeacher = "신기정T"
)

type timeRule struct {
	marker string // substring of the grade label
	time   string
}

// Evaluated top to bottom, first match wins.
var timeRules = []timeRule{
	{marker: "초", time: elementaryTime},
	{marker: "중", time: middleTime},
}

type teacherRule struct {
	groups  []string // substrings of the group name
	teacher string
}

// Evaluated top to bottom, first match wins.
var teacherRules = []teacherRule{
	{groups: []string{"중1 정규반", "초등 심화반"}, teacher: "신기정T"},
	{groups: []string{"중2 정규반", "초6 정규반"}, teacher: "홍정욱T"},
	{groups: []string{"중3 정규반"}, teacher: "김윤재T"},
	{groups: []string{"초등 기본반", "중등 개별반"}, teacher: "백금채T"},
}

// DefaultTime returns the class time window for a grade label.
func DefaultTime(grade string) string {
	for _, r := range timeRules {
		if strings.Contains(grade, r.marker) {
			return r.time
		}
	}
	return fallbackTime
}

// DefaultTeacher returns the teacher in charge of a roster group.
func DefaultTeacher(group string) string {
	for _, r := range teacherRules {
		for _, g := range r.groups {
			if strings.Contains(group, g) {
				return r.teacher
			}
		}
	}
	return fallbackTeacher
}

// FormatDate renders t as "2026년 10월 19일 3주차". Weeks are day-of-month buckets of seven.
func FormatDate(t time.Time) string {
	week := (t.Day() + 6) / 7
	return fmt.Sprintf("%d년 %02d월 %02d일 %d주차", t.Year(), int(t.Month()), t.Day(), week)
}

// ImageName is the file name of one captured report.
func ImageName(grade, name string) string {
	return fmt.Sprintf("%s %s.jpg", grade, name)
}

// ArchiveName names the zip for a batch. shared is false when grades differ;
// a shared blank grade still gets the per-grade name.
func ArchiveName(grade string, shared bool, now time.Time) string {
	if shared {
		return grade + "_학습보고서.zip"
	}
	return "학습보고서_모음_" + FormatDate(now) + ".zip"
}

// SharedGrade returns the grade every student has in common. ok is false
// when the grades differ or there are no students.
func SharedGrade(students []models.StudentRef) (grade string, ok bool) {
	if len(students) == 0 {
		return "", false
	}
	first := students[0].Grade
	for _, s := range students[1:] {
		if s.Grade != first {
			return "", false
		}
	}
	return first, true
}

// DefaultFields is the shared record used before anything has been stored.
func DefaultFields(now time.Time) models.ReportFields {
	return models.ReportFields{
		Date:       FormatDate(now),
		Type:       "정규",
		Teacher:    fallbackTeacher,
		Subject:    "수학",
		Attendance: "o",
		Time:       fallbackTime,
		Status:     "-",
		Reason:     "-",
		HWLast:     "-",
		HWCurrent:  "-",
	}
}

// DefaultPresets returns the built-in grade presets.
func DefaultPresets() map[string]models.GradePreset {
	presets := make(map[string]models.GradePreset, 9)
	for _, g := range []string{"초1", "초2", "초3", "초4", "초5", "초6"} {
		presets[g] = models.GradePreset{Book: "초등", Progress: "초등", Notes: "초등"}
	}
	for _, g := range []string{"중1", "중2", "중3"} {
		presets[g] = models.GradePreset{Book: "중등", Progress: "중등", Notes: "중등"}
	}
	return presets
}
