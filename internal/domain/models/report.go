package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Priority represents the urgency of a citizen report
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority converts a string to a Priority, defaulting to normal
func ParsePriority(s string) Priority {
	if s == string(PriorityUrgent) {
		return PriorityUrgent
	}
	return PriorityNormal
}

// StatusEvent is one entry in a report's processing timeline
type StatusEvent struct {
	Label      string    `json:"label"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Attachment is an image attached to a report
type Attachment struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	URL         string `json:"url,omitempty"`
	Data        []byte `json:"-"`
}

// ReportDraft holds the citizen's form values before submission.
// A draft is never persisted; it lives for the duration of one submit call.
type ReportDraft struct {
	Category      string       `json:"category"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Location      string       `json:"location"`
	Priority      Priority     `json:"priority"`
	IsAnonymous   bool         `json:"is_anonymous"`
	ReporterName  string       `json:"reporter_name,omitempty"`
	ReporterPhone string       `json:"reporter_phone,omitempty"`
	Images        []Attachment `json:"images"`
	Video         *Attachment  `json:"video,omitempty"`
}

// Report is a citizen report as returned by the upstream API.
// Once a tracking code has been assigned the record is immutable.
type Report struct {
	ID               string        `json:"id"`
	TrackingCode     string        `json:"tracking_code"`
	Category         string        `json:"category"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Location         string        `json:"location"`
	Priority         Priority      `json:"priority"`
	IsAnonymous      bool          `json:"is_anonymous"`
	ReporterName     string        `json:"reporter_name,omitempty"`
	ReporterPhone    string        `json:"reporter_phone,omitempty"`
	AttachedImages   []Attachment  `json:"attached_images,omitempty"`
	AttachedVideoRef string        `json:"attached_video_ref,omitempty"`
	StatusHistory    []StatusEvent `json:"status_history,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// CurrentStatus returns the timeline event with the maximum timestamp.
// The upstream does not guarantee event order, so the last array element
// is not necessarily the current status.
func (r *Report) CurrentStatus() (StatusEvent, bool) {
	if len(r.StatusHistory) == 0 {
		return StatusEvent{}, false
	}
	current := r.StatusHistory[0]
	for _, ev := range r.StatusHistory[1:] {
		if ev.OccurredAt.After(current.OccurredAt) {
			current = ev
		}
	}
	return current, true
}

// SortStatusHistory orders the timeline by occurrence time, ascending
func (r *Report) SortStatusHistory() {
	sort.SliceStable(r.StatusHistory, func(i, j int) bool {
		return r.StatusHistory[i].OccurredAt.Before(r.StatusHistory[j].OccurredAt)
	})
}

// SubmissionRecord is the journal row kept for every successful submission.
// The tracking code is the only identifier the citizen receives, so the
// staff dashboard needs its own durable record of what was issued.
type SubmissionRecord struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TrackingCode string    `json:"tracking_code" db:"tracking_code"`
	Category     string    `json:"category" db:"category"`
	Title        string    `json:"title" db:"title"`
	Priority     Priority  `json:"priority" db:"priority"`
	IsAnonymous  bool      `json:"is_anonymous" db:"is_anonymous"`
	HasVideo     bool      `json:"has_video" db:"has_video"`
	ImageCount   int       `json:"image_count" db:"image_count"`
	SubmittedAt  time.Time `json:"submitted_at" db:"submitted_at"`
}
