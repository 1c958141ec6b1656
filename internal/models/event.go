package models

import "time"

// EnrollmentEventType names a KRS state change published to downstream consumers.
type EnrollmentEventType string

const (
	EventCourseSelected   EnrollmentEventType = "krs.selected"
	EventCourseDeselected EnrollmentEventType = "krs.deselected"
	EventKRSSubmitted     EnrollmentEventType = "krs.submitted"
	EventKRSApproved      EnrollmentEventType = "krs.approved"
	EventKRSRejected      EnrollmentEventType = "krs.rejected"
	EventBatchCommitted   EnrollmentEventType = "krs.batch_committed"
)

// EnrollmentEvent describes records of one student and term moving between statuses.
// Batch commits carry every affected student in StudentIDs.
type EnrollmentEvent struct {
	ID         string              `json:"id"`
	Type       EnrollmentEventType `json:"type"`
	TermID     string              `json:"term_id"`
	StudentIDs []string            `json:"student_ids"`
	RecordIDs  []string            `json:"record_ids"`
	From       EnrollmentStatus    `json:"from"`
	To         EnrollmentStatus    `json:"to"`
	ActorID    string              `json:"actor_id"`
	OccurredAt time.Time           `json:"occurred_at"`
}
