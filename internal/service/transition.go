package service

import "github.com/noah-isme/sia-krs-api/internal/models"

type krsAction string

const (
	actionSelect   krsAction = "select"
	actionDeselect krsAction = "deselect"
	actionSubmit   krsAction = "submit"
	actionApprove  krsAction = "approve"
	actionReject   krsAction = "reject"
)

// krsTransition is one row of the individual KRS lifecycle. NONE stands for "no record".
type krsTransition struct {
	From     models.EnrollmentStatus
	To       models.EnrollmentStatus
	Event    models.EnrollmentEventType
	Reviewed bool
}

// krsTransitions lists every legal individual move. Anything absent is forbidden.
var krsTransitions = map[krsAction]krsTransition{
	actionSelect:   {From: models.EnrollmentStatusNone, To: models.EnrollmentStatusDraft, Event: models.EventCourseSelected},
	actionDeselect: {From: models.EnrollmentStatusDraft, To: models.EnrollmentStatusNone, Event: models.EventCourseDeselected},
	actionSubmit:   {From: models.EnrollmentStatusDraft, To: models.EnrollmentStatusSubmitted, Event: models.EventKRSSubmitted},
	actionApprove:  {From: models.EnrollmentStatusSubmitted, To: models.EnrollmentStatusApproved, Event: models.EventKRSApproved, Reviewed: true},
	actionReject:   {From: models.EnrollmentStatusSubmitted, To: models.EnrollmentStatusRejected, Event: models.EventKRSRejected, Reviewed: true},
}

func transitionFor(action krsAction) krsTransition {
	return krsTransitions[action]
}

// canApply reports whether action may run against a record currently in status.
func canApply(action krsAction, status models.EnrollmentStatus) bool {
	t, ok := krsTransitions[action]
	return ok && t.From == status
}

// AggregateStatus folds a student's term records into one status. Records move as a set, so mixed
// statuses only appear mid-write; the least advanced status wins.
func AggregateStatus(records []models.EnrollmentRecordDetail) models.EnrollmentStatus {
	if len(records) == 0 {
		return models.EnrollmentStatusNone
	}
	rank := map[models.EnrollmentStatus]int{
		models.EnrollmentStatusDraft:     1,
		models.EnrollmentStatusSubmitted: 2,
		models.EnrollmentStatusApproved:  3,
		models.EnrollmentStatusRejected:  3,
	}
	status := records[0].Status
	for _, rec := range records[1:] {
		if rank[rec.Status] < rank[status] {
			status = rec.Status
		}
	}
	return status
}
