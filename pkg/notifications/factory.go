package notifications

import (
	"fmt"
	"maps"
	"math"
	"strconv"
	"time"
)

// Draft is the content of a notification before it has a recipient. Every
// producer builds drafts through the constructors below so the same event
// always reads the same way.
type Draft struct {
	Type     Type
	Title    string
	Message  string
	Metadata Metadata
}

// For addresses the draft to userID.
func (d Draft) For(userID int64) CreateRequest {
	return CreateRequest{
		UserID:   userID,
		Type:     d.Type,
		Title:    d.Title,
		Message:  d.Message,
		Metadata: maps.Clone(d.Metadata),
	}
}

// Course identifies a course in notification text.
type Course struct {
	ID    int64
	Title string
}

// Enrollment is a student's request to join a course.
type Enrollment struct {
	ID          int64
	Course      Course
	StudentName string
}

// Decision is the outcome of an enrollment review.
type Decision struct {
	Approved bool
	// ByLecturer marks decisions taken by the course lecturer rather than an admin.
	ByLecturer bool
	// Note is the lecturer's message on approval or the reason on rejection.
	Note string
}

func (d Decision) status() string {
	if d.Approved {
		return "approved"
	}
	return "rejected"
}

// Assignment identifies an assignment and its course.
type Assignment struct {
	ID     int64
	Title  string
	Course Course
}

// EnrollmentDecision tells the student their enrollment was approved or rejected.
func EnrollmentDecision(e Enrollment, d Decision) Draft {
	status := d.status()
	msg := fmt.Sprintf("Your enrollment in \"%s\" has been %s", e.Course.Title, status)
	if d.ByLecturer {
		msg += " by the lecturer"
	}
	msg += "."

	meta := Metadata{
		"courseId":   e.Course.ID,
		"courseName": e.Course.Title,
		"status":     status,
	}
	if e.ID > 0 {
		meta["enrollmentId"] = e.ID
	}

	draft := Draft{Type: TypeEnrollmentRejected, Title: "Enrollment Rejected", Metadata: meta}
	if d.Approved {
		draft.Type, draft.Title = TypeEnrollmentApproved, "Enrollment Approved"
	}

	if d.Note != "" {
		if d.Approved {
			msg += " Message: " + d.Note
			meta["lecturerMessage"] = d.Note
		} else {
			msg += " Reason: " + d.Note
			meta["reason"] = d.Note
		}
	}
	draft.Message = msg
	return draft
}

// EnrollmentReviewed informs admins about a lecturer's enrollment decision.
func EnrollmentReviewed(e Enrollment, approved bool) Draft {
	d := Decision{Approved: approved}
	title := "Enrollment Rejected by Lecturer"
	if approved {
		title = "Enrollment Approved by Lecturer"
	}
	return Draft{
		Type:    TypeSystem,
		Title:   title,
		Message: fmt.Sprintf("%s's enrollment in \"%s\" was %s by the lecturer.", e.StudentName, e.Course.Title, d.status()),
		Metadata: Metadata{
			"enrollmentId": e.ID,
			"courseId":     e.Course.ID,
			"studentName":  e.StudentName,
			"status":       d.status(),
		},
	}
}

// EnrollmentRequested tells the lecturer a student asked to join their course.
func EnrollmentRequested(e Enrollment) Draft {
	return Draft{
		Type:    TypeSystem,
		Title:   "New Enrollment Request",
		Message: "A student has requested to enroll in your course: " + e.Course.Title,
		Metadata: Metadata{
			"courseId":     e.Course.ID,
			"enrollmentId": e.ID,
		},
	}
}

// StudentWithdrew tells the lecturer a student left their course.
func StudentWithdrew(e Enrollment) Draft {
	return Draft{
		Type:    TypeSystem,
		Title:   "Student Withdrew from Course",
		Message: fmt.Sprintf("%s has withdrawn from \"%s\".", e.StudentName, e.Course.Title),
		Metadata: Metadata{
			"courseId":     e.Course.ID,
			"enrollmentId": e.ID,
			"studentName":  e.StudentName,
		},
	}
}

// AssignmentGraded tells the student their submission has a score out of 100.
func AssignmentGraded(a Assignment, grade float64, feedback string) Draft {
	meta := Metadata{
		"assignmentId":    a.ID,
		"assignmentTitle": a.Title,
		"courseTitle":     a.Course.Title,
		"grade":           grade,
	}
	if feedback != "" {
		meta["feedback"] = feedback
	}
	return Draft{
		Type:  TypeAssignmentGraded,
		Title: "Assignment Graded",
		Message: fmt.Sprintf("Your assignment \"%s\" in \"%s\" has been graded. Score: %s/100",
			a.Title, a.Course.Title, strconv.FormatFloat(grade, 'f', -1, 64)),
		Metadata: meta,
	}
}

// NewAssignment tells enrolled students about a newly posted assignment.
func NewAssignment(a Assignment) Draft {
	return Draft{
		Type:    TypeNewAssignment,
		Title:   "New Assignment Posted",
		Message: fmt.Sprintf("A new assignment \"%s\" has been posted in \"%s\"", a.Title, a.Course.Title),
		Metadata: Metadata{
			"assignmentId": a.ID,
			"courseId":     a.Course.ID,
		},
	}
}

// CourseCreated tells admins a lecturer opened a course.
func CourseCreated(c Course, lecturerName string) Draft {
	return Draft{
		Type:     TypeCourseCreated,
		Title:    "New Course Created",
		Message:  fmt.Sprintf("%s created a new course: %s", lecturerName, c.Title),
		Metadata: Metadata{"courseId": c.ID},
	}
}

// CourseUpdated tells enrolled students the course details changed.
func CourseUpdated(c Course) Draft {
	return Draft{
		Type:     TypeCourseUpdated,
		Title:    "Course Updated",
		Message:  fmt.Sprintf("The course \"%s\" has been updated", c.Title),
		Metadata: Metadata{"courseId": c.ID},
	}
}

// DeadlineReminder counts whole days until due, rounding up, as seen at now.
func DeadlineReminder(a Assignment, due, now time.Time) Draft {
	days := int(math.Ceil(due.Sub(now).Hours() / 24))
	return Draft{
		Type:    TypeDeadlineReminder,
		Title:   "Assignment Deadline Reminder",
		Message: fmt.Sprintf("Assignment \"%s\" in \"%s\" is due in %d day(s).", a.Title, a.Course.Title, days),
		Metadata: Metadata{
			"assignmentId":    a.ID,
			"assignmentTitle": a.Title,
			"courseTitle":     a.Course.Title,
			"dueDate":         due.UTC().Format(time.RFC3339),
			"daysUntilDue":    days,
		},
	}
}

// SystemAnnouncement is a free-form message from the administration.
func SystemAnnouncement(title, message string) Draft {
	return Draft{Type: TypeSystem, Title: title, Message: message}
}
