package model

import "time"

// CourseStatus is the moderation stage of a course.
type CourseStatus string

const (
	CoursePending  CourseStatus = "pending"
	CourseApproved CourseStatus = "approved"
	CourseRejected CourseStatus = "rejected"
)

func (s CourseStatus) Valid() bool {
	switch s {
	case CoursePending, CourseApproved, CourseRejected:
		return true
	}
	return false
}

// AllCategories is the category value clients send to mean "no filter".
const AllCategories = "all"

// Course is a listing published by an instructor.
//
// Status, Feedback and TotalEnrolled are server-owned: clients can never
// write them directly. TotalEnrolled only grows through enrollments.
type Course struct {
	ID              string       `json:"_id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Category        string       `json:"category"`
	Price           float64      `json:"price"`
	Image           string       `json:"image"`
	InstructorName  string       `json:"instructorName"`
	InstructorEmail string       `json:"instructorEmail"`
	Status          CourseStatus `json:"status"`
	Feedback        string       `json:"feedback"`
	TotalEnrolled   int64        `json:"totalEnrolled"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// CourseFilter selects courses for List.
// A non-empty Owner disables the approval gate.
type CourseFilter struct {
	Owner    string
	Category string
	Status   CourseStatus
}

// CourseInput carries the client-writable fields of a course.
type CourseInput struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	Price          float64 `json:"price"`
	Image          string  `json:"image"`
	InstructorName string  `json:"instructorName"`
}
