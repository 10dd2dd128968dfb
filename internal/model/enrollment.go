package model

import "time"

// Enrollment links a user to a course they joined. It is never modified
// after creation.
type Enrollment struct {
	ID         string    `json:"_id"`
	UserEmail  string    `json:"userEmail"`
	CourseID   string    `json:"courseId"`
	Price      *float64  `json:"price,omitempty"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// EnrollmentWithCourse is an enrollment joined with the course it points to.
type EnrollmentWithCourse struct {
	Enrollment
	Course Course `json:"course"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers       int64   `json:"totalUsers"`
	ApprovedCourses  int64   `json:"approvedCourses"`
	TotalEnrollments int64   `json:"totalEnrollments"`
	TotalRevenue     float64 `json:"totalRevenue"`
}
