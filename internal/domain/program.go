package domain

import "time"

// Program is the catalog definition of a course bundle.
type Program struct {
	UUID                string   `json:"uuid"`
	Title               string   `json:"title,omitempty"`
	ApplicableSeatTypes []string `json:"applicable_seat_types"`
	Courses             []Course `json:"courses"`
}

type Course struct {
	Key        string      `json:"key"`
	CourseRuns []CourseRun `json:"course_runs"`
}

type CourseRun struct {
	Key   string `json:"key,omitempty"`
	Seats []Seat `json:"seats"`
}

type Seat struct {
	SKU  string `json:"sku"`
	Type string `json:"type"`
}

// Enrollment is an existing enrollment of the buyer.
type Enrollment struct {
	CourseDetails struct {
		CourseID string `json:"course_id"`
	} `json:"course_details"`
	Mode     string `json:"mode"`
	IsActive bool   `json:"is_active"`
}

// Benefit types for program offers.
const (
	BenefitPercentage = "Percentage"
	BenefitAbsolute   = "Absolute"
)

// ProgramOffer is a site offer whose condition is a program bundle.
type ProgramOffer struct {
	ID           string    `json:"id"`
	SiteID       string    `json:"-"`
	Name         string    `json:"name"`
	ProgramUUID  string    `json:"programUuid"`
	BenefitType  string    `json:"benefitType"`
	BenefitValue int64     `json:"benefitValue"`
	Priority     int       `json:"priority"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}
