package domain

import (
	"strconv"
	"time"
)

// ProfileColumns is the column order of the external profile table.
var ProfileColumns = []string{"name", "age", "occupation", "gender", "goal", "timestamp"}

// ProfileRecord is an onboarding submission. It is written once and never
// read back.
type ProfileRecord struct {
	Name       string    `json:"name"`
	Age        int       `json:"age"`
	Occupation string    `json:"occupation"`
	Gender     string    `json:"gender"`
	Goal       string    `json:"goal"`
	Timestamp  time.Time `json:"timestamp"`
}

// Row returns the record's cells in ProfileColumns order.
func (p ProfileRecord) Row() []string {
	return []string{
		p.Name,
		strconv.Itoa(p.Age),
		p.Occupation,
		p.Gender,
		p.Goal,
		p.Timestamp.UTC().Format(time.RFC3339),
	}
}
