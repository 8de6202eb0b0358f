package models

import "time"

type Plan string

const (
	PlanFree       Plan = "Free"
	PlanPro        Plan = "Pro"
	PlanEnterprise Plan = "Enterprise"
)

func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanFree, PlanPro, PlanEnterprise:
		return Plan(s), true
	case "":
		return PlanFree, true
	}
	return "", false
}

// Session is the current authenticated device session. At most one row is
// stored at a time.
type Session struct {
	ID                 string    `gorm:"primaryKey;size:64" json:"id"`
	AccessCode         string    `gorm:"size:64;not null" json:"access_code"`
	Plan               Plan      `gorm:"size:16" json:"plan,omitempty"`
	SubscriptionStatus string    `gorm:"size:16" json:"subscription_status,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

func (Session) TableName() string { return "sessions" }
