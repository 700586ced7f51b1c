package model

import (
	"encoding/json"
	"time"
)

// ApplicationStatus は応募の選考状態を表す。
type ApplicationStatus string

const (
	ApplicationStatusApplied     ApplicationStatus = "applied"
	ApplicationStatusShortlisted ApplicationStatus = "shortlisted"
	ApplicationStatusRejected    ApplicationStatus = "rejected"
	ApplicationStatusHired       ApplicationStatus = "hired"
)

// Valid は既知の選考状態かどうかを返す。
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusApplied, ApplicationStatusShortlisted, ApplicationStatusRejected, ApplicationStatusHired:
		return true
	}
	return false
}

// Application は求人への応募を表す。
// (JobID, CandidateID) は一意。EmployerIDは作成時に求人から複製する。
type Application struct {
	ID              string
	JobID           string
	CandidateID     string
	EmployerID      string
	Status          ApplicationStatus
	AppliedAt       time.Time
	ProfileSnapshot *ProfileSnapshot
}

// ProfileSnapshot は応募時点の求職者プロフィールの写し。作成後は再計算しない。
// 認証情報（パスワードハッシュ、外部ID）は含めない。
type ProfileSnapshot struct {
	CandidateID         string            `json:"candidate_id"`
	FullName            string            `json:"full_name"`
	Email               string            `json:"email"`
	MobileNumber        string            `json:"mobile_number,omitempty"`
	Gender              string            `json:"gender,omitempty"`
	AvatarURL           string            `json:"avatar_url,omitempty"`
	ExperienceLevel     string            `json:"experience_level,omitempty"`
	CTCExpected         *float64          `json:"ctc_expected,omitempty"`
	ProfessionalDetails map[string]any    `json:"professional_details,omitempty"`
	Projects            []json.RawMessage `json:"projects,omitempty"`
	Skills              []string          `json:"skills,omitempty"`
	Education           []json.RawMessage `json:"education,omitempty"`
	Certifications      []json.RawMessage `json:"certifications,omitempty"`
	Languages           []json.RawMessage `json:"languages,omitempty"`
	ResumeURL           string            `json:"resume_url,omitempty"`
	CapturedAt          time.Time         `json:"captured_at"`
}
