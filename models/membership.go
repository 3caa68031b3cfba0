package models

import "time"

// MemberType is the role ladder inside one club, lowest first.
type MemberType int

const (
	MemberTypeApplicant MemberType = iota
	MemberTypeMember
	MemberTypeOfficer
	MemberTypeClubOwner
)

func (t MemberType) String() string {
	switch t {
	case MemberTypeApplicant:
		return "Applicant"
	case MemberTypeMember:
		return "Member"
	case MemberTypeOfficer:
		return "Officer"
	case MemberTypeClubOwner:
		return "Club owner"
	default:
		return "Unknown"
	}
}

func (t MemberType) Valid() bool {
	return t >= MemberTypeApplicant && t <= MemberTypeClubOwner
}

// CanOrganise reports whether the role may create and run tournaments.
func (t MemberType) CanOrganise() bool {
	return t == MemberTypeOfficer || t == MemberTypeClubOwner
}

type ExperienceLevel int

const (
	ExperienceBeginner ExperienceLevel = iota
	ExperienceIntermediate
	ExperienceExpert
	ExperienceMaster
)

func (l ExperienceLevel) String() string {
	switch l {
	case ExperienceBeginner:
		return "Beginner"
	case ExperienceIntermediate:
		return "Intermediate"
	case ExperienceExpert:
		return "Expert"
	case ExperienceMaster:
		return "Master"
	default:
		return "Unknown"
	}
}

func (l ExperienceLevel) Valid() bool {
	return l >= ExperienceBeginner && l <= ExperienceMaster
}

// Membership связывает пользователя с клубом и хранит его роль.
type Membership struct {
	ID                int             `json:"id" db:"id"`
	ClubID            int             `json:"club_id" db:"club_id"`
	UserID            int             `json:"user_id" db:"user_id"`
	FirstName         string          `json:"first_name" db:"first_name"`
	LastName          string          `json:"last_name" db:"last_name"`
	ContactDetails    string          `json:"contact_details" db:"contact_details"`
	PersonalStatement string          `json:"personal_statement,omitempty" db:"personal_statement"`
	Bio               string          `json:"bio,omitempty" db:"bio"`
	ExperienceLevel   ExperienceLevel `json:"experience_level" db:"experience_level"`
	MemberType        MemberType      `json:"member_type" db:"member_type"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

func (m *Membership) FullName() string {
	return m.FirstName + " " + m.LastName
}

func (m *Membership) IsApplicant() bool {
	return m.MemberType == MemberTypeApplicant
}
