package entity

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type CodePurpose string

const (
	PurposeVerification CodePurpose = "verification"
	PurposeReset        CodePurpose = "reset"
)

// Principal is an authenticable account. End-users and administrators share
// this shape and live in separate collections/tables.
type Principal struct {
	ID       string `bson:"_id" gorm:"type:varchar(36);primaryKey"`
	Username string `bson:"username" gorm:"type:varchar(100);uniqueIndex;not null"`
	Email    string `bson:"email" gorm:"type:varchar(255);uniqueIndex;not null"`

	PasswordHash string `bson:"password_hash" gorm:"type:text;not null"`
	IsVerified   bool   `bson:"is_verified" gorm:"not null;default:false"`

	VerificationCode          *string    `bson:"verification_code,omitempty" gorm:"type:varchar(16)"`
	VerificationCodeExpiresAt *time.Time `bson:"verification_code_expires_at,omitempty"`
	ResetCode                 *string    `bson:"reset_code,omitempty" gorm:"type:varchar(16)"`
	ResetCodeExpiresAt        *time.Time `bson:"reset_code_expires_at,omitempty"`

	Profile Profile `bson:"profile,omitempty" gorm:"embedded;embeddedPrefix:profile_"`

	Version   int64     `bson:"version" gorm:"not null;default:0"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Profile holds the fitness attributes collected at end-user sign-up.
// Administrators leave it zero.
type Profile struct {
	Gender        string  `bson:"gender,omitempty" json:"gender,omitempty" gorm:"type:varchar(16)"`
	Age           int     `bson:"age,omitempty" json:"age,omitempty"`
	HeightCM      float64 `bson:"height_cm,omitempty" json:"height_cm,omitempty"`
	WeightKG      float64 `bson:"weight_kg,omitempty" json:"weight_kg,omitempty"`
	FitnessGoal   string  `bson:"fitness_goal,omitempty" json:"fitness_goal,omitempty" gorm:"type:varchar(32)"`
	ActivityLevel string  `bson:"activity_level,omitempty" json:"activity_level,omitempty" gorm:"type:varchar(32)"`
}

// OutstandingCode returns the stored code and expiry for purpose, if any.
func (p *Principal) OutstandingCode(purpose CodePurpose) (string, time.Time, bool) {
	code, expiresAt := p.codeFields(purpose)
	if *code == nil || *expiresAt == nil {
		return "", time.Time{}, false
	}
	return **code, **expiresAt, true
}

// IssueCode replaces any outstanding code for purpose. Code and expiry are
// always written as a pair.
func (p *Principal) IssueCode(purpose CodePurpose, value string, expiresAt time.Time) {
	code, expiry := p.codeFields(purpose)
	v, e := value, expiresAt.UTC()
	*code, *expiry = &v, &e
}

// ClearCode drops the outstanding code for purpose together with its expiry.
func (p *Principal) ClearCode(purpose CodePurpose) {
	code, expiry := p.codeFields(purpose)
	*code, *expiry = nil, nil
}

func (p *Principal) codeFields(purpose CodePurpose) (**string, **time.Time) {
	if purpose == PurposeReset {
		return &p.ResetCode, &p.ResetCodeExpiresAt
	}
	return &p.VerificationCode, &p.VerificationCodeExpiresAt
}

// Clone returns a copy that shares no pointers with p.
func (p *Principal) Clone() *Principal {
	c := *p
	if p.VerificationCode != nil {
		v := *p.VerificationCode
		c.VerificationCode = &v
	}
	if p.VerificationCodeExpiresAt != nil {
		v := *p.VerificationCodeExpiresAt
		c.VerificationCodeExpiresAt = &v
	}
	if p.ResetCode != nil {
		v := *p.ResetCode
		c.ResetCode = &v
	}
	if p.ResetCodeExpiresAt != nil {
		v := *p.ResetCodeExpiresAt
		c.ResetCodeExpiresAt = &v
	}
	return &c
}
