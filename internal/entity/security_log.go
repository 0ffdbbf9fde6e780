package entity

import (
	"time"

	"gorm.io/datatypes"
)

type SecurityAction string

const (
	LoginSuccess       SecurityAction = "login_success"
	LoginFailed        SecurityAction = "login_failed"
	CodeIssued         SecurityAction = "code_issued"
	CodeRejected       SecurityAction = "code_rejected"
	EmailVerified      SecurityAction = "email_verified"
	DomainUnreachable  SecurityAction = "domain_unreachable"
	MailDispatchFailed SecurityAction = "mail_dispatch_failed"
	Reset              SecurityAction = "password_reset"
	PasswordChanged    SecurityAction = "password_changed"
	PrincipalUpdated   SecurityAction = "principal_updated"
	PrincipalDeleted   SecurityAction = "principal_deleted"
)

type SecurityLog struct {
	ID string `bson:"_id" gorm:"type:varchar(36);primaryKey"`

	PrincipalID   *string `bson:"principal_id,omitempty" gorm:"type:varchar(36);index"`
	PrincipalRole Role    `bson:"principal_role" gorm:"type:varchar(16);not null"`

	IPAddress *string        `bson:"ip_address,omitempty" gorm:"type:varchar(45)"`
	Action    SecurityAction `bson:"action" gorm:"type:varchar(32);not null;index"`

	Metadata datatypes.JSONMap `bson:"metadata,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
}
