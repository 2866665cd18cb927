package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Message stores one turn. Assistant turns carry their sources, reasoning
// steps and suggestions as jsonb.
type Message struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationId uuid.UUID      `gorm:"type:uuid;not null;index"`
	Role           string         `gorm:"type:varchar(16);not null"`
	Content        string         `gorm:"type:text;not null"`
	Sources        datatypes.JSON `gorm:"type:jsonb"`
	CotSteps       datatypes.JSON `gorm:"type:jsonb"`
	Suggestions    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index"`
}

func (Message) TableName() string {
	return "messages"
}
