package model

// ContentRedirect maps (assignment, level, optional session) to what a student
// sees after an attempt finalizes: an external URL or an HTML embed snippet.
type ContentRedirect struct {
	BaseModel
	AssignmentID uint   `gorm:"index;type:bigint unsigned" json:"assignmentId"`
	Level        string `gorm:"size:20;index" json:"level"`
	SessionID    *uint  `gorm:"index;type:bigint unsigned" json:"sessionId,omitempty"`
	TargetURL    string `gorm:"size:512" json:"targetUrl"`
	EmbedHTML    string `gorm:"type:text" json:"embedHtml"`
}

func (ContentRedirect) TableName() string {
	return "content_redirects"
}
