package chat

import "time"

const DefaultRoomTitle = "New conversation"

type Room struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Persona   string    `gorm:"column:persona;type:varchar(32);not null" json:"persona"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;index" json:"updated_at"`
}

func (Room) TableName() string { return "chat_rooms" }

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is immutable once written.
type Message struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID    int64     `gorm:"column:room_id;not null;index:idx_chat_msg_room_created,priority:1" json:"room_id"`
	Role      string    `gorm:"column:role;type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	ImageURL  *string   `gorm:"column:image_url;type:text" json:"image_url"`
	CreatedAt time.Time `gorm:"column:created_at;index:idx_chat_msg_room_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

func (m *Message) imageRef() string {
	if m == nil || m.ImageURL == nil {
		return ""
	}
	return *m.ImageURL
}
