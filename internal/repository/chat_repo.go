package repository

import (
	"sort"

	"roadassist/internal/models"

	"gorm.io/gorm"
)

const participantColumns = "id, name, role, profile_image, company_name"

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Create(m *models.ChatMessage) error {
	return r.db.Create(m).Error
}

func (r *ChatRepository) CreateBatch(msgs []*models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.db.Create(msgs).Error
}

// MarkRead flags the given messages as read when readerID is their receiver
// and returns those messages. IDs addressed to someone else are ignored.
func (r *ChatRepository) MarkRead(ids []string, readerID string) ([]models.ChatMessage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []models.ChatMessage
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ChatMessage{}).
			Where("id IN ? AND receiver_id = ?", ids, readerID).
			Update("is_read", true).Error; err != nil {
			return err
		}
		return tx.Where("id IN ? AND receiver_id = ?", ids, readerID).
			Order("created_at ASC").Find(&list).Error
	})
	return list, err
}

// MarkReadFrom flags every unread message from senderID to readerID.
func (r *ChatRepository) MarkReadFrom(senderID, readerID string) ([]string, error) {
	var ids []string
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ChatMessage{}).
			Where("sender_id = ? AND receiver_id = ? AND is_read = ?", senderID, readerID, false).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&models.ChatMessage{}).Where("id IN ?", ids).Update("is_read", true).Error
	})
	return ids, err
}

// History returns the conversation between two users, oldest first.
func (r *ChatRepository) History(userID, otherID string) ([]models.ChatMessage, error) {
	var list []models.ChatMessage
	err := r.db.
		Preload("Sender", func(db *gorm.DB) *gorm.DB { return db.Select(participantColumns) }).
		Preload("Receiver", func(db *gorm.DB) *gorm.DB { return db.Select(participantColumns) }).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userID, otherID, otherID, userID).
		Order("created_at ASC").Find(&list).Error
	return list, err
}

func (r *ChatRepository) UnreadCount(userID string) (int64, error) {
	var n int64
	err := r.db.Model(&models.ChatMessage{}).Where("receiver_id = ? AND is_read = ?", userID, false).Count(&n).Error
	return n, err
}

// Conversation is the latest message exchanged with one counterpart.
type Conversation struct {
	models.ChatMessage
	OtherUser *models.User `json:"otherUser"`
}

// ConversationsWithRole returns, for each counterpart whose role matches,
// the most recent message exchanged with userID. Newest conversations first.
func (r *ChatRepository) ConversationsWithRole(userID, role string) ([]Conversation, error) {
	var msgs []models.ChatMessage
	err := r.db.
		Preload("Sender", func(db *gorm.DB) *gorm.DB { return db.Select(participantColumns) }).
		Preload("Receiver", func(db *gorm.DB) *gorm.DB { return db.Select(participantColumns) }).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	latest := make(map[string]Conversation)
	for _, m := range msgs {
		other := m.Sender
		if m.SenderID == userID {
			other = m.Receiver
		}
		if other == nil || other.Role != role {
			continue
		}
		if cur, ok := latest[other.ID]; ok && !m.CreatedAt.After(cur.CreatedAt) {
			continue
		}
		latest[other.ID] = Conversation{ChatMessage: m, OtherUser: other}
	}
	out := make([]Conversation, 0, len(latest))
	for _, c := range latest {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
