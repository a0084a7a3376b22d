package contact

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"
)

// InMemoryRepository keeps messages in a slice.
type InMemoryRepository struct {
	mu       sync.Mutex
	messages []Message
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

func (r *InMemoryRepository) Create(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of everything stored.
func (r *InMemoryRepository) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// PostgresRepository stores messages in contact_messages.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, msg Message) error {
	const query = `
		INSERT INTO contact_messages (id, name, email, message, ip_address, created_at)
		VALUES (:id, :name, :email, :message, :ip_address, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, map[string]any{
		"id":         msg.ID,
		"name":       msg.Name,
		"email":      msg.Email,
		"message":    msg.Body,
		"ip_address": msg.IPAddress,
		"created_at": msg.CreatedAt,
	})
	return err
}
