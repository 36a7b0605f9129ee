package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rivo/uniseg"
	"github.com/suPer8Hu/macrolog/internal/store"
)

const titleGraphemes = 30

type Repo struct {
	st  store.Store
	now func() time.Time
}

func NewRepo(st store.Store) *Repo {
	return &Repo{st: st, now: func() time.Time { return time.Now().UTC() }}
}

func (r *Repo) with(tx store.Store) *Repo {
	return &Repo{st: tx, now: r.now}
}

// ---- rooms ----

func (r *Repo) CreateRoom(ctx context.Context, title, persona string) (*Room, error) {
	now := r.now()
	room := &Room{Title: title, Persona: persona, CreatedAt: now, UpdatedAt: now}
	res, err := r.st.Exec(ctx,
		"INSERT INTO chat_rooms (title, persona, created_at, updated_at) VALUES (?, ?, ?, ?)",
		room.Title, room.Persona, room.CreatedAt, room.UpdatedAt)
	if err != nil {
		return nil, err
	}
	room.ID = res.LastInsertID
	return room, nil
}

func (r *Repo) GetRoom(ctx context.Context, id int64) (*Room, error) {
	var room Room
	err := r.st.Get(ctx, &room, "SELECT * FROM chat_rooms WHERE id = ?", id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRooms returns rooms, most recently active first.
func (r *Repo) ListRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	err := r.st.Select(ctx, &rooms, "SELECT * FROM chat_rooms ORDER BY updated_at DESC, id DESC")
	return rooms, err
}

// UpdateRoom changes title and/or persona. The persona is locked once the
// room holds any message.
func (r *Repo) UpdateRoom(ctx context.Context, id int64, title, persona *string) (*Room, error) {
	var out *Room
	err := r.st.Tx(ctx, func(tx store.Store) error {
		txr := r.with(tx)
		room, err := txr.GetRoom(ctx, id)
		if err != nil {
			return err
		}
		if persona != nil && *persona != room.Persona {
			n, err := txr.CountMessages(ctx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrPersonaLocked
			}
			room.Persona = *persona
		}
		if title != nil {
			room.Title = *title
		}
		room.UpdatedAt = r.now()
		if _, err := tx.Exec(ctx, "UPDATE chat_rooms SET title = ?, persona = ?, updated_at = ? WHERE id = ?",
			room.Title, room.Persona, room.UpdatedAt, id); err != nil {
			return err
		}
		out = room
		return nil
	})
	return out, err
}

// DeleteRoom removes the room with its messages and jobs.
func (r *Repo) DeleteRoom(ctx context.Context, id int64) error {
	return r.st.Tx(ctx, func(tx store.Store) error {
		if _, err := tx.Exec(ctx, "DELETE FROM chat_jobs WHERE room_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM chat_messages WHERE room_id = ?", id); err != nil {
			return err
		}
		res, err := tx.Exec(ctx, "DELETE FROM chat_rooms WHERE id = ?", id)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return ErrRoomNotFound
		}
		return nil
	})
}

// ---- messages ----

// InsertMessage stores m, bumps the room's updated_at and, when m is the
// room's first message and comes from the user, derives the title from it.
func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.st.Tx(ctx, func(tx store.Store) error {
		txr := r.with(tx)
		if _, err := txr.GetRoom(ctx, m.RoomID); err != nil {
			return err
		}
		now := r.now()
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		res, err := tx.Exec(ctx,
			"INSERT INTO chat_messages (room_id, role, content, image_url, created_at) VALUES (?, ?, ?, ?, ?)",
			m.RoomID, m.Role, m.Content, m.ImageURL, m.CreatedAt)
		if err != nil {
			return err
		}
		m.ID = res.LastInsertID

		if _, err := tx.Exec(ctx, "UPDATE chat_rooms SET updated_at = ? WHERE id = ?", now, m.RoomID); err != nil {
			return err
		}

		if m.Role != RoleUser || strings.TrimSpace(m.Content) == "" {
			return nil
		}
		n, err := txr.CountMessages(ctx, m.RoomID)
		if err != nil {
			return err
		}
		if n == 1 {
			_, err = tx.Exec(ctx, "UPDATE chat_rooms SET title = ? WHERE id = ?", TitleFrom(m.Content), m.RoomID)
		}
		return err
	})
}

func (r *Repo) CountMessages(ctx context.Context, roomID int64) (int64, error) {
	var n int64
	err := r.st.Get(ctx, &n, "SELECT COUNT(*) FROM chat_messages WHERE room_id = ?", roomID)
	return n, err
}

func (r *Repo) GetMessage(ctx context.Context, id int64) (*Message, error) {
	var m Message
	if err := r.st.Get(ctx, &m, "SELECT * FROM chat_messages WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns the room's messages oldest first.
func (r *Repo) ListMessages(ctx context.Context, roomID int64) ([]Message, error) {
	var msgs []Message
	err := r.st.Select(ctx, &msgs,
		"SELECT * FROM chat_messages WHERE room_id = ? ORDER BY created_at ASC, id ASC", roomID)
	return msgs, err
}

// ListRecentMessagesDesc returns up to limit messages written before
// beforeID (all when beforeID is 0), newest first.
func (r *Repo) ListRecentMessagesDesc(ctx context.Context, roomID, beforeID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var msgs []Message
	var err error
	if beforeID > 0 {
		err = r.st.Select(ctx, &msgs,
			`SELECT * FROM chat_messages WHERE room_id = ? AND id < ?
			 ORDER BY created_at DESC, id DESC LIMIT ?`, roomID, beforeID, limit)
	} else {
		err = r.st.Select(ctx, &msgs,
			"SELECT * FROM chat_messages WHERE room_id = ? ORDER BY created_at DESC, id DESC LIMIT ?", roomID, limit)
	}
	return msgs, err
}

// TitleFrom cuts content to 30 grapheme clusters, adding "..." when cut.
func TitleFrom(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	g := uniseg.NewGraphemes(content)
	n := 0
	for g.Next() {
		if n == titleGraphemes {
			from, _ := g.Positions()
			return content[:from] + "..."
		}
		n++
	}
	return content
}

// ---- jobs ----

// CreateJobOrGetExisting inserts job unless (room_id, idempotency_key)
// already exists, in which case the stored job is returned with created=false.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey != nil && *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
	}
	var out *Job
	created := false
	err := r.st.Tx(ctx, func(tx store.Store) error {
		txr := r.with(tx)
		if job.IdempotencyKey != nil {
			existing, err := txr.GetJobByIdempotencyKey(ctx, job.RoomID, *job.IdempotencyKey)
			if err == nil {
				out = existing
				return nil
			}
			if !errors.Is(err, ErrJobNotFound) {
				return err
			}
		}
		if err := txr.CreateJob(ctx, job); err != nil {
			return err
		}
		out, created = job, true
		return nil
	})
	return out, created, err
}

func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	now := r.now()
	job.CreatedAt, job.UpdatedAt = now, now
	if job.Status == "" {
		job.Status = JobQueued
	}
	_, err := r.st.Exec(ctx,
		`INSERT INTO chat_jobs (id, room_id, user_message_id, date, idempotency_key, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.RoomID, job.UserMessageID, job.Date, job.IdempotencyKey, job.Status, job.CreatedAt, job.UpdatedAt)
	return err
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	return r.getJob(ctx, "SELECT * FROM chat_jobs WHERE id = ?", id)
}

func (r *Repo) GetJobByIdempotencyKey(ctx context.Context, roomID int64, key string) (*Job, error) {
	return r.getJob(ctx, "SELECT * FROM chat_jobs WHERE room_id = ? AND idempotency_key = ?", roomID, key)
}

func (r *Repo) getJob(ctx context.Context, query string, args ...any) (*Job, error) {
	var j Job
	err := r.st.Get(ctx, &j, query, args...)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// UpdateJobStatusRunning claims a queued job; claimed is false if another
// worker got there first or the job is finished.
func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) (claimed bool, err error) {
	res, err := r.st.Exec(ctx, "UPDATE chat_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		JobRunning, r.now(), id, JobQueued)
	if err != nil {
		return false, err
	}
	return res.RowsAffected > 0, nil
}

// RequeueJob puts a running job back to queued for a retry.
func (r *Repo) RequeueJob(ctx context.Context, id string) error {
	_, err := r.st.Exec(ctx, "UPDATE chat_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		JobQueued, r.now(), id, JobRunning)
	return err
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, assistantMsgID int64) error {
	_, err := r.st.Exec(ctx, "UPDATE chat_jobs SET status = ?, result_message_id = ?, error = NULL, updated_at = ? WHERE id = ?",
		JobSucceeded, assistantMsgID, r.now(), id)
	return err
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	_, err := r.st.Exec(ctx, "UPDATE chat_jobs SET status = ?, error = ?, result_message_id = NULL, updated_at = ? WHERE id = ?",
		JobFailed, errMsg, r.now(), id)
	return err
}
