package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/suPer8Hu/macrolog/internal/ai"
	"github.com/suPer8Hu/macrolog/internal/common"
	"github.com/suPer8Hu/macrolog/internal/logbook"
	"github.com/suPer8Hu/macrolog/internal/persona"
)

type Options struct {
	// ContextWindowSize caps how many stored messages are read per turn.
	ContextWindowSize int
	MaxTokens         int
	Temperature       float64
}

type Service struct {
	repo       *Repo
	completer  ai.Completer
	summarizer *Summarizer
	compactor  Compactor
	builder    *Builder
	opts       Options
}

func NewService(repo *Repo, completer ai.Completer, summarizer *Summarizer, compactor Compactor, builder *Builder, opts Options) *Service {
	if opts.ContextWindowSize <= 0 || opts.ContextWindowSize > 100 {
		opts.ContextWindowSize = 20
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 300
	}
	return &Service{
		repo:       repo,
		completer:  completer,
		summarizer: summarizer,
		compactor:  compactor,
		builder:    builder,
		opts:       opts,
	}
}

func (s *Service) Repo() *Repo { return s.repo }

// ---- rooms ----

func (s *Service) CreateRoom(ctx context.Context, title, personaKey string) (*Room, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultRoomTitle
	}
	return s.repo.CreateRoom(ctx, title, persona.Normalize(personaKey))
}

func (s *Service) ListRooms(ctx context.Context) ([]Room, error) {
	rooms, err := s.repo.ListRooms(ctx)
	if rooms == nil {
		rooms = []Room{}
	}
	return rooms, err
}

func (s *Service) GetRoom(ctx context.Context, id int64) (*Room, error) {
	return s.repo.GetRoom(ctx, id)
}

func (s *Service) UpdateRoom(ctx context.Context, id int64, title, personaKey *string) (*Room, error) {
	if title != nil {
		t := strings.TrimSpace(*title)
		if t == "" {
			t = DefaultRoomTitle
		}
		title = &t
	}
	if personaKey != nil {
		k := persona.Normalize(*personaKey)
		personaKey = &k
	}
	return s.repo.UpdateRoom(ctx, id, title, personaKey)
}

func (s *Service) DeleteRoom(ctx context.Context, id int64) error {
	return s.repo.DeleteRoom(ctx, id)
}

func (s *Service) ListMessages(ctx context.Context, roomID int64) ([]Message, error) {
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, roomID)
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, err
}

// AppendMessage stores a message without calling the completion service.
func (s *Service) AppendMessage(ctx context.Context, roomID int64, role, content, imageURL string) (*Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return nil, ErrInvalidRole
	}
	m := newMessage(roomID, role, content, imageURL)
	if m.Content == "" && m.ImageURL == nil {
		return nil, ErrEmptyTurn
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func newMessage(roomID int64, role, content, imageURL string) *Message {
	m := &Message{RoomID: roomID, Role: role, Content: strings.TrimSpace(content)}
	if ref := strings.TrimSpace(imageURL); ref != "" {
		m.ImageURL = &ref
	}
	return m
}

// ---- turns ----

type TurnInput struct {
	// RoomID 0 runs a stateless turn: nothing is read or stored.
	RoomID   int64
	Message  string
	ImageURL string
	// Date picks the logbook day for the context digest; empty means today.
	Date string
	// Persona is used only by stateless turns; rooms carry their own.
	Persona string
}

type TurnResult struct {
	Reply              string `json:"reply"`
	UserMessageID      int64  `json:"user_message_id,omitempty"`
	AssistantMessageID int64  `json:"assistant_message_id,omitempty"`
}

func (in TurnInput) validate() error {
	if strings.TrimSpace(in.Message) == "" && strings.TrimSpace(in.ImageURL) == "" {
		return ErrEmptyTurn
	}
	if in.Date != "" {
		if _, err := logbook.ParseDate(in.Date); err != nil {
			return err
		}
	}
	return nil
}

// SendTurn stores the user message, then produces and stores the reply.
// If the completion fails, the user message stays stored.
func (s *Service) SendTurn(ctx context.Context, in TurnInput) (TurnResult, error) {
	if err := in.validate(); err != nil {
		return TurnResult{}, err
	}
	if in.RoomID == 0 {
		m := newMessage(0, RoleUser, in.Message, in.ImageURL)
		reply, err := s.reply(ctx, in.Persona, nil, m, in.Date)
		return TurnResult{Reply: reply}, err
	}

	room, err := s.repo.GetRoom(ctx, in.RoomID)
	if err != nil {
		return TurnResult{}, err
	}
	userMsg := newMessage(room.ID, RoleUser, in.Message, in.ImageURL)
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return TurnResult{}, err
	}

	reply, assistantID, err := s.GenerateReply(ctx, room, userMsg, in.Date)
	if err != nil {
		return TurnResult{UserMessageID: userMsg.ID}, err
	}
	return TurnResult{Reply: reply, UserMessageID: userMsg.ID, AssistantMessageID: assistantID}, nil
}

// GenerateReply answers a stored user message and stores the reply.
func (s *Service) GenerateReply(ctx context.Context, room *Room, userMsg *Message, date string) (string, int64, error) {
	recentDesc, err := s.repo.ListRecentMessagesDesc(ctx, room.ID, userMsg.ID, s.opts.ContextWindowSize)
	if err != nil {
		return "", 0, err
	}
	// oldest first
	history := make([]Message, 0, len(recentDesc))
	for i := len(recentDesc) - 1; i >= 0; i-- {
		history = append(history, recentDesc[i])
	}

	reply, err := s.reply(ctx, room.Persona, history, userMsg, date)
	if err != nil {
		return "", 0, err
	}

	assistantMsg := &Message{RoomID: room.ID, Role: RoleAssistant, Content: reply}
	if err := s.repo.InsertMessage(ctx, assistantMsg); err != nil {
		return "", 0, err
	}
	return reply, assistantMsg.ID, nil
}

// reply runs summarize -> persona -> compact -> build -> complete.
func (s *Service) reply(ctx context.Context, personaKey string, history []Message, current *Message, date string) (string, error) {
	digest, err := s.summarizer.Summarize(ctx, date)
	if err != nil {
		return "", err
	}

	question := current.Content
	if question == "" {
		question = ImagePlaceholder
	}
	turn := Turn{Text: digest + "\n\nQuestion: " + question, ImageRef: current.imageRef()}

	msgs, err := s.builder.Build(ctx, persona.SystemPrompt(personaKey), s.compactor.Compact(history), turn)
	if err != nil {
		return "", err
	}

	return s.completer.Complete(ctx, ai.Request{
		Messages:    msgs,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
}

// ---- async turns ----

// EnqueueTurn stores the user message and a queued job for it. A repeated
// idempotency key returns the original job (created=false) and stores nothing.
func (s *Service) EnqueueTurn(ctx context.Context, in TurnInput, idempotencyKey string) (*Job, bool, error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}
	room, err := s.repo.GetRoom(ctx, in.RoomID)
	if err != nil {
		return nil, false, err
	}

	var key *string
	if k := strings.TrimSpace(idempotencyKey); k != "" {
		key = &k
		existing, err := s.repo.GetJobByIdempotencyKey(ctx, room.ID, k)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ErrJobNotFound) {
			return nil, false, err
		}
	}

	userMsg := newMessage(room.ID, RoleUser, in.Message, in.ImageURL)
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return nil, false, err
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	return s.repo.CreateJobOrGetExisting(ctx, &Job{
		ID:             id,
		RoomID:         room.ID,
		UserMessageID:  userMsg.ID,
		Date:           in.Date,
		IdempotencyKey: key,
		Status:         JobQueued,
	})
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJobByID(ctx, id)
}

// RunJob executes a queued job. On a retryable completion error with
// retriesLeft, the job goes back to queued and the error is returned so the
// caller can schedule a retry; otherwise the job is marked failed.
// When ctx ends mid-run the job is requeued and ErrJobInterrupted is
// returned. Jobs that are not queued are skipped.
func (s *Service) RunJob(ctx context.Context, jobID string, retriesLeft bool) error {
	claimed, err := s.repo.UpdateJobStatusRunning(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Printf("chat: job %s not queued, skipping", jobID)
		return nil
	}

	// once claimed, status writes must land even if ctx is cancelled
	wctx := context.WithoutCancel(ctx)

	job, err := s.repo.GetJobByID(wctx, jobID)
	if err != nil {
		return err
	}

	_, assistantID, err := s.generateForJob(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			if rqErr := s.repo.RequeueJob(wctx, jobID); rqErr != nil {
				return rqErr
			}
			log.Printf("chat: job %s interrupted, requeued err=%v", jobID, err)
			return fmt.Errorf("%w: %w", ErrJobInterrupted, err)
		}
		var aerr *ai.Error
		if retriesLeft && errors.As(err, &aerr) && aerr.Retryable() {
			if rqErr := s.repo.RequeueJob(wctx, jobID); rqErr != nil {
				return rqErr
			}
			return err
		}
		if markErr := s.repo.MarkJobFailed(wctx, jobID, err.Error()); markErr != nil {
			return markErr
		}
		return err
	}
	return s.repo.MarkJobSucceeded(wctx, jobID, assistantID)
}

func (s *Service) generateForJob(ctx context.Context, job *Job) (string, int64, error) {
	room, err := s.repo.GetRoom(ctx, job.RoomID)
	if err != nil {
		return "", 0, err
	}
	userMsg, err := s.repo.GetMessage(ctx, job.UserMessageID)
	if err != nil {
		return "", 0, err
	}
	return s.GenerateReply(ctx, room, userMsg, job.Date)
}
