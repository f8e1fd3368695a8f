package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/printsafeai/printsafe-api/internal/application"
	domain "github.com/printsafeai/printsafe-api/internal/domain/analysis"
	"github.com/printsafeai/printsafe-api/internal/domain/clients"
	"github.com/printsafeai/printsafe-api/internal/domain/employees"
)

// Upload is one image received from the operator.
type Upload struct {
	FileName string
	Data     []byte
}

// ImageVerdict pairs a verdict with its source file for responses.
type ImageVerdict struct {
	FileName string `json:"file_name"`
	domain.Verdict
}

// SessionView is the API-facing shape of a client-analysis session.
type SessionView struct {
	ID        string         `json:"session_id"`
	CreatedAt time.Time      `json:"created_at"`
	Results   []ImageVerdict `json:"results"`
}

// SaveCommand carries everything one save action needs.
type SaveCommand struct {
	SessionID  string
	EmployeeID int64
	Client     clients.Client
}

type SaveResult struct {
	ClientID int64           `json:"id_cliente"`
	Records  []domain.Record `json:"records"`
}

type session struct {
	id        string
	createdAt time.Time
	staged    []domain.StagedResult
}

// Service implements the analysis use-cases. Each session walks
// Idle -> Analyzed -> Saved: OpenSession stages results in memory, Save
// persists them in one store call and clears the staging. Store may be nil
// when the record store is unreachable; analysis keeps working and only
// persistence degrades.
type Service struct {
	Decoder    domain.Decoder
	Classifier domain.Classifier
	Store      domain.Store
	Clock      application.Clock

	mu       sync.Mutex
	sessions map[string]*session
}

// Analyze runs the decode -> classify -> interpret pipeline without staging
// anything (the "normal analysis" mode, no client involved).
func (s *Service) Analyze(ctx context.Context, uploads []Upload) ([]ImageVerdict, error) {
	staged, err := s.analyzeAll(ctx, uploads)
	if err != nil {
		return nil, err
	}
	return verdicts(staged), nil
}

// OpenSession analyzes the uploads and stages the results for a later save.
func (s *Service) OpenSession(ctx context.Context, uploads []Upload) (*SessionView, error) {
	staged, err := s.analyzeAll(ctx, uploads)
	if err != nil {
		return nil, err
	}

	sess := &session{
		id:        uuid.New().String(),
		createdAt: s.now(),
		staged:    staged,
	}

	s.mu.Lock()
	if s.sessions == nil {
		s.sessions = make(map[string]*session)
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	return viewOf(sess), nil
}

// Session returns the staged results of an open session.
func (s *Service) Session(id string) (*SessionView, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return viewOf(sess), nil
}

// StagedImage returns one staged result by position, for the second-opinion
// review flow.
func (s *Service) StagedImage(sessionID string, index int) (domain.StagedResult, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return domain.StagedResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(sess.staged) {
		return domain.StagedResult{}, fmt.Errorf("%w: image index %d", domain.ErrNotFound, index)
	}
	return sess.staged[index], nil
}

// Save validates the command and persists the whole session as one batch:
// exactly one client row plus one analysis row per staged image, atomically.
// On validation failure nothing is sent to the store and the staged results
// stay put so the operator can correct the form and retry.
func (s *Service) Save(ctx context.Context, cmd SaveCommand) (*SaveResult, error) {
	sess, err := s.lookup(cmd.SessionID)
	if err != nil {
		return nil, err
	}

	if err := validateClient(&cmd.Client); err != nil {
		return nil, err
	}
	if cmd.EmployeeID <= 0 {
		return nil, fmt.Errorf("%w: an employee must be selected", domain.ErrValidation)
	}

	s.mu.Lock()
	staged := sess.staged
	s.mu.Unlock()
	if len(staged) == 0 {
		return nil, fmt.Errorf("%w: no analyzed images to save", domain.ErrValidation)
	}

	if s.Store == nil {
		return nil, fmt.Errorf("%w: not configured", domain.ErrStoreUnavailable)
	}

	// Claim the session before touching the store: the batch is removed from
	// the registry first, so a concurrent save of the same session gets
	// ErrNotFound instead of committing a second client row.
	s.mu.Lock()
	if _, ok := s.sessions[cmd.SessionID]; !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, cmd.SessionID)
	}
	delete(s.sessions, cmd.SessionID)
	s.mu.Unlock()

	entries := make([]domain.BatchEntry, 0, len(staged))
	for _, r := range staged {
		entries = append(entries, domain.BatchEntry{
			FileName: r.FileName,
			Data:     r.Data,
			Label:    r.Verdict.Label,
			RawScore: r.Verdict.RawScore,
		})
	}

	clientID, records, err := s.Store.SaveAnalysisBatch(ctx, &cmd.Client, cmd.EmployeeID, entries)
	if err != nil {
		// Nothing was committed, so the claim is released and the operator
		// can retry the batch.
		s.mu.Lock()
		s.sessions[cmd.SessionID] = sess
		s.mu.Unlock()
		return nil, err
	}

	// Saved is terminal for this batch; a new batch starts a new session.
	return &SaveResult{ClientID: clientID, Records: records}, nil
}

// ListEmployees returns the selection list, degrading rather than failing the
// whole session when the store is down.
func (s *Service) ListEmployees(ctx context.Context) ([]employees.Employee, error) {
	if s.Store == nil {
		return nil, fmt.Errorf("%w: not configured", domain.ErrStoreUnavailable)
	}
	return s.Store.ListEmployees(ctx)
}

func (s *Service) analyzeAll(ctx context.Context, uploads []Upload) ([]domain.StagedResult, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: at least one image is required", domain.ErrValidation)
	}

	// One image after another, in upload order.
	staged := make([]domain.StagedResult, 0, len(uploads))
	for _, u := range uploads {
		tensor, err := s.Decoder.Decode(u.Data)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", u.FileName, err)
		}
		score, err := s.Classifier.Classify(ctx, tensor)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", u.FileName, err)
		}
		staged = append(staged, domain.StagedResult{
			FileName: u.FileName,
			Data:     u.Data,
			Verdict:  domain.Interpret(score),
		})
	}
	return staged, nil
}

func (s *Service) lookup(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	return sess, nil
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now()
	}
	return time.Now()
}

func validateClient(c *clients.Client) error {
	var missing []string
	if strings.TrimSpace(c.FirstName) == "" {
		missing = append(missing, "nombres")
	}
	if strings.TrimSpace(c.LastName) == "" {
		missing = append(missing, "apellidos")
	}
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, "celular")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

func verdicts(staged []domain.StagedResult) []ImageVerdict {
	out := make([]ImageVerdict, 0, len(staged))
	for _, r := range staged {
		out = append(out, ImageVerdict{FileName: r.FileName, Verdict: r.Verdict})
	}
	return out
}

func viewOf(sess *session) *SessionView {
	return &SessionView{
		ID:        sess.id,
		CreatedAt: sess.createdAt,
		Results:   verdicts(sess.staged),
	}
}
