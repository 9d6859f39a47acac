package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/billing"
	"github.com/parleyhq/parley/internal/domain/board"
	"github.com/parleyhq/parley/internal/domain/discussion"
	"github.com/parleyhq/parley/internal/domain/project"
	"github.com/parleyhq/parley/internal/port/completion"
	"github.com/parleyhq/parley/internal/port/messagequeue"
)

// memStore is an in-memory database.Store for service tests.
type memStore struct {
	mu sync.Mutex

	msgs        map[string][]board.Message
	discussions map[string]*discussion.Discussion
	rounds      map[string][]*discussion.Round
	subs        map[string][]discussion.Submission
	projects    map[string]*project.Project
	roles       map[string]*project.Role

	users     map[string]*billing.User
	passwords map[string]string // email -> bcrypt hash
	tokens    map[string]string // token hash -> user id
	creds     map[string]*billing.Credential
	usage     []billing.UsageRecord
}

func newMemStore() *memStore {
	return &memStore{
		msgs:        map[string][]board.Message{},
		discussions: map[string]*discussion.Discussion{},
		rounds:      map[string][]*discussion.Round{},
		subs:        map[string][]discussion.Submission{},
		projects:    map[string]*project.Project{},
		roles:       map[string]*project.Role{},
		users:       map[string]*billing.User{},
		passwords:   map[string]string{},
		tokens:      map[string]string{},
		creds:       map[string]*billing.Credential{},
	}
}

// --- BoardStore ---

func (s *memStore) InsertMessage(_ context.Context, req board.PostRequest) (*board.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(req), nil
}

func (s *memStore) InsertMessages(_ context.Context, reqs []board.PostRequest) ([]board.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]board.Message, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, *s.insertLocked(req))
	}
	return out, nil
}

func (s *memStore) insertLocked(req board.PostRequest) *board.Message {
	msg := board.Message{
		ID:        int64(len(s.msgs[req.ProjectID]) + 1),
		ProjectID: req.ProjectID,
		FromRole:  req.FromRole,
		ToRole:    req.ToRole,
		Type:      req.Type,
		Subject:   req.Subject,
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	}
	s.msgs[req.ProjectID] = append(s.msgs[req.ProjectID], msg)
	return &msg
}

func (s *memStore) GetMessage(_ context.Context, projectID string, id int64) (*board.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs[projectID] {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%w: message %d", domain.ErrNotFound, id)
}

func (s *memStore) PollMessages(_ context.Context, projectID string, sinceID int64, limit int) ([]board.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []board.Message
	for _, m := range s.msgs[projectID] {
		if m.ID > sinceID {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) RecentMessages(_ context.Context, projectID string, limit int) ([]board.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.msgs[projectID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]board.Message(nil), all...), nil
}

// --- DiscussionStore ---

func (s *memStore) CreateDiscussion(_ context.Context, d *discussion.Discussion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.discussions {
		if other.ProjectID == d.ProjectID && other.IsActive {
			return fmt.Errorf("%w: project already has an active discussion", domain.ErrConflict)
		}
	}
	cp := *d
	s.discussions[d.ID] = &cp
	return nil
}

func (s *memStore) GetDiscussion(_ context.Context, id string) (*discussion.Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discussions[id]
	if !ok {
		return nil, fmt.Errorf("%w: discussion %s", domain.ErrNotFound, id)
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) GetActiveDiscussion(_ context.Context, projectID string) (*discussion.Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.discussions {
		if d.ProjectID == projectID && d.IsActive {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: no active discussion", domain.ErrNotFound)
}

func (s *memStore) ListDiscussions(_ context.Context, projectID string) ([]discussion.Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []discussion.Discussion
	for _, d := range s.discussions {
		if d.ProjectID == projectID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) ListActiveByMode(_ context.Context, mode discussion.Mode) ([]discussion.Discussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []discussion.Discussion
	for _, d := range s.discussions {
		if d.IsActive && d.Mode == mode {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *memStore) UpdateDiscussion(_ context.Context, d *discussion.Discussion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.discussions[d.ID]; !ok {
		return fmt.Errorf("%w: discussion %s", domain.ErrNotFound, d.ID)
	}
	cp := *d
	s.discussions[d.ID] = &cp
	return nil
}

func (s *memStore) CreateRound(_ context.Context, r *discussion.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rounds[r.DiscussionID] = append(s.rounds[r.DiscussionID], &cp)
	return nil
}

func (s *memStore) GetRound(_ context.Context, discussionID string, number int) (*discussion.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds[discussionID] {
		if r.Number == number {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: round %d", domain.ErrNotFound, number)
}

func (s *memStore) GetOpenRound(_ context.Context, discussionID string) (*discussion.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds[discussionID] {
		if r.ClosedAt == nil {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: no open round", domain.ErrNotFound)
}

func (s *memStore) ListRounds(_ context.Context, discussionID string) ([]discussion.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []discussion.Round
	for _, r := range s.rounds[discussionID] {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *memStore) UpdateRound(_ context.Context, r *discussion.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.rounds[r.DiscussionID] {
		if existing.ID == r.ID {
			cp := *r
			s.rounds[r.DiscussionID][i] = &cp
			return nil
		}
	}
	return fmt.Errorf("%w: round %s", domain.ErrNotFound, r.ID)
}

func (s *memStore) CreateSubmission(_ context.Context, sub *discussion.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subs[sub.RoundID] {
		if existing.FromRole == sub.FromRole {
			return fmt.Errorf("%w: %s already submitted", domain.ErrConflict, sub.FromRole)
		}
	}
	s.subs[sub.RoundID] = append(s.subs[sub.RoundID], *sub)
	return nil
}

func (s *memStore) ListSubmissions(_ context.Context, roundID string) ([]discussion.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]discussion.Submission(nil), s.subs[roundID]...), nil
}

// --- ProjectStore ---

func (s *memStore) CreateProject(_ context.Context, p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

func (s *memStore) GetProject(_ context.Context, id string) (*project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", domain.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) GetRole(_ context.Context, projectID, slug string) (*project.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[projectID+"/"+slug]
	if !ok {
		return nil, fmt.Errorf("%w: role %s", domain.ErrNotFound, slug)
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) UpsertRole(_ context.Context, r *project.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.roles[r.ProjectID+"/"+r.Slug] = &cp
	return nil
}

// --- BillingStore ---

func (s *memStore) CreateUser(_ context.Context, u *billing.User, passwordHash, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: email taken", domain.ErrConflict)
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	s.passwords[u.Email] = passwordHash
	s.tokens[tokenHash] = u.ID
	return nil
}

func (s *memStore) GetUser(_ context.Context, id string) (*billing.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*billing.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, email)
}

func (s *memStore) GetUserByTokenHash(_ context.Context, tokenHash string) (*billing.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", domain.ErrNotFound)
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *memStore) GetUserWithPassword(_ context.Context, email string) (*billing.User, string, error) {
	u, err := s.GetUserByEmail(context.Background(), email)
	if err != nil {
		return nil, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return u, s.passwords[email], nil
}

func (s *memStore) ResetUsagePeriod(_ context.Context, userID, period string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	u.MonthlyTokensUsed = 0
	u.MonthlyCostUSD = 0
	u.UsagePeriod = period
	return nil
}

func (s *memStore) AddUsage(_ context.Context, rec *billing.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[rec.UserID]
	if !ok {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, rec.UserID)
	}
	s.usage = append(s.usage, *rec)
	u.MonthlyTokensUsed += rec.TotalTokens()
	u.MonthlyCostUSD += rec.MarkedUpCostUSD
	return nil
}

func (s *memStore) ProjectSpendSince(_ context.Context, projectID string, since time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	for _, rec := range s.usage {
		if rec.ProjectID == projectID && rec.CreatedAt.After(since) {
			sum += rec.MarkedUpCostUSD
		}
	}
	return sum, nil
}

func (s *memStore) GetCredential(_ context.Context, userID, provider string) (*billing.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[userID+"/"+provider]
	if !ok {
		return nil, fmt.Errorf("%w: no %s credential", domain.ErrNotFound, provider)
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) UpsertCredential(_ context.Context, c *billing.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.creds[c.UserID+"/"+c.Provider] = &cp
	return nil
}

func (s *memStore) UsageSummaryByUser(_ context.Context, userID string) (*billing.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := &billing.Summary{}
	for _, rec := range s.usage {
		if rec.UserID == userID {
			addToSummary(sum, rec)
		}
	}
	return sum, nil
}

func (s *memStore) UsageSummaryByProject(_ context.Context, projectID string) (*billing.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := &billing.Summary{}
	for _, rec := range s.usage {
		if rec.ProjectID == projectID {
			addToSummary(sum, rec)
		}
	}
	return sum, nil
}

func (s *memStore) UsageByModel(_ context.Context, projectID string) ([]billing.ModelSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byModel := map[string]*billing.ModelSummary{}
	for _, rec := range s.usage {
		if rec.ProjectID != projectID {
			continue
		}
		ms, ok := byModel[rec.Model]
		if !ok {
			ms = &billing.ModelSummary{Model: rec.Model}
			byModel[rec.Model] = ms
		}
		addToSummary(&ms.Summary, rec)
	}
	var out []billing.ModelSummary
	for _, ms := range byModel {
		out = append(out, *ms)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, nil
}

func (s *memStore) UsageByProjectForUser(_ context.Context, userID string) ([]billing.ProjectSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byProject := map[string]*billing.ProjectSummary{}
	for _, rec := range s.usage {
		if rec.UserID != userID {
			continue
		}
		ps, ok := byProject[rec.ProjectID]
		if !ok {
			ps = &billing.ProjectSummary{ProjectID: rec.ProjectID}
			byProject[rec.ProjectID] = ps
		}
		addToSummary(&ps.Summary, rec)
	}
	var out []billing.ProjectSummary
	for _, ps := range byProject {
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}

func addToSummary(sum *billing.Summary, rec billing.UsageRecord) {
	sum.TotalCostUSD += rec.MarkedUpCostUSD
	sum.TotalTokensIn += rec.InputTokens
	sum.TotalTokensOut += rec.OutputTokens
	sum.CallCount++
}

// --- other fakes ---

// recordedEvent is one broadcast captured by fakeBroadcaster.
type recordedEvent struct {
	ProjectID string
	Type      string
	Payload   any
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBroadcaster) BroadcastProject(_ context.Context, projectID, eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{ProjectID: projectID, Type: eventType, Payload: payload})
}

func (b *fakeBroadcaster) ofType(eventType string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, e := range b.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeQueue struct {
	mu        sync.Mutex
	published map[string]int
}

func (q *fakeQueue) Publish(_ context.Context, subject string, _ []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.published == nil {
		q.published = map[string]int{}
	}
	q.published[subject]++
	return nil
}

func (q *fakeQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *fakeQueue) Close() error { return nil }

// fakeProvider serves completions from a function, counting calls.
type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, req completion.Request) (*completion.Result, error)
}

func (p *fakeProvider) Complete(ctx context.Context, req completion.Request) (*completion.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.fn(ctx, req)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// lastBody returns the newest board message body containing substr, or "".
func (s *memStore) lastBodyContaining(projectID, substr string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.msgs[projectID]) - 1; i >= 0; i-- {
		if strings.Contains(s.msgs[projectID][i].Body, substr) {
			return s.msgs[projectID][i].Body
		}
	}
	return ""
}
