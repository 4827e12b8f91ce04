package mockapi

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Approval states accepted by PATCH /api/tickets/{id}/approval.
const (
	ApprovalPending  = "PENDING"
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"
)

// SeedTicketID is the ticket present at startup. Newly created tickets
// are numbered after it.
const SeedTicketID int64 = 75

// DefaultPassword is the password of every seeded user.
const DefaultPassword = "password"

var (
	errNotFound     = errors.New("not found")
	errBadApproval  = errors.New("managerApprovalStatus must be PENDING, APPROVED or REJECTED")
	errUnknownUser  = errors.New("user not found")
	errTitleMissing = errors.New("title is required")
)

// UserRef is the embedded form of a user inside tickets.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// User is a seeded account.
type User struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Role     string   `json:"role"`
	Manager  *UserRef `json:"manager,omitempty"`

	passwordHash []byte
}

func (u *User) ref() *UserRef {
	return &UserRef{ID: u.ID, Username: u.Username}
}

// Ticket is the server-side ticket record.
type Ticket struct {
	ID                    int64     `json:"id"`
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	Category              string    `json:"category"`
	Priority              string    `json:"priority"`
	Status                string    `json:"status"`
	ManagerApprovalStatus string    `json:"managerApprovalStatus"`
	Requester             *UserRef  `json:"requester,omitempty"`
	AssignedTo            *UserRef  `json:"assignedTo"`
	CreatedAt             time.Time `json:"createdAt"`
}

// Article is a knowledge-base entry.
type Article struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Category string    `json:"category"`
	Author   string    `json:"author"`
	Created  time.Time `json:"createdAt"`
}

// Notification is an email-equivalent event emitted after approval or
// assignment changes. It becomes visible only once dispatched.
type Notification struct {
	ID        string    `json:"id"`
	TicketID  int64     `json:"ticketId"`
	Type      string    `json:"type"`
	Recipient string    `json:"recipient"`
	Value     string    `json:"value"`
	SentAt    time.Time `json:"sentAt"`
}

type ticketInput struct {
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	Category              string   `json:"category"`
	Priority              string   `json:"priority"`
	ManagerApprovalStatus string   `json:"managerApprovalStatus"`
	Requester             *UserRef `json:"requester"`
}

// state is the in-memory backend. Every method takes the lock.
type state struct {
	mu sync.Mutex

	users    map[int64]*User
	byName   map[string]*User
	sessions map[string]int64
	tickets  map[int64]*Ticket
	articles []*Article
	sent     []Notification
	pending  []*time.Timer

	nextTicket  int64
	nextArticle int64
	notifyDelay time.Duration
	now         func() time.Time
}

type seedUser struct {
	id       int64
	username string
	role     string
	manager  int64
}

var seedUsers = []seedUser{
	{1, "admin", "ADMIN", 0},
	{2, "manager_jane", "MANAGER", 0},
	{3, "employee_john", "EMPLOYEE", 2},
	{4, "support_sam", "SUPPORT", 0},
}

func newState(cost int, notifyDelay time.Duration) (*state, error) {
	s := &state{
		users:       map[int64]*User{},
		byName:      map[string]*User{},
		sessions:    map[string]int64{},
		tickets:     map[int64]*Ticket{},
		nextTicket:  SeedTicketID + 1,
		nextArticle: 1,
		notifyDelay: notifyDelay,
		now:         time.Now,
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return nil, err
	}
	for _, su := range seedUsers {
		u := &User{
			ID:           su.id,
			Username:     su.username,
			Email:        su.username + "@example.test",
			Role:         su.role,
			passwordHash: hash,
		}
		s.users[u.ID] = u
		s.byName[u.Username] = u
	}
	for _, su := range seedUsers {
		if su.manager != 0 {
			s.users[su.id].Manager = s.users[su.manager].ref()
		}
	}

	s.tickets[SeedTicketID] = &Ticket{
		ID:                    SeedTicketID,
		Title:                 "Laptop fan grinding",
		Description:           "Fan noise on boot.",
		Category:              "HARDWARE",
		Priority:              "HIGH",
		Status:                "OPEN",
		ManagerApprovalStatus: ApprovalPending,
		Requester:             s.users[3].ref(),
		CreatedAt:             s.now(),
	}
	return s, nil
}

func (s *state) authenticate(username, password string) (*User, bool) {
	s.mu.Lock()
	u, ok := s.byName[username]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)) != nil {
		return nil, false
	}
	return u, true
}

func (s *state) openSession(u *User) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = u.ID
	return id
}

func (s *state) session(id string) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return s.users[uid], true
}

func (s *state) userByName(name string) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byName[name]
	return u, ok
}

func (s *state) listUsers() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) createTicket(in ticketInput, caller *User) (Ticket, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Ticket{}, errTitleMissing
	}
	approval := in.ManagerApprovalStatus
	if approval == "" {
		approval = ApprovalPending
	}
	if !validApproval(approval) {
		return Ticket{}, errBadApproval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	requester := caller.ref()
	if in.Requester != nil {
		u, ok := s.users[in.Requester.ID]
		if !ok {
			return Ticket{}, errUnknownUser
		}
		requester = u.ref()
	}

	t := &Ticket{
		ID:                    s.nextTicket,
		Title:                 in.Title,
		Description:           in.Description,
		Category:              in.Category,
		Priority:              in.Priority,
		Status:                "OPEN",
		ManagerApprovalStatus: approval,
		Requester:             requester,
		CreatedAt:             s.now(),
	}
	s.nextTicket++
	s.tickets[t.ID] = t
	return *t, nil
}

func (s *state) ticket(id int64) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return Ticket{}, errNotFound
	}
	return *t, nil
}

func (s *state) setApproval(id int64, status string) (Ticket, error) {
	if !validApproval(status) {
		return Ticket{}, errBadApproval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return Ticket{}, errNotFound
	}
	t.ManagerApprovalStatus = status
	if t.Requester != nil {
		s.enqueueLocked(Notification{TicketID: id, Type: "APPROVAL", Recipient: t.Requester.Username, Value: status})
	}
	return *t, nil
}

// assign is idempotent: assigning the current assignee again succeeds and
// emits no second notification.
func (s *state) assign(id, userID int64) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return Ticket{}, errNotFound
	}
	u, ok := s.users[userID]
	if !ok {
		return Ticket{}, errUnknownUser
	}
	if t.AssignedTo != nil && t.AssignedTo.ID == u.ID {
		return *t, nil
	}
	t.AssignedTo = u.ref()
	t.Status = "IN_PROGRESS"
	s.enqueueLocked(Notification{TicketID: id, Type: "ASSIGNMENT", Recipient: u.Username, Value: u.Username})
	return *t, nil
}

func (s *state) createArticle(a Article, author *User) (Article, error) {
	if strings.TrimSpace(a.Title) == "" {
		return Article{}, errTitleMissing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.nextArticle
	a.Author = author.Username
	a.Created = s.now()
	s.nextArticle++
	s.articles = append(s.articles, &a)
	return a, nil
}

// enqueueLocked schedules n for dispatch after notifyDelay. Callers hold mu.
func (s *state) enqueueLocked(n Notification) {
	n.ID = uuid.NewString()
	t := time.AfterFunc(s.notifyDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		n.SentAt = s.now()
		s.sent = append(s.sent, n)
	})
	s.pending = append(s.pending, t)
}

func (s *state) notifications(ticketID int64) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Notification{}
	for _, n := range s.sent {
		if ticketID == 0 || n.TicketID == ticketID {
			out = append(out, n)
		}
	}
	return out
}

func (s *state) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.pending {
		t.Stop()
	}
	s.pending = nil
}

func validApproval(status string) bool {
	switch status {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}
