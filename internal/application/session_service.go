package application

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/example/mentorbook/internal/availability"
	"github.com/example/mentorbook/internal/scheduler"
)

const (
	maxTopicLength = 200
	maxNotesLength = 2000
)

// SlotCheck re-validates a booking against a consistent snapshot of the
// mentor's rules and the sessions already booked on the requested date.
type SlotCheck func(rules []AvailabilityRule, sameDay []Session) error

// SessionRepository captures the persistence interactions for sessions.
// TransitionSession must only apply when the stored status still equals from.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session, check SlotCheck) error
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	TransitionSession(ctx context.Context, id string, from, to SessionStatus, meetingLink string, at time.Time) (Session, error)
}

// MeetingLinkProvider hands out a meeting room URL for an approved session.
type MeetingLinkProvider interface {
	Next(ctx context.Context) (string, error)
}

// DefaultMeetingLinkFallback is used when MeetingLinks.Fallback is blank so an
// approved session always carries a link.
const DefaultMeetingLinkFallback = "https://meet.mentorbook.example/lobby"

// MeetingLinks pairs the link provider with the link used when it fails.
type MeetingLinks struct {
	Provider MeetingLinkProvider
	Fallback string
}

type transitionRule struct {
	from       []SessionStatus
	to         SessionStatus
	mentorOnly bool
}

// transitions is the only place the lifecycle matrix is defined.
var transitions = map[Action]transitionRule{
	ActionApprove:  {from: []SessionStatus{StatusPending}, to: StatusApproved, mentorOnly: true},
	ActionReject:   {from: []SessionStatus{StatusPending}, to: StatusRejected, mentorOnly: true},
	ActionComplete: {from: []SessionStatus{StatusApproved}, to: StatusCompleted, mentorOnly: true},
	ActionCancel:   {from: []SessionStatus{StatusPending, StatusApproved}, to: StatusCanceled},
}

func (r transitionRule) allows(status SessionStatus) bool {
	for _, from := range r.from {
		if from == status {
			return true
		}
	}
	return false
}

// SessionService creates sessions and moves them through their lifecycle.
type SessionService struct {
	sessions    SessionRepository
	users       UserDirectory
	links       MeetingLinks
	activities  ActivityRecorder
	slots       SlotInvalidator
	idGenerator func() string
	now         func() time.Time
	logger      *zap.Logger
}

// NewSessionService wires dependencies for session operations.
func NewSessionService(sessions SessionRepository, users UserDirectory, links MeetingLinks, activities ActivityRecorder, slots SlotInvalidator, idGenerator func() string, now func() time.Time) *SessionService {
	return NewSessionServiceWithLogger(sessions, users, links, activities, slots, idGenerator, now, nil)
}

// NewSessionServiceWithLogger wires dependencies with a specified logger.
func NewSessionServiceWithLogger(sessions SessionRepository, users UserDirectory, links MeetingLinks, activities ActivityRecorder, slots SlotInvalidator, idGenerator func() string, now func() time.Time, logger *zap.Logger) *SessionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if strings.TrimSpace(links.Fallback) == "" {
		links.Fallback = DefaultMeetingLinkFallback
	}
	return &SessionService{
		sessions:    sessions,
		users:       users,
		links:       links,
		activities:  activities,
		slots:       slots,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, fields...)
}

// CreateSession books a pending session for the acting mentee. The slot is
// re-checked inside the insert transaction: a held slot yields ErrSlotConflict
// and a time outside the mentor's windows yields a validation error.
func (s *SessionService) CreateSession(ctx context.Context, params CreateSessionParams) (session Session, err error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	if s.sessions == nil {
		return Session{}, fmt.Errorf("session repository not configured")
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "CreateSession",
		zap.String("principal_id", principal.UserID),
		zap.String("mentor_id", params.MentorID),
		zap.String("date", params.Date),
		zap.String("time", params.Time),
	)
	defer func() {
		logOutcome(logger, err, "create session", zap.String("session_id", session.ID))
	}()

	if principal.Role != RoleMentee {
		return Session{}, ErrForbidden
	}

	input, vErr := normalizeSessionInput(params)
	if vErr.HasErrors() {
		return Session{}, vErr
	}

	mentor, err := s.lookupUser(ctx, input.MentorID)
	if err != nil {
		return Session{}, err
	}
	if mentor.Role != RoleMentor {
		return Session{}, invalidArgument("mentor_id", "does not refer to a mentor")
	}
	if mentor.ID == principal.UserID {
		return Session{}, invalidArgument("mentor_id", "must differ from the mentee")
	}

	now := s.now().UTC()
	session = Session{
		ID:        s.idGenerator(),
		MentorID:  mentor.ID,
		MenteeID:  principal.UserID,
		Topic:     input.Topic,
		Date:      input.Date,
		Time:      input.Time,
		Status:    StatusPending,
		Notes:     input.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	check := func(rules []AvailabilityRule, sameDay []Session) error {
		bookings := make([]availability.Booking, 0, len(sameDay))
		for _, existing := range sameDay {
			bookings = append(bookings, existing.Booking())
		}
		if conflict, taken := scheduler.FindSlotConflict(bookings, session.MentorID, session.Date, session.Time); taken {
			logger.Debug("slot already held",
				zap.String("conflict", string(conflict.Type)),
				zap.String("with_session_id", conflict.WithSessionID),
			)
			return ErrSlotConflict
		}
		resolverRules := make([]availability.Rule, 0, len(rules))
		for _, rule := range rules {
			resolverRules = append(resolverRules, rule.Rule())
		}
		if !scheduler.SlotOffered(resolverRules, session.MentorID, session.Date, session.Time) {
			return invalidArgument("time", "is not offered by the mentor's availability")
		}
		return nil
	}

	if err = s.sessions.CreateSession(ctx, session, check); err != nil {
		return Session{}, mapRepoError(err, ErrSlotConflict)
	}
	if s.slots != nil {
		s.slots.InvalidateMentor(session.MentorID)
	}

	mentee, _ := s.lookupUser(ctx, principal.UserID)
	when := session.Date + " at " + session.Time
	s.record(ctx, ActivityInput{
		UserID:        session.MenteeID,
		Type:          ActivitySessionRequested,
		Content:       fmt.Sprintf("You requested a session with %s on %s", displayName(mentor), when),
		RelatedUserID: session.MentorID,
		SessionID:     session.ID,
	})
	s.record(ctx, ActivityInput{
		UserID:        session.MentorID,
		Type:          ActivitySessionRequested,
		Content:       fmt.Sprintf("%s requested a session with you on %s", displayName(mentee), when),
		RelatedUserID: session.MenteeID,
		SessionID:     session.ID,
	})
	return session, nil
}

type sessionInput struct {
	MentorID string
	Topic    string
	Date     string
	Time     string
	Notes    string
}

func normalizeSessionInput(params CreateSessionParams) (sessionInput, *ValidationError) {
	vErr := &ValidationError{}
	input := sessionInput{
		MentorID: strings.TrimSpace(params.MentorID),
		Topic:    strings.TrimSpace(params.Topic),
		Notes:    strings.TrimSpace(params.Notes),
	}

	if input.MentorID == "" {
		vErr.add("mentor_id", "is required")
	}
	switch {
	case input.Topic == "":
		vErr.add("topic", "is required")
	case utf8.RuneCountInString(input.Topic) > maxTopicLength:
		vErr.add("topic", fmt.Sprintf("must be at most %d characters", maxTopicLength))
	}
	if utf8.RuneCountInString(input.Notes) > maxNotesLength {
		vErr.add("notes", fmt.Sprintf("must be at most %d characters", maxNotesLength))
	}
	if date, err := availability.ParseDate(params.Date); err != nil {
		vErr.add("date", "must be YYYY-MM-DD")
	} else {
		input.Date = availability.FormatDate(date)
	}
	if clock, err := availability.ParseClock(params.Time); err != nil {
		vErr.add("time", "must be HH:MM")
	} else {
		input.Time = clock.String()
	}
	return input, vErr
}

// Transition applies one lifecycle action. Failures are checked in order:
// ErrNotFound, then ErrForbidden, then ErrInvalidTransition. A mentor
// approving an already approved session gets the stored record back unchanged.
func (s *SessionService) Transition(ctx context.Context, cmd TransitionCommand) (session Session, err error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	if s.sessions == nil {
		return Session{}, fmt.Errorf("session repository not configured")
	}

	principal := cmd.Principal
	logger := s.loggerWith(ctx, "Transition",
		zap.String("principal_id", principal.UserID),
		zap.String("session_id", cmd.SessionID),
		zap.String("action", string(cmd.Action)),
	)
	defer func() {
		logOutcome(logger, err, "session transition", zap.String("status", string(session.Status)))
	}()

	rule, ok := transitions[cmd.Action]
	if !ok {
		return Session{}, invalidArgument("action", "must be one of approve, reject, complete, cancel")
	}

	current, err := s.sessions.GetSession(ctx, cmd.SessionID)
	if err != nil {
		return Session{}, mapRepoError(err, nil)
	}

	if rule.mentorOnly && principal.UserID != current.MentorID {
		return Session{}, ErrForbidden
	}
	if !current.IsParticipant(principal.UserID) {
		return Session{}, ErrForbidden
	}

	if cmd.Action == ActionApprove && current.Status == StatusApproved {
		return current, nil
	}
	if !rule.allows(current.Status) {
		return Session{}, ErrInvalidTransition
	}

	var link string
	if rule.to == StatusApproved {
		link = s.assignLink(ctx, logger)
	}

	session, err = s.sessions.TransitionSession(ctx, current.ID, current.Status, rule.to, link, s.now().UTC())
	if err != nil {
		return Session{}, mapRepoError(err, nil)
	}
	if !rule.to.HoldsSlot() && s.slots != nil {
		s.slots.InvalidateMentor(session.MentorID)
	}

	s.notifyTransition(ctx, cmd.Action, principal, session)
	return session, nil
}

// Approve moves a pending session to approved and assigns a meeting link.
func (s *SessionService) Approve(ctx context.Context, principal Principal, sessionID string) (Session, error) {
	return s.Transition(ctx, TransitionCommand{Principal: principal, SessionID: sessionID, Action: ActionApprove})
}

// Reject declines a pending session.
func (s *SessionService) Reject(ctx context.Context, principal Principal, sessionID string) (Session, error) {
	return s.Transition(ctx, TransitionCommand{Principal: principal, SessionID: sessionID, Action: ActionReject})
}

// Complete marks an approved session as held, opening feedback.
func (s *SessionService) Complete(ctx context.Context, principal Principal, sessionID string) (Session, error) {
	return s.Transition(ctx, TransitionCommand{Principal: principal, SessionID: sessionID, Action: ActionComplete})
}

// Cancel withdraws a pending or approved session on behalf of either participant.
func (s *SessionService) Cancel(ctx context.Context, principal Principal, sessionID string) (Session, error) {
	return s.Transition(ctx, TransitionCommand{Principal: principal, SessionID: sessionID, Action: ActionCancel})
}

// assignLink never fails: provider errors and empty links fall back to the
// configured default and are logged.
func (s *SessionService) assignLink(ctx context.Context, logger *zap.Logger) string {
	if s.links.Provider != nil {
		link, err := s.links.Provider.Next(ctx)
		if err == nil && strings.TrimSpace(link) != "" {
			return link
		}
		logger.Warn("meeting link provider degraded, using fallback", zap.Error(err), zap.String("fallback", s.links.Fallback))
	} else {
		logger.Warn("meeting link provider not configured, using fallback", zap.String("fallback", s.links.Fallback))
	}
	return s.links.Fallback
}

func (s *SessionService) notifyTransition(ctx context.Context, action Action, principal Principal, session Session) {
	if s.activities == nil {
		return
	}
	mentor, _ := s.lookupUser(ctx, session.MentorID)
	mentee, _ := s.lookupUser(ctx, session.MenteeID)
	when := session.Date + " at " + session.Time

	var mentorText, menteeText string
	var activityType ActivityType
	switch action {
	case ActionApprove:
		activityType = ActivitySessionApproved
		mentorText = fmt.Sprintf("You approved %s's session on %s", displayName(mentee), when)
		menteeText = fmt.Sprintf("%s approved your session request for %s", displayName(mentor), when)
	case ActionReject:
		activityType = ActivitySessionRejected
		mentorText = fmt.Sprintf("You declined %s's session request for %s", displayName(mentee), when)
		menteeText = fmt.Sprintf("%s declined your session request for %s", displayName(mentor), when)
	case ActionComplete:
		activityType = ActivitySessionCompleted
		mentorText = fmt.Sprintf("You marked your session with %s on %s as completed", displayName(mentee), when)
		menteeText = fmt.Sprintf("Your session with %s on %s is complete. Share your feedback!", displayName(mentor), when)
	case ActionCancel:
		activityType = ActivitySessionCanceled
		if principal.UserID == session.MentorID {
			mentorText = fmt.Sprintf("You canceled your session with %s on %s", displayName(mentee), when)
			menteeText = fmt.Sprintf("%s canceled your session on %s", displayName(mentor), when)
		} else {
			mentorText = fmt.Sprintf("%s canceled your session on %s", displayName(mentee), when)
			menteeText = fmt.Sprintf("You canceled your session with %s on %s", displayName(mentor), when)
		}
	default:
		return
	}

	s.record(ctx, ActivityInput{UserID: session.MentorID, Type: activityType, Content: mentorText, RelatedUserID: session.MenteeID, SessionID: session.ID})
	s.record(ctx, ActivityInput{UserID: session.MenteeID, Type: activityType, Content: menteeText, RelatedUserID: session.MentorID, SessionID: session.ID})
}

func (s *SessionService) record(ctx context.Context, input ActivityInput) {
	if s.activities != nil {
		s.activities.Record(ctx, input)
	}
}

func (s *SessionService) lookupUser(ctx context.Context, id string) (User, error) {
	if s.users == nil {
		return User{ID: id}, nil
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return User{ID: id}, mapRepoError(err, nil)
	}
	return user, nil
}

// GetSession returns a session visible to one of its participants.
func (s *SessionService) GetSession(ctx context.Context, principal Principal, sessionID string) (Session, error) {
	if s == nil {
		return Session{}, fmt.Errorf("SessionService is nil")
	}
	if s.sessions == nil {
		return Session{}, fmt.Errorf("session repository not configured")
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, mapRepoError(err, nil)
	}
	if !session.IsParticipant(principal.UserID) {
		return Session{}, ErrForbidden
	}
	return session, nil
}

// ListSessions returns the principal's sessions ordered by date and time.
func (s *SessionService) ListSessions(ctx context.Context, params ListSessionsParams) (sessions []Session, err error) {
	if s == nil {
		return nil, fmt.Errorf("SessionService is nil")
	}
	if s.sessions == nil {
		return nil, nil
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "ListSessions", zap.String("principal_id", principal.UserID), zap.String("role", string(params.Role)))
	defer func() {
		logOutcome(logger, err, "list sessions", zap.Int("count", len(sessions)))
	}()

	if principal.UserID == "" {
		return nil, ErrUnauthenticated
	}

	filter := SessionFilter{Statuses: append([]SessionStatus(nil), params.Statuses...)}
	switch params.Role {
	case RoleMentor:
		filter.MentorID = principal.UserID
	case RoleMentee:
		filter.MenteeID = principal.UserID
	case "":
		filter.ParticipantID = principal.UserID
	default:
		return nil, invalidArgument("role", "must be mentor or mentee")
	}

	sessions, err = s.sessions.ListSessions(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err, nil)
	}
	return sessions, nil
}

func displayName(user User) string {
	if name := strings.TrimSpace(user.DisplayName); name != "" {
		return name
	}
	return "Someone"
}
