package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/mentorbook/internal/availability"
	"github.com/example/mentorbook/internal/scheduler"
)

// AvailabilityRepository captures the persistence interactions for weekly rules.
// CreateRule runs check against the mentor's existing rules inside the same
// transaction as the insert and aborts when check fails. Snapshot reads the
// mentor's rules and the sessions dated within [dateFrom, dateTo] in one
// consistent read.
type AvailabilityRepository interface {
	CreateRule(ctx context.Context, rule AvailabilityRule, check func(existing []AvailabilityRule) error) error
	GetRule(ctx context.Context, id string) (AvailabilityRule, error)
	ListRules(ctx context.Context, mentorID string) ([]AvailabilityRule, error)
	DeleteRule(ctx context.Context, id string) error
	Snapshot(ctx context.Context, mentorID, dateFrom, dateTo string) (AvailabilitySnapshot, error)
}

// AvailabilitySnapshot is what the resolver needs for one mentor and date range.
type AvailabilitySnapshot struct {
	Rules    []AvailabilityRule
	Sessions []Session
}

// UserDirectory exposes user lookup operations.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
}

// SlotInvalidator is notified whenever a mentor's open slots may have changed.
type SlotInvalidator interface {
	InvalidateMentor(mentorID string)
}

// AvailabilityService manages weekly rules and resolves them into open slots.
type AvailabilityService struct {
	rules       AvailabilityRepository
	users       UserDirectory
	cache       *monthCache
	idGenerator func() string
	now         func() time.Time
	logger      *zap.Logger
}

// NewAvailabilityService wires dependencies for availability operations.
func NewAvailabilityService(rules AvailabilityRepository, users UserDirectory, idGenerator func() string, now func() time.Time, cacheTTL time.Duration) *AvailabilityService {
	return NewAvailabilityServiceWithLogger(rules, users, idGenerator, now, cacheTTL, nil)
}

// NewAvailabilityServiceWithLogger wires dependencies with a specified logger.
// Month views are cached for cacheTTL; zero or a negative value disables caching.
func NewAvailabilityServiceWithLogger(rules AvailabilityRepository, users UserDirectory, idGenerator func() string, now func() time.Time, cacheTTL time.Duration, logger *zap.Logger) *AvailabilityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		rules:       rules,
		users:       users,
		cache:       newMonthCache(cacheTTL, 0, now),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, fields...)
}

// InvalidateMentor discards cached month views of the mentor.
func (s *AvailabilityService) InvalidateMentor(mentorID string) {
	if s == nil {
		return
	}
	s.cache.InvalidateMentor(mentorID)
}

// CreateRule declares a weekly window for the acting mentor. Windows that
// overlap an existing window on the same weekday are rejected; adjacent
// windows are accepted.
func (s *AvailabilityService) CreateRule(ctx context.Context, params CreateRuleParams) (rule AvailabilityRule, err error) {
	if s == nil {
		return AvailabilityRule{}, fmt.Errorf("AvailabilityService is nil")
	}
	if s.rules == nil {
		return AvailabilityRule{}, fmt.Errorf("availability repository not configured")
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "CreateRule",
		zap.String("principal_id", principal.UserID),
		zap.String("weekday", params.Weekday),
		zap.String("start", params.Start),
		zap.String("end", params.End),
	)
	defer func() {
		logOutcome(logger, err, "create availability rule", zap.String("rule_id", rule.ID))
	}()

	if principal.Role != RoleMentor {
		return AvailabilityRule{}, ErrForbidden
	}

	candidate, vErr := parseRuleInput(params)
	if vErr.HasErrors() {
		return AvailabilityRule{}, vErr
	}
	candidate.ID = s.idGenerator()
	candidate.MentorID = principal.UserID
	candidate.CreatedAt = s.now().UTC()

	check := func(existing []AvailabilityRule) error {
		rules := make([]availability.Rule, 0, len(existing))
		for _, r := range existing {
			rules = append(rules, r.Rule())
		}
		conflicts := scheduler.DetectConflicts(rules, candidate.Rule())
		if len(conflicts) == 0 {
			return nil
		}
		windows := make([]string, 0, len(conflicts))
		for _, conflict := range conflicts {
			windows = append(windows, conflict.Start.String()+"-"+conflict.End.String())
		}
		return invalidArgument("start_time", "overlaps existing window "+strings.Join(windows, ", "))
	}

	if err = s.rules.CreateRule(ctx, candidate, check); err != nil {
		return AvailabilityRule{}, mapRepoError(err, ErrAlreadyExists)
	}
	s.cache.InvalidateMentor(candidate.MentorID)
	return candidate, nil
}

func parseRuleInput(params CreateRuleParams) (AvailabilityRule, *ValidationError) {
	vErr := &ValidationError{}
	var rule AvailabilityRule

	weekday, err := availability.ParseWeekday(params.Weekday)
	if err != nil {
		vErr.add("weekday", "must be a day name such as monday")
	}
	start, err := availability.ParseClock(params.Start)
	if err != nil {
		vErr.add("start_time", "must be HH:MM")
	}
	end, err := availability.ParseClock(params.End)
	if err != nil {
		vErr.add("end_time", "must be HH:MM")
	}
	if !vErr.HasErrors() && end <= start {
		vErr.add("end_time", "must be after start_time")
	}

	rule.Weekday = weekday
	rule.Start = start
	rule.End = end
	return rule, vErr
}

// DeleteRule removes one of the acting mentor's rules.
func (s *AvailabilityService) DeleteRule(ctx context.Context, principal Principal, ruleID string) (err error) {
	if s == nil {
		return fmt.Errorf("AvailabilityService is nil")
	}
	if s.rules == nil {
		return fmt.Errorf("availability repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRule",
		zap.String("principal_id", principal.UserID),
		zap.String("rule_id", ruleID),
	)
	defer func() {
		logOutcome(logger, err, "delete availability rule")
	}()

	existing, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return mapRepoError(err, nil)
	}
	if existing.MentorID != principal.UserID {
		return ErrForbidden
	}
	if err = s.rules.DeleteRule(ctx, ruleID); err != nil {
		return mapRepoError(err, nil)
	}
	s.cache.InvalidateMentor(existing.MentorID)
	return nil
}

// ListRules returns a mentor's windows ordered by weekday then start time.
func (s *AvailabilityService) ListRules(ctx context.Context, mentorID string) ([]AvailabilityRule, error) {
	if s == nil {
		return nil, fmt.Errorf("AvailabilityService is nil")
	}
	if err := s.ensureMentor(ctx, mentorID); err != nil {
		return nil, err
	}
	rules, err := s.rules.ListRules(ctx, mentorID)
	if err != nil {
		return nil, mapRepoError(err, nil)
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Weekday != rules[j].Weekday {
			return rules[i].Weekday < rules[j].Weekday
		}
		return rules[i].Start < rules[j].Start
	})
	return rules, nil
}

// DateAvailability resolves the open slot start times of a mentor on one date.
func (s *AvailabilityService) DateAvailability(ctx context.Context, mentorID, date string) (view DateAvailability, err error) {
	if s == nil {
		return DateAvailability{}, fmt.Errorf("AvailabilityService is nil")
	}

	logger := s.loggerWith(ctx, "DateAvailability", zap.String("mentor_id", mentorID), zap.String("date", date))
	defer func() {
		logOutcome(logger, err, "resolve date availability", zap.Int("slots", len(view.Times)))
	}()

	day, parseErr := availability.ParseDate(date)
	if parseErr != nil {
		return DateAvailability{}, invalidArgument("date", "must be YYYY-MM-DD")
	}
	if err = s.ensureMentor(ctx, mentorID); err != nil {
		return DateAvailability{}, err
	}

	canonical := availability.FormatDate(day)
	rules, bookings, err := s.snapshot(ctx, mentorID, canonical, canonical)
	if err != nil {
		return DateAvailability{}, err
	}

	return DateAvailability{
		MentorID: mentorID,
		Date:     canonical,
		Times:    availability.IntervalsForDate(rules, bookings, mentorID, day),
	}, nil
}

// MonthAvailability resolves which days of a month have at least one open slot.
func (s *AvailabilityService) MonthAvailability(ctx context.Context, mentorID string, year, month int) (view MonthAvailability, err error) {
	if s == nil {
		return MonthAvailability{}, fmt.Errorf("AvailabilityService is nil")
	}

	logger := s.loggerWith(ctx, "MonthAvailability", zap.String("mentor_id", mentorID), zap.Int("year", year), zap.Int("month", month))
	cached := false
	defer func() {
		logOutcome(logger, err, "resolve month availability", zap.Int("days", len(view.Days)), zap.Bool("cached", cached))
	}()

	vErr := &ValidationError{}
	if year < 1 || year > 9999 {
		vErr.add("year", "must be between 1 and 9999")
	}
	if month < 1 || month > 12 {
		vErr.add("month", "must be between 1 and 12")
	}
	if vErr.HasErrors() {
		return MonthAvailability{}, vErr
	}

	key := monthCacheKey(mentorID, year, time.Month(month))
	if hit, ok := s.cache.Get(key); ok {
		cached = true
		return hit, nil
	}
	generation := s.cache.Generation(mentorID)

	if err = s.ensureMentor(ctx, mentorID); err != nil {
		return MonthAvailability{}, err
	}

	grid := availability.MonthGrid(year, time.Month(month))
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	from := availability.FormatDate(first)
	to := availability.FormatDate(first.AddDate(0, 0, grid.Days-1))
	rules, bookings, err := s.snapshot(ctx, mentorID, from, to)
	if err != nil {
		return MonthAvailability{}, err
	}

	view = MonthAvailability{
		MentorID:     mentorID,
		Year:         year,
		Month:        time.Month(month),
		Days:         availability.DaysForMonth(rules, bookings, mentorID, year, time.Month(month)),
		DaysInMonth:  grid.Days,
		FirstWeekday: grid.FirstWeekday,
	}
	if s.cache != nil && !s.cache.Store(key, mentorID, generation, view) {
		logger.Debug("month view not cached", zap.Uint64("generation", generation))
	}
	return view, nil
}

func (s *AvailabilityService) snapshot(ctx context.Context, mentorID, dateFrom, dateTo string) ([]availability.Rule, []availability.Booking, error) {
	if s.rules == nil {
		return nil, nil, fmt.Errorf("availability repository not configured")
	}
	snap, err := s.rules.Snapshot(ctx, mentorID, dateFrom, dateTo)
	if err != nil {
		return nil, nil, mapRepoError(err, nil)
	}

	rules := make([]availability.Rule, 0, len(snap.Rules))
	for _, rule := range snap.Rules {
		rules = append(rules, rule.Rule())
	}
	bookings := make([]availability.Booking, 0, len(snap.Sessions))
	for _, session := range snap.Sessions {
		bookings = append(bookings, session.Booking())
	}
	return rules, bookings, nil
}

func (s *AvailabilityService) ensureMentor(ctx context.Context, mentorID string) error {
	if strings.TrimSpace(mentorID) == "" {
		return invalidArgument("mentor_id", "is required")
	}
	if s.users == nil {
		return nil
	}
	user, err := s.users.GetUser(ctx, mentorID)
	if err != nil {
		return mapRepoError(err, nil)
	}
	if user.Role != RoleMentor {
		return ErrNotFound
	}
	return nil
}
