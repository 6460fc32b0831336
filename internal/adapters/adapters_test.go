package adapters_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/example/mentorbook/internal/adapters"
	"github.com/example/mentorbook/internal/application"
	"github.com/example/mentorbook/internal/testfixtures"
)

type scenario struct {
	ctx    context.Context
	stack  *testfixtures.Stack
	mentor testfixtures.UserFixture
	mentee testfixtures.UserFixture
}

func newScenario(t *testing.T, open func(testing.TB) adapters.Repositories) scenario {
	t.Helper()
	return newScenarioWith(t, open, testfixtures.NewServiceFactory(), testfixtures.StackOptions{})
}

func newScenarioWith(t *testing.T, open func(testing.TB) adapters.Repositories, factory *testfixtures.ServiceFactory, opts testfixtures.StackOptions) scenario {
	t.Helper()
	ctx := context.Background()
	stack := factory.MustStack(t, open(t), opts)

	mentor := testfixtures.NewMentorFixture(testfixtures.WithUserID("mentor-7"), testfixtures.WithUserEmail("mentor7@example.com"))
	mentee := testfixtures.NewUserFixture(testfixtures.WithUserID("mentee-1"), testfixtures.WithUserEmail("mentee1@example.com"))
	for _, user := range []testfixtures.UserFixture{mentor, mentee} {
		if err := stack.SeedUser(ctx, user); err != nil {
			t.Fatalf("SeedUser(%s) returned error: %v", user.ID, err)
		}
	}
	if err := stack.SeedRule(ctx, testfixtures.NewRuleFixture(mentor.ID)); err != nil {
		t.Fatalf("SeedRule returned error: %v", err)
	}
	return scenario{ctx: ctx, stack: stack, mentor: mentor, mentee: mentee}
}

func (s scenario) seedSession(t *testing.T, status application.SessionStatus, opts ...testfixtures.SessionOption) testfixtures.SessionFixture {
	t.Helper()
	opts = append([]testfixtures.SessionOption{testfixtures.WithSessionStatus(status)}, opts...)
	session := testfixtures.NewSessionFixture(s.mentor.ID, s.mentee.ID, opts...)
	if err := s.stack.SeedSession(s.ctx, session); err != nil {
		t.Fatalf("SeedSession returned error: %v", err)
	}
	return session
}

func TestOpenIntervalsForEmptyMonday(t *testing.T) {
	for name, open := range testfixtures.Backends() {
		t.Run(name, func(t *testing.T) {
			s := newScenario(t, open)

			view, err := s.stack.Availability.DateAvailability(s.ctx, s.mentor.ID, "2024-01-01")
			if err != nil {
				t.Fatalf("DateAvailability returned error: %v", err)
			}
			if want := []string{"09:00", "09:30"}; !reflect.DeepEqual(view.Times, want) {
				t.Fatalf("expected %v, got %v", want, view.Times)
			}
		})
	}
}

func TestPendingSessionHoldsItsSlot(t *testing.T) {
	for name, open := range testfixtures.Backends() {
		t.Run(name, func(t *testing.T) {
			s := newScenario(t, open)
			s.seedSession(t, application.StatusPending)

			view, err := s.stack.Availability.DateAvailability(s.ctx, s.mentor.ID, "2024-01-01")
			if err != nil {
				t.Fatalf("DateAvailability returned error: %v", err)
			}
			if want := []string{"09:30"}; !reflect.DeepEqual(view.Times, want) {
				t.Fatalf("expected %v, got %v", want, view.Times)
			}
		})
	}
}

func TestApproveIsIdempotent(t *testing.T) {
	for name, open := range testfixtures.Backends() {
		t.Run(name, func(t *testing.T) {
			s := newScenario(t, open)
			session := s.seedSession(t, application.StatusPending)

			approved, err := s.stack.Sessions.Approve(s.ctx, s.mentor.Principal(), session.ID)
			if err != nil {
				t.Fatalf("Approve returned error: %v", err)
			}
			if approved.Status != application.StatusApproved || approved.MeetingLink == "" {
				t.Fatalf("unexpected approved session %+v", approved)
			}

			again, err := s.stack.Sessions.Approve(s.ctx, s.mentor.Principal(), session.ID)
			if err != nil {
				t.Fatalf("second Approve returned error: %v", err)
			}
			if again.Status != approved.Status || again.MeetingLink != approved.MeetingLink {
				t.Fatalf("second approve changed the session: %+v vs %+v", again, approved)
			}

			feed, err := s.stack.Activities.List(s.ctx, s.mentee.Principal(), 0)
			if err != nil {
				t.Fatalf("List returned error: %v", err)
			}
			approvals := 0
			for _, entry := range feed {
				if entry.Type == application.ActivitySessionApproved {
					approvals++
				}
			}
			if approvals != 1 {
				t.Fatalf("expected one approval activity, got %d", approvals)
			}
		})
	}
}

func TestCompleteByMenteeIsForbidden(t *testing.T) {
	for name, open := range testfixtures.Backends() {
		t.Run(name, func(t *testing.T) {
			s := newScenario(t, open)
			session := s.seedSession(t, application.StatusApproved, testfixtures.WithSessionMeetingLink(testfixtures.DefaultMeetingLink))

			_, err := s.stack.Sessions.Complete(s.ctx, s.mentee.Principal(), session.ID)
			if !errors.Is(err, application.ErrForbidden) {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}

			stored, err := s.stack.Sessions.GetSession(s.ctx, s.mentor.Principal(), session.ID)
			if err != nil {
				t.Fatalf("GetSession returned error: %v", err)
			}
			if stored.Status != application.StatusApproved {
				t.Fatalf("expected status to stay approved, got %s", stored.Status)
			}
		})
	}
}

func TestFeedbackOncePerParticipant(t *testing.T) {
	for name, open := range testfixtures.Backends() {
		t.Run(name, func(t *testing.T) {
			s := newScenario(t, open)
			session := s.seedSession(t, application.StatusCompleted)

			submit := func(from, to testfixtures.UserFixture) error {
				_, err := s.stack.Feedback.SubmitFeedback(s.ctx, application.SubmitFeedbackParams{
					Principal: from.Principal(),
					SessionID: session.ID,
					ToID:      to.ID,
					Rating:    5,
				})
				return err
			}

			if err := submit(s.mentee, s.mentor); err != nil {
				t.Fatalf("first submission returned error: %v", err)
			}
			if err := submit(s.mentee, s.mentor); !errors.Is(err, application.ErrAlreadyExists) {
				t.Fatalf("expected ErrAlreadyExists, got %v", err)
			}
			if err := submit(s.mentor, s.mentee); err != nil {
				t.Fatalf("counterpart submission returned error: %v", err)
			}

			_, summary, err := s.stack.Feedback.ListFeedbackReceived(s.ctx, s.mentor.ID)
			if err != nil {
				t.Fatalf("ListFeedbackReceived returned error: %v", err)
			}
			if summary.Count != 1 || summary.Average != 5 {
				t.Fatalf("unexpected summary %+v", summary)
			}
		})
	}
}

func TestBookingFlowAcrossServices(t *testing.T) {
	for name, open := range testfixtures.Backends() {
		t.Run(name, func(t *testing.T) {
			s := newScenario(t, open)

			month, err := s.stack.Availability.MonthAvailability(s.ctx, s.mentor.ID, 2024, 1)
			if err != nil {
				t.Fatalf("MonthAvailability returned error: %v", err)
			}
			if want := []int{1, 8, 15, 22, 29}; !reflect.DeepEqual(month.Days, want) {
				t.Fatalf("expected Mondays %v, got %v", want, month.Days)
			}

			params := application.CreateSessionParams{
				Principal: s.mentee.Principal(),
				MentorID:  s.mentor.ID,
				Topic:     "Career chat",
				Date:      "2024-01-08",
				Time:      "09:30",
			}
			created, err := s.stack.Sessions.CreateSession(s.ctx, params)
			if err != nil {
				t.Fatalf("CreateSession returned error: %v", err)
			}
			if created.Status != application.StatusPending {
				t.Fatalf("expected pending session, got %s", created.Status)
			}

			if _, err := s.stack.Sessions.CreateSession(s.ctx, params); !errors.Is(err, application.ErrSlotConflict) {
				t.Fatalf("expected ErrSlotConflict for a held slot, got %v", err)
			}

			if _, err := s.stack.Sessions.Cancel(s.ctx, s.mentee.Principal(), created.ID); err != nil {
				t.Fatalf("Cancel returned error: %v", err)
			}
			view, err := s.stack.Availability.DateAvailability(s.ctx, s.mentor.ID, "2024-01-08")
			if err != nil {
				t.Fatalf("DateAvailability returned error: %v", err)
			}
			if want := []string{"09:00", "09:30"}; !reflect.DeepEqual(view.Times, want) {
				t.Fatalf("expected the canceled slot to reopen, got %v", view.Times)
			}
		})
	}
}

func TestMonthViewServedFromCacheUntilTTLElapses(t *testing.T) {
	for name, open := range testfixtures.Backends() {
		t.Run(name, func(t *testing.T) {
			factory := testfixtures.NewServiceFactory()
			s := newScenarioWith(t, open, factory, testfixtures.StackOptions{CacheTTL: time.Minute})

			month, err := s.stack.Availability.MonthAvailability(s.ctx, s.mentor.ID, 2024, 1)
			if err != nil {
				t.Fatalf("MonthAvailability returned error: %v", err)
			}
			if want := []int{1, 8, 15, 22, 29}; !reflect.DeepEqual(month.Days, want) {
				t.Fatalf("expected Mondays %v, got %v", want, month.Days)
			}

			// Fill today's slots behind the service's back so nothing invalidates the cache.
			for _, clock := range []string{"09:00", "09:30"} {
				session := testfixtures.NewSessionFixture(s.mentor.ID, s.mentee.ID, testfixtures.WithSessionSlot(factory.Clock.Today(), clock))
				if err := s.stack.Raw.Sessions.CreateSessionChecked(s.ctx, session.Persistence(), nil); err != nil {
					t.Fatalf("CreateSessionChecked returned error: %v", err)
				}
			}

			factory.Clock.Advance(30 * time.Second)
			cached, err := s.stack.Availability.MonthAvailability(s.ctx, s.mentor.ID, 2024, 1)
			if err != nil {
				t.Fatalf("MonthAvailability returned error: %v", err)
			}
			if !reflect.DeepEqual(cached.Days, month.Days) {
				t.Fatalf("expected cached view %v within the TTL, got %v", month.Days, cached.Days)
			}

			factory.Clock.Advance(time.Minute)
			fresh, err := s.stack.Availability.MonthAvailability(s.ctx, s.mentor.ID, 2024, 1)
			if err != nil {
				t.Fatalf("MonthAvailability returned error: %v", err)
			}
			if want := []int{8, 15, 22, 29}; !reflect.DeepEqual(fresh.Days, want) {
				t.Fatalf("expected fully booked day to drop after the TTL, got %v", fresh.Days)
			}
		})
	}
}
