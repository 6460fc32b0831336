package persistence_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/example/mentorbook/internal/persistence"
	"github.com/example/mentorbook/internal/persistence/memory"
	"github.com/example/mentorbook/internal/persistence/sqlite"
	"github.com/example/mentorbook/internal/persistence/sqlite/migration"
)

type repositories struct {
	users      persistence.UserRepository
	rules      persistence.AvailabilityRepository
	sessions   persistence.SessionRepository
	feedback   persistence.FeedbackRepository
	activities persistence.ActivityRepository
}

func backends(t *testing.T) map[string]func(t *testing.T) repositories {
	t.Helper()
	return map[string]func(t *testing.T) repositories{
		"memory": func(t *testing.T) repositories {
			store := memory.New()
			return repositories{users: store, rules: store, sessions: store, feedback: store, activities: store}
		},
		"sqlite": func(t *testing.T) repositories {
			config := migration.TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "mentorbook.db"))
			store, err := sqlite.Open(sqlite.Options{SQLite: &config, StoreTimeout: 5 * time.Second})
			if err != nil {
				t.Fatalf("open sqlite store: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			if err := store.Migrate(context.Background()); err != nil {
				t.Fatalf("migrate sqlite store: %v", err)
			}
			return repositories{users: store.Users, rules: store.Availability, sessions: store.Sessions, feedback: store.Feedback, activities: store.Activities}
		},
	}
}

var referenceTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func seedUsers(t *testing.T, ctx context.Context, repos repositories) {
	t.Helper()
	for _, user := range []persistence.User{
		{ID: "mentor-1", Email: "Mentor@Example.com", DisplayName: "Mina Mentor", Role: "mentor", PasswordHash: "hash", CreatedAt: referenceTime, UpdatedAt: referenceTime},
		{ID: "mentor-2", Email: "other@example.com", DisplayName: "Aki Mentor", Role: "mentor", PasswordHash: "hash", CreatedAt: referenceTime, UpdatedAt: referenceTime},
		{ID: "mentee-1", Email: "mentee@example.com", DisplayName: "Ren Mentee", Role: "mentee", PasswordHash: "hash", CreatedAt: referenceTime, UpdatedAt: referenceTime},
		{ID: "mentee-2", Email: "mentee2@example.com", DisplayName: "Sora Mentee", Role: "mentee", PasswordHash: "hash", CreatedAt: referenceTime, UpdatedAt: referenceTime},
	} {
		if err := repos.users.CreateUser(ctx, user); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", user.ID, err)
		}
	}
}

func pendingSession(id, mentee, date, clock string) persistence.Session {
	return persistence.Session{
		ID:        id,
		MentorID:  "mentor-1",
		MenteeID:  mentee,
		Topic:     "Career chat",
		Date:      date,
		Time:      clock,
		Status:    "pending",
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

func TestUserRepository(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repos := open(t)
			seedUsers(t, ctx, repos)

			fetched, err := repos.users.GetUserByEmail(ctx, "MENTOR@example.com")
			if err != nil {
				t.Fatalf("GetUserByEmail failed: %v", err)
			}
			if fetched.ID != "mentor-1" || fetched.Email != "mentor@example.com" || !fetched.CreatedAt.Equal(referenceTime) {
				t.Fatalf("unexpected user %#v", fetched)
			}

			duplicate := persistence.User{ID: "dup", Email: "mentor@example.com", DisplayName: "Dup", Role: "mentee", PasswordHash: "hash", CreatedAt: referenceTime, UpdatedAt: referenceTime}
			if err := repos.users.CreateUser(ctx, duplicate); !errors.Is(err, persistence.ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate for reused email, got %v", err)
			}

			mentors, err := repos.users.ListUsersByRole(ctx, "mentor")
			if err != nil {
				t.Fatalf("ListUsersByRole failed: %v", err)
			}
			if len(mentors) != 2 || mentors[0].ID != "mentor-2" {
				t.Fatalf("expected mentors ordered by display name, got %#v", mentors)
			}

			if _, err := repos.users.GetUser(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestAvailabilityRepository(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repos := open(t)
			seedUsers(t, ctx, repos)

			rule := persistence.AvailabilityRule{ID: "rule-1", MentorID: "mentor-1", Weekday: "monday", StartTime: "09:00", EndTime: "10:00", CreatedAt: referenceTime}
			if err := repos.rules.CreateRuleChecked(ctx, rule, nil); err != nil {
				t.Fatalf("CreateRuleChecked failed: %v", err)
			}

			rejection := errors.New("overlap")
			var seen []persistence.AvailabilityRule
			second := persistence.AvailabilityRule{ID: "rule-2", MentorID: "mentor-1", Weekday: "monday", StartTime: "09:30", EndTime: "11:00", CreatedAt: referenceTime.Add(time.Minute)}
			err := repos.rules.CreateRuleChecked(ctx, second, func(existing []persistence.AvailabilityRule) error {
				seen = existing
				return rejection
			})
			if !errors.Is(err, rejection) {
				t.Fatalf("expected check error to abort insert, got %v", err)
			}
			if len(seen) != 1 || seen[0].ID != "rule-1" {
				t.Fatalf("check saw unexpected rules %#v", seen)
			}

			inverted := persistence.AvailabilityRule{ID: "rule-3", MentorID: "mentor-1", Weekday: "monday", StartTime: "11:00", EndTime: "10:00", CreatedAt: referenceTime}
			if err := repos.rules.CreateRuleChecked(ctx, inverted, nil); !errors.Is(err, persistence.ErrConstraintViolation) {
				t.Fatalf("expected ErrConstraintViolation for inverted window, got %v", err)
			}

			rules, err := repos.rules.ListRules(ctx, "mentor-1")
			if err != nil {
				t.Fatalf("ListRules failed: %v", err)
			}
			if len(rules) != 1 {
				t.Fatalf("expected 1 rule, got %d", len(rules))
			}

			if err := repos.rules.DeleteRule(ctx, "rule-1"); err != nil {
				t.Fatalf("DeleteRule failed: %v", err)
			}
			if _, err := repos.rules.GetRule(ctx, "rule-1"); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
			if err := repos.rules.DeleteRule(ctx, "rule-1"); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
			}
		})
	}
}

func TestAvailabilityRepositorySnapshot(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repos := open(t)
			seedUsers(t, ctx, repos)

			for _, rule := range []persistence.AvailabilityRule{
				{ID: "rule-2", MentorID: "mentor-1", Weekday: "wednesday", StartTime: "13:00", EndTime: "14:00", CreatedAt: referenceTime.Add(time.Minute)},
				{ID: "rule-1", MentorID: "mentor-1", Weekday: "monday", StartTime: "09:00", EndTime: "10:00", CreatedAt: referenceTime},
				{ID: "rule-9", MentorID: "mentor-2", Weekday: "monday", StartTime: "09:00", EndTime: "10:00", CreatedAt: referenceTime},
			} {
				if err := repos.rules.CreateRuleChecked(ctx, rule, nil); err != nil {
					t.Fatalf("CreateRuleChecked(%s) failed: %v", rule.ID, err)
				}
			}

			rejected := pendingSession("s-2", "mentee-2", "2024-05-31", "09:30")
			rejected.Status = "rejected"
			otherMentor := pendingSession("s-9", "mentee-1", "2024-05-06", "09:00")
			otherMentor.MentorID = "mentor-2"
			for _, session := range []persistence.Session{
				pendingSession("s-before", "mentee-1", "2024-04-30", "09:00"),
				pendingSession("s-1", "mentee-1", "2024-05-06", "09:00"),
				pendingSession("s-0", "mentee-1", "2024-05-01", "10:00"),
				rejected,
				pendingSession("s-after", "mentee-1", "2024-06-01", "09:00"),
				otherMentor,
			} {
				if err := repos.sessions.CreateSessionChecked(ctx, session, nil); err != nil {
					t.Fatalf("CreateSessionChecked(%s) failed: %v", session.ID, err)
				}
			}

			snap, err := repos.rules.Snapshot(ctx, "mentor-1", "2024-05-01", "2024-05-31")
			if err != nil {
				t.Fatalf("Snapshot failed: %v", err)
			}
			if len(snap.Rules) != 2 || snap.Rules[0].ID != "rule-1" || snap.Rules[1].ID != "rule-2" {
				t.Fatalf("expected the mentor's rules in creation order, got %#v", snap.Rules)
			}
			var ids []string
			for _, session := range snap.Sessions {
				ids = append(ids, session.ID)
			}
			if want := []string{"s-0", "s-1", "s-2"}; !slices.Equal(ids, want) {
				t.Fatalf("expected sessions %v inside the inclusive range, got %v", want, ids)
			}
			if snap.Sessions[2].Status != "rejected" {
				t.Fatalf("expected released sessions to be returned as stored, got %q", snap.Sessions[2].Status)
			}

			empty, err := repos.rules.Snapshot(ctx, "mentee-1", "2024-05-01", "2024-05-31")
			if err != nil {
				t.Fatalf("Snapshot failed: %v", err)
			}
			if len(empty.Rules) != 0 || len(empty.Sessions) != 0 {
				t.Fatalf("expected an empty snapshot, got %#v", empty)
			}
		})
	}
}

func TestSessionRepositoryHeldSlots(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repos := open(t)
			seedUsers(t, ctx, repos)

			if err := repos.sessions.CreateSessionChecked(ctx, pendingSession("s-1", "mentee-1", "2024-05-06", "09:00"), nil); err != nil {
				t.Fatalf("CreateSessionChecked failed: %v", err)
			}

			// The store rejects a second holder of the same slot even without a check.
			err := repos.sessions.CreateSessionChecked(ctx, pendingSession("s-2", "mentee-2", "2024-05-06", "09:00"), nil)
			if !errors.Is(err, persistence.ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate for held slot, got %v", err)
			}

			var sameDay []persistence.Session
			err = repos.sessions.CreateSessionChecked(ctx, pendingSession("s-3", "mentee-2", "2024-05-06", "09:30"), func(rules []persistence.AvailabilityRule, sessions []persistence.Session) error {
				sameDay = sessions
				return nil
			})
			if err != nil {
				t.Fatalf("CreateSessionChecked failed: %v", err)
			}
			if len(sameDay) != 1 || sameDay[0].ID != "s-1" {
				t.Fatalf("check saw unexpected sessions %#v", sameDay)
			}

			// Releasing the slot lets another booking take it.
			if _, err := repos.sessions.TransitionSession(ctx, "s-1", "pending", "rejected", nil, referenceTime.Add(time.Hour)); err != nil {
				t.Fatalf("TransitionSession failed: %v", err)
			}
			if err := repos.sessions.CreateSessionChecked(ctx, pendingSession("s-4", "mentee-2", "2024-05-06", "09:00"), nil); err != nil {
				t.Fatalf("expected released slot to be bookable, got %v", err)
			}

			mine, err := repos.sessions.ListSessions(ctx, persistence.SessionFilter{ParticipantID: "mentee-2", Statuses: []string{"pending"}})
			if err != nil {
				t.Fatalf("ListSessions failed: %v", err)
			}
			if len(mine) != 2 || mine[0].ID != "s-4" || mine[1].ID != "s-3" {
				t.Fatalf("unexpected sessions %#v", mine)
			}
		})
	}
}

func TestSessionRepositoryGuardedTransition(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repos := open(t)
			seedUsers(t, ctx, repos)

			if err := repos.sessions.CreateSessionChecked(ctx, pendingSession("s-1", "mentee-1", "2024-05-06", "09:00"), nil); err != nil {
				t.Fatalf("CreateSessionChecked failed: %v", err)
			}

			link := "https://meet.example.com/abc-defg-hij"
			approved, err := repos.sessions.TransitionSession(ctx, "s-1", "pending", "approved", &link, referenceTime.Add(time.Hour))
			if err != nil {
				t.Fatalf("TransitionSession failed: %v", err)
			}
			if approved.Status != "approved" || approved.MeetingLink == nil || *approved.MeetingLink != link {
				t.Fatalf("unexpected approved session %#v", approved)
			}

			completed, err := repos.sessions.TransitionSession(ctx, "s-1", "approved", "completed", nil, referenceTime.Add(2*time.Hour))
			if err != nil {
				t.Fatalf("TransitionSession failed: %v", err)
			}
			if completed.MeetingLink == nil || *completed.MeetingLink != link {
				t.Fatalf("expected meeting link to be preserved, got %#v", completed.MeetingLink)
			}

			if _, err := repos.sessions.TransitionSession(ctx, "s-1", "pending", "approved", nil, referenceTime); !errors.Is(err, persistence.ErrStaleState) {
				t.Fatalf("expected ErrStaleState, got %v", err)
			}
			if _, err := repos.sessions.TransitionSession(ctx, "missing", "pending", "approved", nil, referenceTime); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSessionRepositoryConcurrentTransitionsHaveOneWinner(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repos := open(t)
			seedUsers(t, ctx, repos)

			if err := repos.sessions.CreateSessionChecked(ctx, pendingSession("s-1", "mentee-1", "2024-05-06", "09:00"), nil); err != nil {
				t.Fatalf("CreateSessionChecked failed: %v", err)
			}

			const workers = 4
			var (
				wg     sync.WaitGroup
				mu     sync.Mutex
				wins   int
				stales int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := repos.sessions.TransitionSession(ctx, "s-1", "pending", "approved", nil, referenceTime)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						wins++
					case errors.Is(err, persistence.ErrStaleState):
						stales++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			if wins != 1 || stales != workers-1 {
				t.Fatalf("expected exactly one winner, got wins=%d stale=%d", wins, stales)
			}
		})
	}
}

func TestFeedbackRepository(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repos := open(t)
			seedUsers(t, ctx, repos)

			if err := repos.sessions.CreateSessionChecked(ctx, pendingSession("s-1", "mentee-1", "2024-05-06", "09:00"), nil); err != nil {
				t.Fatalf("CreateSessionChecked failed: %v", err)
			}

			comment := "great"
			record := persistence.Feedback{ID: "f-1", SessionID: "s-1", FromID: "mentee-1", ToID: "mentor-1", Rating: 5, Comment: &comment, CreatedAt: referenceTime}
			if err := repos.feedback.CreateFeedback(ctx, record); err != nil {
				t.Fatalf("CreateFeedback failed: %v", err)
			}

			record.ID = "f-2"
			if err := repos.feedback.CreateFeedback(ctx, record); !errors.Is(err, persistence.ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate, got %v", err)
			}

			reverse := persistence.Feedback{ID: "f-3", SessionID: "s-1", FromID: "mentor-1", ToID: "mentee-1", Rating: 4, CreatedAt: referenceTime.Add(time.Minute)}
			if err := repos.feedback.CreateFeedback(ctx, reverse); err != nil {
				t.Fatalf("CreateFeedback (reverse) failed: %v", err)
			}

			fetched, err := repos.feedback.GetFeedbackBySessionAndGiver(ctx, "s-1", "mentee-1")
			if err != nil {
				t.Fatalf("GetFeedbackBySessionAndGiver failed: %v", err)
			}
			if fetched.Comment == nil || *fetched.Comment != "great" {
				t.Fatalf("unexpected feedback %#v", fetched)
			}

			all, err := repos.feedback.ListFeedbackForSession(ctx, "s-1")
			if err != nil || len(all) != 2 {
				t.Fatalf("expected 2 feedback records, got %d (%v)", len(all), err)
			}
			received, err := repos.feedback.ListFeedbackReceived(ctx, "mentor-1")
			if err != nil || len(received) != 1 || received[0].Rating != 5 {
				t.Fatalf("unexpected received feedback %#v (%v)", received, err)
			}
		})
	}
}

func TestActivityRepository(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repos := open(t)
			seedUsers(t, ctx, repos)

			related := "mentor-1"
			for i, content := range []string{"first", "second", "third"} {
				activity := persistence.Activity{
					ID:            string(rune('a' + i)),
					UserID:        "mentee-1",
					Type:          "session_requested",
					Content:       content,
					RelatedUserID: &related,
					CreatedAt:     referenceTime.Add(time.Duration(i) * time.Minute),
				}
				if err := repos.activities.CreateActivity(ctx, activity); err != nil {
					t.Fatalf("CreateActivity failed: %v", err)
				}
			}

			feed, err := repos.activities.ListActivities(ctx, "mentee-1", 2)
			if err != nil {
				t.Fatalf("ListActivities failed: %v", err)
			}
			if len(feed) != 2 || feed[0].Content != "third" || feed[1].Content != "second" {
				t.Fatalf("unexpected feed %#v", feed)
			}
			if feed[0].RelatedUserID == nil || *feed[0].RelatedUserID != "mentor-1" {
				t.Fatalf("expected related user to round-trip")
			}
		})
	}
}
