package testfixtures

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/mentorbook/internal/application"
)

func TestClockStartsOnReferenceMonday(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
	if clock.Today() != "2024-01-01" || clock.Now().Weekday() != time.Monday {
		t.Fatalf("expected Monday 2024-01-01, got %s (%s)", clock.Today(), clock.Now().Weekday())
	}
}

func TestClockAdvanceCrossesMidnight(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	clock := NewClock(time.Date(2024, time.May, 6, 8, 0, 0, 0, tokyo))
	if clock.Today() != "2024-05-05" {
		t.Fatalf("expected the UTC date 2024-05-05, got %s", clock.Today())
	}

	nowFn := clock.NowFunc()
	advanced := clock.Advance(24 * time.Hour)
	if !nowFn().Equal(advanced) {
		t.Fatalf("expected NowFunc to follow Advance, got %v want %v", nowFn(), advanced)
	}
	if clock.Today() != "2024-05-06" {
		t.Fatalf("expected 2024-05-06 after a day, got %s", clock.Today())
	}
}

func TestClockRefusesToRunBackwards(t *testing.T) {
	clock := NewClock(time.Time{})
	defer func() {
		if recover() == nil {
			t.Fatal("expected negative Advance to panic")
		}
		if !clock.Now().Equal(ReferenceTime()) {
			t.Fatalf("expected clock to stay put, got %v", clock.Now())
		}
	}()
	clock.Advance(-time.Minute)
}

func TestClockAdvanceExpiresStackTokens(t *testing.T) {
	ctx := context.Background()
	factory := NewServiceFactory()
	stack := factory.MustStack(t, NewMemoryRepositories(t), StackOptions{TokenTTL: 15 * time.Minute})
	mentee := NewUserFixture()
	if err := stack.SeedUser(ctx, mentee); err != nil {
		t.Fatalf("SeedUser returned error: %v", err)
	}

	token, err := stack.IssueToken(ctx, mentee)
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	factory.Clock.Advance(14 * time.Minute)
	if _, err := stack.Auth.ValidateToken(ctx, token); err != nil {
		t.Fatalf("expected token to be valid before its TTL, got %v", err)
	}

	factory.Clock.Advance(2 * time.Minute)
	if _, err := stack.Auth.ValidateToken(ctx, token); !errors.Is(err, application.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after the TTL, got %v", err)
	}
}
