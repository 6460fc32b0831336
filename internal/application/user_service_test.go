package application

import (
	"context"
	"errors"
	"testing"
)

func plainHasher(password string) (string, error) { return "hashed:" + password, nil }

func TestUserService_RegisterNormalizesAndHashes(t *testing.T) {
	store := newStoreStub()
	service := NewUserService(store, store, plainHasher, sequentialIDs("user"), fixedNow)

	user, err := service.Register(context.Background(), RegisterUserParams{
		Email:       "  Mina@Example.COM ",
		DisplayName: " Mina ",
		Role:        "Mentor",
		Password:    "correct horse",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "mina@example.com" || user.DisplayName != "Mina" || user.Role != RoleMentor {
		t.Fatalf("unexpected user %#v", user)
	}
	if store.hashes[user.ID] != "hashed:correct horse" {
		t.Fatalf("expected password hash to be stored, got %q", store.hashes[user.ID])
	}

	_, err = service.Register(context.Background(), RegisterUserParams{Email: "mina@example.com", DisplayName: "Other", Role: "mentee", Password: "long enough"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUserService_RegisterValidation(t *testing.T) {
	service := NewUserService(newStoreStub(), nil, plainHasher, sequentialIDs("user"), fixedNow)

	_, err := service.Register(context.Background(), RegisterUserParams{Email: "not-an-email", Role: "admin", Password: "short"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"email", "display_name", "role", "password"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected error on %s, got %v", field, vErr.FieldErrors)
		}
	}
}

func TestUserService_RegisterSurfacesHashFailure(t *testing.T) {
	failing := func(string) (string, error) { return "", errBoom }
	service := NewUserService(newStoreStub(), nil, failing, sequentialIDs("user"), fixedNow)
	_, err := service.Register(context.Background(), RegisterUserParams{Email: "a@example.com", DisplayName: "A", Role: "mentee", Password: "long enough"})
	if !errors.Is(err, errBoom) || ErrorKind(err) != "unexpected" {
		t.Fatalf("expected wrapped hash failure, got %v", err)
	}
}

func TestUserService_ListMentorsOrdersByRating(t *testing.T) {
	store := newStoreStub()
	store.addUser("mentor-a", RoleMentor, "Aki")
	store.addUser("mentor-b", RoleMentor, "Bea")
	store.addUser("mentee-1", RoleMentee, "Ren")
	store.feedback["s1|mentee-1"] = Feedback{ID: "f1", ToID: "mentor-b", Rating: 5}
	store.feedback["s2|mentee-1"] = Feedback{ID: "f2", ToID: "mentor-a", Rating: 3}

	service := NewUserService(store, store, plainHasher, nil, fixedNow)
	mentors, err := service.ListMentors(context.Background())
	if err != nil {
		t.Fatalf("ListMentors failed: %v", err)
	}
	if len(mentors) != 2 || mentors[0].User.ID != "mentor-b" || mentors[0].Rating.Average != 5 {
		t.Fatalf("unexpected mentors %#v", mentors)
	}
}

func TestUserService_GetUser(t *testing.T) {
	store := newStoreStub()
	store.addUser("mentor-a", RoleMentor, "Aki")
	service := NewUserService(store, nil, plainHasher, nil, fixedNow)

	if _, err := service.GetUser(context.Background(), "mentor-a"); err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if _, err := service.GetUser(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
