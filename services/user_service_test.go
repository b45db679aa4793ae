package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Dosada05/round-matches/models"
	"github.com/Dosada05/round-matches/repositories"
)

func TestRegister(t *testing.T) {
	svc := NewUserService(repositories.NewMemoryUserRepository(), discardLogger())
	ctx := context.Background()

	u, err := svc.Register(ctx, "Player@Example.com", RegisterInput{Name: "  Alice ", Role: models.RolePlayer})
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != 1 || u.Name != "Alice" || u.Style != models.StyleCasual {
		t.Fatalf("unexpected participant: %+v", u)
	}

	if _, err := svc.Register(ctx, "player@example.com", RegisterInput{Name: "Again", Role: models.RolePlayer}); !errors.Is(err, ErrUserAlreadyRegistered) {
		t.Fatalf("expected ErrUserAlreadyRegistered, got %v", err)
	}

	tests := []struct {
		name     string
		identity string
		input    RegisterInput
		wantErr  error
	}{
		{"no identity", "", RegisterInput{Name: "X", Role: models.RolePlayer}, ErrUnauthenticated},
		{"no name", "x@example.com", RegisterInput{Role: models.RolePlayer}, ErrNameRequired},
		{"bad role", "x@example.com", RegisterInput{Name: "X", Role: "judge"}, ErrInvalidRole},
		{"bad style", "x@example.com", RegisterInput{Name: "X", Role: models.RoleObserver, Style: "wild"}, ErrInvalidStyle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.identity, tt.input); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUpdateCurrentUser(t *testing.T) {
	svc := NewUserService(repositories.NewMemoryUserRepository(), discardLogger())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@example.com", RegisterInput{Name: "A", Role: models.RolePlayer}); err != nil {
		t.Fatal(err)
	}

	observer := models.RoleObserver
	updated, err := svc.UpdateCurrentUser(ctx, "a@example.com", UpdateUserInput{Role: &observer})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Role != models.RoleObserver || updated.Name != "A" {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	blank := " "
	if _, err := svc.UpdateCurrentUser(ctx, "a@example.com", UpdateUserInput{Name: &blank}); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if _, err := svc.UpdateCurrentUser(ctx, "ghost@example.com", UpdateUserInput{}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	current, err := svc.CurrentUser(ctx, "A@EXAMPLE.COM")
	if err != nil {
		t.Fatal(err)
	}
	if current.Role != models.RoleObserver {
		t.Fatalf("update not persisted: %+v", current)
	}
}

func TestListPlayers(t *testing.T) {
	svc := NewUserService(repositories.NewMemoryUserRepository(), discardLogger())
	ctx := context.Background()

	for _, in := range []struct {
		email string
		role  models.ParticipantRole
	}{
		{"p1@example.com", models.RolePlayer},
		{"o1@example.com", models.RoleObserver},
		{"p2@example.com", models.RolePlayer},
	} {
		if _, err := svc.Register(ctx, in.email, RegisterInput{Name: in.email, Role: in.role}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := svc.ListAll(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListAll: %v, %v", all, err)
	}
	players, err := svc.ListPlayers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(players) != 2 || players[0].ID != 1 || players[1].ID != 3 {
		t.Fatalf("unexpected players: %+v", players)
	}

	if _, err := svc.GetByID(ctx, 99); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
