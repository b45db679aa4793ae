package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/round-matches/locks"
	"github.com/Dosada05/round-matches/models"
	"github.com/Dosada05/round-matches/repositories"
)

type fixture struct {
	users    repositories.UserRepository
	matches  repositories.MatchRepository
	locker   *locks.LocalLocker
	notifier *recordingNotifier
	match    MatchService
	round    RoundService
	user     UserService
	ids      map[string]int
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture registers players A-D and observer O.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, repositories.NewMemoryMatchRepository())
}

func newFixtureWithRepo(t *testing.T, matchRepo repositories.MatchRepository) *fixture {
	t.Helper()
	f := &fixture{
		users:    repositories.NewMemoryUserRepository(),
		matches:  matchRepo,
		locker:   locks.NewLocalLocker(50 * time.Millisecond),
		notifier: &recordingNotifier{},
		ids:      make(map[string]int),
	}
	logger := discardLogger()
	f.match = NewMatchService(f.matches, f.users, f.locker, f.notifier, logger)
	f.round = NewRoundService(f.matches, f.users, f.locker, f.notifier, logger)
	f.user = NewUserService(f.users, logger)

	for _, p := range []struct {
		name string
		role models.ParticipantRole
	}{
		{"A", models.RolePlayer},
		{"B", models.RolePlayer},
		{"C", models.RolePlayer},
		{"D", models.RolePlayer},
		{"O", models.RoleObserver},
	} {
		u, err := f.user.Register(context.Background(), p.name+"@example.com", RegisterInput{Name: p.name, Role: p.role, Style: models.StyleMeta})
		if err != nil {
			t.Fatalf("register %s: %v", p.name, err)
		}
		f.ids[p.name] = u.ID
	}
	return f
}

func (f *fixture) pair(a, b string) []int {
	return []int{f.ids[a], f.ids[b]}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) BroadcastToRoom(roomID string, message interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, roomID)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}
