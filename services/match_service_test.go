package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dosada05/round-matches/locks"
)

func TestCreateMatchValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		round   int
		players []int
		wantErr error
	}{
		{"one player", 1, []int{f.ids["A"]}, ErrInvalidPlayerCount},
		{"three players", 1, []int{f.ids["A"], f.ids["B"], f.ids["C"]}, ErrInvalidPlayerCount},
		{"unknown player", 1, []int{f.ids["A"], 999}, ErrPlayerNotFound},
		{"observer", 1, f.pair("A", "O"), ErrNotAPlayer},
		{"same player twice", 1, f.pair("A", "A"), ErrDuplicatePlayer},
		{"round zero", 0, f.pair("A", "B"), ErrInvalidRound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.match.CreateMatch(ctx, tt.round, tt.players); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	all, err := f.match.FindAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("failed creations must not write, found %d matches", len(all))
	}
}

func TestCreateMatchAllowsDoubleBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.match.CreateMatch(ctx, 1, f.pair("A", "B")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.match.CreateMatch(ctx, 1, f.pair("A", "C")); err != nil {
		t.Fatalf("single create does not check round exclusivity, got %v", err)
	}
}

// Scenario from the match lifecycle walkthrough: create, report, reject
// overwrite and deletion of a decided match, delete an open one.
func TestMatchLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m1, err := f.match.CreateMatch(ctx, 1, f.pair("A", "B"))
	if err != nil {
		t.Fatal(err)
	}
	m2, err := f.match.CreateMatch(ctx, 1, f.pair("C", "D"))
	if err != nil {
		t.Fatal(err)
	}
	if m2 != m1+1 {
		t.Fatalf("ids should be max+1: got %d then %d", m1, m2)
	}

	if err := f.match.ReportMatchResult(ctx, m1, f.ids["A"]); err != nil {
		t.Fatalf("report: %v", err)
	}
	got, err := f.match.FindByID(ctx, m1)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsFinished || got.Winner == nil || got.Winner.Name != "A" {
		t.Fatalf("expected finished with winner A, got %+v", got)
	}
	if len(got.Players) != 2 || got.Players[0].Name != "A" || got.Players[1].Name != "B" {
		t.Fatalf("players not joined: %+v", got.Players)
	}

	if err := f.match.ReportMatchResult(ctx, m1, f.ids["B"]); !errors.Is(err, ErrMatchAlreadyFinished) {
		t.Fatalf("second report: expected ErrMatchAlreadyFinished, got %v", err)
	}
	if err := f.match.DeleteMatch(ctx, m1); !errors.Is(err, ErrMatchAlreadyFinished) {
		t.Fatalf("delete finished: expected ErrMatchAlreadyFinished, got %v", err)
	}
	if err := f.match.UpdateMatchPlayers(ctx, m1, f.pair("C", "D")); !errors.Is(err, ErrMatchAlreadyFinished) {
		t.Fatalf("update finished: expected ErrMatchAlreadyFinished, got %v", err)
	}

	got, _ = f.match.FindByID(ctx, m1)
	if got.Winner.ID != f.ids["A"] {
		t.Fatalf("winner changed to %d", got.Winner.ID)
	}

	if err := f.match.DeleteMatch(ctx, m2); err != nil {
		t.Fatalf("delete open match: %v", err)
	}
	if _, err := f.match.FindByID(ctx, m2); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound after delete, got %v", err)
	}
}

func TestReportWinnerNotInMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.match.CreateMatch(ctx, 1, f.pair("A", "B"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.match.ReportMatchResult(ctx, id, f.ids["C"]); !errors.Is(err, ErrWinnerNotInMatch) {
		t.Fatalf("expected ErrWinnerNotInMatch, got %v", err)
	}
	got, _ := f.match.FindByID(ctx, id)
	if got.IsFinished || got.Winner != nil {
		t.Fatalf("match must stay unfinished, got %+v", got)
	}
}

func TestReportUnknownMatch(t *testing.T) {
	f := newFixture(t)
	if err := f.match.ReportMatchResult(context.Background(), 42, f.ids["A"]); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestConcurrentReportsExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.locker = locks.NewLocalLocker(locks.DefaultTimeout)
	f.match = NewMatchService(f.matches, f.users, f.locker, nil, discardLogger())

	id, err := f.match.CreateMatch(ctx, 1, f.pair("A", "B"))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, winner := range []string{"A", "B"} {
		wg.Add(1)
		go func(i int, winner int) {
			defer wg.Done()
			errs[i] = f.match.ReportMatchResult(ctx, id, winner)
		}(i, f.ids[winner])
	}
	wg.Wait()

	succeeded, finished := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrMatchAlreadyFinished):
			finished++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || finished != 1 {
		t.Fatalf("expected one success and one ErrMatchAlreadyFinished, got %v", errs)
	}
}

func TestReportLockTimeoutIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.match.CreateMatch(ctx, 2, f.pair("A", "B"))
	if err != nil {
		t.Fatal(err)
	}

	release, err := f.locker.Acquire(ctx, locks.RoundKey(2))
	if err != nil {
		t.Fatal(err)
	}
	err = f.match.ReportMatchResult(ctx, id, f.ids["A"])
	release()

	if !errors.Is(err, ErrLockTimeout) || !errors.Is(err, ErrRetryable) {
		t.Fatalf("expected retryable lock timeout, got %v", err)
	}
	got, _ := f.match.FindByID(ctx, id)
	if got.IsFinished {
		t.Fatal("timed out report must not write")
	}

	if err := f.match.ReportMatchResult(ctx, id, f.ids["A"]); err != nil {
		t.Fatalf("retry after release: %v", err)
	}
}

func TestUpdateMatchPlayers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.match.CreateMatch(ctx, 1, f.pair("A", "B"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.match.UpdateMatchPlayers(ctx, id, f.pair("C", "D")); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := f.match.FindByID(ctx, id)
	if got.Players[0].ID != f.ids["C"] || got.Players[1].ID != f.ids["D"] {
		t.Fatalf("players not replaced: %+v", got.Players)
	}

	if err := f.match.UpdateMatchPlayers(ctx, 999, f.pair("A", "B")); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
	if err := f.match.UpdateMatchPlayers(ctx, id, f.pair("A", "O")); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("expected ErrNotAPlayer, got %v", err)
	}
	if err := f.match.UpdateMatchPlayers(ctx, id, []int{f.ids["A"]}); !errors.Is(err, ErrInvalidPlayerCount) {
		t.Fatalf("expected ErrInvalidPlayerCount, got %v", err)
	}
}

func TestAssignedPlayerIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.match.CreateMatch(ctx, 1, f.pair("A", "B")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.match.CreateMatch(ctx, 1, f.pair("C", "D")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.match.CreateMatch(ctx, 2, f.pair("A", "C")); err != nil {
		t.Fatal(err)
	}

	ids, err := f.match.AssignedPlayerIDs(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := map[int]bool{f.ids["A"]: true, f.ids["B"]: true, f.ids["C"]: true, f.ids["D"]: true}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %v", len(want), ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Fatalf("unexpected id %d in %v", id, ids)
		}
	}

	empty, err := f.match.AssignedPlayerIDs(ctx, 7)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty round: got %v, %v", empty, err)
	}
}

func TestListForIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	own, err := f.match.CreateMatch(ctx, 1, f.pair("A", "B"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.match.CreateMatch(ctx, 1, f.pair("C", "D")); err != nil {
		t.Fatal(err)
	}

	matches, err := f.match.ListForIdentity(ctx, "A@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ID != own {
		t.Fatalf("expected only match %d, got %+v", own, matches)
	}

	if _, err := f.match.ListForIdentity(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := f.match.ListForIdentity(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestReadDegradesForUnknownParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Пишем напрямую в хранилище, минуя валидацию сервиса.
	id, err := f.matches.Create(ctx, 1, []int{f.ids["A"], 404})
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.match.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("read must not fail on dangling link: %v", err)
	}
	if got.Players[1].ID != 404 || got.Players[1].Name != "" {
		t.Fatalf("expected id-only stand-in, got %+v", got.Players[1])
	}
}

func TestMutationsNotifyRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.match.CreateMatch(ctx, 1, f.pair("A", "B"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.match.ReportMatchResult(ctx, id, f.ids["A"]); err != nil {
		t.Fatal(err)
	}
	if n := f.notifier.count(); n != 2 {
		t.Fatalf("expected 2 notifications, got %d", n)
	}
	_ = f.match.ReportMatchResult(ctx, id, f.ids["B"])
	if n := f.notifier.count(); n != 2 {
		t.Fatalf("failed report must not notify, got %d", n)
	}
}
