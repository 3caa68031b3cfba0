package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/chess-clubs/models"
	"github.com/Dosada05/chess-clubs/repositories"
	"github.com/Dosada05/chess-clubs/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

var baseTime = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memStore
	clock    *fakeClock
	cache    *fakeCache
	notifier *recordingNotifier
	uploader *fakeUploader
	logger   *zap.Logger

	auth        AuthService
	clubs       ClubService
	tournaments TournamentService
	brackets    BracketService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	f := &fixture{
		store:    store,
		clock:    &fakeClock{now: baseTime},
		cache:    newFakeCache(),
		notifier: &recordingNotifier{},
		uploader: newFakeUploader(),
		logger:   zaptest.NewLogger(t),
	}

	f.auth = NewAuthService(fakeUserRepo{store}, TokenConfig{Secret: []byte("test-secret"), Expiration: time.Hour}, f.logger)
	f.clubs = NewClubService(snapshotTx{store}, fakeClubRepo{store}, fakeMembershipRepo{store}, fakeTournamentRepo{store}, f.uploader, f.cache, f.logger)
	f.tournaments = f.tournamentService(fakeGroupRepo{store})
	f.brackets = f.bracketService(fakeMatchRepo{store})
	return f
}

// tournamentService builds a service over the fixture store with groups
// swapped for the given repository.
func (f *fixture) tournamentService(groups repositories.GroupRepository) TournamentService {
	return NewTournamentService(TournamentServiceDeps{
		Tx:              snapshotTx{f.store},
		TournamentRepo:  fakeTournamentRepo{f.store},
		MembershipRepo:  fakeMembershipRepo{f.store},
		ParticipantRepo: fakeParticipantRepo{f.store},
		GroupRepo:       groups,
		GroupingRepo:    fakeGroupingRepo{f.store},
		MatchRepo:       fakeMatchRepo{f.store},
		Cache:           f.cache,
		Logger:          f.logger,
		Now:             f.clock.Now,
	})
}

func (f *fixture) bracketService(matches repositories.MatchRepository) BracketService {
	return NewBracketService(BracketServiceDeps{
		Tx:              snapshotTx{f.store},
		TournamentRepo:  fakeTournamentRepo{f.store},
		ParticipantRepo: fakeParticipantRepo{f.store},
		GroupRepo:       fakeGroupRepo{f.store},
		GroupingRepo:    fakeGroupingRepo{f.store},
		MatchRepo:       matches,
		Notifier:        f.notifier,
		Cache:           f.cache,
		Logger:          f.logger,
		Now:             f.clock.Now,
	})
}

func profile(first string) MembershipProfile {
	return MembershipProfile{
		FirstName:       first,
		LastName:        "Tester",
		ContactDetails:  first + "@example.com",
		ExperienceLevel: models.ExperienceIntermediate,
	}
}

func (f *fixture) user(t *testing.T) int {
	t.Helper()
	u := &models.User{Email: fmt.Sprintf("user%d@example.com", f.store.nextID+1), IsActive: true}
	require.NoError(t, fakeUserRepo{f.store}.Create(context.Background(), u))
	return u.ID
}

// club creates a club through the service and returns it with its owner.
func (f *fixture) club(t *testing.T) (*models.Club, *models.Membership) {
	t.Helper()
	ownerID := f.user(t)
	club, owner, err := f.clubs.CreateClub(context.Background(), ownerID, CreateClubInput{
		Name:        fmt.Sprintf("Club %d", ownerID),
		Location:    "Riga",
		Description: "Weekly rapid and blitz",
		Owner:       profile("Owner"),
	})
	require.NoError(t, err)
	return club, owner
}

// member adds a membership of the given type straight to the store.
func (f *fixture) member(t *testing.T, clubID int, memberType models.MemberType) *models.Membership {
	t.Helper()
	userID := f.user(t)
	m := profile(fmt.Sprintf("Player%d", userID)).membership(clubID, userID, memberType)
	require.NoError(t, fakeMembershipRepo{f.store}.Create(context.Background(), nil, m))
	return m
}

func (f *fixture) tournament(t *testing.T, organiser *models.Membership, limit int) *models.Tournament {
	t.Helper()
	tournament, err := f.tournaments.CreateTournament(context.Background(), organiser.UserID, organiser.ClubID, CreateTournamentInput{
		Name:              "Spring cup",
		Description:       "Round robin groups then knockout",
		Deadline:          f.clock.Now().Add(time.Hour),
		ParticipantsLimit: limit,
	})
	require.NoError(t, err)
	return tournament
}

// joined fills the tournament with n fresh members, in join order.
func (f *fixture) joined(t *testing.T, tournament *models.Tournament, n int) []*models.Participant {
	t.Helper()
	out := make([]*models.Participant, 0, n)
	for i := 0; i < n; i++ {
		m := f.member(t, tournament.ClubID, models.MemberTypeMember)
		p, err := f.tournaments.Join(context.Background(), m.UserID, tournament.ID)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func (f *fixture) participant(id int) *models.Participant {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	cp := *f.store.participants[id]
	return &cp
}

func (f *fixture) tournamentState(id int) *models.Tournament {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	cp := *f.store.tournaments[id]
	return &cp
}

// openMatches lists unconcluded matches of active groups in id order.
func (f *fixture) openMatches(tournamentID int) []*models.Match {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, id := range sortedIDs(f.store.matches) {
		m := f.store.matches[id]
		if m.TournamentID == tournamentID && !m.Concluded() && f.store.groups[m.GroupID].IsActive {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out
}

func (f *fixture) groupingParticipant(groupingID int) int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.groupings[groupingID].ParticipantID
}

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: make(map[string][]byte)}
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, reader io.Reader) (*storage.UploadResult, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = buf.Bytes()
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, key)
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.example.com/" + key
}
