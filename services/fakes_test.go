package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/chess-clubs/brackets"
	"github.com/Dosada05/chess-clubs/models"
	"github.com/Dosada05/chess-clubs/repositories"
)

// memStore is an in-memory stand-in for the database shared by the fake
// repositories below. Ids grow monotonically, so id order is insertion order.
type memStore struct {
	mu     sync.Mutex
	nextID int

	users        map[int]*models.User
	clubs        map[int]*models.Club
	memberships  map[int]*models.Membership
	tournaments  map[int]*models.Tournament
	coOrganisers map[int][]int
	participants map[int]*models.Participant
	groups       map[int]*models.Group
	groupings    map[int]*models.Grouping
	matches      map[int]*models.Match

	// tournamentLocks survives rollbacks.
	tournamentLocks map[int]int
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[int]*models.User),
		clubs:        make(map[int]*models.Club),
		memberships:  make(map[int]*models.Membership),
		tournaments:  make(map[int]*models.Tournament),
		coOrganisers: make(map[int][]int),
		participants: make(map[int]*models.Participant),
		groups:       make(map[int]*models.Group),
		groupings:    make(map[int]*models.Grouping),
		matches:      make(map[int]*models.Match),

		tournamentLocks: make(map[int]int),
	}
}

func (s *memStore) locks(tournamentID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tournamentLocks[tournamentID]
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func sortedIDs[T any](m map[int]T) []int {
	out := make([]int, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// snapshotTx copies the store before fn and puts the copy back if fn fails,
// which is what a rolled back transaction looks like to the services.
// Transactions are not isolated from each other.
type snapshotTx struct{ store *memStore }

func (tx snapshotTx) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	saved := tx.store.snapshot()
	if err := fn(nil); err != nil {
		tx.store.restore(saved)
		return err
	}
	return nil
}

func cloneRows[T any](rows map[int]*T) map[int]*T {
	out := make(map[int]*T, len(rows))
	for id, row := range rows {
		cp := *row
		out[id] = &cp
	}
	return out
}

func (s *memStore) snapshot() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	co := make(map[int][]int, len(s.coOrganisers))
	for id, ids := range s.coOrganisers {
		co[id] = append([]int(nil), ids...)
	}
	return &memStore{
		nextID:       s.nextID,
		users:        cloneRows(s.users),
		clubs:        cloneRows(s.clubs),
		memberships:  cloneRows(s.memberships),
		tournaments:  cloneRows(s.tournaments),
		coOrganisers: co,
		participants: cloneRows(s.participants),
		groups:       cloneRows(s.groups),
		groupings:    cloneRows(s.groupings),
		matches:      cloneRows(s.matches),
	}
}

// restore keeps nextID: sequences are not rolled back in Postgres either.
func (s *memStore) restore(saved *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users, s.clubs, s.memberships = saved.users, saved.clubs, saved.memberships
	s.tournaments, s.coOrganisers = saved.tournaments, saved.coOrganisers
	s.participants, s.groups = saved.participants, saved.groups
	s.groupings, s.matches = saved.groupings, saved.matches
}

type fakeUserRepo struct{ *memStore }

func (r fakeUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return repositories.ErrUserEmailConflict
		}
	}
	u.ID = r.id()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

type fakeClubRepo struct{ *memStore }

func (r fakeClubRepo) Create(_ context.Context, _ repositories.SQLExecutor, c *models.Club) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.clubs {
		if existing.Name == c.Name {
			return repositories.ErrClubNameConflict
		}
	}
	c.ID = r.id()
	cp := *c
	r.clubs[c.ID] = &cp
	return nil
}

func (r fakeClubRepo) GetByID(_ context.Context, id int) (*models.Club, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clubs[id]
	if !ok {
		return nil, repositories.ErrClubNotFound
	}
	cp := *c
	return &cp, nil
}

func (r fakeClubRepo) List(_ context.Context) ([]*models.Club, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Club, 0, len(r.clubs))
	for _, id := range sortedIDs(r.clubs) {
		cp := *r.clubs[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (r fakeClubRepo) UpdateLogoKey(_ context.Context, clubID int, logoKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clubs[clubID]
	if !ok {
		return repositories.ErrClubNotFound
	}
	c.LogoKey = logoKey
	return nil
}

func (r fakeClubRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clubs[id]; !ok {
		return repositories.ErrClubNotFound
	}
	delete(r.clubs, id)
	return nil
}

type fakeMembershipRepo struct{ *memStore }

func (r fakeMembershipRepo) Create(_ context.Context, _ repositories.SQLExecutor, m *models.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.memberships {
		if existing.ClubID == m.ClubID && existing.UserID == m.UserID {
			return repositories.ErrMembershipConflict
		}
	}
	m.ID = r.id()
	cp := *m
	r.memberships[m.ID] = &cp
	return nil
}

func (r fakeMembershipRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[id]
	if !ok {
		return nil, repositories.ErrMembershipNotFound
	}
	cp := *m
	return &cp, nil
}

func (r fakeMembershipRepo) GetByClubAndUser(_ context.Context, clubID, userID int) (*models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.memberships {
		if m.ClubID == clubID && m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repositories.ErrMembershipNotFound
}

func (r fakeMembershipRepo) ListByClub(_ context.Context, clubID int, includeApplicants bool) ([]*models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Membership, 0)
	for _, id := range sortedIDs(r.memberships) {
		m := r.memberships[id]
		if m.ClubID != clubID || (!includeApplicants && m.IsApplicant()) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r fakeMembershipRepo) ListByUser(_ context.Context, userID int) ([]*models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Membership, 0)
	for _, id := range sortedIDs(r.memberships) {
		if m := r.memberships[id]; m.UserID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r fakeMembershipRepo) UpdateMemberType(_ context.Context, _ repositories.SQLExecutor, id int, memberType models.MemberType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[id]
	if !ok {
		return repositories.ErrMembershipNotFound
	}
	m.MemberType = memberType
	return nil
}

func (r fakeMembershipRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memberships[id]; !ok {
		return repositories.ErrMembershipNotFound
	}
	delete(r.memberships, id)
	return nil
}

func (r fakeMembershipRepo) DeleteByClub(_ context.Context, _ repositories.SQLExecutor, clubID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.memberships {
		if m.ClubID == clubID {
			delete(r.memberships, id)
		}
	}
	return nil
}

type fakeTournamentRepo struct{ *memStore }

func (r fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clubs[t.ClubID]; !ok {
		return repositories.ErrTournamentInvalidRef
	}
	t.ID = r.id()
	t.CreatedAt = time.Now()
	cp := *t
	r.tournaments[t.ID] = &cp
	return nil
}

// load expects r.mu to be held.
func (r fakeTournamentRepo) load(id int) (*models.Tournament, error) {
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	cp := *t
	cp.CoOrganiserIDs = append([]int(nil), r.coOrganisers[id]...)
	for _, p := range r.participants {
		if p.TournamentID == id {
			cp.TotalParticipants++
		}
	}
	return &cp, nil
}

func (r fakeTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(id)
}

// LockByID only counts the lock; callers run one at a time in these tests.
func (r fakeTournamentRepo) LockByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.mu.Lock()
	r.tournamentLocks[id]++
	r.mu.Unlock()
	return r.GetByID(ctx, exec, id)
}

func (r fakeTournamentRepo) filter(keep func(t *models.Tournament) bool) []*models.Tournament {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Tournament, 0)
	for _, id := range sortedIDs(r.tournaments) {
		t, _ := r.load(id)
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// participates expects r.mu to be held.
func (r fakeTournamentRepo) participates(tournamentID, membershipID int) bool {
	for _, p := range r.participants {
		if p.TournamentID == tournamentID && p.MembershipID == membershipID {
			return true
		}
	}
	return false
}

func (r fakeTournamentRepo) ListByClub(_ context.Context, clubID int) ([]*models.Tournament, error) {
	return r.filter(func(t *models.Tournament) bool { return t.ClubID == clubID }), nil
}

func (r fakeTournamentRepo) ListInvolving(_ context.Context, clubID, membershipID int) ([]*models.Tournament, error) {
	return r.filter(func(t *models.Tournament) bool {
		return t.ClubID == clubID && (t.IsOrganisedBy(membershipID) || r.participates(t.ID, membershipID))
	}), nil
}

func (r fakeTournamentRepo) ListJoinable(_ context.Context, clubID, membershipID int, now time.Time) ([]*models.Tournament, error) {
	return r.filter(func(t *models.Tournament) bool {
		return t.ClubID == clubID && t.IsActive && t.Deadline.After(now) &&
			t.TotalParticipants < t.ParticipantsLimit &&
			!t.IsOrganisedBy(membershipID) && !r.participates(t.ID, membershipID)
	}), nil
}

func (r fakeTournamentRepo) Close(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.IsActive = false
	return nil
}

func (r fakeTournamentRepo) AddCoOrganiser(_ context.Context, _ repositories.SQLExecutor, tournamentID, membershipID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.coOrganisers[tournamentID] {
		if id == membershipID {
			return repositories.ErrCoOrganiserConflict
		}
	}
	r.coOrganisers[tournamentID] = append(r.coOrganisers[tournamentID], membershipID)
	return nil
}

func (r fakeTournamentRepo) RemoveCoOrganiser(_ context.Context, _ repositories.SQLExecutor, tournamentID, membershipID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.coOrganisers[tournamentID]
	for i, id := range ids {
		if id == membershipID {
			r.coOrganisers[tournamentID] = append(ids[:i:i], ids[i+1:]...)
			return nil
		}
	}
	return repositories.ErrCoOrganiserNotFound
}

func (r fakeTournamentRepo) ListCoOrganisers(_ context.Context, tournamentID int) ([]*models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Membership, 0)
	for _, id := range r.coOrganisers[tournamentID] {
		cp := *r.memberships[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (r fakeTournamentRepo) DeleteByClub(_ context.Context, _ repositories.SQLExecutor, clubID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tournaments {
		if t.ClubID != clubID {
			continue
		}
		for mid, m := range r.matches {
			if m.TournamentID == id {
				delete(r.matches, mid)
			}
		}
		for gid, g := range r.groups {
			if g.TournamentID != id {
				continue
			}
			for grid, gr := range r.groupings {
				if gr.GroupID == gid {
					delete(r.groupings, grid)
				}
			}
			delete(r.groups, gid)
		}
		for pid, p := range r.participants {
			if p.TournamentID == id {
				delete(r.participants, pid)
			}
		}
		delete(r.coOrganisers, id)
		delete(r.tournaments, id)
	}
	return nil
}

type fakeParticipantRepo struct{ *memStore }

func (r fakeParticipantRepo) Create(_ context.Context, _ repositories.SQLExecutor, p *models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.participants {
		if existing.TournamentID == p.TournamentID && existing.MembershipID == p.MembershipID {
			return repositories.ErrParticipantConflict
		}
	}
	p.ID = r.id()
	cp := *p
	cp.Membership = nil
	r.participants[p.ID] = &cp
	return nil
}

// view expects r.mu to be held.
func (r fakeParticipantRepo) view(p *models.Participant) *models.Participant {
	cp := *p
	if m, ok := r.memberships[p.MembershipID]; ok {
		mcp := *m
		cp.Membership = &mcp
	}
	return &cp
}

func (r fakeParticipantRepo) GetByTournamentAndMembership(_ context.Context, _ repositories.SQLExecutor, tournamentID, membershipID int) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.TournamentID == tournamentID && p.MembershipID == membershipID {
			return r.view(p), nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r fakeParticipantRepo) list(tournamentID int, survivorsOnly bool) []*models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Participant, 0)
	for _, id := range sortedIDs(r.participants) {
		p := r.participants[id]
		if p.TournamentID != tournamentID || (survivorsOnly && p.Eliminated) {
			continue
		}
		out = append(out, r.view(p))
	}
	return out
}

func (r fakeParticipantRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Participant, error) {
	return r.list(tournamentID, false), nil
}

func (r fakeParticipantRepo) ListSurvivors(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Participant, error) {
	return r.list(tournamentID, true), nil
}

func (r fakeParticipantRepo) Count(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int, error) {
	return len(r.list(tournamentID, false)), nil
}

func (r fakeParticipantRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[id]; !ok {
		return repositories.ErrParticipantNotFound
	}
	delete(r.participants, id)
	return nil
}

func (r fakeParticipantRepo) MarkEliminated(_ context.Context, _ repositories.SQLExecutor, ids []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if p, ok := r.participants[id]; ok {
			p.Eliminated = true
		}
	}
	return nil
}

func (r fakeParticipantRepo) MarkWon(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok || p.Eliminated {
		return repositories.ErrParticipantNotFound
	}
	for _, other := range r.participants {
		if other.TournamentID == p.TournamentID && other.Won {
			return repositories.ErrWinnerConflict
		}
	}
	p.Won = true
	return nil
}

type fakeGroupRepo struct{ *memStore }

func (r fakeGroupRepo) Create(_ context.Context, _ repositories.SQLExecutor, g *models.Group) error {
	if err := g.Validate(); err != nil {
		return repositories.ErrGroupInvalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	g.ID = r.id()
	g.IsActive = true
	cp := *g
	cp.Groupings, cp.Matches = nil, nil
	r.groups[g.ID] = &cp
	return nil
}

func (r fakeGroupRepo) ListActive(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Group, 0)
	for _, id := range sortedIDs(r.groups) {
		if g := r.groups[id]; g.TournamentID == tournamentID && g.IsActive {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r fakeGroupRepo) Deactivate(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return repositories.ErrGroupNotFound
	}
	g.IsActive = false
	return nil
}

// blockingGroupRepo parks the first ListActive call after it has read the
// store, until release is closed.
type blockingGroupRepo struct {
	fakeGroupRepo
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func newBlockingGroupRepo(store *memStore) *blockingGroupRepo {
	return &blockingGroupRepo{
		fakeGroupRepo: fakeGroupRepo{store},
		reached:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (r *blockingGroupRepo) ListActive(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Group, error) {
	groups, err := r.fakeGroupRepo.ListActive(ctx, exec, tournamentID)
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.reached)
		<-r.release
	}
	return groups, err
}

type fakeGroupingRepo struct{ *memStore }

func (r fakeGroupingRepo) Create(_ context.Context, _ repositories.SQLExecutor, g *models.Grouping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.groups[g.GroupID]
	if !ok {
		return repositories.ErrGroupNotFound
	}
	members := 0
	for _, existing := range r.groupings {
		if existing.GroupID != g.GroupID {
			continue
		}
		if existing.ParticipantID == g.ParticipantID {
			return repositories.ErrGroupingConflict
		}
		members++
	}
	if members >= group.Capacity {
		return repositories.ErrGroupFull
	}
	g.ID = r.id()
	cp := *g
	r.groupings[g.ID] = &cp
	return nil
}

func (r fakeGroupingRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Grouping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groupings[id]
	if !ok {
		return nil, repositories.ErrGroupingNotFound
	}
	cp := *g
	return &cp, nil
}

func (r fakeGroupingRepo) ListByGroup(_ context.Context, _ repositories.SQLExecutor, groupID int) ([]*models.Grouping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Grouping, 0)
	for _, id := range sortedIDs(r.groupings) {
		if g := r.groupings[id]; g.GroupID == groupID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r fakeGroupingRepo) AddPoints(_ context.Context, _ repositories.SQLExecutor, id int, delta float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groupings[id]
	if !ok {
		return repositories.ErrGroupingNotFound
	}
	g.Points += delta
	return nil
}

type fakeMatchRepo struct{ *memStore }

func (r fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.matches {
		if existing.GroupID == m.GroupID &&
			(existing.Player1ID == m.Player1ID && existing.Player2ID == m.Player2ID ||
				existing.Player1ID == m.Player2ID && existing.Player2ID == m.Player1ID) {
			return repositories.ErrMatchPairConflict
		}
	}
	m.ID = r.id()
	cp := *m
	r.matches[m.ID] = &cp
	return nil
}

func (r fakeMatchRepo) LockByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	cp := *m
	return &cp, nil
}

func (r fakeMatchRepo) ListByGroup(_ context.Context, _ repositories.SQLExecutor, groupID int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, id := range sortedIDs(r.matches) {
		if m := r.matches[id]; m.GroupID == groupID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r fakeMatchRepo) CountUnconcluded(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.matches {
		if m.TournamentID == tournamentID && !m.Concluded() && r.groups[m.GroupID].IsActive {
			n++
		}
	}
	return n, nil
}

func (r fakeMatchRepo) ConcludedBetween(_ context.Context, _ repositories.SQLExecutor, tournamentID, a, b int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.matches {
		if m.TournamentID != tournamentID || !m.Concluded() {
			continue
		}
		p1, p2 := r.groupings[m.Player1ID].ParticipantID, r.groupings[m.Player2ID].ParticipantID
		if p1 == a && p2 == b || p1 == b && p2 == a {
			n++
		}
	}
	return n, nil
}

func (r fakeMatchRepo) SetConclusion(_ context.Context, _ repositories.SQLExecutor, id int, conclusion models.Conclusion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok || m.Concluded() {
		return repositories.ErrMatchAlreadyConcluded
	}
	c := conclusion
	m.Conclusion = &c
	return nil
}

// failingMatchRepo fails the failAt-th Create counted from the last arm call.
type failingMatchRepo struct {
	fakeMatchRepo
	mu     sync.Mutex
	calls  int
	failAt int
	err    error
}

func (r *failingMatchRepo) arm(failAt int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls, r.failAt, r.err = 0, failAt, err
}

func (r *failingMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.mu.Lock()
	r.calls++
	fail := r.failAt > 0 && r.calls == r.failAt
	r.mu.Unlock()
	if fail {
		return r.err
	}
	return r.fakeMatchRepo.Create(ctx, exec, m)
}

// fakeCache records invalidations and keeps entries in memory. The
// invalidation count doubles as the epoch.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[int][]byte
	invalidated map[int]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[int][]byte), invalidated: make(map[int]int)}
}

func (c *fakeCache) Epoch(_ context.Context, id int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(c.invalidated[id]), nil
}

func (c *fakeCache) Get(_ context.Context, id int) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[id]
	return data, ok, nil
}

func (c *fakeCache) SetIfEpoch(_ context.Context, id int, epoch int64, data []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int64(c.invalidated[id]) != epoch {
		return false, nil
	}
	c.entries[id] = data
	return true, nil
}

func (c *fakeCache) Invalidate(_ context.Context, id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.invalidated[id]++
	return nil
}

func (c *fakeCache) invalidations(id int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidated[id]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []brackets.Event
	rooms  []string
}

func (n *recordingNotifier) BroadcastToRoom(room string, event brackets.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rooms = append(n.rooms, room)
	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
