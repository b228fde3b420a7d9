package service

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/ctf-platform/internal/auth"
	"github.com/yakoovad/ctf-platform/internal/contest"
	"github.com/yakoovad/ctf-platform/internal/model"
	"github.com/yakoovad/ctf-platform/internal/repository"
)

const testDomain = "students.nsbm.ac.lk"

func newRegistration() *model.RegisterTeam {
	return &model.RegisterTeam{
		Name:      " pwners ",
		ContactNo: "0771234567",
		Password:  "hunter2hunter2",
		Members: []*model.NewMember{
			{Name: "Alice", Email: "Alice@students.nsbm.ac.lk"},
			{Name: "Bob", Email: "bob@students.nsbm.ac.lk"},
		},
	}
}

func TestTeamService_Register(t *testing.T) {
	tests := []struct {
		name       string
		phase      contest.Phase
		mutate     func(r *model.RegisterTeam)
		setupMocks func(*MockTeamRepository, *MockMemberRepository)
		wantCode   ErrorCode
	}{
		{
			name:  "success",
			phase: contest.PhaseRegistration,
			setupMocks: func(tr *MockTeamRepository, mr *MockMemberRepository) {
				tr.On("Create", mock.Anything, mock.MatchedBy(func(t *repository.Team) bool {
					return t.Name == "pwners" && auth.VerifyPassword("hunter2hunter2", t.PasswordHash)
				})).Run(func(args mock.Arguments) {
					args.Get(1).(*repository.Team).ID = 5
				}).Return(nil)

				mr.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, repository.ErrNotFound).Twice()
				mr.On("Create", mock.Anything, mock.MatchedBy(func(m *repository.Member) bool {
					return m.Email == "alice@students.nsbm.ac.lk" && m.IsLeader && m.TeamID == 5
				})).Return(nil).Once()
				mr.On("Create", mock.Anything, mock.MatchedBy(func(m *repository.Member) bool {
					return m.Email == "bob@students.nsbm.ac.lk" && !m.IsLeader && m.TeamID == 5
				})).Return(nil).Once()
			},
		},
		{
			name:       "registration not open yet",
			phase:      contest.PhaseNotStarted,
			setupMocks: func(*MockTeamRepository, *MockMemberRepository) {},
			wantCode:   ErrorCodePhaseGate,
		},
		{
			name:       "registration closed",
			phase:      contest.PhaseStarted,
			setupMocks: func(*MockTeamRepository, *MockMemberRepository) {},
			wantCode:   ErrorCodePhaseGate,
		},
		{
			name:  "duplicate email within submission",
			phase: contest.PhaseRegistration,
			mutate: func(r *model.RegisterTeam) {
				r.Members[1].Email = "ALICE@students.nsbm.ac.lk "
			},
			setupMocks: func(*MockTeamRepository, *MockMemberRepository) {},
			wantCode:   ErrorCodeEmailExists,
		},
		{
			name:  "foreign email domain",
			phase: contest.PhaseRegistration,
			mutate: func(r *model.RegisterTeam) {
				r.Members[1].Email = "bob@gmail.com"
			},
			setupMocks: func(*MockTeamRepository, *MockMemberRepository) {},
			wantCode:   ErrorCodeValidation,
		},
		{
			name:  "team name taken",
			phase: contest.PhaseRegistration,
			setupMocks: func(tr *MockTeamRepository, mr *MockMemberRepository) {
				tr.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists)
			},
			wantCode: ErrorCodeTeamExists,
		},
		{
			name:  "email already registered",
			phase: contest.PhaseRegistration,
			setupMocks: func(tr *MockTeamRepository, mr *MockMemberRepository) {
				tr.On("Create", mock.Anything, mock.Anything).Return(nil)
				mr.On("GetByEmail", mock.Anything, "alice@students.nsbm.ac.lk").
					Return(&repository.Member{ID: 1, Email: "alice@students.nsbm.ac.lk"}, nil)
			},
			wantCode: ErrorCodeEmailExists,
		},
		{
			name:  "email taken concurrently",
			phase: contest.PhaseRegistration,
			setupMocks: func(tr *MockTeamRepository, mr *MockMemberRepository) {
				tr.On("Create", mock.Anything, mock.Anything).Return(nil)
				mr.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, repository.ErrNotFound)
				mr.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists)
			},
			wantCode: ErrorCodeEmailExists,
		},
		{
			name:  "member insert failure",
			phase: contest.PhaseRegistration,
			setupMocks: func(tr *MockTeamRepository, mr *MockMemberRepository) {
				tr.On("Create", mock.Anything, mock.Anything).Return(nil)
				mr.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, repository.ErrNotFound)
				mr.On("Create", mock.Anything, mock.Anything).Return(errors.New("db error"))
			},
			wantCode: ErrorCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTx := new(MockTransactor)
			mockTeamRepo := new(MockTeamRepository)
			mockMemberRepo := new(MockMemberRepository)

			tt.setupMocks(mockTeamRepo, mockMemberRepo)

			service := NewTeamService(mockTx, clockAt(tt.phase), auth.NewTokenManager("secret", time.Hour)).
				WithEmailDomain(testDomain).
				WithTeamRepo(mockTeamRepo).
				WithMemberRepo(mockMemberRepo)

			req := newRegistration()
			if tt.mutate != nil {
				tt.mutate(req)
			}

			got, err := service.Register(context.Background(), req)

			if tt.wantCode != "" {
				require.NotNil(t, err)
				assert.Equal(t, tt.wantCode, err.Code)
				assert.Nil(t, got)
			} else {
				require.Nil(t, err)
				assert.Equal(t, int64(5), got.ID)
				assert.Equal(t, "pwners", got.Name)
				require.Len(t, got.Members, 2)
				assert.True(t, got.Members[0].IsLeader)
				assert.False(t, got.Members[1].IsLeader)
			}

			if tt.wantCode == ErrorCodePhaseGate || tt.mutate != nil {
				mockTeamRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			}

			mockTeamRepo.AssertExpectations(t)
			mockMemberRepo.AssertExpectations(t)
		})
	}
}

func TestTeamService_Login(t *testing.T) {
	hash, hashErr := auth.HashPassword("hunter2hunter2")
	require.NoError(t, hashErr)

	team := &repository.Team{ID: 5, Name: "pwners", PasswordHash: hash}
	member := &repository.Member{ID: 11, TeamID: 5, Email: "alice@students.nsbm.ac.lk", IsLeader: true}

	tests := []struct {
		name       string
		phase      contest.Phase
		login      *model.Login
		setupMocks func(*MockTeamRepository, *MockMemberRepository)
		wantCode   ErrorCode
		wantMsg    string
	}{
		{
			name:  "success",
			phase: contest.PhaseStarted,
			login: &model.Login{Email: " Alice@Students.nsbm.ac.lk", Password: "hunter2hunter2"},
			setupMocks: func(tr *MockTeamRepository, mr *MockMemberRepository) {
				mr.On("GetByEmail", mock.Anything, "alice@students.nsbm.ac.lk").Return(member, nil)
				tr.On("Get", mock.Anything, int64(5)).Return(team, nil)
			},
		},
		{
			name:  "wrong password",
			phase: contest.PhaseStarted,
			login: &model.Login{Email: "alice@students.nsbm.ac.lk", Password: "hunter3hunter3"},
			setupMocks: func(tr *MockTeamRepository, mr *MockMemberRepository) {
				mr.On("GetByEmail", mock.Anything, "alice@students.nsbm.ac.lk").Return(member, nil)
				tr.On("Get", mock.Anything, int64(5)).Return(team, nil)
			},
			wantCode: ErrorCodeUnauthorized,
			wantMsg:  "Invalid email or password",
		},
		{
			name:  "unknown email",
			phase: contest.PhaseStarted,
			login: &model.Login{Email: "eve@students.nsbm.ac.lk", Password: "hunter2hunter2"},
			setupMocks: func(tr *MockTeamRepository, mr *MockMemberRepository) {
				mr.On("GetByEmail", mock.Anything, "eve@students.nsbm.ac.lk").Return(nil, repository.ErrNotFound)
			},
			wantCode: ErrorCodeUnauthorized,
			wantMsg:  "Invalid email or password",
		},
		{
			name:       "foreign domain",
			phase:      contest.PhaseStarted,
			login:      &model.Login{Email: "alice@gmail.com", Password: "hunter2hunter2"},
			setupMocks: func(*MockTeamRepository, *MockMemberRepository) {},
			wantCode:   ErrorCodeValidation,
		},
		{
			name:       "contest not started",
			phase:      contest.PhaseRegistration,
			login:      &model.Login{Email: "alice@students.nsbm.ac.lk", Password: "hunter2hunter2"},
			setupMocks: func(*MockTeamRepository, *MockMemberRepository) {},
			wantCode:   ErrorCodePhaseGate,
		},
		{
			name:  "storage failure",
			phase: contest.PhaseStarted,
			login: &model.Login{Email: "alice@students.nsbm.ac.lk", Password: "hunter2hunter2"},
			setupMocks: func(tr *MockTeamRepository, mr *MockMemberRepository) {
				mr.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, errors.New("db error"))
			},
			wantCode: ErrorCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTeamRepo := new(MockTeamRepository)
			mockMemberRepo := new(MockMemberRepository)
			tt.setupMocks(mockTeamRepo, mockMemberRepo)

			tokens := auth.NewTokenManager("secret", time.Hour)
			service := NewTeamService(new(MockTransactor), clockAt(tt.phase), tokens).
				WithEmailDomain(testDomain).
				WithTeamRepo(mockTeamRepo).
				WithMemberRepo(mockMemberRepo)

			got, err := service.Login(context.Background(), tt.login)

			if tt.wantCode != "" {
				require.NotNil(t, err)
				assert.Equal(t, tt.wantCode, err.Code)
				if tt.wantMsg != "" {
					assert.Equal(t, tt.wantMsg, err.Message)
				}
				assert.Nil(t, got)
				return
			}

			require.Nil(t, err)
			assert.Equal(t, int64(5), got.TeamID)
			assert.Equal(t, int64(11), got.MemberID)

			sub, ok := tokens.Resolve(got.Token)
			require.True(t, ok)
			assert.Equal(t, &auth.Subject{TeamID: 5, MemberID: 11}, sub)

			mockTeamRepo.AssertExpectations(t)
			mockMemberRepo.AssertExpectations(t)
		})
	}
}

func TestTeamService_UpdateTeam(t *testing.T) {
	hash, hashErr := auth.HashPassword("oldpassword")
	require.NoError(t, hashErr)

	stored := &repository.Team{ID: 5, Name: "pwners", PasswordHash: hash, Score: 300}
	newName := "  rootkit "

	tests := []struct {
		name       string
		phase      contest.Phase
		leader     bool
		update     *model.TeamUpdate
		setupMocks func(*MockTeamRepository)
		cacheErr   error
		invalidate bool
		wantCode   ErrorCode
		wantMsg    string
	}{
		{
			name:   "rename",
			phase:  contest.PhaseStarted,
			leader: true,
			update: &model.TeamUpdate{Name: &newName},
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("Patch", mock.Anything, mock.MatchedBy(func(p *repository.TeamPatch) bool {
					return p.ID == 5 && p.Name != nil && *p.Name == "rootkit" && p.PasswordHash == nil
				})).Return(&repository.Team{ID: 5, Name: "rootkit", Score: 300}, nil)
			},
			invalidate: true,
		},
		{
			name:   "rename with cache down",
			phase:  contest.PhaseStarted,
			leader: true,
			update: &model.TeamUpdate{Name: &newName},
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("Patch", mock.Anything, mock.Anything).Return(&repository.Team{ID: 5, Name: "rootkit", Score: 300}, nil)
			},
			cacheErr:   errors.New("redis down"),
			invalidate: true,
		},
		{
			name:   "change password",
			phase:  contest.PhaseStarted,
			leader: true,
			update: &model.TeamUpdate{CurrentPassword: "oldpassword", NewPassword: "newpassword"},
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("Get", mock.Anything, int64(5)).Return(stored, nil)
				tr.On("Patch", mock.Anything, mock.MatchedBy(func(p *repository.TeamPatch) bool {
					return p.Name == nil && p.PasswordHash != nil && auth.VerifyPassword("newpassword", *p.PasswordHash)
				})).Return(stored, nil)
			},
		},
		{
			name:   "wrong current password",
			phase:  contest.PhaseStarted,
			leader: true,
			update: &model.TeamUpdate{CurrentPassword: "guess", NewPassword: "newpassword"},
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("Get", mock.Anything, int64(5)).Return(stored, nil)
			},
			wantCode: ErrorCodeUnauthorized,
			wantMsg:  "invalid current password",
		},
		{
			name:       "new password without current",
			phase:      contest.PhaseStarted,
			leader:     true,
			update:     &model.TeamUpdate{NewPassword: "newpassword"},
			setupMocks: func(*MockTeamRepository) {},
			wantCode:   ErrorCodeValidation,
		},
		{
			name:       "not the leader",
			phase:      contest.PhaseStarted,
			leader:     false,
			update:     &model.TeamUpdate{Name: &newName},
			setupMocks: func(*MockTeamRepository) {},
			wantCode:   ErrorCodeForbidden,
		},
		{
			name:       "empty update",
			phase:      contest.PhaseStarted,
			leader:     true,
			update:     &model.TeamUpdate{},
			setupMocks: func(*MockTeamRepository) {},
			wantCode:   ErrorCodeValidation,
		},
		{
			name:   "name taken",
			phase:  contest.PhaseStarted,
			leader: true,
			update: &model.TeamUpdate{Name: &newName},
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("Patch", mock.Anything, mock.Anything).Return(nil, repository.ErrAlreadyExists)
			},
			wantCode: ErrorCodeTeamExists,
		},
		{
			name:       "outside contest",
			phase:      contest.PhaseEnded,
			leader:     true,
			update:     &model.TeamUpdate{Name: &newName},
			setupMocks: func(*MockTeamRepository) {},
			wantCode:   ErrorCodePhaseGate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTeamRepo := new(MockTeamRepository)
			mockCache := new(MockScoreboardCache)
			tt.setupMocks(mockTeamRepo)
			if tt.invalidate {
				mockCache.On("Invalidate", mock.Anything).Return(tt.cacheErr).Once()
			}

			service := NewTeamService(new(MockTransactor), clockAt(tt.phase), auth.NewTokenManager("secret", time.Hour)).
				WithTeamRepo(mockTeamRepo).
				WithScoreboardCache(mockCache)

			update := *tt.update
			got, err := service.UpdateTeam(context.Background(), identityFor(5, 11, tt.leader), &update)

			if tt.wantCode != "" {
				require.NotNil(t, err)
				assert.Equal(t, tt.wantCode, err.Code)
				if tt.wantMsg != "" {
					assert.Equal(t, tt.wantMsg, err.Message)
				}
				assert.Nil(t, got)
				if tt.wantCode != ErrorCodeTeamExists {
					mockTeamRepo.AssertNotCalled(t, "Patch", mock.Anything, mock.Anything)
				}
			} else {
				require.Nil(t, err)
				assert.Equal(t, int64(5), got.ID)
			}

			if !tt.invalidate {
				mockCache.AssertNotCalled(t, "Invalidate", mock.Anything)
			}
			mockTeamRepo.AssertExpectations(t)
			mockCache.AssertExpectations(t)
		})
	}
}

func TestTeamService_GetTeam(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*MockTeamRepository)
		wantCode   ErrorCode
		want       *model.Team
	}{
		{
			name: "success",
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("Get", mock.Anything, int64(5)).Return(&repository.Team{ID: 5, Name: "pwners", PasswordHash: "x"}, nil)
				tr.On("GetTeamMembers", mock.Anything, int64(5)).Return([]*repository.Member{
					{ID: 11, Name: "Alice", Email: "alice@students.nsbm.ac.lk", IsLeader: true},
					{ID: 12, Name: "Bob", Email: "bob@students.nsbm.ac.lk"},
				}, nil)
			},
			want: &model.Team{
				ID:   5,
				Name: "pwners",
				Members: []*model.Member{
					{ID: 11, Name: "Alice", Email: "alice@students.nsbm.ac.lk", IsLeader: true},
					{ID: 12, Name: "Bob", Email: "bob@students.nsbm.ac.lk"},
				},
			},
		},
		{
			name: "team not found",
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("Get", mock.Anything, int64(5)).Return(nil, repository.ErrNotFound)
			},
			wantCode: ErrorCodeNotFound,
		},
		{
			name: "get members failure",
			setupMocks: func(tr *MockTeamRepository) {
				tr.On("Get", mock.Anything, int64(5)).Return(&repository.Team{ID: 5}, nil)
				tr.On("GetTeamMembers", mock.Anything, int64(5)).Return(nil, errors.New("db error"))
			},
			wantCode: ErrorCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTeamRepo := new(MockTeamRepository)
			tt.setupMocks(mockTeamRepo)

			service := NewTeamService(new(MockTransactor), clockAt(contest.PhaseStarted), nil).
				WithTeamRepo(mockTeamRepo)

			got, err := service.GetTeam(context.Background(), 5)

			if tt.wantCode != "" {
				require.NotNil(t, err)
				assert.Equal(t, tt.wantCode, err.Code)
				assert.Nil(t, got)
			} else {
				require.Nil(t, err)
				assert.Equal(t, tt.want, got)
			}

			mockTeamRepo.AssertExpectations(t)
		})
	}
}

func TestTeamService_Stats(t *testing.T) {
	solvedAt := time.Date(2025, 5, 30, 20, 0, 0, 0, time.UTC)

	t.Run("with solves", func(t *testing.T) {
		mockTeamRepo := new(MockTeamRepository)
		mockSolveRepo := new(MockSolveRepository)
		mockTeamRepo.On("Get", mock.Anything, int64(5)).Return(&repository.Team{ID: 5, Name: "pwners", Score: 250}, nil)
		mockSolveRepo.On("CountByTeam", mock.Anything, int64(5)).Return(2, nil)
		mockSolveRepo.On("LastByTeam", mock.Anything, int64(5)).Return(&repository.SolveActivity{
			TeamName: "pwners", ChallengeTitle: "Login Bypass", Points: 150, SolvedAt: solvedAt,
		}, nil)

		service := NewTeamService(new(MockTransactor), clockAt(contest.PhaseStarted), nil).
			WithTeamRepo(mockTeamRepo).
			WithSolveRepo(mockSolveRepo)

		got, err := service.Stats(context.Background(), 5)
		require.Nil(t, err)
		assert.Equal(t, 250, got.Score)
		assert.Equal(t, 2, got.SolveCount)
		assert.Equal(t, &model.LastSolve{Time: solvedAt, Challenge: "Login Bypass", Points: 150}, got.LastSolve)
	})

	t.Run("no solves yet", func(t *testing.T) {
		mockTeamRepo := new(MockTeamRepository)
		mockSolveRepo := new(MockSolveRepository)
		mockTeamRepo.On("Get", mock.Anything, int64(5)).Return(&repository.Team{ID: 5, Name: "pwners"}, nil)
		mockSolveRepo.On("CountByTeam", mock.Anything, int64(5)).Return(0, nil)
		mockSolveRepo.On("LastByTeam", mock.Anything, int64(5)).Return(nil, repository.ErrNotFound)

		service := NewTeamService(new(MockTransactor), clockAt(contest.PhaseStarted), nil).
			WithTeamRepo(mockTeamRepo).
			WithSolveRepo(mockSolveRepo)

		got, err := service.Stats(context.Background(), 5)
		require.Nil(t, err)
		assert.Equal(t, 0, got.SolveCount)
		assert.Nil(t, got.LastSolve)
	})

	t.Run("unknown team", func(t *testing.T) {
		mockTeamRepo := new(MockTeamRepository)
		mockTeamRepo.On("Get", mock.Anything, int64(9)).Return(nil, repository.ErrNotFound)

		service := NewTeamService(new(MockTransactor), clockAt(contest.PhaseStarted), nil).
			WithTeamRepo(mockTeamRepo)

		got, err := service.Stats(context.Background(), 9)
		require.NotNil(t, err)
		assert.Equal(t, ErrorCodeNotFound, err.Code)
		assert.Nil(t, got)
	})
}
