package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"traveldesk/internal/authz"
	"traveldesk/internal/models"
	"traveldesk/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRequestRepo implements repository.TravelRequestRepository with
// overridable function fields.
type stubRequestRepo struct {
	createFn     func(ctx context.Context, tr *models.TravelRequest) error
	getByIDFn    func(ctx context.Context, id uint) (*models.TravelRequest, error)
	updateFn     func(ctx context.Context, tr *models.TravelRequest) error
	listFn       func(ctx context.Context, ownerID uint, filters repository.TravelRequestFilters, page int) (*repository.TravelRequestPage, error)
	transitionFn func(ctx context.Context, id uint, apply func(*models.TravelRequest) (models.StatusChange, error)) (*models.TravelRequest, error)
}

func (s *stubRequestRepo) Create(ctx context.Context, tr *models.TravelRequest) error {
	return s.createFn(ctx, tr)
}

func (s *stubRequestRepo) GetByID(ctx context.Context, id uint) (*models.TravelRequest, error) {
	return s.getByIDFn(ctx, id)
}

func (s *stubRequestRepo) Update(ctx context.Context, tr *models.TravelRequest) error {
	return s.updateFn(ctx, tr)
}

func (s *stubRequestRepo) List(ctx context.Context, ownerID uint, filters repository.TravelRequestFilters, page int) (*repository.TravelRequestPage, error) {
	return s.listFn(ctx, ownerID, filters, page)
}

func (s *stubRequestRepo) Transition(ctx context.Context, id uint, apply func(*models.TravelRequest) (models.StatusChange, error)) (*models.TravelRequest, error) {
	return s.transitionFn(ctx, id, apply)
}

// inMemoryTransition wires transitionFn to behave like the real repository:
// load the stored record, run apply, persist the change set on success.
func inMemoryTransition(stored *models.TravelRequest) func(ctx context.Context, id uint, apply func(*models.TravelRequest) (models.StatusChange, error)) (*models.TravelRequest, error) {
	return func(ctx context.Context, id uint, apply func(*models.TravelRequest) (models.StatusChange, error)) (*models.TravelRequest, error) {
		if stored == nil || stored.ID != id {
			return nil, models.NewNotFoundError("Travel request", id)
		}
		snapshot := *stored
		change, err := apply(&snapshot)
		if err != nil {
			return nil, err
		}
		change.ApplyTo(stored)
		return stored, nil
	}
}

// stubNotifier records the requests it was handed.
type stubNotifier struct {
	notified []*models.TravelRequest
}

func (n *stubNotifier) Notify(tr *models.TravelRequest) {
	n.notified = append(n.notified, tr)
}

var testClock = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestService(repo *stubRequestRepo, notify StatusNotifier) *TravelService {
	s := NewTravelService(repo, notify)
	s.now = func() time.Time { return testClock }
	return s
}

func assertValidationError(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok, "expected *models.AppError, got %T", err)
	assert.Equal(t, models.CodeValidation, appErr.Code)
	assert.Equal(t, field, appErr.Field)
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok, "expected *models.AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}

func validCreateInput() CreateRequestInput {
	return CreateRequestInput{
		Destination:   "Lisbon",
		DepartureDate: testClock.AddDate(0, 0, 14),
		ReturnDate:    testClock.AddDate(0, 0, 21),
		Reason:        "Customer onboarding workshop",
	}
}

func TestCreateRequest(t *testing.T) {
	t.Parallel()

	owner := authz.Principal{ID: 7, Name: "Dana"}

	t.Run("persists with requested status and applicant snapshot", func(t *testing.T) {
		t.Parallel()

		var created *models.TravelRequest
		repo := &stubRequestRepo{
			createFn: func(ctx context.Context, tr *models.TravelRequest) error {
				tr.ID = 11
				created = tr
				return nil
			},
			getByIDFn: func(ctx context.Context, id uint) (*models.TravelRequest, error) {
				require.Equal(t, uint(11), id)
				return created, nil
			},
		}
		svc := newTestService(repo, nil)

		tr, err := svc.CreateRequest(context.Background(), owner, validCreateInput())
		require.NoError(t, err)

		assert.Equal(t, models.TravelStatusRequested, tr.Status)
		assert.Equal(t, owner.ID, tr.UserID)
		assert.Equal(t, "Dana", tr.ApplicantName)
		assert.Nil(t, tr.ApprovedAt)
		assert.Nil(t, tr.CancelledAt)
	})

	t.Run("validation failures", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			mutate func(*CreateRequestInput)
			field  string
		}{
			{"missing destination", func(in *CreateRequestInput) { in.Destination = "  " }, "destination"},
			{"destination too long", func(in *CreateRequestInput) { in.Destination = strings.Repeat("x", 256) }, "destination"},
			{"departure in the past", func(in *CreateRequestInput) { in.DepartureDate = testClock.AddDate(0, 0, -1) }, "departure_date"},
			{"departure equals now", func(in *CreateRequestInput) { in.DepartureDate = testClock }, "departure_date"},
			{"return before departure", func(in *CreateRequestInput) { in.ReturnDate = in.DepartureDate.AddDate(0, 0, -1) }, "return_date"},
			{"return equals departure", func(in *CreateRequestInput) { in.ReturnDate = in.DepartureDate }, "return_date"},
			{"reason too long", func(in *CreateRequestInput) { in.Reason = strings.Repeat("r", 1001) }, "reason"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				repo := &stubRequestRepo{
					createFn: func(ctx context.Context, tr *models.TravelRequest) error {
						t.Fatal("create must not be called on invalid input")
						return nil
					},
				}
				svc := newTestService(repo, nil)

				in := validCreateInput()
				tt.mutate(&in)
				_, err := svc.CreateRequest(context.Background(), owner, in)
				assertValidationError(t, err, tt.field)
			})
		}
	})

	t.Run("store error surfaces unchanged", func(t *testing.T) {
		t.Parallel()

		repo := &stubRequestRepo{
			createFn: func(ctx context.Context, tr *models.TravelRequest) error {
				return models.NewUnavailableError(errors.New("connection reset"))
			},
		}
		svc := newTestService(repo, nil)

		_, err := svc.CreateRequest(context.Background(), owner, validCreateInput())
		assertErrorCode(t, err, models.CodeUnavailable)
	})
}

func TestGetRequest(t *testing.T) {
	t.Parallel()

	owner := authz.Principal{ID: 7, Name: "Dana"}
	stranger := authz.Principal{ID: 8, Name: "Sam"}

	stored := &models.TravelRequest{ID: 5, UserID: owner.ID, Status: models.TravelStatusRequested}
	repo := &stubRequestRepo{
		getByIDFn: func(ctx context.Context, id uint) (*models.TravelRequest, error) {
			if id != stored.ID {
				return nil, models.NewNotFoundError("Travel request", id)
			}
			return stored, nil
		},
	}
	svc := newTestService(repo, nil)

	t.Run("owner sees own request", func(t *testing.T) {
		t.Parallel()
		tr, err := svc.GetRequest(context.Background(), owner, 5)
		require.NoError(t, err)
		assert.Equal(t, uint(5), tr.ID)
	})

	t.Run("existing but foreign request yields forbidden, not not-found", func(t *testing.T) {
		t.Parallel()
		_, err := svc.GetRequest(context.Background(), stranger, 5)
		assertErrorCode(t, err, models.CodeForbidden)
	})

	t.Run("missing request yields not-found", func(t *testing.T) {
		t.Parallel()
		_, err := svc.GetRequest(context.Background(), owner, 999)
		assertErrorCode(t, err, models.CodeNotFound)
	})

	t.Run("store failure is not converted to not-found", func(t *testing.T) {
		t.Parallel()
		failing := &stubRequestRepo{
			getByIDFn: func(ctx context.Context, id uint) (*models.TravelRequest, error) {
				return nil, models.NewUnavailableError(errors.New("timeout"))
			},
		}
		_, err := newTestService(failing, nil).GetRequest(context.Background(), owner, 5)
		assertErrorCode(t, err, models.CodeUnavailable)
	})
}

func TestListRequests(t *testing.T) {
	t.Parallel()

	employee := authz.Principal{ID: 7, Name: "Dana"}
	admin := authz.Principal{ID: 3, Name: "Alex", IsAdmin: true}

	t.Run("non-admin scoped to own requests", func(t *testing.T) {
		t.Parallel()

		var gotOwner uint
		repo := &stubRequestRepo{
			listFn: func(ctx context.Context, ownerID uint, filters repository.TravelRequestFilters, page int) (*repository.TravelRequestPage, error) {
				gotOwner = ownerID
				return &repository.TravelRequestPage{Page: page, PerPage: repository.PageSize}, nil
			},
		}
		_, err := newTestService(repo, nil).ListRequests(context.Background(), employee, ListRequestsInput{Page: 1})
		require.NoError(t, err)
		assert.Equal(t, employee.ID, gotOwner)
	})

	t.Run("admin sees all requests", func(t *testing.T) {
		t.Parallel()

		var gotOwner uint = 99
		repo := &stubRequestRepo{
			listFn: func(ctx context.Context, ownerID uint, filters repository.TravelRequestFilters, page int) (*repository.TravelRequestPage, error) {
				gotOwner = ownerID
				return &repository.TravelRequestPage{Page: page, PerPage: repository.PageSize}, nil
			},
		}
		_, err := newTestService(repo, nil).ListRequests(context.Background(), admin, ListRequestsInput{Page: 1})
		require.NoError(t, err)
		assert.Zero(t, gotOwner)
	})

	t.Run("filters pass through", func(t *testing.T) {
		t.Parallel()

		start := testClock.AddDate(0, 0, 1)
		end := testClock.AddDate(0, 0, 30)

		var got repository.TravelRequestFilters
		repo := &stubRequestRepo{
			listFn: func(ctx context.Context, ownerID uint, filters repository.TravelRequestFilters, page int) (*repository.TravelRequestPage, error) {
				got = filters
				return &repository.TravelRequestPage{}, nil
			},
		}
		_, err := newTestService(repo, nil).ListRequests(context.Background(), admin, ListRequestsInput{
			Status:      "approved",
			Destination: "lis",
			StartDate:   &start,
			EndDate:     &end,
			Page:        2,
		})
		require.NoError(t, err)
		require.NotNil(t, got.Status)
		assert.Equal(t, models.TravelStatusApproved, *got.Status)
		assert.Equal(t, "lis", got.Destination)
		assert.Equal(t, &start, got.StartDate)
		assert.Equal(t, &end, got.EndDate)
	})

	t.Run("half-open date range is ignored", func(t *testing.T) {
		t.Parallel()

		start := testClock.AddDate(0, 0, 1)

		var got repository.TravelRequestFilters
		repo := &stubRequestRepo{
			listFn: func(ctx context.Context, ownerID uint, filters repository.TravelRequestFilters, page int) (*repository.TravelRequestPage, error) {
				got = filters
				return &repository.TravelRequestPage{}, nil
			},
		}
		_, err := newTestService(repo, nil).ListRequests(context.Background(), admin, ListRequestsInput{StartDate: &start})
		require.NoError(t, err)
		assert.Nil(t, got.StartDate)
		assert.Nil(t, got.EndDate)
	})

	t.Run("invalid status filter rejected", func(t *testing.T) {
		t.Parallel()

		repo := &stubRequestRepo{
			listFn: func(ctx context.Context, ownerID uint, filters repository.TravelRequestFilters, page int) (*repository.TravelRequestPage, error) {
				t.Fatal("list must not be reached with an invalid status")
				return nil, nil
			},
		}
		_, err := newTestService(repo, nil).ListRequests(context.Background(), admin, ListRequestsInput{Status: "pending"})
		assertValidationError(t, err, "status")
	})
}

func TestUpdateRequest(t *testing.T) {
	t.Parallel()

	owner := authz.Principal{ID: 7, Name: "Dana"}

	pending := func() *models.TravelRequest {
		return &models.TravelRequest{
			ID:            5,
			UserID:        owner.ID,
			Status:        models.TravelStatusRequested,
			Destination:   "Lisbon",
			DepartureDate: testClock.AddDate(0, 0, 14),
			ReturnDate:    testClock.AddDate(0, 0, 21),
		}
	}

	t.Run("owner edits pending request", func(t *testing.T) {
		t.Parallel()

		stored := pending()
		var updated *models.TravelRequest
		repo := &stubRequestRepo{
			getByIDFn: func(ctx context.Context, id uint) (*models.TravelRequest, error) { return stored, nil },
			updateFn: func(ctx context.Context, tr *models.TravelRequest) error {
				updated = tr
				return nil
			},
		}

		newReason := "Team offsite"
		tr, err := newTestService(repo, nil).UpdateRequest(context.Background(), owner, UpdateRequestInput{
			ID:          5,
			Destination: "Porto",
			Reason:      &newReason,
		})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "Porto", tr.Destination)
		assert.Equal(t, "Team offsite", tr.Reason)
		// untouched fields survive the partial edit
		assert.Equal(t, testClock.AddDate(0, 0, 14), tr.DepartureDate)
	})

	t.Run("approved request is no longer editable", func(t *testing.T) {
		t.Parallel()

		stored := pending()
		stored.Status = models.TravelStatusApproved
		repo := &stubRequestRepo{
			getByIDFn: func(ctx context.Context, id uint) (*models.TravelRequest, error) { return stored, nil },
		}
		_, err := newTestService(repo, nil).UpdateRequest(context.Background(), owner, UpdateRequestInput{ID: 5, Destination: "Porto"})
		assertErrorCode(t, err, models.CodeForbidden)
	})

	t.Run("merged result must still satisfy date invariants", func(t *testing.T) {
		t.Parallel()

		stored := pending()
		repo := &stubRequestRepo{
			getByIDFn: func(ctx context.Context, id uint) (*models.TravelRequest, error) { return stored, nil },
		}

		// Pushing departure past the stored return date must fail even though
		// the return date itself is not part of the edit.
		badDeparture := testClock.AddDate(0, 0, 30)
		_, err := newTestService(repo, nil).UpdateRequest(context.Background(), owner, UpdateRequestInput{
			ID:            5,
			DepartureDate: &badDeparture,
		})
		assertValidationError(t, err, "return_date")
	})
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	owner := authz.Principal{ID: 7, Name: "Dana"}
	admin := authz.Principal{ID: 3, Name: "Alex", IsAdmin: true}

	stored := func() *models.TravelRequest {
		return &models.TravelRequest{
			ID:            5,
			UserID:        owner.ID,
			Status:        models.TravelStatusRequested,
			Destination:   "Lisbon",
			DepartureDate: testClock.AddDate(0, 0, 14),
			ReturnDate:    testClock.AddDate(0, 0, 21),
		}
	}

	t.Run("approve sets approved_at and clears cancellation state", func(t *testing.T) {
		t.Parallel()

		reason := "old reason"
		cancelledAt := testClock.Add(-48 * time.Hour)
		record := stored()
		record.Status = models.TravelStatusCancelled
		record.CancelledAt = &cancelledAt
		record.CancellationReason = &reason

		notifier := &stubNotifier{}
		repo := &stubRequestRepo{transitionFn: inMemoryTransition(record)}
		tr, err := newTestService(repo, notifier).UpdateStatus(context.Background(), admin, UpdateStatusInput{
			ID:     5,
			Status: models.TravelStatusApproved,
		})
		require.NoError(t, err)

		assert.Equal(t, models.TravelStatusApproved, tr.Status)
		require.NotNil(t, tr.ApprovedAt)
		assert.Equal(t, testClock, *tr.ApprovedAt)
		assert.Nil(t, tr.CancelledAt)
		assert.Nil(t, tr.CancellationReason)
		require.Len(t, notifier.notified, 1)
		assert.Equal(t, tr, notifier.notified[0])
	})

	t.Run("cancel sets cancelled_at and clears approval state", func(t *testing.T) {
		t.Parallel()

		approvedAt := testClock.Add(-24 * time.Hour)
		record := stored()
		record.Status = models.TravelStatusApproved
		record.ApprovedAt = &approvedAt

		repo := &stubRequestRepo{transitionFn: inMemoryTransition(record)}
		tr, err := newTestService(repo, nil).UpdateStatus(context.Background(), admin, UpdateStatusInput{
			ID:                 5,
			Status:             models.TravelStatusCancelled,
			CancellationReason: "budget freeze",
		})
		require.NoError(t, err)

		assert.Equal(t, models.TravelStatusCancelled, tr.Status)
		assert.Nil(t, tr.ApprovedAt)
		require.NotNil(t, tr.CancelledAt)
		require.NotNil(t, tr.CancellationReason)
		assert.Equal(t, "budget freeze", *tr.CancellationReason)
	})

	t.Run("re-approving an approved request overwrites timestamps", func(t *testing.T) {
		t.Parallel()

		oldApproval := testClock.Add(-72 * time.Hour)
		record := stored()
		record.Status = models.TravelStatusApproved
		record.ApprovedAt = &oldApproval

		repo := &stubRequestRepo{transitionFn: inMemoryTransition(record)}
		tr, err := newTestService(repo, nil).UpdateStatus(context.Background(), admin, UpdateStatusInput{
			ID:     5,
			Status: models.TravelStatusApproved,
		})
		require.NoError(t, err)
		require.NotNil(t, tr.ApprovedAt)
		assert.Equal(t, testClock, *tr.ApprovedAt)
	})

	t.Run("cancel without reason rejected before any store access", func(t *testing.T) {
		t.Parallel()

		repo := &stubRequestRepo{
			transitionFn: func(ctx context.Context, id uint, apply func(*models.TravelRequest) (models.StatusChange, error)) (*models.TravelRequest, error) {
				t.Fatal("transition must not run without a cancellation reason")
				return nil, nil
			},
		}
		_, err := newTestService(repo, nil).UpdateStatus(context.Background(), admin, UpdateStatusInput{
			ID:                 5,
			Status:             models.TravelStatusCancelled,
			CancellationReason: "   ",
		})
		assertValidationError(t, err, "cancellation_reason")
	})

	t.Run("target status must be approved or cancelled", func(t *testing.T) {
		t.Parallel()

		repo := &stubRequestRepo{}
		_, err := newTestService(repo, nil).UpdateStatus(context.Background(), admin, UpdateStatusInput{
			ID:     5,
			Status: models.TravelStatusRequested,
		})
		assertValidationError(t, err, "status")
	})

	t.Run("non-admin denied", func(t *testing.T) {
		t.Parallel()

		record := stored()
		notifier := &stubNotifier{}
		repo := &stubRequestRepo{transitionFn: inMemoryTransition(record)}
		_, err := newTestService(repo, notifier).UpdateStatus(context.Background(), owner, UpdateStatusInput{
			ID:     5,
			Status: models.TravelStatusApproved,
		})
		assertErrorCode(t, err, models.CodeForbidden)
		assert.Equal(t, models.TravelStatusRequested, record.Status, "record must not change on denial")
		assert.Empty(t, notifier.notified)
	})

	t.Run("admin denied on own request", func(t *testing.T) {
		t.Parallel()

		record := stored()
		record.UserID = admin.ID
		repo := &stubRequestRepo{transitionFn: inMemoryTransition(record)}
		_, err := newTestService(repo, nil).UpdateStatus(context.Background(), admin, UpdateStatusInput{
			ID:     5,
			Status: models.TravelStatusApproved,
		})
		require.Error(t, err)
		assert.Equal(t, authz.MsgSelfAdjudication, err.(*models.AppError).Message)
	})
}

func TestSelfCancel(t *testing.T) {
	t.Parallel()

	owner := authz.Principal{ID: 7, Name: "Dana"}
	stranger := authz.Principal{ID: 8, Name: "Sam"}

	approved := func(departure time.Time) *models.TravelRequest {
		approvedAt := testClock.Add(-24 * time.Hour)
		return &models.TravelRequest{
			ID:            5,
			UserID:        owner.ID,
			Status:        models.TravelStatusApproved,
			ApprovedAt:    &approvedAt,
			Destination:   "Lisbon",
			DepartureDate: departure,
			ReturnDate:    departure.AddDate(0, 0, 7),
		}
	}

	t.Run("owner cancels well before departure", func(t *testing.T) {
		t.Parallel()

		record := approved(testClock.AddDate(0, 0, 7))
		notifier := &stubNotifier{}
		repo := &stubRequestRepo{transitionFn: inMemoryTransition(record)}

		tr, err := newTestService(repo, notifier).SelfCancel(context.Background(), owner, 5)
		require.NoError(t, err)

		assert.Equal(t, models.TravelStatusCancelled, tr.Status)
		assert.Nil(t, tr.ApprovedAt)
		require.NotNil(t, tr.CancellationReason)
		assert.Equal(t, models.SelfCancellationReason, *tr.CancellationReason)
		require.Len(t, notifier.notified, 1)
	})

	t.Run("window closed within 24 hours of departure", func(t *testing.T) {
		t.Parallel()

		record := approved(testClock.Add(23 * time.Hour))
		repo := &stubRequestRepo{transitionFn: inMemoryTransition(record)}

		_, err := newTestService(repo, nil).SelfCancel(context.Background(), owner, 5)
		assertErrorCode(t, err, models.CodeDomain)
		assert.Contains(t, err.Error(), "less than 24 hours")
		assert.Equal(t, models.TravelStatusApproved, record.Status, "record must not change")
	})

	t.Run("window closed at exactly 24 hours", func(t *testing.T) {
		t.Parallel()

		record := approved(testClock.Add(24 * time.Hour))
		repo := &stubRequestRepo{transitionFn: inMemoryTransition(record)}

		_, err := newTestService(repo, nil).SelfCancel(context.Background(), owner, 5)
		assertErrorCode(t, err, models.CodeDomain)
	})

	t.Run("only approved requests can be self-cancelled", func(t *testing.T) {
		t.Parallel()

		record := approved(testClock.AddDate(0, 0, 7))
		record.Status = models.TravelStatusRequested
		record.ApprovedAt = nil
		repo := &stubRequestRepo{transitionFn: inMemoryTransition(record)}

		_, err := newTestService(repo, nil).SelfCancel(context.Background(), owner, 5)
		assertErrorCode(t, err, models.CodeDomain)
		assert.Contains(t, err.Error(), "Only approved requests")
	})

	t.Run("non-owner denied even when admin", func(t *testing.T) {
		t.Parallel()

		record := approved(testClock.AddDate(0, 0, 7))
		repo := &stubRequestRepo{transitionFn: inMemoryTransition(record)}

		adminStranger := authz.Principal{ID: stranger.ID, Name: stranger.Name, IsAdmin: true}
		_, err := newTestService(repo, nil).SelfCancel(context.Background(), adminStranger, 5)
		assertErrorCode(t, err, models.CodeForbidden)
	})

	t.Run("missing request yields not-found", func(t *testing.T) {
		t.Parallel()

		repo := &stubRequestRepo{transitionFn: inMemoryTransition(nil)}
		_, err := newTestService(repo, nil).SelfCancel(context.Background(), owner, 5)
		assertErrorCode(t, err, models.CodeNotFound)
	})
}
