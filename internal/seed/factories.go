// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"traveldesk/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	// seed gofakeit for richer content
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{
		db:   db,
		opts: opts,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Name:  gofakeit.Name(),
		Email: gofakeit.Email(),
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		user.Password = "Password123456"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("Password123456"), bcrypt.DefaultCost)
		user.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// CreateAdmin persists a user with administrative privileges.
func (f *Factory) CreateAdmin(overrides ...func(*models.User)) (*models.User, error) {
	withAdmin := func(u *models.User) { u.IsAdmin = true }
	return f.CreateUser(append([]func(*models.User){withAdmin}, overrides...)...)
}

// CreateTravelRequest constructs and persists a travel request for the given
// owner. Generated requests depart between one week and three months out and
// last up to two weeks.
func (f *Factory) CreateTravelRequest(owner *models.User, overrides ...func(*models.TravelRequest)) (*models.TravelRequest, error) {
	departure := time.Now().AddDate(0, 0, 7+f.rng.Intn(83)).Truncate(24 * time.Hour)
	ret := departure.AddDate(0, 0, 1+f.rng.Intn(13))

	tr := &models.TravelRequest{
		UserID:        owner.ID,
		ApplicantName: owner.Name,
		Destination:   gofakeit.City(),
		DepartureDate: departure,
		ReturnDate:    ret,
		Status:        models.TravelStatusRequested,
		Reason:        gofakeit.Sentence(8),
	}

	for _, override := range overrides {
		override(tr)
	}

	if err := f.db.Create(tr).Error; err != nil {
		return nil, fmt.Errorf("creating travel request: %w", err)
	}
	return tr, nil
}

// CreateApprovedRequest persists a request already moved to approved.
func (f *Factory) CreateApprovedRequest(owner *models.User, overrides ...func(*models.TravelRequest)) (*models.TravelRequest, error) {
	approvedAt := time.Now().Add(-time.Duration(f.rng.Intn(72)) * time.Hour)
	withApproval := func(tr *models.TravelRequest) {
		tr.Status = models.TravelStatusApproved
		tr.ApprovedAt = &approvedAt
	}
	return f.CreateTravelRequest(owner, append([]func(*models.TravelRequest){withApproval}, overrides...)...)
}

// CreateCancelledRequest persists a request already moved to cancelled.
func (f *Factory) CreateCancelledRequest(owner *models.User, reason string, overrides ...func(*models.TravelRequest)) (*models.TravelRequest, error) {
	cancelledAt := time.Now().Add(-time.Duration(f.rng.Intn(72)) * time.Hour)
	withCancellation := func(tr *models.TravelRequest) {
		tr.Status = models.TravelStatusCancelled
		tr.CancelledAt = &cancelledAt
		tr.CancellationReason = &reason
	}
	return f.CreateTravelRequest(owner, append([]func(*models.TravelRequest){withCancellation}, overrides...)...)
}

// logCreated reports a seeded entity when verbose seeding is enabled.
func (f *Factory) logCreated(kind string, id uint) {
	if f.opts.Verbose {
		log.Printf("seeded %s id=%d", kind, id)
	}
}
