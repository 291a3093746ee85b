package seed

import (
	"fmt"
	"log"

	"traveldesk/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumRequests int
	ShouldClean bool
	SkipBcrypt  bool
	Verbose     bool
}

// Seed populates the database with demo users and travel requests. Roughly
// one in five users is an admin; request statuses are spread across the
// lifecycle so list filters have something to match.
func Seed(db *gorm.DB, opts Options) error {
	if opts.NumUsers <= 0 {
		opts.NumUsers = 10
	}
	if opts.NumRequests <= 0 {
		opts.NumRequests = opts.NumUsers * 3
	}

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			return fmt.Errorf("clearing data: %w", err)
		}
	}

	f := NewFactory(db, opts)

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		var (
			user *models.User
			err  error
		)
		if i%5 == 0 {
			user, err = f.CreateAdmin()
		} else {
			user, err = f.CreateUser()
		}
		if err != nil {
			return err
		}
		f.logCreated("user", user.ID)
		users = append(users, user)
	}

	for i := 0; i < opts.NumRequests; i++ {
		owner := users[f.rng.Intn(len(users))]

		var (
			tr  *models.TravelRequest
			err error
		)
		switch f.rng.Intn(4) {
		case 0:
			tr, err = f.CreateApprovedRequest(owner)
		case 1:
			tr, err = f.CreateCancelledRequest(owner, "Trip no longer required")
		default:
			tr, err = f.CreateTravelRequest(owner)
		}
		if err != nil {
			return err
		}
		f.logCreated("travel_request", tr.ID)
	}

	log.Printf("seeded %d users and %d travel requests", opts.NumUsers, opts.NumRequests)
	return nil
}

func clearData(db *gorm.DB) error {
	// Children first so foreign keys stay satisfied.
	for _, model := range []interface{}{
		&models.Notification{},
		&models.TravelRequest{},
		&models.User{},
	} {
		if err := db.Unscoped().Where("1 = 1").Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
