package db

import (
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "password"

var seedCountries = []string{"Netherlands", "Germany", "Spain", "Portugal"}

// reset empties every table, children first, and rewinds the id sequences
// so seeded ids are stable across runs.
func reset(gdb *gorm.DB) error {
	models := slices.Clone(Models())
	slices.Reverse(models)
	for _, m := range models {
		stmt := &gorm.Statement{DB: gdb}
		if err := stmt.Parse(m); err != nil {
			return fmt.Errorf("parse %T: %w", m, err)
		}
		table := stmt.Schema.Table
		if err := gdb.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}

		// Reset auto-increment sequences
		switch gdb.Dialector.Name() {
		case "mysql":
			gdb.Exec("ALTER TABLE " + table + " AUTO_INCREMENT = 1")
		case "sqlite":
			gdb.Exec("DELETE FROM sqlite_sequence WHERE name = ?", table)
		}
	}
	return nil
}

// SeedTestData resets the database and fills it with a demo community.
//
// Behavior:
//  1. Clears every table.
//  2. Creates 20 users (10 male, 10 female) spread over four countries, all
//     with SeedPassword. user1 is an admin.
//  3. Generates likes between opposite genders, ~70% likes; every 3rd pair is
//     made mutual and gets its match row.
//  4. Adds one post per user, two restaurants with menus and an event with
//     two ticket types.
func SeedTestData(gdb *gorm.DB, log *slog.Logger) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now().UTC()

	// --- Fresh start ---
	if err := reset(gdb); err != nil {
		return err
	}
	log.Info("cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte(SeedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// --- Users ---
	users := make([]User, 0, 20)
	for i := 1; i <= 20; i++ {
		gender, looking := "male", "female"
		if i > 10 {
			gender, looking = "female", "male"
		}
		age := 20 + r.Intn(25)
		username := fmt.Sprintf("user%d", i)
		active := now.Add(-time.Duration(r.Intn(500)) * time.Hour)
		users = append(users, User{
			Name:         fmt.Sprintf("User %d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			Username:     &username,
			PasswordHash: string(hash),
			IsAdmin:      i == 1,
			Country:      seedCountries[i%len(seedCountries)],
			PhoneNumber:  fmt.Sprintf("06%08d", i),
			Age:          &age,
			Gender:       gender,
			LookingFor:   looking,
			Interests:    datatypes.JSONSlice[string]{"music", "food", "travel"}[:1+r.Intn(3)],
			LastActive:   &active,
		})
	}
	if err := gdb.Create(&users).Error; err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	log.Info("seeded users", "count", len(users))

	// --- Likes and matches ---
	likes, matches := 0, 0
	counter := 0
	for _, actor := range users {
		for j := 0; j < 12; j++ { // each user decides on ~12 others
			target := users[r.Intn(len(users))]
			if target.ID == actor.ID || target.Gender == actor.Gender {
				continue
			}

			action := LikeActionDislike
			if r.Intn(100) < 70 { // like probability 70%
				action = LikeActionLike
			}
			mutual := counter%3 == 0
			if mutual {
				action = LikeActionLike
			}
			if err := upsertLike(gdb, actor.ID, target.ID, action); err != nil {
				return err
			}
			likes++

			if mutual {
				if err := upsertLike(gdb, target.ID, actor.ID, LikeActionLike); err != nil {
					return err
				}
				if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&[]Match{
					{UserID: actor.ID, MatchedUserID: target.ID, IsActive: true, MatchedAt: now},
					{UserID: target.ID, MatchedUserID: actor.ID, IsActive: true, MatchedAt: now},
				}).Error; err != nil {
					return fmt.Errorf("failed to seed match: %w", err)
				}
				likes++
				matches++
			}
			counter++
		}
	}
	log.Info("seeded likes", "likes", likes, "matches", matches)

	// --- Posts ---
	posts := make([]Post, 0, len(users))
	for _, u := range users {
		posts = append(posts, Post{
			UserID:   u.ID,
			Content:  fmt.Sprintf("Hello from %s", u.Name),
			Tags:     datatypes.JSONSlice[string]{"hello"},
			IsPublic: u.ID%4 != 0,
		})
	}
	if err := gdb.Create(&posts).Error; err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	// --- Restaurants ---
	restaurants := []Restaurant{
		{OwnerID: users[1].ID, Name: "Canal Kitchen", Address: "Prinsengracht 1, Amsterdam", CuisineType: "dutch", PriceRange: "$$", IsActive: true, SubscriptionStatus: SubscriptionBasic},
		{OwnerID: users[2].ID, Name: "Tapas Norte", Address: "Calle Mayor 5, Madrid", CuisineType: "spanish", PriceRange: "$", IsActive: true, SubscriptionStatus: SubscriptionFree},
	}
	if err := gdb.Create(&restaurants).Error; err != nil {
		return fmt.Errorf("failed to seed restaurants: %w", err)
	}
	for _, rest := range restaurants {
		items := []MenuItem{
			{RestaurantID: rest.ID, Name: "House special", Description: "Chef's choice", Price: decimal.RequireFromString("14.50"), Category: "mains", IsAvailable: true, IsFeatured: true},
			{RestaurantID: rest.ID, Name: "Soup of the day", Description: "Seasonal", Price: decimal.RequireFromString("6.00"), Category: "starters", IsAvailable: true},
		}
		if err := gdb.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to seed menu: %w", err)
		}
	}

	// --- Events ---
	start := now.AddDate(0, 0, 14)
	event := Event{
		UserID:         users[3].ID,
		Title:          "Summer Rooftop Party",
		Description:    "Music and drinks on the roof",
		Category:       "party",
		Location:       "Amsterdam",
		Venue:          "Skyline Roof",
		StartDate:      datatypes.Date(start),
		EndDate:        datatypes.Date(start),
		IsFeatured:     true,
		IsPublished:    true,
		OrganizerName:  users[3].Name,
		OrganizerEmail: users[3].Email,
		Tickets: []EventTicket{
			{Name: "General", Price: decimal.RequireFromString("15.00"), QuantityAvailable: 200, IsActive: true},
			{Name: "VIP", Price: decimal.RequireFromString("45.00"), QuantityAvailable: 20, IsActive: true},
		},
	}
	if err := gdb.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to seed event: %w", err)
	}

	log.Info("seeding finished", "posts", len(posts), "restaurants", len(restaurants), "events", 1)
	return nil
}

func upsertLike(gdb *gorm.DB, from, to uint64, action string) error {
	like := UserLike{UserID: from, LikedUserID: to, Action: action}
	if err := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "liked_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"action", "updated_at"}),
	}).Create(&like).Error; err != nil {
		return fmt.Errorf("failed to seed like: %w", err)
	}
	return nil
}

// SeedMinimalTestData is a three-user fixture: 1 and 2 are matched, 3 likes 1,
// and 1 disliked 3.
func SeedMinimalTestData(gdb *gorm.DB) error {
	if err := reset(gdb); err != nil {
		return err
	}

	u1, u2, u3 := "user1", "user2", "user3"
	users := []User{
		{ID: 1, Name: "User 1", Username: &u1, Email: "u1@test.com", PasswordHash: "x", Gender: "male", Country: "Netherlands"},
		{ID: 2, Name: "User 2", Username: &u2, Email: "u2@test.com", PasswordHash: "x", Gender: "female", Country: "Netherlands"},
		{ID: 3, Name: "User 3", Username: &u3, Email: "u3@test.com", PasswordHash: "x", Gender: "female", Country: "Germany"},
	}
	if err := gdb.Create(&users).Error; err != nil {
		return err
	}

	likes := []UserLike{
		{UserID: 1, LikedUserID: 2, Action: LikeActionLike},
		{UserID: 2, LikedUserID: 1, Action: LikeActionLike},
		{UserID: 3, LikedUserID: 1, Action: LikeActionLike},
		{UserID: 1, LikedUserID: 3, Action: LikeActionDislike},
	}
	if err := gdb.Create(&likes).Error; err != nil {
		return err
	}

	now := time.Now().UTC()
	return gdb.Create(&[]Match{
		{UserID: 1, MatchedUserID: 2, IsActive: true, MatchedAt: now},
		{UserID: 2, MatchedUserID: 1, IsActive: true, MatchedAt: now},
	}).Error
}
