package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/shinyyama/unimarket-backend/internal/config"
	"github.com/shinyyama/unimarket-backend/internal/db"
	"github.com/shinyyama/unimarket-backend/internal/logging"
	appmw "github.com/shinyyama/unimarket-backend/internal/middleware"
	"github.com/shinyyama/unimarket-backend/internal/model"
	"github.com/shinyyama/unimarket-backend/internal/repository"
)

const devTokenTTL = 30 * 24 * time.Hour

type seedItem struct {
	Title       string
	Description string
	Price       uint
	SellerIdx   int
}

var seedUsers = []model.User{
	{Name: "Aiko Tanaka", Email: "aiko@campus.example", Role: model.RoleUser, IsVerified: true},
	{Name: "Ben Carter", Email: "ben@campus.example", Role: model.RoleUser, IsVerified: true},
	{Name: "Chen Wei", Email: "chen@campus.example", Role: model.RoleUser},
	{Name: "Admin", Email: "admin@campus.example", Role: model.RoleAdmin, IsVerified: true},
}

func main() {
	log := logging.New("info", "text")
	if err := run(log); err != nil {
		log.WithError(err).Fatal("seed failed")
	}
}

func run(log *logrus.Logger) (err error) {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	canSeed, err := shouldSeed(ctx, gdb)
	if err != nil {
		return err
	}
	if !canSeed {
		log.Info("users already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}

	users, items, err := seed(ctx, gdb)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"users": len(users), "items": items}).Info("seeded")

	if cfg.AuthProvider != config.AuthProviderJWT {
		return nil
	}
	for _, u := range users {
		tok, err := appmw.SignToken(cfg.JWTSecret, u.ID, u.Email, u.Role, devTokenTTL)
		if err != nil {
			return fmt.Errorf("sign token for %s: %w", u.Email, err)
		}
		fmt.Printf("%d\t%s\t%s\n", u.ID, u.Email, tok)
	}
	return nil
}

// seed replaces all marketplace data with the demo users and items.
func seed(ctx context.Context, gdb *gorm.DB) ([]model.User, int, error) {
	users := make([]model.User, len(seedUsers))
	copy(users, seedUsers)
	items := buildSeedItems()

	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wipe := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, m := range []interface{}{&model.Message{}, &model.Notification{}, &model.Conversation{}, &model.Item{}, &model.User{}} {
			if err := wipe.Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}
		userRepo := repository.NewUserRepository(tx)
		for i := range users {
			if err := userRepo.Create(ctx, &users[i]); err != nil {
				return fmt.Errorf("insert user %s: %w", users[i].Email, err)
			}
		}
		itemRepo := repository.NewItemRepository(tx)
		for _, it := range items {
			row := &model.Item{
				Title:       strings.TrimSpace(it.Title),
				Description: strings.TrimSpace(it.Description),
				Price:       it.Price,
				SellerID:    users[it.SellerIdx].ID,
				Status:      "available",
			}
			if err := itemRepo.Create(ctx, row); err != nil {
				return fmt.Errorf("insert item %q: %w", row.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return users, len(items), nil
}

func buildSeedItems() []seedItem {
	return []seedItem{
		{Title: "Calculus textbook, 8th edition", Description: "Some highlighting in chapters 1-3.", Price: 2500, SellerIdx: 0},
		{Title: "Desk lamp", Description: "LED, three brightness levels.", Price: 1200, SellerIdx: 0},
		{Title: "Mini fridge", Description: "Fits under a dorm desk. Pick up only.", Price: 6000, SellerIdx: 1},
		{Title: "Graphing calculator", Description: "Works fine, comes with a cover.", Price: 4800, SellerIdx: 1},
		{Title: "Road bike", Description: "54cm frame, new tires last spring.", Price: 18000, SellerIdx: 2},
		{Title: "Lab coat (M)", Description: "Worn for one semester.", Price: 900, SellerIdx: 2},
	}
}

func shouldSeed(ctx context.Context, gdb *gorm.DB) (bool, error) {
	var cnt int64
	if err := gdb.WithContext(ctx).Model(&model.User{}).Count(&cnt).Error; err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if cnt == 0 {
		return true, nil
	}
	return strings.EqualFold(os.Getenv("FORCE_SEED"), "true"), nil
}
