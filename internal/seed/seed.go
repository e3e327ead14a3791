// Package seed provides database seeding utilities for development.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"quill/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers    int
	NumPosts    int
	NumGroups   int
	ShouldClean bool
}

// DefaultOptions returns a dataset large enough to exercise pagination on
// every feed.
func DefaultOptions() Options {
	return Options{
		NumUsers:  12,
		NumGroups: 5,
		NumPosts:  80,
	}
}

var groupTopics = []string{
	"Technology", "Music", "Travel", "Cooking", "Books",
	"Photography", "Gaming", "Science", "Film", "Gardening",
}

// Run populates the database with fake users, groups, posts, comments, and
// follow edges. All seeded accounts share the password "password123".
func Run(db *gorm.DB, opts Options) error {
	gofakeit.Seed(time.Now().UnixNano())

	if opts.ShouldClean {
		if err := clean(db); err != nil {
			return err
		}
	}

	users, err := seedUsers(db, opts.NumUsers)
	if err != nil {
		return err
	}
	groups, err := seedGroups(db, opts.NumGroups)
	if err != nil {
		return err
	}
	posts, err := seedPosts(db, users, groups, opts.NumPosts)
	if err != nil {
		return err
	}
	if err := seedComments(db, users, posts); err != nil {
		return err
	}
	if err := seedFollows(db, users); err != nil {
		return err
	}

	log.Printf("seeded %d users, %d groups, %d posts", len(users), len(groups), len(posts))
	return nil
}

func clean(db *gorm.DB) error {
	// Delete in FK order so the cascades never surprise anyone mid-seed.
	for _, model := range []interface{}{
		&models.Follow{}, &models.Comment{}, &models.Post{}, &models.Group{}, &models.User{},
	} {
		if err := db.Where("1 = 1").Delete(model).Error; err != nil {
			return fmt.Errorf("clean failed: %w", err)
		}
	}
	return nil
}

func seedUsers(db *gorm.DB, n int) ([]models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		username := strings.ToLower(fmt.Sprintf("%s%d", gofakeit.Username(), i))
		user := models.User{
			Username: username,
			Email:    fmt.Sprintf("%s@example.com", username),
			Password: string(hashed),
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("seed user: %w", err)
		}
		users = append(users, user)
	}
	return users, nil
}

func seedGroups(db *gorm.DB, n int) ([]models.Group, error) {
	if n > len(groupTopics) {
		n = len(groupTopics)
	}
	groups := make([]models.Group, 0, n)
	for _, topic := range groupTopics[:n] {
		group := models.Group{
			Title:       topic,
			Slug:        strings.ToLower(topic),
			Description: gofakeit.Sentence(12),
		}
		if err := db.Create(&group).Error; err != nil {
			return nil, fmt.Errorf("seed group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func seedPosts(db *gorm.DB, users []models.User, groups []models.Group, n int) ([]models.Post, error) {
	posts := make([]models.Post, 0, n)
	now := time.Now()
	for i := 0; i < n; i++ {
		author := users[rand.Intn(len(users))]
		post := models.Post{
			Text:     gofakeit.Paragraph(1, 3, 8, "\n"),
			AuthorID: author.ID,
			// Spread creation times so feeds have a meaningful order.
			CreatedAt: now.Add(-time.Duration(n-i) * time.Hour),
		}
		// Roughly two thirds of posts land in a group.
		if len(groups) > 0 && rand.Intn(3) > 0 {
			gid := groups[rand.Intn(len(groups))].ID
			post.GroupID = &gid
		}
		if err := db.Create(&post).Error; err != nil {
			return nil, fmt.Errorf("seed post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func seedComments(db *gorm.DB, users []models.User, posts []models.Post) error {
	for _, post := range posts {
		for i := 0; i < rand.Intn(4); i++ {
			comment := models.Comment{
				PostID:   post.ID,
				AuthorID: users[rand.Intn(len(users))].ID,
				Text:     gofakeit.Sentence(10),
			}
			if err := db.Create(&comment).Error; err != nil {
				return fmt.Errorf("seed comment: %w", err)
			}
		}
	}
	return nil
}

func seedFollows(db *gorm.DB, users []models.User) error {
	for _, follower := range users {
		for i := 0; i < rand.Intn(4); i++ {
			author := users[rand.Intn(len(users))]
			if author.ID == follower.ID {
				continue
			}
			follow := models.Follow{FollowerID: follower.ID, AuthorID: author.ID}
			// The unique edge index absorbs random duplicates.
			if err := db.Where(&follow).FirstOrCreate(&follow).Error; err != nil {
				return fmt.Errorf("seed follow: %w", err)
			}
		}
	}
	return nil
}
