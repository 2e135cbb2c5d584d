package content

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/miniblog/internal/models"
)

var (
	// ErrNotFound is a normal lookup miss, not a failure.
	ErrNotFound = errors.New("not found")
	// ErrPostNotFound reports a comment whose parent post does not exist.
	ErrPostNotFound = errors.New("post does not exist")
	// ErrUnauthenticated reports a write attempted without a resolved session.
	ErrUnauthenticated = errors.New("authentication required")
)

// Service answers post, comment and user queries. Reads are open to anyone;
// writes require the resolved user passed in explicitly.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// PostWithAuthor is a post joined with the owning user's username.
type PostWithAuthor struct {
	ID         uint      `json:"id"`
	UserID     uint      `json:"userId"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	InsertedAt time.Time `gorm:"column:inserted_at" json:"insertedAt"`
	Username   string    `json:"username"`
}

// CommentWithAuthor is a comment joined with its author's username.
type CommentWithAuthor struct {
	ID         uint      `json:"id"`
	PostID     uint      `json:"postId"`
	UserID     uint      `json:"userId"`
	Body       string    `json:"body"`
	InsertedAt time.Time `gorm:"column:inserted_at" json:"insertedAt"`
	Username   string    `json:"username"`
}

// UserSummary is a user row without the password column.
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// CreatePost inserts a post owned by user. InsertedAt is server-assigned.
func (s *Service) CreatePost(user *models.User, title, body string) (models.Post, error) {
	if user == nil {
		return models.Post{}, ErrUnauthenticated
	}
	post := models.Post{UserID: user.ID, Title: title, Body: body}
	if err := s.db.Omit(clause.Associations).Create(&post).Error; err != nil {
		return models.Post{}, fmt.Errorf("creating post: %w", err)
	}
	return post, nil
}

// ListPostsByOwner returns all posts owned by userID in insertion order.
func (s *Service) ListPostsByOwner(userID uint) ([]models.Post, error) {
	posts := []models.Post{} // serializes as [] rather than null when empty
	if err := s.db.Where("user_id = ?", userID).Order("id asc").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

// GetPostWithAuthor looks up a single post joined with its author's username.
// A missing id returns ErrNotFound; callers decide what that looks like.
func (s *Service) GetPostWithAuthor(postID uint) (PostWithAuthor, error) {
	var post PostWithAuthor
	err := s.db.Model(&models.Post{}).
		Select("posts.id, posts.user_id, posts.title, posts.body, posts.inserted_at, users.username").
		Joins("JOIN users ON users.id = posts.user_id").
		Where("posts.id = ?", postID).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PostWithAuthor{}, ErrNotFound
	}
	if err != nil {
		return PostWithAuthor{}, fmt.Errorf("fetching post: %w", err)
	}
	return post, nil
}

// ListCommentsForPost returns a post's comments with author usernames joined
// in, in insertion order.
func (s *Service) ListCommentsForPost(postID uint) ([]CommentWithAuthor, error) {
	comments := []CommentWithAuthor{}
	err := s.db.Model(&models.Comment{}).
		Select("comments.id, comments.post_id, comments.user_id, comments.body, comments.inserted_at, users.username").
		Joins("JOIN users ON users.id = comments.user_id").
		Where("comments.post_id = ?", postID).
		Order("comments.id asc").
		Scan(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return comments, nil
}

// AddComment inserts a comment by user on postID. The parent post is not
// checked up front; the foreign key constraint rejects a missing post and
// that surfaces as ErrPostNotFound.
func (s *Service) AddComment(user *models.User, postID uint, body string) (models.Comment, error) {
	if user == nil {
		return models.Comment{}, ErrUnauthenticated
	}
	comment := models.Comment{PostID: postID, UserID: user.ID, Body: body}
	if err := s.db.Omit(clause.Associations).Create(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return models.Comment{}, ErrPostNotFound
		}
		return models.Comment{}, fmt.Errorf("creating comment: %w", err)
	}
	return comment, nil
}

// ListUsers returns every registered user, passwords excluded.
func (s *Service) ListUsers() ([]UserSummary, error) {
	users := []UserSummary{}
	err := s.db.Model(&models.User{}).
		Select("id, username").
		Order("id asc").
		Scan(&users).Error
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// GetUserWithPosts returns a user profile with all of the user's posts.
func (s *Service) GetUserWithPosts(userID uint) (UserSummary, []models.Post, error) {
	var user UserSummary
	err := s.db.Model(&models.User{}).
		Select("id, username").
		Where("id = ?", userID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserSummary{}, nil, ErrNotFound
	}
	if err != nil {
		return UserSummary{}, nil, fmt.Errorf("fetching user: %w", err)
	}
	posts, err := s.ListPostsByOwner(userID)
	if err != nil {
		return UserSummary{}, nil, err
	}
	return user, posts, nil
}
