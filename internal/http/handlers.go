package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"example.com/miniblog/internal/auth"
	"example.com/miniblog/internal/content"
	"example.com/miniblog/internal/ws"
)

// --- Structs for request binding ---

type CredentialsInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CreatePostInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type CommentInput struct {
	Body string `json:"body"`
}

// WsMessage is the JSON envelope pushed to websocket subscribers.
type WsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// --- Rate Limiter ---

type IPRateLimiter struct {
	visitors map[string]*rate.Limiter
	mu       sync.RWMutex
	rps      rate.Limit
	burst    int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*rate.Limiter),
		rps:      r,
		burst:    b,
	}
}

func (rl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, exists := rl.visitors[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.visitors[ip] = limiter
	}
	return limiter
}

func RateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.GetLimiter(ip).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please wait."})
			return
		}
		c.Next()
	}
}

// --- Handlers ---

type Env struct {
	Auth       *auth.Service
	Content    *content.Service
	Hub        *ws.Hub
	SessionTTL time.Duration
}

func (e *Env) Signup(c *gin.Context) {
	var input CredentialsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	sess, err := e.Auth.Register(input.Username, input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateUsername) {
			c.JSON(http.StatusConflict, gin.H{"error": "Registration failed"})
			return
		}
		log.Printf("Error registering user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}
	e.setSessionCookie(c, sess.Token)
	c.JSON(http.StatusCreated, gin.H{
		"token": sess.Token,
		"user":  gin.H{"id": sess.User.ID, "username": sess.User.Username},
	})
}

func (e *Env) Login(c *gin.Context) {
	var input CredentialsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	sess, err := e.Auth.Login(input.Username, input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Login failed"})
			return
		}
		log.Printf("Error logging in: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	e.setSessionCookie(c, sess.Token)
	c.JSON(http.StatusOK, gin.H{
		"token": sess.Token,
		"user":  gin.H{"id": sess.User.ID, "username": sess.User.Username},
	})
}

func (e *Env) Logout(c *gin.Context) {
	if token := tokenFromRequest(c); token != "" {
		e.Auth.Logout(token)
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// ListMyPosts returns the session user's own posts. Other users' posts are
// reachable through the single-post and profile views instead.
func (e *Env) ListMyPosts(c *gin.Context) {
	user, _ := CurrentUser(c)
	posts, err := e.Content.ListPostsByOwner(user.ID)
	if err != nil {
		log.Printf("Error fetching posts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (e *Env) CreatePost(c *gin.Context) {
	var input CreatePostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	user, _ := CurrentUser(c)
	post, err := e.Content.CreatePost(user, input.Title, input.Body)
	if err != nil {
		log.Printf("Error creating post: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	e.broadcastMessage(WsMessage{Type: "new_post", Data: post})

	c.JSON(http.StatusCreated, post)
}

func (e *Env) GetPost(c *gin.Context) {
	postID, err := parseID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}
	post, err := e.Content.GetPostWithAuthor(postID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		log.Printf("Error fetching post: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch post"})
		return
	}
	// Comments depend on the post id we just confirmed exists.
	comments, err := e.Content.ListCommentsForPost(postID)
	if err != nil {
		log.Printf("Error fetching comments: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "comments": comments})
}

func (e *Env) AddComment(c *gin.Context) {
	postID, err := parseID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}
	var input CommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	user, _ := CurrentUser(c)
	comment, err := e.Content.AddComment(user, postID, input.Body)
	if err != nil {
		if errors.Is(err, content.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		log.Printf("Error creating comment: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	e.broadcastMessage(WsMessage{Type: "new_comment", Data: comment})

	c.JSON(http.StatusCreated, comment)
}

func (e *Env) ListUsers(c *gin.Context) {
	users, err := e.Content.ListUsers()
	if err != nil {
		log.Printf("Error fetching users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (e *Env) GetUser(c *gin.Context) {
	userID, err := parseID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	user, posts, err := e.Content.GetUserWithPosts(userID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		log.Printf("Error fetching user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "posts": posts})
}

func (e *Env) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (e *Env) setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(SessionCookie, token, int(e.SessionTTL.Seconds()), "/", "", false, true)
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	return uint(id), err
}

func (e *Env) broadcastMessage(msg WsMessage) {
	if e.Hub == nil {
		return
	}
	jsonMsg, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshalling WS message: %v", err)
		return
	}
	e.Hub.Broadcast <- jsonMsg
}
