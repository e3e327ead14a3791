package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		JWTSecret:        "test-secret",
		Port:             "0",
		MediaDir:         t.TempDir(),
		PageCacheSeconds: 20,
		Env:              "test",
	}
}

// newTestApp builds a full application over an isolated in-memory database.
// The Redis client is cleared so cache paths fall through unless a test
// installs miniredis itself.
func newTestApp(t *testing.T) (*fiber.App, *Server, *gorm.DB) {
	t.Helper()

	db, err := database.ConnectSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)

	cache.SetClient(nil)

	s, err := NewServerWithDeps(testConfig(t), db, nil)
	require.NoError(t, err)

	app := fiber.New()
	s.SetupRoutes(app)
	return app, s, db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hashed),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestPost(t *testing.T, db *gorm.DB, author *models.User, text string, createdAt time.Time) *models.Post {
	t.Helper()
	post := &models.Post{Text: text, AuthorID: author.ID, CreatedAt: createdAt}
	require.NoError(t, db.Create(post).Error)
	return post
}

// authRequest builds a request carrying the user's session cookie.
func authRequest(t *testing.T, s *Server, user *models.User, method, target string, body io.Reader) *http.Request {
	t.Helper()
	token, err := s.generateToken(user)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, body)
	req.AddCookie(&http.Cookie{Name: "quill_token", Value: token})
	return req
}

func formRequest(t *testing.T, s *Server, user *models.User, method, target string, form url.Values) *http.Request {
	t.Helper()
	req := authRequest(t, s, user, method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestIndexPaginatesThirteenPosts(t *testing.T) {
	app, _, db := newTestApp(t)
	author := createTestUser(t, db, "alice")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 13; i++ {
		createTestPost(t, db, author, fmt.Sprintf("post %d", i), base.Add(time.Duration(i)*time.Minute))
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var feed struct {
		Posts []models.Post `json:"posts"`
		Page  struct {
			Number     int   `json:"number"`
			TotalPages int   `json:"total_pages"`
			TotalItems int64 `json:"total_items"`
		} `json:"page"`
	}
	decodeBody(t, resp, &feed)
	assert.Len(t, feed.Posts, 10)
	assert.Equal(t, 2, feed.Page.TotalPages)
	assert.Equal(t, int64(13), feed.Page.TotalItems)
	assert.Equal(t, "post 12", feed.Posts[0].Text)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/?page=2", nil))
	require.NoError(t, err)
	decodeBody(t, resp, &feed)
	assert.Len(t, feed.Posts, 3)
	assert.Equal(t, 2, feed.Page.Number)
}

func TestIndexClampsOutOfRangePage(t *testing.T) {
	app, _, db := newTestApp(t)
	author := createTestUser(t, db, "alice")
	createTestPost(t, db, author, "only one", time.Now().UTC())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/?page=99", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var feed struct {
		Posts []models.Post `json:"posts"`
		Page  struct {
			Number int `json:"number"`
		} `json:"page"`
	}
	decodeBody(t, resp, &feed)
	assert.Equal(t, 1, feed.Page.Number)
	assert.Len(t, feed.Posts, 1)
}

func TestUnauthenticatedCreateRedirectsToLogin(t *testing.T) {
	app, _, _ := newTestApp(t)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		resp, err := app.Test(httptest.NewRequest(method, "/create", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode)

		location := resp.Header.Get("Location")
		assert.True(t, strings.HasPrefix(location, "/auth/login?next="), "got %q", location)
		next, err := url.QueryUnescape(strings.TrimPrefix(location, "/auth/login?next="))
		require.NoError(t, err)
		assert.Equal(t, "/create", next)
	}
}

func TestCreatePostRedirectsToOwnProfile(t *testing.T) {
	app, s, db := newTestApp(t)
	author := createTestUser(t, db, "alice")

	form := url.Values{"text": {"my first post"}}
	resp, err := app.Test(formRequest(t, s, author, http.MethodPost, "/create", form))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/profile/alice/", resp.Header.Get("Location"))

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Where("author_id = ?", author.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreatePostBlankTextReturnsFieldErrors(t *testing.T) {
	app, s, db := newTestApp(t)
	author := createTestUser(t, db, "alice")

	form := url.Values{"text": {"   "}}
	resp, err := app.Test(formRequest(t, s, author, http.MethodPost, "/create", form))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Errors []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Errors)
	assert.Equal(t, "text", body.Errors[0].Field)

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreatePostUnknownGroupIsFieldError(t *testing.T) {
	app, s, db := newTestApp(t)
	author := createTestUser(t, db, "alice")

	form := url.Values{"text": {"hello"}, "group_id": {"777"}}
	resp, err := app.Test(formRequest(t, s, author, http.MethodPost, "/create", form))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Errors []struct {
			Field string `json:"field"`
		} `json:"errors"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Errors)
	assert.Equal(t, "group_id", body.Errors[0].Field)
}

func TestNonAuthorEditRedirectsWithoutChange(t *testing.T) {
	app, s, db := newTestApp(t)
	author := createTestUser(t, db, "alice")
	intruder := createTestUser(t, db, "bob")
	post := createTestPost(t, db, author, "original", time.Now().UTC())

	target := fmt.Sprintf("/posts/%d/edit", post.ID)

	// GET: the edit form is not served to non-authors.
	resp, err := app.Test(authRequest(t, s, intruder, http.MethodGet, target, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), resp.Header.Get("Location"))

	// POST: the submission is swallowed with the same redirect.
	form := url.Values{"text": {"hijacked"}}
	resp, err = app.Test(formRequest(t, s, intruder, http.MethodPost, target, form))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), resp.Header.Get("Location"))

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, "original", stored.Text)
	assert.Equal(t, author.ID, stored.AuthorID)
}

func TestNonAuthorEditMalformedInputStillRedirects(t *testing.T) {
	app, s, db := newTestApp(t)
	author := createTestUser(t, db, "alice")
	intruder := createTestUser(t, db, "bob")
	post := createTestPost(t, db, author, "original", time.Now().UTC())

	// Authorship is settled before the submission is inspected: a non-author
	// with a malformed group_id still gets the quiet redirect, never a form
	// re-render.
	form := url.Values{"text": {"hijacked"}, "group_id": {"not-a-number"}}
	resp, err := app.Test(formRequest(t, s, intruder, http.MethodPost, fmt.Sprintf("/posts/%d/edit", post.ID), form))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), resp.Header.Get("Location"))

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, "original", stored.Text)
}

func TestAuthorEditUpdatesAndRedirects(t *testing.T) {
	app, s, db := newTestApp(t)
	author := createTestUser(t, db, "alice")
	post := createTestPost(t, db, author, "before", time.Now().UTC())

	form := url.Values{"text": {"after"}}
	resp, err := app.Test(formRequest(t, s, author, http.MethodPost, fmt.Sprintf("/posts/%d/edit", post.ID), form))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), resp.Header.Get("Location"))

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, "after", stored.Text)
	assert.Equal(t, author.ID, stored.AuthorID)
}

func TestAddCommentRedirectsToDetail(t *testing.T) {
	app, s, db := newTestApp(t)
	author := createTestUser(t, db, "alice")
	commenter := createTestUser(t, db, "bob")
	post := createTestPost(t, db, author, "discuss", time.Now().UTC())

	form := url.Values{"text": {"great point"}}
	resp, err := app.Test(formRequest(t, s, commenter, http.MethodPost, fmt.Sprintf("/posts/%d/comment", post.ID), form))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), resp.Header.Get("Location"))

	var count int64
	require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAddCommentBlankTextDroppedWithRedirect(t *testing.T) {
	app, s, db := newTestApp(t)
	author := createTestUser(t, db, "alice")
	commenter := createTestUser(t, db, "bob")
	post := createTestPost(t, db, author, "discuss", time.Now().UTC())

	// An invalid comment is discarded, not re-rendered: the response is the
	// same redirect to the detail page a valid submission gets.
	form := url.Values{"text": {"   "}}
	resp, err := app.Test(formRequest(t, s, commenter, http.MethodPost, fmt.Sprintf("/posts/%d/comment", post.ID), form))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), resp.Header.Get("Location"))

	var count int64
	require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAddCommentToMissingPostIs404(t *testing.T) {
	app, s, db := newTestApp(t)
	commenter := createTestUser(t, db, "bob")

	form := url.Values{"text": {"into the void"}}
	resp, err := app.Test(formRequest(t, s, commenter, http.MethodPost, "/posts/9999/comment", form))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostDetailIncludesComments(t *testing.T) {
	app, _, db := newTestApp(t)
	author := createTestUser(t, db, "alice")
	post := createTestPost(t, db, author, "discuss", time.Now().UTC())
	require.NoError(t, db.Create(&models.Comment{
		PostID: post.ID, AuthorID: author.ID, Text: "self reply",
	}).Error)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/posts/%d", post.ID), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Post     models.Post      `json:"post"`
		Comments []models.Comment `json:"comments"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, post.ID, body.Post.ID)
	assert.Equal(t, 1, body.Post.CommentsCount)
	require.Len(t, body.Comments, 1)
	assert.Equal(t, "self reply", body.Comments[0].Text)
}

func TestFollowFlow(t *testing.T) {
	app, s, db := newTestApp(t)
	reader := createTestUser(t, db, "reader")
	author := createTestUser(t, db, "author")
	createTestPost(t, db, author, "followed content", time.Now().UTC())

	// Follow redirects to the author's profile.
	resp, err := app.Test(authRequest(t, s, reader, http.MethodPost, "/profile/author/follow", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/profile/author/", resp.Header.Get("Location"))

	// Repeat follow is absorbed, still one edge.
	resp, err = app.Test(authRequest(t, s, reader, http.MethodGet, "/profile/author/follow", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	var edges int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&edges).Error)
	assert.Equal(t, int64(1), edges)

	// The personalized feed now carries the author's post.
	resp, err = app.Test(authRequest(t, s, reader, http.MethodGet, "/follow", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var feed struct {
		Posts []models.Post `json:"posts"`
	}
	decodeBody(t, resp, &feed)
	require.Len(t, feed.Posts, 1)
	assert.Equal(t, "followed content", feed.Posts[0].Text)

	// Unfollow empties it again.
	resp, err = app.Test(authRequest(t, s, reader, http.MethodPost, "/profile/author/unfollow", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	require.NoError(t, db.Model(&models.Follow{}).Count(&edges).Error)
	assert.Zero(t, edges)
}

func TestSelfFollowIsSilentNoOp(t *testing.T) {
	app, s, db := newTestApp(t)
	user := createTestUser(t, db, "narcissus")

	resp, err := app.Test(authRequest(t, s, user, http.MethodPost, "/profile/narcissus/follow", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/profile/narcissus/", resp.Header.Get("Location"))

	var edges int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&edges).Error)
	assert.Zero(t, edges)
}

func TestProfileFollowingFlag(t *testing.T) {
	app, s, db := newTestApp(t)
	reader := createTestUser(t, db, "reader")
	author := createTestUser(t, db, "author")
	require.NoError(t, db.Create(&models.Follow{FollowerID: reader.ID, AuthorID: author.ID}).Error)

	resp, err := app.Test(authRequest(t, s, reader, http.MethodGet, "/profile/author", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Following bool `json:"following"`
	}
	decodeBody(t, resp, &body)
	assert.True(t, body.Following)

	// Anonymous viewers never see a following flag set.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/profile/author", nil))
	require.NoError(t, err)
	decodeBody(t, resp, &body)
	assert.False(t, body.Following)
}

func TestUnknownPagesAre404(t *testing.T) {
	app, _, _ := newTestApp(t)

	for _, target := range []string{
		"/group/missing",
		"/profile/nobody",
		"/posts/9999",
		"/posts/not-a-number",
		"/no-such-page",
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "target %s", target)
	}
}

func TestGroupFeedFiltersBySlug(t *testing.T) {
	app, _, db := newTestApp(t)
	author := createTestUser(t, db, "alice")
	group := &models.Group{Title: "Cats", Slug: "cats", Description: "feline talk"}
	require.NoError(t, db.Create(group).Error)
	require.NoError(t, db.Create(&models.Post{
		Text: "grouped", AuthorID: author.ID, GroupID: &group.ID,
	}).Error)
	createTestPost(t, db, author, "ungrouped", time.Now().UTC())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/group/cats", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Group models.Group `json:"group"`
		Feed  struct {
			Posts []models.Post `json:"posts"`
		} `json:"feed"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "cats", body.Group.Slug)
	require.Len(t, body.Feed.Posts, 1)
	assert.Equal(t, "grouped", body.Feed.Posts[0].Text)
}

func TestSignupLoginLogoutFlow(t *testing.T) {
	app, _, _ := newTestApp(t)

	signup := url.Values{
		"username": {"newuser"},
		"email":    {"newuser@example.com"},
		"password": {"password123"},
	}
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(signup.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Login with a next path resumes the interrupted flow.
	login := url.Values{"username": {"newuser"}, "password": {"password123"}}
	req = httptest.NewRequest(http.MethodPost, "/auth/login?next=%2Fcreate", strings.NewReader(login.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/create", resp.Header.Get("Location"))

	cookieSet := false
	for _, c := range resp.Cookies() {
		if c.Name == "quill_token" && c.Value != "" {
			cookieSet = true
		}
	}
	assert.True(t, cookieSet, "login must set the session cookie")

	// Wrong password is a 401 with no hint which part was wrong.
	login.Set("password", "wrong")
	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(login.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRejectsOffsiteNext(t *testing.T) {
	app, _, db := newTestApp(t)
	createTestUser(t, db, "alice")

	login := url.Values{"username": {"alice"}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login?next="+url.QueryEscape("https://evil.example"), strings.NewReader(login.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	require.NoError(t, err)

	// Off-site targets are ignored; the login answers in place.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	app, _, _ := newTestApp(t)

	for _, target := range []string{"/health/live", "/health/ready"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "target %s", target)
	}
}
