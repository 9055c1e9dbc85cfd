package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/linker-back/internal/db"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/db/dbtest"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/models"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/service"
)

func TestCensorBody(t *testing.T) {
	b := `{
		"email": "email@email.com",
		"password": "123456789123"
	}`

	got := censorBody([]byte(b))
	assert.JSONEq(t, `{
		"email": "email@email.com",
		"password": "$censored"
	}`, string(got))
}

func TestCensorBodyNotJSON(t *testing.T) {
	assert.Equal(t, "password=1", string(censorBody([]byte("password=1"))))
}

type fixture struct {
	server *HTTPServer
	conn   *gorm.DB
	userA  *db.User
	userB  *db.User
}

func newFixture(t *testing.T) *fixture {
	conn := dbtest.New(t)
	l := zap.NewNop().Sugar()
	issues := service.NewIssues(conn)

	return &fixture{
		server: newHTTPServer(service.NewGeneral(conn, l), service.NewLinks(conn, issues, l), issues, l),
		conn:   conn,
		userA:  dbtest.CreateUser(t, conn, "a@example.com"),
		userB:  dbtest.CreateUser(t, conn, "b@example.com"),
	}
}

func (f *fixture) do(t *testing.T, user *db.User, method, path, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("X-Token", user.Token)
	}

	resp, err := f.server.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestPing(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, nil, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "pong", string(b))
}

func TestGuestCannotAccessLinks(t *testing.T) {
	f := newFixture(t)
	link := dbtest.CreateLink(t, f.conn, f.userA, "Link of User A", nil)
	body := `{"url":"https://laravel.com","title":"Laravel"}`

	requests := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/links", ""},
		{http.MethodGet, "/links/create", ""},
		{http.MethodPost, "/links", body},
		{http.MethodGet, fmt.Sprintf("/links/%d/edit", link.ID), ""},
		{http.MethodPut, fmt.Sprintf("/links/%d", link.ID), body},
		{http.MethodDelete, fmt.Sprintf("/links/%d", link.ID), ""},
	}
	for _, r := range requests {
		resp := f.do(t, nil, r.method, r.path, r.body)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, r.method+" "+r.path)
	}

	stranger := &db.User{Token: "unknown"}
	resp := f.do(t, stranger, http.MethodGet, "/links", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var count int64
	require.NoError(t, f.conn.Model(&db.Link{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLinkListOnlyOwn(t *testing.T) {
	f := newFixture(t)
	dbtest.CreateLink(t, f.conn, f.userA, "Link of User A", dbtest.Int(2))
	dbtest.CreateLink(t, f.conn, f.userA, "Another of User A", dbtest.Int(1))
	dbtest.CreateLink(t, f.conn, f.userB, "Link of User B", dbtest.Int(0))

	resp := f.do(t, f.userA, http.MethodGet, "/links", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := models.LinkListResp{}
	decode(t, resp, &got)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Another of User A", got.Items[0].Title)
	assert.Equal(t, "Link of User A", got.Items[1].Title)
	assert.Equal(t, int64(2), got.Total)
	assert.Equal(t, service.PageSize, got.PerPage)
}

func TestLinkListPage(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 15; i++ {
		dbtest.CreateLink(t, f.conn, f.userA, fmt.Sprintf("link %d", i), dbtest.Int(i))
	}

	resp := f.do(t, f.userA, http.MethodGet, "/links?page=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := models.LinkListResp{}
	decode(t, resp, &got)
	assert.Len(t, got.Items, 5)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 2, got.LastPage)
}

func TestLinkListHugePage(t *testing.T) {
	f := newFixture(t)
	dbtest.CreateLink(t, f.conn, f.userA, "Link of User A", nil)

	resp := f.do(t, f.userA, http.MethodGet, "/links?page=9223372036854775807", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := models.LinkListResp{}
	decode(t, resp, &got)
	assert.Empty(t, got.Items)
	assert.Equal(t, int64(1), got.Total)
	assert.Equal(t, 1, got.LastPage)
}

func TestLinkCreateForm(t *testing.T) {
	f := newFixture(t)
	dbtest.CreateIssue(t, f.conn, "Issue #1")

	resp := f.do(t, f.userA, http.MethodGet, "/links/create", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := models.LinkFormResp{}
	decode(t, resp, &got)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, "Issue #1", got.Issues[0].Title)
	assert.True(t, got.Fields["url"].Required)
	assert.Equal(t, 255, got.Fields["title"].MaxLength)
}

func TestLinkCreate(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, f.userA, http.MethodPost, "/links",
		fmt.Sprintf(`{"url":"https://laravel.com","title":"New Link","description":"Description","position":1,"user_id":%d}`, f.userB.ID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got := models.LinkMutationResp{}
	decode(t, resp, &got)
	assert.Equal(t, models.MessageLinkCreated, got.Message)
	require.NotNil(t, got.Link)
	assert.Equal(t, f.userA.ID, got.Link.UserID)

	stored := db.Link{}
	require.NoError(t, f.conn.First(&stored, got.Link.ID).Error)
	assert.Equal(t, "New Link", stored.Title)
	assert.Equal(t, f.userA.ID, stored.UserID)
}

func TestLinkCreateURLEncoded(t *testing.T) {
	f := newFixture(t)

	form := url.Values{}
	form.Set("url", "https://go.dev")
	form.Set("title", "Go")
	form.Set("position", "3")

	req := httptest.NewRequest(http.MethodPost, "/links", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Token", f.userA.Token)
	resp, err := f.server.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got := models.LinkMutationResp{}
	decode(t, resp, &got)
	require.NotNil(t, got.Link.Position)
	assert.Equal(t, 3, *got.Link.Position)
}

func TestLinkCreateValidation(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, f.userA, http.MethodPost, "/links", `{"url":"","title":"Laravel","position":"not-a-number"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	got := models.ValidationErrorResp{}
	decode(t, resp, &got)
	assert.Equal(t, []string{"position", "url"}, got.Errors.Fields())
	assert.Equal(t, "required", string(got.Errors["url"][0].Code))

	var count int64
	require.NoError(t, f.conn.Model(&db.Link{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLinkCreateBadJSON(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, f.userA, http.MethodPost, "/links", `{"url":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLinkEdit(t *testing.T) {
	f := newFixture(t)
	linkA := dbtest.CreateLink(t, f.conn, f.userA, "Link of User A", nil)
	linkB := dbtest.CreateLink(t, f.conn, f.userB, "Link of User B", nil)

	resp := f.do(t, f.userA, http.MethodGet, fmt.Sprintf("/links/%d/edit", linkA.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := models.LinkResp{}
	decode(t, resp, &got)
	assert.Equal(t, linkA.Title, got.Title)
	assert.Equal(t, linkA.URL, got.URL)

	resp = f.do(t, f.userA, http.MethodGet, fmt.Sprintf("/links/%d/edit", linkB.ID), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, f.userA, http.MethodGet, "/links/999/edit", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, f.userA, http.MethodGet, "/links/abc/edit", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLinkUpdate(t *testing.T) {
	f := newFixture(t)
	linkA := dbtest.CreateLink(t, f.conn, f.userA, "Link of User A", nil)
	linkB := dbtest.CreateLink(t, f.conn, f.userB, "Link of User B", nil)
	body := fmt.Sprintf(`{"url":"https://laravel.com","title":"Updated Link","description":"Description","user_id":%d}`, f.userB.ID)

	resp := f.do(t, f.userA, http.MethodPut, fmt.Sprintf("/links/%d", linkA.ID), body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := models.LinkMutationResp{}
	decode(t, resp, &got)
	assert.Equal(t, models.MessageLinkUpdated, got.Message)

	stored := db.Link{}
	require.NoError(t, f.conn.First(&stored, linkA.ID).Error)
	assert.Equal(t, "Updated Link", stored.Title)
	assert.Equal(t, f.userA.ID, stored.UserID)

	resp = f.do(t, f.userA, http.MethodPatch, fmt.Sprintf("/links/%d", linkB.ID), body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	require.NoError(t, f.conn.First(&stored, linkB.ID).Error)
	assert.Equal(t, "Link of User B", stored.Title)
}

func TestLinkDelete(t *testing.T) {
	f := newFixture(t)
	linkA := dbtest.CreateLink(t, f.conn, f.userA, "Link of User A", nil)
	linkB := dbtest.CreateLink(t, f.conn, f.userB, "Link of User B", nil)

	resp := f.do(t, f.userA, http.MethodDelete, fmt.Sprintf("/links/%d", linkB.ID), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, f.userA, http.MethodDelete, fmt.Sprintf("/links/%d", linkA.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := models.LinkMutationResp{}
	decode(t, resp, &got)
	assert.Equal(t, models.MessageLinkDeleted, got.Message)

	resp = f.do(t, f.userA, http.MethodDelete, fmt.Sprintf("/links/%d", linkA.ID), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var count int64
	require.NoError(t, f.conn.Model(&db.Link{}).Where("id = ?", linkB.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, nil, http.MethodPost, "/auth/register", `{"email": "test@gmail.com", "password": "111111111111"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	registered := models.TokenResp{}
	decode(t, resp, &registered)
	assert.NotEmpty(t, registered.Token)

	resp = f.do(t, nil, http.MethodPost, "/auth/register", `{"email": "test@gmail.com", "password": "111111111111"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, nil, http.MethodPost, "/auth/register", `{"something": "???"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, nil, http.MethodPost, "/auth/login", `{"email": "test@gmail.com", "password": "222222222222"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, nil, http.MethodPost, "/auth/login", `{"email": "test@gmail.com", "password": "111111111111"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	loggedIn := models.TokenResp{}
	decode(t, resp, &loggedIn)

	resp = f.do(t, &db.User{Token: loggedIn.Token}, http.MethodGet, "/links", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
