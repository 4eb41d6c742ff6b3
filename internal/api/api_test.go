package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/tictactoe-live/internal/api/apierr"
	"github.com/mcoot/tictactoe-live/internal/api/response"
	"github.com/mcoot/tictactoe-live/internal/factory"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/wire"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })

	return &testServer{
		handler: app.Handler(nil),
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rr.Code)
	assert.Equal(t, code, decode[apierr.ErrorResponse](t, rr).Error.Code)
}

type account struct {
	id    string
	token string
}

func registerAndLogin(t *testing.T, ts *testServer, username string) account {
	t.Helper()

	creds := map[string]string{"username": username, "password": "secret123"}
	rr := ts.request(http.MethodPost, "/auth/register", creds, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.request(http.MethodPost, "/auth/login", creds, "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[response.LoginResponse](t, rr)
	return account{id: resp.UserID, token: resp.AccessToken}
}

func createRoom(t *testing.T, ts *testServer, token string, public bool) wire.Room {
	t.Helper()

	rr := ts.request(http.MethodPost, "/api/rooms", map[string]bool{"is_public": public}, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	return decode[wire.RoomEnvelope](t, rr).GameDetails
}

func move(ts *testServer, token, code string, index int) *httptest.ResponseRecorder {
	return ts.request(http.MethodPost, "/api/game/"+code+"/move", map[string]int{"index": index}, token)
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/rooms", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

// Account tests

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	creds := map[string]string{"username": "Alice", "password": "secret123"}
	rr := ts.request(http.MethodPost, "/auth/register", creds, "")
	assert.Equal(t, http.StatusCreated, rr.Code)
	registered := decode[response.RegisterResponse](t, rr)
	assert.NotEmpty(t, registered.UserID)

	// Usernames are unique ignoring case
	rr = ts.request(http.MethodPost, "/auth/register", map[string]string{"username": "alice", "password": "x"}, "")
	assertErrorCode(t, rr, http.StatusConflict, apierr.CodeUsernameExists)

	rr = ts.request(http.MethodPost, "/auth/login", map[string]string{"username": "alice", "password": "secret123"}, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	login := decode[response.LoginResponse](t, rr)
	assert.Equal(t, registered.UserID, login.UserID)
	assert.Equal(t, "Alice", login.Username)
	assert.NotEmpty(t, login.AccessToken)
}

func TestRegisterRequiresBothFields(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/auth/register", map[string]string{"username": "alice"}, "")
	assertErrorCode(t, rr, http.StatusBadRequest, apierr.CodeInvalidRequest)
}

func TestLoginWithBadPassword(t *testing.T) {
	ts := newTestServer(t)
	registerAndLogin(t, ts, "alice")

	rr := ts.request(http.MethodPost, "/auth/login", map[string]string{"username": "alice", "password": "nope"}, "")
	assertErrorCode(t, rr, http.StatusUnauthorized, apierr.CodeInvalidCredentials)
}

func TestMe(t *testing.T) {
	ts := newTestServer(t)
	alice := registerAndLogin(t, ts, "alice")

	rr := ts.request(http.MethodGet, "/auth/me", nil, alice.token)
	assert.Equal(t, http.StatusOK, rr.Code)
	me := decode[response.Me](t, rr)
	assert.Equal(t, alice.id, me.ID)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, 0, me.Wins)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/auth/me", nil, "")
	assertErrorCode(t, rr, http.StatusUnauthorized, apierr.CodeUnauthorized)

	rr = ts.request(http.MethodPost, "/api/rooms", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodGet, "/api/friends", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := newTestServer(t)
	alice := registerAndLogin(t, ts, "alice")

	rr := ts.request(http.MethodPost, "/auth/logout", nil, alice.token)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodGet, "/auth/me", nil, alice.token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// Room tests

func TestCreateListAndJoinRoom(t *testing.T) {
	ts := newTestServer(t)
	alice := registerAndLogin(t, ts, "alice")
	bob := registerAndLogin(t, ts, "bob")

	room := createRoom(t, ts, alice.token, true)
	assert.Equal(t, "pending", room.Status)
	assert.Equal(t, alice.id, room.PlayerXID)
	assert.Nil(t, room.PlayerOID)
	assert.Len(t, room.Board, 9)

	rr := ts.request(http.MethodGet, "/api/rooms/public", nil, bob.token)
	assert.Equal(t, http.StatusOK, rr.Code)
	public := decode[[]wire.Room](t, rr)
	require.Len(t, public, 1)
	assert.Equal(t, room.RoomID, public[0].RoomID)

	rr = ts.request(http.MethodPost, "/api/rooms/"+room.RoomID+"/join", nil, bob.token)
	assert.Equal(t, http.StatusOK, rr.Code)
	joined := decode[wire.RoomEnvelope](t, rr).GameDetails
	assert.Equal(t, "active", joined.Status)
	require.NotNil(t, joined.CurrentPlayerSymbol)
	assert.Equal(t, "O", *joined.CurrentPlayerSymbol)

	rr = ts.request(http.MethodGet, "/api/rooms/public", nil, bob.token)
	assert.Empty(t, decode[[]wire.Room](t, rr))
}

func TestCreateRoomBody(t *testing.T) {
	ts := newTestServer(t)
	alice := registerAndLogin(t, ts, "alice")

	rr := ts.request(http.MethodPost, "/api/rooms", nil, alice.token)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.False(t, decode[wire.RoomEnvelope](t, rr).GameDetails.IsPublic)

	rr = ts.request(http.MethodPost, "/api/rooms", map[string]string{"is_public": "yes"}, alice.token)
	assertErrorCode(t, rr, http.StatusBadRequest, apierr.CodeInvalidRequest)

	rr = ts.request(http.MethodGet, "/api/rooms/public", nil, alice.token)
	assert.Empty(t, decode[[]wire.Room](t, rr))
}

func TestJoinRoomErrors(t *testing.T) {
	ts := newTestServer(t)
	alice := registerAndLogin(t, ts, "alice")
	bob := registerAndLogin(t, ts, "bob")
	carol := registerAndLogin(t, ts, "carol")

	rr := ts.request(http.MethodPost, "/api/rooms/NOPE22/join", nil, bob.token)
	assertErrorCode(t, rr, http.StatusNotFound, apierr.CodeRoomNotFound)

	room := createRoom(t, ts, alice.token, false)
	rr = ts.request(http.MethodPost, "/api/rooms/"+room.RoomID+"/join", nil, bob.token)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/rooms/"+room.RoomID+"/join", nil, carol.token)
	assertErrorCode(t, rr, http.StatusForbidden, apierr.CodeRoomFull)

	// A seated user resumes by identity
	rr = ts.request(http.MethodPost, "/api/rooms/"+room.RoomID+"/join", nil, alice.token)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGameDetailsIsCaseInsensitive(t *testing.T) {
	ts := newTestServer(t)
	alice := registerAndLogin(t, ts, "alice")

	room := createRoom(t, ts, alice.token, false)

	rr := ts.request(http.MethodGet, "/api/game/"+lower(room.RoomID), nil, alice.token)
	assert.Equal(t, http.StatusOK, rr.Code)
	got := decode[wire.Room](t, rr)
	assert.Equal(t, room.RoomID, got.RoomID)
	require.NotNil(t, got.CurrentPlayerSymbol)
	assert.Equal(t, "X", *got.CurrentPlayerSymbol)
}

func TestPlayToWinOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	alice := registerAndLogin(t, ts, "alice")
	bob := registerAndLogin(t, ts, "bob")

	room := createRoom(t, ts, alice.token, true)
	rr := ts.request(http.MethodPost, "/api/rooms/"+room.RoomID+"/join", nil, bob.token)
	require.Equal(t, http.StatusOK, rr.Code)

	assertErrorCode(t, move(ts, bob.token, room.RoomID, 0), http.StatusForbidden, apierr.CodeNotYourTurn)

	require.Equal(t, http.StatusOK, move(ts, alice.token, room.RoomID, 0).Code)
	assertErrorCode(t, move(ts, bob.token, room.RoomID, 0), http.StatusBadRequest, apierr.CodeInvalidCell)
	assertErrorCode(t, move(ts, bob.token, room.RoomID, 9), http.StatusBadRequest, apierr.CodeInvalidCell)

	require.Equal(t, http.StatusOK, move(ts, bob.token, room.RoomID, 3).Code)
	require.Equal(t, http.StatusOK, move(ts, alice.token, room.RoomID, 1).Code)
	require.Equal(t, http.StatusOK, move(ts, bob.token, room.RoomID, 4).Code)
	rr = move(ts, alice.token, room.RoomID, 2)
	require.Equal(t, http.StatusOK, rr.Code)

	final := decode[wire.Room](t, rr)
	assert.Equal(t, "finished_x_wins", final.Status)
	assert.Equal(t, []string{"X", "X", "X", "O", "O", " ", " ", " ", " "}, final.Board)
	require.NotNil(t, final.WinnerID)
	assert.Equal(t, alice.id, *final.WinnerID)
	assert.Nil(t, final.CurrentTurnPlayerID)

	assertErrorCode(t, move(ts, bob.token, room.RoomID, 5), http.StatusConflict, apierr.CodeRoomNotActive)

	rr = ts.request(http.MethodPost, "/api/rooms/"+room.RoomID+"/join", nil, registerAndLogin(t, ts, "carol").token)
	assertErrorCode(t, rr, http.StatusForbidden, apierr.CodeAlreadyFinished)

	rr = ts.request(http.MethodGet, "/auth/scoreboard", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	board := decode[[]response.ScoreEntry](t, rr)
	require.NotEmpty(t, board)
	assert.Equal(t, "alice", board[0].Username)
	assert.Equal(t, 1, board[0].Wins)
}

func TestMoveRequiresIndex(t *testing.T) {
	ts := newTestServer(t)
	alice := registerAndLogin(t, ts, "alice")
	room := createRoom(t, ts, alice.token, false)

	rr := ts.request(http.MethodPost, "/api/game/"+room.RoomID+"/move", map[string]string{}, alice.token)
	assertErrorCode(t, rr, http.StatusBadRequest, apierr.CodeInvalidRequest)
}

// Roster tests

func TestReadyRequiresLiveConnection(t *testing.T) {
	ts := newTestServer(t)
	alice := registerAndLogin(t, ts, "alice")

	rr := ts.request(http.MethodPost, "/api/play/ready", nil, alice.token)
	assertErrorCode(t, rr, http.StatusConflict, apierr.CodeNotConnected)
}

func TestReadyAvailableAndChallenge(t *testing.T) {
	ts := newTestServer(t)
	alice := registerAndLogin(t, ts, "alice")
	bob := registerAndLogin(t, ts, "bob")
	ts.app.Presence.Connect(model.UserRef{ID: model.UserID(alice.id), Username: "alice"})
	ts.app.Presence.Connect(model.UserRef{ID: model.UserID(bob.id), Username: "bob"})

	rr := ts.request(http.MethodPost, "/api/play/start_with/"+bob.id, nil, alice.token)
	assertErrorCode(t, rr, http.StatusConflict, apierr.CodeTargetNotReady)

	rr = ts.request(http.MethodPost, "/api/play/ready", nil, bob.token)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodGet, "/api/play/available", nil, alice.token)
	roster := decode[[]wire.RosterEntry](t, rr)
	require.Len(t, roster, 1)
	assert.Equal(t, bob.id, roster[0].ID)

	// The caller never sees themselves
	rr = ts.request(http.MethodGet, "/api/play/available", nil, bob.token)
	assert.Empty(t, decode[[]wire.RosterEntry](t, rr))

	rr = ts.request(http.MethodPost, "/api/play/start_with/"+alice.id, nil, alice.token)
	assertErrorCode(t, rr, http.StatusBadRequest, apierr.CodeCannotChallengeSelf)

	rr = ts.request(http.MethodPost, "/api/play/start_with/nobody", nil, alice.token)
	assertErrorCode(t, rr, http.StatusNotFound, apierr.CodeUserNotFound)

	rr = ts.request(http.MethodPost, "/api/play/start_with/"+bob.id, nil, alice.token)
	assert.Equal(t, http.StatusCreated, rr.Code)
	started := decode[wire.RoomEnvelope](t, rr).GameDetails
	assert.Equal(t, "active", started.Status)
	assert.False(t, started.IsPublic)

	rr = ts.request(http.MethodGet, "/api/play/available", nil, alice.token)
	assert.Empty(t, decode[[]wire.RosterEntry](t, rr))
}

func TestUnreadyIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	alice := registerAndLogin(t, ts, "alice")

	for range 2 {
		rr := ts.request(http.MethodPost, "/api/play/unready", nil, alice.token)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

// Friend tests

func TestFriendRequestLifecycle(t *testing.T) {
	ts := newTestServer(t)
	alice := registerAndLogin(t, ts, "alice")
	bob := registerAndLogin(t, ts, "bob")

	rr := ts.request(http.MethodPost, "/api/friends/send_request/"+alice.id, nil, alice.token)
	assertErrorCode(t, rr, http.StatusBadRequest, apierr.CodeCannotFriendSelf)

	rr = ts.request(http.MethodPost, "/api/friends/send_request/nobody", nil, alice.token)
	assertErrorCode(t, rr, http.StatusNotFound, apierr.CodeUserNotFound)

	rr = ts.request(http.MethodPost, "/api/friends/send_request/"+bob.id, nil, alice.token)
	assert.Equal(t, http.StatusCreated, rr.Code)

	// Pending in either direction blocks a second request
	rr = ts.request(http.MethodPost, "/api/friends/send_request/"+alice.id, nil, bob.token)
	assertErrorCode(t, rr, http.StatusConflict, apierr.CodeRequestAlreadyPending)

	rr = ts.request(http.MethodGet, "/api/friends/requests", nil, bob.token)
	requests := decode[[]wire.FriendRequest](t, rr)
	require.Len(t, requests, 1)
	assert.Equal(t, "alice", requests[0].RequesterUsername)
	requestID := requests[0].RequestID

	rr = ts.request(http.MethodPost, "/api/friends/respond_request/"+requestID, map[string]string{"status": "maybe"}, bob.token)
	assertErrorCode(t, rr, http.StatusBadRequest, apierr.CodeInvalidResponse)

	rr = ts.request(http.MethodPost, "/api/friends/respond_request/"+requestID, map[string]string{"status": "accepted"}, alice.token)
	assertErrorCode(t, rr, http.StatusForbidden, apierr.CodeNotAddressee)

	rr = ts.request(http.MethodPost, "/api/friends/respond_request/"+requestID, map[string]string{"status": "accepted"}, bob.token)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/friends/respond_request/"+requestID, map[string]string{"status": "declined"}, bob.token)
	assertErrorCode(t, rr, http.StatusConflict, apierr.CodeRequestNotPending)

	rr = ts.request(http.MethodPost, "/api/friends/respond_request/missing", map[string]string{"status": "accepted"}, bob.token)
	assertErrorCode(t, rr, http.StatusNotFound, apierr.CodeRequestNotFound)

	rr = ts.request(http.MethodGet, "/api/friends", nil, alice.token)
	friends := decode[[]wire.Friend](t, rr)
	require.Len(t, friends, 1)
	assert.Equal(t, bob.id, friends[0].ID)
	assert.False(t, friends[0].Online)

	rr = ts.request(http.MethodPost, "/api/friends/send_request/"+bob.id, nil, alice.token)
	assertErrorCode(t, rr, http.StatusConflict, apierr.CodeAlreadyFriends)
}

func TestSearchUsers(t *testing.T) {
	ts := newTestServer(t)
	alice := registerAndLogin(t, ts, "alice")
	registerAndLogin(t, ts, "Alicia")
	registerAndLogin(t, ts, "bob")

	rr := ts.request(http.MethodGet, "/api/users/search?q=ALI", nil, alice.token)
	assert.Equal(t, http.StatusOK, rr.Code)
	found := decode[[]wire.UserSummary](t, rr)
	require.Len(t, found, 1)
	assert.Equal(t, "Alicia", found[0].Username)

	rr = ts.request(http.MethodGet, "/api/users/search?q=a", nil, alice.token)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]wire.UserSummary](t, rr))
}

func lower(s string) string {
	return string(bytes.ToLower([]byte(s)))
}
