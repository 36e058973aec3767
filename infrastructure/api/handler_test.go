package api

import (
	"chat-relay/adapters"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"chat-relay/runtime"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type handlerFixture struct {
	handler    *Handler
	aggregator *mocks.MockIAggregator
	repo       *mocks.MockIMessageRepository
	searcher   *mocks.MockISearcher
	allowlist  *mocks.MockIAllowlistRepository
}

func newHandlerForTest(t *testing.T) handlerFixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)

	mockAggregator := mocks.NewMockIAggregator(ctrl)
	mockRepo := mocks.NewMockIMessageRepository(ctrl)
	mockSearcher := mocks.NewMockISearcher(ctrl)
	mockSupervisor := mocks.NewMockISupervisor(ctrl)
	mockAllowlist := mocks.NewMockIAllowlistRepository(ctrl)

	orchestrator := runtime.NewOrchestrator(log, mockSupervisor, mockAggregator,
		mockRepo, mockSearcher, observability.NewMonitoringManager(), 16, time.Minute)

	handler := NewHandler(log, orchestrator,
		adapters.NewVoiceAdapter(log), adapters.NewPresenceAdapter(log), mockAllowlist)

	return handlerFixture{
		handler:    handler,
		aggregator: mockAggregator,
		repo:       mockRepo,
		searcher:   mockSearcher,
		allowlist:  mockAllowlist,
	}
}

func TestHandler_VoiceStateAccepted(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	fixture.aggregator.EXPECT().Record(gomock.Any()).
		Do(func(e domain.Event) {
			req.Equal("General", e.SourceKey)
			req.Equal(domain.Joined, e.Kind)
		}).Times(1)

	body := `{"user":"alice","user_id":"1","channel":"General","users_in_channel":["alice"],"event":"joined"}`
	request := httptest.NewRequest(http.MethodPost, "/voice_state", strings.NewReader(body))
	recorder := httptest.NewRecorder()

	fixture.handler.VoiceState(recorder, request)

	req.Equal(http.StatusAccepted, recorder.Code)
	req.Contains(recorder.Body.String(), `"accepted":1`)
}

func TestHandler_VoiceStateRejectsMalformedPayload(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	// No Record expectation: nothing reaches the aggregator.
	body := `{"user":"alice","event":"joined"}`
	request := httptest.NewRequest(http.MethodPost, "/voice_state", strings.NewReader(body))
	recorder := httptest.NewRecorder()

	fixture.handler.VoiceState(recorder, request)

	req.Equal(http.StatusBadRequest, recorder.Code)
	req.Contains(recorder.Body.String(), "error")
	req.Equal(uint64(1), fixture.handler.relay.Stats().EventsDropped)
}

func TestHandler_VoiceStateMuteToggleAcceptsZeroEvents(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	body := `{"user":"alice","channel":"General","before_channel":"General","after_channel":"General"}`
	request := httptest.NewRequest(http.MethodPost, "/voice_state", strings.NewReader(body))
	recorder := httptest.NewRecorder()

	fixture.handler.VoiceState(recorder, request)

	req.Equal(http.StatusAccepted, recorder.Code)
	req.Contains(recorder.Body.String(), `"accepted":0`)
}

func TestHandler_ProfilesAccepted(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	fixture.aggregator.EXPECT().Record(gomock.Any()).
		Do(func(e domain.Event) {
			req.Equal("steam:gaben", e.SourceKey)
			req.Equal(domain.StartedPlaying, e.Kind)
		}).Times(1)

	body := `{"profile":"gaben","status":"Currently In-Game","game":"Dota 2"}`
	request := httptest.NewRequest(http.MethodPost, "/profiles", strings.NewReader(body))
	recorder := httptest.NewRecorder()

	fixture.handler.Profiles(recorder, request)
	req.Equal(http.StatusAccepted, recorder.Code)
}

func TestHandler_TelegramUpdateRecordsMessage(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	body := `{
		"update_id": 7,
		"message": {
			"message_id": 100,
			"from": {"username": "alice", "is_bot": false},
			"date": 1700000000,
			"text": "hello there",
			"reply_to_message": {"message_id": 99}
		}
	}`
	request := httptest.NewRequest(http.MethodPost, "/telegram/update", strings.NewReader(body))
	recorder := httptest.NewRecorder()

	fixture.handler.TelegramUpdate(recorder, request)

	req.Equal(http.StatusOK, recorder.Code)
	req.Contains(recorder.Body.String(), `"recorded":true`)
	// The row went through the non-blocking record path.
	req.Equal(uint64(1), fixture.handler.relay.Stats().MessagesStored)
}

func TestHandler_TelegramUpdateClassifiesMediaKind(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	body := `{
		"message": {
			"message_id": 101,
			"from": {"username": "bob"},
			"photo": [{"file_id": "abc"}],
			"caption": "holiday pics"
		}
	}`
	request := httptest.NewRequest(http.MethodPost, "/telegram/update", strings.NewReader(body))
	recorder := httptest.NewRecorder()

	fixture.handler.TelegramUpdate(recorder, request)
	req.Equal(http.StatusOK, recorder.Code)
}

func TestHandler_TelegramUpdateWithoutMessageIsSkipped(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	request := httptest.NewRequest(http.MethodPost, "/telegram/update", strings.NewReader(`{"update_id": 8}`))
	recorder := httptest.NewRecorder()

	fixture.handler.TelegramUpdate(recorder, request)

	req.Equal(http.StatusOK, recorder.Code)
	req.Contains(recorder.Body.String(), `"recorded":false`)
}

func TestHandler_MessagesReturnsHistory(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	fixture.repo.EXPECT().GetMessages(2).Return([]domain.Message{
		{User: "bob", Text: "newest", Kind: domain.KindText},
		{User: "alice", Text: "older", Kind: domain.KindText},
	}, nil)

	request := httptest.NewRequest(http.MethodGet, "/messages?limit=2", nil)
	recorder := httptest.NewRecorder()

	fixture.handler.Messages(recorder, request)

	req.Equal(http.StatusOK, recorder.Code)
	var payload struct {
		Count int `json:"count"`
	}
	req.NoError(json.Unmarshal(recorder.Body.Bytes(), &payload))
	req.Equal(2, payload.Count)
}

func TestHandler_MessagesFiltersByUser(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	fixture.repo.EXPECT().GetMessagesByUser("alice", 100).Return([]domain.Message{
		{User: "alice", Text: "mine", Kind: domain.KindText},
	}, nil)

	request := httptest.NewRequest(http.MethodGet, "/messages?user=alice", nil)
	recorder := httptest.NewRecorder()

	fixture.handler.Messages(recorder, request)

	req.Equal(http.StatusOK, recorder.Code)
	req.Contains(recorder.Body.String(), "mine")
}

func TestHandler_SearchRequiresQuery(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	request := httptest.NewRequest(http.MethodGet, "/messages/search", nil)
	recorder := httptest.NewRecorder()

	fixture.handler.SearchMessages(recorder, request)
	req.Equal(http.StatusBadRequest, recorder.Code)
}

func TestHandler_SearchReturnsMatches(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	fixture.searcher.EXPECT().Search(gomock.Any(), "relay", 100).Return([]domain.Message{
		{User: "alice", Text: "deploying the relay", Kind: domain.KindText},
	}, nil)

	request := httptest.NewRequest(http.MethodGet, "/messages/search?q=relay", nil)
	recorder := httptest.NewRecorder()

	fixture.handler.SearchMessages(recorder, request)

	req.Equal(http.StatusOK, recorder.Code)
	req.Contains(recorder.Body.String(), "deploying the relay")
}

func TestHandler_DigestPreparesTranscript(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	fixture.repo.EXPECT().GetMessages(100).Return([]domain.Message{
		{User: "alice", Text: "good morning everyone", Kind: domain.KindText, At: time.Now().UTC()},
	}, nil)

	request := httptest.NewRequest(http.MethodGet, "/digest", nil)
	recorder := httptest.NewRecorder()

	fixture.handler.Digest(recorder, request)

	req.Equal(http.StatusOK, recorder.Code)
	req.Contains(recorder.Body.String(), "alice: good morning everyone")
}

func TestHandler_AllowedUsersRoundTrip(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	fixture.allowlist.EXPECT().Add("alice").Return(nil)
	request := httptest.NewRequest(http.MethodPost, "/allowed_users", strings.NewReader(`{"user":"alice"}`))
	recorder := httptest.NewRecorder()
	fixture.handler.AllowedUsers(recorder, request)
	req.Equal(http.StatusCreated, recorder.Code)

	fixture.allowlist.EXPECT().List().Return([]string{"alice"}, nil)
	request = httptest.NewRequest(http.MethodGet, "/allowed_users", nil)
	recorder = httptest.NewRecorder()
	fixture.handler.AllowedUsers(recorder, request)
	req.Equal(http.StatusOK, recorder.Code)
	req.Contains(recorder.Body.String(), "alice")

	fixture.allowlist.EXPECT().Remove("alice").Return(nil)
	request = httptest.NewRequest(http.MethodDelete, "/allowed_users/alice", nil)
	recorder = httptest.NewRecorder()
	fixture.handler.AllowedUserByName(recorder, request)
	req.Equal(http.StatusOK, recorder.Code)
}

func TestHandler_AllowedUsersConflictOnDuplicate(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	fixture.allowlist.EXPECT().Add("alice").Return(errors.ErrUserAlreadyAllowed)
	request := httptest.NewRequest(http.MethodPost, "/allowed_users", strings.NewReader(`{"user":"alice"}`))
	recorder := httptest.NewRecorder()

	fixture.handler.AllowedUsers(recorder, request)
	req.Equal(http.StatusConflict, recorder.Code)
}

func TestHandler_AllowedUsersNotFoundOnUnknownRemove(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	fixture.allowlist.EXPECT().Remove("ghost").Return(errors.ErrUserNotAllowed)
	request := httptest.NewRequest(http.MethodDelete, "/allowed_users/ghost", nil)
	recorder := httptest.NewRecorder()

	fixture.handler.AllowedUserByName(recorder, request)
	req.Equal(http.StatusNotFound, recorder.Code)
}

func TestHandler_HealthReportsStats(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)

	request := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()

	fixture.handler.Health(recorder, request)

	req.Equal(http.StatusOK, recorder.Code)
	req.Contains(recorder.Body.String(), "events_received")
	req.Contains(recorder.Body.String(), "uptime_seconds")
}

func TestServer_TokenGuardsMutatingRoutes(t *testing.T) {
	req := require.New(t)
	fixture := newHandlerForTest(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	server := NewServer(log, fixture.handler, Config{Addr: "localhost:0", Token: "secret"})
	testServer := httptest.NewServer(server.httpServer.Handler)
	defer testServer.Close()

	// Mutating route without the token: rejected before the handler.
	resp, err := http.Post(testServer.URL+"/allowed_users", "application/json",
		strings.NewReader(`{"user":"alice"}`))
	req.NoError(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Same route with the token: accepted.
	fixture.allowlist.EXPECT().Add("alice").Return(nil)
	request, err := http.NewRequest(http.MethodPost, testServer.URL+"/allowed_users",
		strings.NewReader(`{"user":"alice"}`))
	req.NoError(err)
	request.Header.Set("X-Relay-Token", "secret")
	resp, err = http.DefaultClient.Do(request)
	req.NoError(err)
	req.Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Reads stay open.
	fixture.allowlist.EXPECT().List().Return([]string{"alice"}, nil)
	resp, err = http.Get(testServer.URL + "/allowed_users")
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
