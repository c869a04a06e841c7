package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smarterpayouts/mint/internal/chat"
	"github.com/smarterpayouts/mint/internal/modal"
	"github.com/smarterpayouts/mint/internal/npv"
	"github.com/smarterpayouts/mint/internal/queue"
	"github.com/smarterpayouts/mint/internal/transcript"
)

type stubCompleter struct {
	calls atomic.Int64
}

func (s *stubCompleter) Complete(context.Context, []chat.CompletionMessage) (string, error) {
	s.calls.Add(1)
	return "stub reply", nil
}

func (s *stubCompleter) CompleteStream(_ context.Context, _ []chat.CompletionMessage, onChunk func(string) error) (string, error) {
	s.calls.Add(1)
	if onChunk != nil {
		if err := onChunk("stub reply"); err != nil {
			return "", err
		}
	}
	return "stub reply", nil
}

func newTestServer(t *testing.T) (*Server, *stubCompleter) {
	t.Helper()

	completer := &stubCompleter{}
	store := transcript.NewMemory()

	factory := func(sessionID, userName string) (*chat.Orchestrator, error) {
		return chat.NewOrchestrator(chat.Config{
			SessionID:   sessionID,
			UserName:    userName,
			TypingDelay: time.Millisecond,
			Queue: queue.Config{
				InitialPosition: 1,
				Roster:          []string{"Brianna"},
			},
		}, chat.Deps{
			Store:     store,
			Completer: completer,
			Logger:    zap.NewNop(),
		})
	}

	engine := npv.NewEngine(2, zap.NewNop())
	t.Cleanup(engine.Close)

	sessions := NewSessionManager(factory, zap.NewNop())
	t.Cleanup(func() { sessions.CloseAll(context.Background()) })

	s, err := NewServer(Config{Host: "127.0.0.1", Port: 0}, sessions, engine, zap.NewNop())
	require.NoError(t, err)
	return s, completer
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echoContentType, "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

// waitForStage polls the session until it reaches stage; reveals run in the
// background, so stage changes lag message appearance slightly.
func waitForStage(t *testing.T, s *Server, id string, stage chat.Stage) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec := doJSON(t, s, http.MethodGet, "/api/v1/sessions/"+id, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var resp SessionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			return false
		}
		return resp.Stage == stage
	}, 2*time.Second, 10*time.Millisecond)
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{UserName: "Dana"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func getMessages(t *testing.T, s *Server, id string) []chat.Message {
	t.Helper()
	rec := doJSON(t, s, http.MethodGet, "/api/v1/sessions/"+id+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Messages
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCreateSessionRevealsGreeting(t *testing.T) {
	s, _ := newTestServer(t)
	id := createSession(t, s)

	require.Eventually(t, func() bool {
		return len(getMessages(t, s, id)) >= 3
	}, 2*time.Second, 10*time.Millisecond, "greeting should reveal in the background")

	msgs := getMessages(t, s, id)
	assert.Equal(t, chat.SenderAssistant, msgs[0].Sender)
	last := msgs[len(msgs)-1]
	assert.Equal(t, chat.KindQuickReply, last.Kind)
	require.IsType(t, chat.QuickReplyMeta{}, last.Meta)
}

func TestSubmitMessageIntentMatch(t *testing.T) {
	s, completer := newTestServer(t)
	id := createSession(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/sessions/"+id+"/messages",
		SubmitMessageRequest{Content: "wat is an anuity"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SubmitMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Reply.Content)
	assert.NotEqual(t, "stub reply", resp.Reply.Content)
	assert.Zero(t, completer.calls.Load())
}

func TestSubmitMessageFallsThroughToCompletion(t *testing.T) {
	s, completer := newTestServer(t)
	id := createSession(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/sessions/"+id+"/messages",
		SubmitMessageRequest{Content: "tell me about the weather on mars xyzzy"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SubmitMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "stub reply", resp.Reply.Content)
	assert.Equal(t, int64(1), completer.calls.Load())
}

func TestSubmitMessageValidation(t *testing.T) {
	s, _ := newTestServer(t)
	id := createSession(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/sessions/"+id+"/messages", SubmitMessageRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitChoiceRevealsInBackground(t *testing.T) {
	s, _ := newTestServer(t)
	id := createSession(t, s)
	waitForStage(t, s, id, chat.StageChoice)
	base := len(getMessages(t, s, id))

	rec := doJSON(t, s, http.MethodPost, "/api/v1/sessions/"+id+"/choice",
		SubmitChoiceRequest{ChoiceID: "Our Process"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return len(getMessages(t, s, id)) > base+1
	}, 2*time.Second, 10*time.Millisecond, "branch should reveal in the background")
}

func TestSubmitChoiceUnknownIDRejected(t *testing.T) {
	s, _ := newTestServer(t)
	id := createSession(t, s)
	waitForStage(t, s, id, chat.StageChoice)
	base := len(getMessages(t, s, id))

	rec := doJSON(t, s, http.MethodPost, "/api/v1/sessions/"+id+"/choice",
		SubmitChoiceRequest{ChoiceID: "Win The Lottery"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, getMessages(t, s, id), base)

	// A rejected id must not count as a submitted message.
	rec = doJSON(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `mint_messages_total{kind="choice"}`)
}

func TestHandoffUpdatesSessionState(t *testing.T) {
	s, _ := newTestServer(t)
	id := createSession(t, s)
	waitForStage(t, s, id, chat.StageChoice)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/sessions/"+id+"/handoff",
		HandoffRequest{Channel: chat.ChannelSMS})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, chat.StageHandoff, resp.Stage)
	assert.Equal(t, modal.ChannelSMS, resp.ModalChannel)
}

func TestHandoffLiveChatExposesQueue(t *testing.T) {
	s, _ := newTestServer(t)
	id := createSession(t, s)
	waitForStage(t, s, id, chat.StageChoice)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/sessions/"+id+"/handoff",
		HandoffRequest{Channel: chat.ChannelLiveChat})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/sessions/"+id+"/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueueStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Active)
	assert.Equal(t, queue.StageQueued, resp.State.Stage)
	assert.Equal(t, 1, resp.State.Position)
}

func TestSessionLifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	id := createSession(t, s)

	rec := doJSON(t, s, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownSessionIs404(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/v1/sessions/nope/messages", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNPVEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := doJSON(t, s, http.MethodPost, "/api/v1/npv", npv.PaymentSchedule{
		Payments: []npv.Payment{
			{Amount: 1100, Date: asOf.AddDate(1, 0, 0)},
		},
		DiscountRate: 0.10,
		AsOf:         asOf,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result npv.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.InDelta(t, 1000, result.NPV, 1.0)
	require.Len(t, result.PerPayment, 1)
}

func TestNPVEndpointRejectsInvalidSchedule(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/npv", npv.PaymentSchedule{
		DiscountRate: 0.10,
		AsOf:         time.Now(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	createSession(t, s)

	rec := doJSON(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mint_sessions_created_total")
}

func TestConcurrentSessionsAreIsolated(t *testing.T) {
	s, _ := newTestServer(t)
	a := createSession(t, s)
	b := createSession(t, s)
	require.NotEqual(t, a, b)

	waitForStage(t, s, a, chat.StageChoice)
	waitForStage(t, s, b, chat.StageChoice)

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/handoff", a),
		HandoffRequest{Channel: chat.ChannelPhoneCall})
	require.Equal(t, http.StatusOK, rec.Code)

	recB := doJSON(t, s, http.MethodGet, "/api/v1/sessions/"+b, nil)
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(recB.Body.Bytes(), &resp))
	assert.Equal(t, modal.ChannelNone, resp.ModalChannel)
}
