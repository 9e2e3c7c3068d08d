// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitech/convogate/internal/audit"
	"github.com/stitech/convogate/internal/config"
	"github.com/stitech/convogate/internal/engine"
	"github.com/stitech/convogate/internal/handlers"
	"github.com/stitech/convogate/internal/intent"
	"github.com/stitech/convogate/internal/session"
	"github.com/stitech/convogate/internal/stage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.AppConfig{
		Listen:          ":0",
		AllowedOrigins:  []string{"*"},
		SessionTTL:      time.Minute,
		ClaimTTL:        10 * time.Second,
		DefaultLanguage: "es-AR",
		ServiceName:     "convogate-test",
	}

	catalog, err := config.NewCatalog("", cfg.DefaultLanguage, zerolog.Nop())
	require.NoError(t, err)
	registry, err := handlers.NewRegistry(catalog, "5491122334455")
	require.NoError(t, err)

	store := session.NewMemoryStore(0)
	stream := audit.NewStream(audit.NewMemorySink(), zerolog.Nop(), audit.StreamOptions{Buffer: 64})

	eng, err := engine.New(engine.Options{
		Store:      store,
		Registry:   registry,
		Classifier: intent.HeuristicAdapter(),
		Audit:      stream,
		Catalog:    catalog,
		Logger:     zerolog.Nop(),
		SessionTTL: cfg.SessionTTL,
		ClaimTTL:   cfg.ClaimTTL,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, stream.Close())
		require.NoError(t, store.Close())
	})
	return NewServer(cfg, eng, stream, zerolog.Nop())
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Routes(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestGreetingMintsAndResumes(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()

	rec := doJSON(t, h, http.MethodGet, "/api/greeting", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp engine.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, stage.AskLanguage, resp.Stage)
	assert.Len(t, resp.Buttons, 3)

	rec = doJSON(t, h, http.MethodGet, "/api/greeting?sessionId="+resp.SessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resumed engine.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resumed))
	assert.Equal(t, resp.SessionID, resumed.SessionID)
}

func TestChatValidation(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()

	rec := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"text": "hola"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "sessionId")

	rec = doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{
		"sessionId": "s1", "text": "hola", "buttonId": stage.BtnHelp,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"sessionId": "s1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	const id = "http-sess"

	rec := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{
		"sessionId": id, "buttonId": stage.BtnLangEN,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp engine.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, stage.AskName, resp.Stage)
	assert.True(t, resp.ViewModel.AllowText)
	assert.False(t, resp.ViewModel.AllowButtons)

	rec = doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{
		"sessionId": id, "text": "Marta",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, stage.AskNeed, resp.Stage)
	assert.Contains(t, resp.Reply, "Marta")
}

func TestChatRejectionIsHTTP200(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()

	rec := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{
		"sessionId": "rej-sess", "text": "hola",
	})
	require.Equal(t, http.StatusOK, rec.Code, "contract rejections are not transport errors")

	var resp engine.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, stage.AskLanguage, resp.Stage)
	assert.Len(t, resp.Buttons, 3)
}

func TestDuplicateChatReplaysOverHTTP(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	body := map[string]string{
		"sessionId": "dup-sess", "buttonId": stage.BtnLangEN, "requestId": "r-1",
	}

	rec := doJSON(t, h, http.MethodPost, "/api/chat", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/chat", body)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp engine.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Duplicate)
	assert.Equal(t, stage.AskName, resp.Stage)
}

func TestAuditEndpoints(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	const id = "audit-sess"

	doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{
		"sessionId": id, "buttonId": stage.BtnLangESAR,
	})
	doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{
		"sessionId": id, "text": "Marta",
	})

	require.Eventually(t, func() bool {
		rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/sessions/%s/audit", id), nil)
		return rec.Code == http.StatusOK && strings.Count(rec.Body.String(), `"stageBefore"`) == 2
	}, time.Second, 10*time.Millisecond)

	rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/sessions/%s/audit?limit=bad", id), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/flow-audit.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 3, "header plus two rows")
	assert.True(t, strings.HasPrefix(lines[0], "seq,timestamp,session_key"))
}

func TestCORSPreflights(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://support.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://support.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
