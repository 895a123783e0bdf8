package auth

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// mockTokenStore is a mock implementation of TokenStore for testing.
type mockTokenStore struct {
	token       *oauth2.Token
	loadErr     error
	savedTokens []*oauth2.Token
}

func (m *mockTokenStore) SaveToken(token *oauth2.Token) error {
	m.savedTokens = append(m.savedTokens, token)
	m.token = token
	return nil
}

func (m *mockTokenStore) LoadToken() (*oauth2.Token, error) {
	return m.token, m.loadErr
}

// syncBuffer is a bytes.Buffer safe for use from the flow goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// captureLog redirects the standard logger for the duration of the test.
func captureLog(t *testing.T) *syncBuffer {
	t.Helper()
	var buf syncBuffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{"https://www.googleapis.com/auth/calendar.events"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: tokenURL,
		},
	}
}

func tokenServer(t *testing.T, gotCode *string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		*gotCode = r.Form.Get("code")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access-token","token_type":"Bearer","refresh_token":"new-refresh-token","expires_in":3600}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func failingFlow(t *testing.T) AuthFlow {
	return func(context.Context, *oauth2.Config) (string, error) {
		t.Error("auth flow should not run when a token is cached")
		return "", errors.New("unexpected flow")
	}
}

func TestGetAuthenticatedClient_TokenExists(t *testing.T) {
	store := &mockTokenStore{
		token: &oauth2.Token{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			Expiry:       time.Now().Add(1 * time.Hour),
			TokenType:    "Bearer",
		},
	}

	client, err := GetAuthenticatedClient(context.Background(), testOAuthConfig("http://127.0.0.1:1/token"), store, failingFlow(t))
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Empty(t, store.savedTokens)
}

func TestGetAuthenticatedClient_ConsoleFlow(t *testing.T) {
	var gotCode string
	server := tokenServer(t, &gotCode)

	store := &mockTokenStore{}
	var out bytes.Buffer
	flow := ConsoleFlow(strings.NewReader("4/abc-code\n"), &out)

	client, err := GetAuthenticatedClient(context.Background(), testOAuthConfig(server.URL), store, flow)
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.Equal(t, "4/abc-code", gotCode)
	require.Len(t, store.savedTokens, 1)
	assert.Equal(t, "new-access-token", store.savedTokens[0].AccessToken)
	assert.Equal(t, "new-refresh-token", store.savedTokens[0].RefreshToken)

	assert.Contains(t, out.String(), "Authorize this app by visiting this url:")
	assert.Contains(t, out.String(), "access_type=offline")
	assert.Contains(t, out.String(), "client_id=test-client-id")
}

func TestGetAuthenticatedClient_UnreadableTokenReauthorizes(t *testing.T) {
	var gotCode string
	server := tokenServer(t, &gotCode)

	store := &mockTokenStore{loadErr: errors.New("corrupt token file")}
	flow := ConsoleFlow(strings.NewReader("code-2\n"), &bytes.Buffer{})

	_, err := GetAuthenticatedClient(context.Background(), testOAuthConfig(server.URL), store, flow)
	require.NoError(t, err)
	assert.Equal(t, "code-2", gotCode)
	assert.Len(t, store.savedTokens, 1)
}

func TestGetAuthenticatedClient_NoCode(t *testing.T) {
	store := &mockTokenStore{}
	flow := ConsoleFlow(strings.NewReader(""), &bytes.Buffer{})

	_, err := GetAuthenticatedClient(context.Background(), testOAuthConfig("http://127.0.0.1:1/token"), store, flow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read authorization code")
	assert.Empty(t, store.savedTokens)
}

func TestGetAuthenticatedClient_ExchangeFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	store := &mockTokenStore{}
	flow := ConsoleFlow(strings.NewReader("bad-code\n"), &bytes.Buffer{})

	_, err := GetAuthenticatedClient(context.Background(), testOAuthConfig(server.URL), store, flow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to exchange authorization code")
	assert.Empty(t, store.savedTokens)
}

func TestLocalServerFlow_ReceivesCode(t *testing.T) {
	oauthConfig := testOAuthConfig("http://127.0.0.1:1/token")
	var out syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := make(chan string, 1)
	go func() {
		code, err := LocalServerFlow(&out, 10*time.Second)(ctx, oauthConfig)
		assert.NoError(t, err)
		result <- code
	}()

	// Wait for the server to come up and publish its redirect URL
	var redirectURL string
	require.Eventually(t, func() bool {
		for _, line := range strings.Split(out.String(), "\n") {
			if strings.HasPrefix(line, "Starting local server on ") {
				redirectURL = strings.TrimPrefix(line, "Starting local server on ")
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get(redirectURL + "/?state=state-token&code=local-code")
	require.NoError(t, err)
	resp.Body.Close()

	select {
	case code := <-result:
		assert.Equal(t, "local-code", code)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for authorization code")
	}
}

func TestFileTokenStore_SaveLoad(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	store := NewFileTokenStore(tokenPath)

	expiry := time.Now().Add(1 * time.Hour)
	token := &oauth2.Token{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		Expiry:       expiry,
		TokenType:    "Bearer",
	}

	require.NoError(t, store.SaveToken(token))

	loaded, err := store.LoadToken()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, token.AccessToken, loaded.AccessToken)
	assert.Equal(t, token.RefreshToken, loaded.RefreshToken)
	assert.True(t, loaded.Expiry.Equal(token.Expiry))
}

func TestFileTokenStore_LoadEmpty(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "nonexistent.json"))

	token, err := store.LoadToken()
	require.NoError(t, err, "LoadToken() should not return an error for non-existent file")
	assert.Nil(t, token)
}

func TestGetAuthenticatedClient_CorruptTokenFile(t *testing.T) {
	var gotCode string
	server := tokenServer(t, &gotCode)
	logs := captureLog(t)

	tokenPath := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(tokenPath, []byte("{not json"), 0600))
	store := NewFileTokenStore(tokenPath)
	flow := ConsoleFlow(strings.NewReader("code-3\n"), &bytes.Buffer{})

	_, err := GetAuthenticatedClient(context.Background(), testOAuthConfig(server.URL), store, flow)
	require.NoError(t, err)
	assert.Equal(t, "code-3", gotCode)
	assert.Contains(t, logs.String(), "cached token is corrupt")
	assert.NotContains(t, logs.String(), "No cached token found")

	loaded, err := store.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "new-access-token", loaded.AccessToken)
}

func TestGetAuthenticatedClient_MissingTokenFile(t *testing.T) {
	var gotCode string
	server := tokenServer(t, &gotCode)
	logs := captureLog(t)

	store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))
	flow := ConsoleFlow(strings.NewReader("code-4\n"), &bytes.Buffer{})

	_, err := GetAuthenticatedClient(context.Background(), testOAuthConfig(server.URL), store, flow)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "No cached token found")
	assert.NotContains(t, logs.String(), "corrupt")
}

func TestFileTokenStore_SaveLogsPath(t *testing.T) {
	logs := captureLog(t)
	tokenPath := filepath.Join(t.TempDir(), "cache", "token.json")

	require.NoError(t, NewFileTokenStore(tokenPath).SaveToken(&oauth2.Token{AccessToken: "a"}))
	assert.Contains(t, logs.String(), "Token stored to "+tokenPath)

	info, err := os.Stat(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileTokenStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"garbage": "{not json",
		"empty":   "{}",
	} {
		t.Run(name, func(t *testing.T) {
			tokenPath := filepath.Join(dir, name+".json")
			require.NoError(t, os.WriteFile(tokenPath, []byte(content), 0600))

			token, err := NewFileTokenStore(tokenPath).LoadToken()
			require.ErrorIs(t, err, ErrCorruptToken)
			assert.Nil(t, token)
		})
	}
}
