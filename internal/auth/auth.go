package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenStore is an interface for saving and loading OAuth tokens.
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
}

// AuthFlow obtains an authorization code from the user.
type AuthFlow func(ctx context.Context, oauthConfig *oauth2.Config) (string, error)

// autoSaveTokenSource wraps an oauth2.TokenSource and automatically saves refreshed tokens.
type autoSaveTokenSource struct {
	source     oauth2.TokenSource
	tokenStore TokenStore
	lastToken  *oauth2.Token
}

// Token implements oauth2.TokenSource and saves the token if it was refreshed.
func (a *autoSaveTokenSource) Token() (*oauth2.Token, error) {
	token, err := a.source.Token()
	if err != nil {
		return nil, err
	}

	// Check if the token was refreshed by comparing access tokens
	if a.lastToken == nil || a.lastToken.AccessToken != token.AccessToken {
		if err := a.tokenStore.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		a.lastToken = token
	}

	return token, nil
}

// ConsoleFlow prints the authorization URL to out and reads the code the user
// pastes back from in.
func ConsoleFlow(in io.Reader, out io.Writer) AuthFlow {
	return func(ctx context.Context, oauthConfig *oauth2.Config) (string, error) {
		authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

		fmt.Fprintln(out, "Authorize this app by visiting this url:")
		fmt.Fprintln(out, authURL)
		fmt.Fprint(out, "Enter the code from that page here: ")

		var code string
		if _, err := fmt.Fscanln(in, &code); err != nil {
			return "", fmt.Errorf("failed to read authorization code: %w", err)
		}

		code = strings.TrimSpace(code)
		if code == "" {
			return "", fmt.Errorf("no authorization code received")
		}
		return code, nil
	}
}

// LocalServerFlow starts a loopback HTTP server, points the redirect URL at it
// and waits up to timeout for the browser to deliver the code.
func LocalServerFlow(out io.Writer, timeout time.Duration) AuthFlow {
	return func(ctx context.Context, oauthConfig *oauth2.Config) (string, error) {
		redirectURL, codeChan, errorChan, err := startLocalServer()
		if err != nil {
			return "", err
		}

		oauthConfig.RedirectURL = redirectURL
		authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

		fmt.Fprintf(out, "Starting local server on %s\n", redirectURL)
		if redirectURL != "http://127.0.0.1:8080" {
			fmt.Fprintf(out, "Note: Port 8080 was unavailable. Make sure to add %s to your authorized redirect URIs in Google Cloud Console.\n", redirectURL)
		}
		fmt.Fprintln(out, "\nPlease visit the following URL to authorize the application:")
		fmt.Fprintln(out, authURL)
		fmt.Fprintln(out, "\nWaiting for authorization...")

		select {
		case code := <-codeChan:
			return code, nil
		case err := <-errorChan:
			return "", fmt.Errorf("failed to receive authorization code: %w", err)
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(timeout):
			return "", fmt.Errorf("authorization timeout: no response received within %v", timeout)
		}
	}
}

// startLocalServer starts a local HTTP server to receive the OAuth callback.
// Returns the redirect URL, a channel for the authorization code, and a channel for errors.
// Uses port 8080 by default, or a random port if 8080 is unavailable.
func startLocalServer() (string, <-chan string, <-chan error, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:8080")
	if err != nil {
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to start local server: %w", err)
		}
	}

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	server := &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  10 * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code != "" {
			fmt.Fprintf(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
			select {
			case codeChan <- code:
			default:
			}
		} else {
			errMsg := r.URL.Query().Get("error")
			if errMsg == "" {
				errMsg = "no authorization code received"
			}
			fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", errMsg)
			select {
			case errorChan <- fmt.Errorf("authorization error: %s", errMsg):
			default:
			}
		}
		go func() {
			time.Sleep(1 * time.Second)
			server.Shutdown(context.Background())
		}()
	})
	server.Handler = mux

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case errorChan <- fmt.Errorf("server error: %w", err):
			default:
			}
		}
	}()

	return redirectURL, codeChan, errorChan, nil
}

// GetAuthenticatedClient returns an authenticated HTTP client using OAuth 2.0.
// A cached token is reused; otherwise flow is run to obtain a code, which is
// exchanged and saved for future runs.
func GetAuthenticatedClient(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, flow AuthFlow) (*http.Client, error) {
	token, err := tokenStore.LoadToken()
	switch {
	case errors.Is(err, ErrCorruptToken):
		log.Printf("Warning: cached token is corrupt, authorizing again: %v", err)
		token = nil
	case err != nil:
		log.Printf("Warning: ignoring unreadable cached token: %v", err)
		token = nil
	case token == nil:
		log.Println("No cached token found, authorization required.")
	}

	if token == nil {
		code, err := flow(ctx, oauthConfig)
		if err != nil {
			return nil, err
		}

		token, err = oauthConfig.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
		}

		if err := tokenStore.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save token: %w", err)
		}

		log.Println("Authorization successful.")
	}

	tokenSource := oauthConfig.TokenSource(ctx, token)

	// Wrap the token source to auto-save refreshed tokens
	autoSaveSource := &autoSaveTokenSource{
		source:     oauth2.ReuseTokenSource(token, tokenSource),
		tokenStore: tokenStore,
		lastToken:  token,
	}

	return oauth2.NewClient(ctx, autoSaveSource), nil
}
