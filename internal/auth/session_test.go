package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPSessionVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		switch r.Header.Get("Cookie") {
		case "session=good":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"user":{"id":"user-1"}}`)) // nolint:errcheck
		case "session=nouser":
			w.Write([]byte(`{"user":null}`)) // nolint:errcheck
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	v := NewHTTPSessionVerifier(srv.URL, time.Second)

	tests := []struct {
		name   string
		cookie string
		want   string
	}{
		{"valid session", "session=good", "user-1"},
		{"null user", "session=nouser", ""},
		{"rejected", "session=bad", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.VerifySession(context.Background(), SessionCredentials{Cookie: tt.cookie})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("VerifySession() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPSessionVerifier_ForwardsAuthorization(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"user":{"id":"user-2"}}`)) // nolint:errcheck
	}))
	defer srv.Close()

	v := NewHTTPSessionVerifier(srv.URL, 0)
	got, err := v.VerifySession(context.Background(), SessionCredentials{Authorization: "Bearer abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "user-2" || gotAuth != "Bearer abc" {
		t.Errorf("got user %q auth %q", got, gotAuth)
	}
}

func TestHTTPSessionVerifier_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`)) // nolint:errcheck
	}))
	defer srv.Close()

	v := NewHTTPSessionVerifier(srv.URL, time.Second)
	if _, err := v.VerifySession(context.Background(), SessionCredentials{Cookie: "x"}); err == nil {
		t.Error("expected decode error, got nil")
	}
}

func TestJWTSessionVerifier(t *testing.T) {
	resetSessionSecret()
	t.Setenv("TNT_SESSION_SECRET", "test-session-secret-that-is-32-ch")

	token, err := GenerateSessionJWT("user-7", "u7@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateSessionJWT() error: %v", err)
	}

	v := JWTSessionVerifier{}
	got, err := v.VerifySession(context.Background(), SessionCredentials{Authorization: "Bearer " + token})
	if err != nil || got != "user-7" {
		t.Errorf("VerifySession() = %q, %v; want user-7", got, err)
	}

	got, _ = v.VerifySession(context.Background(), SessionCredentials{Authorization: "Bearer tnt_notajwt"})
	if got != "" {
		t.Errorf("VerifySession() with API token = %q, want empty", got)
	}
}

type countingVerifier struct {
	calls  int32
	userID string
}

func (v *countingVerifier) VerifySession(context.Context, SessionCredentials) (string, error) {
	atomic.AddInt32(&v.calls, 1)
	return v.userID, nil
}

func TestCachingSessionVerifier(t *testing.T) {
	t.Run("caches positive results", func(t *testing.T) {
		next := &countingVerifier{userID: "user-1"}
		v := NewCachingSessionVerifier(next, 8, time.Minute)
		creds := SessionCredentials{Cookie: "session=good"}

		for i := 0; i < 3; i++ {
			if got, _ := v.VerifySession(context.Background(), creds); got != "user-1" {
				t.Fatalf("VerifySession() = %q, want user-1", got)
			}
		}
		if next.calls != 1 {
			t.Errorf("upstream calls = %d, want 1", next.calls)
		}

		v.Purge()
		v.VerifySession(context.Background(), creds) // nolint:errcheck
		if next.calls != 2 {
			t.Errorf("upstream calls after purge = %d, want 2", next.calls)
		}
	})

	t.Run("does not cache negative results", func(t *testing.T) {
		next := &countingVerifier{}
		v := NewCachingSessionVerifier(next, 8, time.Minute)
		creds := SessionCredentials{Cookie: "session=bad"}

		v.VerifySession(context.Background(), creds) // nolint:errcheck
		v.VerifySession(context.Background(), creds) // nolint:errcheck
		if next.calls != 2 {
			t.Errorf("upstream calls = %d, want 2", next.calls)
		}
	})
}

func TestSessionCredentialsEmpty(t *testing.T) {
	if !(SessionCredentials{}).Empty() {
		t.Error("zero credentials should be empty")
	}
	if (SessionCredentials{Cookie: "a"}).Empty() {
		t.Error("credentials with a cookie should not be empty")
	}
}
