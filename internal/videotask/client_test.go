package videotask

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Iron-Ham/image2video/internal/errors"
	"github.com/Iron-Ham/image2video/internal/httpclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]ClientOption{WithHTTPClient(httpclient.New(httpclient.Options{
		WaitMin: time.Millisecond,
		WaitMax: 2 * time.Millisecond,
	}))}, opts...)
	return NewClient(server.URL, opts...)
}

func TestSubmit_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want Bearer tok", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		want := map[string]any{
			"model_name": "kling-v1-6",
			"mode":       "pro",
			"duration":   "10",
			"image":      "https://i.example/a.png",
			"prompt":     "waves",
			"cfg_scale":  0.8,
		}
		for k, v := range want {
			if body[k] != v {
				t.Errorf("body[%s] = %v, want %v", k, body[k], v)
			}
		}

		_, _ = w.Write([]byte(`{"code":0,"message":"SUCCEED","data":{"task_id":"T1","task_status":"submitted"}}`))
	})

	id, err := c.Submit(context.Background(), "tok", "https://i.example/a.png", "waves")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if id != "T1" {
		t.Errorf("Submit() = %q, want T1", id)
	}
}

func TestSubmit_CustomParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body submitRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.ModelName != "kling-v2" || body.Mode != "pro" || body.Duration != "5" {
			t.Errorf("body = %+v", body)
		}
		_, _ = w.Write([]byte(`{"code":0,"data":{"task_id":"T2"}}`))
	}, WithParams(Params{ModelName: "kling-v2", Duration: "5"}))

	if _, err := c.Submit(context.Background(), "tok", "u", "p"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if c.Params().CfgScale != DefaultCfgScale {
		t.Errorf("CfgScale = %v, want default", c.Params().CfgScale)
	}
}

func TestSubmit_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind errors.Kind
	}{
		{"api refusal", 200, `{"code":1201,"message":"invalid image"}`, errors.KindApp},
		{"missing task id", 200, `{"code":0,"data":{}}`, errors.KindApp},
		{"not json", 200, `oops`, errors.KindApp},
		{"unauthorized", 401, `{"code":1000}`, errors.KindTransport},
		{"server error", 500, ``, errors.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Submit(context.Background(), "tok", "u", "p")
			if err == nil {
				t.Fatal("Submit() error = nil, want error")
			}
			if k := errors.KindOf(err); k != tt.wantKind {
				t.Errorf("KindOf(err) = %s, want %s", k, tt.wantKind)
			}
		})
	}
}

func TestTokenIssuer_Claims(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer("ak", "sk", WithTokenClock(func() time.Time { return now }))

	signed, err := issuer.Issue(context.Background())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(signed, claims,
		func(*jwt.Token) (any, error) { return []byte("sk"), nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("ParseWithClaims() error = %v", err)
	}

	if token.Header["typ"] != "JWT" {
		t.Errorf("typ = %v, want JWT", token.Header["typ"])
	}
	if claims.Issuer != "ak" {
		t.Errorf("iss = %q, want ak", claims.Issuer)
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(30 * time.Minute)) {
		t.Errorf("exp = %v, want now+30m", claims.ExpiresAt.Time)
	}
	if !claims.NotBefore.Time.Equal(now.Add(-5 * time.Second)) {
		t.Errorf("nbf = %v, want now-5s", claims.NotBefore.Time)
	}
}

func TestTokenIssuer_WrongSecretRejected(t *testing.T) {
	signed, err := NewTokenIssuer("ak", "sk").Issue(context.Background())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = jwt.Parse(signed, func(*jwt.Token) (any, error) { return []byte("other"), nil })
	if err == nil {
		t.Error("token verified with the wrong secret")
	}
}

func TestTokenIssuer_MissingCredentials(t *testing.T) {
	_, err := NewTokenIssuer("", "").Issue(context.Background())
	if errors.KindOf(err) != errors.KindConfig {
		t.Errorf("KindOf(err) = %s, want config", errors.KindOf(err))
	}
}
