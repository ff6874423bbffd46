package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"

	"cctv-checklist/internal/app"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRejectsMissingFieldsBeforeNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	for _, m := range []Message{
		{Subject: "s", HTML: "h"},
		{To: "a@b.c", HTML: "h"},
		{To: "a@b.c", Subject: "s", HTML: "  "},
	} {
		require.ErrorIs(t, c.Send(context.Background(), m), ErrMissingField)
	}
	require.Zero(t, atomic.LoadInt32(&hits))
}

func TestSendSuccess(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, SendPath, r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"message":"Email sent successfully"}`))
	}))
	defer srv.Close()

	msg := Message{To: "ops@example.org", Subject: "Чек-лист", HTML: "<h2>x</h2>"}
	require.NoError(t, NewHTTPClient(srv.URL+"/", nil).Send(context.Background(), msg))
	require.Equal(t, msg, got)
}

func TestSendErrorNormalization(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error field", 500, `{"error":"SMTP timeout"}`, "SMTP timeout"},
		{"non json body", 502, `<html>bad gateway</html>`, "HTTP error! status: 502"},
		{"success false with error", 200, `{"success":false,"error":"quota"}`, "quota"},
		{"success false bare", 200, `{"success":false}`, "Failed to send email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			err := NewHTTPClient(srv.URL, nil).Send(context.Background(), Message{To: "a@b.c", Subject: "s", HTML: "h"})
			var de *Error
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, tc.want, de.Message)
		})
	}
}

type sentMail struct {
	addr string
	from string
	to   []string
	body string
}

func relayWith(t *testing.T, fail error) (*SMTPRelay, *sentMail) {
	t.Helper()
	var sent sentMail
	cfg := app.SMTPConfig{Host: "smtp.example.org", Port: 587, User: "bot@example.org", Pass: "pw"}
	r := NewSMTPRelay(cfg, nil).WithMailFunc(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		if fail != nil {
			return fail
		}
		sent = sentMail{addr: addr, from: from, to: to, body: string(msg)}
		return nil
	})
	return r, &sent
}

func TestRelaySemantics(t *testing.T) {
	relay, sent := relayWith(t, nil)

	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, SendPath, nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	relay.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, SendPath, strings.NewReader(`{"to":"a@b.c"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Missing required fields: to, subject, html")

	rec = httptest.NewRecorder()
	body := `{"to":"ops@example.org","subject":"Чек-лист системи відеоспостереження - АЗС","html":"<h2>x</h2>"}`
	relay.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, SendPath, strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true,"message":"Email sent successfully"}`, rec.Body.String())

	require.Equal(t, "smtp.example.org:587", sent.addr)
	require.Equal(t, "bot@example.org", sent.from)
	require.Equal(t, []string{"ops@example.org"}, sent.to)
	require.Contains(t, sent.body, "Content-Type: text/html; charset=UTF-8")
	require.Contains(t, sent.body, "Subject: =?utf-8?b?")
}

func TestRelayFailureReportsDetails(t *testing.T) {
	relay, _ := relayWith(t, errors.New("SMTP timeout"))
	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, SendPath,
		strings.NewReader(`{"to":"a@b.c","subject":"s","html":"h"}`)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Failed to send email","details":"SMTP timeout"}`, rec.Body.String())
}

func TestClientAgainstRelay(t *testing.T) {
	relay, _ := relayWith(t, errors.New("SMTP timeout"))
	mux := http.NewServeMux()
	mux.Handle(SendPath, relay)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	err := NewHTTPClient(srv.URL, nil).Send(context.Background(), Message{To: "a@b.c", Subject: "s", HTML: "h"})
	var de *Error
	require.True(t, errors.As(err, &de))
	require.Equal(t, "Failed to send email", de.Message)
	require.Equal(t, "SMTP timeout", de.Details)
	require.Equal(t, "Failed to send email: SMTP timeout", err.Error())
}

func TestRelayUnconfigured(t *testing.T) {
	relay := NewSMTPRelay(app.SMTPConfig{}, nil)
	require.Error(t, relay.Deliver(Message{To: "a@b.c", Subject: "s", HTML: "h"}))
}

func TestRelayAsSender(t *testing.T) {
	relay, sent := relayWith(t, nil)
	var s Sender = relay
	require.NoError(t, s.Send(context.Background(), Message{To: "a@b.c, d@e.f", Subject: "s", HTML: "h"}))
	require.Equal(t, []string{"a@b.c", "d@e.f"}, sent.to)

	failing, _ := relayWith(t, errors.New("SMTP timeout"))
	err := failing.Send(context.Background(), Message{To: "a@b.c", Subject: "s", HTML: "h"})
	var de *Error
	require.True(t, errors.As(err, &de))
	require.Equal(t, "SMTP timeout", de.Details)
}
