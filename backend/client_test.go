package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"plancosmique/models"
)

func TestCreateConsultationSendsIdempotencyKey(t *testing.T) {
	var gotKey, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"consultationId":"cons-42"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	id, err := client.CreateConsultation(context.Background(), models.CreateConsultationPayload{
		UserID:   "user-1",
		ChoiceID: "theme-astral-complet",
	}, "key-abc")
	if err != nil {
		t.Fatalf("CreateConsultation: %v", err)
	}
	if id != "cons-42" {
		t.Errorf("expected consultation id cons-42, got %q", id)
	}
	if gotKey != "key-abc" {
		t.Errorf("expected Idempotency-Key header key-abc, got %q", gotKey)
	}
	if gotPath != "/api/consultations" {
		t.Errorf("unexpected path %q", gotPath)
	}
}

func TestCreateConsultationRejectsMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.CreateConsultation(context.Background(), models.CreateConsultationPayload{}, "k"); err == nil {
		t.Fatal("expected error when the backend returns no identifier")
	}
}

func TestFetchConsultationNormalizesAliases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"consultationId":"cons-7","statut":"pending_payment"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	consultation, err := client.FetchConsultation(context.Background(), "cons-7")
	if err != nil {
		t.Fatalf("FetchConsultation: %v", err)
	}
	if consultation.ID != "cons-7" {
		t.Errorf("expected id cons-7, got %q", consultation.ID)
	}
	if consultation.Status != "pending_payment" {
		t.Errorf("expected status pending_payment, got %q", consultation.Status)
	}
}

func TestBackendMessageTravelsVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"Ce paiement a déjà été traité"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.VerifyPayment(context.Background(), "tok-1")
	if err == nil {
		t.Fatal("expected error on 409")
	}
	if got := BackendMessage(err, "fallback"); got != "Ce paiement a déjà été traité" {
		t.Errorf("expected verbatim backend message, got %q", got)
	}
}

func TestBackendMessageFallsBackOnRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.VerifyPayment(context.Background(), "tok-1")
	if err == nil {
		t.Fatal("expected error on 502")
	}
	if got := BackendMessage(err, "fallback"); got != "upstream exploded" {
		t.Errorf("expected raw body as message, got %q", got)
	}
}

func TestConsumeOfferingsPostsConsultationID(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.ConsumeOfferings(context.Background(), "cons-9", []models.RequiredOffering{
		{OfferingID: "bougie-blanche", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("ConsumeOfferings: %v", err)
	}
	for _, want := range []string{`"cons-9"`, `"bougie-blanche"`} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("request body %q missing %s", gotBody, want)
		}
	}
}

func TestOpenAnalysisProgressStreamSetsAcceptHeader(t *testing.T) {
	var gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"progress\":10}\n\n"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	body, err := client.OpenAnalysisProgressStream(context.Background(), "cons-3")
	if err != nil {
		t.Fatalf("OpenAnalysisProgressStream: %v", err)
	}
	body.Close()
	if gotAccept != "text/event-stream" {
		t.Errorf("expected Accept: text/event-stream, got %q", gotAccept)
	}
}
