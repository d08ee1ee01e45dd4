package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaRegistryReturnsExistingSubject(t *testing.T) {
	var registered bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/subjects/candidate_events-value/versions/latest":
			_ = json.NewEncoder(w).Encode(map[string]int{"id": 7})
		default:
			registered = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL+"/", nil)
	id, err := client.EnsureSchema(context.Background(), "candidate_events-value", candidateCreatedSchema)
	require.NoError(t, err)
	require.Equal(t, 7, id)
	require.False(t, registered)
}

func TestSchemaRegistryRegistersMissingSubject(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPost:
			require.Equal(t, "/subjects/interview_feedback-value/versions", r.URL.Path)
			require.Equal(t, "application/vnd.schemaregistry.v1+json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_ = json.NewEncoder(w).Encode(map[string]int{"id": 12})
		}
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL, srv.Client())
	id, err := client.EnsureSchema(context.Background(), "interview_feedback-value", feedbackSubmittedSchema)
	require.NoError(t, err)
	require.Equal(t, 12, id)
	require.Equal(t, "JSON", body["schemaType"])
	require.JSONEq(t, feedbackSubmittedSchema, body["schema"])
}

func TestSchemaRegistrySurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL, nil)
	_, err := client.EnsureSchema(context.Background(), "candidate_events-value", candidateCreatedSchema)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrSubjectNotFound)
	require.Contains(t, err.Error(), "status=503")
}
