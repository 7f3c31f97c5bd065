package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureSchemaUsesLatestVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/subjects/activity_events-value/versions/latest", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": 7}`))
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL+"/").EnsureSchema(context.Background(), "activity_events-value", activityCreatedSchema)
	require.NoError(t, err)
	require.Equal(t, 7, id)
}

func TestEnsureSchemaRegistersMissingSubject(t *testing.T) {
	var registered map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		require.Equal(t, "/subjects/progress_events-value/versions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&registered))
		_, _ = w.Write([]byte(`{"id": 11}`))
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "progress_events-value", progressRecordedSchema)
	require.NoError(t, err)
	require.Equal(t, 11, id)
	require.Equal(t, "JSON", registered["schemaType"])
}

func TestEnsureSchemaDoesNotRegisterOnServerError(t *testing.T) {
	posts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "activity_events-value", activityCreatedSchema)
	require.ErrorContains(t, err, "status 500")
	require.Zero(t, posts)
}
