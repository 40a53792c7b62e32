package graphql

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dining-menu-sync/internal/normalize"
)

const wileyResponse = `{"data":{"diningCourtByName":{"name":"Wiley","dailyMenu":{"meals":[
 {"name":"Lunch","startTime":"2025-12-04T11:00:00-05:00","endTime":"2025-12-04T14:00:00-05:00",
  "stations":[{"name":"Grill","items":[{"item":{"name":"Spicy Buffalo Chicken Sandwich"}},{"item":null}]}]}
]}}}}`

func TestFetchMenuSendsQueryAndHeaders(t *testing.T) {
	t.Parallel()
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "https://origin.test", r.Header.Get("Origin"))
		assert.Equal(t, DefaultReferer, r.Header.Get("Referer"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, wileyResponse)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Origin: "https://origin.test"}, nil)
	payload, raw, err := c.FetchMenu(context.Background(), "Wiley", "2025-12-04")
	require.NoError(t, err)
	assert.JSONEq(t, wileyResponse, string(raw))

	assert.Equal(t, "getLocationMenu", got.OperationName)
	assert.Equal(t, "Wiley", got.Variables["name"])
	assert.Equal(t, "2025-12-04", got.Variables["date"])
	assert.Contains(t, got.Query, "diningCourtByName")

	obs := normalize.Flatten(payload)
	require.Len(t, obs, 1)
	assert.Equal(t, "Spicy Buffalo Chicken Sandwich", obs[0].Name)
	assert.Equal(t, "Grill", obs[0].Station)
	require.NotNil(t, obs[0].Meal.StartTime)
	assert.Equal(t, "11:00", *obs[0].Meal.StartTime)
}

func TestFetchMenuMissingCourt(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"diningCourtByName":null}}`)
	}))
	defer srv.Close()

	payload, _, err := New(Config{Endpoint: srv.URL}, nil).FetchMenu(context.Background(), "Nowhere", "2025-12-04")
	require.NoError(t, err)
	assert.Empty(t, normalize.Flatten(payload))
}

func TestFetchMenuErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "server error", status: http.StatusBadGateway, body: `oops`, wantErr: "unexpected status 502"},
		{name: "bad json", status: http.StatusOK, body: `<html>`, wantErr: "decode menu"},
		{name: "graphql errors", status: http.StatusOK, body: `{"errors":[{"message":"bad date"}]}`, wantErr: "bad date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()
			_, _, err := New(Config{Endpoint: srv.URL}, nil).FetchMenu(context.Background(), "Wiley", "2025-12-04")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFetchMenuTimeout(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()
	_, _, err := New(Config{Endpoint: srv.URL, Timeout: 50 * time.Millisecond}, nil).
		FetchMenu(context.Background(), "Wiley", "2025-12-04")
	assert.Error(t, err)
}
