package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintra/credvault/logger"
)

func TestHTTPProber_StatusClassification(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		wantValid  bool
		wantReject bool
	}{
		{"accepted", http.StatusOK, true, false},
		{"unauthorized", http.StatusUnauthorized, false, true},
		{"forbidden", http.StatusForbidden, false, true},
		{"not found", http.StatusNotFound, false, true},
		{"rate limited", http.StatusTooManyRequests, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			p, err := NewHTTPProber(logger.NewNopLogger(), HTTPProberConfig{
				Provider:        "test",
				Endpoint:        srv.URL,
				ProbesPerSecond: 1000,
			})
			require.NoError(t, err)

			probeErr := p.Probe(context.Background(), "secret")
			if tc.wantValid {
				assert.NoError(t, probeErr)
				return
			}
			require.Error(t, probeErr)

			var verr *ValidationError
			if tc.wantReject {
				assert.ErrorAs(t, probeErr, &verr)
			} else {
				assert.False(t, errorAsValidation(probeErr))
			}
		})
	}
}

func errorAsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

func TestHTTPProber_RequiresProviderAndEndpoint(t *testing.T) {
	_, err := NewHTTPProber(logger.NewNopLogger(), HTTPProberConfig{Provider: "x"})
	require.Error(t, err)

	_, err = NewHTTPProber(logger.NewNopLogger(), HTTPProberConfig{Endpoint: "http://example"})
	require.Error(t, err)
}

func TestHTTPProber_Unreachable(t *testing.T) {
	p, err := NewHTTPProber(logger.NewNopLogger(), HTTPProberConfig{
		Provider:        "test",
		Endpoint:        "http://127.0.0.1:1", // nothing listens here
		ProbesPerSecond: 1000,
	})
	require.NoError(t, err)

	probeErr := p.Probe(context.Background(), "secret")
	require.Error(t, probeErr)
	assert.Contains(t, probeErr.Error(), "unreachable")
}

func TestMonobankProber_SendsTokenHeader(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Token")
		if gotToken != "valid-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewMonobankProber(logger.NewNopLogger(), srv.URL)
	require.NoError(t, err)

	require.NoError(t, p.Probe(context.Background(), "valid-token"))
	assert.Equal(t, "valid-token", gotToken)

	probeErr := p.Probe(context.Background(), "wrong-token")
	var verr *ValidationError
	assert.ErrorAs(t, probeErr, &verr)
}

func TestBinanceProber_UsesKeyHalf(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-MBX-APIKEY")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewBinanceProber(logger.NewNopLogger(), srv.URL)
	require.NoError(t, err)

	require.NoError(t, p.Probe(context.Background(), "api-key:api-secret"))
	assert.Equal(t, "api-key", gotKey)
}

func TestAlphaVantageProber_BodyClassification(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		wantValid  bool
		wantReject bool
	}{
		{"quote returned", `{"Global Quote":{"01. symbol":"IBM"}}`, true, false},
		{"bad key", `{"Error Message":"the parameter apikey is invalid"}`, false, true},
		{"throttled", `{"Note":"please consider your API call frequency"}`, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p, err := NewAlphaVantageProber(logger.NewNopLogger(), srv.URL)
			require.NoError(t, err)

			probeErr := p.Probe(context.Background(), "the-key")
			if tc.wantValid {
				assert.NoError(t, probeErr)
				return
			}
			require.Error(t, probeErr)

			var verr *ValidationError
			if tc.wantReject {
				assert.ErrorAs(t, probeErr, &verr)
			} else {
				assert.False(t, errorAsValidation(probeErr))
			}
		})
	}
}

func TestAlphaVantageProber_SecretInQuery(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("apikey")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p, err := NewAlphaVantageProber(logger.NewNopLogger(), srv.URL)
	require.NoError(t, err)

	require.NoError(t, p.Probe(context.Background(), "abc123XYZ999"))
	assert.Equal(t, "abc123XYZ999", gotKey)
}

func TestAlphaVantageProber_SecretWithQueryMetacharacters(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("apikey")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p, err := NewAlphaVantageProber(logger.NewNopLogger(), srv.URL)
	require.NoError(t, err)

	// Unescaped, any of these would corrupt the query string
	secret := "ab&c d#ef+g=h"
	require.NoError(t, p.Probe(context.Background(), secret))
	assert.Equal(t, secret, gotKey)
}
