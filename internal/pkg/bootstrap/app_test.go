package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func denyAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
}

func TestNewRootHandler(t *testing.T) {
	api := http.NewServeMux()
	api.HandleFunc("GET /orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := NewRootHandler("fulfillment-test", api, denyAll)

	cases := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/orders/o-1", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, tc.path)
	}
}

func TestNewRootHandler_WithoutMiddleware(t *testing.T) {
	api := http.NewServeMux()
	api.HandleFunc("GET /orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	NewRootHandler("fulfillment-test", api, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/o-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplyRemoteConfig(t *testing.T) {
	original := GetCurrentConfig()
	t.Cleanup(func() { setCurrentConfig(original) })

	base, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	setCurrentConfig(base)

	require.NoError(t, ApplyRemoteConfig("app: {feature_flags: {enable_coupon_rules: false}}"))
	assert.False(t, GetCurrentConfig().App.FeatureFlags.EnableCouponRules)
	assert.Equal(t, 9090, GetCurrentConfig().App.Port)

	assert.Error(t, ApplyRemoteConfig("auth: {jwt_secret: ''}"))
	assert.False(t, GetCurrentConfig().App.FeatureFlags.EnableCouponRules, "invalid config is not applied")
}
