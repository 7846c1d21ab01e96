package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	gormlogger "gorm.io/gorm/logger"

	"github.com/relabs-tech/plantparenthood/core/auth"
	"github.com/relabs-tech/plantparenthood/core/client"
	"github.com/relabs-tech/plantparenthood/core/csql"
	"github.com/relabs-tech/plantparenthood/core/logger"
	"github.com/relabs-tech/plantparenthood/core/model"
	"github.com/relabs-tech/plantparenthood/core/planner"
)

const allowedOrigin = "http://localhost:3000"

var today = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type testBackend struct {
	*Backend
	planner *planner.Planner
	auth    *auth.Service
	client  client.Client
}

func newTestBackend(t *testing.T, configure ...func(*Builder)) *testBackend {
	t.Helper()
	db, err := csql.OpenSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared", gormlogger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	p := planner.New(&planner.Builder{DB: db})
	clock := today
	p.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	require.NoError(t, p.Migrate(context.Background()))

	authService := auth.New(auth.Config{Secret: []byte("test-secret")}, p)
	bb := &Builder{
		Router:         mux.NewRouter(),
		Planner:        p,
		Auth:           authService,
		AllowedOrigins: []string{allowedOrigin, "http://localhost:5173"},
	}
	for _, c := range configure {
		c(bb)
	}
	b := New(bb)
	return &testBackend{
		Backend: b,
		planner: p,
		auth:    authService,
		client:  client.NewWithRouter(b.Handler()),
	}
}

func (tb *testBackend) register(t *testing.T, username, email, password string) (*model.User, client.Client) {
	t.Helper()
	var res TokenResponse
	status, err := tb.client.RawPost("/register", RegisterRequest{Username: username, Email: email, Password: password}, &res)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, res.Token)
	return res.User, tb.client.WithToken(res.Token)
}

func errorOf(t *testing.T, c client.Client, method, path string, body interface{}) (int, string) {
	t.Helper()
	var res ErrorResponse
	status, _, err := c.Do(method, path, body, &res)
	require.NoError(t, err)
	return status, res.Error
}

func TestRegisterAndLogin(t *testing.T) {
	tb := newTestBackend(t)

	alice, _ := tb.register(t, "alice", "a@x.com", "pw1")
	assert.Equal(t, "alice", alice.Username)

	status, kind := errorOf(t, tb.client, http.MethodPost, "/register", RegisterRequest{Username: "alice", Email: "other@x.com", Password: "pw1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "username_taken", kind)

	status, kind = errorOf(t, tb.client, http.MethodPost, "/register", RegisterRequest{Username: "alicia", Email: "a@x.com", Password: "pw1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "email_taken", kind)

	var login TokenResponse
	status, err := tb.client.RawPost("/login", LoginRequest{Username: "alice", Password: "pw1"}, &login)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, alice.ID, login.User.ID)

	var check CheckAuthResponse
	_, err = tb.client.WithToken(login.Token).RawGet("/check-auth", &check)
	require.NoError(t, err)
	assert.True(t, check.Authenticated)
	assert.Equal(t, "alice", check.User.Username)

	status, kind = errorOf(t, tb.client, http.MethodPost, "/login", LoginRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_credentials", kind)

	var message MessageResponse
	status, err = tb.client.WithToken(login.Token).RawPost("/logout", []byte(`{}`), &message)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, message.Message)
}

func TestRegister_Validation(t *testing.T) {
	tb := newTestBackend(t)

	for _, body := range []string{
		`{"username":"alice","password":"pw1"}`,
		`{"username":"alice","email":"not-an-email","password":"pw1"}`,
		`{"username":"","email":"a@x.com","password":"pw1"}`,
		`{"username":"alice","email":"a@x.com"}`,
		`{"username":"` + strings.Repeat("a", 31) + `","email":"a@x.com","password":"pw1"}`,
		`not json`,
		``,
	} {
		status, kind := errorOf(t, tb.client, http.MethodPost, "/register", []byte(body))
		assert.Equal(t, http.StatusBadRequest, status, body)
		assert.Equal(t, "validation_error", kind, body)
	}
}

func TestAuthErrors(t *testing.T) {
	tb := newTestBackend(t)
	alice, _ := tb.register(t, "alice", "a@x.com", "pw1")

	status, kind := errorOf(t, tb.client, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "auth_missing", kind)

	status, kind = errorOf(t, tb.client.WithToken("garbage"), http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "auth_malformed", kind)

	other := auth.New(auth.Config{Secret: []byte("another-secret")}, nil)
	forged, err := other.IssueToken(alice.ID)
	require.NoError(t, err)
	status, kind = errorOf(t, tb.client.WithToken(forged), http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "auth_invalid_signature", kind)

	tb.auth.Now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	expired, err := tb.auth.IssueToken(alice.ID)
	require.NoError(t, err)
	tb.auth.Now = time.Now
	status, kind = errorOf(t, tb.client.WithToken(expired), http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "auth_expired", kind)

	ghost, err := tb.auth.IssueToken(uuid.New())
	require.NoError(t, err)
	status, kind = errorOf(t, tb.client.WithToken(ghost), http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "auth_unknown_user", kind)

	// public routes ignore the missing token
	status, err = tb.client.RawGet("/species", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

// alice registers, creates a species and a plant, logs a care event and checks her
// dashboard. bob may neither delete nor read her plant.
func TestPlantScenario(t *testing.T) {
	tb := newTestBackend(t)
	alice, aliceClient := tb.register(t, "alice", "a@x.com", "pw1")
	_, bobClient := tb.register(t, "bob", "b@x.com", "pw2")

	var species model.Species
	status, err := aliceClient.RawPost("/species", SpeciesRequest{
		CommonName: "Snake Plant", ScientificName: "Dracaena trifasciata", WateringFrequency: "Every 2-3 weeks",
	}, &species)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)

	status, kind := errorOf(t, aliceClient, http.MethodPost, "/species", SpeciesRequest{CommonName: "Other", ScientificName: "Dracaena trifasciata"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "scientific_name_taken", kind)

	var plant model.Plant
	status, err = aliceClient.RawPost("/plants", map[string]string{"nickname": "Snakey", "species_id": species.ID.String()}, &plant)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.True(t, plant.HasOwner(alice.ID))
	require.NotNil(t, plant.Species)
	assert.Equal(t, "Snake Plant", plant.Species.CommonName)

	var read model.Plant
	_, err = aliceClient.RawGet("/plants/"+plant.ID.String(), &read)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{alice.ID}, read.OwnerIDs())

	status, kind = errorOf(t, bobClient, http.MethodDelete, "/plants/"+plant.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", kind)
	status, _ = errorOf(t, bobClient, http.MethodGet, "/plants/"+plant.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, status)

	var event model.CareEvent
	status, err = aliceClient.RawPost("/plants/"+plant.ID.String()+"/care_events", map[string]string{
		"event_type": "watering",
		"event_date": "1999-12-31",
	}, &event)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "2024-03-01", event.EventDate.String())
	assert.Equal(t, alice.ID, event.UserID)

	var dashboard planner.Dashboard
	_, err = aliceClient.RawGet("/dashboard", &dashboard)
	require.NoError(t, err)
	require.Len(t, dashboard.Plants, 1)
	assert.Equal(t, "Snakey", dashboard.Plants[0].Nickname)
	require.NotNil(t, dashboard.Plants[0].LastCareType)
	assert.Equal(t, "watering", *dashboard.Plants[0].LastCareType)
	assert.Equal(t, "2024-03-01", dashboard.Plants[0].LastCareDate.String())

	var viaUser planner.Dashboard
	_, err = aliceClient.RawGet("/users/"+alice.ID.String()+"/dashboard", &viaUser)
	require.NoError(t, err)
	assert.Equal(t, dashboard.Plants[0].ID, viaUser.Plants[0].ID)

	// bob's view of alice
	status, _ = errorOf(t, bobClient, http.MethodGet, "/users/"+alice.ID.String()+"/dashboard", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = errorOf(t, bobClient, http.MethodGet, "/users/"+alice.ID.String()+"/plants", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = errorOf(t, bobClient, http.MethodGet, "/users/"+alice.ID.String()+"/care_events", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = errorOf(t, bobClient, http.MethodGet, "/care_events/"+event.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = errorOf(t, bobClient, http.MethodGet, "/plants?user_id="+alice.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = errorOf(t, bobClient, http.MethodPost, "/plants", map[string]string{
		"nickname": "Stolen", "species_id": species.ID.String(), "user_id": alice.ID.String(),
	})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = errorOf(t, bobClient, http.MethodPost, "/plants/"+plant.ID.String()+"/care_events", map[string]string{
		"event_type": "watering", "user_id": alice.ID.String(),
	})
	assert.Equal(t, http.StatusForbidden, status)

	var profile model.User
	_, err = bobClient.RawGet("/users/"+alice.ID.String(), &profile)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)

	var bobPlants []model.Plant
	_, err = bobClient.RawGet("/plants", &bobPlants)
	require.NoError(t, err)
	assert.Empty(t, bobPlants)

	var history []model.CareEvent
	_, err = aliceClient.RawGet("/users/"+alice.ID.String()+"/care_events", &history)
	require.NoError(t, err)
	require.Len(t, history, 1)
	_, err = aliceClient.RawGet("/plants/"+plant.ID.String()+"/care_events", &history)
	require.NoError(t, err)
	require.Len(t, history, 1)

	status, err = aliceClient.RawDelete("/plants/" + plant.ID.String())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	status, kind = errorOf(t, aliceClient, http.MethodGet, "/care_events/"+event.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "care_event_not_found", kind)
	status, kind = errorOf(t, bobClient, http.MethodDelete, "/plants/"+plant.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "plant_not_found", kind)
}

func TestNotFoundAndMalformedIDs(t *testing.T) {
	tb := newTestBackend(t)
	_, aliceClient := tb.register(t, "alice", "a@x.com", "pw1")

	status, kind := errorOf(t, aliceClient, http.MethodGet, "/plants/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "plant_not_found", kind)

	status, kind = errorOf(t, aliceClient, http.MethodGet, "/plants/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", kind)

	status, kind = errorOf(t, tb.client, http.MethodGet, "/species/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "species_not_found", kind)

	status, kind = errorOf(t, tb.client, http.MethodGet, "/users/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "user_not_found", kind)

	status, kind = errorOf(t, aliceClient, http.MethodPost, "/plants", map[string]string{"nickname": "Ghost", "species_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "species_not_found", kind)

	status, kind = errorOf(t, aliceClient, http.MethodPost, "/plants", map[string]string{"nickname": "Ghost", "species_id": "bad"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", kind)

	status, kind = errorOf(t, aliceClient, http.MethodPost, "/plants/"+uuid.NewString()+"/care_events", map[string]string{"event_type": "watering"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "plant_not_found", kind)
}

func TestCORS(t *testing.T) {
	tb := newTestBackend(t)

	status, header, err := tb.client.WithHeader("Origin", allowedOrigin).
		WithHeader("Access-Control-Request-Method", http.MethodPost).
		Do(http.MethodOptions, "/plants", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, allowedOrigin, header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, header.Values("Vary"), "Origin")

	var species []model.Species
	status, header, err = tb.client.WithHeader("Origin", allowedOrigin).Do(http.MethodGet, "/species", nil, &species)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, allowedOrigin, header.Get("Access-Control-Allow-Origin"))

	status, kind := errorOf(t, tb.client.WithHeader("Origin", "http://evil.example.com"), http.MethodGet, "/species", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "cors_forbidden", kind)

	status, header, err = tb.client.Do(http.MethodGet, "/species", nil, &species)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, header.Get("Access-Control-Allow-Origin"))
}

func TestLoginRateLimit(t *testing.T) {
	tb := newTestBackend(t, func(bb *Builder) {
		bb.LoginRate = rate.Every(time.Hour)
		bb.LoginBurst = 2
	})

	body := LoginRequest{Username: "nobody", Password: "pw"}
	status, _ := errorOf(t, tb.client, http.MethodPost, "/login", body)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = errorOf(t, tb.client, http.MethodPost, "/login", body)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, kind := errorOf(t, tb.client, http.MethodPost, "/login", body)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", kind)

	// other routes are not limited
	status, err := tb.client.RawGet("/species", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func loginFrom(h http.Handler, forwardedFor string) int {
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"nobody","password":"pw"}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w.Code
}

func TestLoginRateLimit_ForwardedFor(t *testing.T) {
	tb := newTestBackend(t, func(bb *Builder) {
		bb.LoginRate = rate.Every(time.Hour)
		bb.LoginBurst = 2
	})
	h := tb.Handler()

	// the client is not a trusted proxy, rotating the header does not help
	for i := 0; i < 5; i++ {
		status := loginFrom(h, fmt.Sprintf("1.2.3.%d", i))
		if i < 2 {
			assert.Equal(t, http.StatusUnauthorized, status, "attempt %d", i)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, status, "attempt %d", i)
		}
	}
}

func TestLoginRateLimit_TrustedProxy(t *testing.T) {
	tb := newTestBackend(t, func(bb *Builder) {
		bb.LoginRate = rate.Every(time.Hour)
		bb.LoginBurst = 2
		bb.TrustedProxies = []string{"192.0.2.0/24", "10.1.2.3"}
	})
	h := tb.Handler()

	// httptest requests come from 192.0.2.1, so each forwarded client has its own limit
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, loginFrom(h, fmt.Sprintf("1.2.3.%d", i)), "client %d", i)
	}
	assert.Equal(t, http.StatusUnauthorized, loginFrom(h, "1.2.3.0"))
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(h, "1.2.3.0"))

	assert.True(t, tb.isTrustedProxy("10.1.2.3:4567"))
	assert.False(t, tb.isTrustedProxy("10.1.2.4:4567"))
	assert.False(t, tb.isTrustedProxy("garbage"))
}

func TestNew_InvalidTrustedProxy(t *testing.T) {
	assert.Panics(t, func() {
		newTestBackend(t, func(bb *Builder) {
			bb.TrustedProxies = []string{"not-a-network"}
		})
	})
}

func TestMetricsAndRequestID(t *testing.T) {
	tb := newTestBackend(t)

	requestID := uuid.NewString()
	var version VersionResponse
	status, header, err := tb.client.WithHeader(logger.RequestIDHeader, requestID).Do(http.MethodGet, "/version", nil, &version)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, requestID, header.Get(logger.RequestIDHeader))

	var metrics []byte
	_, err = tb.client.RawGet("/metrics", &metrics)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `plantparenthood_http_requests_total{method="GET",route="/version",status="200"} 1`)
}
