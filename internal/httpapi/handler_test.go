package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"routinebot/internal/config"
	"routinebot/internal/profile"
	"routinebot/internal/routine"
	"routinebot/internal/storage"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	h     http.Handler
	store *storage.Memory
}

func newFixture(t *testing.T, opt Options) fixture {
	t.Helper()
	store := storage.NewMemory()
	reg := profile.NewRegistry(store)
	reg.Replace(config.RoutineConfig{Babies: []config.BabyConfig{
		{ID: "ada", Name: "Ada", RuleID: routine.NewbornRuleID},
		{ID: "kit", Name: "Kit", BirthDate: "2025-01-01"},
	}})
	eng := routine.NewEngine(store, reg,
		routine.WithClock(func() time.Time { return testNow }),
		routine.WithLocation(time.UTC),
	)
	return fixture{h: NewHandler(eng, reg, opt), store: store}
}

func (f fixture) do(t *testing.T, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{Token: "secret"})
	if rec := f.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetScheduleToday(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	rec := f.do(t, http.MethodGet, "/v1/babies/ada/schedule", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	v := decode[scheduleView](t, rec)
	if v.Date != "2026-03-01" || v.RuleID != routine.NewbornRuleID || v.Overridden {
		t.Fatalf("view header %+v", v)
	}
	if v.Current == nil || *v.Current != 2 {
		t.Fatalf("current = %v, want 2", v.Current)
	}
	first := v.Items[0]
	if first.StartTime != "07:00" || first.StartMinutes != 420 || first.EndTime != "07:35" || first.Status != routine.StatusPast {
		t.Fatalf("first item %+v", first)
	}
	if v.Items[2].Status != routine.StatusCurrent || v.Items[3].Status != routine.StatusCurrent {
		t.Fatalf("nap statuses %s/%s", v.Items[2].Status, v.Items[3].Status)
	}
}

func TestGetScheduleOtherDateHasNoStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	v := decode[scheduleView](t, f.do(t, http.MethodGet, "/v1/babies/ada/schedule?date=2026-03-05", ""))
	if v.Current != nil || v.Items[0].Status != "" {
		t.Fatalf("statuses on another day: %+v", v)
	}
	v = decode[scheduleView](t, f.do(t, http.MethodGet, "/v1/babies/ada/schedule?date=2026-03-05&now=07:10", ""))
	if v.Current == nil || *v.Current != 0 {
		t.Fatalf("current with now=07:10 = %v", v.Current)
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown baby", http.MethodGet, "/v1/babies/nobody/schedule", "", http.StatusNotFound},
		{"bad date", http.MethodGet, "/v1/babies/ada/schedule?date=03-01-2026", "", http.StatusBadRequest},
		{"bad now", http.MethodGet, "/v1/babies/ada/schedule?now=9am", "", http.StatusBadRequest},
		{"bad order", http.MethodPut, "/v1/babies/ada/schedule/2026-03-01/items/x", `{"start":"08:00","end":"09:00"}`, http.StatusBadRequest},
		{"reversed range", http.MethodPut, "/v1/babies/ada/schedule/2026-03-01/items/1", `{"start":"09:00","end":"08:00"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPut, "/v1/babies/ada/rule", `{"rule":"toddler"}`, http.StatusBadRequest},
		{"unknown rule", http.MethodPut, "/v1/babies/ada/rule", `{"ruleId":"bogus"}`, http.StatusNotFound},
		{"bad wake", http.MethodPut, "/v1/babies/ada/wake", `{"firstWakeTime":"7"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, Options{})
			rec := f.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if body := decode[map[string]string](t, rec); body["error"] == "" {
				t.Fatal("missing error message")
			}
		})
	}
}

func TestAdjustAcrossMidnightExplainsRefusal(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	rec := f.do(t, http.MethodPut, "/v1/babies/ada/schedule/2026-03-01/items/1", `{"start":"23:30","end":"00:00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg := decode[map[string]string](t, rec)["error"]; !strings.Contains(msg, "same day") {
		t.Fatalf("error = %q, want same-day explanation", msg)
	}
}

func TestAdjustThenReset(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	rec := f.do(t, http.MethodPut, "/v1/babies/ada/schedule/2026-03-01/items/1", `{"start":"07:35","end":"08:35"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	id := decode[map[string]string](t, rec)["overrideId"]
	if id == "" {
		t.Fatal("empty override id")
	}

	v := decode[scheduleView](t, f.do(t, http.MethodGet, "/v1/babies/ada/schedule?date=2026-03-01", ""))
	if !v.Overridden || v.OverrideID != id || v.Items[2].StartTime != "08:35" {
		t.Fatalf("after adjust: %+v", v)
	}

	audit := f.store.Audit()
	if len(audit) == 0 || !strings.HasPrefix(audit[len(audit)-1].Actor, "http:") {
		t.Fatalf("audit = %+v", audit)
	}

	rec = f.do(t, http.MethodDelete, "/v1/babies/ada/schedule/2026-03-01", "")
	if got := decode[map[string]bool](t, rec); !got["reset"] {
		t.Fatalf("reset = %v", got)
	}
	rec = f.do(t, http.MethodDelete, "/v1/babies/ada/schedule/2026-03-01", "")
	if got := decode[map[string]bool](t, rec); got["reset"] {
		t.Fatal("second reset reported an override")
	}
}

func TestWakeAndRule(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	if rec := f.do(t, http.MethodPut, "/v1/babies/kit/wake", `{"firstWakeTime":"06:30"}`); rec.Code != http.StatusOK {
		t.Fatalf("wake status = %d body=%s", rec.Code, rec.Body)
	}
	if rec := f.do(t, http.MethodPut, "/v1/babies/kit/rule", `{"ruleId":"toddler"}`); rec.Code != http.StatusOK {
		t.Fatalf("rule status = %d body=%s", rec.Code, rec.Body)
	}
	st, ok, err := f.store.GetBabySettings(context.Background(), "kit")
	if err != nil || !ok || st.FirstWakeTime != "06:30" || st.RuleID != "toddler" {
		t.Fatalf("settings %+v %v %v", st, ok, err)
	}
	v := decode[scheduleView](t, f.do(t, http.MethodGet, "/v1/babies/kit/schedule", ""))
	if v.RuleID != "toddler" || v.Items[0].StartTime != "06:30" {
		t.Fatalf("schedule %+v", v)
	}
}

func TestListEndpoints(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	rules := decode[map[string][]routine.Rule](t, f.do(t, http.MethodGet, "/v1/rules", ""))
	if len(rules["rules"]) != len(routine.Rules()) {
		t.Fatalf("rules = %d", len(rules["rules"]))
	}
	babies := decode[map[string][]babyView](t, f.do(t, http.MethodGet, "/v1/babies", ""))
	if len(babies["babies"]) != 2 || babies["babies"][1].BirthDate != "2025-01-01" {
		t.Fatalf("babies = %+v", babies)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{Token: "secret"})
	if rec := f.do(t, http.MethodGet, "/v1/rules", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/rules", "", "Authorization", "Bearer nope"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/rules", "", "Authorization", "Bearer secret"); rec.Code != http.StatusOK {
		t.Fatalf("good token: %d", rec.Code)
	}
}

func TestPprofMount(t *testing.T) {
	t.Parallel()
	off := newFixture(t, Options{})
	if rec := off.do(t, http.MethodGet, "/debug/pprof/", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("pprof without flag: %d", rec.Code)
	}
	on := newFixture(t, Options{Pprof: true})
	if rec := on.do(t, http.MethodGet, "/debug/pprof/", ""); rec.Code != http.StatusOK {
		t.Fatalf("pprof with flag: %d", rec.Code)
	}
}
