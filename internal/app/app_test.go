package app

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"routinebot/internal/config"
	"routinebot/internal/jobs"
	"routinebot/internal/routine"
)

const testConfig = `
telegram:
  token: ""
logging:
  level: error
  console: false
http:
  enabled: true
  addr: "127.0.0.1:0"
scheduler:
  enabled: true
  timezone: UTC
  prune_cron: "@every 1h"
  digest_time: "06:00"
storage:
  driver: memory
routine:
  locale: id
  labels:
    id-ID:
      eat: Menyusu
  babies:
    - id: ada
      name: Ada
      rule_id: newborn
`

func newTestApp(t *testing.T) *App {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	a, err := NewApp(path)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return a
}

func TestNewAppWithoutTelegram(t *testing.T) {
	a := newTestApp(t)
	if a.adapter != nil || a.bot != nil {
		t.Fatal("telegram front end should be disabled without a token")
	}
	if got := a.engine.Location(); got != time.UTC {
		t.Fatalf("engine location = %v, want UTC", got)
	}
	day, err := a.engine.DaySchedule(context.Background(), "ada", "2026-03-01")
	if err != nil {
		t.Fatalf("DaySchedule: %v", err)
	}
	if len(day.Items) == 0 || day.Items[0].Label != "Menyusu" {
		t.Fatalf("first item = %+v, want configured eat label", day.Items)
	}
}

func TestLabelsForMergesOverrides(t *testing.T) {
	a := newTestApp(t)
	l := a.labelsFor("id")
	if l.Eat() != "Menyusu" {
		t.Fatalf("Eat = %q", l.Eat())
	}
	if l.Activity() != routine.BuiltinLabels("id").Activity() {
		t.Fatalf("Activity = %q, want built-in fallback", l.Activity())
	}
	if got := a.labelsFor("en").Eat(); got != "Eat" {
		t.Fatalf("en Eat = %q", got)
	}
}

func TestJobsForSkipsDigestWithoutBot(t *testing.T) {
	a := newTestApp(t)
	list, err := a.jobsFor(a.cfgm.Get())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != jobs.PruneJobName {
		t.Fatalf("jobs = %+v, want only %s", list, jobs.PruneJobName)
	}

	off := *a.cfgm.Get()
	off.Scheduler.Enabled = false
	if list, _ := a.jobsFor(&off); len(list) != 0 {
		t.Fatalf("disabled scheduler produced %d jobs", len(list))
	}

	bad := *a.cfgm.Get()
	bad.Scheduler.PruneCron = "not a schedule"
	if _, err := a.jobsFor(&bad); err == nil {
		t.Fatal("expected prune_cron error")
	}
}

func TestValidateRejectsBadReload(t *testing.T) {
	a := newTestApp(t)
	bad := *a.cfgm.Get()
	bad.Scheduler.PruneCron = "every:never"
	if err := a.validate(&bad); err == nil {
		t.Fatal("expected validation error for prune_cron")
	}
	bad = *a.cfgm.Get()
	bad.HTTP.ReadTimeout = "soon"
	if err := a.validate(&bad); err == nil {
		t.Fatal("expected validation error for http.read_timeout")
	}
	if err := a.validate(a.cfgm.Get()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestStartServesHTTPAndStops(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	addr := a.http.Addr()
	if addr == "" {
		t.Fatal("http api not listening")
	}
	resp, err := http.Get("http://" + addr + "/v1/babies/ada/schedule?date=2026-03-01")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		BabyID string `json:"babyId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.BabyID != "ada" {
		t.Fatalf("babyId = %q", body.BabyID)
	}

	stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := a.Stop(stopCtx, StopSignal); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if a.http.Addr() != "" {
		t.Fatal("http api still listening after Stop")
	}
}

func TestApplyConfigSwapsLabelsAndBabies(t *testing.T) {
	a := newTestApp(t)
	next := *a.cfgm.Get()
	next.Routine.Labels = map[string]routine.Labels{"id": {EatText: "Makan pagi"}}
	next.Routine.Babies = append(append([]config.BabyConfig(nil), next.Routine.Babies...),
		config.BabyConfig{ID: "bo", RuleID: routine.NewbornRuleID})
	next.HTTP.Enabled = false

	a.applyConfig(context.Background(), a.cfgm.Get(), &next)

	if got := a.labelsFor("id").Eat(); got != "Makan pagi" {
		t.Fatalf("Eat after reload = %q", got)
	}
	if ids := a.profiles.IDs(); len(ids) != 2 {
		t.Fatalf("babies after reload = %v", ids)
	}
}
