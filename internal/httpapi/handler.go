package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"routinebot/internal/routine"
	logx "routinebot/pkg/logx"
)

// Routines is the slice of *routine.Engine the API drives.
type Routines interface {
	DaySchedule(ctx context.Context, babyID, date string) (routine.Day, error)
	AdjustPhaseTiming(ctx context.Context, babyID, date string, order int, newStart, newEnd string) (string, error)
	SetFirstWakeTime(ctx context.Context, babyID, date, anchor string) error
	SelectRule(ctx context.Context, babyID, ruleID string) error
	ResetDay(ctx context.Context, babyID, date string) (bool, error)
	Now() time.Time
}

// Babies lists and resolves configured babies. *profile.Registry implements it.
type Babies interface {
	IDs() []string
	Profile(ctx context.Context, babyID string) (routine.Profile, error)
}

type Options struct {
	// Token, when set, is required as "Authorization: Bearer <token>" on /v1.
	Token string
	// Pprof mounts net/http/pprof under /debug.
	Pprof bool
	Log   logx.Logger
}

type api struct {
	engine Routines
	babies Babies
	log    logx.Logger
}

// maxBody bounds request bodies; every body here is a few short fields.
const maxBody = 16 << 10

func NewHandler(engine Routines, babies Babies, opt Options) http.Handler {
	log := opt.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &api{engine: engine, babies: babies, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opt.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Route("/v1", func(r chi.Router) {
		if opt.Token != "" {
			r.Use(bearer(opt.Token))
		}
		r.Get("/rules", a.listRules)
		r.Get("/babies", a.listBabies)
		r.Route("/babies/{babyID}", func(r chi.Router) {
			r.Get("/schedule", a.getSchedule)
			r.Put("/schedule/{date}/items/{order}", a.adjustItem)
			r.Delete("/schedule/{date}", a.resetDay)
			r.Put("/wake", a.setWake)
			r.Put("/rule", a.setRule)
		})
	})
	return r
}

func bearer(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLog(log logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			fields := []logx.Field{
				logx.String("rid", middleware.GetReqID(r.Context())),
				logx.String("method", r.Method),
				logx.String("path", r.URL.Path),
				logx.Int("status", ww.Status()),
				logx.Duration("dur", time.Since(start)),
			}
			if ww.Status() >= 500 {
				log.Warn("http request failed", fields...)
				return
			}
			log.Debug("http request", fields...)
		})
	}
}

func actorContext(r *http.Request) context.Context {
	return routine.WithActor(r.Context(), "http:"+middleware.GetReqID(r.Context()))
}

func (a *api) listRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rules": routine.Rules()})
}

type babyView struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	BirthDate     string `json:"birthDate,omitempty"`
	FirstWakeTime string `json:"firstWakeTime"`
	RuleID        string `json:"ruleId,omitempty"`
}

func (a *api) listBabies(w http.ResponseWriter, r *http.Request) {
	out := make([]babyView, 0)
	for _, id := range a.babies.IDs() {
		p, err := a.babies.Profile(r.Context(), id)
		if err != nil {
			a.fail(w, err)
			return
		}
		v := babyView{ID: p.BabyID, Name: p.Name, FirstWakeTime: p.FirstWakeTime, RuleID: p.RuleID}
		if !p.BirthDate.IsZero() {
			v.BirthDate = routine.FormatDate(p.BirthDate)
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"babies": out})
}

type itemView struct {
	routine.Item
	StartMinutes int            `json:"startMinutes"`
	EndMinutes   int            `json:"endMinutes"`
	EndTime      string         `json:"endTime"`
	Status       routine.Status `json:"status,omitempty"`
}

type scheduleView struct {
	BabyID         string     `json:"babyId"`
	Name           string     `json:"name,omitempty"`
	Date           string     `json:"date"`
	RuleID         string     `json:"ruleId"`
	Overridden     bool       `json:"overridden"`
	OverrideID     string     `json:"overrideId,omitempty"`
	SpansOvernight bool       `json:"spansOvernight"`
	EndTime        string     `json:"endTime,omitempty"`
	Current        *int       `json:"currentOrder,omitempty"`
	Items          []itemView `json:"items"`
}

// getSchedule returns a day. Statuses are included for today's date, or for
// any date when ?now=HH:MM is given.
func (a *api) getSchedule(w http.ResponseWriter, r *http.Request) {
	babyID := chi.URLParam(r, "babyID")
	now := a.engine.Now()
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = routine.FormatDate(now)
	}
	minute := -1
	if q := r.URL.Query().Get("now"); q != "" {
		m, err := routine.ParseClock(q)
		if err != nil {
			a.fail(w, err)
			return
		}
		minute = m
	} else if date == routine.FormatDate(now) {
		minute = routine.MinuteOfDay(now)
	}

	d, err := a.engine.DaySchedule(r.Context(), babyID, date)
	if err != nil {
		a.fail(w, err)
		return
	}
	v := scheduleView{
		BabyID:         d.BabyID,
		Name:           d.Name,
		Date:           d.Date,
		RuleID:         d.RuleID,
		Overridden:     d.Overridden,
		OverrideID:     d.OverrideID,
		SpansOvernight: d.Projection.SpansOvernight,
		Items:          make([]itemView, 0, len(d.Items)),
	}
	if len(d.Items) > 0 {
		v.EndTime = d.Projection.EndClock()
	}
	var status map[int]routine.Status
	if minute >= 0 {
		status = d.Projection.ClassifyMinute(minute)
		if cur, ok := d.Projection.CurrentMinute(minute); ok {
			v.Current = &cur
		}
	}
	for _, it := range d.Items {
		s := d.Projection.Spans[it.Order]
		v.Items = append(v.Items, itemView{
			Item:         it,
			StartMinutes: s.Start,
			EndMinutes:   s.End,
			EndTime:      routine.FormatClock(s.End),
			Status:       status[it.Order],
		})
	}
	writeJSON(w, http.StatusOK, v)
}

type adjustBody struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (a *api) adjustItem(w http.ResponseWriter, r *http.Request) {
	order, err := strconv.Atoi(chi.URLParam(r, "order"))
	if err != nil || order < 0 {
		writeError(w, http.StatusBadRequest, "order must be a non-negative integer")
		return
	}
	var body adjustBody
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.engine.AdjustPhaseTiming(actorContext(r), chi.URLParam(r, "babyID"), chi.URLParam(r, "date"), order, body.Start, body.End)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"overrideId": id})
}

func (a *api) resetDay(w http.ResponseWriter, r *http.Request) {
	existed, err := a.engine.ResetDay(actorContext(r), chi.URLParam(r, "babyID"), chi.URLParam(r, "date"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": existed})
}

type wakeBody struct {
	FirstWakeTime string `json:"firstWakeTime"`
	Date          string `json:"date,omitempty"`
}

func (a *api) setWake(w http.ResponseWriter, r *http.Request) {
	var body wakeBody
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Date == "" {
		body.Date = routine.FormatDate(a.engine.Now())
	}
	babyID := chi.URLParam(r, "babyID")
	if err := a.engine.SetFirstWakeTime(actorContext(r), babyID, body.Date, body.FirstWakeTime); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"firstWakeTime": routine.FormatClockString(body.FirstWakeTime), "date": body.Date})
}

type ruleBody struct {
	RuleID string `json:"ruleId"`
}

func (a *api) setRule(w http.ResponseWriter, r *http.Request) {
	var body ruleBody
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.engine.SelectRule(actorContext(r), chi.URLParam(r, "babyID"), body.RuleID); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ruleId": body.RuleID})
}

// fail maps engine errors onto status codes.
func (a *api) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, routine.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case routine.IsInputError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.log.Error("http handler error", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
