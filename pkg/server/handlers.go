package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/daviddao/zeilumara/pkg/clock"
	"github.com/daviddao/zeilumara/pkg/exchange"
	"github.com/daviddao/zeilumara/pkg/model"
	"github.com/daviddao/zeilumara/pkg/omen"
	"github.com/daviddao/zeilumara/pkg/recur"
	"github.com/daviddao/zeilumara/pkg/store"
)

// errBadRequest marks client input errors that are not model validation
// failures.
var errBadRequest = errors.New("bad request")

// ClockFrame is one reading of both clocks.
type ClockFrame struct {
	Linear    model.LinearTime     `json:"linear"`
	UTC       time.Time            `json:"utc"`
	Z         model.StructuredTime `json:"z"`
	Formatted string               `json:"formatted"`
	Compact   string               `json:"compact"`
	Short     string               `json:"short"`
	Omens     []omen.Omen          `json:"omens,omitempty"`
}

func newFrame(e *clock.Engine, t model.LinearTime, lang model.DisplayLanguage) ClockFrame {
	z := e.ToStructured(t)
	return ClockFrame{
		Linear:    t,
		UTC:       t.Time(),
		Z:         z,
		Formatted: z.Format(lang),
		Compact:   z.Compact(),
		Short:     z.Short(),
		Omens:     omen.Evaluate(z),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrInvalidEvent),
		errors.Is(err, model.ErrInvalidInterval),
		errors.Is(err, model.ErrInvalidFrequency),
		errors.Is(err, exchange.ErrDuplicateID),
		errors.Is(err, exchange.ErrUnknownFormat):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) language() model.DisplayLanguage {
	st, err := s.store.LoadSettings()
	if err != nil {
		return model.LanguageRomanized
	}
	return st.DisplayLanguage
}

func (s *Server) nowHandler(w http.ResponseWriter, r *http.Request) {
	s.metrics.Conversions.WithLabelValues("to_z").Inc()
	writeJSON(w, http.StatusOK, newFrame(s.Engine(), s.now(), s.language()))
}

// toStructuredHandler converts ?at=<unix seconds|RFC 3339>.
func (s *Server) toStructuredHandler(w http.ResponseWriter, r *http.Request) {
	at := r.URL.Query().Get("at")
	if at == "" {
		s.writeError(w, r, fmt.Errorf("%w: missing at parameter", errBadRequest))
		return
	}
	t, err := model.ParseLinearTime(at)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	s.metrics.Conversions.WithLabelValues("to_z").Inc()
	writeJSON(w, http.StatusOK, newFrame(s.Engine(), t, s.language()))
}

// toLinearHandler converts a posted StructuredTime.
func (s *Server) toLinearHandler(w http.ResponseWriter, r *http.Request) {
	var z model.StructuredTime
	if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	e := s.Engine()
	if !z.Normalized(e.Units()) {
		s.writeError(w, r, fmt.Errorf("%w: field out of range", errBadRequest))
		return
	}
	t := e.ToLinear(z)
	s.metrics.Conversions.WithLabelValues("to_linear").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"linear": t,
		"utc":    t.Time(),
	})
}

func (s *Server) listEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// saveEventHandler creates or replaces an event and reschedules it.
func (s *Server) saveEventHandler(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if ev.ID == "" {
		ev.ID = model.NewEventID()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	code := http.StatusCreated
	if _, err := s.store.GetEvent(ev.ID); err == nil {
		code = http.StatusOK
	}
	if err := s.store.SaveEvent(&ev); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.rescheduleOne(ev)
	writeJSON(w, code, ev)
}

// rescheduleOne logs rather than fails: the event itself is saved.
func (s *Server) rescheduleOne(ev model.Event) {
	st, err := s.store.LoadSettings()
	if err != nil || !st.NotificationsEnabled {
		return
	}
	n, err := s.scheduler(s.Engine()).Reschedule(ev)
	s.metrics.Scheduled.Add(float64(n))
	if err != nil {
		s.logger.Warn("scheduling event failed",
			slog.String("event", ev.ID),
			slog.Any("error", err))
	}
	s.refreshPending()
}

func (s *Server) rescheduleAll(e *clock.Engine) {
	events, err := s.store.ListEvents()
	if err != nil {
		s.logger.Error("list events for reschedule", slog.Any("error", err))
		return
	}
	sched := s.scheduler(e)
	st, err := s.store.LoadSettings()
	if err == nil && !st.NotificationsEnabled {
		if err := sched.CancelAll(); err != nil {
			s.logger.Warn("clearing triggers failed", slog.Any("error", err))
		}
		s.refreshPending()
		return
	}
	n, err := sched.RescheduleAll(events)
	s.metrics.Scheduled.Add(float64(n))
	if err != nil {
		s.logger.Warn("rescheduling failed", slog.Any("error", err))
	}
	s.refreshPending()
}

func (s *Server) refreshPending() {
	if p, err := s.store.PendingTriggers(); err == nil {
		s.metrics.Pending.Set(float64(len(p)))
	}
}

func (s *Server) getEventHandler(w http.ResponseWriter, r *http.Request) {
	ev, err := s.store.GetEvent(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) deleteEventHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.DeleteEvent(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.scheduler(s.Engine()).Cancel(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.refreshPending()
	w.WriteHeader(http.StatusNoContent)
}

// occurrencesHandler projects an event's repeats. ?max=N caps the count.
func (s *Server) occurrencesHandler(w http.ResponseWriter, r *http.Request) {
	ev, err := s.store.GetEvent(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts := recur.Options{Horizon: s.horizon, Now: s.now(), MaxOccurrences: s.limits.MaxPerSeries}
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, r, fmt.Errorf("%w: max must be a positive integer", errBadRequest))
			return
		}
		opts.MaxOccurrences = n
	}
	out := []recur.Occurrence{}
	if ev.Repeat != nil {
		out = append(out, recur.Collect(s.Engine(), ev.Anchor, *ev.Repeat, opts)...)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) triggersHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.PendingTriggers()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.Pending.Set(float64(len(p)))
	if p == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) getSettingsHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.LoadSettings()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// putSettingsHandler replaces the settings. A new epoch swaps the engine
// and reschedules every event.
func (s *Server) putSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var st model.Settings
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := st.Validate(); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev, err := s.store.LoadSettings()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.SaveSettings(st); err != nil {
		s.writeError(w, r, err)
		return
	}
	if st.Epoch != prev.Epoch {
		e := clock.New(st.Epoch, nil)
		s.engine.Store(e)
		s.logger.Info("epoch changed",
			slog.Float64("from", float64(prev.Epoch)),
			slog.Float64("to", float64(st.Epoch)))
		s.rescheduleAll(e)
	} else if st.NotificationsEnabled != prev.NotificationsEnabled {
		s.rescheduleAll(s.Engine())
	}
	writeJSON(w, http.StatusOK, st)
}

// exportHandler streams a document; ?format=toml selects TOML.
func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	f := exchange.FormatJSON
	if v := r.URL.Query().Get("format"); v != "" {
		var err error
		if f, err = exchange.ParseFormat(v); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	events, err := s.store.ListEvents()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.store.LoadSettings()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := exchange.Encode(&buf, exchange.NewDocument(&st, events, s.now().Time()), f); err != nil {
		s.writeError(w, r, err)
		return
	}
	ct := "application/json"
	if f == exchange.FormatTOML {
		ct = "application/toml"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=zeilumara-export.%s", f))
	w.Write(buf.Bytes())
}

// importHandler merges a posted document into the store and reschedules.
// Settings in the document are applied too.
func (s *Server) importHandler(w http.ResponseWriter, r *http.Request) {
	f := exchange.FormatJSON
	if v := r.URL.Query().Get("format"); v != "" {
		var err error
		if f, err = exchange.ParseFormat(v); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	doc, err := exchange.Decode(r.Body, f)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.SaveEvents(doc.Events); err != nil {
		s.writeError(w, r, err)
		return
	}
	if doc.Settings != nil {
		if err := s.store.SaveSettings(*doc.Settings); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.engine.Store(clock.New(doc.Settings.Epoch, nil))
	}
	s.rescheduleAll(s.Engine())
	writeJSON(w, http.StatusOK, map[string]int{"imported": len(doc.Events)})
}
