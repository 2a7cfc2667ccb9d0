package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/DoyleJ11/nabi-draft/internal/catalog"
	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
	"github.com/DoyleJ11/nabi-draft/internal/engine"
	"github.com/DoyleJ11/nabi-draft/internal/position"
	"github.com/DoyleJ11/nabi-draft/internal/result"
	"github.com/DoyleJ11/nabi-draft/internal/service"
)

// CallerHeader carries the acting participant id when the body has none.
const CallerHeader = "X-User-ID"

const maxBody = 1 << 20

type errorBody struct {
	Kind  drafterr.Kind `json:"kind"`
	Error string        `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, drafterr.HTTPStatus(err), errorBody{Kind: drafterr.KindOf(err), Error: err.Error()})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: bad json: %v", drafterr.ErrInvalidInput, err)
}

func caller(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get(CallerHeader)
}

type callerBody struct {
	CallerID string `json:"caller_id"`
}

func CreateSession(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.CreateRequest
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		sess, err := svc.CreateSession(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, struct {
			SessionID string `json:"session_id"`
		}{SessionID: sess.ID})
	}
}

func GetSession(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.GetSession(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func ResetSession(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body callerBody
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if err := svc.ResetSession(r.Context(), chi.URLParam(r, "id"), caller(r, body.CallerID)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type positionBody struct {
	OccupantID string `json:"occupant_id"`
	Team       string `json:"team"`
	Role       string `json:"role"`
}

func parseSlot(team, role string) (position.Slot, error) {
	t, ok := engine.ParseTeam(team)
	if !ok {
		return position.Slot{}, fmt.Errorf("%w: team %q", drafterr.ErrInvalidInput, team)
	}
	ro, ok := engine.ParseRole(role)
	if !ok {
		return position.Slot{}, fmt.Errorf("%w: role %q", drafterr.ErrInvalidInput, role)
	}
	return position.Slot{Team: t, Role: ro}, nil
}

func SelectPosition(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body positionBody
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		slot, err := parseSlot(body.Team, body.Role)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := svc.SelectPosition(r.Context(), chi.URLParam(r, "id"), caller(r, body.OccupantID), slot); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func LeavePosition(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slot, err := parseSlot(chi.URLParam(r, "team"), chi.URLParam(r, "role"))
		if err != nil {
			writeError(w, err)
			return
		}
		if err := svc.LeavePosition(r.Context(), chi.URLParam(r, "id"), caller(r, ""), slot); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func StartDraft(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body callerBody
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if err := svc.StartDraft(r.Context(), chi.URLParam(r, "id"), caller(r, body.CallerID)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type actionBody struct {
	CallerID string `json:"caller_id"`
	Team     string `json:"team"`
	Action   string `json:"action"`
	Role     string `json:"role"`
	Champion string `json:"champion"`
}

func SubmitAction(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body actionBody
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		team, ok := engine.ParseTeam(body.Team)
		if !ok {
			writeError(w, fmt.Errorf("%w: team %q", drafterr.ErrInvalidInput, body.Team))
			return
		}
		action, ok := engine.ParseAction(body.Action)
		if !ok {
			writeError(w, fmt.Errorf("%w: action %q", drafterr.ErrInvalidInput, body.Action))
			return
		}
		a := service.Action{Team: team, Action: action, Champion: body.Champion}
		if body.Role != "" {
			role, ok := engine.ParseRole(body.Role)
			if !ok {
				writeError(w, fmt.Errorf("%w: role %q", drafterr.ErrInvalidInput, body.Role))
				return
			}
			a.Role = role
		}

		evt, err := svc.SubmitAction(r.Context(), chi.URLParam(r, "id"), caller(r, body.CallerID), a)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, evt)
	}
}

func HoverChampion(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body actionBody
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		team, ok := engine.ParseTeam(body.Team)
		if !ok {
			writeError(w, fmt.Errorf("%w: team %q", drafterr.ErrInvalidInput, body.Team))
			return
		}
		evt, err := svc.HoverChampion(r.Context(), chi.URLParam(r, "id"), caller(r, body.CallerID), team, body.Champion)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, evt)
	}
}

func ForceSkip(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body callerBody
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		evt, err := svc.ForceSkip(r.Context(), chi.URLParam(r, "id"), caller(r, body.CallerID))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, evt)
	}
}

func GetResult(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		final, err := svc.GetResult(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, final)
	}
}

func AdjustResult(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch result.Patch
		if err := decode(r, &patch); err != nil {
			writeError(w, err)
			return
		}
		final, err := svc.AdjustResult(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, final)
	}
}

func ConfirmResult(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		final, err := svc.ConfirmResult(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, final)
	}
}

func ListChampions(cat catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		champs := []catalog.Champion{}
		if cat != nil {
			champs = cat.All()
		}
		writeJSON(w, http.StatusOK, champs)
	}
}

// SearchChampions serves ?q= with an optional ?limit=.
func SearchChampions(cat catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if catalog.Normalize(q) == "" {
			writeError(w, fmt.Errorf("%w: q is required", drafterr.ErrInvalidInput))
			return
		}
		n, err := limitParam(r)
		if err != nil {
			writeError(w, err)
			return
		}
		champs := []catalog.Champion{}
		if cat != nil {
			champs = append(champs, catalog.Search(cat, q, n)...)
		}
		writeJSON(w, http.StatusOK, champs)
	}
}

func GetChampion(cat catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := url.PathUnescape(chi.URLParam(r, "name"))
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", drafterr.ErrInvalidInput, err))
			return
		}
		if cat == nil {
			writeError(w, fmt.Errorf("%w: %q", catalog.ErrUnknownChampion, name))
			return
		}
		c, err := cat.Lookup(name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
