package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

func (s *Server) queueSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.queue.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, summaries)
}

// closeDepartmentQueue ends the department's current attendance; the
// waiting line stays intact so the next tick promotes the new head.
func (s *Server) closeDepartmentQueue(w http.ResponseWriter, r *http.Request) {
	departmentID := chi.URLParam(r, "id")
	entry, err := s.queue.CloseDepartmentQueue(r.Context(), departmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, entry)
}

type drainQueueResponse struct {
	DepartmentID string `json:"department_id"`
	Abandoned    int    `json:"abandoned"`
	Finished     int    `json:"finished"`
}

// drainDepartmentQueue empties the whole queue, waiting entries included.
func (s *Server) drainDepartmentQueue(w http.ResponseWriter, r *http.Request) {
	departmentID := chi.URLParam(r, "id")
	abandoned, finished, err := s.queue.DrainDepartmentQueue(r.Context(), departmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, drainQueueResponse{
		DepartmentID: departmentID,
		Abandoned:    abandoned,
		Finished:     finished,
	})
}

const (
	defaultInteractionLimit = 100
	maxInteractionLimit     = 1000
)

func (s *Server) listInteractions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultInteractionLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxInteractionLimit {
			writeError(w, apperrors.NewFatal(apperrors.ErrBadRequest, "invalid limit %q", v))
			return
		}
		limit = n
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, apperrors.NewFatal(apperrors.ErrBadRequest, "invalid offset %q", v))
			return
		}
		offset = n
	}

	var (
		interactions []model.Interaction
		err          error
	)
	switch {
	case q.Get("user_id") != "":
		interactions, err = s.interactions.FindByUserID(r.Context(), q.Get("user_id"), limit, offset)
	case q.Get("kind") != "":
		interactions, err = s.interactions.FindByKind(r.Context(), q.Get("kind"), limit, offset)
	default:
		start, end, perr := parseTimeRange(q.Get("from"), q.Get("to"))
		if perr != nil {
			writeError(w, perr)
			return
		}
		interactions, err = s.interactions.FindWithinTimeRange(r.Context(), start, end, limit, offset)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, interactions)
}

// parseTimeRange defaults to the last 24 hours when bounds are omitted.
func parseTimeRange(from, to string) (time.Time, time.Time, error) {
	end := utils.Now()
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.NewFatal(apperrors.ErrBadRequest, "invalid to %q", to)
		}
		end = t
	}
	start := end.Add(-24 * time.Hour)
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.NewFatal(apperrors.ErrBadRequest, "invalid from %q", from)
		}
		start = t
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, apperrors.NewFatal(apperrors.ErrBadRequest, "from must be before to")
	}
	return start, end, nil
}
