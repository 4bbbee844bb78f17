package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	"gitlab.com/atividade/api/wa-frontdesk/internal/validator"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

// activeOnly is false on admin listings; the panel manages disabled rows
// too, unlike the bot-facing cache.

func (s *Server) listUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.catalog.ListUnits(r.Context(), false)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, units)
}

func (s *Server) saveUnit(w http.ResponseWriter, r *http.Request) {
	var unit model.Unit
	if err := json.NewDecoder(r.Body).Decode(&unit); err != nil {
		writeError(w, apperrors.NewFatal(apperrors.ErrBadRequest, "invalid request body"))
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		unit.ID = id
	}
	if err := validator.Validate(&unit); err != nil {
		writeError(w, apperrors.NewFatal(apperrors.ErrValidation, "%s", err.Error()))
		return
	}
	if err := s.catalog.SaveUnit(r.Context(), &unit); err != nil {
		writeError(w, err)
		return
	}
	s.refreshCache(r.Context())
	utils.WriteJSONResponse(w, http.StatusOK, unit)
}

func (s *Server) deleteUnit(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteUnit(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	s.refreshCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := s.catalog.ListDepartments(r.Context(), r.URL.Query().Get("unit_id"), false)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, depts)
}

func (s *Server) saveDepartment(w http.ResponseWriter, r *http.Request) {
	var dept model.Department
	if err := json.NewDecoder(r.Body).Decode(&dept); err != nil {
		writeError(w, apperrors.NewFatal(apperrors.ErrBadRequest, "invalid request body"))
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		dept.ID = id
	}
	if err := validator.Validate(&dept); err != nil {
		writeError(w, apperrors.NewFatal(apperrors.ErrValidation, "%s", err.Error()))
		return
	}
	if err := s.catalog.SaveDepartment(r.Context(), &dept); err != nil {
		writeError(w, err)
		return
	}
	s.refreshCache(r.Context())
	utils.WriteJSONResponse(w, http.StatusOK, dept)
}

func (s *Server) deleteDepartment(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteDepartment(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	s.refreshCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSellers(w http.ResponseWriter, r *http.Request) {
	sellers, err := s.catalog.ListSellers(r.Context(), r.URL.Query().Get("unit_id"), false)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, sellers)
}

func (s *Server) saveSeller(w http.ResponseWriter, r *http.Request) {
	var seller model.Seller
	if err := json.NewDecoder(r.Body).Decode(&seller); err != nil {
		writeError(w, apperrors.NewFatal(apperrors.ErrBadRequest, "invalid request body"))
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		seller.ID = id
	}
	if err := validator.Validate(&seller); err != nil {
		writeError(w, apperrors.NewFatal(apperrors.ErrValidation, "%s", err.Error()))
		return
	}
	if err := s.catalog.SaveSeller(r.Context(), &seller); err != nil {
		writeError(w, err)
		return
	}
	s.refreshCache(r.Context())
	utils.WriteJSONResponse(w, http.StatusOK, seller)
}

func (s *Server) deleteSeller(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteSeller(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	s.refreshCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPriceItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.catalog.ListPriceItems(r.Context(), r.URL.Query().Get("unit_id"), false)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, items)
}

func (s *Server) savePriceItem(w http.ResponseWriter, r *http.Request) {
	var item model.PriceItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, apperrors.NewFatal(apperrors.ErrBadRequest, "invalid request body"))
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		item.ID = id
	}
	if err := validator.Validate(&item); err != nil {
		writeError(w, apperrors.NewFatal(apperrors.ErrValidation, "%s", err.Error()))
		return
	}
	if err := s.catalog.SavePriceItem(r.Context(), &item); err != nil {
		writeError(w, err)
		return
	}
	s.refreshCache(r.Context())
	utils.WriteJSONResponse(w, http.StatusOK, item)
}

func (s *Server) deletePriceItem(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeletePriceItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	s.refreshCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.GetAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, settings)
}

type settingPayload struct {
	Value string `json:"value"`
}

func (s *Server) upsertSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var payload settingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apperrors.NewFatal(apperrors.ErrBadRequest, "invalid request body"))
		return
	}
	if err := s.settings.Upsert(r.Context(), key, payload.Value); err != nil {
		writeError(w, err)
		return
	}
	s.refreshCache(r.Context())
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"key": key, "value": payload.Value})
}
