package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/radekpospisil/congress/pkg/datasource"
	"github.com/radekpospisil/congress/pkg/stores"
)

func (s *Server) handleListDatasources(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.manager.List())
}

func (s *Server) handleCreateDatasource(w http.ResponseWriter, r *http.Request) {
	var spec datasource.Spec
	if err := decode(r, &spec); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ds, err := s.manager.Add(r.Context(), spec)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.store != nil {
		configJSON, err := json.Marshal(spec.Config)
		if err == nil {
			err = s.store.CreateDatasource(r.Context(), &stores.DatasourceRecord{
				ID:           ds.ID,
				Name:         spec.Name,
				Driver:       spec.Driver,
				Description:  spec.Description,
				Config:       string(configJSON),
				PollInterval: ds.Spec.PollInterval,
				CreatedAt:    time.Now(),
			})
		}
		if err != nil {
			_ = s.manager.Delete(spec.Name)
			s.respondError(w, http.StatusInternalServerError, "failed to persist datasource: "+err.Error())
			return
		}
	}

	s.respondJSON(w, http.StatusCreated, ds)
}

func (s *Server) handleGetDatasource(w http.ResponseWriter, r *http.Request) {
	ds, err := s.manager.Get(r.PathValue("name"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, ds)
}

func (s *Server) handleDeleteDatasource(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.manager.Delete(name); err != nil {
		if strings.Contains(err.Error(), "not found") {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusConflict, err.Error())
		return
	}

	if s.store != nil {
		if err := s.store.DeleteDatasource(r.Context(), name); err != nil {
			s.logger.Warn().Err(err).Str("datasource", name).Msg("Failed to delete stored datasource")
		}
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handlePollDatasource(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.manager.PollNow(r.Context(), name); err != nil {
		if strings.Contains(err.Error(), "not found") {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	ds, err := s.manager.Get(name)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, ds.Status)
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.manager.Drivers())
}
