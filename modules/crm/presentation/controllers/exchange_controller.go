package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/importjob"
	"github.com/iota-uz/crm-exchange/modules/crm/presentation/controllers/dtos"
	"github.com/iota-uz/crm-exchange/modules/crm/services"
	"github.com/iota-uz/crm-exchange/pkg/application"
	"github.com/iota-uz/crm-exchange/pkg/middleware"
)

const multipartMemory = 32 << 20

type ExchangeController struct {
	app           application.Application
	exchange      *services.Exchange
	basePath      string
	maxUploadSize int64
}

func NewExchangeController(app application.Application, maxUploadSize int64) application.Controller {
	return &ExchangeController{
		app:           app,
		exchange:      app.Service(services.Exchange{}).(*services.Exchange),
		basePath:      "/crm/api",
		maxUploadSize: maxUploadSize,
	}
}

func (c *ExchangeController) Key() string {
	return c.basePath
}

func (c *ExchangeController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.TracedMiddleware("crm.exchange"))
	router.HandleFunc("/entities", c.Entities).Methods(http.MethodGet)

	router.HandleFunc("/{entity}/import", c.ImportState).Methods(http.MethodGet)
	router.HandleFunc("/{entity}/import", c.BeginImport).Methods(http.MethodPost)
	router.HandleFunc("/{entity}/import/mapping", c.SubmitMapping).Methods(http.MethodPost)
	router.HandleFunc("/{entity}/import/cancel", c.CancelImport).Methods(http.MethodPost)

	router.HandleFunc("/{entity}/delete", c.DeleteState).Methods(http.MethodGet)
	router.HandleFunc("/{entity}/delete", c.RequestDelete).Methods(http.MethodPost)
	router.HandleFunc("/{entity}/delete/unlink", c.Unlink).Methods(http.MethodPost)
	router.HandleFunc("/{entity}/delete/unlink-and-delete", c.UnlinkAndDelete).Methods(http.MethodPost)
	router.HandleFunc("/{entity}/delete/confirm", c.ConfirmDelete).Methods(http.MethodPost)
	router.HandleFunc("/{entity}/delete/cancel", c.CancelDelete).Methods(http.MethodPost)
}

func (c *ExchangeController) Entities(w http.ResponseWriter, r *http.Request) {
	all := c.exchange.Entities()
	out := make([]dtos.EntityResponse, 0, len(all))
	for _, e := range all {
		out = append(out, dtos.EntityResponse{
			Name:    e.Name,
			Doctype: e.Doctype,
			Slug:    e.Slug,
			Fields:  e.FieldNames(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": out})
}

func (c *ExchangeController) importEngine(w http.ResponseWriter, r *http.Request) (*services.ImportEngine, bool) {
	engine, err := c.exchange.Import(mux.Vars(r)["entity"])
	if err != nil {
		writeEngineError(w, r, err, nil)
		return nil, false
	}
	return engine, true
}

func (c *ExchangeController) deleteEngine(w http.ResponseWriter, r *http.Request) (*services.DeleteEngine, bool) {
	engine, err := c.exchange.Delete(mux.Vars(r)["entity"])
	if err != nil {
		writeEngineError(w, r, err, nil)
		return nil, false
	}
	return engine, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "invalid json body", nil)
		return false
	}
	return true
}

func (c *ExchangeController) ImportState(w http.ResponseWriter, r *http.Request) {
	engine, ok := c.importEngine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, engine.Snapshot())
}

func (c *ExchangeController) BeginImport(w http.ResponseWriter, r *http.Request) {
	engine, ok := c.importEngine(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeEngineError(w, r, importjob.ErrFileTooLarge, engine.Snapshot())
			return
		}
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "expected a multipart form with a file field", nil)
		return
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "file could not be read", nil)
		return
	}

	st, err := engine.BeginImport(engineContext(r), importjob.SourceFile{Name: header.Filename, Data: data})
	if err != nil {
		writeEngineError(w, r, err, st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (c *ExchangeController) SubmitMapping(w http.ResponseWriter, r *http.Request) {
	engine, ok := c.importEngine(w, r)
	if !ok {
		return
	}
	var dto dtos.MappingDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	dto.Normalize()
	st, err := engine.SubmitMapping(engineContext(r), dto.Mappings)
	if err != nil {
		writeEngineError(w, r, err, st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (c *ExchangeController) CancelImport(w http.ResponseWriter, r *http.Request) {
	engine, ok := c.importEngine(w, r)
	if !ok {
		return
	}
	st, err := engine.Cancel(engineContext(r))
	if err != nil {
		writeEngineError(w, r, err, st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (c *ExchangeController) DeleteState(w http.ResponseWriter, r *http.Request) {
	engine, ok := c.deleteEngine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, engine.Snapshot())
}

func (c *ExchangeController) RequestDelete(w http.ResponseWriter, r *http.Request) {
	engine, ok := c.deleteEngine(w, r)
	if !ok {
		return
	}
	var dto dtos.DeleteRequestDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	if errs, valid := dto.Ok(r.Context()); !valid {
		writeValidationError(w, r, errs)
		return
	}
	st, err := engine.RequestDelete(engineContext(r), dto.IDs)
	if err != nil {
		writeEngineError(w, r, err, st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (c *ExchangeController) Unlink(w http.ResponseWriter, r *http.Request) {
	c.unlink(w, r, false)
}

func (c *ExchangeController) UnlinkAndDelete(w http.ResponseWriter, r *http.Request) {
	c.unlink(w, r, true)
}

func (c *ExchangeController) unlink(w http.ResponseWriter, r *http.Request, thenDelete bool) {
	engine, ok := c.deleteEngine(w, r)
	if !ok {
		return
	}
	var dto dtos.UnlinkDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	if errs, valid := dto.Ok(r.Context()); !valid {
		writeValidationError(w, r, errs)
		return
	}

	var (
		st  services.DeleteState
		err error
	)
	if thenDelete {
		st, err = engine.UnlinkAndDelete(engineContext(r), dto.ToRefs())
	} else {
		st, err = engine.UnlinkSelected(engineContext(r), dto.ToRefs())
	}
	if err != nil {
		writeEngineError(w, r, err, st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (c *ExchangeController) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	engine, ok := c.deleteEngine(w, r)
	if !ok {
		return
	}
	st, err := engine.ConfirmDelete(engineContext(r))
	if err != nil {
		writeEngineError(w, r, err, st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (c *ExchangeController) CancelDelete(w http.ResponseWriter, r *http.Request) {
	engine, ok := c.deleteEngine(w, r)
	if !ok {
		return
	}
	st, err := engine.Cancel(engineContext(r))
	if err != nil {
		writeEngineError(w, r, err, st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// engineContext keeps request-scoped values but drops cancellation, so a
// client disconnect never interrupts a remote call or a delete loop.
func engineContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
