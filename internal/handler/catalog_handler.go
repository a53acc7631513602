package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"eventsite-service/internal/model"
	"eventsite-service/internal/service"
)

// CatalogHandler serves the public content endpoints and their admin CRUD
// counterparts.
type CatalogHandler struct {
	catalog *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// RegisterPublicRoutes registers the unauthenticated read endpoints.
func (h *CatalogHandler) RegisterPublicRoutes(router chi.Router) {
	router.Route("/courses", func(r chi.Router) {
		r.Get("/", h.ListCourses)
		r.Get("/search", h.SearchCourses)
		r.Get("/{courseID}", h.GetCourse)
	})
	router.Get("/gallery", h.ListGallery)
	router.Get("/schedule", h.GetSchedule)
	router.Get("/settings", h.GetSettings)
}

// RegisterAdminRoutes registers the write endpoints, mounted behind the
// admin role gate.
func (h *CatalogHandler) RegisterAdminRoutes(router chi.Router) {
	router.Route("/courses", func(r chi.Router) {
		r.Get("/", h.ListAllCourses)
		r.Post("/", h.CreateCourse)
		r.Put("/{courseID}", h.UpdateCourse)
		r.Delete("/{courseID}", h.DeleteCourse)
	})
	router.Route("/gallery", func(r chi.Router) {
		r.Post("/", h.AddGalleryItem)
		r.Delete("/{itemID}", h.DeleteGalleryItem)
	})
	router.Route("/schedule", func(r chi.Router) {
		r.Post("/", h.CreateScheduleEntry)
		r.Put("/{entryID}", h.UpdateScheduleEntry)
		r.Delete("/{entryID}", h.DeleteScheduleEntry)
	})
	router.Put("/settings", h.UpdateSettings)
}

func (h *CatalogHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	courses, err := h.catalog.ListCourses(r.Context(), false, limit, offset)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to list courses")
		return
	}
	respondWithJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    courses,
		Meta:    &Meta{PageSize: limit, Offset: offset},
	})
}

func (h *CatalogHandler) ListAllCourses(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	courses, err := h.catalog.ListCourses(r.Context(), true, limit, offset)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to list courses")
		return
	}
	respondWithJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    courses,
		Meta:    &Meta{PageSize: limit, Offset: offset},
	})
}

func (h *CatalogHandler) SearchCourses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, _ := pageParams(r)

	courses, err := h.catalog.SearchCourses(r.Context(), query, limit)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Search failed")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(courses, "Search results"))
}

func (h *CatalogHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.catalog.GetCourse(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to get course")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(course, "Course retrieved"))
}

func (h *CatalogHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var course model.Course
	if err := json.NewDecoder(r.Body).Decode(&course); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	course.ID = ""

	if err := h.catalog.CreateCourse(r.Context(), &course); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to create course")
		return
	}
	respondWithJSON(w, http.StatusCreated, successResponse(course, "Course created"))
}

func (h *CatalogHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	var course model.Course
	if err := json.NewDecoder(r.Body).Decode(&course); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	course.ID = chi.URLParam(r, "courseID")

	if err := h.catalog.UpdateCourse(r.Context(), &course); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to update course")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(course, "Course updated"))
}

func (h *CatalogHandler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCourse(r.Context(), chi.URLParam(r, "courseID")); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to delete course")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "Course deleted"))
}

func (h *CatalogHandler) ListGallery(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListGallery(r.Context())
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to list gallery")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(items, "Gallery retrieved"))
}

func (h *CatalogHandler) AddGalleryItem(w http.ResponseWriter, r *http.Request) {
	var item model.GalleryItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	item.ID = ""

	if err := h.catalog.AddGalleryItem(r.Context(), &item); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to add gallery item")
		return
	}
	respondWithJSON(w, http.StatusCreated, successResponse(item, "Gallery item added"))
}

func (h *CatalogHandler) DeleteGalleryItem(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteGalleryItem(r.Context(), chi.URLParam(r, "itemID")); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to delete gallery item")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "Gallery item deleted"))
}

func (h *CatalogHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	day := 0
	if d := r.URL.Query().Get("day"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 {
			respondWithError(w, http.StatusBadRequest, service.ErrInvalidInput, "Invalid day")
			return
		}
		day = parsed
	}

	entries, err := h.catalog.GetSchedule(r.Context(), day)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to load schedule")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(entries, "Schedule retrieved"))
}

func (h *CatalogHandler) CreateScheduleEntry(w http.ResponseWriter, r *http.Request) {
	var entry model.ScheduleEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	entry.ID = ""

	if err := h.catalog.CreateScheduleEntry(r.Context(), &entry); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to create schedule entry")
		return
	}
	respondWithJSON(w, http.StatusCreated, successResponse(entry, "Schedule entry created"))
}

func (h *CatalogHandler) UpdateScheduleEntry(w http.ResponseWriter, r *http.Request) {
	var entry model.ScheduleEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	entry.ID = chi.URLParam(r, "entryID")

	if err := h.catalog.UpdateScheduleEntry(r.Context(), &entry); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to update schedule entry")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(entry, "Schedule entry updated"))
}

func (h *CatalogHandler) DeleteScheduleEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteScheduleEntry(r.Context(), chi.URLParam(r, "entryID")); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to delete schedule entry")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "Schedule entry deleted"))
}

func (h *CatalogHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.catalog.GetSettings(r.Context())
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to load settings")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(settings, "Settings retrieved"))
}

func (h *CatalogHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var values map[model.SettingKey]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.catalog.UpdateSettings(r.Context(), values); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to update settings")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "Settings updated"))
}

func pageParams(r *http.Request) (limit, offset int) {
	limit = 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
