package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	mw "github.com/padraicbc/barrancos/middleware"
	"github.com/padraicbc/barrancos/models"
	"github.com/padraicbc/barrancos/records"
)

const (
	actionCreate = "Agregar"
	actionEdit   = "Editar"
)

type indexPage struct {
	Flashes []mw.Flash
	CSRF    string
	Canyons []models.Canyon
}

type formPage struct {
	Flashes      []mw.Flash
	CSRF         string
	Action       string
	PostURL      string
	Form         records.Form
	Image        *string
	FieldErrors  map[string]string
	Difficulties []models.Difficulty
}

// Routes registers the canyon pages on e.
func (h *Handler) Routes(e *echo.Echo) {
	e.GET("/", h.Index)
	e.GET("/create", h.CreateForm)
	e.POST("/create", h.Create)
	e.GET("/edit/:id", h.EditForm)
	e.POST("/edit/:id", h.Edit)
	e.POST("/delete/:id", h.Delete)
	e.GET("/healthz", h.Health)
}

// Index lists all canyons.
func (h *Handler) Index(c echo.Context) error {
	canyons, err := h.svc.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
	return c.Render(http.StatusOK, "index.html", indexPage{
		Flashes: h.flash.Pop(c),
		CSRF:    mw.CSRFToken(c),
		Canyons: canyons,
	})
}

// CreateForm shows an empty canyon form.
func (h *Handler) CreateForm(c echo.Context) error {
	return h.renderForm(c, http.StatusOK, h.newFormPage(c, actionCreate, "/create", records.Form{}, nil))
}

// Create stores a new canyon from the submitted form.
func (h *Handler) Create(c echo.Context) error {
	form, up, closeUpload, err := bindForm(c)
	if err != nil {
		return err
	}
	defer closeUpload()

	if _, err := h.svc.Create(c.Request().Context(), form, up); err != nil {
		return h.failForm(c, err, h.newFormPage(c, actionCreate, "/create", form, nil))
	}
	return h.redirectWith(c, mw.FlashSuccess, "Barranco agregado exitosamente.")
}

// EditForm shows the form prefilled with an existing canyon.
func (h *Handler) EditForm(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	canyon, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	page := h.newFormPage(c, actionEdit, editURL(id), records.FormFromCanyon(canyon), canyon.Image)
	return h.renderForm(c, http.StatusOK, page)
}

// Edit applies the submitted form to an existing canyon.
func (h *Handler) Edit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	form, up, closeUpload, err := bindForm(c)
	if err != nil {
		return err
	}
	defer closeUpload()

	ctx := c.Request().Context()
	if err := h.svc.Update(ctx, id, form, up); err != nil {
		var image *string
		if current, getErr := h.svc.Get(ctx, id); getErr == nil {
			image = current.Image
		}
		return h.failForm(c, err, h.newFormPage(c, actionEdit, editURL(id), form, image))
	}
	return h.redirectWith(c, mw.FlashSuccess, "Barranco actualizado exitosamente.")
}

// Delete removes a canyon.
func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return h.redirectWith(c, mw.FlashDanger, "Barranco eliminado.")
}

// Health reports whether the store answers.
func (h *Handler) Health(c echo.Context) error {
	if err := h.health.Ping(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(err)
	}
	return c.String(http.StatusOK, "ok")
}

func (h *Handler) newFormPage(c echo.Context, action, postURL string, form records.Form, image *string) formPage {
	return formPage{
		Flashes:      h.flash.Pop(c),
		CSRF:         mw.CSRFToken(c),
		Action:       action,
		PostURL:      postURL,
		Form:         form,
		Image:        image,
		Difficulties: models.Difficulties,
	}
}

func (h *Handler) renderForm(c echo.Context, status int, page formPage) error {
	return c.Render(status, "form.html", page)
}

// failForm re-renders the form for user errors and maps the rest to HTTP errors.
func (h *Handler) failForm(c echo.Context, err error, page formPage) error {
	if !records.IsValidation(err) {
		return mapError(err)
	}

	msg := err.Error()
	var fe *records.FieldError
	if errors.As(err, &fe) {
		msg = fe.Msg
		page.FieldErrors = map[string]string{fe.Field: fe.Msg}
	}
	page.Flashes = append(page.Flashes, mw.Flash{Level: mw.FlashDanger, Message: msg})
	return h.renderForm(c, http.StatusUnprocessableEntity, page)
}

func (h *Handler) redirectWith(c echo.Context, level, msg string) error {
	if err := h.flash.Add(c, level, msg); err != nil {
		h.logger.Warn("flash not saved", zap.Error(err))
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// bindForm reads the text fields and the optional image. The returned close
// func must be called once the upload has been consumed.
func bindForm(c echo.Context) (records.Form, *records.Upload, func(), error) {
	noop := func() {}

	var form records.Form
	if err := c.Bind(&form); err != nil {
		return form, nil, noop, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return form, nil, noop, nil
	}
	if err != nil {
		return form, nil, noop, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if fh.Filename == "" {
		return form, nil, noop, nil
	}
	return openUpload(form, fh)
}

func openUpload(form records.Form, fh *multipart.FileHeader) (records.Form, *records.Upload, func(), error) {
	src, err := fh.Open()
	if err != nil {
		return form, nil, func() {}, echo.NewHTTPError(http.StatusInternalServerError, "failed to read uploaded file").SetInternal(err)
	}
	up := &records.Upload{Name: fh.Filename, Size: fh.Size, Body: src}
	return form, up, func() { _ = src.Close() }, nil
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusNotFound, "barranco no encontrado")
	}
	return id, nil
}

func editURL(id int64) string {
	return "/edit/" + strconv.FormatInt(id, 10)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, records.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "barranco no encontrado")
	case errors.Is(err, records.ErrStorageWrite):
		return echo.NewHTTPError(http.StatusInternalServerError, "no se pudo guardar la imagen").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
}
