package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/linker-back/internal/config"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/db"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/models"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/service"
)

const userLocal = "user"

var censoredFields = []string{"password", "token"}

type HTTPServer struct {
	app       *fiber.App
	general   *service.General
	links     *service.Links
	issues    *service.Issues
	logger    *zap.SugaredLogger
	validator *validator.Validate
}

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, general *service.General, links *service.Links, issues *service.Issues, logger *zap.SugaredLogger) *HTTPServer {
	instance := newHTTPServer(general, links, issues, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := cfg.HTTPAddr()
				logger.Infow("Starting HTTP server.", "addr", listen)
				if err := instance.app.Listen(listen); err != nil {
					logger.Fatalw("shutting down the server", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return instance.app.Shutdown()
		},
	})

	return instance
}

func newHTTPServer(general *service.General, links *service.Links, issues *service.Issues, logger *zap.SugaredLogger) *HTTPServer {
	instance := HTTPServer{
		general:   general,
		links:     links,
		issues:    issues,
		logger:    logger,
		validator: validator.New(),
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          instance.ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(instance.RequestLogger)

	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	authG := app.Group("/auth")
	authG.Post("/register", instance.Register)
	authG.Post("/login", instance.Login)

	linkG := app.Group("/links", instance.AuthMiddleware)
	linkG.Get("", instance.LinkList)
	linkG.Get("/create", instance.LinkCreateForm)
	linkG.Post("", instance.LinkCreate)
	linkG.Get("/:id/edit", instance.LinkEdit)
	linkG.Put("/:id", instance.LinkUpdate)
	linkG.Patch("/:id", instance.LinkUpdate)
	linkG.Delete("/:id", instance.LinkDelete)

	app.Use(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	instance.app = app
	return &instance
}

func (s *HTTPServer) Register(c *fiber.Ctx) error {
	u := models.UserReq{}
	if err := s.BindAndValidate(c, &u); err != nil {
		return err
	}

	token, err := s.general.Register(c.Context(), u.Email, u.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return err
	}
	return c.JSON(models.TokenResp{Token: token})
}

func (s *HTTPServer) Login(c *fiber.Ctx) error {
	u := models.UserReq{}
	if err := s.BindAndValidate(c, &u); err != nil {
		return err
	}

	token, err := s.general.Login(c.Context(), u.Email, u.Password)
	if err != nil {
		if errors.Is(err, service.ErrLoginUserNotFound) || errors.Is(err, service.ErrLoginPasswordDoesNotMatch) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}
	return c.JSON(models.TokenResp{Token: token})
}

func (s *HTTPServer) LinkList(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil {
		page = 1
	}

	result, err := s.links.List(c.Context(), user, page)
	if err != nil {
		return err
	}
	return c.JSON(models.NewLinkListResp(result))
}

func (s *HTTPServer) LinkCreateForm(c *fiber.Ctx) error {
	if _, err := GetUserFromContext(c); err != nil {
		return err
	}

	issues, err := s.issues.IssueList(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(models.NewLinkFormResp(issues))
}

func (s *HTTPServer) LinkCreate(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	fields, err := ParseFields(c)
	if err != nil {
		return err
	}

	link, err := s.links.Create(c.Context(), user, fields)
	if err != nil {
		return err
	}

	resp := models.NewLinkResp(link)
	return c.Status(fiber.StatusCreated).JSON(models.LinkMutationResp{
		Message: models.MessageLinkCreated,
		Link:    &resp,
	})
}

func (s *HTTPServer) LinkEdit(c *fiber.Ctx) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	link, err := s.links.Edit(c.Context(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(models.NewLinkResp(link))
}

func (s *HTTPServer) LinkUpdate(c *fiber.Ctx) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	fields, err := ParseFields(c)
	if err != nil {
		return err
	}

	link, err := s.links.Update(c.Context(), user, id, fields)
	if err != nil {
		return err
	}

	resp := models.NewLinkResp(link)
	return c.JSON(models.LinkMutationResp{
		Message: models.MessageLinkUpdated,
		Link:    &resp,
	})
}

func (s *HTTPServer) LinkDelete(c *fiber.Ctx) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.links.Delete(c.Context(), user, id); err != nil {
		return err
	}
	return c.JSON(models.LinkMutationResp{Message: models.MessageLinkDeleted})
}

func (s *HTTPServer) AuthMiddleware(c *fiber.Ctx) error {
	user, err := s.general.UserByToken(c.Context(), c.Get("X-Token"))
	if err != nil {
		if !errors.Is(err, service.ErrUnauthenticated) {
			s.logger.Errorw("find user in db", "error", err)
		}
		return service.ErrUnauthenticated
	}

	c.Locals(userLocal, user)
	return c.Next()
}

func (s *HTTPServer) RequestLogger(c *fiber.Ctx) error {
	start := time.Now()

	if err := c.Next(); err != nil {
		if herr := s.ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	fields := []interface{}{
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"latency", time.Since(start),
	}
	if c.Is("json") && len(c.Body()) != 0 {
		fields = append(fields, "body", string(censorBody(c.Body())))
	}
	s.logger.Infow("request", fields...)
	return nil
}

func (s *HTTPServer) ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		verr *service.ValidationError
		ferr *fiber.Error
	)
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(models.ValidationErrorResp{
			Message: "The given data was invalid.",
			Errors:  verr.Errors,
		})
	case errors.Is(err, service.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResp{Message: "Unauthenticated."})
	case errors.Is(err, service.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(models.ErrorResp{Message: "This action is unauthorized."})
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResp{Message: "Link not found."})
	case errors.As(err, &ferr):
		return c.Status(ferr.Code).JSON(models.ErrorResp{Message: ferr.Message})
	}

	s.logger.Errorw("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResp{Message: "internal server error"})
}

func (s *HTTPServer) BindAndValidate(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.validator.Struct(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// ParseFields reads the raw link fields from a JSON or form body.
func ParseFields(c *fiber.Ctx) (map[string]interface{}, error) {
	fields := map[string]interface{}{}

	switch {
	case c.Is("json"):
		if len(c.Body()) == 0 {
			return fields, nil
		}
		dec := json.NewDecoder(bytes.NewReader(c.Body()))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid json body")
		}
		if fields == nil {
			fields = map[string]interface{}{}
		}
	case strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid form body")
		}
		for key, values := range form.Value {
			if len(values) != 0 {
				fields[key] = values[0]
			}
		}
	default:
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			fields[string(key)] = string(value)
		})
	}

	return fields, nil
}

func GetUserFromContext(c *fiber.Ctx) (*db.User, error) {
	user, ok := c.Locals(userLocal).(*db.User)
	if !ok || user == nil {
		return nil, service.ErrUnauthenticated
	}
	return user, nil
}

func GetParam(c *fiber.Ctx, name string) (string, error) {
	value := c.Params(name)
	if value == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return value, nil
}

func GetAndParseParam(c *fiber.Ctx, name string) (uint64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseUint(v, 10, 64)
	if e != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return vv, nil
}

func censorBody(body []byte) []byte {
	m := map[string]interface{}{}
	if err := json.Unmarshal(body, &m); err != nil {
		return body
	}
	for _, key := range censoredFields {
		if _, ok := m[key]; ok {
			m[key] = "$censored"
		}
	}
	censored, err := json.Marshal(m)
	if err != nil {
		return body
	}
	return censored
}
