package httpapi

import (
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-widgets/internal/apperror"
	"github.com/i474232898/weather-widgets/internal/metrics"
	"github.com/i474232898/weather-widgets/internal/weather"
	"github.com/i474232898/weather-widgets/internal/widget"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "weather-widgets"

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, widgets *widget.Service, forecasts *weather.Service) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"ok":      true,
			"service": ServiceName,
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	w := app.Group("/widgets")

	w.Get("/", func(c *fiber.Ctx) error {
		list, err := widgets.List(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(list)
	})

	w.Post("/", func(c *fiber.Ctx) error {
		var req createWidgetRequest
		if err := c.BodyParser(&req); err != nil {
			return apperror.InvalidArgument("invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return apperror.InvalidArgument("location required")
		}

		created, err := widgets.Create(c.UserContext(), req.Location)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	w.Delete("/:id", func(c *fiber.Ctx) error {
		if err := widgets.Delete(c.UserContext(), utils.CopyString(c.Params("id"))); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	w.Get("/weather", func(c *fiber.Ctx) error {
		// Query values alias the request buffer; the snapshot cache keeps the string.
		snap, err := forecasts.Current(c.UserContext(), utils.CopyString(c.Query("location")))
		if err != nil {
			return err
		}
		return c.JSON(snap)
	})

	w.Get("/reverse", func(c *fiber.Ctx) error {
		lat := parseCoordinate(c.Query("lat"))
		lon := parseCoordinate(c.Query("lon"))

		place, err := forecasts.Locator().Reverse(c.UserContext(), lat, lon)
		if err != nil {
			switch apperror.KindOf(err) {
			case apperror.KindInternal:
				return apperror.Internal("reverse geocoding failed", err)
			case apperror.KindUpstreamUnavailable:
				return apperror.Upstream("reverse geocoding failed", apperror.From(err).UpstreamStatus, err)
			}
			return err
		}
		return c.JSON(place)
	})

	w.Get("/suggest", func(c *fiber.Ctx) error {
		return c.JSON(forecasts.Locator().Suggest(c.UserContext(), utils.CopyString(c.Query("q"))))
	})
}

type createWidgetRequest struct {
	Location string `json:"location" validate:"required"`
}

// parseCoordinate yields NaN for anything that is not a number, which the
// locator rejects as invalid input.
func parseCoordinate(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// Metrics records request latency by route pattern and final status.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusOf(err)
		}
		metrics.APILatency.
			WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperror.From(err).HTTPStatus()
}

// ErrorHandler renders every failure as {"error": message}.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		appErr := apperror.From(err)
		status := appErr.HTTPStatus()
		switch {
		case status >= fiber.StatusInternalServerError && appErr.Kind == apperror.KindInternal:
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
			)
		case status >= fiber.StatusInternalServerError:
			logger.Warn("upstream failure",
				"method", c.Method(),
				"path", c.Path(),
				"upstream_status", appErr.UpstreamStatus,
				"error", err,
			)
		}
		return c.Status(status).JSON(fiber.Map{"error": appErr.Message})
	}
}
