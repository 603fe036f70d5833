// Package preview serves the catalog and game directories locally with the
// same routes and cache headers as the production site.
package preview

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
)

// ImmutableCache is sent with every game asset
const ImmutableCache = "public, max-age=31536000, immutable"

// Config locates the files served by the preview server
type Config struct {
	GamesJSON string
	// Prefixes maps a URL prefix such as "semag" to a local directory
	Prefixes map[string]string
	// AccessLog enables the fiber request logger
	AccessLog bool
}

// Server is a fiber app serving games.json and the game directories
type Server struct {
	app    *fiber.App
	config Config
}

// New creates the server and registers its routes
func New(config Config) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "semag preview",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).SendString(err.Error())
		},
	})

	app.Use(recover.New())
	if config.AccessLog {
		app.Use(logger.New(logger.Config{
			Format:     "${time} | ${status} | ${latency} | ${method} | ${path}\n",
			TimeFormat: "15:04:05",
		}))
	}

	s := &Server{app: app, config: config}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"service":   "semag-preview",
			"timestamp": time.Now().UTC(),
		})
	})
	app.Get("/games.json", s.handleGamesJSON)
	for prefix, dir := range config.Prefixes {
		app.Get("/"+prefix+"/*", s.handleObject(prefix, dir))
	}

	return s
}

// App exposes the fiber app, mainly for app.Test
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called
func (s *Server) Listen(addr string) error {
	log.Info().
		Str("addr", addr).
		Str("games_json", s.config.GamesJSON).
		Msg("Starting preview server")
	return s.app.Listen(addr)
}

// Shutdown stops the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleGamesJSON(c *fiber.Ctx) error {
	data, err := os.ReadFile(s.config.GamesJSON)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c.Status(fiber.StatusNotFound).SendString("Not found: games.json")
		}
		return err
	}
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Type("json", "utf-8")
	return c.Send(data)
}

// handleObject serves dir/<key> for /<prefix>/<key>
func (s *Server) handleObject(prefix, dir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, err := objectKey(c.Params("*"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}

		file := filepath.Join(dir, filepath.FromSlash(key))
		if info, err := os.Stat(file); err == nil && info.IsDir() {
			// relative references in index.html resolve against the slash
			if !strings.HasSuffix(c.Path(), "/") {
				location := "/" + prefix + "/" + key + "/"
				if query := c.Request().URI().QueryString(); len(query) > 0 {
					location += "?" + string(query)
				}
				return c.Redirect(location, fiber.StatusMovedPermanently)
			}
			file = filepath.Join(file, "index.html")
		}

		data, err := os.ReadFile(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
				return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("Not found: %s/%s", prefix, key))
			}
			return err
		}

		c.Set(fiber.HeaderCacheControl, ImmutableCache)
		if ext := strings.TrimPrefix(filepath.Ext(file), "."); ext != "" {
			c.Type(ext)
		}
		return c.Send(data)
	}
}

// objectKey decodes a wildcard path and rejects parent references
func objectKey(raw string) (string, error) {
	key, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid path %q", raw)
	}
	key = strings.ReplaceAll(key, `\`, "/")
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", fmt.Errorf("invalid path %q", raw)
		}
	}
	return strings.TrimPrefix(path.Clean("/"+key), "/"), nil
}
