package main

import (
	"cmp"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nutella-labs/latchtree"
)

// server wires one shared string-keyed tree (the core is already
// safe for concurrent access across requests; no per-request locking
// beyond what latchtree itself does is needed) to the HTTP surface.
// Modeled on the teacher's db/server/routes.SetupRoutes, trading the
// git-style init/commit-all/restore endpoints (out of scope for this
// domain; see DESIGN.md) for the dictionary's own operations.
type server struct {
	tree         *latchtree.Tree[string, string]
	subtreeDepth int
	log          *zap.Logger
}

func requestID(c *fiber.Ctx) string {
	if id := c.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *server) setupRoutes(app *fiber.App) {
	app.Use(func(c *fiber.Ctx) error {
		id := requestID(c)
		c.Locals("requestID", id)
		err := c.Next()
		s.log.Info("request",
			zap.String("request_id", id),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
		)
		return err
	})

	app.Get("/stats", s.handleStats)
	app.Post("/entries", s.handleInsert)
	app.Get("/entries/:key", s.handleGet)
	app.Delete("/entries/:key", s.handleDelete)
	app.Get("/entries", s.handleList)
}

func (s *server) timeoutMs(c *fiber.Ctx) int {
	return c.QueryInt("timeout_ms", latchtree.InfiniteTimeout)
}

func (s *server) handleStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"count": s.tree.Count(),
		"depth": s.tree.Depth(),
		"k":     s.tree.K(),
	})
}

func (s *server) handleInsert(c *fiber.Ctx) error {
	var body struct {
		Key       string `json:"key"`
		Value     string `json:"value"`
		Overwrite bool   `json:"overwrite"`
	}
	if err := c.BodyParser(&body); err != nil || body.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "key and value required"})
	}

	timeoutMs := s.timeoutMs(c)
	var (
		result latchtree.InsertResult
		err    error
	)
	if body.Overwrite {
		result, err = s.tree.AddOrUpdate(body.Key, body.Value, timeoutMs)
	} else {
		result, err = s.tree.TryAdd(body.Key, body.Value, timeoutMs)
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"result": result.String()})
}

func (s *server) handleGet(c *fiber.Ctx) error {
	value, result, err := s.tree.TryGet(c.Params("key"), s.timeoutMs(c))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if result != latchtree.Found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"result": result.String()})
	}
	return c.JSON(fiber.Map{"value": value})
}

func (s *server) handleDelete(c *fiber.Ctx) error {
	result, err := s.tree.TryRemove(c.Params("key"), s.timeoutMs(c))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if result != latchtree.Removed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"result": result.String()})
	}
	return c.JSON(fiber.Map{"result": result.String()})
}

func (s *server) handleList(c *fiber.Ctx) error {
	reverse := c.QueryBool("reverse", false)
	timeoutMs := s.timeoutMs(c)

	var it *latchtree.Iterator[string, string]
	if reverse {
		it = s.tree.IterReversed(timeoutMs)
	} else {
		it = s.tree.Iter(timeoutMs)
	}
	it = it.WithSubtreeDepth(s.subtreeDepth)

	type pair struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	var out []pair
	for k, v, ok := it.Next(); ok; k, v, ok = it.Next() {
		out = append(out, pair{Key: k, Value: v})
	}
	if err := it.Err(); err != nil {
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": err.Error(), "entries": out})
	}
	return c.JSON(fiber.Map{"entries": out})
}

func stringCompare(a, b string) int { return cmp.Compare(a, b) }
