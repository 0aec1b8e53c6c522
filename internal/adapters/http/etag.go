package http

import (
	"hash/fnv"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// ETagMiddleware tags cacheable GET responses with a weak ETag and answers
// 304 when If-None-Match already carries it. Routes and private responses
// depend on the caller's position and are left alone.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}
		if cc := string(c.Response().Header.Peek(fiber.HeaderCacheControl)); len(cc) >= 7 && cc[:7] == "private" {
			return nil
		}

		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		h := fnv.New64a()
		_, _ = h.Write(body)
		etag := `W/"` + strconv.FormatUint(h.Sum64(), 16) + `"`
		c.Set(fiber.HeaderETag, etag)

		if c.Get(fiber.HeaderIfNoneMatch) == etag {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}
