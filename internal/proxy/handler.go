package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/archive-hub/internal/cache"
	"github.com/any-hub/archive-hub/internal/content"
	"github.com/any-hub/archive-hub/internal/logging"
	"github.com/any-hub/archive-hub/internal/server"
)

// Handler 把 /owner/project/version/subpath 请求交给 Hub 的 content.Resolver，
// 并负责响应头、错误渲染与结构化日志。
type Handler struct {
	logger *logrus.Logger
}

// NewHandler constructs a handler that logs through logger.
func NewHandler(logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{logger: logger}
}

// Handle 解析路径、确保版本目录就绪并流式返回文件；任何阶段出错都会输出结构化日志。
func (h *Handler) Handle(c fiber.Ctx, route *server.HubRoute) error {
	started := time.Now()
	requestID := server.RequestID(c)
	rawPath := requestPath(c)

	method := c.Method()
	if method != http.MethodGet && method != http.MethodHead {
		c.Set(fiber.HeaderAllow, "GET, HEAD")
		failure := &content.Failure{Status: content.StatusInvalid, Message: fmt.Sprintf("method %s not allowed", method)}
		h.logResult(route, cache.ArtifactKey{}, rawPath, requestID, fiber.StatusMethodNotAllowed, false, started, failure)
		return h.writeFailure(c, fiber.StatusMethodNotAllowed, failure)
	}

	if route.Content == nil {
		failure := &content.Failure{Status: content.StatusInternal, Message: "hub " + route.Config.Name + " is not ready"}
		h.logResult(route, cache.ArtifactKey{}, rawPath, requestID, fiber.StatusServiceUnavailable, false, started, failure)
		return h.writeFailure(c, fiber.StatusServiceUnavailable, failure)
	}

	req, ok := content.ParsePath(rawPath)
	if !ok {
		failure := &content.Failure{Status: content.StatusInvalid, Message: "expected /owner/project/version/path"}
		h.logResult(route, cache.ArtifactKey{}, rawPath, requestID, fiber.StatusBadRequest, false, started, failure)
		return h.writeFailure(c, fiber.StatusBadRequest, failure)
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := route.Content.Resolve(ctx, req)
	if err != nil {
		failure, ok := content.AsFailure(err)
		if !ok {
			failure = &content.Failure{Status: content.StatusInternal, Message: err.Error(), Repo: req.Key().Repo(), Version: req.Version, Cause: err}
		}
		status := failure.Status.HTTPStatus()
		h.logResult(route, req.Key(), rawPath, requestID, status, false, started, failure)
		return h.writeFailure(c, status, failure)
	}
	defer resp.Close()

	c.Set(fiber.HeaderContentType, resp.ContentType)
	c.Set(fiber.HeaderCacheControl, resp.CacheControl())
	c.Set(fiber.HeaderLastModified, resp.ModTime.UTC().Format(http.TimeFormat))
	c.Set("X-Archive-Hub-Cache-Hit", strconv.FormatBool(resp.CacheHit))
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	c.Response().Header.SetContentLength(int(resp.Size))
	c.Status(fiber.StatusOK)

	if method == http.MethodHead {
		h.logResult(route, resp.Key, rawPath, requestID, fiber.StatusOK, resp.CacheHit, started, nil)
		return nil
	}

	_, err = io.Copy(c.Response().BodyWriter(), resp.Reader)
	h.logResult(route, resp.Key, rawPath, requestID, fiber.StatusOK, resp.CacheHit, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("read cache failed: %v", err))
	}
	return nil
}

func (h *Handler) writeFailure(c fiber.Ctx, status int, failure *content.Failure) error {
	payload := fiber.Map{
		"error":   string(failure.Status),
		"message": failure.Message,
	}
	if failure.Repo != "" {
		payload["repo"] = failure.Repo
		payload["version"] = failure.Version
	}
	return c.Status(status).JSON(payload)
}

func (h *Handler) logResult(
	route *server.HubRoute,
	key cache.ArtifactKey,
	path string,
	requestID string,
	status int,
	cacheHit bool,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields(
		route.Config.Name,
		route.Config.Domain,
		route.Config.AuthMode(),
		key,
		cacheHit,
	)
	fields["action"] = "proxy"
	fields["path"] = path
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		entry := h.logger.WithFields(fields)
		if status >= fiber.StatusInternalServerError {
			entry.Error("proxy_failed")
		} else {
			entry.Warn("proxy_failed")
		}
		return
	}
	h.logger.WithFields(fields).Info("proxy_complete")
}

func requestPath(c fiber.Ctx) string {
	if c == nil {
		return "/"
	}
	uri := c.Request().URI()
	if uri == nil {
		return "/"
	}
	pathVal := string(uri.Path())
	if pathVal == "" {
		return "/"
	}
	return pathVal
}
