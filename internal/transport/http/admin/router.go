package adminhttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"optwatch/internal/logger"
	"optwatch/internal/market"
	"optwatch/internal/monitor"
	"optwatch/internal/watch"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// WatchService 是 monitor.Service 对 HTTP 层暴露的能力。
type WatchService interface {
	CreateWatch(ctx context.Context, req monitor.CreateRequest) (monitor.CreateResult, error)
	Pause(ctx context.Context, id int64) (bool, error)
	Resume(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64) (watch.Watch, bool, error)
	ListForOwner(ctx context.Context, owner int64) ([]watch.Watch, error)
	Quote(ctx context.Context, sym string, strike decimal.Decimal, kind watch.Kind, expiration string) (market.Match, error)
}

type Router struct {
	svc WatchService
}

func NewRouter(svc WatchService) *Router {
	return &Router{svc: svc}
}

// Register 将路由挂载到 /api 分组。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/watches", r.handleCreate)
	group.GET("/watches", r.handleList)
	group.GET("/watches/:id", r.handleGet)
	group.POST("/watches/:id/pause", r.handleStatus(r.svc.Pause, "pause"))
	group.POST("/watches/:id/resume", r.handleStatus(r.svc.Resume, "resume"))
	group.DELETE("/watches/:id", r.handleDelete)
	group.GET("/quote", r.handleQuote)
}

func (r *Router) handleCreate(c *gin.Context) {
	var body createWatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, err := watch.ParseKind(body.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := watch.ParseMode(body.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := r.svc.CreateWatch(c.Request.Context(), monitor.CreateRequest{
		OwnerChatID: body.OwnerChatID,
		Symbol:      body.Symbol,
		Strike:      body.Strike,
		Kind:        kind,
		Expiration:  body.Expiration,
		Mode:        mode,
		TargetPrice: body.TargetPrice,
		EntryPrice:  body.EntryPrice,
	})
	if err != nil {
		writeError(c, "create watch", err)
		return
	}
	logger.Infof("[api] watch created ip=%s id=%d mode=%s", c.ClientIP(), res.Watch.ID, res.Watch.Mode)
	c.JSON(http.StatusCreated, gin.H{
		"watch": viewOf(res.Watch),
		"price": res.Price.StringFixed(2),
	})
}

func (r *Router) handleList(c *gin.Context) {
	owner, err := strconv.ParseInt(strings.TrimSpace(c.Query("owner")), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner is required"})
		return
	}
	list, err := r.svc.ListForOwner(c.Request.Context(), owner)
	if err != nil {
		writeError(c, "list watches", err)
		return
	}
	views := make([]watchView, 0, len(list))
	for _, w := range list {
		views = append(views, viewOf(w))
	}
	c.JSON(http.StatusOK, gin.H{"watches": views})
}

func (r *Router) handleGet(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	w, found, err := r.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, "get watch", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "watch not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"watch": viewOf(w)})
}

func (r *Router) handleStatus(fn func(context.Context, int64) (bool, error), action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		changed, err := fn(c.Request.Context(), id)
		if err != nil {
			writeError(c, action, err)
			return
		}
		logger.Infof("[api] watch %s ip=%s id=%d changed=%v", action, c.ClientIP(), id, changed)
		c.JSON(http.StatusOK, gin.H{"id": id, "changed": changed})
	}
}

func (r *Router) handleDelete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	deleted, err := r.svc.Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, "delete watch", err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "watch not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}

func (r *Router) handleQuote(c *gin.Context) {
	strike, err := decimal.NewFromString(strings.TrimSpace(c.Query("strike")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid strike"})
		return
	}
	kind, err := watch.ParseKind(c.Query("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := r.svc.Quote(c.Request.Context(), c.Query("symbol"), strike, kind, c.Query("expiration"))
	if err != nil {
		if errors.Is(err, monitor.ErrNoQuote) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		writeError(c, "quote", err)
		return
	}
	c.JSON(http.StatusOK, quoteView{
		Quote:        m.Quote,
		Kind:         m.Quote.Kind.String(),
		WorkingPrice: m.Quote.WorkingPrice().StringFixed(2),
		Fuzzy:        m.Fuzzy,
	})
}

func parseID(c *gin.Context) (int64, bool) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	if id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid watch id"})
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, action string, err error) {
	if watch.IsValidationError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Errorf("[api] %s failed ip=%s err=%v", action, c.ClientIP(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
