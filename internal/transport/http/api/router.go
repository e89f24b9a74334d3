package apihttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"prism/internal/account"
	"prism/internal/analysis"
	"prism/internal/decision"
	"prism/internal/health"
	"prism/internal/research"
	"prism/internal/store"
	"prism/internal/store/model"
	"prism/internal/subscription"

	"github.com/gin-gonic/gin"
)

type AccountService interface {
	Register(ctx context.Context, in account.Credentials) (account.Session, error)
	Login(ctx context.Context, in account.Credentials) (account.Session, error)
	Authenticate(ctx context.Context, rawToken string) (*model.UserModel, error)
	Me(ctx context.Context, userID uint64) (account.Profile, error)
}

type DecisionService interface {
	Analyze(ctx context.Context, user *model.UserModel, in analysis.Input) (decision.Outcome, error)
	History(ctx context.Context, q store.DecisionQuery) ([]model.DecisionModel, error)
}

type PaymentService interface {
	Process(ctx context.Context, req subscription.Request) (subscription.Result, error)
}

type ResearchService interface {
	Analyze(ctx context.Context, img research.Image) (research.Breakdown, error)
	MaxBytes() int64
}

type ReadinessChecker interface {
	Ready(ctx context.Context) (health.Report, bool)
}

// multipartOverhead leaves room for boundaries and part headers.
const multipartOverhead = 1 << 20

// Router exposes the public API routes.
type Router struct {
	accounts  AccountService
	decisions DecisionService
	payments  PaymentService
	research  ResearchService
	limiter   *rateLimiter
}

func NewRouter(accounts AccountService, decisions DecisionService, payments PaymentService, research ResearchService, limiter *rateLimiter) *Router {
	return &Router{
		accounts:  accounts,
		decisions: decisions,
		payments:  payments,
		research:  research,
		limiter:   limiter,
	}
}

// Register mounts the API under group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	auth := group.Group("/auth")
	if r.limiter != nil {
		auth.Use(r.limiter.middleware())
	}
	auth.POST("/register", r.handleRegister)
	auth.POST("/login", r.handleLogin)
	auth.GET("/me", requireUser(r.accounts), r.handleMe)

	group.POST("/decisions/analyze", requireUser(r.accounts), r.handleAnalyze)
	group.GET("/decisions/history", r.handleHistory)

	group.POST("/payments/process", r.handlePayment)

	group.GET("/research", r.handleResearchStatus)
	group.POST("/research/upload", r.handleResearchUpload)
}

func (r *Router) handleRegister(c *gin.Context) {
	var in account.Credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	sess, err := r.accounts.Register(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (r *Router) handleLogin(c *gin.Context) {
	var in account.Credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	sess, err := r.accounts.Login(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (r *Router) handleMe(c *gin.Context) {
	user := currentUser(c)
	profile, err := r.accounts.Me(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (r *Router) handleAnalyze(c *gin.Context) {
	var in analysis.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	out, err := r.decisions.Analyze(c.Request.Context(), currentUser(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) handleHistory(c *gin.Context) {
	q := store.DecisionQuery{Asset: strings.TrimSpace(c.Query("asset"))}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(c, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest))
			return
		}
		q.Limit = limit
	}
	rows, err := r.decisions.History(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (r *Router) handlePayment(c *gin.Context) {
	var req subscription.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	res, err := r.payments.Process(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleResearchStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "active", "message": research.StatusMessage})
}

func (r *Router) handleResearchUpload(c *gin.Context) {
	limit := r.research.MaxBytes()
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, research.ErrFileTooLarge)
			return
		}
		writeError(c, fmt.Errorf("%w: multipart field \"file\" is required", errBadRequest))
		return
	}
	img, err := readUpload(fh, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := r.research.Analyze(c.Request.Context(), img)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "analysis": out})
}

// readUpload reads at most limit+1 bytes so the service can reject oversize files.
func readUpload(fh *multipart.FileHeader, limit int64) (research.Image, error) {
	img := research.Image{Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type")}
	f, err := fh.Open()
	if err != nil {
		return img, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	var src io.Reader = f
	if limit > 0 {
		src = io.LimitReader(f, limit+1)
	}
	if img.Data, err = io.ReadAll(src); err != nil {
		return img, fmt.Errorf("read upload: %w", err)
	}
	return img, nil
}
