package workflowhttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"backdesk/internal/chart"
	"backdesk/internal/ingest"
	"backdesk/internal/request"
	"backdesk/internal/workflow"

	"github.com/gin-gonic/gin"
)

const (
	ctxSession     = "session"
	maxUploadBytes = 64 << 20
)

func (s *Server) handleIndicators(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"indicators": s.mgr.Catalog().List()})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess := s.mgr.Create()
	s.setCookie(c, sess.ID())
	c.JSON(http.StatusCreated, gin.H{"id": sess.ID()})
}

func (s *Server) setCookie(c *gin.Context, id string) {
	maxAge := int(s.cookieTTL.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, id, maxAge, "/", "", false, true)
}

// resolveSession loads the session named by :sid. The literal "current"
// takes the id from the X-Session-ID header or the session cookie.
func (s *Server) resolveSession(c *gin.Context) {
	id := c.Param("sid")
	if id == currentSession {
		id = c.GetHeader(headerSessionID)
		if id == "" {
			id, _ = c.Cookie(s.cookieName)
		}
	}
	sess, err := s.mgr.Open(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Set(ctxSession, sess)
	c.Next()
}

func session(c *gin.Context) *workflow.Session {
	return c.MustGet(ctxSession).(*workflow.Session)
}

func (s *Server) handleUpload(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes))
	if err != nil {
		abortWithError(c, &ingest.InputValidationError{Field: "file", Reason: err.Error()})
		return
	}
	info, err := session(c).Upload(c.Request.Context(), raw)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleFetch(c *gin.Context) {
	var form ingest.FetchForm
	if err := c.ShouldBindJSON(&form); err != nil {
		abortWithError(c, &ingest.InputValidationError{Reason: "invalid request body: " + err.Error()})
		return
	}
	info, err := session(c).Fetch(c.Request.Context(), form)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleDataset(c *gin.Context) {
	c.JSON(http.StatusOK, session(c).Info(c.Request.Context()))
}

func (s *Server) handleSessionIndicators(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"indicators": session(c).Available()})
}

func (s *Server) handleSelections(c *gin.Context) {
	c.JSON(http.StatusOK, session(c).Selections(c.Request.Context()))
}

func (s *Server) handleToggle(c *gin.Context) {
	view, err := session(c).Toggle(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleSetParam(c *gin.Context) {
	var body struct {
		Value any `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, &ingest.InputValidationError{Field: "value", Reason: "invalid request body: " + err.Error()})
		return
	}
	view, err := session(c).SetParam(c.Request.Context(), c.Param("id"), c.Param("name"), body.Value)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// formValue accepts a JSON string or number and keeps its text.
type formValue string

func (v *formValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = formValue(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("expected a string or number, got %s", b)
		}
		*v = formValue(n.String())
	}
	return nil
}

type backtestBody struct {
	Logic          formValue `json:"logic"`
	InitialCapital formValue `json:"initialCapital"`
	MaxTradeAmount formValue `json:"maxTradeAmount"`
	StopLoss       formValue `json:"stopLoss"`
	TakeProfit     formValue `json:"takeProfit"`
}

func (s *Server) handleBacktest(c *gin.Context) {
	var body backtestBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			abortWithError(c, &request.ConfigValidationError{Field: "body", Reason: err.Error()})
			return
		}
	}
	view, err := session(c).RunBacktest(c.Request.Context(), request.Form{
		Logic:          string(body.Logic),
		InitialCapital: string(body.InitialCapital),
		MaxTradeAmount: string(body.MaxTradeAmount),
		StopLoss:       string(body.StopLoss),
		TakeProfit:     string(body.TakeProfit),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleDownload(c *gin.Context) {
	file, err := session(c).Download(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", strings.ReplaceAll(file.Name, `"`, "")))
	c.Data(http.StatusOK, contentType, file.Data)
}

func (s *Server) handlePriceChart(c *gin.Context) {
	sess := session(c)
	series, ok := sess.PriceSeries(c.Request.Context())
	if !ok {
		abortWithError(c, &ingest.InputValidationError{Field: "data", Reason: "no dataset loaded"})
		return
	}
	title := "Close"
	if info := sess.Info(c.Request.Context()); info.Ticker != "" {
		title = info.Ticker + " close"
	}
	var buf bytes.Buffer
	if err := chart.RenderPrice(&buf, title, series); err != nil {
		abortWithError(c, &ingest.InputValidationError{Field: "data", Reason: err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
