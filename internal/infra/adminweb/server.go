// Package adminweb exposes a small authenticated HTTP surface for operators:
// aggregate stats, subject listings, and CSV log exports.
package adminweb

import (
	"crypto/subtle"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dchest/uniuri"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/azrahudaya/remindcare/internal/app"
	"github.com/azrahudaya/remindcare/internal/domain/reminderlog"
	"github.com/azrahudaya/remindcare/internal/domain/subject"
)

const sessionCookie = "rc_admin"

// Options configure the admin web server.
type Options struct {
	Port       int
	Username   string
	Password   string
	SessionTTL time.Duration
}

// Server is the operator dashboard backend. Sessions are in-memory; a restart
// logs every operator out.
type Server struct {
	echo     *echo.Echo
	admin    *app.AdminService
	subjects subject.Repository
	checkins reminderlog.CheckinRepository
	visits   reminderlog.VisitRepository
	logger   *logrus.Entry
	opts     Options

	mu       sync.Mutex
	sessions map[string]time.Time
}

func NewServer(
	admin *app.AdminService,
	subjects subject.Repository,
	checkins reminderlog.CheckinRepository,
	visits reminderlog.VisitRepository,
	logger *logrus.Entry,
	opts Options,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		admin:    admin,
		subjects: subjects,
		checkins: checkins,
		visits:   visits,
		logger:   logger,
		opts:     opts,
		sessions: make(map[string]time.Time),
	}

	e.POST("/admin/login", s.login)
	e.POST("/admin/logout", s.logout)
	api := e.Group("/admin/api", s.requireSession)
	api.GET("/summary", s.summary)
	api.GET("/users", s.listUsers)
	api.GET("/users/:chatID", s.getUser)
	api.GET("/logs", s.recentLogs)
	api.GET("/export/users.csv", s.exportUsers)
	api.GET("/export/checkins.csv", s.exportCheckins)
	api.GET("/export/visits.csv", s.exportVisits)

	return s
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.opts.Port)
	s.logger.WithField("addr", addr).Info("Admin web server started")
	err := s.echo.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close stops the HTTP listener.
func (s *Server) Close() error {
	return s.echo.Close()
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.opts.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.opts.Password)) == 1
	if !userOK || !passOK {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token := uniuri.NewLen(40)
	expires := time.Now().Add(s.opts.SessionTTL)
	s.mu.Lock()
	s.sessions[token] = expires
	s.mu.Unlock()

	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Expires:  expires,
		HttpOnly: true,
		Path:     "/admin",
	})
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logout(c echo.Context) error {
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, cookie.Value)
		s.mu.Unlock()
	}
	c.SetCookie(&http.Cookie{Name: sessionCookie, Value: "", MaxAge: -1, Path: "/admin"})
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(sessionCookie)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
		s.mu.Lock()
		expires, ok := s.sessions[cookie.Value]
		if ok && time.Now().After(expires) {
			delete(s.sessions, cookie.Value)
			ok = false
		}
		s.mu.Unlock()
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}
		return next(c)
	}
}

func (s *Server) summary(c echo.Context) error {
	stats, err := s.admin.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

type userView struct {
	ChatID       string `json:"chat_id"`
	Phase        string `json:"phase"`
	Name         string `json:"name,omitempty"`
	LMPDay       string `json:"lmp_day,omitempty"`
	ReminderTime string `json:"reminder_time,omitempty"`
	DeliveryDay  string `json:"delivery_day,omitempty"`
	IsAllowed    bool   `json:"is_allowed"`
	IsBlocked    bool   `json:"is_blocked"`
}

func viewOf(sub *subject.Subject) userView {
	return userView{
		ChatID:       sub.ChatID,
		Phase:        string(sub.Phase),
		Name:         sub.Profile.Name.String,
		LMPDay:       sub.Profile.LMPDay.String,
		ReminderTime: sub.Profile.ReminderTime.String,
		DeliveryDay:  sub.DeliveryData.DeliveryDay.String,
		IsAllowed:    sub.IsAllowed,
		IsBlocked:    sub.IsBlocked,
	}
}

func (s *Server) listUsers(c echo.Context) error {
	subs, err := s.subjects.ListAll(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	views := make([]userView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, viewOf(sub))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) getUser(c echo.Context) error {
	sub, err := s.subjects.GetByChatID(c.Request().Context(), c.Param("chatID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "subject not found")
	}
	checkins, err := s.checkins.ListBySubject(c.Request().Context(), sub.ChatID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	visits, err := s.visits.ListBySubject(c.Request().Context(), sub.ChatID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"user":     viewOf(sub),
		"checkins": checkins,
		"visits":   visits,
	})
}

func (s *Server) recentLogs(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	logs, err := s.checkins.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, logs)
}

func (s *Server) exportUsers(c echo.Context) error {
	subs, err := s.subjects.ListAll(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return writeCSV(c, "users.csv",
		[]string{"chat_id", "phase", "name", "age", "pregnancy_number", "lmp_day", "reminder_time", "delivery_day", "is_allowed", "is_blocked"},
		func(w *csv.Writer) error {
			for _, sub := range subs {
				record := []string{
					sub.ChatID, string(sub.Phase),
					sub.Profile.Name.String, sub.Profile.Age.String, sub.Profile.PregnancyNumber.String,
					sub.Profile.LMPDay.String, sub.Profile.ReminderTime.String,
					sub.DeliveryData.DeliveryDay.String,
					strconv.FormatBool(sub.IsAllowed), strconv.FormatBool(sub.IsBlocked),
				}
				if err := w.Write(record); err != nil {
					return err
				}
			}
			return nil
		})
}

func (s *Server) exportCheckins(c echo.Context) error {
	logs, err := s.checkins.ListRecent(c.Request().Context(), 10000)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return writeCSV(c, "checkins.csv",
		[]string{"chat_id", "day", "response", "done_count", "not_yet_count"},
		func(w *csv.Writer) error {
			for _, log := range logs {
				record := []string{
					log.ChatID, log.Day, log.Response.String,
					strconv.Itoa(log.DoneCount), strconv.Itoa(log.NotYetCount),
				}
				if err := w.Write(record); err != nil {
					return err
				}
			}
			return nil
		})
}

func (s *Server) exportVisits(c echo.Context) error {
	subs, err := s.subjects.ListAll(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return writeCSV(c, "visits.csv",
		[]string{"chat_id", "code", "due_at", "prompt_sent_at", "response", "done_count", "not_yet_count"},
		func(w *csv.Writer) error {
			for _, sub := range subs {
				rows, err := s.visits.ListBySubject(c.Request().Context(), sub.ChatID)
				if err != nil {
					return err
				}
				for _, row := range rows {
					promptSent := ""
					if row.PromptSentAt.Valid {
						promptSent = row.PromptSentAt.Time.Format(time.RFC3339)
					}
					record := []string{
						row.ChatID, row.Code, row.DueAt.Format(time.RFC3339), promptSent,
						row.Response.String, strconv.Itoa(row.DoneCount), strconv.Itoa(row.NotYetCount),
					}
					if err := w.Write(record); err != nil {
						return err
					}
				}
			}
			return nil
		})
}

func writeCSV(c echo.Context, filename string, header []string, body func(w *csv.Writer) error) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	if err := w.Write(header); err != nil {
		return err
	}
	if err := body(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
